package stealth

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/keohanoi/onchain-messaging-sub000/internal/crypto"
	"github.com/keohanoi/onchain-messaging-sub000/internal/domain"
)

// hashKey keys the digest that turns the ECDH point into the tweak scalar
// and view tag, separating this use from every other use of the same point.
const hashKey = "omsg/stealth/v1"

// Derivation is one one-time address computation. SharedSecret is the
// compressed ECDH point; the recipient reproduces it from EphemeralKey and
// the viewing private key.
type Derivation struct {
	Address      string
	EphemeralKey domain.PublicKey
	SharedSecret []byte
	ViewTag      byte
}

// Derive computes a fresh one-time address for the holder of the given
// viewing/spending keys. Each call generates a new ephemeral pair, so two
// messages to the same recipient never share an address.
func Derive(viewingPub, spendingPub domain.PublicKey) (Derivation, error) {
	if err := crypto.ValidatePublicKey(viewingPub); err != nil {
		return Derivation{}, fmt.Errorf("viewing key: %w", err)
	}
	if err := crypto.ValidatePublicKey(spendingPub); err != nil {
		return Derivation{}, fmt.Errorf("spending key: %w", err)
	}

	ephemeral, err := crypto.GenerateKeyPair()
	if err != nil {
		return Derivation{}, err
	}
	secret, err := crypto.ECDH(ephemeral.Priv, viewingPub)
	if err != nil {
		return Derivation{}, err
	}
	d, err := fromSecret(secret, spendingPub)
	if err != nil {
		return Derivation{}, err
	}
	d.EphemeralKey = ephemeral.Pub
	return d, nil
}

// DeriveFromEphemeral is the recipient side: ECDH commutativity reproduces
// the sender's shared secret from the broadcast ephemeral key, and with it
// the identical address and tag.
func DeriveFromEphemeral(ephemeralPub domain.PublicKey, viewingPriv domain.PrivateKey, spendingPub domain.PublicKey) (Derivation, error) {
	if err := crypto.ValidatePublicKey(ephemeralPub); err != nil {
		return Derivation{}, fmt.Errorf("ephemeral key: %w", err)
	}
	secret, err := crypto.ECDH(viewingPriv, ephemeralPub)
	if err != nil {
		return Derivation{}, err
	}
	d, err := fromSecret(secret, spendingPub)
	if err != nil {
		return Derivation{}, err
	}
	d.EphemeralKey = ephemeralPub
	return d, nil
}

// SharedSecret computes only the ECDH leg. Scanners call this once per
// observed event and decide from the view tag whether anything further is
// worth computing.
func SharedSecret(viewingPriv domain.PrivateKey, ephemeralPub domain.PublicKey) ([]byte, error) {
	if err := crypto.ValidatePublicKey(ephemeralPub); err != nil {
		return nil, fmt.Errorf("ephemeral key: %w", err)
	}
	return crypto.ECDH(viewingPriv, ephemeralPub)
}

// ViewTag returns the 1-byte filter for a shared secret. Only someone who
// can compute the secret can check the tag, so it leaks nothing to third
// parties beyond a 1-in-256 bucketing.
func ViewTag(sharedSecret []byte) byte {
	digest := crypto.HMAC256([]byte(hashKey), sharedSecret)
	return digest[0]
}

// AddressFromSecret finishes the derivation for scanners that already hold
// the shared secret and have passed the tag check.
func AddressFromSecret(sharedSecret []byte, spendingPub domain.PublicKey) (string, error) {
	d, err := fromSecret(sharedSecret, spendingPub)
	if err != nil {
		return "", err
	}
	return d.Address, nil
}

// fromSecret maps the shared point to tag, tweak scalar and address. The
// same keyed digest feeds the tag (first byte) and the scalar (reduced mod
// the curve order), so sender and recipient stay in lockstep.
func fromSecret(sharedSecret []byte, spendingPub domain.PublicKey) (Derivation, error) {
	digest := crypto.HMAC256([]byte(hashKey), sharedSecret)
	scalar := crypto.ReduceToScalar(digest)
	point, err := crypto.ScalarBaseAdd(spendingPub, scalar)
	if err != nil {
		return Derivation{}, err
	}
	addr, err := address(point)
	if err != nil {
		return Derivation{}, err
	}
	return Derivation{
		Address:      addr,
		SharedSecret: sharedSecret,
		ViewTag:      digest[0],
	}, nil
}

// address renders the stealth point as the last 20 bytes of the Keccak-256
// of the uncompressed point, 0x-hex encoded.
func address(point domain.PublicKey) (string, error) {
	raw, err := crypto.Uncompress(point)
	if err != nil {
		return "", err
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(raw[1:])
	sum := h.Sum(nil)
	return "0x" + hex.EncodeToString(sum[12:]), nil
}
