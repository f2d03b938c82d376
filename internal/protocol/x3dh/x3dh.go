package x3dh

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/keohanoi/onchain-messaging-sub000/internal/crypto"
	"github.com/keohanoi/onchain-messaging-sub000/internal/domain"
)

const (
	infoAgreement = "X3DH"
	infoPQ        = "PQX3DH"
)

// ErrSignatureInvalid reports a signed prekey whose signature is missing or
// does not verify against the bundle's identity key. No DH term is computed
// once this check fails.
var ErrSignatureInvalid = errors.New("x3dh: signed prekey signature invalid")

// Encapsulator produces a KEM ciphertext and shared secret against a
// serialized post-quantum public key. crypto.Encapsulate satisfies it.
type Encapsulator func(pqPub []byte) (ciphertext, sharedSecret []byte, err error)

// InitiatorResult is everything the initiator needs after agreement: the
// session secret, the ephemeral pair (its public half travels in the first
// message), the KEM ciphertext when the PQ step ran, and which one-time
// prekey was consumed, if any.
type InitiatorResult struct {
	SharedSecret [32]byte
	Ephemeral    domain.KeyPair
	PQCiphertext []byte
	OneTimeIndex *uint32
}

// Initiator derives the shared session secret against a published bundle.
//
// Order of operations is deliberate: every public key is checked to be on
// the curve and the signed prekey signature is verified before the first DH
// term is computed. A fresh ephemeral pair contributes the forward-secret
// terms; when the bundle carries a one-time prekey the first one is consumed
// and mixed in via the ephemeral (never the identity) private key.
func Initiator(identity domain.KeyPair, bundle domain.KeyBundle, encap Encapsulator) (InitiatorResult, error) {
	if err := crypto.ValidatePublicKey(bundle.IdentityKey); err != nil {
		return InitiatorResult{}, fmt.Errorf("bundle identity key: %w", err)
	}
	if err := crypto.ValidatePublicKey(bundle.SignedPrekey); err != nil {
		return InitiatorResult{}, fmt.Errorf("bundle signed prekey: %w", err)
	}

	var opk *domain.OneTimePrekeyPublic
	if len(bundle.OneTimePrekeys) > 0 {
		opk = &bundle.OneTimePrekeys[0]
		if err := crypto.ValidatePublicKey(opk.Pub); err != nil {
			return InitiatorResult{}, fmt.Errorf("bundle one-time prekey %d: %w", opk.Index, err)
		}
	}

	if !crypto.Verify(bundle.IdentityKey, bundle.SignedPrekey.Slice(), bundle.SignedPrekeySignature) {
		return InitiatorResult{}, ErrSignatureInvalid
	}

	ephemeral, err := crypto.GenerateKeyPair()
	if err != nil {
		return InitiatorResult{}, err
	}

	dh1, err := crypto.ECDH(identity.Priv, bundle.IdentityKey) // DH(IKa, IKb)
	if err != nil {
		return InitiatorResult{}, err
	}
	dh2, err := crypto.ECDH(identity.Priv, bundle.SignedPrekey) // DH(IKa, SPKb)
	if err != nil {
		return InitiatorResult{}, err
	}
	dh3, err := crypto.ECDH(ephemeral.Priv, bundle.IdentityKey) // DH(EKa, IKb)
	if err != nil {
		return InitiatorResult{}, err
	}
	dh4, err := crypto.ECDH(ephemeral.Priv, bundle.SignedPrekey) // DH(EKa, SPKb)
	if err != nil {
		return InitiatorResult{}, err
	}

	transcript := make([]byte, 0, 33*5)
	transcript = append(transcript, dh1...)
	transcript = append(transcript, dh2...)
	transcript = append(transcript, dh3...)
	transcript = append(transcript, dh4...)

	result := InitiatorResult{Ephemeral: ephemeral}
	if opk != nil {
		dh5, err := crypto.ECDH(ephemeral.Priv, opk.Pub) // DH(EKa, OPKb)
		if err != nil {
			return InitiatorResult{}, err
		}
		transcript = append(transcript, dh5...)
		index := opk.Index
		result.OneTimeIndex = &index
	}

	var pqSecret []byte
	if len(bundle.PQKey) > 0 && encap != nil {
		ciphertext, secret, err := encap(bundle.PQKey)
		if err != nil {
			crypto.Wipe(transcript)
			return InitiatorResult{}, fmt.Errorf("pq encapsulate: %w", err)
		}
		result.PQCiphertext = ciphertext
		pqSecret = secret
	}

	salt := agreementSalt(identity.Pub, bundle.IdentityKey)
	result.SharedSecret, err = derive(transcript, salt, pqSecret)
	crypto.Wipe(transcript)
	crypto.Wipe(pqSecret)
	if err != nil {
		return InitiatorResult{}, err
	}
	return result, nil
}

// ResponderParams carries the responder's private material and the
// initiator's public keys from the first message.
type ResponderParams struct {
	TheirIdentityKey  domain.PublicKey
	TheirEphemeralKey domain.PublicKey
	Identity          domain.KeyPair
	SignedPrekey      domain.KeyPair
	OneTimePrekey     *domain.KeyPair
	// PQSharedSecret is the decapsulated KEM secret when the first message
	// carried a KEM ciphertext; nil otherwise.
	PQSharedSecret []byte
}

// Responder recomputes the initiator's shared secret from the other side.
// Each term pairs the mirrored keys, so DH commutativity makes the
// transcripts byte-identical; the salt keeps the initiator-first order.
func Responder(p ResponderParams) ([32]byte, error) {
	var secret [32]byte
	if err := crypto.ValidatePublicKey(p.TheirIdentityKey); err != nil {
		return secret, fmt.Errorf("initiator identity key: %w", err)
	}
	if err := crypto.ValidatePublicKey(p.TheirEphemeralKey); err != nil {
		return secret, fmt.Errorf("initiator ephemeral key: %w", err)
	}

	dh1, err := crypto.ECDH(p.Identity.Priv, p.TheirIdentityKey) // DH(IKa, IKb)
	if err != nil {
		return secret, err
	}
	dh2, err := crypto.ECDH(p.SignedPrekey.Priv, p.TheirIdentityKey) // DH(IKa, SPKb)
	if err != nil {
		return secret, err
	}
	dh3, err := crypto.ECDH(p.Identity.Priv, p.TheirEphemeralKey) // DH(EKa, IKb)
	if err != nil {
		return secret, err
	}
	dh4, err := crypto.ECDH(p.SignedPrekey.Priv, p.TheirEphemeralKey) // DH(EKa, SPKb)
	if err != nil {
		return secret, err
	}

	transcript := make([]byte, 0, 33*5)
	transcript = append(transcript, dh1...)
	transcript = append(transcript, dh2...)
	transcript = append(transcript, dh3...)
	transcript = append(transcript, dh4...)

	if p.OneTimePrekey != nil {
		dh5, err := crypto.ECDH(p.OneTimePrekey.Priv, p.TheirEphemeralKey) // DH(EKa, OPKb)
		if err != nil {
			return secret, err
		}
		transcript = append(transcript, dh5...)
	}

	salt := agreementSalt(p.TheirIdentityKey, p.Identity.Pub)
	secret, err = derive(transcript, salt, p.PQSharedSecret)
	crypto.Wipe(transcript)
	return secret, err
}

// agreementSalt hashes the two identity keys, initiator first. Both sides
// must orient this identically or the derived secrets diverge silently.
func agreementSalt(initiatorIdentity, responderIdentity domain.PublicKey) []byte {
	h := sha256.New()
	h.Write(initiatorIdentity.Slice())
	h.Write(responderIdentity.Slice())
	return h.Sum(nil)
}

// derive runs the transcript through HKDF, then folds in the KEM secret
// under a separate context when one is present.
func derive(transcript, salt, pqSecret []byte) ([32]byte, error) {
	var out [32]byte
	secret, err := crypto.HKDF(transcript, salt, infoAgreement, 32)
	if err != nil {
		return out, err
	}
	if len(pqSecret) > 0 {
		mixed := make([]byte, 0, len(secret)+len(pqSecret))
		mixed = append(mixed, secret...)
		mixed = append(mixed, pqSecret...)
		crypto.Wipe(secret)
		secret, err = crypto.HKDF(mixed, salt, infoPQ, 32)
		crypto.Wipe(mixed)
		if err != nil {
			return out, err
		}
	}
	copy(out[:], secret)
	crypto.Wipe(secret)
	return out, nil
}
