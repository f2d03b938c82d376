package crypto

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/keohanoi/onchain-messaging-sub000/internal/domain"
)

// ErrInvalidKey reports key material that does not decode to a point on the
// curve (or a private scalar outside [1, n-1]).
var ErrInvalidKey = errors.New("crypto: invalid key")

// GenerateKeyPair returns a fresh secp256k1 key pair. The public key is
// stored in 33-byte compressed form.
func GenerateKeyPair() (domain.KeyPair, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return domain.KeyPair{}, fmt.Errorf("generate secp256k1 key: %w", err)
	}
	var kp domain.KeyPair
	copy(kp.Priv[:], priv.Serialize())
	copy(kp.Pub[:], priv.PubKey().SerializeCompressed())
	priv.Zero()
	return kp, nil
}

// ParsePublicKey decodes a compressed public key, rejecting anything that is
// not a valid curve point.
func ParsePublicKey(pub domain.PublicKey) (*secp256k1.PublicKey, error) {
	pk, err := secp256k1.ParsePubKey(pub.Slice())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return pk, nil
}

// ValidatePublicKey reports whether pub decodes to a point on the curve.
func ValidatePublicKey(pub domain.PublicKey) error {
	_, err := ParsePublicKey(pub)
	return err
}

// ECDH computes the Diffie-Hellman shared point priv*Pub and returns it in
// 33-byte compressed form. Both parties hash or KDF the result; the raw
// point is never used as a key directly.
func ECDH(priv domain.PrivateKey, pub domain.PublicKey) ([]byte, error) {
	pk, err := ParsePublicKey(pub)
	if err != nil {
		return nil, err
	}
	sk := secp256k1.PrivKeyFromBytes(priv.Slice())
	defer sk.Zero()

	var point, result secp256k1.JacobianPoint
	pk.AsJacobian(&point)
	secp256k1.ScalarMultNonConst(&sk.Key, &point, &result)
	if (result.X.IsZero() && result.Y.IsZero()) || result.Z.IsZero() {
		return nil, fmt.Errorf("%w: shared point at infinity", ErrInvalidKey)
	}
	result.ToAffine()
	shared := secp256k1.NewPublicKey(&result.X, &result.Y)
	return shared.SerializeCompressed(), nil
}

// ScalarBaseAdd computes pub + k*G and returns the sum compressed. Used for
// stealth address derivation where the recipient can reconstruct the same
// point from the matching private scalar.
func ScalarBaseAdd(pub domain.PublicKey, k [32]byte) (domain.PublicKey, error) {
	pk, err := ParsePublicKey(pub)
	if err != nil {
		return domain.PublicKey{}, err
	}
	var scalar secp256k1.ModNScalar
	scalar.SetBytes(&k)
	if scalar.IsZero() {
		return domain.PublicKey{}, fmt.Errorf("%w: zero tweak scalar", ErrInvalidKey)
	}

	var base, point, sum secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&scalar, &base)
	pk.AsJacobian(&point)
	secp256k1.AddNonConst(&point, &base, &sum)
	if sum.Z.IsZero() {
		return domain.PublicKey{}, fmt.Errorf("%w: tweaked point at infinity", ErrInvalidKey)
	}
	sum.ToAffine()

	var out domain.PublicKey
	copy(out[:], secp256k1.NewPublicKey(&sum.X, &sum.Y).SerializeCompressed())
	return out, nil
}

// Uncompress expands a compressed public key to the 65-byte uncompressed
// form (0x04 prefix, X, Y).
func Uncompress(pub domain.PublicKey) ([]byte, error) {
	pk, err := ParsePublicKey(pub)
	if err != nil {
		return nil, err
	}
	return pk.SerializeUncompressed(), nil
}

// ReduceToScalar interprets a 32-byte digest as an integer and reduces it
// modulo the curve order n.
func ReduceToScalar(digest [32]byte) [32]byte {
	var s secp256k1.ModNScalar
	s.SetBytes(&digest)
	return s.Bytes()
}
