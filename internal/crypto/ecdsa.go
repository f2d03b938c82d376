package crypto

import (
	"crypto/sha256"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/keohanoi/onchain-messaging-sub000/internal/domain"
)

// Sign produces a DER-encoded ECDSA signature over SHA-256(msg).
func Sign(priv domain.PrivateKey, msg []byte) []byte {
	sk := secp256k1.PrivKeyFromBytes(priv.Slice())
	defer sk.Zero()
	digest := sha256.Sum256(msg)
	return ecdsa.Sign(sk, digest[:]).Serialize()
}

// Verify reports whether sig is a valid DER ECDSA signature over
// SHA-256(msg) by the given public key.
func Verify(pub domain.PublicKey, msg, sig []byte) bool {
	pk, err := ParsePublicKey(pub)
	if err != nil {
		return false
	}
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(msg)
	return parsed.Verify(digest[:], pk)
}
