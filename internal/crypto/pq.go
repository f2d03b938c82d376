package crypto

import (
	"fmt"

	"github.com/cloudflare/circl/kem/kyber/kyber1024"

	"github.com/keohanoi/onchain-messaging-sub000/internal/domain"
)

var kemScheme = kyber1024.Scheme()

// GenerateKEMKeyPair returns a fresh Kyber1024 pair serialized for storage.
func GenerateKEMKeyPair() (domain.PQKeyPair, error) {
	pub, priv, err := kemScheme.GenerateKeyPair()
	if err != nil {
		return domain.PQKeyPair{}, fmt.Errorf("generate kyber key: %w", err)
	}
	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		return domain.PQKeyPair{}, fmt.Errorf("marshal kyber public key: %w", err)
	}
	privBytes, err := priv.MarshalBinary()
	if err != nil {
		return domain.PQKeyPair{}, fmt.Errorf("marshal kyber private key: %w", err)
	}
	return domain.PQKeyPair{Pub: pubBytes, Priv: privBytes}, nil
}

// Encapsulate derives a fresh KEM shared secret against the recipient's
// serialized Kyber public key. The ciphertext travels to the recipient.
func Encapsulate(pqPub []byte) (ciphertext, sharedSecret []byte, err error) {
	pk, err := kemScheme.UnmarshalBinaryPublicKey(pqPub)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: kyber public key: %v", ErrInvalidKey, err)
	}
	ciphertext, sharedSecret, err = kemScheme.Encapsulate(pk)
	if err != nil {
		return nil, nil, fmt.Errorf("kyber encapsulate: %w", err)
	}
	return ciphertext, sharedSecret, nil
}

// Decapsulate recovers the KEM shared secret with the serialized private key.
func Decapsulate(pqPriv, ciphertext []byte) ([]byte, error) {
	sk, err := kemScheme.UnmarshalBinaryPrivateKey(pqPriv)
	if err != nil {
		return nil, fmt.Errorf("%w: kyber private key: %v", ErrInvalidKey, err)
	}
	ss, err := kemScheme.Decapsulate(sk, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("kyber decapsulate: %w", err)
	}
	return ss, nil
}
