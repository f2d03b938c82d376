package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

const (
	// AEADKeySize is the AES-256 key length.
	AEADKeySize = 32
	// NonceSize is the GCM nonce length.
	NonceSize = 12
	// TagSize is the GCM authentication tag length.
	TagSize = 16
)

// ErrAuthTagMismatch reports an AEAD open failure. Tampering with the
// ciphertext, nonce, tag or associated data all surface as this error;
// GCM cannot distinguish the cases and neither do we.
var ErrAuthTagMismatch = errors.New("crypto: authentication tag mismatch")

// Seal encrypts plaintext under key with AES-256-GCM and a random nonce,
// binding aad. The tag is returned separately from the ciphertext.
func Seal(key [32]byte, plaintext, aad []byte) (ciphertext, iv, tag []byte, err error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, nil, err
	}
	iv = make([]byte, NonceSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, nil, fmt.Errorf("read nonce: %w", err)
	}
	sealed := aead.Seal(nil, iv, plaintext, aad)
	n := len(sealed) - TagSize
	return sealed[:n], iv, sealed[n:], nil
}

// Open decrypts and authenticates a Seal output. Any corruption of the
// inputs yields ErrAuthTagMismatch.
func Open(key [32]byte, ciphertext, iv, tag, aad []byte) ([]byte, error) {
	if len(iv) != NonceSize || len(tag) != TagSize {
		return nil, ErrAuthTagMismatch
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plaintext, err := aead.Open(nil, iv, sealed, aad)
	if err != nil {
		return nil, ErrAuthTagMismatch
	}
	return plaintext, nil
}

func newGCM(key [32]byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("init AES: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init GCM: %w", err)
	}
	return aead, nil
}
