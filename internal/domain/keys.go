package domain

// PublicKey is a compressed secp256k1 public key.
type PublicKey [33]byte

// Slice returns the key as a []byte.
func (p PublicKey) Slice() []byte { return p[:] }

// IsZero reports whether the key is unset.
func (p PublicKey) IsZero() bool { return p == PublicKey{} }

// PrivateKey is a secp256k1 scalar.
type PrivateKey [32]byte

// Slice returns the key as a []byte.
func (k PrivateKey) Slice() []byte { return k[:] }

// KeyPair couples a private scalar with its public point.
type KeyPair struct {
	Priv PrivateKey `json:"priv"`
	Pub  PublicKey  `json:"pub"`
}

// PQKeyPair holds a Kyber KEM key pair in wire form, used by the optional
// post-quantum step of the key agreement.
type PQKeyPair struct {
	Pub  []byte `json:"pub"`
	Priv []byte `json:"priv"`
}
