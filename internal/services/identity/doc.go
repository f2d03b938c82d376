// Package identity manages creation, encryption and loading of the local
// identity.
//
// It enforces passphrase policy, generates the secp256k1 identity, spending
// and viewing pairs plus the prekey inventory (and optionally a Kyber pair),
// persists everything via the domain.Keystore, and handles bundle
// publication and signed-prekey rotation against the registry.
package identity
