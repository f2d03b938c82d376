// Package crypto exposes the primitives the protocol layers build on.
//
// Contents
//
//   - secp256k1 key generation, parsing, ECDH and point arithmetic
//     (GenerateKeyPair, ParsePublicKey, ECDH, ScalarBaseAdd)
//   - ECDSA signing and verification over SHA-256 digests (Sign, Verify)
//   - AES-256-GCM sealing with detached tags (Seal, Open)
//   - HKDF-SHA256 and HMAC-SHA256 derivation helpers (HKDF, HMAC256)
//   - Kyber1024 KEM for the post-quantum agreement leg (Encapsulate,
//     Decapsulate)
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//   - Public-key fingerprints and peer identifiers (Fingerprint,
//     PeerIDFromKey)
//
// # Notes
//
// Fixed-size key material uses the array types defined in internal/domain to
// avoid accidental reallocations. Callers should treat returned secrets as
// sensitive and rely on Wipe when practical to reduce lifetime in memory.
package crypto
