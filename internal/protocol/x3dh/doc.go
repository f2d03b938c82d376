// Package x3dh implements the extended triple Diffie-Hellman key agreement
// used to bootstrap a Double Ratchet session between two parties who are
// never online at the same time.
//
// # Overview
//
// The initiator derives a 32-byte shared secret against a responder's
// published key bundle. The bundle contains:
//   - Identity key (secp256k1, compressed)
//   - Signed prekey and its ECDSA signature by the identity key
//   - Optional indexed one-time prekeys
//   - Optional Kyber1024 public key for the post-quantum step
//
// # Flows
//
// Initiator:
//  1. Validate every bundle key is on the curve; verify the signed prekey
//     signature. Both happen before any DH is computed.
//  2. Generate an ephemeral pair.
//  3. Compute DH terms IKa·IKb, IKa·SPKb, EKa·IKb, EKa·SPKb and, when a
//     one-time prekey is present, EKa·OPKb.
//  4. HKDF the concatenated terms with salt SHA-256(IKa ‖ IKb).
//  5. Optionally encapsulate to the bundle's KEM key and fold the KEM secret
//     in under a second HKDF context.
//
// Responder:
//  1. Receive the intro (initiator identity key, ephemeral key, prekey ids,
//     optional KEM ciphertext).
//  2. Look up the signed prekey and consume the one-time prekey.
//  3. Compute the mirrored DH set with private keys swapped to the other
//     side; decapsulate the KEM ciphertext if present.
//  4. HKDF the identical transcript to the identical secret.
//
// # Errors
//
// ErrSignatureInvalid is returned when the signed prekey signature is absent
// or fails verification. Key material that does not decode to a curve point
// surfaces crypto.ErrInvalidKey. Both reject the attempt before any secret
// is derived.
//
// # Security notes
//
// Only public material is ever transmitted. One-time prekeys are deleted on
// first use; their DH term uses the ephemeral private key so compromise of
// the initiator's identity key later does not expose it.
package x3dh
