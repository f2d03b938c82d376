// Package store provides the concurrency discipline and persistence for the
// module's state.
//
// SessionStore owns one RatchetState per peer and serialises every
// read-modify-write through a per-peer mutex; distinct peers never contend.
// Committed states are immutable snapshots, so loads are cheap and safe
// without the per-peer lock. An optional Persister flushes commits to disk
// after the lock is released, version-gated against reordering; on restart
// a FilePersister seeds the store from its directory.
//
// Keystore persists the local identity, and FilePersister the sessions,
// both sealed with a passphrase-derived key (scrypt + ChaCha20-Poly1305).
// Session snapshots are XDR-encoded; everything else is JSON written via
// temp-file-and-rename.
package store
