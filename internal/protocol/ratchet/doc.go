// Package ratchet implements the Double Ratchet algorithm following Signal's
// design.
//
// The algorithm maintains a root key and two message chains (send and
// receive). Each message advances a KDF chain so that keys are forward
// secure. When a party rotates its DH ratchet key, both sides derive new
// chain keys from a new root via DH.
//
// All operations take a state value and return the advanced state; nothing
// is committed on error. Skipped message keys for out-of-order delivery are
// cached in the state, bounded by MaxSkip per walk and MaxSkippedKeys in
// total.
//
// Concurrency: RatchetState is NOT safe for concurrent use. Callers must
// serialise access per conversation; the session store does this per peer.
package ratchet
