// Package messaging orchestrates the send and scan paths.
//
// Sending: bundle lookup, one-time stealth address derivation, session
// establishment on first contact (key agreement + intro), ratchet
// encryption, ledger append. The session commit happens before the append
// so a crash can lose a message but never double-spend a chain position.
//
// Scanning: events are filtered by the one-byte view tag, then by the full
// stealth address, and only then decrypted. The filter fans out across
// cores; decryption stays sequential in ledger order. Events with an intro
// bootstrap a responder session; the rest are attributed to an existing
// session by ratchet key, falling back to probing. Everything on the
// channel is untrusted input: whatever fails to parse, attribute or
// authenticate is logged and skipped.
package messaging
