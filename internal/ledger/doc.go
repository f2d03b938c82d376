// Package ledger provides the append-only broadcast channel that carries
// every encrypted message.
//
// The channel is public: anyone can append and anyone can read, and nothing
// on it names a recipient beyond a one-time stealth address and a view tag.
// The ledger's one integrity duty is nullifier uniqueness: an event whose
// nullifier was already recorded is refused with ErrDuplicateNullifier, so
// a replayed broadcast never reaches scanners twice.
//
// Memory keeps events in-process for tests; File shares one JSON file
// between processes, standing in for a real chain or relay during local use.
package ledger
