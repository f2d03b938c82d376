package domain

import "context"

// Registry publishes and resolves key bundles. Implementations must return a
// bundle whose signed prekey signature verifies; callers still re-verify
// before deriving anything from it.
type Registry interface {
	Publish(ctx context.Context, bundle KeyBundle) error
	Lookup(ctx context.Context, peer PeerID) (KeyBundle, error)
}

// Ledger is the shared append-only broadcast channel. Events assigns
// sequence numbers starting at 1 and returns only events with Seq > from.
type Ledger interface {
	Append(ctx context.Context, ev BroadcastEvent) (uint64, error)
	Events(ctx context.Context, from uint64) ([]BroadcastEvent, error)
}

// Keystore persists the local identity under a passphrase.
type Keystore interface {
	Save(passphrase string, id Identity) error
	Load(passphrase string) (Identity, error)
	Exists() bool
}
