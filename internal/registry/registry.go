package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/keohanoi/onchain-messaging-sub000/internal/crypto"
	"github.com/keohanoi/onchain-messaging-sub000/internal/domain"
)

var (
	// ErrNotFound reports a peer with no published bundle.
	ErrNotFound = errors.New("registry: bundle not found")
	// ErrBadBundle reports a bundle that fails validation: malformed keys,
	// a missing signed prekey, or a signature that does not verify.
	ErrBadBundle = errors.New("registry: invalid bundle")
)

// verifyBundle enforces the publish-side contract: every key decodes to a
// curve point and the signed prekey signature verifies against the identity
// key. Initiators re-verify the signature themselves; the registry refusing
// bad bundles just keeps garbage out of circulation.
func verifyBundle(b domain.KeyBundle) error {
	if b.Peer == "" {
		return fmt.Errorf("%w: missing peer id", ErrBadBundle)
	}
	if b.Peer != crypto.PeerIDFromKey(b.IdentityKey) {
		return fmt.Errorf("%w: peer id does not match identity key", ErrBadBundle)
	}
	for name, key := range map[string]domain.PublicKey{
		"identity key":  b.IdentityKey,
		"signed prekey": b.SignedPrekey,
		"spending key":  b.SpendingKey,
		"viewing key":   b.ViewingKey,
	} {
		if err := crypto.ValidatePublicKey(key); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrBadBundle, name, err)
		}
	}
	for _, opk := range b.OneTimePrekeys {
		if err := crypto.ValidatePublicKey(opk.Pub); err != nil {
			return fmt.Errorf("%w: one-time prekey %d: %v", ErrBadBundle, opk.Index, err)
		}
	}
	if !crypto.Verify(b.IdentityKey, b.SignedPrekey.Slice(), b.SignedPrekeySignature) {
		return fmt.Errorf("%w: signed prekey signature", ErrBadBundle)
	}
	return nil
}

// Memory is an in-process registry, used in tests and as the inner layer of
// the file-backed one.
type Memory struct {
	mu      sync.RWMutex
	bundles map[domain.PeerID]domain.KeyBundle
}

var _ domain.Registry = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{bundles: make(map[domain.PeerID]domain.KeyBundle)}
}

// Publish validates and stores the bundle, stamping UpdatedAt.
func (m *Memory) Publish(_ context.Context, bundle domain.KeyBundle) error {
	if err := verifyBundle(bundle); err != nil {
		return err
	}
	bundle.UpdatedAt = time.Now().UTC()

	m.mu.Lock()
	m.bundles[bundle.Peer] = bundle
	m.mu.Unlock()
	return nil
}

// Lookup returns the bundle published by peer.
func (m *Memory) Lookup(_ context.Context, peer domain.PeerID) (domain.KeyBundle, error) {
	m.mu.RLock()
	bundle, ok := m.bundles[peer]
	m.mu.RUnlock()
	if !ok {
		return domain.KeyBundle{}, fmt.Errorf("%w: %s", ErrNotFound, peer)
	}
	return bundle, nil
}
