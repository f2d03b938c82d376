package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/keohanoi/onchain-messaging-sub000/internal/domain"
	"github.com/keohanoi/onchain-messaging-sub000/internal/store"
)

// File is a registry backed by one shared JSON file. Multiple processes may
// point at the same path; every operation re-reads it, so publishes from
// other participants become visible with no coordination beyond the
// atomic-rename write. Bundles are public material, hence the default file
// mode.
type File struct {
	path string
	mu   sync.Mutex
}

var _ domain.Registry = (*File)(nil)

func NewFile(path string) *File { return &File{path: path} }

// Publish validates the bundle and merges it into the shared file.
func (f *File) Publish(_ context.Context, bundle domain.KeyBundle) error {
	if err := verifyBundle(bundle); err != nil {
		return err
	}
	bundle.UpdatedAt = time.Now().UTC()

	f.mu.Lock()
	defer f.mu.Unlock()

	all := make(map[domain.PeerID]domain.KeyBundle)
	if err := store.ReadJSON(f.path, &all); err != nil {
		return err
	}
	all[bundle.Peer] = bundle
	return store.WriteJSON(f.path, all, 0o644)
}

// Lookup returns the bundle published by peer.
func (f *File) Lookup(_ context.Context, peer domain.PeerID) (domain.KeyBundle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	all := make(map[domain.PeerID]domain.KeyBundle)
	if err := store.ReadJSON(f.path, &all); err != nil {
		return domain.KeyBundle{}, err
	}
	bundle, ok := all[peer]
	if !ok {
		return domain.KeyBundle{}, fmt.Errorf("%w: %s", ErrNotFound, peer)
	}
	return bundle, nil
}
