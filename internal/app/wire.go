package app

import (
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/keohanoi/onchain-messaging-sub000/internal/domain"
	"github.com/keohanoi/onchain-messaging-sub000/internal/ledger"
	"github.com/keohanoi/onchain-messaging-sub000/internal/registry"
	"github.com/keohanoi/onchain-messaging-sub000/internal/services/identity"
	"github.com/keohanoi/onchain-messaging-sub000/internal/services/messaging"
	"github.com/keohanoi/onchain-messaging-sub000/internal/store"
)

// Wire bundles all stores, collaborators and services for the CLI.
type Wire struct {
	Keystore domain.Keystore
	Registry domain.Registry
	Ledger   domain.Ledger
	Sessions *store.SessionStore
	Identity *identity.Service
	Messages *messaging.Service
}

// NewWire constructs the dependency graph from cfg. With a non-empty
// passphrase, ratchet sessions persist under home/sessions sealed with it
// and survive restarts; without one they live only for the process.
func NewWire(cfg Config, passphrase string, log zerolog.Logger) (*Wire, error) {
	ks := store.NewKeystore(cfg.Home)
	reg := registry.NewFile(cfg.Registry)
	led := ledger.NewFile(cfg.Ledger)

	opts := []store.Option{store.WithLogger(log)}
	if passphrase != "" {
		fp, err := store.NewFilePersister(filepath.Join(cfg.Home, "sessions"), passphrase)
		if err != nil {
			return nil, err
		}
		opts = append(opts, store.WithPersister(fp))
	}
	sessions, err := store.NewSessionStore(opts...)
	if err != nil {
		return nil, err
	}

	return &Wire{
		Keystore: ks,
		Registry: reg,
		Ledger:   led,
		Sessions: sessions,
		Identity: identity.New(ks, reg, log),
		Messages: messaging.New(ks, reg, led, sessions, log),
	}, nil
}
