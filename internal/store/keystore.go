package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/keohanoi/onchain-messaging-sub000/internal/domain"
)

const identityFile = "identity.json.enc"

// Keystore persists the local identity, passphrase-encrypted, under a home
// directory.
type Keystore struct {
	dir string
	mu  sync.Mutex
}

var _ domain.Keystore = (*Keystore)(nil)

func NewKeystore(dir string) *Keystore { return &Keystore{dir: dir} }

// Save seals the identity under the passphrase and writes it atomically.
func (s *Keystore) Save(passphrase string, id domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	sealed, err := sealEnvelope(passphrase, raw)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	return writeFile(filepath.Join(s.dir, identityFile), sealed, 0o600)
}

// Load decrypts and returns the stored identity. A wrong passphrase surfaces
// ErrWrongPassphrase.
func (s *Keystore) Load(passphrase string) (domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, err := os.ReadFile(filepath.Join(s.dir, identityFile))
	if err != nil {
		return domain.Identity{}, err
	}
	raw, err := openEnvelope(passphrase, sealed)
	if err != nil {
		return domain.Identity{}, err
	}
	var id domain.Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return domain.Identity{}, err
	}
	return id, nil
}

// Exists reports whether an identity file is present.
func (s *Keystore) Exists() bool {
	_, err := os.Stat(filepath.Join(s.dir, identityFile))
	return err == nil
}
