package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/keohanoi/onchain-messaging-sub000/internal/crypto"
	"github.com/keohanoi/onchain-messaging-sub000/internal/domain"
)

const (
	// minPassphraseLength is the minimum number of characters required for
	// the keystore passphrase.
	minPassphraseLength = 12

	// defaultOneTimeCount is how many one-time prekeys Generate mints when
	// the caller does not say.
	defaultOneTimeCount = 10

	// retainedSignedPrekeys bounds how many signed prekeys we keep after a
	// rotation: the current one plus its predecessor, so in-flight first
	// messages addressed to the old prekey still bootstrap.
	retainedSignedPrekeys = 2
)

var (
	// ErrWeakPassphrase is returned when the passphrase fails the strength
	// policy.
	ErrWeakPassphrase = fmt.Errorf(
		"weak passphrase: need %d+ characters with upper and lower case, a digit and a symbol",
		minPassphraseLength,
	)

	// ErrIdentityExists is returned when Generate would overwrite an
	// existing identity.
	ErrIdentityExists = errors.New("identity already exists; refusing to overwrite")
)

// Options tune identity generation.
type Options struct {
	// OneTimeCount is the number of one-time prekeys to mint; zero means
	// defaultOneTimeCount.
	OneTimeCount int
	// EnablePQ also mints a Kyber KEM pair and advertises it in the bundle.
	EnablePQ bool
}

// Service manages the local identity: generation, loading, bundle
// publication and signed-prekey rotation.
//
// The identity contains:
//   - secp256k1 identity pair for Diffie-Hellman and prekey signatures.
//   - Stealth spending and viewing pairs for one-time addresses.
//   - Signed prekeys (current plus retained predecessor) and one-time
//     prekeys for asynchronous key agreement.
//   - Optionally a Kyber-1024 pair for the post-quantum agreement step.
type Service struct {
	keystore domain.Keystore
	registry domain.Registry
	log      zerolog.Logger
}

// New returns an identity service backed by the given keystore and registry.
func New(keystore domain.Keystore, registry domain.Registry, log zerolog.Logger) *Service {
	return &Service{keystore: keystore, registry: registry, log: log}
}

// Generate creates a new identity and saves it encrypted with the
// passphrase. The peer id is derived from the identity public key, so it
// cannot be chosen.
func (s *Service) Generate(passphrase string, opts Options) (domain.Identity, error) {
	if !isSecurePassphrase(passphrase) {
		return domain.Identity{}, ErrWeakPassphrase
	}
	if s.keystore.Exists() {
		return domain.Identity{}, ErrIdentityExists
	}

	key, err := crypto.GenerateKeyPair()
	if err != nil {
		return domain.Identity{}, fmt.Errorf("identity key: %w", err)
	}
	spending, err := crypto.GenerateKeyPair()
	if err != nil {
		return domain.Identity{}, fmt.Errorf("spending key: %w", err)
	}
	viewing, err := crypto.GenerateKeyPair()
	if err != nil {
		return domain.Identity{}, fmt.Errorf("viewing key: %w", err)
	}
	spk, err := newSignedPrekey(key.Priv)
	if err != nil {
		return domain.Identity{}, err
	}

	count := opts.OneTimeCount
	if count <= 0 {
		count = defaultOneTimeCount
	}
	opks := make([]domain.OneTimePrekeyPair, 0, count)
	for i := 0; i < count; i++ {
		pair, err := crypto.GenerateKeyPair()
		if err != nil {
			return domain.Identity{}, fmt.Errorf("one-time prekey %d: %w", i, err)
		}
		opks = append(opks, domain.OneTimePrekeyPair{Index: uint32(i), Pair: pair})
	}

	id := domain.Identity{
		ID:             crypto.PeerIDFromKey(key.Pub),
		Key:            key,
		Spending:       spending,
		Viewing:        viewing,
		SignedPrekeys:  []domain.SignedPrekeyPair{spk},
		OneTimePrekeys: opks,
		CreatedAt:      time.Now().UTC(),
	}
	if opts.EnablePQ {
		pq, err := crypto.GenerateKEMKeyPair()
		if err != nil {
			return domain.Identity{}, fmt.Errorf("kem key: %w", err)
		}
		id.PQ = &pq
	}

	if err := s.keystore.Save(passphrase, id); err != nil {
		return domain.Identity{}, err
	}

	s.log.Info().
		Str("peer", string(id.ID)).
		Int("one_time_prekeys", len(id.OneTimePrekeys)).
		Bool("pq", id.PQ != nil).
		Msg("identity generated")
	return id, nil
}

// Load decrypts and returns the local identity.
func (s *Service) Load(passphrase string) (domain.Identity, error) {
	return s.keystore.Load(passphrase)
}

// Publish uploads the public half of the identity to the registry.
func (s *Service) Publish(ctx context.Context, passphrase string) (domain.KeyBundle, error) {
	id, err := s.keystore.Load(passphrase)
	if err != nil {
		return domain.KeyBundle{}, err
	}
	bundle := id.Bundle()
	if err := s.registry.Publish(ctx, bundle); err != nil {
		return domain.KeyBundle{}, err
	}
	s.log.Info().
		Str("peer", string(id.ID)).
		Str("signed_prekey", bundle.SignedPrekeyID).
		Int("one_time_prekeys", len(bundle.OneTimePrekeys)).
		Msg("bundle published")
	return bundle, nil
}

// RotateSignedPrekey mints a fresh signed prekey, retires all but the
// previous one, and republishes the bundle so new initiators pick up the
// rotation immediately.
func (s *Service) RotateSignedPrekey(ctx context.Context, passphrase string) (domain.SignedPrekeyPair, error) {
	id, err := s.keystore.Load(passphrase)
	if err != nil {
		return domain.SignedPrekeyPair{}, err
	}

	spk, err := newSignedPrekey(id.Key.Priv)
	if err != nil {
		return domain.SignedPrekeyPair{}, err
	}
	id.SignedPrekeys = append(id.SignedPrekeys, spk)
	if len(id.SignedPrekeys) > retainedSignedPrekeys {
		id.SignedPrekeys = id.SignedPrekeys[len(id.SignedPrekeys)-retainedSignedPrekeys:]
	}

	if err := s.keystore.Save(passphrase, id); err != nil {
		return domain.SignedPrekeyPair{}, err
	}
	if err := s.registry.Publish(ctx, id.Bundle()); err != nil {
		return domain.SignedPrekeyPair{}, err
	}

	s.log.Info().
		Str("peer", string(id.ID)).
		Str("signed_prekey", spk.ID).
		Msg("signed prekey rotated")
	return spk, nil
}

// Fingerprint returns the full fingerprint of the identity public key, for
// out-of-band comparison.
func (s *Service) Fingerprint(passphrase string) (domain.Fingerprint, error) {
	id, err := s.keystore.Load(passphrase)
	if err != nil {
		return "", err
	}
	return crypto.Fingerprint(id.Key.Pub), nil
}

// newSignedPrekey mints a prekey pair and signs its compressed public half
// with the identity key.
func newSignedPrekey(identityPriv domain.PrivateKey) (domain.SignedPrekeyPair, error) {
	pair, err := crypto.GenerateKeyPair()
	if err != nil {
		return domain.SignedPrekeyPair{}, fmt.Errorf("signed prekey: %w", err)
	}
	return domain.SignedPrekeyPair{
		ID:        uuid.NewString(),
		Pair:      pair,
		Signature: crypto.Sign(identityPriv, pair.Pub.Slice()),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// isSecurePassphrase checks length and that all four character classes
// (upper, lower, digit, symbol) appear.
func isSecurePassphrase(passphrase string) bool {
	if len(passphrase) < minPassphraseLength {
		return false
	}
	classes := []func(rune) bool{
		unicode.IsUpper,
		unicode.IsLower,
		unicode.IsDigit,
		func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSymbol(r) },
	}
	for _, class := range classes {
		if !strings.ContainsFunc(passphrase, class) {
			return false
		}
	}
	return true
}
