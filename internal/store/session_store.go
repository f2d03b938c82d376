package store

import (
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/keohanoi/onchain-messaging-sub000/internal/domain"
)

// ErrUpdateConflict is returned by OptimisticUpdate after exhausting its
// retries without winning a version race.
var ErrUpdateConflict = errors.New("store: optimistic update conflict")

// sessionEntry pairs the per-peer lock with the latest committed state.
// The state pointer is immutable once stored: commits swap in a fresh deep
// copy, so readers holding an old pointer never observe mutation.
type sessionEntry struct {
	mu    sync.Mutex
	state *domain.RatchetState
}

// SessionStore serializes all mutating access to ratchet sessions, one
// entry per peer. Operations on distinct peers never contend: the table
// mutex guards only map lookups and state-pointer swaps, never a critical
// section.
//
// The in-memory table is authoritative. An optional Persister is flushed
// after the per-peer lock is released so no storage I/O happens under it.
type SessionStore struct {
	mu      sync.RWMutex
	entries map[domain.PeerID]*sessionEntry

	persister Persister
	log       zerolog.Logger
}

// Option configures a SessionStore.
type Option func(*SessionStore)

// WithPersister flushes every committed state to p. If p also implements
// Loader, the store is seeded from it at construction.
func WithPersister(p Persister) Option {
	return func(s *SessionStore) { s.persister = p }
}

// WithLogger sets the logger used for after-commit flush failures.
func WithLogger(log zerolog.Logger) Option {
	return func(s *SessionStore) { s.log = log }
}

func NewSessionStore(opts ...Option) (*SessionStore, error) {
	s := &SessionStore{
		entries: make(map[domain.PeerID]*sessionEntry),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if loader, ok := s.persister.(Loader); ok {
		saved, err := loader.LoadAll()
		if err != nil {
			return nil, err
		}
		for peer, st := range saved {
			snap := st.Clone()
			s.entries[peer] = &sessionEntry{state: &snap}
		}
	}
	return s, nil
}

// entry returns the per-peer entry, creating it on first touch.
func (s *SessionStore) entry(peer domain.PeerID) *sessionEntry {
	s.mu.RLock()
	e := s.entries[peer]
	s.mu.RUnlock()
	if e != nil {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e = s.entries[peer]; e == nil {
		e = &sessionEntry{}
		s.entries[peer] = e
	}
	return e
}

// Load returns a private copy of the peer's last committed state.
func (s *SessionStore) Load(peer domain.PeerID) (domain.RatchetState, bool) {
	s.mu.RLock()
	e := s.entries[peer]
	var st *domain.RatchetState
	if e != nil {
		st = e.state
	}
	s.mu.RUnlock()

	if st == nil {
		return domain.RatchetState{}, false
	}
	return st.Clone(), true
}

// Save commits st under the peer's lock, stamping an incremented version,
// and returns the committed state.
func (s *SessionStore) Save(peer domain.PeerID, st domain.RatchetState) domain.RatchetState {
	e := s.entry(peer)
	e.mu.Lock()
	committed := s.commitLocked(e, st)
	e.mu.Unlock()

	s.persist(peer, committed)
	return committed
}

// Lock acquires exclusive access to the peer's session and returns the
// release. Releasing more than once is harmless; releasing is mandatory.
func (s *SessionStore) Lock(peer domain.PeerID) (release func()) {
	e := s.entry(peer)
	e.mu.Lock()
	var once sync.Once
	return func() { once.Do(e.mu.Unlock) }
}

// UpdateFn mutates one peer's session. cur is nil when no session exists
// yet; otherwise it is a private copy the function may modify freely. The
// returned state is committed only when the error is nil.
type UpdateFn func(cur *domain.RatchetState) (domain.RatchetState, error)

// Update runs fn under the peer's lock: load, apply, save, atomically from
// the caller's perspective. On error nothing is committed and the stored
// state is untouched.
func (s *SessionStore) Update(peer domain.PeerID, fn UpdateFn) (domain.RatchetState, error) {
	_, st, err := UpdateWithResult(s, peer, func(cur *domain.RatchetState) (struct{}, domain.RatchetState, error) {
		next, err := fn(cur)
		return struct{}{}, next, err
	})
	return st, err
}

// UpdateWithResult is Update for functions that also produce a value, so a
// decrypt can advance the ratchet and hand back plaintext in one critical
// section. It is a package-level function because methods cannot introduce
// type parameters.
func UpdateWithResult[T any](s *SessionStore, peer domain.PeerID, fn func(cur *domain.RatchetState) (T, domain.RatchetState, error)) (T, domain.RatchetState, error) {
	e := s.entry(peer)
	e.mu.Lock()

	var cur *domain.RatchetState
	s.mu.RLock()
	if e.state != nil {
		c := e.state.Clone()
		cur = &c
	}
	s.mu.RUnlock()

	result, next, err := fn(cur)
	if err != nil {
		e.mu.Unlock()
		var zero T
		return zero, domain.RatchetState{}, err
	}
	committed := s.commitLocked(e, next)
	e.mu.Unlock()

	s.persist(peer, committed)
	return result, committed, nil
}

// OptimisticUpdate is the lock-free variant: read the version, compute, and
// commit only if the version is still current, retrying up to maxRetries
// times before giving up with ErrUpdateConflict. It never touches the
// per-peer mutex, so it must not be mixed with Update on the same store.
func (s *SessionStore) OptimisticUpdate(peer domain.PeerID, fn UpdateFn, maxRetries int) (domain.RatchetState, error) {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		var cur *domain.RatchetState
		var expected uint64

		s.mu.RLock()
		if e := s.entries[peer]; e != nil && e.state != nil {
			c := e.state.Clone()
			cur = &c
			expected = e.state.Version
		}
		s.mu.RUnlock()

		next, err := fn(cur)
		if err != nil {
			return domain.RatchetState{}, err
		}
		if committed, ok := s.compareAndSave(peer, expected, next); ok {
			s.persist(peer, committed)
			return committed, nil
		}
	}
	return domain.RatchetState{}, ErrUpdateConflict
}

// Peers lists every peer with a committed session, sorted for determinism.
func (s *SessionStore) Peers() []domain.PeerID {
	s.mu.RLock()
	peers := make([]domain.PeerID, 0, len(s.entries))
	for peer, e := range s.entries {
		if e.state != nil {
			peers = append(peers, peer)
		}
	}
	s.mu.RUnlock()

	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })
	return peers
}

// commitLocked stamps the version and swaps in a fresh snapshot. Callers
// hold the entry's mutex.
func (s *SessionStore) commitLocked(e *sessionEntry, next domain.RatchetState) domain.RatchetState {
	next.Version++
	snap := next.Clone()
	s.mu.Lock()
	e.state = &snap
	s.mu.Unlock()
	return next
}

// compareAndSave commits next only if the stored version still matches
// expected. The whole check-and-swap runs under the table mutex.
func (s *SessionStore) compareAndSave(peer domain.PeerID, expected uint64, next domain.RatchetState) (domain.RatchetState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entries[peer]
	if e == nil {
		e = &sessionEntry{}
		s.entries[peer] = e
	}
	var current uint64
	if e.state != nil {
		current = e.state.Version
	}
	if current != expected {
		return domain.RatchetState{}, false
	}
	next.Version++
	snap := next.Clone()
	e.state = &snap
	return next, true
}

// persist flushes a committed state after the critical section. The
// in-memory table stays authoritative, so a failed flush is logged rather
// than surfaced to the protocol operation that already committed.
func (s *SessionStore) persist(peer domain.PeerID, st domain.RatchetState) {
	if s.persister == nil {
		return
	}
	if err := s.persister.Persist(peer, st); err != nil {
		s.log.Error().Err(err).Str("peer", peer.String()).Msg("session flush failed")
	}
}
