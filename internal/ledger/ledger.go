package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/keohanoi/onchain-messaging-sub000/internal/domain"
)

// ErrDuplicateNullifier reports an event whose nullifier was already
// recorded. Uniqueness enforcement lives here, on the channel, not in the
// protocol layers.
var ErrDuplicateNullifier = errors.New("ledger: duplicate nullifier")

// Memory is an in-process append-only event log.
type Memory struct {
	mu     sync.RWMutex
	events []domain.BroadcastEvent
	seen   map[[32]byte]struct{}
}

var _ domain.Ledger = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{seen: make(map[[32]byte]struct{})}
}

// Append records the event, assigning the next sequence number (starting at
// 1) and stamping SentAt when unset.
func (m *Memory) Append(_ context.Context, ev domain.BroadcastEvent) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.seen[ev.Nullifier]; dup {
		return 0, fmt.Errorf("%w: %x", ErrDuplicateNullifier, ev.Nullifier[:8])
	}
	ev.Seq = uint64(len(m.events)) + 1
	if ev.SentAt.IsZero() {
		ev.SentAt = time.Now().UTC()
	}
	m.events = append(m.events, ev)
	m.seen[ev.Nullifier] = struct{}{}
	return ev.Seq, nil
}

// Events returns every event with Seq > from, oldest first.
func (m *Memory) Events(_ context.Context, from uint64) ([]domain.BroadcastEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if from >= uint64(len(m.events)) {
		return nil, nil
	}
	return append([]domain.BroadcastEvent(nil), m.events[from:]...), nil
}
