package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/keohanoi/onchain-messaging-sub000/internal/domain"
	"github.com/keohanoi/onchain-messaging-sub000/internal/store"
)

// File is a ledger backed by a single JSON file. Every operation re-reads
// the file, so separate processes pointed at the same path observe each
// other's events; it stands in for a real broadcast channel during local
// use.
type File struct {
	path string
	mu   sync.Mutex
}

var _ domain.Ledger = (*File)(nil)

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Append(_ context.Context, ev domain.BroadcastEvent) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var events []domain.BroadcastEvent
	if err := store.ReadJSON(f.path, &events); err != nil {
		return 0, fmt.Errorf("read ledger: %w", err)
	}
	for _, prev := range events {
		if prev.Nullifier == ev.Nullifier {
			return 0, fmt.Errorf("%w: %x", ErrDuplicateNullifier, ev.Nullifier[:8])
		}
	}
	ev.Seq = uint64(len(events)) + 1
	if ev.SentAt.IsZero() {
		ev.SentAt = time.Now().UTC()
	}
	events = append(events, ev)
	if err := store.WriteJSON(f.path, events, 0o644); err != nil {
		return 0, fmt.Errorf("write ledger: %w", err)
	}
	return ev.Seq, nil
}

func (f *File) Events(_ context.Context, from uint64) ([]domain.BroadcastEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var events []domain.BroadcastEvent
	if err := store.ReadJSON(f.path, &events); err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if from >= uint64(len(events)) {
		return nil, nil
	}
	return events[from:], nil
}
