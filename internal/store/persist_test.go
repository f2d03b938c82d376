package store_test

import (
	"errors"
	"testing"

	"github.com/keohanoi/onchain-messaging-sub000/internal/domain"
	"github.com/keohanoi/onchain-messaging-sub000/internal/store"
)

func TestFilePersister_RoundTripThroughRestart(t *testing.T) {
	dir := t.TempDir()
	pass := "session pass"

	fp, err := store.NewFilePersister(dir, pass)
	if err != nil {
		t.Fatalf("NewFilePersister: %v", err)
	}
	s := newStore(t, store.WithPersister(fp))

	const peer = domain.PeerID("cafe0123cafe0123")
	committed := s.Save(peer, testState())

	// A fresh persister over the same directory seeds a fresh store.
	fp2, err := store.NewFilePersister(dir, pass)
	if err != nil {
		t.Fatalf("NewFilePersister: %v", err)
	}
	restored := newStore(t, store.WithPersister(fp2))

	got, ok := restored.Load(peer)
	if !ok {
		t.Fatal("session lost across restart")
	}
	if got.Version != committed.Version {
		t.Fatalf("version %d, want %d", got.Version, committed.Version)
	}
	if got.RootKey != committed.RootKey ||
		got.SendChainKey != committed.SendChainKey ||
		got.RecvChainKey != committed.RecvChainKey ||
		got.DHPair != committed.DHPair {
		t.Fatal("key material did not survive the round trip")
	}
	if got.TheirDHPub == nil || *got.TheirDHPub != *committed.TheirDHPub {
		t.Fatal("remote ratchet key did not survive the round trip")
	}
	if len(got.Skipped) != 1 || got.Skipped[0] != committed.Skipped[0] {
		t.Fatal("skipped keys did not survive the round trip")
	}
	if got.SendCount != committed.SendCount || got.RecvCount != committed.RecvCount {
		t.Fatal("counters did not survive the round trip")
	}

	want := committed.PendingIntro
	if got.PendingIntro == nil ||
		got.PendingIntro.IdentityKey != want.IdentityKey ||
		got.PendingIntro.EphemeralKey != want.EphemeralKey ||
		got.PendingIntro.SignedPrekeyID != want.SignedPrekeyID ||
		got.PendingIntro.OneTimePrekeyIndex == nil ||
		*got.PendingIntro.OneTimePrekeyIndex != *want.OneTimePrekeyIndex ||
		string(got.PendingIntro.PQCiphertext) != string(want.PQCiphertext) {
		t.Fatalf("pending intro did not survive the round trip: %+v", got.PendingIntro)
	}

	// A state with no pending intro restores with none.
	plain, _ := s.Load(peer)
	plain.PendingIntro = nil
	s.Save(peer, plain)
	fp3, err := store.NewFilePersister(dir, pass)
	if err != nil {
		t.Fatalf("NewFilePersister: %v", err)
	}
	saved, err := fp3.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if saved[peer].PendingIntro != nil {
		t.Fatal("absent pending intro resurrected by the codec")
	}
}

func TestFilePersister_SkipsStaleVersions(t *testing.T) {
	dir := t.TempDir()
	fp, err := store.NewFilePersister(dir, "pass")
	if err != nil {
		t.Fatalf("NewFilePersister: %v", err)
	}

	const peer = domain.PeerID("p")
	newer := testState()
	newer.Version = 5
	newer.SendCount = 50
	if err := fp.Persist(peer, newer); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	stale := testState()
	stale.Version = 3
	stale.SendCount = 30
	if err := fp.Persist(peer, stale); err != nil {
		t.Fatalf("Persist (stale): %v", err)
	}

	saved, err := fp.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if got := saved[peer]; got.Version != 5 || got.SendCount != 50 {
		t.Fatalf("stale flush overwrote newer state: %+v", got)
	}
}

func TestFilePersister_WrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	fp, err := store.NewFilePersister(dir, "right")
	if err != nil {
		t.Fatalf("NewFilePersister: %v", err)
	}
	st := testState()
	st.Version = 1
	if err := fp.Persist("p", st); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	wrong, err := store.NewFilePersister(dir, "wrong")
	if err != nil {
		t.Fatalf("NewFilePersister: %v", err)
	}
	if _, err := wrong.LoadAll(); !errors.Is(err, store.ErrWrongPassphrase) {
		t.Fatalf("want ErrWrongPassphrase, got %v", err)
	}
}
