package store_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/keohanoi/onchain-messaging-sub000/internal/domain"
	"github.com/keohanoi/onchain-messaging-sub000/internal/store"
)

func newStore(t *testing.T, opts ...store.Option) *store.SessionStore {
	t.Helper()
	s, err := store.NewSessionStore(opts...)
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}
	return s
}

func testState() domain.RatchetState {
	var their domain.PublicKey
	their[0] = 0x02
	their[1] = 0x77
	opkIndex := uint32(4)
	return domain.RatchetState{
		RootKey:      [32]byte{1},
		SendChainKey: [32]byte{2},
		RecvChainKey: [32]byte{3},
		DHPair: domain.KeyPair{
			Priv: domain.PrivateKey{4},
			Pub:  domain.PublicKey{2, 5},
		},
		TheirDHPub: &their,
		SendCount:  6,
		RecvCount:  7,
		Skipped: []domain.SkippedKey{
			{DHPub: their, MsgIndex: 3, Key: [32]byte{8}},
		},
		PendingIntro: &domain.PrekeyIntro{
			IdentityKey:        domain.PublicKey{2, 9},
			EphemeralKey:       domain.PublicKey{3, 10},
			SignedPrekeyID:     "spk-test",
			OneTimePrekeyIndex: &opkIndex,
			PQCiphertext:       []byte{11, 12},
		},
	}
}

func TestSessionStore_LoadAbsent(t *testing.T) {
	s := newStore(t)
	if _, ok := s.Load("nobody"); ok {
		t.Fatal("Load reported a session that was never saved")
	}
}

func TestSessionStore_SaveLoad(t *testing.T) {
	s := newStore(t)
	const peer = domain.PeerID("abc123")

	committed := s.Save(peer, testState())
	if committed.Version != 1 {
		t.Fatalf("first save stamped version %d, want 1", committed.Version)
	}

	got, ok := s.Load(peer)
	if !ok {
		t.Fatal("Load missed a saved session")
	}
	if got.Version != 1 || got.SendCount != 6 || got.RecvCount != 7 {
		t.Fatalf("loaded state mismatch: %+v", got)
	}

	// Loads hand out private copies: mutating one must not leak back.
	got.RootKey[0] = 0xff
	got.Skipped[0].MsgIndex = 99
	*got.TheirDHPub = domain.PublicKey{0xee}

	again, _ := s.Load(peer)
	if again.RootKey[0] != 1 || again.Skipped[0].MsgIndex != 3 || again.TheirDHPub[0] != 0x02 {
		t.Fatal("stored state aliased a loaded copy")
	}

	if v := s.Save(peer, again).Version; v != 2 {
		t.Fatalf("second save stamped version %d, want 2", v)
	}
}

func TestSessionStore_Update_InitIfAbsent(t *testing.T) {
	s := newStore(t)
	const peer = domain.PeerID("fresh")

	st, err := s.Update(peer, func(cur *domain.RatchetState) (domain.RatchetState, error) {
		if cur != nil {
			t.Fatal("expected nil state for unknown peer")
		}
		return testState(), nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if st.Version != 1 {
		t.Fatalf("version %d, want 1", st.Version)
	}

	_, err = s.Update(peer, func(cur *domain.RatchetState) (domain.RatchetState, error) {
		if cur == nil {
			t.Fatal("existing session not passed to update")
		}
		cur.SendCount++
		return *cur, nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := s.Load(peer)
	if got.SendCount != 7 || got.Version != 2 {
		t.Fatalf("got count=%d version=%d", got.SendCount, got.Version)
	}
}

func TestSessionStore_Update_ErrorCommitsNothing(t *testing.T) {
	s := newStore(t)
	const peer = domain.PeerID("p")
	s.Save(peer, testState())

	boom := errors.New("boom")
	_, err := s.Update(peer, func(cur *domain.RatchetState) (domain.RatchetState, error) {
		cur.SendCount = 9999
		return *cur, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want fn error, got %v", err)
	}

	got, _ := s.Load(peer)
	if got.SendCount != 6 || got.Version != 1 {
		t.Fatal("failed update left a partial commit behind")
	}
}

func TestSessionStore_UpdateWithResult(t *testing.T) {
	s := newStore(t)
	const peer = domain.PeerID("p")
	s.Save(peer, testState())

	plaintext, st, err := store.UpdateWithResult(s, peer, func(cur *domain.RatchetState) ([]byte, domain.RatchetState, error) {
		cur.RecvCount++
		return []byte("decrypted"), *cur, nil
	})
	if err != nil {
		t.Fatalf("UpdateWithResult: %v", err)
	}
	if string(plaintext) != "decrypted" {
		t.Fatalf("result %q", plaintext)
	}
	if st.RecvCount != 8 || st.Version != 2 {
		t.Fatalf("state not committed: %+v", st)
	}
}

func TestSessionStore_ConcurrentUpdates_Serialized(t *testing.T) {
	s := newStore(t)
	const peer = domain.PeerID("contended")
	const n = 16

	var inFlight atomic.Bool
	var overlaps atomic.Int32

	var eg errgroup.Group
	for i := 0; i < n; i++ {
		eg.Go(func() error {
			_, err := s.Update(peer, func(cur *domain.RatchetState) (domain.RatchetState, error) {
				if !inFlight.CompareAndSwap(false, true) {
					overlaps.Add(1)
				}
				time.Sleep(time.Millisecond)
				inFlight.Store(false)

				var st domain.RatchetState
				if cur != nil {
					st = *cur
				}
				st.SendCount++
				return st, nil
			})
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatalf("concurrent update: %v", err)
	}
	if o := overlaps.Load(); o != 0 {
		t.Fatalf("%d overlapping critical sections", o)
	}

	got, _ := s.Load(peer)
	if got.SendCount != n {
		t.Fatalf("lost updates: count %d, want %d", got.SendCount, n)
	}
	if got.Version != n {
		t.Fatalf("version %d, want %d", got.Version, n)
	}
}

func TestSessionStore_DistinctPeersIndependent(t *testing.T) {
	// An update on peer B must complete while peer A's update is still
	// holding its lock; a single global mutex would deadlock here.
	s := newStore(t)
	aEntered := make(chan struct{})
	bDone := make(chan struct{})

	var eg errgroup.Group
	eg.Go(func() error {
		_, err := s.Update("peer-a", func(cur *domain.RatchetState) (domain.RatchetState, error) {
			close(aEntered)
			select {
			case <-bDone:
			case <-time.After(5 * time.Second):
				return domain.RatchetState{}, errors.New("peer-b blocked behind peer-a")
			}
			return testState(), nil
		})
		return err
	})
	eg.Go(func() error {
		<-aEntered
		_, err := s.Update("peer-b", func(cur *domain.RatchetState) (domain.RatchetState, error) {
			return testState(), nil
		})
		close(bDone)
		return err
	})
	if err := eg.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestSessionStore_LockRelease(t *testing.T) {
	s := newStore(t)
	const peer = domain.PeerID("p")

	release := s.Lock(peer)
	done := make(chan struct{})
	go func() {
		second := s.Lock(peer)
		second()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second lock acquired while first held")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	release() // double release is a no-op

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("lock never released")
	}
}

func TestSessionStore_OptimisticUpdate(t *testing.T) {
	s := newStore(t)
	const peer = domain.PeerID("p")
	s.Save(peer, testState())

	st, err := s.OptimisticUpdate(peer, func(cur *domain.RatchetState) (domain.RatchetState, error) {
		cur.SendCount++
		return *cur, nil
	}, 3)
	if err != nil {
		t.Fatalf("OptimisticUpdate: %v", err)
	}
	if st.SendCount != 7 || st.Version != 2 {
		t.Fatalf("committed %+v", st)
	}
}

func TestSessionStore_OptimisticUpdate_RetriesThenWins(t *testing.T) {
	s := newStore(t)
	const peer = domain.PeerID("p")
	s.Save(peer, testState())

	interfered := false
	st, err := s.OptimisticUpdate(peer, func(cur *domain.RatchetState) (domain.RatchetState, error) {
		if !interfered {
			interfered = true
			// A competing writer lands between our read and our commit.
			s.Save(peer, *cur)
		}
		cur.SendCount++
		return *cur, nil
	}, 3)
	if err != nil {
		t.Fatalf("OptimisticUpdate: %v", err)
	}
	if st.SendCount != 7 {
		t.Fatalf("count %d after retry, want 7", st.SendCount)
	}
}

func TestSessionStore_OptimisticUpdate_Conflict(t *testing.T) {
	s := newStore(t)
	const peer = domain.PeerID("p")
	s.Save(peer, testState())

	_, err := s.OptimisticUpdate(peer, func(cur *domain.RatchetState) (domain.RatchetState, error) {
		// Interfere on every attempt so the version check never passes.
		s.Save(peer, *cur)
		cur.SendCount++
		return *cur, nil
	}, 2)
	if !errors.Is(err, store.ErrUpdateConflict) {
		t.Fatalf("want ErrUpdateConflict, got %v", err)
	}
}

func TestSessionStore_Peers(t *testing.T) {
	s := newStore(t)
	s.Save("zz", testState())
	s.Save("aa", testState())

	peers := s.Peers()
	if len(peers) != 2 || peers[0] != "aa" || peers[1] != "zz" {
		t.Fatalf("peers %v", peers)
	}
}
