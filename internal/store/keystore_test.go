package store_test

import (
	"errors"
	"testing"
	"time"

	"github.com/keohanoi/onchain-messaging-sub000/internal/domain"
	"github.com/keohanoi/onchain-messaging-sub000/internal/store"
)

func testIdentity() domain.Identity {
	return domain.Identity{
		ID:        "deadbeefdeadbeef",
		Key:       domain.KeyPair{Priv: domain.PrivateKey{1}, Pub: domain.PublicKey{2}},
		Spending:  domain.KeyPair{Priv: domain.PrivateKey{3}, Pub: domain.PublicKey{4}},
		Viewing:   domain.KeyPair{Priv: domain.PrivateKey{5}, Pub: domain.PublicKey{6}},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		SignedPrekeys: []domain.SignedPrekeyPair{
			{ID: "spk-1", Pair: domain.KeyPair{Pub: domain.PublicKey{7}}, Signature: []byte{8, 9}},
		},
		OneTimePrekeys: []domain.OneTimePrekeyPair{
			{Index: 0, Pair: domain.KeyPair{Pub: domain.PublicKey{10}}},
		},
	}
}

func TestKeystore_SaveLoad_OK(t *testing.T) {
	home := t.TempDir()
	pass := "correct horse battery"

	var ks domain.Keystore = store.NewKeystore(home)
	if ks.Exists() {
		t.Fatal("Exists before save")
	}

	id := testIdentity()
	if err := ks.Save(pass, id); err != nil {
		t.Fatalf("save identity: %v", err)
	}
	if !ks.Exists() {
		t.Fatal("Exists false after save")
	}

	got, err := ks.Load(pass)
	if err != nil {
		t.Fatalf("load identity: %v", err)
	}
	if got.ID != id.ID || got.Key != id.Key || got.Spending != id.Spending || got.Viewing != id.Viewing {
		t.Fatal("mismatch after load")
	}
	if len(got.SignedPrekeys) != 1 || got.SignedPrekeys[0].ID != "spk-1" {
		t.Fatal("signed prekeys lost")
	}
	if len(got.OneTimePrekeys) != 1 {
		t.Fatal("one-time prekeys lost")
	}
}

func TestKeystore_WrongPassphrase_Fails(t *testing.T) {
	home := t.TempDir()
	ks := store.NewKeystore(home)

	if err := ks.Save("correct", testIdentity()); err != nil {
		t.Fatalf("save identity: %v", err)
	}
	if _, err := ks.Load("wrong"); !errors.Is(err, store.ErrWrongPassphrase) {
		t.Fatalf("want ErrWrongPassphrase, got %v", err)
	}
}
