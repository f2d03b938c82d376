package x3dh_test

import (
	"testing"

	"github.com/keohanoi/onchain-messaging-sub000/internal/crypto"
	"github.com/keohanoi/onchain-messaging-sub000/internal/domain"
	"github.com/keohanoi/onchain-messaging-sub000/internal/protocol/x3dh"
)

// responderKeys is the private-side material a test responder holds.
type responderKeys struct {
	identity     domain.KeyPair
	signedPrekey domain.KeyPair
	oneTime      domain.KeyPair
	pq           domain.PQKeyPair
}

// makeResponder generates responder key material and the bundle it would
// publish. withOPK and withPQ control the optional bundle entries.
func makeResponder(t *testing.T, withOPK, withPQ bool) (responderKeys, domain.KeyBundle) {
	t.Helper()

	var keys responderKeys
	var err error
	if keys.identity, err = crypto.GenerateKeyPair(); err != nil {
		t.Fatalf("GenerateKeyPair (identity): %v", err)
	}
	if keys.signedPrekey, err = crypto.GenerateKeyPair(); err != nil {
		t.Fatalf("GenerateKeyPair (spk): %v", err)
	}

	bundle := domain.KeyBundle{
		Peer:                  crypto.PeerIDFromKey(keys.identity.Pub),
		IdentityKey:           keys.identity.Pub,
		SignedPrekeyID:        "spk-test",
		SignedPrekey:          keys.signedPrekey.Pub,
		SignedPrekeySignature: crypto.Sign(keys.identity.Priv, keys.signedPrekey.Pub.Slice()),
	}

	if withOPK {
		if keys.oneTime, err = crypto.GenerateKeyPair(); err != nil {
			t.Fatalf("GenerateKeyPair (opk): %v", err)
		}
		bundle.OneTimePrekeys = []domain.OneTimePrekeyPublic{
			{Index: 7, Pub: keys.oneTime.Pub},
		}
	}
	if withPQ {
		if keys.pq, err = crypto.GenerateKEMKeyPair(); err != nil {
			t.Fatalf("GenerateKEMKeyPair: %v", err)
		}
		bundle.PQKey = keys.pq.Pub
	}
	return keys, bundle
}

func makePair(t *testing.T) domain.KeyPair {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	return kp
}

func TestAgreement_NoOneTimePrekey(t *testing.T) {
	// Alice initiates against Bob's bundle without one-time prekeys.
	alice := makePair(t)
	bob, bundle := makeResponder(t, false, false)

	got, err := x3dh.Initiator(alice, bundle, nil)
	if err != nil {
		t.Fatalf("Initiator: %v", err)
	}
	if got.OneTimeIndex != nil {
		t.Fatalf("no OPK in bundle but index %d consumed", *got.OneTimeIndex)
	}
	if got.PQCiphertext != nil {
		t.Fatal("no PQ key in bundle but ciphertext produced")
	}

	// Bob recomputes from the intro Alice would send.
	secret, err := x3dh.Responder(x3dh.ResponderParams{
		TheirIdentityKey:  alice.Pub,
		TheirEphemeralKey: got.Ephemeral.Pub,
		Identity:          bob.identity,
		SignedPrekey:      bob.signedPrekey,
	})
	if err != nil {
		t.Fatalf("Responder: %v", err)
	}
	if secret != got.SharedSecret {
		t.Fatal("shared secrets differ (no OPK)")
	}
}

func TestAgreement_WithOneTimePrekey(t *testing.T) {
	alice := makePair(t)
	bob, bundle := makeResponder(t, true, false)

	got, err := x3dh.Initiator(alice, bundle, nil)
	if err != nil {
		t.Fatalf("Initiator: %v", err)
	}
	if got.OneTimeIndex == nil || *got.OneTimeIndex != 7 {
		t.Fatalf("want one-time prekey index 7, got %v", got.OneTimeIndex)
	}

	secret, err := x3dh.Responder(x3dh.ResponderParams{
		TheirIdentityKey:  alice.Pub,
		TheirEphemeralKey: got.Ephemeral.Pub,
		Identity:          bob.identity,
		SignedPrekey:      bob.signedPrekey,
		OneTimePrekey:     &bob.oneTime,
	})
	if err != nil {
		t.Fatalf("Responder: %v", err)
	}
	if secret != got.SharedSecret {
		t.Fatal("shared secrets differ (with OPK)")
	}

	// Omitting the OPK on the responder side must diverge, not error.
	other, err := x3dh.Responder(x3dh.ResponderParams{
		TheirIdentityKey:  alice.Pub,
		TheirEphemeralKey: got.Ephemeral.Pub,
		Identity:          bob.identity,
		SignedPrekey:      bob.signedPrekey,
	})
	if err != nil {
		t.Fatalf("Responder (no OPK): %v", err)
	}
	if other == got.SharedSecret {
		t.Fatal("secret ignored the one-time prekey term")
	}
}

func TestAgreement_WithPQ(t *testing.T) {
	alice := makePair(t)
	bob, bundle := makeResponder(t, true, true)

	got, err := x3dh.Initiator(alice, bundle, crypto.Encapsulate)
	if err != nil {
		t.Fatalf("Initiator: %v", err)
	}
	if len(got.PQCiphertext) == 0 {
		t.Fatal("PQ bundle produced no KEM ciphertext")
	}

	pqSecret, err := crypto.Decapsulate(bob.pq.Priv, got.PQCiphertext)
	if err != nil {
		t.Fatalf("Decapsulate: %v", err)
	}
	secret, err := x3dh.Responder(x3dh.ResponderParams{
		TheirIdentityKey:  alice.Pub,
		TheirEphemeralKey: got.Ephemeral.Pub,
		Identity:          bob.identity,
		SignedPrekey:      bob.signedPrekey,
		OneTimePrekey:     &bob.oneTime,
		PQSharedSecret:    pqSecret,
	})
	if err != nil {
		t.Fatalf("Responder: %v", err)
	}
	if secret != got.SharedSecret {
		t.Fatal("shared secrets differ (PQ)")
	}

	// The same agreement without the KEM secret mixed in must not match.
	classical, err := x3dh.Responder(x3dh.ResponderParams{
		TheirIdentityKey:  alice.Pub,
		TheirEphemeralKey: got.Ephemeral.Pub,
		Identity:          bob.identity,
		SignedPrekey:      bob.signedPrekey,
		OneTimePrekey:     &bob.oneTime,
	})
	if err != nil {
		t.Fatalf("Responder (classical): %v", err)
	}
	if classical == got.SharedSecret {
		t.Fatal("PQ step did not change the secret")
	}
}

func TestInitiator_BadSignature(t *testing.T) {
	alice := makePair(t)
	_, bundle := makeResponder(t, false, false)

	// Signature by the wrong key.
	mallory := makePair(t)
	bundle.SignedPrekeySignature = crypto.Sign(mallory.Priv, bundle.SignedPrekey.Slice())
	if _, err := x3dh.Initiator(alice, bundle, nil); err != x3dh.ErrSignatureInvalid {
		t.Fatalf("want ErrSignatureInvalid, got %v", err)
	}

	// Missing signature.
	bundle.SignedPrekeySignature = nil
	if _, err := x3dh.Initiator(alice, bundle, nil); err != x3dh.ErrSignatureInvalid {
		t.Fatalf("want ErrSignatureInvalid for missing signature, got %v", err)
	}
}

func TestInitiator_InvalidBundleKey(t *testing.T) {
	alice := makePair(t)
	_, bundle := makeResponder(t, false, false)

	var garbage domain.PublicKey
	garbage[0] = 0xff
	bundle.IdentityKey = garbage

	_, err := x3dh.Initiator(alice, bundle, nil)
	if err == nil {
		t.Fatal("expected error for off-curve identity key")
	}
	if err == x3dh.ErrSignatureInvalid {
		t.Fatal("key validation must run before signature verification")
	}
}
