package ratchet_test

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/keohanoi/onchain-messaging-sub000/internal/protocol/ratchet"
)

// Conversation scripts drive both ends of a session through realistic
// traffic: alternating senders, dropped messages and delayed redelivery.

type scriptAction struct {
	// object is one of sendA, sendB or sendDelayed. The first two send a
	// fresh message; the latter delivers a previously delayed message
	// identified by id.
	object int
	// result is one of deliver, drop or delay. A delayed message is stored
	// under id for a later sendDelayed.
	result int
	id     int
}

const (
	sendA = iota
	sendB
	sendDelayed
	deliver
	drop
	delay
)

func testScript(t *testing.T, script []scriptAction) {
	t.Helper()

	type delayedMessage struct {
		msg   []byte
		res   ratchet.Result
		fromA bool
	}
	delayedMessages := make(map[int]delayedMessage)
	a, b := makeSessionPair(t)

	for i, action := range script {
		switch action.object {
		case sendA, sendB:
			var msg [20]byte
			if _, err := rand.Read(msg[:]); err != nil {
				t.Fatalf("#%d: rand: %v", i, err)
			}

			var res ratchet.Result
			var err error
			if action.object == sendA {
				res, a, err = ratchet.Encrypt(a, msg[:], nil)
			} else {
				res, b, err = ratchet.Encrypt(b, msg[:], nil)
			}
			if err != nil {
				t.Fatalf("#%d: encrypt: %v", i, err)
			}

			switch action.result {
			case deliver:
				var plaintext []byte
				if action.object == sendA {
					plaintext, b, err = ratchet.Decrypt(b, res.Header, res.Ciphertext, res.IV, res.Tag, nil)
				} else {
					plaintext, a, err = ratchet.Decrypt(a, res.Header, res.Ciphertext, res.IV, res.Tag, nil)
				}
				if err != nil {
					t.Fatalf("#%d: decrypt: %v", i, err)
				}
				if !bytes.Equal(plaintext, msg[:]) {
					t.Fatalf("#%d: bad message: got %x, want %x", i, plaintext, msg[:])
				}
			case delay:
				if _, ok := delayedMessages[action.id]; ok {
					t.Fatalf("#%d: already have delayed message with id %d", i, action.id)
				}
				delayedMessages[action.id] = delayedMessage{
					msg:   msg[:],
					res:   res,
					fromA: action.object == sendA,
				}
			case drop:
			}
		case sendDelayed:
			delayed, ok := delayedMessages[action.id]
			if !ok {
				t.Fatalf("#%d: no such delayed message id: %d", i, action.id)
			}

			var plaintext []byte
			var err error
			if delayed.fromA {
				plaintext, b, err = ratchet.Decrypt(b, delayed.res.Header, delayed.res.Ciphertext, delayed.res.IV, delayed.res.Tag, nil)
			} else {
				plaintext, a, err = ratchet.Decrypt(a, delayed.res.Header, delayed.res.Ciphertext, delayed.res.IV, delayed.res.Tag, nil)
			}
			if err != nil {
				t.Fatalf("#%d: delayed decrypt: %v", i, err)
			}
			if !bytes.Equal(plaintext, delayed.msg) {
				t.Fatalf("#%d: bad delayed message: got %x, want %x", i, plaintext, delayed.msg)
			}
		}
	}
}

func TestScript_BackAndForth(t *testing.T) {
	testScript(t, []scriptAction{
		{sendA, deliver, -1},
		{sendB, deliver, -1},
		{sendA, deliver, -1},
		{sendB, deliver, -1},
		{sendA, deliver, -1},
		{sendB, deliver, -1},
	})
}

func TestScript_Reorder(t *testing.T) {
	testScript(t, []scriptAction{
		{sendA, deliver, -1},
		{sendA, delay, 0},
		{sendA, deliver, -1},
		{sendDelayed, deliver, 0},
	})
}

func TestScript_ReorderAcrossReplies(t *testing.T) {
	testScript(t, []scriptAction{
		{sendA, deliver, -1},
		{sendA, delay, 0},
		{sendB, deliver, -1},
		{sendA, deliver, -1},
		{sendB, deliver, -1},
		{sendDelayed, deliver, 0},
	})
}

func TestScript_Drops(t *testing.T) {
	testScript(t, []scriptAction{
		{sendA, drop, -1},
		{sendA, drop, -1},
		{sendA, drop, -1},
		{sendA, drop, -1},
		{sendA, deliver, -1},
		{sendB, deliver, -1},
	})
}

func TestScript_ManyDelayed(t *testing.T) {
	testScript(t, []scriptAction{
		{sendA, delay, 0},
		{sendA, delay, 1},
		{sendA, delay, 2},
		{sendB, deliver, -1},
		{sendA, deliver, -1},
		{sendDelayed, deliver, 2},
		{sendDelayed, deliver, 0},
		{sendB, deliver, -1},
		{sendDelayed, deliver, 1},
		{sendA, deliver, -1},
	})
}

func TestScript_LongOneWayRun(t *testing.T) {
	script := make([]scriptAction, 0, 40)
	for i := 0; i < 40; i++ {
		script = append(script, scriptAction{sendA, deliver, -1})
	}
	testScript(t, script)
}
