package messaging

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/keohanoi/onchain-messaging-sub000/internal/crypto"
	"github.com/keohanoi/onchain-messaging-sub000/internal/domain"
	"github.com/keohanoi/onchain-messaging-sub000/internal/protocol/ratchet"
	"github.com/keohanoi/onchain-messaging-sub000/internal/protocol/stealth"
	"github.com/keohanoi/onchain-messaging-sub000/internal/protocol/x3dh"
	"github.com/keohanoi/onchain-messaging-sub000/internal/store"
)

// nullifierDomain separates the broadcast nullifier from every other hash in
// the system.
const nullifierDomain = "omsg/nullifier/v1"

// ErrUnknownSender reports an event addressed to us that no known session
// and no intro can decrypt.
var ErrUnknownSender = errors.New("messaging: cannot attribute event to a peer")

// Service sends and receives messages over the broadcast ledger.
//
// High-level flow:
//   - Send: look up the recipient's bundle, derive a fresh one-time stealth
//     address, establish a session via key agreement if none exists, then
//     encrypt with the ratchet and append to the ledger. Messages carry the
//     agreement intro until the peer is first heard from.
//   - Scan: walk ledger events past a cursor, discard events whose view tag
//     or stealth address is not ours, attribute the rest to a peer
//     (bootstrapping a responder session from the intro when present),
//     decrypt, and hand back the payloads.
type Service struct {
	keystore domain.Keystore
	registry domain.Registry
	ledger   domain.Ledger
	sessions *store.SessionStore
	log      zerolog.Logger
}

// New constructs a messaging service over the given collaborators.
func New(
	keystore domain.Keystore,
	registry domain.Registry,
	ledger domain.Ledger,
	sessions *store.SessionStore,
	log zerolog.Logger,
) *Service {
	return &Service{
		keystore: keystore,
		registry: registry,
		ledger:   ledger,
		sessions: sessions,
		log:      log,
	}
}

// Send encrypts body for the peer and appends the resulting event to the
// ledger, returning its sequence number.
//
// The session state is committed before the append: a crash in between
// loses one message, never the ratchet position. The recipient's skipped-key
// cache absorbs the resulting gap.
func (s *Service) Send(
	ctx context.Context,
	passphrase string,
	to domain.PeerID,
	kind domain.MessageKind,
	group domain.GroupID,
	body []byte,
) (uint64, error) {
	id, err := s.keystore.Load(passphrase)
	if err != nil {
		return 0, err
	}

	payload := domain.MessagePayload{Kind: kind, Sender: id.ID, Body: body, Group: group}
	if err := payload.Validate(); err != nil {
		return 0, fmt.Errorf("payload: %w", err)
	}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	bundle, err := s.registry.Lookup(ctx, to)
	if err != nil {
		return 0, err
	}

	// Fresh one-time address per message; the ledger never sees the same
	// recipient string twice.
	deriv, err := stealth.Derive(bundle.ViewingKey, bundle.SpendingKey)
	if err != nil {
		return 0, err
	}

	env, _, err := store.UpdateWithResult(s.sessions, to,
		func(cur *domain.RatchetState) (domain.Envelope, domain.RatchetState, error) {
			var st domain.RatchetState
			if cur == nil {
				// First message to this peer: run the initiator side of
				// the agreement. The intro lives in the state and repeats
				// on every message until the peer is heard from, so the
				// recipient can mirror the agreement even if earlier
				// broadcasts never made it out.
				var encap x3dh.Encapsulator
				if len(bundle.PQKey) > 0 {
					encap = crypto.Encapsulate
				}
				res, err := x3dh.Initiator(id.Key, bundle, encap)
				if err != nil {
					return domain.Envelope{}, domain.RatchetState{}, err
				}
				st, err = ratchet.Init(res.SharedSecret, res.Ephemeral, true)
				if err != nil {
					return domain.Envelope{}, domain.RatchetState{}, err
				}
				st.PendingIntro = &domain.PrekeyIntro{
					IdentityKey:        id.Key.Pub,
					EphemeralKey:       res.Ephemeral.Pub,
					SignedPrekeyID:     bundle.SignedPrekeyID,
					OneTimePrekeyIndex: res.OneTimeIndex,
					PQCiphertext:       res.PQCiphertext,
				}
			} else {
				st = *cur
			}

			// The stealth address rides as AAD, binding the ciphertext to
			// the one event it was broadcast under.
			res, next, err := ratchet.Encrypt(st, plaintext, []byte(deriv.Address))
			if err != nil {
				return domain.Envelope{}, domain.RatchetState{}, err
			}
			return domain.Envelope{
				Intro:      st.PendingIntro,
				Header:     res.Header,
				Ciphertext: res.Ciphertext,
				IV:         res.IV,
				Tag:        res.Tag,
			}, next, nil
		})
	if err != nil {
		return 0, err
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return 0, err
	}
	seq, err := s.ledger.Append(ctx, domain.BroadcastEvent{
		StealthRecipient: deriv.Address,
		EphemeralKey:     deriv.EphemeralKey,
		ViewTag:          deriv.ViewTag,
		Payload:          raw,
		Nullifier:        nullifier(deriv.EphemeralKey, env.Ciphertext),
	})
	if err != nil {
		return 0, err
	}

	s.log.Debug().
		Str("to", to.String()).
		Str("kind", kind.String()).
		Uint64("seq", seq).
		Bool("intro", env.Intro != nil).
		Msg("message broadcast")
	return seq, nil
}

// Scan walks every ledger event past the cursor and returns the messages
// addressed to us, plus the new cursor (the last sequence number examined).
//
// The channel is public, so undecryptable events addressed to us are logged
// and skipped rather than failing the whole scan.
func (s *Service) Scan(
	ctx context.Context,
	passphrase string,
	after uint64,
) ([]domain.DecryptedMessage, uint64, error) {
	id, err := s.keystore.Load(passphrase)
	if err != nil {
		return nil, after, err
	}

	events, err := s.ledger.Events(ctx, after)
	if err != nil {
		return nil, after, err
	}

	verdicts := s.filterEvents(id, events)

	cursor := after
	var msgs []domain.DecryptedMessage
	identityDirty := false

	for i, ev := range events {
		cursor = ev.Seq

		v := verdicts[i]
		if v.err != nil {
			s.log.Debug().Uint64("seq", ev.Seq).Err(v.err).Msg("event has malformed ephemeral key")
			continue
		}
		if !v.mine {
			continue
		}

		msg, consumedOPK, err := s.receive(&id, ev, v.addr)
		if err != nil {
			s.log.Warn().Uint64("seq", ev.Seq).Err(err).Msg("event addressed to us failed to decrypt")
			continue
		}
		identityDirty = identityDirty || consumedOPK
		msgs = append(msgs, msg)
	}

	if identityDirty {
		// A one-time prekey was consumed by a bootstrap; remove it from the
		// keystore so it can never satisfy another agreement.
		if err := s.keystore.Save(passphrase, id); err != nil {
			return msgs, cursor, fmt.Errorf("persist consumed one-time prekey: %w", err)
		}
	}
	return msgs, cursor, nil
}

// scanVerdict is the stealth filter outcome for one event: addressed to us
// (with the derived address for the AAD), not ours, or malformed.
type scanVerdict struct {
	mine bool
	addr string
	err  error
}

// filterEvents runs the stealth checks for a batch of events across the
// available cores. Stage one is one ECDH plus one HMAC per event and the
// view tag discards ~255/256 of foreign traffic; the full address is derived
// and compared only on a tag match. The checks are pure, so only verdicts
// leave the workers and decryption stays sequential in ledger order.
func (s *Service) filterEvents(id domain.Identity, events []domain.BroadcastEvent) []scanVerdict {
	verdicts := make([]scanVerdict, len(events))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, ev := range events {
		i, ev := i, ev
		g.Go(func() error {
			secret, err := stealth.SharedSecret(id.Viewing.Priv, ev.EphemeralKey)
			if err != nil {
				verdicts[i].err = err
				return nil
			}
			if stealth.ViewTag(secret) != ev.ViewTag {
				return nil
			}
			addr, err := stealth.AddressFromSecret(secret, id.Spending.Pub)
			if err != nil || addr != ev.StealthRecipient {
				return nil
			}
			verdicts[i] = scanVerdict{mine: true, addr: addr}
			return nil
		})
	}
	// Workers report per event through verdicts and never fail the group.
	_ = g.Wait()
	return verdicts
}

// receive decodes one event addressed to us, attributes it to a peer,
// decrypts it and validates the payload. The returned bool reports whether
// a one-time prekey was consumed from id.
func (s *Service) receive(id *domain.Identity, ev domain.BroadcastEvent, addr string) (domain.DecryptedMessage, bool, error) {
	var env domain.Envelope
	if err := json.Unmarshal(ev.Payload, &env); err != nil {
		return domain.DecryptedMessage{}, false, fmt.Errorf("envelope: %w", err)
	}
	aad := []byte(addr)

	var (
		peer        domain.PeerID
		plaintext   []byte
		consumedOPK bool
		err         error
	)
	if env.Intro != nil {
		peer = crypto.PeerIDFromKey(env.Intro.IdentityKey)
		plaintext, consumedOPK, err = s.decryptWithIntro(id, peer, env, aad)
	} else {
		peer, plaintext, err = s.decryptExisting(env, aad)
	}
	if err != nil {
		return domain.DecryptedMessage{}, false, err
	}

	var payload domain.MessagePayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return domain.DecryptedMessage{}, false, fmt.Errorf("payload: %w", err)
	}
	if err := payload.Validate(); err != nil {
		return domain.DecryptedMessage{}, false, fmt.Errorf("payload: %w", err)
	}
	if payload.Sender != peer {
		return domain.DecryptedMessage{}, false,
			fmt.Errorf("payload claims sender %s but session belongs to %s", payload.Sender, peer)
	}

	return domain.DecryptedMessage{
		From:   peer,
		Kind:   payload.Kind,
		Group:  payload.Group,
		Body:   payload.Body,
		Seq:    ev.Seq,
		SentAt: ev.SentAt,
	}, consumedOPK, nil
}

// decryptWithIntro handles envelopes carrying a session intro.
//
// The existing session, if any, is tried first: intros repeat on every
// message until the initiator hears back, and a repeat must decrypt under
// the established state without touching prekeys. The bootstrap runs when
// there is no session or the existing one rejects the message, unless the
// failing intro is the very one the session was built from, in which case
// the message is a reprocessed old event, not a re-initiation.
func (s *Service) decryptWithIntro(id *domain.Identity, peer domain.PeerID, env domain.Envelope, aad []byte) ([]byte, bool, error) {
	intro := env.Intro

	plaintext, err := s.tryDecrypt(peer, env, aad)
	if err == nil {
		return plaintext, false, nil
	}
	if cur, ok := s.sessions.Load(peer); ok && cur.TheirDHPub != nil && *cur.TheirDHPub == intro.EphemeralKey {
		return nil, false, err
	}

	spk, ok := id.SignedPrekeyByID(intro.SignedPrekeyID)
	if !ok {
		return nil, false, fmt.Errorf("signed prekey %q no longer retained", intro.SignedPrekeyID)
	}

	// Locate, but do not yet consume, the one-time prekey: a forged intro
	// naming a real index must not burn it.
	var opk *domain.KeyPair
	if intro.OneTimePrekeyIndex != nil {
		for _, cand := range id.OneTimePrekeys {
			if cand.Index == *intro.OneTimePrekeyIndex {
				pair := cand.Pair
				opk = &pair
				break
			}
		}
		if opk == nil {
			return nil, false, fmt.Errorf("one-time prekey %d not available", *intro.OneTimePrekeyIndex)
		}
	}

	var pqSecret []byte
	if len(intro.PQCiphertext) > 0 {
		if id.PQ == nil {
			return nil, false, errors.New("intro carries a KEM ciphertext but no KEM key exists")
		}
		var err error
		pqSecret, err = crypto.Decapsulate(id.PQ.Priv, intro.PQCiphertext)
		if err != nil {
			return nil, false, fmt.Errorf("pq decapsulate: %w", err)
		}
	}

	plaintext, _, err = store.UpdateWithResult(s.sessions, peer,
		func(cur *domain.RatchetState) ([]byte, domain.RatchetState, error) {
			secret, err := x3dh.Responder(x3dh.ResponderParams{
				TheirIdentityKey:  intro.IdentityKey,
				TheirEphemeralKey: intro.EphemeralKey,
				Identity:          id.Key,
				SignedPrekey:      spk.Pair,
				OneTimePrekey:     opk,
				PQSharedSecret:    pqSecret,
			})
			if err != nil {
				return nil, domain.RatchetState{}, err
			}
			fresh, err := crypto.GenerateKeyPair()
			if err != nil {
				return nil, domain.RatchetState{}, err
			}
			st, err := ratchet.Init(secret, fresh, false)
			if err != nil {
				return nil, domain.RatchetState{}, err
			}
			return ratchet.Decrypt(st, env.Header, env.Ciphertext, env.IV, env.Tag, aad)
		})
	if err != nil {
		return nil, false, err
	}

	if opk != nil {
		id.TakeOneTimePrekey(*intro.OneTimePrekeyIndex)
		return plaintext, true, nil
	}
	return plaintext, false, nil
}

// decryptExisting attributes an intro-less envelope to one of our sessions.
// The session already pinned to the header's ratchet key is authoritative:
// its verdict, including a replay rejection, is returned as-is. Otherwise
// every session is probed; a wrong one fails the tag check with no side
// effects, so probing is safe.
func (s *Service) decryptExisting(env domain.Envelope, aad []byte) (domain.PeerID, []byte, error) {
	peers := s.sessions.Peers()

	for _, peer := range peers {
		st, ok := s.sessions.Load(peer)
		if !ok || st.TheirDHPub == nil || *st.TheirDHPub != env.Header.DHPub {
			continue
		}
		plaintext, err := s.tryDecrypt(peer, env, aad)
		if err != nil {
			return peer, nil, err
		}
		return peer, plaintext, nil
	}

	for _, peer := range peers {
		if plaintext, err := s.tryDecrypt(peer, env, aad); err == nil {
			return peer, plaintext, nil
		}
	}
	return "", nil, ErrUnknownSender
}

func (s *Service) tryDecrypt(peer domain.PeerID, env domain.Envelope, aad []byte) ([]byte, error) {
	plaintext, _, err := store.UpdateWithResult(s.sessions, peer,
		func(cur *domain.RatchetState) ([]byte, domain.RatchetState, error) {
			if cur == nil {
				return nil, domain.RatchetState{}, ErrUnknownSender
			}
			return ratchet.Decrypt(*cur, env.Header, env.Ciphertext, env.IV, env.Tag, aad)
		})
	return plaintext, err
}

// nullifier derives the event's replay tag from the stealth ephemeral and
// the ciphertext, under its own domain separator.
func nullifier(ephemeral domain.PublicKey, ciphertext []byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(nullifierDomain))
	h.Write(ephemeral.Slice())
	h.Write(ciphertext)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
