package ratchet

import (
	"errors"

	"github.com/keohanoi/onchain-messaging-sub000/internal/crypto"
	"github.com/keohanoi/onchain-messaging-sub000/internal/domain"
)

const (
	// MaxSkip bounds how far a single decrypt may walk a receive chain
	// forward. Anything larger is treated as a DoS attempt, not a gap.
	MaxSkip = 1000
	// MaxSkippedKeys bounds the total skipped-key cache; oldest entries are
	// evicted first.
	MaxSkippedKeys = 2000

	tagMessageKey byte = 0x01
	tagChainKey   byte = 0x02
	tagHeaderKey  byte = 0x03

	infoInit = "ratchet-init"
	infoDH   = "dh-ratchet"
)

var (
	// ErrSkipLimitExceeded reports a skip distance above MaxSkip. The
	// caller's state is untouched.
	ErrSkipLimitExceeded = errors.New("ratchet: skip limit exceeded")
	// ErrReplayOrReorder reports a message index below the receive counter
	// with no cached key to match, i.e. an already-consumed index.
	ErrReplayOrReorder = errors.New("ratchet: message index already consumed")
)

// Init derives the two symmetric chains from an agreement secret. Both
// parties call this with the same sessionKey and opposite initiator flags,
// which swaps the chain assignment so one side's send chain is the other's
// receive chain. The remote ratchet key is unknown until the first inbound
// message and is adopted there.
func Init(sessionKey [32]byte, dhPair domain.KeyPair, initiator bool) (domain.RatchetState, error) {
	derived, err := crypto.HKDF(sessionKey[:], make([]byte, 32), infoInit, 64)
	if err != nil {
		return domain.RatchetState{}, err
	}
	st := domain.RatchetState{
		RootKey: sessionKey,
		DHPair:  dhPair,
	}
	if initiator {
		copy(st.SendChainKey[:], derived[:32])
		copy(st.RecvChainKey[:], derived[32:])
	} else {
		copy(st.RecvChainKey[:], derived[:32])
		copy(st.SendChainKey[:], derived[32:])
	}
	crypto.Wipe(derived)
	return st, nil
}

// chainKeys is one kdfChain step: the message key for this index, the next
// chain link, and the auxiliary header key.
type chainKeys struct {
	MessageKey [32]byte
	NextChain  [32]byte
	HeaderKey  [32]byte
}

// kdfChain derives the three outputs as independent HMACs over the chain
// key with one-byte domain tags. One-way: no output reveals its input.
func kdfChain(ck [32]byte) chainKeys {
	return chainKeys{
		MessageKey: crypto.HMAC256(ck[:], []byte{tagMessageKey}),
		NextChain:  crypto.HMAC256(ck[:], []byte{tagChainKey}),
		HeaderKey:  crypto.HMAC256(ck[:], []byte{tagHeaderKey}),
	}
}

// DHRatchet rotates the root and both chains against a new remote ratchet
// key, then installs a fresh local pair for the next rotation. Both counters
// reset; the caller is expected to have closed out the old receive chain
// first.
func DHRatchet(st domain.RatchetState, theirDHPub domain.PublicKey) (domain.RatchetState, error) {
	out := st.Clone()

	dhOut, err := crypto.ECDH(out.DHPair.Priv, theirDHPub)
	if err != nil {
		return domain.RatchetState{}, err
	}
	derived, err := crypto.HKDF(dhOut, out.RootKey[:], infoDH, 96)
	crypto.Wipe(dhOut)
	if err != nil {
		return domain.RatchetState{}, err
	}
	copy(out.RootKey[:], derived[:32])
	copy(out.SendChainKey[:], derived[32:64])
	copy(out.RecvChainKey[:], derived[64:])
	crypto.Wipe(derived)

	fresh, err := crypto.GenerateKeyPair()
	if err != nil {
		return domain.RatchetState{}, err
	}
	out.DHPair = fresh

	pub := theirDHPub
	out.TheirDHPub = &pub
	out.SendCount, out.RecvCount = 0, 0
	out.Version++
	return out, nil
}

// Result bundles one encryption's outputs. MessageKey and HeaderKey are
// surfaced for callers that layer header encryption on top; the transport
// here only uses Header, Ciphertext, IV and Tag.
type Result struct {
	Header     domain.RatchetHeader
	Ciphertext []byte
	IV         []byte
	Tag        []byte
	MessageKey [32]byte
	HeaderKey  [32]byte
}

// Encrypt seals plaintext under the next send-chain key. The header's
// canonical encoding prefixes aad so tampering with either is detected.
// The input state is not mutated; the advanced state is returned.
func Encrypt(st domain.RatchetState, plaintext, aad []byte) (Result, domain.RatchetState, error) {
	out := st.Clone()
	keys := kdfChain(out.SendChainKey)

	header := domain.RatchetHeader{
		DHPub:        out.DHPair.Pub,
		MsgIndex:     out.SendCount,
		PrevChainLen: out.RecvCount,
	}
	ciphertext, iv, tag, err := crypto.Seal(keys.MessageKey, plaintext, authData(header, aad))
	if err != nil {
		return Result{}, domain.RatchetState{}, err
	}

	out.SendChainKey = keys.NextChain
	out.SendCount++
	return Result{
		Header:     header,
		Ciphertext: ciphertext,
		IV:         iv,
		Tag:        tag,
		MessageKey: keys.MessageKey,
		HeaderKey:  keys.HeaderKey,
	}, out, nil
}

// Decrypt opens a message and returns the advanced state. All work happens
// on a copy: any error leaves the caller's state exactly as it was, so a
// forged or duplicate message can never burn chain progress.
//
// Flow: cached-key fast path, then remote-key adoption or rotation, then a
// bounded walk to the header's index.
func Decrypt(st domain.RatchetState, header domain.RatchetHeader, ciphertext, iv, tag, aad []byte) ([]byte, domain.RatchetState, error) {
	out := st.Clone()

	// Out-of-order fast path: this index was skipped earlier and its key
	// cached. A failed open discards the copy, so the cached key survives
	// for a later genuine delivery.
	if mk, ok := takeSkipped(&out, header.DHPub, header.MsgIndex); ok {
		plaintext, err := crypto.Open(mk, ciphertext, iv, tag, authData(header, aad))
		if err != nil {
			return nil, domain.RatchetState{}, err
		}
		out.Version++
		trimSkipped(&out)
		return plaintext, out, nil
	}

	if out.TheirDHPub == nil {
		// First inbound message. Both sides derived mirrored chains at
		// init, so the receive chain is already aligned with the sender;
		// adopt their ratchet key without rotating. Hearing from the peer
		// also proves they derived the session, so any pending intro has
		// served its purpose.
		pub := header.DHPub
		out.TheirDHPub = &pub
		out.PendingIntro = nil
	} else if *out.TheirDHPub != header.DHPub {
		// The sender rotated. Close out the old receive chain up to the
		// length the sender reported, caching those keys under the old
		// remote key, then rotate.
		if err := skipTo(&out, header.PrevChainLen); err != nil {
			return nil, domain.RatchetState{}, err
		}
		next, err := DHRatchet(out, header.DHPub)
		if err != nil {
			return nil, domain.RatchetState{}, err
		}
		out = next
	}

	if header.MsgIndex < out.RecvCount {
		return nil, domain.RatchetState{}, ErrReplayOrReorder
	}
	if err := skipTo(&out, header.MsgIndex); err != nil {
		return nil, domain.RatchetState{}, err
	}

	keys := kdfChain(out.RecvChainKey)
	plaintext, err := crypto.Open(keys.MessageKey, ciphertext, iv, tag, authData(header, aad))
	if err != nil {
		return nil, domain.RatchetState{}, err
	}
	out.RecvChainKey = keys.NextChain
	out.RecvCount = header.MsgIndex + 1
	out.Version++
	trimSkipped(&out)
	return plaintext, out, nil
}

// PruneSkipped retains only the newest max cached keys. Explicit
// maintenance; no effect when the cache is already within max.
func PruneSkipped(st domain.RatchetState, max int) domain.RatchetState {
	out := st.Clone()
	if excess := len(out.Skipped) - max; excess > 0 {
		out.Skipped = append([]domain.SkippedKey(nil), out.Skipped[excess:]...)
	}
	return out
}

// skipTo walks the receive chain forward to index until, caching each
// passed-over message key under the current remote ratchet key.
func skipTo(st *domain.RatchetState, until uint32) error {
	if until <= st.RecvCount {
		return nil
	}
	if until-st.RecvCount > MaxSkip {
		return ErrSkipLimitExceeded
	}
	for st.RecvCount < until {
		keys := kdfChain(st.RecvChainKey)
		st.Skipped = append(st.Skipped, domain.SkippedKey{
			DHPub:    *st.TheirDHPub,
			MsgIndex: st.RecvCount,
			Key:      keys.MessageKey,
		})
		st.RecvChainKey = keys.NextChain
		st.RecvCount++
	}
	return nil
}

// takeSkipped removes and returns the cached key for (dhPub, index).
func takeSkipped(st *domain.RatchetState, dhPub domain.PublicKey, index uint32) ([32]byte, bool) {
	for i, sk := range st.Skipped {
		if sk.MsgIndex == index && sk.DHPub == dhPub {
			st.Skipped = append(st.Skipped[:i], st.Skipped[i+1:]...)
			return sk.Key, true
		}
	}
	return [32]byte{}, false
}

// trimSkipped evicts the oldest entries once the cache exceeds its cap.
func trimSkipped(st *domain.RatchetState) {
	if excess := len(st.Skipped) - MaxSkippedKeys; excess > 0 {
		st.Skipped = append([]domain.SkippedKey(nil), st.Skipped[excess:]...)
	}
}

// authData prefixes the canonical header encoding to the caller's aad so
// both are covered by the authentication tag.
func authData(h domain.RatchetHeader, aad []byte) []byte {
	out := make([]byte, 0, HeaderSize+len(aad))
	out = append(out, EncodeHeader(h)...)
	return append(out, aad...)
}
