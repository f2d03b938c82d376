package domain

import (
	"fmt"
	"time"
)

// MessageKind tags the plaintext payload so recipients can route it without
// guessing at the body.
type MessageKind uint8

const (
	KindDirect MessageKind = iota + 1
	KindGroup
)

func (k MessageKind) String() string {
	switch k {
	case KindDirect:
		return "direct"
	case KindGroup:
		return "group"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// MessagePayload is what actually gets encrypted: the application-level
// message plus enough context for the recipient to attribute and route it.
type MessagePayload struct {
	Kind   MessageKind `json:"kind"`
	Sender PeerID      `json:"sender"`
	Body   []byte      `json:"body"`
	Group  GroupID     `json:"group,omitempty"`
}

// Validate rejects payloads that would be ambiguous to the recipient.
func (p MessagePayload) Validate() error {
	switch p.Kind {
	case KindDirect:
		if p.Group != "" {
			return fmt.Errorf("direct message carries group %q", p.Group)
		}
	case KindGroup:
		if p.Group == "" {
			return fmt.Errorf("group message missing group id")
		}
	default:
		return fmt.Errorf("unknown message kind %d", uint8(p.Kind))
	}
	if p.Sender == "" {
		return fmt.Errorf("message missing sender")
	}
	return nil
}

// PrekeyIntro opens a conversation: it carries the key agreement inputs the
// recipient needs to derive the same session.
type PrekeyIntro struct {
	IdentityKey        PublicKey `json:"identity_key"`
	EphemeralKey       PublicKey `json:"ephemeral_key"`
	SignedPrekeyID     string    `json:"signed_prekey_id"`
	OneTimePrekeyIndex *uint32   `json:"one_time_prekey_index,omitempty"`
	PQCiphertext       []byte    `json:"pq_ciphertext,omitempty"`
}

// Envelope is the sealed unit published to the ledger, inside the stealth
// payload. The initiator attaches Intro to every message until the peer is
// first heard from, so the recipient can bootstrap the session from any of
// them.
type Envelope struct {
	Intro      *PrekeyIntro  `json:"intro,omitempty"`
	Header     RatchetHeader `json:"header"`
	Ciphertext []byte        `json:"ciphertext"`
	IV         []byte        `json:"iv"`
	Tag        []byte        `json:"tag"`
}

// DecryptedMessage is the receive-side result handed back to callers.
type DecryptedMessage struct {
	From   PeerID
	Kind   MessageKind
	Group  GroupID
	Body   []byte
	Seq    uint64
	SentAt time.Time
}
