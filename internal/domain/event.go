package domain

import "time"

// BroadcastEvent is one entry on the shared ledger. Nothing in it links to a
// long-term identity: the recipient is a one-time stealth address, the key is
// a fresh ephemeral, and the payload is opaque to everyone but the recipient.
type BroadcastEvent struct {
	Seq              uint64    `json:"seq"`
	StealthRecipient string    `json:"stealth_recipient"`
	EphemeralKey     PublicKey `json:"ephemeral_key"`
	ViewTag          byte      `json:"view_tag"`
	Payload          []byte    `json:"payload"`
	Nullifier        [32]byte  `json:"nullifier"`
	SentAt           time.Time `json:"sent_at"`
}
