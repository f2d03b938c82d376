package domain

import "time"

// OneTimePrekeyPublic is the public half of a one-time prekey, as published
// in bundles.
type OneTimePrekeyPublic struct {
	Index uint32    `json:"index"`
	Pub   PublicKey `json:"pub"`
}

// KeyBundle is the public key material a peer publishes to the registry.
//
// SignedPrekeySignature must verify against IdentityKey before any DH term
// derived from the bundle is trusted; the registry enforces this on publish
// and initiators verify it again before key agreement.
type KeyBundle struct {
	Peer                  PeerID                `json:"peer"`
	IdentityKey           PublicKey             `json:"identity_key"`
	SignedPrekeyID        string                `json:"signed_prekey_id"`
	SignedPrekey          PublicKey             `json:"signed_prekey"`
	SignedPrekeySignature []byte                `json:"signed_prekey_signature"`
	OneTimePrekeys        []OneTimePrekeyPublic `json:"one_time_prekeys,omitempty"`
	SpendingKey           PublicKey             `json:"spending_key"`
	ViewingKey            PublicKey             `json:"viewing_key"`
	PQKey                 []byte                `json:"pq_key,omitempty"`
	UpdatedAt             time.Time             `json:"updated_at"`
}
