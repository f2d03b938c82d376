package domain

// RatchetHeader is sent alongside every ciphertext. Its canonical byte
// encoding is authenticated as associated data, so both parties must produce
// identical bytes; see protocol/ratchet.EncodeHeader.
type RatchetHeader struct {
	DHPub        PublicKey `json:"dh_pub"`
	MsgIndex     uint32    `json:"n"`
	PrevChainLen uint32    `json:"pn"`
}

// SkippedKey caches a message key derived for an index that has not arrived
// yet. Entries are one-time use and ordered oldest first.
type SkippedKey struct {
	DHPub    PublicKey `json:"dh_pub"`
	MsgIndex uint32    `json:"n"`
	Key      [32]byte  `json:"key"`
}

// RatchetState contains all fields the Double Ratchet tracks for one peer.
//
// States are treated as values: the session store hands out copies, and
// protocol operations work on a copy and commit it only on success, so a
// failed encrypt or decrypt never leaves a half-advanced state behind.
//
// PendingIntro holds the key agreement intro on the initiator side until the
// first inbound message proves the peer derived the session; every outbound
// message repeats it until then, so losing the first broadcast cannot orphan
// the session.
type RatchetState struct {
	RootKey      [32]byte     `json:"root_key"`
	SendChainKey [32]byte     `json:"send_ck"`
	RecvChainKey [32]byte     `json:"recv_ck"`
	DHPair       KeyPair      `json:"dh_pair"`
	TheirDHPub   *PublicKey   `json:"their_dh_pub,omitempty"`
	SendCount    uint32       `json:"ns"`
	RecvCount    uint32       `json:"nr"`
	Skipped      []SkippedKey `json:"skipped,omitempty"`
	PendingIntro *PrekeyIntro `json:"pending_intro,omitempty"`
	Version      uint64       `json:"version"`
}

// Clone returns a deep copy safe to mutate independently.
func (s RatchetState) Clone() RatchetState {
	out := s
	if s.TheirDHPub != nil {
		pub := *s.TheirDHPub
		out.TheirDHPub = &pub
	}
	if s.Skipped != nil {
		out.Skipped = append([]SkippedKey(nil), s.Skipped...)
	}
	if s.PendingIntro != nil {
		intro := *s.PendingIntro
		if s.PendingIntro.OneTimePrekeyIndex != nil {
			index := *s.PendingIntro.OneTimePrekeyIndex
			intro.OneTimePrekeyIndex = &index
		}
		intro.PQCiphertext = append([]byte(nil), s.PendingIntro.PQCiphertext...)
		out.PendingIntro = &intro
	}
	return out
}
