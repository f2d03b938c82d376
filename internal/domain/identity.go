package domain

import "time"

// SignedPrekeyPair is the full signed-prekey record kept locally. The
// signature is produced by the identity key over the compressed public half.
type SignedPrekeyPair struct {
	ID        string    `json:"id"`
	Pair      KeyPair   `json:"pair"`
	Signature []byte    `json:"signature"`
	CreatedAt time.Time `json:"created_at"`
}

// OneTimePrekeyPair is a one-time prekey kept locally until consumed.
type OneTimePrekeyPair struct {
	Index uint32  `json:"index"`
	Pair  KeyPair `json:"pair"`
}

// Identity holds every long-term secret a participant owns: the identity
// key, the stealth spending and viewing keys, the signed prekeys (current
// last), the unconsumed one-time prekeys, and the optional Kyber pair.
type Identity struct {
	ID             PeerID              `json:"id"`
	Key            KeyPair             `json:"key"`
	Spending       KeyPair             `json:"spending"`
	Viewing        KeyPair             `json:"viewing"`
	SignedPrekeys  []SignedPrekeyPair  `json:"signed_prekeys"`
	OneTimePrekeys []OneTimePrekeyPair `json:"one_time_prekeys,omitempty"`
	PQ             *PQKeyPair          `json:"pq,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

// CurrentSignedPrekey returns the newest signed prekey.
func (id Identity) CurrentSignedPrekey() (SignedPrekeyPair, bool) {
	if len(id.SignedPrekeys) == 0 {
		return SignedPrekeyPair{}, false
	}
	return id.SignedPrekeys[len(id.SignedPrekeys)-1], true
}

// SignedPrekeyByID looks up a retained signed prekey.
func (id Identity) SignedPrekeyByID(prekeyID string) (SignedPrekeyPair, bool) {
	for _, spk := range id.SignedPrekeys {
		if spk.ID == prekeyID {
			return spk, true
		}
	}
	return SignedPrekeyPair{}, false
}

// TakeOneTimePrekey removes and returns the one-time prekey at index.
// One-time prekeys are deleted on first use to preserve their forward
// secrecy contribution.
func (id *Identity) TakeOneTimePrekey(index uint32) (OneTimePrekeyPair, bool) {
	for i, opk := range id.OneTimePrekeys {
		if opk.Index == index {
			id.OneTimePrekeys = append(id.OneTimePrekeys[:i], id.OneTimePrekeys[i+1:]...)
			return opk, true
		}
	}
	return OneTimePrekeyPair{}, false
}

// Bundle projects the public half of the identity into a publishable
// KeyBundle. The registry stamps UpdatedAt when the bundle is accepted.
func (id Identity) Bundle() KeyBundle {
	b := KeyBundle{
		Peer:        id.ID,
		IdentityKey: id.Key.Pub,
		SpendingKey: id.Spending.Pub,
		ViewingKey:  id.Viewing.Pub,
	}
	if spk, ok := id.CurrentSignedPrekey(); ok {
		b.SignedPrekeyID = spk.ID
		b.SignedPrekey = spk.Pair.Pub
		b.SignedPrekeySignature = append([]byte(nil), spk.Signature...)
	}
	for _, opk := range id.OneTimePrekeys {
		b.OneTimePrekeys = append(b.OneTimePrekeys, OneTimePrekeyPublic{
			Index: opk.Index,
			Pub:   opk.Pair.Pub,
		})
	}
	if id.PQ != nil {
		b.PQKey = append([]byte(nil), id.PQ.Pub...)
	}
	return b
}
