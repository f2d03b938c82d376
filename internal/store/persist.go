package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	xdr "github.com/davecgh/go-xdr/xdr2"

	"github.com/keohanoi/onchain-messaging-sub000/internal/domain"
)

const sessionFileSuffix = ".session"

// Persister flushes committed session state to a backing store. The session
// store calls it after releasing the per-peer lock, so implementations must
// tolerate versions arriving out of order.
type Persister interface {
	Persist(peer domain.PeerID, st domain.RatchetState) error
}

// Loader restores previously persisted sessions. A Persister that also
// implements Loader seeds the session store at construction.
type Loader interface {
	LoadAll() (map[domain.PeerID]domain.RatchetState, error)
}

// ratchetSnapshot is the XDR wire form of a session. Fixed arrays become
// opaque byte strings and optional fields become empty strings plus a
// presence flag, keeping the layout free of pointers.
type ratchetSnapshot struct {
	RootKey      []byte
	SendChainKey []byte
	RecvChainKey []byte
	DHPriv       []byte
	DHPub        []byte
	TheirDHPub   []byte
	SendCount    uint32
	RecvCount    uint32
	Skipped      []skippedSnapshot
	HasIntro     bool
	Intro        introSnapshot
	Version      uint64
}

type skippedSnapshot struct {
	DHPub    []byte
	MsgIndex uint32
	Key      []byte
}

type introSnapshot struct {
	IdentityKey    []byte
	EphemeralKey   []byte
	SignedPrekeyID string
	HasOneTime     bool
	OneTimeIndex   uint32
	PQCiphertext   []byte
}

func encodeSnapshot(st domain.RatchetState) ([]byte, error) {
	snap := ratchetSnapshot{
		RootKey:      st.RootKey[:],
		SendChainKey: st.SendChainKey[:],
		RecvChainKey: st.RecvChainKey[:],
		DHPriv:       st.DHPair.Priv.Slice(),
		DHPub:        st.DHPair.Pub.Slice(),
		SendCount:    st.SendCount,
		RecvCount:    st.RecvCount,
		Version:      st.Version,
	}
	if st.TheirDHPub != nil {
		snap.TheirDHPub = st.TheirDHPub.Slice()
	}
	for _, sk := range st.Skipped {
		snap.Skipped = append(snap.Skipped, skippedSnapshot{
			DHPub:    sk.DHPub.Slice(),
			MsgIndex: sk.MsgIndex,
			Key:      sk.Key[:],
		})
	}
	if intro := st.PendingIntro; intro != nil {
		snap.HasIntro = true
		snap.Intro = introSnapshot{
			IdentityKey:    intro.IdentityKey.Slice(),
			EphemeralKey:   intro.EphemeralKey.Slice(),
			SignedPrekeyID: intro.SignedPrekeyID,
			PQCiphertext:   intro.PQCiphertext,
		}
		if intro.OneTimePrekeyIndex != nil {
			snap.Intro.HasOneTime = true
			snap.Intro.OneTimeIndex = *intro.OneTimePrekeyIndex
		}
	}

	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, snap); err != nil {
		return nil, fmt.Errorf("marshal session snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeSnapshot(raw []byte) (domain.RatchetState, error) {
	var snap ratchetSnapshot
	if _, err := xdr.Unmarshal(bytes.NewReader(raw), &snap); err != nil {
		return domain.RatchetState{}, fmt.Errorf("unmarshal session snapshot: %w", err)
	}

	var st domain.RatchetState
	copy(st.RootKey[:], snap.RootKey)
	copy(st.SendChainKey[:], snap.SendChainKey)
	copy(st.RecvChainKey[:], snap.RecvChainKey)
	copy(st.DHPair.Priv[:], snap.DHPriv)
	copy(st.DHPair.Pub[:], snap.DHPub)
	st.SendCount = snap.SendCount
	st.RecvCount = snap.RecvCount
	st.Version = snap.Version
	if len(snap.TheirDHPub) > 0 {
		var pub domain.PublicKey
		copy(pub[:], snap.TheirDHPub)
		st.TheirDHPub = &pub
	}
	for _, sk := range snap.Skipped {
		var entry domain.SkippedKey
		copy(entry.DHPub[:], sk.DHPub)
		entry.MsgIndex = sk.MsgIndex
		copy(entry.Key[:], sk.Key)
		st.Skipped = append(st.Skipped, entry)
	}
	if snap.HasIntro {
		intro := &domain.PrekeyIntro{SignedPrekeyID: snap.Intro.SignedPrekeyID}
		copy(intro.IdentityKey[:], snap.Intro.IdentityKey)
		copy(intro.EphemeralKey[:], snap.Intro.EphemeralKey)
		if snap.Intro.HasOneTime {
			index := snap.Intro.OneTimeIndex
			intro.OneTimePrekeyIndex = &index
		}
		if len(snap.Intro.PQCiphertext) > 0 {
			intro.PQCiphertext = append([]byte(nil), snap.Intro.PQCiphertext...)
		}
		st.PendingIntro = intro
	}
	return st, nil
}

// FilePersister writes one passphrase-encrypted snapshot file per peer.
// Flushes carrying a version at or below the last written one are dropped,
// which makes the after-lock flush ordering safe.
type FilePersister struct {
	dir        string
	passphrase string

	mu       sync.Mutex
	lastSeen map[domain.PeerID]uint64
}

var (
	_ Persister = (*FilePersister)(nil)
	_ Loader    = (*FilePersister)(nil)
)

func NewFilePersister(dir, passphrase string) (*FilePersister, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FilePersister{
		dir:        dir,
		passphrase: passphrase,
		lastSeen:   make(map[domain.PeerID]uint64),
	}, nil
}

// Persist seals and writes the snapshot atomically.
func (p *FilePersister) Persist(peer domain.PeerID, st domain.RatchetState) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if st.Version <= p.lastSeen[peer] {
		return nil
	}
	raw, err := encodeSnapshot(st)
	if err != nil {
		return err
	}
	sealed, err := sealEnvelope(p.passphrase, raw)
	if err != nil {
		return err
	}
	path := filepath.Join(p.dir, peer.String()+sessionFileSuffix)
	if err := writeFile(path, sealed, 0o600); err != nil {
		return err
	}
	p.lastSeen[peer] = st.Version
	return nil
}

// LoadAll decrypts every snapshot in the directory.
func (p *FilePersister) LoadAll() (map[domain.PeerID]domain.RatchetState, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[domain.PeerID]domain.RatchetState)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, sessionFileSuffix) {
			continue
		}
		sealed, err := os.ReadFile(filepath.Join(p.dir, name))
		if err != nil {
			return nil, err
		}
		raw, err := openEnvelope(p.passphrase, sealed)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", name, err)
		}
		st, err := decodeSnapshot(raw)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", name, err)
		}
		peer := domain.PeerID(strings.TrimSuffix(name, sessionFileSuffix))
		out[peer] = st
		p.lastSeen[peer] = st.Version
	}
	return out, nil
}
