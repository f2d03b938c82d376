package ratchet

import (
	"encoding/binary"
	"errors"

	"github.com/keohanoi/onchain-messaging-sub000/internal/domain"
)

// HeaderSize is the length of the canonical header encoding: the compressed
// ratchet key followed by two big-endian uint32 counters.
const HeaderSize = 33 + 4 + 4

// ErrBadHeader reports a header blob of the wrong length.
var ErrBadHeader = errors.New("ratchet: malformed header")

// EncodeHeader produces the canonical byte form of a header. These bytes are
// authenticated as AAD, so the layout is fixed: dhPub ‖ msgIndex ‖
// prevChainLen with fixed-width big-endian integers.
func EncodeHeader(h domain.RatchetHeader) []byte {
	out := make([]byte, HeaderSize)
	copy(out, h.DHPub.Slice())
	binary.BigEndian.PutUint32(out[33:], h.MsgIndex)
	binary.BigEndian.PutUint32(out[37:], h.PrevChainLen)
	return out
}

// DecodeHeader parses the canonical encoding.
func DecodeHeader(b []byte) (domain.RatchetHeader, error) {
	if len(b) != HeaderSize {
		return domain.RatchetHeader{}, ErrBadHeader
	}
	var h domain.RatchetHeader
	copy(h.DHPub[:], b[:33])
	h.MsgIndex = binary.BigEndian.Uint32(b[33:])
	h.PrevChainLen = binary.BigEndian.Uint32(b[37:])
	return h, nil
}
