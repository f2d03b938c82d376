package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/keohanoi/onchain-messaging-sub000/internal/domain"
)

// Fingerprint returns the full hex SHA-256 of a compressed public key.
// It is what users compare out of band to authenticate a peer.
func Fingerprint(pub domain.PublicKey) domain.Fingerprint {
	sum := sha256.Sum256(pub.Slice())
	return domain.Fingerprint(hex.EncodeToString(sum[:]))
}

// PeerIDFromKey derives the short stable identifier for a peer: the first
// 16 hex characters of the identity key fingerprint.
func PeerIDFromKey(pub domain.PublicKey) domain.PeerID {
	return domain.PeerID(Fingerprint(pub)[:16])
}
