// Package infohash wraps the operator-supplied info-hash strings and the
// SHA-1 digests used as keys throughout the relay mesh and DHT announces.
package infohash

import (
	"errors"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/jpillora/bittorrent-relay/identity"
)

// ErrEmpty is returned by New when the supplied info-hash string is empty.
var ErrEmpty = errors.New("infohash: empty info-hash")

// InfoHash is an opaque, operator-supplied swarm identifier. Its only
// validation is non-emptiness; spec.md places no format constraint on it
// beyond that.
type InfoHash string

// New validates s and returns it as an InfoHash.
func New(s string) (InfoHash, error) {
	if s == "" {
		return "", ErrEmpty
	}
	return InfoHash(s), nil
}

// Digest returns the lowercase-hex SHA-1 of the info-hash string, the key
// used in the relay mesh's membership tables and DHT announces.
func (h InfoHash) Digest() string {
	return identity.SHA1Hex(string(h))
}

// Bytes20 decodes a 40-character hex digest into the 20-byte form the DHT
// library expects. It is the inverse of metainfo.Hash.HexString for
// well-formed digests.
func Bytes20(digest string) (metainfo.Hash, error) {
	var h metainfo.Hash
	if len(digest) != 40 {
		return h, errors.New("infohash: digest must be 40 hex characters")
	}
	if err := h.FromHexString(digest); err != nil {
		return h, err
	}
	return h, nil
}
