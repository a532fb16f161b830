package authz

import (
	"crypto/sha256"
	"encoding/binary"
)

// Canonical message layout, version 1:
//
//	"mintgate-proof" | version | len(role) role | len(subject) subject | len(b) b ...
//
// Every field is length-prefixed (big-endian uint32) so no two distinct
// inputs can serialize to the same byte stream. The subject is always part
// of the message, which makes cross-identity replay structurally impossible.
const (
	digestPrefix  = "mintgate-proof"
	schemeVersion = byte(1)
)

// Digest returns the SHA-256 hash the trusted authority signs for the given
// role, subject and optional bound values.
func Digest(role Role, subject string, bound ...[]byte) [sha256.Size]byte {
	h := sha256.New()
	h.Write([]byte(digestPrefix))
	h.Write([]byte{schemeVersion})
	writeField(h, []byte(role))
	writeField(h, []byte(subject))
	for _, b := range bound {
		writeField(h, b)
	}
	var out [sha256.Size]byte
	h.Sum(out[:0])
	return out
}

func writeField(h interface{ Write([]byte) (int, error) }, field []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(field)))
	h.Write(n[:])
	h.Write(field)
}
