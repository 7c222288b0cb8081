// Package uid derives the backend identifier shared by both HAProxy
// fragments of one process.
package uid

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
)

// separator terminates every domain fed into the hash so that
// "ab"+"c" and "a"+"bc" produce different digests.
const separator = ','

// UID is a backend identifier: the lowercase hex SHA-256 of the sorted
// domain list.
type UID string

// New computes the UID for a list of domains. Input order does not affect
// the result; repeated domains are hashed as often as they appear. The input
// slice is neither modified nor retained.
func New(domains []string) UID {
	sorted := slices.Clone(domains)
	slices.Sort(sorted)

	h := sha256.New()
	for _, domain := range sorted {
		h.Write([]byte(domain))
		h.Write([]byte{separator})
	}
	return UID(hex.EncodeToString(h.Sum(nil)))
}

func (u UID) String() string {
	return string(u)
}
