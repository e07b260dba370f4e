package secutil

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
)

// Equal compares two secret-derived strings in constant time.
//
// Both inputs are keyed through HMAC-SHA256 with a random key generated for
// this single comparison, then the fixed-length digests are compared with
// subtle.ConstantTimeCompare. Because the digests are always the same length
// regardless of input length, no length pre-check exists to leak through, and
// the comparison never branches on intermediate equality.
//
// If the per-comparison key cannot be generated the function returns false:
// deny-by-default, never panic past the caller's decision.
func Equal(a, b string) bool {
	var key [32]byte
	if _, err := rand.Read(key[:]); err != nil {
		return false
	}

	ha := hmac.New(sha256.New, key[:])
	ha.Write([]byte(a))
	da := ha.Sum(nil)

	hb := hmac.New(sha256.New, key[:])
	hb.Write([]byte(b))
	db := hb.Sum(nil)

	return subtle.ConstantTimeCompare(da, db) == 1
}
