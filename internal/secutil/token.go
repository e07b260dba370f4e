package secutil

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/promptexify/promptexify/internal/xerrors"
)

// MinTokenBytes is the smallest amount of underlying entropy allowed for a
// security token. Requests for fewer bytes are rounded up, never down.
const MinTokenBytes = 32

// Token returns a URL-safe random string backed by at least n bytes of
// entropy from crypto/rand. n below MinTokenBytes is raised to MinTokenBytes.
//
// An error means the system entropy source failed; callers must treat that as
// fatal for the operation needing the token (fail closed), not substitute a
// weaker value.
func Token(n int) (string, error) {
	if n < MinTokenBytes {
		n = MinTokenBytes
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", xerrors.Wrap(err, "reading system entropy")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Nonce returns a fresh CSP nonce: a Token at the minimum entropy size.
// A nonce is request-scoped and must never be reused across requests.
func Nonce() (string, error) {
	return Token(MinTokenBytes)
}
