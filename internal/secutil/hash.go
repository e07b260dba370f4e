package secutil

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// InlineHash computes the CSP hash source for an exact inline script or style
// body, e.g. 'sha256-jzW...='. The content must match byte for byte what the
// browser sees between the tags, whitespace included.
func InlineHash(src []byte) string {
	sum := sha256.Sum256(src)
	return "'sha256-" + base64.StdEncoding.EncodeToString(sum[:]) + "'"
}

// SHA256Hex returns the hex SHA-256 digest of data. Used for cache keys and
// audit fingerprints where a stable, non-secret identifier is needed.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
