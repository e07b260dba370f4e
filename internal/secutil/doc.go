// Package secutil provides the cryptographic primitives the request-boundary
// security layers are built on: secure random token/nonce generation,
// timing-safe comparison of secret-derived strings, and CSP inline-content
// hashing.
//
// Everything here uses crypto/rand and crypto/hmac; a math/rand fallback is
// never acceptable for these values. Callers are expected to fail closed when
// generation returns an error.
package secutil
