// Package session defines the boundary to the external identity provider.
// The security pipeline delegates session refresh to it and honors any
// redirect it produces; everything behind the interface (token exchange,
// provider cookies) belongs to the provider's SDK, not to this codebase.
package session

import "net/http"

// Outcome reports what the refresher did with the request.
type Outcome int

const (
	// Continue: session state is settled (refreshed, absent, or unchanged);
	// the request proceeds.
	Continue Outcome = iota
	// Redirected: the refresher wrote a redirect response; the pipeline must
	// return it unmodified and run nothing further.
	Redirected
)

// Refresher validates and refreshes the identity session for one request. It
// may write provider cookies or a redirect to w.
type Refresher interface {
	Refresh(w http.ResponseWriter, r *http.Request) (Outcome, error)
}

// RefresherFunc adapts a function to the Refresher interface.
type RefresherFunc func(w http.ResponseWriter, r *http.Request) (Outcome, error)

func (f RefresherFunc) Refresh(w http.ResponseWriter, r *http.Request) (Outcome, error) {
	return f(w, r)
}

// None is a Refresher for deployments without an identity provider: every
// request continues anonymously.
var None Refresher = RefresherFunc(func(http.ResponseWriter, *http.Request) (Outcome, error) {
	return Continue, nil
})
