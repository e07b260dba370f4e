package cache

import (
	"net/url"
	"strconv"
)

// Key names one cache entry. It must incorporate every parameter that
// affects the result (pagination, filters, sort, locale) so two logically
// different queries never collide on one entry.
type Key struct {
	op     string
	params url.Values
}

// NewKey starts a key for the named read operation.
func NewKey(op string) Key {
	return Key{op: op, params: url.Values{}}
}

// With adds a string parameter. Returns a copy; keys are value types.
func (k Key) With(name, value string) Key {
	next := Key{op: k.op, params: url.Values{}}
	for p, vs := range k.params {
		next.params[p] = vs
	}
	next.params.Set(name, value)
	return next
}

// WithInt adds an integer parameter.
func (k Key) WithInt(name string, value int) Key {
	return k.With(name, strconv.Itoa(value))
}

// String renders the storage key. url.Values.Encode sorts by parameter name,
// which makes the rendering deterministic regardless of With ordering.
func (k Key) String() string {
	if len(k.params) == 0 {
		return "cache:" + k.op
	}
	return "cache:" + k.op + "?" + k.params.Encode()
}
