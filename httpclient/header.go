package httpclient

import (
	"net/textproto"
	"strings"
)

// HeaderMap holds header name/value pairs with case-insensitive,
// canonicalized names. Repeated names accumulate values in arrival order
// rather than overwriting. Iteration over Keys preserves first-arrival
// order.
type HeaderMap struct {
	keys   []string
	values map[string][]string
}

// NewHeaderMap creates an empty header map.
func NewHeaderMap() *HeaderMap {
	return &HeaderMap{values: make(map[string][]string)}
}

// Add appends a value under name, accumulating on repeats.
func (h *HeaderMap) Add(name, value string) {
	key := textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(name))
	if _, exists := h.values[key]; !exists {
		h.keys = append(h.keys, key)
	}
	h.values[key] = append(h.values[key], value)
}

// Set replaces any existing values under name with the single value.
func (h *HeaderMap) Set(name, value string) {
	key := textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(name))
	if _, exists := h.values[key]; !exists {
		h.keys = append(h.keys, key)
	}
	h.values[key] = []string{value}
}

// Get returns the first value under name, or "" when absent.
func (h *HeaderMap) Get(name string) string {
	vals := h.Values(name)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

// Values returns all values under name in arrival order.
func (h *HeaderMap) Values(name string) []string {
	return h.values[textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(name))]
}

// Has reports whether name is present.
func (h *HeaderMap) Has(name string) bool {
	return len(h.Values(name)) > 0
}

// Keys returns header names in first-arrival order.
func (h *HeaderMap) Keys() []string {
	return h.keys
}

// Len returns the number of distinct header names.
func (h *HeaderMap) Len() int {
	return len(h.keys)
}

// Match reports whether any value under name equals token or starts with
// token followed by a semicolon, comparing case-insensitively. This is the
// content-negotiation predicate: Match("Transfer-Encoding", "chunked") is
// true for both "chunked" and "chunked;ext=1".
func (h *HeaderMap) Match(name, token string) bool {
	token = strings.ToLower(token)
	for _, v := range h.Values(name) {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == token || strings.HasPrefix(v, token+";") {
			return true
		}
	}
	return false
}
