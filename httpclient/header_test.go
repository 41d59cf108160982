package httpclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Test values accumulate under one name
func TestHeaderMap_AddAccumulates(t *testing.T) {
	h := NewHeaderMap()
	h.Add("Set-Cookie", "a=1")
	h.Add("Set-Cookie", "b=2")

	assert.Equal(t, "a=1", h.Get("Set-Cookie"))
	assert.Equal(t, []string{"a=1", "b=2"}, h.Values("Set-Cookie"))
	assert.Equal(t, 1, h.Len())
}

// Test Set replaces accumulated values
func TestHeaderMap_SetReplaces(t *testing.T) {
	h := NewHeaderMap()
	h.Add("Accept", "text/html")
	h.Add("Accept", "text/xml")
	h.Set("Accept", "application/json")

	assert.Equal(t, []string{"application/json"}, h.Values("Accept"))
}

// Test names are case-insensitive and canonicalized
func TestHeaderMap_CanonicalNames(t *testing.T) {
	h := NewHeaderMap()
	h.Add("content-TYPE", "text/xml")

	assert.Equal(t, "text/xml", h.Get("Content-Type"))
	assert.Equal(t, "text/xml", h.Get("CONTENT-TYPE"))
	assert.True(t, h.Has("content-type"))
	assert.Equal(t, []string{"Content-Type"}, h.Keys())
}

// Test iteration preserves first-arrival order
func TestHeaderMap_KeysOrder(t *testing.T) {
	h := NewHeaderMap()
	h.Add("Server", "BBVS/5.2")
	h.Add("Date", "today")
	h.Add("Content-Type", "text/xml")
	h.Add("Server", "again")

	assert.Equal(t, []string{"Server", "Date", "Content-Type"}, h.Keys())
}

// Test the token match predicate used for content negotiation
func TestHeaderMap_Match(t *testing.T) {
	tests := []struct {
		name  string
		value string
		token string
		want  bool
	}{
		{"exact", "chunked", "chunked", true},
		{"exact case insensitive", "Chunked", "chunked", true},
		{"semicolon prefix", "chunked;ext=1", "chunked", true},
		{"leading whitespace", " gzip", "gzip", true},
		{"partial token", "chunked", "chunk", false},
		{"different value", "identity", "chunked", false},
		{"prefix without semicolon", "chunkedplus", "chunked", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHeaderMap()
			h.Add("Transfer-Encoding", tt.value)
			assert.Equal(t, tt.want, h.Match("Transfer-Encoding", tt.token))
		})
	}
}

// Test match scans every value under the name
func TestHeaderMap_MatchMultipleValues(t *testing.T) {
	h := NewHeaderMap()
	h.Add("Transfer-Encoding", "identity")
	h.Add("Transfer-Encoding", "chunked")

	assert.True(t, h.Match("Transfer-Encoding", "chunked"))
	assert.False(t, h.Match("Transfer-Encoding", "gzip"))
	assert.False(t, h.Match("Content-Encoding", "chunked"))
}
