package util

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebsocketURLForHost(t *testing.T) {
	assert := assert.New(t)

	testCases := []struct {
		host     string
		expected string
	}{
		{"localhost", "ws://localhost"},
		{"localhost:2470", "ws://localhost:2470"},
		{"127.0.0.1", "ws://127.0.0.1"},
		{"[::1]", "ws://[::1]"},
		{"wss://127.0.0.1:443", "wss://127.0.0.1:443"},
		{"bsky.network", "wss://bsky.network"},
		{"ws://example.com", "ws://example.com"},
		{"wss://example.com", "wss://example.com"},
		{"http://example.com", "ws://example.com"},
		{"https://example.com", "wss://example.com"},
		{"http://example.com:123", "ws://example.com:123"},
		{"ftp://example.com", "ftp://example.com"},
		{"", ""},
		{"a", "wss://a"},
	}

	for _, c := range testCases {
		assert.Equal(c.expected, WebsocketURLForHost(c.host), c.host)
	}
}

func TestNewHTTPClientNoRetryByDefault(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPClient(HTTPClientConfig{})
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}
