package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dreambot/dreambot/atproto/syntax"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePDS struct {
	refreshes atomic.Int64
	expired   atomic.Int64
	lastBody  atomic.Value
}

func (f *fakePDS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/xrpc/com.atproto.server.refreshSession":
		if r.Header.Get("Authorization") != "Bearer refresh1" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintln(w, `{"error":"ExpiredToken","message":"refresh token expired"}`)
			return
		}
		f.refreshes.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"did":        "did:plc:bot123",
			"accessJwt":  "access2",
			"refreshJwt": "refresh2",
		})
	case "/xrpc/com.atproto.server.createSession":
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		if body["identifier"] != "dreambot.example.com" || body["password"] != "password1" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprintln(w, `{"error":"AuthenticationRequired","message":"Invalid identifier or password"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"did":        "did:plc:bot123",
			"handle":     "dreambot.example.com",
			"accessJwt":  "access1",
			"refreshJwt": "refresh1",
		})
	case "/xrpc/com.atproto.repo.createRecord":
		switch r.Header.Get("Authorization") {
		case "Bearer access1":
			f.expired.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintln(w, `{"error":"ExpiredToken"}`)
		case "Bearer access2":
			b, _ := io.ReadAll(r.Body)
			f.lastBody.Store(string(b))
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintln(w, `{"uri":"at://did:plc:bot123/app.bsky.feed.post/3kabc","cid":"bafyreib2rxk3rh6kzwq"}`)
		default:
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		}
	case "/xrpc/com.example.fail":
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintln(w, `{"error":"InvalidRequest","message":"nope"}`)
	default:
		http.NotFound(w, r)
	}
}

func TestLoginWithPassword(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	srv := httptest.NewServer(&fakePDS{})
	defer srv.Close()

	c, err := LoginWithPassword(ctx, LoginConfig{
		Host:       srv.URL,
		Identifier: "dreambot.example.com",
		Password:   "password1",
	})
	require.NoError(err)
	require.NotNil(c.AccountDID)
	assert.Equal(syntax.DID("did:plc:bot123"), *c.AccountDID)
	assert.Equal("dreambot.example.com", c.AccountHandle)

	_, err = LoginWithPassword(ctx, LoginConfig{
		Host:       srv.URL,
		Identifier: "dreambot.example.com",
		Password:   "wrong",
	})
	require.Error(err)
	var apierr *APIError
	require.ErrorAs(err, &apierr)
	assert.Equal(http.StatusUnauthorized, apierr.StatusCode)
	assert.Equal("AuthenticationRequired", apierr.Name)

	_, err = LoginWithPassword(ctx, LoginConfig{Host: srv.URL})
	assert.Error(err)
}

func TestPasswordAuthRefresh(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	pds := &fakePDS{}
	srv := httptest.NewServer(pds)
	defer srv.Close()

	c, err := LoginWithPassword(ctx, LoginConfig{
		Host:       srv.URL,
		Identifier: "dreambot.example.com",
		Password:   "password1",
	})
	require.NoError(err)

	out, err := c.CreateRecord(ctx, syntax.NSID("app.bsky.feed.post"), &FeedPost{
		LexiconTypeID: "app.bsky.feed.post",
		Text:          "hello",
		CreatedAt:     "2024-01-01T00:00:00.000Z",
	})
	require.NoError(err)
	assert.Equal("at://did:plc:bot123/app.bsky.feed.post/3kabc", out.Uri)
	assert.Equal(int64(1), pds.expired.Load())
	assert.Equal(int64(1), pds.refreshes.Load())

	// the request body was re-sent after the refresh
	body, ok := pds.lastBody.Load().(string)
	require.True(ok)
	assert.Contains(body, `"text":"hello"`)
	assert.Contains(body, `"repo":"did:plc:bot123"`)

	pa, ok := c.Auth.(*PasswordAuth)
	require.True(ok)
	assert.Equal("access2", pa.Session.AccessToken)
	assert.Equal("refresh2", pa.Session.RefreshToken)
}

func TestAPIErrorPassthrough(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	pds := &fakePDS{}
	srv := httptest.NewServer(pds)
	defer srv.Close()

	c := NewAPIClient(srv.URL)
	err := c.Get(ctx, syntax.NSID("com.example.fail"), nil, nil)
	var apierr *APIError
	if assert.ErrorAs(err, &apierr) {
		assert.Equal(400, apierr.StatusCode)
		assert.Equal("InvalidRequest", apierr.Name)
		assert.Equal("nope", apierr.Message)
	}
	assert.Equal(int64(0), pds.refreshes.Load())
}
