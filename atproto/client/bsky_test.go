package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dreambot/dreambot/atproto/syntax"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var threadJSON = `{
  "thread": {
    "$type": "app.bsky.feed.defs#threadViewPost",
    "post": {
      "uri": "at://did:plc:alice/app.bsky.feed.post/3kc",
      "cid": "bafyc",
      "author": {"did": "did:plc:alice", "handle": "alice.test"},
      "record": {"$type": "app.bsky.feed.post", "text": "update: make it blue cc: dreambot", "createdAt": "2024-01-01T00:00:02Z"},
      "indexedAt": "2024-01-01T00:00:02Z"
    },
    "parent": {
      "$type": "app.bsky.feed.defs#threadViewPost",
      "post": {
        "uri": "at://did:plc:alice/app.bsky.feed.post/3kb",
        "cid": "bafyb",
        "author": {"did": "did:plc:alice", "handle": "alice.test"},
        "record": {"$type": "app.bsky.feed.post", "text": "generate: a red fox", "createdAt": "2024-01-01T00:00:01Z"},
        "indexedAt": "2024-01-01T00:00:01Z"
      },
      "parent": {
        "$type": "app.bsky.feed.defs#notFoundPost",
        "uri": "at://did:plc:bob/app.bsky.feed.post/3ka",
        "notFound": true
      }
    }
  }
}`

func TestGetPostThread(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/xrpc/app.bsky.feed.getPostThread":
			if r.URL.Query().Get("uri") == "at://did:plc:alice/app.bsky.feed.post/3kc" {
				assert.Equal("0", r.URL.Query().Get("depth"))
				assert.Equal("80", r.URL.Query().Get("parentHeight"))
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, threadJSON)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"thread": {"$type": "app.bsky.feed.defs#notFoundPost", "uri": "at://did:plc:x/app.bsky.feed.post/1", "notFound": true}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL)
	tvp, err := c.GetPostThread(ctx, syntax.ATURI("at://did:plc:alice/app.bsky.feed.post/3kc"), 0, 80)
	require.NoError(err)
	assert.Equal("update: make it blue cc: dreambot", tvp.Post.Text())
	assert.Equal("did:plc:alice", tvp.Post.Author.Did)
	require.NotNil(tvp.Parent)
	require.NotNil(tvp.Parent.FeedDefs_ThreadViewPost)
	assert.Equal("generate: a red fox", tvp.Parent.FeedDefs_ThreadViewPost.Post.Text())
	require.NotNil(tvp.Parent.FeedDefs_ThreadViewPost.Parent)
	assert.Nil(tvp.Parent.FeedDefs_ThreadViewPost.Parent.FeedDefs_ThreadViewPost)
	assert.NotNil(tvp.Parent.FeedDefs_ThreadViewPost.Parent.FeedDefs_NotFoundPost)

	_, err = c.GetPostThread(ctx, syntax.ATURI("at://did:plc:x/app.bsky.feed.post/1"), 0, 80)
	assert.ErrorIs(err, ErrThreadUnavailable)
}

func TestUploadBlobAndDelete(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	var deleted RepoDeleteRecord_Input
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/xrpc/com.atproto.repo.uploadBlob":
			b, _ := io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"blob": {"$type": "blob", "ref": {"$link": "bafkreiblob"}, "mimeType": %q, "size": %d}}`, r.Header.Get("Content-Type"), len(b))
		case "/xrpc/com.atproto.repo.deleteRecord":
			json.NewDecoder(r.Body).Decode(&deleted)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL)
	blob, err := c.UploadBlob(ctx, []byte("\x89PNG\r\n\x1a\nrest"), "image/png")
	require.NoError(err)
	assert.Equal("blob", blob.LexiconTypeID)
	assert.Equal("bafkreiblob", blob.Ref.Link)
	assert.Equal("image/png", blob.MimeType)
	assert.Equal(int64(12), blob.Size)

	err = c.DeleteRecord(ctx, syntax.NSID("app.bsky.feed.post"), syntax.RecordKey("3kabc"))
	assert.ErrorIs(err, ErrNotLoggedIn)

	did := syntax.DID("did:plc:bot123")
	c.AccountDID = &did
	require.NoError(c.DeleteRecord(ctx, syntax.NSID("app.bsky.feed.post"), syntax.RecordKey("3kabc")))
	assert.Equal("did:plc:bot123", deleted.Repo)
	assert.Equal("app.bsky.feed.post", deleted.Collection)
	assert.Equal("3kabc", deleted.Rkey)
}

func TestMentionFacet(t *testing.T) {
	assert := assert.New(t)

	text := "Hey, @alice.test. Here's an image generated from your post."
	f := MentionFacet(text, "alice.test", "did:plc:alice")
	require.NotNil(t, f)
	assert.Equal(int64(5), f.Index.ByteStart)
	assert.Equal(int64(16), f.Index.ByteEnd)
	assert.Equal("@alice.test", text[f.Index.ByteStart:f.Index.ByteEnd])
	assert.Equal("did:plc:alice", f.Features[0].Did)
	assert.Equal("app.bsky.richtext.facet#mention", f.Features[0].LexiconTypeID)

	// multi-byte prefix shifts byte offsets, not rune offsets
	f = MentionFacet("¡Hola, @bob.test!", "bob.test", "did:plc:bob")
	require.NotNil(t, f)
	assert.Equal(int64(8), f.Index.ByteStart)

	assert.Nil(MentionFacet("no mention", "alice.test", "did:plc:alice"))
}
