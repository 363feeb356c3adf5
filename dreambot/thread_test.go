package dreambot

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/dreambot/dreambot/atproto/client"
	"github.com/dreambot/dreambot/atproto/syntax"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(did, text string, parent *ThreadNode) *ThreadNode {
	return &ThreadNode{
		Post: ThreadPost{
			URI:       syntax.ATURI(fmt.Sprintf("at://%s/app.bsky.feed.post/%d", did, len(text))),
			AuthorDID: syntax.DID(did),
			Text:      text,
		},
		Parent: parent,
	}
}

func TestWalkThreadRoot(t *testing.T) {
	assert := assert.New(t)

	top := node("did:plc:alice", "cc: dreambot generate: a red fox in snow", nil)
	assert.Equal([]string{"a red fox in snow"}, WalkThread(top, top.Post.Text))

	// root form only understands "generate:"
	assert.Equal([]string{PlaceholderRoot}, WalkThread(top, "cc: dreambot update: blue"))
	assert.Equal([]string{PlaceholderRoot}, WalkThread(nil, "cc: dreambot"))
}

func TestWalkThreadChain(t *testing.T) {
	assert := assert.New(t)

	root := node("did:plc:alice", "generate: a red fox", nil)
	reply1 := node("did:plc:alice", "update: in the snow", root)
	trigger := node("did:plc:alice", "update: at night cc: dreambot", reply1)

	prompts := WalkThread(trigger, trigger.Post.Text)
	assert.Equal([]string{"at night cc: dreambot", "in the snow", "a red fox"}, prompts)
}

func TestWalkThreadOtherAuthors(t *testing.T) {
	assert := assert.New(t)

	root := node("did:plc:alice", "generate: a lighthouse", nil)
	other := node("did:plc:bob", "generate: ignored, different author", root)
	noLabel := node("did:plc:alice", "nice!", other)
	trigger := node("did:plc:alice", "cc: dreambot", noLabel)

	prompts := WalkThread(trigger, trigger.Post.Text)
	assert.Equal([]string{PlaceholderReply, PlaceholderReply, "a lighthouse"}, prompts)
}

func TestNewThreadNode(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	raw := `{
		"$type": "app.bsky.feed.defs#threadViewPost",
		"post": {"uri": "at://did:plc:alice/app.bsky.feed.post/3c", "cid": "bafyc", "author": {"did": "did:plc:alice", "handle": "alice.test"}, "record": {"text": "cc: dreambot update: blue"}},
		"parent": {
			"$type": "app.bsky.feed.defs#threadViewPost",
			"post": {"uri": "at://did:plc:alice/app.bsky.feed.post/3b", "cid": "bafyb", "author": {"did": "did:plc:alice", "handle": "alice.test"}, "record": {"text": "generate: a boat"}},
			"parent": {"$type": "app.bsky.feed.defs#blockedPost", "uri": "at://did:plc:mallory/app.bsky.feed.post/3a", "blocked": true}
		}
	}`
	var parent client.FeedDefs_ThreadViewPost_Parent
	require.NoError(json.Unmarshal([]byte(raw), &parent))

	top := NewThreadNode(parent.FeedDefs_ThreadViewPost)
	require.NotNil(top)
	assert.Equal("cc: dreambot update: blue", top.Post.Text)
	assert.Equal(syntax.DID("did:plc:alice"), top.Post.AuthorDID)
	require.NotNil(top.Parent)
	assert.Equal("bafyb", top.Parent.Post.CID)
	assert.Nil(top.Parent.Parent)

	assert.Equal([]string{"blue", "a boat"}, WalkThread(top, top.Post.Text))
	assert.Nil(NewThreadNode(nil))
}

type fakeThreads struct {
	thread       *client.FeedDefs_ThreadViewPost
	err          error
	parentHeight int
}

func (f *fakeThreads) GetPostThread(ctx context.Context, uri syntax.ATURI, depth, parentHeight int) (*client.FeedDefs_ThreadViewPost, error) {
	f.parentHeight = parentHeight
	return f.thread, f.err
}

func TestCollectPromptsError(t *testing.T) {
	assert := assert.New(t)

	f := &fakeThreads{err: client.ErrThreadUnavailable}
	rec := &PostRecord{URI: "at://did:plc:alice/app.bsky.feed.post/3c", Text: "cc: dreambot"}
	_, err := CollectPrompts(context.Background(), f, rec, 0)
	assert.ErrorIs(err, client.ErrThreadUnavailable)
	assert.Equal(DefaultParentHeight, f.parentHeight)
}
