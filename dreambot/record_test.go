package dreambot

import (
	"context"
	"testing"

	"github.com/dreambot/dreambot/atproto/syntax"
	"github.com/dreambot/dreambot/firehose"
	"github.com/dreambot/dreambot/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeCommit(t *testing.T, cf testutil.CommitFrame) *firehose.Commit {
	t.Helper()
	frame, _ := testutil.Commit(t, cf)
	commit, err := firehose.DecodeFrame(context.Background(), frame)
	require.NoError(t, err)
	require.NotNil(t, commit)
	return commit
}

func TestExtractRecord(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	missing := testutil.CBORBlock(t, testutil.PostRecord("never included"))
	commit := decodeCommit(t, testutil.CommitFrame{
		Repo: "did:plc:alice",
		Seq:  7,
		Ops: []testutil.Op{
			{Action: "create", Path: "app.bsky.feed.post/3kpost", Record: testutil.PostRecord("cc: dreambot generate: a red fox in snow")},
			{Action: "create", Path: "app.bsky.feed.post/3kgone", CID: &missing.CID},
			{Action: "create", Path: "app.bsky.feed.post/3knocid"},
			{Action: "update", Path: "app.bsky.feed.post/3kpost", Record: testutil.PostRecord("edited")},
			{Action: "delete", Path: "app.bsky.feed.post/3kpost"},
			{Action: "create", Path: "app.bsky.feed.like/3klike", Record: map[string]any{"$type": "app.bsky.feed.like"}},
		},
	})
	require.Len(commit.Ops, 6)

	rec, err := ExtractRecord(commit.Ops[0], commit)
	require.NoError(err)
	assert.Equal(syntax.ATURI("at://did:plc:alice/app.bsky.feed.post/3kpost"), rec.URI)
	assert.Equal(syntax.DID("did:plc:alice"), rec.Author)
	assert.Equal(*commit.Ops[0].CID, rec.CID)
	assert.Equal(syntax.RecordKey("3kpost"), rec.RecordKey)
	assert.Equal(PostCollection, rec.Collection)
	assert.Equal("cc: dreambot generate: a red fox in snow", rec.Text)
	assert.Equal("at://did:plc:alice/app.bsky.feed.post/3kpost", rec.Fields["uri"])
	assert.Equal(commit.Ops[0].CID.String(), rec.Fields["cid"])
	assert.Equal("did:plc:alice", rec.Fields["author"])
	assert.Equal("app.bsky.feed.post", rec.Fields["$type"])

	for _, i := range []int{1, 2, 3, 4} {
		_, err := ExtractRecord(commit.Ops[i], commit)
		assert.ErrorIs(err, ErrNoRecord, commit.Ops[i].Path)
	}

	// non-post records still resolve
	rec, err = ExtractRecord(commit.Ops[5], commit)
	require.NoError(err)
	assert.NotEqual(PostCollection, rec.Collection)
	assert.Equal("", rec.Text)
}

func TestExtractRecordTooBig(t *testing.T) {
	commit := decodeCommit(t, testutil.CommitFrame{
		Repo:   "did:plc:alice",
		Seq:    8,
		TooBig: true,
		Ops: []testutil.Op{
			{Action: "create", Path: "app.bsky.feed.post/3kpost", Record: testutil.PostRecord("cc: dreambot")},
		},
	})
	_, err := ExtractRecord(commit.Ops[0], commit)
	assert.ErrorIs(t, err, ErrNoRecord)
}

func TestExtractRecordKeepsOwnFields(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	post := testutil.PostRecord("cc: dreambot generate: tide pools")
	post["author"] = "someone else"
	commit := decodeCommit(t, testutil.CommitFrame{
		Repo: "did:plc:alice",
		Seq:  9,
		Ops:  []testutil.Op{{Action: "create", Path: "app.bsky.feed.post/3kown", Record: post}},
	})

	rec, err := ExtractRecord(commit.Ops[0], commit)
	require.NoError(err)
	assert.Equal("someone else", rec.Fields["author"])
	assert.Equal(syntax.DID("did:plc:alice"), rec.Author)
	assert.Equal("at://did:plc:alice/app.bsky.feed.post/3kown", rec.Fields["uri"])
	assert.Equal(commit.Ops[0].CID.String(), rec.Fields["cid"])
}
