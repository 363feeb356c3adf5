package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepoPath(t *testing.T) {
	assert := assert.New(t)

	testValid := [][]string{
		{"app.bsky.feed.post/asdf", "app.bsky.feed.post", "asdf"},
		{"app.bsky.feed.post/3kbf4wbhb5s2y", "app.bsky.feed.post", "3kbf4wbhb5s2y"},
	}

	testErr := []string{
		"",
		"/",
		"/app.bsky.feed.post/asdf",
		"/asdf",
		"blob/asdf",
		"app.bsky.feed.post/",
		"app.bsky.feed.post/.",
		"app.bsky.feed.post/!",
		"app.bsky.feed.post/asdf/extra",
	}

	for _, parts := range testValid {
		nsid, rkey, err := ParseRepoPath(parts[0])
		assert.NoError(err)
		assert.Equal(parts[1], nsid.String())
		assert.Equal(parts[2], rkey.String())
	}

	for _, raw := range testErr {
		nsid, rkey, err := ParseRepoPath(raw)
		assert.Error(err, raw)
		assert.Equal("", nsid.String())
		assert.Equal("", rkey.String())
	}
}

func TestDID(t *testing.T) {
	assert := assert.New(t)

	d, err := ParseDID("did:plc:ewvi7nxzyoun6zhxrhs64oiz")
	assert.NoError(err)
	assert.Equal("plc", d.Method())

	for _, raw := range []string{"", "did:plc", "DID:plc:abc", "did:plc:abc:", "plc:abc"} {
		_, err := ParseDID(raw)
		assert.Error(err, raw)
	}
}

func TestATURI(t *testing.T) {
	assert := assert.New(t)

	uri := RecordURI(DID("did:plc:abc123"), NSID("app.bsky.feed.post"), RecordKey("3kbf4wbhb5s2y"))
	assert.Equal("at://did:plc:abc123/app.bsky.feed.post/3kbf4wbhb5s2y", uri.String())

	parsed, err := ParseATURI(uri.String())
	assert.NoError(err)
	assert.Equal("did:plc:abc123", parsed.Authority())
	coll, err := parsed.Collection()
	assert.NoError(err)
	assert.Equal("post", coll.Name())
	rkey, err := parsed.RecordKey()
	assert.NoError(err)
	assert.Equal("3kbf4wbhb5s2y", rkey.String())

	_, err = ParseATURI("at://dreambot.bsky.social/app.bsky.feed.post/abc")
	assert.NoError(err)

	for _, raw := range []string{"", "at://", "https://bsky.app", "at://did:plc:abc/not_an_nsid", "at://-bad-/app.bsky.feed.post"} {
		_, err := ParseATURI(raw)
		assert.Error(err, raw)
	}
}
