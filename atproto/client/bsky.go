package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/dreambot/dreambot/atproto/syntax"
)

var ErrNotLoggedIn = errors.New("client has no authenticated account")

// ErrThreadUnavailable is returned when the requested thread root is not found or blocked.
var ErrThreadUnavailable = errors.New("post thread not available")

func (c *APIClient) GetProfile(ctx context.Context, actor string) (*ActorDefs_ProfileViewDetailed, error) {
	var out ActorDefs_ProfileViewDetailed
	params := url.Values{"actor": []string{actor}}
	if err := c.Get(ctx, syntax.NSID("app.bsky.actor.getProfile"), params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPostThread fetches the thread view for a post. depth bounds replies, parentHeight bounds ancestors.
func (c *APIClient) GetPostThread(ctx context.Context, uri syntax.ATURI, depth, parentHeight int) (*FeedDefs_ThreadViewPost, error) {
	params := url.Values{
		"uri":          []string{uri.String()},
		"depth":        []string{strconv.Itoa(depth)},
		"parentHeight": []string{strconv.Itoa(parentHeight)},
	}
	var out FeedGetPostThread_Output
	if err := c.Get(ctx, syntax.NSID("app.bsky.feed.getPostThread"), params, &out); err != nil {
		return nil, err
	}
	if out.Thread == nil || out.Thread.FeedDefs_ThreadViewPost == nil || out.Thread.FeedDefs_ThreadViewPost.Post == nil {
		return nil, fmt.Errorf("%w: %s", ErrThreadUnavailable, uri)
	}
	return out.Thread.FeedDefs_ThreadViewPost, nil
}

func (c *APIClient) GetAuthorFeed(ctx context.Context, actor string, cursor string, limit int) (*FeedGetAuthorFeed_Output, error) {
	params := url.Values{
		"actor": []string{actor},
		"limit": []string{strconv.Itoa(limit)},
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	var out FeedGetAuthorFeed_Output
	if err := c.Get(ctx, syntax.NSID("app.bsky.feed.getAuthorFeed"), params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) UploadBlob(ctx context.Context, data []byte, mimeType string) (*LexBlob, error) {
	var out RepoUploadBlob_Output
	if err := c.postBytes(ctx, syntax.NSID("com.atproto.repo.uploadBlob"), mimeType, data, &out); err != nil {
		return nil, err
	}
	if out.Blob == nil {
		return nil, errors.New("uploadBlob response missing blob")
	}
	return out.Blob, nil
}

// CreateRecord writes a record in to the logged-in account's repo, with a server-assigned record key.
func (c *APIClient) CreateRecord(ctx context.Context, collection syntax.NSID, record any) (*RepoCreateRecord_Output, error) {
	if c.AccountDID == nil {
		return nil, ErrNotLoggedIn
	}
	body := RepoCreateRecord_Input{
		Collection: collection.String(),
		Repo:       c.AccountDID.String(),
		Record:     record,
	}
	var out RepoCreateRecord_Output
	if err := c.Post(ctx, syntax.NSID("com.atproto.repo.createRecord"), &body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) DeleteRecord(ctx context.Context, collection syntax.NSID, rkey syntax.RecordKey) error {
	if c.AccountDID == nil {
		return ErrNotLoggedIn
	}
	body := RepoDeleteRecord_Input{
		Collection: collection.String(),
		Repo:       c.AccountDID.String(),
		Rkey:       rkey.String(),
	}
	return c.Post(ctx, syntax.NSID("com.atproto.repo.deleteRecord"), &body, nil)
}
