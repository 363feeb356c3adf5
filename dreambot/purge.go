package dreambot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dreambot/dreambot/atproto/client"
	"github.com/dreambot/dreambot/atproto/syntax"
)

const purgePageSize = 100

type Purger interface {
	GetAuthorFeed(ctx context.Context, actor string, cursor string, limit int) (*client.FeedGetAuthorFeed_Output, error)
	DeleteRecord(ctx context.Context, collection syntax.NSID, rkey syntax.RecordKey) error
}

// PurgePosts deletes every post in the account's author feed, following the feed cursor until it runs out. Reposts of other accounts' posts are skipped.
//
// With dryRun set, nothing is deleted; the returned count is what would have been.
func PurgePosts(ctx context.Context, sess Purger, account syntax.DID, dryRun bool, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var deleted int
	seen := make(map[string]bool)
	cursor := ""
	for {
		resp, err := sess.GetAuthorFeed(ctx, account.String(), cursor, purgePageSize)
		if err != nil {
			return deleted, fmt.Errorf("fetching author feed: %w", err)
		}
		if len(resp.Feed) == 0 {
			break
		}

		for _, item := range resp.Feed {
			if item.Post == nil || item.Post.Uri == "" || seen[item.Post.Uri] {
				continue
			}
			seen[item.Post.Uri] = true

			aturi, err := syntax.ParseATURI(item.Post.Uri)
			if err != nil {
				logger.Warn("skipping feed item with invalid URI", "uri", item.Post.Uri, "err", err)
				continue
			}
			if aturi.Authority() != account.String() {
				continue
			}
			collection, err := aturi.Collection()
			if err != nil || collection != PostCollection {
				continue
			}
			rkey, err := aturi.RecordKey()
			if err != nil {
				continue
			}

			if dryRun {
				logger.Info("would delete post", "uri", aturi)
				deleted++
				continue
			}
			logger.Info("deleting post", "uri", aturi)
			if err := sess.DeleteRecord(ctx, collection, rkey); err != nil {
				return deleted, fmt.Errorf("deleting %s: %w", aturi, err)
			}
			deleted++
		}

		if resp.Cursor == nil || *resp.Cursor == "" {
			break
		}
		cursor = *resp.Cursor
	}
	return deleted, nil
}
