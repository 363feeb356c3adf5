package dreambot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dreambot/dreambot/atproto/client"
	"github.com/dreambot/dreambot/atproto/syntax"
	"github.com/dreambot/dreambot/firehose"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("dreambot")

// Session is the authenticated account capability the bot needs.
type Session interface {
	ThreadFetcher
	Poster
	GetProfile(ctx context.Context, actor string) (*client.ActorDefs_ProfileViewDetailed, error)
}

type ImageGenerator interface {
	Generate(ctx context.Context, prompts []string) ([]byte, error)
}

type Config struct {
	// Account the bot posts as. Posts authored by it never trigger.
	SelfDID syntax.DID

	// Bounds thread fetch, generation and posting for a single trigger. Zero means no bound.
	TriggerTimeout time.Duration

	ParentHeight int

	HandleCacheSize int
	HandleCacheTTL  time.Duration

	Logger *slog.Logger
}

// Bot turns trigger posts from the firehose in to image replies.
type Bot struct {
	session Session
	images  ImageGenerator

	selfDID        syntax.DID
	triggerTimeout time.Duration
	parentHeight   int

	handleCache *expirable.LRU[syntax.DID, string]
	logger      *slog.Logger
}

func NewBot(sess Session, images ImageGenerator, cfg Config) *Bot {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	size := cfg.HandleCacheSize
	if size <= 0 {
		size = 10_000
	}
	ttl := cfg.HandleCacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	parentHeight := cfg.ParentHeight
	if parentHeight <= 0 {
		parentHeight = DefaultParentHeight
	}
	return &Bot{
		session:        sess,
		images:         images,
		selfDID:        cfg.SelfDID,
		triggerTimeout: cfg.TriggerTimeout,
		parentHeight:   parentHeight,
		handleCache:    expirable.NewLRU[syntax.DID, string](size, nil, ttl),
		logger:         logger.With("system", "dreambot"),
	}
}

// HandleCommit processes every op in a commit. Per-op failures are logged and never stop the stream, so the returned error is always nil.
func (b *Bot) HandleCommit(ctx context.Context, commit *firehose.Commit) error {
	for _, op := range commit.Ops {
		if err := b.processOp(ctx, op, commit); err != nil {
			b.logger.Error("failed to process repo op", "repo", commit.Repo, "seq", commit.Seq, "path", op.Path, "err", err)
		}
	}
	return nil
}

func (b *Bot) processOp(ctx context.Context, op *firehose.RepoOp, commit *firehose.Commit) error {
	if op.Action != "create" {
		return nil
	}
	collection, _, err := syntax.ParseRepoPath(op.Path)
	if err != nil || collection != PostCollection {
		return nil
	}

	rec, err := ExtractRecord(op, commit)
	if errors.Is(err, ErrNoRecord) {
		opsSkipped.WithLabelValues("no_record").Inc()
		b.logger.Debug("skipping op without record", "repo", commit.Repo, "path", op.Path, "err", err)
		return nil
	}
	if err != nil {
		opsSkipped.WithLabelValues("bad_record").Inc()
		return err
	}

	if !ShouldTrigger(rec.Text) {
		return nil
	}
	if b.selfDID != "" && rec.Author == b.selfDID {
		opsSkipped.WithLabelValues("self").Inc()
		b.logger.Debug("ignoring trigger phrase in own post", "uri", rec.URI)
		return nil
	}
	return b.HandleTrigger(ctx, rec)
}

// HandleTrigger runs the full pipeline for one trigger post: thread prompts, generation, reply. Any failure drops the trigger without a reply.
func (b *Bot) HandleTrigger(ctx context.Context, rec *PostRecord) error {
	ctx, span := tracer.Start(ctx, "HandleTrigger")
	defer span.End()
	span.SetAttributes(
		attribute.String("uri", rec.URI.String()),
		attribute.String("author", rec.Author.String()),
	)

	if b.triggerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.triggerTimeout)
		defer cancel()
	}

	start := time.Now()
	logger := b.logger.With("uri", rec.URI, "author", rec.Author)
	logger.Info("handling trigger post")

	fail := func(result string, err error) error {
		triggersCounter.WithLabelValues(result).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		return err
	}

	handle, err := b.resolveHandle(ctx, rec.Author)
	if err != nil {
		return fail("profile_failed", fmt.Errorf("fetching author profile: %w", err))
	}

	prompts, err := CollectPrompts(ctx, b.session, rec, b.parentHeight)
	if err != nil {
		return fail("thread_failed", err)
	}
	span.SetAttributes(attribute.Int("prompts", len(prompts)))
	logger.Info("collected prompts", "prompts", prompts)

	img, err := b.images.Generate(ctx, prompts)
	if err != nil {
		return fail("generation_failed", err)
	}

	trigger := client.RepoStrongRef{Uri: rec.URI.String(), Cid: rec.CID.String()}
	reply := ComposeReply(handle, rec.Author, trigger, prompts, img)
	ref, err := PostReply(ctx, b.session, reply)
	if err != nil {
		return fail("posting_failed", err)
	}

	triggersCounter.WithLabelValues("ok").Inc()
	triggerDuration.Observe(time.Since(start).Seconds())
	logger.Info("posted image reply", "reply", ref.Uri, "duration", time.Since(start))
	return nil
}

func (b *Bot) resolveHandle(ctx context.Context, did syntax.DID) (string, error) {
	if h, ok := b.handleCache.Get(did); ok {
		return h, nil
	}
	profile, err := b.session.GetProfile(ctx, did.String())
	if err != nil {
		return "", err
	}
	b.handleCache.Add(did, profile.Handle)
	return profile.Handle, nil
}
