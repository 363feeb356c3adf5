package firehose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dreambot/dreambot/util"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

// Consumer subscribes to a relay's repo event stream, decodes frames, and hands commits to a Scheduler.
//
// The last-seen sequence number is only kept in memory: after a dropped connection the consumer resumes from it, but a restarted process starts at the live head of the stream.
type Consumer struct {
	RelayHost string
	UserAgent string
	Scheduler Scheduler
	Logger    *slog.Logger

	// Optional starting cursor. Zero or negative means "live head".
	Cursor int64

	lastSeq   atomic.Int64
	connected atomic.Bool
}

type instrumentedReader struct {
	r            io.Reader
	bytesCounter prometheus.Counter
}

func (sr *instrumentedReader) Read(p []byte) (int, error) {
	n, err := sr.r.Read(p)
	sr.bytesCounter.Add(float64(n))
	return n, err
}

func (c *Consumer) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// Sequence number of the most recent commit seen (or the configured cursor, if none yet).
func (c *Consumer) LastSeq() int64 {
	return c.lastSeq.Load()
}

// Whether there is currently an open websocket subscription.
func (c *Consumer) Connected() bool {
	return c.connected.Load()
}

func sleepForBackoff(b int) time.Duration {
	if b == 0 {
		return 0
	}
	if b < 10 {
		return time.Duration(b)*2*time.Second + time.Millisecond*time.Duration(rand.Intn(1000))
	}
	return time.Second * 30
}

func (c *Consumer) subscribeURL() (string, error) {
	u, err := url.Parse(util.WebsocketURLForHost(c.RelayHost))
	if err != nil {
		return "", fmt.Errorf("invalid relay host URI: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/xrpc/com.atproto.sync.subscribeRepos"
	if seq := c.lastSeq.Load(); seq > 0 {
		u.RawQuery = fmt.Sprintf("cursor=%d", seq)
	}
	return u.String(), nil
}

// Run dials the relay and consumes the stream until the context is cancelled, re-dialing with backoff whenever the connection drops.
func (c *Consumer) Run(ctx context.Context) error {
	logger := c.logger()
	if c.Cursor > 0 {
		c.lastSeq.Store(c.Cursor)
	}

	dialer := websocket.DefaultDialer
	var backoff int
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		u, err := c.subscribeURL()
		if err != nil {
			return err
		}

		logger.Info("subscribing to repo event stream", "upstream", c.RelayHost, "cursor", c.lastSeq.Load())
		con, _, err := dialer.DialContext(ctx, u, http.Header{
			"User-Agent": []string{c.UserAgent},
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("dialing failed", "upstream", c.RelayHost, "err", err, "backoff", backoff)
			if !sleepCtx(ctx, sleepForBackoff(backoff)) {
				return nil
			}
			backoff++
			reconnectsCounter.Inc()
			continue
		}

		backoff = 0
		c.connected.Store(true)
		err = c.HandleRepoStream(ctx, con)
		c.connected.Store(false)
		if ctx.Err() != nil {
			return nil
		}
		logger.Warn("stream connection dropped", "upstream", c.RelayHost, "err", err)
		if !sleepCtx(ctx, sleepForBackoff(1)) {
			return nil
		}
		reconnectsCounter.Inc()
	}
}

// HandleRepoStream reads frames from an established connection until it fails or the context ends.
//
// Per-frame problems (decode failures, relay error frames, non-commit messages) are logged and skipped; only connection-level errors are returned.
// Commits are handed to the Scheduler with ctx itself, so work already queued is not cancelled when the connection drops.
func (c *Consumer) HandleRepoStream(ctx context.Context, con *websocket.Conn) error {
	// scheduled work belongs to the caller, not to this connection
	workCtx := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := c.logger()
	remoteAddr := con.RemoteAddr().String()

	go func() {
		t := time.NewTicker(time.Second * 30)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				if err := con.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second*10)); err != nil {
					logger.Warn("failed to ping", "err", err)
				}
			case <-ctx.Done():
				con.Close()
				return
			}
		}
	}()

	eventsCounter := eventsFromStreamCounter.WithLabelValues(remoteAddr)
	bytesCounter := bytesFromStreamCounter.WithLabelValues(remoteAddr)

	lastSeq := c.lastSeq.Load()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		mt, rawReader, err := con.NextReader()
		if err != nil {
			return err
		}
		if mt != websocket.BinaryMessage {
			framesSkippedCounter.WithLabelValues("not_binary").Inc()
			continue
		}

		frame, err := io.ReadAll(&instrumentedReader{r: rawReader, bytesCounter: bytesCounter})
		if err != nil {
			return fmt.Errorf("reading frame: %w", err)
		}
		eventsCounter.Inc()

		commit, err := DecodeFrame(ctx, frame)
		if err != nil {
			var ef *ErrorFrame
			if errors.As(err, &ef) {
				framesSkippedCounter.WithLabelValues("error_frame").Inc()
				logger.Warn("relay sent error frame", "name", ef.Name, "message", ef.Message)
			} else {
				framesSkippedCounter.WithLabelValues("decode_error").Inc()
				logger.Error("failed to decode stream frame", "err", err)
			}
			continue
		}
		if commit == nil {
			framesSkippedCounter.WithLabelValues("not_commit").Inc()
			continue
		}

		if commit.Seq < lastSeq {
			logger.Error("got events out of order from stream", "seq", commit.Seq, "prev", lastSeq)
		}
		lastSeq = commit.Seq
		c.lastSeq.Store(commit.Seq)
		lastSeqGauge.Set(float64(commit.Seq))

		if err := c.Scheduler.AddWork(workCtx, commit.Repo, commit); err != nil {
			return err
		}
	}
}

// returns false if the context was cancelled before the duration elapsed
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
