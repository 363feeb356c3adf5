package util

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// LeveledSlog adapts a slog.Logger to the retryablehttp.LeveledLogger interface.
type LeveledSlog struct {
	inner *slog.Logger
}

// re-writes HTTP client ERROR to WARN level (the caller gets the error anyways)
func (l LeveledSlog) Error(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l LeveledSlog) Warn(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l LeveledSlog) Info(msg string, keysAndValues ...any) {
	l.inner.Info(msg, keysAndValues...)
}

// re-writes HTTP client DEBUG to INFO level (this is where retry is logged)
func (l LeveledSlog) Debug(msg string, keysAndValues ...any) {
	l.inner.Info(msg, keysAndValues...)
}

// HTTPClientConfig controls construction of outbound HTTP clients.
type HTTPClientConfig struct {
	// Number of retries on connection errors, 5xx (except 501), and 429. Zero means a single attempt.
	RetryMax int
	// Overall per-request timeout, including retries. Zero means no timeout.
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewHTTPClient returns a stdlib *http.Client backed by retryablehttp.
//
// Retries are opt-in: the default config makes exactly one attempt per request, which is what the bot pipeline wants (every failure is a drop, not a retry).
func NewHTTPClient(cfg HTTPClientConfig) *http.Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Transport = otelhttp.NewTransport(retryClient.HTTPClient.Transport)
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(LeveledSlog{inner: logger.With("system", "http")})
	// hand non-2xx responses back to the caller instead of replacing them with a "giving up" error
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client := retryClient.StandardClient()
	client.Timeout = cfg.Timeout
	return client
}

// Client with decent general-purpose defaults: 20 second timeout, no retries.
func RobustHTTPClient() *http.Client {
	return NewHTTPClient(HTTPClientConfig{
		Timeout: 20 * time.Second,
	})
}
