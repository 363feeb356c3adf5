// Package imagegen is a client for the external image-generation HTTP service.
//
// The service takes a JSON body {"prompts": [...]} and answers with the raw image bytes.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dreambot/dreambot/util"

	"github.com/carlmjohnson/versioninfo"
)

// Upper bound on a single generated image.
const MaxImageSize = 32 * 1024 * 1024

var ErrEmptyImage = errors.New("generation service returned an empty body")

// GenerationError is any failed generation call: transport failure, non-2xx status, or unusable body.
type GenerationError struct {
	// Zero when no response was received.
	StatusCode int
	Err        error
}

func (e *GenerationError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("image generation failed (HTTP %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("image generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

type generateRequest struct {
	Prompts []string `json:"prompts"`
}

type Client struct {
	URL        string
	HTTPClient *http.Client
	UserAgent  string
	Logger     *slog.Logger

	// Per-call timeout. Zero means only the HTTP client's own timeout applies.
	Timeout time.Duration
}

type Config struct {
	RetryMax int
	Timeout  time.Duration
	Logger   *slog.Logger
}

func NewClient(url string, cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		URL: url,
		HTTPClient: util.NewHTTPClient(util.HTTPClientConfig{
			RetryMax: cfg.RetryMax,
			Logger:   logger,
		}),
		UserAgent: "dreambot/" + versioninfo.Short(),
		Logger:    logger.With("system", "imagegen"),
		Timeout:   cfg.Timeout,
	}
}

// Generate sends the ordered prompt list to the service and returns the image bytes.
func (c *Client) Generate(ctx context.Context, prompts []string) ([]byte, error) {
	start := time.Now()
	body, err := json.Marshal(generateRequest{Prompts: prompts})
	if err != nil {
		return nil, &GenerationError{Err: err}
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, &GenerationError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	hc := c.HTTPClient
	if hc == nil {
		hc = util.RobustHTTPClient()
	}
	resp, err := hc.Do(req)
	if err != nil {
		generationsCounter.WithLabelValues("transport").Inc()
		return nil, &GenerationError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		generationsCounter.WithLabelValues("status").Inc()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &GenerationError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response status: %s", bytes.TrimSpace(msg)),
		}
	}

	img, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize+1))
	if err != nil {
		generationsCounter.WithLabelValues("transport").Inc()
		return nil, &GenerationError{StatusCode: resp.StatusCode, Err: err}
	}
	if len(img) == 0 {
		generationsCounter.WithLabelValues("empty").Inc()
		return nil, &GenerationError{StatusCode: resp.StatusCode, Err: ErrEmptyImage}
	}
	if len(img) > MaxImageSize {
		generationsCounter.WithLabelValues("too_large").Inc()
		return nil, &GenerationError{StatusCode: resp.StatusCode, Err: fmt.Errorf("image exceeds %d bytes", MaxImageSize)}
	}

	generationsCounter.WithLabelValues("ok").Inc()
	generationDuration.Observe(time.Since(start).Seconds())
	c.Logger.Debug("image generated", "prompts", len(prompts), "size", len(img), "duration", time.Since(start))
	return img, nil
}
