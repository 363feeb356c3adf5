package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/dreambot/dreambot/atproto/syntax"
)

// PasswordAuth holds the access/refresh token pair from a password session.
type PasswordAuth struct {
	Session SessionData

	lk sync.RWMutex
}

type SessionData struct {
	AccessToken  string
	RefreshToken string
	AccountDID   syntax.DID
	Host         string
	UserAgent    string
}

type createSessionInput struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type sessionOutput struct {
	AccessJwt  string  `json:"accessJwt"`
	RefreshJwt string  `json:"refreshJwt"`
	Did        string  `json:"did"`
	Handle     string  `json:"handle"`
	Active     *bool   `json:"active,omitempty"`
	Status     *string `json:"status,omitempty"`
}

func (a *PasswordAuth) accessToken() string {
	a.lk.RLock()
	defer a.lk.RUnlock()
	return a.Session.AccessToken
}

func (a *PasswordAuth) DoWithAuth(c *http.Client, req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+a.accessToken())
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}

	// on success, or most errors, just return HTTP response
	if (resp.StatusCode != http.StatusBadRequest && resp.StatusCode != http.StatusUnauthorized) || !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		return resp, nil
	}

	// parse the error response body (JSON) and check the error name
	defer resp.Body.Close()
	var eb ErrorBody
	if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode}
	}
	if eb.Name != "ExpiredToken" {
		return nil, eb.APIError(resp.StatusCode)
	}

	// ok, we had an expired token, try a refresh
	if err := a.Refresh(req.Context(), c); err != nil {
		return nil, err
	}

	retry := req.Clone(req.Context())
	if req.Body != nil {
		if req.GetBody == nil {
			return nil, errors.New("can not re-send request body after token refresh")
		}
		retry.Body, err = req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("API request retry GetBody failed: %w", err)
		}
	}
	retry.Header.Set("Authorization", "Bearer "+a.accessToken())
	return c.Do(retry)
}

// Refresh swaps the current refresh token for a new token pair.
func (a *PasswordAuth) Refresh(ctx context.Context, c *http.Client) error {
	a.lk.RLock()
	prior := a.Session.RefreshToken
	a.lk.RUnlock()

	a.lk.Lock()
	defer a.lk.Unlock()

	// another request already refreshed while we waited for the lock
	if prior != a.Session.RefreshToken {
		return nil
	}

	u := a.Session.Host + "/xrpc/com.atproto.server.refreshSession"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return err
	}
	if a.Session.UserAgent != "" {
		req.Header.Set("User-Agent", a.Session.UserAgent)
	}
	// NOTE: refresh token here, not access token
	req.Header.Set("Authorization", "Bearer "+a.Session.RefreshToken)

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !(resp.StatusCode >= 200 && resp.StatusCode < 300) {
		var eb ErrorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil {
			return &APIError{StatusCode: resp.StatusCode}
		}
		return eb.APIError(resp.StatusCode)
	}

	var out sessionOutput
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	a.Session.AccessToken = out.AccessJwt
	a.Session.RefreshToken = out.RefreshJwt
	return nil
}

type LoginConfig struct {
	// PDS or entryway URL, eg "https://bsky.social"
	Host       string
	Identifier string
	Password   string

	// Optional; defaults to util.RobustHTTPClient()
	HTTPClient *http.Client
	UserAgent  string
}

// LoginWithPassword creates a session (com.atproto.server.createSession) and returns a client which authenticates every request with it.
func LoginWithPassword(ctx context.Context, cfg LoginConfig) (*APIClient, error) {
	if cfg.Identifier == "" || cfg.Password == "" {
		return nil, errors.New("login identifier and password are both required")
	}

	c := NewAPIClient(strings.TrimSuffix(cfg.Host, "/"))
	if cfg.HTTPClient != nil {
		c.HTTPClient = cfg.HTTPClient
	}
	if cfg.UserAgent != "" {
		c.DefaultHeaders.Set("User-Agent", cfg.UserAgent)
	}

	var out sessionOutput
	if err := c.Post(ctx, syntax.NSID("com.atproto.server.createSession"), &createSessionInput{
		Identifier: cfg.Identifier,
		Password:   cfg.Password,
	}, &out); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	if out.Active != nil && !*out.Active {
		status := ""
		if out.Status != nil {
			status = *out.Status
		}
		return nil, fmt.Errorf("account is disabled: %s", status)
	}

	did, err := syntax.ParseDID(out.Did)
	if err != nil {
		return nil, fmt.Errorf("session returned invalid DID: %w", err)
	}

	c.Auth = &PasswordAuth{
		Session: SessionData{
			AccessToken:  out.AccessJwt,
			RefreshToken: out.RefreshJwt,
			AccountDID:   did,
			Host:         c.Host,
			UserAgent:    c.DefaultHeaders.Get("User-Agent"),
		},
	}
	c.AccountDID = &did
	c.AccountHandle = out.Handle
	return c, nil
}
