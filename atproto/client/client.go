package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/dreambot/dreambot/atproto/syntax"
	"github.com/dreambot/dreambot/util"

	"github.com/carlmjohnson/versioninfo"
)

// AuthMethod sends a request with credentials attached, handling any credential refresh.
type AuthMethod interface {
	DoWithAuth(c *http.Client, req *http.Request) (*http.Response, error)
}

type APIClient struct {
	// Inner HTTP client. May be customized after the overall APIClient struct is created.
	HTTPClient *http.Client

	// Host URL prefix: scheme, hostname, and port. This field is required.
	Host string

	// Optional auth method. If nil, requests are sent unauthenticated.
	Auth AuthMethod

	// Optional HTTP headers included with every request.
	DefaultHeaders http.Header

	// DID of the logged-in account, if any.
	AccountDID *syntax.DID

	// Handle of the logged-in account, as reported at session creation.
	AccountHandle string
}

// Creates an unauthenticated client for the given host, with a default User-Agent.
func NewAPIClient(host string) *APIClient {
	return &APIClient{
		HTTPClient: util.RobustHTTPClient(),
		Host:       host,
		DefaultHeaders: http.Header{
			"User-Agent": []string{"dreambot/" + versioninfo.Short()},
		},
	}
}

// Full-power method for atproto API requests. The caller is responsible for closing the response body.
func (c *APIClient) Do(ctx context.Context, req *APIRequest) (*http.Response, error) {
	httpReq, err := req.HTTPRequest(ctx, c.Host, c.DefaultHeaders)
	if err != nil {
		return nil, err
	}

	if c.HTTPClient == nil {
		c.HTTPClient = util.RobustHTTPClient()
	}

	if c.Auth != nil {
		return c.Auth.DoWithAuth(c.HTTPClient, httpReq)
	}
	return c.HTTPClient.Do(httpReq)
}

// Helper for JSON "Query" API calls. If out is non-nil, the JSON response body is decoded in to it.
func (c *APIClient) Get(ctx context.Context, endpoint syntax.NSID, params url.Values, out any) error {
	req := APIRequest{
		Method:      MethodQuery,
		Endpoint:    endpoint,
		QueryParams: params,
		Headers: http.Header{
			"Accept": []string{"application/json"},
		},
	}
	resp, err := c.Do(ctx, &req)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

// Helper for JSON-to-JSON "Procedure" API calls. If out is nil, the response body is discarded.
func (c *APIClient) Post(ctx context.Context, endpoint syntax.NSID, body any, out any) error {
	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.postBytes(ctx, endpoint, "application/json", bodyJSON, out)
}

func (c *APIClient) postBytes(ctx context.Context, endpoint syntax.NSID, contentType string, body []byte, out any) error {
	req := APIRequest{
		Method:   MethodProcedure,
		Endpoint: endpoint,
		Body:     bytes.NewReader(body),
		GetBody: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		},
		Headers: http.Header{
			"Accept":       []string{"application/json"},
			"Content-Type": []string{contentType},
		},
	}
	resp, err := c.Do(ctx, &req)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()

	if !(resp.StatusCode >= 200 && resp.StatusCode < 300) {
		var eb ErrorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil {
			return &APIError{StatusCode: resp.StatusCode}
		}
		return eb.APIError(resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("expected JSON response body: %w", err)
	}
	return nil
}
