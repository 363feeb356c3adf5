package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/dreambot/dreambot/atproto/syntax"
)

var (
	// atproto API "Query" Lexicon method, which is HTTP GET
	MethodQuery = http.MethodGet

	// atproto API "Procedure" Lexicon method, which is HTTP POST
	MethodProcedure = http.MethodPost
)

type APIRequest struct {
	// HTTP method (required)
	Method string

	// Lexicon endpoint (required)
	Endpoint syntax.NSID

	// Optional request body. If set, a 'Content-Type' header should be included in Headers.
	Body io.Reader

	// Optional function returning a fresh copy of Body; needed to re-send the request after a token refresh.
	GetBody func() (io.ReadCloser, error)

	QueryParams url.Values
	Headers     http.Header
}

// Creates an [http.Request] for this API request against the given host ("https://pds.example.com").
//
// Client-level headers are applied first; request-level headers take priority.
func (r *APIRequest) HTTPRequest(ctx context.Context, host string, clientHeaders http.Header) (*http.Request, error) {
	u, err := url.Parse(host)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, errors.New("empty hostname in host URL")
	}
	if u.Scheme == "" {
		return nil, errors.New("empty scheme in host URL")
	}
	if r.Endpoint == "" {
		return nil, errors.New("empty request endpoint")
	}
	u.Path = "/xrpc/" + r.Endpoint.String()
	u.RawQuery = ""
	if len(r.QueryParams) > 0 {
		u.RawQuery = r.QueryParams.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, r.Method, u.String(), r.Body)
	if err != nil {
		return nil, err
	}
	if r.GetBody != nil {
		httpReq.GetBody = r.GetBody
	}

	for k := range clientHeaders {
		httpReq.Header.Set(k, clientHeaders.Get(k))
	}
	for k := range r.Headers {
		httpReq.Header.Set(k, r.Headers.Get(k))
	}
	return httpReq, nil
}
