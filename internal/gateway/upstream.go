// Package gateway provides the downstream HTTP client.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// UpstreamResult carries a downstream response through the pipeline
// unchanged.
type UpstreamResult struct {
	Status int
	Header http.Header
	Body   []byte
}

// Upstream performs one downstream call. Implementations must honor
// ctx cancellation so an abandoned attempt does not run to completion
// in the background.
type Upstream interface {
	Call(ctx context.Context, path string, rawQuery string) (*UpstreamResult, error)
}

// HTTPUpstream calls a downstream HTTP dependency. 5xx responses are
// classified transient, deadline errors as upstream timeouts; 2xx-4xx
// pass through as results.
type HTTPUpstream struct {
	base   *url.URL
	client *http.Client
}

var _ Upstream = (*HTTPUpstream)(nil)

// NewHTTPUpstream constructs an upstream client for a base URL.
func NewHTTPUpstream(baseURL string, client *http.Client) (*HTTPUpstream, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.New("upstream url must be absolute")
	}
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPUpstream{base: base, client: client}, nil
}

// Call performs a GET against the downstream dependency.
func (u *HTTPUpstream) Call(ctx context.Context, path string, rawQuery string) (*UpstreamResult, error) {
	if u == nil || u.client == nil {
		return nil, errors.New("upstream is not initialized")
	}
	target := *u.base
	target.Path = path
	target.RawQuery = rawQuery

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, Wrap(CodeUpstreamPermanent, "build upstream request", err)
	}
	resp, err := u.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, Wrap(CodeUpstreamTimeout, "upstream timeout", err)
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, Wrap(CodeUpstreamTransient, "upstream connection failure", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, Wrap(CodeUpstreamTimeout, "upstream timeout", err)
		}
		return nil, Wrap(CodeUpstreamTransient, "read upstream response", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, Wrap(CodeUpstreamTransient, fmt.Sprintf("upstream status %d", resp.StatusCode), nil)
	}
	return &UpstreamResult{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   body,
	}, nil
}
