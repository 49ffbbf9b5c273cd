// Package target supplies ready-made upload destinations: an HTTP target for
// REST backends and a Postgres target for direct table inserts. Both produce
// core.UploadFunc values and matching success predicates, so datasets pick a
// destination by composition rather than inheritance.
package target

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rowlift/rowlift/internal/core"
)

// maxResponseBody caps how much of an upstream response is retained.
const maxResponseBody = 64 * 1024

// HTTPResult is the settled outcome of one HTTP row delivery. A non-2xx
// status is a result, not an error: the success predicate classifies it.
type HTTPResult struct {
	StatusCode int
	Body       []byte
}

// HTTPTarget posts row payloads to a REST backend.
type HTTPTarget struct {
	client  *http.Client
	baseURL string
	headers map[string]string
}

// HTTPOption customizes an HTTPTarget.
type HTTPOption func(*HTTPTarget)

// WithClient replaces the default HTTP client.
func WithClient(c *http.Client) HTTPOption {
	return func(t *HTTPTarget) { t.client = c }
}

// WithHeader adds a header to every request, e.g. an authorization token.
func WithHeader(key, value string) HTTPOption {
	return func(t *HTTPTarget) { t.headers[key] = value }
}

// NewHTTPTarget creates a target rooted at baseURL.
func NewHTTPTarget(baseURL string, opts ...HTTPOption) *HTTPTarget {
	t := &HTTPTarget{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Uploader returns an upload function that POSTs each payload to path,
// encoded per the payload's format.
func (t *HTTPTarget) Uploader(path string) core.UploadFunc {
	return func(ctx context.Context, payload *core.Payload) (any, error) {
		var body []byte
		var contentType string
		var err error

		switch payload.Format {
		case core.PayloadMultipart:
			body, contentType, err = payload.EncodeMultipart()
		default:
			contentType = "application/json"
			body, err = payload.EncodeJSON()
		}
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		for k, v := range t.headers {
			req.Header.Set(k, v)
		}

		resp, err := t.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		out := &HTTPResult{StatusCode: resp.StatusCode}
		out.Body, _ = io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		return out, nil
	}
}

// Success reports whether the HTTP result carries a 2xx status.
func (t *HTTPTarget) Success(result any) bool {
	r, ok := result.(*HTTPResult)
	return ok && r.StatusCode >= 200 && r.StatusCode < 300
}
