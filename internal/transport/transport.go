// Package transport is the injected fetch capability used by the engine.
//
// The engine never talks to the network itself. It calls a Fetcher with the
// built request parameters and receives either a Response or an error. A
// Response is fully read: its body is plain bytes so the engine can decode
// it without holding a live connection.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/roach88/gqlcache/internal/fetchopts"
)

// Fetcher performs one HTTP exchange for the given parameters.
type Fetcher interface {
	Fetch(ctx context.Context, params fetchopts.Params) (*Response, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, params fetchopts.Params) (*Response, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, params fetchopts.Params) (*Response, error) {
	return f(ctx, params)
}

// Response is a received HTTP response with its body already read.
type Response struct {
	StatusCode int         `json:"status"`
	StatusText string      `json:"statusText"`
	Header     http.Header `json:"-"`
	Body       []byte      `json:"-"`
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// HTTP is a Fetcher backed by net/http.
//
// Relative parameter URLs such as fetchopts.DefaultURL are resolved against
// BaseURL. Credentials are a browser concept and are not sent. No retries
// are attempted; retrying is a caller concern.
type HTTP struct {
	Client  *http.Client
	BaseURL string
}

// NewHTTP returns an HTTP fetcher using a pooled cleanhttp client.
func NewHTTP(baseURL string) *HTTP {
	return &HTTP{
		Client:  cleanhttp.DefaultPooledClient(),
		BaseURL: baseURL,
	}
}

// Fetch sends the request described by params.
func (h *HTTP) Fetch(ctx context.Context, params fetchopts.Params) (*Response, error) {
	target, err := h.resolve(params.URL)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	var contentType string
	switch b := params.Body.(type) {
	case fetchopts.JSONBody:
		body = strings.NewReader(string(b))
	case *fetchopts.MultipartForm:
		data, ct, err := b.Bytes("")
		if err != nil {
			return nil, fmt.Errorf("encode multipart body: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = ct
	}

	method := params.Method
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range params.Headers {
		req.Header.Set(k, v)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	client := h.Client
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		StatusText: StatusText(resp),
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func (h *HTTP) resolve(target string) (string, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid request url %q: %w", target, err)
	}
	if ref.IsAbs() || h.BaseURL == "" {
		return ref.String(), nil
	}
	base, err := url.Parse(h.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", h.BaseURL, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// StatusText returns the reason phrase of resp, e.g. "Not Found" for
// "404 Not Found", falling back to the standard text for the code.
func StatusText(resp *http.Response) string {
	prefix := strconv.Itoa(resp.StatusCode) + " "
	if text, ok := strings.CutPrefix(resp.Status, prefix); ok && text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
