// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"

	httpval "github.com/stacklok/toolhive-core/validation/http"
	"golang.org/x/net/http/httpguts"

	autherrors "github.com/stacklok/rpauth/pkg/errors"
)

const (
	// DefaultMaxResponseSize is the maximum response body size read (1MB).
	DefaultMaxResponseSize = 1024 * 1024

	// ContentTypeJSON is the JSON content type.
	ContentTypeJSON = "application/json"

	// ContentTypeFormURLEncoded is the form-urlencoded content type.
	ContentTypeFormURLEncoded = "application/x-www-form-urlencoded"
)

// HTTPDoer is the subset of *http.Client used by Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response is the status code and body of a completed round trip.
// A 4xx or 5xx status is still a Response; interpreting it is up to the caller.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client performs single, unretried requests against OAuth endpoints.
type Client struct {
	doer            HTTPDoer
	maxResponseSize int64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPDoer replaces the underlying HTTP client.
// The replacement is responsible for its own TLS, timeout and redirect policy.
func WithHTTPDoer(doer HTTPDoer) ClientOption {
	return func(c *Client) {
		c.doer = doer
	}
}

// WithMaxResponseSize bounds how many body bytes are read. Out-of-range
// values keep DefaultMaxResponseSize.
func WithMaxResponseSize(n int64) ClientOption {
	return func(c *Client) {
		if n > 0 && n < math.MaxInt64 {
			c.maxResponseSize = n
		}
	}
}

// NewClient returns a Client backed by a hardened *http.Client built with
// NewHttpClientBuilder defaults.
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{maxResponseSize: DefaultMaxResponseSize}
	for _, opt := range opts {
		opt(c)
	}
	if c.doer == nil {
		hc, err := NewHttpClientBuilder().Build()
		if err != nil {
			return nil, err
		}
		c.doer = hc
	}
	return c, nil
}

// PostForm sends fields as an application/x-www-form-urlencoded body.
func (c *Client) PostForm(ctx context.Context, rawURL string, fields url.Values, headers map[string]string) (*Response, error) {
	merged := map[string]string{
		"Content-Type": ContentTypeFormURLEncoded,
		"Accept":       ContentTypeJSON,
	}
	for k, v := range headers {
		merged[k] = v
	}
	return c.do(ctx, http.MethodPost, rawURL, strings.NewReader(fields.Encode()), merged)
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	merged := map[string]string{
		"Accept": ContentTypeJSON,
	}
	for k, v := range headers {
		merged[k] = v
	}
	return c.do(ctx, http.MethodGet, rawURL, nil, merged)
}

func (c *Client) do(ctx context.Context, method, rawURL string, body io.Reader, headers map[string]string) (*Response, error) {
	target, err := ValidateRequestURL(rawURL)
	if err != nil {
		return nil, err
	}
	if err := ValidateHeaders(headers); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, autherrors.New(autherrors.KindTransportInvalidURL, "failed to create request", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, classifyFailure(ctx, method, target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize+1))
	if err != nil {
		return nil, autherrors.NewTransportError(ReasonBodyReadFailed,
			fmt.Sprintf("failed to read %s response from %s", method, redactURL(target)), err)
	}
	if int64(len(data)) > c.maxResponseSize {
		return nil, autherrors.NewTransportError(ReasonResponseTooLarge,
			fmt.Sprintf("%s response from %s exceeds %d bytes", method, redactURL(target), c.maxResponseSize), nil)
	}

	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// ValidateRequestURL checks that rawURL is an absolute http or https URL.
func ValidateRequestURL(rawURL string) (*url.URL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" {
		return nil, autherrors.New(autherrors.KindTransportInvalidURL, "request URL must be an absolute URL", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != HttpScheme && scheme != HttpsScheme {
		return nil, autherrors.Newf(autherrors.KindTransportInvalidURLScheme,
			"only http/https URLs are supported, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, autherrors.New(autherrors.KindTransportInvalidURL, "request URL must include a host", nil)
	}

	return parsed, nil
}

// ValidateHeaders rejects header names or values that could split the request.
// Values are checked for control characters only, so long bearer tokens pass.
func ValidateHeaders(headers map[string]string) error {
	for name, value := range headers {
		if strings.ContainsAny(name, "\r\n") || strings.ContainsAny(value, "\r\n") {
			return autherrors.New(autherrors.KindTransportInvalidHeader,
				"header names/values must not contain CR/LF characters", nil)
		}
		if err := httpval.ValidateHeaderName(name); err != nil {
			return autherrors.New(autherrors.KindTransportInvalidHeader, "invalid header name", err)
		}
		if !httpguts.ValidHeaderFieldValue(value) {
			return autherrors.New(autherrors.KindTransportInvalidHeader,
				"header values must not contain control characters", nil)
		}
	}
	return nil
}
