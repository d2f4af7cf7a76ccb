// Package gcloud is the shared transport for the Google REST services the
// gateways talk to. Authentication comes from google.golang.org/api so the
// same service-account file works for every backend.
package gcloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	htransport "google.golang.org/api/transport/http"
)

// ErrUnreachable wraps transport failures (DNS, refused, reset, deadline).
var ErrUnreachable = errors.New("google api unreachable")

type Client struct {
	http     *http.Client
	endpoint string
}

// New builds a client rooted at endpoint (for example
// "https://firestore.googleapis.com/"). opts are passed to the transport,
// typically option.WithCredentialsFile plus option.WithScopes, or
// option.WithHTTPClient in tests.
func New(ctx context.Context, endpoint string, opts ...option.ClientOption) (*Client, error) {
	hc, _, err := htransport.NewClient(ctx, opts...)

	if err != nil {
		return nil, fmt.Errorf("google transport: %w", err)
	}

	return NewWithHTTPClient(hc, endpoint), nil
}

func NewWithHTTPClient(hc *http.Client, endpoint string) *Client {
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}

	return &Client{http: hc, endpoint: endpoint}
}

// Do sends in as JSON (when non-nil) to path relative to the endpoint and
// decodes the response into out (when non-nil). Non-2xx responses come back
// as *googleapi.Error.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader

	if in != nil {
		b, err := json.Marshal(in)

		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}

		body = bytes.NewReader(b)
	}

	u := c.endpoint + strings.TrimPrefix(path, "/")

	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)

	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)

	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}

	defer googleapi.CloseBody(res)

	err = googleapi.CheckResponse(res)

	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}

	err = json.NewDecoder(res.Body).Decode(out)

	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// StatusCode returns the HTTP status of a *googleapi.Error, or 0.
func StatusCode(err error) int {
	var apiErr *googleapi.Error

	if errors.As(err, &apiErr) {
		return apiErr.Code
	}

	return 0
}

// Message returns the provider's message for a *googleapi.Error.
func Message(err error) string {
	var apiErr *googleapi.Error

	if errors.As(err, &apiErr) {
		return apiErr.Message
	}

	return ""
}

// IsUnavailable reports failures the caller should surface as an upstream
// outage rather than a client mistake.
func IsUnavailable(err error) bool {
	if errors.Is(err, ErrUnreachable) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	code := StatusCode(err)

	return code == 0 || code >= 500 || code == http.StatusTooManyRequests
}
