package authpipe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/MrEthical07/authpipe/internal/flows"
)

// NewRequest returns a RequestBuilder for method and path, resolved against
// the base URL. A non-nil body is encoded as JSON once and replayed on every
// attempt.
func (c *Client) NewRequest(method, path string, body any) (RequestBuilder, error) {
	target, err := c.resolve(path)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if body != nil {
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
	}

	endpoint := target.String()
	return func(ctx context.Context) (*http.Request, error) {
		var r io.Reader
		if payload != nil {
			r = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, r)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, nil
}

// Get sends an authenticated GET. A non-2xx answer is a *StatusError.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.send(ctx, http.MethodGet, path, nil)
}

// GetJSON sends an authenticated GET and decodes the JSON answer into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return decodeInto(resp, out)
}

// Post sends body as JSON. A non-2xx answer is a *StatusError.
func (c *Client) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.send(ctx, http.MethodPost, path, body)
}

// PostJSON sends body as JSON and decodes the JSON answer into out.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	resp, err := c.send(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	return decodeInto(resp, out)
}

// Patch sends a PATCH without a body and discards the answer.
func (c *Client) Patch(ctx context.Context, path string) error {
	resp, err := c.send(ctx, http.MethodPatch, path, nil)
	if err != nil {
		return err
	}
	flows.Drain(resp)
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	build, err := c.NewRequest(method, path, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.Execute(ctx, build)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(flows.NewStatusError(resp))
	}
	return resp, nil
}

func decodeInto(resp *http.Response, out any) error {
	defer flows.Drain(resp)
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", resp.Request.URL.Path, err)
	}
	return nil
}

// statusError converts the flow error into the public type. Other errors
// pass through.
func statusError(err error) error {
	var se *flows.StatusError
	if !errors.As(err, &se) {
		return err
	}
	return &StatusError{StatusCode: se.StatusCode, Status: se.Status, Body: se.Body}
}
