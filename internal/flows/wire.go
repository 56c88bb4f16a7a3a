package flows

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MrEthical07/authpipe/tokenstore"
)

const (
	// maxErrorBody bounds how much of a rejected response is kept.
	maxErrorBody = 4 << 10
	// maxDrain bounds how much of a discarded body is read before closing.
	maxDrain = 64 << 10
)

type loginRequest struct {
	Login      string `json:"login"`
	Password   string `json:"password"`
	Device     string `json:"device,omitempty"`
	DeviceInfo string `json:"deviceInfo,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
	Device       string `json:"device,omitempty"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (r tokenResponse) pair() tokenstore.TokenPair {
	return tokenstore.TokenPair{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// StatusError reports a non-2xx response. Body holds at most the first 4 KiB.
type StatusError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *StatusError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return "server responded " + status
}

// NewStatusError consumes and closes resp.Body.
func NewStatusError(resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	Drain(resp)
	return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: body}
}

// Drain discards the rest of resp.Body and closes it so the connection can
// be reused.
func Drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
	_ = resp.Body.Close()
}

// JSONRequest builds a POST request carrying v as JSON.
func JSONRequest(ctx context.Context, method, endpoint string, v any) (*http.Request, error) {
	var body io.Reader
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	if v != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func is2xx(code int) bool {
	return code >= 200 && code < 300
}

func decodeTokens(resp *http.Response) (tokenstore.TokenPair, error) {
	defer Drain(resp)
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return tokenstore.TokenPair{}, fmt.Errorf("decode token response: %w", err)
	}
	return tr.pair(), nil
}

// oauthRejection reports whether a 400 body names an OAuth-style credential
// error.
func oauthRejection(body []byte) bool {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return false
	}
	for _, code := range []string{er.Error, er.Code} {
		switch strings.ToLower(code) {
		case "invalid_grant", "invalid_token":
			return true
		}
	}
	return false
}

func cancelled(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
