package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHeaders(t *testing.T) (*httptest.Server, *http.Header) {
	t.Helper()
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestRequestIDGeneratedPerRequest(t *testing.T) {
	srv, got := echoHeaders(t)
	client := &http.Client{Transport: Chain(nil, RequestID(), Device("laptop"))}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	first := got.Get(HeaderRequestID)
	_, err = uuid.Parse(first)
	require.NoError(t, err)
	assert.Equal(t, "laptop", got.Get(HeaderDevice))

	resp, err = client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEqual(t, first, got.Get(HeaderRequestID))
}

func TestRequestIDFromContextAndExplicitHeader(t *testing.T) {
	srv, got := echoHeaders(t)
	client := &http.Client{Transport: Chain(http.DefaultTransport, RequestID())}

	req, err := http.NewRequestWithContext(WithRequestID(context.Background(), "fixed-id"), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "fixed-id", got.Get(HeaderRequestID))

	req, err = http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set(HeaderRequestID, "caller-id")
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "caller-id", got.Get(HeaderRequestID))
	assert.Empty(t, got.Get(HeaderDevice))
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Tripperware {
		return func(next http.RoundTripper) http.RoundTripper {
			return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
				order = append(order, name)
				return next.RoundTrip(r)
			})
		}
	}
	base := RoundTripperFunc(func(*http.Request) (*http.Response, error) {
		order = append(order, "base")
		return &http.Response{StatusCode: http.StatusNoContent, Body: http.NoBody}, nil
	})

	req := httptest.NewRequest(http.MethodGet, "http://example.test", nil)
	_, err := Chain(base, mark("outer"), mark("inner")).RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner", "base"}, order)
}

func TestRequireBearer(t *testing.T) {
	h := RequireBearer(func(_ context.Context, token string) (any, error) {
		if token != "good" {
			return nil, errors.New("bad token")
		}
		return "user-1", nil
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(p.(string)))
	}))

	cases := map[string]int{
		"":             http.StatusUnauthorized,
		"Basic abc":    http.StatusUnauthorized,
		"Bearer ":      http.StatusUnauthorized,
		"Bearer wrong": http.StatusUnauthorized,
		"Bearer good":  http.StatusOK,
		"bearer good":  http.StatusOK,
	}
	for header, want := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "header %q", header)
		if want == http.StatusOK {
			assert.Equal(t, "user-1", rec.Body.String())
		}
	}
}

func TestRequireBearerNilValidator(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer x")
	RequireBearer(nil)(http.NotFoundHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
