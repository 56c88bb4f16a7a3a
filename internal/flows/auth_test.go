package flows

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrEthical07/authpipe/refresh"
	"github.com/MrEthical07/authpipe/tokenstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonServer(t *testing.T, handler func(w http.ResponseWriter, body map[string]string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		handler(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunLoginStoresPair(t *testing.T) {
	var got map[string]string
	srv := jsonServer(t, func(w http.ResponseWriter, body map[string]string) {
		got = body
		_ = json.NewEncoder(w).Encode(map[string]string{"accessToken": "a", "refreshToken": "r"})
	})

	var stored tokenstore.TokenPair
	res := RunLogin(context.Background(), "alice", "secret", LoginDeps{
		Endpoint:   srv.URL,
		Device:     "laptop",
		DeviceInfo: "linux",
		Do:         srv.Client().Do,
		Store: func(_ context.Context, p tokenstore.TokenPair) error {
			stored = p
			return nil
		},
	})
	require.Equal(t, LoginFailureNone, res.Failure, "%v", res.Err)
	assert.Equal(t, tokenstore.TokenPair{AccessToken: "a", RefreshToken: "r"}, stored)
	assert.Equal(t, map[string]string{"login": "alice", "password": "secret", "device": "laptop", "deviceInfo": "linux"}, got)
}

func TestRunLoginRejected(t *testing.T) {
	srv := jsonServer(t, func(w http.ResponseWriter, _ map[string]string) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad credentials"}`))
	})

	res := RunLogin(context.Background(), "alice", "wrong", LoginDeps{
		Endpoint: srv.URL,
		Do:       srv.Client().Do,
		Store:    func(context.Context, tokenstore.TokenPair) error { t.Fatal("must not store"); return nil },
	})
	require.Equal(t, LoginFailureRejected, res.Failure)
	var se *StatusError
	require.ErrorAs(t, res.Err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Contains(t, string(se.Body), "bad credentials")
}

func TestRunLoginPersistFailureStillSucceeds(t *testing.T) {
	srv := jsonServer(t, func(w http.ResponseWriter, _ map[string]string) {
		_ = json.NewEncoder(w).Encode(map[string]string{"accessToken": "a", "refreshToken": "r"})
	})
	diskErr := errors.New("disk full")

	res := RunLogin(context.Background(), "alice", "secret", LoginDeps{
		Endpoint:     srv.URL,
		Do:           srv.Client().Do,
		Store:        func(context.Context, tokenstore.TokenPair) error { return diskErr },
		IsPersistErr: func(err error) bool { return errors.Is(err, diskErr) },
	})
	assert.Equal(t, LoginFailureNone, res.Failure)
	assert.ErrorIs(t, res.PersistErr, diskErr)
}

func TestRunLoginMissingAccessToken(t *testing.T) {
	srv := jsonServer(t, func(w http.ResponseWriter, _ map[string]string) {
		_, _ = w.Write([]byte(`{"refreshToken":"r"}`))
	})
	res := RunLogin(context.Background(), "alice", "secret", LoginDeps{
		Endpoint: srv.URL,
		Do:       srv.Client().Do,
		Store:    func(context.Context, tokenstore.TokenPair) error { return nil },
	})
	assert.Equal(t, LoginFailureDecode, res.Failure)
}

func TestRunRefreshCallClassifiesResponses(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		denied bool
	}{
		{"unauthorized", http.StatusUnauthorized, ``, true},
		{"forbidden", http.StatusForbidden, ``, true},
		{"invalid grant", http.StatusBadRequest, `{"error":"invalid_grant"}`, true},
		{"invalid token code", http.StatusBadRequest, `{"code":"INVALID_TOKEN"}`, true},
		{"plain bad request", http.StatusBadRequest, `{"error":"malformed"}`, false},
		{"server error", http.StatusBadGateway, ``, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := jsonServer(t, func(w http.ResponseWriter, _ map[string]string) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := RunRefreshCall(context.Background(), "r", RefreshCallDeps{Endpoint: srv.URL, Do: srv.Client().Do})
			require.Error(t, err)
			assert.Equal(t, tc.denied, errors.Is(err, refresh.ErrDenied))

			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tc.status, se.StatusCode)
		})
	}
}

func TestRunRefreshCallSuccess(t *testing.T) {
	var got map[string]string
	srv := jsonServer(t, func(w http.ResponseWriter, body map[string]string) {
		got = body
		_ = json.NewEncoder(w).Encode(map[string]string{"accessToken": "a2", "refreshToken": "r2"})
	})

	pair, err := RunRefreshCall(context.Background(), "r1", RefreshCallDeps{Endpoint: srv.URL, Device: "phone", Do: srv.Client().Do})
	require.NoError(t, err)
	assert.Equal(t, tokenstore.TokenPair{AccessToken: "a2", RefreshToken: "r2"}, pair)
	assert.Equal(t, map[string]string{"refreshToken": "r1", "device": "phone"}, got)
}

func TestRunRefreshCallBadBody(t *testing.T) {
	srv := jsonServer(t, func(w http.ResponseWriter, _ map[string]string) {
		_, _ = w.Write([]byte(`not json`))
	})
	_, err := RunRefreshCall(context.Background(), "r", RefreshCallDeps{Endpoint: srv.URL, Do: srv.Client().Do})
	require.Error(t, err)
	assert.NotErrorIs(t, err, refresh.ErrDenied)
}

func TestRunLogoutNotify(t *testing.T) {
	var got map[string]string
	srv := jsonServer(t, func(w http.ResponseWriter, body map[string]string) {
		got = body
		w.WriteHeader(http.StatusNoContent)
	})
	err := RunLogoutNotify(context.Background(), "r1", LogoutDeps{Endpoint: srv.URL, Device: "d", Timeout: time.Second, Do: srv.Client().Do})
	require.NoError(t, err)
	assert.Equal(t, "r1", got["refreshToken"])

	failing := jsonServer(t, func(w http.ResponseWriter, _ map[string]string) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	err = RunLogoutNotify(context.Background(), "r1", LogoutDeps{Endpoint: failing.URL, Do: failing.Client().Do})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
}
