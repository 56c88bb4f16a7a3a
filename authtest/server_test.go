package authtest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(t *testing.T, s *Server, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := s.Client().Post(s.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getWithToken(t *testing.T, s *Server, token string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.URL+ResourcePath, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestLoginRefreshLogoutRoundTrip(t *testing.T) {
	s := NewServer(WithUser("alice", "pw"))
	defer s.Close()

	resp := post(t, s, LoginPath, loginBody{Login: "alice", Password: "pw"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pair tokenBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pair))
	assert.Equal(t, http.StatusOK, getWithToken(t, s, pair.AccessToken))

	s.ExpireAccess()
	assert.Equal(t, http.StatusUnauthorized, getWithToken(t, s, pair.AccessToken))

	resp = post(t, s, RefreshPath, refreshBody{RefreshToken: pair.RefreshToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var next tokenBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&next))
	assert.Equal(t, http.StatusOK, getWithToken(t, s, next.AccessToken))
	assert.False(t, s.RefreshValid(pair.RefreshToken), "refresh tokens rotate")

	resp = post(t, s, LogoutPath, refreshBody{RefreshToken: next.RefreshToken})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.False(t, s.RefreshValid(next.RefreshToken))
	assert.Equal(t, []string{next.RefreshToken}, s.Logouts())
	assert.Equal(t, 1, s.RefreshCalls())
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	s := NewServer(WithUser("alice", "pw"))
	defer s.Close()

	resp := post(t, s, LoginPath, loginBody{Login: "alice", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefreshModes(t *testing.T) {
	s := NewServer()
	defer s.Close()
	pair, err := s.IssuePair("bob")
	require.NoError(t, err)

	s.SetRefreshMode(RefreshReject)
	assert.Equal(t, http.StatusUnauthorized, post(t, s, RefreshPath, refreshBody{RefreshToken: pair.RefreshToken}).StatusCode)

	s.SetRefreshMode(RefreshError)
	assert.Equal(t, http.StatusServiceUnavailable, post(t, s, RefreshPath, refreshBody{RefreshToken: pair.RefreshToken}).StatusCode)

	s.SetRefreshMode(RefreshDrop)
	_, err = s.Client().Post(s.URL+RefreshPath, "application/json", bytes.NewReader([]byte(`{}`)))
	assert.Error(t, err)

	assert.Equal(t, 3, s.RefreshCalls())
}
