package authtest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authpipe/jwt"
	"github.com/MrEthical07/authpipe/middleware"
	"github.com/MrEthical07/authpipe/tokenstore"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Secret signs every access token the fake issues.
var Secret = []byte("authtest-secret-authtest-secret!")

const (
	LoginPath    = "/api/auth/login"
	RefreshPath  = "/api/auth/refresh"
	LogoutPath   = "/api/auth/logout"
	ResourcePath = "/api/resource"
	EchoPath     = "/api/echo"
	ItemsPath    = "/api/items/{id}"
)

// RefreshMode selects how the refresh endpoint answers.
type RefreshMode int32

const (
	// RefreshOK issues a new pair.
	RefreshOK RefreshMode = iota
	// RefreshReject answers 401.
	RefreshReject
	// RefreshDrop closes the connection without answering.
	RefreshDrop
	// RefreshError answers 503.
	RefreshError
)

// Option configures a Server.
type Option func(*Server)

// WithUser registers a login/password pair. The login is the token subject.
func WithUser(login, password string) Option {
	return func(s *Server) {
		s.users[login] = password
	}
}

// WithAccessTTL sets the lifetime of issued access tokens.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = ttl
	}
}

// WithoutRotation makes refresh reuse the presented refresh token.
func WithoutRotation() Option {
	return func(s *Server) {
		s.rotate = false
	}
}

// Server is the fake backend. All methods are safe for concurrent use.
type Server struct {
	*httptest.Server

	signer    *jwt.Signer
	parser    *jwt.Parser
	accessTTL time.Duration
	rotate    bool

	mu       sync.Mutex
	users    map[string]string
	refresh  map[string]string // refresh token -> subject
	requests []Request
	logouts  []string

	// generation is stamped into access tokens; ExpireAccess bumps it.
	generation   atomic.Int64
	refreshMode  atomic.Int32
	refreshDelay atomic.Int64
	staleRefresh atomic.Bool

	loginCalls    atomic.Int32
	refreshCalls  atomic.Int32
	logoutCalls   atomic.Int32
	resourceCalls atomic.Int32
}

// NewServer starts a fake backend. Close it when done.
func NewServer(opts ...Option) *Server {
	s := &Server{
		accessTTL: 5 * time.Minute,
		rotate:    true,
		users:     map[string]string{},
		refresh:   map[string]string{},
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	s.signer, err = jwt.NewSigner(jwt.SignerConfig{Method: jwt.MethodHS256, PrivateKey: Secret, TTL: s.accessTTL})
	if err != nil {
		panic(err)
	}
	s.parser, err = jwt.NewParser(jwt.Config{VerifyMethod: jwt.MethodHS256, VerifyKey: Secret})
	if err != nil {
		panic(err)
	}

	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc(LoginPath, s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc(RefreshPath, s.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc(LogoutPath, s.handleLogout).Methods(http.MethodPost)

	api := r.NewRoute().Subrouter()
	api.Use(s.record, middleware.RequireBearer(s.validate))
	api.HandleFunc(ResourcePath, s.handleResource).Methods(http.MethodGet)
	api.HandleFunc(EchoPath, s.handleEcho).Methods(http.MethodPost)
	api.HandleFunc(ItemsPath, s.handleResource).Methods(http.MethodGet)
	api.HandleFunc(ItemsPath, s.handlePatch).Methods(http.MethodPatch)
	return r
}

// Request is what a protected endpoint saw.
type Request struct {
	Method        string
	Path          string
	Authorization string
	RequestID     string
	Device        string
}

// Resource is the body of protected GET endpoints.
type Resource struct {
	Subject string `json:"subject"`
	Path    string `json:"path"`
	ID      string `json:"id,omitempty"`
}

type tokenBody struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type loginBody struct {
	Login      string `json:"login"`
	Password   string `json:"password"`
	Device     string `json:"device"`
	DeviceInfo string `json:"deviceInfo"`
}

type refreshBody struct {
	RefreshToken string `json:"refreshToken"`
	Device       string `json:"device"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.loginCalls.Add(1)
	var body loginBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed"})
		return
	}

	s.mu.Lock()
	want, ok := s.users[body.Login]
	s.mu.Unlock()
	if !ok || want != body.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_credentials"})
		return
	}

	pair, err := s.IssuePair(body.Login)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tokenBody{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)

	if d := time.Duration(s.refreshDelay.Load()); d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}

	switch RefreshMode(s.refreshMode.Load()) {
	case RefreshReject:
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_grant"})
		return
	case RefreshError:
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "unavailable"})
		return
	case RefreshDrop:
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				_ = conn.Close()
				return
			}
		}
		panic(http.ErrAbortHandler)
	}

	var body refreshBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed"})
		return
	}

	s.mu.Lock()
	subject, ok := s.refresh[body.RefreshToken]
	if ok && s.rotate {
		delete(s.refresh, body.RefreshToken)
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_grant"})
		return
	}

	access, err := s.signAccess(subject)
	if s.staleRefresh.Load() {
		access, err = s.signer.Sign(subject, map[string]any{"gen": s.generation.Load() - 1})
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	next := body.RefreshToken
	if s.rotate {
		next = s.newRefreshToken(subject)
	}
	writeJSON(w, http.StatusOK, tokenBody{AccessToken: access, RefreshToken: next})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.logoutCalls.Add(1)
	var body refreshBody
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	delete(s.refresh, body.RefreshToken)
	s.logouts = append(s.logouts, body.RefreshToken)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResource(w http.ResponseWriter, r *http.Request) {
	s.resourceCalls.Add(1)
	subject, _ := middleware.PrincipalFromContext(r.Context())
	sub, _ := subject.(string)
	writeJSON(w, http.StatusOK, Resource{Subject: sub, Path: r.URL.Path, ID: mux.Vars(r)["id"]})
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	s.resourceCalls.Add(1)
	var v any
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed"})
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	s.resourceCalls.Add(1)
	if mux.Vars(r)["id"] == "missing" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get(middleware.HeaderRequestID),
			Device:        r.Header.Get(middleware.HeaderDevice),
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) validate(_ context.Context, token string) (any, error) {
	principal, err := s.parser.Parse(token)
	if err != nil {
		return nil, err
	}
	gen, _ := principal.Claim("gen")
	if n, ok := gen.(float64); !ok || int64(n) != s.generation.Load() {
		return nil, jwt.ErrInvalidToken
	}
	return principal.Subject, nil
}

func (s *Server) signAccess(subject string) (string, error) {
	return s.signer.Sign(subject, map[string]any{"gen": s.generation.Load()})
}

func (s *Server) newRefreshToken(subject string) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.refresh[token] = subject
	s.mu.Unlock()
	return token
}

// IssuePair mints a valid pair for subject without a login call.
func (s *Server) IssuePair(subject string) (tokenstore.TokenPair, error) {
	access, err := s.signAccess(subject)
	if err != nil {
		return tokenstore.TokenPair{}, err
	}
	return tokenstore.TokenPair{AccessToken: access, RefreshToken: s.newRefreshToken(subject)}, nil
}

// ExpireAccess makes every access token issued so far answer 401.
func (s *Server) ExpireAccess() {
	s.generation.Add(1)
}

// RevokeRefresh forgets a refresh token so refreshing with it is denied.
func (s *Server) RevokeRefresh(token string) {
	s.mu.Lock()
	delete(s.refresh, token)
	s.mu.Unlock()
}

// RefreshValid reports whether token would be accepted by the refresh endpoint.
func (s *Server) RefreshValid(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.refresh[token]
	return ok
}

func (s *Server) SetRefreshMode(m RefreshMode)     { s.refreshMode.Store(int32(m)) }
func (s *Server) SetRefreshDelay(d time.Duration) { s.refreshDelay.Store(int64(d)) }

// SetStaleRefresh makes refresh issue access tokens that are already
// rejected, so the retried request fails with 401 again.
func (s *Server) SetStaleRefresh(stale bool) { s.staleRefresh.Store(stale) }

func (s *Server) LoginCalls() int    { return int(s.loginCalls.Load()) }
func (s *Server) RefreshCalls() int  { return int(s.refreshCalls.Load()) }
func (s *Server) LogoutCalls() int   { return int(s.logoutCalls.Load()) }
func (s *Server) ResourceCalls() int { return int(s.resourceCalls.Load()) }

// Requests returns every protected request in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// AuthHeaders returns the Authorization header of every protected request.
func (s *Server) AuthHeaders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	headers := make([]string, len(s.requests))
	for i, r := range s.requests {
		headers[i] = r.Authorization
	}
	return headers
}

// Logouts returns the refresh tokens presented to the logout endpoint.
func (s *Server) Logouts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.logouts...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
