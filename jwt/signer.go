package jwt

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SignerConfig configures token issuance.
type SignerConfig struct {
	Method     SigningMethod
	PrivateKey []byte
	TTL        time.Duration
	Issuer     string
	Audience   string
	KeyID      string
	Now        func() time.Time
}

// Signer issues signed access tokens.
type Signer struct {
	cfg    SignerConfig
	method jwt.SigningMethod
	key    interface{}
}

// NewSigner validates cfg and returns a Signer.
func NewSigner(cfg SignerConfig) (*Signer, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	method, err := cfg.Method.jwtMethod()
	if err != nil {
		return nil, err
	}
	key, err := signKey(cfg.Method, cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	return &Signer{cfg: cfg, method: method, key: key}, nil
}

// Sign issues a token for subject using the configured TTL.
func (s *Signer) Sign(subject string, extra map[string]any) (string, error) {
	return s.SignTTL(subject, s.cfg.TTL, extra)
}

// SignTTL issues a token for subject that expires after ttl. A non-positive
// ttl yields an already expired token.
func (s *Signer) SignTTL(subject string, ttl time.Duration, extra map[string]any) (string, error) {
	now := s.cfg.Now()
	claims := jwt.MapClaims{}
	for k, v := range extra {
		claims[k] = v
	}
	claims["sub"] = subject
	claims["iat"] = jwt.NewNumericDate(now)
	claims["exp"] = jwt.NewNumericDate(now.Add(ttl))
	if s.cfg.Issuer != "" {
		claims["iss"] = s.cfg.Issuer
	}
	if s.cfg.Audience != "" {
		claims["aud"] = s.cfg.Audience
	}

	token := jwt.NewWithClaims(s.method, claims)
	if s.cfg.KeyID != "" {
		token.Header["kid"] = s.cfg.KeyID
	}
	return token.SignedString(s.key)
}
