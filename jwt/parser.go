package jwt

import (
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config controls how access tokens are decoded. With an empty VerifyMethod
// tokens are decoded without signature verification.
type Config struct {
	VerifyMethod SigningMethod
	VerifyKey    []byte
	Issuer       string
	Audience     string
	// Leeway tolerates clock skew on nbf and iat when verifying. Expiry is
	// always checked against the exact clock.
	Leeway time.Duration
	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

// Parser decodes access tokens into principals. It is safe for concurrent use.
type Parser struct {
	cfg    Config
	key    interface{}
	alg    string
	parser *jwt.Parser
}

// NewParser validates cfg and returns a Parser.
func NewParser(cfg Config) (*Parser, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	p := &Parser{cfg: cfg}
	if cfg.VerifyMethod == "" {
		p.parser = jwt.NewParser()
		return p, nil
	}

	method, err := cfg.VerifyMethod.jwtMethod()
	if err != nil {
		return nil, err
	}
	key, err := verifyKey(cfg.VerifyMethod, cfg.VerifyKey)
	if err != nil {
		return nil, err
	}
	p.key = key
	p.alg = method.Alg()

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{p.alg}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}
	p.parser = jwt.NewParser(options...)
	return p, nil
}

// Verifying reports whether signatures are checked.
func (p *Parser) Verifying() bool {
	return p.key != nil
}

// Parse decodes accessToken. Any failure, including a missing or passed
// expiry, is reported as ErrInvalidToken.
func (p *Parser) Parse(accessToken string) (*Principal, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	claims := jwt.MapClaims{}
	var err error
	if p.key == nil {
		_, _, err = p.parser.ParseUnverified(accessToken, claims)
	} else {
		_, err = p.parser.ParseWithClaims(accessToken, claims, func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != p.alg {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
			}
			return p.key, nil
		})
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	principal, err := principalFromClaims(claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if p.expired(principal) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, jwt.ErrTokenExpired)
	}
	return principal, nil
}

func (p *Parser) expired(principal *Principal) bool {
	return !principal.ExpiresAt.After(p.cfg.Now())
}

func principalFromClaims(claims jwt.MapClaims) (*Principal, error) {
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, jwt.ErrTokenRequiredClaimMissing
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return nil, err
	}
	principal := &Principal{
		Subject:   sub,
		ExpiresAt: exp.Time,
		Claims:    maps.Clone(map[string]any(claims)),
	}
	iat, err := claims.GetIssuedAt()
	if err != nil {
		return nil, err
	}
	if iat != nil {
		principal.IssuedAt = iat.Time
	}
	return principal, nil
}
