package jwt

import (
	"maps"
	"time"
)

// Principal is the identity carried by an access token. It is rebuilt on
// demand and never trusted at or past ExpiresAt.
type Principal struct {
	Subject   string
	ExpiresAt time.Time
	IssuedAt  time.Time // zero when the token has no iat
	Claims    map[string]any
}

// Claim returns the raw value of a claim.
func (p *Principal) Claim(name string) (any, bool) {
	if p == nil || p.Claims == nil {
		return nil, false
	}
	v, ok := p.Claims[name]
	return v, ok
}

// StringClaim returns a string claim, or "" when absent or not a string.
func (p *Principal) StringClaim(name string) string {
	v, _ := p.Claim(name)
	s, _ := v.(string)
	return s
}

// ExpiresIn reports the time left before expiry at now.
func (p *Principal) ExpiresIn(now time.Time) time.Duration {
	return p.ExpiresAt.Sub(now)
}

func (p *Principal) clone() *Principal {
	cp := *p
	cp.Claims = maps.Clone(p.Claims)
	return &cp
}
