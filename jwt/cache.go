package jwt

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachingParser memoizes successful parses by token string. Expiry is checked
// again on every hit, and every caller gets its own copy of the principal.
type CachingParser struct {
	parser *Parser
	cache  *lru.Cache[string, *Principal]
}

// NewCachingParser wraps p with an LRU cache holding up to size principals.
func NewCachingParser(p *Parser, size int) (*CachingParser, error) {
	cache, err := lru.New[string, *Principal](size)
	if err != nil {
		return nil, fmt.Errorf("principal cache: %w", err)
	}
	return &CachingParser{parser: p, cache: cache}, nil
}

func (c *CachingParser) Parse(accessToken string) (*Principal, error) {
	if principal, ok := c.cache.Get(accessToken); ok {
		if c.parser.expired(principal) {
			c.cache.Remove(accessToken)
			return nil, fmt.Errorf("%w: token expired", ErrInvalidToken)
		}
		return principal.clone(), nil
	}

	principal, err := c.parser.Parse(accessToken)
	if err != nil {
		return nil, err
	}
	c.cache.Add(accessToken, principal.clone())
	return principal, nil
}

// Len reports the number of cached principals.
func (c *CachingParser) Len() int {
	return c.cache.Len()
}

// Purge drops every cached principal.
func (c *CachingParser) Purge() {
	c.cache.Purge()
}
