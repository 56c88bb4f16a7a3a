package tokenstore

import (
	"context"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryKV keeps credentials in process memory. Entries never expire; the
// access token carries its own expiry.
type MemoryKV struct {
	c *gocache.Cache
}

// NewMemoryKV returns an empty in-memory backend.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{c: gocache.New(gocache.NoExpiration, 0)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return "", false, nil
	}
	s, _ := v.(string)
	return s, true, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.c.Set(key, value, gocache.NoExpiration)
	return nil
}

func (m *MemoryKV) Remove(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

// Len reports how many keys are held.
func (m *MemoryKV) Len() int {
	return m.c.ItemCount()
}
