package tokenstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingKV struct {
	MemoryKV
	failSet    bool
	failRemove bool
}

var errBackend = errors.New("disk full")

func (f *failingKV) Set(ctx context.Context, key, value string) error {
	if f.failSet {
		return errBackend
	}
	return f.MemoryKV.Set(ctx, key, value)
}

func (f *failingKV) Remove(ctx context.Context, key string) error {
	if f.failRemove {
		return errBackend
	}
	return f.MemoryKV.Remove(ctx, key)
}

func newFailingKV() *failingKV {
	return &failingKV{MemoryKV: *NewMemoryKV()}
}

func TestStoreGetEmptyByDefault(t *testing.T) {
	s := New(NewMemoryKV())
	assert.True(t, s.Get().IsEmpty())
	assert.Zero(t, s.Generation())
}

func TestStoreSetPersistsAndNotifies(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	var seen []TokenPair
	var s *Store
	s = New(kv, WithNotifier(NotifierFunc(func() {
		seen = append(seen, s.Get())
	})))

	pair := TokenPair{AccessToken: "a1", RefreshToken: "r1"}
	require.NoError(t, s.Set(ctx, pair))

	assert.Equal(t, pair, s.Get())
	assert.Equal(t, []TokenPair{pair}, seen, "notifier must see the new pair")
	assert.EqualValues(t, 1, s.Generation())

	v, ok, err := kv.Get(ctx, DefaultAccessKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a1", v)
}

func TestStoreSetRejectsEmptyAccessToken(t *testing.T) {
	calls := 0
	s := New(NewMemoryKV(), WithNotifier(NotifierFunc(func() { calls++ })))

	err := s.Set(context.Background(), TokenPair{RefreshToken: "r"})
	require.ErrorIs(t, err, ErrEmptyAccessToken)
	assert.Zero(t, calls)
	assert.True(t, s.Get().IsEmpty())
}

func TestStoreSetWithoutRefreshRemovesStaleKey(t *testing.T) {
	ctx := context.Background()
	kv := newFailingKV()
	s := New(kv)

	require.NoError(t, s.Set(ctx, TokenPair{AccessToken: "a1", RefreshToken: "r1"}))
	require.NoError(t, s.Set(ctx, TokenPair{AccessToken: "a2"}))

	_, ok, err := kv.Get(ctx, DefaultRefreshKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreClearRemovesBothKeys(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	calls := 0
	s := New(kv, WithNotifier(NotifierFunc(func() { calls++ })))

	require.NoError(t, s.Set(ctx, TokenPair{AccessToken: "a", RefreshToken: "r"}))
	require.NoError(t, s.Clear(ctx))

	assert.True(t, s.Get().IsEmpty())
	assert.Equal(t, 2, calls)
	assert.Zero(t, kv.Len())
}

func TestStoreClearIfOnlyClearsExpectedSession(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	calls := 0
	s := New(kv, WithNotifier(NotifierFunc(func() { calls++ })))
	require.NoError(t, s.Set(ctx, TokenPair{AccessToken: "old", RefreshToken: "r1"}))
	require.NoError(t, s.Set(ctx, TokenPair{AccessToken: "new", RefreshToken: "r2"}))

	cleared, err := s.ClearIf(ctx, "old")
	require.NoError(t, err)
	assert.False(t, cleared)
	assert.Equal(t, TokenPair{AccessToken: "new", RefreshToken: "r2"}, s.Get())
	assert.Equal(t, 2, calls, "no notification when nothing changed")
	assert.Equal(t, 2, kv.Len())

	cleared, err = s.ClearIf(ctx, "new")
	require.NoError(t, err)
	assert.True(t, cleared)
	assert.True(t, s.Get().IsEmpty())
	assert.Equal(t, 3, calls)
	assert.Zero(t, kv.Len())
}

func TestStorePersistenceFailureStillUpdatesSnapshot(t *testing.T) {
	ctx := context.Background()
	kv := newFailingKV()
	kv.failSet = true
	calls := 0
	s := New(kv, WithNotifier(NotifierFunc(func() { calls++ })))

	err := s.Set(ctx, TokenPair{AccessToken: "a", RefreshToken: "r"})
	require.Error(t, err)

	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "set", se.Operation)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.ErrorIs(t, err, errBackend)

	assert.Equal(t, "a", s.Get().AccessToken)
	assert.Equal(t, 1, calls)
}

func TestStoreClearFailureStillClearsSnapshot(t *testing.T) {
	ctx := context.Background()
	kv := newFailingKV()
	s := New(kv)
	require.NoError(t, s.Set(ctx, TokenPair{AccessToken: "a", RefreshToken: "r"}))

	kv.failRemove = true
	err := s.Clear(ctx)
	require.ErrorIs(t, err, ErrBackendUnavailable)
	assert.True(t, s.Get().IsEmpty())
}

func TestOpenLoadsPersistedPair(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(ctx, "acc", "a"))
	require.NoError(t, kv.Set(ctx, "ref", "r"))

	s, err := Open(ctx, kv, WithKeys("acc", "ref"))
	require.NoError(t, err)
	assert.Equal(t, TokenPair{AccessToken: "a", RefreshToken: "r"}, s.Get())
}

func TestStoreConcurrentReadersNeverSeeMixedPair(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryKV())
	require.NoError(t, s.Set(ctx, TokenPair{AccessToken: "a0", RefreshToken: "r0"}))

	pairs := []TokenPair{
		{AccessToken: "a0", RefreshToken: "r0"},
		{AccessToken: "a1", RefreshToken: "r1"},
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				got := s.Get()
				if got != pairs[0] && got != pairs[1] {
					t.Errorf("observed mixed pair %+v", got)
					return
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		require.NoError(t, s.Set(ctx, pairs[i%2]))
	}
	close(stop)
	wg.Wait()
}
