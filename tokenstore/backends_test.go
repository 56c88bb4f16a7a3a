package tokenstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batchKV interface {
	KeyValue
	Batch
}

func exerciseBackend(t *testing.T, kv KeyValue) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, "k", "v1"))
	require.NoError(t, kv.Set(ctx, "k", "v2"))
	v, ok, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)

	require.NoError(t, kv.Remove(ctx, "k"))
	require.NoError(t, kv.Remove(ctx, "k"), "remove of missing key is not an error")
	_, ok, err = kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	b, isBatch := kv.(batchKV)
	if !isBatch {
		return
	}
	require.NoError(t, b.SetAll(ctx, map[string]string{"a": "1", "b": "2"}))
	require.NoError(t, b.SetAll(ctx, map[string]string{"a": "3", "b": ""}))
	v, ok, err = kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "3", v)
	_, ok, err = kv.Get(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok, "empty value in a batch deletes the key")

	require.NoError(t, b.RemoveAll(ctx, "a", "b"))
	_, ok, err = kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryKV(t *testing.T) {
	exerciseBackend(t, NewMemoryKV())
}

func TestFileKV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	kv := NewFileKV(path)
	exerciseBackend(t, kv)

	require.NoError(t, kv.Set(context.Background(), "k", "v"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileKVSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "credentials.json")

	s := New(NewFileKV(path))
	require.NoError(t, s.Set(ctx, TokenPair{AccessToken: "a", RefreshToken: "r"}))

	reopened, err := Open(ctx, NewFileKV(path))
	require.NoError(t, err)
	assert.Equal(t, s.Get(), reopened.Get())

	require.NoError(t, reopened.Clear(ctx))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "clearing every key removes the file")
}

func TestFileKVCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Open(context.Background(), NewFileKV(path))
	require.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestRedisKV(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	kv := NewRedisKV(rdb, "test:")
	exerciseBackend(t, kv)

	require.NoError(t, kv.Set(context.Background(), "k", "v"))
	got, err := mr.Get("test:k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestRedisKVUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	mr.Close()

	s := New(NewRedisKV(rdb, ""))
	err := s.Set(context.Background(), TokenPair{AccessToken: "a", RefreshToken: "r"})
	require.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Equal(t, "a", s.Get().AccessToken)
}

func TestSQLiteKV(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.db")

	kv, err := OpenSQLiteKV(ctx, path)
	require.NoError(t, err)
	exerciseBackend(t, kv)

	s := New(kv)
	require.NoError(t, s.Set(ctx, TokenPair{AccessToken: "a", RefreshToken: "r"}))
	require.NoError(t, kv.Close())

	kv2, err := OpenSQLiteKV(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { kv2.Close() })

	reopened, err := Open(ctx, kv2)
	require.NoError(t, err)
	assert.Equal(t, TokenPair{AccessToken: "a", RefreshToken: "r"}, reopened.Get())
}
