package tokenstore

import (
	"context"
	"sync"
	"sync/atomic"
)

// Notifier is told about every mutation of the Store.
type Notifier interface {
	NotifyChanged()
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func()

func (f NotifierFunc) NotifyChanged() { f() }

// Option customizes a Store.
type Option func(*Store)

// WithKeys overrides the two storage keys.
func WithKeys(accessKey, refreshKey string) Option {
	return func(s *Store) {
		if accessKey != "" {
			s.accessKey = accessKey
		}
		if refreshKey != "" {
			s.refreshKey = refreshKey
		}
	}
}

// WithNotifier attaches the mutation notifier at construction time.
func WithNotifier(n Notifier) Option {
	return func(s *Store) {
		s.notifier = n
	}
}

// Store is the single writer of persisted credentials.
//
// Get is lock-free for readers of the snapshot; Set and Clear are serialized
// by writeMu, which is held while the notifier runs. Notifiers may call Get but
// must not call Set or Clear.
type Store struct {
	kv         KeyValue
	accessKey  string
	refreshKey string

	writeMu  sync.Mutex
	current  atomic.Pointer[TokenPair]
	gen      atomic.Uint64
	notifier Notifier
}

// New creates a Store over kv with an empty snapshot. Call Load to read
// previously persisted credentials.
func New(kv KeyValue, opts ...Option) *Store {
	s := &Store{
		kv:         kv,
		accessKey:  DefaultAccessKey,
		refreshKey: DefaultRefreshKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(&TokenPair{})
	return s
}

// Open creates a Store and loads the persisted pair from kv.
func Open(ctx context.Context, kv KeyValue, opts ...Option) (*Store, error) {
	s := New(kv, opts...)
	if err := s.Load(ctx); err != nil {
		return s, err
	}
	return s, nil
}

// Attach sets the notifier invoked after every mutation.
func (s *Store) Attach(n Notifier) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.notifier = n
}

// Get returns the current pair. It never fails; absent values are empty.
func (s *Store) Get() TokenPair {
	return *s.current.Load()
}

// Generation increments on every Set and identifies the current session.
func (s *Store) Generation() uint64 {
	return s.gen.Load()
}

// Load replaces the snapshot with what the backend holds. It does not notify.
func (s *Store) Load(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	access, _, err := s.kv.Get(ctx, s.accessKey)
	if err != nil {
		return &StoreError{Operation: "load", Keys: []string{s.accessKey}, Cause: err}
	}
	refresh, _, err := s.kv.Get(ctx, s.refreshKey)
	if err != nil {
		return &StoreError{Operation: "load", Keys: []string{s.refreshKey}, Cause: err}
	}

	s.current.Store(&TokenPair{AccessToken: access, RefreshToken: refresh})
	return nil
}

// Set persists pair and makes it current. The snapshot is swapped and the
// notifier runs even when persistence fails; the returned *StoreError then
// reports lost durability.
func (s *Store) Set(ctx context.Context, pair TokenPair) error {
	if pair.AccessToken == "" {
		return ErrEmptyAccessToken
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.persist(ctx, pair)

	next := pair
	s.current.Store(&next)
	s.gen.Add(1)
	s.notify()

	return err
}

// Clear removes both credentials. Like Set, the in-memory state is cleared
// and the notifier runs regardless of backend errors.
func (s *Store) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.remove(ctx)

	s.current.Store(&TokenPair{})
	s.notify()

	return err
}

// ClearIf clears the credentials only while the current access token equals
// expectedAccess. It reports whether it cleared; a pair stored by another
// writer in the meantime is left untouched and nobody is notified.
func (s *Store) ClearIf(ctx context.Context, expectedAccess string) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.current.Load().AccessToken != expectedAccess {
		return false, nil
	}

	err := s.remove(ctx)

	s.current.Store(&TokenPair{})
	s.notify()

	return true, err
}

func (s *Store) persist(ctx context.Context, pair TokenPair) error {
	keys := []string{s.accessKey, s.refreshKey}
	if b, ok := s.kv.(Batch); ok {
		if err := b.SetAll(ctx, map[string]string{
			s.accessKey:  pair.AccessToken,
			s.refreshKey: pair.RefreshToken,
		}); err != nil {
			return &StoreError{Operation: "set", Keys: keys, Cause: err}
		}
		return nil
	}

	if err := s.kv.Set(ctx, s.accessKey, pair.AccessToken); err != nil {
		return &StoreError{Operation: "set", Keys: keys[:1], Cause: err}
	}
	if pair.RefreshToken == "" {
		if err := s.kv.Remove(ctx, s.refreshKey); err != nil {
			return &StoreError{Operation: "set", Keys: keys[1:], Cause: err}
		}
		return nil
	}
	if err := s.kv.Set(ctx, s.refreshKey, pair.RefreshToken); err != nil {
		return &StoreError{Operation: "set", Keys: keys[1:], Cause: err}
	}
	return nil
}

func (s *Store) remove(ctx context.Context) error {
	keys := []string{s.refreshKey, s.accessKey}
	if b, ok := s.kv.(Batch); ok {
		if err := b.RemoveAll(ctx, keys...); err != nil {
			return &StoreError{Operation: "clear", Keys: keys, Cause: err}
		}
		return nil
	}

	// refresh first: a half-cleared backend must never keep a usable refresh token
	var failed []string
	var firstErr error
	for _, key := range keys {
		if err := s.kv.Remove(ctx, key); err != nil {
			failed = append(failed, key)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return &StoreError{Operation: "clear", Keys: failed, Cause: firstErr}
	}
	return nil
}

func (s *Store) notify() {
	if s.notifier != nil {
		s.notifier.NotifyChanged()
	}
}
