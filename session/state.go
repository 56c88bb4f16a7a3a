package session

import (
	"sync"

	"github.com/MrEthical07/authpipe/jwt"
	"github.com/MrEthical07/authpipe/tokenstore"
)

// Kind distinguishes the two session statuses.
type Kind uint8

const (
	Unauthenticated Kind = iota
	Authenticated
)

func (k Kind) String() string {
	if k == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// Status is the derived session status. Principal is nil when
// unauthenticated.
type Status struct {
	Kind      Kind
	Principal *jwt.Principal
}

// IsAuthenticated reports whether s carries a principal.
func (s Status) IsAuthenticated() bool {
	return s.Kind == Authenticated && s.Principal != nil
}

// TokenReader exposes the current credentials.
type TokenReader interface {
	Get() tokenstore.TokenPair
}

// CredentialParser decodes an access token.
type CredentialParser interface {
	Parse(accessToken string) (*jwt.Principal, error)
}

// Observer is notified of every credential change.
type Observer func()

// Subscription identifies a registered observer.
type Subscription struct {
	state *State
	id    uint64
	once  sync.Once
}

// Unsubscribe removes the observer. It is idempotent.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.state == nil {
		return
	}
	s.once.Do(func() {
		s.state.remove(s.id)
	})
}

type entry struct {
	id  uint64
	obs Observer
}

// State derives the session status and fans out change notifications.
type State struct {
	tokens TokenReader
	parser CredentialParser

	mu        sync.Mutex
	nextID    uint64
	observers []entry
}

// NewState returns a State reading from tokens and decoding with parser.
func NewState(tokens TokenReader, parser CredentialParser) *State {
	return &State{tokens: tokens, parser: parser}
}

// CurrentStatus derives the status from the stored access token.
func (s *State) CurrentStatus() Status {
	access := s.tokens.Get().AccessToken
	if access == "" {
		return Status{Kind: Unauthenticated}
	}
	principal, err := s.parser.Parse(access)
	if err != nil {
		return Status{Kind: Unauthenticated}
	}
	return Status{Kind: Authenticated, Principal: principal}
}

// Subscribe registers obs. A nil observer is ignored and yields a no-op
// subscription.
func (s *State) Subscribe(obs Observer) *Subscription {
	if obs == nil {
		return &Subscription{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.observers = append(s.observers, entry{id: s.nextID, obs: obs})
	return &Subscription{state: s, id: s.nextID}
}

// Subscribers reports the number of registered observers.
func (s *State) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observers)
}

// NotifyChanged invokes every observer registered at call time, in order.
func (s *State) NotifyChanged() {
	s.mu.Lock()
	snapshot := make([]entry, len(s.observers))
	copy(snapshot, s.observers)
	s.mu.Unlock()

	for _, e := range snapshot {
		e.obs()
	}
}

func (s *State) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.observers {
		if e.id == id {
			s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
			return
		}
	}
}
