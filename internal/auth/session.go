package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/olynsn15/fruitopia-store/internal/domain"
	"go.uber.org/zap"
)

// Session holds the identity of one storefront session and notifies
// subscribers whenever it changes. A nil identity is a guest.
type Session struct {
	provider Provider
	logger   *zap.Logger

	// change serializes transitions so subscribers see them in order.
	change sync.Mutex

	mu       sync.RWMutex
	identity *domain.Identity
	token    string
	subs     map[int]func(ctx context.Context, identity *domain.Identity)
	nextSub  int
}

func NewSession(provider Provider, logger *zap.Logger) *Session {
	return &Session{
		provider: provider,
		logger:   logger,
		subs:     make(map[int]func(ctx context.Context, identity *domain.Identity)),
	}
}

func (s *Session) Login(ctx context.Context, in LoginInput) (*domain.Identity, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	s.change.Lock()
	defer s.change.Unlock()

	res, err := s.provider.SignIn(ctx, in.Email, in.Password)
	if err != nil {
		return nil, err
	}
	return s.setLocked(ctx, res.User.Identity(), res.AccessToken), nil
}

func (s *Session) Register(ctx context.Context, in RegisterInput) (*domain.Identity, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	s.change.Lock()
	defer s.change.Unlock()

	res, err := s.provider.SignUp(ctx, in.Email, in.Password, Metadata{FullName: in.FullName})
	if err != nil {
		return nil, err
	}
	return s.setLocked(ctx, res.User.Identity(), res.AccessToken), nil
}

// Logout signs out with the provider and drops the identity even when the
// provider call fails.
func (s *Session) Logout(ctx context.Context) error {
	s.change.Lock()
	defer s.change.Unlock()

	token := s.Token()
	if token == "" {
		return nil
	}

	err := s.provider.SignOut(ctx, token)
	if err != nil && !errors.Is(err, ErrInvalidToken) {
		s.logger.Warn("sign out failed", zap.Error(err))
	} else {
		err = nil
	}

	s.setLocked(ctx, nil, "")
	return err
}

// Restore adopts an existing access token, as on a fresh page load. A token
// the provider rejects signs the session out.
func (s *Session) Restore(ctx context.Context, token string) (*domain.Identity, error) {
	s.change.Lock()
	defer s.change.Unlock()

	if token != "" && token == s.Token() {
		return s.Identity(), nil
	}

	user, err := s.provider.GetSession(ctx, token)
	if errors.Is(err, ErrInvalidToken) {
		if s.Identity() != nil {
			s.setLocked(ctx, nil, "")
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return s.setLocked(ctx, user.Identity(), token), nil
}

func (s *Session) Identity() *domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Subscribe registers fn for identity changes. fn runs synchronously on the
// goroutine that caused the change.
func (s *Session) Subscribe(fn func(ctx context.Context, identity *domain.Identity)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Session) setLocked(ctx context.Context, identity *domain.Identity, token string) *domain.Identity {
	s.mu.Lock()
	s.identity = identity
	s.token = token
	subs := make([]func(context.Context, *domain.Identity), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		var cp *domain.Identity
		if identity != nil {
			id := *identity
			cp = &id
		}
		fn(ctx, cp)
	}

	if identity == nil {
		return nil
	}
	id := *identity
	return &id
}
