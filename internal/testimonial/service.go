// Package testimonial runs the customer testimonial board: signed-in users
// post a rated message, everyone reads the board, and only authors delete.
package testimonial

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/olynsn15/fruitopia-store/internal/cache"
	"github.com/olynsn15/fruitopia-store/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// CacheKey is where the last good listing is kept for when the store is down.
const CacheKey = "testimonials_cache"

// SnapshotCache keeps the last listing the store returned.
type SnapshotCache interface {
	Save(ctx context.Context, key string, v any) error
	Load(ctx context.Context, key string, dst any) error
}

// Listing is a board read. Stale marks a cached copy served because the
// store could not be reached.
type Listing struct {
	Testimonials []domain.Testimonial `json:"testimonials"`
	Stale        bool                 `json:"stale"`
}

type Service struct {
	repo    Repository
	cache   SnapshotCache
	breaker *gobreaker.CircuitBreaker[[]domain.Testimonial]
	logger  *zap.Logger
}

type BreakerSettings struct {
	// ConsecutiveFailures opens the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before a probe.
	OpenTimeout time.Duration
}

var DefaultBreakerSettings = BreakerSettings{ConsecutiveFailures: 3, OpenTimeout: 30 * time.Second}

func NewService(repo Repository, snapshots SnapshotCache, logger *zap.Logger, bs BreakerSettings) *Service {
	breaker := gobreaker.NewCircuitBreaker[[]domain.Testimonial](gobreaker.Settings{
		Name:        "testimonials",
		MaxRequests: 1,
		Timeout:     bs.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bs.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Service{
		repo:    repo,
		cache:   snapshots,
		breaker: breaker,
		logger:  logger,
	}
}

// Submit posts a testimonial for author. The message is trimmed and must not
// be empty; rating must be within 1..5.
func (s *Service) Submit(ctx context.Context, author *domain.Identity, message string, rating int) (*domain.Testimonial, error) {
	if author == nil {
		return nil, domain.ErrUnauthenticated
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return nil, domain.NewValidationError("message", "Please write a message")
	}
	if rating < domain.MinRating || rating > domain.MaxRating {
		return nil, domain.NewValidationError("rating", "Rating must be between 1 and 5")
	}

	t := &domain.Testimonial{
		ID:         uuid.New(),
		UserID:     author.ID,
		AuthorName: author.DisplayName,
		Message:    message,
		Rating:     rating,
	}
	if err := s.repo.Insert(ctx, author, t); err != nil {
		s.logger.Error("failed to submit testimonial", zap.String("user_id", author.ID), zap.Error(err))
		return nil, domain.Remote("submit testimonial", err)
	}
	return t, nil
}

// List reads the board newest first. A successful read replaces the cached
// snapshot; a failed one falls back to it.
func (s *Service) List(ctx context.Context) (*Listing, error) {
	testimonials, err := s.breaker.Execute(func() ([]domain.Testimonial, error) {
		return s.repo.List(ctx)
	})
	if err == nil {
		if errSave := s.cache.Save(ctx, CacheKey, testimonials); errSave != nil {
			s.logger.Warn("failed to cache testimonials", zap.Error(errSave))
		}
		return &Listing{Testimonials: testimonials}, nil
	}

	s.logger.Error("failed to list testimonials", zap.Error(err))

	var cached []domain.Testimonial
	if errLoad := s.cache.Load(ctx, CacheKey, &cached); errLoad != nil {
		if !errors.Is(errLoad, cache.ErrCacheMiss) {
			s.logger.Warn("failed to load cached testimonials", zap.Error(errLoad))
		}
		return nil, domain.Remote("list testimonials", err)
	}
	if cached == nil {
		cached = []domain.Testimonial{}
	}
	return &Listing{Testimonials: cached, Stale: true}, nil
}

// Delete removes a testimonial written by requester.
func (s *Service) Delete(ctx context.Context, requester *domain.Identity, id uuid.UUID) error {
	if requester == nil {
		return domain.ErrUnauthenticated
	}

	t, err := s.repo.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if err != nil {
		return domain.Remote("load testimonial", err)
	}
	if t.UserID != requester.ID {
		return domain.ErrForbidden
	}

	err = s.repo.Delete(ctx, id, requester.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if err != nil {
		s.logger.Error("failed to delete testimonial", zap.String("id", id.String()), zap.Error(err))
		return domain.Remote("delete testimonial", err)
	}
	return nil
}
