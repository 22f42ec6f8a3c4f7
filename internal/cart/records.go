package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/olynsn15/fruitopia-store/internal/cache"
	"github.com/olynsn15/fruitopia-store/internal/domain"
	"github.com/olynsn15/fruitopia-store/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Records loads and stores the remote cart record for a user.
type Records interface {
	GetCart(ctx context.Context, userID string) (*domain.CartRecord, error)
	SaveCart(ctx context.Context, record *domain.CartRecord) error
}

// RecordService reads cart records through a cache and writes them straight
// to the repository.
//
// A cache fill started by a read is dropped when a save for the same user
// happened after the read began, so a slow fill cannot put back a record
// that a save already replaced.
type RecordService struct {
	repo   repository.CartRepository
	cache  cache.CartCache
	logger *zap.Logger
	sfg    singleflight.Group // Prevents cache stampede

	fill      sync.Mutex
	seq       uint64
	savedAt   map[string]uint64
	fillsLeft int
}

func NewRecordService(repo repository.CartRepository, cache cache.CartCache, logger *zap.Logger) *RecordService {
	return &RecordService{
		repo:    repo,
		cache:   cache,
		logger:  logger,
		savedAt: make(map[string]uint64),
	}
}

// GetCart returns the stored record, or an empty one when the user has none.
func (s *RecordService) GetCart(ctx context.Context, userID string) (*domain.CartRecord, error) {
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		record, err := s.cache.Get(ctx, userID)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("cart cache get failed", zap.String("user_id", userID), zap.Error(err))
		}

		readAt := s.beginFill()
		record, errGet := s.repo.GetCart(ctx, userID)
		if errors.Is(errGet, repository.ErrCartNotFound) {
			s.endFill(userID, readAt, nil)
			now := time.Now()
			return &domain.CartRecord{UserID: userID, CreatedAt: now, UpdatedAt: now}, nil
		}
		if errGet != nil {
			s.endFill(userID, readAt, nil)
			return nil, errGet
		}

		go s.endFill(userID, readAt, record)

		return record, nil
	})
	if err != nil {
		return nil, domain.Remote("load cart", err)
	}

	return v.(*domain.CartRecord), nil
}

func (s *RecordService) SaveCart(ctx context.Context, record *domain.CartRecord) error {
	if err := s.repo.UpsertCart(ctx, record); err != nil {
		return domain.Remote("save cart", err)
	}

	s.invalidateCache(record.UserID)
	return nil
}

// beginFill marks the start of a repository read that may fill the cache.
func (s *RecordService) beginFill() uint64 {
	s.fill.Lock()
	defer s.fill.Unlock()
	s.fillsLeft++
	return s.seq
}

// endFill caches record unless a save for userID landed after readAt.
// A nil record only retires the pending fill.
func (s *RecordService) endFill(userID string, readAt uint64, record *domain.CartRecord) {
	s.fill.Lock()
	defer s.fill.Unlock()

	if record != nil && s.savedAt[userID] <= readAt {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := s.cache.Set(ctx, userID, record); err != nil {
			s.logger.Warn("cart cache set failed", zap.String("user_id", userID), zap.Error(err))
		}
		cancel()
	}

	s.fillsLeft--
	if s.fillsLeft == 0 {
		// no read is in flight, so no fill can be older than any save
		clear(s.savedAt)
	}
}

// invalidateCache drops the cached record and fences off fills whose read
// started before this save.
func (s *RecordService) invalidateCache(userID string) {
	s.fill.Lock()
	defer s.fill.Unlock()

	s.seq++
	if s.fillsLeft > 0 {
		s.savedAt[userID] = s.seq
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.logger.Warn("cart cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
	}
}
