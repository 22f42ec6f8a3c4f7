// Package session keeps one auth session, cart and discount ledger per
// storefront client, keyed by an opaque session id.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/olynsn15/fruitopia-store/internal/auth"
	"github.com/olynsn15/fruitopia-store/internal/cart"
	"github.com/olynsn15/fruitopia-store/internal/discount"
	"github.com/olynsn15/fruitopia-store/internal/domain"
	"github.com/olynsn15/fruitopia-store/internal/events"
	"go.uber.org/zap"
)

const (
	// DefaultIdleTTL is how long an untouched session is kept
	DefaultIdleTTL = 30 * time.Minute

	// DefaultCleanupInterval is how often idle sessions are swept
	DefaultCleanupInterval = time.Minute
)

// Bundle is the state of one client: who is signed in, their cart and the
// discounts they claimed.
type Bundle struct {
	ID        string
	Auth      *auth.Session
	Cart      *cart.Store
	Discounts *discount.Ledger

	lastSeen time.Time
	unbind   func()
}

// Claim applies a promotion to this client's ledger. Guests must sign in first.
func (b *Bundle) Claim(promo discount.Promotion) (int64, error) {
	if b.Auth.Identity() == nil {
		return 0, domain.ErrUnauthenticated
	}
	return b.Discounts.Claim(promo)
}

type Config struct {
	IdleTTL         time.Duration
	CleanupInterval time.Duration
}

// Registry owns every live Bundle and evicts the idle ones.
type Registry struct {
	provider  auth.Provider
	records   cart.Records
	publisher events.Publisher
	logger    *zap.Logger
	ttl       time.Duration
	now       func() time.Time

	mu      sync.Mutex
	bundles map[string]*Bundle

	stopCleanup chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup
}

func NewRegistry(provider auth.Provider, records cart.Records, publisher events.Publisher, logger *zap.Logger, cfg Config) *Registry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}

	r := &Registry{
		provider:    provider,
		records:     records,
		publisher:   publisher,
		logger:      logger,
		ttl:         cfg.IdleTTL,
		now:         time.Now,
		bundles:     make(map[string]*Bundle),
		stopCleanup: make(chan struct{}),
	}

	r.wg.Add(1)
	go r.cleanupLoop(cfg.CleanupInterval)

	return r
}

// Resolve returns the bundle for id, or a fresh one under a new id when id is
// empty or unknown. created reports the latter.
func (r *Registry) Resolve(id string) (b *Bundle, created bool) {
	if b, ok := r.Get(id); ok {
		return b, false
	}
	return r.Create(), true
}

// Get returns the bundle for id and marks it as used.
func (r *Registry) Get(id string) (*Bundle, bool) {
	if id == "" {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bundles[id]
	if !ok {
		return nil, false
	}
	b.lastSeen = r.now()
	return b, true
}

func (r *Registry) Create() *Bundle {
	ledger := discount.NewLedger()
	authSession := auth.NewSession(r.provider, r.logger)
	store := cart.NewStore(r.records, r.logger,
		cart.WithPriceLookup(ledger),
		cart.WithPublisher(r.publisher),
	)

	b := &Bundle{
		ID:        uuid.NewString(),
		Auth:      authSession,
		Cart:      store,
		Discounts: ledger,
	}
	b.unbind = store.Bind(authSession)

	r.mu.Lock()
	b.lastSeen = r.now()
	r.bundles[b.ID] = b
	r.mu.Unlock()

	return b
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bundles)
}

func (r *Registry) cleanupLoop(interval time.Duration) {
	defer r.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictIdle()
		case <-r.stopCleanup:
			return
		}
	}
}

// evictIdle drops bundles unused for longer than the idle TTL and waits for
// their pending cart writes.
func (r *Registry) evictIdle() {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var idle []*Bundle
	for id, b := range r.bundles {
		if b.lastSeen.Before(cutoff) {
			idle = append(idle, b)
			delete(r.bundles, id)
		}
	}
	r.mu.Unlock()

	for _, b := range idle {
		r.release(b)
	}
	if len(idle) > 0 {
		r.logger.Debug("evicted idle sessions", zap.Int("count", len(idle)))
	}
}

func (r *Registry) release(b *Bundle) {
	b.unbind()
	b.Cart.Wait()
}

// Close stops the janitor and flushes the pending cart writes of every
// session. Sessions are not signed out.
func (r *Registry) Close(ctx context.Context) error {
	r.closeOnce.Do(func() { close(r.stopCleanup) })
	r.wg.Wait()

	r.mu.Lock()
	all := make([]*Bundle, 0, len(r.bundles))
	for id, b := range r.bundles {
		all = append(all, b)
		delete(r.bundles, id)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, b := range all {
			r.release(b)
		}
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
