// Package cart holds the per-session shopping cart: its lines, the selection
// slated for checkout, and the best-effort persistence of both to the remote
// cart record of the signed-in user.
package cart

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/olynsn15/fruitopia-store/internal/domain"
	"github.com/olynsn15/fruitopia-store/internal/events"
	"github.com/olynsn15/fruitopia-store/internal/pricing"
	"go.uber.org/zap"
)

const defaultWriteTimeout = 5 * time.Second

// MaxLineQuantity caps the quantity of a single cart line.
const MaxLineQuantity = 99

// IdentityFeed delivers identity changes, nil meaning signed out.
type IdentityFeed interface {
	Subscribe(fn func(ctx context.Context, identity *domain.Identity)) (unsubscribe func())
}

type Option func(*Store)

func WithPriceLookup(prices pricing.PriceLookup) Option {
	return func(s *Store) { s.prices = prices }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Store) { s.publisher = p }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(s *Store) { s.writeTimeout = d }
}

// Store is the in-memory source of truth for one session's cart.
//
// Every mutation made while a user is signed in and the record is loaded
// queues an asynchronous upsert of the full snapshot. A single writer drains
// the queue in mutation order, keeping only the newest snapshot per user, so
// the remote copy ends up matching memory. Writes are not retried; under
// concurrent sessions for the same user the last one to write wins.
type Store struct {
	records      Records
	prices       pricing.PriceLookup
	publisher    events.Publisher
	logger       *zap.Logger
	writeTimeout time.Duration
	now          func() time.Time

	mu       sync.Mutex
	identity *domain.Identity
	loaded   bool
	epoch    uint64
	lines    []domain.CartLine
	selected []int64

	queueMu    sync.Mutex
	queue      []*domain.CartRecord
	writing    bool
	writesDone chan struct{}

	inflight sync.WaitGroup
}

func NewStore(records Records, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		records:      records,
		publisher:    events.Nop{},
		logger:       logger,
		writeTimeout: defaultWriteTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bind subscribes the store to identity changes.
func (s *Store) Bind(feed IdentityFeed) (unbind func()) {
	return feed.Subscribe(func(ctx context.Context, identity *domain.Identity) {
		if err := s.OnIdentityChange(ctx, identity); err != nil {
			s.logger.Warn("cart not loaded", zap.Error(err))
		}
	})
}

// OnIdentityChange resets the cart for a sign-out and reloads it from the
// remote record for a sign-in. The cart reads as signed out while the record
// loads. When the load fails the cart starts empty and stays unsaved until the
// next sign-in, so the stored record is not clobbered. A repeat notification
// for the user whose record is already loaded keeps the cart as it is.
func (s *Store) OnIdentityChange(ctx context.Context, identity *domain.Identity) error {
	s.mu.Lock()
	if identity != nil && s.loaded && s.identity != nil && s.identity.ID == identity.ID {
		id := *identity
		s.identity = &id
		s.mu.Unlock()
		return nil
	}

	s.epoch++
	epoch := s.epoch
	s.identity = nil
	s.loaded = false
	s.lines = nil
	s.selected = nil
	s.mu.Unlock()

	if identity == nil {
		return nil
	}

	id := *identity
	s.awaitWrites(ctx)
	record, err := s.records.GetCart(ctx, id.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		// a later identity change won
		return nil
	}
	s.identity = &id
	if err != nil {
		return err
	}

	s.lines = slices.Clone(record.CartLines)
	s.selected = s.existingOnly(record.SelectedItems)
	s.loaded = true
	return nil
}

// AddToCart merges item into the cart, adding qty (minimum 1) to an existing
// line up to MaxLineQuantity. Guests get ErrUnauthenticated and the cart is
// left unchanged.
func (s *Store) AddToCart(item domain.CartLine, qty int) (bool, error) {
	qty = min(max(qty, 1), MaxLineQuantity)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identity == nil {
		return false, domain.ErrUnauthenticated
	}

	if i := s.indexOf(item.ProductID); i >= 0 {
		s.lines[i].Quantity = min(s.lines[i].Quantity+qty, MaxLineQuantity)
	} else {
		item.Quantity = qty
		s.lines = append(s.lines, item)
	}

	s.persistLocked()
	return true, nil
}

// RemoveFromCart deletes the line and its selection. Removing an absent line is a no-op.
func (s *Store) RemoveFromCart(productID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removeLocked(productID) {
		s.persistLocked()
	}
}

// UpdateQuantity sets the quantity of a line, capped at MaxLineQuantity;
// qty <= 0 removes it.
func (s *Store) UpdateQuantity(productID int64, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if qty <= 0 {
		if s.removeLocked(productID) {
			s.persistLocked()
		}
		return
	}

	qty = min(qty, MaxLineQuantity)
	i := s.indexOf(productID)
	if i < 0 || s.lines[i].Quantity == qty {
		return
	}
	s.lines[i].Quantity = qty
	s.persistLocked()
}

// ClearCart drops every line and the selection.
func (s *Store) ClearCart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = nil
	s.selected = nil
	s.persistLocked()
}

// ToggleSelectItem flips the selection of an existing line and reports
// whether it is now selected.
func (s *Store) ToggleSelectItem(productID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(productID) < 0 {
		return false
	}

	selected := true
	if i := slices.Index(s.selected, productID); i >= 0 {
		s.selected = slices.Delete(s.selected, i, i+1)
		selected = false
	} else {
		s.selected = append(s.selected, productID)
	}

	s.persistLocked()
	return selected
}

func (s *Store) SelectAllItems() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selected = make([]int64, 0, len(s.lines))
	for _, l := range s.lines {
		s.selected = append(s.selected, l.ProductID)
	}
	s.persistLocked()
}

func (s *Store) ClearSelectedItems() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selected = nil
	s.persistLocked()
}

// Checkout takes the selected lines out of the cart and returns what was
// bought. No payment is taken; a checkout event is published best-effort.
func (s *Store) Checkout() (*domain.CheckoutSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identity == nil {
		return nil, domain.ErrUnauthenticated
	}
	if len(s.selected) == 0 {
		return nil, domain.ErrEmptySelection
	}

	b := pricing.Compute(s.lines, s.selected, s.prices)
	summary := &domain.CheckoutSummary{
		Quantity: b.Quantity,
		Subtotal: b.Subtotal,
		Shipping: b.Shipping,
		Tax:      b.Tax,
		Total:    b.Total,
	}

	remaining := s.lines[:0:0]
	for _, l := range s.lines {
		if slices.Contains(s.selected, l.ProductID) {
			l.UnitPrice = pricing.UnitPrice(l, s.prices)
			summary.Lines = append(summary.Lines, l)
			continue
		}
		remaining = append(remaining, l)
	}
	s.lines = remaining
	s.selected = nil
	s.persistLocked()

	s.publishLocked(events.CheckoutCompleted{
		EventID:    uuid.NewString(),
		UserID:     s.identity.ID,
		Lines:      summary.Lines,
		Quantity:   summary.Quantity,
		Subtotal:   summary.Subtotal,
		Shipping:   summary.Shipping,
		Tax:        summary.Tax,
		Total:      summary.Total,
		OccurredAt: s.now(),
	})

	return summary, nil
}

// Wait blocks until all scheduled remote writes and event publishes finish.
func (s *Store) Wait() {
	s.inflight.Wait()
}

func (s *Store) Identity() *domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

func (s *Store) Lines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.lines)
}

func (s *Store) SelectedItems() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.selected)
}

// Snapshot returns the lines and the selection as of one instant.
func (s *Store) Snapshot() ([]domain.CartLine, []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.lines), slices.Clone(s.selected)
}

func (s *Store) TotalItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pricing.TotalItemCount(s.lines)
}

func (s *Store) SelectedSubtotal() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pricing.SelectedSubtotal(s.lines, s.selected, s.prices)
}

func (s *Store) SelectedQuantity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pricing.SelectedQuantity(s.lines, s.selected)
}

func (s *Store) ShippingFee() int64 {
	return s.breakdown().Shipping
}

func (s *Store) Tax() int64 {
	return s.breakdown().Tax
}

func (s *Store) FinalTotal() int64 {
	return s.breakdown().Total
}

func (s *Store) breakdown() pricing.Breakdown {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pricing.Compute(s.lines, s.selected, s.prices)
}

func (s *Store) indexOf(productID int64) int {
	return slices.IndexFunc(s.lines, func(l domain.CartLine) bool { return l.ProductID == productID })
}

func (s *Store) removeLocked(productID int64) bool {
	i := s.indexOf(productID)
	if i < 0 {
		return false
	}
	s.lines = slices.Delete(s.lines, i, i+1)
	if j := slices.Index(s.selected, productID); j >= 0 {
		s.selected = slices.Delete(s.selected, j, j+1)
	}
	return true
}

// existingOnly drops selected ids that have no line.
func (s *Store) existingOnly(selected []int64) []int64 {
	out := make([]int64, 0, len(selected))
	for _, id := range selected {
		if s.indexOf(id) >= 0 && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// persistLocked queues the current snapshot for the writer.
func (s *Store) persistLocked() {
	if !s.loaded || s.identity == nil {
		return
	}

	s.enqueue(&domain.CartRecord{
		UserID:        s.identity.ID,
		CartLines:     slices.Clone(s.lines),
		SelectedItems: slices.Clone(s.selected),
	})
}

// enqueue replaces a queued snapshot of the same user when it is the newest
// entry, and starts the writer if it is idle.
func (s *Store) enqueue(record *domain.CartRecord) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	if n := len(s.queue); n > 0 && s.queue[n-1].UserID == record.UserID {
		s.queue[n-1] = record
	} else {
		s.queue = append(s.queue, record)
	}

	if !s.writing {
		s.writing = true
		s.writesDone = make(chan struct{})
		s.inflight.Add(1)
		go s.writeLoop()
	}
}

// awaitWrites blocks until queued snapshots are saved or ctx ends, so a
// reload reads what this store wrote last.
func (s *Store) awaitWrites(ctx context.Context) {
	s.queueMu.Lock()
	if !s.writing {
		s.queueMu.Unlock()
		return
	}
	done := s.writesDone
	s.queueMu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

// writeLoop saves queued snapshots one at a time until the queue is empty.
func (s *Store) writeLoop() {
	defer s.inflight.Done()

	for {
		s.queueMu.Lock()
		if len(s.queue) == 0 {
			s.writing = false
			close(s.writesDone)
			s.queueMu.Unlock()
			return
		}
		record := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.queueMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
		if err := s.records.SaveCart(ctx, record); err != nil {
			s.logger.Warn("cart snapshot not persisted", zap.String("user_id", record.UserID), zap.Error(err))
		}
		cancel()
	}
}

func (s *Store) publishLocked(event events.CheckoutCompleted) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
		defer cancel()
		if err := s.publisher.PublishCheckout(ctx, event); err != nil {
			s.logger.Warn("checkout event not published", zap.String("user_id", event.UserID), zap.Error(err))
		}
	}()
}
