package discount

import (
	"errors"
	"sync"

	"github.com/shopspring/decimal"
)

var ErrInvalidPercent = errors.New("discount percent must be between 0 and 100")

// Ledger maps product name to an overridden unit price. It lives for one
// session and entries never expire until Reset.
type Ledger struct {
	mu     sync.RWMutex
	prices map[string]int64
}

func NewLedger() *Ledger {
	return &Ledger{prices: make(map[string]int64)}
}

// ApplyDiscount stores round(basePrice * (1 - percentOff/100)) for productName
// and returns it.
func (l *Ledger) ApplyDiscount(productName string, percentOff float64, basePrice int64) (int64, error) {
	if percentOff < 0 || percentOff > 100 {
		return 0, ErrInvalidPercent
	}

	price := DiscountedPrice(basePrice, percentOff)

	l.mu.Lock()
	l.prices[productName] = price
	l.mu.Unlock()

	return price, nil
}

// EffectivePrice returns the overridden price for productName, or basePrice.
func (l *Ledger) EffectivePrice(productName string, basePrice int64) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if p, ok := l.prices[productName]; ok {
		return p
	}
	return basePrice
}

func (l *Ledger) Discounts() map[string]int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]int64, len(l.prices))
	for k, v := range l.prices {
		out[k] = v
	}
	return out
}

func (l *Ledger) Reset() {
	l.mu.Lock()
	l.prices = make(map[string]int64)
	l.mu.Unlock()
}

func DiscountedPrice(basePrice int64, percentOff float64) int64 {
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(percentOff).Div(decimal.NewFromInt(100)))
	return decimal.NewFromInt(basePrice).Mul(factor).Round(0).IntPart()
}
