package discount

import (
	"fmt"
	"sort"

	"github.com/olynsn15/fruitopia-store/internal/domain"
)

var ErrPromotionNotFound = fmt.Errorf("promotion %w", domain.ErrNotFound)

// Promotion is a claimable banner offer.
type Promotion struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	ProductName string  `json:"product_name"`
	PercentOff  float64 `json:"percent_off"`
	BasePrice   int64   `json:"base_price"`
}

var DefaultPromotions = []Promotion{
	{
		ID:          "pineapple-25",
		Title:       "25% OFF",
		ProductName: "Pineapple",
		PercentOff:  25,
		BasePrice:   18000,
	},
}

type Promotions struct {
	byID map[string]Promotion
}

func NewPromotions(promos ...Promotion) *Promotions {
	p := &Promotions{byID: make(map[string]Promotion, len(promos))}
	for _, promo := range promos {
		p.byID[promo.ID] = promo
	}
	return p
}

func (p *Promotions) Get(id string) (Promotion, error) {
	promo, ok := p.byID[id]
	if !ok {
		return Promotion{}, ErrPromotionNotFound
	}
	return promo, nil
}

func (p *Promotions) List() []Promotion {
	out := make([]Promotion, 0, len(p.byID))
	for _, promo := range p.byID {
		out = append(out, promo)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Claim records the promotion's discounted price in the ledger.
func (l *Ledger) Claim(promo Promotion) (int64, error) {
	return l.ApplyDiscount(promo.ProductName, promo.PercentOff, promo.BasePrice)
}
