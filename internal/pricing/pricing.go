// Package pricing computes cart totals. All amounts are whole minor currency
// units; every function is a pure function of its inputs.
package pricing

import (
	"github.com/olynsn15/fruitopia-store/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	FlatShippingFee       int64 = 25000
	FreeShippingThreshold int64 = 100000
)

var TaxRate = decimal.RequireFromString("0.10")

// PriceLookup returns the price to charge for a product, given its list price.
type PriceLookup interface {
	EffectivePrice(productName string, basePrice int64) int64
}

// Breakdown is the checkout summary for the selected lines.
type Breakdown struct {
	Quantity int   `json:"quantity"`
	Subtotal int64 `json:"subtotal"`
	Shipping int64 `json:"shipping"`
	Tax      int64 `json:"tax"`
	Total    int64 `json:"total"`
}

func UnitPrice(line domain.CartLine, prices PriceLookup) int64 {
	if prices == nil {
		return line.UnitPrice
	}
	return prices.EffectivePrice(line.Name, line.UnitPrice)
}

func LineTotal(line domain.CartLine, prices PriceLookup) int64 {
	return UnitPrice(line, prices) * int64(line.Quantity)
}

func TotalItemCount(lines []domain.CartLine) int {
	total := 0
	for _, l := range lines {
		total += l.Quantity
	}
	return total
}

func SelectedSubtotal(lines []domain.CartLine, selected []int64, prices PriceLookup) int64 {
	set := selectionSet(selected)
	var subtotal int64
	for _, l := range lines {
		if _, ok := set[l.ProductID]; ok {
			subtotal += LineTotal(l, prices)
		}
	}
	return subtotal
}

func SelectedQuantity(lines []domain.CartLine, selected []int64) int {
	set := selectionSet(selected)
	qty := 0
	for _, l := range lines {
		if _, ok := set[l.ProductID]; ok {
			qty += l.Quantity
		}
	}
	return qty
}

// ShippingFee is free for an empty selection and for subtotals at or above
// FreeShippingThreshold.
func ShippingFee(subtotal int64, selectionEmpty bool) int64 {
	if selectionEmpty || subtotal >= FreeShippingThreshold {
		return 0
	}
	return FlatShippingFee
}

// Tax is TaxRate applied to subtotal plus shipping, rounded half up.
func Tax(subtotal, shipping int64) int64 {
	return decimal.NewFromInt(subtotal + shipping).
		Mul(TaxRate).
		Round(0).
		IntPart()
}

func FinalTotal(subtotal int64, selectionEmpty bool) int64 {
	if selectionEmpty {
		return 0
	}
	shipping := ShippingFee(subtotal, false)
	return subtotal + shipping + Tax(subtotal, shipping)
}

func Compute(lines []domain.CartLine, selected []int64, prices PriceLookup) Breakdown {
	if len(selected) == 0 {
		return Breakdown{}
	}
	subtotal := SelectedSubtotal(lines, selected, prices)
	shipping := ShippingFee(subtotal, false)
	tax := Tax(subtotal, shipping)
	return Breakdown{
		Quantity: SelectedQuantity(lines, selected),
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal + shipping + tax,
	}
}

func selectionSet(selected []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(selected))
	for _, id := range selected {
		set[id] = struct{}{}
	}
	return set
}
