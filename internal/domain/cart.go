package domain

import "time"

// CartLine is one product entry in a cart. Prices are in minor currency units.
type CartLine struct {
	ProductID int64  `bson:"id" json:"id"`
	Name      string `bson:"name" json:"name"`
	UnitPrice int64  `bson:"price" json:"price"`
	Quantity  int    `bson:"quantity" json:"quantity"`
	ImageRef  string `bson:"image_url" json:"image_url"`
}

// CartRecord is the persisted snapshot of a user's cart, keyed by user id.
type CartRecord struct {
	UserID        string     `bson:"user_id" json:"user_id"`
	CartLines     []CartLine `bson:"cart_items" json:"cart_items"`
	SelectedItems []int64    `bson:"selected_items" json:"selected_items"`
	CreatedAt     time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `bson:"updated_at" json:"updated_at"`
}

// CheckoutSummary describes the lines taken out of the cart by a checkout.
type CheckoutSummary struct {
	Lines    []CartLine `json:"lines"`
	Quantity int        `json:"quantity"`
	Subtotal int64      `json:"subtotal"`
	Shipping int64      `json:"shipping"`
	Tax      int64      `json:"tax"`
	Total    int64      `json:"total"`
}
