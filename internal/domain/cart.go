package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCartWindow is how long a cart stays valid after its last modification.
const DefaultCartWindow = 15 * time.Minute

// MaxLineQuantity caps the quantity of a single cart line.
const MaxLineQuantity = 99

// Cart is the primary (relational) cart aggregate.
type Cart struct {
	ID        int64
	UserID    int64
	Lines     []CartLine
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiredAt time.Time
}

// CartLine is a cart row as stored in the primary store.
type CartLine struct {
	VariantID int64
	Quantity  int
}

func (c *Cart) IsExpired(now time.Time) bool {
	return now.After(c.ExpiredAt)
}

// Touch stamps a modification at now and pushes the expiration window forward.
func (c *Cart) Touch(now time.Time, window time.Duration) {
	c.UpdatedAt = now
	c.ExpiredAt = ExpirationFrom(now, window)
}

// ExpirationFrom returns the expiration instant for a cart modified at t.
func ExpirationFrom(t time.Time, window time.Duration) time.Time {
	if window <= 0 {
		window = DefaultCartWindow
	}
	return t.Add(window)
}

// CartItem is a denormalized snapshot of one cart line joined with the catalog.
type CartItem struct {
	ID         int64           `json:"id"`
	Reference  string          `json:"reference"`
	Name       string          `json:"name"`
	Color      string          `json:"color"`
	Size       string          `json:"size"`
	Category   string          `json:"category"`
	Brand      string          `json:"brand"`
	Image      string          `json:"image"`
	Stock      int             `json:"stock"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Adjustment decimal.Decimal `json:"adjustment"`
	Total      decimal.Decimal `json:"total"`
}

// LineTotal is quantity * unitPrice + adjustment.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity))).Add(i.Adjustment)
}

// Recompute refreshes Total from the other fields.
func (i *CartItem) Recompute() {
	i.Total = i.LineTotal()
}

// CartProjection is the read-optimized cart document kept in the secondary store.
type CartProjection struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"userId"`
	User        string     `json:"user"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ExpiredAt   time.Time  `json:"expiredAt"`
	CartProduct []CartItem `json:"cartProduct"`
}

// Total sums the line totals of the projection.
func (p *CartProjection) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range p.CartProduct {
		sum = sum.Add(item.Total)
	}
	return sum
}
