package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusExpired   OrderStatus = "expired"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusCancelled
}

func (s OrderStatus) String() string {
	return string(s)
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusExpired, OrderStatusCancelled},
	OrderStatusExpired: {OrderStatusPending, OrderStatusCancelled},
}

// CanTransitionTo reports whether an order may move from one status to another.
func CanTransitionTo(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Order is a durable checkout attempt. Its lines are immutable snapshots.
type Order struct {
	ID        int64           `json:"id"`
	Reference string          `json:"reference"`
	UserID    int64           `json:"userId"`
	Total     decimal.Decimal `json:"total"`
	SessionID string          `json:"sessionId"`
	Status    OrderStatus     `json:"status"`
	Products  []OrderProduct  `json:"products,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// OrderProduct is a line item copied by value at order creation time.
type OrderProduct struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"orderId"`
	VariantID int64           `json:"variantId"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

// OrderProductsFromCart snapshots cart items into order lines.
func OrderProductsFromCart(items []CartItem) []OrderProduct {
	products := make([]OrderProduct, len(items))
	for i, item := range items {
		products[i] = OrderProduct{
			VariantID: item.ID,
			Name:      item.Name,
			Image:     item.Image,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		}
	}
	return products
}

// CopyOrderProducts clones historical lines for a new order, keeping their prices.
func CopyOrderProducts(history []OrderProduct) []OrderProduct {
	products := make([]OrderProduct, len(history))
	for i, p := range history {
		products[i] = OrderProduct{
			VariantID: p.VariantID,
			Name:      p.Name,
			Image:     p.Image,
			UnitPrice: p.UnitPrice,
			Quantity:  p.Quantity,
		}
	}
	return products
}
