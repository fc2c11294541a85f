package domain

import "time"

type CartEventType string

const (
	CartEventUpserted CartEventType = "cart.upserted"
	CartEventDeleted  CartEventType = "cart.deleted"
)

// CartEvent announces that the primary cart changed. It carries no cart content:
// the projector always re-resolves the cart from the primary store.
type CartEvent struct {
	Type       CartEventType `json:"type"`
	CartID     int64         `json:"cartId"`
	UserID     int64         `json:"userId"`
	OccurredAt time.Time     `json:"occurredAt"`
}
