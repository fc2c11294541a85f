package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid            PaymentStatus = "unpaid"
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusNoPaymentRequired PaymentStatus = "no_payment_required"
)

type SessionStatus string

const (
	SessionStatusOpen     SessionStatus = "open"
	SessionStatusComplete SessionStatus = "complete"
	SessionStatusExpired  SessionStatus = "expired"
)

// PaymentSession mirrors the provider's checkout session. Amount is in minor units.
type PaymentSession struct {
	ID            string        `json:"id"`
	Amount        int64         `json:"amount_total"`
	Currency      string        `json:"currency"`
	URL           string        `json:"url"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Status        SessionStatus `json:"status"`
	ExpiresAt     time.Time     `json:"expires_at"`
}

func (s *PaymentSession) IsPaid() bool {
	return s.PaymentStatus == PaymentStatusPaid || s.PaymentStatus == PaymentStatusNoPaymentRequired
}

func (s *PaymentSession) IsExpired() bool {
	return s.Status == SessionStatusExpired
}

// Total converts the minor-unit amount into a decimal amount.
func (s *PaymentSession) Total() decimal.Decimal {
	return decimal.New(s.Amount, -2)
}

// SessionLine is one purchasable line sent to the provider.
type SessionLine struct {
	Name      string
	Image     string
	UnitPrice decimal.Decimal
	Quantity  int
}

// MinorUnits converts the unit price into provider minor units.
func (l SessionLine) MinorUnits() int64 {
	return l.UnitPrice.Shift(2).Round(0).IntPart()
}

// SessionRequest describes a payment session to open.
type SessionRequest struct {
	Reference string
	UserID    int64
	Email     string
	Currency  string
	Lines     []SessionLine
}

func SessionLinesFromOrder(products []OrderProduct) []SessionLine {
	lines := make([]SessionLine, len(products))
	for i, p := range products {
		lines[i] = SessionLine{Name: p.Name, Image: p.Image, UnitPrice: p.UnitPrice, Quantity: p.Quantity}
	}
	return lines
}
