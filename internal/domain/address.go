package domain

import (
	"fmt"
	"strings"
	"time"
)

// AddressRole is the closed set of roles an order address can play.
type AddressRole string

const (
	RoleBilling  AddressRole = "billing"
	RoleShipping AddressRole = "shipping"
)

func ParseAddressRole(s string) (AddressRole, error) {
	switch AddressRole(strings.ToLower(strings.TrimSpace(s))) {
	case RoleBilling:
		return RoleBilling, nil
	case RoleShipping:
		return RoleShipping, nil
	}
	return "", fmt.Errorf("unknown address role %q", s)
}

func (r AddressRole) String() string {
	return string(r)
}

// AddressInput is the free-text address a client submits.
type AddressInput struct {
	Address string `json:"address" validate:"required"`
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone" validate:"required"`
}

// FormattedAddress is what the formatting collaborator returns.
type FormattedAddress struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	Zip     string `json:"zip"`
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// Address is an order-owned snapshot of a normalized address.
// There is at most one per (OrderID, Role).
type Address struct {
	ID         int64       `json:"id"`
	OrderID    int64       `json:"orderId"`
	Role       AddressRole `json:"role"`
	Street     string      `json:"street"`
	City       string      `json:"city"`
	PostalCode string      `json:"postalCode"`
	State      string      `json:"state,omitempty"`
	Country    string      `json:"country,omitempty"`
	Name       string      `json:"name"`
	Phone      string      `json:"phone"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// Input rebuilds a free-text input from a stored address so it can be normalized again.
func (a Address) Input() AddressInput {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.Street, a.PostalCode, a.City} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return AddressInput{
		Address: strings.Join(parts, " "),
		Name:    a.Name,
		Phone:   a.Phone,
	}
}

// NewAddress builds an order address from a formatted result.
func NewAddress(orderID int64, role AddressRole, f FormattedAddress) Address {
	return Address{
		OrderID:    orderID,
		Role:       role,
		Street:     f.Street,
		City:       f.City,
		PostalCode: f.Zip,
		State:      f.State,
		Country:    f.Country,
		Name:       f.Name,
		Phone:      f.Phone,
	}
}
