package domain

import "github.com/shopspring/decimal"

// Variant is a purchasable size/color of a product.
type Variant struct {
	ID        int64
	ProductID int64
	Color     string
	Size      string
	Image     string
	Stock     int
}

type Product struct {
	ID         int64
	Reference  string
	Name       string
	Price      decimal.Decimal
	CategoryID int64
	BrandID    int64
}

type Category struct {
	ID   int64
	Name string
}

type Brand struct {
	ID   int64
	Name string
}

type User struct {
	ID    int64
	Email string
}
