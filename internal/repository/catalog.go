package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/sneakpeak/internal/domain"
)

func (r *Repository) GetVariant(ctx context.Context, id int64) (*domain.Variant, error) {
	var v domain.Variant
	err := r.db.QueryRowContext(ctx,
		`SELECT id, product_id, color, size, image, stock FROM variants WHERE id = $1`, id).
		Scan(&v.ID, &v.ProductID, &v.Color, &v.Size, &v.Image, &v.Stock)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("variant %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query variant %d: %w", id, err)
	}
	return &v, nil
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := r.db.QueryRowContext(ctx,
		`SELECT id, reference, name, price, category_id, brand_id FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Reference, &p.Name, &p.Price, &p.CategoryID, &p.BrandID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query product %d: %w", id, err)
	}
	return &p, nil
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	var c domain.Category
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM categories WHERE id = $1`, id).Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query category %d: %w", id, err)
	}
	return &c, nil
}

func (r *Repository) GetBrand(ctx context.Context, id int64) (*domain.Brand, error) {
	var b domain.Brand
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM brands WHERE id = $1`, id).Scan(&b.ID, &b.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("brand %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query brand %d: %w", id, err)
	}
	return &b, nil
}

func (r *Repository) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx, `SELECT id, email FROM users WHERE id = $1`, id).Scan(&u.ID, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query user %d: %w", id, err)
	}
	return &u, nil
}

// AvailableStock is the variant stock minus quantities held by unexpired reservations.
func (r *Repository) AvailableStock(ctx context.Context, variantID int64) (int, error) {
	var available int
	err := r.db.QueryRowContext(ctx, availableStockQuery+` WHERE v.id = $1`, variantID).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("variant %d: %w", variantID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("query available stock %d: %w", variantID, err)
	}
	return available, nil
}

const availableStockQuery = `SELECT v.stock - COALESCE((
	SELECT SUM(sr.quantity) FROM stock_reservations sr
	WHERE sr.variant_id = v.id AND sr.expires_at > NOW()), 0)
	FROM variants v`
