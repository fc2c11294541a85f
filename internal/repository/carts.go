package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/sneakpeak/internal/domain"
	"github.com/google/uuid"
)

const cartColumns = `id, user_id, created_at, updated_at, expired_at`

func (r *Repository) GetCartByUser(ctx context.Context, userID int64) (*domain.Cart, error) {
	return r.getCart(ctx, `SELECT `+cartColumns+` FROM carts WHERE user_id = $1`, userID)
}

func (r *Repository) GetCartByID(ctx context.Context, cartID int64) (*domain.Cart, error) {
	return r.getCart(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1`, cartID)
}

func (r *Repository) getCart(ctx context.Context, query string, arg int64) (*domain.Cart, error) {
	var c domain.Cart
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt, &c.ExpiredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT variant_id, quantity FROM cart_products WHERE cart_id = $1 ORDER BY added_at, variant_id`, c.ID)
	if err != nil {
		return nil, fmt.Errorf("query cart lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.VariantID, &line.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		c.Lines = append(c.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return &c, nil
}

// AddItem creates the user's cart if needed and adds quantity to the variant's line.
// The cart timestamps and an upsert event are written in the same transaction.
func (r *Repository) AddItem(ctx context.Context, userID, variantID int64, quantity int, now, expiredAt time.Time) (int64, error) {
	var cartID int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO carts (user_id, created_at, updated_at, expired_at)
			VALUES ($1, $2, $2, $3)
			ON CONFLICT (user_id) DO UPDATE SET updated_at = EXCLUDED.updated_at, expired_at = EXCLUDED.expired_at
			RETURNING id`, userID, now, expiredAt).Scan(&cartID)
		if err != nil {
			return fmt.Errorf("upsert cart: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO cart_products (cart_id, variant_id, quantity, added_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (cart_id, variant_id) DO UPDATE SET quantity = cart_products.quantity + EXCLUDED.quantity
			WHERE cart_products.quantity + EXCLUDED.quantity <= $5`,
			cartID, variantID, quantity, now, domain.MaxLineQuantity)
		if err != nil {
			return fmt.Errorf("upsert cart line: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrQuantityLimit
		}

		return insertCartEvent(ctx, tx, domain.CartEvent{
			Type: domain.CartEventUpserted, CartID: cartID, UserID: userID, OccurredAt: now,
		})
	})
	if err != nil {
		return 0, err
	}
	return cartID, nil
}

// UpdateItemQuantity overwrites the quantity of an existing line.
func (r *Repository) UpdateItemQuantity(ctx context.Context, userID, variantID int64, quantity int, now, expiredAt time.Time) (int64, error) {
	return r.mutateLine(ctx, userID, now, expiredAt, func(tx *sql.Tx, cartID int64) (sql.Result, error) {
		return tx.ExecContext(ctx,
			`UPDATE cart_products SET quantity = $1 WHERE cart_id = $2 AND variant_id = $3`,
			quantity, cartID, variantID)
	})
}

func (r *Repository) RemoveItem(ctx context.Context, userID, variantID int64, now, expiredAt time.Time) (int64, error) {
	return r.mutateLine(ctx, userID, now, expiredAt, func(tx *sql.Tx, cartID int64) (sql.Result, error) {
		return tx.ExecContext(ctx,
			`DELETE FROM cart_products WHERE cart_id = $1 AND variant_id = $2`, cartID, variantID)
	})
}

func (r *Repository) mutateLine(ctx context.Context, userID int64, now, expiredAt time.Time,
	change func(tx *sql.Tx, cartID int64) (sql.Result, error)) (int64, error) {
	var cartID int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT id FROM carts WHERE user_id = $1 FOR UPDATE`, userID).Scan(&cartID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCartNotFound
		}
		if err != nil {
			return fmt.Errorf("lock cart: %w", err)
		}

		res, err := change(tx, cartID)
		if err != nil {
			return fmt.Errorf("change cart line: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("rows affected: %w", err)
		} else if n == 0 {
			return ErrItemNotFound
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE carts SET updated_at = $1, expired_at = $2 WHERE id = $3`, now, expiredAt, cartID); err != nil {
			return fmt.Errorf("touch cart: %w", err)
		}

		return insertCartEvent(ctx, tx, domain.CartEvent{
			Type: domain.CartEventUpserted, CartID: cartID, UserID: userID, OccurredAt: now,
		})
	})
	if err != nil {
		return 0, err
	}
	return cartID, nil
}

// DeleteCart removes the user's cart with its lines and records a tombstone event.
func (r *Repository) DeleteCart(ctx context.Context, userID int64, now time.Time) (int64, error) {
	var cartID int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `DELETE FROM carts WHERE user_id = $1 RETURNING id`, userID).Scan(&cartID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCartNotFound
		}
		if err != nil {
			return fmt.Errorf("delete cart: %w", err)
		}
		return insertCartEvent(ctx, tx, domain.CartEvent{
			Type: domain.CartEventDeleted, CartID: cartID, UserID: userID, OccurredAt: now,
		})
	})
	if err != nil {
		return 0, err
	}
	return cartID, nil
}

func insertCartEvent(ctx context.Context, tx *sql.Tx, event domain.CartEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal cart event: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO cart_outbox (id, aggregate_id, user_id, event_type, payload, created_at, next_attempt_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		uuid.New(), event.CartID, event.UserID, string(event.Type), payload, event.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}
