package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/fjod/sneakpeak/internal/domain"
	"github.com/lib/pq"
)

// CreateOrder persists the order, its line snapshots and the stock reservations
// backing them in one transaction. Variant rows are locked so concurrent checkouts
// of the same variant serialize on the availability re-check.
func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order, reservedUntil time.Time) error {
	wanted := make(map[int64]int)
	names := make(map[int64]string)
	for _, p := range order.Products {
		wanted[p.VariantID] += p.Quantity
		names[p.VariantID] = p.Name
	}
	variantIDs := make([]int64, 0, len(wanted))
	for id := range wanted {
		variantIDs = append(variantIDs, id)
	}
	// a stable lock order keeps two checkouts from deadlocking each other
	sort.Slice(variantIDs, func(i, j int) bool { return variantIDs[i] < variantIDs[j] })

	return r.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range variantIDs {
			available, err := lockAvailableStock(ctx, tx, id, 0)
			if err != nil {
				return err
			}
			if wanted[id] > available {
				return &domain.InsufficientStockError{
					VariantID: id, Name: names[id], Requested: wanted[id], Available: available,
				}
			}
		}

		err := tx.QueryRowContext(ctx, `
			INSERT INTO orders (reference, user_id, total, session_id, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			RETURNING id, created_at, updated_at`,
			order.Reference, order.UserID, order.Total, order.SessionID, string(order.Status)).
			Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return ErrDuplicateOrder
			}
			return fmt.Errorf("insert order: %w", err)
		}

		for i := range order.Products {
			p := &order.Products[i]
			p.OrderID = order.ID
			err := tx.QueryRowContext(ctx, `
				INSERT INTO order_products (order_id, position, variant_id, name, image, unit_price, quantity)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING id`,
				order.ID, i, p.VariantID, p.Name, p.Image, p.UnitPrice, p.Quantity).Scan(&p.ID)
			if err != nil {
				return fmt.Errorf("insert order product: %w", err)
			}
		}

		for _, id := range variantIDs {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO stock_reservations (order_id, variant_id, quantity, expires_at)
				VALUES ($1, $2, $3, $4)`, order.ID, id, wanted[id], reservedUntil)
			if err != nil {
				return fmt.Errorf("insert stock reservation: %w", err)
			}
		}
		return nil
	})
}

// lockAvailableStock locks the variant row and returns its stock minus the live
// reservations of every order other than excludeOrderID.
func lockAvailableStock(ctx context.Context, tx *sql.Tx, variantID, excludeOrderID int64) (int, error) {
	var stock int
	err := tx.QueryRowContext(ctx, `SELECT stock FROM variants WHERE id = $1 FOR UPDATE`, variantID).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("variant %d: %w", variantID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("lock variant %d: %w", variantID, err)
	}

	var reserved int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity), 0) FROM stock_reservations
		WHERE variant_id = $1 AND order_id <> $2 AND expires_at > NOW()`, variantID, excludeOrderID).Scan(&reserved)
	if err != nil {
		return 0, fmt.Errorf("sum reservations %d: %w", variantID, err)
	}
	return stock - reserved, nil
}

// GetOrderByReference loads an order owned by userID together with its line items.
func (r *Repository) GetOrderByReference(ctx context.Context, reference string, userID int64) (*domain.Order, error) {
	var o domain.Order
	var status string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, reference, user_id, total, session_id, status, created_at, updated_at
		FROM orders WHERE reference = $1 AND user_id = $2`, reference, userID).
		Scan(&o.ID, &o.Reference, &o.UserID, &o.Total, &o.SessionID, &status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by reference: %w", err)
	}
	o.Status = domain.OrderStatus(status)

	o.Products, err = r.ListOrderProducts(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repository) ListOrderProducts(ctx context.Context, orderID int64) ([]domain.OrderProduct, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, variant_id, name, image, unit_price, quantity
		FROM order_products WHERE order_id = $1 ORDER BY position`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order products: %w", err)
	}
	defer rows.Close()

	var products []domain.OrderProduct
	for rows.Next() {
		var p domain.OrderProduct
		if err := rows.Scan(&p.ID, &p.OrderID, &p.VariantID, &p.Name, &p.Image, &p.UnitPrice, &p.Quantity); err != nil {
			return nil, fmt.Errorf("scan order product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return products, nil
}

// UpdateOrderSession rebinds the order from prevSessionID to a renewed payment session,
// puts an expired order back to pending and extends its reservations to reservedUntil.
// Availability is re-checked because the old reservations may have lapsed.
// ErrStatusConflict means another caller renewed first or the order is no longer open.
func (r *Repository) UpdateOrderSession(ctx context.Context, orderID int64, prevSessionID, sessionID string, reservedUntil time.Time) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE orders SET session_id = $1, status = 'pending', updated_at = NOW()
			WHERE id = $2 AND session_id = $3 AND status IN ('pending', 'expired')`,
			sessionID, orderID, prevSessionID)
		if err != nil {
			return fmt.Errorf("update order session: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrStatusConflict
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT variant_id, quantity FROM stock_reservations WHERE order_id = $1 ORDER BY variant_id`, orderID)
		if err != nil {
			return fmt.Errorf("query reservations: %w", err)
		}
		held := make(map[int64]int)
		var variantIDs []int64
		for rows.Next() {
			var id int64
			var qty int
			if err := rows.Scan(&id, &qty); err != nil {
				rows.Close()
				return fmt.Errorf("scan reservation: %w", err)
			}
			held[id] = qty
			variantIDs = append(variantIDs, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("row iteration error: %w", err)
		}

		for _, id := range variantIDs {
			available, err := lockAvailableStock(ctx, tx, id, orderID)
			if err != nil {
				return err
			}
			if held[id] > available {
				return &domain.InsufficientStockError{VariantID: id, Requested: held[id], Available: available}
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE stock_reservations SET expires_at = $1 WHERE order_id = $2`, reservedUntil, orderID); err != nil {
			return fmt.Errorf("extend reservations: %w", err)
		}
		return nil
	})
}

// UpdateOrderStatus moves an order from one status to another if it is still in from.
// Paying converts the reservations into a stock decrement; cancelling releases them.
// A reservation that lapsed before payment may have been handed to another order,
// so the decrement stops at zero rather than failing a payment the provider already took.
func (r *Repository) UpdateOrderStatus(ctx context.Context, orderID int64, from, to domain.OrderStatus) error {
	if !domain.CanTransitionTo(from, to) {
		return fmt.Errorf("transition %s -> %s: %w", from, to, ErrStatusConflict)
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
			string(to), orderID, string(from))
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrStatusConflict
		}

		switch to {
		case domain.OrderStatusPaid:
			if _, err := tx.ExecContext(ctx, `
				UPDATE variants v SET stock = GREATEST(v.stock - sr.quantity, 0)
				FROM stock_reservations sr
				WHERE sr.order_id = $1 AND sr.variant_id = v.id`, orderID); err != nil {
				return fmt.Errorf("consume reservations: %w", err)
			}
			fallthrough
		case domain.OrderStatusCancelled:
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM stock_reservations WHERE order_id = $1`, orderID); err != nil {
				return fmt.Errorf("release reservations: %w", err)
			}
		}
		return nil
	})
}
