package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ecommerce-labs/order-fulfillment/internal/orders"
)

type Outcome string

const (
	// OutcomeSkipped means the event was a redelivery (or referenced a
	// missing order) and nothing was changed.
	OutcomeSkipped  Outcome = "skipped"
	OutcomeReserved Outcome = "reserved"
	OutcomeRejected Outcome = "rejected"
	OutcomeReleased Outcome = "released"
)

type Result struct {
	Outcome   Outcome
	Items     []orders.ItemQty       // affected quantities on reserved/released
	Shortages []orders.StockShortage // filled on rejected
}

type ReservationRepo struct{ DB *pgxpool.Pool }

// Reserve runs one reservation attempt in a single transaction: lock the
// order row, guard on PENDING, lock every product row, validate, then either
// decrement all items and write RESERVED or leave stock untouched and write
// FAILED. Product locks are taken in ascending product id order and held
// until commit, so check and decrement cannot interleave with a concurrent
// attempt on the same products.
func (r *ReservationRepo) Reserve(ctx context.Context, orderID int64) (Result, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status orders.Status
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, orderID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Result{Outcome: OutcomeSkipped}, nil
	}
	if err != nil {
		return Result{}, err
	}
	if status != orders.StatusPending {
		// redelivered event; the first delivery already settled this order
		return Result{Outcome: OutcomeSkipped}, nil
	}

	items, err := orderItems(ctx, tx, orderID)
	if err != nil {
		return Result{}, err
	}

	var shortages []orders.StockShortage
	for _, it := range items {
		var stock int
		if err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1 FOR UPDATE`, it.ProductID).Scan(&stock); err != nil {
			return Result{}, err
		}
		if stock < it.Quantity {
			shortages = append(shortages, orders.StockShortage{
				ProductID: it.ProductID, Requested: it.Quantity, Available: stock,
			})
		}
	}

	if len(shortages) > 0 {
		if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`,
			orderID, orders.StatusFailed); err != nil {
			return Result{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			return Result{}, err
		}
		return Result{Outcome: OutcomeRejected, Shortages: shortages}, nil
	}

	for _, it := range items {
		if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock - $2, updated_at = now() WHERE id=$1`,
			it.ProductID, it.Quantity); err != nil {
			return Result{}, err
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`,
		orderID, orders.StatusReserved); err != nil {
		return Result{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Result{}, err
	}
	return Result{Outcome: OutcomeReserved, Items: items}, nil
}

// Restock compensates a cancelled order, restoring exactly the quantities
// a successful reservation subtracted. The restock_pending flag is flipped
// in the same transaction, so a redelivered cancel event finds it lowered
// and becomes a no-op.
func (r *ReservationRepo) Restock(ctx context.Context, orderID int64) (Result, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE orders SET restock_pending = false, updated_at = now()
		WHERE id=$1 AND restock_pending`, orderID)
	if err != nil {
		return Result{}, err
	}
	if ct.RowsAffected() == 0 {
		return Result{Outcome: OutcomeSkipped}, nil
	}

	items, err := orderItems(ctx, tx, orderID)
	if err != nil {
		return Result{}, err
	}
	for _, it := range items {
		if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id=$1`,
			it.ProductID, it.Quantity); err != nil {
			return Result{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Result{}, err
	}
	return Result{Outcome: OutcomeReleased, Items: items}, nil
}

// orderItems returns the order's total demand per product. An order may
// carry several lines for the same product, so quantities are summed before
// the stock check.
func orderItems(ctx context.Context, tx pgx.Tx, orderID int64) ([]orders.ItemQty, error) {
	rows, err := tx.Query(ctx, `
		SELECT product_id, SUM(quantity) AS quantity FROM order_items
		WHERE order_id=$1 GROUP BY product_id ORDER BY product_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []orders.ItemQty
	for rows.Next() {
		var it orders.ItemQty
		if err := rows.Scan(&it.ProductID, &it.Quantity); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
