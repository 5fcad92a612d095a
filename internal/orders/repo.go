package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const orderCols = `id, user_id, status, total_cents, created_at, COALESCE(updated_at, created_at)`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	if err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalCents, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

// CreateOrder prices and persists an order with its line items in one
// transaction. Unit prices are captured from the products table at this
// moment; the total never changes afterwards.
func (r *Repo) CreateOrder(ctx context.Context, userID int64, items []ItemInput) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	rows, err := tx.Query(ctx, `SELECT `+productCols+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	products := map[int64]Product{}
	for rows.Next() {
		p, err := scanProductRows(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lines, total, err := PriceItems(products, items)
	if err != nil {
		return nil, err
	}

	o := &Order{UserID: userID, Status: StatusPending, TotalCents: total}
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, status, total_cents)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`, userID, StatusPending, total).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	o.UpdatedAt = o.CreatedAt

	for i := range lines {
		lines[i].OrderID = o.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, unit_price_cents)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			o.ID, lines[i].ProductID, lines[i].Quantity, lines[i].UnitPriceCents,
		).Scan(&lines[i].ID)
		if err != nil {
			return nil, err
		}
	}
	o.Items = lines

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, orderID))
	if err != nil {
		return nil, err
	}
	o.Items, err = r.orderItems(ctx, r.DB, orderID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) ListOrders(ctx context.Context, limit, offset int) ([]Order, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderCols+` FROM orders ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	var ids []int64
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalCents, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		o.Items = []OrderItem{}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	irows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price_cents
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer irows.Close()

	byOrder := map[int64][]OrderItem{}
	for irows.Next() {
		var it OrderItem
		if err := irows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPriceCents); err != nil {
			return nil, err
		}
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	if err := irows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if items, ok := byOrder[out[i].ID]; ok {
			out[i].Items = items
		}
	}
	return out, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repo) orderItems(ctx context.Context, q querier, orderID int64) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price_cents
		FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []OrderItem{}
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPriceCents); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// MarkPaid applies the RESERVED|CONFIRMED -> PAID transition under a row
// lock on the order.
func (r *Repo) MarkPaid(ctx context.Context, orderID int64) (*Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1 FOR UPDATE`, orderID))
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, StatusPaid) {
		return nil, fmt.Errorf("pay order %d in status %s: %w", orderID, o.Status, ErrInvalidTransition)
	}
	err = tx.QueryRow(ctx, `
		UPDATE orders SET status=$2, updated_at=now() WHERE id=$1
		RETURNING updated_at`, orderID, StatusPaid).Scan(&o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = StatusPaid
	if o.Items, err = r.orderItems(ctx, tx, orderID); err != nil {
		return nil, err
	}
	return o, tx.Commit(ctx)
}

// CancelOrder applies the transition to CANCELLED under a row lock and
// reports whether stock had already been committed, in which case
// restock_pending is raised for the worker's compensation handler.
func (r *Repo) CancelOrder(ctx context.Context, orderID int64) (*Order, bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1 FOR UPDATE`, orderID))
	if err != nil {
		return nil, false, err
	}
	if !CanTransition(o.Status, StatusCancelled) {
		return nil, false, fmt.Errorf("cancel order %d in status %s: %w", orderID, o.Status, ErrInvalidTransition)
	}
	restock := o.Status.StockCommitted()
	err = tx.QueryRow(ctx, `
		UPDATE orders SET status=$2, restock_pending=$3, updated_at=now() WHERE id=$1
		RETURNING updated_at`, orderID, StatusCancelled, restock).Scan(&o.UpdatedAt)
	if err != nil {
		return nil, false, err
	}
	o.Status = StatusCancelled
	if o.Items, err = r.orderItems(ctx, tx, orderID); err != nil {
		return nil, false, err
	}
	return o, restock, tx.Commit(ctx)
}
