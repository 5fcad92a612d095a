package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const productCols = `id, sku, name, description, price_cents, stock, created_at, COALESCE(updated_at, created_at)`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.PriceCents, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanProductRows(rows pgx.Rows) (Product, error) {
	var p Product
	err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.PriceCents, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *Repo) CreateProduct(ctx context.Context, p Product) (*Product, error) {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO products (sku, name, description, price_cents, stock)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		p.SKU, p.Name, p.Description, p.PriceCents, p.Stock,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("sku %q: %w", p.SKU, ErrDuplicateSKU)
		}
		return nil, err
	}
	p.UpdatedAt = p.CreatedAt
	return &p, nil
}

// isUniqueViolation reports whether err is Postgres error 23505. Letting the
// unique index arbitrate avoids the race a SELECT-then-INSERT check has under
// concurrent creates.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *Repo) GetProduct(ctx context.Context, productID int64) (*Product, error) {
	return scanProduct(r.DB.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1`, productID))
}

func (r *Repo) GetProductBySKU(ctx context.Context, sku string) (*Product, error) {
	return scanProduct(r.DB.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE sku=$1`, sku))
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productCols+` FROM products ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProductRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateProduct(ctx context.Context, productID int64, upd ProductUpdate) (*Product, error) {
	if upd.PriceCents != nil && *upd.PriceCents < 0 {
		return nil, fmt.Errorf("price_cents: %w", ErrInvalidPrice)
	}
	if upd.Stock != nil && *upd.Stock < 0 {
		return nil, fmt.Errorf("stock: %w", ErrInsufficientStock)
	}
	return scanProduct(r.DB.QueryRow(ctx, `
		UPDATE products SET
			name        = COALESCE($2, name),
			description = COALESCE($3, description),
			price_cents = COALESCE($4, price_cents),
			stock       = COALESCE($5, stock),
			updated_at  = now()
		WHERE id=$1
		RETURNING `+productCols,
		productID, upd.Name, upd.Description, upd.PriceCents, upd.Stock))
}

// DeleteProduct removes dependent order items first to satisfy the FK.
func (r *Repo) DeleteProduct(ctx context.Context, productID int64) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE product_id=$1`, productID); err != nil {
		return err
	}
	ct, err := tx.Exec(ctx, `DELETE FROM products WHERE id=$1`, productID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return tx.Commit(ctx)
}

// AdjustStock applies a signed stock delta under a row lock. A delta that
// would drive stock negative is rejected, not clamped.
func (r *Repo) AdjustStock(ctx context.Context, productID int64, delta int) (*Product, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p, err := scanProduct(tx.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1 FOR UPDATE`, productID))
	if err != nil {
		return nil, err
	}
	if p.Stock+delta < 0 {
		return nil, fmt.Errorf("product %d: stock %d, delta %d: %w", productID, p.Stock, delta, ErrInsufficientStock)
	}
	err = tx.QueryRow(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now() WHERE id=$1
		RETURNING stock, updated_at`, productID, delta).Scan(&p.Stock, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, tx.Commit(ctx)
}
