package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cabangpos/backend/internal/domain"

	"github.com/jmoiron/sqlx"
)

// ApplyDelta adjusts a product's stock by delta inside the caller's
// transaction and recomputes the discrepancy flag from the new level.
//
// This is a plain read-modify-write with no row lock. Two concurrent
// sales of the same product can both read the old level and the later
// commit wins; the resulting drift is surfaced through the discrepancy
// flag instead of being prevented. Sales must never block on stock.
func ApplyDelta(ctx context.Context, tx *sqlx.Tx, productID string, delta int) (int, error) {
	var level int
	err := tx.GetContext(ctx, &level,
		tx.Rebind(`SELECT stock_level FROM products WHERE id = ?`), productID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.NotFound(domain.NotFoundProduct, productID)
	}
	if err != nil {
		return 0, fmt.Errorf("read stock for %s: %w", productID, err)
	}

	level += delta
	flag := 0
	if level < 0 {
		flag = 1
	}

	_, err = tx.ExecContext(ctx,
		tx.Rebind(`UPDATE products SET stock_level = ?, has_inventory_discrepancy = ?, updated_at = ? WHERE id = ?`),
		level, flag, time.Now().UTC().Format(domain.TimeLayout), productID)
	if err != nil {
		return 0, fmt.Errorf("write stock for %s: %w", productID, err)
	}
	return level, nil
}

// Exists reports whether the product row is present. Used for validation
// before any mutation starts.
func Exists(ctx context.Context, q sqlx.QueryerContext, rebind func(string) string, productID string) (bool, error) {
	var one int
	err := sqlx.GetContext(ctx, q, &one,
		rebind(`SELECT 1 FROM products WHERE id = ?`), productID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
