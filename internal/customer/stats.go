package customer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cabangpos/backend/internal/domain"

	"github.com/jmoiron/sqlx"
)

// ApplySale folds a completed sale into the customer's running totals.
// Runs inside the sale's transaction so the stats commit atomically with
// the sale row.
func ApplySale(ctx context.Context, tx *sqlx.Tx, customerID string, totalCents int64, at time.Time) error {
	res, err := tx.ExecContext(ctx, tx.Rebind(
		`UPDATE customers SET total_purchases_cents = total_purchases_cents + ?, visit_count = visit_count + 1, last_visit_at = ? WHERE id = ?`),
		totalCents, at.UTC().Format(domain.TimeLayout), customerID)
	if err != nil {
		return fmt.Errorf("apply sale to customer %s: %w", customerID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.NotFound(domain.NotFoundCustomer, customerID)
	}
	return nil
}

// ReverseSale backs a voided sale out of the totals. LastVisitAt stays
// where the sale left it; the void does not reconstruct visit history.
func ReverseSale(ctx context.Context, tx *sqlx.Tx, customerID string, totalCents int64) error {
	res, err := tx.ExecContext(ctx, tx.Rebind(
		`UPDATE customers SET total_purchases_cents = total_purchases_cents - ?, visit_count = visit_count - 1 WHERE id = ?`),
		totalCents, customerID)
	if err != nil {
		return fmt.Errorf("reverse sale for customer %s: %w", customerID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.NotFound(domain.NotFoundCustomer, customerID)
	}
	return nil
}

// Exists reports whether the customer row is present.
func Exists(ctx context.Context, q sqlx.QueryerContext, rebind func(string) string, customerID string) (bool, error) {
	var one int
	err := sqlx.GetContext(ctx, q, &one,
		rebind(`SELECT 1 FROM customers WHERE id = ?`), customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Get loads a customer with parsed timestamps.
func Get(ctx context.Context, q sqlx.QueryerContext, rebind func(string) string, customerID string) (domain.Customer, error) {
	var row struct {
		ID                  string         `db:"id"`
		Name                string         `db:"name"`
		TotalPurchasesCents int64          `db:"total_purchases_cents"`
		VisitCount          int            `db:"visit_count"`
		LastVisitAt         sql.NullString `db:"last_visit_at"`
	}
	err := sqlx.GetContext(ctx, q, &row, rebind(
		`SELECT id, name, total_purchases_cents, visit_count, last_visit_at FROM customers WHERE id = ?`), customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Customer{}, domain.NotFound(domain.NotFoundCustomer, customerID)
	}
	if err != nil {
		return domain.Customer{}, fmt.Errorf("load customer %s: %w", customerID, err)
	}

	c := domain.Customer{
		ID:                  row.ID,
		Name:                row.Name,
		TotalPurchasesCents: row.TotalPurchasesCents,
		VisitCount:          row.VisitCount,
	}
	if row.LastVisitAt.Valid && row.LastVisitAt.String != "" {
		ts, err := time.Parse(domain.TimeLayout, row.LastVisitAt.String)
		if err != nil {
			return domain.Customer{}, fmt.Errorf("parse last visit for %s: %w", customerID, err)
		}
		c.LastVisitAt = &ts
	}
	return c, nil
}
