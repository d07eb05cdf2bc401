package sales

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cabangpos/backend/internal/domain"

	"github.com/jmoiron/sqlx"
)

const saleColumns = `id, transaction_id, invoice_number, invoice_type, customer_id, cashier_id,
	payment_method, subtotal_cents, discount_cents, tax_rate_percent, tax_cents, total_cents,
	voided, voided_at, voided_by, void_reason, created_at`

type saleRow struct {
	ID             string         `db:"id"`
	TransactionID  string         `db:"transaction_id"`
	InvoiceNumber  sql.NullString `db:"invoice_number"`
	InvoiceType    string         `db:"invoice_type"`
	CustomerID     sql.NullString `db:"customer_id"`
	CashierID      string         `db:"cashier_id"`
	PaymentMethod  string         `db:"payment_method"`
	SubtotalCents  int64          `db:"subtotal_cents"`
	DiscountCents  int64          `db:"discount_cents"`
	TaxRatePercent float64        `db:"tax_rate_percent"`
	TaxCents       int64          `db:"tax_cents"`
	TotalCents     int64          `db:"total_cents"`
	Voided         int            `db:"voided"`
	VoidedAt       sql.NullString `db:"voided_at"`
	VoidedBy       sql.NullString `db:"voided_by"`
	VoidReason     sql.NullString `db:"void_reason"`
	CreatedAt      string         `db:"created_at"`
}

type lineItemRow struct {
	SaleID            string         `db:"sale_id"`
	LineNo            int            `db:"line_no"`
	ProductID         string         `db:"product_id"`
	Qty               int            `db:"qty"`
	UnitPriceCents    int64          `db:"unit_price_cents"`
	DiscountType      sql.NullString `db:"discount_type"`
	DiscountPercent   float64        `db:"discount_percent"`
	DiscountCents     int64          `db:"discount_cents"`
	LineDiscountCents int64          `db:"line_discount_cents"`
	LineTotalCents    int64          `db:"line_total_cents"`
}

func (r saleRow) toDomain() (domain.Sale, error) {
	createdAt, err := time.Parse(domain.TimeLayout, r.CreatedAt)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("parse created_at for sale %s: %w", r.ID, err)
	}

	s := domain.Sale{
		ID:             r.ID,
		TransactionID:  r.TransactionID,
		InvoiceNumber:  r.InvoiceNumber.String,
		InvoiceType:    r.InvoiceType,
		CustomerID:     r.CustomerID.String,
		CashierID:      r.CashierID,
		PaymentMethod:  r.PaymentMethod,
		SubtotalCents:  r.SubtotalCents,
		DiscountCents:  r.DiscountCents,
		TaxRatePercent: r.TaxRatePercent,
		TaxCents:       r.TaxCents,
		TotalCents:     r.TotalCents,
		Status:         domain.SaleStatusCreated,
		VoidedBy:       r.VoidedBy.String,
		VoidReason:     r.VoidReason.String,
		CreatedAt:      createdAt,
	}
	if r.Voided == 1 {
		s.Status = domain.SaleStatusVoided
	}
	if r.VoidedAt.Valid && r.VoidedAt.String != "" {
		ts, err := time.Parse(domain.TimeLayout, r.VoidedAt.String)
		if err != nil {
			return domain.Sale{}, fmt.Errorf("parse voided_at for sale %s: %w", r.ID, err)
		}
		s.VoidedAt = &ts
	}
	return s, nil
}

func (r lineItemRow) toDomain() domain.SaleLineItem {
	return domain.SaleLineItem{
		ProductID:         r.ProductID,
		Qty:               r.Qty,
		UnitPriceCents:    r.UnitPriceCents,
		DiscountType:      domain.DiscountType(r.DiscountType.String),
		DiscountPercent:   r.DiscountPercent,
		DiscountCents:     r.DiscountCents,
		LineDiscountCents: r.LineDiscountCents,
		LineTotalCents:    r.LineTotalCents,
	}
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func insertSale(ctx context.Context, tx *sqlx.Tx, s domain.Sale) error {
	voided := 0
	if s.Status == domain.SaleStatusVoided {
		voided = 1
	}
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO sales (`+saleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		s.ID, s.TransactionID, nullIfEmpty(s.InvoiceNumber), s.InvoiceType,
		nullIfEmpty(s.CustomerID), s.CashierID, s.PaymentMethod,
		s.SubtotalCents, s.DiscountCents, s.TaxRatePercent, s.TaxCents, s.TotalCents,
		voided, nil, nil, nil, s.CreatedAt.UTC().Format(domain.TimeLayout))
	if err != nil {
		return fmt.Errorf("insert sale %s: %w", s.ID, err)
	}

	for i, item := range s.Items {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO sale_line_items (sale_id, line_no, product_id, qty, unit_price_cents,
				discount_type, discount_percent, discount_cents, line_discount_cents, line_total_cents)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			s.ID, i+1, item.ProductID, item.Qty, item.UnitPriceCents,
			nullIfEmpty(string(item.DiscountType)), item.DiscountPercent, item.DiscountCents,
			item.LineDiscountCents, item.LineTotalCents)
		if err != nil {
			return fmt.Errorf("insert sale %s line %d: %w", s.ID, i+1, err)
		}
	}
	return nil
}

func fetchSale(ctx context.Context, q sqlx.QueryerContext, rebind func(string) string, saleID string) (domain.Sale, error) {
	var row saleRow
	err := sqlx.GetContext(ctx, q, &row,
		rebind(`SELECT `+saleColumns+` FROM sales WHERE id = ?`), saleID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Sale{}, domain.NotFound(domain.NotFoundSale, saleID)
	}
	if err != nil {
		return domain.Sale{}, fmt.Errorf("load sale %s: %w", saleID, err)
	}

	s, err := row.toDomain()
	if err != nil {
		return domain.Sale{}, err
	}

	items, err := fetchLineItems(ctx, q, rebind, []string{saleID})
	if err != nil {
		return domain.Sale{}, err
	}
	s.Items = items[saleID]
	return s, nil
}

func fetchLineItems(ctx context.Context, q sqlx.QueryerContext, rebind func(string) string, saleIDs []string) (map[string][]domain.SaleLineItem, error) {
	result := make(map[string][]domain.SaleLineItem, len(saleIDs))
	if len(saleIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`
		SELECT sale_id, line_no, product_id, qty, unit_price_cents,
			discount_type, discount_percent, discount_cents, line_discount_cents, line_total_cents
		FROM sale_line_items WHERE sale_id IN (?) ORDER BY sale_id, line_no`, saleIDs)
	if err != nil {
		return nil, fmt.Errorf("expand line item query: %w", err)
	}

	var rows []lineItemRow
	if err := sqlx.SelectContext(ctx, q, &rows, rebind(query), args...); err != nil {
		return nil, fmt.Errorf("load line items: %w", err)
	}
	for _, r := range rows {
		result[r.SaleID] = append(result[r.SaleID], r.toDomain())
	}
	return result, nil
}
