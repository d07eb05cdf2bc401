package sales

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cabangpos/backend/internal/branchdb"
	"cabangpos/backend/internal/cache"
	"cabangpos/backend/internal/domain"

	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	topProductLimit = 10
)

// List returns a page of sales newest first, with line items attached.
func (e *Engine) List(ctx context.Context, branchID string, filter domain.ListSalesFilter, page domain.Pagination) (domain.SalesListResult, error) {
	if page.Page < 1 {
		page.Page = 1
	}
	if page.PageSize < 1 {
		page.PageSize = defaultPageSize
	}
	if page.PageSize > maxPageSize {
		page.PageSize = maxPageSize
	}

	h, err := e.router.Resolve(ctx, branchID)
	if err != nil {
		return domain.SalesListResult{}, err
	}

	where, args := buildWhere(filter)

	var total int64
	countQuery := "SELECT COUNT(*) FROM sales" + where
	if err := h.GetContext(ctx, &total, h.Rebind(countQuery), args...); err != nil {
		return domain.SalesListResult{}, fmt.Errorf("count sales: %w", err)
	}

	query := "SELECT " + saleColumns + " FROM sales" + where + " ORDER BY created_at DESC, id DESC"
	query, pageArgs := h.Paginate(query, args, page.PageSize, (page.Page-1)*page.PageSize)

	var rows []saleRow
	if err := h.SelectContext(ctx, &rows, h.Rebind(query), pageArgs...); err != nil {
		return domain.SalesListResult{}, fmt.Errorf("list sales: %w", err)
	}

	ids := make([]string, 0, len(rows))
	sales := make([]domain.Sale, 0, len(rows))
	for _, r := range rows {
		s, err := r.toDomain()
		if err != nil {
			return domain.SalesListResult{}, err
		}
		sales = append(sales, s)
		ids = append(ids, s.ID)
	}

	items, err := fetchLineItems(ctx, h, h.Rebind, ids)
	if err != nil {
		return domain.SalesListResult{}, err
	}
	for i := range sales {
		sales[i].Items = items[sales[i].ID]
	}

	return domain.SalesListResult{
		Items:      sales,
		TotalCount: total,
		Page:       page.Page,
		PageSize:   page.PageSize,
	}, nil
}

func buildWhere(f domain.ListSalesFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if f.From != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.From.UTC().Format(domain.TimeLayout))
	}
	if f.To != nil {
		conds = append(conds, "created_at < ?")
		args = append(args, f.To.UTC().Format(domain.TimeLayout))
	}
	if f.CustomerID != "" {
		conds = append(conds, "customer_id = ?")
		args = append(args, f.CustomerID)
	}
	if f.CashierID != "" {
		conds = append(conds, "cashier_id = ?")
		args = append(args, f.CashierID)
	}
	if f.InvoiceType != "" {
		conds = append(conds, "invoice_type = ?")
		args = append(args, f.InvoiceType)
	}
	if f.PaymentMethod != "" {
		conds = append(conds, "payment_method = ?")
		args = append(args, f.PaymentMethod)
	}
	if f.Voided != nil {
		v := 0
		if *f.Voided {
			v = 1
		}
		conds = append(conds, "voided = ?")
		args = append(args, v)
	}
	if f.Search != "" {
		conds = append(conds, "(transaction_id LIKE ? OR invoice_number LIKE ?)")
		needle := "%" + f.Search + "%"
		args = append(args, needle, needle)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Stats aggregates the branch's sales inside [from, to). Voided sales
// contribute only to the voided count. Results are cached per window.
func (e *Engine) Stats(ctx context.Context, branchID string, from, to time.Time) (domain.SalesStats, error) {
	fromStr := from.UTC().Format(domain.TimeLayout)
	toStr := to.UTC().Format(domain.TimeLayout)

	key := cache.StatsKey(branchID, fromStr, toStr)
	if cached, ok, err := e.stats.Get(ctx, key); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		e.log.Warn("stats cache read failed", zap.String("branch_id", branchID), zap.Error(err))
	}

	h, err := e.router.Resolve(ctx, branchID)
	if err != nil {
		return domain.SalesStats{}, err
	}

	stats := domain.SalesStats{BranchID: branchID, From: fromStr, To: toStr}

	var totals struct {
		Count    int64 `db:"sales_count"`
		Gross    int64 `db:"gross_cents"`
		Discount int64 `db:"discount_cents"`
		Tax      int64 `db:"tax_cents"`
		Net      int64 `db:"net_cents"`
	}
	err = h.GetContext(ctx, &totals, h.Rebind(`
		SELECT COUNT(*) AS sales_count,
			COALESCE(SUM(subtotal_cents), 0) AS gross_cents,
			COALESCE(SUM(discount_cents), 0) AS discount_cents,
			COALESCE(SUM(tax_cents), 0) AS tax_cents,
			COALESCE(SUM(total_cents), 0) AS net_cents
		FROM sales WHERE voided = 0 AND created_at >= ? AND created_at < ?`),
		fromStr, toStr)
	if err != nil {
		return domain.SalesStats{}, fmt.Errorf("sales totals: %w", err)
	}
	stats.SalesCount = totals.Count
	stats.GrossCents = totals.Gross
	stats.DiscountCents = totals.Discount
	stats.TaxCents = totals.Tax
	stats.NetCents = totals.Net

	err = h.GetContext(ctx, &stats.VoidedCount, h.Rebind(`
		SELECT COUNT(*) FROM sales WHERE voided = 1 AND created_at >= ? AND created_at < ?`),
		fromStr, toStr)
	if err != nil {
		return domain.SalesStats{}, fmt.Errorf("voided count: %w", err)
	}

	if stats.ByPaymentMethod, err = e.bucket(ctx, h, "payment_method", fromStr, toStr); err != nil {
		return domain.SalesStats{}, err
	}
	if stats.ByInvoiceType, err = e.bucket(ctx, h, "invoice_type", fromStr, toStr); err != nil {
		return domain.SalesStats{}, err
	}

	topQuery := `
		SELECT li.product_id, COALESCE(SUM(li.qty), 0) AS qty_sold, COALESCE(SUM(li.line_total_cents), 0) AS revenue_cents
		FROM sale_line_items li
		JOIN sales s ON s.id = li.sale_id
		WHERE s.voided = 0 AND s.created_at >= ? AND s.created_at < ?
		GROUP BY li.product_id
		ORDER BY SUM(li.line_total_cents) DESC, li.product_id`
	topQuery, topArgs := h.Paginate(topQuery, []interface{}{fromStr, toStr}, topProductLimit, 0)

	var products []struct {
		ProductID string `db:"product_id"`
		QtySold   int64  `db:"qty_sold"`
		Revenue   int64  `db:"revenue_cents"`
	}
	if err := h.SelectContext(ctx, &products, h.Rebind(topQuery), topArgs...); err != nil {
		return domain.SalesStats{}, fmt.Errorf("top products: %w", err)
	}
	for _, p := range products {
		stats.TopProducts = append(stats.TopProducts, domain.ProductStat{
			ProductID:    p.ProductID,
			QtySold:      p.QtySold,
			RevenueCents: p.Revenue,
		})
	}

	if err := e.stats.Set(ctx, key, &stats, e.statsTTL); err != nil {
		e.log.Warn("stats cache write failed", zap.String("branch_id", branchID), zap.Error(err))
	}
	return stats, nil
}

func (e *Engine) bucket(ctx context.Context, h *branchdb.Handle, column, fromStr, toStr string) ([]domain.StatsBucket, error) {
	var rows []struct {
		Key        string `db:"bucket_key"`
		Count      int64  `db:"bucket_count"`
		TotalCents int64  `db:"total_cents"`
	}
	query := fmt.Sprintf(`
		SELECT %s AS bucket_key, COUNT(*) AS bucket_count, COALESCE(SUM(total_cents), 0) AS total_cents
		FROM sales WHERE voided = 0 AND created_at >= ? AND created_at < ?
		GROUP BY %s ORDER BY SUM(total_cents) DESC, %s`, column, column, column)
	if err := h.SelectContext(ctx, &rows, h.Rebind(query), fromStr, toStr); err != nil {
		return nil, fmt.Errorf("group by %s: %w", column, err)
	}

	buckets := make([]domain.StatsBucket, 0, len(rows))
	for _, r := range rows {
		buckets = append(buckets, domain.StatsBucket{Key: r.Key, Count: r.Count, TotalCents: r.TotalCents})
	}
	return buckets, nil
}
