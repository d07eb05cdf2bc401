package sales

import (
	"context"
	"math"
	"time"

	"cabangpos/backend/internal/branch"
	"cabangpos/backend/internal/branchdb"
	"cabangpos/backend/internal/cache"
	"cabangpos/backend/internal/customer"
	"cabangpos/backend/internal/domain"
	"cabangpos/backend/internal/inventory"
	"cabangpos/backend/internal/metrics"
	"cabangpos/backend/internal/sequence"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Engine runs the sale lifecycle against per-branch databases.
type Engine struct {
	router   *branchdb.Router
	provider branch.Provider
	stats    cache.StatsCache
	statsTTL time.Duration
	log      *zap.Logger
}

func New(router *branchdb.Router, provider branch.Provider, stats cache.StatsCache, statsTTL time.Duration) *Engine {
	return &Engine{
		router:   router,
		provider: provider,
		stats:    stats,
		statsTTL: statsTTL,
		log:      zap.L().Named("sales"),
	}
}

// Create records a completed sale. Validation runs before any write; the
// invoice number, stock deltas, customer stats and sale rows then commit
// in one transaction. Negative stock does not block the sale, it comes
// back as a warning.
func (e *Engine) Create(ctx context.Context, branchID string, req domain.CreateSaleRequest) (domain.SaleResult, error) {
	normalizeCreate(&req)
	if err := validateCreate(req); err != nil {
		return domain.SaleResult{}, err
	}

	cfg, err := e.provider.GetConfig(ctx, branchID)
	if err != nil {
		return domain.SaleResult{}, err
	}
	h, err := e.router.Resolve(ctx, branchID)
	if err != nil {
		return domain.SaleResult{}, err
	}

	// reference checks before mutating anything
	seen := make(map[string]bool)
	for _, item := range req.Items {
		if seen[item.ProductID] {
			continue
		}
		seen[item.ProductID] = true
		ok, err := inventory.Exists(ctx, h, h.Rebind, item.ProductID)
		if err != nil {
			return domain.SaleResult{}, err
		}
		if !ok {
			return domain.SaleResult{}, domain.NotFound(domain.NotFoundProduct, item.ProductID)
		}
	}
	if req.CustomerID != "" {
		ok, err := customer.Exists(ctx, h, h.Rebind, req.CustomerID)
		if err != nil {
			return domain.SaleResult{}, err
		}
		if !ok {
			return domain.SaleResult{}, domain.NotFound(domain.NotFoundCustomer, req.CustomerID)
		}
	}

	now := time.Now().UTC()
	sale := buildSale(req, cfg.TaxRatePercent, now)

	tx, err := h.BeginTxx(ctx, nil)
	if err != nil {
		return domain.SaleResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if sale.InvoiceType == domain.InvoiceTypeStandard {
		invoice, err := sequence.NextInvoiceNumber(ctx, tx, cfg.Code)
		if err != nil {
			return domain.SaleResult{}, err
		}
		sale.InvoiceNumber = invoice
	}

	warnings, err := e.applyStockDeltas(ctx, tx, sale.Items, -1)
	if err != nil {
		return domain.SaleResult{}, err
	}

	if sale.CustomerID != "" {
		if err := customer.ApplySale(ctx, tx, sale.CustomerID, sale.TotalCents, now); err != nil {
			return domain.SaleResult{}, err
		}
	}

	if err := insertSale(ctx, tx, sale); err != nil {
		return domain.SaleResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.SaleResult{}, err
	}

	metrics.SalesCreated.WithLabelValues(branchID).Inc()
	if len(warnings) > 0 {
		metrics.InventoryDiscrepancies.WithLabelValues(branchID).Inc()
	}
	if err := e.stats.Invalidate(ctx, branchID); err != nil {
		e.log.Warn("stats cache invalidation failed", zap.String("branch_id", branchID), zap.Error(err))
	}
	e.log.Info("sale created",
		zap.String("branch_id", branchID),
		zap.String("sale_id", sale.ID),
		zap.String("transaction_id", sale.TransactionID),
		zap.Int64("total_cents", sale.TotalCents),
		zap.Int("warnings", len(warnings)))

	return domain.SaleResult{Sale: sale, Warnings: warnings}, nil
}

// Void reverses a sale: stock goes back, customer stats are backed out
// and the sale enters its terminal state. Voiding twice is a conflict.
func (e *Engine) Void(ctx context.Context, branchID, saleID string, req domain.VoidSaleRequest) (domain.SaleResult, error) {
	if req.ActorID == "" {
		return domain.SaleResult{}, domain.Invalid("actor_id", "required")
	}

	h, err := e.router.Resolve(ctx, branchID)
	if err != nil {
		return domain.SaleResult{}, err
	}

	tx, err := h.BeginTxx(ctx, nil)
	if err != nil {
		return domain.SaleResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	sale, err := fetchSale(ctx, tx, tx.Rebind, saleID)
	if err != nil {
		return domain.SaleResult{}, err
	}
	if sale.Status == domain.SaleStatusVoided {
		return domain.SaleResult{}, &domain.ConflictError{Kind: domain.ConflictAlreadyVoided, ID: saleID}
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, tx.Rebind(
		`UPDATE sales SET voided = 1, voided_at = ?, voided_by = ?, void_reason = ? WHERE id = ? AND voided = 0`),
		now.Format(domain.TimeLayout), req.ActorID, req.Reason, saleID)
	if err != nil {
		return domain.SaleResult{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// lost a race with another void of the same sale
		return domain.SaleResult{}, &domain.ConflictError{Kind: domain.ConflictAlreadyVoided, ID: saleID}
	}

	warnings, err := e.applyStockDeltas(ctx, tx, sale.Items, +1)
	if err != nil {
		return domain.SaleResult{}, err
	}

	if sale.CustomerID != "" {
		if err := customer.ReverseSale(ctx, tx, sale.CustomerID, sale.TotalCents); err != nil {
			return domain.SaleResult{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.SaleResult{}, err
	}

	sale.Status = domain.SaleStatusVoided
	sale.VoidedAt = &now
	sale.VoidedBy = req.ActorID
	sale.VoidReason = req.Reason

	metrics.SalesVoided.WithLabelValues(branchID).Inc()
	if err := e.stats.Invalidate(ctx, branchID); err != nil {
		e.log.Warn("stats cache invalidation failed", zap.String("branch_id", branchID), zap.Error(err))
	}
	e.log.Info("sale voided",
		zap.String("branch_id", branchID),
		zap.String("sale_id", saleID),
		zap.String("actor_id", req.ActorID))

	return domain.SaleResult{Sale: sale, Warnings: warnings}, nil
}

// Get loads a sale with its line items.
func (e *Engine) Get(ctx context.Context, branchID, saleID string) (domain.Sale, error) {
	h, err := e.router.Resolve(ctx, branchID)
	if err != nil {
		return domain.Sale{}, err
	}
	return fetchSale(ctx, h, h.Rebind, saleID)
}

// applyStockDeltas walks the sale lines applying sign*qty per line and
// collects a warning per product whose stock ends up negative.
func (e *Engine) applyStockDeltas(ctx context.Context, tx *sqlx.Tx, items []domain.SaleLineItem, sign int) ([]domain.InventoryWarning, error) {
	levels := make(map[string]int)
	var order []string
	for _, item := range items {
		level, err := inventory.ApplyDelta(ctx, tx, item.ProductID, sign*item.Qty)
		if err != nil {
			return nil, err
		}
		if _, ok := levels[item.ProductID]; !ok {
			order = append(order, item.ProductID)
		}
		levels[item.ProductID] = level
	}

	var warnings []domain.InventoryWarning
	for _, pid := range order {
		if levels[pid] < 0 {
			warnings = append(warnings, domain.InventoryWarning{ProductID: pid, StockLevel: levels[pid]})
		}
	}
	return warnings, nil
}

func buildSale(req domain.CreateSaleRequest, taxRatePercent float64, now time.Time) domain.Sale {
	var subtotal, discountTotal int64
	items := make([]domain.SaleLineItem, 0, len(req.Items))
	for _, in := range req.Items {
		item := computeLine(in)
		subtotal += int64(in.Qty) * in.UnitPriceCents
		discountTotal += item.LineDiscountCents
		items = append(items, item)
	}

	taxBase := subtotal - discountTotal
	taxCents := int64(math.Round(float64(taxBase) * taxRatePercent / 100))

	return domain.Sale{
		ID:             uuid.NewString(),
		TransactionID:  sequence.TransactionID(now),
		InvoiceType:    req.InvoiceType,
		CustomerID:     req.CustomerID,
		CashierID:      req.CashierID,
		PaymentMethod:  req.PaymentMethod,
		SubtotalCents:  subtotal,
		DiscountCents:  discountTotal,
		TaxRatePercent: taxRatePercent,
		TaxCents:       taxCents,
		TotalCents:     taxBase + taxCents,
		Status:         domain.SaleStatusCreated,
		CreatedAt:      now,
		Items:          items,
	}
}

func computeLine(in domain.SaleLineInput) domain.SaleLineItem {
	gross := int64(in.Qty) * in.UnitPriceCents

	var disc int64
	switch in.Discount.Type {
	case domain.DiscountPercentage:
		disc = int64(math.Round(float64(gross) * in.Discount.Percent / 100))
	case domain.DiscountFixed:
		disc = in.Discount.AmountCents * int64(in.Qty)
	}

	return domain.SaleLineItem{
		ProductID:         in.ProductID,
		Qty:               in.Qty,
		UnitPriceCents:    in.UnitPriceCents,
		DiscountType:      in.Discount.Type,
		DiscountPercent:   in.Discount.Percent,
		DiscountCents:     in.Discount.AmountCents,
		LineDiscountCents: disc,
		LineTotalCents:    gross - disc,
	}
}

func normalizeCreate(req *domain.CreateSaleRequest) {
	if req.InvoiceType == "" {
		req.InvoiceType = domain.InvoiceTypeStandard
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentMethodCash
	}
}

func validateCreate(req domain.CreateSaleRequest) error {
	if req.CashierID == "" {
		return domain.Invalid("cashier_id", "required")
	}
	switch req.InvoiceType {
	case domain.InvoiceTypeStandard, domain.InvoiceTypeTouch:
	default:
		return domain.Invalid("invoice_type", "must be standard or touch")
	}
	if req.InvoiceType == domain.InvoiceTypeTouch && req.CustomerID != "" {
		return domain.Invalid("customer_id", "touch sales are anonymous")
	}
	switch req.PaymentMethod {
	case domain.PaymentMethodCash, domain.PaymentMethodCard, domain.PaymentMethodQRIS, domain.PaymentMethodTransfer:
	default:
		return domain.Invalid("payment_method", "unsupported payment method")
	}
	if len(req.Items) == 0 {
		return domain.Invalid("items", "at least one line item required")
	}
	for _, item := range req.Items {
		if item.ProductID == "" {
			return domain.Invalid("items", "line item missing product_id")
		}
		if item.Qty <= 0 {
			return domain.Invalid("items", "qty must be positive")
		}
		if item.UnitPriceCents <= 0 {
			return domain.Invalid("items", "unit price must be positive")
		}
		switch item.Discount.Type {
		case domain.DiscountNone:
		case domain.DiscountPercentage:
			if item.Discount.Percent < 0 || item.Discount.Percent > 100 {
				return domain.Invalid("items", "discount percent out of range")
			}
		case domain.DiscountFixed:
			if item.Discount.AmountCents < 0 || item.Discount.AmountCents > item.UnitPriceCents {
				return domain.Invalid("items", "fixed discount exceeds unit price")
			}
		default:
			return domain.Invalid("items", "unknown discount type")
		}
	}
	return nil
}
