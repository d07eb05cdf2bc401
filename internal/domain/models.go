package domain

import "time"

// TimeLayout is the canonical storage format for timestamps. Fixed-width
// UTC so string comparison orders the same as time comparison on every
// supported engine.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

type Engine string

const (
	EngineSQLite    Engine = "sqlite"
	EnginePostgres  Engine = "postgres"
	EngineMySQL     Engine = "mysql"
	EngineSQLServer Engine = "sqlserver"
)

type ConnectionParams struct {
	Server   string `json:"server,omitempty"`
	Port     string `json:"port,omitempty"`
	Name     string `json:"name"`
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
	SSLMode  string `json:"ssl_mode,omitempty"`
}

type BranchConfig struct {
	ID             string           `json:"id"`
	Code           string           `json:"code"`
	Engine         Engine           `json:"engine"`
	Conn           ConnectionParams `json:"conn"`
	TaxRatePercent float64          `json:"tax_rate_percent"`
	Currency       string           `json:"currency,omitempty"`
}

type Product struct {
	ID                      string    `json:"id"`
	Name                    string    `json:"name"`
	PriceCents              int64     `json:"price_cents"`
	StockLevel              int       `json:"stock_level"`
	HasInventoryDiscrepancy bool      `json:"has_inventory_discrepancy"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

type Customer struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	TotalPurchasesCents int64      `json:"total_purchases_cents"`
	VisitCount          int        `json:"visit_count"`
	LastVisitAt         *time.Time `json:"last_visit_at,omitempty"`
}

type LineDiscount struct {
	Type        DiscountType `json:"type,omitempty"`
	Percent     float64      `json:"percent,omitempty"`
	AmountCents int64        `json:"amount_cents,omitempty"`
}

type SaleLineInput struct {
	ProductID      string       `json:"product_id"`
	Qty            int          `json:"qty"`
	UnitPriceCents int64        `json:"unit_price_cents"`
	Discount       LineDiscount `json:"discount"`
}

type CreateSaleRequest struct {
	InvoiceType   string          `json:"invoice_type"`
	CustomerID    string          `json:"customer_id,omitempty"`
	CashierID     string          `json:"cashier_id"`
	PaymentMethod string          `json:"payment_method"`
	Items         []SaleLineInput `json:"items"`
}

type SaleLineItem struct {
	ProductID         string       `json:"product_id"`
	Qty               int          `json:"qty"`
	UnitPriceCents    int64        `json:"unit_price_cents"`
	DiscountType      DiscountType `json:"discount_type,omitempty"`
	DiscountPercent   float64      `json:"discount_percent,omitempty"`
	DiscountCents     int64        `json:"discount_cents,omitempty"`
	LineDiscountCents int64        `json:"line_discount_cents"`
	LineTotalCents    int64        `json:"line_total_cents"`
}

type Sale struct {
	ID             string         `json:"id"`
	TransactionID  string         `json:"transaction_id"`
	InvoiceNumber  string         `json:"invoice_number,omitempty"`
	InvoiceType    string         `json:"invoice_type"`
	CustomerID     string         `json:"customer_id,omitempty"`
	CashierID      string         `json:"cashier_id"`
	PaymentMethod  string         `json:"payment_method"`
	SubtotalCents  int64          `json:"subtotal_cents"`
	DiscountCents  int64          `json:"discount_cents"`
	TaxRatePercent float64        `json:"tax_rate_percent"`
	TaxCents       int64          `json:"tax_cents"`
	TotalCents     int64          `json:"total_cents"`
	Status         string         `json:"status"`
	VoidedAt       *time.Time     `json:"voided_at,omitempty"`
	VoidedBy       string         `json:"voided_by,omitempty"`
	VoidReason     string         `json:"void_reason,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	Items          []SaleLineItem `json:"items"`
}

type InventoryWarning struct {
	ProductID  string `json:"product_id"`
	StockLevel int    `json:"stock_level"`
}

type SaleResult struct {
	Sale     Sale               `json:"sale"`
	Warnings []InventoryWarning `json:"warnings,omitempty"`
}

type VoidSaleRequest struct {
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason"`
}

type ListSalesFilter struct {
	From          *time.Time
	To            *time.Time
	CustomerID    string
	CashierID     string
	InvoiceType   string
	PaymentMethod string
	Voided        *bool
	Search        string
}

type Pagination struct {
	Page     int
	PageSize int
}

type SalesListResult struct {
	Items      []Sale `json:"items"`
	TotalCount int64  `json:"total_count"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
}

type StatsBucket struct {
	Key        string `json:"key"`
	Count      int64  `json:"count"`
	TotalCents int64  `json:"total_cents"`
}

type ProductStat struct {
	ProductID    string `json:"product_id"`
	QtySold      int64  `json:"qty_sold"`
	RevenueCents int64  `json:"revenue_cents"`
}

type SalesStats struct {
	BranchID        string        `json:"branch_id"`
	From            string        `json:"from"`
	To              string        `json:"to"`
	SalesCount      int64         `json:"sales_count"`
	VoidedCount     int64         `json:"voided_count"`
	GrossCents      int64         `json:"gross_cents"`
	DiscountCents   int64         `json:"discount_cents"`
	TaxCents        int64         `json:"tax_cents"`
	NetCents        int64         `json:"net_cents"`
	ByPaymentMethod []StatsBucket `json:"by_payment_method"`
	ByInvoiceType   []StatsBucket `json:"by_invoice_type"`
	TopProducts     []ProductStat `json:"top_products"`
}

type DiscountType string

const (
	DiscountNone       DiscountType = ""
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

const (
	InvoiceTypeStandard = "standard"
	InvoiceTypeTouch    = "touch"
)

const (
	SaleStatusCreated = "created"
	SaleStatusVoided  = "voided"
)

const (
	PaymentMethodCash     = "cash"
	PaymentMethodCard     = "card"
	PaymentMethodQRIS     = "qris"
	PaymentMethodTransfer = "transfer"
)
