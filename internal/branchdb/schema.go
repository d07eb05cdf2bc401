package branchdb

import (
	"context"
	"fmt"

	"cabangpos/backend/internal/domain"
)

// Column type spellings that differ between engines. SQLite's type
// affinity accepts almost anything, so it mostly mirrors Postgres.
func floatType(engine domain.Engine) string {
	switch engine {
	case domain.EngineMySQL:
		return "DOUBLE"
	case domain.EngineSQLServer:
		return "FLOAT"
	default:
		return "DOUBLE PRECISION"
	}
}

func createTable(engine domain.Engine, name, cols string) string {
	if engine == domain.EngineSQLServer {
		return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (%s)", name, name, cols)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", name, cols)
}

func createIndex(engine domain.Engine, name, table, cols string) string {
	if engine == domain.EngineSQLServer {
		return fmt.Sprintf(
			"IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = N'%s') CREATE INDEX %s ON %s (%s)",
			name, name, table, cols)
	}
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", name, table, cols)
}

func seedCounter(engine domain.Engine, name string) string {
	from := ""
	if engine == domain.EngineMySQL {
		from = " FROM DUAL"
	}
	return fmt.Sprintf(
		"INSERT INTO sequence_counters (name, last_value) SELECT '%s', 0%s WHERE NOT EXISTS (SELECT 1 FROM sequence_counters WHERE name = '%s')",
		name, from, name)
}

// ensureSchema creates the branch tables if missing and seeds the
// invoice counter. Statements are idempotent so every handle open can
// run them.
func ensureSchema(ctx context.Context, h *Handle) error {
	fl := floatType(h.Engine)

	stmts := []string{
		createTable(h.Engine, "products", `
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			price_cents BIGINT NOT NULL DEFAULT 0,
			stock_level INTEGER NOT NULL DEFAULT 0,
			has_inventory_discrepancy INTEGER NOT NULL DEFAULT 0,
			created_at VARCHAR(40) NOT NULL,
			updated_at VARCHAR(40) NOT NULL`),
		createTable(h.Engine, "customers", `
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			total_purchases_cents BIGINT NOT NULL DEFAULT 0,
			visit_count INTEGER NOT NULL DEFAULT 0,
			last_visit_at VARCHAR(40)`),
		createTable(h.Engine, "sales", `
			id VARCHAR(64) PRIMARY KEY,
			transaction_id VARCHAR(64) NOT NULL,
			invoice_number VARCHAR(64),
			invoice_type VARCHAR(16) NOT NULL,
			customer_id VARCHAR(64),
			cashier_id VARCHAR(64) NOT NULL,
			payment_method VARCHAR(32) NOT NULL,
			subtotal_cents BIGINT NOT NULL,
			discount_cents BIGINT NOT NULL,
			tax_rate_percent `+fl+` NOT NULL,
			tax_cents BIGINT NOT NULL,
			total_cents BIGINT NOT NULL,
			voided INTEGER NOT NULL DEFAULT 0,
			voided_at VARCHAR(40),
			voided_by VARCHAR(64),
			void_reason VARCHAR(255),
			created_at VARCHAR(40) NOT NULL`),
		createTable(h.Engine, "sale_line_items", `
			sale_id VARCHAR(64) NOT NULL,
			line_no INTEGER NOT NULL,
			product_id VARCHAR(64) NOT NULL,
			qty INTEGER NOT NULL,
			unit_price_cents BIGINT NOT NULL,
			discount_type VARCHAR(16),
			discount_percent `+fl+` NOT NULL DEFAULT 0,
			discount_cents BIGINT NOT NULL DEFAULT 0,
			line_discount_cents BIGINT NOT NULL,
			line_total_cents BIGINT NOT NULL,
			PRIMARY KEY (sale_id, line_no)`),
		createTable(h.Engine, "sequence_counters", `
			name VARCHAR(64) PRIMARY KEY,
			last_value BIGINT NOT NULL`),
		createIndex(h.Engine, "idx_sales_created_at", "sales", "created_at"),
		createIndex(h.Engine, "idx_sales_transaction_id", "sales", "transaction_id"),
		createIndex(h.Engine, "idx_line_items_product", "sale_line_items", "product_id"),
		seedCounter(h.Engine, "invoice"),
	}

	for _, stmt := range stmts {
		if _, err := h.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("branch schema: %w", err)
		}
	}
	return nil
}
