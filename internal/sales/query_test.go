package sales

import (
	"context"
	"testing"
	"time"

	"cabangpos/backend/internal/domain"
)

func TestListFiltersAndPagination(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedProduct(t, "p1", 1000, 100)

	for i := 0; i < 5; i++ {
		req := basicRequest("p1", 1, 1000)
		if i%2 == 1 {
			req.PaymentMethod = domain.PaymentMethodQRIS
		}
		if _, err := env.engine.Create(ctx, "b001", req); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	all, err := env.engine.List(ctx, "b001", domain.ListSalesFilter{}, domain.Pagination{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if all.TotalCount != 5 || len(all.Items) != 5 {
		t.Fatalf("expected 5 sales, got total=%d items=%d", all.TotalCount, len(all.Items))
	}
	for _, s := range all.Items {
		if len(s.Items) != 1 {
			t.Fatalf("line items not attached: %+v", s)
		}
	}

	qris, err := env.engine.List(ctx, "b001",
		domain.ListSalesFilter{PaymentMethod: domain.PaymentMethodQRIS}, domain.Pagination{})
	if err != nil {
		t.Fatalf("list qris: %v", err)
	}
	if qris.TotalCount != 2 {
		t.Fatalf("expected 2 qris sales, got %d", qris.TotalCount)
	}

	page, err := env.engine.List(ctx, "b001", domain.ListSalesFilter{}, domain.Pagination{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if page.TotalCount != 5 || len(page.Items) != 2 || page.Page != 2 {
		t.Fatalf("unexpected page total=%d items=%d page=%d", page.TotalCount, len(page.Items), page.Page)
	}
}

func TestListFilterByVoided(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedProduct(t, "p1", 1000, 100)

	first, err := env.engine.Create(ctx, "b001", basicRequest("p1", 1, 1000))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.engine.Create(ctx, "b001", basicRequest("p1", 1, 1000)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.engine.Void(ctx, "b001", first.Sale.ID, domain.VoidSaleRequest{ActorID: "m1", Reason: "test"}); err != nil {
		t.Fatalf("void: %v", err)
	}

	voided := true
	res, err := env.engine.List(ctx, "b001", domain.ListSalesFilter{Voided: &voided}, domain.Pagination{})
	if err != nil {
		t.Fatalf("list voided: %v", err)
	}
	if res.TotalCount != 1 || res.Items[0].ID != first.Sale.ID {
		t.Fatalf("unexpected voided list %+v", res)
	}
	if res.Items[0].Status != domain.SaleStatusVoided {
		t.Fatalf("expected voided status, got %q", res.Items[0].Status)
	}
}

func TestListSearchByInvoiceNumber(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedProduct(t, "p1", 1000, 100)

	if _, err := env.engine.Create(ctx, "b001", basicRequest("p1", 1, 1000)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.engine.Create(ctx, "b001", basicRequest("p1", 1, 1000)); err != nil {
		t.Fatalf("create: %v", err)
	}

	res, err := env.engine.List(ctx, "b001", domain.ListSalesFilter{Search: "INV-000002"}, domain.Pagination{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.TotalCount != 1 || res.Items[0].InvoiceNumber != "B001-INV-000002" {
		t.Fatalf("unexpected search result %+v", res)
	}
}

func TestStatsExcludesVoidedSales(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedProduct(t, "p1", 1000, 100)
	env.seedProduct(t, "p2", 500, 100)

	keep, err := env.engine.Create(ctx, "b001", basicRequest("p1", 2, 1000))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	drop, err := env.engine.Create(ctx, "b001", basicRequest("p2", 4, 500))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.engine.Void(ctx, "b001", drop.Sale.ID, domain.VoidSaleRequest{ActorID: "m1", Reason: "test"}); err != nil {
		t.Fatalf("void: %v", err)
	}

	from := time.Now().UTC().Add(-time.Hour)
	to := time.Now().UTC().Add(time.Hour)
	stats, err := env.engine.Stats(ctx, "b001", from, to)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}

	if stats.SalesCount != 1 || stats.VoidedCount != 1 {
		t.Fatalf("unexpected counts %+v", stats)
	}
	if stats.GrossCents != keep.Sale.SubtotalCents || stats.NetCents != keep.Sale.TotalCents {
		t.Fatalf("voided sale leaked into totals %+v", stats)
	}
	if len(stats.TopProducts) != 1 || stats.TopProducts[0].ProductID != "p1" {
		t.Fatalf("unexpected top products %+v", stats.TopProducts)
	}
	if len(stats.ByPaymentMethod) != 1 || stats.ByPaymentMethod[0].Key != domain.PaymentMethodCash {
		t.Fatalf("unexpected payment buckets %+v", stats.ByPaymentMethod)
	}
}

func TestStatsWindowBounds(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedProduct(t, "p1", 1000, 100)

	if _, err := env.engine.Create(ctx, "b001", basicRequest("p1", 1, 1000)); err != nil {
		t.Fatalf("create: %v", err)
	}

	past := time.Now().UTC().Add(-2 * time.Hour)
	stats, err := env.engine.Stats(ctx, "b001", past, past.Add(time.Hour))
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.SalesCount != 0 || stats.NetCents != 0 {
		t.Fatalf("sale outside window counted: %+v", stats)
	}
}
