package branchdb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"cabangpos/backend/internal/branch"
	"cabangpos/backend/internal/domain"
)

func newTestProvider(t *testing.T, id, code string) *branch.StaticProvider {
	t.Helper()
	return branch.NewStaticProvider(domain.BranchConfig{
		ID:     id,
		Code:   code,
		Engine: domain.EngineSQLite,
		Conn:   domain.ConnectionParams{Name: filepath.Join(t.TempDir(), id+".db")},
	})
}

func TestResolveOpensAndCaches(t *testing.T) {
	ctx := context.Background()
	provider := newTestProvider(t, "b001", "B001")
	router := NewRouter(provider)
	defer func() { _ = router.Close() }()

	h1, err := router.Resolve(ctx, "b001")
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	h2, err := router.Resolve(ctx, "b001")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if h1 != h2 {
		t.Fatal("expected cached handle on second resolve")
	}
}

func TestResolveBootstrapsSchema(t *testing.T) {
	ctx := context.Background()
	router := NewRouter(newTestProvider(t, "b001", "B001"))
	defer func() { _ = router.Close() }()

	h, err := router.Resolve(ctx, "b001")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	var last int64
	if err := h.GetContext(ctx, &last,
		h.Rebind(`SELECT last_value FROM sequence_counters WHERE name = ?`), "invoice"); err != nil {
		t.Fatalf("invoice counter not seeded: %v", err)
	}
	if last != 0 {
		t.Fatalf("expected counter seeded at 0, got %d", last)
	}

	// seeding must not reset an advanced counter
	if _, err := h.ExecContext(ctx,
		h.Rebind(`UPDATE sequence_counters SET last_value = 41 WHERE name = ?`), "invoice"); err != nil {
		t.Fatalf("advance counter: %v", err)
	}
	if err := ensureSchema(ctx, h); err != nil {
		t.Fatalf("re-run schema: %v", err)
	}
	if err := h.GetContext(ctx, &last,
		h.Rebind(`SELECT last_value FROM sequence_counters WHERE name = ?`), "invoice"); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	if last != 41 {
		t.Fatalf("counter clobbered by re-bootstrap, got %d", last)
	}
}

func TestInvalidateRebuildsHandle(t *testing.T) {
	ctx := context.Background()
	router := NewRouter(newTestProvider(t, "b001", "B001"))
	defer func() { _ = router.Close() }()

	h1, err := router.Resolve(ctx, "b001")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	router.Invalidate("b001")

	h2, err := router.Resolve(ctx, "b001")
	if err != nil {
		t.Fatalf("resolve after invalidate: %v", err)
	}
	if h1 == h2 {
		t.Fatal("expected a fresh handle after invalidate")
	}
}

func TestConfigChangeRebuildsHandle(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := domain.BranchConfig{
		ID:     "b001",
		Code:   "B001",
		Engine: domain.EngineSQLite,
		Conn:   domain.ConnectionParams{Name: filepath.Join(dir, "old.db")},
	}
	provider := branch.NewStaticProvider(cfg)
	router := NewRouter(provider)
	defer func() { _ = router.Close() }()

	h1, err := router.Resolve(ctx, "b001")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	cfg.Conn.Name = filepath.Join(dir, "new.db")
	provider.Set(cfg)

	h2, err := router.Resolve(ctx, "b001")
	if err != nil {
		t.Fatalf("resolve after change: %v", err)
	}
	if h1 == h2 {
		t.Fatal("stale handle served after config change")
	}
	if h1.Fingerprint() == h2.Fingerprint() {
		t.Fatal("fingerprints should differ after config change")
	}
}

func TestResolveUnsupportedEngine(t *testing.T) {
	provider := branch.NewStaticProvider(domain.BranchConfig{
		ID:     "b009",
		Code:   "B009",
		Engine: domain.Engine("oracle"),
		Conn:   domain.ConnectionParams{Name: "pos"},
	})
	router := NewRouter(provider)
	defer func() { _ = router.Close() }()

	_, err := router.Resolve(context.Background(), "b009")
	var connErr *domain.ConnectionError
	if !errors.As(err, &connErr) || connErr.Kind != domain.ConnUnsupportedEngine {
		t.Fatalf("expected unsupported engine error, got %v", err)
	}
}

func TestResolveUnknownBranch(t *testing.T) {
	router := NewRouter(newTestProvider(t, "b001", "B001"))
	defer func() { _ = router.Close() }()

	_, err := router.Resolve(context.Background(), "b404")
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) || nf.Kind != domain.NotFoundBranch {
		t.Fatalf("expected branch not found, got %v", err)
	}
}

func TestResolveIsolatesBranches(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	provider := branch.NewStaticProvider(
		domain.BranchConfig{
			ID: "b001", Code: "B001", Engine: domain.EngineSQLite,
			Conn: domain.ConnectionParams{Name: filepath.Join(dir, "b001.db")},
		},
		domain.BranchConfig{
			ID: "b002", Code: "B002", Engine: domain.EngineSQLite,
			Conn: domain.ConnectionParams{Name: filepath.Join(dir, "b002.db")},
		},
	)
	router := NewRouter(provider)
	defer func() { _ = router.Close() }()

	h1, err := router.Resolve(ctx, "b001")
	if err != nil {
		t.Fatalf("resolve b001: %v", err)
	}
	h2, err := router.Resolve(ctx, "b002")
	if err != nil {
		t.Fatalf("resolve b002: %v", err)
	}

	if _, err := h1.ExecContext(ctx, h1.Rebind(
		`INSERT INTO products (id, name, price_cents, stock_level, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`),
		"p1", "Kopi Susu", 2500, 10, "2026-01-02T00:00:00.000000000Z", "2026-01-02T00:00:00.000000000Z"); err != nil {
		t.Fatalf("insert into b001: %v", err)
	}

	var count int
	if err := h2.GetContext(ctx, &count, `SELECT COUNT(*) FROM products`); err != nil {
		t.Fatalf("count in b002: %v", err)
	}
	if count != 0 {
		t.Fatalf("b002 sees b001 data, count=%d", count)
	}
}
