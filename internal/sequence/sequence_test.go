package sequence

import (
	"context"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"cabangpos/backend/internal/branch"
	"cabangpos/backend/internal/branchdb"
	"cabangpos/backend/internal/domain"
)

func newTestHandle(t *testing.T) *branchdb.Handle {
	t.Helper()
	provider := branch.NewStaticProvider(domain.BranchConfig{
		ID:     "b001",
		Code:   "B001",
		Engine: domain.EngineSQLite,
		Conn:   domain.ConnectionParams{Name: filepath.Join(t.TempDir(), "b001.db")},
	})
	router := branchdb.NewRouter(provider)
	t.Cleanup(func() { _ = router.Close() })

	h, err := router.Resolve(context.Background(), "b001")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return h
}

func TestTransactionIDFormat(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^TXN-20260314-\d{6}$`)

	for i := 0; i < 20; i++ {
		id := TransactionID(now)
		if !pattern.MatchString(id) {
			t.Fatalf("malformed transaction id %q", id)
		}
	}
}

func TestNextInvoiceNumberSequential(t *testing.T) {
	ctx := context.Background()
	h := newTestHandle(t)

	want := []string{"B001-INV-000001", "B001-INV-000002", "B001-INV-000003"}
	for _, expected := range want {
		tx, err := h.BeginTxx(ctx, nil)
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		got, err := NextInvoiceNumber(ctx, tx, "B001")
		if err != nil {
			t.Fatalf("next invoice: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("commit: %v", err)
		}
		if got != expected {
			t.Fatalf("expected %q, got %q", expected, got)
		}
	}
}

func TestNextInvoiceNumberRollbackReleasesNumber(t *testing.T) {
	ctx := context.Background()
	h := newTestHandle(t)

	tx, err := h.BeginTxx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	first, err := NextInvoiceNumber(ctx, tx, "B001")
	if err != nil {
		t.Fatalf("next invoice: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	tx, err = h.BeginTxx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	second, err := NextInvoiceNumber(ctx, tx, "B001")
	if err != nil {
		t.Fatalf("next invoice: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// the rolled-back increment is undone, so the number is reused by
	// the next committed sale rather than leaving a gap
	if first != "B001-INV-000001" || second != "B001-INV-000001" {
		t.Fatalf("unexpected numbers %q then %q", first, second)
	}
}

func TestNextInvoiceNumberConcurrentNoDuplicates(t *testing.T) {
	ctx := context.Background()
	h := newTestHandle(t)

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan string, workers)
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := h.BeginTxx(ctx, nil)
			if err != nil {
				errs <- err
				return
			}
			got, err := NextInvoiceNumber(ctx, tx, "B001")
			if err != nil {
				_ = tx.Rollback()
				errs <- err
				return
			}
			if err := tx.Commit(); err != nil {
				errs <- err
				return
			}
			results <- got
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("worker failed: %v", err)
	}
	seen := make(map[string]bool)
	for got := range results {
		if seen[got] {
			t.Fatalf("duplicate invoice number %q", got)
		}
		seen[got] = true
	}
	if len(seen) != workers {
		t.Fatalf("expected %d invoice numbers, got %d", workers, len(seen))
	}
}

func TestFormatWidensPastSixDigits(t *testing.T) {
	if got := Format("B001", 1); got != "B001-INV-000001" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Format("B001", 1234567); got != "B001-INV-1234567" {
		t.Fatalf("unexpected %q", got)
	}
}
