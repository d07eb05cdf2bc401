package branch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cabangpos/backend/internal/domain"
)

func sqliteBranch(id, code string) domain.BranchConfig {
	return domain.BranchConfig{
		ID:     id,
		Code:   code,
		Engine: domain.EngineSQLite,
		Conn:   domain.ConnectionParams{Name: "/tmp/" + id + ".db"},
	}
}

func TestGetConfigUnknownBranch(t *testing.T) {
	p := NewStaticProvider(sqliteBranch("b001", "B001"))

	_, err := p.GetConfig(context.Background(), "missing")
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) || nf.Kind != domain.NotFoundBranch {
		t.Fatalf("expected branch not found, got %v", err)
	}
}

func TestFingerprintChangesWithCredentials(t *testing.T) {
	cfg := domain.BranchConfig{
		ID:     "b001",
		Code:   "B001",
		Engine: domain.EnginePostgres,
		Conn: domain.ConnectionParams{
			Server:   "db.internal",
			Port:     "5432",
			Name:     "pos",
			User:     "app",
			Password: "old-secret",
		},
	}
	before := Fingerprint(cfg)

	cfg.Conn.Password = "new-secret"
	if Fingerprint(cfg) == before {
		t.Fatal("fingerprint did not change after password rotation")
	}

	cfg.Conn.Password = "old-secret"
	if Fingerprint(cfg) != before {
		t.Fatal("fingerprint not stable for identical settings")
	}
}

func TestFingerprintIgnoresTaxRate(t *testing.T) {
	cfg := sqliteBranch("b001", "B001")
	before := Fingerprint(cfg)

	cfg.TaxRatePercent = 15
	if Fingerprint(cfg) != before {
		t.Fatal("fingerprint should only cover connection settings")
	}
}

func TestSetNotifiesListeners(t *testing.T) {
	p := NewStaticProvider(sqliteBranch("b001", "B001"))

	var notified []string
	p.OnConfigChanged(func(branchID string) {
		notified = append(notified, branchID)
	})

	p.Set(sqliteBranch("b002", "B002"))
	if len(notified) != 1 || notified[0] != "b002" {
		t.Fatalf("unexpected notifications %v", notified)
	}

	cfg, err := p.GetConfig(context.Background(), "b002")
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if cfg.Code != "B002" {
		t.Fatalf("unexpected code %q", cfg.Code)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "branches.json")
	payload := `[
		{"id":"b001","code":"B001","engine":"sqlite","conn":{"name":"/tmp/b001.db"},"tax_rate_percent":15},
		{"id":"b002","code":"B002","engine":"postgres","conn":{"server":"localhost","port":"5432","name":"pos","user":"app","password":"pw"}}
	]`
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		t.Fatalf("write registry: %v", err)
	}

	p, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	ids := p.BranchIDs()
	if len(ids) != 2 || ids[0] != "b001" || ids[1] != "b002" {
		t.Fatalf("unexpected branch ids %v", ids)
	}

	cfg, err := p.GetConfig(context.Background(), "b001")
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if cfg.TaxRatePercent != 15 {
		t.Fatalf("unexpected tax rate %v", cfg.TaxRatePercent)
	}
}

func TestLoadFileRejectsMissingID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "branches.json")
	if err := os.WriteFile(path, []byte(`[{"code":"B001","engine":"sqlite","conn":{"name":"x.db"}}]`), 0o600); err != nil {
		t.Fatalf("write registry: %v", err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for entry without id")
	}
}
