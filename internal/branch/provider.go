package branch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"cabangpos/backend/internal/domain"
)

// Provider resolves branch connection settings by branch id.
type Provider interface {
	GetConfig(ctx context.Context, branchID string) (domain.BranchConfig, error)
}

// Fingerprint identifies a branch's connection settings. Two configs with
// the same fingerprint can share a pooled handle; a changed fingerprint
// means the handle must be rebuilt.
func Fingerprint(cfg domain.BranchConfig) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s|%s",
		cfg.Engine,
		cfg.Conn.Server,
		cfg.Conn.Port,
		cfg.Conn.Name,
		cfg.Conn.User,
		cfg.Conn.Password,
		cfg.Conn.SSLMode,
	)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// ChangeListener is notified after a branch config is added or replaced.
type ChangeListener func(branchID string)

// StaticProvider serves branch configs from an in-memory registry, loaded
// from a JSON file at startup and mutable at runtime.
type StaticProvider struct {
	mu        sync.RWMutex
	branches  map[string]domain.BranchConfig
	listeners []ChangeListener
}

func NewStaticProvider(configs ...domain.BranchConfig) *StaticProvider {
	p := &StaticProvider{branches: make(map[string]domain.BranchConfig, len(configs))}
	for _, cfg := range configs {
		p.branches[cfg.ID] = cfg
	}
	return p
}

// LoadFile reads a JSON array of branch configs.
func LoadFile(path string) (*StaticProvider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read branch registry: %w", err)
	}
	var configs []domain.BranchConfig
	if err := json.Unmarshal(raw, &configs); err != nil {
		return nil, fmt.Errorf("parse branch registry: %w", err)
	}
	for _, cfg := range configs {
		if cfg.ID == "" || cfg.Code == "" {
			return nil, fmt.Errorf("branch registry: entry missing id or code")
		}
	}
	return NewStaticProvider(configs...), nil
}

func (p *StaticProvider) GetConfig(_ context.Context, branchID string) (domain.BranchConfig, error) {
	p.mu.RLock()
	cfg, ok := p.branches[branchID]
	p.mu.RUnlock()
	if !ok {
		return domain.BranchConfig{}, domain.NotFound(domain.NotFoundBranch, branchID)
	}
	return cfg, nil
}

// Set adds or replaces a branch config and notifies listeners.
func (p *StaticProvider) Set(cfg domain.BranchConfig) {
	p.mu.Lock()
	p.branches[cfg.ID] = cfg
	listeners := p.listeners
	p.mu.Unlock()

	for _, l := range listeners {
		l(cfg.ID)
	}
}

func (p *StaticProvider) OnConfigChanged(l ChangeListener) {
	p.mu.Lock()
	p.listeners = append(p.listeners, l)
	p.mu.Unlock()
}

// BranchIDs returns the registered branch ids in stable order.
func (p *StaticProvider) BranchIDs() []string {
	p.mu.RLock()
	ids := make([]string, 0, len(p.branches))
	for id := range p.branches {
		ids = append(ids, id)
	}
	p.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
