package branchdb

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"cabangpos/backend/internal/branch"
	"cabangpos/backend/internal/domain"
	"cabangpos/backend/internal/metrics"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const pingTimeout = 6 * time.Second

// Handle is a verified, pooled connection to one branch database.
type Handle struct {
	*sqlx.DB
	BranchID    string
	Engine      domain.Engine
	fingerprint string
}

func (h *Handle) Fingerprint() string { return h.fingerprint }

// Paginate appends the engine's pagination clause and matching args. The
// query must already carry an ORDER BY.
func (h *Handle) Paginate(query string, args []interface{}, limit, offset int) (string, []interface{}) {
	if h.Engine == domain.EngineSQLServer {
		return query + " OFFSET ? ROWS FETCH NEXT ? ROWS ONLY", append(args, offset, limit)
	}
	return query + " LIMIT ? OFFSET ?", append(args, limit, offset)
}

// Router hands out branch database handles, opening them lazily and
// caching them until the branch's connection settings change.
type Router struct {
	provider branch.Provider
	log      *zap.Logger

	mu    sync.RWMutex
	slots map[string]*slot
}

type slot struct {
	mu     sync.Mutex
	handle *Handle
}

func NewRouter(provider branch.Provider) *Router {
	return &Router{
		provider: provider,
		log:      zap.L().Named("branchdb"),
		slots:    make(map[string]*slot),
	}
}

// Resolve returns a live handle for the branch. Concurrent callers for
// the same branch serialize on that branch's slot; other branches are
// unaffected.
func (r *Router) Resolve(ctx context.Context, branchID string) (*Handle, error) {
	cfg, err := r.provider.GetConfig(ctx, branchID)
	if err != nil {
		return nil, err
	}
	fp := branch.Fingerprint(cfg)

	s := r.slot(branchID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		if s.handle.fingerprint == fp {
			metrics.ConnectionCacheHits.Inc()
			return s.handle, nil
		}
		r.log.Info("branch settings changed, rebuilding handle",
			zap.String("branch_id", branchID))
		if err := s.handle.Close(); err != nil {
			r.log.Warn("closing stale handle", zap.String("branch_id", branchID), zap.Error(err))
		}
		s.handle = nil
	}

	h, err := r.open(ctx, cfg, fp)
	if err != nil {
		return nil, err
	}
	s.handle = h
	return h, nil
}

// Invalidate drops the cached handle for a branch. The next Resolve
// rebuilds it from current settings.
func (r *Router) Invalidate(branchID string) {
	r.mu.RLock()
	s, ok := r.slots[branchID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	s.mu.Lock()
	if s.handle != nil {
		metrics.ConnectionInvalidations.Inc()
		if err := s.handle.Close(); err != nil {
			r.log.Warn("closing invalidated handle", zap.String("branch_id", branchID), zap.Error(err))
		}
		s.handle = nil
	}
	s.mu.Unlock()
}

// Close releases every cached handle.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for id, s := range r.slots {
		s.mu.Lock()
		if s.handle != nil {
			if err := s.handle.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			s.handle = nil
		}
		s.mu.Unlock()
		delete(r.slots, id)
	}
	return firstErr
}

func (r *Router) slot(branchID string) *slot {
	r.mu.RLock()
	s, ok := r.slots[branchID]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.slots[branchID]; ok {
		return s
	}
	s = &slot{}
	r.slots[branchID] = s
	return s
}

func (r *Router) open(ctx context.Context, cfg domain.BranchConfig, fp string) (*Handle, error) {
	driver, ok := driverName(cfg.Engine)
	if !ok {
		return nil, &domain.ConnectionError{
			Kind:     domain.ConnUnsupportedEngine,
			BranchID: cfg.ID,
		}
	}

	db, err := sqlx.Open(driver, buildDSN(cfg))
	if err != nil {
		return nil, classify(cfg.ID, err)
	}

	if cfg.Engine == domain.EngineSQLite {
		// single writer; serializes in-process access instead of
		// surfacing SQLITE_BUSY
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxIdleConns(8)
		db.SetMaxOpenConns(30)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, classify(cfg.ID, err)
	}

	h := &Handle{DB: db, BranchID: cfg.ID, Engine: cfg.Engine, fingerprint: fp}
	if err := ensureSchema(ctx, h); err != nil {
		_ = db.Close()
		return nil, classify(cfg.ID, err)
	}

	metrics.ConnectionsOpened.WithLabelValues(string(cfg.Engine)).Inc()
	r.log.Info("opened branch handle",
		zap.String("branch_id", cfg.ID),
		zap.String("engine", string(cfg.Engine)))
	return h, nil
}

func classify(branchID string, err error) error {
	kind := domain.ConnUnreachable
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = domain.ConnTimeout
	case isAuthError(err):
		kind = domain.ConnAuthFailed
	}
	return &domain.ConnectionError{Kind: kind, BranchID: branchID, Err: err}
}

// Driver errors carry no common auth sentinel, so match on the message.
func isAuthError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"password authentication failed", // pgx
		"access denied",                  // mysql
		"login failed",                   // sqlserver
		"authentication failed",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
