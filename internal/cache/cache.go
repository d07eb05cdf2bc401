package cache

import (
	"context"
	"time"

	"cabangpos/backend/internal/domain"
)

type StatsCache interface {
	Get(ctx context.Context, key string) (*domain.SalesStats, bool, error)
	Set(ctx context.Context, key string, value *domain.SalesStats, ttl time.Duration) error
	Invalidate(ctx context.Context, branchID string) error
}

type NoopStatsCache struct{}

func (NoopStatsCache) Get(_ context.Context, _ string) (*domain.SalesStats, bool, error) {
	return nil, false, nil
}

func (NoopStatsCache) Set(_ context.Context, _ string, _ *domain.SalesStats, _ time.Duration) error {
	return nil
}

func (NoopStatsCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
