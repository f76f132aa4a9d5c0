package cache

import (
	"context"
	"time"

	"mesaviva/backend/internal/domain"
)

// EventFeedCache caches raw system event rows between polling fetches.
// Only the raw rows are cached: classification is recomputed on every
// fetch, and simulation results are never cached anywhere.
type EventFeedCache interface {
	Get(ctx context.Context, key string) ([]domain.SystemEvent, bool, error)
	Set(ctx context.Context, key string, events []domain.SystemEvent, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type NoopEventFeedCache struct{}

func (NoopEventFeedCache) Get(_ context.Context, _ string) ([]domain.SystemEvent, bool, error) {
	return nil, false, nil
}

func (NoopEventFeedCache) Set(_ context.Context, _ string, _ []domain.SystemEvent, _ time.Duration) error {
	return nil
}

func (NoopEventFeedCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
