package cache

import (
	"context"
	"time"

	"bengkelpos/backend/internal/domain"
)

// SettingsCache fronts the settings table. Keys are setting names; values are
// the stored JSON documents. A miss is (nil, false, nil).
type SettingsCache interface {
	Get(ctx context.Context, key string) (*domain.Setting, bool, error)
	Set(ctx context.Context, key string, value *domain.Setting, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type NoopSettingsCache struct{}

func (NoopSettingsCache) Get(_ context.Context, _ string) (*domain.Setting, bool, error) {
	return nil, false, nil
}

func (NoopSettingsCache) Set(_ context.Context, _ string, _ *domain.Setting, _ time.Duration) error {
	return nil
}

func (NoopSettingsCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
