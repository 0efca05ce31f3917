package cache

import (
	"context"
	"time"
)

// BytesCache — кэш "как есть" для сериализованных записей.
// Кэш best-effort: его недоступность не должна ломать основной путь.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}
