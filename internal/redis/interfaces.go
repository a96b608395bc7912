package redis

import (
	"context"
	"time"

	"payconfirm/internal/repository"
)

// ResponseCacheInterface defines the interface for cached HTTP responses.
type ResponseCacheInterface interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Ensure concrete types implement interfaces.
var (
	_ repository.Ledger      = (*LedgerStore)(nil)
	_ ResponseCacheInterface = (*ResponseCache)(nil)
)
