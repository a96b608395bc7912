package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payconfirm/internal/domain"
	"payconfirm/internal/repository"
	"payconfirm/internal/repository/ledgertest"
)

func newTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestLedgerStore_Behaviour(t *testing.T) {
	client, _ := newTestClient(t)
	ledgertest.Run(t, NewLedgerStore(client))
}

func TestLedgerStore_HashLayout(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewLedgerStore(client)
	ctx := context.Background()

	_, err := store.GetOrCreate(ctx, "pi_layout", domain.RailGateway)
	require.NoError(t, err)
	res, err := store.CompareAndSet(ctx, "pi_layout", 1, domain.StatusFailed, "abandoned")
	require.NoError(t, err)
	require.True(t, res.Applied)

	assert.Equal(t, "2", mr.HGet(ledgerKeyPrefix+"pi_layout", "version"))
	assert.Equal(t, "failed", mr.HGet(ledgerKeyPrefix+"pi_layout", "status"))
	assert.Equal(t, "abandoned", mr.HGet(ledgerKeyPrefix+"pi_layout", "raw_status"))
	assert.False(t, res.Entry.UpdatedAt.IsZero())
	assert.False(t, res.Entry.UpdatedAt.Before(res.Entry.CreatedAt))
}

func TestLedgerStore_CorruptVersion(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewLedgerStore(client)

	mr.HSet(ledgerKeyPrefix+"pi_bad", "payment_id", "pi_bad")
	mr.HSet(ledgerKeyPrefix+"pi_bad", "version", "not-a-number")

	_, err := store.Get(context.Background(), "pi_bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrNotFound)
}

func TestEntryFromFields(t *testing.T) {
	t.Parallel()

	entry, err := entryFromFields([]interface{}{
		"payment_id", "pi_1",
		"rail", "card",
		"status", "confirmed",
		"raw_status", "succeeded",
		"version", "3",
		"created_at", "2026-01-02T03:04:05Z",
		"updated_at", "bad",
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_1", entry.PaymentID)
	assert.Equal(t, domain.RailCard, entry.Rail)
	assert.Equal(t, domain.StatusConfirmed, entry.Status)
	assert.Equal(t, int64(3), entry.Version)
	assert.Equal(t, 2026, entry.CreatedAt.Year())
	assert.True(t, entry.UpdatedAt.IsZero())

	_, err = entryFromFields([]interface{}{"payment_id"})
	assert.Error(t, err)
}

func TestResponseCache(t *testing.T) {
	client, mr := newTestClient(t)
	cache := NewResponseCache(client)
	ctx := context.Background()

	miss, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, miss)

	require.NoError(t, cache.Set(ctx, "k", []byte("first"), time.Minute))
	require.NoError(t, cache.Set(ctx, "k", []byte("second"), time.Minute))

	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))

	mr.FastForward(2 * time.Minute)
	expired, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, expired)
}
