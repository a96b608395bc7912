// Package ledgertest holds the behaviour every repository.Ledger backend
// must share, run by each backend's own tests.
package ledgertest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payconfirm/internal/domain"
	"payconfirm/internal/repository"
)

// Run exercises ledger. Payment ids are random, so a shared database needs
// no cleanup between runs.
func Run(t *testing.T, ledger repository.Ledger) {
	t.Helper()

	t.Run("GetOrCreate is idempotent", func(t *testing.T) {
		ctx := context.Background()
		id := newID()

		entry, err := ledger.GetOrCreate(ctx, id, domain.RailCard)
		require.NoError(t, err)
		assert.Equal(t, id, entry.PaymentID)
		assert.Equal(t, domain.RailCard, entry.Rail)
		assert.Equal(t, domain.StatusPending, entry.Status)
		assert.Equal(t, int64(1), entry.Version)
		assert.Empty(t, entry.RawStatus)

		again, err := ledger.GetOrCreate(ctx, id, domain.RailGateway)
		require.NoError(t, err)
		assert.Equal(t, domain.RailCard, again.Rail)
		assert.Equal(t, int64(1), again.Version)

		got, err := ledger.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, entry.Version, got.Version)
	})

	t.Run("Get on missing entry", func(t *testing.T) {
		_, err := ledger.Get(context.Background(), newID())
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("CompareAndSet applies and conflicts", func(t *testing.T) {
		ctx := context.Background()
		id := newID()

		_, err := ledger.GetOrCreate(ctx, id, domain.RailBankTransfer)
		require.NoError(t, err)

		res, err := ledger.CompareAndSet(ctx, id, 1, domain.StatusAwaitingManualTransfer, "self_attested")
		require.NoError(t, err)
		require.True(t, res.Applied)
		assert.Equal(t, int64(2), res.Entry.Version)
		assert.Equal(t, domain.StatusAwaitingManualTransfer, res.Entry.Status)
		assert.Equal(t, "self_attested", res.Entry.RawStatus)

		stale, err := ledger.CompareAndSet(ctx, id, 1, domain.StatusFailed, "canceled")
		require.NoError(t, err)
		assert.False(t, stale.Applied)
		require.NotNil(t, stale.Entry)
		assert.Equal(t, int64(2), stale.Entry.Version)
		assert.Equal(t, domain.StatusAwaitingManualTransfer, stale.Entry.Status)

		next, err := ledger.CompareAndSet(ctx, id, 2, domain.StatusConfirmed, "customer_asserts_paid")
		require.NoError(t, err)
		assert.True(t, next.Applied)
		assert.Equal(t, int64(3), next.Entry.Version)

		got, err := ledger.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusConfirmed, got.Status)
		assert.Equal(t, int64(3), got.Version)
	})

	t.Run("CompareAndSet on missing entry", func(t *testing.T) {
		_, err := ledger.CompareAndSet(context.Background(), newID(), 1, domain.StatusConfirmed, "succeeded")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("concurrent GetOrCreate creates one entry", func(t *testing.T) {
		ctx := context.Background()
		id := newID()

		const workers = 20
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				entry, err := ledger.GetOrCreate(ctx, id, domain.RailCard)
				if err == nil && entry.Version != 1 {
					err = assert.AnError
				}
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}
	})

	t.Run("concurrent CompareAndSet applies once", func(t *testing.T) {
		ctx := context.Background()
		id := newID()

		_, err := ledger.GetOrCreate(ctx, id, domain.RailCard)
		require.NoError(t, err)

		const writers = 20
		var (
			wg      sync.WaitGroup
			applied int32
			failed  int32
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := ledger.CompareAndSet(ctx, id, 1, domain.StatusConfirmed, "succeeded")
				switch {
				case err != nil:
					atomic.AddInt32(&failed, 1)
				case res.Applied:
					atomic.AddInt32(&applied, 1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(0), failed)
		assert.Equal(t, int32(1), applied)

		got, err := ledger.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version)
		assert.Equal(t, domain.StatusConfirmed, got.Status)
	})
}

func newID() string {
	return "pay_" + uuid.NewString()
}
