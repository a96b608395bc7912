package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"payconfirm/internal/domain"
	"payconfirm/internal/mailer"
)

func testEvent(audience domain.Audience) domain.NotificationEvent {
	return domain.NotificationEvent{
		Intent: domain.PaymentIntent{
			ID:       "pi_test1234",
			Rail:     domain.RailCard,
			Amount:   5000,
			Currency: "USD",
			Contact:  domain.Contact{Name: "Ada", Email: "ada@example.com"},
			Meeting:  domain.Meeting{Date: "2026-11-02", Time: "14:30"},
		},
		Status:   domain.StatusConfirmed,
		Audience: audience,
		Version:  2,
	}
}

func TestDispatcher_DeliversBothAudiences(t *testing.T) {
	t.Parallel()

	sender := mailer.NewMock()
	d := NewNotificationDispatcher(sender, zap.NewNop(), DispatcherConfig{
		AdminEmail: "admin@example.com",
		Timeout:    time.Second,
		Workers:    2,
		QueueSize:  8,
	})

	d.Enqueue(context.Background(), testEvent(domain.AudienceCustomer), testEvent(domain.AudienceAdmin))
	require.NoError(t, d.Close(context.Background()))

	assert.Len(t, sender.SentTo("ada@example.com"), 1)
	assert.Len(t, sender.SentTo("admin@example.com"), 1)
}

func TestDispatcher_OneAudienceFailingDoesNotBlockOther(t *testing.T) {
	t.Parallel()

	sender := mailer.NewMock()
	sender.SetFailFor("admin@example.com", errors.New("mailbox full"))

	d := NewNotificationDispatcher(sender, zap.NewNop(), DispatcherConfig{AdminEmail: "admin@example.com", Workers: 1})
	d.Enqueue(context.Background(), testEvent(domain.AudienceAdmin), testEvent(domain.AudienceCustomer))
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, int64(2), sender.Calls())
	assert.Len(t, sender.SentTo("ada@example.com"), 1)
	assert.Empty(t, sender.SentTo("admin@example.com"))
}

func TestDispatcher_DispatchWrapsTransportError(t *testing.T) {
	t.Parallel()

	sender := mailer.NewMock()
	sender.Err = errors.New("transport down")
	d := NewNotificationDispatcher(sender, zap.NewNop(), DispatcherConfig{AdminEmail: "admin@example.com"})
	defer d.Close(context.Background())

	err := d.Dispatch(context.Background(), testEvent(domain.AudienceCustomer))
	assert.ErrorIs(t, err, ErrNotificationDelivery)

	// No admin address configured means nowhere to send.
	noAdmin := NewNotificationDispatcher(mailer.NewMock(), zap.NewNop(), DispatcherConfig{})
	defer noAdmin.Close(context.Background())
	err = noAdmin.Dispatch(context.Background(), testEvent(domain.AudienceAdmin))
	assert.ErrorIs(t, err, ErrNotificationDelivery)
}

// blockingSender holds every send until release is closed.
type blockingSender struct {
	release chan struct{}
	mu      sync.Mutex
	sent    int
}

func (s *blockingSender) Send(ctx context.Context, msg mailer.Message) error {
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	s.sent++
	s.mu.Unlock()
	return nil
}

func TestDispatcher_FullQueueDropsWithoutBlocking(t *testing.T) {
	t.Parallel()

	sender := &blockingSender{release: make(chan struct{})}
	d := NewNotificationDispatcher(sender, zap.NewNop(), DispatcherConfig{
		AdminEmail: "admin@example.com",
		Timeout:    5 * time.Second,
		Workers:    1,
		QueueSize:  1,
	})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			d.Enqueue(context.Background(), testEvent(domain.AudienceCustomer))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}

	close(sender.release)
	require.NoError(t, d.Close(context.Background()))

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Less(t, sender.sent, 10)
	assert.GreaterOrEqual(t, sender.sent, 1)
}

func TestDispatcher_SendTimeout(t *testing.T) {
	t.Parallel()

	sender := &blockingSender{release: make(chan struct{})}
	d := NewNotificationDispatcher(sender, zap.NewNop(), DispatcherConfig{Timeout: 20 * time.Millisecond})
	defer d.Close(context.Background())

	err := d.Dispatch(context.Background(), testEvent(domain.AudienceCustomer))
	assert.ErrorIs(t, err, ErrNotificationDelivery)
}

func TestDispatcher_EnqueueAfterCloseIsDropped(t *testing.T) {
	t.Parallel()

	sender := mailer.NewMock()
	d := NewNotificationDispatcher(sender, zap.NewNop(), DispatcherConfig{AdminEmail: "admin@example.com"})
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))

	assert.NotPanics(t, func() {
		d.Enqueue(context.Background(), testEvent(domain.AudienceCustomer))
	})
	assert.Equal(t, int64(0), sender.Calls())
}

func TestDispatcher_CloseHonoursContext(t *testing.T) {
	t.Parallel()

	sender := &blockingSender{release: make(chan struct{})}
	defer close(sender.release)

	d := NewNotificationDispatcher(sender, zap.NewNop(), DispatcherConfig{Timeout: time.Minute, Workers: 1})
	d.Enqueue(context.Background(), testEvent(domain.AudienceCustomer))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)
}
