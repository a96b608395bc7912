package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"payconfirm/internal/domain"
	"payconfirm/internal/mailer"
)

// Notifier accepts notification events for asynchronous delivery.
type Notifier interface {
	Enqueue(ctx context.Context, events ...domain.NotificationEvent)
}

// DispatcherConfig tunes the notification worker pool.
type DispatcherConfig struct {
	AdminEmail string
	Timeout    time.Duration // per send
	Workers    int
	QueueSize  int
}

// NotificationDispatcher delivers notification events through a bounded
// queue and a fixed pool of workers. Delivery failures are logged and
// counted; they are never returned to the code that enqueued the event.
type NotificationDispatcher struct {
	sender mailer.Sender
	logger *zap.Logger
	cfg    DispatcherConfig

	queue chan domain.NotificationEvent
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewNotificationDispatcher creates a dispatcher and starts its workers.
func NewNotificationDispatcher(sender mailer.Sender, logger *zap.Logger, cfg DispatcherConfig) *NotificationDispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	d := &NotificationDispatcher{
		sender: sender,
		logger: logger,
		cfg:    cfg,
		queue:  make(chan domain.NotificationEvent, cfg.QueueSize),
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.work()
	}

	return d
}

// Enqueue queues events without blocking. When the queue is full or the
// dispatcher is closed the event is dropped; the ledger already holds the
// outcome it describes.
func (d *NotificationDispatcher) Enqueue(ctx context.Context, events ...domain.NotificationEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, ev := range events {
		if d.closed {
			d.drop(ev, "dispatcher closed")
			continue
		}
		select {
		case d.queue <- ev:
			notificationsTotal.WithLabelValues(string(ev.Audience), "queued").Inc()
		default:
			d.drop(ev, "queue full")
		}
	}
}

// Dispatch renders and sends one event synchronously.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, ev domain.NotificationEvent) error {
	msg := RenderMessage(ev, d.cfg.AdminEmail)
	if msg.To == "" {
		return fmt.Errorf("%w: no %s recipient", ErrNotificationDelivery, ev.Audience)
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	if err := d.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrNotificationDelivery, err)
	}
	return nil
}

// Close stops accepting events and waits for queued ones to be delivered,
// or for ctx to end.
func (d *NotificationDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notification drain: %w", ctx.Err())
	}
}

func (d *NotificationDispatcher) work() {
	defer d.wg.Done()
	for ev := range d.queue {
		d.deliver(ev)
	}
}

func (d *NotificationDispatcher) deliver(ev domain.NotificationEvent) {
	audience := string(ev.Audience)

	if err := d.Dispatch(context.Background(), ev); err != nil {
		notificationsTotal.WithLabelValues(audience, "failed").Inc()
		d.logger.Warn("notification not delivered",
			zap.String("payment_id", ev.Intent.ID),
			zap.String("audience", audience),
			zap.String("status", string(ev.Status)),
			zap.Int64("version", ev.Version),
			zap.Error(err),
		)
		return
	}

	notificationsTotal.WithLabelValues(audience, "sent").Inc()
	d.logger.Info("notification sent",
		zap.String("payment_id", ev.Intent.ID),
		zap.String("audience", audience),
		zap.String("status", string(ev.Status)),
	)
}

func (d *NotificationDispatcher) drop(ev domain.NotificationEvent, reason string) {
	notificationsTotal.WithLabelValues(string(ev.Audience), "dropped").Inc()
	d.logger.Error("notification dropped",
		zap.String("payment_id", ev.Intent.ID),
		zap.String("audience", string(ev.Audience)),
		zap.String("status", string(ev.Status)),
		zap.String("reason", reason),
	)
}

// Ensure NotificationDispatcher implements Notifier.
var _ Notifier = (*NotificationDispatcher)(nil)
