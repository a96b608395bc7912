package mailer

import (
	"context"
	"sync"
	"sync/atomic"
)

// Mock is a Sender that records messages. Set FailFor to make sends to
// specific recipients fail, or Err to fail every send.
type Mock struct {
	mu      sync.RWMutex
	sent    []Message
	FailFor map[string]error
	Err     error

	SendCallCount int64
}

// NewMock creates a recording Sender.
func NewMock() *Mock {
	return &Mock{FailFor: make(map[string]error)}
}

// Send records msg unless an error is configured for it.
func (m *Mock) Send(ctx context.Context, msg Message) error {
	atomic.AddInt64(&m.SendCallCount, 1)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if err, ok := m.FailFor[msg.To]; ok {
		return err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// SetFailFor makes sends to recipient fail with err.
func (m *Mock) SetFailFor(recipient string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailFor[recipient] = err
}

// Sent returns a copy of the delivered messages.
func (m *Mock) Sent() []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}

// SentTo returns the delivered messages addressed to recipient.
func (m *Mock) SentTo(recipient string) []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Message
	for _, msg := range m.sent {
		if msg.To == recipient {
			out = append(out, msg)
		}
	}
	return out
}

// Calls returns how many times Send was called.
func (m *Mock) Calls() int64 {
	return atomic.LoadInt64(&m.SendCallCount)
}

var _ Sender = (*Mock)(nil)
