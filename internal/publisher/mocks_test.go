package publisher

import (
	"context"
	"errors"
	"sync"

	r "github.com/fjod/go_cart/internal/repository"
	kafkaGo "github.com/segmentio/kafka-go"
)

type MockEventStore struct {
	mu           sync.Mutex
	OutboxEvents []*r.OutboxEvent
	GetErr       error
	MarkErr      error
	ProcessedIDs []int64
}

func (m *MockEventStore) GetUnprocessedEvents(_ context.Context, limit int) ([]*r.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	var out []*r.OutboxEvent
	for _, ev := range m.OutboxEvents {
		if m.processed(ev.ID) {
			continue
		}
		out = append(out, ev)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockEventStore) MarkEventAsProcessed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.ProcessedIDs = append(m.ProcessedIDs, id)
	return nil
}

func (m *MockEventStore) processed(id int64) bool {
	for _, p := range m.ProcessedIDs {
		if p == id {
			return true
		}
	}
	return false
}

var errBrokerDown = errors.New("broker down")

type MockWriter struct {
	mu       sync.Mutex
	Messages []kafkaGo.Message
	Err      error
	// FailKeys rejects messages with these keys.
	FailKeys map[string]bool
	Calls    int
	Closed   bool
}

func (w *MockWriter) WriteMessages(_ context.Context, msgs ...kafkaGo.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Calls++
	if w.Err != nil {
		return w.Err
	}
	for _, msg := range msgs {
		if w.FailKeys[string(msg.Key)] {
			return errBrokerDown
		}
	}
	w.Messages = append(w.Messages, msgs...)
	return nil
}

func (w *MockWriter) Close() error {
	w.Closed = true
	return nil
}
