package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memStorage struct {
	mu      sync.Mutex
	batches [][]AuditEvent
	err     error
}

func (m *memStorage) WriteBatch(_ context.Context, events []AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, append([]AuditEvent(nil), events...))
	return m.err
}

func (m *memStorage) events() []AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AuditEvent
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

func TestTrailDrainsOnStop(t *testing.T) {
	store := &memStorage{}
	trail := NewTrail(store, Options{BatchSize: 10, FlushInterval: time.Hour}, zap.NewNop())
	trail.Start()

	for i := 0; i < 25; i++ {
		trail.Log(AuditEvent{ID: fmt.Sprint(i), Operation: OpProve, Status: StatusSuccess})
	}
	trail.Stop()

	events := store.events()
	require.Len(t, events, 25)
	for i, e := range events {
		assert.Equal(t, fmt.Sprint(i), e.ID)
		assert.False(t, e.Timestamp.IsZero())
	}
	for _, b := range store.batches {
		assert.LessOrEqual(t, len(b), 10)
	}
}

func TestTrailFlushesOnTimer(t *testing.T) {
	store := &memStorage{}
	trail := NewTrail(store, Options{BatchSize: 100, FlushInterval: 10 * time.Millisecond}, zap.NewNop())
	trail.Start()
	defer trail.Stop()

	trail.Log(AuditEvent{ID: "a"})
	assert.Eventually(t, func() bool { return len(store.events()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestTrailAfterStop(t *testing.T) {
	store := &memStorage{}
	trail := NewTrail(store, Options{}, zap.NewNop())
	trail.Start()
	trail.Stop()

	trail.Log(AuditEvent{ID: "late"})
	trail.Stop() // повторный Stop безопасен
	assert.Empty(t, store.events())
}

func TestTrailOverflowDrops(t *testing.T) {
	store := &memStorage{}
	var lastFill int
	trail := NewTrail(store, Options{BufferSize: 2, OnBufferFill: func(n int) { lastFill = n }}, zap.NewNop())

	// Воркер не запущен: в канал влезает только два события
	trail.Log(AuditEvent{ID: "1"})
	trail.Log(AuditEvent{ID: "2"})
	trail.Log(AuditEvent{ID: "3"})
	assert.Equal(t, 2, lastFill)

	trail.Start()
	trail.Stop()
	assert.Len(t, store.events(), 2)
}

func TestTrailStorageErrorDoesNotStopWorker(t *testing.T) {
	store := &memStorage{err: errors.New("db down")}
	trail := NewTrail(store, Options{BatchSize: 1}, zap.NewNop())
	trail.Start()

	trail.Log(AuditEvent{ID: "1"})
	trail.Log(AuditEvent{ID: "2"})
	trail.Stop()

	assert.Len(t, store.events(), 2)
}
