// Package audit: журнал доказательств и платежей.
//
// Запись неблокирующая: события уходят в буферизованный канал, фоновый воркер
// пишет их пачками по размеру или по таймеру. При переполнении событие
// сбрасывается в лог (load shedding), горячий путь шлюза не ждет БД.
// Stop закрывает вход и дожидается финального flush.
package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StorageInterface определяет, куда физически будут сохраняться события
type StorageInterface interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []AuditEvent) error
}

type Auditor interface {
	Log(event AuditEvent)
}

// Options: размеры буфера и пачки
type Options struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	// OnBufferFill получает текущую заполненность канала (для метрики)
	OnBufferFill func(n int)
}

func (o Options) withDefaults() Options {
	if o.BufferSize <= 0 {
		o.BufferSize = 10000
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 500 * time.Millisecond
	}
	if o.OnBufferFill == nil {
		o.OnBufferFill = func(int) {}
	}
	return o
}

type Trail struct {
	ch     chan AuditEvent
	repo   StorageInterface
	opts   Options
	logger *zap.Logger
	wg     sync.WaitGroup

	// mu защищает закрытие канала от гонки с Log
	mu     sync.RWMutex
	closed bool
}

func NewTrail(repo StorageInterface, opts Options, logger *zap.Logger) *Trail {
	opts = opts.withDefaults()
	return &Trail{
		ch:     make(chan AuditEvent, opts.BufferSize),
		repo:   repo,
		opts:   opts,
		logger: logger.With(zap.String("mod", "audit")),
	}
}

func (t *Trail) Start() {
	t.wg.Add(1)
	go t.worker()
}

// Stop запирает вход и ждет, пока воркер все допишет.
func (t *Trail) Stop() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.logger.Info("stopping audit trail: closing channel and flushing buffer...")
	close(t.ch)
	t.mu.Unlock()

	t.wg.Wait()
	t.logger.Info("audit trail stopped gracefully")
}

func (t *Trail) Log(event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		t.logger.Warn("audit event dropped: trail is stopping", zap.String("id", event.ID))
		return
	}

	select {
	case t.ch <- event:
		t.opts.OnBufferFill(len(t.ch))
	default:
		// Backpressure: событие теряется, но след остается в логе
		t.logger.Error("audit_buffer_overflow",
			zap.String("id", event.ID),
			zap.String("trace_id", event.TraceID),
			zap.String("operation", event.Operation),
			zap.String("status", event.Status),
		)
	}
}

func (t *Trail) worker() {
	defer t.wg.Done()

	batch := make([]AuditEvent, 0, t.opts.BatchSize)
	ticker := time.NewTicker(t.opts.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: контекст запроса к этому моменту уже закрыт
		if err := t.repo.WriteBatch(context.Background(), batch); err != nil {
			t.logger.Error("audit flush failed", zap.Int("events", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
		t.opts.OnBufferFill(len(t.ch))
	}

	for {
		select {
		case event, ok := <-t.ch:
			if !ok {
				// Канал закрыт в Stop: все, что было в очереди, уже вычитано
				flush()
				t.logger.Info("audit worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= t.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// LogStorage пишет события в zap. Используется, когда БД не настроена.
type LogStorage struct {
	logger *zap.Logger
}

func NewLogStorage(logger *zap.Logger) *LogStorage {
	return &LogStorage{logger: logger.Named("audit-log")}
}

func (s *LogStorage) WriteBatch(_ context.Context, events []AuditEvent) error {
	for _, e := range events {
		s.logger.Info("audit",
			zap.String("id", e.ID),
			zap.String("trace_id", e.TraceID),
			zap.String("agent_id", e.AgentID),
			zap.String("operation", e.Operation),
			zap.String("policy", e.PolicyName),
			zap.String("proof_kind", e.ProofKind),
			zap.String("commitment", e.Commitment),
			zap.String("status", e.Status),
			zap.String("error", e.Error),
			zap.Int64("duration_ms", e.DurationMs),
		)
	}
	return nil
}
