package engine

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// TraceHeader: заголовок, в котором агент или прокси передает свой trace ID.
// Тот же ID попадает в событие аудита и в логи шлюза.
const TraceHeader = "X-Trace-ID"

const maxTraceIDLen = 64

type ctxKey string

const traceIDKey ctxKey = "trace_id"

var zeroTraceID = uuid.Nil.String()

// TracingMiddleware берет trace ID из запроса или выдает новый и возвращает его в ответе.
// Чужой ID принимается, только если он годится для логов и ключей аудита.
func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if !validTraceID(traceID) {
			traceID = uuid.New().String()
		}
		w.Header().Set(TraceHeader, traceID)

		next.ServeHTTP(w, r.WithContext(WithTraceID(r.Context(), traceID)))
	})
}

// validTraceID: непустой, не длиннее 64 символов, только [A-Za-z0-9._-]
func validTraceID(id string) bool {
	if id == "" || len(id) > maxTraceIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFrom: ID запроса или нулевой UUID для вызовов вне HTTP (CLI, прогрев)
func TraceIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return zeroTraceID
}
