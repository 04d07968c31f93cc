package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracingMiddleware(t *testing.T) {
	var seen string
	h := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFrom(r.Context())
	}))

	call := func(header string) string {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		if header != "" {
			req.Header.Set(TraceHeader, header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, seen, rec.Header().Get(TraceHeader))
		return seen
	}

	t.Run("incoming id is kept", func(t *testing.T) {
		assert.Equal(t, "agent-7.req_42", call("agent-7.req_42"))
	})

	t.Run("missing id is generated", func(t *testing.T) {
		_, err := uuid.Parse(call(""))
		assert.NoError(t, err)
	})

	for name, bad := range map[string]string{
		"too long":      strings.Repeat("a", maxTraceIDLen+1),
		"log injection": "abc\nlevel=error",
		"spaces":        "trace id",
		"quotes":        `x"y`,
	} {
		t.Run(name+" is replaced", func(t *testing.T) {
			got := call(bad)
			assert.NotEqual(t, bad, got)
			_, err := uuid.Parse(got)
			assert.NoError(t, err)
		})
	}
}

func TestTraceIDFromWithoutRequest(t *testing.T) {
	assert.Equal(t, "00000000-0000-0000-0000-000000000000", TraceIDFrom(context.Background()))
	assert.Equal(t, "t-1", TraceIDFrom(WithTraceID(context.Background(), "t-1")))
}
