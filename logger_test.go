package segfile

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type traceKey struct{}

// traceHandler records the trace value carried by each record's context.
type traceHandler struct {
	mu     sync.Mutex
	traces map[string]string
}

func (h *traceHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	trace, _ := ctx.Value(traceKey{}).(string)
	h.traces[r.Message] = trace
	return nil
}

func (h *traceHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *traceHandler) WithGroup(string) slog.Handler      { return h }

func TestLogger_PassesContext(t *testing.T) {
	h := &traceHandler{traces: make(map[string]string)}
	l := NewLogger(h)
	ctx := context.WithValue(context.Background(), traceKey{}, "t1")

	l.LogCreate(ctx, SegmentSize)
	l.LogFlush(ctx, 1, 10, nil)
	l.LogClose(ctx, 10, 1, nil)
	l.LogOpen(ctx, "/s/n", 10, nil)
	l.LogOrphans(ctx, "s", 0, nil)

	for _, msg := range []string{"file created", "segment flushed", "file committed", "file opened", "no orphaned files"} {
		assert.Equal(t, "t1", h.traces[msg], msg)
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	id := uuid.MustParse("0b6c7f5e-8c1e-4a55-9d3c-1f2e3d4c5b6a")

	l.WithScope("docs").WithFile("/docs/a", id).LogCreate(context.Background(), SegmentSize)
	out := buf.String()
	assert.Contains(t, out, `"msg":"file created"`)
	assert.Contains(t, out, `"buffer":4096`)
	assert.Contains(t, out, `"id":"0b6c7f5e-8c1e-4a55-9d3c-1f2e3d4c5b6a"`)

	buf.Reset()
	l.LogOrphans(context.Background(), "docs", 0, errors.New("boom"))
	assert.Contains(t, buf.String(), `"level":"ERROR"`)
}

func TestNoopLogger(t *testing.T) {
	l := NoopLogger()
	require.NotNil(t, l)
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
}
