package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/segfile/backend"
	"github.com/hupe1980/segfile/backend/backendtest"
	"github.com/hupe1980/segfile/backend/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Conformance(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) backend.Backend {
		return New(memory.New(), Config{RequestsPerSec: 1e6, BytesPerSec: 1 << 30})
	})
}

func TestStore_Unlimited(t *testing.T) {
	s := New(memory.New(), Config{})
	assert.Nil(t, s.reqs)
	assert.Nil(t, s.bytes)

	require.NoError(t, s.PutSegment(context.Background(), "s", uuid.New(), 1, make([]byte, 1<<20)))
}

func TestStore_LargePayloadIsChunked(t *testing.T) {
	// Burst 4096: a 10000 byte write must not fail WaitN's burst check.
	s := New(memory.New(), Config{BytesPerSec: 1 << 20})
	s.bytes.SetBurst(4096)
	s.byteCap = 4096

	require.NoError(t, s.PutSegment(context.Background(), "s", uuid.New(), 1, make([]byte, 10000)))
}

func TestStore_ContextCanceledWhileWaiting(t *testing.T) {
	s := New(memory.New(), Config{RequestsPerSec: 1})
	ctx := context.Background()

	// Drain the single-token burst.
	require.NoError(t, s.PutIndex(ctx, "s", "a", uuid.New()))

	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()

	err := s.PutIndex(ctx, "s", "b", uuid.New())
	assert.Error(t, err)
}
