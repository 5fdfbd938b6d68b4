package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/hupe1980/segfile/backend"
	"github.com/hupe1980/segfile/backend/backendtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Conformance(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) backend.Backend {
		return New()
	})
}

func TestStore_Len(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, s.PutSegment(ctx, "s", id, 0, []byte("m")))
	require.NoError(t, s.PutSegment(ctx, "s", id, 1, []byte("d")))
	require.NoError(t, s.PutSegment(ctx, "s", id, 1, []byte("d2")))

	assert.Equal(t, 2, s.Len())
}

func TestStore_CanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.PutSegment(ctx, "s", uuid.New(), 1, nil)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = s.ListIndex(ctx, "s")
	assert.ErrorIs(t, err, context.Canceled)
}
