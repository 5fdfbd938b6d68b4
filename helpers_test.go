package segfile

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/hupe1980/segfile/backend"
	"github.com/hupe1980/segfile/backend/memory"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected failure")

// faultBackend is a memory store that counts scans and fails on demand.
type faultBackend struct {
	*memory.Store

	mu              sync.Mutex
	scans           int
	failSegment     map[uint32]bool
	failPutIndex    bool
	failScan        bool
	failListIndex   bool
	failLookupIndex bool
}

func newFaultBackend() *faultBackend {
	return &faultBackend{
		Store:       memory.New(),
		failSegment: make(map[uint32]bool),
	}
}

func (b *faultBackend) PutSegment(ctx context.Context, scope string, id uuid.UUID, segment uint32, data []byte) error {
	b.mu.Lock()
	fail := b.failSegment[segment]
	b.mu.Unlock()
	if fail {
		return errInjected
	}
	return b.Store.PutSegment(ctx, scope, id, segment, data)
}

func (b *faultBackend) ScanSegments(ctx context.Context, scope string, id uuid.UUID, from, to uint32) ([]backend.Segment, error) {
	b.mu.Lock()
	b.scans++
	fail := b.failScan
	b.mu.Unlock()
	if fail {
		return nil, errInjected
	}
	return b.Store.ScanSegments(ctx, scope, id, from, to)
}

func (b *faultBackend) PutIndex(ctx context.Context, scope, name string, id uuid.UUID) error {
	if b.failPutIndex {
		return errInjected
	}
	return b.Store.PutIndex(ctx, scope, name, id)
}

func (b *faultBackend) LookupIndex(ctx context.Context, scope, name string) (uuid.UUID, error) {
	if b.failLookupIndex {
		return uuid.Nil, errInjected
	}
	return b.Store.LookupIndex(ctx, scope, name)
}

func (b *faultBackend) ListIndex(ctx context.Context, scope string) ([]string, error) {
	if b.failListIndex {
		return nil, errInjected
	}
	return b.Store.ListIndex(ctx, scope)
}

func (b *faultBackend) scanCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scans
}

// plainBackend hides every optional interface of the wrapped backend.
type plainBackend struct {
	backend.Backend
}

func patterned(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func writeFile(t *testing.T, c *Catalog, scope, name string, data []byte) *File {
	t.Helper()
	ctx := context.Background()

	f := c.Create(scope, name)
	n, err := f.Write(ctx, data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.NoError(t, f.Close(ctx))
	return f
}
