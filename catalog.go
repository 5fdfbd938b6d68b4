package segfile

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/segfile/backend"
)

// DescribeResource returns the human-readable resource path "/<scope>/<name>".
func DescribeResource(scope, name string) string {
	return "/" + scope + "/" + name
}

// Catalog is the entry point for segmented files stored in a backend.
// It is safe for concurrent use as long as the backend is.
type Catalog struct {
	backend backend.Backend
	opts    options
}

// NewCatalog creates a Catalog over b.
func NewCatalog(b backend.Backend, optFns ...Option) *Catalog {
	return &Catalog{
		backend: b,
		opts:    applyOptions(optFns),
	}
}

// Backend returns the backend the catalog stores into.
func (c *Catalog) Backend() backend.Backend { return c.backend }

// Close releases the backend, or the backend it decorates, if it holds
// resources.
func (c *Catalog) Close() error {
	if closer, ok := backend.AsCloser(c.backend); ok {
		return closer.Close()
	}
	return nil
}

// Create returns a CREATE handle for a new file under (scope, name) with a
// fresh random id. Nothing is written until the first segment fills or the
// handle is closed; the name becomes visible only after a successful Close.
func (c *Catalog) Create(scope, name string) *File {
	id := uuid.New()
	f := &File{
		catalog: c,
		log:     c.opts.logger.WithScope(scope).WithFile(DescribeResource(scope, name), id),
		scope:   scope,
		name:    name,
		id:      id,
		mode:    ModeCreate,
		state:   StateWriting,
		buf:     make([]byte, 0, SegmentSize),
		next:    1,
	}
	f.log.LogCreate(context.Background(), cap(f.buf))
	return f
}

// Open returns a READ handle for an existing file.
//
// Returns ErrNotFound if the name has no catalog entry and
// ErrCorruptManifest if the entry exists but segment 0 is missing or
// malformed.
func (c *Catalog) Open(ctx context.Context, scope, name string) (*File, error) {
	start := time.Now()
	f, err := c.open(ctx, scope, name)
	c.opts.metricsCollector.RecordOpen(time.Since(start), err)

	var length uint64
	if f != nil {
		length = f.length
	}
	c.opts.logger.WithScope(scope).LogOpen(ctx, DescribeResource(scope, name), length, err)
	return f, err
}

func (c *Catalog) open(ctx context.Context, scope, name string) (*File, error) {
	resource := DescribeResource(scope, name)

	id, err := c.Lookup(ctx, scope, name)
	if err != nil {
		return nil, err
	}

	chunks, err := c.FetchSegmentRange(ctx, scope, id, manifestSegment, manifestSegment)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no manifest for %s (%s)", ErrCorruptManifest, id, resource)
	}

	var m Manifest
	if err := m.UnmarshalBinary(chunks[0]); err != nil {
		return nil, fmt.Errorf("%s (%s): %w", resource, id, err)
	}

	return &File{
		catalog:     c,
		log:         c.opts.logger.WithScope(scope).WithFile(resource, id),
		scope:       scope,
		name:        name,
		id:          id,
		mode:        ModeRead,
		state:       StateReading,
		length:      m.Length,
		numSegments: m.SegmentCount,
	}, nil
}

// Lookup resolves (scope, name) to the file id.
func (c *Catalog) Lookup(ctx context.Context, scope, name string) (uuid.UUID, error) {
	id, err := c.backend.LookupIndex(ctx, scope, name)
	if err != nil {
		return uuid.Nil, translateError("lookup", DescribeResource(scope, name), err)
	}
	return id, nil
}

// ListAll returns the names registered in scope, in backend order.
func (c *Catalog) ListAll(ctx context.Context, scope string) ([]string, error) {
	names, err := c.backend.ListIndex(ctx, scope)
	if err != nil {
		return nil, translateError("list", "/"+scope, err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Exists reports whether name is registered in scope.
func (c *Catalog) Exists(ctx context.Context, scope, name string) (bool, error) {
	names, err := c.ListAll(ctx, scope)
	if err != nil {
		return false, err
	}
	return slices.Contains(names, name), nil
}

// FetchSegmentRange returns the payloads of the segments of id numbered
// within [from, to], in ascending segment order. Absent rows are skipped.
func (c *Catalog) FetchSegmentRange(ctx context.Context, scope string, id uuid.UUID, from, to uint32) ([][]byte, error) {
	segs, err := c.scanSegments(ctx, scope, id, from, to)
	if err != nil {
		return nil, err
	}

	chunks := make([][]byte, len(segs))
	for i, s := range segs {
		chunks[i] = s.Data
	}
	return chunks, nil
}

func (c *Catalog) scanSegments(ctx context.Context, scope string, id uuid.UUID, from, to uint32) ([]backend.Segment, error) {
	if from > to {
		return nil, nil
	}

	start := time.Now()
	segs, err := c.backend.ScanSegments(ctx, scope, id, from, to)
	c.opts.metricsCollector.RecordFetch(len(segs), time.Since(start), err)
	if err != nil {
		return nil, translateError("fetch segments", fmt.Sprintf("/%s/%s[%d..%d]", scope, id, from, to), err)
	}
	return segs, nil
}

// DeleteFile is not provided by this layer.
func (c *Catalog) DeleteFile(ctx context.Context, scope, name string) error {
	return &UnsupportedError{Op: "delete " + DescribeResource(scope, name)}
}

// FileLength is not provided by this layer; open the file and use Length.
func (c *Catalog) FileLength(ctx context.Context, scope, name string) (uint64, error) {
	return 0, &UnsupportedError{Op: "file length " + DescribeResource(scope, name)}
}

// Orphans returns the ids in scope that own segment rows but no catalog
// entry, which is what a Close that failed after its segment writes leaves
// behind. Requires a backend that implements backend.IDLister.
func (c *Catalog) Orphans(ctx context.Context, scope string) ([]uuid.UUID, error) {
	orphans, err := c.orphans(ctx, scope)
	c.opts.logger.LogOrphans(ctx, scope, len(orphans), err)
	return orphans, err
}

func (c *Catalog) orphans(ctx context.Context, scope string) ([]uuid.UUID, error) {
	lister, ok := backend.AsIDLister(c.backend)
	if !ok {
		return nil, &UnsupportedError{Op: "orphan scan"}
	}

	ids, err := lister.ListIDs(ctx, scope)
	if err != nil {
		return nil, translateError("list ids", "/"+scope, err)
	}

	names, err := c.ListAll(ctx, scope)
	if err != nil {
		return nil, err
	}

	referenced := make(map[uuid.UUID]struct{}, len(names))
	for _, name := range names {
		id, err := c.Lookup(ctx, scope, name)
		if err != nil {
			// Index entry vanished between list and lookup.
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		referenced[id] = struct{}{}
	}

	orphans := []uuid.UUID{}
	for _, id := range ids {
		if _, ok := referenced[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	return orphans, nil
}
