package backend

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultFetchConcurrency bounds parallel object reads per scan.
const DefaultFetchConcurrency = 16

// ObjectClient is the key/value surface of an object store bucket.
type ObjectClient interface {
	// Put stores data under key. It must not retain data.
	Put(ctx context.Context, key string, data []byte) error
	// Get returns the object at key. IsNotFound reports a missing key.
	Get(ctx context.Context, key string) ([]byte, error)
	// List walks keys under prefix after startAfter in lexical order
	// until fn returns false.
	List(ctx context.Context, prefix, startAfter string, fn func(key string) bool) error
	// IsNotFound reports whether err means the key does not exist.
	IsNotFound(err error) bool
}

// ObjectStore implements Backend and IDLister on top of an ObjectClient,
// one object per row as laid out by ObjectLayout.
type ObjectStore struct {
	client      ObjectClient
	layout      ObjectLayout
	concurrency int
}

var (
	_ Backend  = (*ObjectStore)(nil)
	_ IDLister = (*ObjectStore)(nil)
)

// NewObjectStore creates an ObjectStore. rootPrefix is prepended to all keys.
func NewObjectStore(client ObjectClient, rootPrefix string) *ObjectStore {
	return &ObjectStore{
		client:      client,
		layout:      ObjectLayout{Prefix: rootPrefix},
		concurrency: DefaultFetchConcurrency,
	}
}

// SetFetchConcurrency sets the number of parallel object reads per scan.
// Values below one are ignored.
func (s *ObjectStore) SetFetchConcurrency(n int) {
	if n > 0 {
		s.concurrency = n
	}
}

// Layout returns the key layout.
func (s *ObjectStore) Layout() ObjectLayout {
	return s.layout
}

// PutSegment implements Backend.
func (s *ObjectStore) PutSegment(ctx context.Context, scope string, id uuid.UUID, segment uint32, data []byte) error {
	if err := s.client.Put(ctx, s.layout.SegmentKey(scope, id, segment), data); err != nil {
		return fmt.Errorf("failed to put segment %d: %w", segment, err)
	}
	return nil
}

// ScanSegments implements Backend.
func (s *ObjectStore) ScanSegments(ctx context.Context, scope string, id uuid.UUID, from, to uint32) ([]Segment, error) {
	segs := []Segment{}
	if from > to {
		return segs, nil
	}

	startAfter := ""
	if from > 0 {
		startAfter = s.layout.SegmentKey(scope, id, from-1)
	}

	var keys []string
	err := s.client.List(ctx, s.layout.FilePrefix(scope, id), startAfter, func(key string) bool {
		n, ok := s.layout.ParseSegmentKey(scope, id, key)
		if !ok {
			return true
		}
		if n > to {
			return false
		}
		if n >= from {
			keys = append(keys, key)
			segs = append(segs, Segment{Number: n})
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range keys {
		g.Go(func() error {
			data, err := s.client.Get(gctx, keys[i])
			if err != nil {
				return fmt.Errorf("failed to get segment %d: %w", segs[i].Number, err)
			}
			segs[i].Data = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return segs, nil
}

// PutIndex implements Backend.
func (s *ObjectStore) PutIndex(ctx context.Context, scope, name string, id uuid.UUID) error {
	if err := s.client.Put(ctx, s.layout.IndexKey(scope, name), []byte(id.String())); err != nil {
		return fmt.Errorf("failed to put index entry: %w", err)
	}
	return nil
}

// LookupIndex implements Backend.
func (s *ObjectStore) LookupIndex(ctx context.Context, scope, name string) (uuid.UUID, error) {
	data, err := s.client.Get(ctx, s.layout.IndexKey(scope, name))
	if err != nil {
		if s.client.IsNotFound(err) {
			return uuid.Nil, NotFoundError(scope, name)
		}
		return uuid.Nil, fmt.Errorf("failed to get index entry: %w", err)
	}

	id, err := uuid.ParseBytes(data)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to parse id: %w", err)
	}
	return id, nil
}

// ListIndex implements Backend.
func (s *ObjectStore) ListIndex(ctx context.Context, scope string) ([]string, error) {
	var names []string
	err := s.client.List(ctx, s.layout.IndexPrefix(scope), "", func(key string) bool {
		if name, ok := s.layout.ParseIndexKey(scope, key); ok {
			names = append(names, name)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list index: %w", err)
	}
	return names, nil
}

// ListIDs implements IDLister.
func (s *ObjectStore) ListIDs(ctx context.Context, scope string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.client.List(ctx, s.layout.SegmentsPrefix(scope), "", func(key string) bool {
		id, ok := s.layout.ParseFileID(scope, key)
		if ok && (len(ids) == 0 || ids[len(ids)-1] != id) {
			ids = append(ids, id)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}
	return ids, nil
}
