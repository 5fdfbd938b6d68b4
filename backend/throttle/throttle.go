// Package throttle provides a backend.Backend decorator that rate limits
// requests and payload bytes, to keep bulk writers within a provisioned
// throughput budget.
package throttle

import (
	"context"

	"github.com/google/uuid"
	"github.com/hupe1980/segfile/backend"
	"golang.org/x/time/rate"
)

// Config holds rate limits.
type Config struct {
	// RequestsPerSec limits backend calls. If 0, unlimited.
	RequestsPerSec float64
	// BytesPerSec limits segment payload throughput, reads and writes combined.
	// If 0, unlimited.
	BytesPerSec int64
}

// Store wraps a Backend and rate limits it.
type Store struct {
	inner   backend.Backend
	reqs    *rate.Limiter // nil if unlimited
	bytes   *rate.Limiter // nil if unlimited
	byteCap int
}

var (
	_ backend.Backend   = (*Store)(nil)
	_ backend.Unwrapper = (*Store)(nil)
)

// New creates a throttling decorator.
func New(inner backend.Backend, cfg Config) *Store {
	s := &Store{inner: inner}

	if cfg.RequestsPerSec > 0 {
		burst := max(int(cfg.RequestsPerSec), 1)
		s.reqs = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), burst)
	}

	if cfg.BytesPerSec > 0 {
		s.byteCap = int(cfg.BytesPerSec)
		s.bytes = rate.NewLimiter(rate.Limit(cfg.BytesPerSec), s.byteCap)
	}
	return s
}

// Unwrap returns the decorated backend.
func (s *Store) Unwrap() backend.Backend {
	return s.inner
}

func (s *Store) waitRequest(ctx context.Context) error {
	if s.reqs == nil {
		return nil
	}
	return s.reqs.Wait(ctx)
}

// waitBytes charges n bytes, in burst-sized steps since WaitN rejects n > burst.
func (s *Store) waitBytes(ctx context.Context, n int) error {
	if s.bytes == nil {
		return nil
	}
	for n > 0 {
		step := min(n, s.byteCap)
		if err := s.bytes.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}

// PutSegment implements backend.Backend.
func (s *Store) PutSegment(ctx context.Context, scope string, id uuid.UUID, segment uint32, data []byte) error {
	if err := s.waitRequest(ctx); err != nil {
		return err
	}
	if err := s.waitBytes(ctx, len(data)); err != nil {
		return err
	}
	return s.inner.PutSegment(ctx, scope, id, segment, data)
}

// ScanSegments implements backend.Backend.
// Bytes are charged after the read, since the size is unknown before.
func (s *Store) ScanSegments(ctx context.Context, scope string, id uuid.UUID, from, to uint32) ([]backend.Segment, error) {
	if err := s.waitRequest(ctx); err != nil {
		return nil, err
	}

	segs, err := s.inner.ScanSegments(ctx, scope, id, from, to)
	if err != nil {
		return nil, err
	}

	n := 0
	for _, seg := range segs {
		n += len(seg.Data)
	}
	if err := s.waitBytes(ctx, n); err != nil {
		return nil, err
	}
	return segs, nil
}

// PutIndex implements backend.Backend.
func (s *Store) PutIndex(ctx context.Context, scope, name string, id uuid.UUID) error {
	if err := s.waitRequest(ctx); err != nil {
		return err
	}
	return s.inner.PutIndex(ctx, scope, name, id)
}

// LookupIndex implements backend.Backend.
func (s *Store) LookupIndex(ctx context.Context, scope, name string) (uuid.UUID, error) {
	if err := s.waitRequest(ctx); err != nil {
		return uuid.Nil, err
	}
	return s.inner.LookupIndex(ctx, scope, name)
}

// ListIndex implements backend.Backend.
func (s *Store) ListIndex(ctx context.Context, scope string) ([]string, error) {
	if err := s.waitRequest(ctx); err != nil {
		return nil, err
	}
	return s.inner.ListIndex(ctx, scope)
}
