package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is returned by LookupIndex when the name has no index entry.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
var ErrNotFound = errors.New("backend: not found")

// Segment is one row of the segment table.
type Segment struct {
	Number uint32
	Data   []byte
}

// Backend is the storage contract for segmented files.
type Backend interface {
	// PutSegment writes (or overwrites) the row (scope, id, segment).
	// Implementations must not retain data after returning; callers reuse it.
	PutSegment(ctx context.Context, scope string, id uuid.UUID, segment uint32, data []byte) error

	// ScanSegments returns the rows of id whose segment number lies in
	// [from, to], ordered by segment number. No rows yields an empty slice.
	ScanSegments(ctx context.Context, scope string, id uuid.UUID, from, to uint32) ([]Segment, error)

	// PutIndex maps (scope, name) to id. The last writer wins.
	PutIndex(ctx context.Context, scope, name string, id uuid.UUID) error

	// LookupIndex resolves (scope, name). Returns ErrNotFound if absent.
	LookupIndex(ctx context.Context, scope, name string) (uuid.UUID, error)

	// ListIndex returns every name registered in scope.
	ListIndex(ctx context.Context, scope string) ([]string, error)
}

// IDLister is an optional interface for backends that can enumerate the file
// ids present in the segment table of a scope, with or without index entries.
type IDLister interface {
	ListIDs(ctx context.Context, scope string) ([]uuid.UUID, error)
}

// Closer is implemented by backends that hold resources (connections, files).
type Closer interface {
	Close() error
}

// Unwrapper is implemented by decorators so optional interfaces of the
// wrapped backend stay reachable.
type Unwrapper interface {
	Unwrap() Backend
}

// AsIDLister finds an IDLister in b or in any backend it decorates.
func AsIDLister(b Backend) (IDLister, bool) {
	return find[IDLister](b)
}

// AsCloser finds a Closer in b or in any backend it decorates.
func AsCloser(b Backend) (Closer, bool) {
	return find[Closer](b)
}

func find[T any](b Backend) (T, bool) {
	for b != nil {
		if t, ok := b.(T); ok {
			return t, true
		}
		u, ok := b.(Unwrapper)
		if !ok {
			break
		}
		b = u.Unwrap()
	}
	var zero T
	return zero, false
}

// InRange reports whether segment lies in [from, to].
func InRange(segment, from, to uint32) bool {
	return segment >= from && segment <= to
}

// NotFoundError builds an ErrNotFound for a (scope, name) pair.
func NotFoundError(scope, name string) error {
	return fmt.Errorf("%w: /%s/%s", ErrNotFound, scope, name)
}
