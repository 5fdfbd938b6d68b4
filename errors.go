package segfile

import (
	"errors"
	"fmt"

	"github.com/hupe1980/segfile/backend"
)

var (
	// ErrNotFound is returned when a name has no catalog entry.
	ErrNotFound = errors.New("file not found")

	// ErrCorruptManifest is returned when a catalog entry exists but segment 0
	// is missing or cannot be decoded.
	ErrCorruptManifest = errors.New("corrupt manifest")

	// ErrMissingSegment is returned when a content segment the manifest
	// promises is absent from the segment table.
	ErrMissingSegment = errors.New("missing segment")

	// ErrSegmentOutOfRange is returned by ReadSegment for numbers outside
	// the file's content segments.
	ErrSegmentOutOfRange = errors.New("segment out of range")

	// ErrInvalidState is returned when an operation does not fit the handle's
	// mode or state (e.g. writing to a READ handle or to a closed handle).
	ErrInvalidState = errors.New("invalid state")

	// ErrUnsupported is returned by operations this layer does not provide.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrIO is matched by every backend failure.
	ErrIO = errors.New("i/o error")
)

// IOError wraps a backend failure with the operation and resource involved.
//
// The original underlying error can be accessed via errors.Unwrap.
type IOError struct {
	Op       string
	Resource string
	cause    error
}

func (e *IOError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.cause)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Resource, e.cause)
}

func (e *IOError) Unwrap() error { return e.cause }

// Is reports ErrIO so callers need not know the concrete type.
func (e *IOError) Is(target error) bool { return target == ErrIO }

// StateError reports an operation attempted in the wrong mode or state.
type StateError struct {
	Op    string
	Mode  Mode
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %v (mode %s, state %s)", e.Op, ErrInvalidState, e.Mode, e.State)
}

// Is reports ErrInvalidState.
func (e *StateError) Is(target error) bool { return target == ErrInvalidState }

// UnsupportedError reports a call to an operation this layer does not provide.
type UnsupportedError struct {
	Op string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, ErrUnsupported)
}

// Is reports ErrUnsupported.
func (e *UnsupportedError) Is(target error) bool { return target == ErrUnsupported }

// translateError maps a backend error onto the package taxonomy.
func translateError(op, resource string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, backend.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, resource)
	}

	// Already classified further down the stack.
	if errors.Is(err, ErrIO) || errors.Is(err, ErrUnsupported) {
		return err
	}

	return &IOError{Op: op, Resource: resource, cause: err}
}
