package segfile

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// SegmentSize is the maximum payload of one content segment.
const SegmentSize = 4096

// manifestSegment is reserved for the manifest and never holds content.
const manifestSegment uint32 = 0

// Mode is the mode a File was opened in.
type Mode uint8

const (
	// ModeCreate handles write a new file once.
	ModeCreate Mode = iota
	// ModeRead handles read a committed file.
	ModeRead
)

func (m Mode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeRead:
		return "read"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// State is the lifecycle state of a File.
type State uint8

const (
	// StateWriting is the state of a CREATE handle before Close.
	StateWriting State = iota
	// StateClosed is the state of a CREATE handle after Close, successful or not.
	StateClosed
	// StateReading is the only state of a READ handle.
	StateReading
)

func (s State) String() string {
	switch s {
	case StateWriting:
		return "writing"
	case StateClosed:
		return "closed"
	case StateReading:
		return "reading"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// File is a handle on one segmented file.
//
// A File is not safe for concurrent use. Distinct handles are independent.
type File struct {
	catalog *Catalog
	log     *Logger

	scope string
	name  string
	id    uuid.UUID
	mode  Mode
	state State

	length uint64
	// CREATE: content segments written so far. READ: the stored manifest counter.
	numSegments uint32

	buf  []byte
	next uint32
}

// ID returns the storage identifier of the file.
func (f *File) ID() uuid.UUID { return f.id }

// Name returns the catalog name of the file.
func (f *File) Name() string { return f.name }

// Scope returns the scope the file lives in.
func (f *File) Scope() string { return f.scope }

// Mode returns the mode the handle was opened in.
func (f *File) Mode() Mode { return f.mode }

// State returns the lifecycle state of the handle.
func (f *File) State() State { return f.state }

// Length returns the content length: the manifest value for READ handles,
// the running total for CREATE handles.
func (f *File) Length() uint64 { return f.length }

// NumSegments returns the stored manifest counter (content segments + 1) for
// READ handles, and the number of content segments written so far for
// CREATE handles.
func (f *File) NumSegments() uint32 { return f.numSegments }

// ContentSegments returns the number of content segments regardless of mode.
func (f *File) ContentSegments() uint32 {
	if f.mode == ModeRead {
		return Manifest{SegmentCount: f.numSegments}.ContentSegments()
	}
	return f.numSegments
}

// ResourceDescription returns "/<scope>/<name>".
func (f *File) ResourceDescription() string {
	return DescribeResource(f.scope, f.name)
}

func (f *File) ensureWritable(op string) error {
	if f.mode != ModeCreate || f.state != StateWriting {
		return &StateError{Op: op, Mode: f.mode, State: f.state}
	}
	return nil
}

func (f *File) ensureReadable(op string) error {
	if f.mode != ModeRead {
		return &StateError{Op: op, Mode: f.mode, State: f.state}
	}
	return nil
}

// Write appends p to the file. Bytes are buffered and written out one
// SegmentSize chunk at a time; a full buffer is flushed as soon as more bytes
// arrive, and the final partial (or full) buffer is flushed by Close.
//
// Write returns the number of bytes accepted. On error the handle must be
// considered failed.
func (f *File) Write(ctx context.Context, p []byte) (int, error) {
	if err := f.ensureWritable("write"); err != nil {
		return 0, err
	}

	written := 0
	for len(p) > 0 {
		if len(f.buf) == SegmentSize {
			if err := f.flushSegment(ctx); err != nil {
				return written, err
			}
		}

		n := min(SegmentSize-len(f.buf), len(p))
		f.buf = append(f.buf, p[:n]...)
		f.length += uint64(n)
		written += n
		p = p[n:]
	}
	return written, nil
}

// Writer adapts the handle to io.Writer, bound to ctx.
func (f *File) Writer(ctx context.Context) io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		return f.Write(ctx, p)
	})
}

type writerFunc func(p []byte) (int, error)

func (fn writerFunc) Write(p []byte) (int, error) { return fn(p) }

// flushSegment writes the buffer as the next content segment and resets it.
func (f *File) flushSegment(ctx context.Context) error {
	if err := f.ensureWritable("flush segment"); err != nil {
		return err
	}

	start := time.Now()
	err := f.catalog.backend.PutSegment(ctx, f.scope, f.id, f.next, f.buf)
	f.catalog.opts.metricsCollector.RecordFlush(len(f.buf), time.Since(start), err)
	f.log.LogFlush(ctx, f.next, len(f.buf), err)
	if err != nil {
		return translateError("flush segment", f.ResourceDescription(), err)
	}

	f.next++
	f.numSegments++
	f.buf = f.buf[:0]
	return nil
}

// Close commits the file: it flushes the buffer (an empty file still gets one
// empty content segment), writes the manifest as segment 0, then registers
// the name in the catalog index.
//
// There is no rollback. If the index write fails the segments stay behind
// without a name; Catalog.Orphans finds them. The handle is closed whatever
// the outcome, and a second Close returns ErrInvalidState.
func (f *File) Close(ctx context.Context) error {
	if err := f.ensureWritable("close"); err != nil {
		return err
	}

	start := time.Now()
	err := f.commit(ctx)

	f.state = StateClosed
	f.buf = nil

	f.catalog.opts.metricsCollector.RecordClose(f.length, time.Since(start), err)
	f.log.LogClose(ctx, f.length, f.numSegments, err)
	return err
}

func (f *File) commit(ctx context.Context) error {
	if err := f.flushSegment(ctx); err != nil {
		return err
	}

	manifest := Manifest{Length: f.length, SegmentCount: f.numSegments + 1}
	data, err := manifest.MarshalBinary()
	if err != nil {
		return err
	}

	resource := f.ResourceDescription()
	if err := f.catalog.backend.PutSegment(ctx, f.scope, f.id, manifestSegment, data); err != nil {
		return translateError("write manifest", resource, err)
	}

	if err := f.catalog.backend.PutIndex(ctx, f.scope, f.name, f.id); err != nil {
		return translateError("write index entry", resource, err)
	}
	return nil
}

// Manifest returns the manifest a READ handle was opened with.
func (f *File) Manifest() (Manifest, error) {
	if err := f.ensureReadable("manifest"); err != nil {
		return Manifest{}, err
	}
	return Manifest{Length: f.length, SegmentCount: f.numSegments}, nil
}

// ReadSegment returns content segment n, 1 <= n <= ContentSegments().
func (f *File) ReadSegment(ctx context.Context, n uint32) ([]byte, error) {
	if err := f.ensureReadable("read segment"); err != nil {
		return nil, err
	}
	if n == manifestSegment || n > f.ContentSegments() {
		return nil, fmt.Errorf("%w: segment %d of %s (content segments 1..%d)",
			ErrSegmentOutOfRange, n, f.ResourceDescription(), f.ContentSegments())
	}

	chunks, err := f.catalog.FetchSegmentRange(ctx, f.scope, f.id, n, n)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: segment %d of %s", ErrMissingSegment, n, f.ResourceDescription())
	}
	return chunks[0], nil
}

// ReadAll reads the whole content of a READ handle.
func (f *File) ReadAll(ctx context.Context) ([]byte, error) {
	if err := f.ensureReadable("read"); err != nil {
		return nil, err
	}
	return io.ReadAll(f.Reader(ctx))
}
