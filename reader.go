package segfile

import (
	"context"
	"fmt"
	"io"

	"github.com/hupe1980/segfile/backend"
)

// segmentReader streams the content of a READ handle, fetching readAhead
// segments per backend request.
type segmentReader struct {
	f   *File
	ctx context.Context

	next      uint32 // next segment number to fetch
	last      uint32 // last content segment number
	remaining uint64 // content bytes still to deliver

	pending []backend.Segment
	cur     []byte
	err     error
}

// Reader returns an io.Reader over the file content. Reads on a CREATE
// handle fail with ErrInvalidState. A segment the manifest promises but the
// backend does not return yields ErrMissingSegment; content shorter than the
// manifest length yields io.ErrUnexpectedEOF.
func (f *File) Reader(ctx context.Context) io.Reader {
	r := &segmentReader{
		f:         f,
		ctx:       ctx,
		next:      1,
		last:      f.ContentSegments(),
		remaining: f.length,
	}
	if err := f.ensureReadable("read"); err != nil {
		r.err = err
	}
	return r
}

func (r *segmentReader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	if len(p) == 0 {
		return 0, nil
	}

	for len(r.cur) == 0 {
		if r.remaining == 0 {
			return 0, io.EOF
		}
		if len(r.pending) == 0 {
			if err := r.fill(); err != nil {
				r.err = err
				return 0, err
			}
		}
		r.cur = r.pending[0].Data
		r.pending = r.pending[1:]
	}

	if uint64(len(r.cur)) > r.remaining {
		r.cur = r.cur[:r.remaining]
	}
	n := copy(p, r.cur)
	r.cur = r.cur[n:]
	r.remaining -= uint64(n)
	return n, nil
}

// fill fetches the next window of segments and checks it has no gaps.
func (r *segmentReader) fill() error {
	if r.next > r.last || r.next == 0 {
		return io.ErrUnexpectedEOF
	}

	to := uint64(r.next) + uint64(r.f.catalog.opts.readAhead) - 1
	if to > uint64(r.last) {
		to = uint64(r.last)
	}

	segs, err := r.f.catalog.scanSegments(r.ctx, r.f.scope, r.f.id, r.next, uint32(to))
	if err != nil {
		return err
	}

	want := r.next
	for _, s := range segs {
		if s.Number != want {
			break
		}
		want++
	}
	if uint64(want) <= to {
		return fmt.Errorf("%w: segment %d of %s", ErrMissingSegment, want, r.f.ResourceDescription())
	}

	r.pending = segs
	r.next = uint32(to) + 1
	return nil
}
