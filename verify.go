package segfile

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"
)

// Report is the result of checking one file against its manifest.
type Report struct {
	Resource string
	ID       uuid.UUID
	Manifest Manifest

	// Bytes is the summed size of the content segments 1..N that exist.
	Bytes uint64
	// Missing lists content segments the manifest promises but the backend lacks.
	Missing []uint32
	// Extra lists segments numbered beyond the manifest's content segments.
	Extra []uint32
	// Oversized lists segments larger than SegmentSize.
	Oversized []uint32
}

// OK reports whether the file is consistent with its manifest.
func (r *Report) OK() bool {
	return len(r.Missing) == 0 && len(r.Extra) == 0 && len(r.Oversized) == 0 &&
		r.Bytes == r.Manifest.Length
}

// Problems describes each inconsistency on its own line.
func (r *Report) Problems() []string {
	var problems []string
	if len(r.Missing) > 0 {
		problems = append(problems, fmt.Sprintf("missing segments %v", r.Missing))
	}
	if len(r.Extra) > 0 {
		problems = append(problems, fmt.Sprintf("segments beyond manifest %v", r.Extra))
	}
	if len(r.Oversized) > 0 {
		problems = append(problems, fmt.Sprintf("oversized segments %v", r.Oversized))
	}
	if r.Bytes != r.Manifest.Length {
		problems = append(problems, fmt.Sprintf("content is %d bytes, manifest says %d", r.Bytes, r.Manifest.Length))
	}
	return problems
}

func (r *Report) String() string {
	if r.OK() {
		return fmt.Sprintf("%s (%s): ok", r.Resource, r.ID)
	}
	return fmt.Sprintf("%s (%s): %s", r.Resource, r.ID, strings.Join(r.Problems(), "; "))
}

// Verify checks a committed file: the manifest must decode, content segments
// must be contiguous from 1 to N, each at most SegmentSize, and their sizes
// must add up to the manifest length.
//
// Lookup and manifest failures are returned as errors (ErrNotFound,
// ErrCorruptManifest); content inconsistencies are reported in the Report.
func (c *Catalog) Verify(ctx context.Context, scope, name string) (*Report, error) {
	f, err := c.Open(ctx, scope, name)
	if err != nil {
		return nil, err
	}

	segs, err := c.scanSegments(ctx, scope, f.id, 1, math.MaxUint32)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Resource: f.ResourceDescription(),
		ID:       f.id,
		Manifest: Manifest{Length: f.length, SegmentCount: f.numSegments},
	}

	n := f.ContentSegments()
	expected := roaring.New()
	expected.AddRange(1, uint64(n)+1)

	present := roaring.New()
	for _, s := range segs {
		present.Add(s.Number)
		if len(s.Data) > SegmentSize {
			report.Oversized = append(report.Oversized, s.Number)
		}
		if s.Number <= n {
			report.Bytes += uint64(len(s.Data))
		}
	}

	if missing := roaring.AndNot(expected, present); !missing.IsEmpty() {
		report.Missing = missing.ToArray()
	}
	if extra := roaring.AndNot(present, expected); !extra.IsEmpty() {
		report.Extra = extra.ToArray()
	}

	return report, nil
}
