// Package segfile stores byte files in a two-table key-value store as
// numbered fixed-size segments.
//
// A file is identified by (scope, name) through a catalog index that maps the
// name to a random 128-bit id. The id owns rows in a segment table: segment 0
// holds a 12-byte manifest, segments 1..N hold the content in chunks of at
// most SegmentSize bytes. A file is written once and is immutable afterwards.
//
// # Quick Start
//
//	ctx := context.Background()
//	catalog := segfile.NewCatalog(memory.New())
//
//	f := catalog.Create("docs", "greeting")
//	f.Write(ctx, []byte("hello world"))
//	if err := f.Close(ctx); err != nil { ... }
//
//	r, _ := catalog.Open(ctx, "docs", "greeting")
//	data, _ := r.ReadAll(ctx)  // "hello world"
//
// # Backends
//
// Storage sits behind backend.Backend. Provided implementations:
//
//	backend/memory    ordered in-memory tables (tests, tooling)
//	backend/badger    embedded disk store
//	backend/dynamodb  two DynamoDB tables, range queries on the segment key
//	backend/s3        one object per row in an S3 bucket
//	backend/minio     same layout on any S3-compatible server
//
// Decorators compose over any backend:
//
//	store := cache.New(compress.New(s3store, compress.ZSTD), 64<<20)
//
// # Commit Model
//
// Nothing is visible under the name until Close succeeds. Close writes the
// last content segment, then the manifest, then the catalog entry. There is
// no rollback: a failure after the segment writes leaves rows without a name,
// which Catalog.Orphans reports on backends that can enumerate ids.
//
// # Errors
//
// Errors are matched with errors.Is against ErrNotFound, ErrCorruptManifest,
// ErrMissingSegment, ErrInvalidState, ErrUnsupported and ErrIO.
package segfile
