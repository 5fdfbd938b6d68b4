// Package backend defines the storage contract segfile is layered on.
//
// A Backend is a column-oriented key/value store with two logical tables:
//
//   - the segment table, keyed by (scope, id, segment) and holding raw bytes
//   - the index table, keyed by (scope, name) and holding a file id
//
// Segment scans are range scans over the segment number and must return rows
// in ascending segment order.
//
// # Built-in Implementations
//
//   - memory.Store: in-process B-tree, for tests and ephemeral use
//   - badger.Store: embedded Badger database
//   - dynamodb.Store: two DynamoDB tables with a (partition, sort) key schema
//   - s3.Store: one S3 object per row
//   - minio.Store: one object per row on MinIO or any S3-compatible server
//
// # Decorators
//
//   - cache.Store: LRU cache for segment scans
//   - compress.Store: transparent LZ4 or ZSTD compression of segment payloads
//   - throttle.Store: request and byte rate limiting
//
// Implementations must be safe for concurrent use.
package backend
