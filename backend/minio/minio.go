// Package minio provides a backend.Backend for MinIO and S3-compatible storage.
//
// Every row is one object; see backend.ObjectLayout for the key scheme.
package minio

import (
	"bytes"
	"context"
	"io"

	"github.com/hupe1980/segfile/backend"
	"github.com/minio/minio-go/v7"
)

// Store implements backend.Backend for MinIO.
type Store struct {
	*backend.ObjectStore
}

var (
	_ backend.Backend  = (*Store)(nil)
	_ backend.IDLister = (*Store)(nil)
)

// NewStore creates a new MinIO backend.
// bucket is the MinIO bucket name.
// rootPrefix is prepended to all keys (e.g. "segfile/").
func NewStore(client *minio.Client, bucket, rootPrefix string) *Store {
	b := &bucketClient{client: client, bucket: bucket}
	return &Store{ObjectStore: backend.NewObjectStore(b, rootPrefix)}
}

// WithFetchConcurrency sets the number of parallel GetObject calls per scan.
func (s *Store) WithFetchConcurrency(n int) *Store {
	s.SetFetchConcurrency(n)
	return s
}

// bucketClient adapts minio-go to backend.ObjectClient.
type bucketClient struct {
	client *minio.Client
	bucket string
}

func (b *bucketClient) IsNotFound(err error) bool {
	errResp := minio.ToErrorResponse(err)
	return errResp.Code == "NoSuchKey" || errResp.Code == "NotFound"
}

func (b *bucketClient) Put(ctx context.Context, key string, data []byte) error {
	_, err := b.client.PutObject(ctx, b.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	return err
}

func (b *bucketClient) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	// GetObject is lazy; a missing key surfaces on first read.
	return io.ReadAll(obj)
}

func (b *bucketClient) List(ctx context.Context, prefix, startAfter string, fn func(key string) bool) error {
	// Canceling stops the listing goroutine when fn ends the walk early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{
		Prefix:     prefix,
		StartAfter: startAfter,
		Recursive:  true,
	}) {
		if obj.Err != nil {
			return obj.Err
		}
		if !fn(obj.Key) {
			return nil
		}
	}
	return nil
}
