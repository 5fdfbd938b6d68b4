// Package s3 provides an S3 implementation of backend.Backend.
//
// Every row is one object; see backend.ObjectLayout for the key scheme.
//
// # Usage
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "segfile/")
//	catalog := segfile.NewCatalog(store)
//
// # Features
//
//   - Range scans via sorted prefix listing with StartAfter
//   - Parallel segment fetches
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hupe1980/segfile/backend"
)

// Client is the subset of the S3 API the store uses. *s3.Client satisfies it.
type Client interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store implements backend.Backend for S3.
type Store struct {
	*backend.ObjectStore
}

var (
	_ backend.Backend  = (*Store)(nil)
	_ backend.IDLister = (*Store)(nil)
)

// NewStore creates a new S3 backend.
// rootPrefix is prepended to all keys (e.g. "segfile/").
func NewStore(client Client, bucket, rootPrefix string) *Store {
	b := &bucketClient{
		client:   client,
		bucket:   bucket,
		uploader: manager.NewUploader(client),
	}
	return &Store{ObjectStore: backend.NewObjectStore(b, rootPrefix)}
}

// WithFetchConcurrency sets the number of parallel GetObject calls per scan.
func (s *Store) WithFetchConcurrency(n int) *Store {
	s.SetFetchConcurrency(n)
	return s
}

// bucketClient adapts the S3 API to backend.ObjectClient.
type bucketClient struct {
	client   Client
	bucket   string
	uploader *manager.Uploader
}

func (b *bucketClient) IsNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	return errors.As(err, &nsk)
}

func (b *bucketClient) Put(ctx context.Context, key string, data []byte) error {
	// Upload consumes the reader before returning.
	_, err := b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	return err
}

func (b *bucketClient) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	return io.ReadAll(resp.Body)
}

func (b *bucketClient) List(ctx context.Context, prefix, startAfter string, fn func(key string) bool) error {
	in := &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	}
	if startAfter != "" {
		in.StartAfter = aws.String(startAfter)
	}

	paginator := s3.NewListObjectsV2Paginator(b.client, in)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, obj := range page.Contents {
			if !fn(aws.ToString(obj.Key)) {
				return nil
			}
		}
	}
	return nil
}
