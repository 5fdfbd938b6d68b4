package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hupe1980/segfile"
	"github.com/hupe1980/segfile/backend"
	"github.com/hupe1980/segfile/backend/badger"
	"github.com/hupe1980/segfile/backend/cache"
	"github.com/hupe1980/segfile/backend/compress"
	ddbstore "github.com/hupe1980/segfile/backend/dynamodb"
	"github.com/hupe1980/segfile/backend/memory"
	miniostore "github.com/hupe1980/segfile/backend/minio"
	s3store "github.com/hupe1980/segfile/backend/s3"
	"github.com/hupe1980/segfile/backend/throttle"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// openCatalog builds the configured backend stack and wraps it in a Catalog.
// The caller must Close the catalog.
func openCatalog(cmd *cobra.Command, v *viper.Viper) (*segfile.Catalog, error) {
	logger, err := newLogger(cmd, v)
	if err != nil {
		return nil, err
	}

	store, err := openBackend(cmd.Context(), v, logger)
	if err != nil {
		return nil, err
	}

	store, err = decorate(store, v)
	if err != nil {
		if closer, ok := backend.AsCloser(store); ok {
			_ = closer.Close()
		}
		return nil, err
	}
	return segfile.NewCatalog(store,
		segfile.WithLogger(logger),
		segfile.WithReadAhead(v.GetInt("read-ahead")),
	), nil
}

func openBackend(ctx context.Context, v *viper.Viper, logger *segfile.Logger) (backend.Backend, error) {
	switch kind := v.GetString("backend"); kind {
	case "memory":
		return memory.New(), nil
	case "badger":
		return badger.Open(badger.Options{Dir: v.GetString("dir"), Logger: logger.Logger})
	case "dynamodb":
		client, err := newDynamoDBClient(ctx, v)
		if err != nil {
			return nil, err
		}
		return ddbstore.NewStore(client, dynamoDBTables(v)), nil
	case "s3":
		if v.GetString("bucket") == "" {
			return nil, errors.New("--bucket is required for the s3 backend")
		}
		client, err := newS3Client(ctx, v)
		if err != nil {
			return nil, err
		}
		return s3store.NewStore(client, v.GetString("bucket"), v.GetString("prefix")), nil
	case "minio":
		if v.GetString("bucket") == "" || v.GetString("endpoint") == "" {
			return nil, errors.New("--bucket and --endpoint are required for the minio backend")
		}
		client, err := minio.New(v.GetString("endpoint"), &minio.Options{
			Creds:  credentials.NewStaticV4(v.GetString("access-key"), v.GetString("secret-key"), ""),
			Secure: !v.GetBool("insecure"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create minio client: %w", err)
		}
		return miniostore.NewStore(client, v.GetString("bucket"), v.GetString("prefix")), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", kind)
	}
}

// decorate stacks, from the wire outwards: throttle, compression, cache.
func decorate(store backend.Backend, v *viper.Viper) (backend.Backend, error) {
	rateBytes, err := parseBytes(v, "rate-bytes")
	if err != nil {
		return store, err
	}
	if rateBytes > 0 || v.GetFloat64("rate-requests") > 0 {
		store = throttle.New(store, throttle.Config{
			RequestsPerSec: v.GetFloat64("rate-requests"),
			BytesPerSec:    int64(rateBytes),
		})
	}

	typ, err := compress.ParseType(v.GetString("compress"))
	if err != nil {
		return store, err
	}
	if typ != compress.None {
		store = compress.New(store, typ)
	}

	cacheBytes, err := parseBytes(v, "cache-bytes")
	if err != nil {
		return store, err
	}
	if cacheBytes > 0 {
		store = cache.New(store, int64(cacheBytes))
	}
	return store, nil
}

func loadAWSConfig(ctx context.Context, v *viper.Viper) (aws.Config, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	if region := v.GetString("region"); region != "" {
		optFns = append(optFns, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

func newDynamoDBClient(ctx context.Context, v *viper.Viper) (*dynamodb.Client, error) {
	cfg, err := loadAWSConfig(ctx, v)
	if err != nil {
		return nil, err
	}

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint := v.GetString("endpoint"); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func newS3Client(ctx context.Context, v *viper.Viper) (*s3.Client, error) {
	cfg, err := loadAWSConfig(ctx, v)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint := v.GetString("endpoint"); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func dynamoDBTables(v *viper.Viper) func(*ddbstore.Options) {
	return func(o *ddbstore.Options) {
		o.SegmentsTable = v.GetString("segments-table")
		o.IndexTable = v.GetString("index-table")
	}
}
