// Package dynamodb provides a backend.Backend on two DynamoDB tables.
//
// Segment table:
//   - Partition key: file (string) - "<id>/<scope>"
//   - Sort key: segment (number)
//   - Attributes: scope (string), data (binary)
//
// Index table:
//   - Partition key: scope (string) - "/<scope>"
//   - Sort key: name (string) - "/<name>"
//   - Attributes: id (string)
//
// Index key values carry a leading '/'; DynamoDB key strings must be non-empty.
//
// Create tables with CreateTables or:
//
//	aws dynamodb create-table \
//	  --table-name segfile-segments \
//	  --attribute-definitions AttributeName=file,AttributeType=S AttributeName=segment,AttributeType=N \
//	  --key-schema AttributeName=file,KeyType=HASH AttributeName=segment,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
//
//	aws dynamodb create-table \
//	  --table-name segfile-index \
//	  --attribute-definitions AttributeName=scope,AttributeType=S AttributeName=name,AttributeType=S \
//	  --key-schema AttributeName=scope,KeyType=HASH AttributeName=name,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/hupe1980/segfile/backend"
)

const (
	attrFile    = "file"
	attrSegment = "segment"
	attrScope   = "scope"
	attrData    = "data"
	attrName    = "name"
	attrID      = "id"
)

// Client is the subset of the DynamoDB API the store uses.
type Client interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// TableCreator is implemented by *dynamodb.Client.
type TableCreator interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// Options configures table names and read consistency.
type Options struct {
	// SegmentsTable defaults to "segfile-segments".
	SegmentsTable string
	// IndexTable defaults to "segfile-index".
	IndexTable string
	// ConsistentRead requests strongly consistent reads.
	ConsistentRead bool
}

func (o *Options) applyDefaults() {
	if o.SegmentsTable == "" {
		o.SegmentsTable = "segfile-segments"
	}
	if o.IndexTable == "" {
		o.IndexTable = "segfile-index"
	}
}

// Store implements backend.Backend for DynamoDB.
type Store struct {
	client Client
	opts   Options
}

var (
	_ backend.Backend  = (*Store)(nil)
	_ backend.IDLister = (*Store)(nil)
)

// NewStore creates a new DynamoDB backend.
func NewStore(client Client, optFns ...func(o *Options)) *Store {
	opts := Options{ConsistentRead: true}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.applyDefaults()

	return &Store{
		client: client,
		opts:   opts,
	}
}

func indexKeyValue(s string) *types.AttributeValueMemberS {
	return &types.AttributeValueMemberS{Value: "/" + s}
}

func fileKey(scope string, id uuid.UUID) string {
	// The id has a fixed width, so the key is unambiguous for any scope.
	return id.String() + "/" + scope
}

// PutSegment implements backend.Backend.
func (s *Store) PutSegment(ctx context.Context, scope string, id uuid.UUID, segment uint32, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.opts.SegmentsTable),
		Item: map[string]types.AttributeValue{
			attrFile:    &types.AttributeValueMemberS{Value: fileKey(scope, id)},
			attrSegment: &types.AttributeValueMemberN{Value: strconv.FormatUint(uint64(segment), 10)},
			attrScope:   &types.AttributeValueMemberS{Value: scope},
			attrData:    &types.AttributeValueMemberB{Value: data},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to put segment %d: %w", segment, err)
	}
	return nil
}

// ScanSegments implements backend.Backend.
func (s *Store) ScanSegments(ctx context.Context, scope string, id uuid.UUID, from, to uint32) ([]backend.Segment, error) {
	segs := []backend.Segment{}
	if from > to {
		return segs, nil
	}

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.opts.SegmentsTable),
		KeyConditionExpression: aws.String("#f = :f AND #seg BETWEEN :from AND :to"),
		ExpressionAttributeNames: map[string]string{
			"#f":   attrFile,
			"#seg": attrSegment,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":f":    &types.AttributeValueMemberS{Value: fileKey(scope, id)},
			":from": &types.AttributeValueMemberN{Value: strconv.FormatUint(uint64(from), 10)},
			":to":   &types.AttributeValueMemberN{Value: strconv.FormatUint(uint64(to), 10)},
		},
		ConsistentRead:   aws.Bool(s.opts.ConsistentRead),
		ScanIndexForward: aws.Bool(true),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query segments: %w", err)
		}
		for _, item := range page.Items {
			seg, err := decodeSegment(item)
			if err != nil {
				return nil, err
			}
			segs = append(segs, seg)
		}
	}
	return segs, nil
}

func decodeSegment(item map[string]types.AttributeValue) (backend.Segment, error) {
	numAttr, ok := item[attrSegment].(*types.AttributeValueMemberN)
	if !ok {
		return backend.Segment{}, errors.New("invalid segment attribute in DynamoDB")
	}
	n, err := strconv.ParseUint(numAttr.Value, 10, 32)
	if err != nil {
		return backend.Segment{}, fmt.Errorf("failed to parse segment number: %w", err)
	}
	data := []byte{}
	if dataAttr, ok := item[attrData].(*types.AttributeValueMemberB); ok && dataAttr.Value != nil {
		data = dataAttr.Value
	}
	return backend.Segment{Number: uint32(n), Data: data}, nil
}

// PutIndex implements backend.Backend.
func (s *Store) PutIndex(ctx context.Context, scope, name string, id uuid.UUID) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.opts.IndexTable),
		Item: map[string]types.AttributeValue{
			attrScope: indexKeyValue(scope),
			attrName:  indexKeyValue(name),
			attrID:    &types.AttributeValueMemberS{Value: id.String()},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to put index entry: %w", err)
	}
	return nil
}

// LookupIndex implements backend.Backend.
func (s *Store) LookupIndex(ctx context.Context, scope, name string) (uuid.UUID, error) {
	resp, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.opts.IndexTable),
		Key: map[string]types.AttributeValue{
			attrScope: indexKeyValue(scope),
			attrName:  indexKeyValue(name),
		},
		ConsistentRead: aws.Bool(s.opts.ConsistentRead),
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to get index entry: %w", err)
	}
	if len(resp.Item) == 0 {
		return uuid.Nil, backend.NotFoundError(scope, name)
	}

	idAttr, ok := resp.Item[attrID].(*types.AttributeValueMemberS)
	if !ok {
		return uuid.Nil, errors.New("invalid id attribute in DynamoDB")
	}
	id, err := uuid.Parse(idAttr.Value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to parse id: %w", err)
	}
	return id, nil
}

// ListIndex implements backend.Backend.
func (s *Store) ListIndex(ctx context.Context, scope string) ([]string, error) {
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.opts.IndexTable),
		KeyConditionExpression: aws.String("#s = :s"),
		ProjectionExpression:   aws.String("#n"),
		ExpressionAttributeNames: map[string]string{
			"#s": attrScope,
			"#n": attrName,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s": indexKeyValue(scope),
		},
		ConsistentRead: aws.Bool(s.opts.ConsistentRead),
	})

	var names []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query index: %w", err)
		}
		for _, item := range page.Items {
			nameAttr, ok := item[attrName].(*types.AttributeValueMemberS)
			if !ok {
				return nil, errors.New("invalid name attribute in DynamoDB")
			}
			name, ok := strings.CutPrefix(nameAttr.Value, "/")
			if !ok {
				return nil, fmt.Errorf("invalid name attribute %q in DynamoDB", nameAttr.Value)
			}
			names = append(names, name)
		}
	}
	return names, nil
}

// ListIDs implements backend.IDLister. It scans the whole segment table.
func (s *Store) ListIDs(ctx context.Context, scope string) ([]uuid.UUID, error) {
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:            aws.String(s.opts.SegmentsTable),
		FilterExpression:     aws.String("#s = :s"),
		ProjectionExpression: aws.String("#f"),
		ExpressionAttributeNames: map[string]string{
			"#s": attrScope,
			"#f": attrFile,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s": &types.AttributeValueMemberS{Value: scope},
		},
		ConsistentRead: aws.Bool(s.opts.ConsistentRead),
	})

	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan segments: %w", err)
		}
		for _, item := range page.Items {
			fileAttr, ok := item[attrFile].(*types.AttributeValueMemberS)
			if !ok || len(fileAttr.Value) < 36 {
				return nil, errors.New("invalid file attribute in DynamoDB")
			}
			id, err := uuid.Parse(fileAttr.Value[:36])
			if err != nil {
				return nil, fmt.Errorf("failed to parse id: %w", err)
			}
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// CreateTables creates the segment and index tables with on-demand billing.
// Existing tables are left untouched.
func CreateTables(ctx context.Context, client TableCreator, optFns ...func(o *Options)) error {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.applyDefaults()

	tables := []*dynamodb.CreateTableInput{
		{
			TableName: aws.String(opts.SegmentsTable),
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String(attrFile), AttributeType: types.ScalarAttributeTypeS},
				{AttributeName: aws.String(attrSegment), AttributeType: types.ScalarAttributeTypeN},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(attrFile), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String(attrSegment), KeyType: types.KeyTypeRange},
			},
			BillingMode: types.BillingModePayPerRequest,
		},
		{
			TableName: aws.String(opts.IndexTable),
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String(attrScope), AttributeType: types.ScalarAttributeTypeS},
				{AttributeName: aws.String(attrName), AttributeType: types.ScalarAttributeTypeS},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(attrScope), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String(attrName), KeyType: types.KeyTypeRange},
			},
			BillingMode: types.BillingModePayPerRequest,
		},
	}

	for _, in := range tables {
		_, err := client.CreateTable(ctx, in)
		if err != nil {
			var inUse *types.ResourceInUseException
			if errors.As(err, &inUse) {
				continue
			}
			return fmt.Errorf("failed to create table %s: %w", *in.TableName, err)
		}
	}
	return nil
}
