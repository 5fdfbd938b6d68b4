package dynamodb

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/hupe1980/segfile/backend"
	"github.com/hupe1980/segfile/backend/backendtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageSize = 2

// mockDDBClient is an in-memory DynamoDB mock for testing.
// It understands exactly the key schemas and expressions the store issues.
type mockDDBClient struct {
	mu       sync.RWMutex
	tables   map[string]map[string]map[string]types.AttributeValue // table -> key -> item
	queries  int
	failPuts bool
}

func newMockDDBClient() *mockDDBClient {
	return &mockDDBClient{
		tables: make(map[string]map[string]map[string]types.AttributeValue),
	}
}

func str(item map[string]types.AttributeValue, attr string) string {
	if v, ok := item[attr].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func num(item map[string]types.AttributeValue, attr string) uint64 {
	if v, ok := item[attr].(*types.AttributeValueMemberN); ok {
		n, _ := strconv.ParseUint(v.Value, 10, 64)
		return n
	}
	return 0
}

// itemKey renders the primary key of an item for either table.
func itemKey(table string, item map[string]types.AttributeValue) string {
	if table == "segfile-index" {
		return str(item, attrScope) + "\x00" + str(item, attrName)
	}
	return str(item, attrFile) + "\x00" + strconv.FormatUint(num(item, attrSegment)+1e10, 10)
}

func cloneItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		if b, ok := v.(*types.AttributeValueMemberB); ok {
			data := make([]byte, len(b.Value))
			copy(data, b.Value)
			out[k] = &types.AttributeValueMemberB{Value: data}
			continue
		}
		out[k] = v
	}
	return out
}

func (m *mockDDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failPuts {
		return nil, errors.New("provisioned throughput exceeded")
	}

	table := *params.TableName
	if m.tables[table] == nil {
		m.tables[table] = make(map[string]map[string]types.AttributeValue)
	}
	m.tables[table][itemKey(table, params.Item)] = cloneItem(params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDDBClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	table := *params.TableName
	item, ok := m.tables[table][itemKey(table, params.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: cloneItem(item)}, nil
}

// page returns one page of sorted keys starting after the exclusive start key.
func (m *mockDDBClient) page(table string, keys []string, start map[string]types.AttributeValue) ([]map[string]types.AttributeValue, map[string]types.AttributeValue) {
	sort.Strings(keys)

	i := 0
	if len(start) > 0 {
		after := itemKey(table, start)
		i = sort.SearchStrings(keys, after)
		if i < len(keys) && keys[i] == after {
			i++
		}
	}

	var items []map[string]types.AttributeValue
	for ; i < len(keys) && len(items) < pageSize; i++ {
		items = append(items, cloneItem(m.tables[table][keys[i]]))
	}

	var last map[string]types.AttributeValue
	if i < len(keys) {
		last = items[len(items)-1]
	}
	return items, last
}

func (m *mockDDBClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.Lock()
	m.queries++
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	table := *params.TableName
	values := params.ExpressionAttributeValues

	var keys []string
	for key, item := range m.tables[table] {
		if table == "segfile-index" {
			if str(item, attrScope) == values[":s"].(*types.AttributeValueMemberS).Value {
				keys = append(keys, key)
			}
			continue
		}
		from, _ := strconv.ParseUint(values[":from"].(*types.AttributeValueMemberN).Value, 10, 64)
		to, _ := strconv.ParseUint(values[":to"].(*types.AttributeValueMemberN).Value, 10, 64)
		seg := num(item, attrSegment)
		if str(item, attrFile) == values[":f"].(*types.AttributeValueMemberS).Value && seg >= from && seg <= to {
			keys = append(keys, key)
		}
	}

	items, last := m.page(table, keys, params.ExclusiveStartKey)
	return &dynamodb.QueryOutput{Items: items, LastEvaluatedKey: last}, nil
}

func (m *mockDDBClient) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	table := *params.TableName
	scope := params.ExpressionAttributeValues[":s"].(*types.AttributeValueMemberS).Value

	var keys []string
	for key, item := range m.tables[table] {
		if str(item, attrScope) == scope {
			keys = append(keys, key)
		}
	}

	items, last := m.page(table, keys, params.ExclusiveStartKey)
	return &dynamodb.ScanOutput{Items: items, LastEvaluatedKey: last}, nil
}

type mockTableCreator struct {
	created []string
	exists  map[string]bool
}

func (m *mockTableCreator) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	if m.exists[*params.TableName] {
		return nil, &types.ResourceInUseException{Message: aws.String("table exists")}
	}
	m.created = append(m.created, *params.TableName)
	return &dynamodb.CreateTableOutput{}, nil
}

func TestStore_Conformance(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) backend.Backend {
		return NewStore(newMockDDBClient())
	})
}

func TestStore_ScanPaginates(t *testing.T) {
	client := newMockDDBClient()
	store := NewStore(client)
	ctx := context.Background()
	id := uuid.New()

	for n := uint32(0); n < 5; n++ {
		require.NoError(t, store.PutSegment(ctx, "s", id, n, []byte{byte(n)}))
	}

	segs, err := store.ScanSegments(ctx, "s", id, 0, 4)
	require.NoError(t, err)
	require.Len(t, segs, 5)
	for i, seg := range segs {
		assert.Equal(t, uint32(i), seg.Number)
	}
	assert.Equal(t, 3, client.queries)
}

func TestStore_PutError(t *testing.T) {
	client := newMockDDBClient()
	client.failPuts = true
	store := NewStore(client)

	err := store.PutSegment(context.Background(), "s", uuid.New(), 1, []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to put segment 1")
}

func TestStore_TableNames(t *testing.T) {
	store := NewStore(newMockDDBClient(), func(o *Options) {
		o.SegmentsTable = "custom-segments"
	})
	assert.Equal(t, "custom-segments", store.opts.SegmentsTable)
	assert.Equal(t, "segfile-index", store.opts.IndexTable)
	assert.True(t, store.opts.ConsistentRead)
}

func TestCreateTables(t *testing.T) {
	t.Run("Fresh", func(t *testing.T) {
		creator := &mockTableCreator{}
		require.NoError(t, CreateTables(context.Background(), creator))
		assert.Equal(t, []string{"segfile-segments", "segfile-index"}, creator.created)
	})

	t.Run("AlreadyExists", func(t *testing.T) {
		creator := &mockTableCreator{exists: map[string]bool{"segfile-segments": true}}
		require.NoError(t, CreateTables(context.Background(), creator))
		assert.Equal(t, []string{"segfile-index"}, creator.created)
	})
}
