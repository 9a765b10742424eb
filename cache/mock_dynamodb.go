package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// MockDynamoDBClient implements DynamoDBAPI for testing. It understands the
// (menu_id, query) key schema used by DynamoDBCache and nothing more: update
// expressions are "ADD #g :one" and condition checks compare #g with :g,
// treating a missing attribute as 0.
type MockDynamoDBClient struct {
	mu     sync.RWMutex
	tables map[string]map[string]map[string]map[string]types.AttributeValue
	// FailWith, when set, is returned by every data operation
	FailWith error
}

// NewMockDynamoDBClient creates a new mock DynamoDB client
func NewMockDynamoDBClient() *MockDynamoDBClient {
	return &MockDynamoDBClient{
		tables: make(map[string]map[string]map[string]map[string]types.AttributeValue),
	}
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func numberAttr(item map[string]types.AttributeValue, name string) int64 {
	v, ok := item[name].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	n, _ := strconv.ParseInt(v.Value, 10, 64)
	return n
}

// CreateTable mocks the CreateTable operation
func (m *MockDynamoDBClient) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tables[*params.TableName]; !ok {
		m.tables[*params.TableName] = make(map[string]map[string]map[string]types.AttributeValue)
	}
	return &dynamodb.CreateTableOutput{}, nil
}

// DescribeTable mocks the DescribeTable operation
func (m *MockDynamoDBClient) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.tables[*params.TableName]; !ok {
		return nil, &types.ResourceNotFoundException{Message: params.TableName}
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

func (m *MockDynamoDBClient) table(name string) (map[string]map[string]map[string]types.AttributeValue, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	t, ok := m.tables[name]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: &name}
	}
	return t, nil
}

// GetItem mocks the GetItem operation
func (m *MockDynamoDBClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, err := m.table(*params.TableName)
	if err != nil {
		return nil, err
	}
	item := t[stringAttr(params.Key, attrMenuID)][stringAttr(params.Key, attrQuery)]
	return &dynamodb.GetItemOutput{Item: item}, nil
}

// PutItem mocks the PutItem operation
func (m *MockDynamoDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(*params.TableName)
	if err != nil {
		return nil, err
	}
	menuID := stringAttr(params.Item, attrMenuID)
	query := stringAttr(params.Item, attrQuery)
	if menuID == "" || query == "" {
		return nil, fmt.Errorf("mock dynamodb: item is missing its key")
	}
	if _, ok := t[menuID]; !ok {
		t[menuID] = make(map[string]map[string]types.AttributeValue)
	}
	t[menuID][query] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

// DeleteItem mocks the DeleteItem operation
func (m *MockDynamoDBClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(*params.TableName)
	if err != nil {
		return nil, err
	}
	menuID := stringAttr(params.Key, attrMenuID)
	delete(t[menuID], stringAttr(params.Key, attrQuery))
	if len(t[menuID]) == 0 {
		delete(t, menuID)
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

// Query mocks a partition key lookup, returning the whole partition in one page
func (m *MockDynamoDBClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, err := m.table(*params.TableName)
	if err != nil {
		return nil, err
	}
	menuID := stringAttr(params.ExpressionAttributeValues, ":m")
	out := &dynamodb.QueryOutput{}
	for _, item := range t[menuID] {
		out.Items = append(out.Items, item)
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

// UpdateItem mocks an "ADD #g :one" update, creating the row when missing
func (m *MockDynamoDBClient) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(*params.TableName)
	if err != nil {
		return nil, err
	}
	menuID := stringAttr(params.Key, attrMenuID)
	query := stringAttr(params.Key, attrQuery)
	if _, ok := t[menuID]; !ok {
		t[menuID] = make(map[string]map[string]types.AttributeValue)
	}

	row := make(map[string]types.AttributeValue)
	for k, v := range t[menuID][query] {
		row[k] = v
	}
	for k, v := range params.Key {
		row[k] = v
	}
	name := params.ExpressionAttributeNames["#g"]
	sum := numberAttr(row, name) + numberAttr(params.ExpressionAttributeValues, ":one")
	row[name] = &types.AttributeValueMemberN{Value: strconv.FormatInt(sum, 10)}
	t[menuID][query] = row
	return &dynamodb.UpdateItemOutput{}, nil
}

// TransactWriteItems mocks a transaction of condition checks and puts. A
// failed check cancels the whole transaction.
func (m *MockDynamoDBClient) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ti := range params.TransactItems {
		check := ti.ConditionCheck
		if check == nil {
			continue
		}
		t, err := m.table(*check.TableName)
		if err != nil {
			return nil, err
		}
		row := t[stringAttr(check.Key, attrMenuID)][stringAttr(check.Key, attrQuery)]
		name := check.ExpressionAttributeNames["#g"]
		if numberAttr(row, name) != numberAttr(check.ExpressionAttributeValues, ":g") {
			msg := "Transaction cancelled, please refer cancellation reasons for specific reasons [ConditionalCheckFailed]"
			return nil, &types.TransactionCanceledException{Message: &msg}
		}
	}

	for _, ti := range params.TransactItems {
		put := ti.Put
		if put == nil {
			continue
		}
		t, err := m.table(*put.TableName)
		if err != nil {
			return nil, err
		}
		menuID := stringAttr(put.Item, attrMenuID)
		query := stringAttr(put.Item, attrQuery)
		if menuID == "" || query == "" {
			return nil, fmt.Errorf("mock dynamodb: item is missing its key")
		}
		if _, ok := t[menuID]; !ok {
			t[menuID] = make(map[string]map[string]types.AttributeValue)
		}
		t[menuID][query] = put.Item
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

// Len returns how many rows the table holds
func (m *MockDynamoDBClient) Len(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, rows := range m.tables[table] {
		n += len(rows)
	}
	return n
}
