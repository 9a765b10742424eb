package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBAPI defines the interface for DynamoDB operations
type DynamoDBAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

const (
	attrMenuID     = "menu_id"
	attrQuery      = "query"
	attrGeneration = "generation"

	// generationQuery is the sort key of the row holding a menu's
	// generation. It never expires and survives invalidation.
	generationQuery = "#generation"
)

type generationItem struct {
	Generation uint64 `dynamodbav:"generation"`
}

// cacheItem is one cached response. ExpiresAt doubles as the table's TTL
// attribute, but DynamoDB removes expired rows lazily so Get checks it too.
type cacheItem struct {
	MenuID    string `dynamodbav:"menu_id"`
	Query     string `dynamodbav:"query"`
	Data      []byte `dynamodbav:"data"`
	CreatedAt int64  `dynamodbav:"created_at"`
	ExpiresAt int64  `dynamodbav:"ttl"`
}

// DynamoDBCache implements Provider using a DynamoDB table keyed by
// menu_id (hash) and query (range). Each menu's partition also holds its
// generation row, and Set is a transaction conditioned on that row.
type DynamoDBCache struct {
	client DynamoDBAPI
	table  string
	logger *slog.Logger
	mu     sync.RWMutex
	ttl    time.Duration
	now    func() time.Time
}

// NewDynamoDBCache creates a DynamoDB cache provider from the default AWS
// configuration chain.
func NewDynamoDBCache(ctx context.Context, table string, logger *slog.Logger) (*DynamoDBCache, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return NewDynamoDBCacheWithClient(dynamodb.NewFromConfig(cfg), table, logger), nil
}

// NewDynamoDBCacheWithClient creates a new DynamoDB cache provider with a custom client
func NewDynamoDBCacheWithClient(client DynamoDBAPI, table string, logger *slog.Logger) *DynamoDBCache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DynamoDBCache{
		client: client,
		table:  table,
		logger: logger,
		ttl:    DefaultTTL,
		now:    time.Now,
	}
}

// Initialize creates the table if it doesn't exist
func (c *DynamoDBCache) Initialize(ctx context.Context) error {
	_, err := c.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(c.table),
	})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("error describing cache table %s: %w", c.table, err)
	}

	_, err = c.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(c.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrMenuID), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrQuery), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrMenuID), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(attrQuery), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("error creating cache table %s: %w", c.table, err)
	}
	return nil
}

func (c *DynamoDBCache) key(menuID, query string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrMenuID: &types.AttributeValueMemberS{Value: menuID},
		attrQuery:  &types.AttributeValueMemberS{Value: query},
	}
}

// Get retrieves a cached response if present and not expired
func (c *DynamoDBCache) Get(ctx context.Context, menuID, query string) ([]byte, bool) {
	result, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.table),
		Key:       c.key(menuID, query),
	})
	if err != nil {
		c.logger.WarnContext(ctx, "error reading cache", "menu_id", menuID, "query", query, "error", err)
		return nil, false
	}
	if result.Item == nil {
		return nil, false
	}

	var item cacheItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		c.logger.WarnContext(ctx, "error decoding cache item", "menu_id", menuID, "query", query, "error", err)
		return nil, false
	}
	if c.now().Unix() > item.ExpiresAt {
		return nil, false
	}
	return item.Data, true
}

// Generation reads the menu's generation row with a consistent read
func (c *DynamoDBCache) Generation(ctx context.Context, menuID string) (uint64, error) {
	result, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.table),
		Key:            c.key(menuID, generationQuery),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("error reading cache generation of menu %s: %w", menuID, err)
	}
	if result.Item == nil {
		return 0, nil
	}
	var gen generationItem
	if err := attributevalue.UnmarshalMap(result.Item, &gen); err != nil {
		return 0, fmt.Errorf("error decoding cache generation of menu %s: %w", menuID, err)
	}
	return gen.Generation, nil
}

// Set stores a response if the menu is still at generation
func (c *DynamoDBCache) Set(ctx context.Context, menuID string, generation uint64, query string, value []byte) {
	c.mu.RLock()
	ttl := c.ttl
	c.mu.RUnlock()

	now := c.now()
	av, err := attributevalue.MarshalMap(cacheItem{
		MenuID:    menuID,
		Query:     query,
		Data:      value,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	})
	if err != nil {
		c.logger.WarnContext(ctx, "error encoding cache item", "menu_id", menuID, "query", query, "error", err)
		return
	}

	// the generation row does not exist until the first invalidation
	condition := "#g = :g"
	if generation == 0 {
		condition = "attribute_not_exists(#g) OR #g = :g"
	}
	_, err = c.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{ConditionCheck: &types.ConditionCheck{
				TableName:                aws.String(c.table),
				Key:                      c.key(menuID, generationQuery),
				ConditionExpression:      aws.String(condition),
				ExpressionAttributeNames: map[string]string{"#g": attrGeneration},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":g": &types.AttributeValueMemberN{Value: strconv.FormatUint(generation, 10)},
				},
			}},
			{Put: &types.Put{TableName: aws.String(c.table), Item: av}},
		},
	})

	var canceled *types.TransactionCanceledException
	switch {
	case err == nil:
	case errors.As(err, &canceled):
		c.logger.DebugContext(ctx, "dropping stale cache write", "menu_id", menuID, "query", query)
	default:
		c.logger.WarnContext(ctx, "error writing cache", "menu_id", menuID, "query", query, "error", err)
	}
}

// InvalidateMenu advances the menu's generation, then deletes every other
// row under the menu's partition key
func (c *DynamoDBCache) InvalidateMenu(ctx context.Context, menuID string) error {
	_, err := c.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(c.table),
		Key:                      c.key(menuID, generationQuery),
		UpdateExpression:         aws.String("ADD #g :one"),
		ExpressionAttributeNames: map[string]string{"#g": attrGeneration},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})
	if err != nil {
		return fmt.Errorf("error advancing cache generation of menu %s: %w", menuID, err)
	}

	paginator := dynamodb.NewQueryPaginator(c.client, &dynamodb.QueryInput{
		TableName:              aws.String(c.table),
		KeyConditionExpression: aws.String("#m = :m"),
		ProjectionExpression:   aws.String("#m, #q"),
		ExpressionAttributeNames: map[string]string{
			"#m": attrMenuID,
			"#q": attrQuery,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":m": &types.AttributeValueMemberS{Value: menuID},
		},
	})

	deleted := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("error listing cache entries of menu %s: %w", menuID, err)
		}
		for _, raw := range page.Items {
			q, ok := raw[attrQuery].(*types.AttributeValueMemberS)
			if !ok || q.Value == generationQuery {
				continue
			}
			if _, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(c.table),
				Key:       c.key(menuID, q.Value),
			}); err != nil {
				return fmt.Errorf("error deleting cache entry %s: %w", q.Value, err)
			}
			deleted++
		}
	}

	c.logger.DebugContext(ctx, "menu cache invalidated", "menu_id", menuID, "entries", deleted)
	return nil
}

// SetTTL sets the cache time-to-live duration
func (c *DynamoDBCache) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
}
