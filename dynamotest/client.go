// Package dynamotest provides an in-memory stand-in for the DynamoDB
// client surface consumed by the dynamo package.
//
// The fake stores rows per table and evaluates the expression forms this
// module actually emits: existence guards and owner-equality conditions,
// partition-equality plus sort-prefix key conditions, SET-only updates and
// comma-separated projections. Anything outside that subset returns an
// error rather than guessing. It is not a general DynamoDB emulator.
package dynamotest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/r-moore/lucia-adapter-dynamodb/dynamo"
)

var _ dynamo.Client = (*Client)(nil)

// Client is an in-memory fake of the adapter's DynamoDB surface. The zero
// value is not usable; construct with New. Safe for concurrent use.
type Client struct {
	mu     sync.Mutex
	tables map[string]map[itemKey]map[string]types.AttributeValue

	// Per-operation fault injection. A non-nil error is returned verbatim
	// by the matching call before any state changes.
	GetItemErr            error
	PutItemErr            error
	UpdateItemErr         error
	DeleteItemErr         error
	QueryErr              error
	BatchWriteItemErr     error
	TransactWriteItemsErr error

	// UnprocessedDeletes makes every BatchWriteItem call skip that many
	// trailing delete requests and echo them back as unprocessed.
	UnprocessedDeletes int
}

// itemKey is the base table composite key.
type itemKey struct {
	pk string
	sk string
}

// New returns an empty fake. Tables spring into existence on first write;
// the key schema is the adapter's fixed layout (PK/SK, GSI1PK/GSI1SK).
func New() *Client {
	return &Client{
		tables: map[string]map[itemKey]map[string]types.AttributeValue{},
	}
}

// Len reports how many rows a table currently holds.
func (c *Client) Len(table string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tables[table])
}

// Item returns a copy of the raw stored row, bypassing projections. Tests
// use it to assert the storage shape that never reaches adapter callers.
func (c *Client) Item(table, pk, sk string) (map[string]types.AttributeValue, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.tables[table][itemKey{pk: pk, sk: sk}]
	if !ok {
		return nil, false
	}
	return copyItem(item), true
}

func (c *Client) table(name string) map[itemKey]map[string]types.AttributeValue {
	t, ok := c.tables[name]
	if !ok {
		t = map[itemKey]map[string]types.AttributeValue{}
		c.tables[name] = t
	}
	return t
}

func keyOf(attrs map[string]types.AttributeValue) (itemKey, error) {
	pk, ok := attrs[dynamo.AttrPK].(*types.AttributeValueMemberS)
	if !ok {
		return itemKey{}, fmt.Errorf("dynamotest: item has no string %s attribute", dynamo.AttrPK)
	}
	sk, ok := attrs[dynamo.AttrSK].(*types.AttributeValueMemberS)
	if !ok {
		return itemKey{}, fmt.Errorf("dynamotest: item has no string %s attribute", dynamo.AttrSK)
	}
	return itemKey{pk: pk.Value, sk: sk.Value}, nil
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{
		Message: aws.String("The conditional request failed"),
	}
}

// GetItem returns the projected row, or an empty output when absent.
func (c *Client) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.GetItemErr != nil {
		return nil, c.GetItemErr
	}

	ik, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := c.table(aws.ToString(params.TableName))[ik]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	projected, err := project(item, params.ProjectionExpression, params.ExpressionAttributeNames)
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: projected}, nil
}

// PutItem stores the row after checking any condition against the current
// row state.
func (c *Client) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.PutItemErr != nil {
		return nil, c.PutItemErr
	}

	table := c.table(aws.ToString(params.TableName))
	ik, err := keyOf(params.Item)
	if err != nil {
		return nil, err
	}
	if params.ConditionExpression != nil {
		ok, err := evalCondition(aws.ToString(params.ConditionExpression), table[ik], params.ExpressionAttributeNames, params.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, conditionFailed()
		}
	}
	table[ik] = copyItem(params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

// UpdateItem applies a SET expression to the row. Without a condition a
// missing row is upserted from its key, matching the real service.
func (c *Client) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.UpdateItemErr != nil {
		return nil, c.UpdateItemErr
	}

	table := c.table(aws.ToString(params.TableName))
	ik, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	existing := table[ik]
	if params.ConditionExpression != nil {
		ok, err := evalCondition(aws.ToString(params.ConditionExpression), existing, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, conditionFailed()
		}
	}

	updated := copyItem(existing)
	if existing == nil {
		for k, v := range params.Key {
			updated[k] = v
		}
	}
	if err := applyUpdate(aws.ToString(params.UpdateExpression), updated, params.ExpressionAttributeNames, params.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	table[ik] = updated
	return &dynamodb.UpdateItemOutput{}, nil
}

// DeleteItem removes the row; deleting an absent row succeeds.
func (c *Client) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.DeleteItemErr != nil {
		return nil, c.DeleteItemErr
	}

	table := c.table(aws.ToString(params.TableName))
	ik, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	if params.ConditionExpression != nil {
		ok, err := evalCondition(aws.ToString(params.ConditionExpression), table[ik], params.ExpressionAttributeNames, params.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, conditionFailed()
		}
	}
	delete(table, ik)
	return &dynamodb.DeleteItemOutput{}, nil
}

// Query evaluates the key condition against every row of the table,
// emulating a sparse index: rows missing the condition's attributes never
// match. Results are ordered by their GSI1SK value like the real index.
func (c *Client) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.QueryErr != nil {
		return nil, c.QueryErr
	}
	if params.IndexName == nil {
		return nil, fmt.Errorf("dynamotest: only index queries are supported")
	}

	var matches []map[string]types.AttributeValue
	for _, item := range c.table(aws.ToString(params.TableName)) {
		ok, err := evalCondition(aws.ToString(params.KeyConditionExpression), item, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if ok {
			matches = append(matches, item)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return stringAttr(matches[i], dynamo.AttrGSI1SK) < stringAttr(matches[j], dynamo.AttrGSI1SK)
	})

	items := make([]map[string]types.AttributeValue, 0, len(matches))
	for _, match := range matches {
		projected, err := project(match, params.ProjectionExpression, params.ExpressionAttributeNames)
		if err != nil {
			return nil, err
		}
		items = append(items, projected)
	}
	return &dynamodb.QueryOutput{Items: items, Count: int32(len(items))}, nil
}

// BatchWriteItem executes delete requests. UnprocessedDeletes trailing
// requests per call are skipped and echoed back, so callers can exercise
// their partial-completion handling.
func (c *Client) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.BatchWriteItemErr != nil {
		return nil, c.BatchWriteItemErr
	}

	unprocessed := map[string][]types.WriteRequest{}
	for tableName, requests := range params.RequestItems {
		table := c.table(tableName)
		for i, req := range requests {
			if req.DeleteRequest == nil {
				return nil, fmt.Errorf("dynamotest: only delete requests are supported")
			}
			if c.UnprocessedDeletes > 0 && i >= len(requests)-c.UnprocessedDeletes {
				unprocessed[tableName] = append(unprocessed[tableName], req)
				continue
			}
			ik, err := keyOf(req.DeleteRequest.Key)
			if err != nil {
				return nil, err
			}
			delete(table, ik)
		}
	}
	return &dynamodb.BatchWriteItemOutput{UnprocessedItems: unprocessed}, nil
}

// TransactWriteItems applies all puts or none. Every condition is checked
// against the pre-transaction state first; any failure cancels the whole
// call with per-item cancellation reasons, matching the real service.
func (c *Client) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.TransactWriteItemsErr != nil {
		return nil, c.TransactWriteItemsErr
	}

	reasons := make([]types.CancellationReason, len(params.TransactItems))
	cancelled := false
	for i, item := range params.TransactItems {
		reasons[i] = types.CancellationReason{Code: aws.String("None")}
		if item.Put == nil {
			return nil, fmt.Errorf("dynamotest: only transactional puts are supported")
		}
		if item.Put.ConditionExpression == nil {
			continue
		}
		table := c.table(aws.ToString(item.Put.TableName))
		ik, err := keyOf(item.Put.Item)
		if err != nil {
			return nil, err
		}
		ok, err := evalCondition(aws.ToString(item.Put.ConditionExpression), table[ik], item.Put.ExpressionAttributeNames, item.Put.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if !ok {
			reasons[i] = types.CancellationReason{
				Code:    aws.String("ConditionalCheckFailed"),
				Message: aws.String("The conditional request failed"),
			}
			cancelled = true
		}
	}
	if cancelled {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}

	for _, item := range params.TransactItems {
		table := c.table(aws.ToString(item.Put.TableName))
		ik, err := keyOf(item.Put.Item)
		if err != nil {
			return nil, err
		}
		table[ik] = copyItem(item.Put.Item)
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}
