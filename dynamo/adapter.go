package dynamo

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/r-moore/lucia-adapter-dynamodb/internal/keys"
)

// Adapter implements the auth library's storage contract on a single
// DynamoDB table. It holds no mutable state and is safe for concurrent use.
type Adapter struct {
	client Client
	config Config
	logger zerolog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger overrides the logger used for storage failure diagnostics.
// The default is the global zerolog logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// New creates a new Adapter instance.
func New(client Client, config Config, opts ...Option) *Adapter {
	config.validate()
	a := &Adapter{
		client: client,
		config: config,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// fail logs a storage failure with its operation context and classifies it
// as ErrUnknown. The raw error is logged before translation.
func (a *Adapter) fail(err error, entity, op, id string) error {
	a.logger.Error().Err(err).
		Str("entity", entity).
		Str("op", op).
		Str("id", id).
		Msg("storage operation failed")
	return wrapUnknown(err)
}

// tableKey builds the base table key for one record.
func tableKey(partition, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		AttrPK: &types.AttributeValueMemberS{Value: partition},
		AttrSK: &types.AttributeValueMemberS{Value: sk},
	}
}

// getItem runs a projected point read. A missing row returns (nil, nil).
func (a *Adapter) getItem(ctx context.Context, partition, sk, projection string, names map[string]string) (map[string]types.AttributeValue, error) {
	result, err := a.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(a.config.TableName),
		Key:                      tableKey(partition, sk),
		ProjectionExpression:     aws.String(projection),
		ExpressionAttributeNames: names,
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, nil
	}
	return result.Item, nil
}

// queryOwned runs the reverse lookup on the owner index: partition equality
// on the owner, sort-key prefix selecting one record kind. Result sets are
// assumed bounded, so a single page is read and no cursor is followed.
func (a *Adapter) queryOwned(ctx context.Context, userID, prefix, projection string, names map[string]string) ([]map[string]types.AttributeValue, error) {
	result, err := a.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(a.config.TableName),
		IndexName:              aws.String(a.config.IndexName),
		KeyConditionExpression: aws.String("GSI1PK = :owner AND begins_with(GSI1SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner":  &types.AttributeValueMemberS{Value: keys.OwnerPK(userID)},
			":prefix": &types.AttributeValueMemberS{Value: prefix},
		},
		ProjectionExpression:     aws.String(projection),
		ExpressionAttributeNames: names,
	})
	if err != nil {
		return nil, err
	}
	return result.Items, nil
}

// updateRow applies SET clauses to an existing row. The attribute_exists
// guard stops a missing row from being upserted into a partial record.
func (a *Adapter) updateRow(ctx context.Context, partition, sk string, names map[string]string, values map[string]types.AttributeValue, setClauses []string) error {
	_, err := a.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(a.config.TableName),
		Key:                       tableKey(partition, sk),
		UpdateExpression:          aws.String("SET " + strings.Join(setClauses, ", ")),
		ConditionExpression:       aws.String("attribute_exists(PK)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	return err
}

// batchDeleteLimit is the DynamoDB cap on write requests per batch call.
const batchDeleteLimit = 25

// batchDelete removes the given keys with BatchWriteItem, chunked to the
// request cap. Batches are not atomic; unprocessed rows are logged and
// dropped, never retried.
func (a *Adapter) batchDelete(ctx context.Context, keyList []map[string]types.AttributeValue, entity string) error {
	for start := 0; start < len(keyList); start += batchDeleteLimit {
		end := start + batchDeleteLimit
		if end > len(keyList) {
			end = len(keyList)
		}

		requests := make([]types.WriteRequest, 0, end-start)
		for _, key := range keyList[start:end] {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: key},
			})
		}

		result, err := a.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				a.config.TableName: requests,
			},
		})
		if err != nil {
			return err
		}
		if unprocessed := len(result.UnprocessedItems[a.config.TableName]); unprocessed > 0 {
			a.logger.Warn().
				Str("entity", entity).
				Int("unprocessed", unprocessed).
				Msg("batch delete left unprocessed rows")
		}
	}
	return nil
}

// ownedTableKeys converts a projected owner-index page into base table keys
// for the given kind.
func ownedTableKeys(items []map[string]types.AttributeValue, partition string, sortKey func(string) string) []map[string]types.AttributeValue {
	keyList := make([]map[string]types.AttributeValue, 0, len(items))
	for _, item := range items {
		id, ok := item["id"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		keyList = append(keyList, tableKey(partition, sortKey(id.Value)))
	}
	return keyList
}
