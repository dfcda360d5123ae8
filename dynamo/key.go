package dynamo

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/r-moore/lucia-adapter-dynamodb/internal/keys"
)

// GetKey fetches one key by id. A missing id returns (nil, nil).
func (a *Adapter) GetKey(ctx context.Context, keyID string) (*Key, error) {
	item, err := a.getItem(ctx, keys.KeyPartition, keys.KeySK(keyID), keyProjection, nil)
	if err != nil {
		return nil, a.fail(err, "key", "get", keyID)
	}
	if item == nil {
		return nil, nil
	}
	key, err := unmarshalKey(item)
	if err != nil {
		return nil, a.fail(err, "key", "get", keyID)
	}
	return &key, nil
}

// GetUserKeys returns every key owned by userID, via the owner index. A
// user with no keys yields an empty slice.
func (a *Adapter) GetUserKeys(ctx context.Context, userID string) ([]Key, error) {
	items, err := a.queryOwned(ctx, userID, keys.KeyPrefix, keyProjection, nil)
	if err != nil {
		return nil, a.fail(err, "key", "get_by_user", userID)
	}
	userKeys := make([]Key, 0, len(items))
	for _, item := range items {
		key, err := unmarshalKey(item)
		if err != nil {
			return nil, a.fail(err, "key", "get_by_user", userID)
		}
		userKeys = append(userKeys, key)
	}
	return userKeys, nil
}

// SetKey writes a key record. Key ids are natural keys, so an existing id
// refuses the write with ErrDuplicateKey regardless of owner.
func (a *Adapter) SetKey(ctx context.Context, key Key) error {
	item, err := attributevalue.MarshalMap(newKeyRow(key))
	if err != nil {
		return a.fail(err, "key", "set", key.ID)
	}
	_, err = a.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(a.config.TableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			a.logger.Warn().Err(err).
				Str("entity", "key").
				Str("op", "set").
				Str("id", key.ID).
				Msg("key id already exists")
			return ErrDuplicateKey
		}
		return a.fail(err, "key", "set", key.ID)
	}
	return nil
}

// UpdateKey rewrites the stored password hash of an existing key. A nil
// hash clears it to NULL, turning the key passwordless. A missing key is
// not distinguished from any other failure; both surface as ErrUnknown.
func (a *Adapter) UpdateKey(ctx context.Context, keyID string, update KeyUpdate) error {
	err := a.updateRow(ctx, keys.KeyPartition, keys.KeySK(keyID), nil,
		map[string]types.AttributeValue{":hash": hashedPasswordValue(update.HashedPassword)},
		[]string{"hashed_password = :hash"},
	)
	if err != nil {
		return a.fail(err, "key", "update", keyID)
	}
	return nil
}

// DeleteKey removes a key record. Deleting a missing id is a no-op success.
func (a *Adapter) DeleteKey(ctx context.Context, keyID string) error {
	_, err := a.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(a.config.TableName),
		Key:       tableKey(keys.KeyPartition, keys.KeySK(keyID)),
	})
	if err != nil {
		return a.fail(err, "key", "delete", keyID)
	}
	return nil
}

// DeleteUserKeys removes every key owned by userID. A user with no keys is
// a no-op success. The batch is not atomic: some rows may be deleted even
// when the call returns an error.
func (a *Adapter) DeleteUserKeys(ctx context.Context, userID string) error {
	items, err := a.queryOwned(ctx, userID, keys.KeyPrefix, idProjection, nil)
	if err != nil {
		return a.fail(err, "key", "delete_by_user", userID)
	}
	keyList := ownedTableKeys(items, keys.KeyPartition, keys.KeySK)
	if len(keyList) == 0 {
		return nil
	}
	if err := a.batchDelete(ctx, keyList, "key"); err != nil {
		return a.fail(err, "key", "delete_by_user", userID)
	}
	return nil
}
