package dynamo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/r-moore/lucia-adapter-dynamodb/internal/keys"
)

// GetUser fetches one user by id. A missing id returns (nil, nil).
func (a *Adapter) GetUser(ctx context.Context, userID string) (*User, error) {
	item, err := a.getItem(ctx, keys.UserPartition, keys.UserSK(userID), userProjection, userProjectionNames)
	if err != nil {
		return nil, a.fail(err, "user", "get", userID)
	}
	if item == nil {
		return nil, nil
	}
	user, err := unmarshalUser(item)
	if err != nil {
		return nil, a.fail(err, "user", "get", userID)
	}
	return &user, nil
}

// SetUser writes a user record, replacing any existing record with the
// same id. Uniqueness of fresh user ids is the caller's concern here; use
// CreateUserWithKey when the first key must be written atomically.
func (a *Adapter) SetUser(ctx context.Context, user User) error {
	item, err := attributevalue.MarshalMap(newUserRow(user))
	if err != nil {
		return a.fail(err, "user", "set", user.ID)
	}
	_, err = a.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(a.config.TableName),
		Item:      item,
	})
	if err != nil {
		return a.fail(err, "user", "set", user.ID)
	}
	return nil
}

// UpdateUser replaces the attribute bag of an existing user. An empty
// update is a no-op success. A missing user is not distinguished from any
// other failure; both surface as ErrUnknown.
func (a *Adapter) UpdateUser(ctx context.Context, userID string, update UserUpdate) error {
	if len(update.Attributes) == 0 {
		return nil
	}
	value, err := attributevalue.Marshal(update.Attributes)
	if err != nil {
		return a.fail(err, "user", "update", userID)
	}
	err = a.updateRow(ctx, keys.UserPartition, keys.UserSK(userID),
		map[string]string{"#attrs": "attributes"},
		map[string]types.AttributeValue{":attrs": value},
		[]string{"#attrs = :attrs"},
	)
	if err != nil {
		return a.fail(err, "user", "update", userID)
	}
	return nil
}

// DeleteUser removes a user record. Deleting a missing id is a no-op
// success. The user's sessions and keys are left in place; callers that
// want them gone use DeleteUserSessions and DeleteUserKeys, or deploy the
// stream cleanup handler.
func (a *Adapter) DeleteUser(ctx context.Context, userID string) error {
	_, err := a.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(a.config.TableName),
		Key:       tableKey(keys.UserPartition, keys.UserSK(userID)),
	})
	if err != nil {
		return a.fail(err, "user", "delete", userID)
	}
	return nil
}
