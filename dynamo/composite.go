package dynamo

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// CreateUserWithKey writes a user row and, when key is non-nil, the user's
// first key row as one all-or-nothing transaction. A user without an id is
// a silent no-op. When the key id already exists the whole transaction is
// cancelled with ErrDuplicateKey and neither row is persisted.
func (a *Adapter) CreateUserWithKey(ctx context.Context, user User, key *Key) error {
	if user.ID == "" {
		return nil
	}

	userItem, err := attributevalue.MarshalMap(newUserRow(user))
	if err != nil {
		return a.fail(err, "user", "create_user_with_key", user.ID)
	}

	items := []types.TransactWriteItem{
		{
			Put: &types.Put{
				TableName: aws.String(a.config.TableName),
				Item:      userItem,
			},
		},
	}

	// Track the key put's position for cancellation-reason mapping
	keyPutIndex := -1
	if key != nil {
		keyItem, err := attributevalue.MarshalMap(newKeyRow(*key))
		if err != nil {
			return a.fail(err, "key", "create_user_with_key", key.ID)
		}
		keyPutIndex = len(items)
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(a.config.TableName),
				Item:                keyItem,
				ConditionExpression: aws.String("attribute_not_exists(PK)"),
			},
		})
	}

	_, err = a.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		mapped := mapCreateTransactionError(err, keyPutIndex)
		if errors.Is(mapped, ErrDuplicateKey) {
			a.logger.Warn().Err(err).
				Str("entity", "key").
				Str("op", "create_user_with_key").
				Str("id", key.ID).
				Msg("key id already exists")
			return mapped
		}
		a.logger.Error().Err(err).
			Str("entity", "user").
			Str("op", "create_user_with_key").
			Str("id", user.ID).
			Msg("storage operation failed")
		return mapped
	}
	return nil
}

// GetSessionAndUser fetches a session and the user owning it in two
// dependent reads. Absence anywhere along the way (no such session, session
// without an owner id, owner row gone) collapses to (nil, nil, nil); an
// orphaned session is not distinguished from a missing one. The reads are
// not atomic, so the user may change between them.
func (a *Adapter) GetSessionAndUser(ctx context.Context, sessionID string) (*Session, *User, error) {
	session, err := a.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session == nil || session.UserID == "" {
		return nil, nil, nil
	}
	user, err := a.GetUser(ctx, session.UserID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, nil
	}
	return session, user, nil
}

// mapCreateTransactionError translates a cancelled create transaction.
// keyPutIndex is the position of the key put in the transaction, -1 when
// no key was supplied. Only a conditional failure at that position means a
// duplicate key; everything else is an unknown failure.
func mapCreateTransactionError(err error, keyPutIndex int) error {
	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" && i == keyPutIndex {
				return ErrDuplicateKey
			}
		}
	}
	return wrapUnknown(err)
}
