package dynamo

import (
	"context"
	"errors"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/r-moore/lucia-adapter-dynamodb/internal/keys"
)

// GetSession fetches one session by id. A missing id returns (nil, nil).
func (a *Adapter) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	item, err := a.getItem(ctx, keys.SessionPartition, keys.SessionSK(sessionID), sessionProjection, nil)
	if err != nil {
		return nil, a.fail(err, "session", "get", sessionID)
	}
	if item == nil {
		return nil, nil
	}
	session, err := unmarshalSession(item)
	if err != nil {
		return nil, a.fail(err, "session", "get", sessionID)
	}
	return &session, nil
}

// GetUserSessions returns every session owned by userID, via the owner
// index. A user with no sessions yields an empty slice.
func (a *Adapter) GetUserSessions(ctx context.Context, userID string) ([]Session, error) {
	items, err := a.queryOwned(ctx, userID, keys.SessionPrefix, sessionProjection, nil)
	if err != nil {
		return nil, a.fail(err, "session", "get_by_user", userID)
	}
	sessions := make([]Session, 0, len(items))
	for _, item := range items {
		session, err := unmarshalSession(item)
		if err != nil {
			return nil, a.fail(err, "session", "get_by_user", userID)
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// SetSession writes a session record. The write is refused with
// ErrInvalidOwner when the session id already exists under a different
// user; re-setting a session with its current owner replaces the record.
func (a *Adapter) SetSession(ctx context.Context, session Session) error {
	item, err := attributevalue.MarshalMap(newSessionRow(session))
	if err != nil {
		return a.fail(err, "session", "set", session.ID)
	}
	_, err = a.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(a.config.TableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) OR user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: session.UserID},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			a.logger.Warn().Err(err).
				Str("entity", "session").
				Str("op", "set").
				Str("id", session.ID).
				Str("user_id", session.UserID).
				Msg("session id already claimed by another user")
			return ErrInvalidOwner
		}
		return a.fail(err, "session", "set", session.ID)
	}
	return nil
}

// UpdateSession rewrites the expiry fields of an existing session. Nil
// fields are left untouched; with both nil the call is a no-op success.
// A missing session is not distinguished from any other failure; both
// surface as ErrUnknown.
func (a *Adapter) UpdateSession(ctx context.Context, sessionID string, update SessionUpdate) error {
	values := map[string]types.AttributeValue{}
	var clauses []string

	if update.ActiveExpires != nil {
		values[":active"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(*update.ActiveExpires, 10)}
		clauses = append(clauses, "active_expires = :active")
	}
	if update.IdleExpires != nil {
		values[":idle"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(*update.IdleExpires, 10)}
		clauses = append(clauses, "idle_expires = :idle")
	}
	if len(clauses) == 0 {
		return nil
	}

	err := a.updateRow(ctx, keys.SessionPartition, keys.SessionSK(sessionID), nil, values, clauses)
	if err != nil {
		return a.fail(err, "session", "update", sessionID)
	}
	return nil
}

// DeleteSession removes a session record. Deleting a missing id is a no-op
// success.
func (a *Adapter) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := a.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(a.config.TableName),
		Key:       tableKey(keys.SessionPartition, keys.SessionSK(sessionID)),
	})
	if err != nil {
		return a.fail(err, "session", "delete", sessionID)
	}
	return nil
}

// DeleteUserSessions removes every session owned by userID. A user with no
// sessions is a no-op success. The batch is not atomic: some rows may be
// deleted even when the call returns an error.
func (a *Adapter) DeleteUserSessions(ctx context.Context, userID string) error {
	items, err := a.queryOwned(ctx, userID, keys.SessionPrefix, idProjection, nil)
	if err != nil {
		return a.fail(err, "session", "delete_by_user", userID)
	}
	keyList := ownedTableKeys(items, keys.SessionPartition, keys.SessionSK)
	if len(keyList) == 0 {
		return nil
	}
	if err := a.batchDelete(ctx, keyList, "session"); err != nil {
		return a.fail(err, "session", "delete_by_user", userID)
	}
	return nil
}
