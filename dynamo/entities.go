package dynamo

import (
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/r-moore/lucia-adapter-dynamodb/internal/keys"
)

// Table attribute names. PK and SK form the base table key; GSI1PK and
// GSI1SK form the owner index key. Use these when creating the table.
const (
	AttrPK     = "PK"
	AttrSK     = "SK"
	AttrGSI1PK = "GSI1PK"
	AttrGSI1SK = "GSI1SK"
)

// User is an account record. Attributes is an opaque bag owned by the
// caller; the adapter stores and returns it without inspecting it.
type User struct {
	ID         string
	Attributes map[string]any
}

// Session is a login session belonging to one user. The expiry fields are
// unix millisecond timestamps stored as data; nothing in this package
// interprets or enforces them.
type Session struct {
	ID            string
	UserID        string
	ActiveExpires int64
	IdleExpires   int64
}

// Key is a sign-in method (for example "email:jane@example.com") belonging
// to one user. HashedPassword is nil for passwordless methods.
type Key struct {
	ID             string
	UserID         string
	HashedPassword *string
}

// UserUpdate describes a partial user update. The attribute bag is replaced
// wholesale; an empty bag makes UpdateUser a no-op.
type UserUpdate struct {
	Attributes map[string]any
}

// SessionUpdate describes a partial session update. Nil fields are left
// untouched; with both nil, UpdateSession is a no-op.
type SessionUpdate struct {
	ActiveExpires *int64
	IdleExpires   *int64
}

// KeyUpdate describes a key update. HashedPassword is always written; nil
// clears the stored hash to NULL.
type KeyUpdate struct {
	HashedPassword *string
}

// Entity type tags stored on every row. Internal bookkeeping only, never
// surfaced to callers.
const (
	typeUser    = "user"
	typeSession = "session"
	typeKey     = "key"
)

// Per-kind read projections. Key attributes and the type tag never leave
// the adapter. "attributes" is a DynamoDB reserved word, so the user
// projection reaches it through an alias.
const (
	userProjection    = "id, #attrs"
	sessionProjection = "id, user_id, active_expires, idle_expires"
	keyProjection     = "id, user_id, hashed_password"
	idProjection      = "id"
)

var userProjectionNames = map[string]string{"#attrs": "attributes"}

type userRow struct {
	PK         string         `dynamodbav:"PK"`
	SK         string         `dynamodbav:"SK"`
	EntityType string         `dynamodbav:"entity_type"`
	ID         string         `dynamodbav:"id"`
	Attributes map[string]any `dynamodbav:"attributes"`
}

type sessionRow struct {
	PK            string `dynamodbav:"PK"`
	SK            string `dynamodbav:"SK"`
	GSI1PK        string `dynamodbav:"GSI1PK"`
	GSI1SK        string `dynamodbav:"GSI1SK"`
	EntityType    string `dynamodbav:"entity_type"`
	ID            string `dynamodbav:"id"`
	UserID        string `dynamodbav:"user_id"`
	ActiveExpires int64  `dynamodbav:"active_expires"`
	IdleExpires   int64  `dynamodbav:"idle_expires"`
}

type keyRow struct {
	PK             string  `dynamodbav:"PK"`
	SK             string  `dynamodbav:"SK"`
	GSI1PK         string  `dynamodbav:"GSI1PK"`
	GSI1SK         string  `dynamodbav:"GSI1SK"`
	EntityType     string  `dynamodbav:"entity_type"`
	ID             string  `dynamodbav:"id"`
	UserID         string  `dynamodbav:"user_id"`
	HashedPassword *string `dynamodbav:"hashed_password"`
}

func newUserRow(user User) userRow {
	attrs := user.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	return userRow{
		PK:         keys.UserPartition,
		SK:         keys.UserSK(user.ID),
		EntityType: typeUser,
		ID:         user.ID,
		Attributes: attrs,
	}
}

func newSessionRow(session Session) sessionRow {
	return sessionRow{
		PK:            keys.SessionPartition,
		SK:            keys.SessionSK(session.ID),
		GSI1PK:        keys.OwnerPK(session.UserID),
		GSI1SK:        keys.SessionSK(session.ID),
		EntityType:    typeSession,
		ID:            session.ID,
		UserID:        session.UserID,
		ActiveExpires: session.ActiveExpires,
		IdleExpires:   session.IdleExpires,
	}
}

func newKeyRow(key Key) keyRow {
	return keyRow{
		PK:             keys.KeyPartition,
		SK:             keys.KeySK(key.ID),
		GSI1PK:         keys.OwnerPK(key.UserID),
		GSI1SK:         keys.KeySK(key.ID),
		EntityType:     typeKey,
		ID:             key.ID,
		UserID:         key.UserID,
		HashedPassword: key.HashedPassword,
	}
}

func unmarshalUser(item map[string]types.AttributeValue) (User, error) {
	var row userRow
	if err := attributevalue.UnmarshalMap(item, &row); err != nil {
		return User{}, err
	}
	if row.Attributes == nil {
		row.Attributes = map[string]any{}
	}
	return User{ID: row.ID, Attributes: row.Attributes}, nil
}

func unmarshalSession(item map[string]types.AttributeValue) (Session, error) {
	var row sessionRow
	if err := attributevalue.UnmarshalMap(item, &row); err != nil {
		return Session{}, err
	}
	return Session{
		ID:            row.ID,
		UserID:        row.UserID,
		ActiveExpires: row.ActiveExpires,
		IdleExpires:   row.IdleExpires,
	}, nil
}

func unmarshalKey(item map[string]types.AttributeValue) (Key, error) {
	var row keyRow
	if err := attributevalue.UnmarshalMap(item, &row); err != nil {
		return Key{}, err
	}
	return Key{
		ID:             row.ID,
		UserID:         row.UserID,
		HashedPassword: row.HashedPassword,
	}, nil
}

// hashedPasswordValue maps a nullable hash to its stored representation.
func hashedPasswordValue(hash *string) types.AttributeValue {
	if hash == nil {
		return &types.AttributeValueMemberNULL{Value: true}
	}
	return &types.AttributeValueMemberS{Value: *hash}
}
