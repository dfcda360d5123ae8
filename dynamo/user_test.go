package dynamo_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/r-moore/lucia-adapter-dynamodb/dynamo"
)

func TestSetUser_RoundTrip(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	user := dynamo.User{
		ID: "u1",
		Attributes: map[string]any{
			"username":    "jane",
			"admin":       true,
			"login_count": float64(3),
		},
	}

	require.NoError(t, f.adapter.SetUser(ctx, user))

	got, err := f.adapter.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, user, *got)
}

func TestGetUser_Missing(t *testing.T) {
	f := setupTestFixture(t)

	got, err := f.adapter.GetUser(context.Background(), "nobody")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSetUser_ReplacesExisting(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.adapter.SetUser(ctx, dynamo.User{ID: "u1", Attributes: map[string]any{"username": "old"}}))
	require.NoError(t, f.adapter.SetUser(ctx, dynamo.User{ID: "u1", Attributes: map[string]any{"username": "new"}}))

	got, err := f.adapter.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "new", got.Attributes["username"])
	require.Equal(t, 1, f.client.Len("lucia_auth"))
}

func TestSetUser_StoredRowShape(t *testing.T) {
	f := setupTestFixture(t)

	require.NoError(t, f.adapter.SetUser(context.Background(), dynamo.User{ID: "u1"}))

	raw, ok := f.client.Item("lucia_auth", "USER", "USER#u1")
	require.True(t, ok)
	require.Contains(t, raw, "entity_type")
	require.NotContains(t, raw, "GSI1PK", "user rows must stay out of the owner index")
}

func TestUpdateUser_ReplacesAttributes(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.adapter.SetUser(ctx, dynamo.User{ID: "u1", Attributes: map[string]any{"username": "jane", "admin": true}}))
	require.NoError(t, f.adapter.UpdateUser(ctx, "u1", dynamo.UserUpdate{Attributes: map[string]any{"username": "janet"}}))

	got, err := f.adapter.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, map[string]any{"username": "janet"}, got.Attributes)
}

func TestUpdateUser_EmptyUpdateIsNoop(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.adapter.UpdateUser(ctx, "missing", dynamo.UserUpdate{}))

	got, err := f.adapter.GetUser(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, got, "empty update must not upsert")
}

func TestUpdateUser_MissingUser(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	err := f.adapter.UpdateUser(ctx, "missing", dynamo.UserUpdate{Attributes: map[string]any{"username": "x"}})
	require.ErrorIs(t, err, dynamo.ErrUnknown)

	got, err := f.adapter.GetUser(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, got, "failed update must not create a row")
}

func TestDeleteUser_Idempotent(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.adapter.DeleteUser(ctx, "nobody"))

	require.NoError(t, f.adapter.SetUser(ctx, dynamo.User{ID: "u1"}))
	require.NoError(t, f.adapter.DeleteUser(ctx, "u1"))
	require.NoError(t, f.adapter.DeleteUser(ctx, "u1"))

	got, err := f.adapter.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestDeleteUser_LeavesDependents(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.adapter.SetUser(ctx, dynamo.User{ID: "u1"}))
	require.NoError(t, f.adapter.SetSession(ctx, dynamo.Session{ID: "s1", UserID: "u1", ActiveExpires: 100, IdleExpires: 200}))
	require.NoError(t, f.adapter.SetKey(ctx, dynamo.Key{ID: "email:jane@example.com", UserID: "u1"}))

	require.NoError(t, f.adapter.DeleteUser(ctx, "u1"))

	session, err := f.adapter.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, session, "deleting a user must not cascade to sessions")

	key, err := f.adapter.GetKey(ctx, "email:jane@example.com")
	require.NoError(t, err)
	require.NotNil(t, key, "deleting a user must not cascade to keys")
}

func TestGetUser_StoreFailure(t *testing.T) {
	f := setupTestFixture(t)
	f.client.GetItemErr = errors.New("throttled")

	_, err := f.adapter.GetUser(context.Background(), "u1")
	require.ErrorIs(t, err, dynamo.ErrUnknown)
}
