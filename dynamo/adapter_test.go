package dynamo_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/r-moore/lucia-adapter-dynamodb/dynamo"
	"github.com/r-moore/lucia-adapter-dynamodb/dynamotest"
)

type testFixture struct {
	client  *dynamotest.Client
	adapter *dynamo.Adapter
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	client := dynamotest.New()
	adapter := dynamo.New(client, dynamo.DefaultConfig(), dynamo.WithLogger(zerolog.Nop()))
	return &testFixture{client: client, adapter: adapter}
}

func stringAttr(t *testing.T, item map[string]types.AttributeValue, name string) string {
	t.Helper()
	s, ok := item[name].(*types.AttributeValueMemberS)
	require.True(t, ok, "attribute %s missing or not a string", name)
	return s.Value
}

func TestDefaultConfig(t *testing.T) {
	cfg := dynamo.DefaultConfig()

	require.Equal(t, "lucia_auth", cfg.TableName)
	require.Equal(t, "GSI1", cfg.IndexName)
}

func TestNew_EmptyConfigUsesDefaults(t *testing.T) {
	client := dynamotest.New()
	adapter := dynamo.New(client, dynamo.Config{}, dynamo.WithLogger(zerolog.Nop()))

	require.NoError(t, adapter.SetUser(context.Background(), dynamo.User{ID: "u1"}))
	require.Equal(t, 1, client.Len("lucia_auth"))
}

func TestWithLogger_FailuresCarryOperationContext(t *testing.T) {
	var buf bytes.Buffer
	client := dynamotest.New()
	client.GetItemErr = errors.New("throttled")
	adapter := dynamo.New(client, dynamo.DefaultConfig(), dynamo.WithLogger(zerolog.New(&buf)))

	_, err := adapter.GetSession(context.Background(), "s1")
	require.Error(t, err)

	logged := buf.String()
	require.Contains(t, logged, `"entity":"session"`)
	require.Contains(t, logged, `"op":"get"`)
	require.Contains(t, logged, `"id":"s1"`)
	require.Contains(t, logged, "throttled")
}
