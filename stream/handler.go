// Package stream provides a DynamoDB Streams handler that sweeps the
// sessions and keys owned by removed users.
package stream

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/r-moore/lucia-adapter-dynamodb/dynamo"
	"github.com/r-moore/lucia-adapter-dynamodb/internal/keys"
)

// Deleter is the subset of [dynamo.Adapter] the handler needs.
type Deleter interface {
	DeleteUserSessions(ctx context.Context, userID string) error
	DeleteUserKeys(ctx context.Context, userID string) error
}

// Handler reacts to user row removals by deleting the sessions and keys
// the user owned. Only record keys are inspected, so any stream view type
// works, including KEYS_ONLY.
type Handler struct {
	store  Deleter
	logger zerolog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger replaces the package-global default logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler creates a stream handler backed by store.
func NewHandler(store Deleter, opts ...Option) *Handler {
	h := &Handler{
		store:  store,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleUserRemoval processes DynamoDB stream events, sweeping sessions and
// keys whenever a user row is removed. It is designed to be used as an AWS
// Lambda handler.
func (h *Handler) HandleUserRemoval(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error().
				Err(err).
				Str("event_id", record.EventID).
				Msg("failed to process stream record")
			return err // Lambda retries, eventually DLQ
		}
	}
	return nil
}

// processRecord sweeps a single record. Removals of session and key rows
// come back through the stream but never match the user partition, so the
// sweep cannot feed itself.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	if record.EventName != "REMOVE" {
		return nil
	}

	if getStringAttr(record.Change.Keys, dynamo.AttrPK) != keys.UserPartition {
		return nil
	}
	kind, userID := keys.Split(getStringAttr(record.Change.Keys, dynamo.AttrSK))
	if kind != keys.UserPartition || userID == "" {
		return nil
	}

	h.logger.Info().
		Str("user_id", userID).
		Msg("sweeping rows of removed user")

	if err := h.store.DeleteUserSessions(ctx, userID); err != nil {
		return fmt.Errorf("delete sessions of %s: %w", userID, err)
	}
	if err := h.store.DeleteUserKeys(ctx, userID); err != nil {
		return fmt.Errorf("delete keys of %s: %w", userID, err)
	}
	return nil
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}
