package dynamo

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateKey is returned when a key write collides with an existing
	// key id, standalone or inside CreateUserWithKey.
	ErrDuplicateKey = errors.New("dynamo: key id already exists")

	// ErrInvalidOwner is returned when a session write names a session id
	// that already belongs to a different user.
	ErrInvalidOwner = errors.New("dynamo: session id owned by another user")

	// ErrUnknown classifies every storage failure that is not one of the
	// recognized domain errors above. The underlying cause stays on the
	// chain, so errors.As still reaches the AWS error types.
	ErrUnknown = errors.New("dynamo: unknown storage error")
)

// wrapUnknown tags err with ErrUnknown while keeping the cause on the chain.
func wrapUnknown(err error) error {
	return fmt.Errorf("%w: %w", ErrUnknown, err)
}
