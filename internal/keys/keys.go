// Package keys builds the composite key strings for the single-table layout.
package keys

import (
	"fmt"
	"strings"
)

// Partition key literals. Each record kind occupies one partition of the
// base table; record identity lives entirely in the sort key.
const (
	UserPartition    = "USER"
	SessionPartition = "SESSION"
	KeyPartition     = "KEY"
)

// Sort key prefixes. Also used as begins_with arguments when querying the
// owner index, so they must match the builders below byte for byte.
const (
	UserPrefix    = "USER#"
	SessionPrefix = "SESSION#"
	KeyPrefix     = "KEY#"
)

// UserSK builds the sort key for a user record.
func UserSK(userID string) string {
	return fmt.Sprintf("%s%s", UserPrefix, userID)
}

// SessionSK builds the sort key for a session record.
func SessionSK(sessionID string) string {
	return fmt.Sprintf("%s%s", SessionPrefix, sessionID)
}

// KeySK builds the sort key for a key record.
func KeySK(keyID string) string {
	return fmt.Sprintf("%s%s", KeyPrefix, keyID)
}

// OwnerPK builds the owner-index partition key that groups every session
// and key belonging to one user.
func OwnerPK(userID string) string {
	return fmt.Sprintf("%s%s", UserPrefix, userID)
}

// Split separates a sort key into its kind literal and raw id. The cut
// happens at the first "#", so ids containing "#" survive intact. A sort
// key without a separator comes back as (sk, "").
func Split(sk string) (kind, id string) {
	kind, id, _ = strings.Cut(sk, "#")
	return kind, id
}
