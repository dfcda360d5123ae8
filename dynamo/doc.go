// Package dynamo persists the users, sessions and keys of a Lucia-style
// authentication library in a single DynamoDB table.
//
// All three record kinds share one table, distinguished by a partition-key
// literal; record identity lives in the sort key, and one global secondary
// index provides the reverse lookup from a user to their sessions and keys.
//
// # Table Layout
//
//	Kind     PK         SK             GSI1PK          GSI1SK
//	User     "USER"     USER#{id}      -               -
//	Session  "SESSION"  SESSION#{id}   USER#{user_id}  SESSION#{id}
//	Key      "KEY"      KEY#{id}       USER#{user_id}  KEY#{id}
//
// The base table is keyed on (PK, SK). The owner index ("GSI1" by default)
// is keyed on (GSI1PK, GSI1SK); only session and key rows carry those
// attributes, so user rows never appear in it. Create the table with the
// [AttrPK], [AttrSK], [AttrGSI1PK] and [AttrGSI1SK] attribute names.
//
// # Consistency
//
// [Adapter.CreateUserWithKey] is the only multi-item atomic write: it puts
// the user row and the initial key row in one transaction, so a key can
// never exist without its user having been written in the same unit. Bulk
// deletes are best-effort batches, and deleting a user does not cascade to
// the user's sessions or keys. The stream package ships an optional
// cleanup handler for deployments that want orphaned rows removed.
//
// # Errors
//
// Point lookups report a missing record as (nil, nil) and reverse lookups
// as an empty slice; storage failures on reads are returned as errors, not
// folded into absence. Failed writes map to a small taxonomy:
//
//   - [ErrDuplicateKey] - key id already exists
//   - [ErrInvalidOwner] - session id already owned by another user
//   - [ErrUnknown] - any other storage failure, cause kept on the chain
package dynamo
