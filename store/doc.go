// Package store provides the single-table keyed store behind every entity.
//
// Rows share one table and are addressed by a composite [Key] of
// partitionKey and sortKey. Six sparse secondary indexes (GSI-A1..A3,
// GSI-K1..K3) answer the listing queries; a row joins an index by carrying
// that index's key attributes. See [IndexAttrs].
//
// # Backends
//
// [Dynamo] talks to DynamoDB. [Memory] keeps rows in process and records
// every committed change so a reactor can drain it to a fixed point in tests
// and local runs.
//
// # Conditions
//
// Writes take a [Cond] built from [Exists], [Eq], [Gt], [And] and friends.
// [KeyedStore.Update] always requires the row to exist; a failed predicate
// surfaces as [ErrNotFound] when the row is missing and
// [ErrPreconditionFailed] otherwise.
//
// # Transactions
//
// [Tx] collects ops with the error each stands for:
//
//	err := store.NewTx().
//	    Add(followRow, ErrFollowExists).
//	    Check(blockKey, store.RowNotExists(), ErrBlocked).
//	    Commit(ctx, s)
//
// A cancelled transaction returns the error of the first failed op.
//
// # Errors
//
//   - [ErrNotFound] - conditional write on a missing row
//   - [ErrAlreadyExists] - add on a taken key
//   - [ErrPreconditionFailed] - predicate failed on an existing row
//   - [ErrCounterUnderflow] - guarded decrement at zero
package store
