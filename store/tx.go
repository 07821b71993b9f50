package store

import (
	"context"
	"errors"
	"fmt"
)

// Tx assembles a conditional multi-row transaction. Each op carries the
// error it stands for when its predicate fails, so a cancellation maps by
// ordinal to a typed domain error.
type Tx struct {
	ops  []Op
	errs []error
}

// NewTx returns an empty transaction.
func NewTx() *Tx {
	return &Tx{}
}

func (t *Tx) push(op Op, onFail error) *Tx {
	t.ops = append(t.ops, op)
	t.errs = append(t.errs, onFail)
	return t
}

// Add writes row if its key is free.
func (t *Tx) Add(row Row, onFail error) *Tx {
	return t.push(AddOp(row), onFail)
}

// Put writes row, subject to cond when non-nil.
func (t *Tx) Put(row Row, cond Cond, onFail error) *Tx {
	return t.push(PutOp(row, cond), onFail)
}

// Update mutates an existing row that satisfies cond.
func (t *Tx) Update(key Key, upd *Update, cond Cond, onFail error) *Tx {
	return t.push(UpdateOp(key, upd, cond), onFail)
}

// Increment adds one to a counter of an existing row.
func (t *Tx) Increment(key Key, attr string, onFail error) *Tx {
	return t.Update(key, NewUpdate().Add(attr, 1), nil, onFail)
}

// Decrement subtracts one from a counter that is above zero.
func (t *Tx) Decrement(key Key, attr string, onFail error) *Tx {
	return t.Update(key, NewUpdate().Add(attr, -1), Gt(attr, 0), onFail)
}

// Delete removes the row at key, subject to cond when non-nil.
func (t *Tx) Delete(key Key, cond Cond, onFail error) *Tx {
	return t.push(DeleteOp(key, cond), onFail)
}

// Check asserts cond on the row at key.
func (t *Tx) Check(key Key, cond Cond, onFail error) *Tx {
	return t.push(CheckOp(key, cond), onFail)
}

// Len returns the number of ops.
func (t *Tx) Len() int {
	return len(t.ops)
}

// Ops returns the ops in order.
func (t *Tx) Ops() []Op {
	return t.ops
}

// Commit applies the transaction. A failed predicate is returned as the
// error registered for the first failing op.
func (t *Tx) Commit(ctx context.Context, s KeyedStore) error {
	if len(t.ops) == 0 {
		return nil
	}
	return MapTxError(s.Transact(ctx, t.ops), t.errs)
}

// MapTxError maps a cancelled transaction to expected[i] for the first op i
// whose predicate failed. Other errors pass through.
func MapTxError(err error, expected []error) error {
	if err == nil {
		return nil
	}
	var txErr *TxCanceledError
	if errors.As(err, &txErr) {
		if i := txErr.FailedIndex(); i >= 0 && i < len(expected) && expected[i] != nil {
			return expected[i]
		}
		return fmt.Errorf("%w: %w", ErrPreconditionFailed, err)
	}
	return err
}
