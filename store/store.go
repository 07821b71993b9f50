package store

import (
	"context"
	"errors"
	"iter"
)

// KeyedStore is a row-oriented store over a single table of composite-keyed
// rows with secondary indexes.
type KeyedStore interface {
	// Get returns the row at key, or nil if it does not exist.
	Get(ctx context.Context, key Key, opts ...ReadOption) (Row, error)

	// Add writes row only if its key is free. Fails with ErrAlreadyExists.
	Add(ctx context.Context, row Row) error

	// Put writes row unconditionally, or subject to cond when non-nil.
	Put(ctx context.Context, row Row, cond Cond) error

	// Update applies upd to the row at key and returns the new image. The row
	// must exist and cond must hold. Fails with ErrNotFound or
	// ErrPreconditionFailed.
	Update(ctx context.Context, key Key, upd *Update, cond Cond) (Row, error)

	// Delete removes the row at key and returns its old image, or nil if it
	// did not exist. With a non-nil cond it fails with ErrNotFound or
	// ErrPreconditionFailed.
	Delete(ctx context.Context, key Key, cond Cond) (Row, error)

	// Transact applies ops atomically. On a failed predicate it returns a
	// *TxCanceledError carrying one reason per op.
	Transact(ctx context.Context, ops []Op) error

	// BatchGet returns the existing rows among keys, in no particular order.
	BatchGet(ctx context.Context, keys []Key) ([]Row, error)

	// BatchWrite puts and deletes rows without conditions. Best effort,
	// at-least-once.
	BatchWrite(ctx context.Context, puts []Row, deletes []Key) error

	// Query reads one page of a primary or secondary index partition.
	Query(ctx context.Context, q Query) (Page, error)

	// Scan reads the whole table, or index, keeping rows that satisfy filter.
	Scan(ctx context.Context, in ScanInput) ([]Row, error)
}

// ReadOption tunes a Get.
type ReadOption func(*readOptions)

type readOptions struct {
	consistent bool
}

// Strong requests a strongly consistent read.
func Strong() ReadOption {
	return func(o *readOptions) { o.consistent = true }
}

func applyReadOptions(opts []ReadOption) readOptions {
	var o readOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// OpKind identifies the kind of a transaction op.
type OpKind int

const (
	OpPut OpKind = iota + 1
	OpUpdate
	OpDelete
	OpCheck
)

func (k OpKind) String() string {
	switch k {
	case OpPut:
		return "Put"
	case OpUpdate:
		return "Update"
	case OpDelete:
		return "Delete"
	case OpCheck:
		return "ConditionCheck"
	}
	return "Unknown"
}

// Op is one write of a transaction, guarded by its own predicate.
type Op struct {
	Kind   OpKind
	Key    Key
	Row    Row
	Update *Update
	Cond   Cond
}

// PutOp writes row, subject to cond when non-nil.
func PutOp(row Row, cond Cond) Op {
	return Op{Kind: OpPut, Key: row.Key(), Row: row, Cond: cond}
}

// AddOp writes row only if its key is free.
func AddOp(row Row) Op {
	return PutOp(row, RowNotExists())
}

// UpdateOp mutates an existing row; cond is ANDed with row existence.
func UpdateOp(key Key, upd *Update, cond Cond) Op {
	return Op{Kind: OpUpdate, Key: key, Update: upd, Cond: And(RowExists(), cond)}
}

// DeleteOp removes the row at key, subject to cond when non-nil.
func DeleteOp(key Key, cond Cond) Op {
	return Op{Kind: OpDelete, Key: key, Cond: cond}
}

// CheckOp asserts cond on the row at key without writing it.
func CheckOp(key Key, cond Cond) Op {
	return Op{Kind: OpCheck, Key: key, Cond: cond}
}

// Query selects rows of one index partition.
type Query struct {
	// Index is the secondary index to read; empty reads the primary key.
	Index string

	// PK is the partition key value.
	PK string

	// SK optionally restricts the sort key.
	SK *KeyCond

	// Descending reverses the sort order.
	Descending bool

	// Limit caps the number of rows evaluated for this page (0 = no limit).
	// As with DynamoDB it is applied before Filter.
	Limit int

	// Cursor resumes from a previous page.
	Cursor string

	// Filter drops rows after they are read.
	Filter Cond
}

// Page is one page of query results. Cursor is empty on the last page.
type Page struct {
	Rows   []Row
	Cursor string
}

// ScanInput selects rows of a whole table or index.
type ScanInput struct {
	Index  string
	Filter Cond
}

type keyOp int

const (
	keyEq keyOp = iota
	keyLt
	keyLe
	keyGt
	keyGe
	keyBetween
	keyBeginsWith
)

// KeyCond is a sort key condition of a query.
type KeyCond struct {
	op     keyOp
	lo, hi any
}

// Sort key conditions. Values are strings, or numbers on numeric sort keys.

func SKEq(v any) *KeyCond            { return &KeyCond{op: keyEq, lo: v} }
func SKLt(v any) *KeyCond            { return &KeyCond{op: keyLt, lo: v} }
func SKLe(v any) *KeyCond            { return &KeyCond{op: keyLe, lo: v} }
func SKGt(v any) *KeyCond            { return &KeyCond{op: keyGt, lo: v} }
func SKGe(v any) *KeyCond            { return &KeyCond{op: keyGe, lo: v} }
func SKBetween(lo, hi any) *KeyCond  { return &KeyCond{op: keyBetween, lo: lo, hi: hi} }
func SKBeginsWith(p string) *KeyCond { return &KeyCond{op: keyBeginsWith, lo: p} }

// Iterate lazily walks every page of q. Stop early by breaking the loop.
func Iterate(ctx context.Context, s KeyedStore, q Query) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		for {
			page, err := s.Query(ctx, q)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, row := range page.Rows {
				if !yield(row, nil) {
					return
				}
			}
			if page.Cursor == "" {
				return
			}
			q.Cursor = page.Cursor
		}
	}
}

// All collects every row of q.
func All(ctx context.Context, s KeyedStore, q Query) ([]Row, error) {
	var rows []Row
	for row, err := range Iterate(ctx, s, q) {
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// First returns the first row of q that passes its filter, or nil.
func First(ctx context.Context, s KeyedStore, q Query) (Row, error) {
	for row, err := range Iterate(ctx, s, q) {
		if err != nil {
			return nil, err
		}
		return row, nil
	}
	return nil, nil
}

// Increment adds one to a counter of an existing row.
func Increment(ctx context.Context, s KeyedStore, key Key, attr string) (Row, error) {
	return IncrementBy(ctx, s, key, attr, 1)
}

// IncrementBy adds n to a counter of an existing row.
func IncrementBy(ctx context.Context, s KeyedStore, key Key, attr string, n int64) (Row, error) {
	return s.Update(ctx, key, NewUpdate().Add(attr, n), nil)
}

// Decrement subtracts one from a counter, refusing to go below zero.
// A zero or missing counter yields ErrCounterUnderflow.
func Decrement(ctx context.Context, s KeyedStore, key Key, attr string) (Row, error) {
	row, err := s.Update(ctx, key, NewUpdate().Add(attr, -1), Gt(attr, 0))
	if errors.Is(err, ErrPreconditionFailed) {
		return nil, ErrCounterUnderflow
	}
	return row, err
}
