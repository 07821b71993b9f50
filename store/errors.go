package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a conditional write targets a missing row.
	ErrNotFound = errors.New("store: row not found")

	// ErrAlreadyExists is returned when adding a row whose key is taken.
	ErrAlreadyExists = errors.New("store: row already exists")

	// ErrPreconditionFailed is returned when a row exists but the caller's
	// predicate does not hold.
	ErrPreconditionFailed = errors.New("store: precondition failed")

	// ErrCounterUnderflow is returned when a guarded decrement finds the
	// counter at zero or missing.
	ErrCounterUnderflow = errors.New("store: counter underflow")

	// ErrSchemaVersion is returned when writing a row whose schemaVersion is
	// newer than this build understands.
	ErrSchemaVersion = errors.New("store: unsupported schema version")

	// ErrEmptyUpdate is returned when an update carries no mutations.
	ErrEmptyUpdate = errors.New("store: update has no mutations")
)

// Cancellation reason codes reported per transaction op.
const (
	ReasonNone              = "None"
	ReasonConditionalFailed = "ConditionalCheckFailed"
)

// TxCanceledError reports a cancelled transaction with one reason per op,
// in op order.
type TxCanceledError struct {
	Reasons []string
}

func (e *TxCanceledError) Error() string {
	return fmt.Sprintf("store: transaction cancelled [%s]", strings.Join(e.Reasons, ", "))
}

// FailedIndex returns the ordinal of the first op whose predicate failed, or -1.
func (e *TxCanceledError) FailedIndex() int {
	for i, r := range e.Reasons {
		if r == ReasonConditionalFailed {
			return i
		}
	}
	return -1
}
