// Package reactor keeps derived state in step with the table. Every
// committed row change is dispatched to the handlers registered for its
// kind; handlers adjust counters, cards, feeds and indexes, and may write
// rows whose changes are dispatched in turn.
package reactor

import (
	"reflect"

	"github.com/realsocial/real/repo"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// Op is the kind of write behind an event.
type Op string

const (
	OpCreate Op = "INSERT"
	OpUpdate Op = "MODIFY"
	OpDelete Op = "REMOVE"
)

// Event is a single row change with its parsed key.
type Event struct {
	ID  string
	Key store.Key
	Ref schema.Ref
	Old store.Row
	New store.Row
}

func newEvent(c store.Change) (*Event, error) {
	ref, err := schema.Parse(c.Key)
	if err != nil {
		return nil, err
	}
	return &Event{ID: c.ID, Key: c.Key, Ref: ref, Old: c.Old, New: c.New}, nil
}

// Op derives the write kind from which images are present.
func (e *Event) Op() Op {
	switch {
	case e.Old == nil:
		return OpCreate
	case e.New == nil:
		return OpDelete
	}
	return OpUpdate
}

// Changed reports whether any of attrs differs between the images.
func (e *Event) Changed(attrs ...string) bool {
	for _, a := range attrs {
		if !reflect.DeepEqual(e.Old[a], e.New[a]) {
			return true
		}
	}
	return false
}

// Image returns the new image, or the old one for deletes.
func (e *Event) Image() store.Row {
	if e.New != nil {
		return e.New
	}
	return e.Old
}

// images decodes both images of e. Either result is nil when its image is.
func images[T any](e *Event) (old, cur *T, err error) {
	if old, err = repo.Decode[T](e.Old); err != nil {
		return nil, nil, err
	}
	if cur, err = repo.Decode[T](e.New); err != nil {
		return nil, nil, err
	}
	return old, cur, nil
}

// Filters narrowing which events reach a handler.

// Creates matches inserts.
func Creates(e *Event) bool { return e.Op() == OpCreate }

// Deletes matches removals.
func Deletes(e *Event) bool { return e.Op() == OpDelete }

// Updates matches modifications.
func Updates(e *Event) bool { return e.Op() == OpUpdate }

// ChangedAny matches inserts, removals, and updates touching attrs.
func ChangedAny(attrs ...string) Filter {
	return func(e *Event) bool {
		return e.Op() != OpUpdate || e.Changed(attrs...)
	}
}

// UpdatedAny matches updates touching attrs.
func UpdatedAny(attrs ...string) Filter {
	return func(e *Event) bool {
		return e.Op() == OpUpdate && e.Changed(attrs...)
	}
}

// CreatesOrDeletes matches inserts and removals.
func CreatesOrDeletes(e *Event) bool { return e.Op() != OpUpdate }

// OnItem matches flags and views attached to items of kind.
func OnItem(kind schema.Kind) Filter {
	return func(e *Event) bool {
		return e.Ref.Item != nil && e.Ref.Item.Kind == kind
	}
}

// Not inverts a filter.
func Not(f Filter) Filter {
	return func(e *Event) bool { return !f(e) }
}
