package repo

import (
	"context"
	"errors"
	"time"

	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// ProcessedRepo records handled change events so that redelivered events
// are skipped. Markers expire through the table TTL.
type ProcessedRepo struct {
	table
}

func (r *ProcessedRepo) Key(eventID string) store.Key {
	return schema.ProcessedKey(eventID)
}

// Seen reports whether eventID was marked and has not expired.
func (r *ProcessedRepo) Seen(ctx context.Context, eventID string, now time.Time) (bool, error) {
	row, err := r.s.Get(ctx, r.Key(eventID), store.Strong())
	if err != nil {
		return false, err
	}
	return row != nil && !store.IsExpired(row, now), nil
}

// Mark records eventID as handled until expiresAt. It reports false and
// leaves the marker alone when a concurrent delivery already holds a live
// one.
func (r *ProcessedRepo) Mark(ctx context.Context, eventID string, now, expiresAt time.Time) (bool, error) {
	row := store.Row{store.TTLAttribute: store.TTLValue(expiresAt)}
	for attr, av := range r.Key(eventID).Attrs() {
		row[attr] = av
	}
	err := r.s.Put(ctx, row, store.Or(store.RowNotExists(), store.Not(store.Live(now))))
	if errors.Is(err, store.ErrPreconditionFailed) {
		return false, nil
	}
	return err == nil, err
}
