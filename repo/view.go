package repo

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/realsocial/real/model"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// ViewRepo stores per-user view records under the viewed item's partition,
// indexed by viewer on GSI-K1 by lastViewedAt.
type ViewRepo struct {
	table
}

func (r *ViewRepo) Key(itemKey store.Key, userID string) store.Key {
	return schema.ViewKey(itemKey, userID)
}

func (r *ViewRepo) Row(itemKey store.Key, v *model.View) (store.Row, error) {
	row, err := encode(v, r.Key(itemKey, v.UserID))
	if err != nil {
		return nil, err
	}
	setIndex(row, store.IndexK1, schema.ViewsByUserPK(v.UserID), store.FormatTime(v.LastViewedAt))
	return row, nil
}

func (r *ViewRepo) Get(ctx context.Context, itemKey store.Key, userID string) (*model.View, error) {
	return getAs[model.View](ctx, r.table, r.Key(itemKey, userID))
}

// Record adds a view record for n views at at, or folds them into the
// existing record. lastViewedAt only moves forward.
func (r *ViewRepo) Record(ctx context.Context, itemKey store.Key, v *model.View) error {
	row, err := r.Row(itemKey, v)
	if err != nil {
		return err
	}
	err = r.add(ctx, row)
	if !errors.Is(err, store.ErrAlreadyExists) {
		return err
	}

	key := r.Key(itemKey, v.UserID)
	forward := schema.IndexUpdate(
		store.NewUpdate().Add(model.AttrViewCount, v.ViewCount).Set(model.AttrLastViewedAt, v.LastViewedAt),
		store.IndexK1, schema.ViewsByUserPK(v.UserID), store.FormatTime(v.LastViewedAt),
	)
	_, err = r.update(ctx, key, forward, store.Lt(model.AttrLastViewedAt, v.LastViewedAt))
	if !isPrecondition(err) {
		return err
	}
	_, err = r.update(ctx, key, store.NewUpdate().Add(model.AttrViewCount, v.ViewCount), nil)
	return err
}

func (r *ViewRepo) Delete(ctx context.Context, itemKey store.Key, userID string) error {
	_, err := r.delete(ctx, r.Key(itemKey, userID), nil)
	return err
}

// ByItem enumerates the view records of an item.
func (r *ViewRepo) ByItem(ctx context.Context, itemKey store.Key) iter.Seq2[*model.View, error] {
	return query[model.View](ctx, r.table, store.Query{PK: itemKey.PK, SK: store.SKBeginsWith(schema.ViewPrefix)})
}

// KeysByItem enumerates the keys of an item's view records.
func (r *ViewRepo) KeysByItem(ctx context.Context, itemKey store.Key) iter.Seq2[store.Key, error] {
	return keys(ctx, r.s, store.Query{PK: itemKey.PK, SK: store.SKBeginsWith(schema.ViewPrefix)})
}

// KeysByUser enumerates the keys of a user's view records.
func (r *ViewRepo) KeysByUser(ctx context.Context, userID string) iter.Seq2[store.Key, error] {
	return keys(ctx, r.s, store.Query{Index: store.IndexK1, PK: schema.ViewsByUserPK(userID)})
}

// ViewedSince reports whether userID viewed the item at or after at.
func (r *ViewRepo) ViewedSince(ctx context.Context, itemKey store.Key, userID string, at time.Time) (bool, error) {
	v, err := r.Get(ctx, itemKey, userID)
	if err != nil || v == nil {
		return false, err
	}
	return !v.LastViewedAt.Before(at), nil
}
