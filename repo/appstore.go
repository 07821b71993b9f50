package repo

import (
	"context"
	"iter"
	"time"

	"github.com/realsocial/real/model"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// AppStoreSubRepo stores App Store subscriptions, indexed by user on
// GSI-A1. Active subscriptions are also indexed by next verification time
// on GSI-K1.
type AppStoreSubRepo struct {
	table
}

func (r *AppStoreSubRepo) Key(originalTransactionID string) store.Key {
	return schema.AppStoreSubKey(originalTransactionID)
}

func (r *AppStoreSubRepo) Row(s *model.AppStoreSub) (store.Row, error) {
	row, err := encode(s, r.Key(s.OriginalTransactionID))
	if err != nil {
		return nil, err
	}
	setIndex(row, store.IndexA1, schema.AppStoreSubsByUserPK(s.UserID), store.FormatTime(s.CreatedAt))
	if s.Status == model.SubActive && s.NextVerificationAt != nil {
		setIndex(row, store.IndexK1, schema.AppStoreSubsDuePK, store.FormatTime(*s.NextVerificationAt))
	}
	return row, nil
}

func (r *AppStoreSubRepo) Get(ctx context.Context, originalTransactionID string) (*model.AppStoreSub, error) {
	return getAs[model.AppStoreSub](ctx, r.table, r.Key(originalTransactionID))
}

func (r *AppStoreSubRepo) Add(ctx context.Context, s *model.AppStoreSub) error {
	row, err := r.Row(s)
	if err != nil {
		return err
	}
	return r.add(ctx, row)
}

// Put replaces a subscription wholesale, as after re-verification.
func (r *AppStoreSubRepo) Put(ctx context.Context, s *model.AppStoreSub) error {
	row, err := r.Row(s)
	if err != nil {
		return err
	}
	return r.s.Put(ctx, row, store.And(store.RowExists(), schema.VersionGuard()))
}

func (r *AppStoreSubRepo) Delete(ctx context.Context, originalTransactionID string) error {
	_, err := r.delete(ctx, r.Key(originalTransactionID), nil)
	return err
}

// ByUser enumerates a user's subscriptions, oldest first.
func (r *AppStoreSubRepo) ByUser(ctx context.Context, userID string) iter.Seq2[*model.AppStoreSub, error] {
	return query[model.AppStoreSub](ctx, r.table, store.Query{Index: store.IndexA1, PK: schema.AppStoreSubsByUserPK(userID)})
}

// DueBefore enumerates active subscriptions due for verification before t.
func (r *AppStoreSubRepo) DueBefore(ctx context.Context, t time.Time) iter.Seq2[*model.AppStoreSub, error] {
	return query[model.AppStoreSub](ctx, r.table, store.Query{
		Index: store.IndexK1,
		PK:    schema.AppStoreSubsDuePK,
		SK:    store.SKLt(store.FormatTime(t)),
	})
}
