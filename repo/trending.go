package repo

import (
	"context"
	"iter"
	"time"

	"github.com/realsocial/real/model"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// TrendingRepo stores trending rows. Per item kind they are indexed by
// score on GSI-K3 and by lastDeflatedAt on GSI-A1.
type TrendingRepo struct {
	table
}

func (r *TrendingRepo) Key(itemID string) store.Key {
	return schema.TrendingKey(itemID)
}

func trendingPK(kind model.TrendingKind) string {
	return schema.TrendingByScorePK(schema.Kind(kind))
}

func (r *TrendingRepo) Row(t *model.TrendingItem) (store.Row, error) {
	row, err := encode(t, r.Key(t.ItemID))
	if err != nil {
		return nil, err
	}
	setIndex(row, store.IndexK3, trendingPK(t.Kind), t.Score)
	setIndex(row, store.IndexA1, trendingPK(t.Kind), store.FormatTime(t.LastDeflatedAt))
	return row, nil
}

func (r *TrendingRepo) Get(ctx context.Context, itemID string, opts ...store.ReadOption) (*model.TrendingItem, error) {
	return getAs[model.TrendingItem](ctx, r.table, r.Key(itemID), opts...)
}

func (r *TrendingRepo) Add(ctx context.Context, t *model.TrendingItem) error {
	row, err := r.Row(t)
	if err != nil {
		return err
	}
	return r.add(ctx, row)
}

// AddScore raises the score of an existing row by delta.
func (r *TrendingRepo) AddScore(ctx context.Context, itemID string, delta float64) (*model.TrendingItem, error) {
	_, skAttr := store.IndexAttrs(store.IndexK3)
	upd := store.NewUpdate().Add(model.AttrScore, delta).Add(skAttr, delta)
	row, err := r.update(ctx, r.Key(itemID), upd, nil)
	if err != nil {
		return nil, err
	}
	return decode[model.TrendingItem](row)
}

// Deflate replaces the score of t, provided neither its score nor its
// lastDeflatedAt changed since t was read.
func (r *TrendingRepo) Deflate(ctx context.Context, t *model.TrendingItem, score float64, now time.Time) (*model.TrendingItem, error) {
	upd := store.NewUpdate().Set(model.AttrScore, score).Set(model.AttrLastDeflatedAt, now)
	schema.IndexUpdate(upd, store.IndexK3, trendingPK(t.Kind), score)
	schema.IndexUpdate(upd, store.IndexA1, trendingPK(t.Kind), store.FormatTime(now))
	cond := store.And(
		store.Eq(model.AttrScore, t.Score),
		store.Eq(model.AttrLastDeflatedAt, t.LastDeflatedAt),
	)
	row, err := r.update(ctx, r.Key(t.ItemID), upd, cond)
	if err != nil {
		return nil, err
	}
	return decode[model.TrendingItem](row)
}

func (r *TrendingRepo) Delete(ctx context.Context, itemID string) error {
	_, err := r.delete(ctx, r.Key(itemID), nil)
	return err
}

// ByScore enumerates items of a kind by ascending score.
func (r *TrendingRepo) ByScore(ctx context.Context, kind model.TrendingKind, descending bool) iter.Seq2[*model.TrendingItem, error] {
	return query[model.TrendingItem](ctx, r.table, store.Query{Index: store.IndexK3, PK: trendingPK(kind), Descending: descending})
}

// DeflatedBefore enumerates items of a kind last deflated before t.
func (r *TrendingRepo) DeflatedBefore(ctx context.Context, kind model.TrendingKind, t time.Time) iter.Seq2[*model.TrendingItem, error] {
	return query[model.TrendingItem](ctx, r.table, store.Query{
		Index: store.IndexA1,
		PK:    trendingPK(kind),
		SK:    store.SKLt(store.FormatTime(t)),
	})
}
