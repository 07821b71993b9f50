package repo

import (
	"context"
	"iter"

	"github.com/realsocial/real/model"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// AlbumRepo stores albums, indexed by owner on GSI-A1.
type AlbumRepo struct {
	table
}

func (r *AlbumRepo) Key(albumID string) store.Key {
	return schema.AlbumKey(albumID)
}

func (r *AlbumRepo) Row(a *model.Album) (store.Row, error) {
	row, err := encode(a, r.Key(a.AlbumID))
	if err != nil {
		return nil, err
	}
	setIndex(row, store.IndexA1, schema.AlbumsByUserPK(a.OwnedByUserID), store.FormatTime(a.CreatedAt))
	return row, nil
}

func (r *AlbumRepo) Get(ctx context.Context, albumID string, opts ...store.ReadOption) (*model.Album, error) {
	return getAs[model.Album](ctx, r.table, r.Key(albumID), opts...)
}

func (r *AlbumRepo) Add(ctx context.Context, a *model.Album) error {
	row, err := r.Row(a)
	if err != nil {
		return err
	}
	return r.add(ctx, row)
}

func (r *AlbumRepo) Update(ctx context.Context, albumID string, upd *store.Update, cond store.Cond) (*model.Album, error) {
	row, err := r.update(ctx, r.Key(albumID), upd, cond)
	if err != nil {
		return nil, err
	}
	return decode[model.Album](row)
}

func (r *AlbumRepo) Delete(ctx context.Context, albumID string) (*model.Album, error) {
	row, err := r.delete(ctx, r.Key(albumID), nil)
	if err != nil {
		return nil, err
	}
	return decode[model.Album](row)
}

func (r *AlbumRepo) Increment(ctx context.Context, albumID, attr string) error {
	return r.increment(ctx, r.Key(albumID), attr)
}

func (r *AlbumRepo) Decrement(ctx context.Context, albumID, attr string) error {
	return r.decrement(ctx, r.Key(albumID), attr)
}

// NextRankCount atomically bumps rankCount and returns the new value.
func (r *AlbumRepo) NextRankCount(ctx context.Context, albumID string) (int64, error) {
	a, err := r.Update(ctx, albumID, store.NewUpdate().Add(model.AttrRankCount, 1), nil)
	if err != nil {
		return 0, err
	}
	return a.RankCount, nil
}

// ByUser enumerates a user's albums, oldest first.
func (r *AlbumRepo) ByUser(ctx context.Context, userID string) iter.Seq2[*model.Album, error] {
	return query[model.Album](ctx, r.table, store.Query{Index: store.IndexA1, PK: schema.AlbumsByUserPK(userID)})
}
