package repo

import (
	"context"
	"errors"
	"iter"

	"github.com/realsocial/real/model"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// CardRepo stores cards, indexed by user on GSI-A1 and by post on GSI-K1.
type CardRepo struct {
	table
}

func (r *CardRepo) Key(cardID string) store.Key {
	return schema.CardKey(cardID)
}

func (r *CardRepo) Row(c *model.Card) (store.Row, error) {
	row, err := encode(c, r.Key(c.CardID))
	if err != nil {
		return nil, err
	}
	setIndex(row, store.IndexA1, schema.CardsByUserPK(c.UserID), schema.CardsByUserSK(c.CreatedAt))
	if c.PostID != "" {
		setIndex(row, store.IndexK1, schema.CardsByPostPK(c.PostID), c.UserID)
	}
	return row, nil
}

func (r *CardRepo) Get(ctx context.Context, cardID string) (*model.Card, error) {
	return getAs[model.Card](ctx, r.table, r.Key(cardID))
}

// Upsert adds c or, if the card exists, refreshes its text. It reports
// whether the card was created.
func (r *CardRepo) Upsert(ctx context.Context, c *model.Card) (bool, error) {
	row, err := r.Row(c)
	if err != nil {
		return false, err
	}
	err = r.add(ctx, row)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, store.ErrAlreadyExists) {
		return false, err
	}
	upd := store.NewUpdate().Set("title", c.Title).SetOrRemove("subTitle", c.SubTitle)
	_, err = r.update(ctx, r.Key(c.CardID), upd, nil)
	if errors.Is(err, store.ErrNotFound) {
		// deleted between the two writes
		return r.Upsert(ctx, c)
	}
	return false, err
}

func (r *CardRepo) Delete(ctx context.Context, cardID string) (*model.Card, error) {
	row, err := r.delete(ctx, r.Key(cardID), nil)
	if err != nil {
		return nil, err
	}
	return decode[model.Card](row)
}

// ByUser enumerates a user's cards, newest first.
func (r *CardRepo) ByUser(ctx context.Context, userID string) iter.Seq2[*model.Card, error] {
	return query[model.Card](ctx, r.table, store.Query{
		Index:      store.IndexA1,
		PK:         schema.CardsByUserPK(userID),
		SK:         store.SKBeginsWith("card/"),
		Descending: true,
	})
}

// ByPost enumerates cards about a post.
func (r *CardRepo) ByPost(ctx context.Context, postID string) iter.Seq2[*model.Card, error] {
	return query[model.Card](ctx, r.table, store.Query{Index: store.IndexK1, PK: schema.CardsByPostPK(postID)})
}
