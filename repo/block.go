package repo

import (
	"context"
	"iter"

	"github.com/realsocial/real/model"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// BlockRepo stores blocks, indexed by blocker on GSI-A1 and by blocked user
// on GSI-A2.
type BlockRepo struct {
	table
}

func (r *BlockRepo) Key(blockerID, blockedID string) store.Key {
	return schema.BlockKey(blockerID, blockedID)
}

func (r *BlockRepo) Row(b *model.Block) (store.Row, error) {
	row, err := encode(b, r.Key(b.BlockerUserID, b.BlockedUserID))
	if err != nil {
		return nil, err
	}
	at := store.FormatTime(b.BlockedAt)
	setIndex(row, store.IndexA1, schema.BlockedByPK(b.BlockerUserID), at)
	setIndex(row, store.IndexA2, schema.BlockersOfPK(b.BlockedUserID), at)
	return row, nil
}

func (r *BlockRepo) Get(ctx context.Context, blockerID, blockedID string) (*model.Block, error) {
	return getAs[model.Block](ctx, r.table, r.Key(blockerID, blockedID))
}

func (r *BlockRepo) Add(ctx context.Context, b *model.Block) error {
	row, err := r.Row(b)
	if err != nil {
		return err
	}
	return r.add(ctx, row)
}

func (r *BlockRepo) Delete(ctx context.Context, blockerID, blockedID string) (*model.Block, error) {
	row, err := r.delete(ctx, r.Key(blockerID, blockedID), nil)
	if err != nil {
		return nil, err
	}
	return decode[model.Block](row)
}

// EitherWay reports whether a blocks b or b blocks a.
func (r *BlockRepo) EitherWay(ctx context.Context, a, b string) (bool, error) {
	ks := []store.Key{r.Key(a, b)}
	if a != b {
		ks = append(ks, r.Key(b, a))
	}
	rows, err := r.s.BatchGet(ctx, ks)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// BlockedBy enumerates the users a user blocked.
func (r *BlockRepo) BlockedBy(ctx context.Context, blockerID string) iter.Seq2[*model.Block, error] {
	return query[model.Block](ctx, r.table, store.Query{Index: store.IndexA1, PK: schema.BlockedByPK(blockerID)})
}

// BlockersOf enumerates the users who blocked a user.
func (r *BlockRepo) BlockersOf(ctx context.Context, blockedID string) iter.Seq2[*model.Block, error] {
	return query[model.Block](ctx, r.table, store.Query{Index: store.IndexA2, PK: schema.BlockersOfPK(blockedID)})
}
