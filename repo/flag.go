package repo

import (
	"context"
	"iter"

	"github.com/realsocial/real/model"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// FlagRepo stores flags under the flagged item's partition, indexed by
// flagger on GSI-K1.
type FlagRepo struct {
	table
}

func (r *FlagRepo) Key(itemKey store.Key, userID string) store.Key {
	return schema.FlagKey(itemKey, userID)
}

func (r *FlagRepo) Row(itemKey store.Key, f *model.Flag) (store.Row, error) {
	row, err := encode(f, r.Key(itemKey, f.FlaggerUserID))
	if err != nil {
		return nil, err
	}
	setIndex(row, store.IndexK1, schema.FlagsByUserPK(f.FlaggerUserID), store.FormatTime(f.CreatedAt))
	return row, nil
}

func (r *FlagRepo) Get(ctx context.Context, itemKey store.Key, userID string) (*model.Flag, error) {
	return getAs[model.Flag](ctx, r.table, r.Key(itemKey, userID))
}

func (r *FlagRepo) Delete(ctx context.Context, itemKey store.Key, userID string) (*model.Flag, error) {
	row, err := r.delete(ctx, r.Key(itemKey, userID), nil)
	if err != nil {
		return nil, err
	}
	return decode[model.Flag](row)
}

// KeysByItem enumerates the flag rows of an item.
func (r *FlagRepo) KeysByItem(ctx context.Context, itemKey store.Key) iter.Seq2[store.Key, error] {
	return keys(ctx, r.s, store.Query{PK: itemKey.PK, SK: store.SKBeginsWith(schema.FlagPrefix)})
}

// ByUser enumerates a user's flags with their keys.
func (r *FlagRepo) ByUser(ctx context.Context, userID string) iter.Seq2[store.Row, error] {
	return store.Iterate(ctx, r.s, store.Query{Index: store.IndexK1, PK: schema.FlagsByUserPK(userID)})
}
