package repo

import (
	"context"
	"iter"

	"github.com/realsocial/real/model"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// FeedRepo stores feed entries under the post's partition, indexed by user
// on GSI-A1 and by user and author on GSI-K2.
type FeedRepo struct {
	table
}

func (r *FeedRepo) Key(userID, postID string) store.Key {
	return schema.FeedKey(userID, postID)
}

func (r *FeedRepo) Row(e *model.FeedEntry) (store.Row, error) {
	row, err := encode(e, r.Key(e.UserID, e.PostID))
	if err != nil {
		return nil, err
	}
	at := store.FormatTime(e.PostedAt)
	setIndex(row, store.IndexA1, schema.FeedPK(e.UserID), at)
	setIndex(row, store.IndexK2, schema.FeedByAuthorPK(e.UserID, e.PostedByUserID), at)
	return row, nil
}

// PutAll writes feed entries. Entries are idempotent.
func (r *FeedRepo) PutAll(ctx context.Context, entries []*model.FeedEntry) error {
	rows := make([]store.Row, 0, len(entries))
	for _, e := range entries {
		row, err := r.Row(e)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return r.s.BatchWrite(ctx, rows, nil)
}

// DeleteAll removes feed entries by key.
func (r *FeedRepo) DeleteAll(ctx context.Context, keys []store.Key) error {
	return r.s.BatchWrite(ctx, nil, keys)
}

// ByUser enumerates a user's feed, newest first.
func (r *FeedRepo) ByUser(ctx context.Context, userID string) iter.Seq2[*model.FeedEntry, error] {
	return query[model.FeedEntry](ctx, r.table, store.Query{Index: store.IndexA1, PK: schema.FeedPK(userID), Descending: true})
}

// KeysByUserAndAuthor enumerates the feed entries of one author in a user's feed.
func (r *FeedRepo) KeysByUserAndAuthor(ctx context.Context, userID, authorID string) iter.Seq2[store.Key, error] {
	return keys(ctx, r.s, store.Query{Index: store.IndexK2, PK: schema.FeedByAuthorPK(userID, authorID)})
}

// KeysByPost enumerates every feed entry of a post.
func (r *FeedRepo) KeysByPost(ctx context.Context, postID string) iter.Seq2[store.Key, error] {
	return keys(ctx, r.s, store.Query{PK: schema.PostKey(postID).PK, SK: store.SKBeginsWith(schema.FeedPrefix)})
}
