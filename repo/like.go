package repo

import (
	"context"
	"iter"

	"github.com/realsocial/real/model"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// LikeRepo stores likes, indexed by liker on GSI-A1, by post on GSI-A2 and
// by post author then liker on GSI-K2.
type LikeRepo struct {
	table
}

func (r *LikeRepo) Key(userID, postID string) store.Key {
	return schema.LikeKey(userID, postID)
}

func (r *LikeRepo) Row(l *model.Like) (store.Row, error) {
	row, err := encode(l, r.Key(l.LikedByUserID, l.PostID))
	if err != nil {
		return nil, err
	}
	at := store.FormatTime(l.LikedAt)
	setIndex(row, store.IndexA1, schema.LikesByUserPK(l.LikedByUserID), at)
	setIndex(row, store.IndexA2, schema.LikesByPostPK(l.PostID), at)
	setIndex(row, store.IndexK2, schema.LikesOfAuthorPK(l.PostedByUserID), l.LikedByUserID)
	return row, nil
}

func (r *LikeRepo) Get(ctx context.Context, userID, postID string) (*model.Like, error) {
	return getAs[model.Like](ctx, r.table, r.Key(userID, postID))
}

func (r *LikeRepo) Delete(ctx context.Context, userID, postID string) (*model.Like, error) {
	row, err := r.delete(ctx, r.Key(userID, postID), nil)
	if err != nil {
		return nil, err
	}
	return decode[model.Like](row)
}

// ByUser enumerates a user's likes, oldest first.
func (r *LikeRepo) ByUser(ctx context.Context, userID string) iter.Seq2[*model.Like, error] {
	return query[model.Like](ctx, r.table, store.Query{Index: store.IndexA1, PK: schema.LikesByUserPK(userID)})
}

// ByPost enumerates a post's likes, oldest first.
func (r *LikeRepo) ByPost(ctx context.Context, postID string) iter.Seq2[*model.Like, error] {
	return query[model.Like](ctx, r.table, store.Query{Index: store.IndexA2, PK: schema.LikesByPostPK(postID)})
}

// ByUserOfAuthor enumerates a user's likes on one author's posts.
func (r *LikeRepo) ByUserOfAuthor(ctx context.Context, userID, authorID string) iter.Seq2[*model.Like, error] {
	return query[model.Like](ctx, r.table, store.Query{
		Index: store.IndexK2,
		PK:    schema.LikesOfAuthorPK(authorID),
		SK:    store.SKEq(userID),
	})
}
