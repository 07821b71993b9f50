package repo

import (
	"context"
	"iter"

	"github.com/realsocial/real/model"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// CommentRepo stores comments, indexed by post on GSI-A1 and by author on
// GSI-A2, both by commentedAt.
type CommentRepo struct {
	table
}

func (r *CommentRepo) Key(commentID string) store.Key {
	return schema.CommentKey(commentID)
}

func (r *CommentRepo) Row(c *model.Comment) (store.Row, error) {
	row, err := encode(c, r.Key(c.CommentID))
	if err != nil {
		return nil, err
	}
	at := store.FormatTime(c.CommentedAt)
	setIndex(row, store.IndexA1, schema.CommentsByPostPK(c.PostID), at)
	setIndex(row, store.IndexA2, schema.CommentsByUserPK(c.CommentedByUserID), at)
	return row, nil
}

func (r *CommentRepo) Get(ctx context.Context, commentID string) (*model.Comment, error) {
	return getAs[model.Comment](ctx, r.table, r.Key(commentID))
}

// Delete removes a comment and returns what was removed, or nil.
func (r *CommentRepo) Delete(ctx context.Context, commentID string) (*model.Comment, error) {
	row, err := r.delete(ctx, r.Key(commentID), nil)
	if err != nil {
		return nil, err
	}
	return decode[model.Comment](row)
}

func (r *CommentRepo) Increment(ctx context.Context, commentID, attr string) error {
	return r.increment(ctx, r.Key(commentID), attr)
}

func (r *CommentRepo) Decrement(ctx context.Context, commentID, attr string) error {
	return r.decrement(ctx, r.Key(commentID), attr)
}

// ByPost enumerates a post's comments, oldest first.
func (r *CommentRepo) ByPost(ctx context.Context, postID string) iter.Seq2[*model.Comment, error] {
	return query[model.Comment](ctx, r.table, store.Query{Index: store.IndexA1, PK: schema.CommentsByPostPK(postID)})
}

// ByUser enumerates a user's comments, oldest first.
func (r *CommentRepo) ByUser(ctx context.Context, userID string) iter.Seq2[*model.Comment, error] {
	return query[model.Comment](ctx, r.table, store.Query{Index: store.IndexA2, PK: schema.CommentsByUserPK(userID)})
}
