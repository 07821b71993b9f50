package manager

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/realsocial/real/internal/metrics"
	"github.com/realsocial/real/model"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// CommentManager owns comments on posts.
type CommentManager struct {
	app *App
}

// AddComment comments on a completed post. The commenter must be able to
// see the post and its author must allow comments.
func (m *CommentManager) AddComment(ctx context.Context, commentID, postID, userID, text string) (*model.Comment, error) {
	if err := check(struct {
		CommentID string `validate:"required"`
		Text      string `validate:"required,max=2000"`
	}{commentID, text}); err != nil {
		return nil, err
	}
	if _, err := m.app.Users.GetActive(ctx, userID); err != nil {
		return nil, err
	}
	p, err := m.app.Posts.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PostCompleted {
		return nil, withIDs(ErrPostStatus, "postId", postID, "postStatus", string(p.Status))
	}
	if p.CommentsDisabled {
		return nil, withIDs(ErrCommentsDisabled, "postId", postID)
	}
	author, err := m.app.Users.Get(ctx, p.PostedByUserID)
	if err != nil {
		return nil, err
	}
	if author.CommentsDisabled && userID != author.UserID {
		return nil, withIDs(ErrCommentsDisabled, "postId", postID)
	}
	if err := m.app.canSee(ctx, userID, author); err != nil {
		return nil, err
	}

	c := &model.Comment{
		CommentID:         commentID,
		PostID:            postID,
		CommentedByUserID: userID,
		Text:              text,
		CommentedAt:       m.app.now(),
	}
	row, err := m.app.Repos.Comment.Row(c)
	if err != nil {
		return nil, err
	}
	exists := withIDs(ErrCommentAlreadyExists, "commentId", commentID)
	if err := m.app.addUnblocked(ctx, row, exists, userID, author.UserID); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteComment deletes a comment on behalf of its author or the author of
// the post.
func (m *CommentManager) DeleteComment(ctx context.Context, commentID, callerID string) error {
	c, err := m.get(ctx, commentID)
	if err != nil {
		return err
	}
	if c.CommentedByUserID != callerID {
		p, err := m.app.Repos.Post.Get(ctx, c.PostID)
		if err != nil {
			return err
		}
		if p == nil || p.PostedByUserID != callerID {
			return withIDs(ErrNotCommentOwner, "commentId", commentID)
		}
	}
	_, err = m.app.Repos.Comment.Delete(ctx, commentID)
	return err
}

func (m *CommentManager) get(ctx context.Context, commentID string) (*model.Comment, error) {
	c, err := m.app.Repos.Comment.Get(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, withIDs(ErrCommentNotFound, "commentId", commentID)
	}
	return c, nil
}

// ForceDelete deletes a comment on moderation grounds and charges its
// author, in one transaction.
func (m *CommentManager) ForceDelete(ctx context.Context, c *model.Comment) error {
	r := m.app.Repos
	err := store.NewTx().
		Delete(r.Comment.Key(c.CommentID), store.RowExists(), withIDs(ErrCommentNotFound, "commentId", c.CommentID)).
		Update(r.User.Key(c.CommentedByUserID), store.NewUpdate().Add(model.AttrCommentForcedDeletionCount, 1), nil,
			withIDs(ErrUserNotFound, "userId", c.CommentedByUserID)).
		Commit(ctx, m.app.Store)
	if err != nil {
		return err
	}
	m.app.Logger.Warn("comment force deleted",
		zap.String("commentId", c.CommentID),
		zap.String("postId", c.PostID),
		zap.String("userId", c.CommentedByUserID),
		zap.Int64("flagCount", c.FlagCount),
	)
	m.app.Metrics.Count(metrics.ForcedRemovals, 1)
	return nil
}

func (m *CommentManager) target(c *model.Comment) *Target {
	return &Target{
		Kind:      schema.KindComment,
		ID:        c.CommentID,
		Key:       m.app.Repos.Comment.Key(c.CommentID),
		AuthorID:  c.CommentedByUserID,
		PostID:    c.PostID,
		Completed: true,
	}
}

// FlagTarget implements Flaggable.
func (m *CommentManager) FlagTarget(ctx context.Context, commentID string) (*Target, error) {
	c, err := m.app.Repos.Comment.Get(ctx, commentID)
	if err != nil || c == nil {
		return nil, err
	}
	return m.target(c), nil
}

// ViewTarget implements Viewable.
func (m *CommentManager) ViewTarget(ctx context.Context, commentID string) (*Target, error) {
	return m.FlagTarget(ctx, commentID)
}

// ForceRemoveIfMet implements Flaggable by deleting the comment.
func (m *CommentManager) ForceRemoveIfMet(ctx context.Context, commentID string) (bool, error) {
	c, err := m.app.Repos.Comment.Get(ctx, commentID)
	if err != nil || c == nil {
		return false, err
	}
	p, err := m.app.Repos.Post.Get(ctx, c.PostID)
	if err != nil {
		return false, err
	}
	if !m.app.Moderation.IsCommentForceDeleteMet(c, p) {
		return false, nil
	}
	if err := m.ForceDelete(ctx, c); err != nil {
		if errors.Is(err, ErrCommentNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
