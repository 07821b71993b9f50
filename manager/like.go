package manager

import (
	"context"

	"github.com/realsocial/real/model"
	"github.com/realsocial/real/repo"
)

// LikeManager owns likes on posts.
type LikeManager struct {
	app *App
}

// Like likes a completed post onymously or anonymously.
func (m *LikeManager) Like(ctx context.Context, userID, postID string, status model.LikeStatus) (*model.Like, error) {
	if status != model.OnymouslyLiked && status != model.AnonymouslyLiked {
		return nil, invalidPost("unknown like status")
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
	author, err := m.app.Users.Get(ctx, p.PostedByUserID)
	if err != nil {
		return nil, err
	}
	if p.LikesDisabled || author.LikesDisabled {
		return nil, withIDs(ErrLikesDisabled, "postId", postID)
	}
	if err := m.app.canSee(ctx, userID, author); err != nil {
		return nil, err
	}

	l := &model.Like{
		LikedByUserID:  userID,
		PostID:         postID,
		PostedByUserID: p.PostedByUserID,
		Status:         status,
		LikedAt:        m.app.now(),
	}
	row, err := m.app.Repos.Like.Row(l)
	if err != nil {
		return nil, err
	}
	if err := m.app.addUnblocked(ctx, row, withIDs(ErrAlreadyLiked, "postId", postID), userID, p.PostedByUserID); err != nil {
		return nil, err
	}
	return l, nil
}

// Dislike takes back a like.
func (m *LikeManager) Dislike(ctx context.Context, userID, postID string) error {
	l, err := m.app.Repos.Like.Delete(ctx, userID, postID)
	if err != nil {
		return err
	}
	if l == nil {
		return withIDs(ErrNotLiked, "postId", postID)
	}
	return nil
}

// DislikeAllByUserOfAuthor removes userID's likes on posts of authorID.
func (m *LikeManager) DislikeAllByUserOfAuthor(ctx context.Context, userID, authorID string) error {
	likes, err := repo.Collect(m.app.Repos.Like.ByUserOfAuthor(ctx, userID, authorID))
	if err != nil {
		return err
	}
	for _, l := range likes {
		if _, err := m.app.Repos.Like.Delete(ctx, userID, l.PostID); err != nil {
			return err
		}
	}
	return nil
}

// DislikeAllOfPost removes every like on a post.
func (m *LikeManager) DislikeAllOfPost(ctx context.Context, postID string) error {
	likes, err := repo.Collect(m.app.Repos.Like.ByPost(ctx, postID))
	if err != nil {
		return err
	}
	for _, l := range likes {
		if _, err := m.app.Repos.Like.Delete(ctx, l.LikedByUserID, postID); err != nil {
			return err
		}
	}
	return nil
}
