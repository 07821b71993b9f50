package reactor

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/realsocial/real/model"
	"github.com/realsocial/real/repo"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

func statusOf(p *model.Post) model.PostStatus {
	if p == nil {
		return ""
	}
	return p.Status
}

// postStatus applies a status transition to the author's counters, the
// feeds and the followers' first stories. Only completed posts count and
// appear in feeds.
func (h *handlers) postStatus(ctx context.Context, e *Event) error {
	old, cur, err := images[model.Post](e)
	if err != nil {
		return err
	}
	from, to := statusOf(old), statusOf(cur)
	if from == to {
		return nil
	}
	p := cur
	if p == nil {
		p = old
	}
	userKey := schema.UserKey(p.PostedByUserID)

	var deleted int64
	if e.Op() == OpDelete {
		deleted = 1
	}
	err = h.adds(ctx,
		step(userKey, model.AttrPostCount, sign(from == model.PostCompleted, to == model.PostCompleted)),
		step(userKey, model.AttrPostArchivedCount, sign(from == model.PostArchived, to == model.PostArchived)),
		step(userKey, model.AttrPostDeletedCount, deleted),
	)
	if err != nil {
		return err
	}

	switch {
	case to == model.PostCompleted:
		if err := h.app.Posts.FanOutToFeeds(ctx, cur); err != nil {
			return fmt.Errorf("fan out post %s: %w", p.PostID, err)
		}
	case from == model.PostCompleted:
		if err := h.app.Posts.RemoveFromFeeds(ctx, p.PostID); err != nil {
			return fmt.Errorf("remove post %s from feeds: %w", p.PostID, err)
		}
	default:
		return nil
	}
	if (old != nil && old.IsStory()) || (cur != nil && cur.IsStory()) {
		return h.app.Follows.RefreshFirstStory(ctx, p.PostedByUserID)
	}
	return nil
}

// postStory repoints first stories when a completed post's expiry moves.
func (h *handlers) postStory(ctx context.Context, e *Event) error {
	_, cur, err := images[model.Post](e)
	if err != nil || cur == nil || cur.Status != model.PostCompleted {
		return err
	}
	return h.app.Follows.RefreshFirstStory(ctx, cur.PostedByUserID)
}

// albumOf is the album a post counts toward: completed posts only.
func albumOf(p *model.Post) string {
	if p == nil || p.Status != model.PostCompleted {
		return ""
	}
	return p.AlbumID
}

// postAlbum keeps album post counts and cover art in step with the posts
// that count toward them.
func (h *handlers) postAlbum(ctx context.Context, e *Event) error {
	old, cur, err := images[model.Post](e)
	if err != nil {
		return err
	}
	from, to := albumOf(old), albumOf(cur)
	if from == "" && to == "" {
		return nil
	}
	if from != to {
		if from != "" {
			if err := h.add(ctx, schema.AlbumKey(from), model.AttrPostCount, -1); err != nil {
				return err
			}
		}
		if to != "" {
			if err := h.add(ctx, schema.AlbumKey(to), model.AttrPostCount, 1); err != nil {
				return err
			}
		}
	}
	for _, albumID := range lo.Uniq(lo.Without([]string{from, to}, "")) {
		if err := h.app.Albums.RefreshArtHash(ctx, albumID); err != nil {
			return fmt.Errorf("refresh art of album %s: %w", albumID, err)
		}
	}
	return nil
}

func (h *handlers) postCommentCard(ctx context.Context, e *Event) error {
	_, cur, err := images[model.Post](e)
	if err != nil || cur == nil {
		return err
	}
	return h.app.Cards.RefreshCommentCard(ctx, cur)
}

// postDeleted removes everything hanging off a deleted post.
func (h *handlers) postDeleted(ctx context.Context, e *Event) error {
	p, _, err := images[model.Post](e)
	if err != nil || p == nil {
		return err
	}
	r := h.app.Repos

	// 1. Comments, whose own handlers fix up the commenters' counters.
	comments, err := repo.Collect(r.Comment.ByPost(ctx, p.PostID))
	if err != nil {
		return err
	}
	for _, c := range comments {
		if _, err := r.Comment.Delete(ctx, c.CommentID); err != nil {
			return fmt.Errorf("delete comment %s: %w", c.CommentID, err)
		}
	}

	// 2. Likes, flags and views.
	if err := h.app.Likes.DislikeAllOfPost(ctx, p.PostID); err != nil {
		return err
	}
	if err := h.deleteItemChildren(ctx, e.Key); err != nil {
		return err
	}

	// 3. Derived rows: trending, image, feeds and cards.
	if err := h.app.Trending.Delete(ctx, p.PostID); err != nil {
		return err
	}
	if err := r.Post.DeleteImage(ctx, p.PostID); err != nil {
		return err
	}
	if err := h.app.Posts.RemoveFromFeeds(ctx, p.PostID); err != nil {
		return err
	}
	cards, err := repo.Collect(r.Card.ByPost(ctx, p.PostID))
	if err != nil {
		return err
	}
	for _, c := range cards {
		if _, err := r.Card.Delete(ctx, c.CardID); err != nil {
			return fmt.Errorf("delete card %s: %w", c.CardID, err)
		}
	}

	// 4. Stored media.
	return h.app.Posts.DeleteMedia(ctx, p)
}

// resetUnviewedComments clears the post's unviewed comment activity once
// nothing is left unviewed.
func (h *handlers) resetUnviewedComments(ctx context.Context, p *model.Post) error {
	r := h.app.Repos.Post
	upd := r.SetCommentActivity(store.NewUpdate(), p.PostedByUserID, nil)
	_, err := r.Update(ctx, p.PostID, upd, store.And(
		store.Or(store.NotExists(model.AttrCommentsUnviewedCount), store.Eq(model.AttrCommentsUnviewedCount, 0)),
		store.Exists(model.AttrLastUnviewedCommentAt),
	))
	return h.soft(err, "reset comment activity", r.Key(p.PostID))
}
