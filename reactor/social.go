package reactor

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/realsocial/real/manager"
	"github.com/realsocial/real/model"
	"github.com/realsocial/real/repo"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// commentAdded counts a new comment and, when someone other than the post
// author wrote it, marks the post as having unviewed comments.
func (h *handlers) commentAdded(ctx context.Context, e *Event) error {
	_, c, err := images[model.Comment](e)
	if err != nil || c == nil {
		return err
	}
	postKey := schema.PostKey(c.PostID)
	err = h.adds(ctx,
		step(postKey, model.AttrCommentCount, 1),
		step(schema.UserKey(c.CommentedByUserID), model.AttrCommentCount, 1),
	)
	if err != nil {
		return err
	}

	p, err := h.app.Repos.Post.Get(ctx, c.PostID)
	if err != nil || p == nil || p.PostedByUserID == c.CommentedByUserID {
		return err
	}
	r := h.app.Repos.Post
	upd := r.SetCommentActivity(store.NewUpdate().Add(model.AttrCommentsUnviewedCount, 1), p.PostedByUserID, &c.CommentedAt)
	_, err = r.Update(ctx, c.PostID, upd, nil)
	return h.soft(err, "count unviewed comment", postKey)
}

// commentDeleted reverses commentAdded. The unviewed count only drops when
// the post author has not seen the comment yet.
func (h *handlers) commentDeleted(ctx context.Context, e *Event) error {
	c, _, err := images[model.Comment](e)
	if err != nil || c == nil {
		return err
	}
	postKey := schema.PostKey(c.PostID)
	userKey := schema.UserKey(c.CommentedByUserID)
	err = h.adds(ctx,
		step(postKey, model.AttrCommentCount, -1),
		step(userKey, model.AttrCommentCount, -1),
		step(userKey, model.AttrCommentDeletedCount, 1),
	)
	if err != nil {
		return err
	}
	if err := h.deleteItemChildren(ctx, e.Key); err != nil {
		return err
	}

	p, err := h.app.Repos.Post.Get(ctx, c.PostID)
	if err != nil || p == nil || p.PostedByUserID == c.CommentedByUserID || p.CommentsUnviewedCount == 0 {
		return err
	}
	seen, err := h.app.Repos.View.ViewedSince(ctx, postKey, p.PostedByUserID, c.CommentedAt)
	if err != nil || seen {
		return err
	}
	if err := h.add(ctx, postKey, model.AttrCommentsUnviewedCount, -1); err != nil {
		return err
	}
	if p.CommentsUnviewedCount == 1 {
		return h.resetUnviewedComments(ctx, p)
	}
	return nil
}

// flagItemKey is the key of the item a flag or view row hangs off.
func flagItemKey(e *Event) (store.Key, bool) {
	if e.Ref.Item == nil {
		return store.Key{}, false
	}
	return schema.ItemKey(e.Ref.Item.Kind, e.Ref.Item.ID())
}

// flagCount keeps the item's flag count and, on each new flag, checks
// whether the item is due for forced removal.
func (h *handlers) flagCount(ctx context.Context, e *Event) error {
	itemKey, ok := flagItemKey(e)
	if !ok {
		return nil
	}
	if e.Op() == OpDelete {
		return h.add(ctx, itemKey, model.AttrFlagCount, -1)
	}

	_, f, err := images[model.Flag](e)
	if err != nil {
		return err
	}
	row, err := h.app.Store.Update(ctx, itemKey, store.NewUpdate().Add(model.AttrFlagCount, 1), store.RowExists())
	if err != nil {
		return h.soft(err, "count flag", itemKey)
	}
	return h.app.Flags.OnFlagged(ctx, f, row.Int(model.AttrFlagCount))
}

// followStatus applies a follow transition to both users' counters and to
// the follower's feed and first stories.
func (h *handlers) followStatus(ctx context.Context, e *Event) error {
	old, cur, err := images[model.Follow](e)
	if err != nil {
		return err
	}
	var from, to model.FollowStatus
	if old != nil {
		from = old.Status
	}
	if cur != nil {
		to = cur.Status
	}
	if from == to {
		return nil
	}
	f := cur
	if f == nil {
		f = old
	}
	followerKey := schema.UserKey(f.FollowerUserID)
	followedKey := schema.UserKey(f.FollowedUserID)
	following := sign(from == model.FollowFollowing, to == model.FollowFollowing)
	err = h.adds(ctx,
		step(followedKey, model.AttrFollowerCount, following),
		step(followerKey, model.AttrFollowedCount, following),
		step(followedKey, model.AttrFollowersRequestedCount, sign(from == model.FollowRequested, to == model.FollowRequested)),
	)
	if err != nil {
		return err
	}

	switch following {
	case 1:
		return h.app.Follows.OnFollowing(ctx, cur)
	case -1:
		return h.app.Follows.OnUnfollowed(ctx, f.FollowerUserID, f.FollowedUserID)
	}
	return nil
}

func (h *handlers) blockAdded(ctx context.Context, e *Event) error {
	_, b, err := images[model.Block](e)
	if err != nil || b == nil {
		return err
	}
	return h.app.Blocks.OnBlocked(ctx, b)
}

func likeCountAttr(status model.LikeStatus) string {
	if status == model.AnonymouslyLiked {
		return model.AttrAnonymousLikeCount
	}
	return model.AttrOnymousLikeCount
}

// likeCount counts a like on the post and toward its author.
func (h *handlers) likeCount(ctx context.Context, e *Event) error {
	old, cur, err := images[model.Like](e)
	if err != nil {
		return err
	}
	l, delta := cur, int64(1)
	if l == nil {
		l, delta = old, -1
	}
	return h.adds(ctx,
		step(schema.PostKey(l.PostID), likeCountAttr(l.Status), delta),
		step(schema.UserKey(l.PostedByUserID), model.AttrLikesReceivedCount, delta),
	)
}

func (h *handlers) albumCount(ctx context.Context, e *Event) error {
	old, cur, err := images[model.Album](e)
	if err != nil {
		return err
	}
	a, delta := cur, int64(1)
	if a == nil {
		a, delta = old, -1
	}
	return h.add(ctx, schema.UserKey(a.OwnedByUserID), model.AttrAlbumCount, delta)
}

// albumDeleted takes the album's posts out of it. Posts keep existing.
func (h *handlers) albumDeleted(ctx context.Context, e *Event) error {
	albumID := e.Ref.ID()
	r := h.app.Repos.Post
	posts, err := repo.Collect(r.ByAlbum(ctx, albumID))
	if err != nil {
		return err
	}
	for _, p := range posts {
		_, err := r.Update(ctx, p.PostID, r.SetAlbum(store.NewUpdate(), "", 0), store.Eq(model.AttrAlbumID, albumID))
		if err := h.soft(err, "remove post from album", r.Key(p.PostID)); err != nil {
			return err
		}
	}
	return nil
}

func (h *handlers) cardCount(ctx context.Context, e *Event) error {
	old, cur, err := images[model.Card](e)
	if err != nil {
		return err
	}
	c, delta := cur, int64(1)
	if c == nil {
		c, delta = old, -1
	}
	return h.add(ctx, schema.UserKey(c.UserID), model.AttrCardCount, delta)
}

// cardNotify pushes card changes to the owner.
func (h *handlers) cardNotify(ctx context.Context, e *Event) error {
	old, cur, err := images[model.Card](e)
	if err != nil {
		return err
	}
	var c *model.Card
	var notifyType string
	switch e.Op() {
	case OpCreate:
		c, notifyType = cur, manager.NotifyAdded
	case OpDelete:
		c, notifyType = old, manager.NotifyDeleted
	default:
		c, notifyType = cur, manager.NotifyEdited
	}
	err = h.app.Cards.Notify(ctx, c, notifyType)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if err != nil {
		// Push alerts are best effort.
		h.logger.Warn("card push failed", zap.String("cardId", c.CardID), zap.Error(err))
	}
	return nil
}
