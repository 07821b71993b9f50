package reactor

import (
	"context"

	"github.com/realsocial/real/model"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// postViewed counts the first view of a post by someone other than its
// author and feeds every first view of a completed post to trending. The
// author's own views also mark the post's comments as seen.
func (h *handlers) postViewed(ctx context.Context, e *Event) error {
	_, v, err := images[model.View](e)
	if err != nil || v == nil {
		return err
	}
	p, err := h.app.Repos.Post.Get(ctx, v.ItemID)
	if err != nil || p == nil {
		return err
	}
	own := p.PostedByUserID == v.UserID
	if e.Op() == OpCreate {
		if !own {
			err = h.adds(ctx,
				step(schema.PostKey(p.PostID), model.AttrViewedByCount, 1),
				step(schema.UserKey(p.PostedByUserID), model.AttrPostViewedByCount, 1),
			)
			if err != nil {
				return err
			}
		}
		if err := h.trend(ctx, p); err != nil {
			return err
		}
	}
	if own {
		return h.app.Posts.ResetCommentActivity(ctx, p)
	}
	return nil
}

func (h *handlers) trend(ctx context.Context, p *model.Post) error {
	if p.Status != model.PostCompleted {
		return nil
	}
	if err := h.app.Trending.Increment(ctx, model.TrendingPost, p.PostID, 1); err != nil {
		return err
	}
	return h.app.Trending.Increment(ctx, model.TrendingUser, p.PostedByUserID, 1)
}

// chatViewed recounts the viewer's unviewed messages from the view time,
// so a redelivered or late view converges on the same count.
func (h *handlers) chatViewed(ctx context.Context, e *Event) error {
	_, v, err := images[model.View](e)
	if err != nil || v == nil {
		return err
	}
	r := h.app.Repos.Chat
	m, err := r.GetMember(ctx, v.ItemID, v.UserID)
	if err != nil || m == nil {
		return err
	}
	if m.LastViewedAt != nil && m.LastViewedAt.After(v.LastViewedAt) {
		return nil
	}

	var unviewed int64
	for msg, err := range h.app.Repos.ChatMessage.ByChatSince(ctx, v.ItemID, v.LastViewedAt) {
		if err != nil {
			return err
		}
		if msg.AuthorUserID != v.UserID && msg.CreatedAt.After(v.LastViewedAt) {
			unviewed++
		}
	}
	upd := store.NewUpdate().
		Set(model.AttrMessagesUnviewedCount, unviewed).
		Set(model.AttrLastViewedAt, v.LastViewedAt)
	cond := store.Or(store.NotExists(model.AttrLastViewedAt), store.Le(model.AttrLastViewedAt, v.LastViewedAt))
	_, err = r.UpdateMember(ctx, v.ItemID, v.UserID, upd, cond)
	return h.soft(err, "mark chat viewed", r.MemberKey(v.ItemID, v.UserID))
}

// chatMessageViewed treats viewing a message as viewing its chat at that
// time.
func (h *handlers) chatMessageViewed(ctx context.Context, e *Event) error {
	_, v, err := images[model.View](e)
	if err != nil || v == nil {
		return err
	}
	msg, err := h.app.Repos.ChatMessage.Get(ctx, v.ItemID)
	if err != nil || msg == nil {
		return err
	}
	m, err := h.app.Repos.Chat.GetMember(ctx, msg.ChatID, v.UserID)
	if err != nil || m == nil {
		return err
	}
	if m.LastViewedAt != nil && !m.LastViewedAt.Before(v.LastViewedAt) {
		return nil
	}
	return h.app.Repos.View.Record(ctx, h.app.Repos.Chat.Key(msg.ChatID), &model.View{
		ItemKind:      string(schema.KindChat),
		ItemID:        msg.ChatID,
		UserID:        v.UserID,
		FirstViewedAt: v.LastViewedAt,
		LastViewedAt:  v.LastViewedAt,
		ViewCount:     1,
	})
}
