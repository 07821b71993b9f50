package reactor

import (
	"context"
	"fmt"

	"github.com/realsocial/real/model"
	"github.com/realsocial/real/schema"
)

const searchKindUser = "user"

// indexUser keeps the user's search document current.
func (h *handlers) indexUser(ctx context.Context, e *Event) error {
	search := h.app.Collab.Search
	if search == nil {
		return nil
	}
	_, u, err := images[model.User](e)
	if err != nil || u == nil {
		return err
	}
	doc := map[string]any{
		"userId":   u.UserID,
		"username": u.Username,
	}
	if u.FullName != "" {
		doc["fullName"] = u.FullName
	}
	if u.PhotoPostID != "" {
		doc["photoPostId"] = u.PhotoPostID
	}
	if err := search.Put(ctx, searchKindUser, u.UserID, doc); err != nil {
		return fmt.Errorf("index user %s: %w", u.UserID, err)
	}
	return nil
}

// userDeleted drops what outlives the profile row outside the table's
// key space.
func (h *handlers) userDeleted(ctx context.Context, e *Event) error {
	userID := e.Ref.ID()
	if search := h.app.Collab.Search; search != nil {
		if err := search.Delete(ctx, searchKindUser, userID); err != nil {
			return fmt.Errorf("unindex user %s: %w", userID, err)
		}
	}
	if err := h.app.Trending.Delete(ctx, userID); err != nil {
		return err
	}
	return h.deleteItemChildren(ctx, e.Key)
}

func (h *handlers) forceDisableUser(ctx context.Context, e *Event) error {
	_, u, err := images[model.User](e)
	if err != nil || u == nil {
		return err
	}
	_, err = h.app.Users.ForceDisableIfCriteriaMet(ctx, u)
	return err
}

func (h *handlers) refreshChatCard(ctx context.Context, e *Event) error {
	_, u, err := images[model.User](e)
	if err != nil || u == nil {
		return err
	}
	return h.app.Cards.RefreshChatCard(ctx, u)
}

func (h *handlers) refreshFollowersCard(ctx context.Context, e *Event) error {
	_, u, err := images[model.User](e)
	if err != nil || u == nil {
		return err
	}
	return h.app.Cards.RefreshRequestedFollowersCard(ctx, u)
}

// subscriptionChanged recomputes the owner's subscription level.
func (h *handlers) subscriptionChanged(ctx context.Context, e *Event) error {
	old, cur, err := images[model.AppStoreSub](e)
	if err != nil {
		return err
	}
	sub := cur
	if sub == nil {
		sub = old
	}
	if sub == nil {
		return nil
	}
	return h.soft(h.app.AppStore.SyncUser(ctx, sub.UserID), "sync subscription level", schema.UserKey(sub.UserID))
}
