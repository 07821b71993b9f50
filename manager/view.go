package manager

import (
	"context"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/realsocial/real/model"
	"github.com/realsocial/real/repo"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// ViewManager records what users have seen. Counters and trending follow
// from the view rows in the reactor.
type ViewManager struct {
	app *App
}

// RecordViews records that userID viewed each of ids, once per occurrence.
// Items that do not exist or cannot be viewed are skipped, as are
// authors' views of their own comments and messages. A zero at means now.
func (m *ViewManager) RecordViews(ctx context.Context, userID string, kind schema.Kind, ids []string, at time.Time) error {
	v, ok := m.app.Viewable(kind)
	if !ok {
		return withIDs(ErrNotViewable, "itemKind", string(kind))
	}
	if _, err := m.app.Users.GetActive(ctx, userID); err != nil {
		return err
	}
	if at.IsZero() {
		at = m.app.now()
	} else {
		at = at.UTC().Truncate(time.Microsecond)
	}

	counts := lo.CountValues(ids)
	keys := lo.Keys(counts)
	slices.Sort(keys)
	for _, id := range keys {
		t, err := v.ViewTarget(ctx, id)
		if err != nil {
			return err
		}
		if t == nil {
			continue
		}
		if err := m.record(ctx, userID, t, int64(counts[id]), at); err != nil {
			return err
		}
	}
	return nil
}

func (m *ViewManager) record(ctx context.Context, userID string, t *Target, n int64, at time.Time) error {
	if !t.Completed {
		return nil
	}
	if t.AuthorID == userID && t.Kind != schema.KindPost {
		return nil
	}
	if t.ChatID != "" {
		mem, err := m.app.Repos.Chat.GetMember(ctx, t.ChatID, userID)
		if err != nil || mem == nil {
			return err
		}
	}
	err := m.app.Repos.View.Record(ctx, t.Key, &model.View{
		ItemKind:      string(t.Kind),
		ItemID:        t.ID,
		UserID:        userID,
		FirstViewedAt: at,
		LastViewedAt:  at,
		ViewCount:     n,
	})
	if err != nil || t.OriginalPostID == "" || t.OriginalPostID == t.ID {
		return err
	}
	orig, err := m.app.Posts.ViewTarget(ctx, t.OriginalPostID)
	if err != nil || orig == nil {
		return err
	}
	return m.record(ctx, userID, orig, n, at)
}

// HasViewed reports whether userID ever viewed the item.
func (m *ViewManager) HasViewed(ctx context.Context, userID string, kind schema.Kind, id string) (bool, error) {
	v, ok := m.app.Viewable(kind)
	if !ok {
		return false, withIDs(ErrNotViewable, "itemKind", string(kind))
	}
	t, err := v.ViewTarget(ctx, id)
	if err != nil || t == nil {
		return false, err
	}
	view, err := m.app.Repos.View.Get(ctx, t.Key, userID)
	return view != nil, err
}

// DeleteAllOfItem removes the view records of the item at itemKey.
func (m *ViewManager) DeleteAllOfItem(ctx context.Context, itemKey store.Key) error {
	ks, err := repo.Collect(m.app.Repos.View.KeysByItem(ctx, itemKey))
	if err != nil {
		return err
	}
	return m.app.Store.BatchWrite(ctx, nil, ks)
}
