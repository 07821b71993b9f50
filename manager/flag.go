package manager

import (
	"context"

	"go.uber.org/zap"

	"github.com/realsocial/real/internal/metrics"
	"github.com/realsocial/real/model"
	"github.com/realsocial/real/repo"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// FlagManager records users' reports of posts, comments, chats and
// messages. Counting flags and acting on them happens in the reactor.
type FlagManager struct {
	app *App
}

func (m *FlagManager) resolve(ctx context.Context, kind schema.Kind, itemID string) (Flaggable, *Target, error) {
	f, ok := m.app.Flaggable(kind)
	if !ok {
		return nil, nil, withIDs(ErrNotFlaggable, "itemKind", string(kind))
	}
	t, err := f.FlagTarget(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	if t == nil || !t.Completed {
		return nil, nil, withIDs(ErrItemNotFound, "itemKind", string(kind), "itemId", itemID)
	}
	return f, t, nil
}

// Flag reports an item on behalf of userID. Users can flag only what they
// can see and never their own content.
func (m *FlagManager) Flag(ctx context.Context, userID string, kind schema.Kind, itemID string) (*model.Flag, error) {
	if _, err := m.app.Users.GetActive(ctx, userID); err != nil {
		return nil, err
	}
	_, t, err := m.resolve(ctx, kind, itemID)
	if err != nil {
		return nil, err
	}
	if t.AuthorID == userID {
		return nil, withIDs(ErrCannotFlagOwn, "itemId", itemID)
	}
	if t.AuthorID != "" {
		author, err := m.app.Users.Get(ctx, t.AuthorID)
		if err != nil {
			return nil, err
		}
		if err := m.app.canSee(ctx, userID, author); err != nil {
			return nil, err
		}
	}
	if t.ChatID != "" {
		mem, err := m.app.Repos.Chat.GetMember(ctx, t.ChatID, userID)
		if err != nil {
			return nil, err
		}
		if mem == nil {
			return nil, withIDs(ErrNotChatMember, "chatId", t.ChatID)
		}
	}

	f := &model.Flag{
		ItemKind:         string(kind),
		ItemID:           itemID,
		ItemAuthorUserID: t.AuthorID,
		FlaggerUserID:    userID,
		CreatedAt:        m.app.now(),
	}
	row, err := m.app.Repos.Flag.Row(t.Key, f)
	if err != nil {
		return nil, err
	}
	exists := withIDs(ErrAlreadyFlagged, "itemId", itemID)
	if t.AuthorID == "" {
		err = store.NewTx().Add(row, exists).Commit(ctx, m.app.Store)
	} else {
		err = m.app.addUnblocked(ctx, row, exists, userID, t.AuthorID)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Unflag withdraws userID's flag on an item.
func (m *FlagManager) Unflag(ctx context.Context, userID string, kind schema.Kind, itemID string) error {
	_, t, err := m.resolve(ctx, kind, itemID)
	if err != nil {
		return err
	}
	f, err := m.app.Repos.Flag.Delete(ctx, t.Key, userID)
	if err != nil {
		return err
	}
	if f == nil {
		return withIDs(ErrNotFlagged, "itemId", itemID)
	}
	return nil
}

// OnFlagged handles a new flag row: alerts moderators at the threshold and
// removes the item once the flags meet the criteria for its kind. The
// item's flag count must already include the flag.
func (m *FlagManager) OnFlagged(ctx context.Context, f *model.Flag, flagCount int64) error {
	if m.app.Moderation.ShouldAlert(flagCount) {
		m.app.Logger.Warn("flag threshold reached",
			zap.String("itemKind", f.ItemKind),
			zap.String("itemId", f.ItemID),
			zap.String("authorUserId", f.ItemAuthorUserID),
			zap.Int64("flagCount", flagCount),
		)
		m.app.Metrics.Count(metrics.FlagAlerts, 1)
	}
	fl, ok := m.app.Flaggable(schema.Kind(f.ItemKind))
	if !ok {
		return nil
	}
	_, err := fl.ForceRemoveIfMet(ctx, f.ItemID)
	return err
}

// UnflagAllOfAuthor withdraws every flag flaggerID put on content of
// authorID.
func (m *FlagManager) UnflagAllOfAuthor(ctx context.Context, flaggerID, authorID string) error {
	var ks []store.Key
	for row, err := range m.app.Repos.Flag.ByUser(ctx, flaggerID) {
		if err != nil {
			return err
		}
		f, err := repo.Decode[model.Flag](row)
		if err != nil {
			return err
		}
		if f.ItemAuthorUserID == authorID {
			ks = append(ks, row.Key())
		}
	}
	return m.app.Store.BatchWrite(ctx, nil, ks)
}

// DeleteAllOfItem removes the flags on the item at itemKey.
func (m *FlagManager) DeleteAllOfItem(ctx context.Context, itemKey store.Key) error {
	ks, err := repo.Collect(m.app.Repos.Flag.KeysByItem(ctx, itemKey))
	if err != nil {
		return err
	}
	return m.app.Store.BatchWrite(ctx, nil, ks)
}
