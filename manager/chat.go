package manager

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/realsocial/real/internal/metrics"
	"github.com/realsocial/real/model"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// Attempts at a membership change racing another one.
const membershipRetries = 4

// ChatManager owns chats and their members.
type ChatManager struct {
	app *App
}

// AddDirectChat opens the one direct chat between two users, with its
// first message. The pair marker makes a second direct chat impossible.
func (m *ChatManager) AddDirectChat(ctx context.Context, userID, withUserID, chatID, messageID, text string) (*model.Chat, error) {
	if err := check(struct {
		ChatID    string `validate:"required"`
		MessageID string `validate:"required"`
		Text      string `validate:"required,max=5000"`
	}{chatID, messageID, text}); err != nil {
		return nil, err
	}
	if userID == withUserID {
		return nil, ErrCannotChatSelf
	}
	if _, err := m.app.Users.GetActive(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := m.app.Users.GetActive(ctx, withUserID); err != nil {
		return nil, err
	}
	blocked, err := m.app.Repos.Block.EitherWay(ctx, userID, withUserID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, withIDs(ErrBlocked, "userId", withUserID)
	}
	existing, err := m.app.Repos.Chat.GetDirect(ctx, userID, withUserID)
	if err != nil {
		return nil, err
	}
	if existing != "" {
		return nil, withIDs(ErrDirectChatExists, "chatId", existing)
	}

	first, second := schema.SortedPair(userID, withUserID)
	c := &model.Chat{
		ChatID:          chatID,
		Type:            model.ChatDirect,
		CreatedByUserID: userID,
		CreatedAt:       m.app.now(),
		UserIDs:         []string{first, second},
		UserCount:       2,
	}
	marker, err := m.app.Repos.Chat.DirectRow(chatID, userID, withUserID)
	if err != nil {
		return nil, err
	}
	tx, err := m.createTx(c, []string{userID, withUserID})
	if err != nil {
		return nil, err
	}
	if err := tx.Add(marker, withIDs(ErrDirectChatExists, "userId", withUserID)).Commit(ctx, m.app.Store); err != nil {
		return nil, err
	}
	if _, err := m.app.Messages.Add(ctx, userID, chatID, messageID, text); err != nil {
		return nil, err
	}
	return c, nil
}

// GroupChatInput describes a new group chat.
type GroupChatInput struct {
	ChatID  string   `validate:"required"`
	Name    string   `validate:"max=50"`
	UserIDs []string `validate:"max=100,dive,required"`
}

// AddGroupChat creates a group chat of the creator and whichever of the
// requested users exist, are active and have no block with the creator.
func (m *ChatManager) AddGroupChat(ctx context.Context, userID string, in GroupChatInput) (*model.Chat, error) {
	if err := check(in); err != nil {
		return nil, err
	}
	if _, err := m.app.Users.GetActive(ctx, userID); err != nil {
		return nil, err
	}
	members, err := m.joinable(ctx, userID, in.UserIDs, nil)
	if err != nil {
		return nil, err
	}
	members = append([]string{userID}, members...)
	c := &model.Chat{
		ChatID:          in.ChatID,
		Type:            model.ChatGroup,
		Name:            in.Name,
		CreatedByUserID: userID,
		CreatedAt:       m.app.now(),
		UserCount:       int64(len(members)),
	}
	tx, err := m.createTx(c, members)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx, m.app.Store); err != nil {
		return nil, err
	}
	return c, nil
}

func (m *ChatManager) createTx(c *model.Chat, userIDs []string) (*store.Tx, error) {
	row, err := m.app.Repos.Chat.Row(c)
	if err != nil {
		return nil, err
	}
	tx := store.NewTx().Add(row, withIDs(ErrChatAlreadyExists, "chatId", c.ChatID))
	for _, id := range userIDs {
		mr, err := m.app.Repos.Chat.MemberRow(m.member(c.ChatID, id, c.CreatedAt))
		if err != nil {
			return nil, err
		}
		tx.Add(mr, withIDs(ErrChatAlreadyExists, "chatId", c.ChatID))
	}
	return tx, nil
}

func (m *ChatManager) member(chatID, userID string, at time.Time) *model.ChatMember {
	return &model.ChatMember{
		ChatID:                chatID,
		UserID:                userID,
		JoinedAt:              at,
		LastMessageActivityAt: at,
	}
}

// joinable filters candidates down to users who may join a chat alongside
// inviterID: deduplicated, not already members, active and unblocked.
func (m *ChatManager) joinable(ctx context.Context, inviterID string, candidates []string, current []string) ([]string, error) {
	var ids []string
	for _, id := range lo.Uniq(candidates) {
		if id == inviterID || slices.Contains(current, id) {
			continue
		}
		u, err := m.app.Repos.User.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if u == nil || !u.Active() {
			continue
		}
		blocked, err := m.app.Repos.Block.EitherWay(ctx, inviterID, id)
		if err != nil {
			return nil, err
		}
		if !blocked {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Get returns a chat or ErrChatNotFound.
func (m *ChatManager) Get(ctx context.Context, chatID string) (*model.Chat, error) {
	c, err := m.app.Repos.Chat.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, withIDs(ErrChatNotFound, "chatId", chatID)
	}
	return c, nil
}

// getAsMember returns a chat of which userID is a member, optionally
// requiring its type.
func (m *ChatManager) getAsMember(ctx context.Context, userID, chatID string, typ model.ChatType) (*model.Chat, error) {
	c, err := m.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if typ != "" && c.Type != typ {
		return nil, withIDs(ErrChatType, "chatId", chatID, "chatType", string(c.Type))
	}
	mem, err := m.app.Repos.Chat.GetMember(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if mem == nil {
		return nil, withIDs(ErrNotChatMember, "chatId", chatID)
	}
	return c, nil
}

// EditGroupChat renames a group chat. An empty name removes it.
func (m *ChatManager) EditGroupChat(ctx context.Context, userID, chatID, name string) (*model.Chat, error) {
	if err := check(struct {
		Name string `validate:"max=50"`
	}{name}); err != nil {
		return nil, err
	}
	if _, err := m.getAsMember(ctx, userID, chatID, model.ChatGroup); err != nil {
		return nil, err
	}
	c, err := m.app.Repos.Chat.Update(ctx, chatID, store.NewUpdate().SetOrRemove(model.AttrName, name), nil)
	if err != nil {
		return nil, err
	}
	text := fmt.Sprintf("%s deleted the name of the group", m.mention(ctx, userID))
	if name != "" {
		text = fmt.Sprintf("%s changed the name of the group to %q", m.mention(ctx, userID), name)
	}
	if _, err := m.app.Messages.AddSystem(ctx, chatID, text); err != nil {
		return nil, err
	}
	return c, nil
}

// AddToGroupChat adds users to a group chat the caller belongs to. Users who
// cannot join are skipped.
func (m *ChatManager) AddToGroupChat(ctx context.Context, userID, chatID string, userIDs []string) (*model.Chat, error) {
	var added []string
	err := m.retry(ctx, func() error {
		c, err := m.getAsMember(ctx, userID, chatID, model.ChatGroup)
		if err != nil {
			return err
		}
		current, err := m.memberIDs(ctx, chatID)
		if err != nil {
			return err
		}
		added, err = m.joinable(ctx, userID, userIDs, current)
		if err != nil || len(added) == 0 {
			return err
		}
		now := m.app.now()
		tx := m.countTx(c, int64(len(added)))
		for _, id := range added {
			row, err := m.app.Repos.Chat.MemberRow(m.member(chatID, id, now))
			if err != nil {
				return err
			}
			tx.Add(row, ErrChatUserCountMismatch)
		}
		return tx.Commit(ctx, m.app.Store)
	})
	if err != nil {
		return nil, err
	}
	if len(added) > 0 {
		names := lo.Map(added, func(id string, _ int) string { return m.mention(ctx, id) })
		text := fmt.Sprintf("%s added %s to the group", m.mention(ctx, userID), strings.Join(names, ", "))
		if _, err := m.app.Messages.AddSystem(ctx, chatID, text); err != nil {
			return nil, err
		}
	}
	return m.Get(ctx, chatID)
}

// LeaveGroupChat removes the caller from a group chat. The last member to
// leave takes the chat with them.
func (m *ChatManager) LeaveGroupChat(ctx context.Context, userID, chatID string) error {
	var remaining int64
	err := m.retry(ctx, func() error {
		c, err := m.getAsMember(ctx, userID, chatID, model.ChatGroup)
		if err != nil {
			return err
		}
		remaining = c.UserCount - 1
		return m.countTx(c, -1).
			Delete(m.app.Repos.Chat.MemberKey(chatID, userID), store.RowExists(), ErrChatUserCountMismatch).
			Commit(ctx, m.app.Store)
	})
	if err != nil || remaining <= 0 {
		return err
	}
	_, err = m.app.Messages.AddSystem(ctx, chatID, m.mention(ctx, userID)+" left the group")
	return err
}

// countTx starts a membership change guarded on the user count it was
// computed from.
func (m *ChatManager) countTx(c *model.Chat, delta int64) *store.Tx {
	return store.NewTx().Update(m.app.Repos.Chat.Key(c.ChatID),
		store.NewUpdate().Add(model.AttrUserCount, delta),
		store.Eq(model.AttrUserCount, c.UserCount),
		withIDs(ErrChatUserCountMismatch, "chatId", c.ChatID))
}

// retry reruns a membership change that lost a race on the user count.
func (m *ChatManager) retry(ctx context.Context, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	return backoff.Retry(func() error {
		err := fn()
		if err != nil && !errors.Is(err, ErrChatUserCountMismatch) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, membershipRetries), ctx))
}

func (m *ChatManager) memberIDs(ctx context.Context, chatID string) ([]string, error) {
	var ids []string
	for mem, err := range m.app.Repos.Chat.Members(ctx, chatID) {
		if err != nil {
			return nil, err
		}
		ids = append(ids, mem.UserID)
	}
	return ids, nil
}

// mention names a user in system messages, falling back to the id.
func (m *ChatManager) mention(ctx context.Context, userID string) string {
	u, err := m.app.Repos.User.Get(ctx, userID)
	if err != nil || u == nil {
		return "@" + userID
	}
	return "@" + u.Username
}

// DeleteDirectChat deletes a direct chat on behalf of either member.
func (m *ChatManager) DeleteDirectChat(ctx context.Context, userID, chatID string) error {
	if _, err := m.getAsMember(ctx, userID, chatID, model.ChatDirect); err != nil {
		return err
	}
	_, err := m.app.Repos.Chat.Delete(ctx, chatID)
	return err
}

// DeleteDirectChatBetween deletes the direct chat of two users, if any.
func (m *ChatManager) DeleteDirectChatBetween(ctx context.Context, userA, userB string) error {
	chatID, err := m.app.Repos.Chat.GetDirect(ctx, userA, userB)
	if err != nil || chatID == "" {
		return err
	}
	_, err = m.app.Repos.Chat.Delete(ctx, chatID)
	return err
}

// leaveOrDelete takes userID out of a chat: direct chats are deleted, group
// chats are left.
func (m *ChatManager) leaveOrDelete(ctx context.Context, userID, chatID string) error {
	c, err := m.app.Repos.Chat.Get(ctx, chatID)
	if err != nil || c == nil {
		return err
	}
	if c.Type == model.ChatDirect {
		_, err := m.app.Repos.Chat.Delete(ctx, chatID)
		return err
	}
	err = m.LeaveGroupChat(ctx, userID, chatID)
	if errors.Is(err, ErrNotChatMember) || errors.Is(err, ErrChatNotFound) {
		return nil
	}
	return err
}

// ForceDelete deletes a chat on moderation grounds.
func (m *ChatManager) ForceDelete(ctx context.Context, c *model.Chat) error {
	if _, err := m.app.Repos.Chat.Delete(ctx, c.ChatID); err != nil {
		return err
	}
	m.app.Logger.Warn("chat force deleted",
		zap.String("chatId", c.ChatID),
		zap.Int64("flagCount", c.FlagCount),
		zap.Int64("userCount", c.UserCount),
	)
	m.app.Metrics.Count(metrics.ForcedRemovals, 1)
	return nil
}

// FlagTarget implements Flaggable. Chats have no single author, so only
// membership is checked.
func (m *ChatManager) FlagTarget(ctx context.Context, chatID string) (*Target, error) {
	c, err := m.app.Repos.Chat.Get(ctx, chatID)
	if err != nil || c == nil {
		return nil, err
	}
	return &Target{
		Kind:      schema.KindChat,
		ID:        chatID,
		Key:       m.app.Repos.Chat.Key(chatID),
		ChatID:    chatID,
		Completed: true,
	}, nil
}

// ViewTarget implements Viewable.
func (m *ChatManager) ViewTarget(ctx context.Context, chatID string) (*Target, error) {
	return m.FlagTarget(ctx, chatID)
}

// ForceRemoveIfMet implements Flaggable by deleting the chat.
func (m *ChatManager) ForceRemoveIfMet(ctx context.Context, chatID string) (bool, error) {
	c, err := m.app.Repos.Chat.Get(ctx, chatID)
	if err != nil || c == nil {
		return false, err
	}
	if !m.app.Moderation.IsChatForceDeleteMet(c.FlagCount, c.UserCount) {
		return false, nil
	}
	return true, m.ForceDelete(ctx, c)
}
