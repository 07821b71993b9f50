package manager

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/realsocial/real/internal/metrics"
	"github.com/realsocial/real/model"
	"github.com/realsocial/real/repo"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// ChatMessageManager owns messages in chats.
type ChatMessageManager struct {
	app *App
}

type messageText struct {
	Text string `validate:"required,max=5000"`
}

// Add posts a message to a chat the author belongs to. Members of a direct
// chat that have since blocked each other cannot message.
func (m *ChatMessageManager) Add(ctx context.Context, userID, chatID, messageID, text string) (*model.ChatMessage, error) {
	if err := check(struct {
		MessageID string `validate:"required"`
		Text      string `validate:"required,max=5000"`
	}{messageID, text}); err != nil {
		return nil, err
	}
	if _, err := m.app.Users.GetActive(ctx, userID); err != nil {
		return nil, err
	}
	c, err := m.app.Chats.getAsMember(ctx, userID, chatID, "")
	if err != nil {
		return nil, err
	}
	if c.Type == model.ChatDirect {
		for _, other := range c.UserIDs {
			if other == userID {
				continue
			}
			blocked, err := m.app.Repos.Block.EitherWay(ctx, userID, other)
			if err != nil {
				return nil, err
			}
			if blocked {
				return nil, withIDs(ErrBlocked, "userId", other)
			}
		}
	}
	return m.add(ctx, &model.ChatMessage{
		MessageID:    messageID,
		ChatID:       chatID,
		AuthorUserID: userID,
		Text:         text,
		CreatedAt:    m.app.now(),
	})
}

// AddSystem posts a message with no author, such as a membership notice.
func (m *ChatMessageManager) AddSystem(ctx context.Context, chatID, text string) (*model.ChatMessage, error) {
	return m.add(ctx, &model.ChatMessage{
		MessageID: m.app.NewID(),
		ChatID:    chatID,
		Text:      text,
		CreatedAt: m.app.now(),
	})
}

func (m *ChatMessageManager) add(ctx context.Context, msg *model.ChatMessage) (*model.ChatMessage, error) {
	err := m.app.Repos.ChatMessage.Add(ctx, msg)
	if errors.Is(err, repo.ErrChatMessageAlreadyExists) {
		return nil, withIDs(ErrChatMessageAlreadyExists, "messageId", msg.MessageID)
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// Get returns a message or ErrChatMessageNotFound.
func (m *ChatMessageManager) Get(ctx context.Context, messageID string) (*model.ChatMessage, error) {
	msg, err := m.app.Repos.ChatMessage.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, withIDs(ErrChatMessageNotFound, "messageId", messageID)
	}
	return msg, nil
}

func (m *ChatMessageManager) getOwned(ctx context.Context, userID, messageID string) (*model.ChatMessage, error) {
	msg, err := m.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.AuthorUserID != userID {
		return nil, withIDs(ErrNotMessageAuthor, "messageId", messageID)
	}
	return msg, nil
}

// Edit replaces the text of the author's own message.
func (m *ChatMessageManager) Edit(ctx context.Context, userID, messageID, text string) (*model.ChatMessage, error) {
	if err := check(messageText{text}); err != nil {
		return nil, err
	}
	if _, err := m.getOwned(ctx, userID, messageID); err != nil {
		return nil, err
	}
	upd := store.NewUpdate().
		Set(model.AttrText, text).
		Set(model.AttrLastEditedAt, m.app.now())
	return m.app.Repos.ChatMessage.Update(ctx, messageID, upd, nil)
}

// Delete removes the author's own message and counts the deletion against
// the author, in one transaction.
func (m *ChatMessageManager) Delete(ctx context.Context, userID, messageID string) error {
	msg, err := m.getOwned(ctx, userID, messageID)
	if err != nil {
		return err
	}
	return m.deleteCounted(ctx, msg, model.AttrChatMessagesDeletionCount)
}

// ForceDelete removes a message on moderation grounds and charges its
// author.
func (m *ChatMessageManager) ForceDelete(ctx context.Context, msg *model.ChatMessage) error {
	if err := m.deleteCounted(ctx, msg, model.AttrChatMessagesForcedDeletionCount); err != nil {
		return err
	}
	m.app.Logger.Warn("chat message force deleted",
		zap.String("messageId", msg.MessageID),
		zap.String("chatId", msg.ChatID),
		zap.String("userId", msg.AuthorUserID),
		zap.Int64("flagCount", msg.FlagCount),
	)
	m.app.Metrics.Count(metrics.ForcedRemovals, 1)
	return nil
}

func (m *ChatMessageManager) deleteCounted(ctx context.Context, msg *model.ChatMessage, counter string) error {
	r := m.app.Repos
	tx := store.NewTx().Delete(r.ChatMessage.Key(msg.MessageID), store.RowExists(),
		withIDs(ErrChatMessageNotFound, "messageId", msg.MessageID))
	if !msg.IsSystem() {
		tx.Update(r.User.Key(msg.AuthorUserID), store.NewUpdate().Add(counter, 1), nil,
			withIDs(ErrUserNotFound, "userId", msg.AuthorUserID))
	}
	return tx.Commit(ctx, m.app.Store)
}

// ModerateText force deletes a message whose text matches the bad-word
// list, reporting whether it did.
func (m *ChatMessageManager) ModerateText(ctx context.Context, msg *model.ChatMessage) (bool, error) {
	words := m.app.Collab.BadWords
	if words == nil || msg.IsSystem() || !words.Contains(msg.Text) {
		return false, nil
	}
	err := m.ForceDelete(ctx, msg)
	if errors.Is(err, ErrChatMessageNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (m *ChatMessageManager) target(msg *model.ChatMessage) *Target {
	return &Target{
		Kind:      schema.KindChatMessage,
		ID:        msg.MessageID,
		Key:       m.app.Repos.ChatMessage.Key(msg.MessageID),
		AuthorID:  msg.AuthorUserID,
		ChatID:    msg.ChatID,
		Completed: true,
	}
}

// FlagTarget implements Flaggable.
func (m *ChatMessageManager) FlagTarget(ctx context.Context, messageID string) (*Target, error) {
	msg, err := m.app.Repos.ChatMessage.Get(ctx, messageID)
	if err != nil || msg == nil {
		return nil, err
	}
	return m.target(msg), nil
}

// ViewTarget implements Viewable.
func (m *ChatMessageManager) ViewTarget(ctx context.Context, messageID string) (*Target, error) {
	return m.FlagTarget(ctx, messageID)
}

// ForceRemoveIfMet implements Flaggable, measuring flags against the size
// of the chat.
func (m *ChatMessageManager) ForceRemoveIfMet(ctx context.Context, messageID string) (bool, error) {
	msg, err := m.app.Repos.ChatMessage.Get(ctx, messageID)
	if err != nil || msg == nil {
		return false, err
	}
	var users int64
	c, err := m.app.Repos.Chat.Get(ctx, msg.ChatID)
	if err != nil {
		return false, err
	}
	if c != nil {
		users = c.UserCount
	}
	if !m.app.Moderation.IsChatForceDeleteMet(msg.FlagCount, users) {
		return false, nil
	}
	err = m.ForceDelete(ctx, msg)
	if errors.Is(err, ErrChatMessageNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Notify pushes a message change to the chat members other than its
// author. Gateway failures are logged, not returned.
func (m *ChatMessageManager) Notify(ctx context.Context, msg *model.ChatMessage, userIDs []string, notifyType string) {
	gw := m.app.Collab.Gateway
	if gw == nil || len(userIDs) == 0 {
		return
	}
	input := map[string]any{
		"userIds":      userIDs,
		"type":         notifyType,
		"messageId":    msg.MessageID,
		"chatId":       msg.ChatID,
		"authorUserId": msg.AuthorUserID,
		"text":         msg.Text,
		"createdAt":    msg.CreatedAt,
	}
	if msg.LastEditedAt != nil {
		input["lastEditedAt"] = *msg.LastEditedAt
	}
	if err := gw.Send(ctx, messageNotificationMutation, map[string]any{"input": input}); err != nil {
		m.app.Logger.Warn("chat message notification failed", zap.String("messageId", msg.MessageID), zap.Error(err))
	}
}
