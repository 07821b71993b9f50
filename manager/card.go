package manager

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/realsocial/real/collab"
	"github.com/realsocial/real/internal/digest"
	"github.com/realsocial/real/model"
	"github.com/realsocial/real/repo"
)

// Mutations that push changes to subscribed clients through the gateway.
const (
	cardNotificationMutation = `mutation TriggerCardNotification($input: CardNotificationInput!) {
  triggerCardNotification(input: $input) { userId type card { cardId } }
}`
	messageNotificationMutation = `mutation TriggerChatMessageNotification($input: ChatMessageNotificationInput!) {
  triggerChatMessageNotification(input: $input) { userIds type message { messageId } }
}`
)

// Notification types sent with gateway mutations.
const (
	NotifyAdded   = "ADDED"
	NotifyEdited  = "EDITED"
	NotifyDeleted = "DELETED"
)

const appURL = "https://real.app"

// CardManager owns the per-user notification cards.
type CardManager struct {
	app *App
}

// Upsert creates c or refreshes the text of the existing card, reporting
// whether it was created.
func (m *CardManager) Upsert(ctx context.Context, c *model.Card) (bool, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.app.now()
	}
	return m.app.Repos.Card.Upsert(ctx, c)
}

// Delete dismisses one of the user's cards.
func (m *CardManager) Delete(ctx context.Context, userID, cardID string) error {
	c, err := m.app.Repos.Card.Get(ctx, cardID)
	if err != nil {
		return err
	}
	if c == nil || c.UserID != userID {
		return withIDs(ErrItemNotFound, "cardId", cardID)
	}
	_, err = m.app.Repos.Card.Delete(ctx, cardID)
	return err
}

// List returns a user's cards, newest first.
func (m *CardManager) List(ctx context.Context, userID string) ([]*model.Card, error) {
	return repo.Collect(m.app.Repos.Card.ByUser(ctx, userID))
}

// refresh keeps a card in place while count is positive and removes it
// otherwise.
func (m *CardManager) refresh(ctx context.Context, c *model.Card, count int64) error {
	if count > 0 {
		_, err := m.Upsert(ctx, c)
		return err
	}
	_, err := m.app.Repos.Card.Delete(ctx, c.CardID)
	return err
}

// RefreshCommentCard mirrors a post's unviewed comment count into a card
// for its author.
func (m *CardManager) RefreshCommentCard(ctx context.Context, p *model.Post) error {
	n := p.CommentsUnviewedCount
	return m.refresh(ctx, &model.Card{
		CardID: digest.CardID(p.PostedByUserID, model.CardCommentActivity, p.PostID),
		UserID: p.PostedByUserID,
		Type:   model.CardCommentActivity,
		Title:  fmt.Sprintf("You have %d new %s", n, plural(n, "comment")),
		Action: fmt.Sprintf("%s/user/%s/post/%s/comments", appURL, p.PostedByUserID, p.PostID),
		PostID: p.PostID,
	}, n)
}

// RefreshChatCard mirrors the number of chats with unviewed messages into
// a card.
func (m *CardManager) RefreshChatCard(ctx context.Context, u *model.User) error {
	n := u.ChatsWithUnviewedMessagesCount
	return m.refresh(ctx, &model.Card{
		CardID: digest.CardID(u.UserID, model.CardChatActivity),
		UserID: u.UserID,
		Type:   model.CardChatActivity,
		Title:  fmt.Sprintf("You have %d %s with new messages", n, plural(n, "chat")),
		Action: appURL + "/chat/",
	}, n)
}

// RefreshRequestedFollowersCard mirrors pending follow requests into a
// card.
func (m *CardManager) RefreshRequestedFollowersCard(ctx context.Context, u *model.User) error {
	n := u.FollowersRequestedCount
	return m.refresh(ctx, &model.Card{
		CardID: digest.CardID(u.UserID, model.CardRequestedFollowers),
		UserID: u.UserID,
		Type:   model.CardRequestedFollowers,
		Title:  fmt.Sprintf("You have %d pending follow %s", n, plural(n, "request")),
		Action: appURL + "/follower/requested",
	}, n)
}

// Notify tells the card's owner about a change, through the gateway and,
// for new cards, as a push alert when the owner enabled push.
func (m *CardManager) Notify(ctx context.Context, c *model.Card, notifyType string) error {
	if gw := m.app.Collab.Gateway; gw != nil {
		err := gw.Send(ctx, cardNotificationMutation, map[string]any{"input": map[string]any{
			"userId":   c.UserID,
			"type":     notifyType,
			"cardId":   c.CardID,
			"title":    c.Title,
			"subTitle": c.SubTitle,
			"action":   c.Action,
		}})
		if err != nil {
			m.app.Logger.Warn("card notification failed", zap.String("cardId", c.CardID), zap.Error(err))
		}
	}
	if notifyType != NotifyAdded || m.app.Collab.Push == nil {
		return nil
	}
	u, err := m.app.Repos.User.Get(ctx, c.UserID)
	if err != nil || u == nil || u.APNSToken == "" {
		return err
	}
	return m.app.Collab.Push.SendAPNS(ctx, c.UserID, collab.APNSMessage{
		Title: c.Title,
		Body:  c.SubTitle,
		Route: c.Action,
	})
}

func plural(n int64, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
