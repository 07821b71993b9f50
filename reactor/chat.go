package reactor

import (
	"context"
	"fmt"
	"time"

	"github.com/realsocial/real/manager"
	"github.com/realsocial/real/model"
	"github.com/realsocial/real/repo"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// chatEmptied deletes a group chat its last member left.
func (h *handlers) chatEmptied(ctx context.Context, e *Event) error {
	_, c, err := images[model.Chat](e)
	if err != nil || c == nil || c.Type != model.ChatGroup || c.UserCount > 0 {
		return err
	}
	_, err = h.app.Repos.Chat.Delete(ctx, c.ChatID)
	return err
}

// chatDeleted removes the members, messages and other rows of a deleted
// chat. Member and message deletes fix up user counters in turn.
func (h *handlers) chatDeleted(ctx context.Context, e *Event) error {
	c, _, err := images[model.Chat](e)
	if err != nil || c == nil {
		return err
	}
	r := h.app.Repos

	var keys []store.Key
	for m, err := range r.Chat.Members(ctx, c.ChatID) {
		if err != nil {
			return err
		}
		keys = append(keys, r.Chat.MemberKey(c.ChatID, m.UserID))
	}
	for msg, err := range r.ChatMessage.ByChat(ctx, c.ChatID) {
		if err != nil {
			return err
		}
		keys = append(keys, r.ChatMessage.Key(msg.MessageID))
	}
	if err := h.app.Store.BatchWrite(ctx, nil, keys); err != nil {
		return fmt.Errorf("delete rows of chat %s: %w", c.ChatID, err)
	}

	if c.Type == model.ChatDirect && len(c.UserIDs) == 2 {
		if err := r.Chat.DeleteDirect(ctx, c.UserIDs[0], c.UserIDs[1]); err != nil {
			return err
		}
	}
	return h.deleteItemChildren(ctx, e.Key)
}

func (h *handlers) memberCount(ctx context.Context, e *Event) error {
	delta := int64(1)
	if e.Op() == OpDelete {
		delta = -1
	}
	return h.add(ctx, schema.UserKey(e.Ref.IDs[1]), model.AttrChatCount, delta)
}

// memberUnviewed counts the chats in which a user has unviewed messages.
func (h *handlers) memberUnviewed(ctx context.Context, e *Event) error {
	before := e.Old.Int(model.AttrMessagesUnviewedCount) > 0
	after := e.New.Int(model.AttrMessagesUnviewedCount) > 0
	return h.add(ctx, schema.UserKey(e.Ref.IDs[1]), model.AttrChatsWithUnviewedMessagesCount, sign(before, after))
}

// unviewedBy holds for members who have not viewed the chat since at.
func unviewedBy(at time.Time) store.Cond {
	return store.Or(store.NotExists(model.AttrLastViewedAt), store.Lt(model.AttrLastViewedAt, at))
}

// messageAdded counts a new message in its chat and against every member
// other than the author, moves the chat up each member's list and notifies
// them.
func (h *handlers) messageAdded(ctx context.Context, e *Event) error {
	_, msg, err := images[model.ChatMessage](e)
	if err != nil || msg == nil {
		return err
	}
	r := h.app.Repos.Chat
	chatKey := r.Key(msg.ChatID)

	// 1. The chat row.
	if err := h.add(ctx, chatKey, model.AttrMessagesCount, 1); err != nil {
		return err
	}
	if _, err := r.BumpActivity(ctx, msg.ChatID, msg.CreatedAt); err != nil {
		if err := h.soft(err, "bump chat activity", chatKey); err != nil {
			return err
		}
	}

	// 2. Members.
	members, err := repo.Collect(r.Members(ctx, msg.ChatID))
	if err != nil {
		return err
	}
	var recipients []string
	for _, m := range members {
		memberKey := r.MemberKey(msg.ChatID, m.UserID)
		if _, err := r.BumpMemberActivity(ctx, msg.ChatID, m.UserID, msg.CreatedAt); err != nil {
			if err := h.soft(err, "bump member activity", memberKey); err != nil {
				return err
			}
		}
		if m.UserID == msg.AuthorUserID {
			continue
		}
		recipients = append(recipients, m.UserID)
		upd := store.NewUpdate().Add(model.AttrMessagesUnviewedCount, 1)
		if _, err := r.UpdateMember(ctx, msg.ChatID, m.UserID, upd, unviewedBy(msg.CreatedAt)); err != nil {
			if err := h.soft(err, "count unviewed message", memberKey); err != nil {
				return err
			}
		}
	}

	// 3. The author.
	if !msg.IsSystem() {
		if err := h.add(ctx, schema.UserKey(msg.AuthorUserID), model.AttrChatMessagesCreationCount, 1); err != nil {
			return err
		}
	}

	h.app.Messages.Notify(ctx, msg, recipients, manager.NotifyAdded)
	_, err = h.app.Messages.ModerateText(ctx, msg)
	return err
}

func (h *handlers) messageEdited(ctx context.Context, e *Event) error {
	_, msg, err := images[model.ChatMessage](e)
	if err != nil || msg == nil {
		return err
	}
	recipients, err := h.recipients(ctx, msg)
	if err != nil {
		return err
	}
	h.app.Messages.Notify(ctx, msg, recipients, manager.NotifyEdited)
	_, err = h.app.Messages.ModerateText(ctx, msg)
	return err
}

// messageDeleted reverses messageAdded for members who had not viewed the
// message yet.
func (h *handlers) messageDeleted(ctx context.Context, e *Event) error {
	msg, _, err := images[model.ChatMessage](e)
	if err != nil || msg == nil {
		return err
	}
	r := h.app.Repos.Chat
	if err := h.add(ctx, r.Key(msg.ChatID), model.AttrMessagesCount, -1); err != nil {
		return err
	}

	recipients, err := h.recipients(ctx, msg)
	if err != nil {
		return err
	}
	for _, userID := range recipients {
		upd := store.NewUpdate().Add(model.AttrMessagesUnviewedCount, -1)
		cond := store.And(store.Gt(model.AttrMessagesUnviewedCount, 0), unviewedBy(msg.CreatedAt))
		if _, err := r.UpdateMember(ctx, msg.ChatID, userID, upd, cond); err != nil {
			if err := h.soft(err, "uncount unviewed message", r.MemberKey(msg.ChatID, userID)); err != nil {
				return err
			}
		}
	}

	h.app.Messages.Notify(ctx, msg, recipients, manager.NotifyDeleted)
	return h.deleteItemChildren(ctx, e.Key)
}

// recipients lists the members of the message's chat other than its author.
func (h *handlers) recipients(ctx context.Context, msg *model.ChatMessage) ([]string, error) {
	var ids []string
	for m, err := range h.app.Repos.Chat.Members(ctx, msg.ChatID) {
		if err != nil {
			return nil, err
		}
		if m.UserID != msg.AuthorUserID {
			ids = append(ids, m.UserID)
		}
	}
	return ids, nil
}
