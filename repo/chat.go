package repo

import (
	"context"
	"iter"
	"time"

	"github.com/realsocial/real/model"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// ChatRepo stores chats, their member rows and the direct-chat markers.
// Members live under the chat's partition and are indexed per user on
// GSI-K2 by last message activity.
type ChatRepo struct {
	table
	members table
}

func (r *ChatRepo) Key(chatID string) store.Key {
	return schema.ChatKey(chatID)
}

func (r *ChatRepo) Row(c *model.Chat) (store.Row, error) {
	return encode(c, r.Key(c.ChatID))
}

func (r *ChatRepo) Get(ctx context.Context, chatID string, opts ...store.ReadOption) (*model.Chat, error) {
	return getAs[model.Chat](ctx, r.table, r.Key(chatID), opts...)
}

func (r *ChatRepo) Update(ctx context.Context, chatID string, upd *store.Update, cond store.Cond) (*model.Chat, error) {
	row, err := r.update(ctx, r.Key(chatID), upd, cond)
	if err != nil {
		return nil, err
	}
	return decode[model.Chat](row)
}

func (r *ChatRepo) Delete(ctx context.Context, chatID string) (*model.Chat, error) {
	row, err := r.delete(ctx, r.Key(chatID), nil)
	if err != nil {
		return nil, err
	}
	return decode[model.Chat](row)
}

func (r *ChatRepo) Increment(ctx context.Context, chatID, attr string) error {
	return r.increment(ctx, r.Key(chatID), attr)
}

// Decrement lowers a counter, failing with ErrChatCounterUnderflow at zero.
func (r *ChatRepo) Decrement(ctx context.Context, chatID, attr string) error {
	return r.decrement(ctx, r.Key(chatID), attr)
}

// BumpActivity moves lastMessageActivityAt forward to at. Older values are
// ignored and reported as false.
func (r *ChatRepo) BumpActivity(ctx context.Context, chatID string, at time.Time) (bool, error) {
	return bumpActivity(ctx, r.table, r.Key(chatID), at, nil)
}

func bumpActivity(ctx context.Context, t table, key store.Key, at time.Time, upd *store.Update) (bool, error) {
	if upd == nil {
		upd = store.NewUpdate()
	}
	upd.Set(model.AttrLastMessageActivityAt, at)
	cond := store.Or(store.NotExists(model.AttrLastMessageActivityAt), store.Lt(model.AttrLastMessageActivityAt, at))
	_, err := t.update(ctx, key, upd, cond)
	switch {
	case err == nil:
		return true, nil
	case isPrecondition(err):
		return false, nil
	}
	return false, err
}

func (r *ChatRepo) MemberKey(chatID, userID string) store.Key {
	return schema.ChatMemberKey(chatID, userID)
}

func (r *ChatRepo) MemberRow(m *model.ChatMember) (store.Row, error) {
	row, err := encode(m, r.MemberKey(m.ChatID, m.UserID))
	if err != nil {
		return nil, err
	}
	setIndex(row, store.IndexK2, schema.ChatsByMemberPK(m.UserID), store.FormatTime(m.LastMessageActivityAt))
	return row, nil
}

func (r *ChatRepo) GetMember(ctx context.Context, chatID, userID string, opts ...store.ReadOption) (*model.ChatMember, error) {
	return getAs[model.ChatMember](ctx, r.members, r.MemberKey(chatID, userID), opts...)
}

func (r *ChatRepo) UpdateMember(ctx context.Context, chatID, userID string, upd *store.Update, cond store.Cond) (*model.ChatMember, error) {
	row, err := r.members.update(ctx, r.MemberKey(chatID, userID), upd, cond)
	if err != nil {
		return nil, err
	}
	return decode[model.ChatMember](row)
}

func (r *ChatRepo) IncrementMember(ctx context.Context, chatID, userID, attr string) error {
	return r.members.increment(ctx, r.MemberKey(chatID, userID), attr)
}

// DecrementMember fails with ErrChatMemberCounterUnderflow at zero.
func (r *ChatRepo) DecrementMember(ctx context.Context, chatID, userID, attr string) error {
	return r.members.decrement(ctx, r.MemberKey(chatID, userID), attr)
}

// BumpMemberActivity moves a member's activity time, and with it the chat's
// position in the member's chat list, forward to at.
func (r *ChatRepo) BumpMemberActivity(ctx context.Context, chatID, userID string, at time.Time) (bool, error) {
	upd := schema.IndexUpdate(store.NewUpdate(), store.IndexK2, schema.ChatsByMemberPK(userID), store.FormatTime(at))
	return bumpActivity(ctx, r.members, r.MemberKey(chatID, userID), at, upd)
}

// Members enumerates the member rows of a chat.
func (r *ChatRepo) Members(ctx context.Context, chatID string) iter.Seq2[*model.ChatMember, error] {
	return query[model.ChatMember](ctx, r.members, store.Query{
		PK: r.Key(chatID).PK,
		SK: store.SKBeginsWith(schema.MemberPrefix),
	})
}

// ByMember enumerates a user's memberships, most recent activity first.
func (r *ChatRepo) ByMember(ctx context.Context, userID string) iter.Seq2[*model.ChatMember, error] {
	return query[model.ChatMember](ctx, r.members, store.Query{
		Index:      store.IndexK2,
		PK:         schema.ChatsByMemberPK(userID),
		Descending: true,
	})
}

func (r *ChatRepo) DirectKey(userA, userB string) store.Key {
	return schema.DirectChatKey(userA, userB)
}

func (r *ChatRepo) DirectRow(chatID, userA, userB string) (store.Row, error) {
	lo, hi := schema.SortedPair(userA, userB)
	return encode(&model.DirectChatMarker{ChatID: chatID, UserIDs: []string{lo, hi}}, r.DirectKey(userA, userB))
}

// GetDirect returns the direct chat id between two users, or "".
func (r *ChatRepo) GetDirect(ctx context.Context, userA, userB string) (string, error) {
	m, err := getAs[model.DirectChatMarker](ctx, r.table, r.DirectKey(userA, userB))
	if err != nil || m == nil {
		return "", err
	}
	return m.ChatID, nil
}

func (r *ChatRepo) DeleteDirect(ctx context.Context, userA, userB string) error {
	_, err := r.delete(ctx, r.DirectKey(userA, userB), nil)
	return err
}
