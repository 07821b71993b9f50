package repo

import (
	"context"
	"iter"
	"time"

	"github.com/realsocial/real/model"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// ChatMessageRepo stores messages, indexed by chat on GSI-A1 and by author
// on GSI-A2, both by createdAt.
type ChatMessageRepo struct {
	table
}

func (r *ChatMessageRepo) Key(messageID string) store.Key {
	return schema.ChatMessageKey(messageID)
}

func (r *ChatMessageRepo) Row(m *model.ChatMessage) (store.Row, error) {
	row, err := encode(m, r.Key(m.MessageID))
	if err != nil {
		return nil, err
	}
	at := store.FormatTime(m.CreatedAt)
	setIndex(row, store.IndexA1, schema.MessagesByChatPK(m.ChatID), at)
	if m.AuthorUserID != "" {
		setIndex(row, store.IndexA2, schema.MessagesByUserPK(m.AuthorUserID), at)
	}
	return row, nil
}

func (r *ChatMessageRepo) Get(ctx context.Context, messageID string) (*model.ChatMessage, error) {
	return getAs[model.ChatMessage](ctx, r.table, r.Key(messageID))
}

func (r *ChatMessageRepo) Add(ctx context.Context, m *model.ChatMessage) error {
	row, err := r.Row(m)
	if err != nil {
		return err
	}
	return r.add(ctx, row)
}

func (r *ChatMessageRepo) Update(ctx context.Context, messageID string, upd *store.Update, cond store.Cond) (*model.ChatMessage, error) {
	row, err := r.update(ctx, r.Key(messageID), upd, cond)
	if err != nil {
		return nil, err
	}
	return decode[model.ChatMessage](row)
}

func (r *ChatMessageRepo) Delete(ctx context.Context, messageID string) (*model.ChatMessage, error) {
	row, err := r.delete(ctx, r.Key(messageID), nil)
	if err != nil {
		return nil, err
	}
	return decode[model.ChatMessage](row)
}

func (r *ChatMessageRepo) Increment(ctx context.Context, messageID, attr string) error {
	return r.increment(ctx, r.Key(messageID), attr)
}

func (r *ChatMessageRepo) Decrement(ctx context.Context, messageID, attr string) error {
	return r.decrement(ctx, r.Key(messageID), attr)
}

// ByChat enumerates a chat's messages, oldest first.
func (r *ChatMessageRepo) ByChat(ctx context.Context, chatID string) iter.Seq2[*model.ChatMessage, error] {
	return query[model.ChatMessage](ctx, r.table, store.Query{Index: store.IndexA1, PK: schema.MessagesByChatPK(chatID)})
}

// ByChatSince enumerates a chat's messages created after t, oldest first.
func (r *ChatMessageRepo) ByChatSince(ctx context.Context, chatID string, t time.Time) iter.Seq2[*model.ChatMessage, error] {
	return query[model.ChatMessage](ctx, r.table, store.Query{
		Index: store.IndexA1,
		PK:    schema.MessagesByChatPK(chatID),
		SK:    store.SKGt(store.FormatTime(t)),
	})
}

// ByUser enumerates a user's messages, oldest first.
func (r *ChatMessageRepo) ByUser(ctx context.Context, userID string) iter.Seq2[*model.ChatMessage, error] {
	return query[model.ChatMessage](ctx, r.table, store.Query{Index: store.IndexA2, PK: schema.MessagesByUserPK(userID)})
}
