// Package repo provides one typed repository per entity kind over a
// store.KeyedStore. Repositories own key and index layout and nothing else:
// cross-row behavior lives in package manager and package reactor.
package repo

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// Error is a kind-specific store error. It unwraps to the store sentinel, so
// errors.Is(err, store.ErrAlreadyExists) holds for every AlreadyExists error.
type Error struct {
	Kind     schema.Kind
	Sentinel error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Sentinel)
}

func (e *Error) Unwrap() error {
	return e.Sentinel
}

// Is matches errors of the same kind and sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Sentinel == e.Sentinel
}

func alreadyExists(kind schema.Kind) *Error {
	return &Error{Kind: kind, Sentinel: store.ErrAlreadyExists}
}

func underflow(kind schema.Kind) *Error {
	return &Error{Kind: kind, Sentinel: store.ErrCounterUnderflow}
}

var (
	ErrUserAlreadyExists        = alreadyExists(schema.KindUser)
	ErrPostAlreadyExists        = alreadyExists(schema.KindPost)
	ErrPostImageAlreadyExists   = alreadyExists(schema.KindPostImage)
	ErrAlbumAlreadyExists       = alreadyExists(schema.KindAlbum)
	ErrCardAlreadyExists        = alreadyExists(schema.KindCard)
	ErrChatAlreadyExists        = alreadyExists(schema.KindChat)
	ErrChatMemberAlreadyExists  = alreadyExists(schema.KindChatMember)
	ErrDirectChatAlreadyExists  = alreadyExists(schema.KindDirectChat)
	ErrChatMessageAlreadyExists = alreadyExists(schema.KindChatMessage)
	ErrBlockAlreadyExists       = alreadyExists(schema.KindBlock)
	ErrViewAlreadyExists        = alreadyExists(schema.KindView)
	ErrTrendingAlreadyExists    = alreadyExists(schema.KindTrending)
	ErrAppStoreSubAlreadyExists = alreadyExists(schema.KindAppStoreSub)

	ErrUserCounterUnderflow        = underflow(schema.KindUser)
	ErrPostCounterUnderflow        = underflow(schema.KindPost)
	ErrCommentCounterUnderflow     = underflow(schema.KindComment)
	ErrAlbumCounterUnderflow       = underflow(schema.KindAlbum)
	ErrChatCounterUnderflow        = underflow(schema.KindChat)
	ErrChatMemberCounterUnderflow  = underflow(schema.KindChatMember)
	ErrChatMessageCounterUnderflow = underflow(schema.KindChatMessage)
)

// encodeTime writes times in the table's fixed-width layout.
func encodeTime(t time.Time) (types.AttributeValue, error) {
	return &types.AttributeValueMemberS{Value: store.FormatTime(t)}, nil
}

// encode marshals v and stamps the key and schema version.
func encode(v any, key store.Key) (store.Row, error) {
	m, err := attributevalue.MarshalMapWithOptions(v, func(o *attributevalue.EncoderOptions) {
		o.EncodeTime = encodeTime
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	row := store.Row(m)
	for attr, av := range key.Attrs() {
		row[attr] = av
	}
	row[schema.AttrSchemaVersion] = &types.AttributeValueMemberN{Value: strconv.Itoa(schema.CurrentVersion)}
	return row, nil
}

// decode unmarshals a row. A nil row decodes to nil.
func decode[T any](row store.Row) (*T, error) {
	if row == nil {
		return nil, nil
	}
	var out T
	if err := attributevalue.UnmarshalMap(row, &out); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", row.Key(), err)
	}
	return &out, nil
}

// Decode unmarshals a row, such as a change-stream image, into a model.
func Decode[T any](row store.Row) (*T, error) {
	return decode[T](row)
}

// setIndex is schema.SetIndex that cannot fail for string and float keys.
func setIndex(row store.Row, index, pk string, sk any) {
	if err := schema.SetIndex(row, index, pk, sk); err != nil {
		panic(err)
	}
}

// table holds the operations shared by every repository.
type table struct {
	s    store.KeyedStore
	kind schema.Kind
}

func getAs[T any](ctx context.Context, t table, key store.Key, opts ...store.ReadOption) (*T, error) {
	row, err := t.s.Get(ctx, key, opts...)
	if err != nil {
		return nil, err
	}
	return decode[T](row)
}

func (t table) add(ctx context.Context, row store.Row) error {
	err := t.s.Add(ctx, row)
	if errors.Is(err, store.ErrAlreadyExists) {
		return alreadyExists(t.kind)
	}
	return err
}

// update applies upd under cond and the schema version guard.
func (t table) update(ctx context.Context, key store.Key, upd *store.Update, cond store.Cond) (store.Row, error) {
	row, err := t.s.Update(ctx, key, upd, store.And(schema.VersionGuard(), cond))
	if errors.Is(err, store.ErrPreconditionFailed) && t.newerVersion(ctx, key) {
		return nil, store.ErrSchemaVersion
	}
	return row, err
}

func (t table) newerVersion(ctx context.Context, key store.Key) bool {
	row, err := t.s.Get(ctx, key, store.Strong())
	return err == nil && row != nil && row.Int(schema.AttrSchemaVersion) > schema.CurrentVersion
}

func (t table) delete(ctx context.Context, key store.Key, cond store.Cond) (store.Row, error) {
	row, err := t.s.Delete(ctx, key, cond)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return row, err
}

func (t table) increment(ctx context.Context, key store.Key, attr string) error {
	_, err := t.update(ctx, key, store.NewUpdate().Add(attr, 1), nil)
	return err
}

func (t table) incrementBy(ctx context.Context, key store.Key, attr string, n int64) error {
	_, err := t.update(ctx, key, store.NewUpdate().Add(attr, n), nil)
	return err
}

// decrement lowers attr by one, refusing to go below zero.
func (t table) decrement(ctx context.Context, key store.Key, attr string) error {
	_, err := t.update(ctx, key, store.NewUpdate().Add(attr, -1), store.Gt(attr, 0))
	if errors.Is(err, store.ErrPreconditionFailed) {
		return underflow(t.kind)
	}
	return err
}

// query enumerates decoded rows matching q.
func query[T any](ctx context.Context, t table, q store.Query) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		for row, err := range store.Iterate(ctx, t.s, q) {
			if err != nil {
				yield(nil, err)
				return
			}
			v, err := decode[T](row)
			if !yield(v, err) || err != nil {
				return
			}
		}
	}
}

// keys enumerates the primary keys of rows matching q.
func keys(ctx context.Context, s store.KeyedStore, q store.Query) iter.Seq2[store.Key, error] {
	return func(yield func(store.Key, error) bool) {
		for row, err := range store.Iterate(ctx, s, q) {
			if err != nil {
				yield(store.Key{}, err)
				return
			}
			if !yield(row.Key(), nil) {
				return
			}
		}
	}
}

// Collect drains a sequence into a slice.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for v, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Repos bundles every repository over one store.
type Repos struct {
	Store       store.KeyedStore
	User        *UserRepo
	Post        *PostRepo
	Comment     *CommentRepo
	Album       *AlbumRepo
	Card        *CardRepo
	Chat        *ChatRepo
	ChatMessage *ChatMessageRepo
	Follow      *FollowRepo
	Feed        *FeedRepo
	Block       *BlockRepo
	Like        *LikeRepo
	Flag        *FlagRepo
	View        *ViewRepo
	Trending    *TrendingRepo
	AppStoreSub *AppStoreSubRepo
	Processed   *ProcessedRepo
}

// New builds every repository over s.
func New(s store.KeyedStore) *Repos {
	return &Repos{
		Store:       s,
		User:        &UserRepo{table{s, schema.KindUser}},
		Post:        &PostRepo{table{s, schema.KindPost}, table{s, schema.KindPostImage}},
		Comment:     &CommentRepo{table{s, schema.KindComment}},
		Album:       &AlbumRepo{table{s, schema.KindAlbum}},
		Card:        &CardRepo{table{s, schema.KindCard}},
		Chat:        &ChatRepo{table{s, schema.KindChat}, table{s, schema.KindChatMember}},
		ChatMessage: &ChatMessageRepo{table{s, schema.KindChatMessage}},
		Follow:      &FollowRepo{table{s, schema.KindFollow}, table{s, schema.KindFirstStory}},
		Feed:        &FeedRepo{table{s, schema.KindFeed}},
		Block:       &BlockRepo{table{s, schema.KindBlock}},
		Like:        &LikeRepo{table{s, schema.KindLike}},
		Flag:        &FlagRepo{table{s, schema.KindFlag}},
		View:        &ViewRepo{table{s, schema.KindView}},
		Trending:    &TrendingRepo{table{s, schema.KindTrending}},
		AppStoreSub: &AppStoreSubRepo{table{s, schema.KindAppStoreSub}},
		Processed:   &ProcessedRepo{table{s, schema.KindProcessed}},
	}
}

func isPrecondition(err error) bool {
	return errors.Is(err, store.ErrPreconditionFailed)
}
