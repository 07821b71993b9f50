package reactor

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/realsocial/real/manager"
	"github.com/realsocial/real/model"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// New returns a dispatcher running the full handler set against app.
func New(app *manager.App) *Dispatcher {
	d := NewDispatcher(app.Repos.Processed, Options{
		Logger:    app.Logger.Named("dispatcher"),
		Metrics:   app.Metrics,
		Now:       app.Now,
		MarkerTTL: app.Config.ProcessedTTL,
	})
	Register(d, app)
	return d
}

// Register wires the handler set into d. Handler names are part of the
// handled-event markers: renaming one makes redelivered events run it again.
func Register(d *Dispatcher, app *manager.App) {
	h := &handlers{app: app, logger: app.Logger.Named("reactor")}

	d.On(schema.KindUser, "user.index", h.indexUser, ChangedAny(model.AttrUsername, model.AttrFullName, model.AttrPhotoPostID))
	d.On(schema.KindUser, "user.deleted", h.userDeleted, Deletes)
	d.On(schema.KindUser, "user.forceDisable", h.forceDisableUser, UpdatedAny(
		model.AttrPostForcedArchivingCount,
		model.AttrCommentForcedDeletionCount,
		model.AttrChatMessagesForcedDeletionCount,
	))
	d.On(schema.KindUser, "user.chatCard", h.refreshChatCard, UpdatedAny(model.AttrChatsWithUnviewedMessagesCount))
	d.On(schema.KindUser, "user.followersCard", h.refreshFollowersCard, UpdatedAny(model.AttrFollowersRequestedCount))

	d.On(schema.KindPost, "post.status", h.postStatus, ChangedAny(model.AttrPostStatus))
	d.On(schema.KindPost, "post.album", h.postAlbum, ChangedAny(model.AttrPostStatus, model.AttrAlbumID, model.AttrAlbumRank))
	d.On(schema.KindPost, "post.story", h.postStory, UpdatedAny(model.AttrExpiresAt))
	d.On(schema.KindPost, "post.commentCard", h.postCommentCard, UpdatedAny(model.AttrCommentsUnviewedCount))
	d.On(schema.KindPost, "post.cascade", h.postDeleted, Deletes)

	d.On(schema.KindComment, "comment.added", h.commentAdded, Creates)
	d.On(schema.KindComment, "comment.deleted", h.commentDeleted, Deletes)

	d.On(schema.KindFlag, "flag.count", h.flagCount, CreatesOrDeletes)

	d.On(schema.KindView, "view.post", h.postViewed, OnItem(schema.KindPost), Not(Deletes))
	d.On(schema.KindView, "view.chat", h.chatViewed, OnItem(schema.KindChat), Not(Deletes))
	d.On(schema.KindView, "view.chatMessage", h.chatMessageViewed, OnItem(schema.KindChatMessage), Not(Deletes))

	d.On(schema.KindFollow, "follow.status", h.followStatus, ChangedAny(model.AttrFollowStatus))
	d.On(schema.KindBlock, "block.added", h.blockAdded, Creates)
	d.On(schema.KindLike, "like.count", h.likeCount, CreatesOrDeletes)

	d.On(schema.KindAlbum, "album.count", h.albumCount, CreatesOrDeletes)
	d.On(schema.KindAlbum, "album.deleted", h.albumDeleted, Deletes)

	d.On(schema.KindCard, "card.count", h.cardCount, CreatesOrDeletes)
	d.On(schema.KindCard, "card.notify", h.cardNotify, ChangedAny(model.AttrTitle, model.AttrSubTitle))

	d.On(schema.KindChat, "chat.empty", h.chatEmptied, UpdatedAny(model.AttrUserCount))
	d.On(schema.KindChat, "chat.cascade", h.chatDeleted, Deletes)
	d.On(schema.KindChatMember, "chatMember.count", h.memberCount, CreatesOrDeletes)
	d.On(schema.KindChatMember, "chatMember.unviewed", h.memberUnviewed, ChangedAny(model.AttrMessagesUnviewedCount))
	d.On(schema.KindChatMessage, "chatMessage.added", h.messageAdded, Creates)
	d.On(schema.KindChatMessage, "chatMessage.edited", h.messageEdited, UpdatedAny(model.AttrText))
	d.On(schema.KindChatMessage, "chatMessage.deleted", h.messageDeleted, Deletes)

	d.On(schema.KindAppStoreSub, "appStoreSub.level", h.subscriptionChanged, ChangedAny(model.AttrSubStatus, model.AttrExpiresAt))
}

type handlers struct {
	app    *manager.App
	logger *zap.Logger
}

// soft logs and drops failures meaning the row a step adjusts is gone or
// its counter is already at zero, so the remaining steps still run.
func (h *handlers) soft(err error, what string, key store.Key) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrCounterUnderflow) ||
		errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, store.ErrPreconditionFailed) {
		h.logger.Warn("skipped "+what,
			zap.String("pk", key.PK),
			zap.String("sk", key.SK),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s on %s: %w", what, key, err)
}

// add moves a counter by delta. Decrements never take it below zero.
func (h *handlers) add(ctx context.Context, key store.Key, attr string, delta int64) error {
	if delta == 0 {
		return nil
	}
	var cond store.Cond
	if delta < 0 {
		cond = store.Ge(attr, -delta)
	}
	_, err := h.app.Store.Update(ctx, key, store.NewUpdate().Add(attr, delta), cond)
	if delta < 0 && errors.Is(err, store.ErrPreconditionFailed) {
		err = store.ErrCounterUnderflow
	}
	return h.soft(err, "adjust "+attr, key)
}

// adds applies each counter step in turn, stopping at the first hard error.
func (h *handlers) adds(ctx context.Context, steps ...counterStep) error {
	for _, s := range steps {
		if err := h.add(ctx, s.key, s.attr, s.delta); err != nil {
			return err
		}
	}
	return nil
}

type counterStep struct {
	key   store.Key
	attr  string
	delta int64
}

func step(key store.Key, attr string, delta int64) counterStep {
	return counterStep{key: key, attr: attr, delta: delta}
}

// deleteItemChildren removes the flags and views hanging off an item.
func (h *handlers) deleteItemChildren(ctx context.Context, itemKey store.Key) error {
	if err := h.app.Flags.DeleteAllOfItem(ctx, itemKey); err != nil {
		return fmt.Errorf("delete flags of %s: %w", itemKey, err)
	}
	if err := h.app.Views.DeleteAllOfItem(ctx, itemKey); err != nil {
		return fmt.Errorf("delete views of %s: %w", itemKey, err)
	}
	return nil
}

// sign maps a membership test onto a counter delta.
func sign(before, after bool) int64 {
	switch {
	case before == after:
		return 0
	case after:
		return 1
	}
	return -1
}
