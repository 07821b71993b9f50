package manager

import (
	"context"
	"errors"

	"github.com/realsocial/real/model"
	"github.com/realsocial/real/repo"
	"github.com/realsocial/real/store"
)

// BlockManager owns blocks between users. Severing what a block forbids
// happens in the reactor once the block row exists.
type BlockManager struct {
	app *App
}

// Block makes blockerID block blockedID.
func (m *BlockManager) Block(ctx context.Context, blockerID, blockedID string) (*model.Block, error) {
	if blockerID == blockedID {
		return nil, ErrCannotBlockSelf
	}
	if _, err := m.app.Users.GetActive(ctx, blockerID); err != nil {
		return nil, err
	}
	if _, err := m.app.Users.Get(ctx, blockedID); err != nil {
		return nil, err
	}
	b := &model.Block{
		BlockerUserID: blockerID,
		BlockedUserID: blockedID,
		BlockedAt:     m.app.now(),
	}
	err := m.app.Repos.Block.Add(ctx, b)
	if errors.Is(err, repo.ErrBlockAlreadyExists) {
		return nil, withIDs(ErrAlreadyBlocked, "userId", blockedID)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Unblock lifts a block. Nothing severed by it comes back.
func (m *BlockManager) Unblock(ctx context.Context, blockerID, blockedID string) error {
	b, err := m.app.Repos.Block.Delete(ctx, blockerID, blockedID)
	if err != nil {
		return err
	}
	if b == nil {
		return withIDs(ErrNotBlocked, "userId", blockedID)
	}
	return nil
}

// IsBlocked reports whether blockerID blocks blockedID.
func (m *BlockManager) IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	b, err := m.app.Repos.Block.Get(ctx, blockerID, blockedID)
	return b != nil, err
}

// addUnblocked writes row, with onExists as the error for a taken key, in
// a transaction that fails with ErrBlocked if either user blocks the other
// when it commits.
func (a *App) addUnblocked(ctx context.Context, row store.Row, onExists error, userA, userB string) error {
	tx := store.NewTx().Add(row, onExists)
	if userA != userB {
		tx.Check(a.Repos.Block.Key(userA, userB), store.RowNotExists(), withIDs(ErrBlocked, "userId", userB)).
			Check(a.Repos.Block.Key(userB, userA), store.RowNotExists(), withIDs(ErrBlocked, "userId", userB))
	}
	return tx.Commit(ctx, a.Store)
}

// ListBlocked returns the users blockerID blocks, most recent last.
func (m *BlockManager) ListBlocked(ctx context.Context, blockerID string) ([]*model.Block, error) {
	return repo.Collect(m.app.Repos.Block.BlockedBy(ctx, blockerID))
}

// OnBlocked severs everything between two users that a block forbids:
// follows, likes, the direct chat, and flags on each other's content.
func (m *BlockManager) OnBlocked(ctx context.Context, b *model.Block) error {
	pairs := [][2]string{
		{b.BlockerUserID, b.BlockedUserID},
		{b.BlockedUserID, b.BlockerUserID},
	}
	for _, p := range pairs {
		err := m.app.Follows.Unfollow(ctx, p[0], p[1], true)
		if err != nil && !errors.Is(err, ErrNotFollowing) {
			return err
		}
		if err := m.app.Likes.DislikeAllByUserOfAuthor(ctx, p[0], p[1]); err != nil {
			return err
		}
		if err := m.app.Flags.UnflagAllOfAuthor(ctx, p[0], p[1]); err != nil {
			return err
		}
	}
	return m.app.Chats.DeleteDirectChatBetween(ctx, b.BlockerUserID, b.BlockedUserID)
}
