package repo

import (
	"context"
	"errors"

	"github.com/realsocial/real/model"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// UserRepo stores user profiles and deletion tombstones. Usernames are
// indexed case-insensitively on GSI-A1.
type UserRepo struct {
	table
}

func (r *UserRepo) Key(userID string) store.Key {
	return schema.UserKey(userID)
}

// Row encodes u with its index attributes.
func (r *UserRepo) Row(u *model.User) (store.Row, error) {
	row, err := encode(u, r.Key(u.UserID))
	if err != nil {
		return nil, err
	}
	setIndex(row, store.IndexA1, schema.UsernamePK(u.Username), u.UserID)
	return row, nil
}

func (r *UserRepo) Get(ctx context.Context, userID string, opts ...store.ReadOption) (*model.User, error) {
	return getAs[model.User](ctx, r.table, r.Key(userID), opts...)
}

func (r *UserRepo) Add(ctx context.Context, u *model.User) error {
	row, err := r.Row(u)
	if err != nil {
		return err
	}
	return r.add(ctx, row)
}

// Update applies upd to an existing profile and returns the new image.
func (r *UserRepo) Update(ctx context.Context, userID string, upd *store.Update, cond store.Cond) (*model.User, error) {
	row, err := r.update(ctx, r.Key(userID), upd, cond)
	if err != nil {
		return nil, err
	}
	return decode[model.User](row)
}

func (r *UserRepo) Delete(ctx context.Context, userID string) (*model.User, error) {
	row, err := r.delete(ctx, r.Key(userID), nil)
	if err != nil {
		return nil, err
	}
	return decode[model.User](row)
}

// GetByUsername resolves a username, ignoring case. Returns nil if unknown.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	row, err := store.First(ctx, r.s, store.Query{Index: store.IndexA1, PK: schema.UsernamePK(username), Limit: 1})
	if err != nil {
		return nil, err
	}
	return decode[model.User](row)
}

// SetUsername adds the mutations that rename a user, index included.
func (r *UserRepo) SetUsername(upd *store.Update, userID, username string) *store.Update {
	return schema.IndexUpdate(upd.Set(model.AttrUsername, username), store.IndexA1, schema.UsernamePK(username), userID)
}

func (r *UserRepo) Increment(ctx context.Context, userID, attr string) error {
	return r.increment(ctx, r.Key(userID), attr)
}

func (r *UserRepo) IncrementBy(ctx context.Context, userID, attr string, n int64) error {
	return r.incrementBy(ctx, r.Key(userID), attr, n)
}

// Decrement lowers a counter, failing with ErrUserCounterUnderflow at zero.
func (r *UserRepo) Decrement(ctx context.Context, userID, attr string) error {
	return r.decrement(ctx, r.Key(userID), attr)
}

// PutTombstone records the deletion of a user. Rewriting is harmless.
func (r *UserRepo) PutTombstone(ctx context.Context, t *model.UserTombstone) error {
	row, err := encode(t, schema.UserDeletedKey(t.UserID))
	if err != nil {
		return err
	}
	return r.s.Put(ctx, row, nil)
}

func (r *UserRepo) GetTombstone(ctx context.Context, userID string) (*model.UserTombstone, error) {
	return getAs[model.UserTombstone](ctx, r.table, schema.UserDeletedKey(userID))
}

// IsMissing reports whether err says the user row is absent.
func IsMissing(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
