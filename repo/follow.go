package repo

import (
	"context"
	"iter"

	"github.com/realsocial/real/model"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// FollowRepo stores follow rows and the per-follower first-story pointers.
// Follows are indexed by follower on GSI-A1 and by followed on GSI-A2, both
// sorted by status/followedAt so that one status can be selected by prefix.
type FollowRepo struct {
	table
	stories table
}

func (r *FollowRepo) Key(followerID, followedID string) store.Key {
	return schema.FollowKey(followerID, followedID)
}

func (r *FollowRepo) Row(f *model.Follow) (store.Row, error) {
	row, err := encode(f, r.Key(f.FollowerUserID, f.FollowedUserID))
	if err != nil {
		return nil, err
	}
	sk := schema.StatusSK(string(f.Status), f.FollowedAt)
	setIndex(row, store.IndexA1, schema.FollowedsPK(f.FollowerUserID), sk)
	setIndex(row, store.IndexA2, schema.FollowersPK(f.FollowedUserID), sk)
	return row, nil
}

func (r *FollowRepo) Get(ctx context.Context, followerID, followedID string, opts ...store.ReadOption) (*model.Follow, error) {
	return getAs[model.Follow](ctx, r.table, r.Key(followerID, followedID), opts...)
}

// SetStatus adds the mutations moving f to status with its indexes.
func (r *FollowRepo) SetStatus(upd *store.Update, f *model.Follow, status model.FollowStatus) *store.Update {
	sk := schema.StatusSK(string(status), f.FollowedAt)
	upd.Set(model.AttrFollowStatus, string(status))
	schema.IndexUpdate(upd, store.IndexA1, schema.FollowedsPK(f.FollowerUserID), sk)
	return schema.IndexUpdate(upd, store.IndexA2, schema.FollowersPK(f.FollowedUserID), sk)
}

// Transition moves f from its current status to status. It fails with
// store.ErrPreconditionFailed if the status changed meanwhile.
func (r *FollowRepo) Transition(ctx context.Context, f *model.Follow, status model.FollowStatus) (*model.Follow, error) {
	upd := r.SetStatus(store.NewUpdate(), f, status)
	row, err := r.update(ctx, r.Key(f.FollowerUserID, f.FollowedUserID), upd, store.Eq(model.AttrFollowStatus, string(f.Status)))
	if err != nil {
		return nil, err
	}
	return decode[model.Follow](row)
}

// Delete removes a follow and returns the removed row, or nil.
func (r *FollowRepo) Delete(ctx context.Context, followerID, followedID string) (*model.Follow, error) {
	row, err := r.delete(ctx, r.Key(followerID, followedID), nil)
	if err != nil {
		return nil, err
	}
	return decode[model.Follow](row)
}

func statusQuery(index, pk string, status model.FollowStatus) store.Query {
	q := store.Query{Index: index, PK: pk}
	if status != "" {
		q.SK = store.SKBeginsWith(string(status) + "/")
	}
	return q
}

// Followers enumerates who follows a user, optionally in one status.
func (r *FollowRepo) Followers(ctx context.Context, followedID string, status model.FollowStatus) iter.Seq2[*model.Follow, error] {
	return query[model.Follow](ctx, r.table, statusQuery(store.IndexA2, schema.FollowersPK(followedID), status))
}

// Followeds enumerates whom a user follows, optionally in one status.
func (r *FollowRepo) Followeds(ctx context.Context, followerID string, status model.FollowStatus) iter.Seq2[*model.Follow, error] {
	return query[model.Follow](ctx, r.table, statusQuery(store.IndexA1, schema.FollowedsPK(followerID), status))
}

func (r *FollowRepo) FirstStoryKey(followedID, followerID string) store.Key {
	return schema.FirstStoryKey(followedID, followerID)
}

func (r *FollowRepo) GetFirstStory(ctx context.Context, followedID, followerID string) (*model.FirstStory, error) {
	return getAs[model.FirstStory](ctx, r.stories, r.FirstStoryKey(followedID, followerID))
}

// PutFirstStory points the follower at a story. Rewriting the same pointer
// produces no change.
func (r *FollowRepo) PutFirstStory(ctx context.Context, fs *model.FirstStory) error {
	row, err := encode(fs, r.FirstStoryKey(fs.FollowedUserID, fs.FollowerUserID))
	if err != nil {
		return err
	}
	setIndex(row, store.IndexK1, schema.FirstStoriesByFollowerPK(fs.FollowerUserID), store.FormatTime(fs.ExpiresAt))
	return r.s.Put(ctx, row, nil)
}

func (r *FollowRepo) DeleteFirstStory(ctx context.Context, followedID, followerID string) error {
	_, err := r.stories.delete(ctx, r.FirstStoryKey(followedID, followerID), nil)
	return err
}

// FirstStoriesOf enumerates the first stories visible to a follower,
// soonest expiry first.
func (r *FollowRepo) FirstStoriesOf(ctx context.Context, followerID string) iter.Seq2[*model.FirstStory, error] {
	return query[model.FirstStory](ctx, r.stories, store.Query{Index: store.IndexK1, PK: schema.FirstStoriesByFollowerPK(followerID)})
}
