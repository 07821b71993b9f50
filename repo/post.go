package repo

import (
	"context"
	"iter"
	"time"

	"github.com/realsocial/real/model"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// PostRepo stores posts and their image sidecars.
//
// Index layout:
//   - GSI-A2: every post of a user by status/postedAt.
//   - GSI-A1: stories of a user by status/expiresAt.
//   - GSI-K1: stories bucketed by expiry day.
//   - GSI-K2: completed posts by checksum, oldest first.
//   - GSI-K3: album members by rank.
//   - GSI-A3: posts with unviewed comments by last comment time.
type PostRepo struct {
	table
	images table
}

func (r *PostRepo) Key(postID string) store.Key {
	return schema.PostKey(postID)
}

// Row encodes p with every index it belongs to.
func (r *PostRepo) Row(p *model.Post) (store.Row, error) {
	row, err := encode(p, r.Key(p.PostID))
	if err != nil {
		return nil, err
	}
	owner := schema.PostsByUserPK(p.PostedByUserID)
	setIndex(row, store.IndexA2, owner, schema.StatusSK(string(p.Status), p.PostedAt))
	if p.ExpiresAt != nil {
		setIndex(row, store.IndexA1, owner, schema.StatusSK(string(p.Status), *p.ExpiresAt))
		setIndex(row, store.IndexK1, schema.PostsExpiringPK(*p.ExpiresAt), store.FormatTime(*p.ExpiresAt))
	}
	if p.Status == model.PostCompleted && p.Checksum != "" && p.CompletedAt != nil {
		setIndex(row, store.IndexK2, schema.PostChecksumPK(p.Checksum), store.FormatTime(*p.CompletedAt))
	}
	if p.AlbumID != "" && p.AlbumRank != nil {
		setIndex(row, store.IndexK3, schema.PostsByAlbumPK(p.AlbumID), *p.AlbumRank)
	}
	if p.CommentsUnviewedCount > 0 && p.LastUnviewedCommentAt != nil {
		setIndex(row, store.IndexA3, schema.PostCommentActivityPK(p.PostedByUserID), store.FormatTime(*p.LastUnviewedCommentAt))
	}
	return row, nil
}

func (r *PostRepo) Get(ctx context.Context, postID string, opts ...store.ReadOption) (*model.Post, error) {
	return getAs[model.Post](ctx, r.table, r.Key(postID), opts...)
}

// Add writes a new post. It fails with ErrPostAlreadyExists.
func (r *PostRepo) Add(ctx context.Context, p *model.Post) error {
	row, err := r.Row(p)
	if err != nil {
		return err
	}
	return r.add(ctx, row)
}

func (r *PostRepo) Update(ctx context.Context, postID string, upd *store.Update, cond store.Cond) (*model.Post, error) {
	row, err := r.update(ctx, r.Key(postID), upd, cond)
	if err != nil {
		return nil, err
	}
	return decode[model.Post](row)
}

func (r *PostRepo) Delete(ctx context.Context, postID string, cond store.Cond) (*model.Post, error) {
	row, err := r.delete(ctx, r.Key(postID), cond)
	if err != nil {
		return nil, err
	}
	return decode[model.Post](row)
}

// SetStatus adds the mutations moving p to status, keeping the status
// sorted indexes in step. Entering COMPLETED stamps completedAt once.
func (r *PostRepo) SetStatus(upd *store.Update, p *model.Post, status model.PostStatus, now time.Time) *store.Update {
	owner := schema.PostsByUserPK(p.PostedByUserID)
	upd.Set(model.AttrPostStatus, string(status))
	schema.IndexUpdate(upd, store.IndexA2, owner, schema.StatusSK(string(status), p.PostedAt))
	if p.ExpiresAt != nil {
		schema.IndexUpdate(upd, store.IndexA1, owner, schema.StatusSK(string(status), *p.ExpiresAt))
	}
	if status == model.PostCompleted {
		completedAt := now
		if p.CompletedAt != nil {
			completedAt = *p.CompletedAt
		} else {
			upd.Set(model.AttrCompletedAt, now)
		}
		if p.Checksum != "" {
			schema.IndexUpdate(upd, store.IndexK2, schema.PostChecksumPK(p.Checksum), store.FormatTime(completedAt))
		}
	}
	return upd
}

// SetExpiresAt adds the mutations that move a post's expiry, or remove it
// when at is nil.
func (r *PostRepo) SetExpiresAt(upd *store.Update, p *model.Post, at *time.Time) *store.Update {
	if at == nil {
		upd.Remove(model.AttrExpiresAt)
		schema.IndexUpdate(upd, store.IndexA1, "", nil)
		return schema.IndexUpdate(upd, store.IndexK1, "", nil)
	}
	upd.Set(model.AttrExpiresAt, *at)
	schema.IndexUpdate(upd, store.IndexA1, schema.PostsByUserPK(p.PostedByUserID), schema.StatusSK(string(p.Status), *at))
	return schema.IndexUpdate(upd, store.IndexK1, schema.PostsExpiringPK(*at), store.FormatTime(*at))
}

// SetAlbum adds the mutations placing a post in an album at rank, or taking
// it out when albumID is empty.
func (r *PostRepo) SetAlbum(upd *store.Update, albumID string, rank float64) *store.Update {
	if albumID == "" {
		upd.Remove(model.AttrAlbumID, model.AttrAlbumRank)
		return schema.IndexUpdate(upd, store.IndexK3, "", nil)
	}
	upd.Set(model.AttrAlbumID, albumID).Set(model.AttrAlbumRank, rank)
	return schema.IndexUpdate(upd, store.IndexK3, schema.PostsByAlbumPK(albumID), rank)
}

// SetCommentActivity adds the mutations listing or unlisting a post among
// its author's posts with unviewed comments.
func (r *PostRepo) SetCommentActivity(upd *store.Update, authorID string, at *time.Time) *store.Update {
	if at == nil {
		upd.Remove(model.AttrLastUnviewedCommentAt)
		return schema.IndexUpdate(upd, store.IndexA3, "", nil)
	}
	upd.Set(model.AttrLastUnviewedCommentAt, *at)
	return schema.IndexUpdate(upd, store.IndexA3, schema.PostCommentActivityPK(authorID), store.FormatTime(*at))
}

func (r *PostRepo) Increment(ctx context.Context, postID, attr string) error {
	return r.increment(ctx, r.Key(postID), attr)
}

// Decrement lowers a counter, failing with ErrPostCounterUnderflow at zero.
func (r *PostRepo) Decrement(ctx context.Context, postID, attr string) error {
	return r.decrement(ctx, r.Key(postID), attr)
}

// ByUser enumerates a user's posts, newest first, optionally of one status.
func (r *PostRepo) ByUser(ctx context.Context, userID string, status model.PostStatus) iter.Seq2[*model.Post, error] {
	q := store.Query{Index: store.IndexA2, PK: schema.PostsByUserPK(userID), Descending: true}
	if status != "" {
		q.SK = store.SKBeginsWith(string(status) + "/")
	}
	return query[model.Post](ctx, r.table, q)
}

// StoriesByUser enumerates a user's completed stories, soonest expiry first.
func (r *PostRepo) StoriesByUser(ctx context.Context, userID string) iter.Seq2[*model.Post, error] {
	return query[model.Post](ctx, r.table, store.Query{
		Index: store.IndexA1,
		PK:    schema.PostsByUserPK(userID),
		SK:    store.SKBeginsWith(string(model.PostCompleted) + "/"),
	})
}

// ExpiringBetween enumerates stories with from <= expiresAt <= to.
func (r *PostRepo) ExpiringBetween(ctx context.Context, from, to time.Time) iter.Seq2[*model.Post, error] {
	return func(yield func(*model.Post, error) bool) {
		for day := from.UTC().Truncate(24 * time.Hour); !day.After(to); day = day.Add(24 * time.Hour) {
			q := store.Query{
				Index: store.IndexK1,
				PK:    schema.PostsExpiringPK(day),
				SK:    store.SKBetween(store.FormatTime(from), store.FormatTime(to)),
			}
			for p, err := range query[model.Post](ctx, r.table, q) {
				if !yield(p, err) || err != nil {
					return
				}
			}
		}
	}
}

// FirstWithChecksum returns the earliest completed post with checksum.
func (r *PostRepo) FirstWithChecksum(ctx context.Context, checksum string) (*model.Post, error) {
	row, err := store.First(ctx, r.s, store.Query{Index: store.IndexK2, PK: schema.PostChecksumPK(checksum), Limit: 1})
	if err != nil {
		return nil, err
	}
	return decode[model.Post](row)
}

// ByAlbum enumerates an album's posts by ascending rank.
func (r *PostRepo) ByAlbum(ctx context.Context, albumID string) iter.Seq2[*model.Post, error] {
	return query[model.Post](ctx, r.table, store.Query{Index: store.IndexK3, PK: schema.PostsByAlbumPK(albumID)})
}

// WithUnviewedComments enumerates a user's posts with unviewed comments,
// most recent activity first.
func (r *PostRepo) WithUnviewedComments(ctx context.Context, userID string) iter.Seq2[*model.Post, error] {
	return query[model.Post](ctx, r.table, store.Query{
		Index:      store.IndexA3,
		PK:         schema.PostCommentActivityPK(userID),
		Descending: true,
	})
}

func (r *PostRepo) GetImage(ctx context.Context, postID string) (*model.Image, error) {
	return getAs[model.Image](ctx, r.images, schema.PostImageKey(postID))
}

// PutImage writes the image sidecar, replacing any previous one.
func (r *PostRepo) PutImage(ctx context.Context, img *model.Image) error {
	row, err := encode(img, schema.PostImageKey(img.PostID))
	if err != nil {
		return err
	}
	return r.s.Put(ctx, row, nil)
}

func (r *PostRepo) DeleteImage(ctx context.Context, postID string) error {
	_, err := r.images.delete(ctx, schema.PostImageKey(postID), nil)
	return err
}
