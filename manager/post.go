package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/realsocial/real/collab"
	"github.com/realsocial/real/internal/digest"
	"github.com/realsocial/real/internal/metrics"
	"github.com/realsocial/real/model"
	"github.com/realsocial/real/repo"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// How long presigned upload URLs stay valid.
const uploadURLTTL = time.Hour

// Expired stories are looked for this far back.
const expiryLookback = 7 * 24 * time.Hour

// PostManager owns posts through their lifecycle: PENDING, optionally
// PROCESSING, then COMPLETED, ARCHIVED or ERROR, and DELETING on the way
// out.
type PostManager struct {
	app *App
}

// ImageInput describes the image of an IMAGE post.
type ImageInput struct {
	Format         model.ImageFormat `validate:"omitempty,oneof=JPEG HEIC"`
	OriginalFormat string            `validate:"max=20"`
	TakenInReal    bool
	Crop           *model.Crop
	// Data optionally carries the image inline instead of a later upload.
	Data []byte
}

// AddPostInput carries the arguments of AddPost.
type AddPostInput struct {
	PostID   string         `validate:"required"`
	UserID   string         `validate:"required"`
	Type     model.PostType `validate:"required,oneof=TEXT_ONLY IMAGE VIDEO"`
	Text     string         `validate:"max=10000"`
	Keywords []string       `validate:"max=20,dive,max=50"`
	Lifetime *time.Duration
	AlbumID  string
	Image    *ImageInput

	CommentsDisabled   bool
	LikesDisabled      bool
	SharingDisabled    bool
	VerificationHidden bool
}

func invalidPost(reason string) error {
	return ErrInvalidPost.WithInfo(map[string]any{"reason": reason})
}

func (in AddPostInput) check() error {
	if err := check(in); err != nil {
		return err
	}
	switch in.Type {
	case model.PostTextOnly:
		if in.Text == "" {
			return invalidPost("text-only posts require text")
		}
		if in.Image != nil {
			return invalidPost("text-only posts cannot have an image")
		}
	case model.PostVideo:
		if in.Image != nil {
			return invalidPost("video posts cannot have an image")
		}
	}
	if in.Lifetime != nil && *in.Lifetime <= 0 {
		return invalidPost("lifetime must be positive")
	}
	return nil
}

// Get returns a post or ErrPostNotFound.
func (m *PostManager) Get(ctx context.Context, postID string) (*model.Post, error) {
	p, err := m.app.Repos.Post.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, withIDs(ErrPostNotFound, "postId", postID)
	}
	return p, nil
}

func (m *PostManager) getOwned(ctx context.Context, userID, postID string) (*model.Post, error) {
	p, err := m.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if p.PostedByUserID != userID {
		return nil, withIDs(ErrNotPostOwner, "postId", postID)
	}
	return p, nil
}

// AddPost writes a new PENDING post. Text-only posts complete at once, as
// do image posts whose data came inline.
func (m *PostManager) AddPost(ctx context.Context, in AddPostInput) (*model.Post, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	if _, err := m.app.Users.GetActive(ctx, in.UserID); err != nil {
		return nil, err
	}
	if in.AlbumID != "" {
		if _, err := m.app.Albums.getOwned(ctx, in.UserID, in.AlbumID); err != nil {
			return nil, err
		}
	}

	now := m.app.now()
	p := &model.Post{
		PostID:             in.PostID,
		PostedByUserID:     in.UserID,
		Type:               in.Type,
		Status:             model.PostPending,
		Text:               in.Text,
		Keywords:           in.Keywords,
		PostedAt:           now,
		AlbumID:            in.AlbumID,
		CommentsDisabled:   in.CommentsDisabled,
		LikesDisabled:      in.LikesDisabled,
		SharingDisabled:    in.SharingDisabled,
		VerificationHidden: in.VerificationHidden,
	}
	if in.Lifetime != nil {
		expiresAt := now.Add(*in.Lifetime)
		p.ExpiresAt = &expiresAt
	}
	err := m.app.Repos.Post.Add(ctx, p)
	if errors.Is(err, repo.ErrPostAlreadyExists) {
		return nil, withIDs(ErrPostAlreadyExists, "postId", in.PostID)
	}
	if err != nil {
		return nil, err
	}

	switch p.Type {
	case model.PostTextOnly:
		return m.Complete(ctx, p.PostID)
	case model.PostImage:
		img := &model.Image{PostID: p.PostID, ImageFormat: model.ImageJPEG}
		if in.Image != nil {
			if in.Image.Format != "" {
				img.ImageFormat = in.Image.Format
			}
			img.OriginalFormat = in.Image.OriginalFormat
			img.TakenInReal = in.Image.TakenInReal
			img.Crop = in.Image.Crop
		}
		if err := m.app.Repos.Post.PutImage(ctx, img); err != nil {
			return nil, err
		}
		if in.Image != nil && len(in.Image.Data) > 0 {
			key := UploadKey(p.PostedByUserID, p.PostID, MediaImage)
			if err := m.app.Collab.Uploads.Put(ctx, key, in.Image.Data, "application/octet-stream"); err != nil {
				return nil, err
			}
			return m.ProcessImageUpload(ctx, p.PostID)
		}
	}
	return p, nil
}

// Complete makes a PENDING or PROCESSING post visible. An image post whose
// content was posted before links to the earliest such post, and a post
// added to an album takes the album's tail rank.
func (m *PostManager) Complete(ctx context.Context, postID string) (*model.Post, error) {
	p, err := m.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PostPending && p.Status != model.PostProcessing {
		return nil, withIDs(ErrPostStatus, "postId", postID, "postStatus", string(p.Status))
	}

	upd := m.app.Repos.Post.SetStatus(store.NewUpdate(), p, model.PostCompleted, m.app.now())
	if p.Type == model.PostImage && p.Checksum != "" {
		orig, err := m.app.Repos.Post.FirstWithChecksum(ctx, p.Checksum)
		if err != nil {
			return nil, err
		}
		if orig != nil && orig.PostID != p.PostID {
			upd.Set(model.AttrOriginalPostID, orig.PostID)
		}
	}
	if p.AlbumID != "" && p.AlbumRank == nil {
		rank, err := m.app.Albums.tailRank(ctx, p.AlbumID)
		switch {
		case isNotFound(err):
			m.app.Repos.Post.SetAlbum(upd, "", 0)
		case err != nil:
			return nil, err
		default:
			m.app.Repos.Post.SetAlbum(upd, p.AlbumID, rank)
		}
	}

	p, err = m.app.Repos.Post.Update(ctx, postID, upd, store.Eq(model.AttrPostStatus, string(p.Status)))
	if isPrecondition(err) {
		return nil, withIDs(ErrPostStatus, "postId", postID)
	}
	return p, err
}

// Archive hides a post from everyone but its author.
func (m *PostManager) Archive(ctx context.Context, userID, postID string) (*model.Post, error) {
	p, err := m.getOwned(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	switch p.Status {
	case model.PostArchived:
		return p, nil
	case model.PostDeleting:
		return nil, withIDs(ErrPostStatus, "postId", postID, "postStatus", string(p.Status))
	}
	return m.setStatus(ctx, p, model.PostArchived)
}

// Restore brings an archived post back.
func (m *PostManager) Restore(ctx context.Context, userID, postID string) (*model.Post, error) {
	p, err := m.getOwned(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PostArchived {
		return nil, withIDs(ErrPostStatus, "postId", postID, "postStatus", string(p.Status))
	}
	return m.setStatus(ctx, p, model.PostCompleted)
}

func (m *PostManager) setStatus(ctx context.Context, p *model.Post, status model.PostStatus) (*model.Post, error) {
	upd := m.app.Repos.Post.SetStatus(store.NewUpdate(), p, status, m.app.now())
	updated, err := m.app.Repos.Post.Update(ctx, p.PostID, upd, store.Eq(model.AttrPostStatus, string(p.Status)))
	if isPrecondition(err) {
		return nil, withIDs(ErrPostStatus, "postId", p.PostID)
	}
	return updated, err
}

// Delete removes a post for good. Everything hanging off it follows through
// the reactor.
func (m *PostManager) Delete(ctx context.Context, userID, postID string) error {
	p, err := m.getOwned(ctx, userID, postID)
	if err != nil {
		return err
	}
	return m.delete(ctx, p)
}

func (m *PostManager) delete(ctx context.Context, p *model.Post) error {
	if p.Status != model.PostDeleting {
		if _, err := m.setStatus(ctx, p, model.PostDeleting); err != nil {
			return err
		}
	}
	_, err := m.app.Repos.Post.Delete(ctx, p.PostID, nil)
	return err
}

// ForceArchive archives a post on moderation grounds and charges its
// author, in one transaction.
func (m *PostManager) ForceArchive(ctx context.Context, p *model.Post) error {
	r := m.app.Repos
	upd := r.Post.SetStatus(store.NewUpdate(), p, model.PostArchived, m.app.now())
	err := store.NewTx().
		Update(r.Post.Key(p.PostID), upd, store.Eq(model.AttrPostStatus, string(p.Status)),
			withIDs(ErrPostStatus, "postId", p.PostID)).
		Update(r.User.Key(p.PostedByUserID), store.NewUpdate().Add(model.AttrPostForcedArchivingCount, 1), nil,
			withIDs(ErrUserNotFound, "userId", p.PostedByUserID)).
		Commit(ctx, m.app.Store)
	if err != nil {
		return err
	}
	m.app.Logger.Warn("post force archived",
		zap.String("postId", p.PostID),
		zap.String("userId", p.PostedByUserID),
		zap.Int64("flagCount", p.FlagCount),
		zap.Int64("viewedByCount", p.ViewedByCount),
	)
	m.app.Metrics.Count(metrics.ForcedRemovals, 1)
	return nil
}

// FlagTarget implements Flaggable.
func (m *PostManager) FlagTarget(ctx context.Context, postID string) (*Target, error) {
	p, err := m.app.Repos.Post.Get(ctx, postID)
	if err != nil || p == nil {
		return nil, err
	}
	return &Target{
		Kind:      schema.KindPost,
		ID:        p.PostID,
		Key:       m.app.Repos.Post.Key(p.PostID),
		AuthorID:  p.PostedByUserID,
		PostID:    p.PostID,
		Completed: p.Status == model.PostCompleted,

		OriginalPostID: p.OriginalPostID,
	}, nil
}

// ViewTarget implements Viewable.
func (m *PostManager) ViewTarget(ctx context.Context, postID string) (*Target, error) {
	return m.FlagTarget(ctx, postID)
}

// ForceRemoveIfMet implements Flaggable by archiving the post.
func (m *PostManager) ForceRemoveIfMet(ctx context.Context, postID string) (bool, error) {
	p, err := m.app.Repos.Post.Get(ctx, postID, store.Strong())
	if err != nil || p == nil || p.Status != model.PostCompleted {
		return false, err
	}
	if !m.app.Moderation.IsPostForceArchiveMet(p) {
		return false, nil
	}
	if err := m.ForceArchive(ctx, p); err != nil {
		if errors.Is(err, ErrPostStatus) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// PostEdit is an update mask over editable post fields. Nil fields are left
// alone; an empty text removes it.
type PostEdit struct {
	Text     *string   `validate:"omitnil,max=10000"`
	Keywords *[]string `validate:"omitnil,max=20"`

	CommentsDisabled   *bool
	LikesDisabled      *bool
	SharingDisabled    *bool
	VerificationHidden *bool
}

func (e PostEdit) update() *store.Update {
	upd := store.NewUpdate()
	if e.Text != nil {
		upd.SetOrRemove(model.AttrText, *e.Text)
	}
	if e.Keywords != nil {
		if len(*e.Keywords) == 0 {
			upd.Remove(model.AttrKeywords)
		} else {
			upd.Set(model.AttrKeywords, *e.Keywords)
		}
	}
	flags := map[string]*bool{
		model.AttrCommentsDisabled:   e.CommentsDisabled,
		model.AttrLikesDisabled:      e.LikesDisabled,
		model.AttrSharingDisabled:    e.SharingDisabled,
		model.AttrVerificationHidden: e.VerificationHidden,
	}
	for attr, v := range flags {
		if v != nil {
			upd.Set(attr, *v)
		}
	}
	return upd
}

// EditPost applies the non-nil fields of e.
func (m *PostManager) EditPost(ctx context.Context, userID, postID string, e PostEdit) (*model.Post, error) {
	if err := check(e); err != nil {
		return nil, err
	}
	upd := e.update()
	if upd.Empty() {
		return nil, ErrNothingToUpdate
	}
	p, err := m.getOwned(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if p.Type == model.PostTextOnly && e.Text != nil && *e.Text == "" {
		return nil, invalidPost("text-only posts require text")
	}
	return m.app.Repos.Post.Update(ctx, postID, upd, store.Ne(model.AttrPostStatus, string(model.PostDeleting)))
}

// SetAlbum moves a post into an album, or out of any with an empty
// albumID. A completed post goes to the album's tail; others take their
// rank on completion.
func (m *PostManager) SetAlbum(ctx context.Context, userID, postID, albumID string) (*model.Post, error) {
	p, err := m.getOwned(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if p.AlbumID == albumID {
		return p, nil
	}
	if albumID != "" {
		if _, err := m.app.Albums.getOwned(ctx, userID, albumID); err != nil {
			return nil, err
		}
	}

	r := m.app.Repos.Post
	upd := store.NewUpdate()
	switch {
	case albumID == "":
		r.SetAlbum(upd, "", 0)
	case p.Status == model.PostCompleted:
		rank, err := m.app.Albums.tailRank(ctx, albumID)
		if err != nil {
			return nil, err
		}
		r.SetAlbum(upd, albumID, rank)
	default:
		upd.Set(model.AttrAlbumID, albumID).Remove(model.AttrAlbumRank)
		schema.IndexUpdate(upd, store.IndexK3, "", nil)
	}
	return r.Update(ctx, postID, upd, store.Ne(model.AttrPostStatus, string(model.PostDeleting)))
}

// SetAlbumOrder moves a post within its album to just after precedingPostID,
// or to the head when precedingPostID is empty.
func (m *PostManager) SetAlbumOrder(ctx context.Context, userID, postID, precedingPostID string) (*model.Post, error) {
	p, err := m.getOwned(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if p.AlbumID == "" || p.AlbumRank == nil {
		return nil, withIDs(ErrPostNotInAlbum, "postId", postID)
	}

	var rank float64
	if precedingPostID == "" {
		if rank, err = m.app.Albums.headRank(ctx, p.AlbumID); err != nil {
			return nil, err
		}
	} else {
		if precedingPostID == postID {
			return nil, invalidPost("a post cannot follow itself")
		}
		var others []*model.Post
		for q, err := range m.app.Repos.Post.ByAlbum(ctx, p.AlbumID) {
			if err != nil {
				return nil, err
			}
			if q.PostID != postID {
				others = append(others, q)
			}
		}
		i := indexOfPost(others, precedingPostID)
		switch {
		case i < 0:
			return nil, withIDs(ErrPostNotInAlbum, "postId", precedingPostID)
		case i == len(others)-1:
			if rank, err = m.app.Albums.tailRank(ctx, p.AlbumID); err != nil {
				return nil, err
			}
		default:
			rank = (*others[i].AlbumRank + *others[i+1].AlbumRank) / 2
		}
	}
	upd := m.app.Repos.Post.SetAlbum(store.NewUpdate(), p.AlbumID, rank)
	return m.app.Repos.Post.Update(ctx, postID, upd, store.Eq(model.AttrAlbumID, p.AlbumID))
}

func indexOfPost(posts []*model.Post, postID string) int {
	for i, p := range posts {
		if p.PostID == postID {
			return i
		}
	}
	return -1
}

// SetExpiresAt turns a post into a story expiring at at, or into a
// permanent post when at is nil.
func (m *PostManager) SetExpiresAt(ctx context.Context, userID, postID string, at *time.Time) (*model.Post, error) {
	if at != nil {
		t := at.UTC().Truncate(time.Microsecond)
		if !t.After(m.app.now()) {
			return nil, ErrStoryInPast
		}
		at = &t
	}
	p, err := m.getOwned(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	upd := m.app.Repos.Post.SetExpiresAt(store.NewUpdate(), p, at)
	return m.app.Repos.Post.Update(ctx, postID, upd, store.Eq(model.AttrPostStatus, string(p.Status)))
}

// GetWriteonlyURL returns a presigned URL the author uploads media to.
func (m *PostManager) GetWriteonlyURL(ctx context.Context, userID, postID string) (string, error) {
	p, err := m.getOwned(ctx, userID, postID)
	if err != nil {
		return "", err
	}
	if p.Status != model.PostPending {
		return "", withIDs(ErrPostStatus, "postId", postID, "postStatus", string(p.Status))
	}
	var media string
	switch p.Type {
	case model.PostImage:
		media = MediaImage
	case model.PostVideo:
		media = MediaVideo
	default:
		return "", invalidPost("post has no media")
	}
	return m.app.Collab.Uploads.PresignPut(ctx, UploadKey(userID, postID, media), uploadURLTTL)
}

// ProcessImageUpload turns an uploaded image into its renditions and
// completes the post. An upload that cannot be decoded or cropped puts the
// post in ERROR.
func (m *PostManager) ProcessImageUpload(ctx context.Context, postID string) (*model.Post, error) {
	p, err := m.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if p.Type != model.PostImage {
		return nil, invalidPost("post has no image")
	}
	if p.Status != model.PostPending && p.Status != model.PostProcessing {
		return nil, withIDs(ErrPostStatus, "postId", postID, "postStatus", string(p.Status))
	}
	img, err := m.app.Repos.Post.GetImage(ctx, postID)
	if err != nil {
		return nil, err
	}
	if img == nil {
		img = &model.Image{PostID: postID, ImageFormat: model.ImageJPEG}
	}

	uploads := m.app.Collab.Uploads
	data, err := uploads.Get(ctx, UploadKey(p.PostedByUserID, postID, MediaImage))
	if err != nil {
		return nil, err
	}
	out, err := m.app.Collab.Images.Process(data, img.ImageFormat, img.Crop, m.app.Config.ImageSizes)
	if errors.Is(err, collab.ErrUnsupportedFormat) || errors.Is(err, collab.ErrInvalidCrop) {
		if _, serr := m.setStatus(ctx, p, model.PostError); serr != nil {
			return nil, serr
		}
		return nil, ErrInvalidImage.WithCause(err).WithData(map[string]any{"postId": postID})
	}
	if err != nil {
		return nil, err
	}

	if err := uploads.Put(ctx, NativeImageKey(p.PostedByUserID, postID), out.Native, "image/jpeg"); err != nil {
		return nil, err
	}
	for height, body := range out.Thumbnails {
		if err := uploads.Put(ctx, ThumbnailKey(p.PostedByUserID, postID, height), body, "image/jpeg"); err != nil {
			return nil, err
		}
	}
	img.Width, img.Height, img.Colors = out.Width, out.Height, out.Colors
	if err := m.app.Repos.Post.PutImage(ctx, img); err != nil {
		return nil, err
	}
	upd := store.NewUpdate().Set(model.AttrChecksum, digest.Checksum(data))
	if _, err := m.app.Repos.Post.Update(ctx, postID, upd, store.Eq(model.AttrPostStatus, string(p.Status))); err != nil {
		return nil, fmt.Errorf("set checksum of %s: %w", postID, err)
	}
	return m.Complete(ctx, postID)
}

// DeleteMedia removes every stored object of a post.
func (m *PostManager) DeleteMedia(ctx context.Context, p *model.Post) error {
	keys := []string{
		UploadKey(p.PostedByUserID, p.PostID, MediaImage),
		UploadKey(p.PostedByUserID, p.PostID, MediaVideo),
		NativeImageKey(p.PostedByUserID, p.PostID),
	}
	for _, h := range m.app.Config.ImageSizes {
		keys = append(keys, ThumbnailKey(p.PostedByUserID, p.PostID, h))
	}
	for _, key := range keys {
		if err := m.app.Collab.Uploads.Delete(ctx, key); err != nil && !errors.Is(err, collab.ErrNotFound) {
			return err
		}
	}
	return nil
}

// OnVideoUploaded moves a video post to PROCESSING once its upload landed.
func (m *PostManager) OnVideoUploaded(ctx context.Context, postID string) (*model.Post, error) {
	p, err := m.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if p.Type != model.PostVideo {
		return nil, invalidPost("post has no video")
	}
	if p.Status != model.PostPending {
		return nil, withIDs(ErrPostStatus, "postId", postID, "postStatus", string(p.Status))
	}
	return m.setStatus(ctx, p, model.PostProcessing)
}

// OnVideoTranscoded completes a video post.
func (m *PostManager) OnVideoTranscoded(ctx context.Context, postID string) (*model.Post, error) {
	p, err := m.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if p.Type != model.PostVideo {
		return nil, invalidPost("post has no video")
	}
	return m.Complete(ctx, postID)
}

// DeleteExpired deletes completed stories whose expiry has passed and
// reports how many it deleted.
func (m *PostManager) DeleteExpired(ctx context.Context) (int, error) {
	now := m.app.now()
	var expired []*model.Post
	for p, err := range m.app.Repos.Post.ExpiringBetween(ctx, now.Add(-expiryLookback), now) {
		if err != nil {
			return 0, err
		}
		if p.Status == model.PostCompleted && p.ExpiresAt != nil && !p.ExpiresAt.After(now) {
			expired = append(expired, p)
		}
	}
	for _, p := range expired {
		if err := m.delete(ctx, p); err != nil {
			if errors.Is(err, ErrPostStatus) {
				continue
			}
			return 0, err
		}
	}
	if len(expired) > 0 {
		m.app.Logger.Info("expired stories deleted", zap.Int("count", len(expired)))
	}
	return len(expired), nil
}

// FanOutToFeeds puts a completed post in its author's feed and in the feed
// of every follower.
func (m *PostManager) FanOutToFeeds(ctx context.Context, p *model.Post) error {
	entries := []*model.FeedEntry{feedEntry(p.PostedByUserID, p)}
	for f, err := range m.app.Repos.Follow.Followers(ctx, p.PostedByUserID, model.FollowFollowing) {
		if err != nil {
			return err
		}
		entries = append(entries, feedEntry(f.FollowerUserID, p))
	}
	return m.app.Repos.Feed.PutAll(ctx, entries)
}

// RemoveFromFeeds takes a post out of every feed.
func (m *PostManager) RemoveFromFeeds(ctx context.Context, postID string) error {
	keys, err := repo.Collect(m.app.Repos.Feed.KeysByPost(ctx, postID))
	if err != nil {
		return err
	}
	return m.app.Repos.Feed.DeleteAll(ctx, keys)
}

// ResetCommentActivity marks every comment of a post as seen by its author.
func (m *PostManager) ResetCommentActivity(ctx context.Context, p *model.Post) error {
	upd := m.app.Repos.Post.SetCommentActivity(store.NewUpdate().Set(model.AttrCommentsUnviewedCount, 0), p.PostedByUserID, nil)
	_, err := m.app.Repos.Post.Update(ctx, p.PostID, upd, store.Gt(model.AttrCommentsUnviewedCount, 0))
	if isPrecondition(err) || isNotFound(err) {
		return nil
	}
	return err
}
