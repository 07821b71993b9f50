package manager

import (
	"context"
	"errors"

	"github.com/realsocial/real/internal/digest"
	"github.com/realsocial/real/model"
	"github.com/realsocial/real/repo"
	"github.com/realsocial/real/store"
)

// Posts that make up an album's cover art.
const artPostCount = 4

// AlbumManager owns albums and the order of posts within them.
type AlbumManager struct {
	app *App
}

// AlbumInput carries the editable fields of an album.
type AlbumInput struct {
	Name        string `validate:"required,max=50"`
	Description string `validate:"max=500"`
}

// AddAlbum creates an empty album.
func (m *AlbumManager) AddAlbum(ctx context.Context, userID, albumID string, in AlbumInput) (*model.Album, error) {
	if err := check(in); err != nil {
		return nil, err
	}
	if _, err := m.app.Users.GetActive(ctx, userID); err != nil {
		return nil, err
	}
	a := &model.Album{
		AlbumID:       albumID,
		OwnedByUserID: userID,
		Name:          in.Name,
		Description:   in.Description,
		CreatedAt:     m.app.now(),
	}
	err := m.app.Repos.Album.Add(ctx, a)
	if errors.Is(err, repo.ErrAlbumAlreadyExists) {
		return nil, withIDs(ErrAlbumAlreadyExists, "albumId", albumID)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// AlbumEdit is an update mask over album fields. An empty description
// removes it.
type AlbumEdit struct {
	Name        *string `validate:"omitnil,min=1,max=50"`
	Description *string `validate:"omitnil,max=500"`
}

// EditAlbum applies the non-nil fields of e.
func (m *AlbumManager) EditAlbum(ctx context.Context, userID, albumID string, e AlbumEdit) (*model.Album, error) {
	if err := check(e); err != nil {
		return nil, err
	}
	upd := store.NewUpdate()
	if e.Name != nil {
		upd.Set(model.AttrName, *e.Name)
	}
	if e.Description != nil {
		upd.SetOrRemove(model.AttrDescription, *e.Description)
	}
	if upd.Empty() {
		return nil, ErrNothingToUpdate
	}
	if _, err := m.getOwned(ctx, userID, albumID); err != nil {
		return nil, err
	}
	return m.app.Repos.Album.Update(ctx, albumID, upd, nil)
}

// DeleteAlbum removes an album. Its posts stay, outside any album.
func (m *AlbumManager) DeleteAlbum(ctx context.Context, userID, albumID string) error {
	if _, err := m.getOwned(ctx, userID, albumID); err != nil {
		return err
	}
	_, err := m.app.Repos.Album.Delete(ctx, albumID)
	return err
}

func (m *AlbumManager) getOwned(ctx context.Context, userID, albumID string) (*model.Album, error) {
	a, err := m.app.Repos.Album.Get(ctx, albumID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, withIDs(ErrAlbumNotFound, "albumId", albumID)
	}
	if a.OwnedByUserID != userID {
		return nil, withIDs(ErrNotAlbumOwner, "albumId", albumID)
	}
	return a, nil
}

// tailRank issues a rank after every rank issued so far. With c the rank
// count after the increment, tail ranks are (c-1)/(c+1) and head ranks its
// negation, so ranks stay within (-1, 1) and the first one is 0.
func (m *AlbumManager) tailRank(ctx context.Context, albumID string) (float64, error) {
	c, err := m.app.Repos.Album.NextRankCount(ctx, albumID)
	if err != nil {
		return 0, err
	}
	return float64(c-1) / float64(c+1), nil
}

// headRank issues a rank before every rank issued so far.
func (m *AlbumManager) headRank(ctx context.Context, albumID string) (float64, error) {
	r, err := m.tailRank(ctx, albumID)
	return -r, err
}

// RefreshArtHash recomputes the cover art hash from the album's first
// completed posts.
func (m *AlbumManager) RefreshArtHash(ctx context.Context, albumID string) error {
	var ids []string
	for p, err := range m.app.Repos.Post.ByAlbum(ctx, albumID) {
		if err != nil {
			return err
		}
		if p.Status != model.PostCompleted {
			continue
		}
		ids = append(ids, p.PostID)
		if len(ids) == artPostCount {
			break
		}
	}
	hash := digest.ArtHash(ids...)
	upd := store.NewUpdate().SetOrRemove(model.AttrArtHash, hash)
	cond := store.Or(store.NotExists(model.AttrArtHash), store.Ne(model.AttrArtHash, hash))
	if hash == "" {
		cond = store.Exists(model.AttrArtHash)
	}
	_, err := m.app.Repos.Album.Update(ctx, albumID, upd, cond)
	if isPrecondition(err) || isNotFound(err) {
		return nil
	}
	return err
}
