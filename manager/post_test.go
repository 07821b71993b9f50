package manager_test

import (
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realsocial/real/collab/collabtest"
	"github.com/realsocial/real/internal/realtest"
	"github.com/realsocial/real/manager"
	"github.com/realsocial/real/model"
	"github.com/realsocial/real/schema"
)

func TestAddPost_Validation(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	posts := env.App.Posts

	tests := []struct {
		name string
		in   manager.AddPostInput
		want error
	}{
		{
			name: "text post without text",
			in:   manager.AddPostInput{PostID: "p1", UserID: "alice", Type: model.PostTextOnly},
			want: manager.ErrInvalidPost,
		},
		{
			name: "text post with image",
			in:   manager.AddPostInput{PostID: "p1", UserID: "alice", Type: model.PostTextOnly, Text: "x", Image: &manager.ImageInput{}},
			want: manager.ErrInvalidPost,
		},
		{
			name: "non-positive lifetime",
			in:   manager.AddPostInput{PostID: "p1", UserID: "alice", Type: model.PostTextOnly, Text: "x", Lifetime: ptr(-time.Hour)},
			want: manager.ErrInvalidPost,
		},
		{
			name: "unknown user",
			in:   manager.AddPostInput{PostID: "p1", UserID: "nobody", Type: model.PostTextOnly, Text: "x"},
			want: manager.ErrUserNotFound,
		},
		{
			name: "album of nobody",
			in:   manager.AddPostInput{PostID: "p1", UserID: "alice", Type: model.PostTextOnly, Text: "x", AlbumID: "a1"},
			want: manager.ErrAlbumNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := posts.AddPost(env.Ctx, tt.in)
			require.ErrorIs(t, err, tt.want)
		})
	}

	env.TextPost("alice", "p1")
	_, err := posts.AddPost(env.Ctx, manager.AddPostInput{PostID: "p1", UserID: "alice", Type: model.PostTextOnly, Text: "again"})
	require.ErrorIs(t, err, manager.ErrPostAlreadyExists)
}

func TestPost_OwnershipAndStatus(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	env.User("bob")
	env.TextPost("alice", "p1")
	posts := env.App.Posts

	_, err := posts.Archive(env.Ctx, "bob", "p1")
	require.ErrorIs(t, err, manager.ErrNotPostOwner)
	require.ErrorIs(t, posts.Delete(env.Ctx, "bob", "p1"), manager.ErrNotPostOwner)

	_, err = posts.Restore(env.Ctx, "alice", "p1")
	require.ErrorIs(t, err, manager.ErrPostStatus)

	p, err := posts.Archive(env.Ctx, "alice", "p1")
	require.NoError(t, err)
	assert.Equal(t, model.PostArchived, p.Status)
	p, err = posts.Archive(env.Ctx, "alice", "p1")
	require.NoError(t, err)
	assert.Equal(t, model.PostArchived, p.Status)

	_, err = posts.Get(env.Ctx, "p404")
	require.ErrorIs(t, err, manager.ErrPostNotFound)
}

func TestEditPost(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	env.TextPost("alice", "p1")
	posts := env.App.Posts

	_, err := posts.EditPost(env.Ctx, "alice", "p1", manager.PostEdit{})
	require.ErrorIs(t, err, manager.ErrNothingToUpdate)

	_, err = posts.EditPost(env.Ctx, "alice", "p1", manager.PostEdit{Text: ptr("")})
	require.ErrorIs(t, err, manager.ErrInvalidPost)

	p, err := posts.EditPost(env.Ctx, "alice", "p1", manager.PostEdit{
		Text:             ptr("edited"),
		Keywords:         ptr([]string{"sun", "sea"}),
		CommentsDisabled: ptr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, "edited", p.Text)
	assert.Equal(t, []string{"sun", "sea"}, p.Keywords)
	assert.True(t, p.CommentsDisabled)
}

func TestImagePost_InlineData(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	data := collabtest.JPEG(200, 100, color.RGBA{R: 200, A: 255})

	p, err := env.App.Posts.AddPost(env.Ctx, manager.AddPostInput{
		PostID: "img1",
		UserID: "alice",
		Type:   model.PostImage,
		Image:  &manager.ImageInput{Data: data, TakenInReal: true},
	})
	require.NoError(t, err)
	assert.Equal(t, model.PostCompleted, p.Status)
	assert.NotEmpty(t, p.Checksum)

	img, err := env.App.Repos.Post.GetImage(env.Ctx, "img1")
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, 200, img.Width)
	assert.Equal(t, 100, img.Height)
	assert.True(t, img.TakenInReal)
	assert.NotEmpty(t, img.Colors)

	assert.Contains(t, env.Fakes.Uploads.Keys(), manager.NativeImageKey("alice", "img1"))
	for _, h := range env.App.Config.ImageSizes {
		assert.Contains(t, env.Fakes.Uploads.Keys(), manager.ThumbnailKey("alice", "img1", h))
	}

	dup, err := env.App.Posts.AddPost(env.Ctx, manager.AddPostInput{
		PostID: "img2",
		UserID: "alice",
		Type:   model.PostImage,
		Image:  &manager.ImageInput{Data: data},
	})
	require.NoError(t, err)
	assert.Equal(t, "img1", dup.OriginalPostID)
}

func TestImagePost_ViewingDuplicateViewsOriginal(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	env.User("bob")
	env.User("carol")
	data := collabtest.JPEG(200, 100, color.RGBA{G: 200, A: 255})
	for _, in := range []manager.AddPostInput{
		{PostID: "img1", UserID: "alice", Type: model.PostImage, Image: &manager.ImageInput{Data: data}},
		{PostID: "img2", UserID: "bob", Type: model.PostImage, Image: &manager.ImageInput{Data: data}},
	} {
		_, err := env.App.Posts.AddPost(env.Ctx, in)
		require.NoError(t, err)
		env.Settle()
	}
	require.Equal(t, "img1", env.GetPost("img2").OriginalPostID)

	require.NoError(t, env.App.Views.RecordViews(env.Ctx, "carol", schema.KindPost, []string{"img2"}, time.Time{}))
	env.Settle()

	for _, id := range []string{"img2", "img1"} {
		v, err := env.App.Repos.View.Get(env.Ctx, schema.PostKey(id), "carol")
		require.NoError(t, err)
		require.NotNil(t, v, id)
		assert.EqualValues(t, 1, v.ViewCount, id)
		assert.EqualValues(t, 1, env.GetPost(id).ViewedByCount, id)
	}
}

func TestImagePost_Upload(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	posts := env.App.Posts

	p, err := posts.AddPost(env.Ctx, manager.AddPostInput{PostID: "img1", UserID: "alice", Type: model.PostImage})
	require.NoError(t, err)
	assert.Equal(t, model.PostPending, p.Status)

	url, err := posts.GetWriteonlyURL(env.Ctx, "alice", "img1")
	require.NoError(t, err)
	assert.NotEmpty(t, url)

	key := manager.UploadKey("alice", "img1", manager.MediaImage)
	up, ok := manager.ParseUploadKey(key)
	require.True(t, ok)
	assert.Equal(t, manager.Upload{UserID: "alice", PostID: "img1", Media: manager.MediaImage}, up)

	require.NoError(t, env.Fakes.Uploads.Put(env.Ctx, key, collabtest.JPEG(64, 64, color.White), "image/jpeg"))
	p, err = posts.ProcessImageUpload(env.Ctx, "img1")
	require.NoError(t, err)
	assert.Equal(t, model.PostCompleted, p.Status)

	_, err = posts.GetWriteonlyURL(env.Ctx, "alice", "img1")
	require.ErrorIs(t, err, manager.ErrPostStatus)
}

func TestImagePost_BadUploadErrors(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	posts := env.App.Posts

	_, err := posts.AddPost(env.Ctx, manager.AddPostInput{PostID: "img1", UserID: "alice", Type: model.PostImage})
	require.NoError(t, err)
	key := manager.UploadKey("alice", "img1", manager.MediaImage)
	require.NoError(t, env.Fakes.Uploads.Put(env.Ctx, key, []byte("not an image"), "image/jpeg"))

	_, err = posts.ProcessImageUpload(env.Ctx, "img1")
	require.ErrorIs(t, err, manager.ErrInvalidImage)
	assert.Equal(t, model.PostError, env.GetPost("img1").Status)
}

func TestParseUploadKey_RejectsForeignKeys(t *testing.T) {
	for _, key := range []string{
		"",
		"alice/post/p1/image/native.jpg",
		"alice/album/p1/image/upload",
		"alice/post/p1/audio/upload",
		"/post/p1/image/upload",
	} {
		_, ok := manager.ParseUploadKey(key)
		assert.False(t, ok, key)
	}
}

func TestVideoPost(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	posts := env.App.Posts

	_, err := posts.AddPost(env.Ctx, manager.AddPostInput{PostID: "v1", UserID: "alice", Type: model.PostVideo})
	require.NoError(t, err)

	p, err := posts.OnVideoUploaded(env.Ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, model.PostProcessing, p.Status)
	_, err = posts.OnVideoUploaded(env.Ctx, "v1")
	require.ErrorIs(t, err, manager.ErrPostStatus)

	p, err = posts.OnVideoTranscoded(env.Ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, model.PostCompleted, p.Status)
}

func TestStories_DeleteExpired(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	env.Story("alice", "s1", time.Hour)
	env.Story("alice", "s2", 3*time.Hour)
	env.TextPost("alice", "p1")
	posts := env.App.Posts

	_, err := posts.SetExpiresAt(env.Ctx, "alice", "p1", ptr(env.Now().Add(-time.Minute)))
	require.ErrorIs(t, err, manager.ErrStoryInPast)

	n, err := posts.DeleteExpired(env.Ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	env.Advance(2 * time.Hour)
	n, err = posts.DeleteExpired(env.Ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	env.Settle()

	assert.Nil(t, env.GetPost("s1"))
	assert.NotNil(t, env.GetPost("s2"))
	assert.NotNil(t, env.GetPost("p1"))
}

func TestAlbums(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	env.User("bob")
	albums := env.App.Albums

	_, err := albums.AddAlbum(env.Ctx, "alice", "a1", manager.AlbumInput{})
	assert.Error(t, err)

	a, err := albums.AddAlbum(env.Ctx, "alice", "a1", manager.AlbumInput{Name: "Summer"})
	require.NoError(t, err)
	assert.Equal(t, "Summer", a.Name)
	_, err = albums.AddAlbum(env.Ctx, "alice", "a1", manager.AlbumInput{Name: "Again"})
	require.ErrorIs(t, err, manager.ErrAlbumAlreadyExists)

	_, err = env.App.Posts.AddPost(env.Ctx, manager.AddPostInput{PostID: "p1", UserID: "bob", Type: model.PostTextOnly, Text: "x", AlbumID: "a1"})
	require.ErrorIs(t, err, manager.ErrNotAlbumOwner)

	for _, id := range []string{"p1", "p2", "p3"} {
		_, err := env.App.Posts.AddPost(env.Ctx, manager.AddPostInput{PostID: id, UserID: "alice", Type: model.PostTextOnly, Text: id, AlbumID: "a1"})
		require.NoError(t, err)
	}
	env.Settle()

	got, err := env.App.Repos.Album.Get(env.Ctx, "a1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, got.PostCount)
	assert.NotEmpty(t, got.ArtHash)
	assert.Equal(t, []string{"p1", "p2", "p3"}, albumOrder(t, env, "a1"))

	_, err = env.App.Posts.SetAlbumOrder(env.Ctx, "alice", "p3", "")
	require.NoError(t, err)
	_, err = env.App.Posts.SetAlbumOrder(env.Ctx, "alice", "p1", "p3")
	require.NoError(t, err)
	assert.Equal(t, []string{"p3", "p1", "p2"}, albumOrder(t, env, "a1"))

	_, err = env.App.Posts.SetAlbum(env.Ctx, "alice", "p2", "")
	require.NoError(t, err)
	env.Settle()
	got, err = env.App.Repos.Album.Get(env.Ctx, "a1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.PostCount)

	edited, err := albums.EditAlbum(env.Ctx, "alice", "a1", manager.AlbumEdit{Description: ptr("beach days")})
	require.NoError(t, err)
	assert.Equal(t, "beach days", edited.Description)

	require.ErrorIs(t, albums.DeleteAlbum(env.Ctx, "bob", "a1"), manager.ErrNotAlbumOwner)
	require.NoError(t, albums.DeleteAlbum(env.Ctx, "alice", "a1"))
	env.Settle()
	assert.Empty(t, env.GetPost("p1").AlbumID)
}

func albumOrder(t *testing.T, env *realtest.Env, albumID string) []string {
	t.Helper()
	var ids []string
	for p, err := range env.App.Repos.Post.ByAlbum(env.Ctx, albumID) {
		require.NoError(t, err)
		ids = append(ids, p.PostID)
	}
	return ids
}
