package manager_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realsocial/real/collab"
	"github.com/realsocial/real/errs"
	"github.com/realsocial/real/internal/realtest"
	"github.com/realsocial/real/manager"
	"github.com/realsocial/real/model"
)

func ptr[T any](v T) *T { return &v }

func TestCreateCognitoOnlyUser(t *testing.T) {
	env := realtest.New(t)
	users := env.App.Users

	t.Run("requires a verified contact", func(t *testing.T) {
		env.Fakes.Identity.AddUser("u1", map[string]string{collab.AttrEmail: "u1@example.com"})
		_, err := users.CreateCognitoOnlyUser(env.Ctx, "u1", "user_one", "")
		require.ErrorIs(t, err, manager.ErrUnverifiedContact)
		assert.Equal(t, errs.UnverifiedContact, errs.KindOf(err))
	})

	t.Run("records the verified email", func(t *testing.T) {
		env.Fakes.Identity.AddUser("u2", map[string]string{
			collab.AttrEmail:         "u2@example.com",
			collab.AttrEmailVerified: "true",
		})
		u, err := users.CreateCognitoOnlyUser(env.Ctx, "u2", "user_two", "User Two")
		require.NoError(t, err)
		assert.Equal(t, "u2@example.com", u.Email)
		assert.Equal(t, model.UserActive, u.Status)
		assert.Equal(t, model.Public, u.Privacy)
		assert.Equal(t, realtest.Start, u.SignedUpAt)
	})

	t.Run("rejects an existing user", func(t *testing.T) {
		_, err := users.CreateCognitoOnlyUser(env.Ctx, "u2", "user_two_again", "")
		require.ErrorIs(t, err, manager.ErrUserAlreadyExists)
	})

	t.Run("rejects a taken username", func(t *testing.T) {
		env.Fakes.Identity.AddUser("u3", map[string]string{
			collab.AttrEmail:         "u3@example.com",
			collab.AttrEmailVerified: "true",
		})
		_, err := users.CreateCognitoOnlyUser(env.Ctx, "u3", "user_two", "")
		require.ErrorIs(t, err, manager.ErrUsernameTaken)
	})

	t.Run("rejects an invalid username", func(t *testing.T) {
		_, err := users.CreateCognitoOnlyUser(env.Ctx, "u3", "no spaces", "")
		assert.Equal(t, errs.Validation, errs.KindOf(err))
	})
}

func TestCreateFederatedUser(t *testing.T) {
	env := realtest.New(t)
	env.Fakes.Apple.Tokens["good-token"] = "fed@example.com"
	users := env.App.Users

	_, err := users.CreateFederatedUser(env.Ctx, manager.CreateFederatedUserInput{
		UserID: "f1", Username: "fed_user", Provider: collab.ProviderApple, Token: "bad-token",
	})
	require.ErrorIs(t, err, manager.ErrInvalidToken)
	assert.False(t, env.Fakes.Identity.Has("f1"))

	_, err = users.CreateFederatedUser(env.Ctx, manager.CreateFederatedUserInput{
		UserID: "f1", Username: "fed_user", Provider: "myspace", Token: "good-token",
	})
	require.ErrorIs(t, err, manager.ErrUnknownProvider)

	u, err := users.CreateFederatedUser(env.Ctx, manager.CreateFederatedUserInput{
		UserID: "f1", Username: "fed_user", Provider: collab.ProviderApple, Token: "good-token",
	})
	require.NoError(t, err)
	assert.Equal(t, "fed@example.com", u.Email)
	assert.True(t, env.Fakes.Identity.Has("f1"))
}

func TestUpdateUsername(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	env.User("bob")
	users := env.App.Users

	_, err := users.UpdateUsername(env.Ctx, "alice", "x")
	require.ErrorIs(t, err, manager.ErrInvalidUsername)

	_, err = users.UpdateUsername(env.Ctx, "alice", "bob")
	require.ErrorIs(t, err, manager.ErrUsernameTaken)

	u, err := users.UpdateUsername(env.Ctx, "alice", "alice_in_chains")
	require.NoError(t, err)
	assert.Equal(t, "alice_in_chains", u.Username)

	byName, err := env.App.Repos.User.GetByUsername(env.Ctx, "alice_in_chains")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, "alice", byName.UserID)
}

func TestSetUserDetails(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	env.TextPost("alice", "p1")
	users := env.App.Users

	_, err := users.SetUserDetails(env.Ctx, "alice", manager.UserDetails{})
	require.ErrorIs(t, err, manager.ErrNothingToUpdate)

	_, err = users.SetUserDetails(env.Ctx, "alice", manager.UserDetails{PhotoPostID: ptr("p1")})
	require.ErrorIs(t, err, manager.ErrInvalidPhotoPost)

	u, err := users.SetUserDetails(env.Ctx, "alice", manager.UserDetails{
		Bio:              ptr("  hello  "),
		LikesDisabled:    ptr(true),
		ViewCountsHidden: ptr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", u.Bio)
	assert.True(t, u.LikesDisabled)
	assert.True(t, u.ViewCountsHidden)

	u, err = users.SetUserDetails(env.Ctx, "alice", manager.UserDetails{Bio: ptr("")})
	require.NoError(t, err)
	assert.Empty(t, u.Bio)
}

func TestSetPrivacyStatus_GoingPublicAcceptsRequests(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	env.User("bob")
	env.User("carol")

	_, err := env.App.Users.SetPrivacyStatus(env.Ctx, "alice", model.Private)
	require.NoError(t, err)
	f, err := env.App.Follows.RequestToFollow(env.Ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, model.FollowRequested, f.Status)
	_, err = env.App.Follows.RequestToFollow(env.Ctx, "carol", "alice")
	require.NoError(t, err)
	_, err = env.App.Follows.Deny(env.Ctx, "alice", "carol")
	require.NoError(t, err)
	env.Settle()

	_, err = env.App.Users.SetPrivacyStatus(env.Ctx, "alice", model.Public)
	require.NoError(t, err)
	env.Settle()

	following, err := env.App.Follows.IsFollowing(env.Ctx, "bob", "alice")
	require.NoError(t, err)
	assert.True(t, following)
	denied, err := env.App.Follows.ListFollowers(env.Ctx, "alice", model.FollowDenied)
	require.NoError(t, err)
	assert.Empty(t, denied)
	assert.EqualValues(t, 1, env.GetUser("alice").FollowerCount)
}

func TestDisableAndEnable(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	users := env.App.Users

	u, err := users.Disable(env.Ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.UserDisabled, u.Status)
	require.NotNil(t, u.LastDisabledAt)

	_, err = users.GetActive(env.Ctx, "alice")
	require.ErrorIs(t, err, manager.ErrUserNotActive)
	_, err = env.App.Posts.AddPost(env.Ctx, manager.AddPostInput{PostID: "p1", UserID: "alice", Type: model.PostTextOnly, Text: "hi"})
	require.ErrorIs(t, err, manager.ErrUserNotActive)

	u, err = users.Enable(env.Ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.UserActive, u.Status)
}

func TestDeleteUser(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	env.User("bob")
	env.TextPost("alice", "p1")
	_, err := env.App.Follows.RequestToFollow(env.Ctx, "bob", "alice")
	require.NoError(t, err)
	env.Settle()

	require.NoError(t, env.App.Users.Delete(env.Ctx, "alice"))
	env.Settle()

	gone, err := env.App.Repos.User.Get(env.Ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, gone)
	tomb, err := env.App.Repos.User.GetTombstone(env.Ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, tomb)
	assert.Equal(t, "alice", tomb.Username)
	assert.Nil(t, env.GetPost("p1"))
	assert.False(t, env.Fakes.Identity.Has("alice"))
	assert.Zero(t, env.GetUser("bob").FollowedCount)

	require.NoError(t, env.App.Users.Delete(env.Ctx, "alice"))
	require.ErrorIs(t, env.App.Users.Delete(env.Ctx, "nobody"), manager.ErrUserNotFound)
}
