package manager_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realsocial/real/collab"
	"github.com/realsocial/real/internal/realtest"
	"github.com/realsocial/real/manager"
	"github.com/realsocial/real/model"
	"github.com/realsocial/real/schema"
)

func TestLikes(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	env.User("bob")
	env.TextPost("alice", "p1")
	likes := env.App.Likes

	_, err := likes.Like(env.Ctx, "bob", "p1", model.LikeStatus("MAYBE"))
	require.ErrorIs(t, err, manager.ErrInvalidPost)

	_, err = likes.Like(env.Ctx, "bob", "p1", model.AnonymouslyLiked)
	require.NoError(t, err)
	_, err = likes.Like(env.Ctx, "bob", "p1", model.OnymouslyLiked)
	require.ErrorIs(t, err, manager.ErrAlreadyLiked)
	env.Settle()
	assert.EqualValues(t, 1, env.GetPost("p1").AnonymousLikeCount)

	require.NoError(t, likes.Dislike(env.Ctx, "bob", "p1"))
	require.ErrorIs(t, likes.Dislike(env.Ctx, "bob", "p1"), manager.ErrNotLiked)
	env.Settle()
	assert.Zero(t, env.GetPost("p1").AnonymousLikeCount)

	_, err = env.App.Posts.EditPost(env.Ctx, "alice", "p1", manager.PostEdit{LikesDisabled: ptr(true)})
	require.NoError(t, err)
	_, err = likes.Like(env.Ctx, "bob", "p1", model.OnymouslyLiked)
	require.ErrorIs(t, err, manager.ErrLikesDisabled)
}

func TestLikes_PrivateAuthorRequiresFollow(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	env.User("bob")
	env.TextPost("alice", "p1")
	_, err := env.App.Users.SetPrivacyStatus(env.Ctx, "alice", model.Private)
	require.NoError(t, err)

	_, err = env.App.Likes.Like(env.Ctx, "bob", "p1", model.OnymouslyLiked)
	require.ErrorIs(t, err, manager.ErrPrivateUser)

	_, err = env.App.Follows.RequestToFollow(env.Ctx, "bob", "alice")
	require.NoError(t, err)
	_, err = env.App.Follows.Accept(env.Ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = env.App.Likes.Like(env.Ctx, "bob", "p1", model.OnymouslyLiked)
	require.NoError(t, err)
}

func TestBlocks(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	env.User("bob")
	blocks := env.App.Blocks

	_, err := blocks.Block(env.Ctx, "alice", "alice")
	require.ErrorIs(t, err, manager.ErrCannotBlockSelf)
	_, err = blocks.Block(env.Ctx, "alice", "nobody")
	require.ErrorIs(t, err, manager.ErrUserNotFound)

	_, err = blocks.Block(env.Ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = blocks.Block(env.Ctx, "alice", "bob")
	require.ErrorIs(t, err, manager.ErrAlreadyBlocked)

	blocked, err := blocks.IsBlocked(env.Ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, blocked)
	blocked, err = blocks.IsBlocked(env.Ctx, "bob", "alice")
	require.NoError(t, err)
	assert.False(t, blocked)

	_, err = env.App.Follows.RequestToFollow(env.Ctx, "bob", "alice")
	require.ErrorIs(t, err, manager.ErrBlocked)

	require.NoError(t, blocks.Unblock(env.Ctx, "alice", "bob"))
	require.ErrorIs(t, blocks.Unblock(env.Ctx, "alice", "bob"), manager.ErrNotBlocked)
	_, err = env.App.Follows.RequestToFollow(env.Ctx, "bob", "alice")
	require.NoError(t, err)
}

func TestFollows(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	env.User("bob")
	follows := env.App.Follows

	_, err := follows.RequestToFollow(env.Ctx, "alice", "alice")
	require.ErrorIs(t, err, manager.ErrCannotFollowSelf)
	_, err = follows.RequestToFollow(env.Ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = follows.RequestToFollow(env.Ctx, "alice", "bob")
	require.ErrorIs(t, err, manager.ErrAlreadyFollowing)

	_, err = follows.Accept(env.Ctx, "bob", "alice")
	require.ErrorIs(t, err, manager.ErrFollowStatus)

	require.NoError(t, follows.Unfollow(env.Ctx, "alice", "bob", false))
	require.ErrorIs(t, follows.Unfollow(env.Ctx, "alice", "bob", false), manager.ErrNotFollowing)
}

func TestComments(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	env.User("bob")
	env.User("carol")
	env.TextPost("alice", "p1")
	comments := env.App.Comments

	_, err := comments.AddComment(env.Ctx, "c1", "p1", "bob", "")
	require.Error(t, err)
	_, err = comments.AddComment(env.Ctx, "c1", "p404", "bob", "hi")
	require.ErrorIs(t, err, manager.ErrPostNotFound)

	c, err := comments.AddComment(env.Ctx, "c1", "p1", "bob", "nice")
	require.NoError(t, err)
	assert.Equal(t, realtest.Start, c.CommentedAt)
	_, err = comments.AddComment(env.Ctx, "c1", "p1", "bob", "nice")
	require.ErrorIs(t, err, manager.ErrCommentAlreadyExists)
	_, err = comments.AddComment(env.Ctx, "c2", "p1", "carol", "me too")
	require.NoError(t, err)
	env.Settle()
	assert.EqualValues(t, 2, env.GetPost("p1").CommentCount)

	require.ErrorIs(t, comments.DeleteComment(env.Ctx, "c1", "carol"), manager.ErrNotCommentOwner)
	require.NoError(t, comments.DeleteComment(env.Ctx, "c1", "bob"))
	require.NoError(t, comments.DeleteComment(env.Ctx, "c2", "alice"))
	require.ErrorIs(t, comments.DeleteComment(env.Ctx, "c2", "alice"), manager.ErrCommentNotFound)
	env.Settle()
	assert.Zero(t, env.GetPost("p1").CommentCount)

	_, err = env.App.Posts.EditPost(env.Ctx, "alice", "p1", manager.PostEdit{CommentsDisabled: ptr(true)})
	require.NoError(t, err)
	_, err = comments.AddComment(env.Ctx, "c3", "p1", "bob", "still here")
	require.ErrorIs(t, err, manager.ErrCommentsDisabled)
}

func TestFlags(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	env.User("bob")
	env.TextPost("alice", "p1")
	flags := env.App.Flags

	_, err := flags.Flag(env.Ctx, "bob", schema.KindAlbum, "a1")
	require.ErrorIs(t, err, manager.ErrNotFlaggable)
	_, err = flags.Flag(env.Ctx, "bob", schema.KindPost, "p404")
	require.ErrorIs(t, err, manager.ErrItemNotFound)
	_, err = flags.Flag(env.Ctx, "alice", schema.KindPost, "p1")
	require.ErrorIs(t, err, manager.ErrCannotFlagOwn)

	f, err := flags.Flag(env.Ctx, "bob", schema.KindPost, "p1")
	require.NoError(t, err)
	assert.Equal(t, "alice", f.ItemAuthorUserID)
	_, err = flags.Flag(env.Ctx, "bob", schema.KindPost, "p1")
	require.ErrorIs(t, err, manager.ErrAlreadyFlagged)
	env.Settle()
	assert.EqualValues(t, 1, env.GetPost("p1").FlagCount)

	require.NoError(t, flags.Unflag(env.Ctx, "bob", schema.KindPost, "p1"))
	require.ErrorIs(t, flags.Unflag(env.Ctx, "bob", schema.KindPost, "p1"), manager.ErrNotFlagged)
	env.Settle()
	assert.Zero(t, env.GetPost("p1").FlagCount)
}

func TestViews_RejectUnviewableKinds(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")

	err := env.App.Views.RecordViews(env.Ctx, "alice", schema.KindAlbum, []string{"a1"}, time.Time{})
	require.ErrorIs(t, err, manager.ErrNotViewable)

	require.NoError(t, env.App.Views.RecordViews(env.Ctx, "alice", schema.KindPost, []string{"p404"}, time.Time{}))
}

func TestAppStore(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	env.User("bob")
	env.Fakes.AppStore.Receipts["receipt-1"] = &collab.Receipt{Transactions: []collab.ReceiptTransaction{{
		OriginalTransactionID: "otx1",
		ProductID:             "diamond.monthly",
		PurchasedAt:           realtest.Start.Add(-time.Hour),
		ExpiresAt:             realtest.Start.Add(30 * 24 * time.Hour),
	}}}
	env.Fakes.AppStore.Receipts["empty"] = &collab.Receipt{}
	appStore := env.App.AppStore

	_, err := appStore.AddReceipt(env.Ctx, "alice", "empty")
	require.ErrorIs(t, err, manager.ErrInvalidReceipt)

	sub, err := appStore.AddReceipt(env.Ctx, "alice", "receipt-1")
	require.NoError(t, err)
	assert.Equal(t, model.SubActive, sub.Status)
	require.NotNil(t, sub.NextVerificationAt)
	assert.Equal(t, realtest.Start.Add(24*time.Hour), *sub.NextVerificationAt)
	env.Settle()
	assert.Equal(t, model.SubscriptionDiamond, env.GetUser("alice").SubscriptionLevel)

	_, err = appStore.AddReceipt(env.Ctx, "bob", "receipt-1")
	require.ErrorIs(t, err, manager.ErrReceiptOfOtherUser)

	n, err := appStore.Refresh(env.Ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	env.Advance(31 * 24 * time.Hour)
	n, err = appStore.Refresh(env.Ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	env.Settle()
	assert.Equal(t, model.SubscriptionBasic, env.GetUser("alice").SubscriptionLevel)
}
