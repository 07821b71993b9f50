package manager_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realsocial/real/internal/realtest"
	"github.com/realsocial/real/manager"
	"github.com/realsocial/real/model"
)

func TestCards_RequestedFollowers(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	env.User("bob")
	_, err := env.App.Users.SetPrivacyStatus(env.Ctx, "alice", model.Private)
	require.NoError(t, err)
	_, err = env.App.Users.SetAPNSToken(env.Ctx, "alice", "apns-alice")
	require.NoError(t, err)

	_, err = env.App.Follows.RequestToFollow(env.Ctx, "bob", "alice")
	require.NoError(t, err)
	env.Settle()

	cards, err := env.App.Cards.List(env.Ctx, "alice")
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "alice:REQUESTED_FOLLOWERS", cards[0].CardID)
	assert.Equal(t, "You have 1 pending follow request", cards[0].Title)
	assert.EqualValues(t, 1, env.GetUser("alice").CardCount)

	pushes := env.Fakes.Push.Calls("apns")
	require.Len(t, pushes, 1)
	assert.Equal(t, "alice", pushes[0].UserID)
	require.NotEmpty(t, env.Fakes.Gateway.Calls())
	added := env.Fakes.Gateway.Calls()[0].Variables["input"].(map[string]any)
	assert.Equal(t, manager.NotifyAdded, added["type"])

	_, err = env.App.Follows.Accept(env.Ctx, "alice", "bob")
	require.NoError(t, err)
	env.Settle()

	cards, err = env.App.Cards.List(env.Ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, cards)
	assert.Zero(t, env.GetUser("alice").CardCount)
}

func TestCards_DeleteOnlyOwn(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	env.User("bob")
	created, err := env.App.Cards.Upsert(env.Ctx, &model.Card{
		CardID: "alice:CUSTOM",
		UserID: "alice",
		Type:   "CUSTOM",
		Title:  "hello",
		Action: "https://real.app",
	})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = env.App.Cards.Upsert(env.Ctx, &model.Card{
		CardID: "alice:CUSTOM",
		UserID: "alice",
		Type:   "CUSTOM",
		Title:  "hello again",
		Action: "https://real.app",
	})
	require.NoError(t, err)
	assert.False(t, created)

	require.ErrorIs(t, env.App.Cards.Delete(env.Ctx, "bob", "alice:CUSTOM"), manager.ErrItemNotFound)
	require.NoError(t, env.App.Cards.Delete(env.Ctx, "alice", "alice:CUSTOM"))
	require.ErrorIs(t, env.App.Cards.Delete(env.Ctx, "alice", "alice:CUSTOM"), manager.ErrItemNotFound)
}
