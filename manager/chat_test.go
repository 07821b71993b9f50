package manager_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realsocial/real/internal/realtest"
	"github.com/realsocial/real/manager"
	"github.com/realsocial/real/model"
	"github.com/realsocial/real/repo"
)

func messageTexts(t *testing.T, env *realtest.Env, chatID string) []string {
	t.Helper()
	msgs, err := repo.Collect(env.App.Repos.ChatMessage.ByChat(env.Ctx, chatID))
	require.NoError(t, err)
	texts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		texts = append(texts, m.Text)
	}
	return texts
}

func TestDirectChat(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	env.User("bob")
	env.User("carol")
	chats := env.App.Chats

	_, err := chats.AddDirectChat(env.Ctx, "alice", "alice", "c0", "m0", "me")
	require.ErrorIs(t, err, manager.ErrCannotChatSelf)
	_, err = chats.AddDirectChat(env.Ctx, "alice", "bob", "c1", "m1", "")
	require.Error(t, err)

	c, err := chats.AddDirectChat(env.Ctx, "alice", "bob", "c1", "m1", "hey")
	require.NoError(t, err)
	assert.Equal(t, model.ChatDirect, c.Type)
	assert.EqualValues(t, 2, c.UserCount)
	assert.Equal(t, []string{"hey"}, messageTexts(t, env, "c1"))

	_, err = chats.AddDirectChat(env.Ctx, "bob", "alice", "c2", "m2", "hey back")
	require.ErrorIs(t, err, manager.ErrDirectChatExists)

	_, err = env.App.Messages.Add(env.Ctx, "carol", "c1", "m3", "let me in")
	require.ErrorIs(t, err, manager.ErrNotChatMember)

	_, err = env.App.Messages.Edit(env.Ctx, "bob", "m1", "forged")
	require.ErrorIs(t, err, manager.ErrNotMessageAuthor)
	edited, err := env.App.Messages.Edit(env.Ctx, "alice", "m1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", edited.Text)
	require.NotNil(t, edited.LastEditedAt)

	_, err = chats.EditGroupChat(env.Ctx, "alice", "c1", "pals")
	require.ErrorIs(t, err, manager.ErrChatType)

	require.NoError(t, chats.DeleteDirectChat(env.Ctx, "bob", "c1"))
	env.Settle()
	assert.Nil(t, env.Chat("c1"))
	_, err = chats.AddDirectChat(env.Ctx, "bob", "alice", "c2", "m2", "again")
	require.NoError(t, err)
}

func TestDirectChat_Blocked(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	env.User("bob")
	_, err := env.App.Chats.AddDirectChat(env.Ctx, "alice", "bob", "c1", "m1", "hey")
	require.NoError(t, err)

	_, err = env.App.Blocks.Block(env.Ctx, "bob", "alice")
	require.NoError(t, err)
	_, err = env.App.Messages.Add(env.Ctx, "alice", "c1", "m2", "hello?")
	require.ErrorIs(t, err, manager.ErrBlocked)
}

func TestGroupChat(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	env.User("bob")
	env.User("carol")
	env.User("dave")
	_, err := env.App.Blocks.Block(env.Ctx, "dave", "alice")
	require.NoError(t, err)
	chats := env.App.Chats

	c, err := chats.AddGroupChat(env.Ctx, "alice", manager.GroupChatInput{
		ChatID:  "g1",
		Name:    "crew",
		UserIDs: []string{"bob", "bob", "dave", "nobody"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.ChatGroup, c.Type)
	assert.EqualValues(t, 2, c.UserCount)
	assert.Nil(t, env.Member("g1", "dave"))
	assert.Empty(t, messageTexts(t, env, "g1"))

	c, err = chats.AddToGroupChat(env.Ctx, "bob", "g1", []string{"carol", "alice"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, c.UserCount)
	assert.NotNil(t, env.Member("g1", "carol"))

	_, err = chats.EditGroupChat(env.Ctx, "carol", "g1", "renamed")
	require.NoError(t, err)
	require.NoError(t, chats.LeaveGroupChat(env.Ctx, "bob", "g1"))
	require.ErrorIs(t, chats.LeaveGroupChat(env.Ctx, "bob", "g1"), manager.ErrNotChatMember)

	assert.ElementsMatch(t, []string{
		"@bob added @carol to the group",
		`@carol changed the name of the group to "renamed"`,
		"@bob left the group",
	}, messageTexts(t, env, "g1"))
	assert.EqualValues(t, 2, env.Chat("g1").UserCount)
	assert.Equal(t, "renamed", env.Chat("g1").Name)
}
