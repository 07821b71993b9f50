package manager_test

import (
	"context"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realsocial/real/config"
	"github.com/realsocial/real/internal/realtest"
	"github.com/realsocial/real/manager"
	"github.com/realsocial/real/model"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// staleBlockStore runs a hook once, right after the first read of the
// given block row, so a block lands between a writer's check and its write.
type staleBlockStore struct {
	*store.Memory
	watch store.Key
	once  sync.Once
	hook  func()
}

func (s *staleBlockStore) BatchGet(ctx context.Context, keys []store.Key) ([]store.Row, error) {
	rows, err := s.Memory.BatchGet(ctx, keys)
	if slices.Contains(keys, s.watch) {
		s.once.Do(s.hook)
	}
	return rows, err
}

func TestBlock_LandingMidWriteRefusesTheWrite(t *testing.T) {
	tests := []struct {
		name  string
		write func(app *manager.App, env *realtest.Env) error
		row   store.Key
	}{
		{
			name: "follow",
			write: func(app *manager.App, env *realtest.Env) error {
				_, err := app.Follows.RequestToFollow(env.Ctx, "bob", "alice")
				return err
			},
			row: schema.FollowKey("bob", "alice"),
		},
		{
			name: "like",
			write: func(app *manager.App, env *realtest.Env) error {
				_, err := app.Likes.Like(env.Ctx, "bob", "p1", model.OnymouslyLiked)
				return err
			},
			row: schema.LikeKey("bob", "p1"),
		},
		{
			name: "comment",
			write: func(app *manager.App, env *realtest.Env) error {
				_, err := app.Comments.AddComment(env.Ctx, "c1", "p1", "bob", "hi")
				return err
			},
			row: schema.CommentKey("c1"),
		},
		{
			name: "flag",
			write: func(app *manager.App, env *realtest.Env) error {
				_, err := app.Flags.Flag(env.Ctx, "bob", schema.KindPost, "p1")
				return err
			},
			row: schema.FlagKey(schema.PostKey("p1"), "bob"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := realtest.New(t)
			env.User("alice")
			env.User("bob")
			env.TextPost("alice", "p1")

			s := &staleBlockStore{
				Memory: env.Store,
				watch:  schema.BlockKey("alice", "bob"),
				hook: func() {
					_, err := env.App.Blocks.Block(env.Ctx, "alice", "bob")
					require.NoError(t, err)
				},
			}
			app := manager.New(config.Default(), s, env.Fakes.Set(), manager.WithClock(env.Now))

			err := tt.write(app, env)
			require.ErrorIs(t, err, manager.ErrBlocked)

			got, err := env.Store.Get(env.Ctx, tt.row)
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestBlock_OwnContentIsNotGuarded(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	env.TextPost("alice", "p1")

	_, err := env.App.Comments.AddComment(env.Ctx, "c1", "p1", "alice", "first")
	require.NoError(t, err)
}
