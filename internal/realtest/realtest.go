// Package realtest runs the managers and the reactor over an in-memory
// table with fake collaborators, for tests that need the whole system.
package realtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/realsocial/real/collab"
	"github.com/realsocial/real/collab/collabtest"
	"github.com/realsocial/real/config"
	"github.com/realsocial/real/manager"
	"github.com/realsocial/real/model"
	"github.com/realsocial/real/reactor"
	"github.com/realsocial/real/store"
)

// Start is the clock's initial time.
var Start = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// Env is a wired system. Its clock only moves through Advance.
type Env struct {
	T     testing.TB
	Ctx   context.Context
	Store *store.Memory
	Fakes *collabtest.Fakes
	App   *manager.App
	Local *reactor.Local

	mu  sync.Mutex
	now time.Time
}

// New wires an App and a reactor over an empty table.
func New(t testing.TB, opts ...manager.Option) *Env {
	t.Helper()
	e := &Env{
		T:     t,
		Ctx:   context.Background(),
		Store: store.NewMemory(),
		Fakes: collabtest.New(),
		now:   Start,
	}
	opts = append([]manager.Option{
		manager.WithClock(e.Now),
		manager.WithLogger(zaptest.NewLogger(t)),
	}, opts...)
	e.App = manager.New(config.Default(), e.Store, e.Fakes.Set(), opts...)
	e.Local = &reactor.Local{Store: e.Store, Dispatcher: reactor.New(e.App)}
	return e
}

// Now returns the current fake time.
func (e *Env) Now() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

// Advance moves the clock forward.
func (e *Env) Advance(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = e.now.Add(d)
}

// Settle runs the reactor until no changes are pending.
func (e *Env) Settle() {
	e.T.Helper()
	_, err := e.Local.Settle(e.Ctx)
	require.NoError(e.T, err)
}

// User creates an active public user whose username is its id, and
// settles.
func (e *Env) User(userID string) *model.User {
	e.T.Helper()
	e.Fakes.Identity.AddUser(userID, map[string]string{
		collab.AttrEmail:         userID + "@example.com",
		collab.AttrEmailVerified: "true",
	})
	u, err := e.App.Users.CreateCognitoOnlyUser(e.Ctx, userID, userID, "")
	require.NoError(e.T, err)
	e.Settle()
	return u
}

// GetUser reads a user's profile row.
func (e *Env) GetUser(userID string) *model.User {
	e.T.Helper()
	u, err := e.App.Repos.User.Get(e.Ctx, userID)
	require.NoError(e.T, err)
	require.NotNil(e.T, u, "user %s", userID)
	return u
}

// GetPost reads a post row, which may be nil.
func (e *Env) GetPost(postID string) *model.Post {
	e.T.Helper()
	p, err := e.App.Repos.Post.Get(e.Ctx, postID)
	require.NoError(e.T, err)
	return p
}

// TextPost adds a completed text post and settles.
func (e *Env) TextPost(userID, postID string) *model.Post {
	e.T.Helper()
	return e.post(manager.AddPostInput{PostID: postID, UserID: userID, Type: model.PostTextOnly, Text: "post " + postID})
}

// Story adds a completed text post that expires after lifetime, and
// settles.
func (e *Env) Story(userID, postID string, lifetime time.Duration) *model.Post {
	e.T.Helper()
	return e.post(manager.AddPostInput{
		PostID:   postID,
		UserID:   userID,
		Type:     model.PostTextOnly,
		Text:     "story " + postID,
		Lifetime: &lifetime,
	})
}

func (e *Env) post(in manager.AddPostInput) *model.Post {
	e.T.Helper()
	p, err := e.App.Posts.AddPost(e.Ctx, in)
	require.NoError(e.T, err)
	require.Equal(e.T, model.PostCompleted, p.Status)
	e.Settle()
	return p
}

// Member reads a chat member row, which may be nil.
func (e *Env) Member(chatID, userID string) *model.ChatMember {
	e.T.Helper()
	m, err := e.App.Repos.Chat.GetMember(e.Ctx, chatID, userID)
	require.NoError(e.T, err)
	return m
}

// Chat reads a chat row, which may be nil.
func (e *Env) Chat(chatID string) *model.Chat {
	e.T.Helper()
	c, err := e.App.Repos.Chat.Get(e.Ctx, chatID)
	require.NoError(e.T, err)
	return c
}
