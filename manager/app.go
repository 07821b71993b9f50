// Package manager implements the coarse operations behind the GraphQL
// surface. Operations validate their input, write the rows they own, and
// leave every derived counter, card and index to package reactor.
//
// All managers hang off a single App built once at startup. Managers hold
// only a pointer back to the App, so any manager can reach any other without
// import cycles or shared mutable state.
package manager

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/realsocial/real/collab"
	"github.com/realsocial/real/config"
	"github.com/realsocial/real/internal/logging"
	"github.com/realsocial/real/internal/metrics"
	"github.com/realsocial/real/moderation"
	"github.com/realsocial/real/repo"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
	"github.com/realsocial/real/trending"
)

// App is the service registry.
type App struct {
	Config     config.Config
	Store      store.KeyedStore
	Repos      *repo.Repos
	Collab     collab.Set
	Logger     *zap.Logger
	Metrics    *metrics.Emitter
	Moderation moderation.Policy
	Trending   *trending.Engine

	// Now and NewID are replaceable for tests.
	Now   func() time.Time
	NewID func() string

	Users    *UserManager
	Follows  *FollowManager
	Posts    *PostManager
	Comments *CommentManager
	Albums   *AlbumManager
	Chats    *ChatManager
	Messages *ChatMessageManager
	Blocks   *BlockManager
	Flags    *FlagManager
	Views    *ViewManager
	Likes    *LikeManager
	Cards    *CardManager
	AppStore *AppStoreManager

	flaggables map[schema.Kind]Flaggable
	viewables  map[schema.Kind]Viewable
}

// Option customizes an App.
type Option func(*App)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) { a.Logger = logging.OrNop(l) }
}

// WithMetrics sets the metrics emitter.
func WithMetrics(m *metrics.Emitter) Option {
	return func(a *App) { a.Metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.Now = now }
}

// WithIDs replaces the random id generator.
func WithIDs(newID func() string) Option {
	return func(a *App) { a.NewID = newID }
}

// New wires every manager over s.
func New(cfg config.Config, s store.KeyedStore, c collab.Set, opts ...Option) *App {
	a := &App{
		Config:     cfg,
		Store:      s,
		Repos:      repo.New(s),
		Collab:     c,
		Logger:     zap.NewNop(),
		Metrics:    metrics.Nop(),
		Moderation: moderation.New(cfg.ModerationRatio, cfg.FlagAlertThreshold),
		Now:        time.Now,
		NewID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.Trending = trending.New(a.Repos.Trending, trending.Options{
		DecayPerDay:    cfg.TrendingDecayPerDay,
		ScoreFloor:     cfg.TrendingScoreFloor,
		MinCountToKeep: cfg.MinTrendingCountToKeep,
	}, a.now, a.Logger.Named("trending"), a.Metrics)

	a.Users = &UserManager{a}
	a.Follows = &FollowManager{a}
	a.Posts = &PostManager{a}
	a.Comments = &CommentManager{a}
	a.Albums = &AlbumManager{a}
	a.Chats = &ChatManager{a}
	a.Messages = &ChatMessageManager{a}
	a.Blocks = &BlockManager{a}
	a.Flags = &FlagManager{a}
	a.Views = &ViewManager{a}
	a.Likes = &LikeManager{a}
	a.Cards = &CardManager{a}
	a.AppStore = &AppStoreManager{a}

	a.flaggables = map[schema.Kind]Flaggable{
		schema.KindPost:        a.Posts,
		schema.KindComment:     a.Comments,
		schema.KindChat:        a.Chats,
		schema.KindChatMessage: a.Messages,
	}
	a.viewables = map[schema.Kind]Viewable{
		schema.KindPost:        a.Posts,
		schema.KindComment:     a.Comments,
		schema.KindChat:        a.Chats,
		schema.KindChatMessage: a.Messages,
	}
	return a
}

// now reads the clock in UTC at microsecond precision, the precision rows
// are stored at.
func (a *App) now() time.Time {
	return a.Now().UTC().Truncate(time.Microsecond)
}

// Flaggable returns the manager owning flags on kind.
func (a *App) Flaggable(kind schema.Kind) (Flaggable, bool) {
	f, ok := a.flaggables[kind]
	return f, ok
}

// Viewable returns the manager owning views on kind.
func (a *App) Viewable(kind schema.Kind) (Viewable, bool) {
	v, ok := a.viewables[kind]
	return v, ok
}
