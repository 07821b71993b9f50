package manager

import (
	"context"

	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

// Target describes an item that can be flagged or viewed.
type Target struct {
	Kind     schema.Kind
	ID       string
	Key      store.Key
	AuthorID string

	// PostID is set for posts and comments, ChatID for chats and messages.
	PostID string
	ChatID string

	// OriginalPostID names the post a repost duplicates.
	OriginalPostID string

	// Completed is false for posts that are not visible yet.
	Completed bool
}

// Flaggable is implemented by managers whose items can be flagged.
type Flaggable interface {
	// FlagTarget resolves an item, or returns nil if it does not exist.
	FlagTarget(ctx context.Context, id string) (*Target, error)

	// ForceRemoveIfMet removes the item if its flags meet the moderation
	// criteria, reporting whether it did.
	ForceRemoveIfMet(ctx context.Context, id string) (bool, error)
}

// Viewable is implemented by managers whose items record views.
type Viewable interface {
	ViewTarget(ctx context.Context, id string) (*Target, error)
}
