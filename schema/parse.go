package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/realsocial/real/store"
)

// Kind names an entity kind stored in the table.
type Kind string

const (
	KindUser        Kind = "user"
	KindUserDeleted Kind = "userDeleted"
	KindPost        Kind = "post"
	KindPostImage   Kind = "postImage"
	KindFeed        Kind = "feed"
	KindFirstStory  Kind = "followedFirstStory"
	KindFlag        Kind = "flag"
	KindView        Kind = "view"
	KindComment     Kind = "comment"
	KindAlbum       Kind = "album"
	KindCard        Kind = "card"
	KindChat        Kind = "chat"
	KindChatMember  Kind = "chatMember"
	KindChatMessage Kind = "chatMessage"
	KindDirectChat  Kind = "directChat"
	KindFollow      Kind = "follow"
	KindBlock       Kind = "block"
	KindLike        Kind = "like"
	KindTrending    Kind = "trending"
	KindAppStoreSub Kind = "appStoreSub"
	KindProcessed   Kind = "processed"
)

// ErrUnknownKey is returned by Parse for keys no kind owns.
var ErrUnknownKey = errors.New("schema: unknown key")

// Ref identifies the entity behind a key. Flags and views also carry the
// item they attach to.
type Ref struct {
	Kind Kind
	IDs  []string
	Item *Ref
}

// ID returns the first id, or "".
func (r Ref) ID() string {
	if len(r.IDs) == 0 {
		return ""
	}
	return r.IDs[0]
}

// Parse recovers the kind and ids from a primary key.
func Parse(key store.Key) (Ref, error) {
	pk, sk := key.PK, key.SK
	switch {
	case strings.HasPrefix(sk, skFlag):
		item, err := parseItem(pk)
		if err != nil {
			return Ref{}, fmt.Errorf("%w: %s", ErrUnknownKey, key)
		}
		return Ref{Kind: KindFlag, IDs: []string{strings.TrimPrefix(sk, skFlag)}, Item: &item}, nil
	case strings.HasPrefix(sk, skView):
		item, err := parseItem(pk)
		if err != nil {
			return Ref{}, fmt.Errorf("%w: %s", ErrUnknownKey, key)
		}
		return Ref{Kind: KindView, IDs: []string{strings.TrimPrefix(sk, skView)}, Item: &item}, nil
	}

	prefix, rest, ok := strings.Cut(pk, "/")
	if !ok || rest == "" {
		return Ref{}, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	ids := strings.Split(rest, "/")

	switch prefix + "/" {
	case prefixUser:
		switch {
		case sk == skProfile:
			return Ref{Kind: KindUser, IDs: ids}, nil
		case sk == skDeleted:
			return Ref{Kind: KindUserDeleted, IDs: ids}, nil
		case strings.HasPrefix(sk, skFollower) && strings.HasSuffix(sk, skFirstStory):
			follower := strings.TrimSuffix(strings.TrimPrefix(sk, skFollower), skFirstStory)
			return Ref{Kind: KindFirstStory, IDs: []string{ids[0], follower}}, nil
		}
	case prefixPost:
		switch {
		case sk == Placeholder:
			return Ref{Kind: KindPost, IDs: ids}, nil
		case sk == skImage:
			return Ref{Kind: KindPostImage, IDs: ids}, nil
		case strings.HasPrefix(sk, skFeed):
			return Ref{Kind: KindFeed, IDs: []string{strings.TrimPrefix(sk, skFeed), ids[0]}}, nil
		}
	case prefixChat:
		switch {
		case sk == Placeholder:
			return Ref{Kind: KindChat, IDs: ids}, nil
		case strings.HasPrefix(sk, skMember):
			return Ref{Kind: KindChatMember, IDs: []string{ids[0], strings.TrimPrefix(sk, skMember)}}, nil
		}
	}

	if sk != Placeholder {
		return Ref{}, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	kinds := map[string]Kind{
		prefixComment:     KindComment,
		prefixAlbum:       KindAlbum,
		prefixCard:        KindCard,
		prefixChatMessage: KindChatMessage,
		prefixDirectChat:  KindDirectChat,
		prefixFollowing:   KindFollow,
		prefixBlock:       KindBlock,
		prefixLike:        KindLike,
		prefixTrending:    KindTrending,
		prefixAppStoreSub: KindAppStoreSub,
		prefixProcessed:   KindProcessed,
	}
	if kind, ok := kinds[prefix+"/"]; ok {
		return Ref{Kind: kind, IDs: ids}, nil
	}
	return Ref{}, fmt.Errorf("%w: %s", ErrUnknownKey, key)
}

// parseItem resolves the item a flag or view row hangs off. Users are the
// only items whose own row is not under the placeholder sort key.
func parseItem(pk string) (Ref, error) {
	if strings.HasPrefix(pk, prefixUser) {
		return Parse(store.Key{PK: pk, SK: skProfile})
	}
	return Parse(store.Key{PK: pk, SK: Placeholder})
}
