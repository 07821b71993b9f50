package schema

import (
	"strings"

	"github.com/realsocial/real/store"
)

// CurrentVersion is the newest row schemaVersion this build understands.
const CurrentVersion = 0

// Attribute names shared across kinds.
const (
	AttrSchemaVersion = "schemaVersion"
	Placeholder       = "-"
)

// Partition key prefixes.
const (
	prefixUser        = "user/"
	prefixPost        = "post/"
	prefixComment     = "comment/"
	prefixAlbum       = "album/"
	prefixCard        = "card/"
	prefixChat        = "chat/"
	prefixChatMessage = "chatMessage/"
	prefixDirectChat  = "directChat/"
	prefixFollowing   = "following/"
	prefixBlock       = "block/"
	prefixLike        = "like/"
	prefixTrending    = "trending/"
	prefixAppStoreSub = "appStoreSub/"
	prefixProcessed   = "processed/"
)

// Sort key tokens.
const (
	skProfile    = "profile"
	skDeleted    = "deleted"
	skImage      = "image"
	skFeed       = "feed/"
	skFlag       = "flag/"
	skView       = "view/"
	skMember     = "member/"
	skFollower   = "follower/"
	skFirstStory = "/firstStory"
)

func UserKey(userID string) store.Key {
	return store.Key{PK: prefixUser + userID, SK: skProfile}
}

func UserDeletedKey(userID string) store.Key {
	return store.Key{PK: prefixUser + userID, SK: skDeleted}
}

func PostKey(postID string) store.Key {
	return store.Key{PK: prefixPost + postID, SK: Placeholder}
}

func PostImageKey(postID string) store.Key {
	return store.Key{PK: prefixPost + postID, SK: skImage}
}

func CommentKey(commentID string) store.Key {
	return store.Key{PK: prefixComment + commentID, SK: Placeholder}
}

func AlbumKey(albumID string) store.Key {
	return store.Key{PK: prefixAlbum + albumID, SK: Placeholder}
}

func CardKey(cardID string) store.Key {
	return store.Key{PK: prefixCard + cardID, SK: Placeholder}
}

func ChatKey(chatID string) store.Key {
	return store.Key{PK: prefixChat + chatID, SK: Placeholder}
}

func ChatMemberKey(chatID, userID string) store.Key {
	return store.Key{PK: prefixChat + chatID, SK: skMember + userID}
}

func ChatMessageKey(messageID string) store.Key {
	return store.Key{PK: prefixChatMessage + messageID, SK: Placeholder}
}

// DirectChatKey is the uniqueness marker of the direct chat between two
// users, independent of argument order.
func DirectChatKey(userA, userB string) store.Key {
	lo, hi := SortedPair(userA, userB)
	return store.Key{PK: prefixDirectChat + lo + "/" + hi, SK: Placeholder}
}

func FollowKey(followerID, followedID string) store.Key {
	return store.Key{PK: prefixFollowing + followerID + "/" + followedID, SK: Placeholder}
}

// FirstStoryKey points follower at the soonest-expiring story of followed.
func FirstStoryKey(followedID, followerID string) store.Key {
	return store.Key{PK: prefixUser + followedID, SK: skFollower + followerID + skFirstStory}
}

// FeedKey places a post in a user's feed.
func FeedKey(userID, postID string) store.Key {
	return store.Key{PK: prefixPost + postID, SK: skFeed + userID}
}

func BlockKey(blockerID, blockedID string) store.Key {
	return store.Key{PK: prefixBlock + blockerID + "/" + blockedID, SK: Placeholder}
}

func LikeKey(userID, postID string) store.Key {
	return store.Key{PK: prefixLike + userID + "/" + postID, SK: Placeholder}
}

func TrendingKey(itemID string) store.Key {
	return store.Key{PK: prefixTrending + itemID, SK: Placeholder}
}

func AppStoreSubKey(originalTransactionID string) store.Key {
	return store.Key{PK: prefixAppStoreSub + originalTransactionID, SK: Placeholder}
}

// ProcessedKey marks a change-stream event as handled.
func ProcessedKey(eventID string) store.Key {
	return store.Key{PK: prefixProcessed + eventID, SK: Placeholder}
}

// FlagKey is a user's flag on the item at itemKey.
func FlagKey(itemKey store.Key, userID string) store.Key {
	return store.Key{PK: itemKey.PK, SK: skFlag + userID}
}

// ViewKey is a user's view record on the item at itemKey.
func ViewKey(itemKey store.Key, userID string) store.Key {
	return store.Key{PK: itemKey.PK, SK: skView + userID}
}

// FlagPrefix and ViewPrefix select every flag or view row of an item.
const (
	FlagPrefix   = skFlag
	ViewPrefix   = skView
	MemberPrefix = skMember
	FeedPrefix   = skFeed
)

// ItemKey returns the key of a flaggable or viewable item.
func ItemKey(kind Kind, id string) (store.Key, bool) {
	switch kind {
	case KindPost:
		return PostKey(id), true
	case KindComment:
		return CommentKey(id), true
	case KindChat:
		return ChatKey(id), true
	case KindChatMessage:
		return ChatMessageKey(id), true
	case KindUser:
		return UserKey(id), true
	}
	return store.Key{}, false
}

// SortedPair orders two ids so that pairs compare equal regardless of order.
func SortedPair(a, b string) (string, string) {
	if strings.Compare(a, b) <= 0 {
		return a, b
	}
	return b, a
}

// VersionGuard holds for rows written at a schema version this build
// understands. Rows without the attribute pass.
func VersionGuard() store.Cond {
	return store.Not(store.Gt(AttrSchemaVersion, CurrentVersion))
}
