package schema

import (
	"strings"
	"time"

	"github.com/realsocial/real/store"
)

// SetIndex stores the key attributes that place r in index.
func SetIndex(r store.Row, index, pk string, sk any) error {
	pkAttr, skAttr := store.IndexAttrs(index)
	pkv, err := store.Marshal(pk)
	if err != nil {
		return err
	}
	skv, err := store.Marshal(sk)
	if err != nil {
		return err
	}
	r[pkAttr] = pkv
	r[skAttr] = skv
	return nil
}

// IndexUpdate sets or, with an empty pk, removes the index key attributes.
func IndexUpdate(u *store.Update, index, pk string, sk any) *store.Update {
	pkAttr, skAttr := store.IndexAttrs(index)
	if pk == "" {
		return u.Remove(pkAttr, skAttr)
	}
	return u.Set(pkAttr, pk).Set(skAttr, sk)
}

// User

func UsernamePK(username string) string { return "username/" + strings.ToLower(username) }

// Post

// PostsByUserPK partitions a user's posts. GSI-A2 sorts by status/postedAt
// and GSI-A1 holds stories sorted by status/expiresAt.
func PostsByUserPK(userID string) string { return prefixPost + userID }

// StatusSK sorts rows by status, then time.
func StatusSK(status string, at time.Time) string {
	return status + "/" + store.FormatTime(at)
}

// PostsExpiringPK buckets stories by expiry day on GSI-K1.
func PostsExpiringPK(day time.Time) string {
	return "postExpiry/" + day.UTC().Format("2006-01-02")
}

func PostChecksumPK(checksum string) string { return "postChecksum/" + checksum }

// PostsByAlbumPK orders an album's posts by rank on GSI-K3.
func PostsByAlbumPK(albumID string) string { return prefixAlbum + albumID }

// PostCommentActivityPK lists a user's posts with unviewed comments on GSI-A3.
func PostCommentActivityPK(userID string) string { return "postCommentActivity/" + userID }

// Comment

func CommentsByPostPK(postID string) string { return prefixComment + postID }
func CommentsByUserPK(userID string) string { return prefixComment + userID }

// Album

func AlbumsByUserPK(userID string) string { return prefixAlbum + userID }

// Card

func CardsByUserPK(userID string) string { return prefixUser + userID }
func CardsByUserSK(createdAt time.Time) string {
	return "card/" + store.FormatTime(createdAt)
}
func CardsByPostPK(postID string) string { return prefixCard + postID }

// Chat

// ChatsByMemberPK orders a user's chats by last activity on GSI-K2.
func ChatsByMemberPK(userID string) string { return skMember + userID }

func MessagesByChatPK(chatID string) string { return prefixChatMessage + chatID }
func MessagesByUserPK(userID string) string { return prefixChatMessage + userID }

// Follow

// FollowedsPK lists whom a user follows on GSI-A1, FollowersPK who follows a
// user on GSI-A2. Both sort by status/followedAt.
func FollowedsPK(followerID string) string { return "follower/" + followerID }
func FollowersPK(followedID string) string { return "followed/" + followedID }

func FirstStoriesByFollowerPK(followerID string) string {
	return "followedFirstStory/" + followerID
}

// Feed

func FeedPK(userID string) string { return "feed/" + userID }

// FeedByAuthorPK selects the posts of one author in a user's feed on GSI-K2.
func FeedByAuthorPK(userID, authorID string) string { return "feed/" + userID + "/" + authorID }

// Block

func BlockedByPK(blockerID string) string { return prefixBlock + blockerID }
func BlockersOfPK(blockedID string) string { return prefixBlock + blockedID }

// Like

func LikesByUserPK(userID string) string { return prefixLike + userID }
func LikesByPostPK(postID string) string { return prefixLike + postID }

// LikesOfAuthorPK partitions likes on an author's posts by liker on GSI-K2.
func LikesOfAuthorPK(authorID string) string { return prefixLike + authorID }

// Trending

// TrendingByScorePK orders trending items of a kind by score on GSI-K3 and
// by lastDeflatedAt on GSI-A1.
func TrendingByScorePK(itemKind Kind) string { return prefixTrending + string(itemKind) }

// App Store

func AppStoreSubsByUserPK(userID string) string { return prefixAppStoreSub + userID }

// AppStoreSubsDuePK holds active subscriptions by next verification time.
const AppStoreSubsDuePK = "appStoreSubDue"

// Views and flags by user, on GSI-K1.

func ViewsByUserPK(userID string) string { return "view/" + userID }
func FlagsByUserPK(userID string) string { return "flag/" + userID }
