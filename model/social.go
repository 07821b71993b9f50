package model

import "time"

type FollowStatus string

const (
	FollowRequested FollowStatus = "REQUESTED"
	FollowFollowing FollowStatus = "FOLLOWING"
	FollowDenied    FollowStatus = "DENIED"
)

const AttrFollowStatus = "followStatus"

// Follow links a follower to a followed user.
type Follow struct {
	FollowerUserID string       `dynamodbav:"followerUserId"`
	FollowedUserID string       `dynamodbav:"followedUserId"`
	Status         FollowStatus `dynamodbav:"followStatus"`
	FollowedAt     time.Time    `dynamodbav:"followedAt"`
}

// FirstStory points a follower at the soonest-expiring live story of a
// followed user.
type FirstStory struct {
	FollowedUserID string    `dynamodbav:"followedUserId"`
	FollowerUserID string    `dynamodbav:"followerUserId"`
	PostID         string    `dynamodbav:"postId"`
	ExpiresAt      time.Time `dynamodbav:"expiresAt"`
}

// FeedEntry places a completed post in a follower's feed.
type FeedEntry struct {
	UserID         string    `dynamodbav:"userId"`
	PostID         string    `dynamodbav:"postId"`
	PostedByUserID string    `dynamodbav:"postedByUserId"`
	PostedAt       time.Time `dynamodbav:"postedAt"`
}

// Block forbids any interaction between two users.
type Block struct {
	BlockerUserID string    `dynamodbav:"blockerUserId"`
	BlockedUserID string    `dynamodbav:"blockedUserId"`
	BlockedAt     time.Time `dynamodbav:"blockedAt"`
}

type LikeStatus string

const (
	OnymouslyLiked   LikeStatus = "ONYMOUSLY_LIKED"
	AnonymouslyLiked LikeStatus = "ANONYMOUSLY_LIKED"
)

// Like is a user's like of a post.
type Like struct {
	LikedByUserID  string     `dynamodbav:"likedByUserId"`
	PostID         string     `dynamodbav:"postId"`
	PostedByUserID string     `dynamodbav:"postedByUserId"`
	Status         LikeStatus `dynamodbav:"likeStatus"`
	LikedAt        time.Time  `dynamodbav:"likedAt"`
}

// Flag is a user's report of an item.
type Flag struct {
	ItemKind         string    `dynamodbav:"itemKind"`
	ItemID           string    `dynamodbav:"itemId"`
	ItemAuthorUserID string    `dynamodbav:"itemAuthorUserId,omitempty"`
	FlaggerUserID    string    `dynamodbav:"flaggerUserId"`
	CreatedAt        time.Time `dynamodbav:"createdAt"`
}

// View records a user's views of an item.
type View struct {
	ItemKind      string    `dynamodbav:"itemKind"`
	ItemID        string    `dynamodbav:"itemId"`
	UserID        string    `dynamodbav:"userId"`
	FirstViewedAt time.Time `dynamodbav:"firstViewedAt"`
	LastViewedAt  time.Time `dynamodbav:"lastViewedAt"`
	ViewCount     int64     `dynamodbav:"viewCount"`
}

const AttrViewCount = "viewCount"
