package model

import "time"

type UserStatus string

const (
	UserActive    UserStatus = "ACTIVE"
	UserDisabled  UserStatus = "DISABLED"
	UserDeleting  UserStatus = "DELETING"
	UserResetting UserStatus = "RESETTING"
)

type Privacy string

const (
	Public  Privacy = "PUBLIC"
	Private Privacy = "PRIVATE"
)

type SubscriptionLevel string

const (
	SubscriptionBasic   SubscriptionLevel = "BASIC"
	SubscriptionDiamond SubscriptionLevel = "DIAMOND"
)

// User attribute names referenced by conditions and counter updates.
const (
	AttrUsername                        = "username"
	AttrFullName                        = "fullName"
	AttrPhotoPostID                     = "photoPostId"
	AttrUserStatus                      = "userStatus"
	AttrPrivacyStatus                   = "privacyStatus"
	AttrPostCount                       = "postCount"
	AttrPostArchivedCount               = "postArchivedCount"
	AttrPostDeletedCount                = "postDeletedCount"
	AttrPostForcedArchivingCount        = "postForcedArchivingCount"
	AttrPostViewedByCount               = "postViewedByCount"
	AttrFollowedCount                   = "followedCount"
	AttrFollowerCount                   = "followerCount"
	AttrFollowersRequestedCount         = "followersRequestedCount"
	AttrAlbumCount                      = "albumCount"
	AttrCardCount                       = "cardCount"
	AttrChatCount                       = "chatCount"
	AttrChatsWithUnviewedMessagesCount  = "chatsWithUnviewedMessagesCount"
	AttrChatMessagesCreationCount       = "chatMessagesCreationCount"
	AttrChatMessagesDeletionCount       = "chatMessagesDeletionCount"
	AttrChatMessagesForcedDeletionCount = "chatMessagesForcedDeletionCount"
	AttrCommentCount                    = "commentCount"
	AttrCommentDeletedCount             = "commentDeletedCount"
	AttrCommentForcedDeletionCount      = "commentForcedDeletionCount"
	AttrLikesReceivedCount              = "likesReceivedCount"
	AttrSubscriptionLevel               = "subscriptionLevel"
	AttrSubscriptionExpiresAt           = "subscriptionExpiresAt"
	AttrLastDisabledAt                  = "lastDisabledAt"
	AttrAPNSToken                       = "apnsToken"
	AttrAcceptedEULAVersion             = "acceptedEULAVersion"
)

// User is the profile row of an account.
type User struct {
	UserID              string     `dynamodbav:"userId"`
	Username            string     `dynamodbav:"username"`
	FullName            string     `dynamodbav:"fullName,omitempty"`
	Bio                 string     `dynamodbav:"bio,omitempty"`
	Email               string     `dynamodbav:"email,omitempty"`
	Phone               string     `dynamodbav:"phone,omitempty"`
	LanguageCode        string     `dynamodbav:"languageCode,omitempty"`
	ThemeCode           string     `dynamodbav:"themeCode,omitempty"`
	PhotoPostID         string     `dynamodbav:"photoPostId,omitempty"`
	Status              UserStatus `dynamodbav:"userStatus"`
	Privacy             Privacy    `dynamodbav:"privacyStatus"`
	SignedUpAt          time.Time  `dynamodbav:"signedUpAt"`
	LastDisabledAt      *time.Time `dynamodbav:"lastDisabledAt,omitempty"`
	AcceptedEULAVersion string     `dynamodbav:"acceptedEULAVersion,omitempty"`
	APNSToken           string     `dynamodbav:"apnsToken,omitempty"`

	FollowCountsHidden bool `dynamodbav:"followCountsHidden,omitempty"`
	ViewCountsHidden   bool `dynamodbav:"viewCountsHidden,omitempty"`
	CommentsDisabled   bool `dynamodbav:"commentsDisabled,omitempty"`
	LikesDisabled      bool `dynamodbav:"likesDisabled,omitempty"`
	SharingDisabled    bool `dynamodbav:"sharingDisabled,omitempty"`
	VerificationHidden bool `dynamodbav:"verificationHidden,omitempty"`

	SubscriptionLevel     SubscriptionLevel `dynamodbav:"subscriptionLevel,omitempty"`
	SubscriptionExpiresAt *time.Time        `dynamodbav:"subscriptionExpiresAt,omitempty"`

	PostCount                       int64 `dynamodbav:"postCount,omitempty"`
	PostArchivedCount               int64 `dynamodbav:"postArchivedCount,omitempty"`
	PostDeletedCount                int64 `dynamodbav:"postDeletedCount,omitempty"`
	PostForcedArchivingCount        int64 `dynamodbav:"postForcedArchivingCount,omitempty"`
	PostViewedByCount               int64 `dynamodbav:"postViewedByCount,omitempty"`
	FollowedCount                   int64 `dynamodbav:"followedCount,omitempty"`
	FollowerCount                   int64 `dynamodbav:"followerCount,omitempty"`
	FollowersRequestedCount         int64 `dynamodbav:"followersRequestedCount,omitempty"`
	AlbumCount                      int64 `dynamodbav:"albumCount,omitempty"`
	CardCount                       int64 `dynamodbav:"cardCount,omitempty"`
	ChatCount                       int64 `dynamodbav:"chatCount,omitempty"`
	ChatsWithUnviewedMessagesCount  int64 `dynamodbav:"chatsWithUnviewedMessagesCount,omitempty"`
	ChatMessagesCreationCount       int64 `dynamodbav:"chatMessagesCreationCount,omitempty"`
	ChatMessagesDeletionCount       int64 `dynamodbav:"chatMessagesDeletionCount,omitempty"`
	ChatMessagesForcedDeletionCount int64 `dynamodbav:"chatMessagesForcedDeletionCount,omitempty"`
	CommentCount                    int64 `dynamodbav:"commentCount,omitempty"`
	CommentDeletedCount             int64 `dynamodbav:"commentDeletedCount,omitempty"`
	CommentForcedDeletionCount      int64 `dynamodbav:"commentForcedDeletionCount,omitempty"`
	LikesReceivedCount              int64 `dynamodbav:"likesReceivedCount,omitempty"`
}

// Active reports whether the user may act.
func (u *User) Active() bool {
	return u != nil && u.Status == UserActive
}

// TotalPostCount counts every post the user ever completed or removed.
func (u *User) TotalPostCount() int64 {
	return u.PostCount + u.PostArchivedCount + u.PostDeletedCount
}

// TotalCommentCount counts live and deleted comments.
func (u *User) TotalCommentCount() int64 {
	return u.CommentCount + u.CommentDeletedCount
}

// UserTombstone records that an account was deleted.
type UserTombstone struct {
	UserID    string    `dynamodbav:"userId"`
	Username  string    `dynamodbav:"username"`
	DeletedAt time.Time `dynamodbav:"deletedAt"`
}
