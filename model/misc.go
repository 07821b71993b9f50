package model

import "time"

// Card types. Each type has at most one card per user and subject.
const (
	CardCommentActivity    = "COMMENT_ACTIVITY"
	CardChatActivity       = "CHAT_ACTIVITY"
	CardRequestedFollowers = "REQUESTED_FOLLOWERS"
)

// Card attributes whose changes are pushed to the owner.
const (
	AttrTitle    = "title"
	AttrSubTitle = "subTitle"
)

// Card is an in-app notification.
type Card struct {
	CardID    string    `dynamodbav:"cardId"`
	UserID    string    `dynamodbav:"userId"`
	Type      string    `dynamodbav:"cardType"`
	Title     string    `dynamodbav:"title"`
	SubTitle  string    `dynamodbav:"subTitle,omitempty"`
	Action    string    `dynamodbav:"action"`
	PostID    string    `dynamodbav:"postId,omitempty"`
	CreatedAt time.Time `dynamodbav:"createdAt"`
}

// TrendingKind names what a trending row ranks.
type TrendingKind string

const (
	TrendingPost TrendingKind = "post"
	TrendingUser TrendingKind = "user"
)

// Trending attribute names.
const (
	AttrScore          = "score"
	AttrLastDeflatedAt = "lastDeflatedAt"
)

// TrendingItem carries a decaying score for a post or user.
type TrendingItem struct {
	ItemID         string       `dynamodbav:"itemId"`
	Kind           TrendingKind `dynamodbav:"itemKind"`
	Score          float64      `dynamodbav:"score"`
	LastDeflatedAt time.Time    `dynamodbav:"lastDeflatedAt"`
	CreatedAt      time.Time    `dynamodbav:"createdAt"`
}

type AppStoreSubStatus string

const (
	SubActive    AppStoreSubStatus = "ACTIVE"
	SubCancelled AppStoreSubStatus = "CANCELLED"
	SubExpired   AppStoreSubStatus = "EXPIRED"
)

const AttrSubStatus = "subscriptionStatus"

// AppStoreSub is an App Store subscription identified by its original
// transaction id.
type AppStoreSub struct {
	OriginalTransactionID string            `dynamodbav:"originalTransactionId"`
	UserID                string            `dynamodbav:"userId"`
	Status                AppStoreSubStatus `dynamodbav:"subscriptionStatus"`
	ReceiptData           string            `dynamodbav:"receiptData"`
	ProductID             string            `dynamodbav:"productId,omitempty"`
	CreatedAt             time.Time         `dynamodbav:"createdAt"`
	ExpiresAt             time.Time         `dynamodbav:"expiresAt"`
	CancelledAt           *time.Time        `dynamodbav:"cancelledAt,omitempty"`
	LastVerificationAt    time.Time         `dynamodbav:"lastVerificationAt"`
	NextVerificationAt    *time.Time        `dynamodbav:"nextVerificationAt,omitempty"`
}
