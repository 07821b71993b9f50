package model

import "time"

type PostType string

const (
	PostTextOnly PostType = "TEXT_ONLY"
	PostImage    PostType = "IMAGE"
	PostVideo    PostType = "VIDEO"
)

type PostStatus string

const (
	PostPending    PostStatus = "PENDING"
	PostProcessing PostStatus = "PROCESSING"
	PostCompleted  PostStatus = "COMPLETED"
	PostError      PostStatus = "ERROR"
	PostArchived   PostStatus = "ARCHIVED"
	PostDeleting   PostStatus = "DELETING"
)

// Post attribute names.
const (
	AttrPostStatus            = "postStatus"
	AttrPostedByUserID        = "postedByUserId"
	AttrExpiresAt             = "expiresAt"
	AttrAlbumID               = "albumId"
	AttrAlbumRank             = "albumRank"
	AttrOriginalPostID        = "originalPostId"
	AttrChecksum              = "checksum"
	AttrCommentsUnviewedCount = "commentsUnviewedCount"
	AttrFlagCount             = "flagCount"
	AttrViewedByCount         = "viewedByCount"
	AttrOnymousLikeCount      = "onymousLikeCount"
	AttrAnonymousLikeCount    = "anonymousLikeCount"
	AttrLastUnviewedCommentAt = "lastUnviewedCommentAt"
	AttrText                  = "text"
	AttrCommentsDisabled      = "commentsDisabled"
	AttrLikesDisabled         = "likesDisabled"
	AttrSharingDisabled       = "sharingDisabled"
	AttrVerificationHidden    = "verificationHidden"
	AttrKeywords              = "keywords"
	AttrCompletedAt           = "completedAt"
)

// Post is a user's post of any type.
type Post struct {
	PostID         string     `dynamodbav:"postId"`
	PostedByUserID string     `dynamodbav:"postedByUserId"`
	Type           PostType   `dynamodbav:"postType"`
	Status         PostStatus `dynamodbav:"postStatus"`
	Text           string     `dynamodbav:"text,omitempty"`
	Keywords       []string   `dynamodbav:"keywords,omitempty"`
	PostedAt       time.Time  `dynamodbav:"postedAt"`
	CompletedAt    *time.Time `dynamodbav:"completedAt,omitempty"`
	ExpiresAt      *time.Time `dynamodbav:"expiresAt,omitempty"`
	AlbumID        string     `dynamodbav:"albumId,omitempty"`
	AlbumRank      *float64   `dynamodbav:"albumRank,omitempty"`
	OriginalPostID string     `dynamodbav:"originalPostId,omitempty"`
	Checksum       string     `dynamodbav:"checksum,omitempty"`

	CommentsDisabled   bool `dynamodbav:"commentsDisabled,omitempty"`
	LikesDisabled      bool `dynamodbav:"likesDisabled,omitempty"`
	SharingDisabled    bool `dynamodbav:"sharingDisabled,omitempty"`
	VerificationHidden bool `dynamodbav:"verificationHidden,omitempty"`

	CommentCount          int64      `dynamodbav:"commentCount,omitempty"`
	CommentsUnviewedCount int64      `dynamodbav:"commentsUnviewedCount,omitempty"`
	LastUnviewedCommentAt *time.Time `dynamodbav:"lastUnviewedCommentAt,omitempty"`
	FlagCount             int64      `dynamodbav:"flagCount,omitempty"`
	ViewedByCount         int64      `dynamodbav:"viewedByCount,omitempty"`
	OnymousLikeCount      int64      `dynamodbav:"onymousLikeCount,omitempty"`
	AnonymousLikeCount    int64      `dynamodbav:"anonymousLikeCount,omitempty"`
}

// IsStory reports whether the post expires.
func (p *Post) IsStory() bool {
	return p.ExpiresAt != nil
}

// LiveStory reports whether the post is a completed story not yet expired.
func (p *Post) LiveStory(now time.Time) bool {
	return p.Status == PostCompleted && p.ExpiresAt != nil && p.ExpiresAt.After(now)
}

// ImageFormat is the encoding of an uploaded image.
type ImageFormat string

const (
	ImageJPEG ImageFormat = "JPEG"
	ImageHEIC ImageFormat = "HEIC"
)

// Point is a pixel position, origin top-left.
type Point struct {
	X int `dynamodbav:"x"`
	Y int `dynamodbav:"y"`
}

// Crop selects a rectangle of the uploaded image.
type Crop struct {
	UpperLeft  Point `dynamodbav:"upperLeft"`
	LowerRight Point `dynamodbav:"lowerRight"`
}

// Color is an RGB triple.
type Color struct {
	R uint8 `dynamodbav:"r"`
	G uint8 `dynamodbav:"g"`
	B uint8 `dynamodbav:"b"`
}

// Image is the sidecar row of an IMAGE post.
type Image struct {
	PostID         string      `dynamodbav:"postId"`
	ImageFormat    ImageFormat `dynamodbav:"imageFormat,omitempty"`
	OriginalFormat string      `dynamodbav:"originalFormat,omitempty"`
	TakenInReal    bool        `dynamodbav:"takenInReal,omitempty"`
	Crop           *Crop       `dynamodbav:"crop,omitempty"`
	Width          int         `dynamodbav:"width,omitempty"`
	Height         int         `dynamodbav:"height,omitempty"`
	Colors         []Color     `dynamodbav:"colors,omitempty"`
}

// Comment is a comment on a post.
type Comment struct {
	CommentID         string    `dynamodbav:"commentId"`
	PostID            string    `dynamodbav:"postId"`
	CommentedByUserID string    `dynamodbav:"commentedByUserId"`
	Text              string    `dynamodbav:"text"`
	CommentedAt       time.Time `dynamodbav:"commentedAt"`
	FlagCount         int64     `dynamodbav:"flagCount,omitempty"`
}

// Album groups a user's posts in rank order.
type Album struct {
	AlbumID       string    `dynamodbav:"albumId"`
	OwnedByUserID string    `dynamodbav:"ownedByUserId"`
	Name          string    `dynamodbav:"name"`
	Description   string    `dynamodbav:"description,omitempty"`
	CreatedAt     time.Time `dynamodbav:"createdAt"`
	PostCount     int64     `dynamodbav:"postCount,omitempty"`
	RankCount     int64     `dynamodbav:"rankCount,omitempty"`
	ArtHash       string    `dynamodbav:"artHash,omitempty"`
}

// Album attribute names.
const (
	AttrRankCount   = "rankCount"
	AttrArtHash     = "artHash"
	AttrName        = "name"
	AttrDescription = "description"
)
