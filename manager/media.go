package manager

import (
	"fmt"
	"strings"
)

// Object key layout in the uploads bucket. Everything of a post lives
// under {userId}/post/{postId}/.
const (
	uploadObject   = "upload"
	nativeRendName = "native.jpg"
)

// Media kinds of an upload.
const (
	MediaImage = "image"
	MediaVideo = "video"
)

func postPrefix(userID, postID string) string {
	return userID + "/post/" + postID + "/"
}

// UploadKey is where the client puts the raw media of a post.
func UploadKey(userID, postID, media string) string {
	return postPrefix(userID, postID) + media + "/" + uploadObject
}

// NativeImageKey is the full-size rendition of an image post.
func NativeImageKey(userID, postID string) string {
	return postPrefix(userID, postID) + MediaImage + "/" + nativeRendName
}

// ThumbnailKey is the rendition of an image post at the given height.
func ThumbnailKey(userID, postID string, height int) string {
	return fmt.Sprintf("%s%s/%dp.jpg", postPrefix(userID, postID), MediaImage, height)
}

// Upload identifies the post an uploaded object belongs to.
type Upload struct {
	UserID string
	PostID string
	// Media is MediaImage or MediaVideo.
	Media string
}

// ParseUploadKey recognizes the keys returned by UploadKey.
func ParseUploadKey(key string) (Upload, bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 5 || parts[1] != "post" || parts[4] != uploadObject {
		return Upload{}, false
	}
	if parts[3] != MediaImage && parts[3] != MediaVideo {
		return Upload{}, false
	}
	if parts[0] == "" || parts[2] == "" {
		return Upload{}, false
	}
	return Upload{UserID: parts[0], PostID: parts[2], Media: parts[3]}, true
}
