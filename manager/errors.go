package manager

import (
	"errors"

	"github.com/realsocial/real/errs"
	"github.com/realsocial/real/store"
)

// Client errors returned by managers. Callers match them with errors.Is;
// returned copies may carry Data naming the ids involved.
var (
	ErrUserNotFound      = errs.NewNotFound("user not found")
	ErrUserAlreadyExists = errs.NewAlreadyExists("user already exists")
	ErrUsernameTaken     = errs.NewConflict("username already taken")
	ErrEmailTaken        = errs.NewConflict("email already taken")
	ErrInvalidUsername   = errs.NewValidation("invalid username")
	ErrInvalidToken      = errs.NewValidation("invalid identity token")
	ErrUnknownProvider   = errs.NewValidation("unknown identity provider")
	ErrUnverifiedContact = errs.NewUnverifiedContact("user has no verified email or phone")
	ErrUserNotActive     = errs.NewStatusNotAllowed("user is not active")
	ErrNothingToUpdate   = errs.NewValidation("nothing to update")
	ErrInvalidPhotoPost  = errs.NewValidation("profile photo must be a completed image post of the user")

	ErrCannotFollowSelf = errs.NewValidation("users cannot follow themselves")
	ErrAlreadyFollowing = errs.NewAlreadyExists("follow already exists")
	ErrNotFollowing     = errs.NewNotFound("follow not found")
	ErrFollowStatus     = errs.NewStatusNotAllowed("follow status does not allow this")
	ErrBlocked          = errs.NewBlocked("users have blocked each other")
	ErrPrivateUser      = errs.NewForbidden("user is private")

	ErrPostNotFound      = errs.NewNotFound("post not found")
	ErrPostAlreadyExists = errs.NewAlreadyExists("post already exists")
	ErrPostStatus        = errs.NewStatusNotAllowed("post status does not allow this")
	ErrNotPostOwner      = errs.NewForbidden("post belongs to another user")
	ErrInvalidPost       = errs.NewValidation("invalid post")
	ErrPostNotInAlbum    = errs.NewValidation("post is not in an album")
	ErrInvalidImage      = errs.NewValidation("uploaded image cannot be processed")
	ErrStoryInPast       = errs.NewValidation("expiry must be in the future")
	ErrCommentsDisabled  = errs.NewForbidden("comments are disabled")
	ErrLikesDisabled     = errs.NewForbidden("likes are disabled")

	ErrCommentNotFound      = errs.NewNotFound("comment not found")
	ErrCommentAlreadyExists = errs.NewAlreadyExists("comment already exists")
	ErrNotCommentOwner      = errs.NewForbidden("only the comment or post author may delete a comment")

	ErrAlbumNotFound      = errs.NewNotFound("album not found")
	ErrAlbumAlreadyExists = errs.NewAlreadyExists("album already exists")
	ErrNotAlbumOwner      = errs.NewForbidden("album belongs to another user")

	ErrChatNotFound          = errs.NewNotFound("chat not found")
	ErrChatAlreadyExists     = errs.NewAlreadyExists("chat already exists")
	ErrDirectChatExists      = errs.NewAlreadyExists("direct chat already exists")
	ErrCannotChatSelf        = errs.NewValidation("users cannot chat with themselves")
	ErrNotChatMember         = errs.NewForbidden("user is not a member of the chat")
	ErrChatType              = errs.NewValidation("operation does not apply to this chat type")
	ErrChatUserCountMismatch = errs.NewConflict("chat membership changed concurrently")

	ErrChatMessageNotFound      = errs.NewNotFound("chat message not found")
	ErrChatMessageAlreadyExists = errs.NewAlreadyExists("chat message already exists")
	ErrNotMessageAuthor         = errs.NewForbidden("only the author may change a message")

	ErrCannotBlockSelf = errs.NewValidation("users cannot block themselves")
	ErrAlreadyBlocked  = errs.NewAlreadyExists("block already exists")
	ErrNotBlocked      = errs.NewNotFound("block not found")

	ErrNotFlaggable   = errs.NewValidation("items of this kind cannot be flagged")
	ErrItemNotFound   = errs.NewNotFound("item not found")
	ErrCannotFlagOwn  = errs.NewValidation("users cannot flag their own content")
	ErrAlreadyFlagged = errs.NewAlreadyExists("item already flagged")
	ErrNotFlagged     = errs.NewNotFound("flag not found")
	ErrNotViewable    = errs.NewValidation("items of this kind do not record views")

	ErrAlreadyLiked = errs.NewAlreadyExists("post already liked")
	ErrNotLiked     = errs.NewNotFound("like not found")

	ErrInvalidReceipt     = errs.NewValidation("receipt has no transactions")
	ErrReceiptOfOtherUser = errs.NewConflict("subscription belongs to another user")
)

// withIDs returns a copy of e carrying ids as Data.
func withIDs(e *errs.Error, kv ...string) *errs.Error {
	data := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		data[kv[i]] = kv[i+1]
	}
	return e.WithData(data)
}

func isPrecondition(err error) bool {
	return errors.Is(err, store.ErrPreconditionFailed)
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func isAlreadyExists(err error) bool {
	return errors.Is(err, store.ErrAlreadyExists)
}
