package resolver

import (
	"context"
	"time"

	"github.com/realsocial/real/errs"
	"github.com/realsocial/real/manager"
	"github.com/realsocial/real/model"
	"github.com/realsocial/real/schema"
)

type noArgs struct{}

type userArgs struct {
	UserID string `json:"userId" validate:"required"`
}

type postArgs struct {
	PostID string `json:"postId" validate:"required"`
}

type chatArgs struct {
	ChatID string `json:"chatId" validate:"required"`
}

type messageArgs struct {
	MessageID string `json:"messageId" validate:"required"`
}

type itemArgs struct {
	ID string `json:"id" validate:"required"`
}

type viewArgs struct {
	IDs []string `json:"ids" validate:"required,max=100,dive,required"`
}

type createUserArgs struct {
	Username string `json:"username" validate:"required"`
	FullName string `json:"fullName"`
}

type federatedUserArgs struct {
	Username string `json:"username" validate:"required"`
	Provider string `json:"provider" validate:"required"`
	Token    string `json:"token" validate:"required"`
	FullName string `json:"fullName"`
}

type usernameArgs struct {
	Username string `json:"username" validate:"required"`
}

type detailsArgs struct {
	FullName           *string `json:"fullName"`
	Bio                *string `json:"bio"`
	LanguageCode       *string `json:"languageCode"`
	ThemeCode          *string `json:"themeCode"`
	PhotoPostID        *string `json:"photoPostId"`
	FollowCountsHidden *bool   `json:"followCountsHidden"`
	ViewCountsHidden   *bool   `json:"viewCountsHidden"`
	CommentsDisabled   *bool   `json:"commentsDisabled"`
	LikesDisabled      *bool   `json:"likesDisabled"`
	SharingDisabled    *bool   `json:"sharingDisabled"`
	VerificationHidden *bool   `json:"verificationHidden"`
}

type privacyArgs struct {
	PrivacyStatus model.Privacy `json:"privacyStatus" validate:"required,oneof=PUBLIC PRIVATE"`
}

type imageArgs struct {
	ImageFormat    model.ImageFormat `json:"imageFormat"`
	OriginalFormat string            `json:"originalFormat"`
	TakenInReal    bool              `json:"takenInReal"`
	Crop           *model.Crop       `json:"crop"`
	ImageData      []byte            `json:"imageData"`
}

type addPostArgs struct {
	PostID             string         `json:"postId" validate:"required"`
	PostType           model.PostType `json:"postType"`
	Text               string         `json:"text"`
	Keywords           []string       `json:"keywords"`
	Lifetime           string         `json:"lifetime"`
	AlbumID            string         `json:"albumId"`
	Image              *imageArgs     `json:"imageInput"`
	CommentsDisabled   bool           `json:"commentsDisabled"`
	LikesDisabled      bool           `json:"likesDisabled"`
	SharingDisabled    bool           `json:"sharingDisabled"`
	VerificationHidden bool           `json:"verificationHidden"`
}

type editPostArgs struct {
	PostID             string    `json:"postId" validate:"required"`
	Text               *string   `json:"text"`
	Keywords           *[]string `json:"keywords"`
	CommentsDisabled   *bool     `json:"commentsDisabled"`
	LikesDisabled      *bool     `json:"likesDisabled"`
	SharingDisabled    *bool     `json:"sharingDisabled"`
	VerificationHidden *bool     `json:"verificationHidden"`
}

type expiresAtArgs struct {
	PostID    string     `json:"postId" validate:"required"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

type postAlbumArgs struct {
	PostID  string `json:"postId" validate:"required"`
	AlbumID string `json:"albumId"`
}

type albumOrderArgs struct {
	PostID          string `json:"postId" validate:"required"`
	PrecedingPostID string `json:"precedingPostId"`
}

type commentArgs struct {
	CommentID string `json:"commentId" validate:"required"`
	PostID    string `json:"postId" validate:"required"`
	Text      string `json:"text"`
}

type commentIDArgs struct {
	CommentID string `json:"commentId" validate:"required"`
}

type directChatArgs struct {
	UserID      string `json:"userId" validate:"required"`
	ChatID      string `json:"chatId" validate:"required"`
	MessageID   string `json:"messageId" validate:"required"`
	MessageText string `json:"messageText"`
}

type groupChatArgs struct {
	ChatID  string   `json:"chatId" validate:"required"`
	Name    string   `json:"name"`
	UserIDs []string `json:"userIds"`
}

type editGroupChatArgs struct {
	ChatID string `json:"chatId" validate:"required"`
	Name   string `json:"name"`
}

type addToGroupChatArgs struct {
	ChatID  string   `json:"chatId" validate:"required"`
	UserIDs []string `json:"userIds" validate:"required,min=1"`
}

type messageTextArgs struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId" validate:"required"`
	Text      string `json:"text" validate:"required"`
}

type albumArgs struct {
	AlbumID     string  `json:"albumId" validate:"required"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type cardArgs struct {
	CardID string `json:"cardId" validate:"required"`
}

type receiptArgs struct {
	ReceiptData string `json:"receiptData" validate:"required"`
}

type eulaArgs struct {
	Version string `json:"version" validate:"required"`
}

type apnsArgs struct {
	Token string `json:"token"`
}

func (r *Resolver) register() {
	a := r.app

	// Users.
	r.mutation("createCognitoOnlyUser", handle(func(ctx context.Context, caller string, in createUserArgs) (any, error) {
		return a.Users.CreateCognitoOnlyUser(ctx, caller, in.Username, in.FullName)
	}))
	r.mutation("createFederatedUser", handle(func(ctx context.Context, caller string, in federatedUserArgs) (any, error) {
		return a.Users.CreateFederatedUser(ctx, manager.CreateFederatedUserInput{
			UserID:   caller,
			Username: in.Username,
			Provider: in.Provider,
			Token:    in.Token,
			FullName: in.FullName,
		})
	}))
	r.mutation("setUsername", handle(func(ctx context.Context, caller string, in usernameArgs) (any, error) {
		return a.Users.UpdateUsername(ctx, caller, in.Username)
	}))
	r.mutation("setUserDetails", handle(func(ctx context.Context, caller string, in detailsArgs) (any, error) {
		return a.Users.SetUserDetails(ctx, caller, manager.UserDetails(in))
	}))
	r.mutation("setUserPrivacyStatus", handle(func(ctx context.Context, caller string, in privacyArgs) (any, error) {
		return a.Users.SetPrivacyStatus(ctx, caller, in.PrivacyStatus)
	}))
	r.mutation("setUserAcceptedEULAVersion", handle(func(ctx context.Context, caller string, in eulaArgs) (any, error) {
		return a.Users.SetAcceptedEULAVersion(ctx, caller, in.Version)
	}))
	r.mutation("setUserAPNSToken", handle(func(ctx context.Context, caller string, in apnsArgs) (any, error) {
		return a.Users.SetAPNSToken(ctx, caller, in.Token)
	}))
	r.mutation("resetUser", handle(func(ctx context.Context, caller string, in usernameArgs) (any, error) {
		return a.Users.Reset(ctx, caller, in.Username)
	}))
	r.mutation("disableUser", handle(func(ctx context.Context, caller string, _ noArgs) (any, error) {
		return a.Users.Disable(ctx, caller)
	}))
	r.mutation("deleteUser", handle(func(ctx context.Context, caller string, _ noArgs) (any, error) {
		return done(a.Users.Delete(ctx, caller))
	}))
	r.query("self", handle(func(ctx context.Context, caller string, _ noArgs) (any, error) {
		return a.Users.Get(ctx, caller)
	}))

	// Follows and blocks.
	r.mutation("followUser", handle(func(ctx context.Context, caller string, in userArgs) (any, error) {
		return a.Follows.RequestToFollow(ctx, caller, in.UserID)
	}))
	r.mutation("unfollowUser", handle(func(ctx context.Context, caller string, in userArgs) (any, error) {
		return done(a.Follows.Unfollow(ctx, caller, in.UserID, false))
	}))
	r.mutation("acceptFollowerUser", handle(func(ctx context.Context, caller string, in userArgs) (any, error) {
		return a.Follows.Accept(ctx, caller, in.UserID)
	}))
	r.mutation("denyFollowerUser", handle(func(ctx context.Context, caller string, in userArgs) (any, error) {
		return a.Follows.Deny(ctx, caller, in.UserID)
	}))
	r.mutation("blockUser", handle(func(ctx context.Context, caller string, in userArgs) (any, error) {
		return a.Blocks.Block(ctx, caller, in.UserID)
	}))
	r.mutation("unblockUser", handle(func(ctx context.Context, caller string, in userArgs) (any, error) {
		return done(a.Blocks.Unblock(ctx, caller, in.UserID))
	}))

	// Posts.
	r.mutation("addPost", handle(r.addPost))
	r.mutation("editPost", handle(func(ctx context.Context, caller string, in editPostArgs) (any, error) {
		return a.Posts.EditPost(ctx, caller, in.PostID, manager.PostEdit{
			Text:               in.Text,
			Keywords:           in.Keywords,
			CommentsDisabled:   in.CommentsDisabled,
			LikesDisabled:      in.LikesDisabled,
			SharingDisabled:    in.SharingDisabled,
			VerificationHidden: in.VerificationHidden,
		})
	}))
	r.mutation("editPostExpiresAt", handle(func(ctx context.Context, caller string, in expiresAtArgs) (any, error) {
		return a.Posts.SetExpiresAt(ctx, caller, in.PostID, in.ExpiresAt)
	}))
	r.mutation("editPostAlbum", handle(func(ctx context.Context, caller string, in postAlbumArgs) (any, error) {
		return a.Posts.SetAlbum(ctx, caller, in.PostID, in.AlbumID)
	}))
	r.mutation("editPostAlbumOrder", handle(func(ctx context.Context, caller string, in albumOrderArgs) (any, error) {
		return a.Posts.SetAlbumOrder(ctx, caller, in.PostID, in.PrecedingPostID)
	}))
	r.mutation("archivePost", handle(func(ctx context.Context, caller string, in postArgs) (any, error) {
		return a.Posts.Archive(ctx, caller, in.PostID)
	}))
	r.mutation("restoreArchivedPost", handle(func(ctx context.Context, caller string, in postArgs) (any, error) {
		return a.Posts.Restore(ctx, caller, in.PostID)
	}))
	r.mutation("deletePost", handle(func(ctx context.Context, caller string, in postArgs) (any, error) {
		return done(a.Posts.Delete(ctx, caller, in.PostID))
	}))
	r.query("post", handle(func(ctx context.Context, _ string, in postArgs) (any, error) {
		return a.Posts.Get(ctx, in.PostID)
	}))
	r.query("postImageUploadUrl", handle(func(ctx context.Context, caller string, in postArgs) (any, error) {
		return a.Posts.GetWriteonlyURL(ctx, caller, in.PostID)
	}))

	// Likes.
	r.mutation("onymouslyLikePost", handle(func(ctx context.Context, caller string, in postArgs) (any, error) {
		return a.Likes.Like(ctx, caller, in.PostID, model.OnymouslyLiked)
	}))
	r.mutation("anonymouslyLikePost", handle(func(ctx context.Context, caller string, in postArgs) (any, error) {
		return a.Likes.Like(ctx, caller, in.PostID, model.AnonymouslyLiked)
	}))
	r.mutation("dislikePost", handle(func(ctx context.Context, caller string, in postArgs) (any, error) {
		return done(a.Likes.Dislike(ctx, caller, in.PostID))
	}))

	// Comments.
	r.mutation("addComment", handle(func(ctx context.Context, caller string, in commentArgs) (any, error) {
		return a.Comments.AddComment(ctx, in.CommentID, in.PostID, caller, in.Text)
	}))
	r.mutation("deleteComment", handle(func(ctx context.Context, caller string, in commentIDArgs) (any, error) {
		return done(a.Comments.DeleteComment(ctx, in.CommentID, caller))
	}))

	// Albums.
	r.mutation("addAlbum", handle(func(ctx context.Context, caller string, in albumArgs) (any, error) {
		var name, description string
		if in.Name != nil {
			name = *in.Name
		}
		if in.Description != nil {
			description = *in.Description
		}
		return a.Albums.AddAlbum(ctx, caller, in.AlbumID, manager.AlbumInput{Name: name, Description: description})
	}))
	r.mutation("editAlbum", handle(func(ctx context.Context, caller string, in albumArgs) (any, error) {
		return a.Albums.EditAlbum(ctx, caller, in.AlbumID, manager.AlbumEdit{Name: in.Name, Description: in.Description})
	}))
	r.mutation("deleteAlbum", handle(func(ctx context.Context, caller string, in albumArgs) (any, error) {
		return done(a.Albums.DeleteAlbum(ctx, caller, in.AlbumID))
	}))

	// Chats.
	r.mutation("createDirectChat", handle(func(ctx context.Context, caller string, in directChatArgs) (any, error) {
		return a.Chats.AddDirectChat(ctx, caller, in.UserID, in.ChatID, in.MessageID, in.MessageText)
	}))
	r.mutation("createGroupChat", handle(func(ctx context.Context, caller string, in groupChatArgs) (any, error) {
		return a.Chats.AddGroupChat(ctx, caller, manager.GroupChatInput{ChatID: in.ChatID, Name: in.Name, UserIDs: in.UserIDs})
	}))
	r.mutation("editGroupChat", handle(func(ctx context.Context, caller string, in editGroupChatArgs) (any, error) {
		return a.Chats.EditGroupChat(ctx, caller, in.ChatID, in.Name)
	}))
	r.mutation("addToGroupChat", handle(func(ctx context.Context, caller string, in addToGroupChatArgs) (any, error) {
		return a.Chats.AddToGroupChat(ctx, caller, in.ChatID, in.UserIDs)
	}))
	r.mutation("leaveGroupChat", handle(func(ctx context.Context, caller string, in chatArgs) (any, error) {
		return done(a.Chats.LeaveGroupChat(ctx, caller, in.ChatID))
	}))
	r.mutation("deleteDirectChat", handle(func(ctx context.Context, caller string, in chatArgs) (any, error) {
		return done(a.Chats.DeleteDirectChat(ctx, caller, in.ChatID))
	}))
	r.mutation("addChatMessage", handle(func(ctx context.Context, caller string, in messageTextArgs) (any, error) {
		if in.ChatID == "" {
			return nil, errs.NewValidation("invalid argument ChatID (required)")
		}
		return a.Messages.Add(ctx, caller, in.ChatID, in.MessageID, in.Text)
	}))
	r.mutation("editChatMessage", handle(func(ctx context.Context, caller string, in messageTextArgs) (any, error) {
		return a.Messages.Edit(ctx, caller, in.MessageID, in.Text)
	}))
	r.mutation("deleteChatMessage", handle(func(ctx context.Context, caller string, in messageArgs) (any, error) {
		return done(a.Messages.Delete(ctx, caller, in.MessageID))
	}))

	// Flags.
	for field, kind := range map[string]schema.Kind{
		"Post":        schema.KindPost,
		"Comment":     schema.KindComment,
		"ChatMessage": schema.KindChatMessage,
		"Chat":        schema.KindChat,
	} {
		r.mutation("flag"+field, handle(func(ctx context.Context, caller string, in itemArgs) (any, error) {
			return a.Flags.Flag(ctx, caller, kind, in.ID)
		}))
		r.mutation("unflag"+field, handle(func(ctx context.Context, caller string, in itemArgs) (any, error) {
			return done(a.Flags.Unflag(ctx, caller, kind, in.ID))
		}))
	}

	// Views.
	for field, kind := range map[string]schema.Kind{
		"reportPostViews":        schema.KindPost,
		"reportCommentViews":     schema.KindComment,
		"reportChatViews":        schema.KindChat,
		"reportChatMessageViews": schema.KindChatMessage,
	} {
		r.mutation(field, handle(func(ctx context.Context, caller string, in viewArgs) (any, error) {
			return done(a.Views.RecordViews(ctx, caller, kind, in.IDs, time.Time{}))
		}))
	}

	// Cards and subscriptions.
	r.query("cards", handle(func(ctx context.Context, caller string, _ noArgs) (any, error) {
		return a.Cards.List(ctx, caller)
	}))
	r.mutation("deleteCard", handle(func(ctx context.Context, caller string, in cardArgs) (any, error) {
		return done(a.Cards.Delete(ctx, caller, in.CardID))
	}))
	r.mutation("addAppStoreReceipt", handle(func(ctx context.Context, caller string, in receiptArgs) (any, error) {
		return a.AppStore.AddReceipt(ctx, caller, in.ReceiptData)
	}))
}

func (r *Resolver) mutation(field string, fn Func) { r.fields["Mutation."+field] = fn }

func (r *Resolver) query(field string, fn Func) { r.fields["Query."+field] = fn }

// addPostResult carries the upload URL of an IMAGE post still awaiting
// its image.
type addPostResult struct {
	*model.Post
	ImageUploadURL string `json:"imageUploadUrl,omitempty"`
}

func (r *Resolver) addPost(ctx context.Context, caller string, in addPostArgs) (any, error) {
	postType := in.PostType
	if postType == "" {
		postType = model.PostTextOnly
	}
	input := manager.AddPostInput{
		PostID:             in.PostID,
		UserID:             caller,
		Type:               postType,
		Text:               in.Text,
		Keywords:           in.Keywords,
		AlbumID:            in.AlbumID,
		CommentsDisabled:   in.CommentsDisabled,
		LikesDisabled:      in.LikesDisabled,
		SharingDisabled:    in.SharingDisabled,
		VerificationHidden: in.VerificationHidden,
	}
	if in.Lifetime != "" {
		d, err := time.ParseDuration(in.Lifetime)
		if err != nil {
			return nil, errs.NewValidation("invalid lifetime %q", in.Lifetime)
		}
		input.Lifetime = &d
	}
	if in.Image != nil {
		input.Image = &manager.ImageInput{
			Format:         in.Image.ImageFormat,
			OriginalFormat: in.Image.OriginalFormat,
			TakenInReal:    in.Image.TakenInReal,
			Crop:           in.Image.Crop,
			Data:           in.Image.ImageData,
		}
	}

	p, err := r.app.Posts.AddPost(ctx, input)
	if err != nil {
		return nil, err
	}
	res := addPostResult{Post: p}
	if p.Type == model.PostImage && p.Status == model.PostPending {
		url, err := r.app.Posts.GetWriteonlyURL(ctx, caller, p.PostID)
		if err != nil {
			return nil, err
		}
		res.ImageUploadURL = url
	}
	return res, nil
}
