package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/realsocial/real/collab"
	"github.com/realsocial/real/errs"
	"github.com/realsocial/real/model"
	"github.com/realsocial/real/repo"
	"github.com/realsocial/real/store"
)

// PushChannelAPNS is the push channel of iOS device tokens.
const PushChannelAPNS = "APNS"

// UserManager owns user profiles and their identity-store counterparts.
type UserManager struct {
	app *App
}

// Get returns a user or ErrUserNotFound.
func (m *UserManager) Get(ctx context.Context, userID string) (*model.User, error) {
	u, err := m.app.Repos.User.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, withIDs(ErrUserNotFound, "userId", userID)
	}
	return u, nil
}

// GetActive returns a user who may act, or an error saying why not.
func (m *UserManager) GetActive(ctx context.Context, userID string) (*model.User, error) {
	u, err := m.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.Active() {
		return nil, withIDs(ErrUserNotActive, "userId", userID, "userStatus", string(u.Status))
	}
	return u, nil
}

type newUserInput struct {
	UserID   string `validate:"required"`
	Username string `validate:"username"`
	FullName string `validate:"max=100"`
}

// CreateCognitoOnlyUser creates the profile of a user who signed up
// directly with the identity store. The user must have verified an email
// address or phone number there.
func (m *UserManager) CreateCognitoOnlyUser(ctx context.Context, userID, username, fullName string) (*model.User, error) {
	in := newUserInput{UserID: userID, Username: username, FullName: fullName}
	if err := check(in); err != nil {
		return nil, err
	}
	if err := m.ensureNew(ctx, userID); err != nil {
		return nil, err
	}

	attrs, err := m.app.Collab.Identity.GetAttributes(ctx, userID)
	if err != nil {
		return nil, err
	}
	u := m.newUser(in)
	if attrs[collab.AttrEmailVerified] == "true" {
		u.Email = attrs[collab.AttrEmail]
	}
	if attrs[collab.AttrPhoneVerified] == "true" {
		u.Phone = attrs[collab.AttrPhone]
	}
	if u.Email == "" && u.Phone == "" {
		return nil, withIDs(ErrUnverifiedContact, "userId", userID)
	}

	if err := m.claimUsername(ctx, userID, username); err != nil {
		return nil, err
	}
	return u, m.add(ctx, u)
}

// CreateFederatedUserInput carries the arguments of CreateFederatedUser.
type CreateFederatedUserInput struct {
	UserID   string `validate:"required"`
	Username string `validate:"username"`
	Provider string `validate:"required"`
	Token    string `validate:"required"`
	FullName string `validate:"max=100"`
}

// CreateFederatedUser creates a user who signed in with Apple or Google.
// The provider token yields the email address, which is recorded as
// verified in a new identity-store user.
func (m *UserManager) CreateFederatedUser(ctx context.Context, in CreateFederatedUserInput) (*model.User, error) {
	if err := check(in); err != nil {
		return nil, err
	}
	verifier, ok := m.app.Collab.Federated[in.Provider]
	if !ok {
		return nil, withIDs(ErrUnknownProvider, "provider", in.Provider)
	}
	email, err := verifier.VerifyTokenForEmail(ctx, in.Token)
	if errors.Is(err, collab.ErrInvalidToken) {
		return nil, ErrInvalidToken.WithCause(err)
	}
	if err != nil {
		return nil, err
	}
	if err := m.ensureNew(ctx, in.UserID); err != nil {
		return nil, err
	}

	err = m.app.Collab.Identity.CreateVerifiedUser(ctx, in.UserID, map[string]string{
		collab.AttrEmail:         email,
		collab.AttrEmailVerified: "true",
	})
	switch {
	case errors.Is(err, collab.ErrAliasTaken):
		return nil, withIDs(ErrEmailTaken, "email", email)
	case errors.Is(err, collab.ErrUserExists):
		return nil, withIDs(ErrUserAlreadyExists, "userId", in.UserID)
	case err != nil:
		return nil, err
	}

	if err := m.claimUsername(ctx, in.UserID, in.Username); err != nil {
		if derr := m.app.Collab.Identity.DeleteUser(ctx, in.UserID); derr != nil {
			m.app.Logger.Warn("failed to roll back identity user",
				zap.String("userId", in.UserID), zap.Error(derr))
		}
		return nil, err
	}

	u := m.newUser(newUserInput{UserID: in.UserID, Username: in.Username, FullName: in.FullName})
	u.Email = email
	return u, m.add(ctx, u)
}

func (m *UserManager) newUser(in newUserInput) *model.User {
	return &model.User{
		UserID:     in.UserID,
		Username:   in.Username,
		FullName:   in.FullName,
		Status:     model.UserActive,
		Privacy:    model.Public,
		SignedUpAt: m.app.now(),
	}
}

func (m *UserManager) ensureNew(ctx context.Context, userID string) error {
	u, err := m.app.Repos.User.Get(ctx, userID, store.Strong())
	if err != nil {
		return err
	}
	if u != nil {
		return withIDs(ErrUserAlreadyExists, "userId", userID)
	}
	return nil
}

func (m *UserManager) add(ctx context.Context, u *model.User) error {
	err := m.app.Repos.User.Add(ctx, u)
	if errors.Is(err, repo.ErrUserAlreadyExists) {
		return withIDs(ErrUserAlreadyExists, "userId", u.UserID)
	}
	return err
}

// claimUsername reserves username in the identity store and makes sure no
// other profile holds it.
func (m *UserManager) claimUsername(ctx context.Context, userID, username string) error {
	other, err := m.app.Repos.User.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if other != nil && other.UserID != userID {
		return withIDs(ErrUsernameTaken, "username", username)
	}
	err = m.app.Collab.Identity.ClaimUsername(ctx, userID, username)
	if errors.Is(err, collab.ErrAliasTaken) {
		return withIDs(ErrUsernameTaken, "username", username)
	}
	return err
}

// UpdateUsername renames a user. The row update is conditional on the old
// username, so a concurrent rename surfaces as ErrUsernameTaken.
func (m *UserManager) UpdateUsername(ctx context.Context, userID, username string) (*model.User, error) {
	if !ValidUsername(username) {
		return nil, ErrInvalidUsername
	}
	u, err := m.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Username == username {
		return u, nil
	}
	if err := m.claimUsername(ctx, userID, username); err != nil {
		return nil, err
	}
	upd := m.app.Repos.User.SetUsername(store.NewUpdate(), userID, username)
	u, err = m.app.Repos.User.Update(ctx, userID, upd, store.Eq(model.AttrUsername, u.Username))
	if isPrecondition(err) {
		return nil, withIDs(ErrUsernameTaken, "username", username)
	}
	return u, err
}

// UserDetails is an update mask over profile fields. A nil field is left
// alone; an empty string removes the attribute.
type UserDetails struct {
	FullName     *string `validate:"omitnil,max=100"`
	Bio          *string `validate:"omitnil,max=300"`
	LanguageCode *string `validate:"omitnil,max=10"`
	ThemeCode    *string `validate:"omitnil,max=30"`
	PhotoPostID  *string

	FollowCountsHidden *bool
	ViewCountsHidden   *bool
	CommentsDisabled   *bool
	LikesDisabled      *bool
	SharingDisabled    *bool
	VerificationHidden *bool
}

func (d UserDetails) update() *store.Update {
	upd := store.NewUpdate()
	strs := []struct {
		attr string
		v    *string
	}{
		{model.AttrFullName, d.FullName},
		{"bio", d.Bio},
		{"languageCode", d.LanguageCode},
		{"themeCode", d.ThemeCode},
		{model.AttrPhotoPostID, d.PhotoPostID},
	}
	for _, s := range strs {
		if s.v != nil {
			upd.SetOrRemove(s.attr, strings.TrimSpace(*s.v))
		}
	}
	flags := []struct {
		attr string
		v    *bool
	}{
		{"followCountsHidden", d.FollowCountsHidden},
		{"viewCountsHidden", d.ViewCountsHidden},
		{model.AttrCommentsDisabled, d.CommentsDisabled},
		{model.AttrLikesDisabled, d.LikesDisabled},
		{model.AttrSharingDisabled, d.SharingDisabled},
		{model.AttrVerificationHidden, d.VerificationHidden},
	}
	for _, f := range flags {
		if f.v != nil {
			upd.Set(f.attr, *f.v)
		}
	}
	return upd
}

// SetUserDetails applies the non-nil fields of d.
func (m *UserManager) SetUserDetails(ctx context.Context, userID string, d UserDetails) (*model.User, error) {
	if err := check(d); err != nil {
		return nil, err
	}
	upd := d.update()
	if upd.Empty() {
		return nil, ErrNothingToUpdate
	}
	if _, err := m.GetActive(ctx, userID); err != nil {
		return nil, err
	}
	if d.PhotoPostID != nil && *d.PhotoPostID != "" {
		p, err := m.app.Repos.Post.Get(ctx, *d.PhotoPostID)
		if err != nil {
			return nil, err
		}
		if p == nil || p.PostedByUserID != userID || p.Type != model.PostImage || p.Status != model.PostCompleted {
			return nil, withIDs(ErrInvalidPhotoPost, "postId", *d.PhotoPostID)
		}
	}
	return m.app.Repos.User.Update(ctx, userID, upd, nil)
}

// SetAcceptedEULAVersion records the EULA version a user accepted. An empty
// version clears it.
func (m *UserManager) SetAcceptedEULAVersion(ctx context.Context, userID, version string) (*model.User, error) {
	u, err := m.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.AcceptedEULAVersion == version {
		return u, nil
	}
	upd := store.NewUpdate().SetOrRemove(model.AttrAcceptedEULAVersion, version)
	return m.app.Repos.User.Update(ctx, userID, upd, nil)
}

// SetAPNSToken records the device token and points the user's push
// endpoint at it. An empty token removes the endpoint.
func (m *UserManager) SetAPNSToken(ctx context.Context, userID, token string) (*model.User, error) {
	u, err := m.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if token == "" {
		err = m.app.Collab.Push.DeleteEndpoint(ctx, userID, PushChannelAPNS)
	} else {
		err = m.app.Collab.Push.UpdateEndpoint(ctx, userID, PushChannelAPNS, token)
	}
	if err != nil {
		return nil, err
	}
	if u.APNSToken == token {
		return u, nil
	}
	upd := store.NewUpdate().SetOrRemove(model.AttrAPNSToken, token)
	return m.app.Repos.User.Update(ctx, userID, upd, nil)
}

// SetPrivacyStatus switches a user between public and private. Going
// public accepts every pending request and drops every denied follower;
// going private leaves existing followers alone.
func (m *UserManager) SetPrivacyStatus(ctx context.Context, userID string, privacy model.Privacy) (*model.User, error) {
	if privacy != model.Public && privacy != model.Private {
		return nil, errs.NewValidation("invalid privacy status %q", privacy)
	}
	u, err := m.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Privacy == privacy {
		return u, nil
	}
	upd := store.NewUpdate().Set(model.AttrPrivacyStatus, string(privacy))
	updated, err := m.app.Repos.User.Update(ctx, userID, upd, store.Eq(model.AttrPrivacyStatus, string(u.Privacy)))
	if err != nil {
		return nil, err
	}
	if privacy != model.Public {
		return updated, nil
	}

	requested, err := repo.Collect(m.app.Repos.Follow.Followers(ctx, userID, model.FollowRequested))
	if err != nil {
		return nil, err
	}
	for _, f := range requested {
		if _, err := m.app.Follows.Accept(ctx, userID, f.FollowerUserID); err != nil && !errors.Is(err, ErrFollowStatus) {
			return nil, err
		}
	}
	denied, err := repo.Collect(m.app.Repos.Follow.Followers(ctx, userID, model.FollowDenied))
	if err != nil {
		return nil, err
	}
	for _, f := range denied {
		if err := m.app.Follows.Unfollow(ctx, f.FollowerUserID, userID, true); err != nil && !errors.Is(err, ErrNotFollowing) {
			return nil, err
		}
	}
	return updated, nil
}

// Disable takes an active user offline and silences their devices.
func (m *UserManager) Disable(ctx context.Context, userID string) (*model.User, error) {
	u, err := m.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Status == model.UserDisabled {
		return u, nil
	}
	upd := store.NewUpdate().Set(model.AttrUserStatus, string(model.UserDisabled)).Set(model.AttrLastDisabledAt, m.app.now())
	u, err = m.app.Repos.User.Update(ctx, userID, upd, store.Eq(model.AttrUserStatus, string(model.UserActive)))
	if isPrecondition(err) {
		return nil, withIDs(ErrUserNotActive, "userId", userID)
	}
	if err != nil {
		return nil, err
	}
	return u, m.app.Collab.Push.DisableUserEndpoints(ctx, userID)
}

// Enable brings a disabled user back.
func (m *UserManager) Enable(ctx context.Context, userID string) (*model.User, error) {
	u, err := m.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Status == model.UserActive {
		return u, nil
	}
	upd := store.NewUpdate().Set(model.AttrUserStatus, string(model.UserActive))
	u, err = m.app.Repos.User.Update(ctx, userID, upd, store.Eq(model.AttrUserStatus, string(model.UserDisabled)))
	if isPrecondition(err) {
		return nil, ErrUserNotActive.WithData(map[string]any{"userId": userID})
	}
	if err != nil {
		return nil, err
	}
	return u, m.app.Collab.Push.EnableUserEndpoints(ctx, userID)
}

// ForceDisableIfCriteriaMet disables an active user whose content has been
// removed by moderation too often. It reports whether it did.
func (m *UserManager) ForceDisableIfCriteriaMet(ctx context.Context, u *model.User) (bool, error) {
	if !u.Active() || !m.app.Moderation.IsUserForcedDisablingMet(u) {
		return false, nil
	}
	if _, err := m.Disable(ctx, u.UserID); err != nil {
		if errors.Is(err, ErrUserNotActive) {
			return false, nil
		}
		return false, err
	}
	m.app.Logger.Warn("user force disabled",
		zap.String("userId", u.UserID),
		zap.Int64("postForcedArchivingCount", u.PostForcedArchivingCount),
		zap.Int64("commentForcedDeletionCount", u.CommentForcedDeletionCount),
		zap.Int64("chatMessagesForcedDeletionCount", u.ChatMessagesForcedDeletionCount),
	)
	return true, nil
}

// Reset deletes everything a user made while keeping the account. With a
// non-empty username the user also takes that new name.
func (m *UserManager) Reset(ctx context.Context, userID, newUsername string) (*model.User, error) {
	if newUsername != "" && !ValidUsername(newUsername) {
		return nil, ErrInvalidUsername
	}
	u, err := m.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Status == model.UserDeleting {
		return nil, withIDs(ErrUserNotActive, "userId", userID)
	}
	prior := u.Status
	if prior == model.UserResetting {
		prior = model.UserActive
	}
	upd := store.NewUpdate().Set(model.AttrUserStatus, string(model.UserResetting))
	if u, err = m.app.Repos.User.Update(ctx, userID, upd, store.Ne(model.AttrUserStatus, string(model.UserDeleting))); err != nil {
		return nil, err
	}
	if err := m.clearContent(ctx, u); err != nil {
		return nil, fmt.Errorf("reset user %s: %w", userID, err)
	}

	upd = store.NewUpdate().Set(model.AttrUserStatus, string(prior))
	if newUsername != "" && newUsername != u.Username {
		if err := m.claimUsername(ctx, userID, newUsername); err != nil {
			return nil, err
		}
		m.app.Repos.User.SetUsername(upd, userID, newUsername)
	}
	return m.app.Repos.User.Update(ctx, userID, upd, nil)
}

// Delete removes a user and everything they own, leaving a tombstone.
// Deleting an already deleted user is a no-op.
func (m *UserManager) Delete(ctx context.Context, userID string) error {
	u, err := m.app.Repos.User.Get(ctx, userID, store.Strong())
	if err != nil {
		return err
	}
	if u == nil {
		t, err := m.app.Repos.User.GetTombstone(ctx, userID)
		if err != nil {
			return err
		}
		if t != nil {
			return nil
		}
		return withIDs(ErrUserNotFound, "userId", userID)
	}

	if u.Status != model.UserDeleting {
		upd := store.NewUpdate().Set(model.AttrUserStatus, string(model.UserDeleting))
		if u, err = m.app.Repos.User.Update(ctx, userID, upd, nil); err != nil {
			return err
		}
	}
	if err := m.clearContent(ctx, u); err != nil {
		return fmt.Errorf("delete user %s: %w", userID, err)
	}
	if _, err := m.app.Repos.User.Delete(ctx, userID); err != nil {
		return err
	}
	if err := m.app.Repos.User.PutTombstone(ctx, &model.UserTombstone{
		UserID:    userID,
		Username:  u.Username,
		DeletedAt: m.app.now(),
	}); err != nil {
		return err
	}
	if err := m.app.Collab.Identity.DeleteUser(ctx, userID); err != nil && !errors.Is(err, collab.ErrNotFound) {
		return err
	}
	if err := m.app.Collab.Push.DeleteUserEndpoints(ctx, userID); err != nil {
		return err
	}
	m.app.Logger.Info("user deleted", zap.String("userId", userID), zap.String("username", u.Username))
	return nil
}

// clearContent removes every row a user owns or takes part in, other than
// the profile itself. Derived counters follow through the reactor.
func (m *UserManager) clearContent(ctx context.Context, u *model.User) error {
	userID := u.UserID
	r := m.app.Repos

	posts, err := repo.Collect(r.Post.ByUser(ctx, userID, ""))
	if err != nil {
		return err
	}
	for _, p := range posts {
		if err := m.app.Posts.delete(ctx, p); err != nil {
			return err
		}
	}

	comments, err := repo.Collect(r.Comment.ByUser(ctx, userID))
	if err != nil {
		return err
	}
	for _, c := range comments {
		if _, err := r.Comment.Delete(ctx, c.CommentID); err != nil {
			return err
		}
	}

	albums, err := repo.Collect(r.Album.ByUser(ctx, userID))
	if err != nil {
		return err
	}
	for _, a := range albums {
		if _, err := r.Album.Delete(ctx, a.AlbumID); err != nil {
			return err
		}
	}

	cards, err := repo.Collect(r.Card.ByUser(ctx, userID))
	if err != nil {
		return err
	}
	for _, c := range cards {
		if _, err := r.Card.Delete(ctx, c.CardID); err != nil {
			return err
		}
	}

	memberships, err := repo.Collect(r.Chat.ByMember(ctx, userID))
	if err != nil {
		return err
	}
	for _, cm := range memberships {
		if err := m.app.Chats.leaveOrDelete(ctx, userID, cm.ChatID); err != nil {
			return err
		}
	}

	likes, err := repo.Collect(r.Like.ByUser(ctx, userID))
	if err != nil {
		return err
	}
	for _, l := range likes {
		if _, err := r.Like.Delete(ctx, userID, l.PostID); err != nil {
			return err
		}
	}

	var flagKeys []store.Key
	for row, err := range r.Flag.ByUser(ctx, userID) {
		if err != nil {
			return err
		}
		flagKeys = append(flagKeys, row.Key())
	}
	for _, k := range flagKeys {
		if _, err := r.Store.Delete(ctx, k, nil); err != nil {
			return err
		}
	}

	followeds, err := repo.Collect(r.Follow.Followeds(ctx, userID, ""))
	if err != nil {
		return err
	}
	for _, f := range followeds {
		if _, err := r.Follow.Delete(ctx, userID, f.FollowedUserID); err != nil {
			return err
		}
	}
	followers, err := repo.Collect(r.Follow.Followers(ctx, userID, ""))
	if err != nil {
		return err
	}
	for _, f := range followers {
		if _, err := r.Follow.Delete(ctx, f.FollowerUserID, userID); err != nil {
			return err
		}
	}

	blocked, err := repo.Collect(r.Block.BlockedBy(ctx, userID))
	if err != nil {
		return err
	}
	for _, b := range blocked {
		if _, err := r.Block.Delete(ctx, userID, b.BlockedUserID); err != nil {
			return err
		}
	}
	blockers, err := repo.Collect(r.Block.BlockersOf(ctx, userID))
	if err != nil {
		return err
	}
	for _, b := range blockers {
		if _, err := r.Block.Delete(ctx, b.BlockerUserID, userID); err != nil {
			return err
		}
	}

	views, err := repo.Collect(r.View.KeysByUser(ctx, userID))
	if err != nil {
		return err
	}
	if err := r.Store.BatchWrite(ctx, nil, views); err != nil {
		return err
	}

	return m.app.Trending.Delete(ctx, userID)
}
