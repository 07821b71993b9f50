package manager

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/realsocial/real/model"
	"github.com/realsocial/real/repo"
)

// Concurrent writes per fan-out.
const fanOutLimit = 8

// FollowManager owns follow relationships and what followers see of the
// users they follow.
type FollowManager struct {
	app *App
}

// RequestToFollow makes follower follow followed. Public users are followed
// immediately; private users get a request to accept.
func (m *FollowManager) RequestToFollow(ctx context.Context, followerID, followedID string) (*model.Follow, error) {
	if followerID == followedID {
		return nil, ErrCannotFollowSelf
	}
	if _, err := m.app.Users.GetActive(ctx, followerID); err != nil {
		return nil, err
	}
	followed, err := m.app.Users.GetActive(ctx, followedID)
	if err != nil {
		return nil, err
	}
	blocked, err := m.app.Repos.Block.EitherWay(ctx, followerID, followedID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, withIDs(ErrBlocked, "userId", followedID)
	}

	status := model.FollowFollowing
	if followed.Privacy == model.Private {
		status = model.FollowRequested
	}
	f := &model.Follow{
		FollowerUserID: followerID,
		FollowedUserID: followedID,
		Status:         status,
		FollowedAt:     m.app.now(),
	}
	row, err := m.app.Repos.Follow.Row(f)
	if err != nil {
		return nil, err
	}
	exists := withIDs(ErrAlreadyFollowing, "followerUserId", followerID, "followedUserId", followedID)
	if err := m.app.addUnblocked(ctx, row, exists, followerID, followedID); err != nil {
		return nil, err
	}
	return f, nil
}

// Unfollow removes a follow in any status. A denied follower may only be
// removed with force, so users cannot escape a denial by re-requesting.
func (m *FollowManager) Unfollow(ctx context.Context, followerID, followedID string, force bool) error {
	f, err := m.app.Repos.Follow.Get(ctx, followerID, followedID)
	if err != nil {
		return err
	}
	if f == nil {
		return withIDs(ErrNotFollowing, "followerUserId", followerID, "followedUserId", followedID)
	}
	if f.Status == model.FollowDenied && !force {
		return withIDs(ErrFollowStatus, "followStatus", string(f.Status))
	}
	_, err = m.app.Repos.Follow.Delete(ctx, followerID, followedID)
	return err
}

// Accept lets a requested or denied follower follow.
func (m *FollowManager) Accept(ctx context.Context, followedID, followerID string) (*model.Follow, error) {
	return m.transition(ctx, followerID, followedID, model.FollowFollowing, model.FollowRequested, model.FollowDenied)
}

// Deny refuses a request, or stops an existing follower from following.
func (m *FollowManager) Deny(ctx context.Context, followedID, followerID string) (*model.Follow, error) {
	return m.transition(ctx, followerID, followedID, model.FollowDenied, model.FollowRequested, model.FollowFollowing)
}

func (m *FollowManager) transition(ctx context.Context, followerID, followedID string, to model.FollowStatus, from ...model.FollowStatus) (*model.Follow, error) {
	f, err := m.app.Repos.Follow.Get(ctx, followerID, followedID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, withIDs(ErrNotFollowing, "followerUserId", followerID, "followedUserId", followedID)
	}
	allowed := false
	for _, s := range from {
		allowed = allowed || f.Status == s
	}
	if !allowed {
		return nil, withIDs(ErrFollowStatus, "followStatus", string(f.Status))
	}
	f, err = m.app.Repos.Follow.Transition(ctx, f, to)
	if isPrecondition(err) {
		return nil, withIDs(ErrFollowStatus, "followStatus", "changed")
	}
	return f, err
}

// OnFollowing gives a new follower the followed user's completed posts and
// first story.
func (m *FollowManager) OnFollowing(ctx context.Context, f *model.Follow) error {
	posts, err := repo.Collect(m.app.Repos.Post.ByUser(ctx, f.FollowedUserID, model.PostCompleted))
	if err != nil {
		return err
	}
	entries := make([]*model.FeedEntry, len(posts))
	for i, p := range posts {
		entries[i] = feedEntry(f.FollowerUserID, p)
	}
	if err := m.app.Repos.Feed.PutAll(ctx, entries); err != nil {
		return err
	}
	return m.RefreshFirstStory(ctx, f.FollowedUserID, f.FollowerUserID)
}

// OnUnfollowed takes back what a follower saw of the followed user. Likes
// on a private user's posts go too, as the follower can no longer see them.
func (m *FollowManager) OnUnfollowed(ctx context.Context, followerID, followedID string) error {
	keys, err := repo.Collect(m.app.Repos.Feed.KeysByUserAndAuthor(ctx, followerID, followedID))
	if err != nil {
		return err
	}
	if err := m.app.Repos.Feed.DeleteAll(ctx, keys); err != nil {
		return err
	}
	if err := m.app.Repos.Follow.DeleteFirstStory(ctx, followedID, followerID); err != nil {
		return err
	}
	followed, err := m.app.Repos.User.Get(ctx, followedID)
	if err != nil {
		return err
	}
	if followed != nil && followed.Privacy == model.Private {
		return m.app.Likes.DislikeAllByUserOfAuthor(ctx, followerID, followedID)
	}
	return nil
}

// RefreshFirstStory points followers of followedID at the user's live story
// expiring soonest, or removes their pointers when there is none. With no
// followerIDs every current follower is refreshed.
func (m *FollowManager) RefreshFirstStory(ctx context.Context, followedID string, followerIDs ...string) error {
	story, err := m.firstLiveStory(ctx, followedID)
	if err != nil {
		return err
	}
	if len(followerIDs) == 0 {
		follows, err := repo.Collect(m.app.Repos.Follow.Followers(ctx, followedID, model.FollowFollowing))
		if err != nil {
			return err
		}
		for _, f := range follows {
			followerIDs = append(followerIDs, f.FollowerUserID)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit)
	for _, followerID := range followerIDs {
		g.Go(func() error {
			if story == nil {
				return m.app.Repos.Follow.DeleteFirstStory(ctx, followedID, followerID)
			}
			return m.app.Repos.Follow.PutFirstStory(ctx, &model.FirstStory{
				FollowedUserID: followedID,
				FollowerUserID: followerID,
				PostID:         story.PostID,
				ExpiresAt:      *story.ExpiresAt,
			})
		})
	}
	return g.Wait()
}

func (m *FollowManager) firstLiveStory(ctx context.Context, userID string) (*model.Post, error) {
	now := m.app.now()
	var first *model.Post
	for p, err := range m.app.Repos.Post.StoriesByUser(ctx, userID) {
		if err != nil {
			return nil, err
		}
		if p.LiveStory(now) && (first == nil || p.ExpiresAt.Before(*first.ExpiresAt)) {
			first = p
		}
	}
	return first, nil
}

// ListFollowers returns who follows userID, optionally in one status.
func (m *FollowManager) ListFollowers(ctx context.Context, userID string, status model.FollowStatus) ([]*model.Follow, error) {
	return repo.Collect(m.app.Repos.Follow.Followers(ctx, userID, status))
}

// ListFolloweds returns whom userID follows, optionally in one status.
func (m *FollowManager) ListFolloweds(ctx context.Context, userID string, status model.FollowStatus) ([]*model.Follow, error) {
	return repo.Collect(m.app.Repos.Follow.Followeds(ctx, userID, status))
}

// IsFollowing reports whether followerID currently follows followedID.
func (m *FollowManager) IsFollowing(ctx context.Context, followerID, followedID string) (bool, error) {
	f, err := m.app.Repos.Follow.Get(ctx, followerID, followedID)
	if err != nil {
		return false, err
	}
	return f != nil && f.Status == model.FollowFollowing, nil
}

// canSee reports whether viewerID may interact with content of author:
// neither blocks the other, and a private author is followed by the viewer.
func (a *App) canSee(ctx context.Context, viewerID string, author *model.User) error {
	if viewerID == author.UserID {
		return nil
	}
	blocked, err := a.Repos.Block.EitherWay(ctx, viewerID, author.UserID)
	if err != nil {
		return err
	}
	if blocked {
		return withIDs(ErrBlocked, "userId", author.UserID)
	}
	if author.Privacy != model.Private {
		return nil
	}
	following, err := a.Follows.IsFollowing(ctx, viewerID, author.UserID)
	if err != nil {
		return err
	}
	if !following {
		return withIDs(ErrPrivateUser, "userId", author.UserID)
	}
	return nil
}

func feedEntry(userID string, p *model.Post) *model.FeedEntry {
	return &model.FeedEntry{
		UserID:         userID,
		PostID:         p.PostID,
		PostedByUserID: p.PostedByUserID,
		PostedAt:       p.PostedAt,
	}
}
