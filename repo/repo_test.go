package repo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realsocial/real/model"
	"github.com/realsocial/real/repo"
	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newRepos(t *testing.T) (*repo.Repos, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return repo.New(mem), mem
}

func TestUser_AddGetAndDuplicate(t *testing.T) {
	ctx := context.Background()
	r, _ := newRepos(t)

	u := &model.User{UserID: "u1", Username: "Ada", Status: model.UserActive, Privacy: model.Public, SignedUpAt: t0}
	require.NoError(t, r.User.Add(ctx, u))

	err := r.User.Add(ctx, u)
	assert.ErrorIs(t, err, repo.ErrUserAlreadyExists)
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
	assert.NotErrorIs(t, err, repo.ErrPostAlreadyExists)

	got, err := r.User.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Username)
	assert.True(t, got.SignedUpAt.Equal(t0))

	byName, err := r.User.GetByUsername(ctx, "ADA")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, "u1", byName.UserID)

	missing, err := r.User.Get(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestEncode_TimeLayoutAndVersion(t *testing.T) {
	r, _ := newRepos(t)
	row, err := r.Post.Row(&model.Post{PostID: "p1", PostedByUserID: "u1", Status: model.PostPending, PostedAt: t0})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T12:00:00.000000Z", row.String("postedAt"))
	assert.Equal(t, int64(0), row.Int(schema.AttrSchemaVersion))
	assert.True(t, row.Has(schema.AttrSchemaVersion))
	assert.False(t, row.Has("expiresAt"))
}

func TestCounters_Underflow(t *testing.T) {
	ctx := context.Background()
	r, _ := newRepos(t)
	require.NoError(t, r.User.Add(ctx, &model.User{UserID: "u1", Username: "a", SignedUpAt: t0}))

	require.NoError(t, r.User.Increment(ctx, "u1", model.AttrPostCount))
	require.NoError(t, r.User.Decrement(ctx, "u1", model.AttrPostCount))
	err := r.User.Decrement(ctx, "u1", model.AttrPostCount)
	assert.ErrorIs(t, err, repo.ErrUserCounterUnderflow)
	assert.ErrorIs(t, err, store.ErrCounterUnderflow)

	err = r.User.Increment(ctx, "ghost", model.AttrPostCount)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdate_RefusesNewerSchemaVersion(t *testing.T) {
	ctx := context.Background()
	r, mem := newRepos(t)
	row, err := r.User.Row(&model.User{UserID: "u1", Username: "a", SignedUpAt: t0})
	require.NoError(t, err)
	row[schema.AttrSchemaVersion] = &types.AttributeValueMemberN{Value: "7"}
	require.NoError(t, mem.Add(ctx, row))

	_, err = r.User.Update(ctx, "u1", store.NewUpdate().Set("bio", "hi"), nil)
	assert.ErrorIs(t, err, store.ErrSchemaVersion)
}

func TestPost_IndexesFollowStatus(t *testing.T) {
	ctx := context.Background()
	r, _ := newRepos(t)
	exp := t0.Add(time.Hour)
	p := &model.Post{PostID: "p1", PostedByUserID: "u1", Status: model.PostPending, PostedAt: t0, ExpiresAt: &exp}
	require.NoError(t, r.Post.Add(ctx, p))
	require.NoError(t, r.Post.Add(ctx, &model.Post{PostID: "p2", PostedByUserID: "u1", Status: model.PostCompleted, PostedAt: t0.Add(time.Minute)}))

	completed, err := repo.Collect(r.Post.ByUser(ctx, "u1", model.PostCompleted))
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "p2", completed[0].PostID)

	upd := r.Post.SetStatus(store.NewUpdate(), p, model.PostCompleted, t0.Add(2*time.Minute))
	_, err = r.Post.Update(ctx, "p1", upd, store.Eq(model.AttrPostStatus, string(model.PostPending)))
	require.NoError(t, err)

	all, err := repo.Collect(r.Post.ByUser(ctx, "u1", model.PostCompleted))
	require.NoError(t, err)
	assert.Len(t, all, 2)

	stories, err := repo.Collect(r.Post.StoriesByUser(ctx, "u1"))
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, "p1", stories[0].PostID)
	require.NotNil(t, stories[0].CompletedAt)
}

func TestPost_ExpiringBetweenSpansDays(t *testing.T) {
	ctx := context.Background()
	r, _ := newRepos(t)
	for i, d := range []time.Duration{2 * time.Hour, 20 * time.Hour, 50 * time.Hour} {
		exp := t0.Add(d)
		p := &model.Post{PostID: string(rune('a' + i)), PostedByUserID: "u1", Status: model.PostCompleted, PostedAt: t0, ExpiresAt: &exp}
		require.NoError(t, r.Post.Add(ctx, p))
	}
	got, err := repo.Collect(r.Post.ExpiringBetween(ctx, t0, t0.Add(24*time.Hour)))
	require.NoError(t, err)
	ids := []string{}
	for _, p := range got {
		ids = append(ids, p.PostID)
	}
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestPost_AlbumOrderAndChecksum(t *testing.T) {
	ctx := context.Background()
	r, _ := newRepos(t)
	ranks := map[string]float64{"p1": 0, "p2": -0.5, "p3": 0.5}
	for id, rank := range ranks {
		rank := rank
		done := t0
		p := &model.Post{PostID: id, PostedByUserID: "u1", Status: model.PostCompleted, PostedAt: t0,
			AlbumID: "a1", AlbumRank: &rank, Checksum: "sum", CompletedAt: &done}
		if id == "p1" {
			earlier := t0.Add(-time.Hour)
			p.CompletedAt = &earlier
		}
		require.NoError(t, r.Post.Add(ctx, p))
	}
	posts, err := repo.Collect(r.Post.ByAlbum(ctx, "a1"))
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, []string{"p2", "p1", "p3"}, []string{posts[0].PostID, posts[1].PostID, posts[2].PostID})

	first, err := r.Post.FirstWithChecksum(ctx, "sum")
	require.NoError(t, err)
	assert.Equal(t, "p1", first.PostID)
}

func TestFollow_TransitionAndQueries(t *testing.T) {
	ctx := context.Background()
	r, mem := newRepos(t)
	f := &model.Follow{FollowerUserID: "u1", FollowedUserID: "u2", Status: model.FollowRequested, FollowedAt: t0}
	row, err := r.Follow.Row(f)
	require.NoError(t, err)
	require.NoError(t, mem.Add(ctx, row))
	assert.ErrorIs(t, mem.Add(ctx, row), store.ErrAlreadyExists)

	requested, err := repo.Collect(r.Follow.Followers(ctx, "u2", model.FollowRequested))
	require.NoError(t, err)
	assert.Len(t, requested, 1)

	updated, err := r.Follow.Transition(ctx, f, model.FollowFollowing)
	require.NoError(t, err)
	assert.Equal(t, model.FollowFollowing, updated.Status)

	_, err = r.Follow.Transition(ctx, f, model.FollowDenied)
	assert.ErrorIs(t, err, store.ErrPreconditionFailed)

	following, err := repo.Collect(r.Follow.Followeds(ctx, "u1", model.FollowFollowing))
	require.NoError(t, err)
	assert.Len(t, following, 1)
}

func TestView_RecordMovesForwardOnly(t *testing.T) {
	ctx := context.Background()
	r, _ := newRepos(t)
	item := schema.PostKey("p1")
	v := func(at time.Time, n int64) *model.View {
		return &model.View{ItemKind: "post", ItemID: "p1", UserID: "u1", FirstViewedAt: at, LastViewedAt: at, ViewCount: n}
	}
	require.NoError(t, r.View.Record(ctx, item, v(t0, 2)))
	require.NoError(t, r.View.Record(ctx, item, v(t0.Add(time.Hour), 1)))
	require.NoError(t, r.View.Record(ctx, item, v(t0.Add(-time.Hour), 4)))

	got, err := r.View.Get(ctx, item, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ViewCount)
	assert.True(t, got.LastViewedAt.Equal(t0.Add(time.Hour)))
	assert.True(t, got.FirstViewedAt.Equal(t0))

	seen, err := r.View.ViewedSince(ctx, item, "u1", t0.Add(30*time.Minute))
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestChat_BumpActivityIgnoresOlder(t *testing.T) {
	ctx := context.Background()
	r, mem := newRepos(t)
	row, err := r.Chat.Row(&model.Chat{ChatID: "c1", Type: model.ChatGroup, CreatedAt: t0, UserCount: 1})
	require.NoError(t, err)
	require.NoError(t, mem.Add(ctx, row))

	moved, err := r.Chat.BumpActivity(ctx, "c1", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, moved)
	moved, err = r.Chat.BumpActivity(ctx, "c1", t0)
	require.NoError(t, err)
	assert.False(t, moved)

	c, err := r.Chat.Get(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, c.LastMessageActivityAt.Equal(t0.Add(time.Minute)))
}

func TestChat_MembersAndDirectMarker(t *testing.T) {
	ctx := context.Background()
	r, mem := newRepos(t)
	for _, u := range []string{"u1", "u2"} {
		row, err := r.Chat.MemberRow(&model.ChatMember{ChatID: "c1", UserID: u, JoinedAt: t0, LastMessageActivityAt: t0})
		require.NoError(t, err)
		require.NoError(t, mem.Add(ctx, row))
	}
	marker, err := r.Chat.DirectRow("c1", "u2", "u1")
	require.NoError(t, err)
	require.NoError(t, mem.Add(ctx, marker))

	members, err := repo.Collect(r.Chat.Members(ctx, "c1"))
	require.NoError(t, err)
	assert.Len(t, members, 2)

	id, err := r.Chat.GetDirect(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, "c1", id)

	moved, err := r.Chat.BumpMemberActivity(ctx, "c1", "u2", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, moved)
	chats, err := repo.Collect(r.Chat.ByMember(ctx, "u2"))
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.True(t, chats[0].LastMessageActivityAt.Equal(t0.Add(time.Hour)))
}

func TestTrending_DeflateRequiresUnchangedScore(t *testing.T) {
	ctx := context.Background()
	r, _ := newRepos(t)
	item := &model.TrendingItem{ItemID: "p1", Kind: model.TrendingPost, Score: 1, LastDeflatedAt: t0, CreatedAt: t0}
	require.NoError(t, r.Trending.Add(ctx, item))

	_, err := r.Trending.AddScore(ctx, "p1", 0.5)
	require.NoError(t, err)

	_, err = r.Trending.Deflate(ctx, item, 0.5, t0.Add(24*time.Hour))
	assert.True(t, errors.Is(err, store.ErrPreconditionFailed))

	fresh, err := r.Trending.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1.5, fresh.Score)
	deflated, err := r.Trending.Deflate(ctx, fresh, 0.75, t0.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0.75, deflated.Score)

	stale, err := repo.Collect(r.Trending.DeflatedBefore(ctx, model.TrendingPost, t0.Add(time.Hour)))
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestCard_Upsert(t *testing.T) {
	ctx := context.Background()
	r, _ := newRepos(t)
	c := &model.Card{CardID: "u1:CHAT_ACTIVITY", UserID: "u1", Type: model.CardChatActivity, Title: "1 chat", Action: "chat", CreatedAt: t0}
	created, err := r.Card.Upsert(ctx, c)
	require.NoError(t, err)
	assert.True(t, created)

	c.Title = "2 chats"
	created, err = r.Card.Upsert(ctx, c)
	require.NoError(t, err)
	assert.False(t, created)

	cards, err := repo.Collect(r.Card.ByUser(ctx, "u1"))
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "2 chats", cards[0].Title)
}

func TestProcessed_Marker(t *testing.T) {
	ctx := context.Background()
	r, _ := newRepos(t)
	seen, err := r.Processed.Seen(ctx, "e1", t0)
	require.NoError(t, err)
	assert.False(t, seen)

	marked, err := r.Processed.Mark(ctx, "e1", t0, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, marked)
	seen, err = r.Processed.Seen(ctx, "e1", t0)
	require.NoError(t, err)
	assert.True(t, seen)

	marked, err = r.Processed.Mark(ctx, "e1", t0.Add(time.Minute), t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, marked, "live marker is kept")
	seen, err = r.Processed.Seen(ctx, "e1", t0.Add(90*time.Minute))
	require.NoError(t, err)
	assert.False(t, seen)

	marked, err = r.Processed.Mark(ctx, "e1", t0.Add(90*time.Minute), t0.Add(3*time.Hour))
	require.NoError(t, err)
	assert.True(t, marked, "expired marker is replaced")
	seen, err = r.Processed.Seen(ctx, "e1", t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestBlock_EitherWay(t *testing.T) {
	ctx := context.Background()
	r, _ := newRepos(t)
	require.NoError(t, r.Block.Add(ctx, &model.Block{BlockerUserID: "u1", BlockedUserID: "u2", BlockedAt: t0}))
	for _, pair := range [][2]string{{"u1", "u2"}, {"u2", "u1"}} {
		blocked, err := r.Block.EitherWay(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, blocked)
	}
	blocked, err := r.Block.EitherWay(ctx, "u1", "u3")
	require.NoError(t, err)
	assert.False(t, blocked)
}
