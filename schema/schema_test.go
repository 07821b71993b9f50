package schema_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realsocial/real/schema"
	"github.com/realsocial/real/store"
)

func TestParse_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		key  store.Key
		kind schema.Kind
		ids  []string
	}{
		{"user", schema.UserKey("u1"), schema.KindUser, []string{"u1"}},
		{"user tombstone", schema.UserDeletedKey("u1"), schema.KindUserDeleted, []string{"u1"}},
		{"post", schema.PostKey("p1"), schema.KindPost, []string{"p1"}},
		{"post image", schema.PostImageKey("p1"), schema.KindPostImage, []string{"p1"}},
		{"feed", schema.FeedKey("u1", "p1"), schema.KindFeed, []string{"u1", "p1"}},
		{"first story", schema.FirstStoryKey("u2", "u1"), schema.KindFirstStory, []string{"u2", "u1"}},
		{"comment", schema.CommentKey("c1"), schema.KindComment, []string{"c1"}},
		{"album", schema.AlbumKey("a1"), schema.KindAlbum, []string{"a1"}},
		{"card", schema.CardKey("u1:CHAT_ACTIVITY"), schema.KindCard, []string{"u1:CHAT_ACTIVITY"}},
		{"chat", schema.ChatKey("ch1"), schema.KindChat, []string{"ch1"}},
		{"chat member", schema.ChatMemberKey("ch1", "u1"), schema.KindChatMember, []string{"ch1", "u1"}},
		{"chat message", schema.ChatMessageKey("m1"), schema.KindChatMessage, []string{"m1"}},
		{"follow", schema.FollowKey("u1", "u2"), schema.KindFollow, []string{"u1", "u2"}},
		{"block", schema.BlockKey("u1", "u2"), schema.KindBlock, []string{"u1", "u2"}},
		{"like", schema.LikeKey("u1", "p1"), schema.KindLike, []string{"u1", "p1"}},
		{"trending", schema.TrendingKey("p1"), schema.KindTrending, []string{"p1"}},
		{"app store sub", schema.AppStoreSubKey("tx1"), schema.KindAppStoreSub, []string{"tx1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := schema.Parse(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, ref.Kind)
			assert.Equal(t, tt.ids, ref.IDs)
		})
	}
}

func TestParse_FlagsAndViewsCarryItem(t *testing.T) {
	ref, err := schema.Parse(schema.FlagKey(schema.CommentKey("c1"), "u9"))
	require.NoError(t, err)
	assert.Equal(t, schema.KindFlag, ref.Kind)
	assert.Equal(t, "u9", ref.ID())
	require.NotNil(t, ref.Item)
	assert.Equal(t, schema.KindComment, ref.Item.Kind)
	assert.Equal(t, "c1", ref.Item.ID())

	ref, err = schema.Parse(schema.ViewKey(schema.ChatKey("ch1"), "u3"))
	require.NoError(t, err)
	assert.Equal(t, schema.KindView, ref.Kind)
	assert.Equal(t, schema.KindChat, ref.Item.Kind)
}

func TestParse_Unknown(t *testing.T) {
	for _, key := range []store.Key{
		{PK: "nope/1", SK: "-"},
		{PK: "post/1", SK: "whatever"},
		{PK: "post", SK: "-"},
	} {
		_, err := schema.Parse(key)
		assert.ErrorIs(t, err, schema.ErrUnknownKey, key.String())
	}
}

func TestDirectChatKey_OrderIndependent(t *testing.T) {
	assert.Equal(t, schema.DirectChatKey("b", "a"), schema.DirectChatKey("a", "b"))
}

func TestIndexHelpers(t *testing.T) {
	r := store.Row{}
	require.NoError(t, schema.SetIndex(r, store.IndexK3, schema.PostsByAlbumPK("a1"), 0.5))
	assert.Equal(t, "album/a1", r.String("gsiK3PartitionKey"))
	assert.Equal(t, 0.5, r.Float("gsiK3SortKey"))

	assert.Equal(t, "username/ada", schema.UsernamePK("Ada"))
	day := time.Date(2024, 3, 9, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "postExpiry/2024-03-09", schema.PostsExpiringPK(day))
	assert.Equal(t, "COMPLETED/2024-03-09T23:59:00.000000Z", schema.StatusSK("COMPLETED", day))
}
