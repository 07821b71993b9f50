package moderation_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realsocial/real/model"
	"github.com/realsocial/real/moderation"
)

func TestPostForceArchive(t *testing.T) {
	p := moderation.New(0.1, 5)
	tests := []struct {
		flags, viewers int64
		want bool
	}{
		{0, 0, false},
		{1, 0, true},
		{1, 9, true},
		{1, 10, false},
		{2, 10, true},
		{10, 100, false},
		{11, 100, true},
	}
	for _, tt := range tests {
		post := &model.Post{FlagCount: tt.flags, ViewedByCount: tt.viewers}
		assert.Equal(t, tt.want, p.IsPostForceArchiveMet(post), "flags=%d viewers=%d", tt.flags, tt.viewers)
	}
}

func TestCommentForceDelete(t *testing.T) {
	p := moderation.New(0.1, 5)
	post := &model.Post{ViewedByCount: 30}
	assert.False(t, p.IsCommentForceDeleteMet(&model.Comment{FlagCount: 2}, post))
	assert.True(t, p.IsCommentForceDeleteMet(&model.Comment{FlagCount: 3}, post))
	assert.True(t, p.IsCommentForceDeleteMet(&model.Comment{FlagCount: 1}, nil))
	assert.False(t, p.IsCommentForceDeleteMet(&model.Comment{}, nil))
}

func TestForceRemoval_PostBoundIsStrict(t *testing.T) {
	p := moderation.New(0.1, 5)
	post := &model.Post{FlagCount: 3, ViewedByCount: 30}
	assert.False(t, p.IsPostForceArchiveMet(post))
	assert.True(t, p.IsCommentForceDeleteMet(&model.Comment{FlagCount: 3}, post))
	assert.True(t, p.IsChatForceDeleteMet(2, 30))
}

func TestChatForceDelete(t *testing.T) {
	p := moderation.New(0.1, 5)
	assert.True(t, p.IsChatForceDeleteMet(1, 2))
	assert.False(t, p.IsChatForceDeleteMet(0, 2))
	assert.False(t, p.IsChatForceDeleteMet(3, 50))
	assert.True(t, p.IsChatForceDeleteMet(4, 50))
}

func TestUserForcedDisabling(t *testing.T) {
	p := moderation.New(0.1, 5)
	tests := []struct {
		name string
		user model.User
		want bool
	}{
		{"too few posts", model.User{PostCount: 3, PostForcedArchivingCount: 2, PostArchivedCount: 2}, false},
		{"under a tenth", model.User{PostCount: 20, PostForcedArchivingCount: 2}, false},
		{"over a tenth of posts", model.User{PostCount: 15, PostArchivedCount: 3, PostDeletedCount: 2, PostForcedArchivingCount: 3}, true},
		{"comments", model.User{CommentCount: 8, CommentDeletedCount: 2, CommentForcedDeletionCount: 2}, true},
		{"chat messages", model.User{ChatMessagesCreationCount: 6, ChatMessagesForcedDeletionCount: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.IsUserForcedDisablingMet(&tt.user))
		})
	}
}

func TestShouldAlert(t *testing.T) {
	p := moderation.New(0, 3)
	assert.Equal(t, moderation.DefaultRatio, p.Ratio)
	assert.False(t, p.ShouldAlert(2))
	assert.True(t, p.ShouldAlert(3))
	assert.False(t, p.ShouldAlert(4))
	assert.False(t, moderation.New(0.1, 0).ShouldAlert(0))
}

func TestBadWords(t *testing.T) {
	b := moderation.NewBadWords("Darn", " heck ")
	assert.Equal(t, 2, b.Len())
	assert.True(t, b.Contains("well DARN it"))
	assert.True(t, b.Contains("what the heck!"))
	assert.False(t, b.Contains("darning socks"))

	b.Replace(nil)
	assert.False(t, b.Contains("darn"))
}

func TestParseWordList(t *testing.T) {
	words, err := moderation.ParseWordList(strings.NewReader(`["a", "b"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, words)

	words, err = moderation.ParseWordList(strings.NewReader("# list\nfoo\n\nbar\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"foo", "bar"}, words)

	_, err = moderation.ParseWordList(strings.NewReader(`[1`))
	assert.Error(t, err)
}
