package resolver_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/realsocial/real/internal/realtest"
	"github.com/realsocial/real/internal/resolver"
	"github.com/realsocial/real/model"
)

func request(t *testing.T, parent, field, caller string, args any) resolver.Request {
	t.Helper()
	var req resolver.Request
	req.Info.ParentTypeName = parent
	req.Info.FieldName = field
	req.Identity.Sub = caller
	if args != nil {
		raw, err := json.Marshal(args)
		require.NoError(t, err)
		req.Arguments = raw
	}
	return req
}

func TestHandle_RoutesMutations(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	env.User("bob")
	r := resolver.New(env.App, zaptest.NewLogger(t))

	resp, err := r.Handle(env.Ctx, request(t, "Mutation", "followUser", "alice", map[string]any{"userId": "bob"}))
	require.NoError(t, err)
	require.Nil(t, resp.Error)
	f, ok := resp.Data.(*model.Follow)
	require.True(t, ok)
	assert.Equal(t, model.FollowFollowing, f.Status)

	resp, err = r.Handle(env.Ctx, request(t, "Mutation", "addPost", "bob", map[string]any{
		"postId": "p1",
		"text":   "hello",
	}))
	require.NoError(t, err)
	require.Nil(t, resp.Error)
	env.Settle()
	assert.Equal(t, model.PostCompleted, env.GetPost("p1").Status)

	resp, err = r.Handle(env.Ctx, request(t, "Mutation", "reportPostViews", "alice", map[string]any{"ids": []string{"p1"}}))
	require.NoError(t, err)
	assert.Equal(t, true, resp.Data)
	env.Settle()
	assert.EqualValues(t, 1, env.GetPost("p1").ViewedByCount)

	resp, err = r.Handle(env.Ctx, request(t, "Query", "self", "alice", nil))
	require.NoError(t, err)
	u, ok := resp.Data.(*model.User)
	require.True(t, ok)
	assert.Equal(t, "alice", u.Username)
}

func TestHandle_ClientErrors(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	r := resolver.New(env.App, nil)

	tests := []struct {
		name     string
		req      resolver.Request
		wantType string
	}{
		{
			name:     "unknown target user",
			req:      request(t, "Mutation", "followUser", "alice", map[string]any{"userId": "nobody"}),
			wantType: "ClientError:NOT_FOUND",
		},
		{
			name:     "missing argument",
			req:      request(t, "Mutation", "followUser", "alice", map[string]any{}),
			wantType: "ClientError:VALIDATION",
		},
		{
			name:     "malformed arguments",
			req:      request(t, "Mutation", "deletePost", "alice", []int{1}),
			wantType: "ClientError:VALIDATION",
		},
		{
			name:     "bad lifetime",
			req:      request(t, "Mutation", "addPost", "alice", map[string]any{"postId": "p1", "text": "x", "lifetime": "soon"}),
			wantType: "ClientError:VALIDATION",
		},
		{
			name:     "no caller",
			req:      request(t, "Query", "self", "", nil),
			wantType: "ClientError:FORBIDDEN",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := r.Handle(env.Ctx, tt.req)
			require.NoError(t, err)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantType, resp.Error.ErrorType)
			assert.Nil(t, resp.Data)
		})
	}
}

func TestHandle_UnknownField(t *testing.T) {
	env := realtest.New(t)
	r := resolver.New(env.App, nil)

	_, err := r.Handle(env.Ctx, request(t, "Mutation", "launchRocket", "alice", nil))
	require.ErrorIs(t, err, resolver.ErrUnknownField)
}

func TestHandle_StoryLifetime(t *testing.T) {
	env := realtest.New(t)
	env.User("alice")
	r := resolver.New(env.App, nil)

	resp, err := r.Handle(env.Ctx, request(t, "Mutation", "addPost", "alice", map[string]any{
		"postId":   "s1",
		"text":     "today",
		"lifetime": "24h",
	}))
	require.NoError(t, err)
	require.Nil(t, resp.Error)

	p := env.GetPost("s1")
	require.NotNil(t, p.ExpiresAt)
	assert.Equal(t, realtest.Start.Add(24*time.Hour), p.ExpiresAt.UTC())
}
