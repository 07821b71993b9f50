package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/realsocial/real/errs"
)

var errPostNotFound = errs.NewNotFound("post not found")

func TestError_Format(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: post `p1` not found", errs.NewNotFound("post `%s` not found", "p1").Error())

	cause := errors.New("boom")
	err := errs.NewCollaborator("cognito", cause)
	assert.Equal(t, "COLLABORATOR: cognito: boom", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestError_IsMatchesKindAndMessage(t *testing.T) {
	wrapped := fmt.Errorf("archive: %w", errPostNotFound)
	assert.ErrorIs(t, wrapped, errPostNotFound)
	assert.ErrorIs(t, wrapped, &errs.Error{Kind: errs.NotFound})
	assert.NotErrorIs(t, wrapped, errs.NewNotFound("comment not found"))
	assert.NotErrorIs(t, wrapped, &errs.Error{Kind: errs.Conflict})
}

func TestKinds(t *testing.T) {
	tests := []struct {
		err    error
		kind   errs.Kind
		client bool
	}{
		{errs.NewValidation("bad"), errs.Validation, true},
		{errs.NewAlreadyExists("dup"), errs.AlreadyExists, true},
		{errs.NewBlocked("blocked"), errs.Blocked, true},
		{errs.NewStatusNotAllowed("status"), errs.StatusNotAllowed, true},
		{errs.NewUnverifiedContact("email"), errs.UnverifiedContact, true},
		{errs.NewInvariant("negative"), errs.Invariant, false},
		{errs.NewRetryable(errors.New("x")), errs.Retryable, false},
		{errors.New("plain"), "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, errs.KindOf(tt.err), tt.err.Error())
		assert.Equal(t, tt.client, errs.IsClient(tt.err), tt.err.Error())
	}
	assert.True(t, errs.Is(fmt.Errorf("x: %w", errs.NewForbidden("no")), errs.Forbidden))
	assert.False(t, errs.Is(nil, errs.Forbidden))
}

func TestError_WithDataDoesNotMutate(t *testing.T) {
	base := errs.NewConflict("taken")
	withData := base.WithData(map[string]any{"username": "ada"}).WithInfo(map[string]any{"retry": false})
	assert.Nil(t, base.Data)
	assert.Equal(t, "ada", withData.Data["username"])
	assert.Equal(t, false, withData.Info["retry"])
}
