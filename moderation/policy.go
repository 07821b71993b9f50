// Package moderation decides when flagged content is removed and when an
// author is disabled. Everything here is a pure function of row state.
package moderation

import (
	"math"

	"github.com/realsocial/real/model"
)

// DefaultRatio is the share of viewers whose flags remove a post.
const DefaultRatio = 0.1

// Authors with at most this many items are never disabled.
const minAuthoredForDisabling = 5

// Policy holds the tunable thresholds.
type Policy struct {
	// Ratio scales the viewer or member count into a flag threshold.
	Ratio float64
	// AlertThreshold is the flag count at which moderators are alerted.
	AlertThreshold int64
}

// New returns a policy with ratio, falling back to DefaultRatio.
func New(ratio float64, alertThreshold int) Policy {
	if ratio <= 0 {
		ratio = DefaultRatio
	}
	return Policy{Ratio: ratio, AlertThreshold: int64(alertThreshold)}
}

// IsPostForceArchiveMet holds once a post carries at least one flag and
// strictly more flags than Ratio of its distinct viewers. The strict bound
// differs from the comment and chat checks, which hold at equality.
func (p Policy) IsPostForceArchiveMet(post *model.Post) bool {
	flags := float64(post.FlagCount)
	return post.FlagCount >= 1 && flags > float64(post.ViewedByCount)*p.Ratio
}

// IsCommentForceDeleteMet compares a comment's flags with the viewers of
// the post it belongs to.
func (p Policy) IsCommentForceDeleteMet(c *model.Comment, post *model.Post) bool {
	viewers := int64(0)
	if post != nil {
		viewers = post.ViewedByCount
	}
	return float64(c.FlagCount) >= math.Max(1, float64(viewers)*p.Ratio)
}

// IsChatForceDeleteMet applies to both chats and their messages, measured
// against the chat's member count.
func (p Policy) IsChatForceDeleteMet(flagCount, userCount int64) bool {
	return float64(flagCount) >= math.Max(1, float64(userCount)*p.Ratio-1)
}

// IsUserForcedDisablingMet holds when more than a tenth of an author's posts,
// comments or chat messages were removed by moderation.
func (p Policy) IsUserForcedDisablingMet(u *model.User) bool {
	return disablingMet(u.TotalPostCount(), u.PostForcedArchivingCount) ||
		disablingMet(u.TotalCommentCount(), u.CommentForcedDeletionCount) ||
		disablingMet(u.ChatMessagesCreationCount, u.ChatMessagesForcedDeletionCount)
}

func disablingMet(total, forced int64) bool {
	return total > minAuthoredForDisabling && float64(forced) > float64(total)/10
}

// ShouldAlert reports whether flagCount just reached the alert threshold.
func (p Policy) ShouldAlert(flagCount int64) bool {
	return p.AlertThreshold > 0 && flagCount == p.AlertThreshold
}
