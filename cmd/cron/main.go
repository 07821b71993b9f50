// Command cron runs the periodic jobs: expiring stories, deflating and
// trimming trending scores, and refreshing App Store subscriptions.
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/realsocial/real/internal/bootstrap"
	"github.com/realsocial/real/model"
)

var rt *bootstrap.Runtime

func init() {
	var err error
	rt, err = bootstrap.Load(context.Background(), "cron")
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
}

// Summary reports what a run did.
type Summary struct {
	PostsExpired        int `json:"postsExpired"`
	TrendingDeflated    int `json:"trendingDeflated"`
	TrendingDeleted     int `json:"trendingDeleted"`
	SubscriptionsSynced int `json:"subscriptionsSynced"`
}

func handle(ctx context.Context) (Summary, error) {
	defer rt.Metrics.Flush(ctx)
	app := rt.App
	var s Summary

	n, err := app.Posts.DeleteExpired(ctx)
	if err != nil {
		return s, err
	}
	s.PostsExpired = n

	for _, kind := range []model.TrendingKind{model.TrendingPost, model.TrendingUser} {
		stats, err := app.Trending.Deflate(ctx, kind)
		if err != nil {
			return s, err
		}
		s.TrendingDeflated += stats.Deflated
		s.TrendingDeleted += stats.Deleted

		trimmed, err := app.Trending.Trim(ctx, kind)
		if err != nil {
			return s, err
		}
		s.TrendingDeleted += trimmed
	}

	synced, err := app.AppStore.Refresh(ctx)
	if err != nil {
		return s, err
	}
	s.SubscriptionsSynced = synced

	rt.Logger.Info("cron finished",
		zap.Int("postsExpired", s.PostsExpired),
		zap.Int("trendingDeflated", s.TrendingDeflated),
		zap.Int("trendingDeleted", s.TrendingDeleted),
		zap.Int("subscriptionsSynced", s.SubscriptionsSynced),
	)
	return s, nil
}

func main() {
	lambda.Start(handle)
}
