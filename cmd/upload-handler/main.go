// Command upload-handler reacts to media landing in the uploads bucket.
package main

import (
	"context"
	"log"
	"net/url"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/realsocial/real/errs"
	"github.com/realsocial/real/internal/bootstrap"
	"github.com/realsocial/real/manager"
)

var rt *bootstrap.Runtime

func init() {
	var err error
	rt, err = bootstrap.Load(context.Background(), "upload-handler")
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
}

func handle(ctx context.Context, event events.S3Event) error {
	defer rt.Metrics.Flush(ctx)
	for _, record := range event.Records {
		key, err := url.QueryUnescape(record.S3.Object.Key)
		if err != nil {
			key = record.S3.Object.Key
		}
		if err := process(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func process(ctx context.Context, key string) error {
	up, ok := manager.ParseUploadKey(key)
	if !ok {
		rt.Logger.Warn("ignoring object", zap.String("key", key))
		return nil
	}

	var err error
	switch up.Media {
	case manager.MediaImage:
		_, err = rt.App.Posts.ProcessImageUpload(ctx, up.PostID)
	case manager.MediaVideo:
		_, err = rt.App.Posts.OnVideoUploaded(ctx, up.PostID)
	}
	// Uploads for posts that moved on are stale; retrying cannot help.
	if errs.IsClient(err) {
		rt.Logger.Info("upload not processed",
			zap.String("key", key),
			zap.String("postId", up.PostID),
			zap.Error(err),
		)
		return nil
	}
	return err
}

func main() {
	lambda.Start(handle)
}
