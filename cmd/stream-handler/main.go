// Command stream-handler consumes the table's change stream and runs the
// reactor's handlers for every record.
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/realsocial/real/internal/bootstrap"
	"github.com/realsocial/real/reactor"
)

var (
	rt      *bootstrap.Runtime
	handler *reactor.StreamHandler
)

func init() {
	var err error
	rt, err = bootstrap.Load(context.Background(), "stream-handler")
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	handler = reactor.NewStreamHandler(rt.Dispatcher(), rt.Logger)
}

func main() {
	lambda.StartWithOptions(handler.Handle, lambda.WithEnableSIGTERM(func() {
		rt.Close(context.Background())
	}))
}
