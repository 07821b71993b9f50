// Command resolver serves the GraphQL gateway's direct Lambda resolvers.
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/realsocial/real/internal/bootstrap"
	"github.com/realsocial/real/internal/resolver"
)

var (
	rt *bootstrap.Runtime
	r  *resolver.Resolver
)

func init() {
	var err error
	rt, err = bootstrap.Load(context.Background(), "resolver")
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	r = resolver.New(rt.App, rt.Logger)
}

func handle(ctx context.Context, req resolver.Request) (resolver.Response, error) {
	defer rt.Metrics.Flush(ctx)
	return r.Handle(ctx, req)
}

func main() {
	lambda.Start(handle)
}
