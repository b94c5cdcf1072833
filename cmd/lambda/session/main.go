// session Lambda runs a returns session when files land in the source bucket.
// Invoked by S3 object-created notifications.
package main

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	awslambda "github.com/aws/aws-lambda-go/lambda"

	intlambda "github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/lambda"
)

var (
	deps     *intlambda.Deps
	depsOnce sync.Once
	depsErr  error
)

func getDeps() (*intlambda.Deps, error) {
	depsOnce.Do(func() {
		deps, depsErr = intlambda.Init(context.Background())
	})
	return deps, depsErr
}

func handler(ctx context.Context, ev events.S3Event) (intlambda.SessionResponse, error) {
	d, err := getDeps()
	if err != nil {
		return intlambda.SessionResponse{}, err
	}
	resp, err := intlambda.HandleS3Event(ctx, d, ev)
	if err != nil {
		d.Logger.Error("session failed", "error", err)
		return resp, err
	}
	d.Logger.Info("sessions complete", "records", len(ev.Records), "sessions", len(resp.Sessions))
	return resp, nil
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	awslambda.Start(handler)
}
