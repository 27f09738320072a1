package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/dmorgan81/imagestudio/internal/credential"
	"github.com/dmorgan81/imagestudio/internal/handler"
	"github.com/dmorgan81/imagestudio/internal/inject"
	"github.com/dmorgan81/imagestudio/internal/log"
	"github.com/samber/do"
)

// apiKey is replaced at build time with -ldflags "-X main.apiKey=...".
var apiKey = credential.BuildPlaceholder

func main() {
	ctx := log.NewContext(context.Background(), log.New(os.Stderr, log.ParseLevel(os.Getenv("LOG_LEVEL"))))
	injector := inject.Setup(ctx, apiKey)
	handler := do.MustInvoke[*handler.Handler](injector)
	lambda.StartWithOptions(handler.Handle, lambda.WithContext(ctx), lambda.WithEnableSIGTERM(func() {
		_ = injector.Shutdown()
	}))
}
