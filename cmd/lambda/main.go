package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/ammiranda/menutree/internal/app"
	"github.com/ammiranda/menutree/internal/lambda"

	awslambda "github.com/aws/aws-lambda-go/lambda"
)

func main() {
	ctx := context.Background()

	deps, err := app.Build(ctx, nil)
	if err != nil {
		app.NewLogger(slog.LevelInfo).Error("failed to start", "error", err)
		os.Exit(1)
	}

	handler := lambda.NewHandler(deps.Engine, deps.Menus, deps.Cache, deps.Logger)
	awslambda.Start(handler.Handle)
}
