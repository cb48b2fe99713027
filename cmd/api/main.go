package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/canopy-network/canopyvote/app/api"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	defer cancel()

	app := api.Initialize(ctx)

	serverErr := api.NewServer(app)
	if serverErr != nil {
		app.Logger.Fatal("Unable to initialize server", zap.Error(serverErr))
	}

	// Reaper pass on boot picks up elections abandoned by a previous process
	if _, err := app.Manager.ReapStalePending(ctx); err != nil {
		app.Logger.Warn("Initial reaper pass failed", zap.Error(err))
	}

	app.StartCron()

	app.Start(ctx)
}
