package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"steamtracker/steam-api/internal/app"
	"steamtracker/steam-api/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg)
	if err != nil {
		slog.Error("create app", "err", err)
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		slog.Error("run app", "err", err)
		os.Exit(1)
	}
}
