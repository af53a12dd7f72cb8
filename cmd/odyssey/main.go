package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/odyssey-erp/interco/cmd/odyssey/cli"
	"github.com/odyssey-erp/interco/internal/app"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping cli")
		return
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisAddr := cfg.RedisAddr
	root := cli.NewRootCommand(func() (*cli.JobsCLI, error) {
		return cli.NewJobsCLI(redisAddr)
	})
	root.PersistentFlags().StringVar(&redisAddr, "redis", cfg.RedisAddr, "Redis address used by the job queue")

	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("command failed", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}
