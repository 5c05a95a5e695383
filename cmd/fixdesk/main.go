package main

import (
	"log/slog"
	"os"

	"github.com/dwizi/fixdesk/internal/cli"
	"github.com/dwizi/fixdesk/internal/config"
)

func main() {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(config.FromEnv().LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	if err := cli.NewRoot(logger).Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
