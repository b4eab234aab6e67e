package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/nocturne-journal/nocturne/internal/cli"
	"github.com/nocturne-journal/nocturne/internal/config"
	"github.com/nocturne-journal/nocturne/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()

	level := slog.LevelWarn
	if os.Getenv("NOCTURNE_DEBUG") != "" {
		level = slog.LevelDebug
	}
	log := logging.NewDefault(os.Stderr, level)

	app, err := cli.NewApp(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	root := cli.NewRootCmd(app)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
