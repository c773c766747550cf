// cmd/migrate/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/unclebandit/smart-mailer/internal/config"
	"github.com/unclebandit/smart-mailer/internal/db"
	"github.com/unclebandit/smart-mailer/internal/logger"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate <up|down|status|redo|version|reset> [args...]")
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.MustLoad()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultOptions, log)
	if err != nil {
		log.Error("❌ database unavailable", slog.Any("error", err))
		os.Exit(1)
	}
	defer conn.Close()

	command := flag.Arg(0)
	if err := db.Run(ctx, conn, command, cfg.MigrationsTable, log, flag.Args()[1:]...); err != nil {
		log.Error("❌ migration failed", slog.String("command", command), slog.Any("error", err))
		conn.Close()
		os.Exit(1)
	}
	log.Info("✅ migrations done", slog.String("command", command))
}
