// internal/db/migrate.go
package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

func setup(table string, log *slog.Logger) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(&gooseLoggerAdapter{log})
	goose.SetTableName(table)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrSetDialect, err)
	}
	return nil
}

// Migrate applies every pending migration.
func Migrate(ctx context.Context, conn *sql.DB, table string, log *slog.Logger) error {
	return Run(ctx, conn, "up", table, log)
}

// Run executes a goose command (up, down, status, redo, version...).
func Run(ctx context.Context, conn *sql.DB, command, table string, log *slog.Logger, args ...string) error {
	if err := setup(table, log); err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, conn, "migrations", args...); err != nil {
		return errors.Join(ErrApplyMigrations, err)
	}
	return nil
}

type gooseLoggerAdapter struct {
	log *slog.Logger
}

func (g *gooseLoggerAdapter) Printf(format string, args ...any) {
	g.log.Info(fmt.Sprintf(format, args...))
}

func (g *gooseLoggerAdapter) Fatalf(format string, args ...any) {
	g.log.Error(fmt.Sprintf(format, args...))
}
