package main

import (
	"context"
	"embed"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/cascadiahydro/streamsync/internal/cli"
	"github.com/cascadiahydro/streamsync/internal/config"
)

// embeddedConfig embeds the application's YAML configuration file so the
// binary carries its defaults; environment variables override them at runtime.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// migrationsFS embeds the database schema migration files.
//
//go:embed all:resources/migrations
var migrationsFS embed.FS

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := cli.Execute(ctx, cli.Assets{
		EmbeddedConfig: config.EmbeddedConfig(embeddedConfig),
		MigrationsFS:   migrationsFS,
		MigrationsPath: "resources/migrations",
	})
	os.Exit(code)
}
