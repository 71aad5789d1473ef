package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/hotelly/hotelly/internal/config"
)

// migrate runs the db/migrations directory against DATABASE_URL using
// goose. Supported subcommands: up, down, status, redo.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: migrate <up|down|status|redo>")
		os.Exit(1)
	}
	command := os.Args[1]

	cfg := config.Load()

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open database:", err)
		os.Exit(1)
	}
	defer db.Close()

	goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		fmt.Fprintln(os.Stderr, "set dialect:", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := goose.RunContext(ctx, command, db, "db/migrations"); err != nil {
		fmt.Fprintln(os.Stderr, "migrate", command, "failed:", err)
		os.Exit(1)
	}
}
