package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/noah-isme/sma-substitution-api/pkg/config"
	"github.com/noah-isme/sma-substitution-api/pkg/database"
	"github.com/noah-isme/sma-substitution-api/pkg/logger"
)

func main() {
	var timeout time.Duration
	flag.DurationVar(&timeout, "timeout", time.Minute, "Maximum time to spend on the migration")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] up|down|version\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck
	sugar := logr.Sugar()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		sugar.Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	table := cfg.Database.MigrationTable
	switch command {
	case "up":
		err = database.Migrate(ctx, db, table)
	case "down":
		err = database.Rollback(ctx, db, table)
	case "version":
		var version int64
		version, err = database.Version(ctx, db, table)
		if err == nil {
			sugar.Infow("schema version", "version", version)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		sugar.Fatalw("migration failed", "command", command, "error", err)
	}
	sugar.Infow("migration finished", "command", command)
}
