// Command provision creates the DynamoDB tables, indexes, TTL settings and
// streams the forum needs. It is safe to run repeatedly.
//
// Usage:
//
//	provision [-config cookhouse.yaml] [-delete]
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/jacentio/cookhouse/app"
	"github.com/jacentio/cookhouse/forum"
	"github.com/jacentio/cookhouse/identity"
	"github.com/jacentio/cookhouse/internal/config"
	"github.com/jacentio/cookhouse/internal/obs"
	"github.com/jacentio/cookhouse/store"
)

func main() {
	configFile := flag.String("config", "", "config file (optional)")
	drop := flag.Bool("delete", false, "delete the tables instead of creating them")
	wait := flag.Duration("wait", 2*time.Minute, "how long to wait for each table to become active")
	flag.Parse()

	// A missing .env is fine in deployed environments
	_ = godotenv.Load()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(os.Stdout, cfg.Level())

	ctx := context.Background()
	awsCfg, err := app.LoadAWS(ctx, cfg)
	if err != nil {
		logger.Error("load aws config", "error", err)
		os.Exit(1)
	}
	client := app.NewDynamoDB(awsCfg, cfg)

	storeCfg := store.Config{TablePrefix: cfg.Store.TablePrefix, NumShards: cfg.Store.NumShards}
	specs := append(forum.Tables(), identity.Tables()...)

	if *drop {
		if err := store.DeleteTables(ctx, client, storeCfg, specs); err != nil {
			logger.Error("delete tables", "error", err)
			os.Exit(1)
		}
		logger.Info("tables deleted", "count", len(specs))
		return
	}

	if err := store.CreateTables(ctx, client, storeCfg, specs, *wait); err != nil {
		logger.Error("create tables", "error", err)
		os.Exit(1)
	}
	for _, spec := range specs {
		logger.Info("table ready", "collection", spec.Collection, "table", storeCfg.TableName(spec.Collection))
	}
}
