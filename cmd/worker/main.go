// Package main runs the background jobs out of the API process: email delivery and the subscription expiry sweep.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/yare-hub/classroom/config"
	"github.com/yare-hub/classroom/internal/app"
	"github.com/yare-hub/classroom/pkg/database"
	"github.com/yare-hub/classroom/pkg/logger"
	"github.com/yare-hub/classroom/pkg/redis"
)

func main() {
	sweepOnce := flag.Bool("sweep-once", false, "run one expiry sweep and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output}, "classroom-worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{MaxConns: 4}, log)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
	}

	jobs := app.NewJobs(ctx, cfg, pool, rdb, log)
	if *sweepOnce {
		report, err := jobs.SweepNow(ctx)
		if err != nil {
			log.Fatal("sweep", zap.Error(err))
		}
		log.Info("sweep finished", zap.Int("expired", report.Expired), zap.Int("failed", len(report.Failed)))
		return
	}

	jobs.Start(ctx)
	log.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	jobs.Stop()
	log.Info("worker stopped")
}
