// cmd/tools/cache-sweeper/main.go
//
// Standalone sweep of expired entity cache entries. Meant for cron:
//
//	cache-sweeper -max-age 24h
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"stayprice/internal/cache"
	"stayprice/internal/common/config"
	"stayprice/internal/common/database"
	"stayprice/internal/common/logger"
)

func main() {
	maxAge := flag.Duration("max-age", 0, "remove entries older than this (default: configured entity TTL)")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall sweep deadline")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, "console")
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	if *maxAge <= 0 {
		*maxAge = time.Duration(cfg.Cache.EntityTTLHours) * time.Hour
	}

	redis, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		zapLog.Fatal("redis connection failed", zap.Error(err))
	}
	defer redis.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	entityCache := cache.NewEntityCache(redis.Client, *maxAge, log)
	removed, err := entityCache.ClearExpired(ctx, *maxAge)
	if err != nil {
		zapLog.Fatal("sweep failed", zap.Error(err), zap.Int("removed", removed))
	}

	zapLog.Info("sweep complete",
		zap.Int("removed", removed),
		zap.Duration("maxAge", *maxAge),
	)
}
