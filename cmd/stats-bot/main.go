package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/coursova/lichess-stats-bot/internal/chart"
	"github.com/coursova/lichess-stats-bot/internal/chartcache"
	appcfg "github.com/coursova/lichess-stats-bot/internal/config"
	"github.com/coursova/lichess-stats-bot/internal/directory"
	"github.com/coursova/lichess-stats-bot/internal/httpapi"
	"github.com/coursova/lichess-stats-bot/internal/lichess"
	"github.com/coursova/lichess-stats-bot/internal/obslog"
	"github.com/coursova/lichess-stats-bot/internal/stats"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	upstream := lichess.NewClient(cfg.LichessBaseURL,
		lichess.WithToken(cfg.LichessToken),
		lichess.WithUserAgent(cfg.UserAgent),
		lichess.WithTimeout(time.Duration(cfg.UpstreamTimeoutSec)*time.Second),
		lichess.WithLogger(logger),
	)

	var store stats.DirectoryStore
	if cfg.DatabaseURL != "" {
		pg, err := directory.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("directory open failed", zap.Error(err))
		}
		defer func() { _ = pg.Close() }()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := pg.EnsureSchema(ctx); err != nil {
			cancel()
			logger.Fatal("directory schema failed", zap.Error(err))
		}
		cancel()
		store = pg
	} else {
		logger.Warn("DATABASE_URL unset, using in-memory player directory")
		store = directory.NewMemory()
	}

	var cache stats.ChartCache
	if cfg.RedisURL != "" {
		rc, err := chartcache.NewFromURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("chart cache init failed", zap.Error(err))
		}
		rc.WithTTL(time.Duration(cfg.ChartCacheTTLSec) * time.Second)
		defer func() { _ = rc.Close() }()
		cache = rc
	} else {
		logger.Info("REDIS_URL unset, chart caching disabled")
	}

	svc := stats.NewService(stats.Deps{
		Upstream: upstream,
		Store:    store,
		Renderer: chart.NewRenderer(),
		Cache:    cache,
		Log:      logger,
	}, stats.Options{
		DefaultWindowDays:  cfg.DefaultWindowDays,
		MaxWindowDays:      cfg.MaxWindowDays,
		OpeningsFetchLimit: cfg.OpeningsFetchLimit,
		PGNExportLimit:     cfg.PGNExportLimit,
		GameURLBase:        cfg.LichessBaseURL,
		SeedPlayers:        cfg.TopBlitzSeeds,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewServer(svc, logger).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http listener starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http listener failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
}
