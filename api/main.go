package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sawtmedia/discovery/internal/cache"
	"github.com/sawtmedia/discovery/internal/config"
	"github.com/sawtmedia/discovery/internal/logger"
	"github.com/sawtmedia/discovery/internal/metrics"
	"github.com/sawtmedia/discovery/internal/search"
)

func main() {
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := search.New(cfg.SearchAddr, cfg.SearchIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	var searchCache *cache.SearchCache
	if cfg.RedisAddr != "" {
		searchCache, err = cache.New(cfg.RedisAddr, cfg.CacheTTL, log)
		if err != nil {
			// Degrade to uncached serving; the cache is an optimization.
			log.Warn("search cache disabled", slog.Any("err", err))
			searchCache = nil
		} else {
			defer searchCache.Close()
		}
	}

	srv := &server{
		log:   log,
		cfg:   cfg,
		es:    esClient,
		cache: searchCache,
		mtr:   metrics.NewAPI(prometheus.DefaultRegisterer),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httprate.LimitByIP(cfg.RateLimit, cfg.RateWindow))
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/health", srv.handleHealth)
	r.Get("/search", srv.handleSearch)
	r.Handle("/metrics", metrics.Handler())

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}
