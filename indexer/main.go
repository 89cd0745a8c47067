package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"

	"github.com/sawtmedia/discovery/internal/config"
	"github.com/sawtmedia/discovery/internal/logger"
	"github.com/sawtmedia/discovery/internal/metrics"
	"github.com/sawtmedia/discovery/internal/models"
	"github.com/sawtmedia/discovery/internal/search"
)

type programStore interface {
	UpsertProgram(ctx context.Context, id int64, payload map[string]any) error
	DeleteProgram(ctx context.Context, id int64) error
}

func main() {
	log := logger.New("indexer")
	cfg, err := config.LoadIndexer()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := search.New(cfg.SearchAddr, cfg.SearchIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// The index schema must be in place before any event is applied.
	// Exhausting the readiness budget or failing creation is fatal.
	if err := esClient.WaitReady(ctx, cfg.ReadyAttempts, cfg.ReadyDelay); err != nil {
		log.Error("elasticsearch readiness", slog.Any("err", err))
		os.Exit(1)
	}
	if err := esClient.EnsureIndex(ctx); err != nil {
		log.Error("ensure index", slog.Any("err", err))
		os.Exit(1)
	}

	mtr := metrics.NewIndexer(prometheus.DefaultRegisterer)
	go serveMetrics(log, cfg.MetricsAddr)

	// Pragmatic wait for the broker to finish leader election before
	// subscribing. Tunable via INDEXER_BROKER_WARMUP.
	if cfg.BrokerWarmup > 0 {
		log.Info("waiting for broker warm-up", slog.Duration("warmup", cfg.BrokerWarmup))
		select {
		case <-time.After(cfg.BrokerWarmup):
		case <-ctx.Done():
			log.Info("shutdown signal received during startup")
			return
		}
	}

	// A fresh consumer group starts from the earliest offset, so the
	// index self-populates from full topic history.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaGroup,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	log.Info("indexer started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaGroup),
		slog.String("index", cfg.SearchIndex),
	)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			// Broker-level failure: back off and keep consuming
			// rather than exiting the process.
			log.Error("read message", slog.Any("err", err))
			mtr.ConsumerRestarts.Inc()
			select {
			case <-time.After(cfg.ErrorBackoff):
			case <-ctx.Done():
				log.Info("context canceled, stopping")
				return
			}
			continue
		}

		if err := processMessage(ctx, log, esClient, mtr, msg); err != nil {
			// Skip the bad message; index operations are idempotent
			// and auto-commit advances past it.
			log.Error("process message failed, skipping",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)
		}
	}
}

func processMessage(ctx context.Context, log *slog.Logger, store programStore, mtr *metrics.Indexer, msg kafka.Message) error {
	var event models.ChangeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		mtr.EventsSkipped.Inc()
		return fmt.Errorf("decode change event: %w", err)
	}

	switch {
	case models.IsUpsert(event.Op):
		if err := store.UpsertProgram(ctx, event.ProgramID, event.Payload); err != nil {
			mtr.EventsTotal.WithLabelValues(event.Op, "error").Inc()
			mtr.IndexFailures.Inc()
			return err
		}
		mtr.EventsTotal.WithLabelValues(event.Op, "ok").Inc()
		log.Info("indexed program",
			slog.Int64("program_id", event.ProgramID),
			slog.String("op", event.Op),
		)

	case event.Op == models.OpDelete:
		err := store.DeleteProgram(ctx, event.ProgramID)
		if errors.Is(err, search.ErrNotFound) {
			// Already absent; deletes are idempotent.
			mtr.EventsTotal.WithLabelValues(event.Op, "not_found").Inc()
			log.Warn("delete of absent program", slog.Int64("program_id", event.ProgramID))
			return nil
		}
		if err != nil {
			mtr.EventsTotal.WithLabelValues(event.Op, "error").Inc()
			mtr.IndexFailures.Inc()
			return err
		}
		mtr.EventsTotal.WithLabelValues(event.Op, "ok").Inc()
		log.Info("deleted program", slog.Int64("program_id", event.ProgramID))

	default:
		mtr.EventsSkipped.Inc()
		log.Warn("unknown operation, dropping",
			slog.String("op", event.Op),
			slog.Int64("program_id", event.ProgramID),
		)
	}

	return nil
}

func serveMetrics(log *slog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics server stopped", slog.Any("err", err))
	}
}
