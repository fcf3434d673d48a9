// Command server runs the document search platform: the upload API, the
// extraction-event consumer, the search index, and the query API in one
// process. With -standalone it swaps Postgres, Kafka, Redis, and the remote
// object store for in-memory implementations, which is enough to exercise
// the whole pipeline on a laptop.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs-vn/document-search-platform/internal/bus"
	"github.com/rs-vn/document-search-platform/internal/coordinator"
	"github.com/rs-vn/document-search-platform/internal/index"
	"github.com/rs-vn/document-search-platform/internal/indexwriter"
	"github.com/rs-vn/document-search-platform/internal/normalizer"
	"github.com/rs-vn/document-search-platform/internal/objectstore"
	"github.com/rs-vn/document-search-platform/internal/query"
	"github.com/rs-vn/document-search-platform/internal/server"
	"github.com/rs-vn/document-search-platform/internal/store"
	"github.com/rs-vn/document-search-platform/pkg/config"
	"github.com/rs-vn/document-search-platform/pkg/health"
	"github.com/rs-vn/document-search-platform/pkg/kafka"
	"github.com/rs-vn/document-search-platform/pkg/logger"
	"github.com/rs-vn/document-search-platform/pkg/metrics"
	"github.com/rs-vn/document-search-platform/pkg/postgres"
	"github.com/rs-vn/document-search-platform/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	standalone := flag.Bool("standalone", false, "run with in-memory store, bus, and cache")
	flag.Parse()

	if err := run(*configPath, *standalone); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string, standalone bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	log := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	idx := index.New()
	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents", idx.Count()),
		}
	})

	var (
		st        store.Store
		objects   objectstore.Store
		publisher bus.Publisher
		cache     query.Cache
		membus    *bus.MemBus
		consumer  *kafka.Consumer
	)

	if standalone {
		log.Info("running standalone with in-memory backends")
		st = store.NewMemory()
		objects = objectstore.NewMemory()
		membus = bus.NewMemBus(cfg.Kafka.MaxRetries, cfg.Kafka.RetryBackoff)
		defer membus.Close()
		publisher = membus.Topic(cfg.Kafka.Topics.FileUploaded)
	} else {
		pg, err := postgres.New(cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer pg.Close()
		st = store.NewPostgres(pg)
		checker.Register("postgres", health.PingCheck(pg.Ping))

		redisClient, err := redis.NewClient(cfg.Redis)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer redisClient.Close()
		cache = query.NewRedisCache(redisClient)
		checker.Register("redis", health.PingCheck(redisClient.Ping))

		objects = objectstore.NewHTTP(cfg.Storage)

		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.FileUploaded)
		defer producer.Close()
		publisher = producer
	}

	engine := query.New(idx, cache, cfg.Redis.CacheTTL, cfg.Search, m, log)
	writer := indexwriter.New(idx, st, cfg.Index, m, log, engine)
	norm := normalizer.New(st, writer, m, log)
	coord := coordinator.New(st, objects, publisher, writer, m, log)

	// Rebuild the index from the record store before taking traffic, then
	// keep repairing drift in the background.
	if err := writer.Reconcile(ctx); err != nil {
		log.Error("startup reconcile failed, index starts empty", "error", err)
	}
	go writer.Run(ctx)

	if standalone {
		membus.Subscribe(cfg.Kafka.Topics.TextExtracted, cfg.Kafka.ConsumerGroup, norm.HandleExtracted)
	} else {
		consumer = kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.TextExtracted, norm.HandleExtracted)
		consumer.OnRetry = m.NormalizeRetries.Inc
		consumer.OnDeadLetter = func(topic string) {
			m.DeadLettersTotal.WithLabelValues(topic).Inc()
		}
		go func() {
			if err := consumer.Start(ctx); err != nil {
				log.Error("consumer stopped", "error", err)
				stop()
			}
		}()
	}

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	srv := server.New(coord, engine, checker, cfg.Server, cfg.Search, m, log)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info("shutdown complete")
	return nil
}
