package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/dedup"
	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/events"
	httpapi "github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/http"
	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/ledger"
	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/logging"
	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/product"
	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/reservation"
	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/sequence"
	"github.com/andreasstove999/ecommerce-system/services/variant-inventory-go/internal/variant"
)

func main() {
	bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("load config")
	}
	logger, err := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("build logger")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- DB ---
	pool, err := db.NewPool(ctx, cfg.DatabaseDSN, db.PoolOptions{MaxConns: cfg.DatabaseMaxConns})
	if err != nil {
		logger.Fatal().Err(err).Msg("db connect")
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
			logger.Fatal().Err(err).Msg("db migrate")
		}
	}

	// --- catalog cache ---
	var typeCache catalog.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, catalog reads go to postgres until it recovers")
		}
		typeCache = catalog.NewRedisCache(rdb, cfg.CatalogCacheTTL)
	}

	types := catalog.NewService(catalog.NewPostgresRepository(pool), typeCache, logger)
	products := product.NewRepository(pool)
	resolver := variant.NewResolver(variant.NewPostgresStore(pool), types, products, logger)
	supply := ledger.New(pool, logger)

	// --- AMQP ---
	var (
		notifier reservation.Notifier
		conn     *amqp.Connection
	)
	if cfg.AMQPEnabled {
		conn, err = amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect to RabbitMQ")
		}
		defer conn.Close()

		pub, err := events.NewPublisher(conn, sequence.NewRepository(pool), events.PublisherOptions{
			PublishEnveloped: cfg.PublishEnveloped,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("start publisher")
		}
		defer pub.Close()
		notifier = pub
	}

	coordinator := reservation.NewCoordinator(pool, supply, notifier, logger)

	if conn != nil {
		handlers := events.NewHandlers(coordinator, dedup.NewRepository(pool), logger)
		ch, err := events.StartConsumers(ctx, conn, handlers.Bindings(), logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("start consumers")
		}
		defer ch.Close()
	}

	// --- HTTP ---
	h := httpapi.NewHandler(httpapi.Deps{
		Types:        types,
		Products:     products,
		Combinations: resolver,
		Stock:        supply,
		Reservations: coordinator,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(h, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("http server failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	cancel()

	logger.Info().Msg("shutdown complete")
}
