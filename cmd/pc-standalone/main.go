package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/tuanvumaihuynh/product-catalog/internal/config"
	"github.com/tuanvumaihuynh/product-catalog/internal/event"
	"github.com/tuanvumaihuynh/product-catalog/internal/http"
	"github.com/tuanvumaihuynh/product-catalog/internal/log"
	"github.com/tuanvumaihuynh/product-catalog/internal/repository"
	"github.com/tuanvumaihuynh/product-catalog/internal/service"
	"github.com/tuanvumaihuynh/product-catalog/internal/storage/db"
	"github.com/tuanvumaihuynh/product-catalog/internal/storage/mq"
	"github.com/tuanvumaihuynh/product-catalog/internal/telemetry"
	"github.com/tuanvumaihuynh/product-catalog/pkg/cmdutil"
	"github.com/tuanvumaihuynh/product-catalog/pkg/validator"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("error running standalone application: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	time.Local = time.UTC

	type Config struct {
		Log      config.Log
		Postgres config.Postgres
		HTTP     config.HTTP
		RabbitMQ config.RabbitMQ
		Consumer config.Consumer
		Otel     config.Otel
	}
	cfg, err := config.New[Config]()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	logger := log.NewSlogLogger(cfg.Log)

	cleanupTracer, err := telemetry.InitTracer(ctx, cfg.Otel)
	if err != nil {
		return fmt.Errorf("error initializing tracer: %w", err)
	}
	defer func() {
		if err := cleanupTracer(ctx); err != nil {
			logger.ErrorContext(ctx, "error cleaning up tracer", slog.Any("error", err))
		}
	}()

	pgxPool, err := db.NewPgxPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("error creating pgx pool: %w", err)
	}
	defer pgxPool.Close()

	dbClient := db.NewClient(pgxPool)

	// The broker connection is opened lazily by the first publish or subscription.
	connManager := mq.NewConnectionManager(cfg.RabbitMQ, logger)
	defer func() {
		if err := connManager.Close(); err != nil {
			logger.ErrorContext(ctx, "error closing rabbitmq connection", slog.Any("error", err))
		}
	}()

	publisher := mq.NewRabbitMQPublisher(cfg.RabbitMQ, logger, connManager)

	productRepository := repository.NewProductRepository(dbClient)
	productService := service.NewProductService(
		dbClient,
		validator.MustNewDefaultValidator(),
		productRepository,
		publisher,
		cfg.RabbitMQ.ProductNameUpdateRoutingKey,
	)

	interruptChan := cmdutil.InterruptChan()
	httpStopped := make(chan struct{})
	var wg sync.WaitGroup

	wg.Go(func() {
		defer close(httpStopped)

		svc := http.New(cfg.HTTP, logger, productService, dbClient)
		cleanup, err := svc.Run(ctx)
		if err != nil {
			panic(fmt.Errorf("error running http service: %w", err))
		}

		logger.InfoContext(ctx, "http service started", slog.String("address", fmt.Sprintf(":%d", cfg.HTTP.Port)))

		<-interruptChan

		logger.InfoContext(ctx, "http service is shutting down")
		if err := cleanup(ctx); err != nil {
			logger.ErrorContext(ctx, "error shutting down http service", slog.Any("error", err))
		}

		logger.InfoContext(ctx, "http service is stopped")
	})

	if cfg.Consumer.Enabled {
		wg.Go(func() {
			consumer := mq.NewRabbitMQConsumer(cfg.RabbitMQ, cfg.Consumer, connManager, logger)
			svc := event.New(logger, consumer, cfg.RabbitMQ.ProductNameUpdateRoutingKey)
			cleanup, err := svc.Run(ctx)
			if err != nil {
				panic(fmt.Errorf("error running event service: %w", err))
			}
			logger.InfoContext(ctx, "event service started")

			<-interruptChan
			<-httpStopped

			logger.InfoContext(ctx, "event service is shutting down")
			cleanup()

			logger.InfoContext(ctx, "event service is stopped")
		})
	}

	wg.Wait()

	return nil
}
