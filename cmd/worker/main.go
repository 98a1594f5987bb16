/**
 * labelcompose Worker - Main Entry Point
 *
 * Consumes shipping document jobs from the Redis-backed asynq queue and
 * writes one composed label PDF per job.
 *
 * Architecture:
 * - asynq consumer with per-job timeout and retry policy
 * - processing pipeline: text layer, Tesseract OCR fallback, classification,
 *   shipment assembly and PDF composition
 * - product catalog snapshot per job (file, Redis hash or demo seed)
 * - PostgreSQL persistence of runs and shipments, Redis status tracking
 */

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/labelcompose-worker/internal/catalog"
	"github.com/adverant/nexus/labelcompose-worker/internal/config"
	"github.com/adverant/nexus/labelcompose-worker/internal/logging"
	"github.com/adverant/nexus/labelcompose-worker/internal/ocr"
	"github.com/adverant/nexus/labelcompose-worker/internal/processor"
	"github.com/adverant/nexus/labelcompose-worker/internal/queue"
	"github.com/adverant/nexus/labelcompose-worker/internal/storage"
)

func main() {
	if err := godotenv.Load(".env.labelcompose"); err != nil {
		log.Printf("Warning: .env.labelcompose not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ValidateWorker(); err != nil {
		log.Fatalf("Invalid worker configuration: %v", err)
	}

	logger := logging.NewLoggerTo(os.Stdout, "worker", logging.ParseLevel(cfg.LogLevel))
	if err := run(cfg, logger); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	logger.Info("labelcompose worker starting",
		"queue", cfg.QueueName,
		"concurrency", cfg.WorkerConcurrency,
		"catalog", cfg.CatalogSource)

	// PostgreSQL persistence
	postgres, err := storage.NewPostgresClient(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer postgres.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = postgres.EnsureSchema(ctx)
	cancel()
	if err != nil {
		return err
	}

	storageManager, err := storage.NewStorageManager(postgres)
	if err != nil {
		return err
	}

	// Redis for status tracking and the catalog store
	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisClient := redis.NewClient(redisOpt)
	defer redisClient.Close()

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	err = redisClient.Ping(ctx).Err()
	cancel()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	source, err := catalog.NewSource(cfg.CatalogSource, cfg.CatalogFile, catalog.NewRedisStore(redisClient, cfg.CatalogRedisKey))
	if err != nil {
		return err
	}

	proc, err := processor.NewDocumentProcessor(&processor.ProcessorConfig{
		MaxFileSize: cfg.MaxFileSize,
		RenderDPI:   float64(cfg.RenderDPI),
		OCR:         ocr.NewTesseract(&ocr.TesseractConfig{Languages: ocr.ParseLanguages(cfg.OCRLanguages)}),
		Logger:      logger.With("component", "processor"),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize document processor: %w", err)
	}

	handler, err := queue.NewHandler(&queue.HandlerConfig{
		Processor:         proc,
		Catalog:           source,
		Tracker:           queue.NewRedisStatusTracker(redisClient, cfg.QueueName),
		Recorder:          storageManager,
		ProcessingTimeout: cfg.ProcessingTimeout,
		Logger:            logger.With("component", "handler"),
	})
	if err != nil {
		return err
	}

	consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:    cfg.RedisURL,
		QueueName:   cfg.QueueName,
		Concurrency: cfg.WorkerConcurrency,
		Handler:     handler,
		Logger:      logger.With("component", "consumer"),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize queue consumer: %w", err)
	}

	if err := consumer.Start(context.Background()); err != nil {
		return err
	}
	logger.Info("Worker ready, waiting for jobs", "stats", consumer.GetStatistics())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Received signal, initiating graceful shutdown", "signal", sig.String())

	if err := consumer.Stop(context.Background()); err != nil {
		logger.Warn("Error stopping queue consumer", "error", err)
	}

	logger.Info("Shutdown complete")
	return nil
}
