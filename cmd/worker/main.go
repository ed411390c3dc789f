package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/redis/go-redis/v9"

	"github.com/icagency/secretary/common/gcp"
	"github.com/icagency/secretary/common/id"
	"github.com/icagency/secretary/common/logger"
	"github.com/icagency/secretary/common/otel"
	"github.com/icagency/secretary/core/config"
	"github.com/icagency/secretary/internal/ingest"
	"github.com/icagency/secretary/internal/media"
	"github.com/icagency/secretary/internal/queue"
	"github.com/icagency/secretary/internal/store"
	"github.com/icagency/secretary/internal/unipile"
	"github.com/icagency/secretary/internal/worker"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "secretary worker starting", "env", cfg.Env)
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:       cfg.Pipeline.RedisStream,
		Group:        cfg.Pipeline.RedisGroup,
		Consumer:     cfg.Pipeline.RedisConsumer,
		DLQStream:    cfg.Pipeline.RedisDLQ,
		BatchSize:    10,
		Block:        5 * time.Second,
		MaxAttempts:  3,
		RequeueDelay: time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "redis connected",
		"stream", cfg.Pipeline.RedisStream,
		"group", cfg.Pipeline.RedisGroup)

	fsClient, err := firestore.NewClient(ctx, cfg.Google.ProjectID, gcp.ClientOptions(cfg.Google.Credentials)...)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create firestore client", "error", err)
		os.Exit(1)
	}
	defer fsClient.Close()
	slog.InfoContext(ctx, "firestore connected", "project", cfg.Google.ProjectID)

	var rehoster ingest.Rehoster
	if cfg.Storage.Enabled() {
		gcsStore, err := media.NewGCSStore(ctx, cfg.Storage.Bucket, cfg.Google.Credentials)
		if err != nil {
			slog.ErrorContext(ctx, "failed to create storage client", "error", err)
			os.Exit(1)
		}
		defer gcsStore.Close()
		rehoster = media.NewRehoster(gcsStore, unipile.New(unipile.Config{
			DSN:    cfg.Unipile.DSN,
			APIKey: cfg.Unipile.APIKey,
		}))
		slog.InfoContext(ctx, "attachment rehosting enabled", "bucket", cfg.Storage.Bucket)
	} else {
		slog.InfoContext(ctx, "attachment rehosting disabled (no bucket configured)")
	}

	service := ingest.NewService(store.NewFirestoreStore(fsClient), rehoster, ingest.Config{
		AccountID: cfg.Unipile.AccountID,
	})

	w := worker.New(consumer, service)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Run(runCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.InfoContext(ctx, "shutting down...")
		w.Stop()
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			slog.ErrorContext(ctx, "worker exited with error", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
	defer shutdownCancel()

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}
