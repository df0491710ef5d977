// Package main runs the background job worker (session archives to S3) apart from the API server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-proctor/backend/config"
	"github.com/aura-proctor/backend/internal/archive"
	"github.com/aura-proctor/backend/internal/focusevents"
	"github.com/aura-proctor/backend/internal/localstore"
	"github.com/aura-proctor/backend/internal/networklog"
	"github.com/aura-proctor/backend/internal/participants"
	"github.com/aura-proctor/backend/internal/worker"
	"github.com/aura-proctor/backend/pkg/database"
	"github.com/aura-proctor/backend/pkg/queue"
	"github.com/aura-proctor/backend/pkg/redis"
	"github.com/aura-proctor/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if !cfg.Redis.Enabled() || cfg.AWS.ArchiveBucket == "" {
		logger.Fatal("worker needs REDIS_ADDR and AWS_S3_ARCHIVE_BUCKET")
	}

	ctx := context.Background()
	builder, closeDB := newBuilder(ctx, cfg.Database, logger)
	defer closeDB()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Cfg := storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		ArchiveBucket:        cfg.AWS.ArchiveBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}
	s3Client, err := storage.NewS3(ctx, s3Cfg, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewArchiveProcessor(builder, s3Client, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

// newBuilder opens the configured database read side. A SQLite file is only
// useful here when the worker runs on the same host as the server.
func newBuilder(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*archive.Builder, func()) {
	if cfg.Driver == config.DriverSQLite {
		db, err := localstore.Open(ctx, cfg.DSN())
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		return archive.NewBuilder(db, db, db), func() { _ = db.Close() }
	}
	pool, err := database.NewPostgresPool(ctx, cfg.DSN(), int32(cfg.MaxConns), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	builder := archive.NewBuilder(
		participants.NewRepository(pool),
		focusevents.NewRepository(pool),
		networklog.NewRepository(pool),
	)
	return builder, pool.Close
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
