// Package main runs the proctoring HTTP server: focus event intake, dashboard API,
// observer WebSocket and the archive worker, with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-proctor/backend/config"
	"github.com/aura-proctor/backend/internal/archive"
	"github.com/aura-proctor/backend/internal/auth"
	"github.com/aura-proctor/backend/internal/middleware"
	"github.com/aura-proctor/backend/internal/mirror"
	"github.com/aura-proctor/backend/internal/participants"
	"github.com/aura-proctor/backend/internal/realtime"
	"github.com/aura-proctor/backend/internal/worker"
	"github.com/aura-proctor/backend/pkg/queue"
	"github.com/aura-proctor/backend/pkg/redis"
	"github.com/aura-proctor/backend/pkg/response"
	"github.com/aura-proctor/backend/pkg/storage"
	"github.com/aura-proctor/backend/pkg/stream"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	db, err := openStores(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer db.close()

	// Redis is optional: without it the hub fans out in-process and archives are disabled.
	var rdb *redis.Client
	var hub *realtime.Hub
	if cfg.Redis.Enabled() {
		rdb, err = redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		hub = realtime.NewHub(logger, realtime.NewRedisBus(rdb.Client, ""))
	} else {
		logger.Info("REDIS_ADDR not set, observer fan-out is local to this instance")
		hub = realtime.NewHub(logger, nil)
	}
	hub.SetSnapshotFunc(func(ctx context.Context, sessionID uuid.UUID) (interface{}, error) {
		return db.participants.ListBySession(ctx, sessionID)
	})

	var s3Client *storage.S3
	if cfg.AWS.ArchiveBucket != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ArchiveBucket:        cfg.AWS.ArchiveBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Fatal("s3", zap.Error(err))
		}
	}

	mirrorSvc := mirror.NewService(db.participants, db.history, db.network, hub, logger)
	if cfg.Kafka.Enabled {
		producer, err := stream.NewProducer(stream.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic}, logger)
		if err != nil {
			logger.Fatal("kafka", zap.Error(err))
		}
		defer producer.Close()
		mirrorSvc.SetSink(producer)
	}
	mirrorHandler := mirror.NewHandler(mirrorSvc, logger)

	participantHandler := participants.NewHandler(db.participants, db.history, db.network, logger)

	var jobQueue *queue.Queue
	var processor *worker.ArchiveProcessor
	if rdb != nil {
		jobQueue = queue.NewQueue(rdb.Client, logger)
		if s3Client != nil {
			builder := archive.NewBuilder(db.participants, db.history, db.network)
			processor = worker.NewArchiveProcessor(builder, s3Client, jobQueue, logger)
		}
	}
	archiveHandler := newArchiveHandler(jobQueue, s3Client, logger)

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger, cfg.Server.QuietPaths...))

	// Health
	router.GET("/health", func(c *gin.Context) {
		if err := db.ping(c.Request.Context()); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		if rdb != nil {
			if err := rdb.Check(c.Request.Context()); err != nil {
				response.ServiceUnavailable(c, "redis unavailable")
				return
			}
		}
		response.OK(c, gin.H{"status": "ok"})
	})

	// Agent intake (no JWT; the extension posts on behalf of the participant)
	mirrorHandler.Register(router)

	// Dashboard API (JWT required, host or admin, scoped to the session in the path)
	sessions := router.Group("/sessions/:id")
	sessions.Use(middleware.JWT(jwtService), middleware.RequireRole(auth.RoleHost, auth.RoleAdmin), middleware.RequireSession())
	{
		sessions.POST("/participants", participantHandler.Create)
		sessions.GET("/participants", participantHandler.List)
		sessions.GET("/participants/:pid/violations", participantHandler.Violations)
		sessions.GET("/participants/:pid/history", participantHandler.History)
		sessions.GET("/participants/:pid/network", participantHandler.Network)
		sessions.GET("/participants/:pid/archive", archiveHandler.Download)
		sessions.POST("/archive", archiveHandler.Enqueue)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, wsValidator(jwtService), auth.RoleHost, auth.RoleAdmin))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (session archives to S3)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if processor != nil {
		go processor.Run(workerCtx)
		logger.Info("archive worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("db_driver", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// newArchiveHandler passes nil interfaces, not typed nils, for missing backends so
// the handler answers 503.
func newArchiveHandler(q *queue.Queue, s3Client *storage.S3, logger *zap.Logger) *archive.Handler {
	var enq archive.Enqueuer
	if q != nil {
		enq = q
	}
	var signer archive.Signer
	if s3Client != nil {
		signer = s3Client
	}
	return archive.NewHandler(enq, signer, logger)
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
