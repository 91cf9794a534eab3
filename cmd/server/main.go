package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/newsfeed/config"
	"github.com/d60-Lab/newsfeed/internal/api"
	"github.com/d60-Lab/newsfeed/internal/api/handler"
	"github.com/d60-Lab/newsfeed/internal/cache"
	"github.com/d60-Lab/newsfeed/internal/repository"
	"github.com/d60-Lab/newsfeed/internal/service"
	"github.com/d60-Lab/newsfeed/internal/stream"
	"github.com/d60-Lab/newsfeed/pkg/database"
	"github.com/d60-Lab/newsfeed/pkg/logger"
	"github.com/d60-Lab/newsfeed/pkg/tracing"
)

// @title newsfeed API
// @version 1.0
// @description 基于事件日志扇出的新闻信息流服务
// @BasePath /
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger.Init(cfg.Server.Mode)
	defer logger.Sync()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN}); err != nil {
			logger.Warn("sentry init failed", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx := context.Background()
	shutdownTracer, err := tracing.Init(ctx, "newsfeed", cfg.Trace.Endpoint)
	if err != nil {
		logger.Warn("tracing init failed", zap.Error(err))
	} else {
		defer shutdownTracer(ctx)
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Error("database init failed", zap.Error(err))
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("redis unreachable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		os.Exit(1)
	}

	postRepo := repository.NewPostRepository(db)
	followRepo := repository.NewFollowRepository(db)
	userRepo := repository.NewUserRepository(db)
	likeRepo := repository.NewLikeRepository(db)

	feeds := cache.NewRedisFeedStore(rdb)
	eventLog := stream.NewRedisEventLog(rdb)

	producer := service.NewFanoutProducer(eventLog)
	newsfeedSvc := service.NewNewsFeedService(feeds, postRepo, followRepo, userRepo,
		cfg.Feed.CacheTTL, cfg.Feed.DefaultPageSize, cfg.Feed.RequestTimeout)
	postSvc := service.NewPostService(postRepo, likeRepo, producer, newsfeedSvc)
	relSvc := service.NewRelationshipService(followRepo)
	likeSvc := service.NewLikeService(likeRepo, postRepo)
	userSvc := service.NewUserService(userRepo, postSvc, cfg.JWT.Secret, cfg.JWT.Expire)

	worker := service.NewFanoutWorker(eventLog, feeds, postRepo, followRepo,
		cfg.Feed.ConsumerName, cfg.Feed.BatchSize, cfg.Feed.CacheTTL, cfg.Feed.PollInterval)
	if err := worker.Init(ctx); err != nil {
		logger.Error("consumer group init failed", zap.Error(err))
		os.Exit(1)
	}
	stopWorker := worker.Start()

	h := handler.New(newsfeedSvc, postSvc, relSvc, likeSvc, userSvc)
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: api.NewRouter(cfg, h)}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	// 先停扇出消费者再关存储连接
	if err := stopWorker(shutdownCtx); err != nil {
		logger.Warn("worker shutdown", zap.Error(err))
	}
}
