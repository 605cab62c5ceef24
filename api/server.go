package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"portwarden/config"
	_ "portwarden/docs"
)

const shutdownTimeout = 15 * time.Second

// NewRouter assembles the middleware chain and routes.
func NewRouter(cfg config.Config, server *Server, store CounterStore, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		RequestIDMiddleware(),
		RequestLoggingMiddleware(logger.With(zap.String("component", "http"))),
		SecurityHeadersMiddleware(),
	)

	var protected []gin.HandlerFunc
	if cfg.APIKey != "" {
		protected = append(protected, AuthMiddleware(cfg.APIKey, logger))
	}
	if cfg.RateLimit > 0 {
		protected = append(protected, RateLimitMiddleware(store, int64(cfg.RateLimit), cfg.RateWindow, logger))
	}
	server.RegisterRoutes(router, protected...)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	return router
}

// NewCounterStore picks the rate limit backend: Redis when an address is configured,
// process memory otherwise.
func NewCounterStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (CounterStore, func() error, error) {
	if cfg.RedisAddr == "" {
		logger.Info("rate limiting in process memory")
		return NewMemoryStore(), func() error { return nil }, nil
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	logger.Info("rate limiting through redis", zap.String("addr", cfg.RedisAddr))
	return NewRedisStore(redisClient), redisClient.Close, nil
}

// Run initializes dependencies and serves the API until ctx is done, then shuts down
// gracefully.
func Run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine, err := cfg.Engine(logger)
	if err != nil {
		return fmt.Errorf("failed to build scan engine: %w", err)
	}

	store, closeStore, err := NewCounterStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	server := NewServer(engine, NewScanSlots(cfg.MaxActiveScans), cfg.Strategy, logger)
	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           NewRouter(cfg, server, store, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting portwarden API server",
			zap.String("addr", cfg.Listen),
			zap.String("strategy", cfg.Strategy),
			zap.Int("max_active_scans", cfg.MaxActiveScans),
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
