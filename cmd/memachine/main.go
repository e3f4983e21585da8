package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aaelfe/me-machine/internal/chat"
	"github.com/aaelfe/me-machine/internal/config"
	"github.com/aaelfe/me-machine/internal/identity"
	"github.com/aaelfe/me-machine/internal/llm"
	"github.com/aaelfe/me-machine/internal/service"
	"github.com/aaelfe/me-machine/internal/store"
	handler "github.com/aaelfe/me-machine/internal/transport/http"
	"github.com/aaelfe/me-machine/internal/ws"
)

func main() {
	// Load .env if present; real environments set variables directly.
	_ = godotenv.Load()

	cfg := config.Load()

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting me-machine api",
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("store_driver", cfg.StoreDriver),
		zap.Bool("binary_frames", cfg.BinaryFrames))

	// Record store
	db, err := store.New(cfg.StoreDriver, store.Options{
		SQLitePath:  cfg.SQLitePath,
		SupabaseURL: cfg.SupabaseURL,
		SupabaseKey: cfg.SupabaseKey,
	})
	if err != nil {
		logger.Fatal("failed to initialize store", zap.Error(err))
	}
	defer db.Close()

	// Identity provider plus the cached token exchanger
	id, err := identity.NewSupabase(cfg.SupabaseURL, cfg.SupabaseKey)
	if err != nil {
		logger.Fatal("failed to initialize identity", zap.Error(err))
	}
	exchanger, cacheClose, err := newExchanger(cfg, id)
	if err != nil {
		logger.Fatal("failed to initialize token cache", zap.Error(err))
	}
	defer cacheClose()

	// Completion service; no API key means the offline mock.
	var completer llm.Completer
	if cfg.OpenAIAPIKey == "" {
		logger.Warn("OPENAI_API_KEY not set, using mock completions")
		completer = llm.NewMock()
	} else {
		completer = llm.NewClient(llm.ClientConfig{
			BaseURL:     cfg.OpenAIBaseURL,
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.TurnTimeout,
		})
	}

	orch := chat.New(db, completer, logger, cfg.TurnTimeout, cfg.CheckInWindow)
	svc := service.New(db, logger)
	registry := ws.NewRegistry()

	// HTTP server
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	h := handler.NewHandler(svc, orch, id, exchanger, registry, logger)
	h.RegisterRoutes(e)

	wsServer := ws.NewServer(cfg, exchanger, orch, registry, logger)
	wsServer.RegisterRoutes(e)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()
	logger.Info("api started", zap.Int("port", cfg.HTTPPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown gracefully", zap.Error(err))
	}
	logger.Info("stopped")
}

// newExchanger wraps the identity provider with the configured token
// cache. The returned func closes the cache (and its redis client).
func newExchanger(cfg *config.Config, id identity.Identity) (identity.Exchanger, func(), error) {
	opts := []identity.CacheOption{identity.WithTTL(cfg.TokenCacheTTL)}

	var rdb *redis.Client
	if cfg.CacheDriver == string(identity.CacheRedis) {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		opts = append(opts, identity.WithRedisClient(rdb))
	}

	cache, err := identity.NewCache(identity.CacheDriver(cfg.CacheDriver), opts...)
	if err != nil {
		if rdb != nil {
			rdb.Close()
		}
		return nil, nil, err
	}
	return identity.NewCached(id, cache), func() { cache.Close() }, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	return cfg.Build()
}
