package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"artforge.app/orchestrator/common/id"
	"artforge.app/orchestrator/common/logger"
	"artforge.app/orchestrator/common/otel"
	"artforge.app/orchestrator/core/config"
	"artforge.app/orchestrator/core/db"
	"artforge.app/orchestrator/internal/breaker"
	"artforge.app/orchestrator/internal/http/handler"
	"artforge.app/orchestrator/internal/http/middleware"
	httprouter "artforge.app/orchestrator/internal/http/router"
	"artforge.app/orchestrator/internal/mapper"
	"artforge.app/orchestrator/internal/model"
	"artforge.app/orchestrator/internal/provider"
	"artforge.app/orchestrator/internal/queue"
	"artforge.app/orchestrator/internal/reliable"
	"artforge.app/orchestrator/internal/retry"
	"artforge.app/orchestrator/internal/service"
	"artforge.app/orchestrator/internal/store"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet — OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "orchestrator starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

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
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.RedisStream)

	producer := queue.NewRedisProducer(redisClient, cfg.Pipeline.RedisStream, nil)
	defer producer.Close()

	stores := store.NewStores(database.Pool())

	breakers := breaker.NewRegistry(
		breaker.WithFailureThreshold(cfg.Breaker.FailureThreshold),
		breaker.WithSuccessThreshold(cfg.Breaker.SuccessThreshold),
		breaker.WithRecoveryTimeout(cfg.Breaker.RecoveryTimeout),
	)
	go breakers.Monitor(ctx, cfg.Breaker.MonitoringPeriod)

	retryPolicy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Delay:       cfg.Retry.Delay,
		Multiplier:  cfg.Retry.Multiplier,
	}

	// One reliable client per provider; every chain entry shares the same
	// instance, so breaker state is per provider, not per chain.
	clients := make(map[string]*reliable.ProviderClient, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		clients[name] = reliable.NewProvider(provider.NewHTTP(pc), breakers, retryPolicy)
	}

	chains := make(map[model.GenerationKind][]service.ProviderCaller, len(cfg.Chains))
	checkers := make([]handler.HealthChecker, 0, len(clients))
	for kind, names := range cfg.Chains {
		chain := make([]service.ProviderCaller, 0, len(names))
		for _, name := range names {
			chain = append(chain, clients[name])
		}
		chains[model.GenerationKind(kind)] = chain
	}
	for _, client := range clients {
		checkers = append(checkers, client)
	}

	costs := make(map[model.GenerationKind]int64, len(cfg.Costs))
	for kind, cost := range cfg.Costs {
		costs[model.GenerationKind(kind)] = cost
	}

	services := service.NewServices(
		stores,
		service.NewTxRunner(database),
		producer,
		chains,
		costs,
		cfg.Webhook.BaseURL+"/api/v1/webhooks/providers",
		nil,
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, httprouter.Deps{
		Services: services,
		Breakers: breakers,
		Mappers:  mapper.Default(),
		DBPing:   database.Ping,
		Health:   checkers,
	})
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, deps httprouter.Deps) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → RequestID
	// tags the delivery → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, deps, httprouter.RouterConfig{
		AdminAPIKey: cfg.AdminAPIKey,
	})

	return router
}

const banner = `
 █████╗ ██████╗ ████████╗███████╗ ██████╗ ██████╗  ██████╗ ███████╗
██╔══██╗██╔══██╗╚══██╔══╝██╔════╝██╔═══██╗██╔══██╗██╔════╝ ██╔════╝
███████║██████╔╝   ██║   █████╗  ██║   ██║██████╔╝██║  ███╗█████╗
██╔══██║██╔══██╗   ██║   ██╔══╝  ██║   ██║██╔══██╗██║   ██║██╔══╝
██║  ██║██║  ██║   ██║   ██║     ╚██████╔╝██║  ██║╚██████╔╝███████╗
╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝   ╚═╝      ╚═════╝ ╚═╝  ╚═╝ ╚═════╝ ╚══════╝
`
