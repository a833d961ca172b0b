package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/exchange/ordercalc/internal/api"
	"github.com/exchange/ordercalc/internal/config"
	"github.com/exchange/ordercalc/internal/marketdata"
	"github.com/exchange/ordercalc/internal/metrics"
	"github.com/exchange/ordercalc/internal/repository"
	"github.com/exchange/ordercalc/internal/session"
	"github.com/exchange/ordercalc/internal/ws"
	commondecimal "github.com/exchange/ordercalc/pkg/decimal"
	"github.com/exchange/ordercalc/pkg/logger"
	commonredis "github.com/exchange/ordercalc/pkg/redis"
	"github.com/exchange/ordercalc/pkg/tracing"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	l := logger.New(cfg.ServiceName, os.Stdout).WithLevel(cfg.LogLevel)
	commondecimal.SetLogger(l)
	l.Info(fmt.Sprintf("Starting %s...", cfg.ServiceName))

	shutdownTracing, err := tracing.Init(tracing.Config{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		Enabled:     cfg.Tracing.Enabled,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		l.Error(fmt.Sprintf("Failed to init tracing: %v", err))
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	// 连接数据库
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		l.Error(fmt.Sprintf("Failed to open database: %v", err))
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		l.Error(fmt.Sprintf("Failed to ping database: %v", err))
		os.Exit(1)
	}
	l.Info("Connected to PostgreSQL")

	// 连接 Redis
	redisCfg := commonredis.DefaultConfig
	redisCfg.Addr = cfg.RedisAddr
	redisCfg.Password = cfg.RedisPassword
	redisCfg.DB = cfg.RedisDB
	redisClient, err := commonredis.NewClient(&redisCfg)
	if err != nil {
		l.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
		os.Exit(1)
	}
	defer redisClient.Close()
	l.Info("Connected to Redis")

	m := metrics.New()

	keys := marketdata.Keys{
		Depth:       cfg.DepthKeyPrefix,
		FairPrice:   cfg.FairPriceKeyPrefix,
		MaxLeverage: cfg.MaxLeverageKeyPrefix,
	}
	source := marketdata.NewSource(
		marketdata.NewRedisBook(redisClient, keys),
		marketdata.NewRedisOracle(redisClient, keys, func(pair string) marketdata.Defaults {
			d := cfg.MarketDefaults(pair)
			return marketdata.Defaults{FairPrice: d.FairPrice, MaxLeverage: d.MaxLeverage}
		}),
		repository.NewBalanceRepository(db),
		m,
		cfg.SnapshotTimeout,
	)

	manager := session.NewManager(source, ws.NewPublisher(redisClient, cfg.StateChannel), m, l, session.Config{
		IdleTTL:         cfg.SessionIdleTTL,
		SweepSpec:       cfg.SessionSweepSpec,
		SlippageScaling: cfg.SlippageScaling,
	})
	if err := manager.Start(); err != nil {
		l.Error(fmt.Sprintf("Failed to start session sweeper: %v", err))
		os.Exit(1)
	}

	streamer := ws.NewStreamer(manager, &ws.StreamConfig{AllowedOrigins: cfg.AllowedOrigins}, l)

	gin.SetMode(gin.ReleaseMode)
	srv := api.NewServer(api.Config{
		Sessions: manager,
		Stream:   streamer,
		Metrics:  m.Handler(),
		Logger:   l,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           srv.Handler(),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		l.Info(fmt.Sprintf("HTTP server listening on :%d", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Error(fmt.Sprintf("HTTP server error: %v", err))
			os.Exit(1)
		}
	}()

	// 等待退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	l.Info("Shutting down...")
	manager.Stop()
	streamer.CloseAll()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		l.WithError(err).Warn("HTTP server shutdown")
	}
	l.Info("Shutdown complete")
}
