package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	appcfg "github.com/switchess/server/internal/config"
	"github.com/switchess/server/internal/engine"
	"github.com/switchess/server/internal/httpapi"
	"github.com/switchess/server/internal/lobby"
	"github.com/switchess/server/internal/obslog"
	"github.com/switchess/server/internal/sched"
	"github.com/switchess/server/internal/store"
	"github.com/switchess/server/internal/transport"
)

func main() {
	_ = godotenv.Load()

	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cfg, err := appcfg.Load()
	if err != nil {
		logger.Fatal("config error", zap.Error(err))
	}

	broker := engine.New(engine.Config{
		BinaryPath: cfg.StockfishPath,
		Threads:    cfg.EngineThreads,
		HashMB:     cfg.EngineHashMB,
		SkillLevel: cfg.EngineSkillLevel,
		Logger:     logger,
	})
	if err := broker.Start(); err != nil {
		logger.Fatal("engine start error", zap.Error(err))
	}
	defer broker.Close()

	timers, err := sched.New(logger)
	if err != nil {
		logger.Fatal("scheduler init error", zap.Error(err))
	}
	defer func() { _ = timers.Close() }()

	var repo store.Repository
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresRepository(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database init error", zap.Error(err))
		}
		repo = pg
	} else {
		logger.Warn("DATABASE_URL unset, finished games stay in memory")
		repo = store.NewMemoryRepository()
	}
	defer func() { _ = repo.Close() }()

	var live *store.LiveStore
	if cfg.RedisURL != "" {
		live, err = store.NewLiveStore(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis init error", zap.Error(err))
		}
		defer func() { _ = live.Close() }()
	} else {
		logger.Warn("REDIS_URL unset, live snapshots disabled")
	}

	idleUnstarted, idleStarted, grace, countdown, interval := cfg.Durations()
	hub := transport.NewHub()
	lb := lobby.New(logger, lobby.Config{
		IdleUnstarted:  idleUnstarted,
		IdleStarted:    idleStarted,
		AbandonGrace:   grace,
		Countdown:      countdown,
		SwitchInterval: interval,
		SearchDepth:    cfg.SearchDepth,
	}, hub, timers, broker, repo, live)

	gateway := transport.NewGateway(logger, lb)
	defer gateway.Close()

	api := httpapi.NewServer(logger, lb, repo)
	restServer := &fasthttp.Server{
		Handler: api.Handler,
		Name:    "switchess",
	}
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := restServer.ListenAndServe(cfg.HTTPAddr); err != nil {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	wsMux := http.NewServeMux()
	wsMux.Handle("/ws", gateway)
	wsServer := &http.Server{Addr: cfg.WSAddr, Handler: wsMux}
	go func() {
		logger.Info("ws listening", zap.String("addr", cfg.WSAddr))
		if err := wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("ws server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	_ = wsServer.Close()
	_ = restServer.Shutdown()
}
