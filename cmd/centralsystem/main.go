// Command centralsystem is the OCPP 1.6-J Central System entrypoint: it
// wires configuration, logging, the Postgres Repository, the Redis
// authorization cache, the Kafka event publisher, the Action Handlers, and
// the WebSocket Listener together, then serves until SIGINT/SIGTERM.
// Grounded on the teacher gateway's cmd/gateway/main.go wiring order
// (config -> logger -> storage -> message bus -> protocol handler ->
// transport -> serve -> graceful shutdown), adapted to this system's
// component set and to the exit codes named in section 6.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ocpp-central/central-system/internal/config"
	"github.com/ocpp-central/central-system/internal/events"
	"github.com/ocpp-central/central-system/internal/logger"
	"github.com/ocpp-central/central-system/internal/ocpp/handlers"
	"github.com/ocpp-central/central-system/internal/ocpp/listener"
	"github.com/ocpp-central/central-system/internal/ocpp/operator"
	"github.com/ocpp-central/central-system/internal/ocpp/session"
	"github.com/ocpp-central/central-system/internal/ocpp/stationregistry"
	"github.com/ocpp-central/central-system/internal/store"
	"github.com/ocpp-central/central-system/internal/store/authcache"
	"github.com/ocpp-central/central-system/internal/store/postgres"
)

const (
	exitOK            = 0
	exitConfig        = 1
	exitDBUnreachable = 2
	exitSIGINT        = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		println("configuration error:", err.Error())
		return exitConfig
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Async: true, Caller: false})
	if err != nil {
		println("logger error:", err.Error())
		return exitConfig
	}
	log.Info().Msg("starting central system")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pg, err := postgres.Open(ctx, cfg.DBURL)
	cancel()
	if err != nil {
		log.Error().Err(err).Msg("database unreachable at startup")
		return exitDBUnreachable
	}
	var repo store.Repository = store.NewBreakerRepository(pg)
	log.Info().Msg("repository ready")

	var authCache *authcache.Cache
	if cfg.RedisURL != "" {
		authCache = authcache.New(cfg.RedisURL, "", cfg.RedisDB, cfg.AuthCacheTTL)
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := authCache.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Msg("authorization cache unreachable, continuing without it")
			authCache = nil
		}
		pingCancel()
	}

	var publisher *events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err = events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Warn().Err(err).Msg("event publisher unavailable, continuing without it")
			publisher = nil
		}
	}

	meterBuffer := handlers.NewMeterBuffer(cfg.MeterBuffer, repo, log)
	bufferCtx, stopBuffer := context.WithCancel(context.Background())
	go meterBuffer.Run(bufferCtx)

	hcfg := handlers.DefaultConfig()
	hcfg.HeartbeatInterval = cfg.HeartbeatIntervalSec
	hcfg.AuthFailPolicy = handlers.AuthFailPolicy(cfg.AuthFailPolicy)
	hcfg.AllowUnknownStations = cfg.AllowUnknownStations
	h := handlers.New(repo, authCache, publisher, meterBuffer, hcfg, log)

	registry := stationregistry.New()

	sessCfg := session.DefaultConfig()
	sessCfg.CallTimeout = time.Duration(cfg.CallTimeoutSec) * time.Second
	sessCfg.DrainDeadline = time.Duration(cfg.DrainDeadlineSec) * time.Second

	lcfg := listener.DefaultConfig()
	lcfg.SessionConfig = sessCfg
	ln := listener.New(h, registry, repo, lcfg, cfg.AllowUnknownStations, log)
	adapter := operator.New(registry)
	_ = adapter // exercised by an operator-facing surface outside this repository's scope (§1)

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	router.Head("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	router.Handle("/*", ln)

	server := &http.Server{Addr: cfg.ListenAddr, Handler: router}
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("listening for station connections")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("listener stopped unexpectedly")
		}
	}()

	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server stopped unexpectedly")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Drain every live Session (§5: existing Sessions enter Draining with a
	// deadline) before closing the listeners; server.Shutdown alone never
	// touches already-hijacked WebSocket connections.
	live := registry.Snapshot()
	var wg sync.WaitGroup
	for _, l := range live {
		sess, ok := l.(*session.Session)
		if !ok {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.Drain()
		}()
	}
	wg.Wait()

	_ = server.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
	stopBuffer()

	if publisher != nil {
		_ = publisher.Close()
	}
	if authCache != nil {
		_ = authCache.Close()
	}
	_ = repo.Close()

	log.Info().Msg("shut down cleanly")
	if sig == syscall.SIGINT {
		return exitSIGINT
	}
	return exitOK
}
