package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"visitagent/internal/auth"
	"visitagent/internal/backend"
	"visitagent/internal/cache"
	"visitagent/internal/config"
	"visitagent/internal/device"
	"visitagent/internal/logger"
	"visitagent/internal/routes"
	"visitagent/internal/services"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logr := logger.New(cfg)
	defer logr.Sync()

	session, err := auth.NewSession(cfg.BearerToken)
	if err != nil {
		logr.Fatal("no usable backend session", zap.Error(err))
	}

	db, err := cache.New(cfg.CachePath, cfg)
	if err != nil {
		logr.Fatal("failed to open local cache", zap.Error(err))
	}
	defer db.Close()

	crm := backend.NewClient(cfg.BackendBaseURL, session, cfg.RequestTimeout, logr.Named("backend").Logger)
	bridge := device.NewBridge(cfg.BridgeBaseURL, cfg.FixTimeout)

	location := services.NewLocationService(bridge, cfg.FixTimeout, logr.Named("location").Logger)
	resolver := services.NewTargetResolver(crm, cache.NewStore(db), cfg.SearchPerPage, cfg.SearchDebounce, logr.Named("targets").Logger)
	capture := services.NewCapturePipeline(bridge, cfg.CaptureDir, cfg.CaptureMaxW, cfg.CaptureQuality, cfg.SettleDelay, logr.Named("capture").Logger)
	workflow := services.NewVisitWorkflow(crm, location, resolver, capture, logr.Named("visit").Logger)

	r := routes.NewRouter(routes.Deps{
		Resolver: resolver,
		Workflow: workflow,
		Capture:  capture,
		Location: location,
	}, cfg, logr)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // capture + submit can take a while
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logr.Info("agent started", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down agent...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logr.Fatal("server forced to shutdown", zap.Error(err))
	}

	// Teardown discipline: stop the debounce timer and drop any capture
	// intermediates before exiting.
	resolver.Close()
	workflow.Reset()

	_ = db.Close()
	logr.Info("agent exited gracefully")
}
