package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Shanaa-yasmin/Cognivex/internal/capture"
	"github.com/Shanaa-yasmin/Cognivex/internal/config"
	"github.com/Shanaa-yasmin/Cognivex/internal/database"
	"github.com/Shanaa-yasmin/Cognivex/internal/device"
	"github.com/Shanaa-yasmin/Cognivex/internal/logger"
	"github.com/Shanaa-yasmin/Cognivex/internal/monitor"
	"github.com/Shanaa-yasmin/Cognivex/internal/pagectx"
	"github.com/Shanaa-yasmin/Cognivex/internal/server"
	"github.com/Shanaa-yasmin/Cognivex/internal/session"
	"github.com/Shanaa-yasmin/Cognivex/internal/sink"
	"github.com/Shanaa-yasmin/Cognivex/internal/spool"
)

func main() {
	configPath := flag.String("config", "config/local.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting cognivex agent",
		zap.String("env", cfg.Env),
		zap.String("config_path", *configPath),
	)

	db, err := database.New(cfg.StoragePath, log.Logger)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()

	clientID := device.NewClientIDProvider().GetOrGenerateClientID(cfg.Client.ID)
	log.Info("Using client ID", zap.String("client_id", clientID))

	// Collaborator clients
	sinkClient := sink.NewClient(
		cfg.Sink.BaseURL,
		cfg.Sink.APIKey,
		cfg.Sink.Table,
		time.Duration(cfg.Sink.Timeout)*time.Second,
		log.Logger,
	)
	sessionClient := session.NewClient(
		cfg.Session.BaseURL,
		cfg.Session.APIKey,
		time.Duration(cfg.Session.Timeout)*time.Second,
		log.Logger,
	)

	batchSpool := spool.New(db.DB, log.Logger)
	pageStore := pagectx.NewStore(cfg.Server.ContextTTL, log.Logger)

	// Behavioral event pipeline
	behaviorMonitor := monitor.New(sinkClient, sessionClient, batchSpool, pageStore, monitor.Options{
		BatchSize:         cfg.Monitor.BatchSize,
		BatchInterval:     time.Duration(cfg.Monitor.BatchInterval) * time.Second,
		MaxBufferedEvents: cfg.Monitor.MaxBufferedEvents,
		SpoolInterval:     time.Duration(cfg.Monitor.SpoolInterval) * time.Second,
		ClientID:          clientID,
	}, log.Logger)

	capturer := capture.New(
		behaviorMonitor,
		time.Duration(cfg.Monitor.MoveThrottle)*time.Millisecond,
		time.Duration(cfg.Monitor.ScrollThrottle)*time.Millisecond,
		log.Logger,
	)

	captureServer := server.NewCaptureServer(
		behaviorMonitor,
		pageStore,
		cfg.Server.MaxEventsPerPost,
		log.Logger,
		sessionClient,
		sinkClient,
	)
	capturer.Attach(captureServer)

	addr := fmt.Sprintf("localhost:%d", cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      captureServer,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Starting capture server for browser extension",
			zap.String("address", addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Capture server error", zap.Error(err))
		}
	}()

	behaviorMonitor.Start()

	log.Info("Cognivex agent started successfully",
		zap.String("client_id", clientID),
		zap.String("sink_url", cfg.Sink.BaseURL),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Info("Received shutdown signal", zap.String("signal", sig.String()))

	log.Info("Shutting down cognivex agent...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warn("Capture server shutdown error", zap.Error(err))
	} else {
		log.Info("Capture server stopped")
	}

	capturer.Close()

	// Final flush, spool what could not be delivered, stop the drain loop
	done := make(chan struct{})
	go func() {
		behaviorMonitor.Shutdown(ctx)
		close(done)
	}()

	select {
	case <-done:
		log.Info("Behavior monitor stopped")
	case <-time.After(6 * time.Second):
		log.Warn("Shutdown timeout reached, forcing immediate exit")
		os.Exit(1)
	}

	pageStore.Stop()

	if err := batchSpool.CleanupOld(7 * 24 * time.Hour); err != nil {
		log.Error("Failed to cleanup old spooled batches", zap.Error(err))
	}

	log.Info("Cognivex agent stopped")
}
