// Command server runs the ppt-kit relay: the MCP surface AI clients talk to,
// and the WebSocket bridge the add-in executor attaches to.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/loonghao/ppt-kit/internal/bridge"
	"github.com/loonghao/ppt-kit/internal/config"
	"github.com/loonghao/ppt-kit/internal/events"
	"github.com/loonghao/ppt-kit/internal/ops"
	"github.com/loonghao/ppt-kit/internal/server"
	"github.com/loonghao/ppt-kit/internal/tools"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	setupLogging(cfg.LogLevel)

	emitter := events.NewEmitter()
	mock := ops.NewMockOperations()

	dispatcher := tools.NewDispatcher(mock, emitter)
	if err := tools.RegisterAll(dispatcher); err != nil {
		log.Fatalf("Failed to register tool catalogue: %v", err)
	}
	mcpSrv := server.NewMCPServer(dispatcher, version)

	if cfg.Transport == config.TransportStdio {
		// Desktop integration: newline-delimited JSON-RPC on stdin/stdout,
		// no executor bridging, mock backend throughout. Logs go to stderr.
		log.Infof("ppt-kit %s serving MCP over stdio", version)
		if err := server.ServeStdio(mcpSrv); err != nil {
			log.Fatalf("stdio server error: %v", err)
		}
		return
	}

	b := bridge.New(dispatcher, mock, emitter, cfg.RequestTimeout)
	router := server.NewRouter(dispatcher, b, mcpSrv, version, cfg.Transport)

	// No global write timeout: SSE streams and the executor WebSocket are
	// long-lived by design.
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Infof("ppt-kit %s listening on %s (transport: %s)", version, cfg.Addr(), cfg.Transport)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", cfg.Addr(), err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	log.Info("Server stopped")
}

func setupLogging(logLevel string) {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
}
