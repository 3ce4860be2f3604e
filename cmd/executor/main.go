// Command executor is a standalone stand-in for the add-in browser tab: it
// dials the relay's /ws endpoint, serves bridged operations against an
// in-memory deck, and pushes presentation-changed events after mutations.
// Useful for development and end-to-end testing without Office.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/loonghao/ppt-kit/internal/client"
	"github.com/loonghao/ppt-kit/internal/config"
	"github.com/loonghao/ppt-kit/internal/events"
	"github.com/loonghao/ppt-kit/internal/ops"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	setupLogging(cfg.LogLevel)

	deck := ops.NewLocalOperations("PPT Kit Presentation")
	base := client.OperationsHandler(deck)
	emitter := events.NewEmitter()

	var mgr *client.Manager
	handler := func(ctx context.Context, method string, params json.RawMessage) (any, error) {
		result, err := base(ctx, method, params)
		if err == nil && mutates(method) {
			if sendErr := mgr.SendEvent("presentation_changed", map[string]any{"method": method}); sendErr != nil {
				log.Debugf("Could not send presentation_changed event: %v", sendErr)
			}
		}
		return result, err
	}

	mgr = client.NewManager(client.Config{
		URL:         cfg.BridgeURL,
		BaseDelay:   cfg.ReconnectBaseDelay,
		MaxAttempts: cfg.MaxReconnectAttempts,
	}, handler, emitter)

	unsubscribe := emitter.Subscribe(func(ev events.Event) {
		log.WithField("event", ev.Name).Debug("Lifecycle event")
	})
	defer unsubscribe()

	log.Infof("Executor connecting to %s", cfg.BridgeURL)
	mgr.Connect()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Executor shutting down...")
	mgr.Disconnect()
}

// mutates reports whether a method changes the deck and therefore warrants a
// change notification.
func mutates(method string) bool {
	switch method {
	case "getPresentationInfo", "listSlides":
		return false
	}
	return true
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
