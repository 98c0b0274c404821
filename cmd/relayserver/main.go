// Package main provides the relay server binary: the websocket backend for
// the multiplayer drawing and chat clients.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/drawchat/relay/internal/audit"
	"github.com/drawchat/relay/internal/ban"
	"github.com/drawchat/relay/internal/config"
	"github.com/drawchat/relay/internal/frontend/ws"
	"github.com/drawchat/relay/internal/observability"
	"github.com/drawchat/relay/internal/relay"
	"github.com/drawchat/relay/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/relay.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	auditLog, err := audit.New(cfg.Audit, logger)
	if err != nil {
		logger.Fatal("initializing audit log", zap.Error(err))
	}

	bans, err := ban.Open(cfg.Ban.Path, cfg.Ban.Duration)
	if err != nil {
		logger.Fatal("opening ban store", zap.Error(err))
	}

	rawSecret, err := os.ReadFile(cfg.Admin.SecretPath)
	if err != nil {
		logger.Fatal("reading admin secret", zap.String("path", cfg.Admin.SecretPath), zap.Error(err))
	}
	secret := strings.TrimSpace(string(rawSecret))

	hub := relay.NewHub(logger)
	mod := relay.NewModeration(secret, hub, bans, auditLog, logger)
	dispatcher := relay.NewDispatcher(hub, bans, auditLog, mod, logger)
	acceptor := ws.NewAcceptor(cfg.Relay, dispatcher, logger)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("audit", auditLog)
	lifecycle.Add("websocket", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn:  acceptor.Stop,
	})

	auditLog.Message(fmt.Sprintf("running server on %s", cfg.Relay.Addr()))
	logger.Info("relay server initialized",
		zap.String("addr", cfg.Relay.Addr()),
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
