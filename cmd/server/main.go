package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeusync/bodysync/internal/config"
	"github.com/zeusync/bodysync/internal/core/observability/log"
	"github.com/zeusync/bodysync/internal/injector"
)

func main() {
	path := flag.String("config", "configs/server.yaml", "server config file")
	wsAddr := flag.String("ws", "", "override the WebSocket address")
	quicAddr := flag.String("quic", "", "override the QUIC address")
	flag.Parse()

	cfg, err := config.LoadServerFile(*path)
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}
	if *wsAddr != "" {
		cfg.Server.WebSocketAddr = *wsAddr
	}
	if *quicAddr != "" {
		cfg.Server.QUICAddr = *quicAddr
	}

	srv, cleanup, err := injector.InitializeServer(cfg)
	if err != nil {
		fmt.Println("Error building server:", err)
		os.Exit(1)
	}
	defer cleanup()
	logger := srv.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting server",
		log.String("ws", cfg.Server.WebSocketAddr),
		log.String("quic", cfg.Server.QUICAddr),
		log.Strings("kinds", srv.Simulation().Kinds()),
	)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped", log.Error(err))
		return
	}
	logger.Info("server stopped", log.Uint64("ticks", srv.Stats().Tick))
}
