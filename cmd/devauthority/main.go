package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/matchsync/internal/config"
	"github.com/DoyleJ11/matchsync/internal/devauthority"
	"github.com/DoyleJ11/matchsync/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := devauthority.NewHub(ctx, devauthority.Options{
		Economy:  cfg.StartingEconomy,
		IDLength: cfg.MatchIDLength,
		Log:      logger.Named("hub"),
	})
	defer h.Stop()

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: devauthority.SetupRoutes(h, logger.Named("ws"))}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	logger.Info("listening", zap.String("addr", cfg.ListenAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
