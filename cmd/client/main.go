package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/DoyleJ11/matchsync/internal/config"
	"github.com/DoyleJ11/matchsync/internal/conn"
	"github.com/DoyleJ11/matchsync/internal/directory"
	"github.com/DoyleJ11/matchsync/internal/dispatch"
	"github.com/DoyleJ11/matchsync/internal/logging"
	"github.com/DoyleJ11/matchsync/internal/reconcile"
	"github.com/DoyleJ11/matchsync/internal/session"
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

	s := session.New(ctx, session.Options{
		Dial:           conn.WebSocket(cfg.AuthorityURL),
		ConnectTimeout: cfg.ConnectTimeout,
		RequestTimeout: cfg.RequestTimeout,
		InspectAddr:    cfg.InspectAddr,
		Log:            logger,
		OnUpdate: func(u reconcile.Update) {
			if u.View == nil {
				return
			}
			logger.Info("view updated",
				zap.Int("version", u.Version),
				zap.String("cause", u.Cause),
				zap.String("status", string(u.View.Status)),
				zap.String("turn", string(u.View.SubGames.A.Turn)),
			)
		},
		OnActionError: func(ae dispatch.ActionError) {
			logger.Warn("action failed", zap.Error(ae))
		},
	})
	defer s.Close()

	pref := directory.Preference{Team: cfg.PreferredTeam, Slot: cfg.PreferredSlot}
	var joined directory.Joined
	if cfg.MatchID != "" {
		joined, err = s.Join(ctx, cfg.MatchID, cfg.PlayerName, pref)
	} else {
		joined, err = s.Create(ctx, cfg.PlayerName, pref)
	}
	if err != nil {
		logger.Fatal("could not enter match", zap.Error(err))
	}
	logger.Info("seated",
		zap.String("match_id", joined.MatchID),
		zap.Stringer("role", joined.AssignedRole),
	)

	winner, err := s.Run(ctx)
	switch {
	case err != nil:
		logger.Error("session ended", zap.Error(err))
	case winner != "":
		logger.Info("match decided", zap.String("winner", string(winner)))
	default:
		logger.Info("interrupted")
	}
}
