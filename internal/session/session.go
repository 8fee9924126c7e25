// Package session wires one authority connection to the reconciliation
// engine, the directory client, the action dispatcher and the catalog
// cache. A Session is the only owner of those pieces; nothing is global.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/matchsync/internal/catalog"
	"github.com/DoyleJ11/matchsync/internal/conn"
	"github.com/DoyleJ11/matchsync/internal/directory"
	"github.com/DoyleJ11/matchsync/internal/dispatch"
	"github.com/DoyleJ11/matchsync/internal/httpapi"
	"github.com/DoyleJ11/matchsync/internal/match"
	"github.com/DoyleJ11/matchsync/internal/protocol"
	"github.com/DoyleJ11/matchsync/internal/reconcile"
)

var ErrNotJoined = errors.New("joined event never reached the view")

// errFinished stops the run group once the match is decided.
var errFinished = errors.New("match finished")

type Options struct {
	Dial           conn.DialFunc
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	// InspectAddr enables the debug HTTP inspector when non-empty.
	InspectAddr string
	Log         *zap.Logger

	// OnUpdate and OnActionError are called from Run's goroutines.
	OnUpdate      func(reconcile.Update)
	OnActionError func(dispatch.ActionError)
}

type Session struct {
	mgr    *conn.Manager
	engine *reconcile.Engine
	dir    *directory.Client
	disp   *dispatch.Dispatcher
	cat    *catalog.Cache
	opts   Options
	log    *zap.Logger

	terminal chan match.Team
	lost     chan error

	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, opts Options) *Session {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		cat:      catalog.New(),
		opts:     opts,
		log:      opts.Log,
		terminal: make(chan match.Team, 1),
		lost:     make(chan error, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.mgr = conn.NewManager(opts.Dial,
		conn.WithLogger(opts.Log.Named("conn")),
		conn.WithConnectTimeout(opts.ConnectTimeout),
		conn.OnDisconnect(s.dropped),
	)
	s.engine = reconcile.NewEngine(ctx, opts.Log.Named("engine"), reconcile.Hooks{
		OnTerminal: func(winner match.Team) {
			select {
			case s.terminal <- winner:
			default:
			}
		},
		OnCatalogRefresh: func() {
			s.cat.Invalidate()
			go s.refreshCatalogs()
		},
		OnRejected: func(event string, err error) {
			s.log.Warn("authority event rejected", zap.String("event", event), zap.Error(err))
		},
	})
	s.dir = directory.New(s.mgr, opts.RequestTimeout, opts.Log.Named("directory"))
	s.disp = dispatch.New(s.mgr, s.engine, s.cat, opts.Log.Named("dispatch"))
	return s
}

func (s *Session) Engine() *reconcile.Engine        { return s.engine }
func (s *Session) Dispatcher() *dispatch.Dispatcher { return s.disp }
func (s *Session) Directory() *directory.Client     { return s.dir }
func (s *Session) Catalog() *catalog.Cache          { return s.cat }
func (s *Session) Connected() bool                  { return s.mgr.IsConnected() }

func (s *Session) Current(ctx context.Context) (reconcile.State, error) {
	return s.engine.Current(ctx)
}

// Connect opens the authority connection and routes its events. Calling it
// on a live connection does nothing.
func (s *Session) Connect(ctx context.Context) error {
	if s.mgr.IsConnected() {
		return nil
	}
	if err := s.mgr.Connect(ctx); err != nil {
		return err
	}
	s.route()
	return nil
}

// route subscribes the session's handlers. The manager drops them on
// every teardown, so this runs after each successful connect.
func (s *Session) route() {
	for _, event := range protocol.StateEvents {
		s.mgr.Subscribe(event, s.onState)
	}
	s.mgr.Subscribe(protocol.EvtPossibleMoves, s.onState)
	for _, event := range protocol.CatalogEvents {
		s.mgr.Subscribe(event, s.onCatalog)
	}
	for _, event := range protocol.ErrorChannels {
		s.mgr.Subscribe(event, s.onError)
	}
}

func (s *Session) onState(env protocol.Envelope) {
	ev, err := protocol.Decode(env)
	if err != nil {
		s.log.Warn("dropping malformed event", zap.String("event", env.Event), zap.Error(err))
		return
	}
	if err := s.engine.Handle(ev); err != nil {
		s.log.Debug("engine gone", zap.Error(err))
		return
	}
	s.disp.Acknowledge(env.Event, env.RequestID)
}

func (s *Session) onCatalog(env protocol.Envelope) {
	ev, err := protocol.Decode(env)
	if err != nil {
		s.log.Warn("dropping malformed catalog push", zap.String("event", env.Event), zap.Error(err))
		return
	}
	s.cat.Apply(ev)
	s.disp.Acknowledge(env.Event, env.RequestID)
}

func (s *Session) onError(env protocol.Envelope) {
	ev, err := protocol.Decode(env)
	if err != nil {
		s.log.Warn("dropping malformed error event", zap.String("event", env.Event), zap.Error(err))
		return
	}
	if ee, ok := ev.(protocol.ErrorEvent); ok {
		s.disp.HandleError(ee)
	}
}

// dropped runs when the connection goes away without Leave.
func (s *Session) dropped(err error) {
	s.discard()
	select {
	case s.lost <- err:
	default:
	}
}

// discard drops everything tied to the current match, including a terminal
// or loss signal Run has not consumed yet.
func (s *Session) discard() {
	_ = s.engine.Begin()
	// Hooks run on the engine goroutine; once Current answers, nothing from
	// the old view can still reach the channels below.
	_, _ = s.engine.Current(s.ctx)
	s.disp.Reset()
	s.cat.Reset()
	select {
	case <-s.terminal:
	default:
	}
	select {
	case <-s.lost:
	default:
	}
}

func (s *Session) refreshCatalogs() {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	if err := s.disp.RefreshCatalogs(ctx); err != nil {
		s.log.Warn("catalog refresh failed", zap.Error(err))
	}
}

func (s *Session) ListOpenMatches(ctx context.Context) ([]protocol.MatchSummary, error) {
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}
	return s.dir.ListOpenMatches(ctx)
}

// Create opens a new match and joins it. The view is populated when it
// returns.
func (s *Session) Create(ctx context.Context, name string, pref directory.Preference) (directory.Joined, error) {
	return s.enter(ctx, func() (directory.Joined, error) {
		return s.dir.CreateMatch(ctx, name, pref)
	})
}

func (s *Session) Join(ctx context.Context, matchID, name string, pref directory.Preference) (directory.Joined, error) {
	return s.enter(ctx, func() (directory.Joined, error) {
		return s.dir.JoinMatch(ctx, matchID, name, pref)
	})
}

func (s *Session) enter(ctx context.Context, join func() (directory.Joined, error)) (directory.Joined, error) {
	if err := s.Connect(ctx); err != nil {
		return directory.Joined{}, err
	}
	s.discard()

	// Subscribe first so the joined snapshot cannot be missed.
	subID := "enter-" + uuid.NewString()
	updates, err := s.engine.Subscribe(subID, 16)
	if err != nil {
		return directory.Joined{}, err
	}
	defer func() { _ = s.engine.Unsubscribe(subID) }()

	joined, err := join()
	if err != nil {
		return directory.Joined{}, err
	}
	// The first snapshot triggers the catalog refresh through the engine.
	if err := waitForView(ctx, updates, joined.MatchID); err != nil {
		return joined, err
	}
	return joined, nil
}

func waitForView(ctx context.Context, updates <-chan reconcile.Update, matchID string) error {
	timer := time.NewTimer(5 * time.Second)
	defer timer.Stop()
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return ErrNotJoined
			}
			if u.View != nil && u.View.ID == matchID && !u.View.Membership.IsZero() {
				return nil
			}
		case <-timer.C:
			return ErrNotJoined
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Leave disconnects and forgets the match. The session can Connect again.
func (s *Session) Leave() {
	s.mgr.Disconnect()
	s.discard()
}

// Run serves the session until the match is decided, the connection is
// lost or ctx ends. It reports the winner when there is one.
func (s *Session) Run(ctx context.Context) (match.Team, error) {
	g, gctx := errgroup.WithContext(ctx)
	var winner match.Team

	g.Go(func() error {
		select {
		case w := <-s.terminal:
			winner = w
			return errFinished
		case err := <-s.lost:
			return err
		case <-gctx.Done():
			return nil
		}
	})

	if s.opts.OnUpdate != nil {
		updates, err := s.engine.Subscribe("run", 64)
		if err != nil {
			return "", err
		}
		defer func() { _ = s.engine.Unsubscribe("run") }()
		g.Go(func() error {
			for {
				select {
				case u, ok := <-updates:
					if !ok {
						s.log.Warn("update stream closed")
						return nil
					}
					s.opts.OnUpdate(u)
				case <-gctx.Done():
					return nil
				}
			}
		})
	}

	if s.opts.OnActionError != nil {
		g.Go(func() error {
			for {
				select {
				case ae := <-s.disp.Errors():
					s.opts.OnActionError(ae)
				case <-gctx.Done():
					return nil
				}
			}
		})
	}

	if s.opts.InspectAddr != "" {
		srv := &http.Server{Addr: s.opts.InspectAddr, Handler: httpapi.SetupRoutes(s.engine, s.cat)}
		g.Go(func() error {
			s.log.Info("inspector listening", zap.String("addr", s.opts.InspectAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("inspector: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	err := g.Wait()
	if errors.Is(err, errFinished) {
		return winner, nil
	}
	return "", err
}

// Close disconnects and stops the engine. The session is unusable after.
func (s *Session) Close() {
	s.mgr.Disconnect()
	s.engine.Stop()
	s.cancel()
}
