package devauthority

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/matchsync/internal/conn"
	"github.com/DoyleJ11/matchsync/internal/match"
	"github.com/DoyleJ11/matchsync/internal/protocol"
)

const (
	writeTimeout = 3 * time.Second
	idleTimeout  = 5 * time.Minute
)

// peer is one websocket client. Only the reader goroutine touches current
// and watching.
type peer struct {
	id       string
	hub      *Hub
	t        conn.Transport
	frames   chan Outgoing
	current  *Match
	watching bool
	log      *zap.Logger
}

func Handler(h *Hub, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		p := &peer{
			id:     uuid.NewString(),
			hub:    h,
			t:      conn.WrapWebSocket(c),
			frames: make(chan Outgoing, 64),
			log:    log,
		}
		p.log = log.With(zap.String("client_id", p.id))
		defer p.t.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go p.writer(ctx, cancel)

		defer func() {
			if p.current != nil {
				_ = p.current.Leave(p.id)
			}
			if p.watching {
				h.Unwatch(p.id)
			}
		}()

		p.log.Debug("client connected")
		for {
			readCtx, readCancel := context.WithTimeout(ctx, idleTimeout)
			data, err := p.t.Read(readCtx)
			readCancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					p.log.Debug("client closed")
				default:
					p.log.Debug("read failed", zap.Error(err))
				}
				return
			}
			p.route(ctx, data)
		}
	}
}

func (p *peer) writer(ctx context.Context, cancel context.CancelFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-p.frames:
			frame, err := protocol.Encode(o.Event, o.RequestID, o.Payload)
			if err != nil {
				p.log.Error("encode failed", zap.String("event", o.Event), zap.Error(err))
				continue
			}
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err = p.t.Write(wctx, frame)
			wcancel()
			if err != nil {
				p.log.Debug("write failed", zap.Error(err))
				cancel()
				return
			}
		}
	}
}

// pump forwards a match or directory outbox until its owner closes it.
func (p *peer) pump(ctx context.Context, outbox <-chan Outgoing) {
	for o := range outbox {
		select {
		case p.frames <- o:
		case <-ctx.Done():
			return
		}
	}
}

func (p *peer) emit(ctx context.Context, o Outgoing) {
	select {
	case p.frames <- o:
	case <-ctx.Done():
	}
}

func (p *peer) fail(ctx context.Context, channel, requestID, code, msg string) {
	p.emit(ctx, Outgoing{
		Event:     channel,
		RequestID: requestID,
		Payload:   protocol.ErrorEvent{Channel: channel, Message: msg, Code: code, RequestID: requestID},
	})
}

func (p *peer) route(ctx context.Context, data []byte) {
	env, err := protocol.DecodeEnvelope(data)
	if err != nil {
		p.fail(ctx, protocol.EvtError, "", "", err.Error())
		return
	}
	cmd, err := protocol.DecodeOutbound(env)
	if err != nil {
		p.fail(ctx, protocol.ErrorChannelFor(env.Event), env.RequestID, "", err.Error())
		return
	}

	switch c := cmd.(type) {
	case protocol.CreateMatch:
		mt, err := p.hub.Create(ctx)
		if err != nil {
			p.fail(ctx, protocol.EvtError, env.RequestID, "", err.Error())
			return
		}
		p.join(ctx, mt, c.PlayerName, c.PreferredTeam, c.PreferredSlot, env.RequestID)

	case protocol.JoinMatch:
		mt := p.hub.Get(ctx, c.MatchID)
		if mt == nil {
			p.fail(ctx, protocol.EvtError, env.RequestID, protocol.CodeMatchNotFound, "match not found")
			return
		}
		p.join(ctx, mt, c.PlayerName, c.PreferredTeam, c.PreferredSlot, env.RequestID)

	case protocol.GetWaitingMatches:
		// Watch before listing so no change slips between the two.
		if !p.watching {
			outbox := make(chan Outgoing, 16)
			p.hub.Watch(p.id, outbox)
			p.watching = true
			go p.pump(ctx, outbox)
		}
		ms, err := p.hub.List(ctx)
		if err != nil {
			p.fail(ctx, protocol.EvtError, env.RequestID, "", err.Error())
			return
		}
		p.emit(ctx, Outgoing{Event: protocol.EvtWaitingMatches, RequestID: env.RequestID, Payload: protocol.WaitingMatches{Matches: ms}})

	default:
		if p.current == nil {
			p.fail(ctx, protocol.ErrorChannelFor(env.Event), env.RequestID, "", ErrNotSeated.Error())
			return
		}
		if err := p.current.Command(p.id, env.RequestID, cmd); err != nil {
			p.fail(ctx, protocol.ErrorChannelFor(env.Event), env.RequestID, "", err.Error())
		}
	}
}

func (p *peer) join(ctx context.Context, mt *Match, name string, team match.Team, slot match.Slot, requestID string) {
	if p.current != nil && p.current != mt {
		_ = p.current.Leave(p.id)
		p.current = nil
	}
	outbox := make(chan Outgoing, 32)
	role, err := mt.Join(ctx, Join{
		ClientID:  p.id,
		Name:      name,
		Team:      team,
		Slot:      slot,
		RequestID: requestID,
		Outbox:    outbox,
	})
	switch {
	case errors.Is(err, ErrMatchFull):
		p.fail(ctx, protocol.EvtError, requestID, protocol.CodeSlotUnavailable, "no available slot")
		return
	case err != nil:
		p.fail(ctx, protocol.EvtError, requestID, "", err.Error())
		return
	}
	p.current = mt
	p.log.Info("seated", zap.String("match_id", mt.ID()), zap.Stringer("role", role))
	go p.pump(ctx, outbox)
}
