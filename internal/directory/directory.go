// Package directory lists, creates and joins matches. Role assignment
// belongs to the authority: preferences are forwarded, and whatever role
// comes back is the one the client plays.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/matchsync/internal/conn"
	"github.com/DoyleJ11/matchsync/internal/match"
	"github.com/DoyleJ11/matchsync/internal/protocol"
)

var (
	ErrSlotUnavailable = errors.New("no open slot in match")
	ErrMatchNotFound   = errors.New("match not found")
	ErrRejected        = errors.New("membership rejected")
)

// MembershipError reports a refused create or join.
type MembershipError struct {
	MatchID string
	Message string
	Err     error
}

func (e *MembershipError) Error() string {
	if e.MatchID != "" {
		return fmt.Sprintf("match %s: %v: %s", e.MatchID, e.Err, e.Message)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Message)
}

func (e *MembershipError) Unwrap() error { return e.Err }

// Requester is the slice of *conn.Manager the directory needs.
type Requester interface {
	Request(ctx context.Context, event string, payload any, expect conn.Expect) (protocol.Envelope, error)
	Subscribe(event string, fn conn.Handler) (unsubscribe func())
}

// Preference is an optional team and slot wish; zero values mean no
// preference.
type Preference struct {
	Team match.Team
	Slot match.Slot
}

type Joined struct {
	MatchID      string
	AssignedRole match.Role
	Event        protocol.MatchJoined
}

type Client struct {
	req     Requester
	timeout time.Duration
	log     *zap.Logger
}

func New(req Requester, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{req: req, timeout: timeout, log: log}
}

var joinExpect = conn.Expect{Response: protocol.EvtMatchJoined, Errors: []string{protocol.EvtError}}

// ListOpenMatches returns one snapshot of the waiting-match listing. Live
// updates come through WatchMatches.
func (c *Client) ListOpenMatches(ctx context.Context) ([]protocol.MatchSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	env, err := c.req.Request(ctx, protocol.EvtGetWaitingMatches, protocol.GetWaitingMatches{}, conn.Expect{
		Response: protocol.EvtWaitingMatches,
		Errors:   []string{protocol.EvtError},
	})
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	ev, err := protocol.Decode(env)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	wm, ok := ev.(protocol.WaitingMatches)
	if !ok {
		return nil, fmt.Errorf("list matches: unexpected %q", env.Event)
	}
	if wm.Matches == nil {
		return []protocol.MatchSummary{}, nil
	}
	return wm.Matches, nil
}

func (c *Client) CreateMatch(ctx context.Context, name string, pref Preference) (Joined, error) {
	return c.join(ctx, "", protocol.CreateMatch{
		PlayerName:    name,
		PreferredTeam: pref.Team,
		PreferredSlot: pref.Slot,
	})
}

func (c *Client) JoinMatch(ctx context.Context, matchID, name string, pref Preference) (Joined, error) {
	return c.join(ctx, matchID, protocol.JoinMatch{
		MatchID:       matchID,
		PlayerName:    name,
		PreferredTeam: pref.Team,
		PreferredSlot: pref.Slot,
	})
}

func (c *Client) join(ctx context.Context, matchID string, payload protocol.Outbound) (Joined, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	env, err := c.req.Request(ctx, payload.EventName(), payload, joinExpect)
	if err != nil {
		var ev protocol.ErrorEvent
		if errors.As(err, &ev) {
			me := membershipError(matchID, ev)
			c.log.Warn("membership rejected", zap.String("match_id", matchID), zap.Error(me))
			return Joined{}, me
		}
		return Joined{}, fmt.Errorf("%s: %w", payload.EventName(), err)
	}

	ev, err := protocol.Decode(env)
	if err != nil {
		return Joined{}, fmt.Errorf("%s: %w", payload.EventName(), err)
	}
	mj, ok := ev.(protocol.MatchJoined)
	if !ok {
		return Joined{}, fmt.Errorf("%s: unexpected %q", payload.EventName(), env.Event)
	}
	c.log.Info("joined match",
		zap.String("match_id", mj.MatchID),
		zap.Stringer("role", mj.AssignedRole),
	)
	return Joined{MatchID: mj.MatchID, AssignedRole: mj.AssignedRole, Event: mj}, nil
}

func membershipError(matchID string, ev protocol.ErrorEvent) *MembershipError {
	me := &MembershipError{MatchID: matchID, Message: ev.Message, Err: ErrRejected}
	msg := strings.ToLower(ev.Message)
	switch {
	case ev.Code == protocol.CodeSlotUnavailable,
		strings.Contains(msg, "full"),
		strings.Contains(msg, "no available"),
		strings.Contains(msg, "slot"):
		me.Err = ErrSlotUnavailable
	case ev.Code == protocol.CodeMatchNotFound,
		strings.Contains(msg, "not found"):
		me.Err = ErrMatchNotFound
	}
	return me
}

// WatchMatches calls fn with every pushed directory listing until the
// returned function is called or the connection goes away.
func (c *Client) WatchMatches(fn func([]protocol.MatchSummary)) (stop func()) {
	return c.req.Subscribe(protocol.EvtMatchesUpdated, func(env protocol.Envelope) {
		ev, err := protocol.Decode(env)
		if err != nil {
			c.log.Warn("dropping directory push", zap.Error(err))
			return
		}
		if mu, ok := ev.(protocol.MatchesUpdated); ok {
			fn(mu.Matches)
		}
	})
}
