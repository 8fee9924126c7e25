package devauthority

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"

	"go.uber.org/zap"

	"github.com/DoyleJ11/matchsync/internal/match"
	"github.com/DoyleJ11/matchsync/internal/protocol"
)

var ErrMatchFull = errors.New("match is full")
var ErrStopped = errors.New("match stopped")
var ErrNotSeated = errors.New("not seated in this match")

// Outgoing is one frame queued for a client.
type Outgoing struct {
	Event     string
	RequestID string
	Payload   any
}

type Msg interface{ isMatchMsg() }

type Join struct {
	ClientID  string
	Name      string
	Team      match.Team
	Slot      match.Slot
	RequestID string
	Outbox    chan Outgoing // closed by the match when the client leaves or is dropped
	Reply     chan JoinResult
}

type JoinResult struct {
	Role match.Role
	Err  error
}

func (Join) isMatchMsg() {}

type Leave struct{ ClientID string }

func (Leave) isMatchMsg() {}

type FromClient struct {
	ClientID  string
	RequestID string
	Cmd       protocol.Outbound
}

func (FromClient) isMatchMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isMatchMsg() {}

type Shutdown struct{}

func (Shutdown) isMatchMsg() {}

// View is a test and debug copy of the match internals.
type View struct {
	Game       Game
	NumClients int
	Seats      map[match.Role]string
}

type client struct {
	role   match.Role
	outbox chan Outgoing
}

type Match struct {
	id      string
	inbox   chan Msg
	game    Game
	cat     Catalog
	rng     *rand.Rand
	clients map[string]client
	seats   map[match.Role]string
	names   map[match.Role]string
	notify  func(protocol.MatchSummary)
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

type MatchOptions struct {
	Economy int
	Catalog Catalog
	Rand    *rand.Rand
	Log     *zap.Logger
	// Notify receives the directory summary after every seat change. It
	// runs on the match goroutine.
	Notify func(protocol.MatchSummary)
}

func NewMatch(parent context.Context, id string, opts MatchOptions) *Match {
	ctx, cancel := context.WithCancel(parent)
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	m := &Match{
		id:      id,
		inbox:   make(chan Msg, 64),
		game:    NewGame(id, opts.Economy),
		cat:     opts.Catalog,
		rng:     opts.Rand,
		clients: make(map[string]client),
		seats:   make(map[match.Role]string),
		names:   make(map[match.Role]string),
		notify:  opts.Notify,
		log:     opts.Log.With(zap.String("match_id", id)),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go m.loop()
	return m
}

func (m *Match) ID() string { return m.id }

func (m *Match) loop() {
	defer close(m.done)
	for {
		select {
		case <-m.ctx.Done():
			m.shutdown()
			return

		case msg := <-m.inbox:
			switch msg := msg.(type) {
			case Join:
				msg.Reply <- m.join(msg)

			case Leave:
				m.leave(msg.ClientID)

			case FromClient:
				m.handle(msg)

			case GetState:
				seats := make(map[match.Role]string, len(m.seats))
				for r, id := range m.seats {
					seats[r] = id
				}
				msg.Reply <- View{Game: m.game.Clone(), NumClients: len(m.clients), Seats: seats}

			case Shutdown:
				m.shutdown()
				return
			}
		}
	}
}

// assign picks the seat for a joiner: the preferred cell when free, else
// the first free cell matching whichever half of the preference was given,
// else the first free cell.
func (m *Match) assign(team match.Team, slot match.Slot) (match.Role, bool) {
	free := func(r match.Role) bool { _, taken := m.seats[r]; return !taken }
	if team.Valid() && slot.Valid() && free(match.Role{Team: team, Slot: slot}) {
		return match.Role{Team: team, Slot: slot}, true
	}
	for _, pass := range []func(match.Role) bool{
		func(r match.Role) bool { return team.Valid() && r.Team == team },
		func(r match.Role) bool { return slot.Valid() && r.Slot == slot },
		func(match.Role) bool { return true },
	} {
		for _, r := range match.AllRoles {
			if pass(r) && free(r) {
				return r, true
			}
		}
	}
	return match.Role{}, false
}

func (m *Match) join(j Join) JoinResult {
	if m.game.State.Status == match.StatusCompleted {
		return JoinResult{Err: ErrMatchCompleted}
	}
	if _, seated := m.clients[j.ClientID]; seated {
		m.leave(j.ClientID)
	}
	role, ok := m.assign(j.Team, j.Slot)
	if !ok {
		return JoinResult{Err: ErrMatchFull}
	}
	m.seats[role] = j.ClientID
	m.names[role] = j.Name
	m.clients[j.ClientID] = client{role: role, outbox: j.Outbox}
	m.game.State.Teams.Get(role.Team).Players[role.Slot] = match.Player{ID: j.ClientID, Name: j.Name}
	if m.game.State.Status == match.StatusWaiting && m.teamSeated(match.TeamWhite) && m.teamSeated(match.TeamBlack) {
		m.game.State.Status = match.StatusActive
	}
	m.log.Info("player joined", zap.String("client_id", j.ClientID), zap.Stringer("role", role))

	m.send(j.ClientID, Outgoing{
		Event:     protocol.EvtMatchJoined,
		RequestID: j.RequestID,
		Payload: protocol.MatchJoined{
			MatchID:      m.id,
			AssignedRole: role,
			MatchState:   Redact(m.game.State, role),
		},
	})
	m.broadcastExcept(j.ClientID, protocol.EvtMatchStateUpdated, "", func(r match.Role) any {
		return protocol.MatchStateUpdated{MatchState: Redact(m.game.State, r)}
	})
	m.announce()
	return JoinResult{Role: role}
}

func (m *Match) teamSeated(t match.Team) bool {
	for r := range m.seats {
		if r.Team == t {
			return true
		}
	}
	return false
}

func (m *Match) leave(clientID string) {
	c, ok := m.clients[clientID]
	if !ok {
		return
	}
	close(c.outbox)
	delete(m.clients, clientID)
	delete(m.seats, c.role)
	delete(m.names, c.role)
	delete(m.game.State.Teams.Get(c.role.Team).Players, c.role.Slot)
	m.log.Info("player left", zap.String("client_id", clientID), zap.Stringer("role", c.role))

	m.broadcastExcept("", protocol.EvtMatchStateUpdated, "", func(r match.Role) any {
		return protocol.MatchStateUpdated{MatchState: Redact(m.game.State, r)}
	})
	m.announce()
}

func (m *Match) handle(msg FromClient) {
	c, ok := m.clients[msg.ClientID]
	if !ok {
		m.log.Warn("command from unseated client", zap.String("client_id", msg.ClientID))
		return
	}
	reply := func(event string, payload any) {
		m.send(msg.ClientID, Outgoing{Event: event, RequestID: msg.RequestID, Payload: payload})
	}
	own := *m.game.State.Teams.Get(c.role.Team)

	switch cmd := msg.Cmd.(type) {
	case protocol.GetMatchState:
		reply(protocol.EvtMatchState, Redact(m.game.State, c.role))
		return
	case protocol.GetPossibleMoves:
		reply(protocol.EvtPossibleMoves, protocol.PossibleMoves{
			Position: cmd.Position,
			GameSlot: cmd.GameSlot,
			Moves:    Reachable(m.game.State, cmd.Position),
		})
		return
	case protocol.GetAvailableUpgrades:
		reply(protocol.EvtAvailableUpgrades, protocol.AvailableUpgrades{Upgrades: m.cat.UpgradesFor(own)})
		return
	case protocol.GetModifiers:
		reply(protocol.EvtAvailableModifiers, protocol.AvailableModifiers{Modifiers: m.cat.ModifiersFor(own)})
		return
	case protocol.GetPurchasablePieces:
		reply(protocol.EvtPurchasablePieces, protocol.PurchasablePieces{Pieces: slices.Clone(m.cat.Pieces)})
		return
	}

	events, next, err := Apply(m.game, c.role, msg.Cmd, m.cat)
	if err != nil {
		m.log.Info("command rejected", zap.String("event", msg.Cmd.EventName()), zap.Stringer("role", c.role), zap.Error(err))
		channel := protocol.ErrorChannelFor(msg.Cmd.EventName())
		reply(channel, protocol.ErrorEvent{Channel: channel, Message: err.Error(), RequestID: msg.RequestID})
		return
	}
	m.game = next
	m.publish(msg.ClientID, msg.RequestID, events)

	if ContainsEvent(events, EvtDealRequested) {
		dealt, next, err := Deal(m.game, ShuffledDeck(m.rng))
		if err != nil {
			m.log.Warn("deal failed", zap.Error(err))
			return
		}
		m.game = next
		m.publish("", "", dealt)
	}
	if ContainsEvent(events, EvtMatchCompleted) {
		m.log.Info("match completed", zap.String("winner", string(*m.game.State.WinCondition)))
		m.announce()
	}
}

// publish sends one state-bearing frame for the first event that carries
// state, plus any blind level change. The originator gets its request id
// echoed.
func (m *Match) publish(origin, requestID string, events []Event) {
	stateSent := false
	for _, ev := range events {
		var event string
		var build func(match.Role) any
		switch ev.Type {
		case EvtMoved, EvtBetPlaced:
			if stateSent {
				continue
			}
			var mv match.Move
			if ev.Move != nil {
				mv = *ev.Move
			} else {
				mv = match.Move{Team: ev.Team}
			}
			slot := ev.Slot
			event, build = protocol.EvtMoveMade, func(r match.Role) any {
				return protocol.MoveMade{Move: mv, GameSlot: slot, MatchState: Redact(m.game.State, r)}
			}
		case EvtPiecePurchased:
			if stateSent {
				continue
			}
			event, build = protocol.EvtPiecePurchased, func(r match.Role) any {
				s := Redact(m.game.State, r)
				return protocol.PiecePurchased{Team: ev.Team, PieceType: ev.PieceType, Cost: ev.Cost, MatchState: &s}
			}
		case EvtPiecePlaced:
			if stateSent {
				continue
			}
			event, build = protocol.EvtPiecePlacedFromBarracks, func(r match.Role) any {
				s := Redact(m.game.State, r)
				return protocol.PiecePlacedFromBarracks{Team: ev.Team, PieceType: ev.PieceType, TargetPosition: ev.Target, MatchState: &s}
			}
		case EvtStateChanged, EvtHandDealt:
			if stateSent {
				continue
			}
			event, build = protocol.EvtMatchStateUpdated, func(r match.Role) any {
				return protocol.MatchStateUpdated{MatchState: Redact(m.game.State, r)}
			}
		case EvtBlindLevelChanged:
			payload := protocol.BlindLevelChanged{BlindLevel: m.game.BlindLevel, BlindAmounts: m.game.blinds()}
			m.broadcastExcept("", protocol.EvtBlindLevelChanged, "", func(match.Role) any { return payload })
			continue
		default:
			continue
		}
		stateSent = true
		for id, c := range m.clients {
			rid := ""
			if id == origin {
				rid = requestID
			}
			m.send(id, Outgoing{Event: event, RequestID: rid, Payload: build(c.role)})
		}
	}
}

func (m *Match) broadcastExcept(skip, event, requestID string, build func(match.Role) any) {
	for id, c := range m.clients {
		if id == skip {
			continue
		}
		m.send(id, Outgoing{Event: event, RequestID: requestID, Payload: build(c.role)})
	}
}

func (m *Match) send(clientID string, out Outgoing) {
	c, ok := m.clients[clientID]
	if !ok {
		return
	}
	select {
	case c.outbox <- out:
	default:
		// Client is slow/full - drop them.
		m.log.Warn("dropping slow client", zap.String("client_id", clientID))
		close(c.outbox)
		delete(m.clients, clientID)
		delete(m.seats, c.role)
		delete(m.names, c.role)
		delete(m.game.State.Teams.Get(c.role.Team).Players, c.role.Slot)
	}
}

// summary is the directory listing entry for this match. Outside the match
// goroutine it is only safe to call before the first message is posted.
func (m *Match) summary() protocol.MatchSummary {
	s := protocol.MatchSummary{
		ID:        m.id,
		Status:    m.game.State.Status,
		Players:   []protocol.Seat{},
		OpenRoles: []match.Role{},
	}
	for _, r := range match.AllRoles {
		if _, taken := m.seats[r]; taken {
			s.Players = append(s.Players, protocol.Seat{Role: r, Name: m.names[r]})
		} else {
			s.OpenRoles = append(s.OpenRoles, r)
		}
	}
	return s
}

func (m *Match) announce() {
	if m.notify != nil {
		m.notify(m.summary())
	}
}

func (m *Match) shutdown() {
	for id, c := range m.clients {
		close(c.outbox)
		delete(m.clients, id)
	}
	m.cancel()
}

func (m *Match) post(msg Msg) error {
	select {
	case <-m.done:
		return ErrStopped
	default:
	}
	select {
	case m.inbox <- msg:
		return nil
	case <-m.done:
		return ErrStopped
	}
}

// Join seats a client. The match_joined frame is queued on outbox before
// Join returns.
func (m *Match) Join(ctx context.Context, j Join) (match.Role, error) {
	j.Reply = make(chan JoinResult, 1)
	if err := m.post(j); err != nil {
		return match.Role{}, err
	}
	select {
	case res := <-j.Reply:
		return res.Role, res.Err
	case <-m.done:
		return match.Role{}, ErrStopped
	case <-ctx.Done():
		return match.Role{}, ctx.Err()
	}
}

func (m *Match) Leave(clientID string) error { return m.post(Leave{ClientID: clientID}) }

func (m *Match) Command(clientID, requestID string, cmd protocol.Outbound) error {
	return m.post(FromClient{ClientID: clientID, RequestID: requestID, Cmd: cmd})
}

func (m *Match) State(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := m.post(GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-m.done:
		return View{}, ErrStopped
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

func (m *Match) Stop() {
	_ = m.post(Shutdown{})
	<-m.done
}

// Inbox exposes the raw message channel so tests can drive the loop.
func (m *Match) Inbox() chan<- Msg { return m.inbox }

func ContainsEvent(events []Event, t EventType) bool {
	return slices.ContainsFunc(events, func(e Event) bool { return e.Type == t })
}
