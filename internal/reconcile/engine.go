package reconcile

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/DoyleJ11/matchsync/internal/match"
	"github.com/DoyleJ11/matchsync/internal/protocol"
)

var ErrEngineStopped = errors.New("engine stopped")

type Msg interface{ isEngineMsg() }

type FromAuthority struct {
	Event protocol.Inbound
}

func (FromAuthority) isEngineMsg() {}

// Begin discards any previous view; the next match_joined populates it.
type Begin struct{}

func (Begin) isEngineMsg() {}

type SelectSquare struct {
	Position match.Position
}

func (SelectSquare) isEngineMsg() {}

type SelectReserveUnit struct {
	Index int
}

func (SelectReserveUnit) isEngineMsg() {}

type DraftBet struct {
	Amount int
}

func (DraftBet) isEngineMsg() {}

type ClearLocal struct {
	Slot match.Slot
}

func (ClearLocal) isEngineMsg() {}

type Subscribe struct {
	ID     string
	Outbox chan Update
}

func (Subscribe) isEngineMsg() {}

type Unsubscribe struct{ ID string }

func (Unsubscribe) isEngineMsg() {}

type GetState struct {
	Reply chan State
}

func (GetState) isEngineMsg() {}

type Shutdown struct{}

func (Shutdown) isEngineMsg() {}

// Update is what subscribers receive after every change. View is shared
// between subscribers and must be treated as read-only.
type Update struct {
	Version int
	Cause   string
	View    *match.View
	Local   Local
	Signals []Signal
}

// Hooks run on the engine goroutine and must not block.
type Hooks struct {
	OnTerminal       func(winner match.Team)
	OnCatalogRefresh func()
	OnRejected       func(event string, err error)
}

type Engine struct {
	inbox  chan Msg
	state  State
	subs   map[string]chan Update
	hooks  Hooks
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewEngine(parent context.Context, log *zap.Logger, hooks Hooks) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	e := &Engine{
		inbox:  make(chan Msg, 64),
		state:  NewEmptyState(),
		subs:   make(map[string]chan Update),
		hooks:  hooks,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go e.loop()
	return e
}

func (e *Engine) loop() {
	defer close(e.done)
	for {
		select {
		case <-e.ctx.Done():
			e.shutdown()
			return

		case m := <-e.inbox:
			switch msg := m.(type) {
			case FromAuthority:
				e.handle(msg.Event)

			case Begin:
				e.state = NewEmptyState()
				e.broadcast("begin", nil)

			case SelectSquare:
				e.state = Select(e.state, msg.Position)
				e.broadcast("local", nil)

			case SelectReserveUnit:
				e.state = SelectReserve(e.state, msg.Index)
				e.broadcast("local", nil)

			case DraftBet:
				e.state = SetBetDraft(e.state, msg.Amount)
				e.broadcast("local", nil)

			case ClearLocal:
				e.state = ClearSelection(e.state, msg.Slot)
				e.broadcast("local", nil)

			case Subscribe:
				e.subs[msg.ID] = msg.Outbox
				if e.state.View != nil {
					e.send(msg.ID, msg.Outbox, e.update("subscribe", nil))
				}

			case Unsubscribe:
				if ch, ok := e.subs[msg.ID]; ok {
					close(ch)
					delete(e.subs, msg.ID)
				}

			case GetState:
				msg.Reply <- e.snapshot()

			case Shutdown:
				e.shutdown()
				return
			}
		}
	}
}

func (e *Engine) handle(ev protocol.Inbound) {
	signals, next, err := Apply(e.state, ev)
	if err != nil {
		e.log.Warn("rejected event", zap.String("event", ev.EventName()), zap.Error(err))
		if e.hooks.OnRejected != nil {
			e.hooks.OnRejected(ev.EventName(), err)
		}
		return
	}
	if len(signals) == 0 {
		return
	}
	e.state = next

	for _, sig := range signals {
		switch sig.Type {
		case SigTerminal:
			e.log.Info("match finished", zap.String("winner", string(sig.Winner)))
			if e.hooks.OnTerminal != nil {
				e.hooks.OnTerminal(sig.Winner)
			}
		case SigCatalogRefresh:
			if e.hooks.OnCatalogRefresh != nil {
				e.hooks.OnCatalogRefresh()
			}
		}
	}
	e.broadcast(ev.EventName(), signals)
}

func (e *Engine) snapshot() State {
	out := e.state
	if e.state.View != nil {
		v := e.state.View.Clone()
		out.View = &v
	}
	return out
}

func (e *Engine) update(cause string, signals []Signal) Update {
	s := e.snapshot()
	return Update{Version: s.Version, Cause: cause, View: s.View, Local: s.Local, Signals: signals}
}

func (e *Engine) broadcast(cause string, signals []Signal) {
	if len(e.subs) == 0 {
		return
	}
	u := e.update(cause, signals)
	for id, ch := range e.subs {
		e.send(id, ch, u)
	}
}

func (e *Engine) send(id string, ch chan Update, u Update) {
	select {
	case ch <- u:
	default:
		// Subscriber is slow/full - drop it.
		e.log.Warn("dropping slow subscriber", zap.String("subscriber", id))
		close(ch)
		delete(e.subs, id)
	}
}

func (e *Engine) shutdown() {
	for id, ch := range e.subs {
		close(ch)
		delete(e.subs, id)
	}
	e.cancel()
}

func (e *Engine) post(m Msg) error {
	select {
	case <-e.done:
		return ErrEngineStopped
	default:
	}
	select {
	case e.inbox <- m:
		return nil
	case <-e.done:
		return ErrEngineStopped
	}
}

// Inbox exposes the raw message channel, for tests and the session wiring.
func (e *Engine) Inbox() chan<- Msg { return e.inbox }

func (e *Engine) Handle(ev protocol.Inbound) error { return e.post(FromAuthority{Event: ev}) }

func (e *Engine) Begin() error { return e.post(Begin{}) }

func (e *Engine) Select(p match.Position) error { return e.post(SelectSquare{Position: p}) }

func (e *Engine) SelectReserve(index int) error { return e.post(SelectReserveUnit{Index: index}) }

func (e *Engine) DraftBet(amount int) error { return e.post(DraftBet{Amount: amount}) }

func (e *Engine) Clear(slot match.Slot) error { return e.post(ClearLocal{Slot: slot}) }

// Subscribe registers a buffered outbox. A subscriber that falls behind is
// dropped and its channel closed.
func (e *Engine) Subscribe(id string, buffer int) (<-chan Update, error) {
	ch := make(chan Update, buffer)
	if err := e.post(Subscribe{ID: id, Outbox: ch}); err != nil {
		return nil, err
	}
	return ch, nil
}

func (e *Engine) Unsubscribe(id string) error { return e.post(Unsubscribe{ID: id}) }

// Current returns a deep copy of the engine state.
func (e *Engine) Current(ctx context.Context) (State, error) {
	reply := make(chan State, 1)
	select {
	case e.inbox <- GetState{Reply: reply}:
	case <-e.done:
		return State{}, ErrEngineStopped
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-e.done:
		return State{}, ErrEngineStopped
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

func (e *Engine) Stop() {
	_ = e.post(Shutdown{})
	<-e.done
}
