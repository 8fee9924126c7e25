// Package dispatch turns user intents into outbound events. Nothing here
// touches the match view: an intent's effect shows up only when the
// authority's resulting state-bearing event is reconciled, and its failure
// only as an error event on the intent's scoped channel.
package dispatch

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/matchsync/internal/catalog"
	"github.com/DoyleJ11/matchsync/internal/match"
	"github.com/DoyleJ11/matchsync/internal/protocol"
	"github.com/DoyleJ11/matchsync/internal/reconcile"
)

// Emitter sends one fire-and-forget event and returns the request id it
// was stamped with. *conn.Manager satisfies it.
type Emitter interface {
	Emit(ctx context.Context, event string, payload any) (string, error)
}

// ViewSource yields a copy of the reconciled state. *reconcile.Engine
// satisfies it.
type ViewSource interface {
	Current(ctx context.Context) (reconcile.State, error)
}

// Prices yields the catalog used for affordability checks. *catalog.Cache
// satisfies it.
type Prices interface {
	Snapshot() catalog.Snapshot
}

type PurchaseKind string

const (
	PurchaseUpgrade  PurchaseKind = "upgrade"
	PurchasePiece    PurchaseKind = "piece"
	PurchaseModifier PurchaseKind = "modifier"
)

// Betting actions the card game accepts.
const (
	BetFold  = "fold"
	BetCheck = "check"
	BetCall  = "call"
	BetBet   = "bet"
	BetRaise = "raise"
	BetAllIn = "allin"
)

type Dispatcher struct {
	emit    Emitter
	views   ViewSource
	prices  Prices
	log     *zap.Logger
	now     func() time.Time
	pending *tracker
	errs    chan ActionError
}

func New(emit Emitter, views ViewSource, prices Prices, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		emit:    emit,
		views:   views,
		prices:  prices,
		log:     log,
		now:     time.Now,
		pending: newTracker(),
		errs:    make(chan ActionError, 32),
	}
}

// Errors delivers attributed action errors for display. When nobody drains
// it the oldest-first backlog is capped and further errors are only logged.
func (d *Dispatcher) Errors() <-chan ActionError { return d.errs }

// Pending lists in-flight intents, oldest first.
func (d *Dispatcher) Pending() []Intent { return d.pending.list() }

// Reset forgets every in-flight intent, e.g. when leaving a match.
func (d *Dispatcher) Reset() { d.pending.reset() }

func (d *Dispatcher) view(ctx context.Context, intent string) (*match.View, error) {
	s, err := d.views.Current(ctx)
	if err != nil {
		return nil, err
	}
	if s.View == nil {
		return nil, refuse(intent, ErrNoView)
	}
	return s.View, nil
}

// send emits payload and, for tracked intents, records it as pending.
func (d *Dispatcher) send(ctx context.Context, payload protocol.Outbound, track bool) (string, error) {
	event := payload.EventName()
	id, err := d.emit.Emit(ctx, event, payload)
	if err != nil {
		d.log.Error("emit failed", zap.String("event", event), zap.Error(err))
		return id, err
	}
	if track {
		in := &Intent{RequestID: id, Event: event, Family: protocol.ErrorChannelFor(event), SentAt: d.now()}
		if old := d.pending.add(in); old != nil {
			d.log.Warn("intent never answered", zap.String("event", old.Event), zap.String("request_id", old.RequestID))
		}
	}
	d.log.Debug("intent sent", zap.String("event", event), zap.String("request_id", id))
	return id, nil
}

func ownTeam(v *match.View) *match.TeamState { return v.Teams.Get(v.Membership.Team) }

func checkLive(v *match.View, intent string) error {
	if v.Terminal() || v.Status == match.StatusCompleted {
		return refuse(intent, ErrMatchOver)
	}
	return nil
}

// RequestPossibleMoves asks for the legal destinations of the piece at pos.
// The answer arrives as possible_moves and lands in the engine's local
// selection state.
func (d *Dispatcher) RequestPossibleMoves(ctx context.Context, pos match.Position, slot match.Slot) (string, error) {
	const intent = protocol.EvtGetPossibleMoves
	v, err := d.view(ctx, intent)
	if err != nil {
		return "", err
	}
	if !pos.InBounds() {
		return "", refuse(intent, ErrOffBoard)
	}
	if slot != match.SlotBoard {
		return "", refuse(intent, ErrWrongSlot)
	}
	return d.send(ctx, protocol.GetPossibleMoves{MatchID: v.ID, Position: pos, GameSlot: slot}, false)
}

func (d *Dispatcher) SubmitMove(ctx context.Context, from, to match.Position, slot match.Slot) (string, error) {
	const intent = protocol.EvtMakeMove
	v, err := d.view(ctx, intent)
	if err != nil {
		return "", err
	}
	if err := checkLive(v, intent); err != nil {
		return "", err
	}
	if slot != match.SlotBoard || v.Membership.Slot != match.SlotBoard {
		return "", refuse(intent, ErrWrongSlot)
	}
	if v.Status != match.StatusActive {
		return "", refuse(intent, ErrMatchNotActive)
	}
	if !from.InBounds() || !to.InBounds() {
		return "", refuse(intent, ErrOffBoard)
	}
	if v.SubGames.A.Turn != v.Membership.Team {
		return "", refuse(intent, ErrNotYourTurn)
	}
	pc, ok := v.SubGames.A.PieceAt(from)
	if !ok {
		return "", refuse(intent, ErrNoPiece)
	}
	if pc.Color != v.Membership.Team {
		return "", refuse(intent, ErrNotYourPiece)
	}
	return d.send(ctx, protocol.MakeMove{MatchID: v.ID, From: from, To: to, GameSlot: slot}, true)
}

// SubmitBettingAction sends a card-game action. amount is required for bet
// and raise and ignored otherwise.
func (d *Dispatcher) SubmitBettingAction(ctx context.Context, action string, amount *int) (string, error) {
	const intent = protocol.EvtPokerAction
	v, err := d.view(ctx, intent)
	if err != nil {
		return "", err
	}
	if err := checkLive(v, intent); err != nil {
		return "", err
	}
	if v.Membership.Slot != match.SlotCard {
		return "", refuse(intent, ErrWrongSlot)
	}
	if v.Status != match.StatusActive {
		return "", refuse(intent, ErrMatchNotActive)
	}
	game := v.SubGames.B
	if game.Turn != v.Membership.Team {
		return "", refuse(intent, ErrNotYourTurn)
	}
	if game.Folded[v.Membership.Team] {
		return "", refuse(intent, ErrFolded)
	}

	payload := protocol.PokerAction{MatchID: v.ID, Action: action}
	switch action {
	case BetFold, BetCheck, BetCall, BetAllIn:
	case BetBet, BetRaise:
		if amount == nil || *amount <= 0 {
			return "", refuse(intent, ErrBadAmount)
		}
		if action == BetRaise && *amount <= game.CurrentBet {
			return "", refuse(intent, ErrBadAmount)
		}
		n := *amount
		payload.Amount = &n
	default:
		return "", refuse(intent, ErrUnknownBetAction)
	}
	return d.send(ctx, payload, true)
}

// SubmitPiecePlacement deploys the barracks unit at reserveIndex onto an
// empty square.
func (d *Dispatcher) SubmitPiecePlacement(ctx context.Context, reserveIndex int, target match.Position) (string, error) {
	const intent = protocol.EvtPlaceFromBarracks
	v, err := d.view(ctx, intent)
	if err != nil {
		return "", err
	}
	if err := checkLive(v, intent); err != nil {
		return "", err
	}
	if v.Membership.Slot != match.SlotBoard {
		return "", refuse(intent, ErrWrongSlot)
	}
	if reserveIndex < 0 || reserveIndex >= len(ownTeam(v).Barracks) {
		return "", refuse(intent, ErrNoSuchReserveUnit)
	}
	if !target.InBounds() {
		return "", refuse(intent, ErrOffBoard)
	}
	if _, taken := v.SubGames.A.PieceAt(target); taken {
		return "", refuse(intent, ErrSquareOccupied)
	}
	return d.send(ctx, protocol.PlaceFromBarracks{MatchID: v.ID, PieceIndex: reserveIndex, TargetPosition: target}, true)
}

// SubmitPurchase buys an upgrade, modifier or piece. When the catalog lists
// the item, its price is checked against the team's economy first.
func (d *Dispatcher) SubmitPurchase(ctx context.Context, kind PurchaseKind, id string) (string, error) {
	var payload protocol.Outbound
	v, err := d.view(ctx, "purchase_"+string(kind))
	if err != nil {
		return "", err
	}
	switch kind {
	case PurchaseUpgrade:
		payload = protocol.PurchaseUpgrade{MatchID: v.ID, UpgradeID: id}
	case PurchaseModifier:
		payload = protocol.PurchaseModifier{MatchID: v.ID, ModifierID: id}
	case PurchasePiece:
		payload = protocol.PurchasePiece{MatchID: v.ID, PieceType: id}
	default:
		return "", refuse("purchase", ErrUnknownKind)
	}
	intent := payload.EventName()
	if err := checkLive(v, intent); err != nil {
		return "", err
	}
	if id == "" {
		return "", refuse(intent, ErrEmptyID)
	}
	if d.prices != nil {
		if cost, ok := d.prices.Snapshot().Cost(string(kind), id); ok && cost > ownTeam(v).Economy {
			return "", refuse(intent, ErrUnaffordable)
		}
	}
	return d.send(ctx, payload, true)
}

// SetReady toggles the card player's ready flag between hands.
func (d *Dispatcher) SetReady(ctx context.Context, ready bool) (string, error) {
	const intent = protocol.EvtPokerReady
	v, err := d.view(ctx, intent)
	if err != nil {
		return "", err
	}
	if err := checkLive(v, intent); err != nil {
		return "", err
	}
	if v.Membership.Slot != match.SlotCard {
		return "", refuse(intent, ErrWrongSlot)
	}
	return d.send(ctx, protocol.PokerReady{MatchID: v.ID, Ready: ready}, true)
}

// RefreshCatalogs asks for all three catalogs. Answers land in the catalog
// cache as they arrive.
func (d *Dispatcher) RefreshCatalogs(ctx context.Context) error {
	v, err := d.view(ctx, "refresh_catalogs")
	if err != nil {
		return err
	}
	var errs []error
	for _, req := range []protocol.Outbound{
		protocol.GetAvailableUpgrades{MatchID: v.ID},
		protocol.GetModifiers{MatchID: v.ID},
		protocol.GetPurchasablePieces{MatchID: v.ID},
	} {
		if _, err := d.send(ctx, req, false); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) adminTarget(ctx context.Context, intent string, team match.Team) (*match.View, error) {
	v, err := d.view(ctx, intent)
	if err != nil {
		return nil, err
	}
	if !team.Valid() {
		return nil, refuse(intent, ErrUnknownTeam)
	}
	return v, nil
}

// AdminUpdateEconomy is a debug intent that sets a team's balance.
func (d *Dispatcher) AdminUpdateEconomy(ctx context.Context, team match.Team, amount int) (string, error) {
	const intent = protocol.EvtAdminUpdateEconomy
	v, err := d.adminTarget(ctx, intent, team)
	if err != nil {
		return "", err
	}
	if amount < 0 {
		return "", refuse(intent, ErrBadAmount)
	}
	return d.send(ctx, protocol.AdminUpdateEconomy{MatchID: v.ID, Team: team, Amount: amount}, true)
}

func (d *Dispatcher) AdminToggleUpgrade(ctx context.Context, team match.Team, upgradeID string) (string, error) {
	const intent = protocol.EvtAdminToggleUpgrade
	v, err := d.adminTarget(ctx, intent, team)
	if err != nil {
		return "", err
	}
	if upgradeID == "" {
		return "", refuse(intent, ErrEmptyID)
	}
	return d.send(ctx, protocol.AdminToggleUpgrade{MatchID: v.ID, Team: team, UpgradeID: upgradeID}, true)
}

func (d *Dispatcher) AdminResetUpgrades(ctx context.Context, team match.Team) (string, error) {
	const intent = protocol.EvtAdminResetUpgrades
	v, err := d.adminTarget(ctx, intent, team)
	if err != nil {
		return "", err
	}
	return d.send(ctx, protocol.AdminResetUpgrades{MatchID: v.ID, Team: team}, true)
}

// HandleError attributes an authority error event to a pending intent,
// logs it and queues it for display. It never returns an error: action
// failures are informational.
func (d *Dispatcher) HandleError(ev protocol.ErrorEvent) ActionError {
	ae := ActionError{
		Family:    ev.Channel,
		Message:   ev.Message,
		Code:      ev.Code,
		RequestID: ev.RequestID,
		Intent:    d.pending.attribute(ev.Channel, ev.RequestID),
	}
	fields := []zap.Field{zap.String("channel", ev.Channel), zap.String("message", ev.Message)}
	if ae.Intent != nil {
		fields = append(fields, zap.String("intent", ae.Intent.Event), zap.String("request_id", ae.Intent.RequestID))
	} else {
		fields = append(fields, zap.Bool("unattributed", true))
	}
	d.log.Warn("action rejected", fields...)

	select {
	case d.errs <- ae:
	default:
		d.log.Warn("action error backlog full; not queued", zap.String("channel", ev.Channel))
	}
	return ae
}

// Acknowledge settles the pending intent answered by a success event.
func (d *Dispatcher) Acknowledge(event, requestID string) {
	if in := d.pending.settle(event, requestID); in != nil {
		d.log.Debug("intent settled", zap.String("intent", in.Event), zap.String("by", event))
	}
}
