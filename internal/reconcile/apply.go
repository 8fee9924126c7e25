package reconcile

import (
	"errors"
	"fmt"
	"slices"

	"github.com/DoyleJ11/matchsync/internal/match"
	"github.com/DoyleJ11/matchsync/internal/protocol"
)

var ErrNoMatch = errors.New("no match joined")
var ErrForeignMatch = errors.New("snapshot for another match")
var ErrInvalidSnapshot = errors.New("invalid snapshot")
var ErrUnsupportedEvent = errors.New("unsupported event")

// State is everything the engine owns: the canonical view plus the
// client-only selection state that survives unrelated updates.
type State struct {
	View    *match.View
	Local   Local
	Version int
}

type SignalType string

const (
	SigViewReplaced     SignalType = "ViewReplaced"
	SigSelectionCleared SignalType = "SelectionCleared"
	SigTerminal         SignalType = "Terminal"
	SigCatalogRefresh   SignalType = "CatalogRefresh"
	SigMovesReceived    SignalType = "MovesReceived"
)

type Signal struct {
	Type   SignalType
	Slot   match.Slot
	Winner match.Team
}

/*
	match_joined                -> ViewReplaced (+ CatalogRefresh on first population)
	match_state / _updated      -> ViewReplaced
	move_made{slot}             -> ViewReplaced -> SelectionCleared{slot}
	piece_placed_from_barracks  -> ViewReplaced -> SelectionCleared{A}
	piece_purchased             -> [ViewReplaced] -> CatalogRefresh
	possible_moves              -> MovesReceived (only for the open selection)
	any of the above            -> Terminal once, on the null -> set edge of winCondition
*/

// Apply reconciles one inbound event. Every state-bearing event replaces
// the view wholesale; there is no field-level merge. Arrival order is
// authoritative order, so there is no sequencing here.
func Apply(s State, ev protocol.Inbound) ([]Signal, State, error) {
	switch e := ev.(type) {
	case protocol.PossibleMoves:
		return applyPossibleMoves(s, e)
	case protocol.StateBearing:
		return applySnapshot(s, e)
	default:
		return nil, s, fmt.Errorf("%w: %s", ErrUnsupportedEvent, ev.EventName())
	}
}

func applySnapshot(s State, ev protocol.StateBearing) ([]Signal, State, error) {
	snap, has := ev.Snapshot()
	joined, isJoin := ev.(protocol.MatchJoined)

	if !has {
		// piece_purchased without a snapshot still moves the economy.
		if _, ok := ev.(protocol.PiecePurchased); ok {
			return []Signal{{Type: SigCatalogRefresh}}, s, nil
		}
		return nil, s, nil
	}

	if err := snap.Validate(); err != nil {
		return nil, s, fmt.Errorf("%w: %s: %w", ErrInvalidSnapshot, ev.EventName(), err)
	}

	var prev *match.View
	switch {
	case s.View == nil && isJoin:
	case s.View == nil:
		return nil, s, fmt.Errorf("%w: %s before match_joined", ErrNoMatch, ev.EventName())
	case s.View.ID != snap.ID:
		return nil, s, fmt.Errorf("%w: have %s, got %s", ErrForeignMatch, s.View.ID, snap.ID)
	default:
		prev = s.View
	}

	next := s
	view := &match.View{State: snap}
	if prev != nil {
		// Membership is fixed at join time; later snapshots never move it.
		view.Membership = prev.Membership
	} else {
		view.Membership = match.Membership{Team: joined.AssignedRole.Team, Slot: joined.AssignedRole.Slot}
	}
	next.View = view
	next.Version = s.Version + 1

	signals := []Signal{{Type: SigViewReplaced}}

	if slot, ok := slotOf(ev); ok && !s.Local.Empty(slot) {
		next.Local = s.Local.Cleared(slot)
		signals = append(signals, Signal{Type: SigSelectionCleared, Slot: slot})
	}

	_, purchased := ev.(protocol.PiecePurchased)
	if prev == nil || purchased || economyChanged(prev.State, snap) {
		signals = append(signals, Signal{Type: SigCatalogRefresh})
	}

	if snap.WinCondition != nil && (prev == nil || prev.WinCondition == nil) {
		signals = append(signals, Signal{Type: SigTerminal, Winner: *snap.WinCondition})
	}
	return signals, next, nil
}

func applyPossibleMoves(s State, ev protocol.PossibleMoves) ([]Signal, State, error) {
	sel := s.Local.Board.Selected
	if sel == nil || *sel != ev.Position {
		// Answer for a selection that is no longer open.
		return nil, s, nil
	}
	next := s
	next.Local.Board.Targets = slices.Clone(ev.Moves)
	if next.Local.Board.Targets == nil {
		next.Local.Board.Targets = []match.Position{}
	}
	return []Signal{{Type: SigMovesReceived, Slot: match.SlotBoard}}, next, nil
}

// slotOf reports which sub-game a delta pertains to. Full snapshots
// pertain to none.
func slotOf(ev protocol.Inbound) (match.Slot, bool) {
	switch e := ev.(type) {
	case protocol.MoveMade:
		return e.GameSlot, true
	case protocol.PiecePlacedFromBarracks:
		return match.SlotBoard, true
	default:
		return "", false
	}
}

func economyChanged(a, b match.State) bool {
	for _, team := range []match.Team{match.TeamWhite, match.TeamBlack} {
		x, y := a.Teams.Get(team), b.Teams.Get(team)
		if x.Economy != y.Economy || !slices.Equal(x.Modifiers, y.Modifiers) || len(x.Upgrades) != len(y.Upgrades) {
			return true
		}
		for k, ids := range x.Upgrades {
			if !slices.Equal(ids, y.Upgrades[k]) {
				return true
			}
		}
	}
	return false
}
