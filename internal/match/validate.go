package match

import (
	"errors"
	"fmt"
)

var ErrMissingID = errors.New("match id missing")
var ErrUnknownStatus = errors.New("unknown match status")
var ErrNegativeEconomy = errors.New("negative economy")
var ErrOffGrid = errors.New("position outside the grid")
var ErrSquareConflict = errors.New("two pieces on one square")
var ErrDuplicateUnit = errors.New("duplicate unit id")
var ErrUnitInTwoPlaces = errors.New("unit both in barracks and on board")
var ErrUnknownTeam = errors.New("unknown team")

// Validate checks the invariants a snapshot must hold before it may replace
// the local view.
func (s State) Validate() error {
	if s.ID == "" {
		return ErrMissingID
	}
	if !s.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, s.Status)
	}
	for _, team := range []Team{TeamWhite, TeamBlack} {
		ts := s.Teams.Get(team)
		if ts.Economy < 0 {
			return fmt.Errorf("%w: %s has %d", ErrNegativeEconomy, team, ts.Economy)
		}
		for slot := range ts.Players {
			if !slot.Valid() {
				return fmt.Errorf("%s players: unknown slot %q", team, slot)
			}
		}
	}
	if s.WinCondition != nil && *s.WinCondition == "" {
		return fmt.Errorf("%w: empty win condition", ErrUnknownTeam)
	}

	onBoard := make(map[string]bool, len(s.SubGames.A.Pieces))
	occupied := make(map[Position]string, len(s.SubGames.A.Pieces))
	for _, pc := range s.SubGames.A.Pieces {
		if !pc.Position.InBounds() {
			return fmt.Errorf("%w: piece %s at %s", ErrOffGrid, pc.ID, pc.Position)
		}
		if !pc.Color.Valid() {
			return fmt.Errorf("%w: piece %s color %q", ErrUnknownTeam, pc.ID, pc.Color)
		}
		if other, ok := occupied[pc.Position]; ok {
			return fmt.Errorf("%w: %s and %s at %s", ErrSquareConflict, other, pc.ID, pc.Position)
		}
		occupied[pc.Position] = pc.ID
		if pc.ID == "" {
			continue
		}
		if onBoard[pc.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateUnit, pc.ID)
		}
		onBoard[pc.ID] = true
	}

	inBarracks := map[string]bool{}
	for _, team := range []Team{TeamWhite, TeamBlack} {
		for _, u := range s.Teams.Get(team).Barracks {
			if u.ID == "" {
				continue
			}
			if onBoard[u.ID] {
				return fmt.Errorf("%w: %s", ErrUnitInTwoPlaces, u.ID)
			}
			if inBarracks[u.ID] {
				return fmt.Errorf("%w: %s", ErrDuplicateUnit, u.ID)
			}
			inBarracks[u.ID] = true
		}
	}

	for team := range s.SubGames.B.Hands {
		if !team.Valid() {
			return fmt.Errorf("%w: hand for %q", ErrUnknownTeam, team)
		}
	}
	return nil
}
