// Package projection turns a match view into the two renderable sub-game
// views. Every function here is pure: it reads the view, never writes it,
// and returns the same output for the same input.
package projection

import (
	"slices"

	"github.com/DoyleJ11/matchsync/internal/match"
)

type Square struct {
	Position match.Position `json:"position"`
	Piece    *match.Piece   `json:"piece,omitempty"`
	Zone     string         `json:"zone,omitempty"`
}

type BoardView struct {
	MatchID  string                                   `json:"matchId"`
	Viewer   match.Role                               `json:"viewer"`
	Status   match.Status                             `json:"status"`
	Turn     match.Team                               `json:"turn"`
	YourTurn bool                                     `json:"yourTurn"`
	Squares  [match.BoardSize][match.BoardSize]Square `json:"squares"`
	Zones    []match.ZoneStatus                       `json:"zones"`
	Barracks map[match.Team][]match.ReserveUnit       `json:"barracks"`
	Economy  map[match.Team]int                       `json:"economy"`
	Upgrades map[string][]string                      `json:"upgrades"`
	LastMove *match.Move                              `json:"lastMove,omitempty"`
	Terminal bool                                     `json:"terminal"`
	Winner   *match.Team                              `json:"winner,omitempty"`
}

// ProjectBoardView renders sub-game A for viewer. Zone control is counted
// afresh from piece occupancy on every call.
func ProjectBoardView(v match.View, viewer match.Role) BoardView {
	board := v.SubGames.A
	out := BoardView{
		MatchID:  v.ID,
		Viewer:   viewer,
		Status:   v.Status,
		Turn:     board.Turn,
		Zones:    match.DeriveControl(board),
		Terminal: board.Terminal || v.Terminal(),
		Barracks: map[match.Team][]match.ReserveUnit{
			match.TeamWhite: slices.Clone(v.Teams.White.Barracks),
			match.TeamBlack: slices.Clone(v.Teams.Black.Barracks),
		},
		Economy: map[match.Team]int{
			match.TeamWhite: v.Teams.White.Economy,
			match.TeamBlack: v.Teams.Black.Economy,
		},
		Upgrades: cloneUpgrades(ownTeam(v, viewer).Upgrades),
	}

	for r := range match.BoardSize {
		for c := range match.BoardSize {
			p := match.Position{Row: r, Col: c}
			sq := Square{Position: p}
			if z, ok := match.ZoneAt(p); ok {
				sq.Zone = z.Name
			}
			out.Squares[r][c] = sq
		}
	}
	for _, pc := range board.Pieces {
		out.Squares[pc.Position.Row][pc.Position.Col].Piece = &pc
	}

	if last, ok := board.LastMove(); ok {
		out.LastMove = &last
	}
	out.Winner = winner(board.Winner, v.WinCondition)
	out.YourTurn = viewer.Slot == match.SlotBoard &&
		viewer.Team == board.Turn &&
		v.Status == match.StatusActive &&
		!out.Terminal
	return out
}

func ownTeam(v match.View, viewer match.Role) match.TeamState {
	if viewer.Team == match.TeamBlack {
		return v.Teams.Black
	}
	return v.Teams.White
}

func cloneUpgrades(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, ids := range in {
		out[k] = slices.Clone(ids)
	}
	return out
}

func winner(sub, overall *match.Team) *match.Team {
	for _, w := range []*match.Team{sub, overall} {
		if w != nil {
			cp := *w
			return &cp
		}
	}
	return nil
}
