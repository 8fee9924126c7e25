package projection

import (
	"maps"
	"slices"

	"github.com/DoyleJ11/matchsync/internal/match"
)

type HandView struct {
	Team   match.Team   `json:"team"`
	Cards  []match.Card `json:"cards"`
	Count  int          `json:"count"`
	Hidden bool         `json:"hidden"`
}

type CardView struct {
	MatchID    string               `json:"matchId"`
	Viewer     match.Role           `json:"viewer"`
	Phase      string               `json:"phase"`
	Pot        int                  `json:"pot"`
	CurrentBet int                  `json:"currentBet"`
	Turn       match.Team           `json:"turn"`
	YourTurn   bool                 `json:"yourTurn"`
	Community  []match.Card         `json:"community"`
	Player     HandView             `json:"player"`
	Opponent   HandView             `json:"opponent"`
	Bets       map[match.Team]int   `json:"bets"`
	Folded     map[match.Team]bool  `json:"folded"`
	Ready      map[match.Team]bool  `json:"ready"`
	Economy    map[match.Team]int   `json:"economy"`
	LastAction *match.BettingAction `json:"lastAction,omitempty"`
	Terminal   bool                 `json:"terminal"`
	Winner     *match.Team          `json:"winner,omitempty"`
}

// ProjectCardView renders sub-game B for viewer. Only the viewer's own
// hand, as the team's card player, is shown face up; every other hand is
// reduced to face-down placeholders unless the authority marked it
// revealed. The authority already redacts; this is a second layer.
func ProjectCardView(v match.View, viewer match.Role) CardView {
	game := v.SubGames.B
	out := CardView{
		MatchID:    v.ID,
		Viewer:     viewer,
		Phase:      game.Phase,
		Pot:        game.Pot,
		CurrentBet: game.CurrentBet,
		Turn:       game.Turn,
		Community:  slices.Clone(game.Community),
		Player:     handView(game, viewer.Team, viewer),
		Opponent:   handView(game, viewer.Team.Opponent(), viewer),
		Bets:       maps.Clone(game.Bets),
		Folded:     maps.Clone(game.Folded),
		Ready: map[match.Team]bool{
			match.TeamWhite: v.Teams.White.Players[match.SlotCard].Ready,
			match.TeamBlack: v.Teams.Black.Players[match.SlotCard].Ready,
		},
		Economy: map[match.Team]int{
			match.TeamWhite: v.Teams.White.Economy,
			match.TeamBlack: v.Teams.Black.Economy,
		},
		Terminal: game.Terminal || v.Terminal(),
	}
	if out.Community == nil {
		out.Community = []match.Card{}
	}
	if n := len(game.History); n > 0 {
		last := game.History[n-1]
		out.LastAction = &last
	}
	out.Winner = winner(game.Winner, v.WinCondition)
	out.YourTurn = viewer.Slot == match.SlotCard &&
		viewer.Team == game.Turn &&
		v.Status == match.StatusActive &&
		!out.Terminal &&
		!game.Folded[viewer.Team]
	return out
}

func handView(game match.CardGame, team match.Team, viewer match.Role) HandView {
	h := game.Hands[team]
	n := h.Size()
	visible := h.Revealed || (viewer.Slot == match.SlotCard && viewer.Team == team)
	if !visible {
		return HandView{Team: team, Cards: facedown(n), Count: n, Hidden: true}
	}
	cards := slices.Clone(h.Cards)
	if cards == nil {
		cards = []match.Card{}
	}
	return HandView{Team: team, Cards: cards, Count: n}
}

func facedown(n int) []match.Card {
	out := make([]match.Card, n)
	for i := range out {
		out[i] = match.Card{Hidden: true}
	}
	return out
}
