package reconcile

import "github.com/DoyleJ11/matchsync/internal/match"

// BoardSelection is the square picked in sub-game A and the destinations
// the authority advertised for it.
type BoardSelection struct {
	Selected     *match.Position  `json:"selected,omitempty"`
	Targets      []match.Position `json:"targets,omitempty"`
	ReserveIndex *int             `json:"reserveIndex,omitempty"`
}

type CardSelection struct {
	BetDraft *int `json:"betDraft,omitempty"`
}

// Local is UI state that never leaves the client.
type Local struct {
	Board BoardSelection `json:"board"`
	Card  CardSelection  `json:"card"`
}

func (l Local) Empty(slot match.Slot) bool {
	switch slot {
	case match.SlotBoard:
		return l.Board.Selected == nil && l.Board.Targets == nil && l.Board.ReserveIndex == nil
	case match.SlotCard:
		return l.Card.BetDraft == nil
	}
	return true
}

func (l Local) Cleared(slot match.Slot) Local {
	switch slot {
	case match.SlotBoard:
		l.Board = BoardSelection{}
	case match.SlotCard:
		l.Card = CardSelection{}
	}
	return l
}

func Select(s State, p match.Position) State {
	s.Local.Board = BoardSelection{Selected: &p}
	return s
}

func SelectReserve(s State, index int) State {
	s.Local.Board = BoardSelection{ReserveIndex: &index}
	return s
}

func SetBetDraft(s State, amount int) State {
	s.Local.Card.BetDraft = &amount
	return s
}

func ClearSelection(s State, slot match.Slot) State {
	s.Local = s.Local.Cleared(slot)
	return s
}
