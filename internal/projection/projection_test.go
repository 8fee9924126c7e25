package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/matchsync/internal/match"
)

var (
	whiteA = match.Role{Team: match.TeamWhite, Slot: match.SlotBoard}
	whiteB = match.Role{Team: match.TeamWhite, Slot: match.SlotCard}
	blackB = match.Role{Team: match.TeamBlack, Slot: match.SlotCard}
)

func pos(r, c int) match.Position { return match.Position{Row: r, Col: c} }

func view() match.View {
	return match.View{
		Membership: match.Membership{Team: match.TeamWhite, Slot: match.SlotBoard},
		State: match.State{
			ID:     "m1",
			Status: match.StatusActive,
			Teams: match.Teams{
				White: match.TeamState{
					Economy:  40,
					Upgrades: map[string][]string{"pawn": {"double-step"}},
					Barracks: []match.ReserveUnit{{ID: "r1", Type: "knight"}},
					Players:  map[match.Slot]match.Player{match.SlotCard: {ID: "p2", Name: "wb", Ready: true}},
				},
				Black: match.TeamState{Economy: 25},
			},
			SubGames: match.SubGames{
				A: match.BoardGame{
					Turn: match.TeamWhite,
					Pieces: []match.Piece{
						{ID: "w1", Type: "pawn", Color: match.TeamWhite, Position: pos(2, 0)},
						{ID: "w2", Type: "pawn", Color: match.TeamWhite, Position: pos(3, 1)},
						{ID: "b1", Type: "pawn", Color: match.TeamBlack, Position: pos(4, 2)},
						{ID: "b2", Type: "rook", Color: match.TeamBlack, Position: pos(7, 7)},
					},
					History: []match.Move{{From: pos(1, 1), To: pos(3, 1), Piece: "pawn", Team: match.TeamWhite}},
				},
				B: match.CardGame{
					Phase:      "flop",
					Pot:        30,
					CurrentBet: 10,
					Turn:       match.TeamWhite,
					Community:  []match.Card{{Rank: "K", Suit: "h"}, {Rank: "7", Suit: "c"}, {Rank: "2", Suit: "d"}},
					Hands: map[match.Team]match.Hand{
						match.TeamWhite: {Cards: []match.Card{{Rank: "A", Suit: "s"}, {Rank: "A", Suit: "d"}}},
						match.TeamBlack: {Cards: []match.Card{{Rank: "Q", Suit: "s"}, {Rank: "J", Suit: "s"}}},
					},
					Bets:    map[match.Team]int{match.TeamWhite: 10, match.TeamBlack: 10},
					History: []match.BettingAction{{Team: match.TeamBlack, Action: "call", Amount: 10}},
				},
			},
		},
	}
}

func TestProjectBoardView_Idempotent(t *testing.T) {
	v := view()
	before := v.Clone()

	first := ProjectBoardView(v, whiteA)
	second := ProjectBoardView(v, whiteA)
	assert.Equal(t, first, second)
	assert.Equal(t, before, v, "input view is not mutated")

	cardFirst := ProjectCardView(v, blackB)
	cardSecond := ProjectCardView(v, blackB)
	assert.Equal(t, cardFirst, cardSecond)
	assert.Equal(t, before, v)
}

func TestProjectBoardView_ZoneControlFromOccupancy(t *testing.T) {
	bv := ProjectBoardView(view(), whiteA)

	require.Len(t, bv.Zones, 3)
	assert.Equal(t, match.ZoneStatus{Zone: "A", White: 2, Black: 1, Controller: match.ControllerWhite}, bv.Zones[0])
	assert.Equal(t, match.ControllerNeutral, bv.Zones[1].Controller)
	assert.Equal(t, match.ControllerNeutral, bv.Zones[2].Controller)

	assert.Equal(t, "A", bv.Squares[2][0].Zone)
	assert.Equal(t, "B", bv.Squares[5][3].Zone)
	assert.Empty(t, bv.Squares[0][0].Zone)
	assert.Empty(t, bv.Squares[7][7].Zone)
}

func TestProjectBoardView_Squares(t *testing.T) {
	bv := ProjectBoardView(view(), whiteA)

	require.NotNil(t, bv.Squares[7][7].Piece)
	assert.Equal(t, "b2", bv.Squares[7][7].Piece.ID)
	assert.Nil(t, bv.Squares[0][0].Piece)
	assert.Equal(t, pos(4, 2), bv.Squares[4][2].Position)

	require.NotNil(t, bv.LastMove)
	assert.Equal(t, pos(3, 1), bv.LastMove.To)
	assert.Equal(t, 40, bv.Economy[match.TeamWhite])
	assert.Equal(t, 25, bv.Economy[match.TeamBlack])
	assert.Len(t, bv.Barracks[match.TeamWhite], 1)
	assert.Empty(t, bv.Barracks[match.TeamBlack])
	assert.Equal(t, map[string][]string{"pawn": {"double-step"}}, bv.Upgrades)
}

func TestProjectBoardView_OutputDoesNotAliasInput(t *testing.T) {
	v := view()
	bv := ProjectBoardView(v, whiteA)
	bv.Squares[2][0].Piece.Type = "queen"
	bv.Barracks[match.TeamWhite][0].Type = "bishop"
	bv.Upgrades["pawn"][0] = "changed"

	assert.Equal(t, "pawn", v.SubGames.A.Pieces[0].Type)
	assert.Equal(t, "knight", v.Teams.White.Barracks[0].Type)
	assert.Equal(t, "double-step", v.Teams.White.Upgrades["pawn"][0])
}

func TestProjectBoardView_YourTurn(t *testing.T) {
	won := match.TeamBlack
	cases := []struct {
		name   string
		viewer match.Role
		mutate func(*match.View)
		want   bool
	}{
		{name: "board player on turn", viewer: whiteA, mutate: func(*match.View) {}, want: true},
		{name: "opponent's turn", viewer: match.Role{Team: match.TeamBlack, Slot: match.SlotBoard}, mutate: func(*match.View) {}, want: false},
		{name: "card player never moves pieces", viewer: whiteB, mutate: func(*match.View) {}, want: false},
		{name: "waiting match", viewer: whiteA, mutate: func(v *match.View) { v.Status = match.StatusWaiting }, want: false},
		{name: "match over", viewer: whiteA, mutate: func(v *match.View) { v.WinCondition = &won }, want: false},
		{name: "board finished", viewer: whiteA, mutate: func(v *match.View) { v.SubGames.A.Terminal = true }, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := view()
			tc.mutate(&v)
			assert.Equal(t, tc.want, ProjectBoardView(v, tc.viewer).YourTurn)
		})
	}
}

func TestProjectBoardView_Winner(t *testing.T) {
	v := view()
	black := match.TeamBlack
	v.WinCondition = &black
	bv := ProjectBoardView(v, whiteA)
	assert.True(t, bv.Terminal)
	require.NotNil(t, bv.Winner)
	assert.Equal(t, match.TeamBlack, *bv.Winner)
}

func TestProjectCardView_Redaction(t *testing.T) {
	cases := []struct {
		name         string
		viewer       match.Role
		revealBlack  bool
		playerHidden bool
		oppHidden    bool
	}{
		{name: "own card player sees own hand", viewer: whiteB, playerHidden: false, oppHidden: true},
		{name: "other card player", viewer: blackB, playerHidden: false, oppHidden: true},
		{name: "board player sees nothing", viewer: whiteA, playerHidden: true, oppHidden: true},
		{name: "showdown reveals opponent", viewer: whiteB, revealBlack: true, playerHidden: false, oppHidden: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := view()
			if tc.revealBlack {
				h := v.SubGames.B.Hands[match.TeamBlack]
				h.Revealed = true
				v.SubGames.B.Hands[match.TeamBlack] = h
			}
			cv := ProjectCardView(v, tc.viewer)

			assert.Equal(t, tc.viewer.Team, cv.Player.Team)
			assert.Equal(t, tc.viewer.Team.Opponent(), cv.Opponent.Team)
			assert.Equal(t, tc.playerHidden, cv.Player.Hidden)
			assert.Equal(t, tc.oppHidden, cv.Opponent.Hidden)
			assert.Equal(t, 2, cv.Player.Count)
			assert.Equal(t, 2, cv.Opponent.Count)

			for _, hv := range []HandView{cv.Player, cv.Opponent} {
				require.Len(t, hv.Cards, 2)
				for _, c := range hv.Cards {
					if hv.Hidden {
						assert.Equal(t, match.Card{Hidden: true}, c, "no rank or suit leaks")
					} else {
						assert.NotEmpty(t, c.Rank)
					}
				}
			}
		})
	}
}

func TestProjectCardView_CountOnlyHand(t *testing.T) {
	v := view()
	v.SubGames.B.Hands[match.TeamBlack] = match.Hand{Count: 2}
	cv := ProjectCardView(v, whiteB)
	assert.True(t, cv.Opponent.Hidden)
	assert.Equal(t, 2, cv.Opponent.Count)
	assert.Len(t, cv.Opponent.Cards, 2)
}

func TestProjectCardView_Fields(t *testing.T) {
	cv := ProjectCardView(view(), whiteB)

	assert.Equal(t, "flop", cv.Phase)
	assert.Equal(t, 30, cv.Pot)
	assert.Equal(t, 10, cv.CurrentBet)
	assert.Len(t, cv.Community, 3)
	assert.True(t, cv.YourTurn)
	assert.True(t, cv.Ready[match.TeamWhite])
	assert.False(t, cv.Ready[match.TeamBlack])
	require.NotNil(t, cv.LastAction)
	assert.Equal(t, "call", cv.LastAction.Action)
	assert.Nil(t, cv.Winner)
}

func TestProjectCardView_FoldedIsNotOnTurn(t *testing.T) {
	v := view()
	v.SubGames.B.Folded = map[match.Team]bool{match.TeamWhite: true}
	assert.False(t, ProjectCardView(v, whiteB).YourTurn)
	assert.False(t, ProjectCardView(v, blackB).YourTurn, "black is not on turn")
}

func TestProjectCardView_EmptyGame(t *testing.T) {
	v := view()
	v.SubGames.B = match.CardGame{}
	cv := ProjectCardView(v, whiteB)
	assert.NotNil(t, cv.Community)
	assert.Equal(t, 0, cv.Player.Count)
	assert.Empty(t, cv.Player.Cards)
	assert.Nil(t, cv.LastAction)
}
