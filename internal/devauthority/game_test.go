package devauthority

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/matchsync/internal/match"
	"github.com/DoyleJ11/matchsync/internal/protocol"
)

var (
	whiteBoard = match.Role{Team: match.TeamWhite, Slot: match.SlotBoard}
	blackBoard = match.Role{Team: match.TeamBlack, Slot: match.SlotBoard}
	whiteCard  = match.Role{Team: match.TeamWhite, Slot: match.SlotCard}
	blackCard  = match.Role{Team: match.TeamBlack, Slot: match.SlotCard}
)

func pos(r, c int) match.Position { return match.Position{Row: r, Col: c} }

func activeGame() Game {
	g := NewGame("M1", 100)
	g.State.Status = match.StatusActive
	return g
}

// movePiece teleports whatever stands on from, for arranging positions.
func movePiece(g *Game, from, to match.Position) {
	i := pieceIndex(g.State.SubGames.A.Pieces, from)
	g.State.SubGames.A.Pieces[i].Position = to
}

func TestNewGame_Layout(t *testing.T) {
	g := NewGame("M1", 50)

	assert.Equal(t, match.StatusWaiting, g.State.Status)
	assert.Len(t, g.State.SubGames.A.Pieces, 32)
	assert.Equal(t, match.TeamWhite, g.State.SubGames.A.Turn)
	assert.Equal(t, 50, g.State.Teams.White.Economy)
	assert.Equal(t, 50, g.State.Teams.Black.Economy)
	assert.Equal(t, PhaseWaiting, g.State.SubGames.B.Phase)
	require.NoError(t, g.State.Validate())

	king, ok := g.State.SubGames.A.PieceAt(pos(0, 4))
	require.True(t, ok)
	assert.Equal(t, "king", king.Type)
	assert.Equal(t, match.TeamWhite, king.Color)
	assert.Empty(t, match.DeriveControl(g.State.SubGames.A)[0].White)
}

func TestApply_Move(t *testing.T) {
	g := activeGame()

	events, next, err := Apply(g, whiteBoard, protocol.MakeMove{From: pos(1, 0), To: pos(2, 0), GameSlot: match.SlotBoard}, DefaultCatalog())
	require.NoError(t, err)
	require.True(t, ContainsEvent(events, EvtMoved))

	_, ok := next.State.SubGames.A.PieceAt(pos(2, 0))
	assert.True(t, ok)
	_, ok = next.State.SubGames.A.PieceAt(pos(1, 0))
	assert.False(t, ok)
	assert.Equal(t, match.TeamBlack, next.State.SubGames.A.Turn)
	last, ok := next.State.SubGames.A.LastMove()
	require.True(t, ok)
	assert.Equal(t, "pawn", last.Piece)

	// Input untouched.
	_, ok = g.State.SubGames.A.PieceAt(pos(1, 0))
	assert.True(t, ok)
	assert.Empty(t, g.State.SubGames.A.History)
}

func TestApply_MoveRefusals(t *testing.T) {
	waiting := NewGame("M1", 100)

	tests := []struct {
		name string
		g    Game
		seat match.Role
		cmd  protocol.MakeMove
		want error
	}{
		{"card seat", activeGame(), whiteCard, protocol.MakeMove{From: pos(1, 0), To: pos(2, 0), GameSlot: match.SlotBoard}, ErrWrongSlot},
		{"card slot in payload", activeGame(), whiteBoard, protocol.MakeMove{From: pos(1, 0), To: pos(2, 0), GameSlot: match.SlotCard}, ErrWrongSlot},
		{"not started", waiting, whiteBoard, protocol.MakeMove{From: pos(1, 0), To: pos(2, 0), GameSlot: match.SlotBoard}, ErrMatchNotActive},
		{"black to move first", activeGame(), blackBoard, protocol.MakeMove{From: pos(6, 0), To: pos(5, 0), GameSlot: match.SlotBoard}, ErrWrongTurn},
		{"off board", activeGame(), whiteBoard, protocol.MakeMove{From: pos(1, 0), To: pos(8, 0), GameSlot: match.SlotBoard}, ErrOffBoard},
		{"null move", activeGame(), whiteBoard, protocol.MakeMove{From: pos(1, 0), To: pos(1, 0), GameSlot: match.SlotBoard}, ErrNullMove},
		{"empty square", activeGame(), whiteBoard, protocol.MakeMove{From: pos(3, 3), To: pos(4, 3), GameSlot: match.SlotBoard}, ErrNoPiece},
		{"opponent piece", activeGame(), whiteBoard, protocol.MakeMove{From: pos(6, 0), To: pos(5, 0), GameSlot: match.SlotBoard}, ErrNoPiece},
		{"own piece on target", activeGame(), whiteBoard, protocol.MakeMove{From: pos(0, 0), To: pos(1, 0), GameSlot: match.SlotBoard}, ErrOccupied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, next, err := Apply(tt.g, tt.seat, tt.cmd, DefaultCatalog())
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, events)
			assert.Equal(t, tt.g.State.SubGames.A.Pieces, next.State.SubGames.A.Pieces)
		})
	}
}

func TestApply_CapturePaysBounty(t *testing.T) {
	g := activeGame()
	movePiece(&g, pos(6, 1), pos(2, 1))

	_, next, err := Apply(g, whiteBoard, protocol.MakeMove{From: pos(1, 0), To: pos(2, 1), GameSlot: match.SlotBoard}, DefaultCatalog())
	require.NoError(t, err)

	assert.Len(t, next.State.SubGames.A.Pieces, 31)
	assert.Equal(t, 100+captureBounty, next.State.Teams.White.Economy)
	last, _ := next.State.SubGames.A.LastMove()
	assert.Equal(t, "pawn", last.Captured)
	assert.Nil(t, next.State.WinCondition)
}

func TestApply_KingCaptureEndsMatch(t *testing.T) {
	g := activeGame()
	movePiece(&g, pos(7, 4), pos(2, 1))

	events, next, err := Apply(g, whiteBoard, protocol.MakeMove{From: pos(1, 0), To: pos(2, 1), GameSlot: match.SlotBoard}, DefaultCatalog())
	require.NoError(t, err)
	require.True(t, ContainsEvent(events, EvtMatchCompleted))

	require.NotNil(t, next.State.WinCondition)
	assert.Equal(t, match.TeamWhite, *next.State.WinCondition)
	assert.Equal(t, match.StatusCompleted, next.State.Status)
	assert.True(t, next.State.SubGames.A.Terminal)

	_, _, err = Apply(next, blackBoard, protocol.MakeMove{From: pos(6, 0), To: pos(5, 0), GameSlot: match.SlotBoard}, DefaultCatalog())
	assert.ErrorIs(t, err, ErrMatchCompleted)
}

func TestApply_PurchasePiece(t *testing.T) {
	g := activeGame()
	cat := DefaultCatalog()

	events, next, err := Apply(g, whiteCard, protocol.PurchasePiece{PieceType: "knight"}, cat)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EvtPiecePurchased, events[0].Type)
	assert.Equal(t, 30, events[0].Cost)
	assert.Equal(t, 70, next.State.Teams.White.Economy)
	require.Len(t, next.State.Teams.White.Barracks, 1)
	assert.Equal(t, "white-knight-r1", next.State.Teams.White.Barracks[0].ID)

	_, _, err = Apply(next, whiteCard, protocol.PurchasePiece{PieceType: "queen"}, cat)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, _, err = Apply(next, whiteCard, protocol.PurchasePiece{PieceType: "dragon"}, cat)
	assert.ErrorIs(t, err, ErrUnknownItem)
}

func TestApply_Placement(t *testing.T) {
	cat := DefaultCatalog()
	_, g, err := Apply(activeGame(), whiteBoard, protocol.PurchasePiece{PieceType: "pawn"}, cat)
	require.NoError(t, err)

	_, _, err = Apply(g, whiteBoard, protocol.PlaceFromBarracks{PieceIndex: 1, TargetPosition: pos(3, 3)}, cat)
	assert.ErrorIs(t, err, ErrBadIndex)
	_, _, err = Apply(g, whiteBoard, protocol.PlaceFromBarracks{PieceIndex: 0, TargetPosition: pos(1, 1)}, cat)
	assert.ErrorIs(t, err, ErrOccupied)
	_, _, err = Apply(g, whiteCard, protocol.PlaceFromBarracks{PieceIndex: 0, TargetPosition: pos(3, 3)}, cat)
	assert.ErrorIs(t, err, ErrWrongSlot)

	events, next, err := Apply(g, whiteBoard, protocol.PlaceFromBarracks{PieceIndex: 0, TargetPosition: pos(3, 3)}, cat)
	require.NoError(t, err)
	require.True(t, ContainsEvent(events, EvtPiecePlaced))

	pc, ok := next.State.SubGames.A.PieceAt(pos(3, 3))
	require.True(t, ok)
	assert.Equal(t, "white-pawn-r1", pc.ID)
	assert.Empty(t, next.State.Teams.White.Barracks)
	last, _ := next.State.SubGames.A.LastMove()
	assert.True(t, last.Placement)
	require.NoError(t, next.State.Validate())
}

func TestApply_UpgradesAndModifiers(t *testing.T) {
	cat := DefaultCatalog()
	g := activeGame()

	_, g, err := Apply(g, blackBoard, protocol.PurchaseUpgrade{UpgradeID: "pawn-double-step"}, cat)
	require.NoError(t, err)
	assert.Equal(t, []string{"pawn-double-step"}, g.State.Teams.Black.Upgrades["pawn"])
	assert.Equal(t, 85, g.State.Teams.Black.Economy)

	_, _, err = Apply(g, blackBoard, protocol.PurchaseUpgrade{UpgradeID: "pawn-double-step"}, cat)
	assert.ErrorIs(t, err, ErrAlreadyOwned)

	_, g, err = Apply(g, blackBoard, protocol.PurchaseModifier{ModifierID: "fog"}, cat)
	require.NoError(t, err)
	assert.Equal(t, []string{"fog"}, g.State.Teams.Black.Modifiers)
	assert.Equal(t, 65, g.State.Teams.Black.Economy)

	_, _, err = Apply(g, blackBoard, protocol.PurchaseModifier{ModifierID: "fog"}, cat)
	assert.ErrorIs(t, err, ErrAlreadyOwned)
	_, _, err = Apply(g, blackBoard, protocol.PurchaseModifier{ModifierID: "nope"}, cat)
	assert.ErrorIs(t, err, ErrUnknownItem)

	owned := cat.UpgradesFor(g.State.Teams.Black)
	for _, u := range owned {
		assert.Equal(t, u.ID == "pawn-double-step", u.Owned, u.ID)
	}
}

func TestApply_Admin(t *testing.T) {
	cat := DefaultCatalog()
	g := activeGame()

	_, g, err := Apply(g, whiteBoard, protocol.AdminUpdateEconomy{Team: match.TeamBlack, Amount: 7}, cat)
	require.NoError(t, err)
	assert.Equal(t, 7, g.State.Teams.Black.Economy)

	_, _, err = Apply(g, whiteBoard, protocol.AdminUpdateEconomy{Team: match.TeamBlack, Amount: -1}, cat)
	assert.ErrorIs(t, err, ErrBadAmount)
	_, _, err = Apply(g, whiteBoard, protocol.AdminUpdateEconomy{Team: "green", Amount: 1}, cat)
	assert.ErrorIs(t, err, ErrUnknownTeam)

	toggle := protocol.AdminToggleUpgrade{Team: match.TeamWhite, UpgradeID: "knight-leap"}
	_, g, err = Apply(g, whiteBoard, toggle, cat)
	require.NoError(t, err)
	assert.Equal(t, []string{"knight-leap"}, g.State.Teams.White.Upgrades["knight"])
	_, g, err = Apply(g, whiteBoard, toggle, cat)
	require.NoError(t, err)
	assert.Empty(t, g.State.Teams.White.Upgrades["knight"])

	_, g, err = Apply(g, whiteBoard, toggle, cat)
	require.NoError(t, err)
	_, g, err = Apply(g, whiteBoard, protocol.AdminResetUpgrades{}, cat)
	require.NoError(t, err)
	assert.Empty(t, g.State.Teams.White.Upgrades)
	// Economy is untouched by admin upgrade changes.
	assert.Equal(t, 100, g.State.Teams.White.Economy)
}

func TestApply_Unsupported(t *testing.T) {
	_, _, err := Apply(activeGame(), whiteBoard, protocol.GetMatchState{}, DefaultCatalog())
	assert.ErrorIs(t, err, ErrUnsupportedCommand)
}

func TestReachable(t *testing.T) {
	g := NewGame("M1", 0)

	assert.ElementsMatch(t, []match.Position{pos(2, 0), pos(2, 1)}, Reachable(g.State, pos(1, 0)))
	assert.Empty(t, Reachable(g.State, pos(4, 4)))
	assert.NotNil(t, Reachable(g.State, pos(4, 4)))
	// Back-rank pieces are boxed in by their own side.
	assert.Empty(t, Reachable(g.State, pos(0, 4)))
}
