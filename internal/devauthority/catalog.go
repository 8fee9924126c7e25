package devauthority

import (
	"slices"

	"github.com/DoyleJ11/matchsync/internal/match"
	"github.com/DoyleJ11/matchsync/internal/protocol"
)

// Catalog is what the authority offers for sale.
type Catalog struct {
	Upgrades  []protocol.Upgrade
	Modifiers []protocol.Modifier
	Pieces    []protocol.PurchasablePiece
}

func DefaultCatalog() Catalog {
	return Catalog{
		Upgrades: []protocol.Upgrade{
			{ID: "pawn-double-step", Name: "Double Step", PieceType: "pawn", Cost: 15, Description: "Pawns may always advance two squares."},
			{ID: "knight-leap", Name: "Long Leap", PieceType: "knight", Cost: 25, Description: "Knights may jump one extra square."},
			{ID: "rook-fortify", Name: "Fortify", PieceType: "rook", Cost: 30, Description: "Rooks cannot be captured on their first rank."},
			{ID: "bishop-phase", Name: "Phase", PieceType: "bishop", Cost: 30, Description: "Bishops pass through one piece."},
		},
		Modifiers: []protocol.Modifier{
			{ID: "fog", Name: "Fog of War", Cost: 20, Description: "Opponent sees only its own half."},
			{ID: "tax", Name: "War Tax", Cost: 35, Description: "Captures pay double bounty."},
		},
		Pieces: []protocol.PurchasablePiece{
			{Type: "pawn", Cost: 10},
			{Type: "knight", Cost: 30},
			{Type: "bishop", Cost: 30},
			{Type: "rook", Cost: 50},
			{Type: "queen", Cost: 90},
		},
	}
}

func (c Catalog) upgrade(id string) (protocol.Upgrade, bool) {
	i := slices.IndexFunc(c.Upgrades, func(u protocol.Upgrade) bool { return u.ID == id })
	if i < 0 {
		return protocol.Upgrade{}, false
	}
	return c.Upgrades[i], true
}

func (c Catalog) modifier(id string) (protocol.Modifier, bool) {
	i := slices.IndexFunc(c.Modifiers, func(m protocol.Modifier) bool { return m.ID == id })
	if i < 0 {
		return protocol.Modifier{}, false
	}
	return c.Modifiers[i], true
}

func (c Catalog) piece(typ string) (protocol.PurchasablePiece, bool) {
	i := slices.IndexFunc(c.Pieces, func(p protocol.PurchasablePiece) bool { return p.Type == typ })
	if i < 0 {
		return protocol.PurchasablePiece{}, false
	}
	return c.Pieces[i], true
}

// UpgradesFor marks which upgrades team already owns.
func (c Catalog) UpgradesFor(team match.TeamState) []protocol.Upgrade {
	out := slices.Clone(c.Upgrades)
	for i, u := range out {
		out[i].Owned = slices.Contains(team.Upgrades[u.PieceType], u.ID)
	}
	return out
}

func (c Catalog) ModifiersFor(team match.TeamState) []protocol.Modifier {
	out := slices.Clone(c.Modifiers)
	for i, m := range out {
		out[i].Owned = slices.Contains(team.Modifiers, m.ID)
	}
	return out
}
