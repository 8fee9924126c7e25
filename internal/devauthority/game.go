package devauthority

import (
	"errors"
	"fmt"
	"slices"

	"github.com/DoyleJ11/matchsync/internal/match"
	"github.com/DoyleJ11/matchsync/internal/protocol"
)

var ErrMatchCompleted = errors.New("match already completed")
var ErrMatchNotActive = errors.New("match has not started")
var ErrWrongSlot = errors.New("action belongs to the other sub-game")
var ErrWrongTurn = errors.New("not your turn")
var ErrNoPiece = errors.New("no piece of yours on that square")
var ErrOffBoard = errors.New("position is off the board")
var ErrNullMove = errors.New("piece must move")
var ErrOccupied = errors.New("square is occupied")
var ErrInsufficientFunds = errors.New("insufficient funds")
var ErrUnknownItem = errors.New("unknown item")
var ErrAlreadyOwned = errors.New("already owned")
var ErrBadIndex = errors.New("no unit at that barracks index")
var ErrIllegalBet = errors.New("illegal betting action")
var ErrNoHand = errors.New("no hand in progress")
var ErrHandLive = errors.New("hand already in progress")
var ErrUnknownTeam = errors.New("unknown team")
var ErrBadAmount = errors.New("invalid amount")
var ErrUnsupportedCommand = errors.New("unsupported command")

// Card game phases.
const (
	PhaseWaiting  = "waiting"
	PhasePreflop  = "preflop"
	PhaseFlop     = "flop"
	PhaseTurn     = "turn"
	PhaseRiver    = "river"
	PhaseShowdown = "showdown"
)

const (
	captureBounty = 10
	kingType      = "king"
	handsPerLevel = 5
)

// Game is the authority's full record of one match: the canonical state
// shipped to clients plus the bookkeeping it never ships.
type Game struct {
	State      match.State
	Deck       []match.Card
	Acted      map[match.Team]bool
	Dealer     match.Team
	HandNo     int
	BlindLevel int
	NextUnit   int
}

func (g Game) Clone() Game {
	out := g
	out.State = g.State.Clone()
	out.Deck = slices.Clone(g.Deck)
	out.Acted = map[match.Team]bool{}
	for k, v := range g.Acted {
		out.Acted[k] = v
	}
	return out
}

func (g Game) blinds() protocol.BlindAmounts {
	lvl := max(g.BlindLevel, 1)
	return protocol.BlindAmounts{Small: 5 * lvl, Big: 10 * lvl}
}

type EventType string

const (
	EvtMoved             EventType = "Moved"
	EvtBetPlaced         EventType = "BetPlaced"
	EvtPiecePurchased    EventType = "PiecePurchased"
	EvtPiecePlaced       EventType = "PiecePlaced"
	EvtStateChanged      EventType = "StateChanged"
	EvtDealRequested     EventType = "DealRequested"
	EvtHandDealt         EventType = "HandDealt"
	EvtBlindLevelChanged EventType = "BlindLevelChanged"
	EvtHandFinished      EventType = "HandFinished"
	EvtMatchCompleted    EventType = "MatchCompleted"
)

type Event struct {
	Type      EventType
	Team      match.Team
	Slot      match.Slot
	Move      *match.Move
	PieceType string
	Cost      int
	Target    match.Position
	Winner    *match.Team
}

// NewGame lays out a standard back rank and pawn row for each team.
func NewGame(id string, economy int) Game {
	back := []string{"rook", "knight", "bishop", "queen", "king", "bishop", "knight", "rook"}
	var pieces []match.Piece
	for col, typ := range back {
		pieces = append(pieces,
			match.Piece{ID: fmt.Sprintf("w-%s-%d", typ, col), Type: typ, Color: match.TeamWhite, Position: match.Position{Row: 0, Col: col}},
			match.Piece{ID: fmt.Sprintf("w-pawn-%d", col), Type: "pawn", Color: match.TeamWhite, Position: match.Position{Row: 1, Col: col}},
			match.Piece{ID: fmt.Sprintf("b-pawn-%d", col), Type: "pawn", Color: match.TeamBlack, Position: match.Position{Row: 6, Col: col}},
			match.Piece{ID: fmt.Sprintf("b-%s-%d", typ, col), Type: typ, Color: match.TeamBlack, Position: match.Position{Row: 7, Col: col}},
		)
	}
	team := func() match.TeamState {
		return match.TeamState{
			Economy:   economy,
			Upgrades:  map[string][]string{},
			Modifiers: []string{},
			Barracks:  []match.ReserveUnit{},
			Players:   map[match.Slot]match.Player{},
		}
	}
	return Game{
		State: match.State{
			ID:     id,
			Status: match.StatusWaiting,
			Teams:  match.Teams{White: team(), Black: team()},
			SubGames: match.SubGames{
				A: match.BoardGame{Pieces: pieces, History: []match.Move{}, Turn: match.TeamWhite},
				B: match.CardGame{
					Phase:     PhaseWaiting,
					Turn:      match.TeamWhite,
					Community: []match.Card{},
					Hands:     map[match.Team]match.Hand{},
					Bets:      map[match.Team]int{match.TeamWhite: 0, match.TeamBlack: 0},
					Folded:    map[match.Team]bool{},
					History:   []match.BettingAction{},
				},
			},
		},
		Acted:  map[match.Team]bool{},
		Dealer: match.TeamWhite,
	}
}

// Apply runs one client command for the member seated at seat. It checks
// turn order, ownership and funds but not piece movement rules.
func Apply(g Game, seat match.Role, cmd protocol.Outbound, cat Catalog) ([]Event, Game, error) {
	if g.State.Status == match.StatusCompleted {
		return nil, g, ErrMatchCompleted
	}
	next := g.Clone()
	var (
		events []Event
		err    error
	)
	switch c := cmd.(type) {
	case protocol.MakeMove:
		events, err = applyMove(&next, seat, c)
	case protocol.PlaceFromBarracks:
		events, err = applyPlacement(&next, seat, c)
	case protocol.PurchasePiece:
		events, err = applyPurchasePiece(&next, seat, c, cat)
	case protocol.PurchaseUpgrade:
		events, err = applyPurchaseUpgrade(&next, seat, c, cat)
	case protocol.PurchaseModifier:
		events, err = applyPurchaseModifier(&next, seat, c, cat)
	case protocol.PokerAction:
		events, err = applyBet(&next, seat, c)
	case protocol.PokerReady:
		events, err = applyReady(&next, seat, c)
	case protocol.AdminUpdateEconomy:
		if !c.Team.Valid() {
			return nil, g, ErrUnknownTeam
		}
		if c.Amount < 0 {
			return nil, g, ErrBadAmount
		}
		next.State.Teams.Get(c.Team).Economy = c.Amount
		events = []Event{{Type: EvtStateChanged, Team: c.Team}}
	case protocol.AdminToggleUpgrade:
		events, err = applyToggleUpgrade(&next, c, cat)
	case protocol.AdminResetUpgrades:
		teams := []match.Team{c.Team}
		if c.Team == "" {
			teams = []match.Team{match.TeamWhite, match.TeamBlack}
		} else if !c.Team.Valid() {
			return nil, g, ErrUnknownTeam
		}
		for _, t := range teams {
			next.State.Teams.Get(t).Upgrades = map[string][]string{}
		}
		events = []Event{{Type: EvtStateChanged, Team: c.Team}}
	default:
		return nil, g, fmt.Errorf("%w: %s", ErrUnsupportedCommand, cmd.EventName())
	}
	if err != nil {
		return nil, g, err
	}
	return events, next, nil
}

func pieceIndex(pieces []match.Piece, p match.Position) int {
	return slices.IndexFunc(pieces, func(pc match.Piece) bool { return pc.Position == p })
}

func applyMove(g *Game, seat match.Role, c protocol.MakeMove) ([]Event, error) {
	s := &g.State
	board := &s.SubGames.A
	switch {
	case seat.Slot != match.SlotBoard || c.GameSlot != match.SlotBoard:
		return nil, ErrWrongSlot
	case s.Status != match.StatusActive:
		return nil, ErrMatchNotActive
	case board.Turn != seat.Team:
		return nil, ErrWrongTurn
	case !c.From.InBounds() || !c.To.InBounds():
		return nil, ErrOffBoard
	case c.From == c.To:
		return nil, ErrNullMove
	}
	i := pieceIndex(board.Pieces, c.From)
	if i < 0 || board.Pieces[i].Color != seat.Team {
		return nil, ErrNoPiece
	}
	mover := board.Pieces[i]

	var captured string
	if j := pieceIndex(board.Pieces, c.To); j >= 0 {
		if board.Pieces[j].Color == seat.Team {
			return nil, ErrOccupied
		}
		captured = board.Pieces[j].Type
		board.Pieces = slices.Delete(board.Pieces, j, j+1)
	}
	i = slices.IndexFunc(board.Pieces, func(pc match.Piece) bool { return pc.ID == mover.ID && pc.Position == c.From })
	board.Pieces[i].Position = c.To

	mv := match.Move{From: c.From, To: c.To, Piece: mover.Type, Team: seat.Team, Captured: captured}
	board.History = append(board.History, mv)
	board.Turn = seat.Team.Opponent()
	events := []Event{{Type: EvtMoved, Team: seat.Team, Slot: match.SlotBoard, Move: &mv}}

	if captured != "" {
		s.Teams.Get(seat.Team).Economy += captureBounty
	}
	if captured == kingType {
		winner := seat.Team
		board.Terminal = true
		board.Winner = &winner
		s.WinCondition = &winner
		s.Status = match.StatusCompleted
		events = append(events, Event{Type: EvtMatchCompleted, Team: seat.Team, Winner: &winner})
	}
	return events, nil
}

// Reachable lists the squares one step from p not held by the piece's own
// team. Movement rules live elsewhere; this is enough to drive a client.
func Reachable(s match.State, p match.Position) []match.Position {
	pc, ok := s.SubGames.A.PieceAt(p)
	if !ok {
		return []match.Position{}
	}
	out := []match.Position{}
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			q := match.Position{Row: p.Row + dr, Col: p.Col + dc}
			if q == p || !q.InBounds() {
				continue
			}
			if other, ok := s.SubGames.A.PieceAt(q); ok && other.Color == pc.Color {
				continue
			}
			out = append(out, q)
		}
	}
	return out
}

func applyPlacement(g *Game, seat match.Role, c protocol.PlaceFromBarracks) ([]Event, error) {
	s := &g.State
	team := s.Teams.Get(seat.Team)
	switch {
	case seat.Slot != match.SlotBoard:
		return nil, ErrWrongSlot
	case c.PieceIndex < 0 || c.PieceIndex >= len(team.Barracks):
		return nil, ErrBadIndex
	case !c.TargetPosition.InBounds():
		return nil, ErrOffBoard
	case pieceIndex(s.SubGames.A.Pieces, c.TargetPosition) >= 0:
		return nil, ErrOccupied
	}
	unit := team.Barracks[c.PieceIndex]
	team.Barracks = slices.Delete(team.Barracks, c.PieceIndex, c.PieceIndex+1)
	s.SubGames.A.Pieces = append(s.SubGames.A.Pieces, match.Piece{
		ID: unit.ID, Type: unit.Type, Color: seat.Team, Position: c.TargetPosition,
	})
	s.SubGames.A.History = append(s.SubGames.A.History, match.Move{
		To: c.TargetPosition, Piece: unit.Type, Team: seat.Team, Placement: true,
	})
	return []Event{{Type: EvtPiecePlaced, Team: seat.Team, PieceType: unit.Type, Target: c.TargetPosition}}, nil
}

func charge(team *match.TeamState, cost int) error {
	if team.Economy < cost {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientFunds, cost, team.Economy)
	}
	team.Economy -= cost
	return nil
}

func applyPurchasePiece(g *Game, seat match.Role, c protocol.PurchasePiece, cat Catalog) ([]Event, error) {
	item, ok := cat.piece(c.PieceType)
	if !ok {
		return nil, fmt.Errorf("%w: piece %q", ErrUnknownItem, c.PieceType)
	}
	team := g.State.Teams.Get(seat.Team)
	if err := charge(team, item.Cost); err != nil {
		return nil, err
	}
	g.NextUnit++
	team.Barracks = append(team.Barracks, match.ReserveUnit{
		ID:   fmt.Sprintf("%s-%s-r%d", seat.Team, item.Type, g.NextUnit),
		Type: item.Type,
	})
	return []Event{{Type: EvtPiecePurchased, Team: seat.Team, PieceType: item.Type, Cost: item.Cost}}, nil
}

func applyPurchaseUpgrade(g *Game, seat match.Role, c protocol.PurchaseUpgrade, cat Catalog) ([]Event, error) {
	u, ok := cat.upgrade(c.UpgradeID)
	if !ok {
		return nil, fmt.Errorf("%w: upgrade %q", ErrUnknownItem, c.UpgradeID)
	}
	team := g.State.Teams.Get(seat.Team)
	if slices.Contains(team.Upgrades[u.PieceType], u.ID) {
		return nil, ErrAlreadyOwned
	}
	if err := charge(team, u.Cost); err != nil {
		return nil, err
	}
	if team.Upgrades == nil {
		team.Upgrades = map[string][]string{}
	}
	team.Upgrades[u.PieceType] = append(team.Upgrades[u.PieceType], u.ID)
	return []Event{{Type: EvtStateChanged, Team: seat.Team}}, nil
}

func applyPurchaseModifier(g *Game, seat match.Role, c protocol.PurchaseModifier, cat Catalog) ([]Event, error) {
	m, ok := cat.modifier(c.ModifierID)
	if !ok {
		return nil, fmt.Errorf("%w: modifier %q", ErrUnknownItem, c.ModifierID)
	}
	team := g.State.Teams.Get(seat.Team)
	if slices.Contains(team.Modifiers, m.ID) {
		return nil, ErrAlreadyOwned
	}
	if err := charge(team, m.Cost); err != nil {
		return nil, err
	}
	team.Modifiers = append(team.Modifiers, m.ID)
	return []Event{{Type: EvtStateChanged, Team: seat.Team}}, nil
}

func applyToggleUpgrade(g *Game, c protocol.AdminToggleUpgrade, cat Catalog) ([]Event, error) {
	if !c.Team.Valid() {
		return nil, ErrUnknownTeam
	}
	u, ok := cat.upgrade(c.UpgradeID)
	if !ok {
		return nil, fmt.Errorf("%w: upgrade %q", ErrUnknownItem, c.UpgradeID)
	}
	team := g.State.Teams.Get(c.Team)
	if team.Upgrades == nil {
		team.Upgrades = map[string][]string{}
	}
	owned := team.Upgrades[u.PieceType]
	if i := slices.Index(owned, u.ID); i >= 0 {
		team.Upgrades[u.PieceType] = slices.Delete(owned, i, i+1)
	} else {
		team.Upgrades[u.PieceType] = append(owned, u.ID)
	}
	return []Event{{Type: EvtStateChanged, Team: c.Team}}, nil
}
