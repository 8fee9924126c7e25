package match

import (
	"fmt"
	"strings"
)

type Team string

const (
	TeamWhite Team = "white"
	TeamBlack Team = "black"
)

func (t Team) Opponent() Team {
	if t == TeamWhite {
		return TeamBlack
	}
	return TeamWhite
}

func (t Team) Valid() bool { return t == TeamWhite || t == TeamBlack }

func ParseTeam(s string) (Team, bool) {
	switch Team(strings.ToLower(s)) {
	case TeamWhite:
		return TeamWhite, true
	case TeamBlack:
		return TeamBlack, true
	default:
		return "", false
	}
}

// Slot names one of the two sub-games multiplexed in a match.
type Slot string

const (
	SlotBoard Slot = "A"
	SlotCard  Slot = "B"
)

func (s Slot) Valid() bool { return s == SlotBoard || s == SlotCard }

func ParseSlot(s string) (Slot, bool) {
	switch Slot(strings.ToUpper(s)) {
	case SlotBoard:
		return SlotBoard, true
	case SlotCard:
		return SlotCard, true
	default:
		return "", false
	}
}

// Role is one cell of the {white, black} x {A, B} partition. On the wire it
// is written as "<team>_<slot>", e.g. "white_A".
type Role struct {
	Team Team
	Slot Slot
}

func (r Role) String() string { return string(r.Team) + "_" + string(r.Slot) }

func (r Role) IsZero() bool { return r.Team == "" && r.Slot == "" }

func ParseRole(s string) (Role, error) {
	team, slot, ok := strings.Cut(s, "_")
	if !ok {
		return Role{}, fmt.Errorf("role %q: missing separator", s)
	}
	t, ok := ParseTeam(team)
	if !ok {
		return Role{}, fmt.Errorf("role %q: unknown team", s)
	}
	sl, ok := ParseSlot(slot)
	if !ok {
		return Role{}, fmt.Errorf("role %q: unknown slot", s)
	}
	return Role{Team: t, Slot: sl}, nil
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// AllRoles lists the partition in the order the authority fills it.
var AllRoles = []Role{
	{Team: TeamWhite, Slot: SlotBoard},
	{Team: TeamBlack, Slot: SlotBoard},
	{Team: TeamWhite, Slot: SlotCard},
	{Team: TeamBlack, Slot: SlotCard},
}

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	return s == StatusWaiting || s == StatusActive || s == StatusCompleted
}

// Membership is the local client's seat, assigned once by the authority.
type Membership struct {
	Team       Team   `json:"team"`
	Slot       Slot   `json:"subGameSlot"`
	PlayerName string `json:"playerName,omitempty"`
}

func (m Membership) Role() Role { return Role{Team: m.Team, Slot: m.Slot} }

func (m Membership) IsZero() bool { return m.Team == "" && m.Slot == "" }

const BoardSize = 8

type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (p Position) InBounds() bool {
	return p.Row >= 0 && p.Row < BoardSize && p.Col >= 0 && p.Col < BoardSize
}

// String renders the square in algebraic form, row 0 being rank 1.
func (p Position) String() string {
	if !p.InBounds() {
		return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
	}
	return fmt.Sprintf("%c%d", 'a'+rune(p.Col), p.Row+1)
}

type Piece struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Color    Team     `json:"color"`
	Position Position `json:"position"`
}

// ReserveUnit is a purchased piece waiting in a team's barracks.
type ReserveUnit struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
}

type TeamState struct {
	Economy   int                 `json:"economy"`
	Upgrades  map[string][]string `json:"upgrades"`
	Modifiers []string            `json:"modifiers"`
	Barracks  []ReserveUnit       `json:"barracks"`
	Players   map[Slot]Player     `json:"players"`
}

type Teams struct {
	White TeamState `json:"white"`
	Black TeamState `json:"black"`
}

func (t *Teams) Get(team Team) *TeamState {
	if team == TeamBlack {
		return &t.Black
	}
	return &t.White
}

type Move struct {
	From      Position `json:"from"`
	To        Position `json:"to"`
	Piece     string   `json:"piece"`
	Team      Team     `json:"team"`
	Captured  string   `json:"captured,omitempty"`
	Placement bool     `json:"placement,omitempty"`
}

// BoardGame is sub-game A.
type BoardGame struct {
	Pieces   []Piece `json:"pieces"`
	History  []Move  `json:"history"`
	Turn     Team    `json:"turn"`
	Terminal bool    `json:"terminal"`
	Winner   *Team   `json:"winner,omitempty"`
}

func (b BoardGame) PieceAt(p Position) (Piece, bool) {
	for _, pc := range b.Pieces {
		if pc.Position == p {
			return pc, true
		}
	}
	return Piece{}, false
}

func (b BoardGame) LastMove() (Move, bool) {
	if len(b.History) == 0 {
		return Move{}, false
	}
	return b.History[len(b.History)-1], true
}

type Card struct {
	Rank   string `json:"rank,omitempty"`
	Suit   string `json:"suit,omitempty"`
	Hidden bool   `json:"hidden,omitempty"`
}

type Hand struct {
	Cards    []Card `json:"cards"`
	Count    int    `json:"count"`
	Revealed bool   `json:"revealed"`
}

// Size is the number of cards held, whichever of Cards or Count the
// authority filled in.
func (h Hand) Size() int {
	if len(h.Cards) > h.Count {
		return len(h.Cards)
	}
	return h.Count
}

type BettingAction struct {
	Team   Team   `json:"team"`
	Action string `json:"action"`
	Amount int    `json:"amount,omitempty"`
}

// CardGame is sub-game B.
type CardGame struct {
	Phase      string          `json:"phase"`
	Pot        int             `json:"pot"`
	CurrentBet int             `json:"currentBet"`
	Turn       Team            `json:"turn"`
	Community  []Card          `json:"community"`
	Hands      map[Team]Hand   `json:"hands"`
	Bets       map[Team]int    `json:"bets"`
	Folded     map[Team]bool   `json:"folded"`
	History    []BettingAction `json:"history"`
	Terminal   bool            `json:"terminal"`
	Winner     *Team           `json:"winner,omitempty"`
}

type SubGames struct {
	A BoardGame `json:"A"`
	B CardGame  `json:"B"`
}

// State is the authority's canonical snapshot as shipped on the wire.
type State struct {
	ID           string   `json:"id"`
	Status       Status   `json:"status"`
	Teams        Teams    `json:"teams"`
	SubGames     SubGames `json:"subGames"`
	WinCondition *Team    `json:"winCondition"`
}

// View is the client-local mirror of one match: the latest authoritative
// State plus the membership assigned at join time.
type View struct {
	Membership Membership `json:"membership"`
	State
}

func (v View) Terminal() bool { return v.WinCondition != nil }

// ControlZones derives zone ownership from the board; it is never stored.
func (v View) ControlZones() []ZoneStatus { return DeriveControl(v.SubGames.A) }

// Clone returns a deep copy so readers can hold a view across updates.
func (s State) Clone() State {
	out := s
	if s.WinCondition != nil {
		w := *s.WinCondition
		out.WinCondition = &w
	}
	out.Teams.White = s.Teams.White.clone()
	out.Teams.Black = s.Teams.Black.clone()
	out.SubGames.A = s.SubGames.A.clone()
	out.SubGames.B = s.SubGames.B.clone()
	return out
}

func (v View) Clone() View {
	return View{Membership: v.Membership, State: v.State.Clone()}
}

func (t TeamState) clone() TeamState {
	out := t
	if t.Upgrades != nil {
		out.Upgrades = make(map[string][]string, len(t.Upgrades))
		for k, ids := range t.Upgrades {
			out.Upgrades[k] = append([]string(nil), ids...)
		}
	}
	out.Modifiers = cloneSlice(t.Modifiers)
	out.Barracks = cloneSlice(t.Barracks)
	out.Players = cloneMap(t.Players)
	return out
}

func (b BoardGame) clone() BoardGame {
	out := b
	out.Pieces = cloneSlice(b.Pieces)
	out.History = cloneSlice(b.History)
	if b.Winner != nil {
		w := *b.Winner
		out.Winner = &w
	}
	return out
}

func (c CardGame) clone() CardGame {
	out := c
	out.Community = cloneSlice(c.Community)
	if c.Hands != nil {
		out.Hands = make(map[Team]Hand, len(c.Hands))
		for k, h := range c.Hands {
			h.Cards = cloneSlice(h.Cards)
			out.Hands[k] = h
		}
	}
	out.Bets = cloneMap(c.Bets)
	out.Folded = cloneMap(c.Folded)
	out.History = cloneSlice(c.History)
	if c.Winner != nil {
		w := *c.Winner
		out.Winner = &w
	}
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	return append(make([]T, 0, len(in)), in...)
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	if in == nil {
		return nil
	}
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
