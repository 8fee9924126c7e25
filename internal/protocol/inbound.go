package protocol

import (
	"fmt"

	"github.com/DoyleJ11/matchsync/internal/match"
)

// Inbound is the closed set of events the authority sends. Every variant
// below is produced by Decode; nothing else implements it.
type Inbound interface {
	EventName() string
	isInbound()
}

// StateBearing is implemented by inbound events that ship a full snapshot.
type StateBearing interface {
	Inbound
	Snapshot() (match.State, bool)
}

type MatchState struct {
	State match.State
}

type MatchStateUpdated struct {
	MatchState match.State `json:"matchState"`
}

type MatchJoined struct {
	MatchID      string      `json:"matchId"`
	AssignedRole match.Role  `json:"assignedRole"`
	MatchState   match.State `json:"matchState"`
}

type MoveMade struct {
	Move       match.Move  `json:"move"`
	GameSlot   match.Slot  `json:"gameSlot"`
	MatchState match.State `json:"matchState"`
}

type PossibleMoves struct {
	Position match.Position   `json:"position"`
	GameSlot match.Slot       `json:"gameSlot,omitempty"`
	Moves    []match.Position `json:"moves"`
}

type Upgrade struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PieceType   string `json:"pieceType"`
	Cost        int    `json:"cost"`
	Description string `json:"description,omitempty"`
	Owned       bool   `json:"owned,omitempty"`
}

type Modifier struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Cost        int    `json:"cost"`
	Description string `json:"description,omitempty"`
	Owned       bool   `json:"owned,omitempty"`
}

type PurchasablePiece struct {
	Type string `json:"type"`
	Cost int    `json:"cost"`
}

type AvailableUpgrades struct {
	Upgrades []Upgrade `json:"upgrades"`
}

type AvailableModifiers struct {
	Modifiers []Modifier `json:"modifiers"`
}

type PurchasablePieces struct {
	Pieces []PurchasablePiece `json:"pieces"`
}

type PiecePurchased struct {
	Team       match.Team   `json:"team"`
	PieceType  string       `json:"pieceType"`
	Cost       int          `json:"cost"`
	MatchState *match.State `json:"matchState,omitempty"`
}

type PiecePlacedFromBarracks struct {
	Team           match.Team     `json:"team"`
	PieceType      string         `json:"pieceType"`
	TargetPosition match.Position `json:"targetPosition"`
	MatchState     *match.State   `json:"matchState,omitempty"`
}

type BlindAmounts struct {
	Small int `json:"small"`
	Big   int `json:"big"`
}

type BlindLevelChanged struct {
	BlindLevel   int          `json:"blindLevel"`
	BlindAmounts BlindAmounts `json:"blindAmounts"`
}

type Seat struct {
	Role match.Role `json:"role"`
	Name string     `json:"name"`
}

type MatchSummary struct {
	ID        string       `json:"id"`
	Status    match.Status `json:"status"`
	Players   []Seat       `json:"players"`
	OpenRoles []match.Role `json:"openRoles"`
}

type WaitingMatches struct {
	Matches []MatchSummary `json:"matches"`
}

type MatchesUpdated struct {
	Matches []MatchSummary `json:"matches"`
}

// ErrorEvent is any of the scoped error channels; Channel records which.
type ErrorEvent struct {
	Channel   string `json:"-"`
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func (e ErrorEvent) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Channel, e.Message, e.Code)
	}
	return e.Channel + ": " + e.Message
}

func (MatchState) EventName() string              { return EvtMatchState }
func (MatchStateUpdated) EventName() string       { return EvtMatchStateUpdated }
func (MatchJoined) EventName() string             { return EvtMatchJoined }
func (MoveMade) EventName() string                { return EvtMoveMade }
func (PossibleMoves) EventName() string           { return EvtPossibleMoves }
func (AvailableUpgrades) EventName() string       { return EvtAvailableUpgrades }
func (AvailableModifiers) EventName() string      { return EvtAvailableModifiers }
func (PurchasablePieces) EventName() string       { return EvtPurchasablePieces }
func (PiecePurchased) EventName() string          { return EvtPiecePurchased }
func (PiecePlacedFromBarracks) EventName() string { return EvtPiecePlacedFromBarracks }
func (BlindLevelChanged) EventName() string       { return EvtBlindLevelChanged }
func (WaitingMatches) EventName() string          { return EvtWaitingMatches }
func (MatchesUpdated) EventName() string          { return EvtMatchesUpdated }
func (e ErrorEvent) EventName() string            { return e.Channel }

func (MatchState) isInbound()              {}
func (MatchStateUpdated) isInbound()       {}
func (MatchJoined) isInbound()             {}
func (MoveMade) isInbound()                {}
func (PossibleMoves) isInbound()           {}
func (AvailableUpgrades) isInbound()       {}
func (AvailableModifiers) isInbound()      {}
func (PurchasablePieces) isInbound()       {}
func (PiecePurchased) isInbound()          {}
func (PiecePlacedFromBarracks) isInbound() {}
func (BlindLevelChanged) isInbound()       {}
func (WaitingMatches) isInbound()          {}
func (MatchesUpdated) isInbound()          {}
func (ErrorEvent) isInbound()              {}

func (e MatchState) Snapshot() (match.State, bool)        { return e.State, true }
func (e MatchStateUpdated) Snapshot() (match.State, bool) { return e.MatchState, true }
func (e MatchJoined) Snapshot() (match.State, bool)       { return e.MatchState, true }
func (e MoveMade) Snapshot() (match.State, bool)          { return e.MatchState, true }

func (e PiecePurchased) Snapshot() (match.State, bool) {
	if e.MatchState == nil {
		return match.State{}, false
	}
	return *e.MatchState, true
}

func (e PiecePlacedFromBarracks) Snapshot() (match.State, bool) {
	if e.MatchState == nil {
		return match.State{}, false
	}
	return *e.MatchState, true
}

// Decode turns an envelope into its typed variant. Snapshots are checked
// against the match invariants here, so nothing malformed reaches the view.
func Decode(env Envelope) (Inbound, error) {
	var (
		ev  Inbound
		err error
	)
	switch env.Event {
	case EvtMatchState:
		var s match.State
		s, err = DecodePayload[match.State](env)
		ev = MatchState{State: s}
	case EvtMatchStateUpdated:
		ev, err = DecodePayload[MatchStateUpdated](env)
	case EvtMatchJoined:
		var j MatchJoined
		j, err = DecodePayload[MatchJoined](env)
		if err == nil && j.MatchID == "" {
			j.MatchID = j.MatchState.ID
		}
		if err == nil && j.AssignedRole.IsZero() {
			err = fmt.Errorf("%w: match_joined without assignedRole", ErrMalformed)
		}
		ev = j
	case EvtMoveMade:
		var m MoveMade
		m, err = DecodePayload[MoveMade](env)
		if err == nil && !m.GameSlot.Valid() {
			err = fmt.Errorf("%w: move_made slot %q", ErrMalformed, m.GameSlot)
		}
		ev = m
	case EvtPossibleMoves:
		ev, err = DecodePayload[PossibleMoves](env)
	case EvtAvailableUpgrades:
		ev, err = decodeOptional[AvailableUpgrades](env)
	case EvtAvailableModifiers:
		ev, err = decodeOptional[AvailableModifiers](env)
	case EvtPurchasablePieces:
		ev, err = decodeOptional[PurchasablePieces](env)
	case EvtPiecePurchased:
		ev, err = decodeOptional[PiecePurchased](env)
	case EvtPiecePlacedFromBarracks:
		ev, err = decodeOptional[PiecePlacedFromBarracks](env)
	case EvtBlindLevelChanged:
		ev, err = DecodePayload[BlindLevelChanged](env)
	case EvtWaitingMatches:
		ev, err = decodeOptional[WaitingMatches](env)
	case EvtMatchesUpdated:
		ev, err = decodeOptional[MatchesUpdated](env)
	default:
		if !IsErrorChannel(env.Event) {
			return nil, fmt.Errorf("%w: %w: %q", ErrMalformed, ErrUnknownEvent, env.Event)
		}
		var e ErrorEvent
		e, err = decodeOptional[ErrorEvent](env)
		e.Channel = env.Event
		if e.RequestID == "" {
			e.RequestID = env.RequestID
		}
		ev = e
	}
	if err != nil {
		return nil, err
	}
	if sb, ok := ev.(StateBearing); ok {
		if s, has := sb.Snapshot(); has {
			if verr := s.Validate(); verr != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, env.Event, verr)
			}
		}
	}
	return ev, nil
}
