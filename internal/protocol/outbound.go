package protocol

import (
	"fmt"

	"github.com/DoyleJ11/matchsync/internal/match"
)

// Outbound is an intent or request the client sends to the authority.
type Outbound interface {
	EventName() string
}

type CreateMatch struct {
	PlayerName    string     `json:"playerName"`
	PreferredTeam match.Team `json:"preferredTeam,omitempty"`
	PreferredSlot match.Slot `json:"preferredSlot,omitempty"`
}

type JoinMatch struct {
	MatchID       string     `json:"matchId"`
	PlayerName    string     `json:"playerName"`
	PreferredTeam match.Team `json:"preferredTeam,omitempty"`
	PreferredSlot match.Slot `json:"preferredSlot,omitempty"`
}

type GetMatchState struct {
	MatchID string `json:"matchId"`
}

type GetWaitingMatches struct{}

type MakeMove struct {
	MatchID  string         `json:"matchId,omitempty"`
	From     match.Position `json:"from"`
	To       match.Position `json:"to"`
	GameSlot match.Slot     `json:"gameSlot"`
}

type GetPossibleMoves struct {
	MatchID  string         `json:"matchId,omitempty"`
	Position match.Position `json:"position"`
	GameSlot match.Slot     `json:"gameSlot"`
}

type PurchaseUpgrade struct {
	MatchID   string `json:"matchId,omitempty"`
	UpgradeID string `json:"upgradeId"`
}

type PurchasePiece struct {
	MatchID   string `json:"matchId"`
	PieceType string `json:"pieceType"`
}

type PurchaseModifier struct {
	MatchID    string `json:"matchId,omitempty"`
	ModifierID string `json:"modifierId"`
}

type PlaceFromBarracks struct {
	MatchID        string         `json:"matchId"`
	PieceIndex     int            `json:"pieceIndex"`
	TargetPosition match.Position `json:"targetPosition"`
}

type PokerAction struct {
	MatchID string `json:"matchId,omitempty"`
	Action  string `json:"action"`
	Amount  *int   `json:"amount,omitempty"`
}

type PokerReady struct {
	MatchID string `json:"matchId,omitempty"`
	Ready   bool   `json:"ready"`
}

type GetAvailableUpgrades struct {
	MatchID string `json:"matchId,omitempty"`
}

type GetModifiers struct {
	MatchID string `json:"matchId,omitempty"`
}

type GetPurchasablePieces struct {
	MatchID string `json:"matchId,omitempty"`
}

type AdminUpdateEconomy struct {
	MatchID string     `json:"matchId,omitempty"`
	Team    match.Team `json:"team"`
	Amount  int        `json:"amount"`
}

type AdminToggleUpgrade struct {
	MatchID   string     `json:"matchId,omitempty"`
	Team      match.Team `json:"team"`
	UpgradeID string     `json:"upgradeId"`
}

type AdminResetUpgrades struct {
	MatchID string     `json:"matchId,omitempty"`
	Team    match.Team `json:"team,omitempty"`
}

func (CreateMatch) EventName() string          { return EvtCreateMatch }
func (JoinMatch) EventName() string            { return EvtJoinMatch }
func (GetMatchState) EventName() string        { return EvtGetMatchState }
func (GetWaitingMatches) EventName() string    { return EvtGetWaitingMatches }
func (MakeMove) EventName() string             { return EvtMakeMove }
func (GetPossibleMoves) EventName() string     { return EvtGetPossibleMoves }
func (PurchaseUpgrade) EventName() string      { return EvtPurchaseUpgrade }
func (PurchasePiece) EventName() string        { return EvtPurchasePiece }
func (PurchaseModifier) EventName() string     { return EvtPurchaseModifier }
func (PlaceFromBarracks) EventName() string    { return EvtPlaceFromBarracks }
func (PokerAction) EventName() string          { return EvtPokerAction }
func (PokerReady) EventName() string           { return EvtPokerReady }
func (GetAvailableUpgrades) EventName() string { return EvtGetAvailableUpgrades }
func (GetModifiers) EventName() string         { return EvtGetModifiers }
func (GetPurchasablePieces) EventName() string { return EvtGetPurchasablePieces }
func (AdminUpdateEconomy) EventName() string   { return EvtAdminUpdateEconomy }
func (AdminToggleUpgrade) EventName() string   { return EvtAdminToggleUpgrade }
func (AdminResetUpgrades) EventName() string   { return EvtAdminResetUpgrades }

// DecodeOutbound is the authority-side counterpart of Decode.
func DecodeOutbound(env Envelope) (Outbound, error) {
	switch env.Event {
	case EvtCreateMatch:
		return DecodePayload[CreateMatch](env)
	case EvtJoinMatch:
		return DecodePayload[JoinMatch](env)
	case EvtGetMatchState:
		return decodeOptional[GetMatchState](env)
	case EvtGetWaitingMatches:
		return GetWaitingMatches{}, nil
	case EvtMakeMove:
		return DecodePayload[MakeMove](env)
	case EvtGetPossibleMoves:
		return DecodePayload[GetPossibleMoves](env)
	case EvtPurchaseUpgrade:
		return DecodePayload[PurchaseUpgrade](env)
	case EvtPurchasePiece:
		return DecodePayload[PurchasePiece](env)
	case EvtPurchaseModifier:
		return DecodePayload[PurchaseModifier](env)
	case EvtPlaceFromBarracks:
		return DecodePayload[PlaceFromBarracks](env)
	case EvtPokerAction:
		return DecodePayload[PokerAction](env)
	case EvtPokerReady:
		return DecodePayload[PokerReady](env)
	case EvtGetAvailableUpgrades:
		return decodeOptional[GetAvailableUpgrades](env)
	case EvtGetModifiers:
		return decodeOptional[GetModifiers](env)
	case EvtGetPurchasablePieces:
		return decodeOptional[GetPurchasablePieces](env)
	case EvtAdminUpdateEconomy:
		return DecodePayload[AdminUpdateEconomy](env)
	case EvtAdminToggleUpgrade:
		return DecodePayload[AdminToggleUpgrade](env)
	case EvtAdminResetUpgrades:
		return decodeOptional[AdminResetUpgrades](env)
	default:
		return nil, fmt.Errorf("%w: %w: %q", ErrMalformed, ErrUnknownEvent, env.Event)
	}
}
