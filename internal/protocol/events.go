package protocol

// Outbound event names (client -> authority).
const (
	EvtCreateMatch          = "create_match"
	EvtJoinMatch            = "join_match"
	EvtGetMatchState        = "get_match_state"
	EvtGetWaitingMatches    = "get_waiting_matches"
	EvtMakeMove             = "make_move"
	EvtGetPossibleMoves     = "get_possible_moves"
	EvtPurchaseUpgrade      = "purchase_upgrade"
	EvtPurchasePiece        = "purchase_piece"
	EvtPurchaseModifier     = "purchase_modifier"
	EvtPlaceFromBarracks    = "place_from_barracks"
	EvtPokerAction          = "poker_action"
	EvtPokerReady           = "poker_ready"
	EvtGetAvailableUpgrades = "get_available_upgrades"
	EvtGetModifiers         = "get_modifiers"
	EvtGetPurchasablePieces = "get_purchasable_pieces"
	EvtAdminUpdateEconomy   = "admin_update_economy"
	EvtAdminToggleUpgrade   = "admin_toggle_upgrade"
	EvtAdminResetUpgrades   = "admin_reset_upgrades"
)

// Inbound event names (authority -> client).
const (
	EvtMatchState              = "match_state"
	EvtMatchStateUpdated       = "match_state_updated"
	EvtMatchJoined             = "match_joined"
	EvtMoveMade                = "move_made"
	EvtPossibleMoves           = "possible_moves"
	EvtAvailableUpgrades       = "available_upgrades"
	EvtAvailableModifiers      = "available_modifiers"
	EvtPurchasablePieces       = "purchasable_pieces"
	EvtPiecePurchased          = "piece_purchased"
	EvtPiecePlacedFromBarracks = "piece_placed_from_barracks"
	EvtBlindLevelChanged       = "blind_level_changed"
	EvtWaitingMatches          = "waiting_matches"
	EvtMatchesUpdated          = "matches_updated"
)

// Error channels, each scoped to the operation family it reports on.
const (
	EvtError          = "error"
	EvtPurchaseError  = "purchase_error"
	EvtPlacementError = "placement_error"
	EvtUpgradeError   = "upgrade_error"
	EvtModifierError  = "modifier_error"
	EvtPokerError     = "poker_error"
)

var ErrorChannels = []string{
	EvtError,
	EvtPurchaseError,
	EvtPlacementError,
	EvtUpgradeError,
	EvtModifierError,
	EvtPokerError,
}

// StateEvents are the inbound events that can carry a full match snapshot.
var StateEvents = []string{
	EvtMatchState,
	EvtMatchStateUpdated,
	EvtMatchJoined,
	EvtMoveMade,
	EvtPiecePurchased,
	EvtPiecePlacedFromBarracks,
}

// CatalogEvents are the out-of-band pushes cached beside the view.
var CatalogEvents = []string{
	EvtAvailableUpgrades,
	EvtAvailableModifiers,
	EvtPurchasablePieces,
	EvtBlindLevelChanged,
}

func IsErrorChannel(event string) bool {
	for _, e := range ErrorChannels {
		if e == event {
			return true
		}
	}
	return false
}

// Error codes the authority attaches to membership failures.
const (
	CodeSlotUnavailable = "slot_unavailable"
	CodeMatchNotFound   = "match_not_found"
)

// ErrorChannelFor names the error channel that reports on an outbound
// event's failures.
func ErrorChannelFor(event string) string {
	switch event {
	case EvtPurchasePiece:
		return EvtPurchaseError
	case EvtPurchaseUpgrade:
		return EvtUpgradeError
	case EvtPurchaseModifier:
		return EvtModifierError
	case EvtPlaceFromBarracks:
		return EvtPlacementError
	case EvtPokerAction, EvtPokerReady:
		return EvtPokerError
	default:
		return EvtError
	}
}
