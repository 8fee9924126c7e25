package dispatch

import (
	"errors"
	"fmt"
)

// Reasons an intent is refused before it is sent.
var (
	ErrNoView            = errors.New("no match joined")
	ErrMatchOver         = errors.New("match is over")
	ErrMatchNotActive    = errors.New("match is not active")
	ErrWrongSlot         = errors.New("intent belongs to the other sub-game")
	ErrNotYourTurn       = errors.New("not your turn")
	ErrNoPiece           = errors.New("no piece on that square")
	ErrNotYourPiece      = errors.New("piece belongs to the opponent")
	ErrOffBoard          = errors.New("position is off the board")
	ErrNoSuchReserveUnit = errors.New("no unit at that barracks index")
	ErrSquareOccupied    = errors.New("target square is occupied")
	ErrUnknownBetAction  = errors.New("unknown betting action")
	ErrBadAmount         = errors.New("invalid amount")
	ErrFolded            = errors.New("hand already folded")
	ErrUnknownKind       = errors.New("unknown purchase kind")
	ErrEmptyID           = errors.New("missing item id")
	ErrUnaffordable      = errors.New("insufficient funds")
	ErrUnknownTeam       = errors.New("unknown team")
)

// AdvisoryError is a client-side refusal: the intent was never sent. The
// authority remains the judge; this only saves a round trip for requests
// the current view already shows to be hopeless.
type AdvisoryError struct {
	Intent string
	Err    error
}

func (e *AdvisoryError) Error() string { return fmt.Sprintf("%s refused: %v", e.Intent, e.Err) }

func (e *AdvisoryError) Unwrap() error { return e.Err }

func refuse(intent string, err error) error { return &AdvisoryError{Intent: intent, Err: err} }

// ActionError is an error event from the authority, attributed to the
// pending intent it most likely answers. Intent is nil when nothing of
// that family was in flight.
type ActionError struct {
	Family    string
	Message   string
	Code      string
	RequestID string
	Intent    *Intent
}

func (e ActionError) Error() string {
	if e.Intent != nil {
		return fmt.Sprintf("%s failed: %s", e.Intent.Event, e.Message)
	}
	return e.Family + ": " + e.Message
}
