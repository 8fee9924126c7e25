package dispatch

import (
	"slices"
	"sync"
	"time"

	"github.com/DoyleJ11/matchsync/internal/protocol"
)

// maxPendingPerFamily bounds the tracker when the authority never answers.
const maxPendingPerFamily = 32

// Intent is one outbound submission awaiting its outcome.
type Intent struct {
	RequestID string    `json:"requestId"`
	Event     string    `json:"event"`
	Family    string    `json:"family"`
	SentAt    time.Time `json:"sentAt"`
}

// answeredBy names the outbound event an inbound success event settles.
var answeredBy = map[string]string{
	protocol.EvtMoveMade:                protocol.EvtMakeMove,
	protocol.EvtPossibleMoves:           protocol.EvtGetPossibleMoves,
	protocol.EvtPiecePurchased:          protocol.EvtPurchasePiece,
	protocol.EvtPiecePlacedFromBarracks: protocol.EvtPlaceFromBarracks,
	protocol.EvtAvailableUpgrades:       protocol.EvtGetAvailableUpgrades,
	protocol.EvtAvailableModifiers:      protocol.EvtGetModifiers,
	protocol.EvtPurchasablePieces:       protocol.EvtGetPurchasablePieces,
}

// tracker keeps in-flight intents per error family, oldest first.
type tracker struct {
	mu       sync.Mutex
	byFamily map[string][]*Intent
}

func newTracker() *tracker {
	return &tracker{byFamily: make(map[string][]*Intent)}
}

func (t *tracker) add(in *Intent) (evicted *Intent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	q := append(t.byFamily[in.Family], in)
	if len(q) > maxPendingPerFamily {
		evicted, q = q[0], q[1:]
	}
	t.byFamily[in.Family] = q
	return evicted
}

// attribute removes and returns the intent an error event answers: the one
// whose request id it echoes, else the oldest of the same family.
func (t *tracker) attribute(family, requestID string) *Intent {
	t.mu.Lock()
	defer t.mu.Unlock()
	if requestID != "" {
		if in := t.takeByID(requestID); in != nil {
			return in
		}
	}
	q := t.byFamily[family]
	if len(q) == 0 {
		return nil
	}
	in := q[0]
	t.byFamily[family] = q[1:]
	return in
}

// settle removes the intent a success event answers, if one is tracked.
func (t *tracker) settle(event, requestID string) *Intent {
	t.mu.Lock()
	defer t.mu.Unlock()
	if requestID != "" {
		if in := t.takeByID(requestID); in != nil {
			return in
		}
	}
	out, ok := answeredBy[event]
	if !ok {
		return nil
	}
	family := protocol.ErrorChannelFor(out)
	q := t.byFamily[family]
	for i, in := range q {
		if in.Event == out {
			t.byFamily[family] = append(q[:i:i], q[i+1:]...)
			return in
		}
	}
	return nil
}

func (t *tracker) takeByID(requestID string) *Intent {
	for family, q := range t.byFamily {
		for i, in := range q {
			if in.RequestID == requestID {
				t.byFamily[family] = append(q[:i:i], q[i+1:]...)
				return in
			}
		}
	}
	return nil
}

func (t *tracker) list() []Intent {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Intent
	for _, q := range t.byFamily {
		for _, in := range q {
			out = append(out, *in)
		}
	}
	slices.SortStableFunc(out, func(a, b Intent) int { return a.SentAt.Compare(b.SentAt) })
	return out
}

func (t *tracker) reset() {
	t.mu.Lock()
	t.byFamily = make(map[string][]*Intent)
	t.mu.Unlock()
}
