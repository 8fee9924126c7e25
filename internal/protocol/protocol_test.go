package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/matchsync/internal/match"
)

const waitingState = `{"id":"m1","status":"waiting","teams":{"white":{"economy":5},"black":{"economy":5}},"subGames":{"A":{"pieces":[],"turn":"white"},"B":{"phase":"preflop"}},"winCondition":null}`

func TestEventNamesArePinned(t *testing.T) {
	pinned := map[string]string{
		EvtCreateMatch:             "create_match",
		EvtJoinMatch:               "join_match",
		EvtMakeMove:                "make_move",
		EvtPlaceFromBarracks:       "place_from_barracks",
		EvtPokerAction:             "poker_action",
		EvtMatchStateUpdated:       "match_state_updated",
		EvtMatchJoined:             "match_joined",
		EvtMoveMade:                "move_made",
		EvtPiecePlacedFromBarracks: "piece_placed_from_barracks",
		EvtBlindLevelChanged:       "blind_level_changed",
		EvtPurchaseError:           "purchase_error",
		EvtPokerError:              "poker_error",
	}
	for got, want := range pinned {
		if got != want {
			t.Fatalf("event name = %q, want %q", got, want)
		}
	}
}

func TestEncode_RoundTripsEnvelope(t *testing.T) {
	b, err := Encode(EvtMakeMove, "req-1", MakeMove{
		From:     match.Position{Row: 1, Col: 4},
		To:       match.Position{Row: 3, Col: 4},
		GameSlot: match.SlotBoard,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"make_move","requestId":"req-1","data":{"from":{"row":1,"col":4},"to":{"row":3,"col":4},"gameSlot":"A"}}`, string(b))

	env, err := DecodeEnvelope(b)
	require.NoError(t, err)
	out, err := DecodeOutbound(env)
	require.NoError(t, err)
	assert.Equal(t, match.SlotBoard, out.(MakeMove).GameSlot)
}

func TestEncode_RejectsEmptyEvent(t *testing.T) {
	_, err := Encode("", "", struct{}{})
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeEnvelope_Malformed(t *testing.T) {
	for _, in := range []string{"", "not json", `{"data":{}}`} {
		_, err := DecodeEnvelope([]byte(in))
		require.ErrorIs(t, err, ErrMalformed, "input %q", in)
	}
}

func TestDecode_MatchJoined(t *testing.T) {
	env := Envelope{
		Event: EvtMatchJoined,
		Data:  []byte(`{"matchId":"m1","assignedRole":"white_A","matchState":` + waitingState + `}`),
	}
	ev, err := Decode(env)
	require.NoError(t, err)

	joined, ok := ev.(MatchJoined)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, "m1", joined.MatchID)
	assert.Equal(t, match.Role{Team: match.TeamWhite, Slot: match.SlotBoard}, joined.AssignedRole)
	assert.Equal(t, match.StatusWaiting, joined.MatchState.Status)
	assert.Nil(t, joined.MatchState.WinCondition)
}

func TestDecode_MatchJoinedRequiresRole(t *testing.T) {
	env := Envelope{Event: EvtMatchJoined, Data: []byte(`{"matchId":"m1","matchState":` + waitingState + `}`)}
	_, err := Decode(env)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDecode_RejectsNegativeEconomy(t *testing.T) {
	bad := `{"matchState":{"id":"m1","status":"active","teams":{"white":{"economy":-3},"black":{"economy":0}},"subGames":{"A":{},"B":{}}}}`
	_, err := Decode(Envelope{Event: EvtMatchStateUpdated, Data: []byte(bad)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))
	assert.True(t, errors.Is(err, match.ErrNegativeEconomy))
}

func TestDecode_MoveMadeNeedsKnownSlot(t *testing.T) {
	data := `{"move":{"from":{"row":0,"col":0},"to":{"row":1,"col":0}},"gameSlot":"Z","matchState":` + waitingState + `}`
	_, err := Decode(Envelope{Event: EvtMoveMade, Data: []byte(data)})
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDecode_ErrorChannels(t *testing.T) {
	for _, ch := range ErrorChannels {
		t.Run(ch, func(t *testing.T) {
			ev, err := Decode(Envelope{Event: ch, RequestID: "r9", Data: []byte(`{"message":"insufficient funds"}`)})
			require.NoError(t, err)
			e, ok := ev.(ErrorEvent)
			require.True(t, ok)
			assert.Equal(t, ch, e.Channel)
			assert.Equal(t, ch, e.EventName())
			assert.Equal(t, "insufficient funds", e.Message)
			assert.Equal(t, "r9", e.RequestID)
		})
	}
}

func TestDecode_UnknownEvent(t *testing.T) {
	_, err := Decode(Envelope{Event: "chat_message", Data: []byte(`{}`)})
	require.ErrorIs(t, err, ErrUnknownEvent)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = DecodeOutbound(Envelope{Event: "chat_message", Data: []byte(`{}`)})
	require.ErrorIs(t, err, ErrUnknownEvent)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecode_PiecePurchasedWithoutSnapshot(t *testing.T) {
	ev, err := Decode(Envelope{Event: EvtPiecePurchased, Data: []byte(`{"team":"white","pieceType":"knight","cost":3}`)})
	require.NoError(t, err)
	_, has := ev.(StateBearing).Snapshot()
	assert.False(t, has)
}

func TestErrorChannelFor(t *testing.T) {
	cases := map[string]string{
		EvtPurchasePiece:      EvtPurchaseError,
		EvtPurchaseUpgrade:    EvtUpgradeError,
		EvtPurchaseModifier:   EvtModifierError,
		EvtPlaceFromBarracks:  EvtPlacementError,
		EvtPokerAction:        EvtPokerError,
		EvtPokerReady:         EvtPokerError,
		EvtMakeMove:           EvtError,
		EvtAdminUpdateEconomy: EvtError,
		EvtJoinMatch:          EvtError,
	}
	for event, want := range cases {
		assert.Equal(t, want, ErrorChannelFor(event), event)
		assert.True(t, IsErrorChannel(ErrorChannelFor(event)))
	}
}
