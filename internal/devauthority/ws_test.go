package devauthority

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/matchsync/internal/conn"
	"github.com/DoyleJ11/matchsync/internal/match"
	"github.com/DoyleJ11/matchsync/internal/protocol"
)

func startServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	h := NewHub(context.Background(), Options{Economy: 100, Seed: 1})
	srv := httptest.NewServer(SetupRoutes(h, nil))
	t.Cleanup(func() {
		srv.Close()
		h.Stop()
	})
	return srv, h
}

func dialWS(t *testing.T, srv *httptest.Server) conn.Transport {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tr, err := conn.WebSocket("ws" + strings.TrimPrefix(srv.URL, "http") + "/ws")(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func sendFrame(t *testing.T, tr conn.Transport, requestID string, cmd protocol.Outbound) {
	t.Helper()
	frame, err := protocol.Encode(cmd.EventName(), requestID, cmd)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tr.Write(ctx, frame))
}

// readUntil skips frames until one named event arrives.
func readUntil(t *testing.T, tr conn.Transport, event string) protocol.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		data, err := tr.Read(ctx)
		require.NoError(t, err, "waiting for %s", event)
		env, err := protocol.DecodeEnvelope(data)
		require.NoError(t, err)
		if env.Event == event {
			return env
		}
	}
}

func TestWS_CreateJoinAndMove(t *testing.T) {
	srv, _ := startServer(t)
	white := dialWS(t, srv)
	black := dialWS(t, srv)

	sendFrame(t, white, "c1", protocol.CreateMatch{PlayerName: "ann", PreferredTeam: match.TeamWhite, PreferredSlot: match.SlotBoard})
	env := readUntil(t, white, protocol.EvtMatchJoined)
	assert.Equal(t, "c1", env.RequestID)
	ev, err := protocol.Decode(env)
	require.NoError(t, err)
	joined := ev.(protocol.MatchJoined)
	assert.Equal(t, whiteBoard, joined.AssignedRole)

	sendFrame(t, black, "j1", protocol.JoinMatch{MatchID: joined.MatchID, PlayerName: "bob"})
	env = readUntil(t, black, protocol.EvtMatchJoined)
	ev, err = protocol.Decode(env)
	require.NoError(t, err)
	assert.Equal(t, blackBoard, ev.(protocol.MatchJoined).AssignedRole)
	assert.Equal(t, match.StatusActive, ev.(protocol.MatchJoined).MatchState.Status)

	sendFrame(t, white, "m1", protocol.MakeMove{MatchID: joined.MatchID, From: pos(1, 4), To: pos(3, 4), GameSlot: match.SlotBoard})
	env = readUntil(t, black, protocol.EvtMoveMade)
	assert.Empty(t, env.RequestID)
	ev, err = protocol.Decode(env)
	require.NoError(t, err)
	assert.Equal(t, pos(3, 4), ev.(protocol.MoveMade).Move.To)

	env = readUntil(t, white, protocol.EvtMoveMade)
	assert.Equal(t, "m1", env.RequestID)
}

func TestWS_Errors(t *testing.T) {
	srv, _ := startServer(t)
	tr := dialWS(t, srv)

	sendFrame(t, tr, "j1", protocol.JoinMatch{MatchID: "ZZZZZZ", PlayerName: "ann"})
	env := readUntil(t, tr, protocol.EvtError)
	assert.Equal(t, "j1", env.RequestID)
	ev, err := protocol.Decode(env)
	require.NoError(t, err)
	assert.Equal(t, protocol.CodeMatchNotFound, ev.(protocol.ErrorEvent).Code)

	sendFrame(t, tr, "p1", protocol.PurchasePiece{PieceType: "pawn"})
	env = readUntil(t, tr, protocol.EvtPurchaseError)
	assert.Equal(t, "p1", env.RequestID)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tr.Write(ctx, []byte(`{"event":"launch_missiles","requestId":"x1"}`)))
	env = readUntil(t, tr, protocol.EvtError)
	assert.Equal(t, "x1", env.RequestID)
}

func TestWS_FullMatchReportsSlotUnavailable(t *testing.T) {
	srv, h := startServer(t)
	ctx := context.Background()
	mt, err := h.Create(ctx)
	require.NoError(t, err)
	for i, r := range match.AllRoles {
		_, err := mt.Join(ctx, Join{ClientID: string(rune('a' + i)), Team: r.Team, Slot: r.Slot, Outbox: make(chan Outgoing, 64)})
		require.NoError(t, err)
	}

	tr := dialWS(t, srv)
	sendFrame(t, tr, "j1", protocol.JoinMatch{MatchID: mt.ID(), PlayerName: "late"})
	env := readUntil(t, tr, protocol.EvtError)
	ev, err := protocol.Decode(env)
	require.NoError(t, err)
	assert.Equal(t, protocol.CodeSlotUnavailable, ev.(protocol.ErrorEvent).Code)
}

func TestWS_WaitingMatchesAndPushes(t *testing.T) {
	srv, h := startServer(t)
	tr := dialWS(t, srv)

	sendFrame(t, tr, "w1", protocol.GetWaitingMatches{})
	env := readUntil(t, tr, protocol.EvtWaitingMatches)
	assert.Equal(t, "w1", env.RequestID)
	ev, err := protocol.Decode(env)
	require.NoError(t, err)
	assert.Empty(t, ev.(protocol.WaitingMatches).Matches)

	mt, err := h.Create(context.Background())
	require.NoError(t, err)
	env = readUntil(t, tr, protocol.EvtMatchesUpdated)
	ev, err = protocol.Decode(env)
	require.NoError(t, err)
	ms := ev.(protocol.MatchesUpdated).Matches
	require.Len(t, ms, 1)
	assert.Equal(t, mt.ID(), ms[0].ID)
}

func TestHTTP_Routes(t *testing.T) {
	srv, _ := startServer(t)

	res, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Post(srv.URL+"/matches", "application/json", nil)
	require.NoError(t, err)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&created))
	res.Body.Close()
	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Len(t, created.ID, 6)

	res, err = http.Get(srv.URL + "/matches")
	require.NoError(t, err)
	var list protocol.WaitingMatches
	require.NoError(t, json.NewDecoder(res.Body).Decode(&list))
	res.Body.Close()
	require.Len(t, list.Matches, 1)
	assert.Equal(t, created.ID, list.Matches[0].ID)
}
