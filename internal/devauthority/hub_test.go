package devauthority

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/matchsync/internal/match"
	"github.com/DoyleJ11/matchsync/internal/protocol"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(context.Background(), Options{Economy: 100, Seed: 42})
	t.Cleanup(h.Stop)
	return h
}

func TestNewMatchID(t *testing.T) {
	cases := []struct {
		n    int
		want int
	}{
		{n: 0, want: DefaultMatchIDLength},
		{n: -3, want: DefaultMatchIDLength},
		{n: 4, want: 4},
		{n: 10, want: 10},
	}
	for _, tc := range cases {
		id, err := NewMatchID(tc.n)
		require.NoError(t, err)
		assert.Len(t, id, tc.want)
		for _, r := range id {
			assert.True(t, strings.ContainsRune(matchIDAlphabet, r), "unexpected %q in %s", r, id)
		}
		assert.False(t, strings.ContainsAny(id, "0O1I"))
	}
}

func TestHub_UsesConfiguredIDLength(t *testing.T) {
	h := NewHub(context.Background(), Options{Economy: 100, Seed: 42, IDLength: 8})
	t.Cleanup(h.Stop)

	m, err := h.Create(context.Background())
	require.NoError(t, err)
	assert.Len(t, m.ID(), 8)
}

func TestHub_Create_Get_SamePointer(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	m1, err := h.Create(ctx)
	require.NoError(t, err)
	m2 := h.Get(ctx, strings.ToLower(m1.ID()))
	require.NotNil(t, m2)
	assert.Same(t, m1, m2)

	assert.Nil(t, h.Get(ctx, "NOPE00"))
}

func TestHub_ListShowsOpenMatchesInOrder(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	a, err := h.Create(ctx)
	require.NoError(t, err)
	b, err := h.Create(ctx)
	require.NoError(t, err)

	ms, err := h.List(ctx)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Less(t, ms[0].ID, ms[1].ID)
	assert.ElementsMatch(t, []string{a.ID(), b.ID()}, []string{ms[0].ID, ms[1].ID})
	assert.Equal(t, match.AllRoles, ms[0].OpenRoles)

	// Fill a; it drops off the list once the hub hears about it.
	for i, r := range match.AllRoles {
		_, err := a.Join(ctx, Join{ClientID: string(rune('p' + i)), Team: r.Team, Slot: r.Slot, Outbox: make(chan Outgoing, 16)})
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool {
		ms, err := h.List(ctx)
		return err == nil && len(ms) == 1 && ms[0].ID == b.ID()
	}, time.Second, 10*time.Millisecond)
}

func TestHub_WatchersReceiveDirectory(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	out := make(chan Outgoing, 16)
	h.Watch("viewer", out)

	mt, err := h.Create(ctx)
	require.NoError(t, err)

	frame := recvFrame(t, out, 200*time.Millisecond)
	assert.Equal(t, protocol.EvtMatchesUpdated, frame.Event)
	upd := frame.Payload.(protocol.MatchesUpdated)
	require.Len(t, upd.Matches, 1)
	assert.Equal(t, mt.ID(), upd.Matches[0].ID)

	_, err = mt.Join(ctx, Join{ClientID: "p1", Name: "ann", Team: match.TeamWhite, Slot: match.SlotBoard, Outbox: make(chan Outgoing, 4)})
	require.NoError(t, err)
	frame = recvFrame(t, out, 200*time.Millisecond)
	upd = frame.Payload.(protocol.MatchesUpdated)
	require.Len(t, upd.Matches, 1)
	assert.Equal(t, []protocol.Seat{{Role: whiteBoard, Name: "ann"}}, upd.Matches[0].Players)

	h.Unwatch("viewer")
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-out:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestHub_Remove(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	mt, err := h.Create(ctx)
	require.NoError(t, err)
	out := make(chan Outgoing, 4)
	_, err = mt.Join(ctx, Join{ClientID: "p1", Outbox: out})
	require.NoError(t, err)

	h.Remove(mt.ID())
	assert.Nil(t, h.Get(ctx, mt.ID()))

	// Removing stops the match, which closes its clients.
	require.Eventually(t, func() bool {
		_, err := mt.State(ctx)
		return err != nil
	}, time.Second, 10*time.Millisecond)
}

func TestHub_StopEndsMatches(t *testing.T) {
	h := NewHub(context.Background(), Options{})
	ctx := context.Background()

	mt, err := h.Create(ctx)
	require.NoError(t, err)
	h.Stop()

	_, err = h.Create(ctx)
	assert.ErrorIs(t, err, ErrStopped)
	require.Eventually(t, func() bool {
		_, err := mt.State(ctx)
		return err != nil
	}, time.Second, 10*time.Millisecond)
}
