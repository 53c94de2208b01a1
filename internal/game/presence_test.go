package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresence_HeartbeatWindow(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(t, WithClock(clock))

	e.RegisterConnection("p1")
	assert.Empty(t, e.CurrentState().OnlinePlayerIDs, "connected but no heartbeat yet")
	assert.Zero(t, drain(e))

	e.Heartbeat("p1")
	assert.Equal(t, []string{"p1"}, e.CurrentState().OnlinePlayerIDs)
	assert.Equal(t, 1, drain(e))

	assert.False(t, e.UpdateOnlineSet(), "membership unchanged")
	assert.Zero(t, drain(e))

	clock.Advance(10 * time.Second)
	assert.False(t, e.UpdateOnlineSet())

	clock.Advance(6 * time.Second)
	assert.True(t, e.UpdateOnlineSet(), "stale after 15s")
	assert.Empty(t, e.CurrentState().OnlinePlayerIDs)
	assert.Equal(t, 1, drain(e))
}

func TestPresence_MultipleConnections(t *testing.T) {
	e := newTestEngine(t, WithClock(newFakeClock()))

	e.RegisterConnection("p1")
	e.RegisterConnection("p1")
	e.Heartbeat("p1")

	e.UnregisterConnection("p1")
	assert.Equal(t, []string{"p1"}, e.CurrentState().OnlinePlayerIDs, "one tab still open")

	e.UnregisterConnection("p1")
	s := e.CurrentState()
	assert.Empty(t, s.OnlinePlayerIDs)
	assert.Contains(t, s.Names, "p1", "identity survives disconnect")

	e.mu.Lock()
	assert.NotContains(t, e.conns, "p1")
	assert.NotContains(t, e.lastSeen, "p1")
	e.mu.Unlock()
}

func TestPresence_ScoreSurvivesReconnect(t *testing.T) {
	e := newTestEngine(t, WithClock(newFakeClock()))
	board := []int{1, 2, 3, 10, 20, 30, 40, 50, 60, 70, 80, 81}
	setPiles(e, board, rest(board))

	e.RegisterConnection("p1")
	e.Heartbeat("p1")
	require.True(t, e.ClaimSet("p1", []int{1, 2, 3}).Success)
	e.UnregisterConnection("p1")

	e.RegisterConnection("p1")
	e.Heartbeat("p1")
	s := e.CurrentState()
	assert.Equal(t, 1, s.Scores["p1"])
	assert.Equal(t, []string{"p1"}, s.OnlinePlayerIDs)
}

func TestPresence_UnknownDisconnectIsHarmless(t *testing.T) {
	e := newTestEngine(t)
	e.UnregisterConnection("ghost")
	assert.Empty(t, e.CurrentState().OnlinePlayerIDs)
	assert.Zero(t, drain(e))
}

func TestPresence_HeartbeatWithoutConnection(t *testing.T) {
	e := newTestEngine(t, WithClock(newFakeClock()))
	e.Heartbeat("p1")

	s := e.CurrentState()
	assert.Empty(t, s.OnlinePlayerIDs)
	assert.Contains(t, s.Names, "p1")
	assert.Equal(t, 1, drain(e), "new name is visible state")

	e.mu.Lock()
	assert.NotContains(t, e.lastSeen, "p1")
	e.mu.Unlock()
}

func TestPresence_OnlineSorted(t *testing.T) {
	e := newTestEngine(t, WithClock(newFakeClock()))
	for _, id := range []string{"c", "a", "b"} {
		e.RegisterConnection(id)
		e.Heartbeat(id)
	}
	assert.Equal(t, []string{"a", "b", "c"}, e.CurrentState().OnlinePlayerIDs)
}

func TestPresence_SweeperExpiresStalePlayers(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	e := newTestEngine(t,
		WithClock(clock),
		WithBroadcaster(rec),
		WithSweepInterval(2*time.Millisecond),
	)
	e.RegisterConnection("p1")
	e.Heartbeat("p1")
	runEngine(t, e)

	clock.Advance(20 * time.Second)
	require.Eventually(t, func() bool {
		return len(e.CurrentState().OnlinePlayerIDs) == 0
	}, time.Second, 2*time.Millisecond)

	require.Eventually(t, func() bool {
		states := rec.all()
		return len(states) > 0 && len(states[len(states)-1].OnlinePlayerIDs) == 0
	}, time.Second, 2*time.Millisecond)
}
