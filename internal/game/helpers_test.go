package game

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/youngZwiebelandtheGemuseBeat/setgame/internal/rules"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) Notify(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) all() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.states)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	base := []Option{
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithLogger(quietLogger()),
	}
	e := New(append(base, opts...)...)
	drain(e)
	return e
}

// runEngine starts the background goroutines and stops them at test end.
func runEngine(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// setPiles replaces board and deck. A nil deck means an exhausted deck.
func setPiles(e *Engine, board, deck []int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.board = slices.Clone(board)
	e.deck = slices.Clone(deck)
}

// rest returns every card not on board, ascending.
func rest(board []int) []int {
	var out []int
	for id := rules.MinCard; id <= rules.MaxCard; id++ {
		if !slices.Contains(board, id) {
			out = append(out, id)
		}
	}
	return out
}

// drain empties the outbox and reports how many snapshots were queued.
func drain(e *Engine) int {
	n := 0
	for {
		select {
		case <-e.out.ch:
			n++
		default:
			return n
		}
	}
}

func requireInvariants(t *testing.T, e *Engine) {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	require.NoError(t, e.checkInvariantsLocked())
}
