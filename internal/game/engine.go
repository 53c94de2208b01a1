// Package game is the authoritative state engine for the shared board.
//
// One mutex serialises every mutation. Background work (presence sweeping,
// the round-over countdown and broadcast dispatch) runs in goroutines owned
// by Run; none of them sleeps while holding the lock.
package game

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/youngZwiebelandtheGemuseBeat/setgame/internal/rules"
)

const (
	initialBoard = 12
	dealStep     = 3
	largeBoard   = 15
	maxBoard     = 18

	DefaultCountdown      = 10
	DefaultTickInterval   = time.Second
	DefaultSweepInterval  = 5 * time.Second
	DefaultStaleAfter     = 15 * time.Second
	DefaultRecentClaimCap = 10
	DefaultPlacements     = 3
)

const (
	msgSelectThree = "Must select exactly 3 cards"
	msgNotOnBoard  = "One or more cards are no longer on the board"
	msgNotASet     = "Not a valid set"
	msgClaimed     = "Set claimed!"
)

// Engine owns all mutable game state.
type Engine struct {
	mu sync.Mutex

	board      []int
	deck       []int
	scores     map[string]int
	names      map[string]string
	status     Status
	countdown  int
	placements []Placement
	recent     []RecentClaim

	conns    map[string]int
	lastSeen map[string]time.Time
	online   []string

	clock         Clock
	rng           *rand.Rand
	log           *slog.Logger
	broadcaster   Broadcaster
	out           *outbox
	arm           chan struct{}
	countdownFrom int
	tick          time.Duration
	sweep         time.Duration
	staleAfter    time.Duration
	recentCap     int
	podium        int
}

// Option configures an Engine.
type Option func(*Engine)

// WithBroadcaster sets the subscriber fan-out.
func WithBroadcaster(b Broadcaster) Option {
	return func(e *Engine) { e.broadcaster = b }
}

// WithClock replaces wall time, for tests.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithRand fixes the shuffle source.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithLogger sets the logger; slog.Default() otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithCountdown sets how many ticks the round-over screen lasts.
func WithCountdown(ticks int) Option {
	return func(e *Engine) { e.countdownFrom = ticks }
}

// WithTickInterval sets the countdown granularity.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) { e.tick = d }
}

// WithSweepInterval sets how often presence is re-evaluated without events.
func WithSweepInterval(d time.Duration) Option {
	return func(e *Engine) { e.sweep = d }
}

// WithStaleAfter sets how old a heartbeat may be for a player to count as online.
func WithStaleAfter(d time.Duration) Option {
	return func(e *Engine) { e.staleAfter = d }
}

// WithRecentClaimsCap bounds the recent claims list.
func WithRecentClaimsCap(n int) Option {
	return func(e *Engine) { e.recentCap = n }
}

// WithPlacements sets how many players the round-over podium lists.
func WithPlacements(n int) Option {
	return func(e *Engine) { e.podium = n }
}

// New builds an engine and deals the first round.
func New(opts ...Option) *Engine {
	e := &Engine{
		names:         make(map[string]string),
		conns:         make(map[string]int),
		lastSeen:      make(map[string]time.Time),
		clock:         systemClock{},
		broadcaster:   nopBroadcaster{},
		out:           newOutbox(outboxSize),
		arm:           make(chan struct{}, 1),
		countdownFrom: DefaultCountdown,
		tick:          DefaultTickInterval,
		sweep:         DefaultSweepInterval,
		staleAfter:    DefaultStaleAfter,
		recentCap:     DefaultRecentClaimCap,
		podium:        DefaultPlacements,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	e.StartNewRound()
	return e
}

// Run starts the presence sweeper, the round transition scheduler and the
// broadcast dispatcher, and blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		e.dispatch(ctx)
	}()
	go func() {
		defer wg.Done()
		e.sweepPresence(ctx)
	}()
	go func() {
		defer wg.Done()
		e.runTransitions(ctx)
	}()

	e.log.Info("engine running", "sweep", e.sweep, "stale_after", e.staleAfter, "countdown", e.countdownFrom)
	<-ctx.Done()
	wg.Wait()
	e.log.Info("engine stopped")
	return ctx.Err()
}

// StartNewRound resets scores and the podium, shuffles a full deck and deals.
func (e *Engine) StartNewRound() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.scores = make(map[string]int)
	e.placements = nil
	e.recent = nil
	e.countdown = 0
	e.status = StatusPlaying

	e.deck = make([]int, 0, rules.MaxCard)
	for id := rules.MinCard; id <= rules.MaxCard; id++ {
		e.deck = append(e.deck, id)
	}
	e.shuffle(e.deck)
	e.board = make([]int, 0, maxBoard)
	e.deal(initialBoard)
	e.topUpLocked()

	e.verifyLocked("start round")
	e.log.Info("round started", "board", len(e.board), "deck", len(e.deck))
	e.publishLocked()
}

// ClaimSet validates and applies a claim of three board cards.
func (e *Engine) ClaimSet(playerID string, cards []int) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(cards) != 3 {
		return reject(msgSelectThree)
	}
	positions := make([]int, len(cards))
	for i, id := range cards {
		pos := slices.Index(e.board, id)
		if pos < 0 {
			return reject(msgNotOnBoard)
		}
		positions[i] = pos
	}
	if cards[0] == cards[1] || cards[1] == cards[2] || cards[0] == cards[2] {
		return reject(msgNotASet)
	}
	if !rules.IsSet(cards[0], cards[1], cards[2]) {
		return reject(msgNotASet)
	}

	if len(e.board) >= largeBoard {
		e.board = slices.DeleteFunc(e.board, func(id int) bool {
			return slices.Contains(cards, id)
		})
	} else {
		const vacant = 0
		for _, pos := range positions {
			if len(e.deck) > 0 {
				e.board[pos] = e.deck[0]
				e.deck = e.deck[1:]
			} else {
				e.board[pos] = vacant
			}
		}
		e.board = slices.DeleteFunc(e.board, func(id int) bool { return id == vacant })
	}
	e.topUpLocked()

	e.scores[playerID]++
	claim := RecentClaim{PlayerID: playerID, Cards: [3]int{cards[0], cards[1], cards[2]}}
	e.recent = append([]RecentClaim{claim}, e.recent...)
	if len(e.recent) > e.recentCap {
		e.recent = e.recent[:e.recentCap]
	}
	e.verifyLocked("claim")

	e.log.Debug("set claimed", "player", playerID, "cards", cards, "board", len(e.board), "deck", len(e.deck))

	if len(e.deck) == 0 && !rules.SetExists(e.board) {
		e.enterRoundOverLocked()
	}
	e.publishLocked()

	snap := e.snapshotLocked()
	return Result{Success: true, Message: msgClaimed, State: &snap}
}
