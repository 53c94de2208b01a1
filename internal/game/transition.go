package game

import (
	"cmp"
	"context"
	"slices"
	"time"
)

// enterRoundOverLocked freezes the podium and arms the countdown. Caller holds e.mu.
func (e *Engine) enterRoundOverLocked() {
	e.status = StatusRoundOver
	e.placements = e.rankLocked()
	e.countdown = e.countdownFrom
	e.log.Info("round over", "players", len(e.scores), "countdown", e.countdown)

	select {
	case e.arm <- struct{}{}:
	default:
	}
}

// rankLocked orders scored players by score desc, then name, then id.
func (e *Engine) rankLocked() []Placement {
	ranked := make([]Placement, 0, len(e.scores))
	for id, score := range e.scores {
		ranked = append(ranked, Placement{PlayerID: id, Name: e.displayNameLocked(id), Score: score})
	}
	slices.SortFunc(ranked, func(a, b Placement) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.PlayerID, b.PlayerID)
	})
	if len(ranked) > e.podium {
		ranked = ranked[:e.podium]
	}
	for i := range ranked {
		ranked[i].Place = i + 1
	}
	return ranked
}

// runTransitions is the single long-lived round scheduler. It idles until
// armed by enterRoundOverLocked, counts down, then deals a new round.
func (e *Engine) runTransitions(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.arm:
		}
		if !e.countDown(ctx) {
			continue
		}
		// The lock is not held here; StartNewRound takes it itself.
		e.StartNewRound()
	}
}

// countDown ticks the countdown to zero, broadcasting each step. It reports
// false when the round left round_over some other way or ctx ended.
func (e *Engine) countDown(ctx context.Context) bool {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}

		e.mu.Lock()
		if e.status != StatusRoundOver {
			e.mu.Unlock()
			return false
		}
		if e.countdown > 0 {
			e.countdown--
		}
		remaining := e.countdown
		e.publishLocked()
		e.mu.Unlock()

		if remaining == 0 {
			return true
		}
	}
}
