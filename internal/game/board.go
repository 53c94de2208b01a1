package game

import (
	"fmt"

	"github.com/youngZwiebelandtheGemuseBeat/setgame/internal/rules"
)

// InvariantError reports board/deck corruption. It means the mutation logic
// is broken, never that a player did something wrong.
type InvariantError struct {
	Card   int
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("card %d: %s", e.Card, e.Reason)
}

func (e *Engine) shuffle(cards []int) {
	e.rng.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
}

// deal moves up to n cards from the top of the deck onto the board.
func (e *Engine) deal(n int) {
	if n > len(e.deck) {
		n = len(e.deck)
	}
	e.board = append(e.board, e.deck[:n]...)
	e.deck = e.deck[n:]
}

// topUpLocked deals threes until a set shows or the board is full, then falls
// back to a reshuffle if a full board still has no set.
func (e *Engine) topUpLocked() {
	for len(e.board) < maxBoard && len(e.deck) > 0 && !rules.SetExists(e.board) {
		e.deal(dealStep)
	}
	if len(e.board) >= maxBoard && !rules.SetExists(e.board) {
		e.reshuffleAndRedealLocked()
	}
}

// reshuffleAndRedealLocked merges board and deck, shuffles and deals again.
// Best effort: it relies on the shuffle to surface a set and does not retry.
func (e *Engine) reshuffleAndRedealLocked() {
	merged := make([]int, 0, len(e.board)+len(e.deck))
	merged = append(merged, e.board...)
	merged = append(merged, e.deck...)
	e.shuffle(merged)

	e.deck = merged
	e.board = make([]int, 0, maxBoard)
	e.deal(initialBoard)
	for len(e.board) < maxBoard && len(e.deck) > 0 && !rules.SetExists(e.board) {
		e.deal(dealStep)
	}
	e.log.Info("board reshuffled", "board", len(e.board), "deck", len(e.deck), "set_visible", rules.SetExists(e.board))
}

// checkInvariantsLocked verifies every card in play is in range and appears once.
func (e *Engine) checkInvariantsLocked() error {
	seen := make(map[int]bool, len(e.board)+len(e.deck))
	for _, pile := range [][]int{e.board, e.deck} {
		for _, id := range pile {
			if !rules.ValidCard(id) {
				return &InvariantError{Card: id, Reason: "out of range"}
			}
			if seen[id] {
				return &InvariantError{Card: id, Reason: "duplicated in play"}
			}
			seen[id] = true
		}
	}
	return nil
}

func (e *Engine) verifyLocked(op string) {
	if err := e.checkInvariantsLocked(); err != nil {
		e.log.Error("invariant violated", "op", op, "error", err)
	}
}
