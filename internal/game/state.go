package game

import "slices"

// Status is the round lifecycle state.
type Status string

const (
	StatusPlaying   Status = "playing"
	StatusRoundOver Status = "round_over"
)

// Placement is one row of the end-of-round podium.
type Placement struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Place    int    `json:"place"`
}

// RecentClaim records a successful claim for UI feedback.
type RecentClaim struct {
	PlayerID string `json:"player_id"`
	Cards    [3]int `json:"cards"`
}

// State is a read-only copy of everything subscribers may see.
type State struct {
	Board           []int             `json:"board"`
	DeckCount       int               `json:"deck_count"`
	Scores          map[string]int    `json:"scores"`
	Names           map[string]string `json:"names"`
	Status          Status            `json:"status"`
	OnlinePlayerIDs []string          `json:"online_player_ids"`
	Countdown       int               `json:"countdown"`
	Placements      []Placement       `json:"placements"`
	RecentClaims    []RecentClaim     `json:"recent_claims"`
}

// Result answers a claim or rename to the caller only.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	State   *State `json:"new_state,omitempty"`
}

func reject(msg string) Result {
	return Result{Success: false, Message: msg}
}

// snapshotLocked copies engine state. Caller holds e.mu.
func (e *Engine) snapshotLocked() State {
	scores := make(map[string]int, len(e.scores))
	for id, s := range e.scores {
		scores[id] = s
	}
	names := make(map[string]string, len(e.names))
	for id, n := range e.names {
		names[id] = n
	}
	board := make([]int, len(e.board))
	copy(board, e.board)

	online := make([]string, len(e.online))
	copy(online, e.online)

	placements := make([]Placement, len(e.placements))
	copy(placements, e.placements)

	recent := slices.Clone(e.recent)
	if recent == nil {
		recent = []RecentClaim{}
	}

	return State{
		Board:           board,
		DeckCount:       len(e.deck),
		Scores:          scores,
		Names:           names,
		Status:          e.status,
		OnlinePlayerIDs: online,
		Countdown:       e.countdown,
		Placements:      placements,
		RecentClaims:    recent,
	}
}

// CurrentState returns a snapshot without mutating anything.
func (e *Engine) CurrentState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}
