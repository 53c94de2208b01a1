// Package bot runs in-process house players driven by Lua strategies.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/youngZwiebelandtheGemuseBeat/setgame/internal/game"
)

// Engine is what a bot needs from the game.
type Engine interface {
	ClaimSet(playerID string, cards []int) game.Result
	Heartbeat(playerID string)
	RegisterConnection(playerID string)
	UnregisterConnection(playerID string)
	CurrentState() game.State
}

// Bot is one scripted player.
type Bot struct {
	ID string

	engine   Engine
	strategy *Strategy
	think    time.Duration
	log      *slog.Logger
}

// NewID mints a bot player id.
func NewID() string {
	return "bot-" + uuid.NewString()
}

// New compiles src for a bot that acts every think interval.
func New(id string, e Engine, src string, think time.Duration, log *slog.Logger) (*Bot, error) {
	if think <= 0 {
		return nil, fmt.Errorf("bot %s: think time must be positive", id)
	}
	s, err := NewStrategy(src)
	if err != nil {
		return nil, fmt.Errorf("bot %s: %w", id, err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Bot{ID: id, engine: e, strategy: s, think: think, log: log.With("bot", id)}, nil
}

// Run plays until ctx ends, then disconnects and frees the interpreter.
func (b *Bot) Run(ctx context.Context) {
	b.engine.RegisterConnection(b.ID)
	b.engine.Heartbeat(b.ID)
	defer func() {
		b.engine.UnregisterConnection(b.ID)
		b.strategy.Close()
	}()

	t := time.NewTicker(b.think)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			b.engine.Heartbeat(b.ID)
			b.Turn(ctx)
		}
	}
}

// Turn asks the strategy once and submits its pick. It reports whether a
// claim was accepted.
func (b *Bot) Turn(ctx context.Context) bool {
	s := b.engine.CurrentState()
	if s.Status != game.StatusPlaying {
		return false
	}
	pick, err := b.strategy.Choose(ctx, s.Board)
	if err != nil {
		b.log.Warn("strategy failed, skipping turn", "error", err)
		return false
	}
	if pick == nil {
		return false
	}
	res := b.engine.ClaimSet(b.ID, pick)
	b.log.Debug("claim", "cards", pick, "success", res.Success, "message", res.Message)
	return res.Success
}

// Spawn starts n bots sharing one script and returns once they are all
// running. The returned wait function blocks until they have stopped.
func Spawn(ctx context.Context, n int, e Engine, src string, think time.Duration, log *slog.Logger) (wait func(), err error) {
	bots := make([]*Bot, 0, n)
	for range n {
		b, err := New(NewID(), e, src, think, log)
		if err != nil {
			for _, prev := range bots {
				prev.strategy.Close()
			}
			return nil, err
		}
		bots = append(bots, b)
	}

	done := make(chan struct{}, n)
	for _, b := range bots {
		go func() {
			defer func() { done <- struct{}{} }()
			b.Run(ctx)
		}()
	}
	return func() {
		for range n {
			<-done
		}
	}, nil
}
