package game

import (
	"context"
	"slices"
	"time"
)

// RegisterConnection counts one more live socket for playerID.
func (e *Engine) RegisterConnection(playerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.conns[playerID]++
	e.updateOnlineSetLocked()
}

// UnregisterConnection drops one socket. The last one removes presence
// bookkeeping but keeps the player's score and name for reconnects.
func (e *Engine) UnregisterConnection(playerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if n, ok := e.conns[playerID]; ok {
		if n <= 1 {
			delete(e.conns, playerID)
			delete(e.lastSeen, playerID)
		} else {
			e.conns[playerID] = n - 1
		}
	}
	e.updateOnlineSetLocked()
}

// Heartbeat marks playerID as active now, naming them on first sight.
func (e *Engine) Heartbeat(playerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	named := false
	if _, ok := e.names[playerID]; !ok {
		e.names[playerID] = e.defaultNameLocked(playerID)
		named = true
	}
	e.lastSeen[playerID] = e.clock.Now()

	if !e.updateOnlineSetLocked() && named {
		e.publishLocked()
	}
}

// UpdateOnlineSet recomputes who is online and broadcasts if that changed.
func (e *Engine) UpdateOnlineSet() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updateOnlineSetLocked()
}

func (e *Engine) updateOnlineSetLocked() bool {
	now := e.clock.Now()
	next := make([]string, 0, len(e.conns))
	for id, n := range e.conns {
		if n <= 0 {
			continue
		}
		seen, ok := e.lastSeen[id]
		if ok && now.Sub(seen) <= e.staleAfter {
			next = append(next, id)
		}
	}
	// heartbeats from sockets that already closed
	for id := range e.lastSeen {
		if e.conns[id] <= 0 {
			delete(e.lastSeen, id)
		}
	}
	slices.Sort(next)

	if slices.Equal(next, e.online) {
		return false
	}
	e.online = next
	e.log.Debug("online set changed", "online", len(next))
	e.publishLocked()
	return true
}

func (e *Engine) sweepPresence(ctx context.Context) {
	ticker := time.NewTicker(e.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.UpdateOnlineSet()
		}
	}
}
