package game

import "context"

// Broadcaster pushes a full snapshot to every subscriber.
//
// Notify is called from the engine's dispatcher goroutine, never while the
// engine lock is held. Implementations must not block for long and must not
// call back into the Engine synchronously.
type Broadcaster interface {
	Notify(State)
}

// BroadcasterFunc adapts a function to Broadcaster.
type BroadcasterFunc func(State)

func (f BroadcasterFunc) Notify(s State) { f(s) }

type nopBroadcaster struct{}

func (nopBroadcaster) Notify(State) {}

const outboxSize = 16

// outbox is the bounded queue between critical sections and the broadcaster.
// Snapshots are full state, so when it fills the oldest pending one is
// discarded and the newest always gets through.
type outbox struct {
	ch      chan State
	dropped int
}

func newOutbox(size int) *outbox {
	return &outbox{ch: make(chan State, size)}
}

// push never blocks. Only one goroutine pushes at a time (the engine lock
// holder), so the retry loop terminates.
func (o *outbox) push(s State) {
	for {
		select {
		case o.ch <- s:
			return
		default:
		}
		select {
		case <-o.ch:
			o.dropped++
		default:
		}
	}
}

// publishLocked queues the current snapshot. Caller holds e.mu.
func (e *Engine) publishLocked() {
	before := e.out.dropped
	e.out.push(e.snapshotLocked())
	if e.out.dropped != before {
		e.log.Warn("broadcast queue full, dropped stale snapshot", "dropped_total", e.out.dropped)
	}
}

func (e *Engine) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-e.out.ch:
			e.broadcaster.Notify(s)
		}
	}
}
