package network

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"

	"github.com/everglen/everglen/invariant"
)

// Inbox is the ordered queue of network message handlers drained once per
// simulation tick. Router callbacks push closures from necs goroutines; the
// tick drains them on the simulation goroutine so no avatar state is mutated
// concurrently.
type Inbox struct {
	mu    deadlock.Mutex
	queue []func()
	log   zerolog.Logger
}

func NewInbox() *Inbox {
	return &Inbox{
		log: log.With().Str("component", "inbox").Logger(),
	}
}

// Push appends a handler in arrival order.
func (i *Inbox) Push(fn func()) {
	i.mu.Lock()
	i.queue = append(i.queue, fn)
	i.mu.Unlock()
}

// Len reports the number of queued handlers.
func (i *Inbox) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.queue)
}

// Drain runs every handler queued at the time of the call, strictly in
// arrival order. A panicking handler does not stop the rest of the batch;
// the error is logged and the remaining handlers still run. Invariant
// violations are the exception: they re-panic after the log line, because
// continuing would desynchronize every observer of the affected avatar.
func (i *Inbox) Drain() {
	i.mu.Lock()
	batch := i.queue
	i.queue = nil
	i.mu.Unlock()

	for _, fn := range batch {
		i.run(fn)
	}
}

func (i *Inbox) run(fn func()) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if invariant.IsViolation(r) {
			i.log.Error().Interface("panic", r).Msg("fatal invariant violation in message handler")
			panic(r)
		}
		i.log.Error().Interface("panic", r).Msg("message handler failed, continuing batch")
	}()
	fn()
}
