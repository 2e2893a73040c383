package network

import (
	"github.com/leap-fish/necs/esync"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
	"golang.org/x/time/rate"

	"github.com/everglen/everglen/config"
	"github.com/everglen/everglen/shared/messages"
)

// DeltaTarget is the entity store the queue applies deltas to.
type DeltaTarget interface {
	// Exists reports whether the entity has materialized locally.
	Exists(id esync.NetworkId) bool
	// ApplyDelta merges a delta into an existing entity's state.
	ApplyDelta(id esync.NetworkId, delta messages.AvatarDelta) error
}

type pendingDelta struct {
	delta   messages.AvatarDelta
	arrival uint64
}

// SyncQueue buffers per-entity state deltas that arrive before the entity
// itself exists, replays them on creation in original arrival order, and
// emits a normalized change event for every applied delta.
type SyncQueue struct {
	mu deadlock.Mutex

	target  DeltaTarget
	pending map[esync.NetworkId][]pendingDelta
	arrival uint64

	// Events carries every successfully applied delta.
	Events *Topic[messages.AvatarDelta]

	orphanLog *rate.Limiter
	log       zerolog.Logger
}

func NewSyncQueue(target DeltaTarget) *SyncQueue {
	return &SyncQueue{
		target:    target,
		pending:   make(map[esync.NetworkId][]pendingDelta),
		Events:    NewTopic[messages.AvatarDelta](),
		orphanLog: rate.NewLimiter(rate.Limit(config.Network.LogThrottlePerSec), 1),
		log:       log.With().Str("component", "syncqueue").Logger(),
	}
}

// Apply merges a delta into the entity if it exists, otherwise parks it on
// the bounded pending list. A delta with no recognized fields is rejected.
func (q *SyncQueue) Apply(id esync.NetworkId, delta messages.AvatarDelta) {
	if !delta.HasChanges() {
		q.log.Warn().Uint32("id", uint32(id)).Msg("rejecting delta with no recognized fields")
		return
	}

	q.mu.Lock()
	if !q.target.Exists(id) {
		q.park(id, delta)
		q.mu.Unlock()
		return
	}
	q.mu.Unlock()

	q.deliver(id, delta)
}

// park appends to the per-entity pending list, dropping the oldest entry
// beyond the cap so a permanently missing entity cannot grow the queue
// without bound. Caller holds q.mu.
func (q *SyncQueue) park(id esync.NetworkId, delta messages.AvatarDelta) {
	q.arrival++
	list := append(q.pending[id], pendingDelta{delta: delta, arrival: q.arrival})
	if limit := config.Network.PendingDeltaCap; len(list) > limit {
		list = list[len(list)-limit:]
	}
	q.pending[id] = list

	// Throttled so a permanently missing entity does not storm the log.
	if q.orphanLog.Allow() {
		q.log.Debug().
			Uint32("id", uint32(id)).
			Int("pending", len(list)).
			Msg("delta arrived before entity, buffering")
	}
}

func (q *SyncQueue) deliver(id esync.NetworkId, delta messages.AvatarDelta) {
	if err := q.target.ApplyDelta(id, delta); err != nil {
		q.log.Error().Err(err).Uint32("id", uint32(id)).Msg("delta apply failed")
		return
	}
	delta.ID = id
	q.Events.Publish(delta)
}

// OnEntityCreated drains the pending list for id, replaying every buffered
// delta through the normal apply path in arrival order, then discards the
// list.
func (q *SyncQueue) OnEntityCreated(id esync.NetworkId) {
	q.mu.Lock()
	list := q.pending[id]
	delete(q.pending, id)
	q.mu.Unlock()

	for _, p := range list {
		q.deliver(id, p.delta)
	}
	if len(list) > 0 {
		q.log.Debug().
			Uint32("id", uint32(id)).
			Int("replayed", len(list)).
			Msg("replayed buffered deltas for new entity")
	}
}

// PendingCount reports how many deltas are parked for id.
func (q *SyncQueue) PendingCount(id esync.NetworkId) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending[id])
}
