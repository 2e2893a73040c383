package physics

import (
	"github.com/everglen/everglen/invariant"
	"github.com/sasha-s/go-deadlock"
)

// MaxLayers is the bit budget of a 32-bit collision mask.
const MaxLayers = 32

// Well-known layer names used by the default world adjacency.
const (
	LayerEnvironment = "environment"
	LayerPlayer      = "player"
	LayerProp        = "prop"
	LayerTool        = "tool"
	LayerCamera      = "camera"
)

// LayerRegistry assigns each named collision category a unique group bit and
// builds pairwise collides-with masks. The registry is directional: declaring
// A collides-with B does not make B collide-with A — declare both directions
// when symmetry is intended. Built once at startup and frozen.
type LayerRegistry struct {
	mu     deadlock.RWMutex
	bits   map[string]uint32
	masks  map[string]uint32
	order  []string
	frozen bool
}

func NewLayerRegistry() *LayerRegistry {
	return &LayerRegistry{
		bits:  make(map[string]uint32),
		masks: make(map[string]uint32),
	}
}

// Declare allocates a group bit for name on first reference (and for any
// first-referenced collidee), then ORs the collidees' bits into name's mask.
// Declaring more than MaxLayers distinct names is a fatal configuration
// error.
func (r *LayerRegistry) Declare(name string, collidesWith ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	invariant.Assert(!r.frozen, "collision layer %q declared after freeze", name)

	r.bitFor(name)
	for _, other := range collidesWith {
		r.masks[name] |= r.bitFor(other)
	}
}

// bitFor returns the group bit for a name, allocating the next free bit on
// first reference. Caller must hold r.mu.
func (r *LayerRegistry) bitFor(name string) uint32 {
	if bit, ok := r.bits[name]; ok {
		return bit
	}
	invariant.Assert(len(r.order) < MaxLayers, "collision layer budget exceeded declaring %q", name)
	bit := uint32(1) << uint(len(r.order))
	r.bits[name] = bit
	if _, ok := r.masks[name]; !ok {
		r.masks[name] = 0
	}
	r.order = append(r.order, name)
	return bit
}

// Freeze makes further declarations fatal.
func (r *LayerRegistry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// GroupBit returns the single bit assigned to name. Unknown names are a
// fatal configuration error.
func (r *LayerRegistry) GroupBit(name string) uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.bits[name]
	invariant.Assert(ok, "unknown collision layer %q", name)
	return bit
}

// MaskFor ORs together the group bits of the given names, e.g. a combined
// environment|prop query mask for ground probes.
func (r *LayerRegistry) MaskFor(names ...string) uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var mask uint32
	for _, name := range names {
		bit, ok := r.bits[name]
		invariant.Assert(ok, "unknown collision layer %q", name)
		mask |= bit
	}
	return mask
}

// CollidesWith returns the mask of everything name collides with.
func (r *LayerRegistry) CollidesWith(name string) uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mask, ok := r.masks[name]
	invariant.Assert(ok, "unknown collision layer %q", name)
	return mask
}

// FilterFor builds the shape filter pair for name.
func (r *LayerRegistry) FilterFor(name string) FilterData {
	return FilterData{Group: r.GroupBit(name), Mask: r.CollidesWith(name)}
}

// Names returns the declared layer names in bit order.
func (r *LayerRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// DefaultLayers builds the world's static adjacency: players collide with
// the environment and props (optionally each other), props are pushable by
// players, tools are query-only, the camera probe only hits environment.
func DefaultLayers(playerVsPlayer bool) *LayerRegistry {
	r := NewLayerRegistry()
	r.Declare(LayerEnvironment, LayerPlayer, LayerProp)
	playerHits := []string{LayerEnvironment, LayerProp}
	if playerVsPlayer {
		playerHits = append(playerHits, LayerPlayer)
	}
	r.Declare(LayerPlayer, playerHits...)
	r.Declare(LayerProp, LayerEnvironment, LayerPlayer, LayerProp)
	r.Declare(LayerTool)
	r.Declare(LayerCamera, LayerEnvironment)
	r.Freeze()
	return r
}
