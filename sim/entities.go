package sim

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/leap-fish/necs/esync"
	"github.com/yohamta/donburi"

	"github.com/everglen/everglen/components"
	"github.com/everglen/everglen/shared/messages"
	"github.com/everglen/everglen/shared/netcomponents"
)

// Store adapts the donburi world to the sync queue's delta target.
type Store struct {
	world donburi.World
}

func NewStore(world donburi.World) *Store {
	return &Store{world: world}
}

func (s *Store) entry(id esync.NetworkId) (*donburi.Entry, bool) {
	entity := esync.FindByNetworkId(s.world, id)
	if !s.world.Valid(entity) {
		return nil, false
	}
	return s.world.Entry(entity), true
}

// Exists reports whether the networked entity has materialized locally.
func (s *Store) Exists(id esync.NetworkId) bool {
	_, ok := s.entry(id)
	return ok
}

// ApplyDelta merges a delta into an existing entity's synced components.
func (s *Store) ApplyDelta(id esync.NetworkId, delta messages.AvatarDelta) error {
	entry, ok := s.entry(id)
	if !ok {
		return fmt.Errorf("entity %d does not exist", id)
	}
	if !entry.HasComponent(netcomponents.NetTransform) {
		return fmt.Errorf("entity %d has no transform", id)
	}

	tf := netcomponents.NetTransform.Get(entry)
	if delta.Position != nil {
		p := *delta.Position
		tf.SetPosition(mgl64.Vec3{p[0], p[1], p[2]})
	}
	if delta.Orientation != nil {
		q := *delta.Orientation
		tf.SetOrientation(mgl64.Quat{W: q[0], V: mgl64.Vec3{q[1], q[2], q[3]}})
	}
	if delta.Emote != nil && entry.HasComponent(netcomponents.NetAvatarState) {
		netcomponents.NetAvatarState.Get(entry).Emote = *delta.Emote
	}

	// A delta lands the remote on its authoritative pose; restart
	// interpolation from wherever the render currently is.
	if entry.HasComponent(components.NetInterp) && delta.Position != nil {
		interp := components.NetInterp.Get(entry)
		if interp.Initialized {
			interp.PrevPos = interp.TargetPos
			interp.TargetPos = tf.Position()
			interp.PrevRot = interp.TargetRot
			interp.TargetRot = tf.Orientation()
			interp.T = 0
		}
	}
	return nil
}
