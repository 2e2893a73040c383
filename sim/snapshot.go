package sim

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/leap-fish/necs/esync"
	"github.com/yohamta/donburi"

	"github.com/everglen/everglen/components"
	"github.com/everglen/everglen/invariant"
	"github.com/everglen/everglen/movement"
	"github.com/everglen/everglen/network"
	"github.com/everglen/everglen/shared/messages"
	"github.com/everglen/everglen/shared/netcomponents"
	"github.com/everglen/everglen/shared/netconfig"
	"github.com/everglen/everglen/tags"
)

func (s *Simulation) applySnapshot(snapshot esync.WorldSnapshot) {
	myID := s.client.NetworkID()
	clear(s.presentIDs)

	for _, ent := range snapshot {
		s.presentIDs[ent.Id] = true

		var compData []any
		for _, componentBytes := range ent.State {
			instance, err := esync.Mapper.Deserialize(componentBytes)
			if err != nil {
				continue
			}
			compData = append(compData, instance)
		}

		entity := esync.FindByNetworkId(s.world, ent.Id)
		created := false
		if !s.world.Valid(entity) {
			switch {
			case ent.Id == myID:
				entity = s.createLocal(ent.Id, compData)
			case isPlatformSnapshot(compData):
				tf, _ := findTransform(compData)
				entity = s.createPlatform(ent.Id, tf)
			default:
				entity = s.createRemoteFromSnapshot(ent.Id, compData)
			}
			created = true
		}

		entry := s.world.Entry(entity)
		if ent.Id == myID {
			s.reconcileLocal(compData)
		} else {
			s.applyRemote(entry, compData)
		}

		if created {
			s.queue.OnEntityCreated(ent.Id)
		}
	}

	esync.NetworkEntityQuery.Each(s.world, func(entry *donburi.Entry) {
		id := esync.GetNetworkId(entry)
		if id == nil {
			return
		}
		if !s.presentIDs[*id] {
			if s.haveLocal && entry.Entity() == s.localEntity {
				s.dropLocal()
			}
			entry.Remove()
		}
	})
}

// createLocal materializes the local avatar from its first snapshot. The
// server sample embedded in that snapshot seeds both the controller and the
// reconciler; its absence is a fatal precondition, never defaulted to
// origin.
func (s *Simulation) createLocal(id esync.NetworkId, compData []any) donburi.Entity {
	tf, ok := findTransform(compData)
	if !ok {
		invariant.Violatef("initial snapshot for local avatar %d carries no transform", id)
	}

	entity := s.world.Create(
		netcomponents.NetTransform,
		netcomponents.NetVelocity,
		netcomponents.NetAvatarState,
		components.Movement,
		components.StatusEffects,
		tags.LocalAvatar,
	)
	entry := s.world.Entry(entity)
	entry.AddComponent(esync.NetworkIdComponent)
	esync.NetworkIdComponent.SetValue(entry, id)
	netcomponents.NetTransform.SetValue(entry, tf)

	s.localEntity = entity
	s.haveLocal = true
	s.moveState = components.Movement.Get(entry)
	s.effects = components.StatusEffects.Get(entry)
	s.ctrl = movement.NewController(s.lifecycle, s.layers, s.moveState, s.effects, tf.Position())
	s.reconciler = network.NewReconciler(s.ctrl, s.moveState, s.ground)
	s.outbound.Reset()

	s.log.Info().Uint32("networkId", uint32(id)).Msg("local avatar spawned")
	return entity
}

func (s *Simulation) createRemoteFromSnapshot(id esync.NetworkId, compData []any) donburi.Entity {
	tf, _ := findTransform(compData)
	vel := netcomponents.NetVelocityData{}
	st := netcomponents.NetAvatarStateData{}
	for _, data := range compData {
		switch v := data.(type) {
		case netcomponents.NetVelocityData:
			vel = v
		case netcomponents.NetAvatarStateData:
			st = v
		}
	}
	return s.createRemote(id, tf, vel, st)
}

func (s *Simulation) createRemote(id esync.NetworkId, tf netcomponents.NetTransformData, vel netcomponents.NetVelocityData, st netcomponents.NetAvatarStateData) donburi.Entity {
	entity := s.world.Create(
		netcomponents.NetTransform,
		netcomponents.NetVelocity,
		netcomponents.NetAvatarState,
		components.NetInterp,
		tags.RemoteAvatar,
	)
	entry := s.world.Entry(entity)
	entry.AddComponent(esync.NetworkIdComponent)
	esync.NetworkIdComponent.SetValue(entry, id)

	netcomponents.NetTransform.SetValue(entry, tf)
	netcomponents.NetVelocity.SetValue(entry, vel)
	st.IsLocal = false
	netcomponents.NetAvatarState.SetValue(entry, st)
	return entity
}

// reconcileLocal feeds the snapshot's authoritative pose into the
// reconciler instead of overwriting the predicted position.
func (s *Simulation) reconcileLocal(compData []any) {
	var pos, vel mgl64.Vec3
	havePos := false
	for _, data := range compData {
		switch v := data.(type) {
		case netcomponents.NetTransformData:
			pos = v.Position()
			havePos = true
		case netcomponents.NetVelocityData:
			vel = v.Vec()
		case netcomponents.NetAvatarStateData:
			if s.effects != nil && v.Immobilized {
				// Refresh until the next snapshot lands.
				s.effects.ImmobilizedTicks = netconfig.PhysicsHz / netconfig.DefaultTickRate
			}
		}
	}
	if havePos && s.reconciler != nil {
		s.reconciler.SetSample(pos, vel, time.Now())
	}
}

// applyLocalDelta routes a live delta addressed to the local avatar into the
// reconciler. Orientation and emote stay client-owned.
func (s *Simulation) applyLocalDelta(delta messages.AvatarDelta) {
	if delta.Position == nil || s.reconciler == nil {
		return
	}
	p := *delta.Position
	vel := mgl64.Vec3{}
	if sample, ok := s.reconciler.Sample(); ok {
		vel = sample.Velocity
	}
	s.reconciler.SetSample(mgl64.Vec3{p[0], p[1], p[2]}, vel, time.Now())
}

// applyRemote applies a snapshot to a remote avatar: position and
// orientation retarget the interpolator, everything else applies directly.
func (s *Simulation) applyRemote(entry *donburi.Entry, compData []any) {
	interp := components.NetInterp.Get(entry)
	tf := netcomponents.NetTransform.Get(entry)

	var vel *netcomponents.NetVelocityData
	for _, data := range compData {
		if v, ok := data.(netcomponents.NetVelocityData); ok {
			vel = &v
			break
		}
	}

	for _, data := range compData {
		switch v := data.(type) {
		case netcomponents.NetTransformData:
			if !interp.Initialized {
				// First snapshot: land directly, no interpolation.
				netcomponents.NetTransform.SetValue(entry, v)
				interp.PrevPos = v.Position()
				interp.TargetPos = v.Position()
				interp.PrevRot = v.Orientation()
				interp.TargetRot = v.Orientation()
				interp.T = 1
				interp.Initialized = true
			} else {
				// Subsequent snapshots: interpolate from the current render
				// pose toward the new authoritative one.
				interp.PrevPos = tf.Position()
				interp.PrevRot = tf.Orientation()
				interp.TargetPos = v.Position()
				interp.TargetRot = v.Orientation()
				interp.T = 0
			}
			if vel != nil {
				interp.Vel = vel.Vec()
			}
		case netcomponents.NetVelocityData:
			netcomponents.NetVelocity.SetValue(entry, v)
		case netcomponents.NetAvatarStateData:
			v.IsLocal = false
			netcomponents.NetAvatarState.SetValue(entry, v)
		}
	}
}

func findTransform(compData []any) (netcomponents.NetTransformData, bool) {
	for _, data := range compData {
		if v, ok := data.(netcomponents.NetTransformData); ok {
			return v, true
		}
	}
	return netcomponents.NetTransformData{QW: 1}, false
}
