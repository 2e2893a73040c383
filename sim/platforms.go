package sim

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/leap-fish/necs/esync"
	"github.com/yohamta/donburi"

	"github.com/everglen/everglen/components"
	"github.com/everglen/everglen/physics"
	"github.com/everglen/everglen/shared/gamemath"
	"github.com/everglen/everglen/shared/netcomponents"
	"github.com/everglen/everglen/tags"
	"github.com/everglen/everglen/world"
)

// platformMatchRange bounds how far a synced platform may sit from an
// authored travel segment and still adopt its half extents.
const platformMatchRange = 6.0

// SetPlatforms hands the authored platform paths to the simulation. Synced
// platform entities are backed by local kinematic actors sized from these
// paths; without them the local ground probe finds nothing at platform height
// and riding cannot be predicted.
func (s *Simulation) SetPlatforms(paths []world.PlatformPath) {
	s.platformDefs = paths
}

// isPlatformSnapshot reports whether a snapshot entity is a platform: a
// transform with no avatar state or velocity attached.
func isPlatformSnapshot(compData []any) bool {
	hasTransform := false
	for _, data := range compData {
		switch data.(type) {
		case netcomponents.NetTransformData:
			hasTransform = true
		case netcomponents.NetVelocityData, netcomponents.NetAvatarStateData:
			return false
		}
	}
	return hasTransform
}

func (s *Simulation) createPlatform(id esync.NetworkId, tf netcomponents.NetTransformData) donburi.Entity {
	entity := s.world.Create(
		netcomponents.NetTransform,
		components.NetInterp,
		tags.Platform,
	)
	entry := s.world.Entry(entity)
	entry.AddComponent(esync.NetworkIdComponent)
	esync.NetworkIdComponent.SetValue(entry, id)
	netcomponents.NetTransform.SetValue(entry, tf)
	return entity
}

// syncPlatformActors keeps one kinematic actor per platform entity, posed
// from the synced transform, and releases actors whose entity left the world.
func (s *Simulation) syncPlatformActors() {
	backend, ok := s.lifecycle.Backend()
	if !ok {
		return
	}

	tags.Platform.Each(s.world, func(entry *donburi.Entry) {
		entity := entry.Entity()
		pos := netcomponents.NetTransform.Get(entry).Position()

		actor, exists := s.platformActors[entity]
		if !exists {
			actor = s.buildPlatformActor(backend, pos)
			if actor == nil {
				return
			}
			s.platformActors[entity] = actor
		}
		actor.SetPose(physics.IdentityPose(pos))
	})

	for entity, actor := range s.platformActors {
		if !s.world.Valid(entity) {
			actor.Release()
			delete(s.platformActors, entity)
		}
	}
}

func (s *Simulation) buildPlatformActor(backend physics.Backend, pos mgl64.Vec3) physics.Actor {
	path, ok := s.nearestPlatformPath(pos)
	if !ok {
		s.log.Warn().Float64("x", pos.X()).Float64("y", pos.Y()).Float64("z", pos.Z()).
			Msg("synced platform matches no authored path, skipping local actor")
		return nil
	}
	if s.platformMat == nil {
		mat, err := backend.CreateMaterial(0.6, 0.6, 0)
		if err != nil {
			s.log.Error().Err(err).Msg("platform material")
			return nil
		}
		s.platformMat = mat
	}
	shape, err := backend.CreateShape(physics.Geometry{
		Type:        physics.GeometryBox,
		HalfExtents: path.HalfExtents,
	}, s.platformMat, s.layers.FilterFor(physics.LayerEnvironment))
	if err != nil {
		s.log.Error().Err(err).Msg("platform shape")
		return nil
	}
	actor, err := backend.CreateRigidDynamic(physics.IdentityPose(pos), shape, 0, true)
	if err != nil {
		shape.Release()
		s.log.Error().Err(err).Msg("platform actor")
		return nil
	}
	return actor
}

// nearestPlatformPath matches a synced platform position to the authored path
// whose travel segment it sits closest to.
func (s *Simulation) nearestPlatformPath(pos mgl64.Vec3) (world.PlatformPath, bool) {
	best := world.PlatformPath{}
	bestDist := math.Inf(1)
	for _, path := range s.platformDefs {
		end := path.Base.Add(path.Axis.Mul(path.Span))
		if d := gamemath.DistanceToSegment(pos, path.Base, end); d < bestDist {
			bestDist = d
			best = path
		}
	}
	return best, bestDist <= platformMatchRange
}
