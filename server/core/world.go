package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/leap-fish/necs/esync/srvsync"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
	"github.com/yohamta/donburi"

	"github.com/everglen/everglen/physics"
	"github.com/everglen/everglen/shared/netcomponents"
	"github.com/everglen/everglen/tags"
	"github.com/everglen/everglen/world"
)

// Platform is a live moving platform: a kinematic actor advanced by a tween
// sequence each physics sub-step, mirrored into a synced transform so clients
// can render it.
type Platform struct {
	Entity donburi.Entity
	actor  physics.Actor
	base   mgl64.Vec3
	axis   mgl64.Vec3
	seq    *gween.Sequence
}

// Advance moves the platform along its tween and returns the new center.
func (p *Platform) Advance(dt float64) mgl64.Vec3 {
	offset, _, _ := p.seq.Update(float32(dt))
	pos := p.base.Add(p.axis.Mul(float64(offset)))
	p.actor.SetPose(physics.IdentityPose(pos))
	return pos
}

// Actor exposes the kinematic body, for tests.
func (p *Platform) Actor() physics.Actor { return p.actor }

// Level is the server's live view of an authored world: the shared
// definition plus the actors and synced entities built from it.
type Level struct {
	*world.Definition

	Platforms []*Platform
	statics   []physics.Actor
	material  physics.Material
}

// LoadLevel resolves the authored definition for a named world. Actors are
// created later by Populate, once the physics backend has loaded.
func LoadLevel(name string) (*Level, error) {
	def, err := world.Build(name)
	if err != nil {
		return nil, err
	}
	return &Level{Definition: def}, nil
}

// Populate creates the physics actors and the synced platform entities. Must
// be called exactly once, after the backend loads.
func (l *Level) Populate(ecs donburi.World, backend physics.Backend, layers *physics.LayerRegistry) error {
	statics, mat, err := l.PopulateStatics(backend, layers)
	if err != nil {
		return err
	}
	l.statics = statics
	l.material = mat
	envFilter := layers.FilterFor(physics.LayerEnvironment)

	for _, path := range l.Definition.Platforms {
		shape, err := backend.CreateShape(physics.Geometry{Type: physics.GeometryBox, HalfExtents: path.HalfExtents}, mat, envFilter)
		if err != nil {
			return fmt.Errorf("platform shape: %w", err)
		}
		actor, err := backend.CreateRigidDynamic(physics.IdentityPose(path.Base), shape, 0, true)
		if err != nil {
			return fmt.Errorf("platform actor: %w", err)
		}

		seq := gween.NewSequence(
			gween.New(0, float32(path.Span), float32(path.Period), ease.InOutQuad),
			gween.New(float32(path.Span), 0, float32(path.Period), ease.InOutQuad),
		)
		seq.SetLoop(-1)

		entity := ecs.Create(netcomponents.NetTransform, tags.Platform)
		entry := ecs.Entry(entity)
		netcomponents.NetTransform.SetValue(entry, netcomponents.NewNetTransform(path.Base))
		if err := srvsync.NetworkSync(ecs, &entity, srvsync.WithInterp(netcomponents.NetTransform)); err != nil {
			return fmt.Errorf("platform sync: %w", err)
		}

		l.Platforms = append(l.Platforms, &Platform{
			Entity: entity,
			actor:  actor,
			base:   path.Base,
			axis:   path.Axis,
			seq:    seq,
		})
	}
	return nil
}

// Release frees every actor the level owns.
func (l *Level) Release() {
	for _, a := range l.statics {
		a.Release()
	}
	for _, p := range l.Platforms {
		p.actor.Release()
	}
	if l.material != nil {
		l.material.Release()
	}
	l.statics = nil
	l.Platforms = nil
}
