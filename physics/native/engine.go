// Package native is the embedded reference implementation of the physics
// backend boundary: static boxes, a terrain heightfield, and sphere queries.
// It stands in for the real native engine module and is what the lifecycle
// loads by default.
package native

import (
	"context"
	"errors"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"

	"github.com/everglen/everglen/physics"
	"github.com/everglen/everglen/terrain"
)

// Engine implements physics.Backend.
type Engine struct {
	mu deadlock.Mutex

	gravity       mgl64.Vec3
	terrain       terrain.HeightSource
	terrainFilter physics.FilterData

	actors   []*actor
	contacts map[contactKey]struct{}

	released bool
	log      zerolog.Logger
}

type contactKey struct {
	a, b *actor
}

// Option configures the engine before it is published by the loader.
type Option func(*Engine)

// WithTerrain registers a heightfield as part of the environment. filter is
// the environment layer's group/mask pair so terrain answers masked queries.
func WithTerrain(src terrain.HeightSource, filter physics.FilterData) Option {
	return func(e *Engine) {
		e.terrain = src
		e.terrainFilter = filter
	}
}

// WithGravity overrides the default gravity vector.
func WithGravity(g mgl64.Vec3) Option {
	return func(e *Engine) {
		e.gravity = g
	}
}

// NewLoader returns the LoaderFunc the lifecycle runs to bring the engine
// up. Initialization allocates the engine's bookkeeping (the foundation and
// default allocator/error-callback pair of the native module).
func NewLoader(opts ...Option) physics.LoaderFunc {
	return func(ctx context.Context) (physics.Backend, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e := &Engine{
			gravity:  mgl64.Vec3{0, -9.81, 0},
			contacts: make(map[contactKey]struct{}),
			log:      log.With().Str("component", "native-physics").Logger(),
		}
		for _, opt := range opts {
			opt(e)
		}
		e.log.Debug().Msg("engine foundation initialized")
		return e, nil
	}
}

// Release tears the engine down. Outstanding handles become inert.
func (e *Engine) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.released = true
	e.actors = nil
	e.contacts = nil
}

var errReleased = errors.New("native engine released")

// CreateMaterial allocates a friction/restitution handle.
func (e *Engine) CreateMaterial(staticFriction, dynamicFriction, restitution float64) (physics.Material, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return nil, errReleased
	}
	return &material{
		staticFriction:  staticFriction,
		dynamicFriction: dynamicFriction,
		restitution:     restitution,
	}, nil
}

// CreateShape binds a geometry to a material and collision filter.
func (e *Engine) CreateShape(geom physics.Geometry, mat physics.Material, filter physics.FilterData) (physics.Shape, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return nil, errReleased
	}
	m, ok := mat.(*material)
	if !ok || m == nil {
		return nil, errors.New("shape requires a material from this engine")
	}
	if geom.Type == physics.GeometryCapsule && (geom.Radius <= 0 || geom.HalfHeight < 0) {
		return nil, errors.New("capsule geometry needs a positive radius")
	}
	return &shape{geom: geom, mat: m, filter: filter}, nil
}

// CreateRigidDynamic creates a force- or pose-driven body.
func (e *Engine) CreateRigidDynamic(pose physics.Pose, sh physics.Shape, mass float64, kinematic bool) (physics.Actor, error) {
	kind := physics.ActorDynamic
	if kinematic {
		kind = physics.ActorKinematic
	}
	return e.addActor(pose, sh, mass, kind)
}

// CreateRigidStatic creates an immovable body.
func (e *Engine) CreateRigidStatic(pose physics.Pose, sh physics.Shape) (physics.Actor, error) {
	return e.addActor(pose, sh, 0, physics.ActorStatic)
}

func (e *Engine) addActor(pose physics.Pose, sh physics.Shape, mass float64, kind physics.ActorKind) (physics.Actor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return nil, errReleased
	}
	s, ok := sh.(*shape)
	if !ok || s == nil {
		return nil, errors.New("actor requires a shape from this engine")
	}
	if kind == physics.ActorDynamic && mass <= 0 {
		return nil, errors.New("dynamic actor needs a positive mass")
	}
	a := &actor{
		engine: e,
		kind:   kind,
		pose:   pose,
		mass:   mass,
		shape:  s,
	}
	e.actors = append(e.actors, a)
	return a, nil
}

// Step integrates dynamic bodies and fires contact transitions. Callbacks
// run outside the engine lock so they may call back into the engine.
func (e *Engine) Step(dt float64) {
	e.mu.Lock()
	if e.released || dt <= 0 {
		e.mu.Unlock()
		return
	}

	for _, a := range e.actors {
		if a.released || a.kind != physics.ActorDynamic {
			a.force = mgl64.Vec3{}
			continue
		}
		accel := e.gravity.Add(a.force.Mul(1 / a.mass))
		a.vel = a.vel.Add(accel.Mul(dt))
		a.pose.Position = a.pose.Position.Add(a.vel.Mul(dt))
		a.force = mgl64.Vec3{}
		e.settleOnTerrain(a)
	}

	transitions := e.collectContactTransitions()
	e.mu.Unlock()

	for _, tr := range transitions {
		tr()
	}
}

// settleOnTerrain keeps dynamic bodies from tunneling through the ground.
func (e *Engine) settleOnTerrain(a *actor) {
	if e.terrain == nil || a.shape.filter.Mask&e.terrainFilter.Group == 0 {
		return
	}
	p := a.pose.Position
	h := e.terrain.HeightAt(p.X(), p.Z())
	if !finite(h) {
		return
	}
	bottom := p.Y() - a.shape.bottomOffset()
	if bottom < h {
		a.pose.Position[1] = h + a.shape.bottomOffset()
		if a.vel.Y() < 0 {
			a.vel[1] = -a.vel.Y() * a.shape.mat.restitution
		}
	}
}

// collectContactTransitions detects actor pair overlap transitions and
// returns the callback invocations to run after the lock is dropped. A pair
// is considered when either side's mask admits the other's group. Caller
// must hold e.mu.
func (e *Engine) collectContactTransitions() []func() {
	current := make(map[contactKey]struct{})
	for i := 0; i < len(e.actors); i++ {
		a := e.actors[i]
		if a.released {
			continue
		}
		for j := i + 1; j < len(e.actors); j++ {
			b := e.actors[j]
			if b.released {
				continue
			}
			aWants := a.shape.filter.Mask&b.shape.filter.Group != 0
			bWants := b.shape.filter.Mask&a.shape.filter.Group != 0
			if !aWants && !bWants {
				continue
			}
			if !overlap(a, b) {
				continue
			}
			current[contactKey{a, b}] = struct{}{}
		}
	}

	var transitions []func()
	add := func(a, b *actor, start bool) {
		cb := a.callbacks
		if start && cb.OnContactStart != nil {
			transitions = append(transitions, func() { cb.OnContactStart(b) })
		}
		if !start && cb.OnContactEnd != nil {
			transitions = append(transitions, func() { cb.OnContactEnd(b) })
		}
	}
	for key := range current {
		if _, had := e.contacts[key]; !had {
			add(key.a, key.b, true)
			add(key.b, key.a, true)
		}
	}
	for key := range e.contacts {
		if _, have := current[key]; !have {
			add(key.a, key.b, false)
			add(key.b, key.a, false)
		}
	}
	e.contacts = current
	return transitions
}
