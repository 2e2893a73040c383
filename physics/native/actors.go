package native

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/everglen/everglen/physics"
)

type material struct {
	staticFriction  float64
	dynamicFriction float64
	restitution     float64
	released        bool
}

func (m *material) Release() { m.released = true }

type shape struct {
	geom     physics.Geometry
	mat      *material
	filter   physics.FilterData
	released bool
}

func (s *shape) FilterData() physics.FilterData { return s.filter }

func (s *shape) SetFilterData(f physics.FilterData) { s.filter = f }

func (s *shape) Release() { s.released = true }

// bottomOffset is the distance from the shape origin down to its lowest
// point.
func (s *shape) bottomOffset() float64 {
	switch s.geom.Type {
	case physics.GeometryCapsule:
		return s.geom.HalfHeight + s.geom.Radius
	case physics.GeometrySphere:
		return s.geom.Radius
	default:
		return s.geom.HalfExtents.Y()
	}
}

// boundingRadius is a conservative world-space sphere radius for overlap
// tests.
func (s *shape) boundingRadius() float64 {
	switch s.geom.Type {
	case physics.GeometryCapsule:
		return s.geom.HalfHeight + s.geom.Radius
	case physics.GeometrySphere:
		return s.geom.Radius
	default:
		return s.geom.HalfExtents.Len()
	}
}

type actor struct {
	engine    *Engine
	kind      physics.ActorKind
	pose      physics.Pose
	vel       mgl64.Vec3
	force     mgl64.Vec3
	mass      float64
	shape     *shape
	callbacks physics.ContactCallbacks
	released  bool
}

func (a *actor) Kind() physics.ActorKind { return a.kind }

func (a *actor) Pose() physics.Pose {
	a.engine.mu.Lock()
	defer a.engine.mu.Unlock()
	return a.pose
}

func (a *actor) SetPose(p physics.Pose) {
	a.engine.mu.Lock()
	defer a.engine.mu.Unlock()
	a.pose = p
}

func (a *actor) LinearVelocity() mgl64.Vec3 {
	a.engine.mu.Lock()
	defer a.engine.mu.Unlock()
	return a.vel
}

func (a *actor) SetLinearVelocity(v mgl64.Vec3) {
	a.engine.mu.Lock()
	defer a.engine.mu.Unlock()
	a.vel = v
}

func (a *actor) AddForce(f mgl64.Vec3) {
	a.engine.mu.Lock()
	defer a.engine.mu.Unlock()
	if a.kind != physics.ActorDynamic {
		return
	}
	a.force = a.force.Add(f)
}

func (a *actor) Mass() float64 { return a.mass }

func (a *actor) SetContactCallbacks(cb physics.ContactCallbacks) {
	a.engine.mu.Lock()
	defer a.engine.mu.Unlock()
	a.callbacks = cb
}

func (a *actor) Release() {
	a.engine.mu.Lock()
	defer a.engine.mu.Unlock()
	a.released = true
}

// overlap is a bounding-volume test between two actors: boxes resolve
// against a sphere via closest-point in the box frame, everything else by
// bounding spheres. Caller must hold the engine lock.
func overlap(a, b *actor) bool {
	if a.shape.geom.Type == physics.GeometryBox && b.shape.geom.Type != physics.GeometryBox {
		return sphereBoxOverlap(b, a)
	}
	if b.shape.geom.Type == physics.GeometryBox && a.shape.geom.Type != physics.GeometryBox {
		return sphereBoxOverlap(a, b)
	}
	r := a.shape.boundingRadius() + b.shape.boundingRadius()
	return a.pose.Position.Sub(b.pose.Position).Len() <= r
}

func sphereBoxOverlap(sphere, box *actor) bool {
	local := box.pose.Orientation.Inverse().Rotate(sphere.pose.Position.Sub(box.pose.Position))
	ext := box.shape.geom.HalfExtents
	closest := mgl64.Vec3{
		clampf(local.X(), -ext.X(), ext.X()),
		clampf(local.Y(), -ext.Y(), ext.Y()),
		clampf(local.Z(), -ext.Z(), ext.Z()),
	}
	return local.Sub(closest).Len() <= sphere.shape.boundingRadius()
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
