// Package physics owns the boundary to the native physics backend: the
// lifecycle that loads it exactly once, the collision layer registry, and
// the interface the rest of the simulation talks to. Collision and shape
// math live behind the Backend interface, not here.
package physics

import "github.com/go-gl/mathgl/mgl64"

// ActorKind distinguishes how a body's pose is driven.
type ActorKind int

const (
	// ActorStatic never moves.
	ActorStatic ActorKind = iota
	// ActorDynamic is driven by force/velocity integration.
	ActorDynamic
	// ActorKinematic is driven by game logic through SetPose.
	ActorKinematic
)

// GeometryType enumerates the shapes the backend understands.
type GeometryType int

const (
	GeometryCapsule GeometryType = iota
	GeometryBox
	GeometrySphere
)

// Geometry describes a collision shape in local space.
type Geometry struct {
	Type        GeometryType
	Radius      float64    // capsule, sphere
	HalfHeight  float64    // capsule: half the cylindrical section
	HalfExtents mgl64.Vec3 // box
}

// FilterData is the collision group bit and collides-with mask attached to a
// shape, as produced by the LayerRegistry.
type FilterData struct {
	Group uint32
	Mask  uint32
}

// Pose is a world-space position and orientation pair.
type Pose struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
}

// IdentityPose returns a pose at p with no rotation.
func IdentityPose(p mgl64.Vec3) Pose {
	return Pose{Position: p, Orientation: mgl64.QuatIdent()}
}

// Material is an opaque backend friction/restitution handle.
type Material interface {
	Release()
}

// Shape is an opaque backend collision shape handle.
type Shape interface {
	FilterData() FilterData
	SetFilterData(FilterData)
	Release()
}

// ContactCallbacks are invoked by the backend when a shape pair starts or
// stops touching. Either field may be nil.
type ContactCallbacks struct {
	OnContactStart func(other Actor)
	OnContactEnd   func(other Actor)
}

// Actor is a rigid body owned by the backend.
type Actor interface {
	Kind() ActorKind
	Pose() Pose
	// SetPose drives a kinematic actor (or teleports any actor).
	SetPose(Pose)
	LinearVelocity() mgl64.Vec3
	SetLinearVelocity(mgl64.Vec3)
	// AddForce accumulates a force applied during the next Step. Ignored for
	// non-dynamic actors.
	AddForce(mgl64.Vec3)
	Mass() float64
	SetContactCallbacks(ContactCallbacks)
	Release()
}

// QueryHit is the result of a sweep or raycast.
type QueryHit struct {
	Actor    Actor
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
	Distance float64
}

// Backend is the native physics engine boundary. All handles returned by a
// backend must be released when the owning avatar is destroyed.
type Backend interface {
	CreateMaterial(staticFriction, dynamicFriction, restitution float64) (Material, error)
	CreateShape(geom Geometry, mat Material, filter FilterData) (Shape, error)
	CreateRigidDynamic(pose Pose, shape Shape, mass float64, kinematic bool) (Actor, error)
	CreateRigidStatic(pose Pose, shape Shape) (Actor, error)

	// SweepSphere casts a sphere from origin along dir (unit length) up to
	// distance, against shapes matching mask. Returns the nearest hit.
	SweepSphere(origin, dir mgl64.Vec3, distance, radius float64, mask uint32) (QueryHit, bool)
	// Raycast casts a ray against shapes matching mask.
	Raycast(origin, dir mgl64.Vec3, maxDistance float64, mask uint32) (QueryHit, bool)

	// Step advances dynamic bodies and fires contact callbacks.
	Step(dt float64)

	Release()
}
