// Package movement owns the per-avatar kinematic capsule and turns desired
// targets and directions into position deltas each physics tick.
package movement

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/everglen/everglen/config"
	"github.com/everglen/everglen/invariant"
	"github.com/everglen/everglen/physics"
)

// Capsule is the native-engine actor backing one avatar, plus the handles it
// was built from. The controller that created it owns it; a radius, height,
// or layer change rebuilds the actor in place.
type Capsule struct {
	backend physics.Backend

	mat   physics.Material
	shape physics.Shape
	actor physics.Actor

	radius     float64
	halfHeight float64
	filter     physics.FilterData
}

// newCapsule builds the kinematic avatar body. The backend is confirmed
// loaded by the caller, so any construction failure here is a fatal
// invariant violation rather than a transient condition.
func newCapsule(backend physics.Backend, filter physics.FilterData, feet mgl64.Vec3) *Capsule {
	c := &Capsule{
		backend:    backend,
		radius:     config.Avatar.Radius,
		halfHeight: config.Avatar.HalfHeight,
		filter:     filter,
	}

	var err error
	c.mat, err = backend.CreateMaterial(0.6, 0.6, 0)
	if err != nil {
		invariant.Violatef("avatar material failed to construct on a loaded backend: %v", err)
	}
	c.build(feet)
	return c
}

func (c *Capsule) build(feet mgl64.Vec3) {
	geom := physics.Geometry{
		Type:       physics.GeometryCapsule,
		Radius:     c.radius,
		HalfHeight: c.halfHeight,
	}
	sh, err := c.backend.CreateShape(geom, c.mat, c.filter)
	if err != nil {
		invariant.Violatef("avatar shape failed to construct on a loaded backend: %v", err)
	}
	actor, err := c.backend.CreateRigidDynamic(physics.IdentityPose(c.centerFor(feet)), sh, config.Avatar.Mass, true)
	if err != nil {
		invariant.Violatef("avatar actor failed to construct on a loaded backend: %v", err)
	}
	c.shape = sh
	c.actor = actor
}

// centerFor converts a feet position to the capsule center.
func (c *Capsule) centerFor(feet mgl64.Vec3) mgl64.Vec3 {
	return feet.Add(mgl64.Vec3{0, c.halfHeight + c.radius, 0})
}

// SetPose drives the kinematic actor to the given feet position and
// orientation.
func (c *Capsule) SetPose(feet mgl64.Vec3, orientation mgl64.Quat) {
	c.actor.SetPose(physics.Pose{Position: c.centerFor(feet), Orientation: orientation})
}

// Actor exposes the underlying body for queries and contact wiring.
func (c *Capsule) Actor() physics.Actor { return c.actor }

// SetContactCallbacks registers touch handlers on the body.
func (c *Capsule) SetContactCallbacks(cb physics.ContactCallbacks) {
	c.actor.SetContactCallbacks(cb)
}

// Rebuild releases the current shape and actor and recreates them with new
// dimensions, preserving the pose.
func (c *Capsule) Rebuild(radius, halfHeight float64, feet mgl64.Vec3, orientation mgl64.Quat) {
	c.actor.Release()
	c.shape.Release()
	c.radius = radius
	c.halfHeight = halfHeight
	c.build(feet)
	c.actor.SetPose(physics.Pose{Position: c.centerFor(feet), Orientation: orientation})
}

// Release frees every handle. The capsule is unusable afterwards.
func (c *Capsule) Release() {
	if c.actor != nil {
		c.actor.Release()
	}
	if c.shape != nil {
		c.shape.Release()
	}
	if c.mat != nil {
		c.mat.Release()
	}
	c.actor, c.shape, c.mat = nil, nil, nil
}
