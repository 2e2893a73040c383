package movement

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/everglen/everglen/components"
	"github.com/everglen/everglen/config"
	"github.com/everglen/everglen/physics"
	"github.com/everglen/everglen/shared/gamemath"
	"github.com/everglen/everglen/shared/netconfig"
)

const probeRadiusEpsilon = 0.05

// Controller advances one avatar through the fixed physics tick: ground
// probe, platform riding, velocity shaping, locomotion, vertical control,
// jump. It no-ops while the backend is still loading and becomes live the
// tick the backend reports loaded.
type Controller struct {
	lifecycle *physics.Lifecycle
	layers    *physics.LayerRegistry
	ground    *components.MovementData
	effects   *components.StatusEffectsData

	backend physics.Backend
	capsule *Capsule

	position    mgl64.Vec3 // feet
	orientation mgl64.Quat

	groundMask uint32

	wasGrounded bool
	wasMoving   bool
	jumping     bool
	airJumped   bool

	// AirJump enables the once-per-airborne-period extra jump used by
	// development builds.
	AirJump bool

	log zerolog.Logger
}

// NewController prepares a controller for an avatar spawning at feet. The
// capsule is not built until the backend reports loaded.
func NewController(lc *physics.Lifecycle, layers *physics.LayerRegistry, state *components.MovementData, effects *components.StatusEffectsData, feet mgl64.Vec3) *Controller {
	return &Controller{
		lifecycle:   lc,
		layers:      layers,
		ground:      state,
		effects:     effects,
		position:    feet,
		orientation: mgl64.QuatIdent(),
		groundMask:  layers.MaskFor(physics.LayerEnvironment, physics.LayerProp),
		log:         log.With().Str("component", "movement").Logger(),
	}
}

// Position is the avatar's feet point.
func (c *Controller) Position() mgl64.Vec3 { return c.position }

// SetPosition overwrites the feet point. Used by reconciliation; the capsule
// pose follows on the next tick.
func (c *Controller) SetPosition(p mgl64.Vec3) { c.position = p }

// Orientation is the avatar's facing.
func (c *Controller) Orientation() mgl64.Quat { return c.orientation }

// SetOrientation overwrites the facing.
func (c *Controller) SetOrientation(q mgl64.Quat) { c.orientation = q }

// Capsule is nil until the backend has loaded.
func (c *Controller) Capsule() *Capsule { return c.capsule }

// SetMoveInput sets the free-move direction for the coming ticks. A non-zero
// direction cancels any click target.
func (c *Controller) SetMoveInput(dir mgl64.Vec3, running bool) {
	d := gamemath.Horizontal(dir)
	if d.Len() > 1e-9 {
		d = d.Normalize()
		c.ground.ClickTarget = nil
	}
	c.ground.MoveDir = d
	c.ground.Running = running
}

// SetClickTarget starts click-to-move toward a world point.
func (c *Controller) SetClickTarget(target mgl64.Vec3, running bool) {
	t := target
	c.ground.ClickTarget = &t
	c.ground.Running = running
}

// ClearClickTarget cancels click-to-move and any residual direction.
func (c *Controller) ClearClickTarget() {
	c.ground.ClickTarget = nil
	c.ground.MoveDir = mgl64.Vec3{}
	c.wasMoving = false
}

// RequestJump queues a jump for the next tick.
func (c *Controller) RequestJump() { c.ground.JumpQueued = true }

// SetFlying toggles flight. Entering flight zeroes vertical speed so the
// avatar holds altitude.
func (c *Controller) SetFlying(on bool) {
	c.ground.Flying = on
	if on {
		c.ground.Velocity[1] = 0
	}
}

// Velocity is the current linear velocity.
func (c *Controller) Velocity() mgl64.Vec3 { return c.ground.Velocity }

// Ready reports whether the capsule exists and ticks are live.
func (c *Controller) Ready() bool { return c.capsule != nil }

// Release frees the capsule handles.
func (c *Controller) Release() {
	if c.capsule != nil {
		c.capsule.Release()
		c.capsule = nil
	}
	c.backend = nil
}

// Tick advances the avatar by dt seconds. While the backend is loading this
// is a no-op; once loaded, a failed capsule construction is fatal.
func (c *Controller) Tick(dt float64) {
	if c.capsule == nil {
		backend, ok := c.lifecycle.Backend()
		if !ok {
			return
		}
		c.backend = backend
		c.capsule = newCapsule(backend, c.layers.FilterFor(physics.LayerPlayer), c.position)
		c.log.Debug().Msg("avatar capsule built")
	}

	c.probeGround()
	c.ridePlatform()
	c.shapeVelocity(dt)
	c.applyLocomotion(dt)
	c.applyVertical(dt)
	c.applyJump()

	c.ground.State = c.deriveState()
	c.capsule.SetPose(c.position, c.orientation)

	c.wasGrounded = c.ground.Grounded
	c.ground.JumpQueued = false
}

// probeGround sweeps a slightly shrunken sphere down past the feet. Ground
// steeper than the slope limit does not count as footing.
func (c *Controller) probeGround() {
	radius := math.Min(config.Physics.ProbeRadius, config.Avatar.Radius-probeRadiusEpsilon)
	origin := c.position.Add(mgl64.Vec3{0, config.Physics.ProbeStartHeight, 0})
	reach := config.Physics.ProbeStartHeight + config.Physics.ProbeDistance
	if c.ground.RidingPlatform != nil {
		reach += config.Physics.RideLedgeBias
	}

	c.ground.Grounded = false
	c.ground.Slipping = false
	c.ground.GroundNormal = gamemath.Up
	c.ground.GroundActor = nil

	if c.jumping && c.ground.Velocity.Y() > 0 {
		// Still on the way up; the probe would re-ground the takeoff tick.
		return
	}

	hit, ok := c.backend.SweepSphere(origin, mgl64.Vec3{0, -1, 0}, reach, radius, c.groundMask)
	if !ok {
		return
	}
	tolerance := config.Physics.GroundEpsilon
	if c.ground.RidingPlatform != nil {
		tolerance += config.Physics.RideLedgeBias
	}
	gap := c.position.Y() - hit.Point.Y()
	if gap > tolerance {
		return
	}

	angle := gamemath.SlopeAngle(hit.Normal)
	if angle > config.Physics.SlopeLimitDeg*math.Pi/180 {
		c.ground.Slipping = true
		return
	}

	c.ground.Grounded = true
	c.ground.GroundNormal = hit.Normal.Normalize()
	// Terrain sweeps report a nil actor, so this stays nil unless the feet
	// rest on a crate or platform.
	c.ground.GroundActor = hit.Actor
	c.position[1] = hit.Point.Y()
	c.jumping = false
	c.airJumped = false
}

// ridePlatform tracks the actor under the feet and carries the avatar with
// kinematic platforms, yaw and translation only.
func (c *Controller) ridePlatform() {
	if !c.ground.Grounded {
		c.ground.RidingPlatform = nil
		return
	}

	origin := c.position.Add(mgl64.Vec3{0, 0.1, 0})
	hit, ok := c.backend.Raycast(origin, mgl64.Vec3{0, -1, 0}, config.Physics.ProbeStartHeight+config.Physics.RideLedgeBias, c.groundMask)
	if !ok || hit.Actor == nil {
		c.ground.RidingPlatform = nil
		return
	}

	actor := hit.Actor
	pose := actor.Pose()
	if prev, ok := c.ground.RidingPlatform.(physics.Actor); !ok || prev != actor {
		c.ground.RidingPlatform = actor
		c.ground.PlatformPos = pose.Position
		c.ground.PlatformYaw = gamemath.Yaw(pose.Orientation)
		return
	}

	if actor.Kind() == physics.ActorKinematic {
		dYaw := gamemath.Yaw(pose.Orientation) - c.ground.PlatformYaw
		c.position = gamemath.RotateAroundY(c.position, pose.Position, dYaw)
		c.position = c.position.Add(pose.Position.Sub(c.ground.PlatformPos))
		c.orientation = gamemath.YawQuat(dYaw).Mul(c.orientation)
	}
	c.ground.PlatformPos = pose.Position
	c.ground.PlatformYaw = gamemath.Yaw(pose.Orientation)
}

// shapeVelocity applies ground drag and the ledge drop bias.
func (c *Controller) shapeVelocity(dt float64) {
	v := c.ground.Velocity
	if c.ground.Grounded {
		n := c.ground.GroundNormal
		// Zero the along-normal component so ramps do not launch the
		// avatar, then decay the in-plane remainder.
		v = gamemath.ProjectOnPlane(v, n)
		retain := math.Exp(-config.Physics.SlipDrag * dt)
		v = gamemath.GroundDrag(v, n, retain)
	} else if c.wasGrounded && !c.jumping && v.Y() >= 0 {
		// Just walked off an edge; bias downward so the first airborne
		// frame does not visibly float.
		v[1] = -config.Physics.LedgeDropBias
	}
	c.ground.Velocity = v
}

// applyLocomotion advances the feet along the ground plane and turns the
// avatar toward its travel direction.
func (c *Controller) applyLocomotion(dt float64) {
	scale := 1.0
	if c.effects != nil {
		scale = c.effects.SpeedScale()
		c.ground.Immobilized = scale == 0
	}

	dir := c.ground.MoveDir
	if c.ground.ClickTarget != nil {
		target := *c.ground.ClickTarget
		dist := gamemath.HorizontalDistance(c.position, target)
		speed := gamemath.Horizontal(c.ground.Velocity).Len()
		arrived := dist < config.Avatar.ArriveDistance ||
			(dist < config.Avatar.ArriveSlowDistance && speed < 0.1 && c.wasMoving)
		if arrived {
			c.ClearClickTarget()
			dir = mgl64.Vec3{}
		} else {
			dir = gamemath.DirectionTo(c.position, target)
			c.ground.MoveDir = dir
		}
	}

	moving := dir.Len() > 1e-9 && scale > 0
	if !moving {
		c.wasMoving = false
		if c.ground.Grounded {
			c.ground.Velocity[0] = 0
			c.ground.Velocity[2] = 0
		}
		return
	}

	speed := config.Avatar.WalkSpeed
	if c.ground.Running {
		speed = config.Avatar.RunSpeed
	}
	if c.ground.Flying {
		speed = config.Avatar.FlySpeed
	}
	speed *= scale

	step := dir
	if c.ground.Grounded {
		step = gamemath.AlignToGround(dir, c.ground.GroundNormal)
	}
	c.position = c.position.Add(step.Mul(speed * dt))
	c.ground.Velocity[0] = step.X() * speed
	c.ground.Velocity[2] = step.Z() * speed
	c.faceToward(dir, dt)
	c.wasMoving = true
}

func (c *Controller) faceToward(dir mgl64.Vec3, dt float64) {
	targetYaw := math.Atan2(dir.X(), dir.Z())
	yaw := gamemath.Yaw(c.orientation)
	delta := math.Mod(targetYaw-yaw+3*math.Pi, 2*math.Pi) - math.Pi
	maxStep := config.Avatar.TurnRate * dt
	delta = gamemath.Clamp(delta, -maxStep, maxStep)
	c.orientation = gamemath.YawQuat(yaw + delta)
}

// applyVertical integrates gravity, or presses the avatar's weight into a
// dynamic platform underneath.
func (c *Controller) applyVertical(dt float64) {
	if c.ground.Flying {
		c.ground.Velocity[1] = 0
		return
	}
	if !c.ground.Grounded {
		v := c.ground.Velocity.Y() - config.Physics.Gravity*dt
		if v < -config.Physics.MaxFallSpeed {
			v = -config.Physics.MaxFallSpeed
		}
		c.ground.Velocity[1] = v
		c.position[1] += v * dt
		return
	}
	if platform, ok := c.ground.RidingPlatform.(physics.Actor); ok && platform.Kind() == physics.ActorDynamic {
		weight := config.Avatar.Mass * config.Physics.Gravity
		platform.AddForce(mgl64.Vec3{0, -weight, 0})
	}
}

// applyJump consumes a queued jump if permitted this tick.
func (c *Controller) applyJump() {
	if !c.ground.JumpQueued || c.ground.Immobilized {
		return
	}
	groundJump := c.ground.Grounded && !c.jumping
	airJump := c.AirJump && !c.ground.Grounded && !c.airJumped
	if !groundJump && !airJump {
		return
	}
	if airJump && !groundJump {
		c.airJumped = true
	}
	c.ground.Velocity[1] = jumpSpeed()
	c.ground.Grounded = false
	c.jumping = true
}

// jumpSpeed is the takeoff speed that reaches the configured apex height
// under the configured gravity.
func jumpSpeed() float64 {
	return math.Sqrt(2 * config.Physics.Gravity * config.Avatar.JumpHeight)
}

func (c *Controller) deriveState() netconfig.StateID {
	switch {
	case c.ground.Slipping:
		return netconfig.StateSlip
	case c.ground.Flying:
		return netconfig.StateFly
	case !c.ground.Grounded && c.ground.Velocity.Y() > 0:
		return netconfig.StateJump
	case !c.ground.Grounded:
		return netconfig.StateFall
	case c.wasMoving && c.ground.Running:
		return netconfig.StateRun
	case c.wasMoving:
		return netconfig.StateWalk
	default:
		return netconfig.StateIdle
	}
}
