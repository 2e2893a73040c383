package network

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"github.com/everglen/everglen/components"
	"github.com/everglen/everglen/config"
	"github.com/everglen/everglen/invariant"
	"github.com/everglen/everglen/movement"
	"github.com/everglen/everglen/shared/gamemath"
	"github.com/everglen/everglen/terrain"
)

const hoverEpsilon = 0.02

// Sample is the most recent authoritative position the server has sent for
// the local avatar. It is never defaulted: reconciliation before the first
// sample is a fatal precondition violation.
type Sample struct {
	Position   mgl64.Vec3
	Velocity   mgl64.Vec3
	ReceivedAt time.Time
}

// Reconciler corrects the locally predicted avatar toward server truth.
// Large errors snap, medium errors blend exponentially, small errors trust
// the prediction. Independently of correction it pins the feet to terrain
// every tick, even on idle frames.
type Reconciler struct {
	ctrl   *movement.Controller
	state  *components.MovementData
	ground terrain.HeightSource

	sample     Sample
	haveSample bool

	hover *gween.Tween // easing down from an above-terrain correction

	snaps  uint64
	blends uint64

	log zerolog.Logger
}

func NewReconciler(ctrl *movement.Controller, state *components.MovementData, ground terrain.HeightSource) *Reconciler {
	return &Reconciler{
		ctrl:   ctrl,
		state:  state,
		ground: ground,
		log:    log.With().Str("component", "reconciler").Logger(),
	}
}

// SetSample records the newest server truth. Physics never mutates it.
func (r *Reconciler) SetSample(position, velocity mgl64.Vec3, at time.Time) {
	r.sample = Sample{Position: position, Velocity: velocity, ReceivedAt: at}
	r.haveSample = true
}

// Sample returns the current authoritative sample.
func (r *Reconciler) Sample() (Sample, bool) {
	return r.sample, r.haveSample
}

// Snaps reports how many hard corrections have been applied.
func (r *Reconciler) Snaps() uint64 { return r.snaps }

// Tick reconciles the simulated position against the server sample, clamps
// footing to terrain, and writes the kinematic capsule pose.
func (r *Reconciler) Tick(dt float64) {
	invariant.Assert(r.haveSample, "reconciliation ticked before any authoritative server sample")

	pos := r.ctrl.Position()
	errDist := pos.Sub(r.sample.Position).Len()

	switch {
	case errDist > config.Reconcile.SnapDistance:
		// Hard correction: teleport or desync recovery. Any in-flight
		// click-to-move target is stale now.
		pos = r.sample.Position
		r.ctrl.ClearClickTarget()
		r.hover = nil
		r.snaps++
		r.log.Warn().Float64("error", errDist).Msg("prediction error above snap threshold, hard correcting")
	case errDist > config.Reconcile.BlendThreshold:
		// Soft correction scaled by error magnitude, framerate independent.
		k := gamemath.Clamp(errDist/config.Reconcile.SnapDistance, 0, 1) * config.Reconcile.MaxBlendRate
		f := gamemath.BlendFactor(k, dt)
		pos = pos.Add(r.sample.Position.Sub(pos).Mul(f))
		r.blends++
	}

	pos = r.clampToTerrain(pos, dt)
	r.ctrl.SetPosition(pos)

	// The capsule pose is set kinematically from the reconciled position so
	// the physics step and the reconciliation never fight each other.
	if r.ctrl.Ready() {
		r.ctrl.Capsule().SetPose(pos, r.ctrl.Orientation())
	}
}

// clampToTerrain snaps the feet up when below ground and eases them down
// when a correction left the avatar hovering. Airborne and flying avatars
// are left to gravity.
func (r *Reconciler) clampToTerrain(pos mgl64.Vec3, dt float64) mgl64.Vec3 {
	h := terrain.MustHeightAt(r.ground, pos.X(), pos.Z())

	if pos.Y() < h {
		pos[1] = h
		r.hover = nil
		return pos
	}
	if r.state.Flying || !r.state.Grounded {
		r.hover = nil
		return pos
	}
	if r.state.GroundActor != nil || r.state.RidingPlatform != nil {
		// Footing is a crate or platform, not the heightfield. Easing down
		// to terrain height here would drag the avatar off its support.
		r.hover = nil
		return pos
	}

	offset := pos.Y() - h
	if offset <= hoverEpsilon {
		r.hover = nil
		return pos
	}
	if r.hover == nil {
		r.hover = gween.New(float32(offset), 0, float32(config.Reconcile.HoverEaseTime), ease.OutQuad)
	}
	eased, done := r.hover.Update(float32(dt))
	pos[1] = h + float64(eased)
	if done {
		pos[1] = h
		r.hover = nil
	}
	return pos
}
