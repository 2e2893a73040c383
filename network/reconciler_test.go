package network

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everglen/everglen/components"
	"github.com/everglen/everglen/config"
	"github.com/everglen/everglen/invariant"
	"github.com/everglen/everglen/movement"
	"github.com/everglen/everglen/physics"
	"github.com/everglen/everglen/terrain"
)

const reconcileDt = 1.0 / 60

func newReconcilerRig(ground terrain.HeightSource, feet mgl64.Vec3) (*Reconciler, *movement.Controller, *components.MovementData) {
	config.Apply(config.Default())
	state := &components.MovementData{}
	lc := physics.NewLifecycle(nil) // never loaded; the reconciler works on positions alone
	ctrl := movement.NewController(lc, physics.DefaultLayers(false), state, nil, feet)
	return NewReconciler(ctrl, state, ground), ctrl, state
}

func TestTickWithoutInitialSampleIsFatal(t *testing.T) {
	r, _, _ := newReconcilerRig(terrain.Flat(0), mgl64.Vec3{})

	defer func() {
		assert.True(t, invariant.IsViolation(recover()), "missing server sample must not default to origin")
	}()
	r.Tick(reconcileDt)
	t.Fatal("tick must panic without a sample")
}

func TestLargeErrorSnapsAndClearsClickTarget(t *testing.T) {
	r, ctrl, state := newReconcilerRig(terrain.Flat(0), mgl64.Vec3{0, 10, 0})
	ctrl.SetClickTarget(mgl64.Vec3{20, 10, 0}, false)

	// errorDistance = 6 > snapDistance = 5
	r.SetSample(mgl64.Vec3{0, 10, 6}, mgl64.Vec3{}, time.Now())
	r.Tick(reconcileDt)

	assert.Equal(t, mgl64.Vec3{0, 10, 6}, ctrl.Position(), "hard correction lands exactly on the sample")
	assert.Nil(t, state.ClickTarget, "in-flight movement target is cancelled")
	assert.Equal(t, uint64(1), r.Snaps())
}

func TestMediumErrorBlendsWithoutSnapping(t *testing.T) {
	r, ctrl, _ := newReconcilerRig(terrain.Flat(0), mgl64.Vec3{0, 10, 0})
	r.SetSample(mgl64.Vec3{0, 10, 2}, mgl64.Vec3{}, time.Now())

	r.Tick(reconcileDt)

	z := ctrl.Position().Z()
	assert.Greater(t, z, 0.0, "correction moves toward the sample")
	assert.Less(t, z, 2.0, "never abruptly")
	assert.Zero(t, r.Snaps())

	// Repeated ticks converge.
	for i := 0; i < 600; i++ {
		r.Tick(reconcileDt)
	}
	assert.InDelta(t, 2.0, ctrl.Position().Z(), 0.05)
}

func TestSmallErrorTrustsPrediction(t *testing.T) {
	r, ctrl, _ := newReconcilerRig(terrain.Flat(0), mgl64.Vec3{0, 10, 0})
	r.SetSample(mgl64.Vec3{0, 10, 0.05}, mgl64.Vec3{}, time.Now())

	r.Tick(reconcileDt)

	assert.Equal(t, mgl64.Vec3{0, 10, 0}, ctrl.Position(), "errors under the threshold leave prediction alone")
}

func TestBelowTerrainSnapsUpEvenWhenIdle(t *testing.T) {
	r, ctrl, _ := newReconcilerRig(terrain.Flat(3), mgl64.Vec3{0, 1, 0})
	r.SetSample(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{}, time.Now())

	r.Tick(reconcileDt)

	assert.InDelta(t, 3, ctrl.Position().Y(), 1e-9)
}

func TestHoveringAboveTerrainEasesDown(t *testing.T) {
	r, ctrl, state := newReconcilerRig(terrain.Flat(0), mgl64.Vec3{0, 0.5, 0})
	state.Grounded = true
	r.SetSample(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{}, time.Now())

	r.Tick(reconcileDt)
	first := ctrl.Position().Y()
	assert.Less(t, first, 0.5, "easing starts immediately")
	assert.Greater(t, first, 0.0, "but does not snap")

	for i := 0; i < 120; i++ {
		r.Tick(reconcileDt)
	}
	assert.InDelta(t, 0, ctrl.Position().Y(), 1e-6, "hover fully eases out")
}

func TestCrateFootingIsNotEasedDownToTerrain(t *testing.T) {
	// Standing on a crate top well above the heightfield, with the server
	// sample in agreement. Only the terrain pin could move the avatar, and
	// it must not: easing down here would drag the feet through the crate.
	r, ctrl, state := newReconcilerRig(terrain.Flat(0), mgl64.Vec3{0, 1.5, 0})
	state.Grounded = true
	state.GroundActor = struct{}{}
	r.SetSample(mgl64.Vec3{0, 1.5, 0}, mgl64.Vec3{}, time.Now())

	for i := 0; i < 120; i++ {
		r.Tick(reconcileDt)
	}
	assert.InDelta(t, 1.5, ctrl.Position().Y(), 1e-9, "crate footing holds through two seconds of ticks")
}

func TestPlatformFootingIsNotEasedDownToTerrain(t *testing.T) {
	r, ctrl, state := newReconcilerRig(terrain.Flat(0), mgl64.Vec3{0, 4.25, 0})
	state.Grounded = true
	state.RidingPlatform = struct{}{}
	r.SetSample(mgl64.Vec3{0, 4.25, 0}, mgl64.Vec3{}, time.Now())

	for i := 0; i < 120; i++ {
		r.Tick(reconcileDt)
	}
	assert.InDelta(t, 4.25, ctrl.Position().Y(), 1e-9)
}

func TestNaNTerrainHeightDuringTickIsFatal(t *testing.T) {
	// A 2x2 heightfield; the avatar stands outside it.
	hf := terrain.NewHeightfield(0, 0, 1, 2, 2)
	r, _, _ := newReconcilerRig(hf, mgl64.Vec3{50, 0, 50})
	r.SetSample(mgl64.Vec3{50, 0, 50}, mgl64.Vec3{}, time.Now())

	require.Panics(t, func() { r.Tick(reconcileDt) }, "a NaN height must never default to zero")
}
