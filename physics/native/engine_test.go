package native

import (
	"context"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everglen/everglen/physics"
	"github.com/everglen/everglen/terrain"
)

const (
	testEnvBit    = 1 << 0
	testPlayerBit = 1 << 1
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	loader := NewLoader(opts...)
	backend, err := loader(context.Background())
	require.NoError(t, err)
	e, ok := backend.(*Engine)
	require.True(t, ok)
	t.Cleanup(e.Release)
	return e
}

func envFilter() physics.FilterData {
	return physics.FilterData{Group: testEnvBit, Mask: testPlayerBit}
}

func playerFilter() physics.FilterData {
	return physics.FilterData{Group: testPlayerBit, Mask: testEnvBit}
}

func TestDynamicBodySettlesOnTerrain(t *testing.T) {
	e := newTestEngine(t, WithTerrain(terrain.Flat(2), envFilter()))

	mat, err := e.CreateMaterial(0.5, 0.5, 0)
	require.NoError(t, err)
	sh, err := e.CreateShape(physics.Geometry{Type: physics.GeometrySphere, Radius: 0.5}, mat, playerFilter())
	require.NoError(t, err)

	pose := physics.IdentityPose(mgl64.Vec3{0, 10, 0})
	body, err := e.CreateRigidDynamic(pose, sh, 1, false)
	require.NoError(t, err)

	for i := 0; i < 600; i++ {
		e.Step(1.0 / 60)
	}

	assert.InDelta(t, 2.5, body.Pose().Position.Y(), 1e-6, "sphere bottom must rest on the heightfield")
	assert.GreaterOrEqual(t, body.LinearVelocity().Y(), 0.0)
}

func TestKinematicBodyIgnoresGravityAndForces(t *testing.T) {
	e := newTestEngine(t)

	mat, err := e.CreateMaterial(0.5, 0.5, 0)
	require.NoError(t, err)
	sh, err := e.CreateShape(physics.Geometry{Type: physics.GeometryCapsule, Radius: 0.4, HalfHeight: 0.6}, mat, playerFilter())
	require.NoError(t, err)

	body, err := e.CreateRigidDynamic(physics.IdentityPose(mgl64.Vec3{1, 5, 1}), sh, 70, true)
	require.NoError(t, err)
	body.AddForce(mgl64.Vec3{0, -500, 0})

	e.Step(1.0 / 60)

	assert.Equal(t, mgl64.Vec3{1, 5, 1}, body.Pose().Position)
	assert.Equal(t, mgl64.Vec3{}, body.LinearVelocity())
}

func TestRaycastHitsNearestBox(t *testing.T) {
	e := newTestEngine(t)

	mat, err := e.CreateMaterial(0.5, 0.5, 0)
	require.NoError(t, err)
	boxGeom := physics.Geometry{Type: physics.GeometryBox, HalfExtents: mgl64.Vec3{1, 1, 1}}
	sh, err := e.CreateShape(boxGeom, mat, envFilter())
	require.NoError(t, err)

	near, err := e.CreateRigidStatic(physics.IdentityPose(mgl64.Vec3{0, 0, 5}), sh)
	require.NoError(t, err)
	_, err = e.CreateRigidStatic(physics.IdentityPose(mgl64.Vec3{0, 0, 12}), sh)
	require.NoError(t, err)

	hit, ok := e.Raycast(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 0, 1}, 50, testEnvBit)
	require.True(t, ok)
	assert.Same(t, near, hit.Actor)
	assert.InDelta(t, 4, hit.Distance, 1e-9)
	assert.InDelta(t, -1, hit.Normal.Z(), 1e-9)
}

func TestRaycastHonorsMask(t *testing.T) {
	e := newTestEngine(t)

	mat, err := e.CreateMaterial(0.5, 0.5, 0)
	require.NoError(t, err)
	sh, err := e.CreateShape(physics.Geometry{Type: physics.GeometryBox, HalfExtents: mgl64.Vec3{1, 1, 1}}, mat, envFilter())
	require.NoError(t, err)
	_, err = e.CreateRigidStatic(physics.IdentityPose(mgl64.Vec3{0, 0, 5}), sh)
	require.NoError(t, err)

	_, ok := e.Raycast(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 0, 1}, 50, testPlayerBit)
	assert.False(t, ok, "a mask without the box's group must not hit it")
}

func TestSweepSphereFindsTerrain(t *testing.T) {
	e := newTestEngine(t, WithTerrain(terrain.Flat(0), envFilter()))

	hit, ok := e.SweepSphere(mgl64.Vec3{3, 4, -2}, mgl64.Vec3{0, -1, 0}, 10, 0.4, testEnvBit)
	require.True(t, ok)
	assert.Nil(t, hit.Actor)
	assert.InDelta(t, 3.6, hit.Distance, 1e-2, "sphere surface stops 0.4 above the ground")
	assert.InDelta(t, 1, hit.Normal.Y(), 1e-9)
	assert.InDelta(t, 0, hit.Point.Y(), 1e-2)
}

func TestContactTransitionsFireOutsideTheLock(t *testing.T) {
	e := newTestEngine(t)

	mat, err := e.CreateMaterial(0.5, 0.5, 0)
	require.NoError(t, err)
	boxShape, err := e.CreateShape(physics.Geometry{Type: physics.GeometryBox, HalfExtents: mgl64.Vec3{1, 1, 1}}, mat, envFilter())
	require.NoError(t, err)
	capShape, err := e.CreateShape(physics.Geometry{Type: physics.GeometryCapsule, Radius: 0.4, HalfHeight: 0.6}, mat, playerFilter())
	require.NoError(t, err)

	box, err := e.CreateRigidStatic(physics.IdentityPose(mgl64.Vec3{0, 0, 0}), boxShape)
	require.NoError(t, err)
	avatar, err := e.CreateRigidDynamic(physics.IdentityPose(mgl64.Vec3{10, 0, 0}), capShape, 70, true)
	require.NoError(t, err)

	var started, ended []physics.Actor
	avatar.SetContactCallbacks(physics.ContactCallbacks{
		OnContactStart: func(other physics.Actor) {
			started = append(started, other)
			// Re-entering the engine from a callback must not deadlock.
			_ = avatar.Pose()
		},
		OnContactEnd: func(other physics.Actor) { ended = append(ended, other) },
	})

	e.Step(1.0 / 60)
	assert.Empty(t, started)

	avatar.SetPose(physics.IdentityPose(mgl64.Vec3{1, 0, 0}))
	e.Step(1.0 / 60)
	require.Len(t, started, 1)
	assert.Same(t, box, started[0])

	avatar.SetPose(physics.IdentityPose(mgl64.Vec3{10, 0, 0}))
	e.Step(1.0 / 60)
	require.Len(t, ended, 1)
	assert.Same(t, box, ended[0])
}

func TestReleasedEngineRefusesNewHandles(t *testing.T) {
	e := newTestEngine(t)
	e.Release()

	_, err := e.CreateMaterial(0.5, 0.5, 0)
	assert.ErrorIs(t, err, errReleased)
}
