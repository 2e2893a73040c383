package gamemath

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
)

func TestHorizontalDistance(t *testing.T) {
	a := mgl64.Vec3{0, 10, 0}
	b := mgl64.Vec3{3, -2, 4}
	assert.InDelta(t, 5.0, HorizontalDistance(a, b), 1e-9)
}

func TestDirectionTo(t *testing.T) {
	from := mgl64.Vec3{1, 0, 1}
	to := mgl64.Vec3{1, 50, 5}
	dir := DirectionTo(from, to)
	assert.InDelta(t, 0, dir.X(), 1e-9)
	assert.InDelta(t, 0, dir.Y(), 1e-9)
	assert.InDelta(t, 1, dir.Z(), 1e-9)

	assert.Equal(t, mgl64.Vec3{}, DirectionTo(from, mgl64.Vec3{1, 99, 1}))
}

func TestSlopeAngle(t *testing.T) {
	assert.InDelta(t, 0, SlopeAngle(Up), 1e-9)

	// 45 degree ramp normal
	n := mgl64.Vec3{1, 1, 0}.Normalize()
	assert.InDelta(t, math.Pi/4, SlopeAngle(n), 1e-9)
}

func TestAlignToGroundKeepsLength(t *testing.T) {
	dir := mgl64.Vec3{1, 0, 0}
	n := mgl64.Vec3{-1, 1, 0}.Normalize()
	out := AlignToGround(dir, n)
	assert.InDelta(t, 1.0, out.Len(), 1e-9)
	// Walking uphill: the aligned direction gains height.
	assert.Greater(t, out.Y(), 0.0)
}

func TestGroundDragLeavesNormalComponent(t *testing.T) {
	vel := mgl64.Vec3{4, -2, 0}
	out := GroundDrag(vel, Up, 0.5)
	assert.InDelta(t, 2, out.X(), 1e-9)
	assert.InDelta(t, -2, out.Y(), 1e-9)
}

func TestYawRoundTrip(t *testing.T) {
	for _, yaw := range []float64{0, 0.5, -1.2, math.Pi / 2} {
		q := YawQuat(yaw)
		assert.InDelta(t, yaw, Yaw(q), 1e-9, "yaw %v", yaw)
	}
}

func TestRotateAroundY(t *testing.T) {
	p := mgl64.Vec3{1, 3, 0}
	out := RotateAroundY(p, mgl64.Vec3{}, math.Pi/2)
	assert.InDelta(t, 0, out.X(), 1e-9)
	assert.InDelta(t, 3, out.Y(), 1e-9)
	assert.InDelta(t, -1, out.Z(), 1e-9)
}

func TestBlendFactor(t *testing.T) {
	assert.Equal(t, 0.0, BlendFactor(0, 0.016))
	small := BlendFactor(2, 0.008)
	large := BlendFactor(2, 0.032)
	assert.Greater(t, large, small)
	assert.Less(t, large, 1.0)
}

func TestMoveTowards(t *testing.T) {
	cur := mgl64.Vec3{0, 0, 0}
	target := mgl64.Vec3{10, 0, 0}
	step := MoveTowards(cur, target, 4)
	assert.InDelta(t, 4, step.X(), 1e-9)
	assert.Equal(t, target, MoveTowards(step, target, 100))
}

func TestDistanceToSegment(t *testing.T) {
	a := mgl64.Vec3{0, 0, 0}
	b := mgl64.Vec3{10, 0, 0}
	assert.InDelta(t, 2, DistanceToSegment(mgl64.Vec3{5, 2, 0}, a, b), 1e-9)
	assert.InDelta(t, 3, DistanceToSegment(mgl64.Vec3{-3, 0, 0}, a, b), 1e-9, "clamps to the near endpoint")
	assert.InDelta(t, 5, DistanceToSegment(mgl64.Vec3{0, 3, 4}, a, a), 1e-9, "degenerate segment is a point")
}

func TestIsFinite(t *testing.T) {
	assert.True(t, IsFinite(mgl64.Vec3{1, 2, 3}))
	assert.False(t, IsFinite(mgl64.Vec3{math.NaN(), 0, 0}))
	assert.False(t, IsFinite(mgl64.Vec3{0, math.Inf(1), 0}))
}
