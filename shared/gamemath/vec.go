// Package gamemath provides the 3D vector and quaternion helpers shared by
// the movement controller, the reconciler, and the server simulation. It must
// stay free of engine dependencies so both binaries can use it.
package gamemath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Up is the world up axis.
var Up = mgl64.Vec3{0, 1, 0}

// Horizontal returns v with its vertical component removed.
func Horizontal(v mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{v.X(), 0, v.Z()}
}

// HorizontalDistance returns the distance between a and b on the ground plane.
func HorizontalDistance(a, b mgl64.Vec3) float64 {
	dx := b.X() - a.X()
	dz := b.Z() - a.Z()
	return math.Hypot(dx, dz)
}

// DirectionTo returns the normalized horizontal direction from `from` to
// `to`, or the zero vector when the two points share a vertical axis.
func DirectionTo(from, to mgl64.Vec3) mgl64.Vec3 {
	d := Horizontal(to.Sub(from))
	if d.Len() < 1e-9 {
		return mgl64.Vec3{}
	}
	return d.Normalize()
}

// ProjectOnPlane removes from v the component along the plane normal.
func ProjectOnPlane(v, normal mgl64.Vec3) mgl64.Vec3 {
	return v.Sub(normal.Mul(v.Dot(normal)))
}

// SlopeAngle returns the angle in radians between a surface normal and world
// up. A flat floor yields 0.
func SlopeAngle(normal mgl64.Vec3) float64 {
	n := normal.Normalize()
	d := math.Max(-1, math.Min(1, n.Dot(Up)))
	return math.Acos(d)
}

// AlignToGround rotates a horizontal direction onto the plane described by
// groundNormal, so walking up a ramp advances along the ramp surface instead
// of into it.
func AlignToGround(dir, groundNormal mgl64.Vec3) mgl64.Vec3 {
	if dir.Len() < 1e-9 {
		return dir
	}
	n := groundNormal.Normalize()
	if n.Sub(Up).Len() < 1e-9 {
		return dir
	}
	q := mgl64.QuatBetweenVectors(Up, n)
	return q.Rotate(dir)
}

// GroundDrag decays the in-plane component of a velocity while leaving the
// along-normal component untouched. factor is the per-tick retention in
// [0, 1]; 1 means no drag.
func GroundDrag(vel, groundNormal mgl64.Vec3, factor float64) mgl64.Vec3 {
	n := groundNormal.Normalize()
	inPlane := ProjectOnPlane(vel, n)
	alongNormal := vel.Sub(inPlane)
	return inPlane.Mul(factor).Add(alongNormal)
}

// Yaw extracts the rotation around world up from q, in radians.
func Yaw(q mgl64.Quat) float64 {
	fwd := q.Rotate(mgl64.Vec3{0, 0, 1})
	return math.Atan2(fwd.X(), fwd.Z())
}

// YawQuat builds an orientation rotated yaw radians around world up.
func YawQuat(yaw float64) mgl64.Quat {
	return mgl64.QuatRotate(yaw, Up)
}

// RotateAroundY rotates point p around pivot by yaw radians on the ground
// plane. Used for riding rotating platforms, which only transfer yaw.
func RotateAroundY(p, pivot mgl64.Vec3, yaw float64) mgl64.Vec3 {
	sin, cos := math.Sincos(yaw)
	dx := p.X() - pivot.X()
	dz := p.Z() - pivot.Z()
	return mgl64.Vec3{
		pivot.X() + dx*cos + dz*sin,
		p.Y(),
		pivot.Z() - dx*sin + dz*cos,
	}
}

// BlendFactor converts a continuous correction rate into a framerate
// independent interpolation factor for a step of dt seconds.
func BlendFactor(rate, dt float64) float64 {
	if rate <= 0 || dt <= 0 {
		return 0
	}
	return 1 - math.Exp(-rate*dt)
}

// MoveTowards advances current toward target by at most maxDelta.
func MoveTowards(current, target mgl64.Vec3, maxDelta float64) mgl64.Vec3 {
	d := target.Sub(current)
	dist := d.Len()
	if dist <= maxDelta || dist < 1e-12 {
		return target
	}
	return current.Add(d.Mul(maxDelta / dist))
}

// DistanceToSegment returns the distance from p to the segment a-b.
func DistanceToSegment(p, a, b mgl64.Vec3) float64 {
	ab := b.Sub(a)
	lenSq := ab.Dot(ab)
	if lenSq < 1e-12 {
		return p.Sub(a).Len()
	}
	t := Clamp(p.Sub(a).Dot(ab)/lenSq, 0, 1)
	return p.Sub(a.Add(ab.Mul(t))).Len()
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// IsFinite reports whether every component of v is a real number.
func IsFinite(v mgl64.Vec3) bool {
	for i := 0; i < 3; i++ {
		if math.IsNaN(v[i]) || math.IsInf(v[i], 0) {
			return false
		}
	}
	return true
}
