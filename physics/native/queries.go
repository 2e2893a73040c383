package native

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/everglen/everglen/physics"
)

const (
	terrainMarchStep      = 0.2
	terrainNormalEpsilon  = 0.05
	terrainBisectionSteps = 10
)

// Raycast finds the nearest masked hit along a ray.
func (e *Engine) Raycast(origin, dir mgl64.Vec3, maxDistance float64, mask uint32) (physics.QueryHit, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cast(origin, dir, maxDistance, 0, mask)
}

// SweepSphere casts a sphere of the given radius along dir. Implemented as a
// ray against surfaces inflated by the radius.
func (e *Engine) SweepSphere(origin, dir mgl64.Vec3, distance, radius float64, mask uint32) (physics.QueryHit, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cast(origin, dir, distance, radius, mask)
}

func (e *Engine) cast(origin, dir mgl64.Vec3, maxDist, radius float64, mask uint32) (physics.QueryHit, bool) {
	if e.released || maxDist <= 0 || dir.Len() < 1e-12 {
		return physics.QueryHit{}, false
	}
	dir = dir.Normalize()

	best := physics.QueryHit{Distance: math.Inf(1)}
	found := false
	consider := func(hit physics.QueryHit, ok bool) {
		if ok && hit.Distance <= maxDist && hit.Distance < best.Distance {
			best = hit
			found = true
		}
	}

	if e.terrain != nil && mask&e.terrainFilter.Group != 0 {
		consider(e.castTerrain(origin, dir, maxDist, radius))
	}
	for _, a := range e.actors {
		if a.released || a.shape.released || a.shape.filter.Group&mask == 0 {
			continue
		}
		switch a.shape.geom.Type {
		case physics.GeometryBox:
			consider(castBox(a, origin, dir, maxDist, radius))
		default:
			consider(castBoundingSphere(a, origin, dir, maxDist, radius))
		}
	}
	return best, found
}

// castTerrain marches the ray until the swept sphere dips under the
// heightfield, then bisects to the crossing.
func (e *Engine) castTerrain(origin, dir mgl64.Vec3, maxDist, radius float64) (physics.QueryHit, bool) {
	under := func(t float64) (float64, bool) {
		p := origin.Add(dir.Mul(t))
		h := e.terrain.HeightAt(p.X(), p.Z())
		if !finite(h) {
			return 0, false
		}
		return p.Y() - radius - h, true
	}

	prev := 0.0
	if gap, ok := under(0); ok && gap <= 0 {
		return e.terrainHit(origin, 0), true
	}
	for t := terrainMarchStep; t <= maxDist+terrainMarchStep; t += terrainMarchStep {
		if t > maxDist {
			t = maxDist
		}
		gap, ok := under(t)
		if ok && gap <= 0 {
			lo, hi := prev, t
			for i := 0; i < terrainBisectionSteps; i++ {
				mid := (lo + hi) / 2
				if g, ok := under(mid); ok && g <= 0 {
					hi = mid
				} else {
					lo = mid
				}
			}
			return e.terrainHit(origin.Add(dir.Mul(hi)), hi), true
		}
		prev = t
		if t == maxDist {
			break
		}
	}
	return physics.QueryHit{}, false
}

func (e *Engine) terrainHit(center mgl64.Vec3, dist float64) physics.QueryHit {
	x, z := center.X(), center.Z()
	h := e.terrain.HeightAt(x, z)
	return physics.QueryHit{
		Actor:    nil, // terrain is not an actor
		Point:    mgl64.Vec3{x, h, z},
		Normal:   e.terrainNormal(x, z),
		Distance: dist,
	}
}

func (e *Engine) terrainNormal(x, z float64) mgl64.Vec3 {
	eps := terrainNormalEpsilon
	hl := e.terrain.HeightAt(x-eps, z)
	hr := e.terrain.HeightAt(x+eps, z)
	hd := e.terrain.HeightAt(x, z-eps)
	hu := e.terrain.HeightAt(x, z+eps)
	if !finite(hl) || !finite(hr) || !finite(hd) || !finite(hu) {
		return mgl64.Vec3{0, 1, 0}
	}
	return mgl64.Vec3{hl - hr, 2 * eps, hd - hu}.Normalize()
}

// castBox slab-tests the ray in the box's local frame, with the extents
// inflated by the sweep radius.
func castBox(a *actor, origin, dir mgl64.Vec3, maxDist, radius float64) (physics.QueryHit, bool) {
	inv := a.pose.Orientation.Inverse()
	lo := inv.Rotate(origin.Sub(a.pose.Position))
	ld := inv.Rotate(dir)

	ext := a.shape.geom.HalfExtents.Add(mgl64.Vec3{radius, radius, radius})

	tMin, tMax := 0.0, maxDist
	axis := -1
	sign := 0.0
	for i := 0; i < 3; i++ {
		if math.Abs(ld[i]) < 1e-12 {
			if lo[i] < -ext[i] || lo[i] > ext[i] {
				return physics.QueryHit{}, false
			}
			continue
		}
		t1 := (-ext[i] - lo[i]) / ld[i]
		t2 := (ext[i] - lo[i]) / ld[i]
		s := -1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			s = 1.0
		}
		if t1 > tMin {
			tMin = t1
			axis = i
			sign = s
		}
		if t2 < tMax {
			tMax = t2
		}
		if tMin > tMax {
			return physics.QueryHit{}, false
		}
	}

	var localNormal mgl64.Vec3
	if axis >= 0 {
		localNormal[axis] = sign
	} else {
		// Started inside the box; push back against the ray.
		return physics.QueryHit{
			Actor:    a,
			Point:    origin,
			Normal:   dir.Mul(-1),
			Distance: 0,
		}, true
	}

	normal := a.pose.Orientation.Rotate(localNormal)
	center := origin.Add(dir.Mul(tMin))
	return physics.QueryHit{
		Actor:    a,
		Point:    center.Sub(normal.Mul(radius)),
		Normal:   normal,
		Distance: tMin,
	}, true
}

// castBoundingSphere treats spheres and capsules as their bounding sphere.
func castBoundingSphere(a *actor, origin, dir mgl64.Vec3, maxDist, radius float64) (physics.QueryHit, bool) {
	r := a.shape.boundingRadius() + radius
	oc := origin.Sub(a.pose.Position)
	b := oc.Dot(dir)
	c := oc.Dot(oc) - r*r
	disc := b*b - c
	if disc < 0 {
		return physics.QueryHit{}, false
	}
	t := -b - math.Sqrt(disc)
	if t < 0 {
		t = 0
	}
	if t > maxDist {
		return physics.QueryHit{}, false
	}
	center := origin.Add(dir.Mul(t))
	normal := center.Sub(a.pose.Position)
	if normal.Len() < 1e-12 {
		normal = dir.Mul(-1)
	} else {
		normal = normal.Normalize()
	}
	return physics.QueryHit{
		Actor:    a,
		Point:    center.Sub(normal.Mul(radius)),
		Normal:   normal,
		Distance: t,
	}, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
