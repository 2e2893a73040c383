// Package world holds the authored level data shared by the server and by
// predicting clients: the terrain heightfield, static obstacles, platform
// paths, and spawn points. Live physics actors are created by whoever owns a
// backend.
package world

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/everglen/everglen/physics"
	"github.com/everglen/everglen/terrain"
)

// Box is a static obstacle. Position is the box center.
type Box struct {
	Position    mgl64.Vec3
	HalfExtents mgl64.Vec3
}

// PlatformPath describes a moving platform: a kinematic box that travels
// Span units along Axis from Base and back again, Period seconds each way.
type PlatformPath struct {
	Base        mgl64.Vec3
	HalfExtents mgl64.Vec3
	Axis        mgl64.Vec3
	Span        float64
	Period      float64
}

// Definition is one authored level.
type Definition struct {
	Name      string
	Terrain   *terrain.Heightfield
	Spawns    []mgl64.Vec3
	Boxes     []Box
	Platforms []PlatformPath

	nextSpawn int
}

// Build returns the definition for a named world.
func Build(name string) (*Definition, error) {
	switch name {
	case "meadow":
		return buildMeadow(), nil
	default:
		return nil, fmt.Errorf("unknown world %q", name)
	}
}

// NextSpawn hands out spawn points round-robin.
func (d *Definition) NextSpawn() mgl64.Vec3 {
	p := d.Spawns[d.nextSpawn%len(d.Spawns)]
	d.nextSpawn++
	return p
}

// PopulateStatics creates a static actor per box. The caller owns the
// returned actors and material.
func (d *Definition) PopulateStatics(backend physics.Backend, layers *physics.LayerRegistry) ([]physics.Actor, physics.Material, error) {
	mat, err := backend.CreateMaterial(0.6, 0.6, 0.1)
	if err != nil {
		return nil, nil, fmt.Errorf("world material: %w", err)
	}
	envFilter := layers.FilterFor(physics.LayerEnvironment)

	actors := make([]physics.Actor, 0, len(d.Boxes))
	for _, box := range d.Boxes {
		shape, err := backend.CreateShape(physics.Geometry{Type: physics.GeometryBox, HalfExtents: box.HalfExtents}, mat, envFilter)
		if err != nil {
			releaseAll(actors, mat)
			return nil, nil, fmt.Errorf("static shape: %w", err)
		}
		actor, err := backend.CreateRigidStatic(physics.IdentityPose(box.Position), shape)
		if err != nil {
			shape.Release()
			releaseAll(actors, mat)
			return nil, nil, fmt.Errorf("static actor: %w", err)
		}
		actors = append(actors, actor)
	}
	return actors, mat, nil
}

func releaseAll(actors []physics.Actor, mat physics.Material) {
	for _, a := range actors {
		a.Release()
	}
	mat.Release()
}

// buildMeadow generates the default rolling-hills level: a 128x128 unit
// heightfield centered on the origin, a few crates near spawn, and two
// moving platforms.
func buildMeadow() *Definition {
	const (
		cols     = 65
		rows     = 65
		cellSize = 2.0
	)
	hf := terrain.NewHeightfield(-64, -64, cellSize, cols, rows)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			x := hf.OriginX + float64(c)*cellSize
			z := hf.OriginZ + float64(r)*cellSize
			hf.Heights[r*cols+c] = 1.5*math.Sin(x*0.08)*math.Cos(z*0.06) + 0.4*math.Sin(z*0.21)
		}
	}

	d := &Definition{
		Name:    "meadow",
		Terrain: hf,
		Boxes: []Box{
			{Position: mgl64.Vec3{6, 0.5, 4}, HalfExtents: mgl64.Vec3{1, 1, 1}},
			{Position: mgl64.Vec3{-8, 0.75, -3}, HalfExtents: mgl64.Vec3{1.5, 1.5, 1.5}},
			{Position: mgl64.Vec3{12, 0.5, -10}, HalfExtents: mgl64.Vec3{2, 1, 0.5}},
		},
		Platforms: []PlatformPath{
			{Base: mgl64.Vec3{0, 4, 10}, HalfExtents: mgl64.Vec3{2, 0.25, 2}, Axis: mgl64.Vec3{1, 0, 0}, Span: 8, Period: 4},
			{Base: mgl64.Vec3{-10, 3, 14}, HalfExtents: mgl64.Vec3{1.5, 0.25, 1.5}, Axis: mgl64.Vec3{0, 1, 0}, Span: 5, Period: 6},
		},
	}

	for _, p := range []struct{ x, z float64 }{{0, 0}, {3, 2}, {-3, 2}, {0, -4}} {
		h := hf.HeightAt(p.x, p.z)
		d.Spawns = append(d.Spawns, mgl64.Vec3{p.x, h + 0.1, p.z})
	}
	return d
}
