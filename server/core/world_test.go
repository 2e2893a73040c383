package core

import (
	"context"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/leap-fish/necs/esync/srvsync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yohamta/donburi"

	"github.com/everglen/everglen/config"
	"github.com/everglen/everglen/physics"
	"github.com/everglen/everglen/physics/native"
)

func TestLoadLevelRejectsUnknownName(t *testing.T) {
	_, err := LoadLevel("atlantis")
	assert.ErrorContains(t, err, "unknown world")
}

func TestMeadowSpawnsSitAboveTerrain(t *testing.T) {
	level, err := LoadLevel("meadow")
	require.NoError(t, err)
	require.NotEmpty(t, level.Spawns)

	for _, spawn := range level.Spawns {
		h := level.Terrain.HeightAt(spawn.X(), spawn.Z())
		assert.Greater(t, spawn.Y(), h, "spawn at (%.1f, %.1f)", spawn.X(), spawn.Z())
	}
}

func TestSpawnPointsRotateRoundRobin(t *testing.T) {
	level, err := LoadLevel("meadow")
	require.NoError(t, err)

	first := level.NextSpawn()
	second := level.NextSpawn()
	assert.NotEqual(t, first, second)

	for i := 0; i < len(level.Spawns)-1; i++ {
		level.NextSpawn()
	}
	assert.Equal(t, second, level.NextSpawn(), "the rotation wraps")
}

func newPopulatedWorld(t *testing.T) (*Level, physics.Backend) {
	t.Helper()
	config.Apply(config.Default())

	level, err := LoadLevel("meadow")
	require.NoError(t, err)

	layers := physics.DefaultLayers(false)
	lc := physics.NewLifecycle(native.NewLoader(
		native.WithTerrain(level.Terrain, layers.FilterFor(physics.LayerEnvironment)),
	))
	backend, err := lc.Load(context.Background())
	require.NoError(t, err)
	t.Cleanup(backend.Release)

	world := donburi.NewWorld()
	srvsync.UseEsync(world)
	require.NoError(t, level.Populate(world, backend, layers))
	t.Cleanup(level.Release)

	return level, backend
}

func TestPlatformTravelsAlongItsAxisAndReturns(t *testing.T) {
	level, _ := newPopulatedWorld(t)
	require.NotEmpty(t, level.Platforms)
	p := level.Platforms[0]
	start := p.Actor().Pose().Position

	// Two seconds in, mid-outbound: the platform should be away from its
	// base.
	for i := 0; i < 120; i++ {
		p.Advance(1.0 / 60)
	}
	away := p.Actor().Pose().Position
	assert.Greater(t, away.Sub(start).Len(), 1.0)

	// Finish the out-and-back cycle; it ends back where it started.
	for i := 0; i < 360; i++ {
		p.Advance(1.0 / 60)
	}
	assert.InDelta(t, 0, p.Actor().Pose().Position.Sub(start).Len(), 0.1)
}

func TestPlatformActorIsKinematic(t *testing.T) {
	level, _ := newPopulatedWorld(t)
	for _, p := range level.Platforms {
		assert.Equal(t, physics.ActorKinematic, p.Actor().Kind())
	}
}

func TestStaticBoxesAreRaycastable(t *testing.T) {
	level, backend := newPopulatedWorld(t)
	layers := physics.DefaultLayers(false)
	mask := layers.GroupBit(physics.LayerEnvironment)

	// Cast straight down over the first crate; the hit must land on the box
	// top, above the terrain beneath it.
	box := level.Boxes[0]
	origin := box.Position.Add(mgl64.Vec3{0, 10, 0})
	hit, ok := backend.Raycast(origin, mgl64.Vec3{0, -1, 0}, 20, mask)
	require.True(t, ok)
	assert.InDelta(t, box.Position.Y()+box.HalfExtents.Y(), hit.Point.Y(), 1e-6)
}
