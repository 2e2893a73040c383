package sim

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/leap-fish/necs/esync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everglen/everglen/components"
	"github.com/everglen/everglen/config"
	"github.com/everglen/everglen/invariant"
	"github.com/everglen/everglen/physics"
	"github.com/everglen/everglen/shared/messages"
	"github.com/everglen/everglen/shared/netcomponents"
	"github.com/everglen/everglen/terrain"
)

func newSim(t *testing.T, ground terrain.HeightSource) *Simulation {
	t.Helper()
	config.Apply(config.Default())
	lc := physics.NewLifecycle(nil)
	return New(lc, physics.DefaultLayers(false), ground)
}

func spawn(s *Simulation, id esync.NetworkId, pos mgl64.Vec3) {
	h := s.Handlers()
	s.Inbox().Push(func() {
		h.OnSpawn(messages.SpawnEvent{NetworkID: id, EntityType: "player", X: pos.X(), Y: pos.Y(), Z: pos.Z()})
	})
	s.Inbox().Drain()
}

func TestSpawnBelowTerrainIsFatal(t *testing.T) {
	s := newSim(t, terrain.Flat(0))
	h := s.Handlers()
	s.Inbox().Push(func() {
		h.OnSpawn(messages.SpawnEvent{NetworkID: 1, EntityType: "player", Y: -5})
	})

	defer func() {
		assert.True(t, invariant.IsViolation(recover()), "a below-terrain spawn must crash the session")
	}()
	s.Inbox().Drain()
	t.Fatal("drain must re-panic the violation")
}

func TestSpawnCreatesRemoteAndReplaysPendingDeltas(t *testing.T) {
	s := newSim(t, terrain.Flat(0))
	h := s.Handlers()

	// The delta arrives before the entity exists; it must buffer, then apply
	// the instant the spawn materializes the entity.
	p := [3]float64{4, 1, 2}
	s.Inbox().Push(func() { h.OnDelta(messages.AvatarDelta{ID: 9, Position: &p}) })
	s.Inbox().Drain()
	assert.False(t, s.store.Exists(9))
	assert.Equal(t, 1, s.queue.PendingCount(9))

	spawn(s, 9, mgl64.Vec3{0, 1, 0})

	require.True(t, s.store.Exists(9))
	entry, ok := s.store.entry(9)
	require.True(t, ok)
	tf := netcomponents.NetTransform.Get(entry)
	assert.Equal(t, mgl64.Vec3{4, 1, 2}, tf.Position(), "the buffered delta replays on creation")
	assert.Zero(t, s.queue.PendingCount(9))
}

func TestTeleportSnapsRemoteWithoutInterpolation(t *testing.T) {
	s := newSim(t, terrain.Flat(0))
	spawn(s, 3, mgl64.Vec3{0, 1, 0})

	h := s.Handlers()
	s.Inbox().Push(func() {
		h.OnTeleport(messages.TeleportEvent{NetworkID: 3, X: 50, Y: 2, Z: 50})
	})
	s.Inbox().Drain()

	entry, ok := s.store.entry(3)
	require.True(t, ok)
	assert.Equal(t, mgl64.Vec3{50, 2, 50}, netcomponents.NetTransform.Get(entry).Position())
	interp := components.NetInterp.Get(entry)
	assert.Equal(t, mgl64.Vec3{50, 2, 50}, interp.TargetPos, "no blending after a teleport")
}

func TestDespawnRemovesEntity(t *testing.T) {
	s := newSim(t, terrain.Flat(0))
	spawn(s, 5, mgl64.Vec3{0, 1, 0})
	require.True(t, s.store.Exists(5))

	h := s.Handlers()
	s.Inbox().Push(func() { h.OnDespawn(messages.DespawnEvent{NetworkID: 5}) })
	s.Inbox().Drain()

	assert.False(t, s.store.Exists(5))
}

func TestInterpolationAdvancesRemotesBetweenSnapshots(t *testing.T) {
	s := newSim(t, terrain.Flat(0))
	spawn(s, 6, mgl64.Vec3{0, 1, 0})

	entry, ok := s.store.entry(6)
	require.True(t, ok)
	interp := components.NetInterp.Get(entry)
	interp.Initialized = true
	interp.PrevPos = mgl64.Vec3{0, 1, 0}
	interp.TargetPos = mgl64.Vec3{1, 1, 0}
	interp.PrevRot = mgl64.QuatIdent()
	interp.TargetRot = mgl64.QuatIdent()
	interp.T = 0

	// One frame at 60fps with a 20Hz snapshot cadence covers a third of the
	// gap.
	s.Update(1.0 / 60)

	tf := netcomponents.NetTransform.Get(entry)
	assert.InDelta(t, 1.0/3, tf.Position().X(), 1e-9)
}
