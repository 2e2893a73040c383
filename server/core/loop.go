package core

import (
	"time"

	"github.com/leap-fish/necs/esync/srvsync"

	"github.com/everglen/everglen/shared/messages"
	"github.com/everglen/everglen/shared/netcomponents"
	"github.com/everglen/everglen/shared/netconfig"
)

// GameLoop drives the authoritative tick: drain queued client messages, step
// platforms and avatars at the fixed physics rate, then broadcast the world
// snapshot.
type GameLoop struct {
	server   *Server
	tickRate int
	stopChan chan struct{}
}

func NewGameLoop(server *Server, tickRate int) *GameLoop {
	return &GameLoop{
		server:   server,
		tickRate: tickRate,
		stopChan: make(chan struct{}),
	}
}

func (g *GameLoop) Run() {
	ticker := time.NewTicker(time.Second / time.Duration(g.tickRate))
	defer ticker.Stop()

	g.server.log.Info().Int("tickRate", g.tickRate).Msg("game loop started")

	for {
		select {
		case <-g.stopChan:
			g.server.log.Info().Msg("game loop stopped")
			return
		case <-ticker.C:
			g.tick()
		}
	}
}

func (g *GameLoop) Stop() {
	close(g.stopChan)
}

// tick runs one server tick. Physics sub-steps at PhysicsHz between
// broadcasts so tuning constants behave the same as on predicting clients.
func (g *GameLoop) tick() {
	s := g.server
	s.inbox.Drain()

	steps := netconfig.PhysicsHz / g.tickRate
	if steps < 1 {
		steps = 1
	}
	const dt = 1.0 / netconfig.PhysicsHz

	avatars := s.snapshotAvatars()
	backend, loaded := s.lifecycle.Backend()

	for i := 0; i < steps; i++ {
		for _, p := range s.level.Platforms {
			p.Advance(dt)
		}
		for _, a := range avatars {
			a.effects.Tick()
			a.ctrl.Tick(dt)
		}
		if loaded {
			backend.Step(dt)
		}
	}

	for _, p := range s.level.Platforms {
		if s.world.Valid(p.Entity) {
			entry := s.world.Entry(p.Entity)
			netcomponents.NetTransform.Get(entry).SetPosition(p.actor.Pose().Position)
		}
	}

	for _, a := range avatars {
		g.respawnIfFallen(a)
		a.writeComponents(s.world)
	}

	if err := srvsync.DoSync(); err != nil {
		s.log.Error().Err(err).Msg("snapshot sync failed")
	}
}

// killPlaneY is the height below which an avatar has irrecoverably left the
// world geometry.
const killPlaneY = -25.0

// respawnIfFallen teleports an avatar back to a spawn point when it has
// fallen out of the world. Teleports are broadcast so clients snap instead
// of blending across the map.
func (g *GameLoop) respawnIfFallen(a *Avatar) {
	if a.ctrl.Position().Y() > killPlaneY {
		return
	}
	spawn := g.server.level.NextSpawn()
	a.ctrl.ClearClickTarget()
	a.ctrl.SetPosition(spawn)

	g.server.log.Info().Str("player", a.name).Msg("avatar fell out of the world, respawning")
	g.server.broadcast(messages.TeleportEvent{
		NetworkID: a.id,
		X:         spawn.X(),
		Y:         spawn.Y(),
		Z:         spawn.Z(),
	})
}

// snapshotAvatars copies the avatar set for lock-free iteration during the
// tick.
func (s *Server) snapshotAvatars() []*Avatar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Avatar, 0, len(s.avatars))
	for _, a := range s.avatars {
		out = append(out, a)
	}
	return out
}
