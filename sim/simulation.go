// Package sim runs the client-side simulation loop: it drains the network
// inbox, applies world snapshots, advances the local avatar at a fixed
// physics rate, reconciles against server truth, interpolates remotes, and
// emits the outbound state diff.
package sim

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/leap-fish/necs/esync"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/yohamta/donburi"

	"github.com/everglen/everglen/components"
	"github.com/everglen/everglen/invariant"
	"github.com/everglen/everglen/movement"
	"github.com/everglen/everglen/network"
	"github.com/everglen/everglen/physics"
	"github.com/everglen/everglen/shared/messages"
	"github.com/everglen/everglen/shared/netcomponents"
	"github.com/everglen/everglen/shared/netconfig"
	"github.com/everglen/everglen/terrain"
	"github.com/everglen/everglen/world"
)

const physicsDt = 1.0 / netconfig.PhysicsHz

// Simulation owns the client world. It is single-goroutine: every mutation
// of avatar state happens inside Update.
type Simulation struct {
	world donburi.World
	store *Store
	queue *network.SyncQueue
	inbox *network.Inbox

	client    *network.Client
	lifecycle *physics.Lifecycle
	layers    *physics.LayerRegistry
	ground    terrain.HeightSource

	ctrl       *movement.Controller
	reconciler *network.Reconciler
	moveState  *components.MovementData
	effects    *components.StatusEffectsData
	outbound   network.OutboundDiff
	emote      string

	localEntity donburi.Entity
	haveLocal   bool
	presentIDs  map[esync.NetworkId]bool

	platformDefs   []world.PlatformPath
	platformActors map[donburi.Entity]physics.Actor
	platformMat    physics.Material

	accumulator float64
	seq         uint32

	log zerolog.Logger
}

func New(lc *physics.Lifecycle, layers *physics.LayerRegistry, ground terrain.HeightSource) *Simulation {
	world := donburi.NewWorld()
	store := NewStore(world)
	s := &Simulation{
		world:          world,
		store:          store,
		queue:          network.NewSyncQueue(store),
		inbox:          network.NewInbox(),
		lifecycle:      lc,
		layers:         layers,
		ground:         ground,
		presentIDs:     make(map[esync.NetworkId]bool),
		platformActors: make(map[donburi.Entity]physics.Actor),
		log:            log.With().Str("component", "sim").Logger(),
	}
	return s
}

// Inbox is where the network client queues inbound handlers.
func (s *Simulation) Inbox() *network.Inbox { return s.inbox }

// Events surfaces normalized entity change events to observers (renderers,
// audio cues).
func (s *Simulation) Events() *network.Topic[messages.AvatarDelta] { return s.queue.Events }

// Handlers wires the simulation into the network client. Every handler runs
// during the inbox drain, on the simulation goroutine.
func (s *Simulation) Handlers() network.Handlers {
	return network.Handlers{
		OnDelta: func(d messages.AvatarDelta) {
			if s.client != nil && s.haveLocal && d.ID == s.client.NetworkID() {
				s.applyLocalDelta(d)
				return
			}
			s.queue.Apply(d.ID, d)
		},
		OnSpawn:    s.onSpawn,
		OnDespawn:  s.onDespawn,
		OnTeleport: s.onTeleport,
	}
}

// AttachClient binds the connected client used for snapshots and outbound
// messages.
func (s *Simulation) AttachClient(c *network.Client) { s.client = c }

// World exposes the entity world to renderers.
func (s *Simulation) World() donburi.World { return s.world }

// Controller is nil until the local avatar has spawned.
func (s *Simulation) Controller() *movement.Controller { return s.ctrl }

// Update advances the simulation by dt seconds of wall time. Physics runs in
// fixed sub-steps; interpolation and outbound emission run at frame rate.
func (s *Simulation) Update(dt float64) {
	s.inbox.Drain()

	if s.client != nil {
		if snap := s.client.LatestSnapshot(); snap != nil {
			s.applySnapshot(*snap)
		}
	}

	// Platform actors must track their synced poses before the ground probe
	// runs, or the local avatar predicts against stale footing.
	s.syncPlatformActors()

	s.accumulator += dt
	for s.accumulator >= physicsDt {
		s.stepPhysics(physicsDt)
		s.accumulator -= physicsDt
	}

	s.interpolateRemotes(dt)
	s.sendOutbound()
}

func (s *Simulation) stepPhysics(dt float64) {
	if s.ctrl == nil {
		return
	}
	if s.effects != nil {
		s.effects.Tick()
	}
	s.ctrl.Tick(dt)
	if s.reconciler != nil {
		s.reconciler.Tick(dt)
	}
	if backend, ok := s.lifecycle.Backend(); ok {
		backend.Step(dt)
	}
	s.syncLocalComponents()
}

// syncLocalComponents mirrors the controller's state into the local entity's
// synced components so renderers read one source.
func (s *Simulation) syncLocalComponents() {
	if !s.haveLocal || !s.world.Valid(s.localEntity) {
		return
	}
	entry := s.world.Entry(s.localEntity)
	tf := netcomponents.NetTransform.Get(entry)
	tf.SetPosition(s.ctrl.Position())
	tf.SetOrientation(s.ctrl.Orientation())

	vel := netcomponents.NetVelocity.Get(entry)
	vel.SetVec(s.ctrl.Velocity())

	st := netcomponents.NetAvatarState.Get(entry)
	st.StateID = s.moveState.State
	st.Running = s.moveState.Running
	st.Flying = s.moveState.Flying
	st.Immobilized = s.moveState.Immobilized
	st.Emote = s.emote
	st.IsLocal = true
}

// ClickMove starts click-to-move toward a world point, predicting locally
// and informing the server.
func (s *Simulation) ClickMove(target mgl64.Vec3, run bool) {
	if s.ctrl == nil {
		return
	}
	s.ctrl.SetClickTarget(target, run)
	s.seq++
	s.send(messages.MoveCommand{
		Sequence:  s.seq,
		X:         target.X(),
		Y:         target.Y(),
		Z:         target.Z(),
		Run:       run,
		Timestamp: time.Now().UnixMilli(),
	})
}

// Stop cancels movement locally and on the server.
func (s *Simulation) Stop() {
	if s.ctrl == nil {
		return
	}
	s.ctrl.ClearClickTarget()
	s.send(messages.StopCommand{})
}

// Jump queues a jump locally and on the server.
func (s *Simulation) Jump() {
	if s.ctrl == nil {
		return
	}
	s.ctrl.RequestJump()
	s.send(messages.JumpCommand{})
}

// SetFly toggles flight locally and on the server.
func (s *Simulation) SetFly(enabled bool) {
	if s.ctrl == nil {
		return
	}
	s.ctrl.SetFlying(enabled)
	s.send(messages.SetFlyCommand{Enabled: enabled})
}

// SetEmote changes the played emote; the diff sender picks it up.
func (s *Simulation) SetEmote(emote string) { s.emote = emote }

func (s *Simulation) send(msg any) {
	if s.client == nil || s.client.State() != network.StateJoinedWorld {
		return
	}
	if err := s.client.SendMessage(msg); err != nil {
		s.log.Warn().Err(err).Msg("send failed")
	}
}

// sendOutbound emits a delta for the local avatar when any tracked field
// moved beyond its epsilon.
func (s *Simulation) sendOutbound() {
	if s.ctrl == nil || s.client == nil || s.client.State() != network.StateJoinedWorld {
		return
	}
	delta, ok := s.outbound.Diff(s.client.NetworkID(), s.ctrl.Position(), s.ctrl.Orientation(), s.emote)
	if !ok {
		return
	}
	s.send(delta)
}

// interpolateRemotes advances remote avatars between their snapshot poses,
// extrapolating briefly along the last known velocity when a snapshot is
// late.
func (s *Simulation) interpolateRemotes(dt float64) {
	tickRate := netconfig.DefaultTickRate
	if s.client != nil && s.client.TickRate() > 0 {
		tickRate = s.client.TickRate()
	}

	components.NetInterp.Each(s.world, func(entry *donburi.Entry) {
		interp := components.NetInterp.Get(entry)
		if !interp.Initialized {
			return
		}
		interp.T += dt * float64(tickRate)

		tf := netcomponents.NetTransform.Get(entry)
		if interp.T >= 1 {
			over := (interp.T - 1) / float64(tickRate)
			tf.SetPosition(interp.TargetPos.Add(interp.Vel.Mul(over)))
			tf.SetOrientation(interp.TargetRot)
			return
		}
		tf.SetPosition(interp.PrevPos.Add(interp.TargetPos.Sub(interp.PrevPos).Mul(interp.T)))
		tf.SetOrientation(mgl64.QuatSlerp(interp.PrevRot, interp.TargetRot, interp.T))
	})
}

func (s *Simulation) onSpawn(evt messages.SpawnEvent) {
	// The local avatar materializes from its first snapshot, never from a
	// spawn event.
	if s.client != nil && evt.NetworkID == s.client.NetworkID() {
		return
	}

	pos := mgl64.Vec3{evt.X, evt.Y, evt.Z}

	// A spawn below the terrain would immediately fall through the world and
	// desynchronize every observer.
	h := terrain.MustHeightAt(s.ground, pos.X(), pos.Z())
	if pos.Y() < h {
		invariant.Violatef("spawn for entity %d at %.2f is below terrain height %.2f", evt.NetworkID, pos.Y(), h)
	}

	if s.store.Exists(evt.NetworkID) {
		return
	}
	s.createRemote(evt.NetworkID, netcomponents.NewNetTransform(pos), netcomponents.NetVelocityData{}, netcomponents.NetAvatarStateData{StateID: netconfig.StateIdle})
	s.queue.OnEntityCreated(evt.NetworkID)
}

func (s *Simulation) onDespawn(evt messages.DespawnEvent) {
	entity := esync.FindByNetworkId(s.world, evt.NetworkID)
	if s.world.Valid(entity) {
		if s.haveLocal && entity == s.localEntity {
			s.dropLocal()
		}
		s.world.Remove(entity)
	}
}

// onTeleport hard-moves an avatar. Always a snap, never a blend.
func (s *Simulation) onTeleport(evt messages.TeleportEvent) {
	pos := mgl64.Vec3{evt.X, evt.Y, evt.Z}

	if s.client != nil && evt.NetworkID == s.client.NetworkID() && s.ctrl != nil {
		s.ctrl.ClearClickTarget()
		s.ctrl.SetPosition(pos)
		if s.reconciler != nil {
			s.reconciler.SetSample(pos, mgl64.Vec3{}, time.Now())
		}
		return
	}

	entity := esync.FindByNetworkId(s.world, evt.NetworkID)
	if !s.world.Valid(entity) {
		return
	}
	entry := s.world.Entry(entity)
	netcomponents.NetTransform.Get(entry).SetPosition(pos)
	if entry.HasComponent(components.NetInterp) {
		interp := components.NetInterp.Get(entry)
		interp.PrevPos = pos
		interp.TargetPos = pos
		interp.T = 1
	}
}

func (s *Simulation) dropLocal() {
	if s.ctrl != nil {
		s.ctrl.Release()
	}
	s.ctrl = nil
	s.reconciler = nil
	s.moveState = nil
	s.effects = nil
	s.haveLocal = false
	s.outbound.Reset()
}
