package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/leap-fish/necs/esync"
	"github.com/leap-fish/necs/esync/srvsync"
	"github.com/leap-fish/necs/router"
	"github.com/leap-fish/necs/transports"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/yohamta/donburi"

	"github.com/everglen/everglen/components"
	"github.com/everglen/everglen/config"
	"github.com/everglen/everglen/invariant"
	"github.com/everglen/everglen/movement"
	"github.com/everglen/everglen/network"
	"github.com/everglen/everglen/physics"
	"github.com/everglen/everglen/physics/native"
	"github.com/everglen/everglen/shared/messages"
	"github.com/everglen/everglen/shared/netcomponents"
	"github.com/everglen/everglen/shared/netconfig"
	"github.com/everglen/everglen/terrain"
)

// Server owns the authoritative world: the physics backend, the level, one
// avatar per connected client, and the tick loop that steps them and
// broadcasts snapshots.
//
// All world mutation happens on the loop goroutine. Router callbacks only
// push closures onto the inbox, which the loop drains at the start of each
// tick in arrival order.
type Server struct {
	world     donburi.World
	loop      *GameLoop
	transport *transports.WsServerTransport
	inbox     *network.Inbox

	lifecycle *physics.Lifecycle
	layers    *physics.LayerRegistry
	level     *Level

	avatars map[*router.NetworkClient]*Avatar
	// resume maps reconnect tokens to the feet position a disconnected
	// avatar left off at.
	resume map[string]mgl64.Vec3
	mu     sync.RWMutex

	// send delivers one message to one client. Swappable in tests.
	send func(client *router.NetworkClient, msg any)

	log zerolog.Logger
}

// NewServer builds a server for the configured world. The physics backend is
// not loaded yet; Start loads it before the first tick.
func NewServer() (*Server, error) {
	level, err := LoadLevel(config.Server.World)
	if err != nil {
		return nil, err
	}

	world := donburi.NewWorld()
	layers := physics.DefaultLayers(false)

	s := &Server{
		world:   world,
		inbox:   network.NewInbox(),
		layers:  layers,
		level:   level,
		avatars: make(map[*router.NetworkClient]*Avatar),
		resume:  make(map[string]mgl64.Vec3),
		log:     log.With().Str("component", "server").Logger(),
	}
	s.send = s.sendMessage
	s.lifecycle = physics.NewLifecycle(native.NewLoader(
		native.WithTerrain(level.Terrain, layers.FilterFor(physics.LayerEnvironment)),
		native.WithGravity(mgl64.Vec3{0, -config.Physics.Gravity, 0}),
	))
	s.loop = NewGameLoop(s, config.Server.TickRate)

	srvsync.UseEsync(world)
	s.setupRouterCallbacks()

	return s, nil
}

// Start loads the physics backend, populates the level, and runs the loop
// and the websocket transport. Blocks serving the transport.
func (s *Server) Start(ctx context.Context) error {
	backend, err := s.lifecycle.Load(ctx)
	if err != nil {
		return fmt.Errorf("physics load: %w", err)
	}
	if err := s.level.Populate(s.world, backend, s.layers); err != nil {
		return fmt.Errorf("populate world: %w", err)
	}

	go s.loop.Run()

	s.log.Info().
		Int("port", config.Server.Port).
		Str("world", s.level.Name).
		Int("tickRate", config.Server.TickRate).
		Msg("server starting")

	s.transport = transports.NewWsServerTransport(uint(config.Server.Port), "", nil)
	return s.transport.Start()
}

// Stop halts the tick loop.
func (s *Server) Stop() {
	s.loop.Stop()
}

func (s *Server) setupRouterCallbacks() {
	router.OnConnect(func(client *router.NetworkClient) {
		s.log.Info().Str("client", client.Id()).Msg("client connected")
	})

	router.OnDisconnect(func(client *router.NetworkClient, err error) {
		s.inbox.Push(func() { s.onDisconnect(client, err) })
	})

	router.On(func(client *router.NetworkClient, req messages.JoinRequest) {
		s.inbox.Push(func() { s.onJoinRequest(client, req) })
	})

	router.On(func(client *router.NetworkClient, cmd messages.MoveCommand) {
		s.inbox.Push(func() { s.onMoveCommand(client, cmd) })
	})

	router.On(func(client *router.NetworkClient, cmd messages.StopCommand) {
		s.inbox.Push(func() { s.onStopCommand(client, cmd) })
	})

	router.On(func(client *router.NetworkClient, cmd messages.JumpCommand) {
		s.inbox.Push(func() { s.onJumpCommand(client, cmd) })
	})

	router.On(func(client *router.NetworkClient, cmd messages.SetFlyCommand) {
		s.inbox.Push(func() { s.onSetFlyCommand(client, cmd) })
	})

	router.On(func(client *router.NetworkClient, delta messages.AvatarDelta) {
		s.inbox.Push(func() { s.onAvatarDelta(client, delta) })
	})

	router.OnError(func(client *router.NetworkClient, err error) {
		s.log.Warn().Err(err).Msg("client error")
	})
}

func (s *Server) onJoinRequest(client *router.NetworkClient, req messages.JoinRequest) {
	if req.Version != netconfig.ProtocolVersion {
		s.sendTo(client, messages.JoinRejected{
			Reason: fmt.Sprintf("protocol version mismatch: server %s, client %s", netconfig.ProtocolVersion, req.Version),
		})
		return
	}

	s.mu.RLock()
	_, joined := s.avatars[client]
	s.mu.RUnlock()
	if joined {
		s.sendTo(client, messages.JoinRejected{Reason: "already joined"})
		return
	}

	spawn := s.spawnFor(req.ReconnectToken)
	avatar := s.createAvatar(client, req.PlayerName, spawn)

	s.mu.Lock()
	s.avatars[client] = avatar
	s.mu.Unlock()

	s.sendTo(client, messages.JoinAccepted{
		NetworkID:      avatar.id,
		ReconnectToken: avatar.token,
		ServerName:     config.Server.Name,
		WorldName:      s.level.Name,
		TickRate:       config.Server.TickRate,
	})
	s.broadcastExcept(client, messages.SpawnEvent{
		NetworkID:  avatar.id,
		EntityType: "player",
		X:          spawn.X(),
		Y:          spawn.Y(),
		Z:          spawn.Z(),
	})

	s.log.Info().
		Str("player", avatar.name).
		Uint32("networkId", uint32(avatar.id)).
		Msg("player joined")
}

// spawnFor resolves where a joining player materializes: the saved position
// for a valid reconnect token, otherwise the next authored spawn point.
func (s *Server) spawnFor(token string) mgl64.Vec3 {
	if token != "" {
		s.mu.Lock()
		saved, ok := s.resume[token]
		if ok {
			delete(s.resume, token)
		}
		s.mu.Unlock()
		if ok {
			if h := s.level.Terrain.HeightAt(saved.X(), saved.Z()); saved.Y() >= h {
				return saved
			}
		}
	}
	return s.level.NextSpawn()
}

// createAvatar materializes a player entity at spawn and registers it for
// network sync. An authored spawn below the terrain means the world data and
// the simulation disagree about the ground; that is fatal, not recoverable.
func (s *Server) createAvatar(client *router.NetworkClient, name string, spawn mgl64.Vec3) *Avatar {
	h := terrain.MustHeightAt(s.level.Terrain, spawn.X(), spawn.Z())
	if spawn.Y() < h {
		invariant.Violatef("spawn point at %.2f is below terrain height %.2f", spawn.Y(), h)
	}

	entity := s.world.Create(
		netcomponents.NetTransform,
		netcomponents.NetVelocity,
		netcomponents.NetAvatarState,
	)
	entry := s.world.Entry(entity)
	netcomponents.NetTransform.SetValue(entry, netcomponents.NewNetTransform(spawn))
	netcomponents.NetAvatarState.SetValue(entry, netcomponents.NetAvatarStateData{StateID: netconfig.StateIdle})

	if err := srvsync.NetworkSync(s.world, &entity,
		srvsync.WithInterp(netcomponents.NetTransform, netcomponents.NetVelocity),
		netcomponents.NetAvatarState,
	); err != nil {
		invariant.Violatef("network sync setup for player entity: %v", err)
	}

	id := esync.GetNetworkId(s.world.Entry(entity))
	invariant.Assert(id != nil, "synced player entity has no network id")

	state := &components.MovementData{}
	effects := &components.StatusEffectsData{}
	return &Avatar{
		client:  client,
		entity:  entity,
		id:      *id,
		name:    name,
		token:   newToken(),
		state:   state,
		effects: effects,
		ctrl:    movement.NewController(s.lifecycle, s.layers, state, effects, spawn),
	}
}

func (s *Server) onDisconnect(client *router.NetworkClient, err error) {
	s.mu.Lock()
	avatar, ok := s.avatars[client]
	if ok {
		delete(s.avatars, client)
	}
	s.mu.Unlock()

	if !ok {
		s.log.Info().Str("client", client.Id()).Err(err).Msg("client disconnected before joining")
		return
	}

	s.mu.Lock()
	s.resume[avatar.token] = avatar.ctrl.Position()
	s.mu.Unlock()

	avatar.ctrl.Release()
	if s.world.Valid(avatar.entity) {
		s.world.Remove(avatar.entity)
	}
	s.broadcast(messages.DespawnEvent{NetworkID: avatar.id})

	s.log.Info().
		Str("player", avatar.name).
		Err(err).
		Msg("player disconnected")
}

func (s *Server) onMoveCommand(client *router.NetworkClient, cmd messages.MoveCommand) {
	avatar, ok := s.avatarFor(client)
	if !ok || !avatar.applyCommandSeq(cmd.Sequence) {
		return
	}
	avatar.ctrl.SetClickTarget(mgl64.Vec3{cmd.X, cmd.Y, cmd.Z}, cmd.Run)
}

func (s *Server) onStopCommand(client *router.NetworkClient, cmd messages.StopCommand) {
	avatar, ok := s.avatarFor(client)
	if !ok || !avatar.applyCommandSeq(cmd.Sequence) {
		return
	}
	avatar.ctrl.ClearClickTarget()
}

func (s *Server) onJumpCommand(client *router.NetworkClient, cmd messages.JumpCommand) {
	avatar, ok := s.avatarFor(client)
	if !ok || !avatar.applyCommandSeq(cmd.Sequence) {
		return
	}
	avatar.ctrl.RequestJump()
}

func (s *Server) onSetFlyCommand(client *router.NetworkClient, cmd messages.SetFlyCommand) {
	avatar, ok := s.avatarFor(client)
	if !ok {
		return
	}
	avatar.ctrl.SetFlying(cmd.Enabled)
}

// onAvatarDelta accepts the client-owned fields of a delta. Position stays
// server-authoritative and is dropped; orientation and emote are applied and
// relayed to everyone else.
func (s *Server) onAvatarDelta(client *router.NetworkClient, delta messages.AvatarDelta) {
	avatar, ok := s.avatarFor(client)
	if !ok {
		return
	}

	relay := messages.AvatarDelta{ID: avatar.id}
	if delta.Orientation != nil {
		q := *delta.Orientation
		avatar.orientation = mgl64.Quat{W: q[0], V: mgl64.Vec3{q[1], q[2], q[3]}}
		avatar.haveFacing = true
		relay.Orientation = delta.Orientation
	}
	if delta.Emote != nil {
		avatar.emote = *delta.Emote
		relay.Emote = delta.Emote
	}
	if !relay.HasChanges() {
		return
	}
	s.broadcastExcept(client, relay)
}

func (s *Server) avatarFor(client *router.NetworkClient) (*Avatar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	avatar, ok := s.avatars[client]
	return avatar, ok
}

func (s *Server) sendTo(client *router.NetworkClient, msg any) {
	s.send(client, msg)
}

func (s *Server) sendMessage(client *router.NetworkClient, msg any) {
	if err := client.SendMessage(msg); err != nil {
		s.log.Warn().Err(err).Str("client", client.Id()).Msg("send failed")
	}
}

func (s *Server) broadcast(msg any) {
	s.broadcastExcept(nil, msg)
}

func (s *Server) broadcastExcept(skip *router.NetworkClient, msg any) {
	s.mu.RLock()
	clients := make([]*router.NetworkClient, 0, len(s.avatars))
	for client := range s.avatars {
		if client != skip {
			clients = append(clients, client)
		}
	}
	s.mu.RUnlock()

	for _, client := range clients {
		s.sendTo(client, msg)
	}
}

// World returns the ECS world.
func (s *Server) World() donburi.World {
	return s.world
}

// PlayerCount returns the number of joined players.
func (s *Server) PlayerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.avatars)
}

func newToken() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		invariant.Violatef("reconnect token entropy: %v", err)
	}
	return hex.EncodeToString(b[:])
}
