// Package network carries the client side of the sync protocol: the
// websocket client, the ordered message inbox, the pending-delta queue, the
// prediction reconciler, and the outbound state diff.
package network

import (
	"context"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"github.com/leap-fish/necs/esync"
	"github.com/leap-fish/necs/router"
	"github.com/leap-fish/necs/transports"
	"github.com/rs/zerolog/log"

	"github.com/everglen/everglen/shared/messages"
)

type ClientState int

const (
	StateDisconnected ClientState = iota
	StateConnecting
	StateConnected
	StateJoinedWorld
	StateError
)

// Handlers are the simulation's entry points for inbound messages. Every
// invocation is queued on the inbox and runs on the simulation goroutine
// during the tick drain, in arrival order.
type Handlers struct {
	OnDelta    func(messages.AvatarDelta)
	OnSpawn    func(messages.SpawnEvent)
	OnDespawn  func(messages.DespawnEvent)
	OnTeleport func(messages.TeleportEvent)
}

// Client manages a WebSocket connection to the world server.
// All shared fields are protected by mu (router callbacks run on necs goroutines).
type Client struct {
	mu sync.RWMutex

	state          ClientState
	lastError      error
	networkID      esync.NetworkId
	reconnectToken string
	serverName     string
	worldName      string
	tickRate       int
	conn           *websocket.Conn

	snapshotCh chan esync.WorldSnapshot // size-1 buffered; latest wins

	inbox    *Inbox
	handlers Handlers
}

func NewClient(inbox *Inbox, handlers Handlers) *Client {
	return &Client{
		state:      StateDisconnected,
		snapshotCh: make(chan esync.WorldSnapshot, 1),
		inbox:      inbox,
		handlers:   handlers,
	}
}

// Connect dials the server in a background goroutine and initiates the join
// handshake.
func (c *Client) Connect(address, version, playerName string) {
	c.mu.Lock()
	c.state = StateConnecting
	c.lastError = nil
	token := c.reconnectToken
	c.mu.Unlock()

	clog := log.With().Str("component", "client").Logger()

	router.OnConnect(func(_ *router.NetworkClient) {
		clog.Info().Str("address", address).Msg("connected to server")
		c.mu.Lock()
		c.state = StateConnected
		c.mu.Unlock()

		if err := c.SendMessage(messages.JoinRequest{
			Version:        version,
			PlayerName:     playerName,
			ReconnectToken: token,
		}); err != nil {
			c.setError(fmt.Errorf("failed to send join request: %w", err))
		}
	})

	router.On(func(_ *router.NetworkClient, msg messages.JoinAccepted) {
		clog.Info().
			Uint32("networkId", uint32(msg.NetworkID)).
			Str("server", msg.ServerName).
			Int("tickRate", msg.TickRate).
			Msg("join accepted")
		c.mu.Lock()
		c.networkID = msg.NetworkID
		c.reconnectToken = msg.ReconnectToken
		c.serverName = msg.ServerName
		c.worldName = msg.WorldName
		c.tickRate = msg.TickRate
		c.state = StateJoinedWorld
		c.mu.Unlock()
	})

	router.On(func(_ *router.NetworkClient, msg messages.JoinRejected) {
		clog.Warn().Str("reason", msg.Reason).Msg("join rejected")
		c.setError(fmt.Errorf("join rejected: %s", msg.Reason))
	})

	router.On(func(_ *router.NetworkClient, snapshot esync.WorldSnapshot) {
		select { // drain stale, push latest
		case <-c.snapshotCh:
		default:
		}
		c.snapshotCh <- snapshot
	})

	router.On(func(_ *router.NetworkClient, msg messages.AvatarDelta) {
		if fn := c.handlers.OnDelta; fn != nil {
			c.inbox.Push(func() { fn(msg) })
		}
	})

	router.On(func(_ *router.NetworkClient, msg messages.SpawnEvent) {
		if fn := c.handlers.OnSpawn; fn != nil {
			c.inbox.Push(func() { fn(msg) })
		}
	})

	router.On(func(_ *router.NetworkClient, msg messages.DespawnEvent) {
		if fn := c.handlers.OnDespawn; fn != nil {
			c.inbox.Push(func() { fn(msg) })
		}
	})

	router.On(func(_ *router.NetworkClient, msg messages.TeleportEvent) {
		if fn := c.handlers.OnTeleport; fn != nil {
			c.inbox.Push(func() { fn(msg) })
		}
	})

	router.OnDisconnect(func(_ *router.NetworkClient, err error) {
		clog.Info().Err(err).Msg("disconnected")
		c.mu.Lock()
		if c.state != StateError {
			c.state = StateDisconnected
		}
		c.conn = nil
		c.mu.Unlock()
	})

	router.OnError(func(_ *router.NetworkClient, err error) {
		clog.Error().Err(err).Msg("transport error")
	})

	go func() {
		transport := transports.NewWsClientTransport("ws://" + address)
		err := transport.Start(func(conn *websocket.Conn) {
			c.mu.Lock()
			c.conn = conn
			c.mu.Unlock()
		})
		if err != nil {
			c.setError(fmt.Errorf("connection failed: %w", err))
		}
	}()
}

func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.state = StateDisconnected
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.CloseNow()
	}

	router.ResetRouter()
}

func (c *Client) State() ClientState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

func (c *Client) NetworkID() esync.NetworkId {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.networkID
}

func (c *Client) WorldName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.worldName
}

func (c *Client) TickRate() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tickRate
}

// LatestSnapshot returns the most recent WorldSnapshot, or nil. Non-blocking.
func (c *Client) LatestSnapshot() *esync.WorldSnapshot {
	select {
	case snap := <-c.snapshotCh:
		return &snap
	default:
		return nil
	}
}

func (c *Client) SendMessage(msg any) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}

	payload, err := router.Serialize(msg)
	if err != nil {
		return fmt.Errorf("serialize: %w", err)
	}

	return conn.Write(context.Background(), websocket.MessageBinary, payload)
}

func (c *Client) setError(err error) {
	c.mu.Lock()
	c.state = StateError
	c.lastError = err
	c.mu.Unlock()
}
