package messages

import "github.com/leap-fish/necs/esync"

// AvatarDelta is a per-entity state delta carrying only changed fields.
// Outbound local-player updates are diffed field by field against the last
// sent state; inbound remote deltas are applied wholesale. Nil means
// "unchanged".
type AvatarDelta struct {
	ID          esync.NetworkId
	Position    *[3]float64
	Orientation *[4]float64 // w, x, y, z
	Emote       *string
}

// HasChanges reports whether the delta carries at least one field.
func (d AvatarDelta) HasChanges() bool {
	return d.Position != nil || d.Orientation != nil || d.Emote != nil
}

// SpawnEvent is broadcast when an avatar or prop materializes.
type SpawnEvent struct {
	NetworkID  esync.NetworkId
	EntityType string // "player", "prop", "platform"
	X, Y, Z    float64
}

// DespawnEvent is broadcast when an entity is removed.
type DespawnEvent struct {
	NetworkID esync.NetworkId
}

// TeleportEvent is broadcast when the server hard-moves an avatar. Clients
// treat it as a desync recovery: snap, never blend.
type TeleportEvent struct {
	NetworkID esync.NetworkId
	X, Y, Z   float64
}
