package core

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/leap-fish/necs/esync"
	"github.com/leap-fish/necs/router"
	"github.com/yohamta/donburi"

	"github.com/everglen/everglen/components"
	"github.com/everglen/everglen/movement"
	"github.com/everglen/everglen/shared/netcomponents"
)

// Avatar is the server-side state for one connected player. The movement
// controller here is authoritative; clients predict against it and reconcile
// from the synced components it writes.
type Avatar struct {
	client *router.NetworkClient
	entity donburi.Entity
	id     esync.NetworkId

	name  string
	token string

	state   *components.MovementData
	effects *components.StatusEffectsData
	ctrl    *movement.Controller

	// lastSeq is the newest movement command sequence applied. Older
	// sequences arriving late are ignored.
	lastSeq uint32

	emote       string
	orientation mgl64.Quat
	haveFacing  bool
}

// applyCommandSeq reports whether seq supersedes the last applied command
// and records it when it does.
func (a *Avatar) applyCommandSeq(seq uint32) bool {
	if seq != 0 && seq <= a.lastSeq {
		return false
	}
	if seq != 0 {
		a.lastSeq = seq
	}
	return true
}

// writeComponents mirrors the controller's authoritative state into the
// entity's synced components after a tick.
func (a *Avatar) writeComponents(world donburi.World) {
	if !world.Valid(a.entity) {
		return
	}
	entry := world.Entry(a.entity)

	tf := netcomponents.NetTransform.Get(entry)
	tf.SetPosition(a.ctrl.Position())
	if a.haveFacing {
		tf.SetOrientation(a.orientation)
	} else {
		tf.SetOrientation(a.ctrl.Orientation())
	}

	vel := netcomponents.NetVelocity.Get(entry)
	vel.SetVec(a.ctrl.Velocity())

	st := netcomponents.NetAvatarState.Get(entry)
	st.StateID = a.state.State
	st.Running = a.state.Running
	st.Flying = a.state.Flying
	st.Immobilized = a.state.Immobilized
	st.Emote = a.emote
	st.IsLocal = false
}
