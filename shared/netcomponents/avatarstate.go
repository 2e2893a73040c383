package netcomponents

import (
	"github.com/everglen/everglen/shared/netconfig"
	"github.com/yohamta/donburi"
)

// NetAvatarStateData carries the discrete avatar state: animation, emote and
// movement flags. No interpolation — discrete state changes.
type NetAvatarStateData struct {
	StateID     netconfig.StateID
	Emote       string
	Running     bool
	Flying      bool
	Immobilized bool

	// IsLocal is never sent; the client marks its own avatar after join.
	IsLocal bool
}

var NetAvatarState = donburi.NewComponentType[NetAvatarStateData]()
