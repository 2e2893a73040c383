package components

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/yohamta/donburi"

	"github.com/everglen/everglen/shared/netconfig"
)

// MovementData is the per-avatar state the movement controller reads and
// writes each tick.
type MovementData struct {
	Velocity mgl64.Vec3

	// Ground probe results from the last tick
	Grounded     bool
	GroundNormal mgl64.Vec3
	GroundActor  any // physics.Actor under the feet, nil when airborne or on terrain

	Slipping bool
	Flying   bool
	Running  bool

	// Input for the current tick
	MoveDir     mgl64.Vec3 // horizontal, normalized or zero
	JumpQueued  bool
	ClickTarget *mgl64.Vec3 // click-to-move destination, nil when free-moving

	// Platform riding
	RidingPlatform any        // physics.Actor of the platform, nil otherwise
	PlatformPos    mgl64.Vec3 // platform pose at the previous tick
	PlatformYaw    float64

	Immobilized bool
	State       netconfig.StateID
}

var Movement = donburi.NewComponentType[MovementData]()
