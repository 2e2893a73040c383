package components

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/yohamta/donburi"
)

// NetInterpData stores interpolation state for smooth rendering of remote
// networked entities between server snapshots.
type NetInterpData struct {
	PrevPos   mgl64.Vec3
	TargetPos mgl64.Vec3
	PrevRot   mgl64.Quat
	TargetRot mgl64.Quat

	T           float64
	Initialized bool
	Vel         mgl64.Vec3 // velocity at snapshot, for extrapolation
}

var NetInterp = donburi.NewComponentType[NetInterpData]()
