package netcomponents

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/yohamta/donburi"
)

// NetVelocityData is the synced linear velocity of an avatar.
type NetVelocityData struct {
	VX, VY, VZ float64
}

var NetVelocity = donburi.NewComponentType[NetVelocityData]()

func (d *NetVelocityData) Vec() mgl64.Vec3 {
	return mgl64.Vec3{d.VX, d.VY, d.VZ}
}

func (d *NetVelocityData) SetVec(v mgl64.Vec3) {
	d.VX, d.VY, d.VZ = v.X(), v.Y(), v.Z()
}

// LerpNetVelocity interpolates between two velocities.
func LerpNetVelocity(from, to NetVelocityData, t float64) *NetVelocityData {
	return &NetVelocityData{
		VX: from.VX + (to.VX-from.VX)*t,
		VY: from.VY + (to.VY-from.VY)*t,
		VZ: from.VZ + (to.VZ-from.VZ)*t,
	}
}
