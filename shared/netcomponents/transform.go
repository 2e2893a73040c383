package netcomponents

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/yohamta/donburi"
)

// NetTransformData is the synced world pose of an avatar: position plus
// orientation as a quaternion.
type NetTransformData struct {
	X, Y, Z        float64
	QW, QX, QY, QZ float64
}

var NetTransform = donburi.NewComponentType[NetTransformData]()

// NewNetTransform builds a transform at pos with an identity orientation.
func NewNetTransform(pos mgl64.Vec3) NetTransformData {
	d := NetTransformData{QW: 1}
	d.SetPosition(pos)
	return d
}

func (d *NetTransformData) Position() mgl64.Vec3 {
	return mgl64.Vec3{d.X, d.Y, d.Z}
}

func (d *NetTransformData) SetPosition(p mgl64.Vec3) {
	d.X, d.Y, d.Z = p.X(), p.Y(), p.Z()
}

func (d *NetTransformData) Orientation() mgl64.Quat {
	return mgl64.Quat{W: d.QW, V: mgl64.Vec3{d.QX, d.QY, d.QZ}}
}

func (d *NetTransformData) SetOrientation(q mgl64.Quat) {
	d.QW = q.W
	d.QX, d.QY, d.QZ = q.V.X(), q.V.Y(), q.V.Z()
}

// LerpNetTransform interpolates position linearly and orientation by slerp.
func LerpNetTransform(from, to NetTransformData, t float64) *NetTransformData {
	out := &NetTransformData{
		X: from.X + (to.X-from.X)*t,
		Y: from.Y + (to.Y-from.Y)*t,
		Z: from.Z + (to.Z-from.Z)*t,
	}
	q := mgl64.QuatSlerp(from.Orientation(), to.Orientation(), t)
	out.SetOrientation(q)
	return out
}
