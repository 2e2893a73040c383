package network

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/leap-fish/necs/esync"

	"github.com/everglen/everglen/config"
	"github.com/everglen/everglen/shared/messages"
)

// OutboundDiff tracks the last state sent for the local avatar and builds
// deltas carrying only the fields that changed, to bound bandwidth.
type OutboundDiff struct {
	sentOnce    bool
	position    [3]float64
	orientation [4]float64
	emote       string
}

// Diff compares the current state against the last sent one. The returned
// delta contains only changed fields; ok is false when nothing moved enough
// to be worth a message.
func (o *OutboundDiff) Diff(id esync.NetworkId, pos mgl64.Vec3, ori mgl64.Quat, emote string) (messages.AvatarDelta, bool) {
	delta := messages.AvatarDelta{ID: id}

	p := [3]float64{pos.X(), pos.Y(), pos.Z()}
	q := [4]float64{ori.W, ori.X(), ori.Y(), ori.Z()}

	if !o.sentOnce || exceeds3(p, o.position, config.Network.PositionEpsilon) {
		delta.Position = &p
		o.position = p
	}
	if !o.sentOnce || exceeds4(q, o.orientation, config.Network.OrientationEps) {
		delta.Orientation = &q
		o.orientation = q
	}
	if !o.sentOnce || emote != o.emote {
		e := emote
		delta.Emote = &e
		o.emote = emote
	}
	o.sentOnce = true

	return delta, delta.HasChanges()
}

// Reset forgets the last sent state, forcing the next Diff to carry every
// field. Used after reconnects.
func (o *OutboundDiff) Reset() { o.sentOnce = false }

func exceeds3(a, b [3]float64, eps float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > eps {
			return true
		}
	}
	return false
}

func exceeds4(a, b [4]float64, eps float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > eps {
			return true
		}
	}
	return false
}
