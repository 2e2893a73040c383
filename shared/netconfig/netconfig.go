// Package netconfig defines lightweight types shared between client and
// server for network serialization. It must have zero dependencies on the
// physics backend or any client-side package so the dedicated server binary
// stays headless.
package netconfig

// StateID identifies an avatar animation/logic state.
type StateID int

const (
	StateNone StateID = -1

	StateIdle StateID = iota
	StateWalk
	StateRun
	StateJump
	StateFall
	StateFly
	StateSlip
	StateSit
	StateEmote
)

// StateToName maps StateID to the animation clip name used by renderers.
var StateToName = map[StateID]string{
	StateIdle:  "idle",
	StateWalk:  "walk",
	StateRun:   "run",
	StateJump:  "jump",
	StateFall:  "fall",
	StateFly:   "fly",
	StateSlip:  "slip",
	StateSit:   "sit",
	StateEmote: "emote",
}

func (s StateID) String() string {
	if name, ok := StateToName[s]; ok {
		return name
	}
	return "unknown"
}

const (
	// ProtocolVersion gates joins; a client built against a different wire
	// protocol is rejected during the handshake.
	ProtocolVersion = "0.3.0"

	// DefaultTickRate is the server broadcast rate in ticks per second.
	DefaultTickRate = 20

	// PhysicsHz is the fixed simulation step rate. Server ticks sub-step to
	// this rate so tuning constants behave identically on both sides.
	PhysicsHz = 60
)
