package messages

// MoveCommand is sent from client to server when the player picks a
// click-to-move destination. The server is the sole arbiter of the resulting
// path; the client predicts locally with the same controller.
type MoveCommand struct {
	Sequence  uint32
	X, Y, Z   float64
	Run       bool
	Timestamp int64 // client wall clock, Unix ms
}

// StopCommand cancels any in-flight movement target.
type StopCommand struct {
	Sequence uint32
}

// JumpCommand requests a jump. The server applies the same grounded/status
// gates the client predicted with.
type JumpCommand struct {
	Sequence uint32
}

// SetFlyCommand toggles flying, where the build allows it.
type SetFlyCommand struct {
	Enabled bool
}
