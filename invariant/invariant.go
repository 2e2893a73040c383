// Package invariant implements the fatal error class of the simulation:
// violations that would desynchronize every observer of an avatar if the
// session continued. They panic with a typed value so the per-item recovery
// in the network inbox can tell them apart from ordinary handler errors and
// re-raise them.
package invariant

import "fmt"

// Violation is the payload carried by an invariant panic.
type Violation struct {
	msg string
}

func (v *Violation) Error() string {
	return "invariant violation: " + v.msg
}

// Violatef raises a fatal invariant violation.
func Violatef(format string, args ...any) {
	panic(&Violation{msg: fmt.Sprintf(format, args...)})
}

// Assert raises a violation when cond is false.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		Violatef(format, args...)
	}
}

// IsViolation reports whether a recovered panic value is a Violation.
func IsViolation(r any) bool {
	_, ok := r.(*Violation)
	return ok
}
