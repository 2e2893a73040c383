package physics

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnavailable is returned by operations that need a loaded
	// backend while the lifecycle is still NOT_LOADED or LOADING. Callers
	// no-op or retry; it is never fatal.
	ErrBackendUnavailable = errors.New("physics backend not loaded yet")

	// ErrLoadFailed wraps the stored initialization error. It is surfaced to
	// all current and future waiters until an explicit Load retries.
	ErrLoadFailed = errors.New("physics backend failed to load")
)

// WaitTimeoutError is returned when a WaitFor bound by a timeout gives up.
// The underlying load keeps running; only the waiting caller is abandoned.
type WaitTimeoutError struct {
	Dependent string
	Timeout   string
}

func (e *WaitTimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s waiting for physics backend", e.Dependent, e.Timeout)
}

// IsWaitTimeout reports whether err is a backend wait timeout, letting
// callers tell "still loading" apart from "failed".
func IsWaitTimeout(err error) bool {
	var t *WaitTimeoutError
	return errors.As(err, &t)
}
