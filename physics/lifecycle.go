package physics

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
)

// State is the lifecycle phase of the native backend.
type State int

const (
	StateNotLoaded State = iota
	StateLoading
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotLoaded:
		return "not_loaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// LoaderFunc initializes the native backend. It runs at most once per load
// attempt, on a background context: an abandoned waiter never cancels the
// load for everyone else.
type LoaderFunc func(ctx context.Context) (Backend, error)

// Lifecycle loads the native physics backend exactly once and lets dependent
// systems wait for it. It is constructed once per process and passed to the
// systems that need it; there is no ambient global.
type Lifecycle struct {
	mu     deadlock.Mutex
	loader LoaderFunc

	state   State
	backend Backend
	loadErr error
	attempt chan struct{} // closed when the in-flight attempt settles
	loads   int

	log zerolog.Logger
}

// NewLifecycle wraps a loader. Nothing is loaded until Load or WaitFor.
func NewLifecycle(loader LoaderFunc) *Lifecycle {
	return &Lifecycle{
		loader: loader,
		log:    log.With().Str("component", "physics").Logger(),
	}
}

// Load initializes the backend, sharing one underlying attempt between
// concurrent callers. A previously failed lifecycle re-enters loading; a
// loaded one returns the stored handle immediately. ctx bounds only this
// caller's wait.
func (l *Lifecycle) Load(ctx context.Context) (Backend, error) {
	l.mu.Lock()
	switch l.state {
	case StateLoaded:
		b := l.backend
		l.mu.Unlock()
		return b, nil
	case StateLoading:
		done := l.attempt
		l.mu.Unlock()
		return l.await(ctx, done)
	default: // not loaded, or failed and explicitly retried
		done := l.begin()
		l.mu.Unlock()
		return l.await(ctx, done)
	}
}

// WaitFor blocks dependent systems until the backend is usable. LOADED
// resolves immediately; FAILED rejects immediately with the stored error;
// NOT_LOADED triggers a load as a side effect. A non-zero timeout races the
// subscription and produces a WaitTimeoutError without canceling the load.
func (l *Lifecycle) WaitFor(ctx context.Context, dependent string, timeout time.Duration) (Backend, error) {
	l.mu.Lock()
	switch l.state {
	case StateLoaded:
		b := l.backend
		l.mu.Unlock()
		return b, nil
	case StateFailed:
		err := l.loadErr
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	case StateNotLoaded:
		l.log.Debug().Str("dependent", dependent).Msg("triggering backend load")
		done := l.begin()
		l.mu.Unlock()
		return l.awaitTimeout(ctx, dependent, timeout, done)
	default:
		done := l.attempt
		l.mu.Unlock()
		return l.awaitTimeout(ctx, dependent, timeout, done)
	}
}

// State returns the current lifecycle phase.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Backend returns the loaded handle, if any.
func (l *Lifecycle) Backend() (Backend, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.backend, l.state == StateLoaded
}

// Ready reports whether the backend is loaded.
func (l *Lifecycle) Ready() bool {
	_, ok := l.Backend()
	return ok
}

// LoadCount reports how many times the loader has actually been invoked.
func (l *Lifecycle) LoadCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads
}

// Reset clears all state and releases the handle. Test-only; pending waiters
// are woken with ErrBackendUnavailable.
func (l *Lifecycle) Reset() {
	l.mu.Lock()
	if l.backend != nil {
		l.backend.Release()
	}
	l.backend = nil
	l.loadErr = nil
	l.state = StateNotLoaded
	l.attempt = nil
	l.mu.Unlock()
}

// begin transitions to LOADING and starts the loader goroutine. Caller must
// hold l.mu.
func (l *Lifecycle) begin() chan struct{} {
	l.state = StateLoading
	l.loadErr = nil
	done := make(chan struct{})
	l.attempt = done
	l.loads++
	go l.run(done)
	return done
}

func (l *Lifecycle) run(done chan struct{}) {
	backend, err := l.loader(context.Background())

	l.mu.Lock()
	if l.attempt != done {
		// Reset raced the load; the result belongs to nobody.
		l.mu.Unlock()
		if backend != nil {
			backend.Release()
		}
		close(done)
		return
	}
	if err != nil {
		l.state = StateFailed
		l.loadErr = err
		l.log.Error().Err(err).Msg("physics backend load failed")
	} else {
		l.state = StateLoaded
		l.backend = backend
		l.log.Info().Int("attempt", l.loads).Msg("physics backend loaded")
	}
	l.mu.Unlock()
	close(done)
}

func (l *Lifecycle) await(ctx context.Context, done chan struct{}) (Backend, error) {
	select {
	case <-done:
		return l.result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Lifecycle) awaitTimeout(ctx context.Context, dependent string, timeout time.Duration, done chan struct{}) (Backend, error) {
	if timeout <= 0 {
		return l.await(ctx, done)
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return l.result()
	case <-timer.C:
		return nil, &WaitTimeoutError{Dependent: dependent, Timeout: timeout.String()}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Lifecycle) result() (Backend, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case StateLoaded:
		return l.backend, nil
	case StateFailed:
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, l.loadErr)
	default:
		return nil, ErrBackendUnavailable
	}
}
