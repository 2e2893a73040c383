package physics

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	released atomic.Bool
}

func (s *stubBackend) CreateMaterial(_, _, _ float64) (Material, error) { return nil, nil }
func (s *stubBackend) CreateShape(Geometry, Material, FilterData) (Shape, error) {
	return nil, nil
}
func (s *stubBackend) CreateRigidDynamic(Pose, Shape, float64, bool) (Actor, error) {
	return nil, nil
}
func (s *stubBackend) CreateRigidStatic(Pose, Shape) (Actor, error) { return nil, nil }
func (s *stubBackend) SweepSphere(_, _ mgl64.Vec3, _, _ float64, _ uint32) (QueryHit, bool) {
	return QueryHit{}, false
}
func (s *stubBackend) Raycast(_, _ mgl64.Vec3, _ float64, _ uint32) (QueryHit, bool) {
	return QueryHit{}, false
}
func (s *stubBackend) Step(float64) {}
func (s *stubBackend) Release()     { s.released.Store(true) }

func TestLoadIsIdempotentUnderConcurrency(t *testing.T) {
	var loads atomic.Int32
	release := make(chan struct{})
	backend := &stubBackend{}

	lc := NewLifecycle(func(ctx context.Context) (Backend, error) {
		loads.Add(1)
		<-release
		return backend, nil
	})

	const callers = 8
	results := make([]Backend, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := lc.Load(context.Background())
			assert.NoError(t, err)
			results[i] = b
		}(i)
	}

	// Let every caller reach the wait before the load settles.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load(), "loader must run exactly once")
	assert.Equal(t, 1, lc.LoadCount())
	for i := 0; i < callers; i++ {
		assert.Same(t, backend, results[i])
	}
	assert.Equal(t, StateLoaded, lc.State())
}

func TestFailureIsStickyUntilExplicitRetry(t *testing.T) {
	boom := errors.New("native module missing")
	attempts := 0
	lc := NewLifecycle(func(ctx context.Context) (Backend, error) {
		attempts++
		if attempts == 1 {
			return nil, boom
		}
		return &stubBackend{}, nil
	})

	_, err := lc.Load(context.Background())
	require.ErrorIs(t, err, ErrLoadFailed)
	assert.Equal(t, StateFailed, lc.State())

	// Waiters keep seeing the stored error; nothing retries on its own.
	_, err = lc.WaitFor(context.Background(), "movement", 0)
	require.ErrorIs(t, err, ErrLoadFailed)
	assert.Equal(t, 1, lc.LoadCount())

	// The next explicit Load re-attempts.
	b, err := lc.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, b)
	assert.Equal(t, 2, lc.LoadCount())
}

func TestWaitForTriggersLoadAsSideEffect(t *testing.T) {
	lc := NewLifecycle(func(ctx context.Context) (Backend, error) {
		return &stubBackend{}, nil
	})

	b, err := lc.WaitFor(context.Background(), "movement", time.Second)
	require.NoError(t, err)
	assert.NotNil(t, b)
	assert.Equal(t, 1, lc.LoadCount())
}

func TestWaitTimeoutDoesNotCancelLoad(t *testing.T) {
	release := make(chan struct{})
	lc := NewLifecycle(func(ctx context.Context) (Backend, error) {
		<-release
		return &stubBackend{}, nil
	})

	_, err := lc.WaitFor(context.Background(), "camera", 10*time.Millisecond)
	require.Error(t, err)
	assert.True(t, IsWaitTimeout(err))
	assert.Equal(t, StateLoading, lc.State(), "the load keeps running after one waiter gives up")

	close(release)
	b, err := lc.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, b)
	assert.Equal(t, 1, lc.LoadCount(), "the abandoned wait must not spawn a second load")
}

func TestResetClearsStateAndReleasesHandle(t *testing.T) {
	backend := &stubBackend{}
	lc := NewLifecycle(func(ctx context.Context) (Backend, error) {
		return backend, nil
	})

	_, err := lc.Load(context.Background())
	require.NoError(t, err)

	lc.Reset()
	assert.Equal(t, StateNotLoaded, lc.State())
	assert.True(t, backend.released.Load())
	_, ok := lc.Backend()
	assert.False(t, ok)
}
