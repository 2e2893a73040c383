package network

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everglen/everglen/invariant"
)

func TestDrainRunsHandlersInArrivalOrder(t *testing.T) {
	inbox := NewInbox()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		inbox.Push(func() { order = append(order, i) })
	}

	inbox.Drain()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.Zero(t, inbox.Len())
}

func TestPanickingHandlerDoesNotStopTheBatch(t *testing.T) {
	inbox := NewInbox()
	var ran []string
	inbox.Push(func() { ran = append(ran, "first") })
	inbox.Push(func() { panic(fmt.Errorf("decode failed")) })
	inbox.Push(func() { ran = append(ran, "third") })

	require.NotPanics(t, inbox.Drain)
	assert.Equal(t, []string{"first", "third"}, ran, "errors are isolated per item")
}

func TestInvariantViolationIsStillFatal(t *testing.T) {
	inbox := NewInbox()
	inbox.Push(func() { invariant.Violatef("avatar fell below terrain") })

	defer func() {
		assert.True(t, invariant.IsViolation(recover()))
	}()
	inbox.Drain()
	t.Fatal("a violation must propagate out of the drain")
}

func TestHandlersPushedDuringDrainWaitForNextTick(t *testing.T) {
	inbox := NewInbox()
	var count int
	inbox.Push(func() {
		count++
		inbox.Push(func() { count++ })
	})

	inbox.Drain()
	assert.Equal(t, 1, count, "a handler queued mid-drain belongs to the next batch")

	inbox.Drain()
	assert.Equal(t, 2, count)
}
