package physics

import (
	"fmt"
	"math/bits"
	"testing"

	"github.com/everglen/everglen/invariant"
	"github.com/stretchr/testify/assert"
)

func TestEveryLayerGetsAUniqueSingleBit(t *testing.T) {
	r := DefaultLayers(true)

	seen := map[uint32]string{}
	for _, name := range r.Names() {
		bit := r.GroupBit(name)
		assert.Equal(t, 1, bits.OnesCount32(bit), "%s must own exactly one bit", name)
		prev, dup := seen[bit]
		assert.False(t, dup, "bit %#x assigned to both %s and %s", bit, prev, name)
		seen[bit] = name
	}
}

func TestMaskForCombinesGroups(t *testing.T) {
	r := DefaultLayers(false)

	mask := r.MaskFor(LayerEnvironment, LayerProp)
	assert.Equal(t, r.GroupBit(LayerEnvironment)|r.GroupBit(LayerProp), mask)
	assert.Equal(t, r.GroupBit(LayerPlayer), r.MaskFor(LayerPlayer))
}

func TestDeclarationIsDirectional(t *testing.T) {
	r := NewLayerRegistry()
	r.Declare("a", "b")

	assert.NotZero(t, r.CollidesWith("a")&r.GroupBit("b"))
	assert.Zero(t, r.CollidesWith("b"), "b must not collide back without an explicit declaration")

	r.Declare("b", "a")
	assert.NotZero(t, r.CollidesWith("b")&r.GroupBit("a"))
}

func TestPlayerLayerAdjacency(t *testing.T) {
	r := DefaultLayers(false)
	playerMask := r.CollidesWith(LayerPlayer)
	assert.NotZero(t, playerMask&r.GroupBit(LayerEnvironment))
	assert.NotZero(t, playerMask&r.GroupBit(LayerProp))
	assert.Zero(t, playerMask&r.GroupBit(LayerPlayer))

	rp := DefaultLayers(true)
	assert.NotZero(t, rp.CollidesWith(LayerPlayer)&rp.GroupBit(LayerPlayer))
}

func TestLayerBudgetIsFatal(t *testing.T) {
	r := NewLayerRegistry()
	for i := 0; i < MaxLayers; i++ {
		r.Declare(fmt.Sprintf("layer-%d", i))
	}
	assert.PanicsWithError(t, "invariant violation: collision layer budget exceeded declaring \"layer-32\"", func() {
		r.Declare("layer-32")
	})
}

func TestDeclareAfterFreezeIsFatal(t *testing.T) {
	r := DefaultLayers(false)
	assert.Panics(t, func() { r.Declare("late") })
	assert.True(t, func() (ok bool) {
		defer func() { ok = invariant.IsViolation(recover()) }()
		r.Declare("late")
		return false
	}())
}
