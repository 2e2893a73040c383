package network

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everglen/everglen/config"
)

func TestFirstDiffCarriesEveryField(t *testing.T) {
	config.Apply(config.Default())
	var o OutboundDiff

	delta, ok := o.Diff(1, mgl64.Vec3{1, 2, 3}, mgl64.QuatIdent(), "wave")
	require.True(t, ok)
	assert.NotNil(t, delta.Position)
	assert.NotNil(t, delta.Orientation)
	require.NotNil(t, delta.Emote)
	assert.Equal(t, "wave", *delta.Emote)
}

func TestUnchangedStateProducesNoMessage(t *testing.T) {
	config.Apply(config.Default())
	var o OutboundDiff

	_, _ = o.Diff(1, mgl64.Vec3{1, 2, 3}, mgl64.QuatIdent(), "")
	_, ok := o.Diff(1, mgl64.Vec3{1, 2, 3}, mgl64.QuatIdent(), "")
	assert.False(t, ok)

	// Sub-epsilon jitter is not worth a message either.
	_, ok = o.Diff(1, mgl64.Vec3{1.0000001, 2, 3}, mgl64.QuatIdent(), "")
	assert.False(t, ok)
}

func TestOnlyChangedFieldsAreSent(t *testing.T) {
	config.Apply(config.Default())
	var o OutboundDiff

	_, _ = o.Diff(1, mgl64.Vec3{1, 2, 3}, mgl64.QuatIdent(), "")

	delta, ok := o.Diff(1, mgl64.Vec3{4, 2, 3}, mgl64.QuatIdent(), "")
	require.True(t, ok)
	assert.NotNil(t, delta.Position)
	assert.Nil(t, delta.Orientation)
	assert.Nil(t, delta.Emote)

	delta, ok = o.Diff(1, mgl64.Vec3{4, 2, 3}, mgl64.QuatIdent(), "dance")
	require.True(t, ok)
	assert.Nil(t, delta.Position)
	require.NotNil(t, delta.Emote)
	assert.Equal(t, "dance", *delta.Emote)
}

func TestResetForcesFullResend(t *testing.T) {
	config.Apply(config.Default())
	var o OutboundDiff

	_, _ = o.Diff(1, mgl64.Vec3{1, 2, 3}, mgl64.QuatIdent(), "")
	o.Reset()

	delta, ok := o.Diff(1, mgl64.Vec3{1, 2, 3}, mgl64.QuatIdent(), "")
	require.True(t, ok)
	assert.NotNil(t, delta.Position)
	assert.NotNil(t, delta.Orientation)
	assert.NotNil(t, delta.Emote)
}
