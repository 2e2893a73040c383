package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithoutPathKeepsDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
	assert.Equal(t, 60.0, Physics.SlopeLimitDeg)
	assert.Equal(t, 50, Network.PendingDeltaCap)
}

func TestLoadOverridesOnlyNamedValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "everglen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"avatar:\n  runSpeed: 9.0\nserver:\n  port: 9000\n",
	), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9.0, c.Avatar.RunSpeed)
	assert.Equal(t, 9000, c.Server.Port)
	assert.Equal(t, Default().Avatar.WalkSpeed, c.Avatar.WalkSpeed, "unnamed values keep defaults")
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("physics:\n  slopeLimitDeg: 120\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "slope limit")
}
