package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jakecoffman/cp/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/milk9111/physics2d/collision"
	"github.com/milk9111/physics2d/physics"
)

func TestDefaultMirrorsSimulation(t *testing.T) {
	require.Equal(t, physics.DefaultSettings(), Default().Simulation(nil))
}

func TestLoadEmbeddedDefault(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), s)
}

func TestLoadDiskOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	doc := "physics:\n  gravity: {x: 0.0, y: -3.5}\n  allow_sleep: false\ncollision:\n  max_contacts: 8\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, -3.5, s.Physics.Gravity.Y)
	require.False(t, s.Physics.AllowSleep)
	require.Equal(t, 8, s.Collision.MaxContacts)

	// Untouched keys keep their defaults.
	require.Equal(t, 1.0, s.Physics.Scale)
	require.Equal(t, 64, s.Collision.MaxCollisions)
	require.True(t, s.Physics.AllowDynamicTransforms)
}

func TestLoadMissingPath(t *testing.T) {
	// A missing default.yaml falls back to the embedded copy.
	s, err := Load(filepath.Join(t.TempDir(), "default.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), s)

	// Any other missing name is an error.
	_, err = Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("physics: [not: a: map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unmarshal")
}

func TestApplyGravity(t *testing.T) {
	settings := Default()
	settings.Physics.Gravity = VecSpec{Y: -2}

	pctx, err := physics.NewContext(settings.Simulation(zaptest.NewLogger(t)))
	require.NoError(t, err)
	ctx, err := collision.NewContext(settings.ContextDef(pctx, zaptest.NewLogger(t)))
	require.NoError(t, err)
	world, err := ctx.NewWorld(nil)
	require.NoError(t, err)

	require.Equal(t, cp.Vector{Y: -2}, world.Gravity())

	settings.Physics.Gravity = VecSpec{Y: -5}
	settings.Apply(world)
	require.Equal(t, cp.Vector{Y: -5}, world.Gravity())
}
