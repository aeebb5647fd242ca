// Package config loads sandbox settings and scenes from YAML. Files resolve
// against the working directory first and fall back to the embedded copies,
// so a checked-out tree runs without flags and an edited file wins.
package config

import (
	"fmt"

	"github.com/jakecoffman/cp/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/milk9111/physics2d/collision"
	"github.com/milk9111/physics2d/message"
	"github.com/milk9111/physics2d/physics"
)

// VecSpec is a 2D vector in YAML.
type VecSpec struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Vector converts to the simulation vector type.
func (v VecSpec) Vector() cp.Vector {
	return cp.Vector{X: v.X, Y: v.Y}
}

// Settings mirrors the simulation and collision-layer knobs. Keys absent
// from the file keep their defaults.
type Settings struct {
	Physics   PhysicsSettings   `yaml:"physics"`
	Collision CollisionSettings `yaml:"collision"`
}

type PhysicsSettings struct {
	Gravity                VecSpec `yaml:"gravity"`
	Scale                  float64 `yaml:"scale"`
	StepsPerFrame          int     `yaml:"steps_per_frame"`
	VelocityIterations     uint    `yaml:"velocity_iterations"`
	PositionIterations     int     `yaml:"position_iterations"`
	ContactImpulseLimit    float64 `yaml:"contact_impulse_limit"`
	TriggerEnterLimit      float64 `yaml:"trigger_enter_limit"`
	RayCastLimit           int     `yaml:"ray_cast_limit"`
	TriggerOverlapCapacity int     `yaml:"trigger_overlap_capacity"`
	AllowDynamicTransforms bool    `yaml:"allow_dynamic_transforms"`
	AllowSleep             bool    `yaml:"allow_sleep"`
	MaxWorlds              int     `yaml:"max_worlds"`
}

type CollisionSettings struct {
	MaxCollisions  int `yaml:"max_collisions"`
	MaxContacts    int `yaml:"max_contacts"`
	SocketCapacity int `yaml:"socket_capacity"`
}

// Default returns the settings the sandbox runs with when no file overrides
// them.
func Default() Settings {
	d := physics.DefaultSettings()
	return Settings{
		Physics: PhysicsSettings{
			Gravity:                VecSpec{X: d.Gravity.X, Y: d.Gravity.Y},
			Scale:                  d.Scale,
			StepsPerFrame:          d.StepsPerFrame,
			VelocityIterations:     d.VelocityIterations,
			PositionIterations:     d.PositionIterations,
			ContactImpulseLimit:    d.ContactImpulseLimit,
			TriggerEnterLimit:      d.TriggerEnterLimit,
			RayCastLimit:           d.RayCastLimit,
			TriggerOverlapCapacity: d.TriggerOverlapCapacity,
			AllowDynamicTransforms: d.AllowDynamicTransforms,
			AllowSleep:             d.AllowSleep,
			MaxWorlds:              d.MaxWorlds,
		},
		Collision: CollisionSettings{
			MaxCollisions:  collision.DefaultMaxCollisionCount,
			MaxContacts:    collision.DefaultMaxContactPointCount,
			SocketCapacity: message.DefaultCapacity,
		},
	}
}

// Load reads settings from path, or from the embedded default.yaml when the
// path is empty or missing on disk.
func Load(path string) (Settings, error) {
	if path == "" {
		path = "default.yaml"
	}
	data, err := load(path)
	if err != nil {
		return Settings{}, fmt.Errorf("config: load %s: %w", path, err)
	}
	s := Default()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return s, nil
}

// Simulation converts to the simulation-layer settings.
func (s Settings) Simulation(logger *zap.Logger) physics.Settings {
	p := s.Physics
	return physics.Settings{
		Gravity:                p.Gravity.Vector(),
		Scale:                  p.Scale,
		StepsPerFrame:          p.StepsPerFrame,
		VelocityIterations:     p.VelocityIterations,
		PositionIterations:     p.PositionIterations,
		ContactImpulseLimit:    p.ContactImpulseLimit,
		TriggerEnterLimit:      p.TriggerEnterLimit,
		RayCastLimit:           p.RayCastLimit,
		TriggerOverlapCapacity: p.TriggerOverlapCapacity,
		AllowDynamicTransforms: p.AllowDynamicTransforms,
		AllowSleep:             p.AllowSleep,
		MaxWorlds:              p.MaxWorlds,
		Logger:                 logger,
	}
}

// ContextDef builds the collision-layer context definition on top of a
// simulation context, shared socket included.
func (s Settings) ContextDef(p *physics.Context, logger *zap.Logger) collision.ContextDef {
	return collision.ContextDef{
		Physics:              p,
		Socket:               message.NewSocket(collision.SocketName, s.Collision.SocketCapacity),
		MaxCollisionCount:    s.Collision.MaxCollisions,
		MaxContactPointCount: s.Collision.MaxContacts,
		Logger:               logger,
	}
}

// Apply pushes the live-tunable subset onto a running world. Everything else
// is fixed at construction time.
func (s Settings) Apply(w *collision.World) {
	w.SetGravity(s.Physics.Gravity.Vector())
}
