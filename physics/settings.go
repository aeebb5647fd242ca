package physics

import (
	"fmt"

	"github.com/jakecoffman/cp/v2"
	"go.uber.org/zap"
)

const (
	// fixedDelta is the nominal simulation frame time. Step scales it by
	// the caller's speed factor and divides it across sub-steps.
	fixedDelta = 1.0 / 60.0

	// MinScale and MaxScale bound the world-unit to simulation-unit scale.
	MinScale = 0.01
	MaxScale = 1.0

	// sleepTime is how long a body group must stay idle before the kernel
	// puts it to sleep, when sleeping is allowed.
	sleepTime = 0.5
)

// Settings configures a Context. Start from DefaultSettings and override;
// a zero Settings fails scale validation.
type Settings struct {
	// Gravity in world units per second squared.
	Gravity cp.Vector

	// Scale converts world units to simulation units. Keeping simulated
	// sizes around 0.1-10 keeps the kernel numerically happy.
	Scale float64

	// StepsPerFrame splits every frame into this many kernel sub-steps.
	StepsPerFrame int

	// VelocityIterations and PositionIterations control the kernel's
	// impulse solver and the joint position-correction pass.
	VelocityIterations uint
	PositionIterations int

	// ContactImpulseLimit filters contact-point events below this impulse
	// (world units). Zero reports everything.
	ContactImpulseLimit float64

	// TriggerEnterLimit is the penetration depth (world units) a sensor
	// contact needs before it counts as a trigger overlap.
	TriggerEnterLimit float64

	// RayCastLimit caps the pending deferred ray-cast queue per world.
	RayCastLimit int

	// TriggerOverlapCapacity caps tracked trigger overlaps per body.
	TriggerOverlapCapacity int

	// AllowDynamicTransforms re-reads every non-static body's game-object
	// transform each step, so external moves and scaling take effect.
	AllowDynamicTransforms bool

	// AllowSleep lets idle bodies fall asleep.
	AllowSleep bool

	// MaxWorlds caps the number of live worlds per context.
	MaxWorlds int

	Logger *zap.Logger
}

// DefaultSettings mirrors the engine defaults.
func DefaultSettings() Settings {
	return Settings{
		Gravity:                cp.Vector{Y: -10},
		Scale:                  1.0,
		StepsPerFrame:          1,
		VelocityIterations:     16,
		PositionIterations:     8,
		RayCastLimit:           64,
		TriggerOverlapCapacity: 16,
		AllowDynamicTransforms: true,
		AllowSleep:             true,
		MaxWorlds:              4,
	}
}

// Context owns the settings shared by its worlds. A context and its worlds
// are single-threaded: all calls happen from the same goroutine.
type Context struct {
	settings Settings

	scale    float64
	invScale float64

	// limits converted to simulation units once, up front
	contactImpulseLimit float64
	triggerEnterLimit   float64

	logger *zap.Logger
	worlds []*World

	bodySerial uint64
}

// NewContext validates the settings and builds a context. Iteration counts,
// steps per frame and queue capacities fall back to their defaults when zero.
func NewContext(settings Settings) (*Context, error) {
	if settings.Scale < MinScale || settings.Scale > MaxScale {
		return nil, fmt.Errorf("%w: %.2f not in %.2f - %.2f", ErrInvalidScale, settings.Scale, MinScale, MaxScale)
	}
	def := DefaultSettings()
	if settings.StepsPerFrame < 1 {
		settings.StepsPerFrame = def.StepsPerFrame
	}
	if settings.VelocityIterations == 0 {
		settings.VelocityIterations = def.VelocityIterations
	}
	if settings.PositionIterations < 1 {
		settings.PositionIterations = def.PositionIterations
	}
	if settings.RayCastLimit < 0 {
		settings.RayCastLimit = 0
	}
	if settings.TriggerOverlapCapacity < 1 {
		settings.TriggerOverlapCapacity = def.TriggerOverlapCapacity
	}
	if settings.MaxWorlds < 1 {
		settings.MaxWorlds = def.MaxWorlds
	}
	logger := settings.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Context{
		settings:            settings,
		scale:               settings.Scale,
		invScale:            1.0 / settings.Scale,
		contactImpulseLimit: settings.ContactImpulseLimit * settings.Scale,
		triggerEnterLimit:   settings.TriggerEnterLimit * settings.Scale,
		logger:              logger,
	}, nil
}

// Gravity returns the context gravity in world units.
func (c *Context) Gravity() cp.Vector {
	return c.settings.Gravity
}

// SetGravity updates the context gravity and pushes it to every live world.
func (c *Context) SetGravity(gravity cp.Vector) {
	c.settings.Gravity = gravity
	for _, w := range c.worlds {
		w.SetGravity(gravity)
	}
}

// Worlds returns the live worlds, newest last.
func (c *Context) Worlds() []*World {
	return c.worlds
}

func (c *Context) nextSerial() uint64 {
	c.bodySerial++
	return c.bodySerial
}

func (c *Context) toSim(v cp.Vector) cp.Vector {
	return v.Mult(c.scale)
}

func (c *Context) fromSim(v cp.Vector) cp.Vector {
	return v.Mult(c.invScale)
}
