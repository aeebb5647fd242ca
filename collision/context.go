// Package collision binds simulation bodies to game objects. It owns the
// component lifecycle, the named collision groups, the joints attached to
// each component, property access by name, and the fan-out of collision,
// contact, trigger and ray-cast events as messages.
package collision

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/milk9111/physics2d/message"
	"github.com/milk9111/physics2d/physics"
)

// Default event budgets per update.
const (
	DefaultMaxCollisionCount    = 64
	DefaultMaxContactPointCount = 128
)

// SocketName names the shared socket ray-cast requests travel on.
const SocketName = "physics"

// ContextDef configures a Context. Physics is required; everything else has
// a default.
type ContextDef struct {
	// Physics is the simulation context worlds are created in.
	Physics *physics.Context

	// Socket is the shared physics socket. Requests posted here may target
	// any of the context's worlds; every world drains it on update. Nil
	// creates a fresh "physics" socket.
	Socket *message.Socket

	// MaxCollisionCount caps collision and trigger events per update,
	// MaxContactPointCount caps contact-point events. Excess events are
	// dropped with an edge-triggered warning.
	MaxCollisionCount    int
	MaxContactPointCount int

	Logger *zap.Logger
}

// Context is what every collision world shares: the simulation context, the
// shared request socket, the event budgets and the logger.
type Context struct {
	physics *physics.Context
	socket  *message.Socket
	log     *zap.Logger

	maxCollisions int
	maxContacts   int

	worlds []*World
}

// NewContext builds a collision context over a physics context.
func NewContext(def ContextDef) (*Context, error) {
	if def.Physics == nil {
		return nil, errors.New("collision: nil physics context")
	}
	if def.Socket == nil {
		def.Socket = message.NewSocket(SocketName, message.DefaultCapacity)
	}
	if def.MaxCollisionCount < 1 {
		def.MaxCollisionCount = DefaultMaxCollisionCount
	}
	if def.MaxContactPointCount < 1 {
		def.MaxContactPointCount = DefaultMaxContactPointCount
	}
	if def.Logger == nil {
		def.Logger = zap.NewNop()
	}
	return &Context{
		physics:       def.Physics,
		socket:        def.Socket,
		log:           def.Logger,
		maxCollisions: def.MaxCollisionCount,
		maxContacts:   def.MaxContactPointCount,
	}, nil
}

// Socket returns the shared physics socket.
func (c *Context) Socket() *message.Socket {
	return c.socket
}

// Worlds returns the context's live collision worlds. The slice is owned by
// the context; callers must not mutate it.
func (c *Context) Worlds() []*World {
	return c.worlds
}

// dispatch drains the shared socket. Ray-cast queries whose target world is
// still registered queue on that world, so requests posted while another
// world was stepping get answered at most one frame late. Queries for a
// destroyed world are dropped.
func (c *Context) dispatch() {
	c.socket.Dispatch(func(e message.Envelope) {
		switch q := e.Payload.(type) {
		case RayCastQuery:
			if !c.registered(q.World) {
				return
			}
			// Full-queue and zero-length drops warn inside the world.
			_ = q.World.phys.RequestRayCast(q.Request)
		default:
			c.log.Warn("Unknown physics message, ignoring.",
				zap.String("type", fmt.Sprintf("%T", e.Payload)))
		}
	})
}

func (c *Context) registered(w *World) bool {
	for _, e := range c.worlds {
		if e == w {
			return true
		}
	}
	return false
}
