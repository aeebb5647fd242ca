package collision

import (
	"math/bits"

	"github.com/jakecoffman/cp/v2"
	"go.uber.org/zap"

	"github.com/milk9111/physics2d/message"
	"github.com/milk9111/physics2d/physics"
)

// maxGroups is the width of the group bit table: group names map to single
// category bits in a uint16.
const maxGroups = 16

// World wraps one simulation world with the component layer: named collision
// groups, the live components, and the event fan-out to the collection
// socket.
//
// A World is single-threaded, like the simulation world under it.
type World struct {
	ctx    *Context
	phys   *physics.World
	socket *message.Socket
	log    *zap.Logger

	groups     [maxGroups]uint64
	groupNames [maxGroups]string
	groupsFull bool

	objects []*Object
	lastDT  float64

	// per-update event budgets and their edge-triggered overflow state
	collisionCount int
	contactCount   int
	collisionOver  bool
	contactOver    bool
}

// NewWorld creates a collision world and its underlying simulation world.
// Events are posted to socket; nil creates a fresh "default" socket.
func (c *Context) NewWorld(socket *message.Socket) (*World, error) {
	if socket == nil {
		socket = message.NewSocket("default", message.DefaultCapacity)
	}
	w := &World{
		ctx:    c,
		socket: socket,
		log:    c.log,
	}
	phys, err := c.physics.NewWorld(physics.WorldDef{
		GetWorldTransform: func(owner any) (physics.Transform, bool) {
			o, ok := owner.(*Object)
			if !ok || o.gameObject == nil {
				return physics.Transform{}, false
			}
			return o.gameObject.Transform(), true
		},
		SetWorldTransform: func(owner any, position cp.Vector, angle float64) {
			if o, ok := owner.(*Object); ok && o.gameObject != nil {
				o.gameObject.SetTransform(position, angle)
			}
		},
	})
	if err != nil {
		return nil, err
	}
	w.phys = phys
	c.worlds = append(c.worlds, w)
	return w, nil
}

// Destroy tears down every component and the simulation world, then detaches
// from the context. Pending ray-cast queries targeting this world are
// dropped at the next dispatch.
func (w *World) Destroy() {
	if w == nil || w.ctx == nil {
		return
	}
	for len(w.objects) > 0 {
		w.DestroyObject(w.objects[len(w.objects)-1])
	}
	w.phys.Destroy()
	worlds := w.ctx.worlds
	for i, e := range worlds {
		if e == w {
			worlds[i] = worlds[len(worlds)-1]
			worlds[len(worlds)-1] = nil
			w.ctx.worlds = worlds[:len(worlds)-1]
			break
		}
	}
	w.ctx = nil
}

// UpdateResult summarizes one update.
type UpdateResult struct {
	// TransformsUpdated counts the bodies whose solved transform was
	// pushed back to their game object.
	TransformsUpdated int
}

// Update dispatches pending physics-socket requests, advances the
// simulation by dt with the event callbacks wired, and reports overflow
// transitions. Messages produced by the step sit on the collection socket
// until the caller dispatches them.
func (w *World) Update(dt float64) UpdateResult {
	w.ctx.dispatch()
	w.collisionCount = 0
	w.contactCount = 0

	res := w.phys.Step(physics.StepArgs{
		DT:           dt,
		Collision:    w.onCollision,
		Contact:      w.onContact,
		TriggerEnter: func(e physics.TriggerEvent) { w.onTrigger(e, true) },
		TriggerExit:  func(e physics.TriggerEvent) { w.onTrigger(e, false) },
		RayCast:      w.onRayCastResult,
	})
	w.lastDT = w.phys.LastDT()
	w.warnOverflow()
	return UpdateResult{TransformsUpdated: res.TransformsUpdated}
}

// PostUpdate runs the physics-socket dispatch again so requests posted
// during this frame's updates reach their target world without waiting a
// full frame.
func (w *World) PostUpdate() {
	w.ctx.dispatch()
}

// LastDT returns the most recent sub-step delta, used to turn joint
// impulses into forces.
func (w *World) LastDT() float64 {
	return w.lastDT
}

// Socket returns the collection socket events are posted to.
func (w *World) Socket() *message.Socket {
	return w.socket
}

// Physics exposes the underlying simulation world.
func (w *World) Physics() *physics.World {
	return w.phys
}

// Objects returns the world's live components. The slice is owned by the
// world; callers must not mutate it.
func (w *World) Objects() []*Object {
	return w.objects
}

// ObjectByID returns the component owned by the game object with the given
// id, nil when there is none.
func (w *World) ObjectByID(id uint64) *Object {
	for _, o := range w.objects {
		if o.gameObject.ID() == id {
			return o
		}
	}
	return nil
}

// GroupBitIndex returns the category bit for a named collision group,
// claiming the next free slot the first time a name is seen. An empty name
// and every name past the sixteenth map to 0, which collides with nothing.
func (w *World) GroupBitIndex(name string) uint16 {
	if name == "" {
		return 0
	}
	h := message.Hash(name)
	for i := 0; i < maxGroups; i++ {
		if w.groups[i] == h {
			return 1 << i
		}
		if w.groups[i] == 0 {
			w.groups[i] = h
			w.groupNames[i] = name
			return 1 << i
		}
	}
	if !w.groupsFull {
		w.groupsFull = true
		w.log.Warn("Out of collision groups (16). Some objects may not collide properly.",
			zap.String("group", name))
	}
	return 0
}

// MaskBits folds a list of group names into a category mask.
func (w *World) MaskBits(names []string) uint16 {
	var mask uint16
	for _, n := range names {
		mask |= w.GroupBitIndex(n)
	}
	return mask
}

// GroupHash returns the name hash of the lowest set bit's group, 0 when no
// registered group matches.
func (w *World) GroupHash(groupBits uint16) uint64 {
	if groupBits == 0 {
		return 0
	}
	return w.groups[bits.TrailingZeros16(groupBits)]
}

// GroupName returns the name of the lowest set bit's group, "" when no
// registered group matches.
func (w *World) GroupName(groupBits uint16) string {
	if groupBits == 0 {
		return ""
	}
	return w.groupNames[bits.TrailingZeros16(groupBits)]
}

// Gravity returns the simulation gravity in world units.
func (w *World) Gravity() cp.Vector {
	return w.phys.Gravity()
}

// SetGravity changes the simulation gravity.
func (w *World) SetGravity(gravity cp.Vector) {
	w.phys.SetGravity(gravity)
}
