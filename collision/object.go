package collision

import (
	"errors"
	"fmt"

	"github.com/jakecoffman/cp/v2"
	"go.uber.org/zap"

	"github.com/milk9111/physics2d/message"
	"github.com/milk9111/physics2d/physics"
)

// fragmentCollisionObject is the component fragment of every collision
// object's message address.
var fragmentCollisionObject = message.Hash("collisionobject")

// GameObject is the engine-side instance a component is attached to. The
// world pulls Transform before stepping and pushes SetTransform after, both
// synchronously inside Update.
type GameObject interface {
	ID() uint64
	Transform() physics.Transform
	SetTransform(position cp.Vector, angle float64)
}

// ObjectDesc describes a component: the body definition with groups by name
// instead of bits, plus the start-enabled flag applied when the component
// joins the update set.
type ObjectDesc struct {
	Type        physics.BodyType
	Mass        float64
	Friction    float64
	Restitution float64

	// Group is the component's collision group, Mask the groups it
	// collides with. Names allocate bits per world on first use.
	Group string
	Mask  []string

	LinearDamping  float64
	AngularDamping float64
	LockedRotation bool
	Bullet         bool

	// StartEnabled is applied by AddToUpdate; components always start
	// disabled before that.
	StartEnabled bool

	Shapes []physics.ShapeDef
}

// Object binds one simulation body to a game object. It owns the joints it
// connects to other components and keeps non-owning back-references for
// joints arriving from them.
type Object struct {
	world      *World
	gameObject GameObject
	body       *physics.Body
	desc       ObjectDesc

	addedToUpdate  bool
	startAsEnabled bool
	flippedX       bool
	flippedY       bool

	joints     []JointEntry
	jointIndex map[uint64]int
	endpoints  []JointEndPoint
}

// NewObject creates a component for a game object. The body starts disabled
// regardless of desc.StartEnabled; AddToUpdate applies the flag. A kernel
// rejection (bad mass for the type, no shapes) fails the component's
// creation and leaves no state behind.
func (w *World) NewObject(desc ObjectDesc, gameObject GameObject) (*Object, error) {
	if gameObject == nil {
		return nil, errors.New("collision: nil game object")
	}
	o := &Object{
		world:          w,
		gameObject:     gameObject,
		desc:           desc,
		startAsEnabled: desc.StartEnabled,
		jointIndex:     make(map[uint64]int),
	}
	body, err := w.phys.CreateBody(physics.BodyDef{
		Type:           desc.Type,
		Mass:           desc.Mass,
		Friction:       desc.Friction,
		Restitution:    desc.Restitution,
		Group:          w.GroupBitIndex(desc.Group),
		Mask:           w.MaskBits(desc.Mask),
		LinearDamping:  desc.LinearDamping,
		AngularDamping: desc.AngularDamping,
		LockedRotation: desc.LockedRotation,
		Bullet:         desc.Bullet,
		Enabled:        false,
		Owner:          o,
		Shapes:         desc.Shapes,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknown, err)
	}
	o.body = body
	w.objects = append(w.objects, o)
	return o, nil
}

// DestroyObject removes a component: every joint touching it goes first,
// incoming before outgoing, then the body, then the component leaves the
// world list.
func (w *World) DestroyObject(o *Object) {
	if o == nil || o.world != w {
		return
	}
	for len(o.endpoints) > 0 {
		ep := o.endpoints[len(o.endpoints)-1]
		if err := ep.owner.DestroyJoint(ep.entryID); err != nil {
			// The endpoint list says the entry exists; drop the stale
			// back-reference rather than spin.
			o.endpoints = o.endpoints[:len(o.endpoints)-1]
		}
	}
	for len(o.joints) > 0 {
		_ = o.DestroyJoint(o.joints[len(o.joints)-1].ID)
	}
	w.phys.DestroyBody(o.body)
	for i, e := range w.objects {
		if e == o {
			w.objects[i] = w.objects[len(w.objects)-1]
			w.objects[len(w.objects)-1] = nil
			w.objects = w.objects[:len(w.objects)-1]
			break
		}
	}
	o.world = nil
}

// AddToUpdate marks the component as part of the active set and applies the
// start-enabled flag. Enable and disable messages arriving before this only
// adjust the flag.
func (o *Object) AddToUpdate() {
	if o.addedToUpdate {
		return
	}
	o.addedToUpdate = true
	if o.startAsEnabled {
		o.body.SetEnabled(true)
	}
}

// setEnabled applies an enable or disable request: immediately once the
// component is in the update set, otherwise by rewriting the start flag.
func (o *Object) setEnabled(enabled bool) {
	if o.addedToUpdate {
		o.body.SetEnabled(enabled)
	} else {
		o.startAsEnabled = enabled
	}
}

// Enabled reports whether the body takes part in the simulation.
func (o *Object) Enabled() bool {
	return o.body.Enabled()
}

// ID returns the owning game object's id.
func (o *Object) ID() uint64 {
	return o.gameObject.ID()
}

// Address returns the component's message address.
func (o *Object) Address() message.Address {
	return message.Address{Path: o.gameObject.ID(), Fragment: fragmentCollisionObject}
}

// objectAddress is the owning game object's address, the destination for
// events every component of the object should see.
func (o *Object) objectAddress() message.Address {
	return message.Address{Path: o.gameObject.ID()}
}

// Body exposes the underlying simulation body.
func (o *Object) Body() *physics.Body {
	return o.body
}

// World returns the collision world the component lives in, nil once
// destroyed.
func (o *Object) World() *World {
	return o.world
}

// GameObject returns the attached game object.
func (o *Object) GameObject() GameObject {
	return o.gameObject
}

// SetFlipH mirrors the collision shapes horizontally when the flag changes.
func (o *Object) SetFlipH(flip bool) {
	if o.flippedX == flip {
		return
	}
	o.flippedX = flip
	o.body.FlipH()
}

// SetFlipV mirrors the collision shapes vertically when the flag changes.
func (o *Object) SetFlipV(flip bool) {
	if o.flippedY == flip {
		return
	}
	o.flippedY = flip
	o.body.FlipV()
}

// RequestRayCast posts a deferred ray cast against the component's world on
// the shared physics socket. The component itself is excluded from the hit
// set. The response arrives as a RayCastResponse or RayCastMissed message
// after the target world's next update; requestID comes back with it.
func (o *Object) RequestRayCast(from, to cp.Vector, mask uint16, requestID uint32) error {
	q := RayCastQuery{
		World: o.world,
		Request: physics.RayCastRequest{
			From:         from,
			To:           to,
			Mask:         mask,
			IgnoredOwner: o,
			UserData:     o,
			UserID:       o.world.packRayID(o, requestID),
		},
	}
	err := o.world.ctx.socket.Post(message.Envelope{Sender: o.Address(), Payload: q})
	if err != nil {
		o.world.log.Warn("Ray cast request dropped, physics socket is full.",
			zap.Uint64("object", o.ID()))
	}
	return err
}

// packRayID builds the correlation id carried on a deferred ray cast: the
// component's current index in the high half, the caller's request id in the
// low byte.
func (w *World) packRayID(o *Object, requestID uint32) uint32 {
	var index uint32
	for i, e := range w.objects {
		if e == o {
			index = uint32(i)
			break
		}
	}
	return index<<16 | requestID&0xff
}
