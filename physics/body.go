package physics

import (
	"fmt"
	"math"

	"github.com/jakecoffman/cp/v2"
)

// BodyType selects how a body participates in the simulation. Trigger bodies
// are kinematic sensors; TriggerDynamic bodies are dynamic sensors that
// ignore gravity. Contacts need at least one dynamic side, so triggers only
// ever observe Dynamic and TriggerDynamic bodies.
type BodyType int

const (
	BodyDynamic BodyType = iota
	BodyKinematic
	BodyStatic
	BodyTrigger
	BodyTriggerDynamic
)

func (t BodyType) String() string {
	switch t {
	case BodyDynamic:
		return "dynamic"
	case BodyKinematic:
		return "kinematic"
	case BodyStatic:
		return "static"
	case BodyTrigger:
		return "trigger"
	case BodyTriggerDynamic:
		return "trigger-dynamic"
	default:
		return fmt.Sprintf("BodyType(%d)", int(t))
	}
}

// kernelDynamic reports whether the body simulates as a dynamic kernel body.
func (t BodyType) kernelDynamic() bool {
	return t == BodyDynamic || t == BodyTriggerDynamic
}

// sensor reports whether the body's shapes only detect overlap.
func (t BodyType) sensor() bool {
	return t == BodyTrigger || t == BodyTriggerDynamic
}

// ShapeDef is the closed set of shape definitions: CircleShape, BoxShape,
// PolygonShape and GridShape. Dimensions and offsets are in world units and
// are scaled onto the kernel at creation time.
type ShapeDef interface {
	isShape()
}

// CircleShape is a circle at a local offset from the body origin.
type CircleShape struct {
	Radius float64
	Offset cp.Vector
}

func (CircleShape) isShape() {}

// BoxShape is an axis-aligned box centered on Offset.
type BoxShape struct {
	W, H   float64
	Offset cp.Vector
}

func (BoxShape) isShape() {}

// PolygonShape is a convex polygon with counter-clockwise winding, vertices
// local to the body origin.
type PolygonShape struct {
	Vertices []cp.Vector
}

func (PolygonShape) isShape() {}

// GridShape is a grid of equally sized cells whose collision geometry comes
// from a hull set. Cells start empty; SetGridShapeHull fills them. Grid
// shapes are meant for static bodies and contribute no moment.
type GridShape struct {
	Rows, Cols   int
	CellW, CellH float64
	HullSet      *HullSet
	Layer        string
}

func (GridShape) isShape() {}

// BodyDef describes a body and its shapes.
type BodyDef struct {
	Type BodyType

	// Mass is the per-shape mass. Dynamic types require a positive mass,
	// every other type requires zero. A body carries Mass for each of its
	// shapes, so an N-shape body weighs N*Mass.
	Mass float64

	Friction    float64
	Restitution float64

	// Group is the body's category bit, Mask the set of category bits it
	// collides with.
	Group uint16
	Mask  uint16

	LinearDamping  float64
	AngularDamping float64

	LockedRotation bool

	// Bullet is accepted for compatibility; the kernel has no continuous
	// collision detection, so it changes nothing.
	Bullet bool

	Enabled bool

	// Owner is the game-object side of the body, handed back in events and
	// used to pull transforms through the world's WorldDef callbacks.
	Owner any

	Shapes []ShapeDef
}

// bodyShape pairs a live kernel shape with the definition it was built from
// so the shape can be rebuilt on scale changes and flips.
type bodyShape struct {
	def   ShapeDef
	shape *cp.Shape
}

// Body is a collision body in one world. Create through World.CreateBody.
type Body struct {
	world  *World
	def    BodyDef
	owner  any
	serial uint64

	body   *cp.Body
	shapes []bodyShape
	grids  []*gridLayer
	joints []*Joint

	enabled        bool
	lockedRotation bool
	gravityScale   float64
	linearDamping  float64
	angularDamping float64

	// lastScale is the object scale the shapes were last built with. The
	// step's transform sync rebuilds shapes when the owner scale moves
	// away from it.
	lastScale float64

	flipX, flipY bool
}

// CreateBody adds a body built from def to the world. The owner's transform
// is pulled through the world's GetWorldTransform callback; without an owner
// the body starts at the origin.
func (w *World) CreateBody(def BodyDef) (*Body, error) {
	if len(def.Shapes) == 0 {
		return nil, ErrNoShapes
	}
	if def.Type.kernelDynamic() {
		if def.Mass <= 0 {
			return nil, fmt.Errorf("%w: mass %v on %v body", ErrInvalidMass, def.Mass, def.Type)
		}
	} else if def.Mass != 0 {
		return nil, fmt.Errorf("%w: mass %v on %v body", ErrInvalidMass, def.Mass, def.Type)
	}

	t := Transform{Scale: 1}
	if def.Owner != nil && w.def.GetWorldTransform != nil {
		if got, ok := w.def.GetWorldTransform(def.Owner); ok {
			t = got
		}
	} else {
		w.log.Warn("Collision object created at origin, this will result in a performance hit if multiple objects are created there in the same frame.")
	}
	if t.Scale <= 0 {
		t.Scale = 1
	}

	b := &Body{
		world:          w,
		def:            def,
		owner:          def.Owner,
		serial:         w.ctx.nextSerial(),
		lockedRotation: def.LockedRotation,
		gravityScale:   1,
		linearDamping:  def.LinearDamping,
		angularDamping: def.AngularDamping,
		lastScale:      t.Scale,
	}
	if def.Type == BodyTriggerDynamic {
		b.gravityScale = 0
	}

	switch {
	case def.Type.kernelDynamic():
		b.body = cp.NewBody(def.Mass*float64(len(def.Shapes)), 1)
	case def.Type == BodyStatic:
		b.body = cp.NewStaticBody()
	default:
		b.body = cp.NewKinematicBody()
	}
	b.body.UserData = b
	b.body.SetPosition(w.ctx.toSim(t.Position))
	b.body.SetAngle(t.Angle)
	if def.Type.kernelDynamic() {
		b.body.SetVelocityUpdateFunc(b.updateVelocity)
	}

	// Shapes go on in reverse definition order.
	for i := len(def.Shapes) - 1; i >= 0; i-- {
		switch d := def.Shapes[i].(type) {
		case GridShape:
			b.grids = append(b.grids, newGridLayer(b, d))
		default:
			shape := b.buildShape(def.Shapes[i], t.Scale)
			b.applyShapeProps(shape)
			b.shapes = append(b.shapes, bodyShape{def: d, shape: shape})
		}
	}
	if def.Type.kernelDynamic() {
		b.body.SetMoment(b.momentForShapes(t.Scale))
	}

	if def.Enabled {
		b.enabled = true
		b.addToSpace()
	}
	w.bodies = append(w.bodies, b)
	return b, nil
}

// DestroyBody removes a body, its joints and its trigger overlaps from the
// world. Overlap entries vanish without firing exit events: destroying an
// object inside a trigger reports no exit. Must not run during a step.
func (w *World) DestroyBody(b *Body) {
	if b == nil || b.world != w {
		return
	}
	w.overlaps.removeBody(b.serial)
	for len(b.joints) > 0 {
		w.DestroyJoint(b.joints[0])
	}
	if b.enabled {
		b.removeFromSpace()
		b.enabled = false
	}
	for i, e := range w.bodies {
		if e == b {
			w.bodies[i] = w.bodies[len(w.bodies)-1]
			w.bodies[len(w.bodies)-1] = nil
			w.bodies = w.bodies[:len(w.bodies)-1]
			break
		}
	}
	b.world = nil
}

// updateVelocity is the kernel velocity callback for dynamic bodies. It
// applies the body's gravity scale and the per-body damping factor
// 1/(1+dt*c) on top of the standard integration.
func (b *Body) updateVelocity(body *cp.Body, gravity cp.Vector, damping, dt float64) {
	cp.BodyUpdateVelocity(body, gravity.Mult(b.gravityScale), damping, dt)
	if b.linearDamping > 0 {
		body.SetVelocityVector(body.Velocity().Mult(1 / (1 + dt*b.linearDamping)))
	}
	if b.angularDamping > 0 {
		body.SetAngularVelocity(body.AngularVelocity() * (1 / (1 + dt*b.angularDamping)))
	}
}

func (b *Body) filter() cp.ShapeFilter {
	return cp.NewShapeFilter(cp.NO_GROUP, uint(b.def.Group), uint(b.def.Mask))
}

func (b *Body) applyShapeProps(shape *cp.Shape) {
	shape.SetFriction(b.def.Friction)
	shape.SetElasticity(b.def.Restitution)
	shape.SetCollisionType(objectCollisionType)
	shape.SetSensor(b.def.Type.sensor())
	shape.SetFilter(b.filter())
	shape.UserData = b
}

// buildShape turns a definition into a kernel shape scaled by the context
// scale times the owner's object scale, with the body's flips applied.
func (b *Body) buildShape(def ShapeDef, objScale float64) *cp.Shape {
	s := b.world.ctx.scale * objScale
	switch d := def.(type) {
	case CircleShape:
		return cp.NewCircle(b.body, d.Radius*s, b.mirror(d.Offset).Mult(s))
	case BoxShape:
		hw, hh := d.W/2, d.H/2
		verts := b.polyVerts([]cp.Vector{
			{X: -hw, Y: -hh}, {X: hw, Y: -hh}, {X: hw, Y: hh}, {X: -hw, Y: hh},
		}, s)
		c := b.mirror(d.Offset).Mult(s)
		for i := range verts {
			verts[i] = verts[i].Add(c)
		}
		return cp.NewPolyShapeRaw(b.body, 4, verts, 0)
	case PolygonShape:
		verts := b.polyVerts(d.Vertices, s)
		return cp.NewPolyShapeRaw(b.body, len(verts), verts, 0)
	default:
		panic(fmt.Sprintf("physics: unsupported shape %T", def))
	}
}

// mirror applies the body's flips to a local point.
func (b *Body) mirror(v cp.Vector) cp.Vector {
	if b.flipX {
		v.X = -v.X
	}
	if b.flipY {
		v.Y = -v.Y
	}
	return v
}

// polyVerts scales and mirrors polygon vertices, reversing the order when
// exactly one axis is flipped so the winding stays counter-clockwise.
func (b *Body) polyVerts(src []cp.Vector, s float64) []cp.Vector {
	verts := make([]cp.Vector, len(src))
	for i, v := range src {
		verts[i] = b.mirror(v).Mult(s)
	}
	if b.flipX != b.flipY {
		for i, j := 0, len(verts)-1; i < j; i, j = i+1, j-1 {
			verts[i], verts[j] = verts[j], verts[i]
		}
	}
	return verts
}

// momentForShapes sums the shape moments about the body origin. Each shape
// contributes the full per-shape mass.
func (b *Body) momentForShapes(objScale float64) float64 {
	if b.lockedRotation {
		return math.Inf(1)
	}
	s := b.world.ctx.scale * objScale
	mass := b.def.Mass
	var moment float64
	for _, def := range b.def.Shapes {
		switch d := def.(type) {
		case CircleShape:
			moment += cp.MomentForCircle(mass, 0, d.Radius*s, b.mirror(d.Offset).Mult(s))
		case BoxShape:
			offset := b.mirror(d.Offset).Mult(s)
			moment += cp.MomentForBox(mass, d.W*s, d.H*s) + mass*offset.LengthSq()
		case PolygonShape:
			verts := b.polyVerts(d.Vertices, s)
			moment += cp.MomentForPoly(mass, len(verts), verts, cp.Vector{}, 0)
		}
	}
	if moment <= 0 {
		moment = 1
	}
	return moment
}

func (b *Body) addToSpace() {
	space := b.world.space
	space.AddBody(b.body)
	for _, bs := range b.shapes {
		space.AddShape(bs.shape)
	}
	for _, g := range b.grids {
		g.addToSpace()
	}
	for _, j := range b.joints {
		other := j.bodyA
		if other == b {
			other = j.bodyB
		}
		if !j.inSpace && other.enabled {
			space.AddConstraint(j.constraint)
			j.inSpace = true
		}
	}
}

func (b *Body) removeFromSpace() {
	space := b.world.space
	for _, j := range b.joints {
		if j.inSpace {
			space.RemoveConstraint(j.constraint)
			j.inSpace = false
		}
	}
	for _, g := range b.grids {
		g.removeFromSpace()
	}
	for _, bs := range b.shapes {
		space.RemoveShape(bs.shape)
	}
	space.RemoveBody(b.body)
}

// rebuildShapes replaces every non-grid shape with one built at the given
// object scale and recomputes the moment. Replacing instead of editing keeps
// repeated rescales exact.
func (b *Body) rebuildShapes(objScale float64) {
	space := b.world.space
	for i := range b.shapes {
		if b.enabled {
			space.RemoveShape(b.shapes[i].shape)
		}
		shape := b.buildShape(b.shapes[i].def, objScale)
		b.applyShapeProps(shape)
		b.shapes[i].shape = shape
		if b.enabled {
			space.AddShape(shape)
		}
	}
	if b.def.Type.kernelDynamic() {
		b.body.SetMoment(b.momentForShapes(objScale))
		b.body.Activate()
	}
	b.lastScale = objScale
}

// SetEnabled adds the body to or removes it from the simulation. Enabling
// re-pulls the owner's transform so the body rejoins where the game object
// currently is. No-op when the state does not change.
func (b *Body) SetEnabled(enabled bool) {
	if b.enabled == enabled {
		return
	}
	b.enabled = enabled
	if !enabled {
		b.removeFromSpace()
		return
	}
	b.addToSpace()
	if b.owner != nil && b.world.def.GetWorldTransform != nil {
		if t, ok := b.world.def.GetWorldTransform(b.owner); ok {
			b.body.SetPosition(b.world.ctx.toSim(t.Position))
			b.body.SetAngle(t.Angle)
		}
	}
	if b.def.Type.kernelDynamic() {
		b.body.Activate()
	}
}

// Enabled reports whether the body is part of the simulation.
func (b *Body) Enabled() bool {
	return b.enabled
}

// FlipH mirrors the body's shapes along the x axis.
func (b *Body) FlipH() {
	b.flipX = !b.flipX
	b.rebuildShapes(b.lastScale)
	b.wake()
}

// FlipV mirrors the body's shapes along the y axis.
func (b *Body) FlipV() {
	b.flipY = !b.flipY
	b.rebuildShapes(b.lastScale)
	b.wake()
}

// SetLockedRotation locks or unlocks the body's rotation. Locking zeroes the
// angular velocity so the body stops turning immediately.
func (b *Body) SetLockedRotation(locked bool) {
	if !b.def.Type.kernelDynamic() {
		return
	}
	b.lockedRotation = locked
	b.body.SetMoment(b.momentForShapes(b.lastScale))
	if locked {
		b.body.SetAngularVelocity(0)
	}
}

// LockedRotation reports whether the body's rotation is locked.
func (b *Body) LockedRotation() bool {
	return b.lockedRotation
}

// Velocity returns the linear velocity in world units per second.
func (b *Body) Velocity() cp.Vector {
	return b.body.Velocity()
}

// SetVelocity sets the linear velocity in world units per second.
func (b *Body) SetVelocity(v cp.Vector) {
	b.body.SetVelocityVector(v)
}

// AngularVelocity returns the angular velocity in radians per second.
func (b *Body) AngularVelocity() float64 {
	return b.body.AngularVelocity()
}

// SetAngularVelocity sets the angular velocity in radians per second.
func (b *Body) SetAngularVelocity(w float64) {
	b.body.SetAngularVelocity(w)
}

// LinearDamping returns the linear damping coefficient.
func (b *Body) LinearDamping() float64 {
	return b.linearDamping
}

// SetLinearDamping sets the linear damping coefficient.
func (b *Body) SetLinearDamping(d float64) {
	b.linearDamping = d
}

// AngularDamping returns the angular damping coefficient.
func (b *Body) AngularDamping() float64 {
	return b.angularDamping
}

// SetAngularDamping sets the angular damping coefficient.
func (b *Body) SetAngularDamping(d float64) {
	b.angularDamping = d
}

// Mass returns the kernel mass: the per-shape creation mass times the shape
// count. Zero for non-dynamic bodies.
func (b *Body) Mass() float64 {
	if !b.def.Type.kernelDynamic() {
		return 0
	}
	return b.body.Mass()
}

// WorldPosition returns the body's position in world units.
func (b *Body) WorldPosition() cp.Vector {
	return b.body.Position().Mult(b.world.ctx.invScale)
}

// SetWorldPosition teleports the body, keeping its current angle, and wakes
// it.
func (b *Body) SetWorldPosition(pos cp.Vector) {
	b.body.SetPosition(b.world.ctx.toSim(pos))
	b.reindexStatic()
}

// Angle returns the body's rotation in radians.
func (b *Body) Angle() float64 {
	return b.body.Angle()
}

// SetAngle rotates the body in place and wakes it.
func (b *Body) SetAngle(angle float64) {
	b.body.SetAngle(angle)
	b.reindexStatic()
}

// reindexStatic refreshes the broadphase for static shapes, which the kernel
// only indexes when they are added or the space says so.
func (b *Body) reindexStatic() {
	if b.def.Type == BodyStatic && b.enabled {
		b.body.EachShape(func(s *cp.Shape) {
			b.world.space.ReindexShape(s)
		})
	}
}

// ApplyForce applies a force in world units at a world-space point.
func (b *Body) ApplyForce(force, point cp.Vector) {
	scale := b.world.ctx.scale
	b.body.ApplyForceAtWorldPoint(force.Mult(scale), point.Mult(scale))
}

// ApplyImpulse applies an impulse in world units at a world-space point.
func (b *Body) ApplyImpulse(impulse, point cp.Vector) {
	scale := b.world.ctx.scale
	b.body.ApplyImpulseAtWorldPoint(impulse.Mult(scale), point.Mult(scale))
}

// TotalForce returns the force accumulated on the body for the next
// sub-step.
func (b *Body) TotalForce() cp.Vector {
	return b.body.Force()
}

// Group returns the body's category bit.
func (b *Body) Group() uint16 {
	return b.def.Group
}

// SetGroup changes the body's category bit on every shape.
func (b *Body) SetGroup(group uint16) {
	b.def.Group = group
	b.refilter()
}

// Mask returns the set of category bits the body collides with.
func (b *Body) Mask() uint16 {
	return b.def.Mask
}

// SetMask changes the set of category bits the body collides with.
func (b *Body) SetMask(mask uint16) {
	b.def.Mask = mask
	b.refilter()
}

func (b *Body) refilter() {
	f := b.filter()
	b.eachShape(func(s *cp.Shape) {
		s.SetFilter(f)
	})
}

// eachShape visits every live kernel shape of the body, grid cells included.
func (b *Body) eachShape(fn func(*cp.Shape)) {
	for _, bs := range b.shapes {
		fn(bs.shape)
	}
	for _, g := range b.grids {
		g.eachShape(fn)
	}
}

// Type returns the body's type.
func (b *Body) Type() BodyType {
	return b.def.Type
}

// Owner returns the game-object side of the body.
func (b *Body) Owner() any {
	return b.owner
}

// World returns the world the body belongs to, nil once destroyed.
func (b *Body) World() *World {
	return b.world
}

// Bullet reports the stored bullet flag. The kernel has no continuous
// collision detection, so the flag changes nothing.
func (b *Body) Bullet() bool {
	return b.def.Bullet
}

func (b *Body) wake() {
	if b.def.Type.kernelDynamic() && b.enabled {
		b.body.Activate()
	}
}
