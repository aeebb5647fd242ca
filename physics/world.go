package physics

import (
	"fmt"

	"github.com/jakecoffman/cp/v2"
	"go.uber.org/zap"
)

// objectCollisionType is the single kernel collision type shared by every
// shape. Pair filtering happens through category and mask bits, so one
// handler covers all contacts.
const objectCollisionType cp.CollisionType = 1

// sensorContact is a touching contact that involves at least one sensor
// shape. The kernel discards sensor contact points right after the narrow
// phase, so the pre-solve hook records the deepest penetration while the
// point set is still valid.
type sensorContact struct {
	a, b  *Body
	depth float64 // deepest penetration, kernel units
}

// World owns one simulation space plus the bodies, joints, trigger overlaps
// and pending ray casts attached to it. Create worlds through
// Context.NewWorld and drive them with Step.
//
// A World is not safe for concurrent use. The callbacks fired by Step run
// while the world is locked and must not create or destroy bodies or joints.
type World struct {
	ctx *Context
	def WorldDef
	log *zap.Logger

	space   *cp.Space
	gravity cp.Vector // world units

	bodies []*Body
	joints []*Joint

	rayQueue   []RayCastRequest
	rayScratch []RayCastRequest

	overlaps *overlapCache
	sensors  map[*cp.Arbiter]*sensorContact

	// stepArgs is non-nil only while Step runs; the collision handler
	// reaches through it for the caller's callbacks.
	stepArgs *StepArgs

	stepping bool
	lastDT   float64
}

// NewWorld creates a simulation world bound to this context. The context's
// gravity, iteration counts and sleep policy apply at creation time. Fails
// with ErrWorldLimit once MaxWorlds worlds exist.
func (c *Context) NewWorld(def WorldDef) (*World, error) {
	if len(c.worlds) >= c.settings.MaxWorlds {
		return nil, fmt.Errorf("%w: %d worlds", ErrWorldLimit, c.settings.MaxWorlds)
	}

	space := cp.NewSpace()
	space.Iterations = c.settings.VelocityIterations
	space.SetGravity(c.toSim(c.settings.Gravity))
	if c.settings.AllowSleep {
		space.SleepTimeThreshold = sleepTime
	}

	w := &World{
		ctx:      c,
		def:      def,
		log:      c.logger,
		space:    space,
		gravity:  c.settings.Gravity,
		overlaps: newOverlapCache(c.settings.TriggerOverlapCapacity, c.logger),
		sensors:  make(map[*cp.Arbiter]*sensorContact),
	}
	if c.settings.RayCastLimit > 0 {
		w.rayQueue = make([]RayCastRequest, 0, c.settings.RayCastLimit)
	}

	handler := space.NewCollisionHandler(objectCollisionType, objectCollisionType)
	handler.UserData = w
	handler.PreSolveFunc = func(arb *cp.Arbiter, space *cp.Space, userData interface{}) bool {
		return userData.(*World).onPreSolve(arb)
	}
	// cp releases before v2.4.0 pass the handler itself, not handler.UserData,
	// as the PostSolveFunc userData argument; capture w instead of asserting on
	// userData so the callback works on either side of that fix.
	handler.PostSolveFunc = func(arb *cp.Arbiter, space *cp.Space, userData interface{}) {
		w.onPostSolve(arb)
	}
	handler.SeparateFunc = func(arb *cp.Arbiter, space *cp.Space, userData interface{}) {
		userData.(*World).onSeparate(arb)
	}

	c.worlds = append(c.worlds, w)
	return w, nil
}

// Destroy detaches the world from its context. The world and everything in
// it must not be used afterwards.
func (w *World) Destroy() {
	if w == nil || w.ctx == nil {
		return
	}
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

// Locked reports whether the world is currently inside Step. Bodies and
// joints must not be created or destroyed while locked.
func (w *World) Locked() bool {
	return w.stepping
}

// Gravity returns the world's gravity in world units.
func (w *World) Gravity() cp.Vector {
	return w.gravity
}

// SetGravity changes the world's gravity. Sleeping bodies stay asleep until
// something else wakes them.
func (w *World) SetGravity(gravity cp.Vector) {
	w.gravity = gravity
	w.space.SetGravity(w.ctx.toSim(gravity))
}

// Space exposes the kernel space for debug drawing and tests.
func (w *World) Space() *cp.Space {
	return w.space
}

// Bodies returns the world's live bodies. The slice is owned by the world;
// callers must not mutate it.
func (w *World) Bodies() []*Body {
	return w.bodies
}

// onPreSolve runs for every touching pair each kernel sub-step, before
// solving. Solid pairs pass through untouched; sensor pairs are recorded in
// the live set with their current penetration depth because the kernel
// strips their contact points after this hook returns.
func (w *World) onPreSolve(arb *cp.Arbiter) bool {
	shapeA, shapeB := arb.Shapes()
	if !shapeA.Sensor() && !shapeB.Sensor() {
		return true
	}
	// The kernel solves no pairs of infinite mass but still reports them
	// here. Sensors follow the same rule as solid contacts: at least one
	// side has to be dynamic.
	if shapeA.Body().GetType() != cp.BODY_DYNAMIC && shapeB.Body().GetType() != cp.BODY_DYNAMIC {
		return true
	}
	bodyA, okA := shapeA.Body().UserData.(*Body)
	bodyB, okB := shapeB.Body().UserData.(*Body)
	if !okA || !okB {
		return true
	}

	depth := 0.0
	set := arb.ContactPointSet()
	for i := 0; i < set.Count; i++ {
		// Kernel distance is negative when penetrating.
		if d := -set.Points[i].Distance; d > depth {
			depth = d
		}
	}

	c := w.sensors[arb]
	if c == nil {
		c = &sensorContact{a: bodyA, b: bodyB}
		w.sensors[arb] = c
	}
	c.depth = depth
	return true
}

// onPostSolve fires for solved solid contacts each kernel sub-step. It
// reports collision and contact point events to the callbacks of the running
// Step, gated on the accumulated impulse.
func (w *World) onPostSolve(arb *cp.Arbiter) {
	args := w.stepArgs
	if args == nil || (args.Collision == nil && args.Contact == nil) {
		return
	}

	impulse := arb.TotalImpulse().Length()
	if impulse < w.ctx.contactImpulseLimit {
		return
	}

	shapeA, shapeB := arb.Shapes()
	bodyA, okA := shapeA.Body().UserData.(*Body)
	bodyB, okB := shapeB.Body().UserData.(*Body)
	if !okA || !okB {
		return
	}

	if args.Collision != nil {
		args.Collision(CollisionEvent{
			OwnerA: bodyA.owner,
			GroupA: uint16(shapeA.Filter.Categories),
			OwnerB: bodyB.owner,
			GroupB: uint16(shapeB.Filter.Categories),
		})
	}
	if args.Contact == nil {
		return
	}

	invScale := w.ctx.invScale
	normal := arb.Normal()
	velA := bodyA.body.Velocity()
	velB := bodyB.body.Velocity()
	relVel := velB.Sub(velA).Mult(invScale)
	set := arb.ContactPointSet()
	for i := 0; i < set.Count; i++ {
		pt := set.Points[i]
		args.Contact(ContactPoint{
			PositionA:        pt.PointA.Mult(invScale),
			PositionB:        pt.PointB.Mult(invScale),
			OwnerA:           bodyA.owner,
			OwnerB:           bodyB.owner,
			GroupA:           uint16(shapeA.Filter.Categories),
			GroupB:           uint16(shapeB.Filter.Categories),
			Normal:           normal,
			RelativeVelocity: relVel,
			Distance:         -pt.Distance * invScale,
			AppliedImpulse:   impulse * invScale,
			MassA:            bodyA.Mass(),
			MassB:            bodyB.Mass(),
		})
	}
}

// onSeparate drops a pair from the sensor live set once it stops touching or
// one of its shapes leaves the space.
func (w *World) onSeparate(arb *cp.Arbiter) {
	delete(w.sensors, arb)
}
