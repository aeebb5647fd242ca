package physics

import (
	"math"

	"github.com/jakecoffman/cp/v2"
)

// Transform sync tolerances. The squared position delta is compared against
// the raw epsilon.
const (
	posEpsilonBase = 0.00005
	rotEpsilon     = 0.00007
)

// CollisionEvent reports two bodies in contact: solid pairs whose impulse
// cleared the contact impulse limit, and touching trigger pairs.
type CollisionEvent struct {
	OwnerA any
	GroupA uint16
	OwnerB any
	GroupB uint16
}

// ContactPoint carries the details of one solved contact point, everything
// in world units.
type ContactPoint struct {
	PositionA        cp.Vector
	PositionB        cp.Vector
	OwnerA           any
	OwnerB           any
	GroupA           uint16
	GroupB           uint16
	Normal           cp.Vector
	RelativeVelocity cp.Vector
	Distance         float64
	AppliedImpulse   float64
	MassA            float64
	MassB            float64
}

// TriggerEvent reports a trigger overlap starting or ending, fired once per
// pair. Callers that notify both sides fan the event out themselves.
type TriggerEvent struct {
	OwnerA any
	GroupA uint16
	OwnerB any
	GroupB uint16
}

// StepArgs drives one World.Step. DT is the frame delta; zero runs the
// bookkeeping phases without advancing the simulation. Factor stretches the
// fixed timestep, defaulting to 1. The callbacks are optional; they run
// while the world is locked and must not create or destroy bodies or
// joints.
type StepArgs struct {
	DT     float64
	Factor float64

	Collision    func(CollisionEvent)
	Contact      func(ContactPoint)
	TriggerEnter func(TriggerEvent)
	TriggerExit  func(TriggerEvent)
	RayCast      func(RayCastResponse, RayCastRequest)
}

// StepResult summarizes one step.
type StepResult struct {
	// TransformsUpdated counts the bodies whose transform was pushed back
	// to the game-object layer.
	TransformsUpdated int
}

// Step advances the world: owner transforms sync in, the kernel runs
// StepsPerFrame sub-steps each followed by the joint position pass, solved
// transforms sync out, the ray-cast queue drains, and trigger overlaps are
// rescanned.
func (w *World) Step(args StepArgs) StepResult {
	if w.stepping {
		w.log.Error("step called on a locked world")
		return StepResult{}
	}
	factor := args.Factor
	if factor == 0 {
		factor = 1
	}

	w.stepping = true
	w.stepArgs = &args
	defer func() {
		w.stepArgs = nil
		w.stepping = false
	}()

	w.syncTransforms()

	var deltaStep float64
	if args.DT != 0 {
		deltaStep = fixedDelta * factor / float64(w.ctx.settings.StepsPerFrame)
	}
	for i := 0; i < w.ctx.settings.StepsPerFrame; i++ {
		w.space.Step(deltaStep)
		w.solveJointPositions()
	}
	if deltaStep > 0 {
		w.lastDT = deltaStep
	}

	res := StepResult{TransformsUpdated: w.writeBackTransforms()}
	w.drainRayCasts(args.RayCast)
	w.reportSensorContacts(args.Collision)
	w.updateOverlaps(&args)
	return res
}

// LastDT returns the most recent non-zero sub-step delta, for converting
// impulses to forces.
func (w *World) LastDT() float64 {
	return w.lastDT
}

// syncTransforms pulls owner transforms into the kernel before stepping.
// Kinematic bodies always sync; everything non-static syncs when the context
// allows dynamic transforms. Bodies only move when the transform drifted
// past the epsilons, so resting bodies keep their sleep state.
func (w *World) syncTransforms() {
	if w.def.GetWorldTransform == nil {
		return
	}
	allowDynamic := w.ctx.settings.AllowDynamicTransforms
	posEpsilon := posEpsilonBase * w.ctx.scale
	for _, b := range w.bodies {
		if !b.enabled || b.owner == nil {
			continue
		}
		if !((allowDynamic && b.def.Type != BodyStatic) || b.def.Type == BodyKinematic) {
			continue
		}
		t, ok := w.def.GetWorldTransform(b.owner)
		if !ok {
			continue
		}
		if t.Scale <= 0 {
			t.Scale = 1
		}

		pos := w.ctx.toSim(t.Position)
		if pos.Sub(b.body.Position()).LengthSq() > posEpsilon ||
			math.Abs(b.body.Angle()-t.Angle) > rotEpsilon {
			b.body.SetPosition(pos)
			b.body.SetAngle(t.Angle)
			b.body.Activate()
		}
		if allowDynamic && t.Scale != b.lastScale {
			b.rebuildShapes(t.Scale)
		}
	}
}

// solveJointPositions runs the joint position pass after a kernel sub-step,
// stopping early once every joint reports its error within tolerance.
func (w *World) solveJointPositions() {
	for i := 0; i < w.ctx.settings.PositionIterations; i++ {
		done := true
		for _, j := range w.joints {
			if !j.inSpace {
				continue
			}
			if !j.solver.SolvePosition() {
				done = false
			}
		}
		if done {
			break
		}
	}
}

// writeBackTransforms pushes solved dynamic transforms to the game-object
// layer and returns how many bodies moved.
func (w *World) writeBackTransforms() int {
	if w.def.SetWorldTransform == nil {
		return 0
	}
	count := 0
	invScale := w.ctx.invScale
	for _, b := range w.bodies {
		if !b.enabled || b.owner == nil || !b.def.Type.kernelDynamic() {
			continue
		}
		if b.body.IsSleeping() {
			continue
		}
		w.def.SetWorldTransform(b.owner, b.body.Position().Mult(invScale), b.body.Angle())
		count++
	}
	return count
}

// drainRayCasts runs the queued requests in FIFO order. The queue empties
// whether or not a callback is set, and the callback fires on misses too so
// every request gets an answer.
func (w *World) drainRayCasts(cb func(RayCastResponse, RayCastRequest)) {
	if len(w.rayQueue) == 0 {
		return
	}
	// Callbacks may queue new requests; those wait for the next step.
	w.rayScratch = append(w.rayScratch[:0], w.rayQueue...)
	w.rayQueue = w.rayQueue[:0]
	if cb == nil {
		return
	}
	for _, req := range w.rayScratch {
		resp, _ := w.RayCast(req)
		cb(resp, req)
	}
}

// reportSensorContacts fires the collision callback for every touching pair
// with a sensor side. Pair order is unspecified.
func (w *World) reportSensorContacts(cb func(CollisionEvent)) {
	if cb == nil {
		return
	}
	for _, c := range w.sensors {
		cb(CollisionEvent{
			OwnerA: c.a.owner,
			GroupA: c.a.def.Group,
			OwnerB: c.b.owner,
			GroupB: c.b.def.Group,
		})
	}
}

// updateOverlaps rescans trigger overlaps: touching sensor pairs penetrating
// at least the trigger enter limit stay cached, new ones fire enter events
// and vanished ones fire exit events.
func (w *World) updateOverlaps(args *StepArgs) {
	w.overlaps.beginScan()
	limit := w.ctx.triggerEnterLimit
	for _, c := range w.sensors {
		if c.depth >= limit {
			w.overlaps.add(c.a, c.b, args)
		}
	}
	w.overlaps.prune(args)
}
