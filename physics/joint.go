package physics

import (
	"errors"
	"fmt"

	"github.com/jakecoffman/cp/v2"
)

// ErrJointType is returned when joint params of one type are applied to a
// joint of another.
var ErrJointType = errors.New("physics: joint params type mismatch")

// JointType enumerates the supported constraint types.
type JointType int

const (
	JointSpring JointType = iota
	JointFixed
	JointHinge
	JointSlider
)

func (t JointType) String() string {
	switch t {
	case JointSpring:
		return "spring"
	case JointFixed:
		return "fixed"
	case JointHinge:
		return "hinge"
	case JointSlider:
		return "slider"
	default:
		return fmt.Sprintf("JointType(%d)", int(t))
	}
}

// JointParams is the closed set of per-type parameter structs: SpringParams,
// FixedParams, HingeParams and SliderParams. Every operation that takes or
// returns joint parameters switches exhaustively over these.
type JointParams interface {
	JointType() JointType
	collide() bool
}

// SpringParams configures a distance joint with optional soft-constraint
// behavior. FrequencyHz zero makes the distance rigid.
type SpringParams struct {
	CollideConnected bool

	// Length is the rest length in world units.
	Length       float64
	FrequencyHz  float64
	DampingRatio float64
}

func (SpringParams) JointType() JointType { return JointSpring }
func (p SpringParams) collide() bool      { return p.CollideConnected }

// FixedParams configures a rope joint: the bodies move freely until the
// anchor distance reaches MaxLength.
type FixedParams struct {
	CollideConnected bool

	// MaxLength is the rope length in world units.
	MaxLength float64
}

func (FixedParams) JointType() JointType { return JointFixed }
func (p FixedParams) collide() bool      { return p.CollideConnected }

// HingeParams configures a revolute joint. JointAngle and JointSpeed are
// read-only: Params fills them from live state and SetParams ignores them.
type HingeParams struct {
	CollideConnected bool

	ReferenceAngle float64
	LowerAngle     float64
	UpperAngle     float64
	MaxMotorTorque float64
	MotorSpeed     float64
	EnableLimit    bool
	EnableMotor    bool

	// read-only
	JointAngle float64
	JointSpeed float64
}

func (HingeParams) JointType() JointType { return JointHinge }
func (p HingeParams) collide() bool      { return p.CollideConnected }

// SliderParams configures a prismatic joint along LocalAxisA. JointTranslation
// and JointSpeed are read-only.
type SliderParams struct {
	CollideConnected bool

	LocalAxisA       cp.Vector
	ReferenceAngle   float64
	EnableLimit      bool
	LowerTranslation float64
	UpperTranslation float64
	EnableMotor      bool
	MaxMotorForce    float64
	MotorSpeed       float64

	// read-only
	JointTranslation float64
	JointSpeed       float64
}

func (SliderParams) JointType() JointType { return JointSlider }
func (p SliderParams) collide() bool      { return p.CollideConnected }

// DefaultJointParams returns the default parameter set for a joint type.
// Every field a caller leaves untouched keeps these values.
func DefaultJointParams(t JointType) JointParams {
	switch t {
	case JointSpring:
		return SpringParams{Length: 1.0}
	case JointFixed:
		return FixedParams{}
	case JointHinge:
		return HingeParams{}
	case JointSlider:
		return SliderParams{LocalAxisA: cp.Vector{X: 1}}
	default:
		return nil
	}
}

// jointSolver is the kernel-facing side of a joint: the three velocity-phase
// hooks the kernel's solver loop drives, plus our own position pass and the
// parameter plumbing.
type jointSolver interface {
	cp.Constrainer

	// SolvePosition nudges positions directly to remove drift and reports
	// whether the residual error is within tolerance.
	SolvePosition() bool

	params(invScale float64) JointParams
	setParams(p JointParams, scale float64) error
	reactionForce(invDT float64) cp.Vector
	reactionTorque(invDT float64) float64
}

// Joint is a live constraint between two bodies of one world.
type Joint struct {
	world      *World
	typ        JointType
	constraint *cp.Constraint
	solver     jointSolver
	bodyA      *Body
	bodyB      *Body
	collide    bool

	// inSpace tracks whether the constraint is registered with the
	// kernel; it leaves the space while either body is disabled.
	inSpace bool
}

// Type returns the joint's type.
func (j *Joint) Type() JointType {
	return j.typ
}

// Bodies returns the two connected bodies.
func (j *Joint) Bodies() (*Body, *Body) {
	return j.bodyA, j.bodyB
}

// Params returns the current parameters, read-only fields filled from live
// simulation state, lengths converted back to world units.
func (j *Joint) Params() JointParams {
	switch p := j.solver.params(j.world.ctx.invScale).(type) {
	case SpringParams:
		p.CollideConnected = j.collide
		return p
	case FixedParams:
		p.CollideConnected = j.collide
		return p
	case HingeParams:
		p.CollideConnected = j.collide
		return p
	case SliderParams:
		p.CollideConnected = j.collide
		return p
	default:
		return nil
	}
}

// SetParams applies new parameters of the joint's own type and wakes both
// bodies. Parameters of another type fail with ErrJointType.
func (j *Joint) SetParams(p JointParams) error {
	if p == nil || p.JointType() != j.typ {
		return fmt.Errorf("%w: %v params on %v joint", ErrJointType, paramsTypeName(p), j.typ)
	}
	if err := j.solver.setParams(p, j.world.ctx.scale); err != nil {
		return err
	}
	j.collide = p.collide()
	j.constraint.SetCollideBodies(j.collide)
	j.wake()
	return nil
}

// ReactionForce returns the constraint force in world units for the given
// inverse time step, conventionally 1/lastDT.
func (j *Joint) ReactionForce(invDT float64) cp.Vector {
	return j.solver.reactionForce(invDT).Mult(j.world.ctx.invScale)
}

// ReactionTorque returns the constraint torque for the given inverse time
// step.
func (j *Joint) ReactionTorque(invDT float64) float64 {
	return j.solver.reactionTorque(invDT) * j.world.ctx.invScale
}

func (j *Joint) wake() {
	j.bodyA.body.Activate()
	j.bodyB.body.Activate()
}

func paramsTypeName(p JointParams) string {
	if p == nil {
		return "nil"
	}
	return p.JointType().String()
}

// CreateJoint connects two bodies of this world with a constraint of the
// params' type, anchored at world-space points. The kernel solves the
// velocity constraints inside its step; the world runs the position pass
// after each sub-step.
func (w *World) CreateJoint(a *Body, anchorA cp.Vector, b *Body, anchorB cp.Vector, params JointParams) (*Joint, error) {
	if w == nil || w.space == nil || a == nil || b == nil {
		return nil, errors.New("physics: nil world or body")
	}
	if params == nil {
		return nil, errors.New("physics: nil joint params")
	}

	localA := a.body.WorldToLocal(w.ctx.toSim(anchorA))
	localB := b.body.WorldToLocal(w.ctx.toSim(anchorB))

	var solver jointSolver
	switch p := params.(type) {
	case SpringParams:
		solver = newSpringJoint(a.body, b.body, localA, localB, p, w.ctx.scale)
	case FixedParams:
		solver = newFixedJoint(a.body, b.body, localA, localB, p, w.ctx.scale)
	case HingeParams:
		solver = newHingeJoint(a.body, b.body, localA, localB, p, w.ctx.scale)
	case SliderParams:
		solver = newSliderJoint(a.body, b.body, localA, localB, p, w.ctx.scale)
	default:
		return nil, fmt.Errorf("physics: unsupported joint params %T", params)
	}

	j := &Joint{
		world:   w,
		typ:     params.JointType(),
		solver:  solver,
		bodyA:   a,
		bodyB:   b,
		collide: params.collide(),
	}
	j.constraint = cp.NewConstraint(solver, a.body, b.body)
	j.constraint.SetCollideBodies(params.collide())
	j.constraint.UserData = j

	if a.enabled && b.enabled {
		w.space.AddConstraint(j.constraint)
		j.inSpace = true
	}
	w.joints = append(w.joints, j)
	a.joints = append(a.joints, j)
	b.joints = append(b.joints, j)
	j.wake()
	return j, nil
}

// DestroyJoint removes a joint from the world and wakes both bodies. Safe to
// call once per joint; must not run during a step.
func (w *World) DestroyJoint(j *Joint) {
	if w == nil || j == nil || j.world != w {
		return
	}
	if j.inSpace {
		w.space.RemoveConstraint(j.constraint)
		j.inSpace = false
	}
	w.joints = eraseJoint(w.joints, j)
	j.bodyA.joints = eraseJoint(j.bodyA.joints, j)
	j.bodyB.joints = eraseJoint(j.bodyB.joints, j)
	j.wake()
	j.world = nil
}

func eraseJoint(list []*Joint, j *Joint) []*Joint {
	for i, e := range list {
		if e == j {
			list[i] = list[len(list)-1]
			list[len(list)-1] = nil
			return list[:len(list)-1]
		}
	}
	return list
}
