package physics

import (
	"math"

	"github.com/jakecoffman/cp/v2"
)

// fixedJoint is a rope: the bodies move freely until the distance between
// the anchors reaches the maximum length, then the rope pulls taut. The
// impulse is one-sided so the rope never pushes.
type fixedJoint struct {
	a, b *cp.Body

	localAnchorA cp.Vector
	localAnchorB cp.Vector
	maxLength    float64

	// solver state
	u       cp.Vector
	rA, rB  cp.Vector
	length  float64
	mass    float64
	impulse float64

	invMassA, invMassB float64
	invIA, invIB       float64
}

func newFixedJoint(a, b *cp.Body, localA, localB cp.Vector, p FixedParams, scale float64) *fixedJoint {
	return &fixedJoint{
		a:            a,
		b:            b,
		localAnchorA: localA,
		localAnchorB: localB,
		maxLength:    p.MaxLength * scale,
	}
}

func (j *fixedJoint) PreStep(dt float64) {
	j.invMassA, j.invMassB = invMassOf(j.a), invMassOf(j.b)
	j.invIA, j.invIB = invMomentOf(j.a), invMomentOf(j.b)

	j.rA = j.localAnchorA.Rotate(j.a.Rotation())
	j.rB = j.localAnchorB.Rotate(j.b.Rotation())
	j.u = j.b.Position().Add(j.rB).Sub(j.a.Position().Add(j.rA))

	j.length = j.u.Length()
	if j.length > linearSlop {
		j.u = j.u.Mult(1.0 / j.length)
	} else {
		j.u = cp.Vector{}
		j.mass = 0
		j.impulse = 0
		return
	}

	crA := j.rA.Cross(j.u)
	crB := j.rB.Cross(j.u)
	invMass := j.invMassA + j.invIA*crA*crA + j.invMassB + j.invIB*crB*crB
	if invMass != 0 {
		j.mass = 1.0 / invMass
	} else {
		j.mass = 0
	}
}

func (j *fixedJoint) ApplyCachedImpulse(dtCoef float64) {
	j.impulse *= dtCoef
	j.applyImpulse(j.u.Mult(j.impulse))
}

func (j *fixedJoint) ApplyImpulse(dt float64) {
	vpA := j.a.Velocity().Add(crossSV(j.a.AngularVelocity(), j.rA))
	vpB := j.b.Velocity().Add(crossSV(j.b.AngularVelocity(), j.rB))

	c := j.length - j.maxLength
	cdot := j.u.Dot(vpB.Sub(vpA))
	// Predictive constraint: start pulling before the rope goes taut.
	if c < 0 && dt > 0 {
		cdot += c / dt
	}

	impulse := -j.mass * cdot
	oldImpulse := j.impulse
	j.impulse = math.Min(0, j.impulse+impulse)
	impulse = j.impulse - oldImpulse
	j.applyImpulse(j.u.Mult(impulse))
}

func (j *fixedJoint) GetImpulse() float64 {
	return math.Abs(j.impulse)
}

func (j *fixedJoint) applyImpulse(p cp.Vector) {
	j.a.SetVelocityVector(j.a.Velocity().Sub(p.Mult(j.invMassA)))
	j.a.SetAngularVelocity(j.a.AngularVelocity() - j.invIA*j.rA.Cross(p))
	j.b.SetVelocityVector(j.b.Velocity().Add(p.Mult(j.invMassB)))
	j.b.SetAngularVelocity(j.b.AngularVelocity() + j.invIB*j.rB.Cross(p))
}

func (j *fixedJoint) SolvePosition() bool {
	rA := j.localAnchorA.Rotate(j.a.Rotation())
	rB := j.localAnchorB.Rotate(j.b.Rotation())
	u := j.b.Position().Add(rB).Sub(j.a.Position().Add(rA))

	length := u.Length()
	if length > 0 {
		u = u.Mult(1.0 / length)
	}
	// Leave slack or converged ropes untouched so their islands can fall
	// asleep.
	if length-j.maxLength < linearSlop {
		return true
	}
	c := clamp(length-j.maxLength, 0, maxLinearCorrection)

	impulse := -j.mass * c
	p := u.Mult(impulse)

	j.a.SetPosition(j.a.Position().Sub(p.Mult(j.invMassA)))
	j.a.SetAngle(j.a.Angle() - j.invIA*rA.Cross(p))
	j.b.SetPosition(j.b.Position().Add(p.Mult(j.invMassB)))
	j.b.SetAngle(j.b.Angle() + j.invIB*rB.Cross(p))

	return false
}

func (j *fixedJoint) params(invScale float64) JointParams {
	return FixedParams{
		MaxLength: j.maxLength * invScale,
	}
}

func (j *fixedJoint) setParams(p JointParams, scale float64) error {
	fp, ok := p.(FixedParams)
	if !ok {
		return ErrJointType
	}
	j.maxLength = fp.MaxLength * scale
	return nil
}

func (j *fixedJoint) reactionForce(invDT float64) cp.Vector {
	return j.u.Mult(j.impulse * invDT)
}

func (j *fixedJoint) reactionTorque(invDT float64) float64 {
	return 0
}
