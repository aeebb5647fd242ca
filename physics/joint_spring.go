package physics

import (
	"math"

	"github.com/jakecoffman/cp/v2"
)

// springJoint keeps two anchor points at a rest length. With a frequency it
// behaves as a damped harmonic oscillator solved as a soft constraint; with
// frequency zero the distance is rigid.
type springJoint struct {
	a, b *cp.Body

	localAnchorA cp.Vector
	localAnchorB cp.Vector
	length       float64
	frequencyHz  float64
	dampingRatio float64

	// solver state
	u       cp.Vector
	rA, rB  cp.Vector
	mass    float64
	gamma   float64
	bias    float64
	impulse float64

	invMassA, invMassB float64
	invIA, invIB       float64
}

func newSpringJoint(a, b *cp.Body, localA, localB cp.Vector, p SpringParams, scale float64) *springJoint {
	return &springJoint{
		a:            a,
		b:            b,
		localAnchorA: localA,
		localAnchorB: localB,
		length:       p.Length * scale,
		frequencyHz:  p.FrequencyHz,
		dampingRatio: p.DampingRatio,
	}
}

func (j *springJoint) PreStep(dt float64) {
	j.invMassA, j.invMassB = invMassOf(j.a), invMassOf(j.b)
	j.invIA, j.invIB = invMomentOf(j.a), invMomentOf(j.b)

	j.rA = j.localAnchorA.Rotate(j.a.Rotation())
	j.rB = j.localAnchorB.Rotate(j.b.Rotation())
	j.u = j.b.Position().Add(j.rB).Sub(j.a.Position().Add(j.rA))

	length := j.u.Length()
	if length > linearSlop {
		j.u = j.u.Mult(1.0 / length)
	} else {
		j.u = cp.Vector{}
	}

	crA := j.rA.Cross(j.u)
	crB := j.rB.Cross(j.u)
	invMass := j.invMassA + j.invIA*crA*crA + j.invMassB + j.invIB*crB*crB
	if invMass != 0 {
		j.mass = 1.0 / invMass
	} else {
		j.mass = 0
	}

	if j.frequencyHz > 0 {
		c := length - j.length
		omega := 2 * math.Pi * j.frequencyHz
		d := 2 * j.mass * j.dampingRatio * omega
		k := j.mass * omega * omega
		j.gamma = dt * (d + dt*k)
		if j.gamma != 0 {
			j.gamma = 1.0 / j.gamma
		}
		j.bias = c * dt * k * j.gamma
		invMass += j.gamma
		if invMass != 0 {
			j.mass = 1.0 / invMass
		} else {
			j.mass = 0
		}
	} else {
		j.gamma = 0
		j.bias = 0
	}
}

func (j *springJoint) ApplyCachedImpulse(dtCoef float64) {
	j.impulse *= dtCoef
	p := j.u.Mult(j.impulse)
	j.applyImpulse(p)
}

func (j *springJoint) ApplyImpulse(dt float64) {
	vpA := j.a.Velocity().Add(crossSV(j.a.AngularVelocity(), j.rA))
	vpB := j.b.Velocity().Add(crossSV(j.b.AngularVelocity(), j.rB))
	cdot := j.u.Dot(vpB.Sub(vpA))

	impulse := -j.mass * (cdot + j.bias + j.gamma*j.impulse)
	j.impulse += impulse
	j.applyImpulse(j.u.Mult(impulse))
}

func (j *springJoint) GetImpulse() float64 {
	return math.Abs(j.impulse)
}

func (j *springJoint) applyImpulse(p cp.Vector) {
	j.a.SetVelocityVector(j.a.Velocity().Sub(p.Mult(j.invMassA)))
	j.a.SetAngularVelocity(j.a.AngularVelocity() - j.invIA*j.rA.Cross(p))
	j.b.SetVelocityVector(j.b.Velocity().Add(p.Mult(j.invMassB)))
	j.b.SetAngularVelocity(j.b.AngularVelocity() + j.invIB*j.rB.Cross(p))
}

func (j *springJoint) SolvePosition() bool {
	// Soft springs carry their error in the velocity bias instead.
	if j.frequencyHz > 0 {
		return true
	}

	rA := j.localAnchorA.Rotate(j.a.Rotation())
	rB := j.localAnchorB.Rotate(j.b.Rotation())
	u := j.b.Position().Add(rB).Sub(j.a.Position().Add(rA))

	length := u.Length()
	if length > 0 {
		u = u.Mult(1.0 / length)
	}
	c := clamp(length-j.length, -maxLinearCorrection, maxLinearCorrection)
	// Leave converged bodies untouched so their islands can fall asleep.
	if math.Abs(c) < linearSlop {
		return true
	}

	impulse := -j.mass * c
	p := u.Mult(impulse)

	j.a.SetPosition(j.a.Position().Sub(p.Mult(j.invMassA)))
	j.a.SetAngle(j.a.Angle() - j.invIA*rA.Cross(p))
	j.b.SetPosition(j.b.Position().Add(p.Mult(j.invMassB)))
	j.b.SetAngle(j.b.Angle() + j.invIB*rB.Cross(p))

	return false
}

func (j *springJoint) params(invScale float64) JointParams {
	return SpringParams{
		Length:       j.length * invScale,
		FrequencyHz:  j.frequencyHz,
		DampingRatio: j.dampingRatio,
	}
}

func (j *springJoint) setParams(p JointParams, scale float64) error {
	sp, ok := p.(SpringParams)
	if !ok {
		return ErrJointType
	}
	j.length = sp.Length * scale
	j.frequencyHz = sp.FrequencyHz
	j.dampingRatio = sp.DampingRatio
	return nil
}

func (j *springJoint) reactionForce(invDT float64) cp.Vector {
	return j.u.Mult(j.impulse * invDT)
}

func (j *springJoint) reactionTorque(invDT float64) float64 {
	return 0
}
