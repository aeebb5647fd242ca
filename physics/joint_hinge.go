package physics

import (
	"math"

	"github.com/jakecoffman/cp/v2"
)

// hingeJoint pins two bodies at a shared point and leaves relative rotation
// free, optionally bounded by angular limits and driven by a motor. The
// point-to-point and limit rows solve as one 3x3 block so the limit cannot
// fight the pin.
type hingeJoint struct {
	a, b *cp.Body

	localAnchorA   cp.Vector
	localAnchorB   cp.Vector
	referenceAngle float64
	lowerAngle     float64
	upperAngle     float64
	maxMotorTorque float64
	motorSpeed     float64
	enableLimit    bool
	enableMotor    bool

	// solver state
	rA, rB       cp.Vector
	impulse      vec3
	motorImpulse float64
	mass         mat33
	motorMass    float64
	state        limitState

	invMassA, invMassB float64
	invIA, invIB       float64
}

func newHingeJoint(a, b *cp.Body, localA, localB cp.Vector, p HingeParams, scale float64) *hingeJoint {
	return &hingeJoint{
		a:              a,
		b:              b,
		localAnchorA:   localA,
		localAnchorB:   localB,
		referenceAngle: p.ReferenceAngle,
		lowerAngle:     p.LowerAngle,
		upperAngle:     p.UpperAngle,
		maxMotorTorque: p.MaxMotorTorque * scale,
		motorSpeed:     p.MotorSpeed,
		enableLimit:    p.EnableLimit,
		enableMotor:    p.EnableMotor,
	}
}

func (j *hingeJoint) jointAngle() float64 {
	return j.b.Angle() - j.a.Angle() - j.referenceAngle
}

func (j *hingeJoint) fixedRotation() bool {
	return j.invIA+j.invIB == 0
}

func (j *hingeJoint) PreStep(dt float64) {
	j.invMassA, j.invMassB = invMassOf(j.a), invMassOf(j.b)
	j.invIA, j.invIB = invMomentOf(j.a), invMomentOf(j.b)

	j.rA = j.localAnchorA.Rotate(j.a.Rotation())
	j.rB = j.localAnchorB.Rotate(j.b.Rotation())

	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB

	j.mass.ex.x = mA + mB + j.rA.Y*j.rA.Y*iA + j.rB.Y*j.rB.Y*iB
	j.mass.ey.x = -j.rA.Y*j.rA.X*iA - j.rB.Y*j.rB.X*iB
	j.mass.ez.x = -j.rA.Y*iA - j.rB.Y*iB
	j.mass.ex.y = j.mass.ey.x
	j.mass.ey.y = mA + mB + j.rA.X*j.rA.X*iA + j.rB.X*j.rB.X*iB
	j.mass.ez.y = j.rA.X*iA + j.rB.X*iB
	j.mass.ex.z = j.mass.ez.x
	j.mass.ey.z = j.mass.ez.y
	j.mass.ez.z = iA + iB

	j.motorMass = iA + iB
	if j.motorMass > 0 {
		j.motorMass = 1.0 / j.motorMass
	}

	if !j.enableMotor || j.fixedRotation() {
		j.motorImpulse = 0
	}

	if j.enableLimit && !j.fixedRotation() {
		angle := j.jointAngle()
		switch {
		case math.Abs(j.upperAngle-j.lowerAngle) < 2*angularSlop:
			j.state = limitEqual
		case angle <= j.lowerAngle:
			if j.state != limitAtLower {
				j.impulse.z = 0
			}
			j.state = limitAtLower
		case angle >= j.upperAngle:
			if j.state != limitAtUpper {
				j.impulse.z = 0
			}
			j.state = limitAtUpper
		default:
			j.state = limitInactive
			j.impulse.z = 0
		}
	} else {
		j.state = limitInactive
	}
}

func (j *hingeJoint) ApplyCachedImpulse(dtCoef float64) {
	j.impulse = vec3{j.impulse.x * dtCoef, j.impulse.y * dtCoef, j.impulse.z * dtCoef}
	j.motorImpulse *= dtCoef

	p := cp.Vector{X: j.impulse.x, Y: j.impulse.y}
	j.a.SetVelocityVector(j.a.Velocity().Sub(p.Mult(j.invMassA)))
	j.a.SetAngularVelocity(j.a.AngularVelocity() - j.invIA*(j.rA.Cross(p)+j.motorImpulse+j.impulse.z))
	j.b.SetVelocityVector(j.b.Velocity().Add(p.Mult(j.invMassB)))
	j.b.SetAngularVelocity(j.b.AngularVelocity() + j.invIB*(j.rB.Cross(p)+j.motorImpulse+j.impulse.z))
}

func (j *hingeJoint) ApplyImpulse(dt float64) {
	fixed := j.fixedRotation()

	if j.enableMotor && j.state != limitEqual && !fixed {
		cdot := j.b.AngularVelocity() - j.a.AngularVelocity() - j.motorSpeed
		impulse := -j.motorMass * cdot
		oldImpulse := j.motorImpulse
		maxImpulse := j.maxMotorTorque * dt
		j.motorImpulse = clamp(j.motorImpulse+impulse, -maxImpulse, maxImpulse)
		impulse = j.motorImpulse - oldImpulse

		j.a.SetAngularVelocity(j.a.AngularVelocity() - j.invIA*impulse)
		j.b.SetAngularVelocity(j.b.AngularVelocity() + j.invIB*impulse)
	}

	if j.enableLimit && j.state != limitInactive && !fixed {
		cdot1 := j.b.Velocity().Add(crossSV(j.b.AngularVelocity(), j.rB)).
			Sub(j.a.Velocity()).Sub(crossSV(j.a.AngularVelocity(), j.rA))
		cdot2 := j.b.AngularVelocity() - j.a.AngularVelocity()
		impulse := j.mass.solve33(vec3{cdot1.X, cdot1.Y, cdot2}).neg()

		switch j.state {
		case limitEqual:
			j.impulse = j.impulse.add(impulse)
		case limitAtLower:
			if j.impulse.z+impulse.z < 0 {
				rhs := cdot1.Neg().Add(cp.Vector{X: j.mass.ez.x, Y: j.mass.ez.y}.Mult(j.impulse.z))
				reduced := j.mass.solve22(rhs)
				impulse.x = reduced.X
				impulse.y = reduced.Y
				impulse.z = -j.impulse.z
				j.impulse.x += reduced.X
				j.impulse.y += reduced.Y
				j.impulse.z = 0
			} else {
				j.impulse = j.impulse.add(impulse)
			}
		case limitAtUpper:
			if j.impulse.z+impulse.z > 0 {
				rhs := cdot1.Neg().Add(cp.Vector{X: j.mass.ez.x, Y: j.mass.ez.y}.Mult(j.impulse.z))
				reduced := j.mass.solve22(rhs)
				impulse.x = reduced.X
				impulse.y = reduced.Y
				impulse.z = -j.impulse.z
				j.impulse.x += reduced.X
				j.impulse.y += reduced.Y
				j.impulse.z = 0
			} else {
				j.impulse = j.impulse.add(impulse)
			}
		}

		p := cp.Vector{X: impulse.x, Y: impulse.y}
		j.a.SetVelocityVector(j.a.Velocity().Sub(p.Mult(j.invMassA)))
		j.a.SetAngularVelocity(j.a.AngularVelocity() - j.invIA*(j.rA.Cross(p)+impulse.z))
		j.b.SetVelocityVector(j.b.Velocity().Add(p.Mult(j.invMassB)))
		j.b.SetAngularVelocity(j.b.AngularVelocity() + j.invIB*(j.rB.Cross(p)+impulse.z))
	} else {
		cdot := j.b.Velocity().Add(crossSV(j.b.AngularVelocity(), j.rB)).
			Sub(j.a.Velocity()).Sub(crossSV(j.a.AngularVelocity(), j.rA))
		impulse := j.mass.solve22(cdot.Neg())
		j.impulse.x += impulse.X
		j.impulse.y += impulse.Y

		j.a.SetVelocityVector(j.a.Velocity().Sub(impulse.Mult(j.invMassA)))
		j.a.SetAngularVelocity(j.a.AngularVelocity() - j.invIA*j.rA.Cross(impulse))
		j.b.SetVelocityVector(j.b.Velocity().Add(impulse.Mult(j.invMassB)))
		j.b.SetAngularVelocity(j.b.AngularVelocity() + j.invIB*j.rB.Cross(impulse))
	}
}

func (j *hingeJoint) GetImpulse() float64 {
	return math.Sqrt(j.impulse.x*j.impulse.x + j.impulse.y*j.impulse.y)
}

func (j *hingeJoint) SolvePosition() bool {
	var angularError, limitImpulse float64

	if j.enableLimit && j.state != limitInactive && !j.fixedRotation() {
		angle := j.jointAngle()
		switch j.state {
		case limitEqual:
			c := clamp(angle-j.lowerAngle, -maxAngularCorrection, maxAngularCorrection)
			limitImpulse = -j.motorMass * c
			angularError = math.Abs(c)
		case limitAtLower:
			c := angle - j.lowerAngle
			angularError = -c
			c = clamp(c+angularSlop, -maxAngularCorrection, 0)
			limitImpulse = -j.motorMass * c
		case limitAtUpper:
			c := angle - j.upperAngle
			angularError = c
			c = clamp(c-angularSlop, 0, maxAngularCorrection)
			limitImpulse = -j.motorMass * c
		}
	}

	rA := j.localAnchorA.Rotate(j.a.Rotation())
	rB := j.localAnchorB.Rotate(j.b.Rotation())
	c := j.b.Position().Add(rB).Sub(j.a.Position().Add(rA))

	// Leave converged bodies untouched so their islands can fall asleep.
	if c.Length() <= linearSlop && angularError <= angularSlop {
		return true
	}

	if limitImpulse != 0 {
		j.a.SetAngle(j.a.Angle() - j.invIA*limitImpulse)
		j.b.SetAngle(j.b.Angle() + j.invIB*limitImpulse)
		rA = j.localAnchorA.Rotate(j.a.Rotation())
		rB = j.localAnchorB.Rotate(j.b.Rotation())
		c = j.b.Position().Add(rB).Sub(j.a.Position().Add(rA))
	}

	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB

	var k mat33
	k.ex.x = mA + mB + iA*rA.Y*rA.Y + iB*rB.Y*rB.Y
	k.ex.y = -iA*rA.X*rA.Y - iB*rB.X*rB.Y
	k.ey.x = k.ex.y
	k.ey.y = mA + mB + iA*rA.X*rA.X + iB*rB.X*rB.X

	impulse := k.solve22(c).Neg()
	j.a.SetPosition(j.a.Position().Sub(impulse.Mult(mA)))
	j.a.SetAngle(j.a.Angle() - iA*rA.Cross(impulse))
	j.b.SetPosition(j.b.Position().Add(impulse.Mult(mB)))
	j.b.SetAngle(j.b.Angle() + iB*rB.Cross(impulse))

	return false
}

func (j *hingeJoint) params(invScale float64) JointParams {
	return HingeParams{
		ReferenceAngle: j.referenceAngle,
		LowerAngle:     j.lowerAngle,
		UpperAngle:     j.upperAngle,
		MaxMotorTorque: j.maxMotorTorque * invScale,
		MotorSpeed:     j.motorSpeed,
		EnableLimit:    j.enableLimit,
		EnableMotor:    j.enableMotor,

		JointAngle: j.jointAngle(),
		JointSpeed: j.b.AngularVelocity() - j.a.AngularVelocity(),
	}
}

func (j *hingeJoint) setParams(p JointParams, scale float64) error {
	hp, ok := p.(HingeParams)
	if !ok {
		return ErrJointType
	}
	if hp.EnableLimit != j.enableLimit {
		j.impulse.z = 0
	}
	j.lowerAngle = hp.LowerAngle
	j.upperAngle = hp.UpperAngle
	j.maxMotorTorque = hp.MaxMotorTorque * scale
	j.motorSpeed = hp.MotorSpeed
	j.enableLimit = hp.EnableLimit
	j.enableMotor = hp.EnableMotor
	return nil
}

func (j *hingeJoint) reactionForce(invDT float64) cp.Vector {
	return cp.Vector{X: j.impulse.x, Y: j.impulse.y}.Mult(invDT)
}

func (j *hingeJoint) reactionTorque(invDT float64) float64 {
	return j.impulse.z * invDT
}
