package physics

import (
	"math"

	"github.com/jakecoffman/cp/v2"
)

// sliderJoint constrains body B to translate along an axis fixed in body A's
// frame, with relative rotation locked to the reference angle. Translation
// limits and a linear motor ride on the same 3x3 block as the two holding
// rows.
type sliderJoint struct {
	a, b *cp.Body

	localAnchorA     cp.Vector
	localAnchorB     cp.Vector
	localXAxisA      cp.Vector
	localYAxisA      cp.Vector
	referenceAngle   float64
	lowerTranslation float64
	upperTranslation float64
	maxMotorForce    float64
	motorSpeed       float64
	enableLimit      bool
	enableMotor      bool

	// solver state
	axis, perp   cp.Vector
	s1, s2       float64
	a1, a2       float64
	impulse      vec3
	motorImpulse float64
	motorMass    float64
	k            mat33
	state        limitState

	invMassA, invMassB float64
	invIA, invIB       float64
}

func newSliderJoint(a, b *cp.Body, localA, localB cp.Vector, p SliderParams, scale float64) *sliderJoint {
	axis := p.LocalAxisA
	if axis.Length() > 0 {
		axis = axis.Normalize()
	} else {
		axis = cp.Vector{X: 1}
	}
	return &sliderJoint{
		a:                a,
		b:                b,
		localAnchorA:     localA,
		localAnchorB:     localB,
		localXAxisA:      axis,
		localYAxisA:      axis.Perp(),
		referenceAngle:   p.ReferenceAngle,
		lowerTranslation: p.LowerTranslation * scale,
		upperTranslation: p.UpperTranslation * scale,
		maxMotorForce:    p.MaxMotorForce * scale,
		motorSpeed:       p.MotorSpeed,
		enableLimit:      p.EnableLimit,
		enableMotor:      p.EnableMotor,
	}
}

// separation returns the anchor-to-anchor vector in world space.
func (j *sliderJoint) separation() cp.Vector {
	rA := j.localAnchorA.Rotate(j.a.Rotation())
	rB := j.localAnchorB.Rotate(j.b.Rotation())
	return j.b.Position().Add(rB).Sub(j.a.Position().Add(rA))
}

func (j *sliderJoint) PreStep(dt float64) {
	j.invMassA, j.invMassB = invMassOf(j.a), invMassOf(j.b)
	j.invIA, j.invIB = invMomentOf(j.a), invMomentOf(j.b)

	rA := j.localAnchorA.Rotate(j.a.Rotation())
	rB := j.localAnchorB.Rotate(j.b.Rotation())
	d := j.b.Position().Add(rB).Sub(j.a.Position().Add(rA))

	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB

	j.axis = j.localXAxisA.Rotate(j.a.Rotation())
	j.a1 = d.Add(rA).Cross(j.axis)
	j.a2 = rB.Cross(j.axis)

	j.motorMass = mA + mB + iA*j.a1*j.a1 + iB*j.a2*j.a2
	if j.motorMass > 0 {
		j.motorMass = 1.0 / j.motorMass
	}

	j.perp = j.localYAxisA.Rotate(j.a.Rotation())
	j.s1 = d.Add(rA).Cross(j.perp)
	j.s2 = rB.Cross(j.perp)

	k11 := mA + mB + iA*j.s1*j.s1 + iB*j.s2*j.s2
	k12 := iA*j.s1 + iB*j.s2
	k13 := iA*j.s1*j.a1 + iB*j.s2*j.a2
	k22 := iA + iB
	if k22 == 0 {
		// Both bodies have locked rotation; keep the angular row solvable.
		k22 = 1
	}
	k23 := iA*j.a1 + iB*j.a2
	k33 := mA + mB + iA*j.a1*j.a1 + iB*j.a2*j.a2

	j.k.ex = vec3{k11, k12, k13}
	j.k.ey = vec3{k12, k22, k23}
	j.k.ez = vec3{k13, k23, k33}

	if j.enableLimit {
		translation := j.axis.Dot(d)
		switch {
		case math.Abs(j.upperTranslation-j.lowerTranslation) < 2*linearSlop:
			j.state = limitEqual
		case translation <= j.lowerTranslation:
			if j.state != limitAtLower {
				j.state = limitAtLower
				j.impulse.z = 0
			}
		case translation >= j.upperTranslation:
			if j.state != limitAtUpper {
				j.state = limitAtUpper
				j.impulse.z = 0
			}
		default:
			j.state = limitInactive
			j.impulse.z = 0
		}
	} else {
		j.state = limitInactive
		j.impulse.z = 0
	}

	if !j.enableMotor {
		j.motorImpulse = 0
	}
}

func (j *sliderJoint) ApplyCachedImpulse(dtCoef float64) {
	j.impulse = vec3{j.impulse.x * dtCoef, j.impulse.y * dtCoef, j.impulse.z * dtCoef}
	j.motorImpulse *= dtCoef

	p := j.perp.Mult(j.impulse.x).Add(j.axis.Mult(j.motorImpulse + j.impulse.z))
	la := j.impulse.x*j.s1 + j.impulse.y + (j.motorImpulse+j.impulse.z)*j.a1
	lb := j.impulse.x*j.s2 + j.impulse.y + (j.motorImpulse+j.impulse.z)*j.a2

	j.a.SetVelocityVector(j.a.Velocity().Sub(p.Mult(j.invMassA)))
	j.a.SetAngularVelocity(j.a.AngularVelocity() - j.invIA*la)
	j.b.SetVelocityVector(j.b.Velocity().Add(p.Mult(j.invMassB)))
	j.b.SetAngularVelocity(j.b.AngularVelocity() + j.invIB*lb)
}

func (j *sliderJoint) ApplyImpulse(dt float64) {
	if j.enableMotor && j.state != limitEqual {
		cdot := j.axis.Dot(j.b.Velocity().Sub(j.a.Velocity())) +
			j.a2*j.b.AngularVelocity() - j.a1*j.a.AngularVelocity()
		impulse := j.motorMass * (j.motorSpeed - cdot)
		oldImpulse := j.motorImpulse
		maxImpulse := j.maxMotorForce * dt
		j.motorImpulse = clamp(j.motorImpulse+impulse, -maxImpulse, maxImpulse)
		impulse = j.motorImpulse - oldImpulse

		p := j.axis.Mult(impulse)
		j.a.SetVelocityVector(j.a.Velocity().Sub(p.Mult(j.invMassA)))
		j.a.SetAngularVelocity(j.a.AngularVelocity() - j.invIA*impulse*j.a1)
		j.b.SetVelocityVector(j.b.Velocity().Add(p.Mult(j.invMassB)))
		j.b.SetAngularVelocity(j.b.AngularVelocity() + j.invIB*impulse*j.a2)
	}

	cdot1 := cp.Vector{
		X: j.perp.Dot(j.b.Velocity().Sub(j.a.Velocity())) +
			j.s2*j.b.AngularVelocity() - j.s1*j.a.AngularVelocity(),
		Y: j.b.AngularVelocity() - j.a.AngularVelocity(),
	}

	if j.enableLimit && j.state != limitInactive {
		cdot2 := j.axis.Dot(j.b.Velocity().Sub(j.a.Velocity())) +
			j.a2*j.b.AngularVelocity() - j.a1*j.a.AngularVelocity()

		f1 := j.impulse
		df := j.k.solve33(vec3{cdot1.X, cdot1.Y, cdot2}.neg())
		j.impulse = j.impulse.add(df)

		if j.state == limitAtLower {
			j.impulse.z = math.Max(j.impulse.z, 0)
		} else if j.state == limitAtUpper {
			j.impulse.z = math.Min(j.impulse.z, 0)
		}

		// Recompute the holding rows for the clamped limit impulse.
		b := cdot1.Neg().Sub(cp.Vector{X: j.k.ez.x, Y: j.k.ez.y}.Mult(j.impulse.z - f1.z))
		f2 := j.k.solve22(b).Add(cp.Vector{X: f1.x, Y: f1.y})
		j.impulse.x = f2.X
		j.impulse.y = f2.Y

		df = j.impulse.sub(f1)

		p := j.perp.Mult(df.x).Add(j.axis.Mult(df.z))
		la := df.x*j.s1 + df.y + df.z*j.a1
		lb := df.x*j.s2 + df.y + df.z*j.a2

		j.a.SetVelocityVector(j.a.Velocity().Sub(p.Mult(j.invMassA)))
		j.a.SetAngularVelocity(j.a.AngularVelocity() - j.invIA*la)
		j.b.SetVelocityVector(j.b.Velocity().Add(p.Mult(j.invMassB)))
		j.b.SetAngularVelocity(j.b.AngularVelocity() + j.invIB*lb)
	} else {
		df := j.k.solve22(cdot1.Neg())
		j.impulse.x += df.X
		j.impulse.y += df.Y

		p := j.perp.Mult(df.X)
		la := df.X*j.s1 + df.Y
		lb := df.X*j.s2 + df.Y

		j.a.SetVelocityVector(j.a.Velocity().Sub(p.Mult(j.invMassA)))
		j.a.SetAngularVelocity(j.a.AngularVelocity() - j.invIA*la)
		j.b.SetVelocityVector(j.b.Velocity().Add(p.Mult(j.invMassB)))
		j.b.SetAngularVelocity(j.b.AngularVelocity() + j.invIB*lb)
	}
}

func (j *sliderJoint) GetImpulse() float64 {
	return math.Abs(j.impulse.x)
}

func (j *sliderJoint) SolvePosition() bool {
	rA := j.localAnchorA.Rotate(j.a.Rotation())
	rB := j.localAnchorB.Rotate(j.b.Rotation())
	d := j.b.Position().Add(rB).Sub(j.a.Position().Add(rA))

	mA, mB := j.invMassA, j.invMassB
	iA, iB := j.invIA, j.invIB

	axis := j.localXAxisA.Rotate(j.a.Rotation())
	a1 := d.Add(rA).Cross(axis)
	a2 := rB.Cross(axis)
	perp := j.localYAxisA.Rotate(j.a.Rotation())
	s1 := d.Add(rA).Cross(perp)
	s2 := rB.Cross(perp)

	c1 := cp.Vector{
		X: perp.Dot(d),
		Y: j.b.Angle() - j.a.Angle() - j.referenceAngle,
	}

	linearError := math.Abs(c1.X)
	angularError := math.Abs(c1.Y)

	active := false
	c2 := 0.0
	if j.enableLimit {
		translation := axis.Dot(d)
		switch {
		case math.Abs(j.upperTranslation-j.lowerTranslation) < 2*linearSlop:
			c2 = clamp(translation, -maxLinearCorrection, maxLinearCorrection)
			linearError = math.Max(linearError, math.Abs(translation))
			active = true
		case translation <= j.lowerTranslation:
			c2 = clamp(translation-j.lowerTranslation+linearSlop, -maxLinearCorrection, 0)
			linearError = math.Max(linearError, j.lowerTranslation-translation)
			active = true
		case translation >= j.upperTranslation:
			c2 = clamp(translation-j.upperTranslation-linearSlop, 0, maxLinearCorrection)
			linearError = math.Max(linearError, translation-j.upperTranslation)
			active = true
		}
	}

	// Leave converged bodies untouched so their islands can fall asleep.
	if linearError <= linearSlop && angularError <= angularSlop {
		return true
	}

	var impulse vec3
	if active {
		k11 := mA + mB + iA*s1*s1 + iB*s2*s2
		k12 := iA*s1 + iB*s2
		k13 := iA*s1*a1 + iB*s2*a2
		k22 := iA + iB
		if k22 == 0 {
			k22 = 1
		}
		k23 := iA*a1 + iB*a2
		k33 := mA + mB + iA*a1*a1 + iB*a2*a2

		k := mat33{
			ex: vec3{k11, k12, k13},
			ey: vec3{k12, k22, k23},
			ez: vec3{k13, k23, k33},
		}
		impulse = k.solve33(vec3{c1.X, c1.Y, c2}.neg())
	} else {
		k11 := mA + mB + iA*s1*s1 + iB*s2*s2
		k12 := iA*s1 + iB*s2
		k22 := iA + iB
		if k22 == 0 {
			k22 = 1
		}

		k := mat33{
			ex: vec3{x: k11, y: k12},
			ey: vec3{x: k12, y: k22},
		}
		reduced := k.solve22(c1.Neg())
		impulse.x = reduced.X
		impulse.y = reduced.Y
	}

	p := perp.Mult(impulse.x).Add(axis.Mult(impulse.z))
	la := impulse.x*s1 + impulse.y + impulse.z*a1
	lb := impulse.x*s2 + impulse.y + impulse.z*a2

	j.a.SetPosition(j.a.Position().Sub(p.Mult(mA)))
	j.a.SetAngle(j.a.Angle() - iA*la)
	j.b.SetPosition(j.b.Position().Add(p.Mult(mB)))
	j.b.SetAngle(j.b.Angle() + iB*lb)

	return false
}

func (j *sliderJoint) params(invScale float64) JointParams {
	d := j.separation()
	axis := j.localXAxisA.Rotate(j.a.Rotation())
	speed := axis.Dot(j.b.Velocity().Sub(j.a.Velocity())) +
		j.a2*j.b.AngularVelocity() - j.a1*j.a.AngularVelocity()

	return SliderParams{
		LocalAxisA:       j.localXAxisA,
		ReferenceAngle:   j.referenceAngle,
		EnableLimit:      j.enableLimit,
		LowerTranslation: j.lowerTranslation * invScale,
		UpperTranslation: j.upperTranslation * invScale,
		EnableMotor:      j.enableMotor,
		MaxMotorForce:    j.maxMotorForce * invScale,
		MotorSpeed:       j.motorSpeed,

		JointTranslation: axis.Dot(d) * invScale,
		JointSpeed:       speed,
	}
}

func (j *sliderJoint) setParams(p JointParams, scale float64) error {
	sp, ok := p.(SliderParams)
	if !ok {
		return ErrJointType
	}
	j.enableLimit = sp.EnableLimit
	j.lowerTranslation = sp.LowerTranslation * scale
	j.upperTranslation = sp.UpperTranslation * scale
	j.enableMotor = sp.EnableMotor
	j.maxMotorForce = sp.MaxMotorForce * scale
	j.motorSpeed = sp.MotorSpeed
	return nil
}

func (j *sliderJoint) reactionForce(invDT float64) cp.Vector {
	return j.perp.Mult(j.impulse.x).Add(j.axis.Mult(j.motorImpulse + j.impulse.z)).Mult(invDT)
}

func (j *sliderJoint) reactionTorque(invDT float64) float64 {
	return j.impulse.y * invDT
}
