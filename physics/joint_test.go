package physics

import (
	"errors"
	"math"
	"testing"

	"github.com/jakecoffman/cp/v2"
)

func anchorBodyAt(t *testing.T, w *World, pos cp.Vector) *Body {
	t.Helper()
	b, err := w.CreateBody(BodyDef{
		Type: BodyStatic, Group: 1, Mask: 0xffff, Enabled: true,
		Shapes: []ShapeDef{BoxShape{W: 0.2, H: 0.2}},
	})
	if err != nil {
		t.Fatalf("CreateBody static: %v", err)
	}
	b.SetWorldPosition(pos)
	return b
}

func ballBodyAt(t *testing.T, w *World, pos cp.Vector) *Body {
	t.Helper()
	b, err := w.CreateBody(BodyDef{
		Type: BodyDynamic, Mass: 1, Group: 1, Mask: 0xffff, Enabled: true,
		Shapes: []ShapeDef{CircleShape{Radius: 0.5}},
	})
	if err != nil {
		t.Fatalf("CreateBody dynamic: %v", err)
	}
	b.SetWorldPosition(pos)
	return b
}

func TestSpringJointRigid(t *testing.T) {
	ctx := newTestContext(t, func(s *Settings) { s.Gravity = cp.Vector{} })
	w := newTestWorld(t, ctx, WorldDef{})

	anchor := anchorBodyAt(t, w, cp.Vector{})
	ball := ballBodyAt(t, w, cp.Vector{X: 3})

	j, err := w.CreateJoint(anchor, cp.Vector{}, ball, cp.Vector{X: 3}, SpringParams{Length: 2})
	if err != nil {
		t.Fatalf("CreateJoint: %v", err)
	}

	for i := 0; i < 10; i++ {
		w.Step(StepArgs{DT: fixedDelta})
	}

	dist := anchor.WorldPosition().Distance(ball.WorldPosition())
	if math.Abs(dist-2) > 0.01 {
		t.Fatalf("expected rigid distance 2, got %v", dist)
	}
	if j.Type() != JointSpring {
		t.Fatalf("expected spring type, got %v", j.Type())
	}
}

func TestSpringJointSoft(t *testing.T) {
	ctx := newTestContext(t, func(s *Settings) { s.Gravity = cp.Vector{} })
	w := newTestWorld(t, ctx, WorldDef{})

	anchor := anchorBodyAt(t, w, cp.Vector{})
	ball := ballBodyAt(t, w, cp.Vector{X: 3})

	_, err := w.CreateJoint(anchor, cp.Vector{}, ball, cp.Vector{X: 3}, SpringParams{
		Length:       2,
		FrequencyHz:  1,
		DampingRatio: 0.7,
	})
	if err != nil {
		t.Fatalf("CreateJoint: %v", err)
	}

	// A soft spring settles instead of snapping.
	w.Step(StepArgs{DT: fixedDelta})
	if d := anchor.WorldPosition().Distance(ball.WorldPosition()); d < 2.5 {
		t.Fatalf("expected soft spring to move gradually, at %v after one step", d)
	}
	for i := 0; i < 300; i++ {
		w.Step(StepArgs{DT: fixedDelta})
	}
	dist := anchor.WorldPosition().Distance(ball.WorldPosition())
	if math.Abs(dist-2) > 0.05 {
		t.Fatalf("expected soft spring to settle at 2, got %v", dist)
	}
}

func TestFixedJointRope(t *testing.T) {
	ctx := newTestContext(t, nil)
	w := newTestWorld(t, ctx, WorldDef{})

	anchor := anchorBodyAt(t, w, cp.Vector{})
	ball := ballBodyAt(t, w, cp.Vector{})

	j, err := w.CreateJoint(anchor, cp.Vector{}, ball, cp.Vector{}, FixedParams{MaxLength: 2})
	if err != nil {
		t.Fatalf("CreateJoint: %v", err)
	}

	// Slack rope: free fall.
	for i := 0; i < 10; i++ {
		w.Step(StepArgs{DT: fixedDelta})
	}
	wantFree := -10 * fixedDelta * fixedDelta * 10 * 9 / 2
	if math.Abs(ball.WorldPosition().Y-wantFree) > 1e-6 {
		t.Fatalf("expected free fall while slack, got y %v want %v", ball.WorldPosition().Y, wantFree)
	}

	// Taut rope: hangs at max length.
	for i := 0; i < 150; i++ {
		w.Step(StepArgs{DT: fixedDelta})
	}
	if y := ball.WorldPosition().Y; math.Abs(y+2) > 0.02 {
		t.Fatalf("expected ball hanging at -2, got %v", y)
	}

	force := j.ReactionForce(1 / w.LastDT()).Length()
	if math.Abs(force-10) > 1 {
		t.Fatalf("expected reaction force near m*g = 10, got %v", force)
	}
}

func TestHingeJointMotor(t *testing.T) {
	ctx := newTestContext(t, func(s *Settings) { s.Gravity = cp.Vector{} })
	w := newTestWorld(t, ctx, WorldDef{})

	base := anchorBodyAt(t, w, cp.Vector{})
	wheel := ballBodyAt(t, w, cp.Vector{})

	j, err := w.CreateJoint(base, cp.Vector{}, wheel, cp.Vector{}, HingeParams{
		EnableMotor:    true,
		MotorSpeed:     2,
		MaxMotorTorque: 100,
	})
	if err != nil {
		t.Fatalf("CreateJoint: %v", err)
	}

	for i := 0; i < 60; i++ {
		w.Step(StepArgs{DT: fixedDelta})
	}

	if got := wheel.AngularVelocity(); math.Abs(got-2) > 0.1 {
		t.Fatalf("expected motor to spin the wheel at 2, got %v", got)
	}
	p, ok := j.Params().(HingeParams)
	if !ok {
		t.Fatalf("expected hinge params, got %T", j.Params())
	}
	if math.Abs(p.JointSpeed-2) > 0.1 {
		t.Fatalf("expected joint speed 2, got %v", p.JointSpeed)
	}
	if p.JointAngle < 1.5 {
		t.Fatalf("expected a full second of spin, angle %v", p.JointAngle)
	}
}

func TestHingeJointLimit(t *testing.T) {
	ctx := newTestContext(t, func(s *Settings) { s.Gravity = cp.Vector{} })
	w := newTestWorld(t, ctx, WorldDef{})

	base := anchorBodyAt(t, w, cp.Vector{})
	wheel := ballBodyAt(t, w, cp.Vector{})

	j, err := w.CreateJoint(base, cp.Vector{}, wheel, cp.Vector{}, HingeParams{
		EnableMotor:    true,
		MotorSpeed:     2,
		MaxMotorTorque: 100,
		EnableLimit:    true,
		LowerAngle:     -0.5,
		UpperAngle:     0.5,
	})
	if err != nil {
		t.Fatalf("CreateJoint: %v", err)
	}

	for i := 0; i < 120; i++ {
		w.Step(StepArgs{DT: fixedDelta})
	}

	p := j.Params().(HingeParams)
	if math.Abs(p.JointAngle-0.5) > 0.05 {
		t.Fatalf("expected motor held at the upper limit, angle %v", p.JointAngle)
	}
	if math.Abs(wheel.AngularVelocity()) > 0.05 {
		t.Fatalf("expected wheel stopped at the limit, spinning at %v", wheel.AngularVelocity())
	}
}

func TestSliderJointMotorAndLimit(t *testing.T) {
	ctx := newTestContext(t, func(s *Settings) { s.Gravity = cp.Vector{} })
	w := newTestWorld(t, ctx, WorldDef{})

	base := anchorBodyAt(t, w, cp.Vector{})
	slider := ballBodyAt(t, w, cp.Vector{})

	j, err := w.CreateJoint(base, cp.Vector{}, slider, cp.Vector{}, SliderParams{
		LocalAxisA:       cp.Vector{X: 1},
		EnableLimit:      true,
		LowerTranslation: -0.5,
		UpperTranslation: 1,
		EnableMotor:      true,
		MotorSpeed:       2,
		MaxMotorForce:    100,
	})
	if err != nil {
		t.Fatalf("CreateJoint: %v", err)
	}

	for i := 0; i < 120; i++ {
		w.Step(StepArgs{DT: fixedDelta})
	}

	pos := slider.WorldPosition()
	if math.Abs(pos.X-1) > 0.02 {
		t.Fatalf("expected slider parked at the upper limit, x %v", pos.X)
	}
	if math.Abs(pos.Y) > 0.01 {
		t.Fatalf("expected slider held on the axis, y %v", pos.Y)
	}
	p := j.Params().(SliderParams)
	if math.Abs(p.JointTranslation-1) > 0.02 {
		t.Fatalf("expected joint translation 1, got %v", p.JointTranslation)
	}
}

func TestJointParamsRoundTrip(t *testing.T) {
	ctx := newTestContext(t, func(s *Settings) {
		s.Gravity = cp.Vector{}
		s.Scale = 0.5
	})
	w := newTestWorld(t, ctx, WorldDef{})

	a := anchorBodyAt(t, w, cp.Vector{})
	b := ballBodyAt(t, w, cp.Vector{X: 3})

	cases := []struct {
		name   string
		params JointParams
	}{
		{"spring", SpringParams{CollideConnected: true, Length: 3, FrequencyHz: 2, DampingRatio: 0.5}},
		{"fixed", FixedParams{MaxLength: 4}},
		{"hinge", HingeParams{LowerAngle: -1, UpperAngle: 1, MaxMotorTorque: 10, MotorSpeed: 3, EnableLimit: true, EnableMotor: true}},
		{"slider", SliderParams{LocalAxisA: cp.Vector{X: 1}, LowerTranslation: -2, UpperTranslation: 5, MaxMotorForce: 12, MotorSpeed: 3, EnableLimit: true, EnableMotor: true}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			j, err := w.CreateJoint(a, cp.Vector{}, b, cp.Vector{X: 3}, c.params)
			if err != nil {
				t.Fatalf("CreateJoint: %v", err)
			}
			defer w.DestroyJoint(j)

			got := j.Params()
			switch want := c.params.(type) {
			case SpringParams:
				p := got.(SpringParams)
				if p.Length != want.Length || p.FrequencyHz != want.FrequencyHz || p.DampingRatio != want.DampingRatio {
					t.Fatalf("expected %+v back, got %+v", want, p)
				}
				if !p.CollideConnected {
					t.Fatalf("expected collide connected preserved")
				}
			case FixedParams:
				p := got.(FixedParams)
				if p.MaxLength != want.MaxLength {
					t.Fatalf("expected max length %v, got %v", want.MaxLength, p.MaxLength)
				}
			case HingeParams:
				p := got.(HingeParams)
				if p.LowerAngle != want.LowerAngle || p.UpperAngle != want.UpperAngle ||
					p.MaxMotorTorque != want.MaxMotorTorque || p.MotorSpeed != want.MotorSpeed {
					t.Fatalf("expected %+v back, got %+v", want, p)
				}
			case SliderParams:
				p := got.(SliderParams)
				if p.LowerTranslation != want.LowerTranslation || p.UpperTranslation != want.UpperTranslation ||
					p.MaxMotorForce != want.MaxMotorForce {
					t.Fatalf("expected %+v back, got %+v", want, p)
				}
				if math.Abs(p.JointTranslation-3) > 1e-9 {
					t.Fatalf("expected live translation 3, got %v", p.JointTranslation)
				}
			}
		})
	}
}

func TestJointSetParams(t *testing.T) {
	ctx := newTestContext(t, func(s *Settings) { s.Gravity = cp.Vector{} })
	w := newTestWorld(t, ctx, WorldDef{})

	a := anchorBodyAt(t, w, cp.Vector{})
	b := ballBodyAt(t, w, cp.Vector{X: 3})

	j, err := w.CreateJoint(a, cp.Vector{}, b, cp.Vector{X: 3}, SpringParams{Length: 2})
	if err != nil {
		t.Fatalf("CreateJoint: %v", err)
	}

	if err := j.SetParams(SpringParams{Length: 5}); err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	if got := j.Params().(SpringParams).Length; got != 5 {
		t.Fatalf("expected length 5 after SetParams, got %v", got)
	}

	err = j.SetParams(HingeParams{})
	if !errors.Is(err, ErrJointType) {
		t.Fatalf("expected ErrJointType for mismatched params, got %v", err)
	}
	err = j.SetParams(nil)
	if !errors.Is(err, ErrJointType) {
		t.Fatalf("expected ErrJointType for nil params, got %v", err)
	}
}

func TestJointFollowsBodyEnable(t *testing.T) {
	ctx := newTestContext(t, func(s *Settings) { s.Gravity = cp.Vector{} })
	w := newTestWorld(t, ctx, WorldDef{})

	a := ballBodyAt(t, w, cp.Vector{})
	b := ballBodyAt(t, w, cp.Vector{X: 3})

	j, err := w.CreateJoint(a, cp.Vector{}, b, cp.Vector{X: 3}, SpringParams{Length: 2})
	if err != nil {
		t.Fatalf("CreateJoint: %v", err)
	}
	if !j.inSpace {
		t.Fatalf("expected joint registered while both bodies enabled")
	}

	b.SetEnabled(false)
	if j.inSpace {
		t.Fatalf("expected joint unregistered while a body is disabled")
	}
	w.Step(StepArgs{DT: fixedDelta})

	b.SetEnabled(true)
	if !j.inSpace {
		t.Fatalf("expected joint re-registered after enabling")
	}

	w.DestroyJoint(j)
	if len(w.joints) != 0 || len(a.joints) != 0 || len(b.joints) != 0 {
		t.Fatalf("expected joint fully detached after destroy")
	}
	// A second destroy is a no-op.
	w.DestroyJoint(j)
	w.Step(StepArgs{DT: fixedDelta})
}

func TestJointStableAcrossDeltaChange(t *testing.T) {
	ctx := newTestContext(t, nil)
	w := newTestWorld(t, ctx, WorldDef{})

	anchor := anchorBodyAt(t, w, cp.Vector{})
	ball := ballBodyAt(t, w, cp.Vector{X: 2})

	_, err := w.CreateJoint(anchor, cp.Vector{}, ball, cp.Vector{X: 2}, SpringParams{Length: 2})
	if err != nil {
		t.Fatalf("CreateJoint: %v", err)
	}

	// A pendulum swinging under gravity while the sub-step length shrinks,
	// pauses at zero and grows again. The warm-start ratio rescales cached
	// impulses across each change; the swing has to stay bounded and on the
	// rope throughout.
	for i := 0; i < 30; i++ {
		w.Step(StepArgs{DT: fixedDelta})
	}
	for i := 0; i < 30; i++ {
		w.Step(StepArgs{DT: fixedDelta, Factor: 0.25})
	}
	w.Step(StepArgs{DT: 0})
	for i := 0; i < 30; i++ {
		w.Step(StepArgs{DT: fixedDelta, Factor: 2})
	}

	pos := ball.WorldPosition()
	vel := ball.Velocity()
	for _, v := range []float64{pos.X, pos.Y, vel.X, vel.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("solver diverged: position %v velocity %v", pos, vel)
		}
	}
	// Release from horizontal caps the speed at sqrt(2*g*len) ~ 6.3.
	if speed := vel.Length(); speed > 10 {
		t.Fatalf("expected bounded swing speed, got %v", speed)
	}
	if d := anchor.WorldPosition().Distance(ball.WorldPosition()); math.Abs(d-2) > 0.1 {
		t.Fatalf("expected distance held at 2 across delta changes, got %v", d)
	}
}
