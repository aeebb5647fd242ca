package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jakecoffman/cp/v2"
	"github.com/stretchr/testify/require"

	"github.com/milk9111/physics2d/physics"
)

func TestEmbeddedScene(t *testing.T) {
	s, err := LoadScene("")
	require.NoError(t, err)
	require.Equal(t, "playground", s.Name)
	require.Len(t, s.Worlds, 1)

	w := s.Worlds[0]
	require.Equal(t, "main", w.Name)
	require.Len(t, w.Bodies, 4)
	require.Len(t, w.Joints, 1)
	require.Equal(t, []string{"sandbox.tengo"}, w.Scripts)

	ground, err := w.Bodies[0].Desc()
	require.NoError(t, err)
	require.Equal(t, physics.BodyStatic, ground.Type)
	require.True(t, ground.StartEnabled)
	require.Equal(t, physics.BoxShape{W: 40, H: 1, Offset: cp.Vector{Y: -0.5}}, ground.Shapes[0])
	require.Equal(t, "ground", ground.Group)
	require.Equal(t, []string{"ball"}, ground.Mask)

	ball, err := w.Bodies[1].Desc()
	require.NoError(t, err)
	require.Equal(t, physics.BodyDynamic, ball.Type)
	require.Equal(t, 1.0, ball.Mass)
	require.Equal(t, physics.CircleShape{Radius: 0.5}, ball.Shapes[0])
	require.Equal(t, cp.Vector{X: -2, Y: 6}, w.Bodies[1].Position.Vector())

	zone, err := w.Bodies[3].Desc()
	require.NoError(t, err)
	require.Equal(t, physics.BodyTrigger, zone.Type)

	j := w.Joints[0]
	require.Equal(t, "tether", j.Name)
	require.Equal(t, "ball_a", j.BodyA)
	require.Equal(t, "ball_b", j.BodyB)
	params, err := j.Params()
	require.NoError(t, err)
	spring, ok := params.(physics.SpringParams)
	require.True(t, ok)
	require.Equal(t, 4.0, spring.Length)
	require.Equal(t, 1.5, spring.FrequencyHz)
	require.Equal(t, 0.4, spring.DampingRatio)
}

func TestSceneFromDisk(t *testing.T) {
	doc := `name: lab
worlds:
  - name: only
    bodies:
      - name: cart
        type: kinematic
        shape: {kind: polygon, vertices: [{x: -1.0, y: 0.0}, {x: 1.0, y: 0.0}, {x: 0.0, y: 1.0}]}
        disabled: true
    joints:
      - name: rail
        type: slider
        body_a: cart
        body_b: anchor
        properties: {local_axis_a: {x: 0.0, y: 1.0}, enable_motor: true, max_motor_force: 10.0}
`
	path := filepath.Join(t.TempDir(), "lab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	s, err := LoadScene(path)
	require.NoError(t, err)
	require.Equal(t, "lab", s.Name)

	cart, err := s.Worlds[0].Bodies[0].Desc()
	require.NoError(t, err)
	require.Equal(t, physics.BodyKinematic, cart.Type)
	require.False(t, cart.StartEnabled)
	poly, ok := cart.Shapes[0].(physics.PolygonShape)
	require.True(t, ok)
	require.Len(t, poly.Vertices, 3)
	require.Equal(t, cp.Vector{X: -1}, poly.Vertices[0])

	params, err := s.Worlds[0].Joints[0].Params()
	require.NoError(t, err)
	slider := params.(physics.SliderParams)
	require.Equal(t, cp.Vector{Y: 1}, slider.LocalAxisA)
	require.True(t, slider.EnableMotor)
	require.Equal(t, 10.0, slider.MaxMotorForce)
}

func TestBodySpecErrors(t *testing.T) {
	tests := []struct {
		name string
		body BodySpec
		want string
	}{
		{
			name: "unknown type",
			body: BodySpec{Name: "blob", Type: "squish", Shape: ShapeSpec{Kind: "circle", Radius: 1}},
			want: "unknown body type",
		},
		{
			name: "unknown shape",
			body: BodySpec{Name: "blob", Type: "dynamic", Shape: ShapeSpec{Kind: "blob"}},
			want: "unknown shape kind",
		},
		{
			name: "flat circle",
			body: BodySpec{Name: "dot", Type: "dynamic", Shape: ShapeSpec{Kind: "circle"}},
			want: "positive radius",
		},
		{
			name: "flat box",
			body: BodySpec{Name: "slab", Type: "static", Shape: ShapeSpec{Kind: "box", W: 2}},
			want: "positive dimensions",
		},
		{
			name: "thin polygon",
			body: BodySpec{Name: "tri", Type: "static", Shape: ShapeSpec{Kind: "polygon", Vertices: []VecSpec{{X: 1}, {Y: 1}}}},
			want: "at least 3 vertices",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.body.Desc()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
			require.Contains(t, err.Error(), tt.body.Name)
		})
	}
}

func TestJointDefaults(t *testing.T) {
	spring, err := JointSpec{Name: "s", Type: "spring"}.Params()
	require.NoError(t, err)
	require.Equal(t, 1.0, spring.(physics.SpringParams).Length)

	length := 2.5
	spring, err = JointSpec{Name: "s", Type: "spring", Properties: JointPropsSpec{Length: &length}}.Params()
	require.NoError(t, err)
	require.Equal(t, 2.5, spring.(physics.SpringParams).Length)

	slider, err := JointSpec{Name: "rail", Type: "slider"}.Params()
	require.NoError(t, err)
	require.Equal(t, cp.Vector{X: 1}, slider.(physics.SliderParams).LocalAxisA)

	fixed, err := JointSpec{Name: "rope", Type: "fixed", Properties: JointPropsSpec{MaxLength: 4}}.Params()
	require.NoError(t, err)
	require.Equal(t, 4.0, fixed.(physics.FixedParams).MaxLength)

	hinge, err := JointSpec{Name: "door", Type: "hinge", Properties: JointPropsSpec{EnableMotor: true, MotorSpeed: 2, MaxMotorTorque: 50}}.Params()
	require.NoError(t, err)
	hp := hinge.(physics.HingeParams)
	require.True(t, hp.EnableMotor)
	require.Equal(t, 2.0, hp.MotorSpeed)
	require.Equal(t, 50.0, hp.MaxMotorTorque)

	_, err = JointSpec{Name: "weld", Type: "weld"}.Params()
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown type "weld"`)
}
