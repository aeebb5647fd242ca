package collision

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jakecoffman/cp/v2"
	"github.com/stretchr/testify/require"

	"github.com/milk9111/physics2d/physics"
)

// jointBall spawns a one-shape dynamic component for joint tests.
func jointBall(t *testing.T, r *rig, id uint64, x, y float64) *Object {
	t.Helper()
	return r.spawn(t, ObjectDesc{
		Type:         physics.BodyDynamic,
		Mass:         1,
		Group:        "ball",
		Mask:         []string{"ball"},
		StartEnabled: true,
		Shapes:       []physics.ShapeDef{physics.CircleShape{Radius: 0.25}},
	}, newStub(id, x, y))
}

// jointAnchor spawns a small static component for joint tests.
func jointAnchor(t *testing.T, r *rig, id uint64, x, y float64) *Object {
	t.Helper()
	return r.spawn(t, ObjectDesc{
		Type:         physics.BodyStatic,
		Group:        "anchor",
		StartEnabled: true,
		Shapes:       []physics.ShapeDef{physics.BoxShape{W: 0.2, H: 0.2}},
	}, newStub(id, x, y))
}

func TestJointLifecycle(t *testing.T) {
	r := newRig(t, rigOpts{})
	a := jointBall(t, r, 1, 0, 0)
	b := jointBall(t, r, 2, 2, 0)

	const id = 100
	err := a.CreateJoint(id, cp.Vector{}, b, cp.Vector{X: 2}, physics.SpringParams{Length: 2})
	require.NoError(t, err)
	require.ErrorIs(t, a.CreateJoint(id, cp.Vector{}, b, cp.Vector{X: 2}, physics.SpringParams{Length: 1}),
		ErrIDExists)
	require.Len(t, a.Joints(), 1)
	require.Len(t, b.endpoints, 1)

	typ, err := a.GetJointType(id)
	require.NoError(t, err)
	require.Equal(t, physics.JointSpring, typ)

	params, err := a.GetJointParams(id)
	require.NoError(t, err)
	require.Equal(t, 2.0, params.(physics.SpringParams).Length)

	require.NoError(t, a.SetJointParams(id, physics.SpringParams{Length: 3, FrequencyHz: 2, DampingRatio: 0.5}))
	params, err = a.GetJointParams(id)
	require.NoError(t, err)
	require.Equal(t, physics.SpringParams{Length: 3, FrequencyHz: 2, DampingRatio: 0.5}, params)

	require.ErrorIs(t, a.SetJointParams(id, physics.HingeParams{}), physics.ErrJointType)

	require.NoError(t, a.DestroyJoint(id))
	require.Empty(t, a.Joints())
	require.Empty(t, b.endpoints)
	require.ErrorIs(t, a.DestroyJoint(id), ErrIDNotFound)
	_, err = a.GetJointParams(id)
	require.ErrorIs(t, err, ErrIDNotFound)
}

func TestJointAcrossWorldsFails(t *testing.T) {
	r := newRig(t, rigOpts{})
	other, err := r.ctx.NewWorld(nil)
	require.NoError(t, err)

	a := jointBall(t, r, 1, 0, 0)
	stub := newStub(2, 2, 0)
	b, err := other.NewObject(ObjectDesc{
		Type:         physics.BodyDynamic,
		Mass:         1,
		Group:        "ball",
		StartEnabled: true,
		Shapes:       []physics.ShapeDef{physics.CircleShape{Radius: 0.25}},
	}, stub)
	require.NoError(t, err)
	b.AddToUpdate()

	err = a.CreateJoint(1, cp.Vector{}, b, cp.Vector{X: 2}, physics.SpringParams{Length: 2})
	require.ErrorIs(t, err, ErrNotSupported)
	require.ErrorContains(t, err, "within the same physics world")
	require.Empty(t, a.Joints())
	require.Empty(t, b.endpoints)

	require.ErrorIs(t, a.CreateJoint(2, cp.Vector{}, a, cp.Vector{}, physics.SpringParams{}), ErrNotSupported)
	require.ErrorIs(t, a.CreateJoint(3, cp.Vector{}, nil, cp.Vector{}, physics.SpringParams{}), ErrNotSupported)
}

func TestDestroyObjectTearsDownJoints(t *testing.T) {
	r := newRig(t, rigOpts{})
	a := jointBall(t, r, 1, 0, 0)
	b := jointBall(t, r, 2, 2, 0)
	c := jointBall(t, r, 3, 0, 2)
	d := jointBall(t, r, 4, -2, 0)

	// Two outgoing from a, one incoming from d.
	require.NoError(t, a.CreateJoint(1, cp.Vector{}, b, cp.Vector{X: 2}, physics.SpringParams{Length: 2}))
	require.NoError(t, a.CreateJoint(2, cp.Vector{}, c, cp.Vector{Y: 2}, physics.FixedParams{MaxLength: 2}))
	require.NoError(t, d.CreateJoint(7, cp.Vector{X: -2}, a, cp.Vector{}, physics.SpringParams{Length: 2}))
	require.Len(t, a.Joints(), 2)
	require.Len(t, a.endpoints, 1)
	require.Len(t, d.Joints(), 1)

	r.world.DestroyObject(a)

	require.Empty(t, d.Joints())
	require.Empty(t, d.jointIndex)
	require.Empty(t, b.endpoints)
	require.Empty(t, c.endpoints)
	require.Len(t, r.world.Objects(), 3)
	require.Nil(t, a.World())

	// The survivors still step fine.
	r.world.Update(testDT)
}

func TestJointReactionForce(t *testing.T) {
	r := newRig(t, rigOpts{gravity: cp.Vector{Y: -10}})
	anchor := jointAnchor(t, r, 1, 0, 0)
	ball := jointBall(t, r, 2, 0, 0)

	const id = 5
	require.NoError(t, anchor.CreateJoint(id, cp.Vector{}, ball, cp.Vector{}, physics.HingeParams{}))

	force, err := anchor.JointReactionForce(id)
	require.NoError(t, err)
	require.Equal(t, cp.Vector{}, force)

	for i := 0; i < 120; i++ {
		r.world.Update(testDT)
	}

	force, err = anchor.JointReactionForce(id)
	require.NoError(t, err)
	require.InDelta(t, 10.0, force.Length(), 1.0)

	torque, err := anchor.JointReactionTorque(id)
	require.NoError(t, err)
	require.InDelta(t, 0.0, torque, 0.5)

	_, err = anchor.JointReactionForce(999)
	require.ErrorIs(t, err, ErrIDNotFound)
}

func TestResultStrings(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "ok", err: nil, want: "result ok"},
		{name: "not_supported", err: ErrNotSupported, want: "not supported"},
		{name: "id_exists", err: ErrIDExists, want: "a joint with that id already exists"},
		{name: "id_not_found", err: ErrIDNotFound, want: "joint id not found"},
		{name: "not_connected", err: ErrNotConnected, want: "joint not connected"},
		{name: "unknown", err: errors.New("boom"), want: "unknown error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ResultString(tc.err))
			if tc.err != nil {
				wrapped := fmt.Errorf("outer: %w", tc.err)
				require.Equal(t, tc.want, ResultString(wrapped))
			}
		})
	}
}
