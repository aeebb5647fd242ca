package collision

import (
	"fmt"
	"testing"

	"github.com/jakecoffman/cp/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/milk9111/physics2d/message"
	"github.com/milk9111/physics2d/physics"
)

const testDT = 1.0 / 60.0

// stubObject is the game-object side of a component under test.
type stubObject struct {
	id        uint64
	transform physics.Transform
}

func newStub(id uint64, x, y float64) *stubObject {
	return &stubObject{id: id, transform: physics.Transform{Position: cp.Vector{X: x, Y: y}, Scale: 1}}
}

func (s *stubObject) ID() uint64 { return s.id }

func (s *stubObject) Transform() physics.Transform { return s.transform }

func (s *stubObject) SetTransform(position cp.Vector, angle float64) {
	s.transform.Position = position
	s.transform.Angle = angle
}

type rigOpts struct {
	gravity       cp.Vector
	maxCollisions int
	maxContacts   int
	socketCap     int
}

type rig struct {
	pctx   *physics.Context
	ctx    *Context
	world  *World
	shared *message.Socket
	socket *message.Socket
	logs   *observer.ObservedLogs
}

func newRig(t *testing.T, opts rigOpts) *rig {
	t.Helper()
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)

	settings := physics.DefaultSettings()
	settings.Gravity = opts.gravity
	settings.Logger = logger
	pctx, err := physics.NewContext(settings)
	require.NoError(t, err)

	shared := message.NewSocket(SocketName, 64)
	ctx, err := NewContext(ContextDef{
		Physics:              pctx,
		Socket:               shared,
		MaxCollisionCount:    opts.maxCollisions,
		MaxContactPointCount: opts.maxContacts,
		Logger:               logger,
	})
	require.NoError(t, err)

	socketCap := opts.socketCap
	if socketCap == 0 {
		socketCap = 256
	}
	socket := message.NewSocket("collection", socketCap)
	world, err := ctx.NewWorld(socket)
	require.NoError(t, err)

	return &rig{pctx: pctx, ctx: ctx, world: world, shared: shared, socket: socket, logs: logs}
}

// spawn creates a component and adds it to the update set.
func (r *rig) spawn(t *testing.T, desc ObjectDesc, stub *stubObject) *Object {
	t.Helper()
	o, err := r.world.NewObject(desc, stub)
	require.NoError(t, err)
	o.AddToUpdate()
	return o
}

// drain empties the collection socket and returns everything that was on it.
func (r *rig) drain() []message.Envelope {
	var out []message.Envelope
	r.socket.Dispatch(func(e message.Envelope) {
		out = append(out, e)
	})
	return out
}

func TestGroupBitIndex(t *testing.T) {
	r := newRig(t, rigOpts{})
	w := r.world

	require.Equal(t, uint16(1), w.GroupBitIndex("ground"))
	require.Equal(t, uint16(2), w.GroupBitIndex("player"))
	require.Equal(t, uint16(4), w.GroupBitIndex("enemy"))
	require.Equal(t, uint16(1), w.GroupBitIndex("ground"))
	require.Equal(t, uint16(0), w.GroupBitIndex(""))

	require.Equal(t, message.Hash("player"), w.GroupHash(2))
	require.Equal(t, "enemy", w.GroupName(4))
	require.Equal(t, uint64(0), w.GroupHash(0))
	require.Equal(t, uint16(5), w.MaskBits([]string{"ground", "enemy"}))
}

func TestGroupBitIndexExhaustion(t *testing.T) {
	r := newRig(t, rigOpts{})
	w := r.world

	for i := 0; i < maxGroups; i++ {
		require.Equal(t, uint16(1)<<i, w.GroupBitIndex(fmt.Sprintf("group%d", i)))
	}
	require.Equal(t, uint16(0), w.GroupBitIndex("overflow"))
	require.Equal(t, 1, r.logs.FilterMessage("Out of collision groups (16). Some objects may not collide properly.").Len())

	// Known groups still resolve, and the warning stays edge-triggered.
	require.Equal(t, uint16(1), w.GroupBitIndex("group0"))
	require.Equal(t, uint16(0), w.GroupBitIndex("overflow2"))
	require.Equal(t, 1, r.logs.FilterMessage("Out of collision groups (16). Some objects may not collide properly.").Len())
}

func TestUpdateMovesDynamicBody(t *testing.T) {
	r := newRig(t, rigOpts{gravity: cp.Vector{Y: -10}})
	stub := newStub(1, 0, 0)
	r.spawn(t, ObjectDesc{
		Type:         physics.BodyDynamic,
		Mass:         1,
		Group:        "ball",
		StartEnabled: true,
		Shapes:       []physics.ShapeDef{physics.CircleShape{Radius: 0.5}},
	}, stub)

	res := r.world.Update(testDT)
	require.Equal(t, 1, res.TransformsUpdated)
	require.InDelta(t, testDT, r.world.LastDT(), 1e-12)

	r.world.Update(testDT)
	require.Less(t, stub.transform.Position.Y, 0.0)
}

func TestWorldDestroyDetaches(t *testing.T) {
	r := newRig(t, rigOpts{})
	stub := newStub(1, 0, 0)
	o := r.spawn(t, ObjectDesc{
		Type:   physics.BodyStatic,
		Group:  "wall",
		Shapes: []physics.ShapeDef{physics.BoxShape{W: 1, H: 1}},
	}, stub)

	second, err := r.ctx.NewWorld(nil)
	require.NoError(t, err)
	require.Len(t, r.ctx.Worlds(), 2)

	r.world.Destroy()
	require.Len(t, r.ctx.Worlds(), 1)
	require.Same(t, second, r.ctx.Worlds()[0])
	require.Nil(t, o.World())
}
