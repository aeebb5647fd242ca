package collision

import (
	"fmt"

	"github.com/jakecoffman/cp/v2"
	"go.uber.org/zap"

	"github.com/milk9111/physics2d/message"
	"github.com/milk9111/physics2d/physics"
)

// Payloads a component accepts through OnMessage.
type (
	// ApplyForce applies a force at a world-space point. Ignored while the
	// component is disabled.
	ApplyForce struct {
		Force    cp.Vector
		Position cp.Vector
	}

	// ApplyImpulse applies an instantaneous impulse at a world-space point,
	// with the same disabled-component gate as ApplyForce.
	ApplyImpulse struct {
		Impulse  cp.Vector
		Position cp.Vector
	}

	// RequestVelocity asks for the body's velocities; the component posts
	// a VelocityResponse back to the sender.
	RequestVelocity struct{}

	// RequestBodyPosition asks for the body's world position; answered
	// with a BodyPositionResponse.
	RequestBodyPosition struct{}

	// RequestBodyAngle asks for the body's angle; answered with a
	// BodyAngleResponse.
	RequestBodyAngle struct{}

	// Enable turns the body on, immediately once the component is in the
	// update set, otherwise by rewriting the start-enabled flag.
	Enable struct{}

	// Disable turns the body off, with the same deferral as Enable.
	Disable struct{}

	// SetGridShapeHull swaps one grid cell's collision hull. The hull
	// index ^uint32(0) empties the cell.
	SetGridShapeHull struct {
		Layer string
		Row   int
		Col   int
		Hull  uint32
		FlipH bool
		FlipV bool
	}

	// EnableGridShapeLayer toggles a whole grid layer's shapes.
	EnableGridShapeLayer struct {
		Layer   string
		Enabled bool
	}
)

// Payloads a component posts in response.
type (
	// VelocityResponse answers RequestVelocity.
	VelocityResponse struct {
		LinearVelocity  cp.Vector
		AngularVelocity float64
	}

	// BodyPositionResponse answers RequestBodyPosition.
	BodyPositionResponse struct {
		Position cp.Vector
	}

	// BodyAngleResponse answers RequestBodyAngle.
	BodyAngleResponse struct {
		Angle float64
	}
)

// RayCastQuery travels on the shared physics socket: a deferred ray cast
// against a specific world. Whatever world updates next routes it; the
// response goes back as a RayCastResponse or RayCastMissed message to the
// requesting component's game object.
type RayCastQuery struct {
	World   *World
	Request physics.RayCastRequest
}

// Event payloads posted to game objects during an update.
type (
	// CollisionEvent reports two objects in contact, posted to both sides
	// with the other object's identity. Groups are name hashes.
	CollisionEvent struct {
		OtherID       uint64
		OtherPosition cp.Vector
		OtherGroup    uint64
		OwnGroup      uint64
	}

	// ContactPointEvent reports one solved contact point from the
	// receiving object's side: the normal and relative velocity point away
	// from it.
	ContactPointEvent struct {
		Position         cp.Vector
		Normal           cp.Vector
		RelativeVelocity cp.Vector
		Distance         float64
		AppliedImpulse   float64
		Mass             float64
		OtherMass        float64
		OtherID          uint64
		OtherPosition    cp.Vector
		OtherGroup       uint64
		OwnGroup         uint64
	}

	// TriggerEvent reports a trigger overlap starting or ending, posted to
	// both sides.
	TriggerEvent struct {
		Enter      bool
		OtherID    uint64
		OtherGroup uint64
		OwnGroup   uint64
	}

	// RayCastResponse answers a RayCastQuery that hit something.
	RayCastResponse struct {
		Fraction  float64
		Position  cp.Vector
		Normal    cp.Vector
		OtherID   uint64
		Group     uint64
		RequestID uint32
	}

	// RayCastMissed answers a RayCastQuery that hit nothing.
	RayCastMissed struct {
		RequestID uint32
	}
)

// OnMessage handles one envelope addressed to the component, posting any
// response to the sender through the collection socket.
func (o *Object) OnMessage(e message.Envelope) {
	switch m := e.Payload.(type) {
	case ApplyForce:
		if o.body.Enabled() {
			o.body.ApplyForce(m.Force, m.Position)
		}
	case ApplyImpulse:
		if o.body.Enabled() {
			o.body.ApplyImpulse(m.Impulse, m.Position)
		}
	case RequestVelocity:
		o.world.post(o.Address(), e.Sender, VelocityResponse{
			LinearVelocity:  o.body.Velocity(),
			AngularVelocity: o.body.AngularVelocity(),
		})
	case RequestBodyPosition:
		o.world.post(o.Address(), e.Sender, BodyPositionResponse{Position: o.body.WorldPosition()})
	case RequestBodyAngle:
		o.world.post(o.Address(), e.Sender, BodyAngleResponse{Angle: o.body.Angle()})
	case Enable:
		o.setEnabled(true)
	case Disable:
		o.setEnabled(false)
	case SetGridShapeHull:
		if err := o.body.SetGridShapeHull(m.Layer, m.Row, m.Col, m.Hull, m.FlipH, m.FlipV); err != nil {
			o.world.log.Warn("Could not set grid shape hull.",
				zap.Uint64("object", o.ID()), zap.Error(err))
		}
	case EnableGridShapeLayer:
		if err := o.body.SetGridShapeEnable(m.Layer, m.Enabled); err != nil {
			o.world.log.Warn("Could not toggle grid shape layer.",
				zap.Uint64("object", o.ID()), zap.Error(err))
		}
	default:
		o.world.log.Warn("Unknown collision object message, ignoring.",
			zap.Uint64("object", o.ID()), zap.String("type", fmt.Sprintf("%T", e.Payload)))
	}
}

// DeliverMessages drains the collection socket: envelopes addressed to a
// live component's fragment go to its OnMessage handler, everything else to
// fallback (nil discards). Returns the number of envelopes delivered.
func (w *World) DeliverMessages(fallback func(message.Envelope)) int {
	return w.socket.Dispatch(func(e message.Envelope) {
		if e.Receiver.Fragment == fragmentCollisionObject {
			if o := w.ObjectByID(e.Receiver.Path); o != nil {
				o.OnMessage(e)
				return
			}
		}
		if fallback != nil {
			fallback(e)
		}
	})
}
