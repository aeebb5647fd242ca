package collision

import (
	"go.uber.org/zap"

	"github.com/milk9111/physics2d/message"
	"github.com/milk9111/physics2d/physics"
)

// post puts one envelope on the collection socket. A full socket drops the
// message with a warning; the update keeps going.
func (w *World) post(sender, receiver message.Address, payload any) {
	err := w.socket.Post(message.Envelope{Sender: sender, Receiver: receiver, Payload: payload})
	if err != nil {
		w.log.Warn("Could not send physics message, socket is full.",
			zap.String("socket", w.socket.Name()))
	}
}

// takeCollisionBudget claims one collision-event slot for this update.
// Collision and trigger events share the budget, one slot per pair.
func (w *World) takeCollisionBudget() bool {
	w.collisionCount++
	return w.collisionCount <= w.ctx.maxCollisions
}

// takeContactBudget claims one contact-point slot for this update.
func (w *World) takeContactBudget() bool {
	w.contactCount++
	return w.contactCount <= w.ctx.maxContacts
}

// warnOverflow reports budget overruns at the end of an update, once per
// transition into overflow.
func (w *World) warnOverflow() {
	if w.collisionCount > w.ctx.maxCollisions {
		if !w.collisionOver {
			w.collisionOver = true
			w.log.Warn("Maximum number of collisions reached, some messages have been lost.",
				zap.Int("limit", w.ctx.maxCollisions))
		}
	} else {
		w.collisionOver = false
	}
	if w.contactCount > w.ctx.maxContacts {
		if !w.contactOver {
			w.contactOver = true
			w.log.Warn("Maximum number of contact points reached, some messages have been lost.",
				zap.Int("limit", w.ctx.maxContacts))
		}
	} else {
		w.contactOver = false
	}
}

// onCollision fans a solid or sensor collision out to both objects.
func (w *World) onCollision(e physics.CollisionEvent) {
	a, okA := e.OwnerA.(*Object)
	b, okB := e.OwnerB.(*Object)
	if !okA || !okB {
		return
	}
	if !w.takeCollisionBudget() {
		return
	}
	hashA := w.GroupHash(e.GroupA)
	hashB := w.GroupHash(e.GroupB)
	posA := a.gameObject.Transform().Position
	posB := b.gameObject.Transform().Position
	w.post(b.Address(), a.objectAddress(), CollisionEvent{
		OtherID:       b.ID(),
		OtherPosition: posB,
		OtherGroup:    hashB,
		OwnGroup:      hashA,
	})
	w.post(a.Address(), b.objectAddress(), CollisionEvent{
		OtherID:       a.ID(),
		OtherPosition: posA,
		OtherGroup:    hashA,
		OwnGroup:      hashB,
	})
}

// onContact fans one contact point out to both objects, flipping the normal
// and relative velocity so each side sees them pointing away from itself.
func (w *World) onContact(p physics.ContactPoint) {
	a, okA := p.OwnerA.(*Object)
	b, okB := p.OwnerB.(*Object)
	if !okA || !okB {
		return
	}
	if !w.takeContactBudget() {
		return
	}
	hashA := w.GroupHash(p.GroupA)
	hashB := w.GroupHash(p.GroupB)
	posA := a.gameObject.Transform().Position
	posB := b.gameObject.Transform().Position
	w.post(b.Address(), a.objectAddress(), ContactPointEvent{
		Position:         p.PositionA,
		Normal:           p.Normal.Neg(),
		RelativeVelocity: p.RelativeVelocity.Neg(),
		Distance:         p.Distance,
		AppliedImpulse:   p.AppliedImpulse,
		Mass:             p.MassA,
		OtherMass:        p.MassB,
		OtherID:          b.ID(),
		OtherPosition:    posB,
		OtherGroup:       hashB,
		OwnGroup:         hashA,
	})
	w.post(a.Address(), b.objectAddress(), ContactPointEvent{
		Position:         p.PositionB,
		Normal:           p.Normal,
		RelativeVelocity: p.RelativeVelocity,
		Distance:         p.Distance,
		AppliedImpulse:   p.AppliedImpulse,
		Mass:             p.MassB,
		OtherMass:        p.MassA,
		OtherID:          a.ID(),
		OtherPosition:    posA,
		OtherGroup:       hashA,
		OwnGroup:         hashB,
	})
}

// onTrigger fans a trigger enter or exit out to both objects. Trigger
// events draw from the collision budget.
func (w *World) onTrigger(e physics.TriggerEvent, enter bool) {
	a, okA := e.OwnerA.(*Object)
	b, okB := e.OwnerB.(*Object)
	if !okA || !okB {
		return
	}
	if !w.takeCollisionBudget() {
		return
	}
	w.post(b.Address(), a.objectAddress(), TriggerEvent{
		Enter:      enter,
		OtherID:    b.ID(),
		OtherGroup: w.GroupHash(e.GroupB),
		OwnGroup:   w.GroupHash(e.GroupA),
	})
	w.post(a.Address(), b.objectAddress(), TriggerEvent{
		Enter:      enter,
		OtherID:    a.ID(),
		OtherGroup: w.GroupHash(e.GroupA),
		OwnGroup:   w.GroupHash(e.GroupB),
	})
}

// onRayCastResult answers one drained ray cast. The response goes to the
// requesting component's game object on the requester's own world socket,
// which matters when the query crossed worlds.
func (w *World) onRayCastResult(resp physics.RayCastResponse, req physics.RayCastRequest) {
	o, ok := req.UserData.(*Object)
	if !ok || o.world == nil {
		return
	}
	requestID := req.UserID & 0xff
	if !resp.Hit {
		o.world.post(message.Address{}, o.objectAddress(), RayCastMissed{RequestID: requestID})
		return
	}
	var otherID uint64
	if hit, ok := resp.Owner.(*Object); ok {
		otherID = hit.ID()
	}
	o.world.post(message.Address{}, o.objectAddress(), RayCastResponse{
		Fraction:  resp.Fraction,
		Position:  resp.Position,
		Normal:    resp.Normal,
		OtherID:   otherID,
		Group:     w.GroupHash(resp.Group),
		RequestID: requestID,
	})
}
