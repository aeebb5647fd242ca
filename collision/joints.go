package collision

import (
	"fmt"

	"github.com/jakecoffman/cp/v2"

	"github.com/milk9111/physics2d/physics"
)

// JointEntry is one joint owned by its source component. The target
// component holds only a JointEndPoint back-reference; entry and endpoint
// are created and removed together.
type JointEntry struct {
	ID    uint64
	Type  physics.JointType
	joint *physics.Joint
	other *Object
}

// JointEndPoint is the non-owning back-reference a target component keeps
// for a joint arriving from another component. Destroying the target walks
// these to tear the joints down through their owners.
type JointEndPoint struct {
	owner   *Object
	entryID uint64
}

// Joint returns the live constraint, nil when disconnected.
func (e *JointEntry) Joint() *physics.Joint {
	return e.joint
}

// Other returns the component at the far end.
func (e *JointEntry) Other() *Object {
	return e.other
}

// Joints returns the component's outgoing joint entries. The slice is owned
// by the component; callers must not mutate it.
func (o *Object) Joints() []JointEntry {
	return o.joints
}

// CreateJoint connects this component to other with a constraint of the
// params' type, anchored at world-space points. The id must be unique among
// this component's joints; both components must live in the same world.
func (o *Object) CreateJoint(id uint64, anchorA cp.Vector, other *Object, anchorB cp.Vector, params physics.JointParams) error {
	if _, exists := o.jointIndex[id]; exists {
		return fmt.Errorf("%w: %d", ErrIDExists, id)
	}
	if other == nil || other == o {
		return fmt.Errorf("%w: joint needs two distinct collision objects", ErrNotSupported)
	}
	if other.world != o.world {
		return fmt.Errorf("%w: joints can only be connected to collision objects within the same physics world", ErrNotSupported)
	}

	j, err := o.world.phys.CreateJoint(o.body, anchorA, other.body, anchorB, params)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnknown, err)
	}

	o.jointIndex[id] = len(o.joints)
	o.joints = append(o.joints, JointEntry{
		ID:    id,
		Type:  params.JointType(),
		joint: j,
		other: other,
	})
	other.endpoints = append(other.endpoints, JointEndPoint{owner: o, entryID: id})
	return nil
}

// DestroyJoint disconnects one joint by id, removing the entry here and the
// endpoint on the far component.
func (o *Object) DestroyJoint(id uint64) error {
	entry, err := o.jointEntry(id)
	if err != nil {
		return err
	}
	o.world.phys.DestroyJoint(entry.joint)
	entry.other.removeEndPoint(o, id)

	i := o.jointIndex[id]
	last := len(o.joints) - 1
	moved := o.joints[last]
	o.joints[i] = moved
	o.joints[last] = JointEntry{}
	o.joints = o.joints[:last]
	delete(o.jointIndex, id)
	if i < last {
		o.jointIndex[moved.ID] = i
	}
	return nil
}

// GetJointType returns the type of the joint with the given id.
func (o *Object) GetJointType(id uint64) (physics.JointType, error) {
	entry, err := o.jointEntry(id)
	if err != nil {
		return 0, err
	}
	return entry.Type, nil
}

// GetJointParams returns the joint's current parameters, read-only fields
// filled from live simulation state.
func (o *Object) GetJointParams(id uint64) (physics.JointParams, error) {
	entry, err := o.jointEntry(id)
	if err != nil {
		return nil, err
	}
	return entry.joint.Params(), nil
}

// SetJointParams applies new parameters to the joint with the given id.
// Parameters of the wrong type surface the physics layer's error.
func (o *Object) SetJointParams(id uint64, params physics.JointParams) error {
	entry, err := o.jointEntry(id)
	if err != nil {
		return err
	}
	return entry.joint.SetParams(params)
}

// JointReactionForce returns the joint's constraint force in world units,
// computed against the last update's sub-step delta. Zero before the first
// stepped update.
func (o *Object) JointReactionForce(id uint64) (cp.Vector, error) {
	entry, err := o.jointEntry(id)
	if err != nil {
		return cp.Vector{}, err
	}
	if o.world.lastDT == 0 {
		return cp.Vector{}, nil
	}
	return entry.joint.ReactionForce(1 / o.world.lastDT), nil
}

// JointReactionTorque returns the joint's constraint torque, computed
// against the last update's sub-step delta. Zero before the first stepped
// update.
func (o *Object) JointReactionTorque(id uint64) (float64, error) {
	entry, err := o.jointEntry(id)
	if err != nil {
		return 0, err
	}
	if o.world.lastDT == 0 {
		return 0, nil
	}
	return entry.joint.ReactionTorque(1 / o.world.lastDT), nil
}

// jointEntry resolves an id to a connected entry.
func (o *Object) jointEntry(id uint64) (*JointEntry, error) {
	i, ok := o.jointIndex[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrIDNotFound, id)
	}
	entry := &o.joints[i]
	if entry.joint == nil {
		return nil, fmt.Errorf("%w: %d", ErrNotConnected, id)
	}
	return entry, nil
}

// removeEndPoint drops the back-reference for one incoming joint.
func (o *Object) removeEndPoint(owner *Object, entryID uint64) {
	for i, ep := range o.endpoints {
		if ep.owner == owner && ep.entryID == entryID {
			o.endpoints[i] = o.endpoints[len(o.endpoints)-1]
			o.endpoints = o.endpoints[:len(o.endpoints)-1]
			return
		}
	}
}
