package collision

import (
	"fmt"

	"github.com/jakecoffman/cp/v2"
)

// Property names accepted by GetProperty and SetProperty.
const (
	PropLinearVelocity  = "linear_velocity"
	PropAngularVelocity = "angular_velocity"
	PropMass            = "mass"
	PropLinearDamping   = "linear_damping"
	PropAngularDamping  = "angular_damping"
	PropPosition        = "position"
	PropAngle           = "angle"
)

// PropertyKind discriminates the two value shapes crossing the property
// boundary.
type PropertyKind int

const (
	PropertyNumber PropertyKind = iota
	PropertyVector
)

func (k PropertyKind) String() string {
	switch k {
	case PropertyNumber:
		return "number"
	case PropertyVector:
		return "vector"
	default:
		return fmt.Sprintf("PropertyKind(%d)", int(k))
	}
}

// PropertyValue is a tagged number-or-vector value.
type PropertyValue struct {
	Kind   PropertyKind
	Number float64
	Vector cp.Vector
}

// NumberProperty wraps a scalar value.
func NumberProperty(v float64) PropertyValue {
	return PropertyValue{Kind: PropertyNumber, Number: v}
}

// VectorProperty wraps a 2D vector value.
func VectorProperty(v cp.Vector) PropertyValue {
	return PropertyValue{Kind: PropertyVector, Vector: v}
}

// GetProperty reads a body property by name.
func (o *Object) GetProperty(name string) (PropertyValue, error) {
	switch name {
	case PropLinearVelocity:
		return VectorProperty(o.body.Velocity()), nil
	case PropAngularVelocity:
		return NumberProperty(o.body.AngularVelocity()), nil
	case PropMass:
		return NumberProperty(o.body.Mass()), nil
	case PropLinearDamping:
		return NumberProperty(o.body.LinearDamping()), nil
	case PropAngularDamping:
		return NumberProperty(o.body.AngularDamping()), nil
	case PropPosition:
		return VectorProperty(o.body.WorldPosition()), nil
	case PropAngle:
		return NumberProperty(o.body.Angle()), nil
	default:
		return PropertyValue{}, fmt.Errorf("%w: %q", ErrNoProperty, name)
	}
}

// SetProperty writes a body property by name. A value of the wrong shape
// returns ErrTypeMismatch and mutates nothing; mass is read-only and
// returns ErrNotSupported.
func (o *Object) SetProperty(name string, value PropertyValue) error {
	switch name {
	case PropLinearVelocity:
		if value.Kind != PropertyVector {
			return propMismatch(name, PropertyVector, value.Kind)
		}
		o.body.SetVelocity(value.Vector)
	case PropAngularVelocity:
		if value.Kind != PropertyNumber {
			return propMismatch(name, PropertyNumber, value.Kind)
		}
		o.body.SetAngularVelocity(value.Number)
	case PropMass:
		return fmt.Errorf("%w: mass is read only", ErrNotSupported)
	case PropLinearDamping:
		if value.Kind != PropertyNumber {
			return propMismatch(name, PropertyNumber, value.Kind)
		}
		o.body.SetLinearDamping(value.Number)
	case PropAngularDamping:
		if value.Kind != PropertyNumber {
			return propMismatch(name, PropertyNumber, value.Kind)
		}
		o.body.SetAngularDamping(value.Number)
	case PropPosition:
		if value.Kind != PropertyVector {
			return propMismatch(name, PropertyVector, value.Kind)
		}
		o.body.SetWorldPosition(value.Vector)
	case PropAngle:
		if value.Kind != PropertyNumber {
			return propMismatch(name, PropertyNumber, value.Kind)
		}
		o.body.SetAngle(value.Number)
	default:
		return fmt.Errorf("%w: %q", ErrNoProperty, name)
	}
	return nil
}

func propMismatch(name string, want, got PropertyKind) error {
	return fmt.Errorf("%w: %s wants a %v, got a %v", ErrTypeMismatch, name, want, got)
}
