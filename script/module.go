// Package script exposes a collision world to tengo scripts as a map of
// callable functions. Malformed calls, wrong argument counts or types, abort
// the script run with a Go error; operations that can fail at runtime return
// a tengo error value carrying the result text, which scripts check with
// is_error.
package script

import (
	"fmt"

	"github.com/d5/tengo/v2"
	"github.com/jakecoffman/cp/v2"

	"github.com/milk9111/physics2d/collision"
	"github.com/milk9111/physics2d/message"
	"github.com/milk9111/physics2d/physics"
)

// Module builds the script-facing function map for one world. The resolver
// turns the game object ids scripts pass around back into components; it
// returns nil for ids it does not know.
func Module(world *collision.World, resolver func(id uint64) *collision.Object) map[string]tengo.Object {
	resolve := func(arg tengo.Object, name string) (*collision.Object, error) {
		id, err := idArg(arg, name)
		if err != nil {
			return nil, err
		}
		o := resolver(id)
		if o == nil {
			return nil, fmt.Errorf("script: no collision object with id %d", id)
		}
		return o, nil
	}

	return map[string]tengo.Object{
		"raycast": &tengo.UserFunction{Name: "raycast", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) < 3 || len(args) > 4 {
				return nil, tengo.ErrWrongNumArguments
			}
			from, err := vecArg(args[0], "from")
			if err != nil {
				return nil, err
			}
			to, err := vecArg(args[1], "to")
			if err != nil {
				return nil, err
			}
			groups, err := groupsArg(args[2], "groups")
			if err != nil {
				return nil, err
			}
			all := false
			if len(args) == 4 {
				opts, ok := mapItems(args[3])
				if !ok {
					return nil, tengo.ErrInvalidArgumentType{
						Name: "options", Expected: "map", Found: args[3].TypeName(),
					}
				}
				if v, found := opts["all"]; found {
					if all, err = boolArg(v, "options.all"); err != nil {
						return nil, err
					}
				}
			}

			req := physics.RayCastRequest{From: from, To: to, Mask: world.MaskBits(groups)}
			if all {
				hits := world.Physics().RayCastAll(req)
				out := make([]tengo.Object, 0, len(hits))
				for _, h := range hits {
					out = append(out, hitObject(world, h))
				}
				return &tengo.Array{Value: out}, nil
			}
			hit, ok := world.Physics().RayCast(req)
			if !ok {
				return tengo.UndefinedValue, nil
			}
			return hitObject(world, hit), nil
		}},

		"raycast_async": &tengo.UserFunction{Name: "raycast_async", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 5 {
				return nil, tengo.ErrWrongNumArguments
			}
			o, err := resolve(args[0], "object")
			if err != nil {
				return nil, err
			}
			from, err := vecArg(args[1], "from")
			if err != nil {
				return nil, err
			}
			to, err := vecArg(args[2], "to")
			if err != nil {
				return nil, err
			}
			groups, err := groupsArg(args[3], "groups")
			if err != nil {
				return nil, err
			}
			id, err := idArg(args[4], "request_id")
			if err != nil {
				return nil, err
			}
			if id > 255 {
				return nil, fmt.Errorf("script: ray cast request id %d outside 0-255", id)
			}
			if err := o.RequestRayCast(from, to, world.MaskBits(groups), uint32(id)); err != nil {
				return resultError(err), nil
			}
			return tengo.UndefinedValue, nil
		}},

		"create_joint": &tengo.UserFunction{Name: "create_joint", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) < 6 || len(args) > 7 {
				return nil, tengo.ErrWrongNumArguments
			}
			jointType, err := jointTypeArg(args[0])
			if err != nil {
				return nil, err
			}
			a, err := resolve(args[1], "object_a")
			if err != nil {
				return nil, err
			}
			jointID, err := jointIDArg(args[2])
			if err != nil {
				return nil, err
			}
			anchorA, err := vecArg(args[3], "anchor_a")
			if err != nil {
				return nil, err
			}
			b, err := resolve(args[4], "object_b")
			if err != nil {
				return nil, err
			}
			anchorB, err := vecArg(args[5], "anchor_b")
			if err != nil {
				return nil, err
			}
			var props map[string]tengo.Object
			if len(args) == 7 {
				var ok bool
				if props, ok = mapItems(args[6]); !ok {
					return nil, tengo.ErrInvalidArgumentType{
						Name: "properties", Expected: "map", Found: args[6].TypeName(),
					}
				}
			}
			params, err := paramsFromMap(jointType, props)
			if err != nil {
				return nil, err
			}
			if err := a.CreateJoint(jointID, anchorA, b, anchorB, params); err != nil {
				return resultError(err), nil
			}
			return tengo.UndefinedValue, nil
		}},

		"destroy_joint": &tengo.UserFunction{Name: "destroy_joint", Value: func(args ...tengo.Object) (tengo.Object, error) {
			o, jointID, err := jointCall(resolve, args)
			if err != nil {
				return nil, err
			}
			if err := o.DestroyJoint(jointID); err != nil {
				return resultError(err), nil
			}
			return tengo.UndefinedValue, nil
		}},

		"get_joint_properties": &tengo.UserFunction{Name: "get_joint_properties", Value: func(args ...tengo.Object) (tengo.Object, error) {
			o, jointID, err := jointCall(resolve, args)
			if err != nil {
				return nil, err
			}
			params, err := o.GetJointParams(jointID)
			if err != nil {
				return resultError(err), nil
			}
			return paramsToMap(params), nil
		}},

		"set_joint_properties": &tengo.UserFunction{Name: "set_joint_properties", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 3 {
				return nil, tengo.ErrWrongNumArguments
			}
			o, err := resolve(args[0], "object")
			if err != nil {
				return nil, err
			}
			jointID, err := jointIDArg(args[1])
			if err != nil {
				return nil, err
			}
			props, ok := mapItems(args[2])
			if !ok {
				return nil, tengo.ErrInvalidArgumentType{
					Name: "properties", Expected: "map", Found: args[2].TypeName(),
				}
			}
			jointType, err := o.GetJointType(jointID)
			if err != nil {
				return resultError(err), nil
			}
			params, err := paramsFromMap(jointType, props)
			if err != nil {
				return nil, err
			}
			if err := o.SetJointParams(jointID, params); err != nil {
				return resultError(err), nil
			}
			return tengo.UndefinedValue, nil
		}},

		"get_joint_reaction_force": &tengo.UserFunction{Name: "get_joint_reaction_force", Value: func(args ...tengo.Object) (tengo.Object, error) {
			o, jointID, err := jointCall(resolve, args)
			if err != nil {
				return nil, err
			}
			force, err := o.JointReactionForce(jointID)
			if err != nil {
				return resultError(err), nil
			}
			return vecObject(force), nil
		}},

		"get_joint_reaction_torque": &tengo.UserFunction{Name: "get_joint_reaction_torque", Value: func(args ...tengo.Object) (tengo.Object, error) {
			o, jointID, err := jointCall(resolve, args)
			if err != nil {
				return nil, err
			}
			torque, err := o.JointReactionTorque(jointID)
			if err != nil {
				return resultError(err), nil
			}
			return &tengo.Float{Value: torque}, nil
		}},

		"set_gravity": &tengo.UserFunction{Name: "set_gravity", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 1 {
				return nil, tengo.ErrWrongNumArguments
			}
			gravity, err := vecArg(args[0], "gravity")
			if err != nil {
				return nil, err
			}
			world.SetGravity(gravity)
			return tengo.UndefinedValue, nil
		}},

		"get_gravity": &tengo.UserFunction{Name: "get_gravity", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 0 {
				return nil, tengo.ErrWrongNumArguments
			}
			return vecObject(world.Gravity()), nil
		}},

		"apply_force": &tengo.UserFunction{Name: "apply_force", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) < 2 || len(args) > 3 {
				return nil, tengo.ErrWrongNumArguments
			}
			o, err := resolve(args[0], "object")
			if err != nil {
				return nil, err
			}
			force, err := vecArg(args[1], "force")
			if err != nil {
				return nil, err
			}
			position := o.Body().WorldPosition()
			if len(args) == 3 {
				if position, err = vecArg(args[2], "position"); err != nil {
					return nil, err
				}
			}
			if o.Enabled() {
				o.Body().ApplyForce(force, position)
			}
			return tengo.UndefinedValue, nil
		}},

		"get_property": &tengo.UserFunction{Name: "get_property", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 2 {
				return nil, tengo.ErrWrongNumArguments
			}
			o, err := resolve(args[0], "object")
			if err != nil {
				return nil, err
			}
			name, err := stringArg(args[1], "name")
			if err != nil {
				return nil, err
			}
			value, err := o.GetProperty(name)
			if err != nil {
				return errorObject(err), nil
			}
			if value.Kind == collision.PropertyNumber {
				return &tengo.Float{Value: value.Number}, nil
			}
			return vecObject(value.Vector), nil
		}},

		"set_property": &tengo.UserFunction{Name: "set_property", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 3 {
				return nil, tengo.ErrWrongNumArguments
			}
			o, err := resolve(args[0], "object")
			if err != nil {
				return nil, err
			}
			name, err := stringArg(args[1], "name")
			if err != nil {
				return nil, err
			}
			var value collision.PropertyValue
			switch v := args[2].(type) {
			case *tengo.Int:
				value = collision.NumberProperty(float64(v.Value))
			case *tengo.Float:
				value = collision.NumberProperty(v.Value)
			default:
				vec, vecErr := vecArg(args[2], "value")
				if vecErr != nil {
					return nil, tengo.ErrInvalidArgumentType{
						Name: "value", Expected: "float or array of two floats", Found: args[2].TypeName(),
					}
				}
				value = collision.VectorProperty(vec)
			}
			if err := o.SetProperty(name, value); err != nil {
				return errorObject(err), nil
			}
			return tengo.UndefinedValue, nil
		}},
	}
}

// jointCall unpacks the (object, joint_id) argument pair shared by most
// joint operations.
func jointCall(resolve func(tengo.Object, string) (*collision.Object, error), args []tengo.Object) (*collision.Object, uint64, error) {
	if len(args) != 2 {
		return nil, 0, tengo.ErrWrongNumArguments
	}
	o, err := resolve(args[0], "object")
	if err != nil {
		return nil, 0, err
	}
	jointID, err := jointIDArg(args[1])
	if err != nil {
		return nil, 0, err
	}
	return o, jointID, nil
}

// resultError wraps a collision operation failure as a script-visible error
// value with the fixed result text.
func resultError(err error) tengo.Object {
	return &tengo.Error{Value: &tengo.String{Value: collision.ResultString(err)}}
}

func errorObject(err error) tengo.Object {
	return &tengo.Error{Value: &tengo.String{Value: err.Error()}}
}

func hitObject(w *collision.World, r physics.RayCastResponse) tengo.Object {
	m := map[string]tengo.Object{
		"fraction": &tengo.Float{Value: r.Fraction},
		"position": vecObject(r.Position),
		"normal":   vecObject(r.Normal),
		"group":    &tengo.String{Value: w.GroupName(r.Group)},
	}
	if o, ok := r.Owner.(*collision.Object); ok {
		m["id"] = &tengo.Int{Value: int64(o.ID())}
	}
	return &tengo.Map{Value: m}
}

func vecObject(v cp.Vector) tengo.Object {
	return &tengo.Array{Value: []tengo.Object{&tengo.Float{Value: v.X}, &tengo.Float{Value: v.Y}}}
}

func boolObject(b bool) tengo.Object {
	if b {
		return tengo.TrueValue
	}
	return tengo.FalseValue
}

func arrayItems(o tengo.Object) ([]tengo.Object, bool) {
	switch v := o.(type) {
	case *tengo.Array:
		return v.Value, true
	case *tengo.ImmutableArray:
		return v.Value, true
	}
	return nil, false
}

func mapItems(o tengo.Object) (map[string]tengo.Object, bool) {
	switch v := o.(type) {
	case *tengo.Map:
		return v.Value, true
	case *tengo.ImmutableMap:
		return v.Value, true
	}
	return nil, false
}

func floatArg(o tengo.Object, name string) (float64, error) {
	switch v := o.(type) {
	case *tengo.Float:
		return v.Value, nil
	case *tengo.Int:
		return float64(v.Value), nil
	}
	return 0, tengo.ErrInvalidArgumentType{Name: name, Expected: "float", Found: o.TypeName()}
}

func boolArg(o tengo.Object, name string) (bool, error) {
	if _, ok := o.(*tengo.Bool); !ok {
		return false, tengo.ErrInvalidArgumentType{Name: name, Expected: "bool", Found: o.TypeName()}
	}
	return !o.IsFalsy(), nil
}

func stringArg(o tengo.Object, name string) (string, error) {
	v, ok := o.(*tengo.String)
	if !ok {
		return "", tengo.ErrInvalidArgumentType{Name: name, Expected: "string", Found: o.TypeName()}
	}
	return v.Value, nil
}

func idArg(o tengo.Object, name string) (uint64, error) {
	v, ok := o.(*tengo.Int)
	if !ok {
		return 0, tengo.ErrInvalidArgumentType{Name: name, Expected: "int", Found: o.TypeName()}
	}
	return uint64(v.Value), nil
}

// jointIDArg hashes the script-side joint name into the component-level
// joint id.
func jointIDArg(o tengo.Object) (uint64, error) {
	name, err := stringArg(o, "joint_id")
	if err != nil {
		return 0, err
	}
	return message.Hash(name), nil
}

func vecArg(o tengo.Object, name string) (cp.Vector, error) {
	items, ok := arrayItems(o)
	if !ok || len(items) != 2 {
		return cp.Vector{}, tengo.ErrInvalidArgumentType{
			Name: name, Expected: "array of two floats", Found: o.TypeName(),
		}
	}
	x, err := floatArg(items[0], name)
	if err != nil {
		return cp.Vector{}, err
	}
	y, err := floatArg(items[1], name)
	if err != nil {
		return cp.Vector{}, err
	}
	return cp.Vector{X: x, Y: y}, nil
}

func groupsArg(o tengo.Object, name string) ([]string, error) {
	items, ok := arrayItems(o)
	if !ok {
		return nil, tengo.ErrInvalidArgumentType{
			Name: name, Expected: "array of strings", Found: o.TypeName(),
		}
	}
	groups := make([]string, 0, len(items))
	for _, item := range items {
		s, err := stringArg(item, name)
		if err != nil {
			return nil, err
		}
		groups = append(groups, s)
	}
	return groups, nil
}

func jointTypeArg(o tengo.Object) (physics.JointType, error) {
	name, err := stringArg(o, "type")
	if err != nil {
		return 0, err
	}
	switch name {
	case "spring":
		return physics.JointSpring, nil
	case "fixed":
		return physics.JointFixed, nil
	case "hinge":
		return physics.JointHinge, nil
	case "slider":
		return physics.JointSlider, nil
	}
	return 0, fmt.Errorf("script: unknown joint type %q", name)
}

// mapReader pulls optional keys out of a property map, keeping the first
// conversion error it hits.
type mapReader struct {
	m   map[string]tengo.Object
	err error
}

func (r *mapReader) float(key string, dst *float64) {
	if r.err != nil {
		return
	}
	o, ok := r.m[key]
	if !ok {
		return
	}
	v, err := floatArg(o, key)
	if err != nil {
		r.err = err
		return
	}
	*dst = v
}

func (r *mapReader) boolean(key string, dst *bool) {
	if r.err != nil {
		return
	}
	o, ok := r.m[key]
	if !ok {
		return
	}
	v, err := boolArg(o, key)
	if err != nil {
		r.err = err
		return
	}
	*dst = v
}

func (r *mapReader) vector(key string, dst *cp.Vector) {
	if r.err != nil {
		return
	}
	o, ok := r.m[key]
	if !ok {
		return
	}
	v, err := vecArg(o, key)
	if err != nil {
		r.err = err
		return
	}
	*dst = v
}

// paramsFromMap builds joint parameters: defaults for the type, overridden
// by whichever known keys the map carries. Unknown keys are ignored so a
// get_joint_properties result round-trips through set_joint_properties.
func paramsFromMap(t physics.JointType, m map[string]tengo.Object) (physics.JointParams, error) {
	base := physics.DefaultJointParams(t)
	if m == nil {
		return base, nil
	}
	r := &mapReader{m: m}
	switch p := base.(type) {
	case physics.SpringParams:
		r.boolean("collide_connected", &p.CollideConnected)
		r.float("length", &p.Length)
		r.float("frequency", &p.FrequencyHz)
		r.float("damping", &p.DampingRatio)
		return p, r.err
	case physics.FixedParams:
		r.boolean("collide_connected", &p.CollideConnected)
		r.float("max_length", &p.MaxLength)
		return p, r.err
	case physics.HingeParams:
		r.boolean("collide_connected", &p.CollideConnected)
		r.float("reference_angle", &p.ReferenceAngle)
		r.float("lower_angle", &p.LowerAngle)
		r.float("upper_angle", &p.UpperAngle)
		r.float("max_motor_torque", &p.MaxMotorTorque)
		r.float("motor_speed", &p.MotorSpeed)
		r.boolean("enable_limit", &p.EnableLimit)
		r.boolean("enable_motor", &p.EnableMotor)
		return p, r.err
	case physics.SliderParams:
		r.boolean("collide_connected", &p.CollideConnected)
		r.vector("local_axis_a", &p.LocalAxisA)
		r.float("reference_angle", &p.ReferenceAngle)
		r.boolean("enable_limit", &p.EnableLimit)
		r.float("lower_translation", &p.LowerTranslation)
		r.float("upper_translation", &p.UpperTranslation)
		r.boolean("enable_motor", &p.EnableMotor)
		r.float("max_motor_force", &p.MaxMotorForce)
		r.float("motor_speed", &p.MotorSpeed)
		return p, r.err
	}
	return nil, fmt.Errorf("script: unknown joint type %v", t)
}

// paramsToMap renders joint parameters for scripts, read-only state
// included.
func paramsToMap(p physics.JointParams) tengo.Object {
	m := map[string]tengo.Object{
		"type": &tengo.String{Value: p.JointType().String()},
	}
	switch v := p.(type) {
	case physics.SpringParams:
		m["collide_connected"] = boolObject(v.CollideConnected)
		m["length"] = &tengo.Float{Value: v.Length}
		m["frequency"] = &tengo.Float{Value: v.FrequencyHz}
		m["damping"] = &tengo.Float{Value: v.DampingRatio}
	case physics.FixedParams:
		m["collide_connected"] = boolObject(v.CollideConnected)
		m["max_length"] = &tengo.Float{Value: v.MaxLength}
	case physics.HingeParams:
		m["collide_connected"] = boolObject(v.CollideConnected)
		m["reference_angle"] = &tengo.Float{Value: v.ReferenceAngle}
		m["lower_angle"] = &tengo.Float{Value: v.LowerAngle}
		m["upper_angle"] = &tengo.Float{Value: v.UpperAngle}
		m["max_motor_torque"] = &tengo.Float{Value: v.MaxMotorTorque}
		m["motor_speed"] = &tengo.Float{Value: v.MotorSpeed}
		m["enable_limit"] = boolObject(v.EnableLimit)
		m["enable_motor"] = boolObject(v.EnableMotor)
		m["joint_angle"] = &tengo.Float{Value: v.JointAngle}
		m["joint_speed"] = &tengo.Float{Value: v.JointSpeed}
	case physics.SliderParams:
		m["collide_connected"] = boolObject(v.CollideConnected)
		m["local_axis_a"] = vecObject(v.LocalAxisA)
		m["reference_angle"] = &tengo.Float{Value: v.ReferenceAngle}
		m["enable_limit"] = boolObject(v.EnableLimit)
		m["lower_translation"] = &tengo.Float{Value: v.LowerTranslation}
		m["upper_translation"] = &tengo.Float{Value: v.UpperTranslation}
		m["enable_motor"] = boolObject(v.EnableMotor)
		m["max_motor_force"] = &tengo.Float{Value: v.MaxMotorForce}
		m["motor_speed"] = &tengo.Float{Value: v.MotorSpeed}
		m["joint_translation"] = &tengo.Float{Value: v.JointTranslation}
		m["joint_speed"] = &tengo.Float{Value: v.JointSpeed}
	}
	return &tengo.Map{Value: m}
}
