package config

import (
	"fmt"

	"github.com/jakecoffman/cp/v2"
	"gopkg.in/yaml.v3"

	"github.com/milk9111/physics2d/collision"
	"github.com/milk9111/physics2d/physics"
)

// Scene describes the worlds the sandbox instantiates: bodies, the joints
// between them and the scripts driving them.
type Scene struct {
	Name   string      `yaml:"name"`
	Worlds []WorldSpec `yaml:"worlds"`
}

type WorldSpec struct {
	Name    string      `yaml:"name"`
	Bodies  []BodySpec  `yaml:"bodies"`
	Joints  []JointSpec `yaml:"joints"`
	Scripts []string    `yaml:"scripts"`
}

// BodySpec is one collision object. Bodies are enabled unless disabled is
// set.
type BodySpec struct {
	Name           string    `yaml:"name"`
	Type           string    `yaml:"type"`
	Shape          ShapeSpec `yaml:"shape"`
	Mass           float64   `yaml:"mass"`
	Position       VecSpec   `yaml:"position"`
	Angle          float64   `yaml:"angle"`
	Group          string    `yaml:"group"`
	Mask           []string  `yaml:"mask"`
	Friction       float64   `yaml:"friction"`
	Restitution    float64   `yaml:"restitution"`
	LinearDamping  float64   `yaml:"linear_damping"`
	AngularDamping float64   `yaml:"angular_damping"`
	LockedRotation bool      `yaml:"locked_rotation"`
	Bullet         bool      `yaml:"bullet"`
	Disabled       bool      `yaml:"disabled"`
}

type ShapeSpec struct {
	Kind     string    `yaml:"kind"`
	Radius   float64   `yaml:"radius"`
	W        float64   `yaml:"w"`
	H        float64   `yaml:"h"`
	Offset   VecSpec   `yaml:"offset"`
	Vertices []VecSpec `yaml:"vertices"`
}

// JointSpec connects two bodies of the same world by name. Properties
// follow the defaults contract: absent keys keep the joint type's defaults.
type JointSpec struct {
	Name       string         `yaml:"name"`
	Type       string         `yaml:"type"`
	BodyA      string         `yaml:"body_a"`
	BodyB      string         `yaml:"body_b"`
	AnchorA    VecSpec        `yaml:"anchor_a"`
	AnchorB    VecSpec        `yaml:"anchor_b"`
	Properties JointPropsSpec `yaml:"properties"`
}

// JointPropsSpec is the superset of per-type joint properties. Length and
// local_axis_a are pointers because their defaults are not zero.
type JointPropsSpec struct {
	CollideConnected bool     `yaml:"collide_connected"`
	Length           *float64 `yaml:"length"`
	Frequency        float64  `yaml:"frequency"`
	Damping          float64  `yaml:"damping"`
	MaxLength        float64  `yaml:"max_length"`
	ReferenceAngle   float64  `yaml:"reference_angle"`
	LowerAngle       float64  `yaml:"lower_angle"`
	UpperAngle       float64  `yaml:"upper_angle"`
	MaxMotorTorque   float64  `yaml:"max_motor_torque"`
	MotorSpeed       float64  `yaml:"motor_speed"`
	EnableLimit      bool     `yaml:"enable_limit"`
	EnableMotor      bool     `yaml:"enable_motor"`
	LocalAxisA       *VecSpec `yaml:"local_axis_a"`
	LowerTranslation float64  `yaml:"lower_translation"`
	UpperTranslation float64  `yaml:"upper_translation"`
	MaxMotorForce    float64  `yaml:"max_motor_force"`
}

// LoadScene reads a scene from path, or from the embedded scene.yaml when
// the path is empty or missing on disk.
func LoadScene(path string) (Scene, error) {
	if path == "" {
		path = "scene.yaml"
	}
	data, err := load(path)
	if err != nil {
		return Scene{}, fmt.Errorf("config: load %s: %w", path, err)
	}
	var s Scene
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Scene{}, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return s, nil
}

// Desc converts the body to a collision object description.
func (b BodySpec) Desc() (collision.ObjectDesc, error) {
	t, err := bodyType(b.Type)
	if err != nil {
		return collision.ObjectDesc{}, fmt.Errorf("config: body %s: %w", b.Name, err)
	}
	shape, err := b.Shape.Def()
	if err != nil {
		return collision.ObjectDesc{}, fmt.Errorf("config: body %s: %w", b.Name, err)
	}
	return collision.ObjectDesc{
		Type:           t,
		Mass:           b.Mass,
		Friction:       b.Friction,
		Restitution:    b.Restitution,
		Group:          b.Group,
		Mask:           b.Mask,
		LinearDamping:  b.LinearDamping,
		AngularDamping: b.AngularDamping,
		LockedRotation: b.LockedRotation,
		Bullet:         b.Bullet,
		StartEnabled:   !b.Disabled,
		Shapes:         []physics.ShapeDef{shape},
	}, nil
}

func bodyType(name string) (physics.BodyType, error) {
	switch name {
	case "dynamic":
		return physics.BodyDynamic, nil
	case "kinematic":
		return physics.BodyKinematic, nil
	case "static", "":
		return physics.BodyStatic, nil
	case "trigger":
		return physics.BodyTrigger, nil
	case "trigger-dynamic":
		return physics.BodyTriggerDynamic, nil
	}
	return 0, fmt.Errorf("unknown body type %q", name)
}

// Def converts the shape to a simulation shape definition.
func (s ShapeSpec) Def() (physics.ShapeDef, error) {
	switch s.Kind {
	case "circle":
		if s.Radius <= 0 {
			return nil, fmt.Errorf("circle needs a positive radius, got %v", s.Radius)
		}
		return physics.CircleShape{Radius: s.Radius, Offset: s.Offset.Vector()}, nil
	case "box":
		if s.W <= 0 || s.H <= 0 {
			return nil, fmt.Errorf("box needs positive dimensions, got %vx%v", s.W, s.H)
		}
		return physics.BoxShape{W: s.W, H: s.H, Offset: s.Offset.Vector()}, nil
	case "polygon":
		if len(s.Vertices) < 3 {
			return nil, fmt.Errorf("polygon needs at least 3 vertices, got %d", len(s.Vertices))
		}
		verts := make([]cp.Vector, len(s.Vertices))
		for i, v := range s.Vertices {
			verts[i] = v.Vector()
		}
		return physics.PolygonShape{Vertices: verts}, nil
	}
	return nil, fmt.Errorf("unknown shape kind %q", s.Kind)
}

// Params converts the joint properties to typed parameters, defaults filled
// for absent keys.
func (j JointSpec) Params() (physics.JointParams, error) {
	props := j.Properties
	switch j.Type {
	case "spring":
		p := physics.DefaultJointParams(physics.JointSpring).(physics.SpringParams)
		p.CollideConnected = props.CollideConnected
		if props.Length != nil {
			p.Length = *props.Length
		}
		p.FrequencyHz = props.Frequency
		p.DampingRatio = props.Damping
		return p, nil
	case "fixed":
		p := physics.DefaultJointParams(physics.JointFixed).(physics.FixedParams)
		p.CollideConnected = props.CollideConnected
		p.MaxLength = props.MaxLength
		return p, nil
	case "hinge":
		p := physics.DefaultJointParams(physics.JointHinge).(physics.HingeParams)
		p.CollideConnected = props.CollideConnected
		p.ReferenceAngle = props.ReferenceAngle
		p.LowerAngle = props.LowerAngle
		p.UpperAngle = props.UpperAngle
		p.MaxMotorTorque = props.MaxMotorTorque
		p.MotorSpeed = props.MotorSpeed
		p.EnableLimit = props.EnableLimit
		p.EnableMotor = props.EnableMotor
		return p, nil
	case "slider":
		p := physics.DefaultJointParams(physics.JointSlider).(physics.SliderParams)
		p.CollideConnected = props.CollideConnected
		if props.LocalAxisA != nil {
			p.LocalAxisA = props.LocalAxisA.Vector()
		}
		p.ReferenceAngle = props.ReferenceAngle
		p.EnableLimit = props.EnableLimit
		p.LowerTranslation = props.LowerTranslation
		p.UpperTranslation = props.UpperTranslation
		p.EnableMotor = props.EnableMotor
		p.MaxMotorForce = props.MaxMotorForce
		p.MotorSpeed = props.MotorSpeed
		return p, nil
	}
	return nil, fmt.Errorf("config: joint %s: unknown type %q", j.Name, j.Type)
}
