package physics

import (
	"math"

	"github.com/jakecoffman/cp/v2"
)

// Solver tolerances, in simulation units. Corrections beyond the max are
// clamped per iteration to avoid overshoot.
const (
	linearSlop           = 0.005
	angularSlop          = 2.0 / 180.0 * math.Pi
	maxLinearCorrection  = 0.2
	maxAngularCorrection = 8.0 / 180.0 * math.Pi
)

type limitState int

const (
	limitInactive limitState = iota
	limitAtLower
	limitAtUpper
	limitEqual
)

type vec3 struct {
	x, y, z float64
}

func (a vec3) add(b vec3) vec3 {
	return vec3{a.x + b.x, a.y + b.y, a.z + b.z}
}

func (a vec3) sub(b vec3) vec3 {
	return vec3{a.x - b.x, a.y - b.y, a.z - b.z}
}

func (a vec3) neg() vec3 {
	return vec3{-a.x, -a.y, -a.z}
}

func dot3(a, b vec3) float64 {
	return a.x*b.x + a.y*b.y + a.z*b.z
}

func cross3(a, b vec3) vec3 {
	return vec3{a.y*b.z - a.z*b.y, a.z*b.x - a.x*b.z, a.x*b.y - a.y*b.x}
}

// mat33 is a symmetric 3x3 effective-mass matrix stored by columns.
type mat33 struct {
	ex, ey, ez vec3
}

// solve33 solves m*x = b for the full system.
func (m mat33) solve33(b vec3) vec3 {
	det := dot3(m.ex, cross3(m.ey, m.ez))
	if det != 0 {
		det = 1.0 / det
	}
	return vec3{
		x: det * dot3(b, cross3(m.ey, m.ez)),
		y: det * dot3(m.ex, cross3(b, m.ez)),
		z: det * dot3(m.ex, cross3(m.ey, b)),
	}
}

// solve22 solves the upper-left 2x2 block of m, used when the limit row of a
// 3x3 joint system is inactive.
func (m mat33) solve22(b cp.Vector) cp.Vector {
	a11, a12 := m.ex.x, m.ey.x
	a21, a22 := m.ex.y, m.ey.y
	det := a11*a22 - a12*a21
	if det != 0 {
		det = 1.0 / det
	}
	return cp.Vector{
		X: det * (a22*b.X - a12*b.Y),
		Y: det * (a11*b.Y - a21*b.X),
	}
}

// invMassOf and invMomentOf rely on the kernel reporting infinite mass and
// moment for static, kinematic and rotation-locked bodies, which divides to a
// clean zero.
func invMassOf(b *cp.Body) float64 {
	return 1.0 / b.Mass()
}

func invMomentOf(b *cp.Body) float64 {
	return 1.0 / b.Moment()
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(x, hi))
}

// crossSV computes s x v for a scalar angular velocity and a plane vector.
func crossSV(s float64, v cp.Vector) cp.Vector {
	return cp.Vector{X: -s * v.Y, Y: s * v.X}
}
