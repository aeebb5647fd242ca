package physics

import "github.com/jakecoffman/cp/v2"

// Transform is a game object's world transform as the physics layer sees it:
// position and angle in world units plus a uniform scale. Non-uniform object
// scale collapses to the smaller axis.
type Transform struct {
	Position cp.Vector
	Angle    float64
	Scale    float64
}

// UniformScale returns the scale to apply to shapes for an object scaled by
// (x, y). The smaller axis wins so shapes never outgrow the visual bounds.
func UniformScale(x, y float64) float64 {
	if x < y {
		return x
	}
	return y
}

// WorldDef carries the two callbacks a world uses to exchange transforms with
// the game-object layer. GetWorldTransform pulls the owner's current
// transform before stepping (kinematic sync); SetWorldTransform pushes a
// solved dynamic body's transform back after stepping. Both are invoked
// synchronously inside Step. Either may be nil, which disables that half of
// the sync.
type WorldDef struct {
	GetWorldTransform func(owner any) (Transform, bool)
	SetWorldTransform func(owner any, position cp.Vector, angle float64)
}
