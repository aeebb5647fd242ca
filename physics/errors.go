package physics

import "errors"

var (
	// ErrInvalidScale is returned by NewContext when the scale is outside
	// the supported range.
	ErrInvalidScale = errors.New("physics: scale outside the valid range")

	// ErrWorldLimit is returned by NewWorld when the context already holds
	// its configured maximum number of worlds.
	ErrWorldLimit = errors.New("physics: world limit reached")

	// ErrInvalidMass is returned when a body definition's mass does not
	// match its type: dynamic bodies need a positive mass, every other
	// type needs zero.
	ErrInvalidMass = errors.New("physics: invalid mass for body type")

	// ErrNoShapes is returned when a body definition carries no shapes.
	ErrNoShapes = errors.New("physics: body needs at least one shape")

	// ErrQueueFull is returned by RequestRayCast when the pending request
	// queue is at capacity. The request is dropped.
	ErrQueueFull = errors.New("physics: ray cast queue full")

	// ErrZeroRay is returned for ray casts whose from and to coincide.
	ErrZeroRay = errors.New("physics: ray has zero length")

	// ErrGridBounds is returned by grid shape mutations with an
	// out-of-range layer, row, column or hull index.
	ErrGridBounds = errors.New("physics: grid index out of bounds")

	// ErrNotGrid is returned by grid shape operations on a body that was
	// not created with grid shapes.
	ErrNotGrid = errors.New("physics: body has no grid shapes")
)
