package collision

import "errors"

var (
	// ErrNotSupported is returned for operations the world cannot perform,
	// like connecting a joint across two different physics worlds.
	ErrNotSupported = errors.New("collision: not supported")

	// ErrIDExists is returned by CreateJoint when the source component
	// already owns a joint with that id.
	ErrIDExists = errors.New("collision: joint id already exists")

	// ErrIDNotFound is returned by joint operations when the id matches no
	// joint on the component.
	ErrIDNotFound = errors.New("collision: joint id not found")

	// ErrNotConnected is returned by joint operations on an entry that
	// lost its underlying constraint.
	ErrNotConnected = errors.New("collision: joint not connected")

	// ErrTypeMismatch is returned by SetProperty when the value's shape
	// does not match the property. The property keeps its value.
	ErrTypeMismatch = errors.New("collision: property type mismatch")

	// ErrNoProperty is returned for property names the component does not
	// expose.
	ErrNoProperty = errors.New("collision: no such property")

	// ErrUnknown wraps kernel-level failures, like an invalid mass and
	// type combination surfacing from body or joint creation.
	ErrUnknown = errors.New("collision: unknown error")
)

// ResultString maps a joint operation error to the script-facing result
// text. A nil error reads "result ok".
func ResultString(err error) string {
	switch {
	case err == nil:
		return "result ok"
	case errors.Is(err, ErrNotSupported):
		return "not supported"
	case errors.Is(err, ErrIDExists):
		return "a joint with that id already exists"
	case errors.Is(err, ErrIDNotFound):
		return "joint id not found"
	case errors.Is(err, ErrNotConnected):
		return "joint not connected"
	default:
		return "unknown error"
	}
}
