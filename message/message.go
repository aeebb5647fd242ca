// Package message provides the bounded FIFO socket the physics layer posts
// its events through. Senders and receivers are addressed by 64-bit name
// hashes so payloads never carry object pointers across the boundary.
package message

import (
	"errors"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// ErrFull is returned by Post when the socket holds its capacity of
// envelopes. The envelope is dropped.
var ErrFull = errors.New("message: socket full")

// DefaultCapacity is used by NewSocket when no capacity is given.
const DefaultCapacity = 1024

// Hash returns the 64-bit id for a name, used for both address paths and
// fragments.
func Hash(name string) uint64 {
	return xxhash.Sum64String(name)
}

// Address identifies a message endpoint: the instance path plus the
// component fragment within it. The zero Address is a valid "nowhere"
// endpoint for messages that expect no reply.
type Address struct {
	Path     uint64
	Fragment uint64
}

// Addr builds an Address from a path and fragment name.
func Addr(path, fragment string) Address {
	return Address{Path: Hash(path), Fragment: Hash(fragment)}
}

// Envelope is one queued message.
type Envelope struct {
	Sender   Address
	Receiver Address
	Payload  any
}

// Socket is a named bounded FIFO queue of envelopes. Posting and
// dispatching are safe for concurrent use.
type Socket struct {
	name string
	cap  int

	mu    sync.Mutex
	queue []Envelope
}

// NewSocket returns an empty socket. A capacity below 1 falls back to
// DefaultCapacity.
func NewSocket(name string, capacity int) *Socket {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Socket{name: name, cap: capacity}
}

// Name returns the socket name.
func (s *Socket) Name() string {
	return s.name
}

// Post queues an envelope for the next dispatch pass. Posting to a full
// socket returns ErrFull and drops the envelope.
func (s *Socket) Post(e Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) >= s.cap {
		return ErrFull
	}
	s.queue = append(s.queue, e)
	return nil
}

// Dispatch delivers, in FIFO order, every envelope that was queued when the
// call started and returns the number delivered. Envelopes posted while the
// handler runs stay queued for the next pass, so a handler may post without
// recursing into itself.
func (s *Socket) Dispatch(handler func(Envelope)) int {
	s.mu.Lock()
	batch := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, e := range batch {
		handler(e)
	}
	return len(batch)
}

// Len reports how many envelopes are queued.
func (s *Socket) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
