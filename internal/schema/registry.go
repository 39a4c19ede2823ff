package schema

import (
	"errors"
	"fmt"
)

// ErrUnknownPacket is returned when a packet id has no registered schema. The
// codec never falls back to a default schema; the dispatcher decides what an
// unknown id means for the connection.
var ErrUnknownPacket = errors.New("schema: unknown packet id")

// Registry maps packet ids to schemas. It is populated at startup and read
// concurrently without locking afterwards; registering while serving traffic
// is a caller error.
type Registry struct {
	schemas map[uint16]*Schema
}

func NewRegistry() *Registry {
	return &Registry{schemas: make(map[uint16]*Schema)}
}

func (r *Registry) Register(id uint16, s *Schema) error {
	if prev, ok := r.schemas[id]; ok {
		return fmt.Errorf("packet id %d already registered to schema %q", id, prev.name)
	}
	r.schemas[id] = s
	return nil
}

// MustRegister is Register for startup-time tables.
func (r *Registry) MustRegister(id uint16, s *Schema) {
	if err := r.Register(id, s); err != nil {
		panic(err)
	}
}

func (r *Registry) Lookup(id uint16) (*Schema, bool) {
	s, ok := r.schemas[id]
	return s, ok
}

// Get is Lookup with the miss reported as a wrapped ErrUnknownPacket.
func (r *Registry) Get(id uint16) (*Schema, error) {
	s, ok := r.schemas[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPacket, id)
	}
	return s, nil
}
