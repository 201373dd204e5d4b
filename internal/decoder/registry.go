// Package decoder streams typed per-sensor events out of .touch
// containers. Per-sensor-type codecs are looked up in a process-wide
// registry; malformed event blobs are skipped, never fatal.
package decoder

import "sync"

// Codec deserializes one opaque event blob into a structured record.
// Implementations are stateless; one instance is created per sensor
// at the start of a decode pass and held for its lifetime.
type Codec interface {
	Deserialize(blob []byte) (any, error)
}

// Factory constructs a codec for one declared sensor.
type Factory func() Codec

// Registry maps sensor types to codec factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty codec registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register installs a codec factory for a sensor type, replacing any
// previous registration.
func (r *Registry) Register(sensorType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[sensorType] = factory
}

// Lookup returns the codec factory for a sensor type. Unregistered
// types return ok=false; the decoder silently excludes those sensors.
func (r *Registry) Lookup(sensorType string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[sensorType]
	return factory, ok
}

// defaultRegistry holds the process-wide registrations.
var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide codec registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register installs a codec factory in the process-wide registry.
func Register(sensorType string, factory Factory) {
	defaultRegistry.Register(sensorType, factory)
}
