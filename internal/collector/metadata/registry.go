package metadata

import (
	"sync/atomic"
)

// Registry holds the currently published Snapshot. Readers never block and always observe one complete snapshot;
// Publish replaces it wholesale.
type Registry struct {
	current atomic.Pointer[Snapshot]
}

// NewRegistry requires an initial snapshot, so lookups are always served from real data.
func NewRegistry(initial *Snapshot) *Registry {
	r := &Registry{}
	r.current.Store(initial)
	return r
}

func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

func (r *Registry) Publish(s *Snapshot) {
	r.current.Store(s)
}

func (r *Registry) Find(entityID string) (Result, bool) {
	return r.current.Load().Find(entityID)
}
