package loader

import (
	"fmt"

	"github.com/lexara-six/ingestion/internal/domain"
)

// Constructor builds a Loader for one job_type from its job config blob.
type Constructor func(config map[string]any) (Loader, error)

// Registry is a typed, explicit job_type -> Constructor lookup. It replaces
// the file-system plugin scan (a "jobs/<type>/loader.py"-equivalent search,
// then a legacy "loaders.<snake>_loader.<Camel>Loader" fallback): every
// loader this worker can run is wired in once at startup, by name, with no
// reflection-based discovery.
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry builds an empty registry; call Register for each supported
// job_type before handing it to a worker.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register wires jobType to the given Constructor. Re-registering a
// jobType overwrites the previous entry.
func (r *Registry) Register(jobType string, ctor Constructor) {
	r.constructors[jobType] = ctor
}

// Build resolves jobType and constructs a Loader from config.
// ErrNoLoader is returned, matching spec's "no loader for T" surfacing,
// when nothing is registered for jobType.
func (r *Registry) Build(jobType string, config map[string]any) (Loader, error) {
	ctor, ok := r.constructors[jobType]
	if !ok {
		return nil, fmt.Errorf("op=loader.registry.build: job_type %q: %w", jobType, domain.ErrNoLoader)
	}
	l, err := ctor(config)
	if err != nil {
		return nil, fmt.Errorf("op=loader.registry.build: job_type %q: %w", jobType, err)
	}
	return l, nil
}

// JobTypes lists every registered job_type, for the worker's declared
// capabilities.
func (r *Registry) JobTypes() []string {
	types := make([]string, 0, len(r.constructors))
	for t := range r.constructors {
		types = append(types, t)
	}
	return types
}
