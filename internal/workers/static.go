package workers

import (
	"context"
	"sync"
)

// StaticDirectory is an in-memory Directory for hosts that register
// workers at startup. Safe for concurrent use.
type StaticDirectory struct {
	mu      sync.RWMutex
	byID    map[string]Definition
	ordered []string
}

// NewStaticDirectory creates a directory pre-populated with the given workers
func NewStaticDirectory(defs ...Definition) *StaticDirectory {
	d := &StaticDirectory{byID: make(map[string]Definition)}
	for _, def := range defs {
		d.Register(def)
	}
	return d
}

// Register adds or replaces a worker definition
func (d *StaticDirectory) Register(def Definition) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.byID[def.ID]; !exists {
		d.ordered = append(d.ordered, def.ID)
	}
	d.byID[def.ID] = def
}

// GetWorker returns the worker with the given ID
func (d *StaticDirectory) GetWorker(_ context.Context, id string) (*Definition, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	def, ok := d.byID[id]
	if !ok {
		return nil, ErrWorkerNotFound
	}
	return &def, nil
}

// ListWorkers returns all registered workers in registration order
func (d *StaticDirectory) ListWorkers(_ context.Context) ([]Definition, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Definition, 0, len(d.ordered))
	for _, id := range d.ordered {
		out = append(out, d.byID[id])
	}
	return out, nil
}
