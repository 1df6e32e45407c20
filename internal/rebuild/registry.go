package rebuild

import "github.com/samwillis/solidtype-core/internal/kernel"

// BodyEntry is one solid in the registry, tagged with the feature that
// created it.
type BodyEntry struct {
	ID      string
	Feature string
	Name    string
	Color   string
	Body    *kernel.Body
}

// Registry is the ordered body set a rebuild produces. Insertion order is the
// iteration order cut operations and merges observe. The rebuild domain owns
// it exclusively.
type Registry struct {
	entries []*BodyEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry { return &Registry{} }

// Add appends an entry.
func (r *Registry) Add(e *BodyEntry) { r.entries = append(r.entries, e) }

// Get returns the entry with the given id.
func (r *Registry) Get(id string) (*BodyEntry, bool) {
	for _, e := range r.entries {
		if e.ID == id {
			return e, true
		}
	}
	return nil, false
}

// GetByFeature returns the entry created by the given feature.
func (r *Registry) GetByFeature(featureID string) (*BodyEntry, bool) {
	for _, e := range r.entries {
		if e.Feature == featureID {
			return e, true
		}
	}
	return nil, false
}

// Remove drops the entry with the given id, preserving order.
func (r *Registry) Remove(id string) {
	for i, e := range r.entries {
		if e.ID == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// List returns the entries in insertion order. The slice is shared; callers
// must not mutate it.
func (r *Registry) List() []*BodyEntry { return r.entries }

// Len returns the number of bodies.
func (r *Registry) Len() int { return len(r.entries) }

// Clone copies the registry structure. Entry structs are copied so a failed
// interpreter can be rolled back by discarding the clone; bodies are
// immutable and shared.
func (r *Registry) Clone() *Registry {
	out := &Registry{entries: make([]*BodyEntry, len(r.entries))}
	for i, e := range r.entries {
		copied := *e
		out.entries[i] = &copied
	}
	return out
}

// ReplaceWith swaps this registry's contents for another's (commit after a
// successful interpreter run on a clone).
func (r *Registry) ReplaceWith(other *Registry) { r.entries = other.entries }
