package transition

import (
	"fmt"
)

// Workspace is a named cache of values precomputed once per sentence and
// reused across feature extractions on the same state.
type Workspace interface {
	Name() string
}

// WorkspaceRegistry assigns stable slots to the workspace types requested
// by feature extractors at setup time. Requests are idempotent: the same
// name always yields the same slot.
type WorkspaceRegistry struct {
	index map[string]int
	names []string
}

func NewWorkspaceRegistry() *WorkspaceRegistry {
	return &WorkspaceRegistry{index: make(map[string]int)}
}

func (r *WorkspaceRegistry) Request(name string) int {
	if slot, exists := r.index[name]; exists {
		return slot
	}
	slot := len(r.names)
	r.index[name] = slot
	r.names = append(r.names, name)
	return slot
}

func (r *WorkspaceRegistry) Size() int {
	return len(r.names)
}

func (r *WorkspaceRegistry) NameOf(slot int) string {
	return r.names[slot]
}

// WorkspaceSet holds one workspace instance per registered slot for one
// batch slot. It is Reset whenever a new sentence occupies the slot and is
// never shared between slots.
type WorkspaceSet struct {
	workspaces []Workspace
}

func (s *WorkspaceSet) Reset(registry *WorkspaceRegistry) {
	s.workspaces = make([]Workspace, registry.Size())
}

func (s *WorkspaceSet) Has(slot int) bool {
	return slot >= 0 && slot < len(s.workspaces) && s.workspaces[slot] != nil
}

func (s *WorkspaceSet) Set(slot int, w Workspace) {
	if slot < 0 || slot >= len(s.workspaces) {
		panic(fmt.Sprintf("workspace slot out of range: %v of %v", slot, len(s.workspaces)))
	}
	s.workspaces[slot] = w
}

func (s *WorkspaceSet) Get(slot int) Workspace {
	if !s.Has(slot) {
		panic(fmt.Sprintf("workspace slot %v not populated", slot))
	}
	return s.workspaces[slot]
}

// VectorWorkspace caches one precomputed int per sentence token, e.g. term
// map ids of words or tags.
type VectorWorkspace struct {
	name   string
	values []int
}

func NewVectorWorkspace(name string, size int) *VectorWorkspace {
	return &VectorWorkspace{name: name, values: make([]int, size)}
}

func (w *VectorWorkspace) Name() string {
	return w.name
}

func (w *VectorWorkspace) Set(index, value int) {
	w.values[index] = value
}

// Value returns the cached value for token index, or fallback when index is
// out of range (e.g. a feature addressing past the sentence end).
func (w *VectorWorkspace) Value(index, fallback int) int {
	if index < 0 || index >= len(w.values) {
		return fallback
	}
	return w.values[index]
}
