package tool

import (
	"errors"
	"fmt"
)

// ErrDuplicateName is returned by Registry.Add when name already names
// a different tool than the one being added.
var ErrDuplicateName = errors.New("tool: duplicate name")

// Registry owns all Tool storage. Per spec.md §9's design note on
// breaking the Tool/port-map/registry cycle, the registry is the sole
// owner; the serial-number and port-handle indexes are non-owning
// lookups by key into the owned slice.
type Registry struct {
	tools       []*Tool
	bySerial    map[string]int
	byPortHandle map[string]int
	byName      map[string]int

	onUpdated func()
}

// NewRegistry constructs an empty Registry. onUpdated, if non-nil, is
// invoked after every successful structural change (add, or port
// handle assignment) — the "updated tools" event of spec.md §4.5.
func NewRegistry(onUpdated func()) *Registry {
	return &Registry{
		bySerial:     make(map[string]int),
		byPortHandle: make(map[string]int),
		byName:       make(map[string]int),
		onUpdated:    onUpdated,
	}
}

// Add registers a new Tool. If serial already exists, the existing
// Tool is returned unchanged (duplicate adds are ignored, per
// spec.md §3's serial-number uniqueness invariant). If name collides
// with a different tool, Add fails with ErrDuplicateName.
func (r *Registry) Add(name, serial, definitionPath string) (*Tool, error) {
	if idx, ok := r.bySerial[serial]; ok {
		return r.tools[idx], nil
	}
	if _, ok := r.byName[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	t := &Tool{Name: name, SerialNumber: serial, DefinitionPath: definitionPath}
	idx := len(r.tools)
	r.tools = append(r.tools, t)
	r.bySerial[serial] = idx
	r.byName[name] = idx

	if r.onUpdated != nil {
		r.onUpdated()
	}
	return t, nil
}

// AssignPortHandle records that Tool t now owns port handle ph,
// updating the port-handle index. An empty ph clears any existing
// assignment for t without creating an entry.
func (r *Registry) AssignPortHandle(t *Tool, ph string) {
	if t.PortHandle != "" {
		delete(r.byPortHandle, t.PortHandle)
	}
	t.PortHandle = ph
	if ph == "" {
		return
	}
	idx, ok := r.byName[t.Name]
	if !ok {
		return
	}
	r.byPortHandle[ph] = idx
	if r.onUpdated != nil {
		r.onUpdated()
	}
}

// ToolBySerial looks up a Tool by its 8-character serial number.
func (r *Registry) ToolBySerial(serial string) (*Tool, bool) {
	idx, ok := r.bySerial[serial]
	if !ok {
		return nil, false
	}
	return r.tools[idx], true
}

// ToolByPortHandle looks up a Tool by its currently assigned 2-char
// port handle.
func (r *Registry) ToolByPortHandle(ph string) (*Tool, bool) {
	idx, ok := r.byPortHandle[ph]
	if !ok {
		return nil, false
	}
	return r.tools[idx], true
}

// ToolNameAtIndex returns the name of the i'th registered tool, in
// registration order.
func (r *Registry) ToolNameAtIndex(i int) (string, bool) {
	if i < 0 || i >= len(r.tools) {
		return "", false
	}
	return r.tools[i].Name, true
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}

// Names returns the names of all registered tools in registration
// order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.tools))
	for i, t := range r.tools {
		names[i] = t.Name
	}
	return names
}

// All returns every registered Tool in registration order. Callers
// must not mutate the returned slice's backing storage.
func (r *Registry) All() []*Tool {
	return r.tools
}

// WithDefinition returns every registered Tool that has a non-empty
// DefinitionPath — the passive tools PHRQ/PVWR loading needs to visit.
func (r *Registry) WithDefinition() []*Tool {
	var out []*Tool
	for _, t := range r.tools {
		if t.DefinitionPath != "" {
			out = append(out, t)
		}
	}
	return out
}
