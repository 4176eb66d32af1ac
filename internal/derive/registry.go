package derive

import (
	"github.com/rotisserie/eris"
)

// Registry maps module names to their implementations.
type Registry struct {
	modules map[string]Module
	order   []string // insertion order for deterministic iteration
}

// NewRegistry creates a registry populated with every derivation module.
func NewRegistry() *Registry {
	r := &Registry{
		modules: make(map[string]Module),
	}

	r.Register(&RouteModule{})
	r.Register(&AgeModule{})
	r.Register(IncomeModule())
	r.Register(EmploymentModule())
	r.Register(StudentModule())
	r.Register(&AccessEgressModule{})
	r.Register(&WeightModule{})

	return r
}

// Register adds a module to the registry.
func (r *Registry) Register(m Module) {
	name := m.Name()
	if _, ok := r.modules[name]; !ok {
		r.order = append(r.order, name)
	}
	r.modules[name] = m
}

// Get returns a module by name.
func (r *Registry) Get(name string) (Module, error) {
	m, ok := r.modules[name]
	if !ok {
		return nil, eris.Errorf("derive: unknown module %q", name)
	}
	return m, nil
}

// Select returns the named modules in the order given.
func (r *Registry) Select(names []string) ([]Module, error) {
	out := make([]Module, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return nil, eris.Errorf("derive: module %q selected twice", name)
		}
		seen[name] = true
		m, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// All returns every registered module in registration order.
func (r *Registry) All() []Module {
	out := make([]Module, len(r.order))
	for i, name := range r.order {
		out[i] = r.modules[name]
	}
	return out
}

// Names returns the registered module names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
