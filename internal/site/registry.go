package site

import (
	"github.com/rotisserie/eris"
)

// ErrUnknownSite is returned by Registry.Get for unregistered names.
var ErrUnknownSite = eris.New("site: unknown site")

// Registry maps site names to their profiles.
type Registry struct {
	sites map[string]Site
	order []string // insertion order for deterministic listing
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sites: make(map[string]Site)}
}

// DefaultRegistry returns a registry holding the built-in sites.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(RodeKors())
	return r
}

// Register adds or replaces a site. A replaced site keeps its position.
func (r *Registry) Register(s Site) {
	name := s.Name()
	if _, ok := r.sites[name]; !ok {
		r.order = append(r.order, name)
	}
	r.sites[name] = s
}

// RegisterProfiles loads profiles from a YAML file and registers them.
func (r *Registry) RegisterProfiles(path string) error {
	profiles, err := LoadProfiles(path)
	if err != nil {
		return err
	}
	for _, p := range profiles {
		r.Register(p)
	}
	return nil
}

// Get returns a site by name.
func (r *Registry) Get(name string) (Site, error) {
	s, ok := r.sites[name]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownSite, "%q (known: %v)", name, r.Names())
	}
	return s, nil
}

// All returns all sites in registration order.
func (r *Registry) All() []Site {
	out := make([]Site, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.sites[name])
	}
	return out
}

// Names returns all registered names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
