package rules

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/rezonia/invoice-engine/internal/model"
)

// Registry holds the rule sets an engine can select by name.
// It is immutable once built.
type Registry struct {
	sets   []*RuleSet
	byName map[string]*RuleSet
}

// NewRegistry creates a registry from sets. Order matters: it is the
// order names are listed in the catalog. Panics if two sets share a name.
func NewRegistry(sets ...*RuleSet) *Registry {
	r := &Registry{
		sets:   make([]*RuleSet, 0, len(sets)),
		byName: make(map[string]*RuleSet, len(sets)),
	}
	for _, s := range sets {
		if _, dup := r.byName[s.Name]; dup {
			panic(fmt.Sprintf("rules: duplicate rule set %q", s.Name))
		}
		r.sets = append(r.sets, s)
		r.byName[s.Name] = s
	}
	return r
}

// DefaultRegistry creates a registry with the built-in rule sets
func DefaultRegistry() *Registry {
	return NewRegistry(
		Peppol(),
		Fairwork(),
	)
}

// Get returns the rule set registered under name
func (r *Registry) Get(name string) (*RuleSet, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// Resolve looks up every name, in order, before anything is evaluated.
// The first unknown name fails the whole call.
func (r *Registry) Resolve(names []string) ([]*RuleSet, error) {
	sets := make([]*RuleSet, 0, len(names))
	for _, name := range names {
		s, ok := r.byName[name]
		if !ok {
			return nil, model.NewUnknownRuleSetError(name, r.Names())
		}
		sets = append(sets, s)
	}
	return sets, nil
}

// Names returns the registered set names in registration order
func (r *Registry) Names() []string {
	return lo.Map(r.sets, func(s *RuleSet, _ int) string {
		return s.Name
	})
}

// Catalog builds the presentation lookup for the registered sets
func (r *Registry) Catalog() *Catalog {
	return NewCatalog(lo.Map(r.sets, func(s *RuleSet, _ int) CatalogEntry {
		return CatalogEntry{
			Name:        s.Name,
			DisplayName: s.DisplayName,
			Description: s.Description,
			RuleCount:   len(s.Rules),
		}
	}))
}
