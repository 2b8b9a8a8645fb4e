package templates

import (
	"fmt"
	"slices"
)

// Plan is a backend and ORM selection resolved against the catalog.
type Plan struct {
	Backend string
	ORM     string

	// Files is the manifest in install order. Entries the backend tree does
	// not ship are skipped at install time.
	Files     []string
	Mergeable []string

	Dependencies    []string
	DevDependencies []string

	// EnvSample is the sample inside the backend tree, empty when the catalog
	// declares none. EnvTarget is the reserved name it is staged as.
	EnvSample string
	EnvTarget string

	Scripts []Script
}

// IsMergeable reports whether the destination receives appended content when
// it already exists.
func (p *Plan) IsMergeable(rel string) bool {
	return slices.Contains(p.Mergeable, rel)
}

// Resolve builds the plan for a backend and ORM. Dependencies are ordered base,
// backend, ORM, without duplicates.
func (s *Store) Resolve(backend, orm string) (*Plan, error) {
	b, ok := find(s.catalog.Backends, backend)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
	}
	o, ok := find(s.catalog.ORMs, orm)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownORM, orm)
	}

	c := s.catalog
	plan := &Plan{
		Backend:   b.Key,
		ORM:       o.Key,
		Files:     slices.Clone(c.Manifest),
		Mergeable: slices.Clone(c.Mergeable),
		EnvSample: c.Env.Sample,
		EnvTarget: c.Env.Target,
	}
	plan.Dependencies = merge(c.Base.Runtime, b.Runtime, o.Runtime)
	plan.DevDependencies = merge(c.Base.Dev, b.Dev, o.Dev)
	plan.Scripts = append(slices.Clone(b.Scripts), o.Scripts...)

	return plan, nil
}

func merge(lists ...[]string) []string {
	out := make([]string, 0)
	for _, list := range lists {
		for _, name := range list {
			if !slices.Contains(out, name) {
				out = append(out, name)
			}
		}
	}
	return out
}
