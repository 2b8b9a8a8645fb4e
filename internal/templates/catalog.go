package templates

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// CatalogFile is the name of the catalog at the root of a template store.
const CatalogFile = "catalog.yml"

var (
	// ErrInvalidCatalog indicates catalog.yml is missing or malformed.
	ErrInvalidCatalog = errors.New("invalid template catalog")

	// ErrUnknownBackend indicates a backend key the catalog does not list.
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrUnknownORM indicates an ORM key the catalog does not list.
	ErrUnknownORM = errors.New("unknown ORM")
)

// Catalog describes every template tree in a store.
type Catalog struct {
	Manifest  []string     `yaml:"manifest"`
	Mergeable []string     `yaml:"mergeable"`
	Env       EnvFiles     `yaml:"env"`
	Base      Dependencies `yaml:"base"`
	Backends  []Choice     `yaml:"backends"`
	ORMs      []Choice     `yaml:"orms"`
}

// EnvFiles names the environment sample inside a backend tree and the
// reserved file it is staged as in the project root.
type EnvFiles struct {
	Sample string `yaml:"sample"`
	Target string `yaml:"target"`
}

// Dependencies lists package names by install kind.
type Dependencies struct {
	Runtime []string `yaml:"dependencies"`
	Dev     []string `yaml:"devDependencies"`
}

// Script is a package.json script entry.
type Script struct {
	Name    string `yaml:"name"`
	Command string `yaml:"command"`
}

// Choice is one selectable backend or ORM.
type Choice struct {
	Key          string `yaml:"key"`
	Label        string `yaml:"label"`
	Default      bool   `yaml:"default"`
	Dependencies `yaml:",inline"`
	Scripts      []Script `yaml:"scripts"`
}

// parseCatalog decodes and validates catalog.yml content.
func parseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if len(c.Manifest) == 0 {
		return errors.New("manifest is empty")
	}
	seen := make(map[string]bool, len(c.Manifest))
	for _, p := range c.Manifest {
		if err := validRelPath(p); err != nil {
			return fmt.Errorf("manifest entry %q: %w", p, err)
		}
		if seen[p] {
			return fmt.Errorf("manifest entry %q listed twice", p)
		}
		seen[p] = true
	}
	for _, p := range c.Mergeable {
		if !seen[p] {
			return fmt.Errorf("mergeable entry %q is not in the manifest", p)
		}
	}

	if c.Env.Sample != "" {
		if err := validRelPath(c.Env.Sample); err != nil {
			return fmt.Errorf("env sample %q: %w", c.Env.Sample, err)
		}
		if c.Env.Target == "" || strings.Contains(c.Env.Target, "/") {
			return fmt.Errorf("env target %q must be a file name in the project root", c.Env.Target)
		}
	}

	if err := validChoices("backend", c.Backends); err != nil {
		return err
	}
	return validChoices("orm", c.ORMs)
}

func validChoices(kind string, choices []Choice) error {
	if len(choices) == 0 {
		return fmt.Errorf("no %s choices", kind)
	}
	keys := make(map[string]bool, len(choices))
	for _, ch := range choices {
		if ch.Key == "" {
			return fmt.Errorf("%s choice with empty key", kind)
		}
		if keys[ch.Key] {
			return fmt.Errorf("%s %q listed twice", kind, ch.Key)
		}
		keys[ch.Key] = true
		for _, s := range ch.Scripts {
			if s.Name == "" || s.Command == "" {
				return fmt.Errorf("%s %q has an incomplete script", kind, ch.Key)
			}
		}
	}
	return nil
}

// validRelPath accepts clean, slash-separated paths that stay inside the root.
func validRelPath(p string) error {
	switch {
	case p == "":
		return errors.New("empty path")
	case path.IsAbs(p) || strings.Contains(p, "\\"):
		return errors.New("must be relative and slash-separated")
	case path.Clean(p) != p:
		return errors.New("must be clean")
	case p == ".." || strings.HasPrefix(p, "../"):
		return errors.New("escapes the template root")
	}
	return nil
}

// find returns the choice with the given key.
func find(choices []Choice, key string) (Choice, bool) {
	for _, ch := range choices {
		if ch.Key == key {
			return ch, true
		}
	}
	return Choice{}, false
}

// defaultKey returns the key marked default, or the first key.
func defaultKey(choices []Choice) string {
	for _, ch := range choices {
		if ch.Default {
			return ch.Key
		}
	}
	if len(choices) > 0 {
		return choices[0].Key
	}
	return ""
}
