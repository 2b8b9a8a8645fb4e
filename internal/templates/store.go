package templates

import (
	"embed"
	"fmt"
	"io/fs"
	"slices"
)

//go:embed catalog.yml all:mysql all:postgresql all:libsql
var embedded embed.FS

// Store is a read-only collection of template trees plus their catalog.
// It is safe to share; nothing in it changes after Load.
type Store struct {
	fsys    fs.FS
	catalog *Catalog
}

// Default returns the store built into the binary.
func Default() (*Store, error) {
	return Load(embedded)
}

// Load reads catalog.yml from fsys and checks that every backend it lists has
// a template directory.
// In production fsys comes from go:embed; in tests use testing/fstest.MapFS.
func Load(fsys fs.FS) (*Store, error) {
	data, err := fs.ReadFile(fsys, CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrInvalidCatalog, CatalogFile, err)
	}

	c, err := parseCatalog(data)
	if err != nil {
		return nil, err
	}

	for _, b := range c.Backends {
		info, err := fs.Stat(fsys, b.Key)
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("%w: backend %q has no template directory", ErrInvalidCatalog, b.Key)
		}
	}

	return &Store{fsys: fsys, catalog: c}, nil
}

// Backends returns the selectable backends in catalog order.
func (s *Store) Backends() []Choice {
	return slices.Clone(s.catalog.Backends)
}

// ORMs returns the selectable ORMs in catalog order.
func (s *Store) ORMs() []Choice {
	return slices.Clone(s.catalog.ORMs)
}

// DefaultBackend returns the backend preselected in prompts.
func (s *Store) DefaultBackend() string {
	return defaultKey(s.catalog.Backends)
}

// DefaultORM returns the ORM preselected in prompts.
func (s *Store) DefaultORM() string {
	return defaultKey(s.catalog.ORMs)
}

// Tree returns the template tree for a backend, rooted at the backend directory.
func (s *Store) Tree(backend string) (fs.FS, error) {
	if _, ok := find(s.catalog.Backends, backend); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
	}
	return fs.Sub(s.fsys, backend)
}
