package project

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// ManifestFile is the name of the project manifest.
const ManifestFile = "package.json"

// DefaultFramework is the dependency that marks a supported project.
const DefaultFramework = "next"

var (
	// ErrNotAProject indicates the directory has no package.json.
	ErrNotAProject = errors.New("no package.json found; run this inside a Next.js project")

	// ErrInvalidManifest indicates package.json is not a JSON object.
	ErrInvalidManifest = errors.New("package.json is not a valid JSON object")

	// ErrUnsupportedFramework indicates package.json does not depend on the
	// framework.
	ErrUnsupportedFramework = errors.New("unsupported project")
)

// ManifestWriteError reports a failed package.json update. Scaffolding that
// already happened is kept.
type ManifestWriteError struct {
	Path string
	Err  error
}

func (e *ManifestWriteError) Error() string {
	return fmt.Sprintf("updating %s: %v", e.Path, e.Err)
}

func (e *ManifestWriteError) Unwrap() error {
	return e.Err
}

// Script is a package.json script entry.
type Script struct {
	Name    string
	Command string
}

// Manifest is a probed package.json.
type Manifest struct {
	fs   afero.Fs
	path string

	mu      sync.Mutex
	data    []byte
	pending []Script
}

// Probe checks that root holds a package.json that declares framework in
// dependencies or devDependencies. An empty framework means DefaultFramework.
// Probe never writes.
func Probe(fsys afero.Fs, root, framework string) (*Manifest, error) {
	if root == "" {
		root = "."
	}
	if framework == "" {
		framework = DefaultFramework
	}
	path := filepath.Join(root, ManifestFile)

	info, err := fsys.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w (looked in %s)", ErrNotAProject, root)
		}
		return nil, fmt.Errorf("checking %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w (%s is a directory)", ErrNotAProject, path)
	}

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidManifest, path)
	}

	m := &Manifest{fs: fsys, path: path, data: data}
	if _, ok := m.Dependency(framework); !ok {
		return nil, fmt.Errorf("%w: %s does not depend on %q", ErrUnsupportedFramework, path, framework)
	}
	return m, nil
}

// Path returns the location of package.json.
func (m *Manifest) Path() string {
	return m.path
}

// Name returns the package name, if any.
func (m *Manifest) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gjson.GetBytes(m.data, "name").String()
}

// Dependency returns the version range declared for name in dependencies or
// devDependencies.
func (m *Manifest) Dependency(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, section := range []string{"dependencies", "devDependencies"} {
		if v := gjson.GetBytes(m.data, section+"."+escapeKey(name)); v.Exists() {
			return v.String(), true
		}
	}
	return "", false
}

// HasScript reports whether a script with the given name is declared.
func (m *Manifest) HasScript(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gjson.GetBytes(m.data, "scripts."+escapeKey(name)).Exists()
}

// Script returns the command of a declared script.
func (m *Manifest) Script(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := gjson.GetBytes(m.data, "scripts."+escapeKey(name))
	return v.String(), v.Exists()
}

// AddScripts sets script entries in memory, replacing existing ones with the
// same name. Call Save to write them.
func (m *Manifest) AddScripts(scripts ...Script) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := setScripts(m.data, scripts)
	if err != nil {
		return err
	}
	m.data = data
	m.pending = append(m.pending, scripts...)
	return nil
}

// Save writes the added scripts to disk. The file is read again first, so
// changes made since Probe (dependencies added by a package manager) are kept.
// Errors are *ManifestWriteError.
func (m *Manifest) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pending) == 0 {
		return nil
	}

	info, err := m.fs.Stat(m.path)
	if err != nil {
		return &ManifestWriteError{Path: m.path, Err: err}
	}
	current, err := afero.ReadFile(m.fs, m.path)
	if err != nil {
		return &ManifestWriteError{Path: m.path, Err: err}
	}
	if !gjson.ValidBytes(current) {
		return &ManifestWriteError{Path: m.path, Err: ErrInvalidManifest}
	}

	data, err := setScripts(current, m.pending)
	if err != nil {
		return &ManifestWriteError{Path: m.path, Err: err}
	}
	data = pretty.PrettyOptions(data, &pretty.Options{Width: 80, Indent: "  "})

	if err := afero.WriteFile(m.fs, m.path, data, info.Mode().Perm()); err != nil {
		return &ManifestWriteError{Path: m.path, Err: err}
	}

	m.data = data
	m.pending = nil
	return nil
}

func setScripts(data []byte, scripts []Script) ([]byte, error) {
	var err error
	for _, s := range scripts {
		data, err = sjson.SetBytes(data, "scripts."+escapeKey(s.Name), s.Command)
		if err != nil {
			return nil, fmt.Errorf("setting script %q: %w", s.Name, err)
		}
	}
	return data, nil
}

// escapeKey turns an object key into a single gjson/sjson path component.
// Package names such as "@types/pg" contain path syntax.
func escapeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		if !isPlain(r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isPlain(r rune) bool {
	return r == '_' || r == '-' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
