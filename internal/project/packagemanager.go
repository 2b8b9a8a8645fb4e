package project

import (
	"path/filepath"

	"github.com/spf13/afero"
)

// lockfiles maps lockfile names to the package manager that writes them, in
// detection order.
var lockfiles = []struct {
	file    string
	manager string
}{
	{"pnpm-lock.yaml", "pnpm"},
	{"yarn.lock", "yarn"},
	{"bun.lockb", "bun"},
	{"bun.lock", "bun"},
	{"package-lock.json", "npm"},
}

// DetectPackageManager guesses the package manager from the lockfile in root.
// Without a lockfile it returns "npm".
func DetectPackageManager(fsys afero.Fs, root string) string {
	for _, lf := range lockfiles {
		if ok, _ := afero.Exists(fsys, filepath.Join(root, lf.file)); ok {
			return lf.manager
		}
	}
	return "npm"
}
