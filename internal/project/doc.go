// Package project inspects and patches the target JavaScript project.
//
// Probe validates that a directory holds a package.json declaring the
// expected framework, without touching anything. The returned Manifest later
// receives script entries; writes go through sjson so key order and unrelated
// content survive.
package project
