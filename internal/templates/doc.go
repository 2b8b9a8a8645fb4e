// Package templates holds the authentication template trees kestrel installs
// and the catalog describing them.
//
// # Layout
//
// The store is an fs.FS with a catalog.yml at its root and one directory per
// backend. Each directory mirrors the destination project layout:
//
//	catalog.yml
//	mysql/app/api/auth/login/route.ts
//	mysql/db/schema.ts
//	mysql/.env
//	...
//
// The catalog lists the manifest (the ordered relative paths any backend may
// contribute), the mergeable destinations, the environment sample, and the
// dependency tables for every backend and ORM.
//
// # Usage
//
//	store, err := templates.Default()
//	plan, err := store.Resolve("mysql", "drizzle")
//	tree, err := store.Tree(plan.Backend)
//
// Manifest entries are optional per backend: a tree that does not ship a file
// simply does not contribute it.
package templates
