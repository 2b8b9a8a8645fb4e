// Package kestrel scaffolds database-backed authentication into Next.js
// projects. The CLI lives in cmd/kestrel.
package kestrel

// Version is the CLI version reported by --version.
const Version = "0.3.0"
