// Package output provides styled terminal output for kestrel.
//
// It follows the rest of the Firebird Suite: every operator-facing line goes
// through one of these functions so styling stays consistent.
//
//	output.Success("Files copied")
//	output.Warn("lib/auth.ts was merged and is left as is")
//	output.Step("npm run db:generate")
//
// Styling:
//
//   - Success: 🔥 green bold
//   - Error: ❌ red bold
//   - Warn: ⚠️ yellow
//   - Info: ℹ️ cyan
//   - Step: indented gray
//   - Verbose: 🔍 gray (when enabled)
//
// Markdown renders a block (such as the next-steps list) through glamour,
// falling back to the raw text if rendering fails.
package output
