package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/simonhull/firebird-suite/kestrel/internal/installer"
	"github.com/simonhull/firebird-suite/kestrel/internal/templates"
)

// nextSteps renders the follow-up instructions as markdown.
func nextSteps(plan *templates.Plan, pm installer.PackageManager, root string, merged []string) string {
	var b strings.Builder
	b.WriteString("## Next steps\n\n")

	if plan.EnvSample != "" {
		fmt.Fprintf(&b, "- Move the variables from `%s` to `.env.local` and set real values\n", plan.EnvTarget)
	}
	b.WriteString("- Change the database schema in `db/schema.ts` as needed\n")

	if len(plan.Scripts) > 0 {
		cmds := make([]string, len(plan.Scripts))
		for i, s := range plan.Scripts {
			cmds[i] = "`" + pm.RunScript(s.Name) + "`"
		}
		fmt.Fprintf(&b, "- Run %s\n", strings.Join(cmds, " and "))
	}
	b.WriteString("- Test your API endpoints under `/api/auth`\n")

	if len(merged) > 0 {
		b.WriteString("\n**Review merged files.** Template code was appended to:\n\n")
		for _, path := range merged {
			if rel, err := filepath.Rel(root, path); err == nil {
				path = rel
			}
			fmt.Fprintf(&b, "- `%s`\n", filepath.ToSlash(path))
		}
	}

	return b.String()
}
