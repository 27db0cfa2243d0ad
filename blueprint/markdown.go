package blueprint

import (
	"fmt"
	"strings"
)

// RenderMarkdown produces the sibling .md rendering of a blueprint.
// This output is always derived from the YAML and never hand-edited —
// Registry.Save regenerates it on every write.
func RenderMarkdown(bp *Blueprint) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", bp.ID)
	fmt.Fprintf(&b, "- version: %s\n", bp.Version)
	fmt.Fprintf(&b, "- role: %s\n", bp.Role)
	fmt.Fprintf(&b, "- status: %s\n", bp.Meta.Status)
	fmt.Fprintf(&b, "- service_status: %s\n\n", bp.ServiceStatus)

	if bp.Intent.Purpose != "" {
		fmt.Fprintf(&b, "## Intent\n\n%s\n\n", bp.Intent.Purpose)
	}

	if len(bp.Interfaces) > 0 {
		b.WriteString("## Interfaces\n\n")
		for _, i := range bp.Interfaces {
			fmt.Fprintf(&b, "- `%s` (%s, %s)\n", i.ID, i.Direction, i.Transport)
		}
		b.WriteString("\n")
	}

	if len(bp.Dependencies.Services) > 0 {
		b.WriteString("## Dependencies\n\n")
		for _, d := range bp.Dependencies.Services {
			fmt.Fprintf(&b, "- %s (required=%v)\n", d.Service, d.Required)
		}
		b.WriteString("\n")
	}

	if len(bp.FailureModes) > 0 {
		b.WriteString("## Failure Modes\n\n")
		for _, f := range bp.FailureModes {
			fmt.Fprintf(&b, "- **%s**: %s (%s)\n", f.Condition, f.Response, f.Severity)
		}
		b.WriteString("\n")
	}

	return b.String()
}
