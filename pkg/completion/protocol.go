package completion

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/zen-systems/socflow/pkg/capability"
)

var callLine = regexp.MustCompile(`^CALL\s+([a-z_][a-z0-9_]*)\((.*)\)\s*$`)

// parseCall reports whether the first non-empty line of reply is a
// capability call.
func parseCall(reply string) (name, argument string, ok bool) {
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := callLine.FindStringSubmatch(line)
		if m == nil {
			return "", "", false
		}
		return m[1], strings.Trim(strings.TrimSpace(m[2]), `"'`), true
	}
	return "", "", false
}

func toolsAppendix(registry *capability.Registry, names []string) string {
	var b strings.Builder
	b.WriteString("\n\n## Tools\nYou may use the following tools before answering:\n")
	for _, name := range names {
		desc := ""
		if c, ok := registry.Lookup(name); ok {
			desc = c.Description()
		}
		fmt.Fprintf(&b, "- %s: %s\n", name, desc)
	}
	b.WriteString("To use a tool, reply with exactly one line of the form CALL <name>(<argument>) and nothing else. ")
	b.WriteString("The tool result follows on a line starting with RESULT. ")
	b.WriteString("When you have what you need, write your final answer without any CALL line.")
	return b.String()
}

func resultLine(name string, value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		data, _ = json.Marshal(fmt.Sprint(value))
	}
	return fmt.Sprintf("RESULT %s: %s", name, data)
}
