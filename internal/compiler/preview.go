package compiler

import (
	"fmt"
	"strings"

	"github.com/muurk/nxqos/internal/policy"
)

// Preview renders the command sequence for display, with a commented
// header and a blank line between resource blocks. Comment and blank lines
// are presentation only; the device client strips them before transmission.
// Preview performs no network I/O.
func Preview(p *policy.Policy) (string, error) {
	plan, err := Compile(p)
	if err != nil {
		return "", err
	}

	total := 0
	for _, b := range plan.Blocks {
		total += len(b.Commands)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Policy: %s\n", p.Name))
	if p.Description != "" {
		sb.WriteString(fmt.Sprintf("# Description: %s\n", p.Description))
	}
	sb.WriteString(fmt.Sprintf("# Total Commands: %d\n", total))
	sb.WriteString("# " + strings.Repeat("=", 70) + "\n")

	for _, b := range plan.Blocks {
		sb.WriteString("\n")
		for _, cmd := range b.Commands {
			sb.WriteString(cmd + "\n")
		}
	}

	return sb.String(), nil
}
