package ui

import (
	"fmt"
	"strings"

	"github.com/muurk/nxqos/internal/policy"
)

// RenderViolations renders a validation report: errors in red, warnings in
// orange, one line each, followed by a count summary.
func RenderViolations(violations []policy.Violation) string {
	if len(violations) == 0 {
		return SuccessTitleStyle.Render(fmt.Sprintf("%s  Policy is valid", SuccessMarker))
	}

	errs, warns := policy.SplitSeverity(violations)

	var b strings.Builder
	for _, v := range errs {
		b.WriteString(ViolationErrorStyle.Render(fmt.Sprintf("%s  %s: %s", FailureMarker, v.Field, v.Message)))
		b.WriteString("\n")
	}
	for _, v := range warns {
		b.WriteString(ViolationWarningStyle.Render(fmt.Sprintf("%s  %s: %s", WarningMarker, v.Field, v.Message)))
		b.WriteString("\n")
	}

	summary := fmt.Sprintf("%d error(s), %d warning(s)", len(errs), len(warns))
	if len(errs) == 0 {
		b.WriteString(ViolationWarningStyle.Render(summary))
	} else {
		b.WriteString(ViolationErrorStyle.Render(summary))
	}
	return b.String()
}
