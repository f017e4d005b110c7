package policy

import (
	"strings"
	"testing"
)

func mustParse(t *testing.T, doc string) *Policy {
	t.Helper()
	p, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return p
}

func countSeverity(violations []Violation, sev Severity) int {
	n := 0
	for _, v := range violations {
		if v.Severity == sev {
			n++
		}
	}
	return n
}

func TestValidate_CleanPolicy(t *testing.T) {
	p := mustParse(t, validDocument)

	if violations := Validate(p); len(violations) != 0 {
		t.Errorf("Validate() = %v, want no violations", violations)
	}
}

// A single pass must surface every violation, not stop at the first one.
// Two duplicate ACL names plus one dangling traffic policy reference must
// yield exactly two errors.
func TestValidate_CollectsAllViolations(t *testing.T) {
	doc := `
name: broken
description: several independent problems
access_lists:
  - name: ACL_A
    rules:
      - {sequence: 10, action: permit, protocol: ip, source: any, destination: any}
  - name: ACL_A
    rules:
      - {sequence: 10, action: deny, protocol: ip, source: any, destination: any}
service_policies:
  - {interface: Ethernet1/1, direction: input, policy_map: PM_X}
`
	p := mustParse(t, doc)
	violations := Validate(p)

	if got := countSeverity(violations, SeverityError); got != 2 {
		t.Fatalf("error count = %d, want 2; violations: %v", got, violations)
	}

	var messages []string
	for _, v := range violations {
		messages = append(messages, v.Message)
	}
	joined := strings.Join(messages, "\n")

	if !strings.Contains(joined, `duplicate access list name "ACL_A"`) {
		t.Errorf("missing duplicate-name violation in: %s", joined)
	}
	if !strings.Contains(joined, `non-existent traffic policy "PM_X"`) {
		t.Errorf("missing dangling-reference violation in: %s", joined)
	}
}

func TestValidate_ReferenceResolution(t *testing.T) {
	tests := []struct {
		name       string
		doc        string
		wantErrors int
		wantMsg    string
	}{
		{
			name: "classifier to missing acl",
			doc: `
name: t
description: t
class_maps:
  - name: C1
    conditions:
      - {type: access-group, name: ACL_NOPE}
`,
			wantErrors: 1,
			wantMsg:    `non-existent access list "ACL_NOPE"`,
		},
		{
			name: "classifier to missing classifier",
			doc: `
name: t
description: t
class_maps:
  - name: C1
    conditions:
      - {type: class-map, name: C_NOPE}
`,
			wantErrors: 1,
			wantMsg:    `non-existent classifier "C_NOPE"`,
		},
		{
			name: "policy to missing classifier",
			doc: `
name: t
description: t
policy_maps:
  - name: PM1
    classes:
      - class_name: C_NOPE
`,
			wantErrors: 1,
			wantMsg:    `references non-existent classifier "C_NOPE"`,
		},
		{
			name: "class-default is implicit",
			doc: `
name: t
description: t
policy_maps:
  - name: PM1
    classes:
      - class_name: class-default
        actions:
          - {type: bandwidth, value: "10"}
`,
			wantErrors: 0,
		},
		{
			name: "duplicate sequence numbers",
			doc: `
name: t
description: t
access_lists:
  - name: ACL_A
    rules:
      - {sequence: 10, action: permit, protocol: ip, source: any, destination: any}
      - {sequence: 10, action: deny, protocol: ip, source: any, destination: any}
`,
			wantErrors: 1,
			wantMsg:    "duplicate sequence number 10",
		},
		{
			name: "duplicate binding",
			doc: `
name: t
description: t
class_maps:
  - name: C1
policy_maps:
  - name: PM1
    classes:
      - class_name: C1
service_policies:
  - {interface: Ethernet1/1, direction: input, policy_map: PM1}
  - {interface: Ethernet1/1, direction: input, policy_map: PM1}
`,
			wantErrors: 1,
			wantMsg:    "duplicate service policy binding",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mustParse(t, tt.doc)
			violations := Validate(p)

			if got := countSeverity(violations, SeverityError); got != tt.wantErrors {
				t.Fatalf("error count = %d, want %d; violations: %v", got, tt.wantErrors, violations)
			}
			if tt.wantMsg != "" {
				found := false
				for _, v := range violations {
					if strings.Contains(v.Message, tt.wantMsg) {
						found = true
					}
				}
				if !found {
					t.Errorf("no violation contains %q: %v", tt.wantMsg, violations)
				}
			}
		})
	}
}

func TestValidate_Warnings(t *testing.T) {
	doc := `
name: t
description: warnings only
access_lists:
  - name: ACL_EMPTY
class_maps:
  - name: C1
    conditions:
      - {type: access-group, name: ACL_EMPTY}
policy_maps:
  - name: PM_EMPTY
  - name: PM1
    classes:
      - class_name: C1
service_policies:
  - {interface: mgmt0, direction: output, policy_map: PM1}
`
	p := mustParse(t, doc)
	violations := Validate(p)

	if got := countSeverity(violations, SeverityError); got != 0 {
		t.Fatalf("error count = %d, want 0; violations: %v", got, violations)
	}
	// Empty ACL, empty policy map, and the mgmt0 interface name.
	if got := countSeverity(violations, SeverityWarning); got != 3 {
		t.Errorf("warning count = %d, want 3; violations: %v", got, violations)
	}

	// Warnings alone must not fail compilation.
	compiled, warnings, err := Compile([]byte(doc))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if compiled == nil {
		t.Fatal("Compile() returned nil policy for warning-only document")
	}
	if len(warnings) != 3 {
		t.Errorf("Compile() warnings = %d, want 3", len(warnings))
	}
}

func TestValidate_ClassifierCycles(t *testing.T) {
	tests := []struct {
		name       string
		doc        string
		wantCycles int
	}{
		{
			name: "self reference",
			doc: `
name: t
description: t
class_maps:
  - name: C1
    conditions:
      - {type: class-map, name: C1}
`,
			wantCycles: 1,
		},
		{
			name: "two-node cycle",
			doc: `
name: t
description: t
class_maps:
  - name: C1
    conditions:
      - {type: class-map, name: C2}
  - name: C2
    conditions:
      - {type: class-map, name: C1}
`,
			wantCycles: 1,
		},
		{
			name: "three-node cycle",
			doc: `
name: t
description: t
class_maps:
  - name: C1
    conditions:
      - {type: class-map, name: C2}
  - name: C2
    conditions:
      - {type: class-map, name: C3}
  - name: C3
    conditions:
      - {type: class-map, name: C1}
`,
			wantCycles: 1,
		},
		{
			name: "diamond is not a cycle",
			doc: `
name: t
description: t
class_maps:
  - name: C4
  - name: C2
    conditions:
      - {type: class-map, name: C4}
  - name: C3
    conditions:
      - {type: class-map, name: C4}
  - name: C1
    conditions:
      - {type: class-map, name: C2}
      - {type: class-map, name: C3}
`,
			wantCycles: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mustParse(t, tt.doc)
			violations := Validate(p)

			cycles := 0
			for _, v := range violations {
				if strings.Contains(v.Message, "reference cycle") {
					cycles++
				}
			}
			if cycles != tt.wantCycles {
				t.Errorf("cycle violations = %d, want %d; violations: %v", cycles, tt.wantCycles, violations)
			}
		})
	}
}

func TestSplitSeverity(t *testing.T) {
	violations := []Violation{
		{Field: "a", Message: "m1", Severity: SeverityError},
		{Field: "b", Message: "m2", Severity: SeverityWarning},
		{Field: "c", Message: "m3", Severity: SeverityError},
	}

	warnings, errs := SplitSeverity(violations)
	if len(warnings) != 1 || len(errs) != 2 {
		t.Errorf("SplitSeverity() = %d warnings, %d errors; want 1, 2", len(warnings), len(errs))
	}
}
