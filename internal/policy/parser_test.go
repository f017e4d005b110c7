package policy

import (
	"errors"
	"strings"
	"testing"
)

const validDocument = `
id: web-qos
name: Web traffic priority
description: Prioritize HTTPS from the campus range
version: "1"
access_lists:
  - name: ACL_A
    type: ipv4
    rules:
      - sequence: 10
        action: permit
        protocol: tcp
        source: 10.0.0.0/8
        destination: any
        dest_port: [443]
class_maps:
  - name: C1
    match_type: match-any
    conditions:
      - type: access-group
        name: ACL_A
policy_maps:
  - name: PM1
    classes:
      - class_name: C1
        actions:
          - type: set
            parameter: dscp
            value: ef
service_policies:
  - interface: Ethernet1/1
    direction: input
    policy_map: PM1
`

func TestParse_ValidDocument(t *testing.T) {
	p, err := Parse([]byte(validDocument))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if p.ID != "web-qos" {
		t.Errorf("ID = %q, want web-qos", p.ID)
	}
	if len(p.AccessLists) != 1 || len(p.Classifiers) != 1 || len(p.TrafficPolicies) != 1 || len(p.Bindings) != 1 {
		t.Fatalf("unexpected collection sizes: %s", p.Summary())
	}

	acl := p.AccessLists[0]
	if acl.Family != FamilyIPv4 {
		t.Errorf("Family = %v, want ipv4", acl.Family)
	}
	if len(acl.Rules) != 1 || acl.Rules[0].Sequence != 10 {
		t.Fatalf("Rules = %+v, want one rule with sequence 10", acl.Rules)
	}
	if got := acl.Rules[0].DestPorts; len(got) != 1 || got[0] != 443 {
		t.Errorf("DestPorts = %v, want [443]", got)
	}

	if p.Bindings[0].Direction != DirectionInput {
		t.Errorf("Direction = %v, want input", p.Bindings[0].Direction)
	}
}

func TestParse_GeneratesIDWhenMissing(t *testing.T) {
	doc := strings.Replace(validDocument, "id: web-qos\n", "", 1)

	p, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.ID == "" {
		t.Error("Parse() should generate an ID when the document omits one")
	}
}

func TestParse_SortsRulesBySequence(t *testing.T) {
	doc := `
name: ordering
description: rules out of order
access_lists:
  - name: ACL_ORDER
    rules:
      - {sequence: 30, action: permit, protocol: ip, source: any, destination: any}
      - {sequence: 10, action: deny, protocol: ip, source: any, destination: any}
      - {sequence: 20, action: permit, protocol: tcp, source: any, destination: any}
`
	p, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	got := p.AccessLists[0].Rules
	want := []int{10, 20, 30}
	for i, seq := range want {
		if got[i].Sequence != seq {
			t.Errorf("Rules[%d].Sequence = %d, want %d", i, got[i].Sequence, seq)
		}
	}
}

func TestParse_StructuralErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantMsg string
	}{
		{
			name:    "empty document",
			doc:     "",
			wantMsg: "empty policy document",
		},
		{
			name:    "malformed yaml",
			doc:     "name: [unclosed",
			wantMsg: "malformed YAML",
		},
		{
			name:    "missing name",
			doc:     "description: no name here",
			wantMsg: "missing required field: name",
		},
		{
			name:    "missing description",
			doc:     "name: no description",
			wantMsg: "missing required field: description",
		},
		{
			name: "bad action",
			doc: `
name: bad
description: bad action
access_lists:
  - name: A
    rules:
      - {sequence: 10, action: allow, protocol: tcp, source: any, destination: any}
`,
			wantMsg: "action must be permit or deny",
		},
		{
			name: "bad protocol",
			doc: `
name: bad
description: bad protocol
access_lists:
  - name: A
    rules:
      - {sequence: 10, action: permit, protocol: sctp, source: any, destination: any}
`,
			wantMsg: "protocol must be tcp, udp, ip or icmp",
		},
		{
			name: "negative sequence",
			doc: `
name: bad
description: negative sequence
access_lists:
  - name: A
    rules:
      - {sequence: -5, action: permit, protocol: tcp, source: any, destination: any}
`,
			wantMsg: "sequence must be non-negative",
		},
		{
			name: "bad match type",
			doc: `
name: bad
description: bad match type
class_maps:
  - name: C
    match_type: match-some
`,
			wantMsg: "match_type must be match-any or match-all",
		},
		{
			name: "bad direction",
			doc: `
name: bad
description: bad direction
policy_maps:
  - name: PM
service_policies:
  - {interface: Ethernet1/1, direction: both, policy_map: PM}
`,
			wantMsg: "direction must be input or output",
		},
		{
			name: "unknown condition type",
			doc: `
name: bad
description: unknown condition
class_maps:
  - name: C
    conditions:
      - {type: vlan, value: "100"}
`,
			wantMsg: "unknown condition type",
		},
		{
			name: "unknown document field",
			doc: `
name: bad
description: stray field
flows: []
`,
			wantMsg: "malformed YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil {
				t.Fatal("Parse() should fail")
			}

			var docErr *DocumentError
			if !errors.As(err, &docErr) {
				t.Fatalf("error should be *DocumentError, got %T: %v", err, err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want substring %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestCompile_ValidDocument(t *testing.T) {
	p, warnings, err := Compile([]byte(validDocument))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if p == nil {
		t.Fatal("Compile() returned nil policy")
	}
	if len(warnings) != 0 {
		t.Errorf("Compile() warnings = %v, want none", warnings)
	}
}

func TestCompile_SemanticFailureReturnsNoPolicy(t *testing.T) {
	doc := `
name: broken
description: dangling reference
service_policies:
  - {interface: Ethernet1/1, direction: input, policy_map: PM_MISSING}
`
	p, _, err := Compile([]byte(doc))
	if p != nil {
		t.Error("Compile() must never return a partially valid policy")
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error should be *ValidationError, got %T: %v", err, err)
	}
	if len(verr.Violations) != 1 {
		t.Errorf("Violations = %d, want 1", len(verr.Violations))
	}
}

func TestCompile_FailureReturnsFullViolationList(t *testing.T) {
	doc := `
name: broken
description: two distinct semantic errors
access_lists:
  - name: ACL_A
    type: ipv4
    rules:
      - {sequence: 10, action: permit, protocol: tcp, source: any, destination: any}
  - name: ACL_A
    type: ipv4
    rules:
      - {sequence: 10, action: permit, protocol: udp, source: any, destination: any}
service_policies:
  - {interface: Ethernet1/1, direction: input, policy_map: PM_X}
`
	p, violations, err := Compile([]byte(doc))
	if p != nil {
		t.Error("Compile() must never return a partially valid policy")
	}
	if err == nil {
		t.Fatal("Compile() error = nil, want ValidationError")
	}

	// Every error-severity violation must be in the returned slice, not
	// just reachable through the error value.
	_, errs := SplitSeverity(violations)
	if len(errs) != 2 {
		t.Fatalf("error violations in slice = %d, want 2: %v", len(errs), violations)
	}
	var haveDuplicate, haveDangling bool
	for _, v := range errs {
		if strings.Contains(v.Message, "ACL_A") {
			haveDuplicate = true
		}
		if strings.Contains(v.Message, "PM_X") {
			haveDangling = true
		}
	}
	if !haveDuplicate || !haveDangling {
		t.Errorf("violations = %v, want both the duplicate name and the dangling reference", errs)
	}
}
