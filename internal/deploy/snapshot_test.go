package deploy

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/muurk/nxqos/internal/compiler"
	"github.com/muurk/nxqos/internal/nxapi"
)

const priorConfig = `
ip access-list ACL_A
  10 permit udp any any

class-map type qos match-all C1
  match dscp af21

interface Ethernet1/1
  no shutdown
  service-policy type qos input PM_OLD
  service-policy type qos output PM_EGRESS
`

func scenarioPlan(t *testing.T) *compiler.Plan {
	t.Helper()
	plan, err := compiler.Compile(scenarioPolicy(t))
	if err != nil {
		t.Fatalf("compiler.Compile() error = %v", err)
	}
	return plan
}

func TestCaptureResource(t *testing.T) {
	plan := scenarioPlan(t)

	tests := []struct {
		name string
		id   compiler.NodeID
		want ResourceState
	}{
		{
			name: "existing access list",
			id:   compiler.NodeID{Kind: compiler.KindAccessList, Name: "ACL_A"},
			want: ResourceState{
				Present: true,
				Lines:   []string{"ip access-list ACL_A", "  10 permit udp any any"},
			},
		},
		{
			// Compiled as match-any but present as match-all; the snapshot
			// must still find it by name.
			name: "classifier under different match mode",
			id:   compiler.NodeID{Kind: compiler.KindClassifier, Name: "C1"},
			want: ResourceState{
				Present: true,
				Lines:   []string{"class-map type qos match-all C1", "  match dscp af21"},
			},
		},
		{
			name: "absent traffic policy",
			id:   compiler.NodeID{Kind: compiler.KindTrafficPolicy, Name: "PM1"},
			want: ResourceState{},
		},
		{
			// Only the attachment in the binding's own direction matters;
			// the output-direction policy is someone else's.
			name: "binding with prior attachment",
			id:   compiler.NodeID{Kind: compiler.KindBinding, Name: "Ethernet1/1/input"},
			want: ResourceState{
				Present: true,
				Lines:   []string{"interface Ethernet1/1", "  service-policy type qos input PM_OLD"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block := plan.Block(tt.id)
			if block == nil {
				t.Fatalf("plan does not touch %s", tt.id)
			}
			got := captureResource(priorConfig, *block)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("captureResource(%s) mismatch (-want +got):\n%s", tt.id, diff)
			}
		})
	}
}

func TestRollbackProgram_ReverseOrder(t *testing.T) {
	plan := scenarioPlan(t)
	snap := &Snapshot{Resources: map[compiler.NodeID]ResourceState{}}

	steps := rollbackProgram(plan, snap)
	if len(steps) != len(plan.Blocks) {
		t.Fatalf("got %d steps, want %d", len(steps), len(plan.Blocks))
	}
	for i, step := range steps {
		want := plan.Blocks[len(plan.Blocks)-1-i].ID
		if step.ID != want {
			t.Errorf("step %d = %s, want %s", i, step.ID, want)
		}
	}
}

func TestRollbackProgram_RecreatesPriorDefinition(t *testing.T) {
	plan := scenarioPlan(t)
	aclID := compiler.NodeID{Kind: compiler.KindAccessList, Name: "ACL_A"}
	snap := &Snapshot{Resources: map[compiler.NodeID]ResourceState{
		aclID: {
			Present: true,
			Lines:   []string{"ip access-list ACL_A", "  10 permit udp any any"},
		},
	}}

	steps := rollbackProgram(plan, snap)
	last := steps[len(steps)-1]
	if last.ID != aclID {
		t.Fatalf("last step = %s, want the access list", last.ID)
	}

	want := []string{
		"no ip access-list ACL_A",
		"ip access-list ACL_A",
		"  10 permit udp any any",
	}
	if diff := cmp.Diff(want, last.Commands); diff != "" {
		t.Errorf("restore commands mismatch (-want +got):\n%s", diff)
	}
}

func TestIndeterminateAfter(t *testing.T) {
	owner := []compiler.NodeID{
		{Kind: compiler.KindBinding, Name: "Ethernet1/1/input"},
		{Kind: compiler.KindBinding, Name: "Ethernet1/1/input"},
		{Kind: compiler.KindTrafficPolicy, Name: "PM1"},
		{Kind: compiler.KindClassifier, Name: "C1"},
		{Kind: compiler.KindAccessList, Name: "ACL_A"},
	}
	results := []nxapi.CommandResult{
		{Executed: true},
		{Executed: true},
		{Executed: true},
		{Executed: false}, // rejected here
		{Executed: false},
	}

	got := indeterminateAfter(results, owner)
	want := []compiler.NodeID{
		{Kind: compiler.KindClassifier, Name: "C1"},
		{Kind: compiler.KindAccessList, Name: "ACL_A"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("indeterminateAfter mismatch (-want +got):\n%s", diff)
	}
}
