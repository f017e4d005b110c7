package deploy

import (
	"github.com/muurk/nxqos/internal/compiler"
	"github.com/muurk/nxqos/internal/nxapi"
)

// rollbackStep is the compensating command sequence for one resource.
type rollbackStep struct {
	ID       compiler.NodeID
	Commands []string
}

// rollbackProgram builds the compensating program that restores the
// snapshot state for every resource the plan touches. Resources are
// restored in reverse dependency order so nothing is removed while a
// dependent still references it: bindings detach first, access lists
// go last.
//
// A resource that existed before deployment is removed and then recreated
// from its snapshot block; one that did not exist is simply removed. A
// binding is always detached and, when a policy was previously attached in
// the same direction, reattached to it.
func rollbackProgram(plan *compiler.Plan, snap *Snapshot) []rollbackStep {
	steps := make([]rollbackStep, 0, len(plan.Blocks))

	for i := len(plan.Blocks) - 1; i >= 0; i-- {
		block := plan.Blocks[i]
		prior := snap.Resources[block.ID]

		cmds := append([]string(nil), block.Removal...)
		if prior.Present {
			if block.ID.Kind == compiler.KindBinding {
				// Removal already emitted the interface header; reattach the
				// previous policy beneath it.
				cmds = append(cmds, prior.Lines[1:]...)
			} else {
				cmds = append(cmds, prior.Lines...)
			}
		}

		steps = append(steps, rollbackStep{ID: block.ID, Commands: cmds})
	}

	return steps
}

// flattenSteps joins the per-resource sequences into one program and
// records which resource each command belongs to.
func flattenSteps(steps []rollbackStep) (commands []string, owner []compiler.NodeID) {
	for _, step := range steps {
		for _, cmd := range step.Commands {
			commands = append(commands, cmd)
			owner = append(owner, step.ID)
		}
	}
	return commands, owner
}

// indeterminateAfter reports the resources whose state is unknown after a
// partially executed rollback: every resource owning a command at or past
// the first command that did not execute.
func indeterminateAfter(results []nxapi.CommandResult, owner []compiler.NodeID) []compiler.NodeID {
	seen := make(map[compiler.NodeID]bool)
	var out []compiler.NodeID
	for i, res := range results {
		if res.Executed || i >= len(owner) {
			continue
		}
		if !seen[owner[i]] {
			seen[owner[i]] = true
			out = append(out, owner[i])
		}
	}
	// A rollback that failed before producing per-command results leaves
	// everything in doubt.
	if len(results) == 0 {
		for _, id := range owner {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
