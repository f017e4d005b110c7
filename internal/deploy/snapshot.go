package deploy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/muurk/nxqos/internal/compiler"
	"github.com/muurk/nxqos/internal/nxapi"
)

// DefaultSnapshotTimeout bounds the pre-deployment state capture. A device
// that cannot answer a read within this window is not a device to deploy to.
const DefaultSnapshotTimeout = 15 * time.Second

// ResourceState is the pre-deployment condition of one touched resource.
type ResourceState struct {
	// Present reports whether the resource existed before deployment.
	Present bool

	// Lines is the resource's configuration block as the device reported
	// it, header first. Empty when the resource was absent. For a service
	// binding this holds the interface header and the previously attached
	// policy line for the binding's direction, if any.
	Lines []string
}

// Snapshot captures the state of every resource a plan touches, taken
// before any of the plan's commands are sent.
type Snapshot struct {
	PolicyID string
	Host     string
	TakenAt  time.Time

	// Resources maps each touched resource to its pre-deployment state.
	Resources map[compiler.NodeID]ResourceState
}

// TakeSnapshot reads the device running configuration and records the
// pre-deployment state of every resource in the plan. The read is bounded
// by timeout and any failure aborts the deployment before it can change
// anything.
func TakeSnapshot(ctx context.Context, client *nxapi.Client, plan *compiler.Plan, timeout time.Duration) (*Snapshot, error) {
	if timeout <= 0 {
		timeout = DefaultSnapshotTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	configText, err := client.RunningConfig(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("cannot capture pre-deployment state: %w", err)
	}

	snap := &Snapshot{
		PolicyID:  plan.PolicyID,
		Host:      client.Host(),
		TakenAt:   time.Now(),
		Resources: make(map[compiler.NodeID]ResourceState, len(plan.Blocks)),
	}
	for _, block := range plan.Blocks {
		snap.Resources[block.ID] = captureResource(configText, block)
	}

	return snap, nil
}

// captureResource locates one resource's current definition in the running
// configuration.
func captureResource(configText string, block compiler.Block) ResourceState {
	switch block.ID.Kind {
	case compiler.KindBinding:
		return captureBinding(configText, block)
	case compiler.KindClassifier:
		// The device may hold the classifier under a different match mode
		// than the compiled one, so match on name rather than full header.
		name := block.ID.Name
		lines := nxapi.ExtractBlockFunc(configText, func(header string) bool {
			return strings.HasPrefix(header, "class-map type qos ") &&
				strings.HasSuffix(header, " "+name)
		})
		return ResourceState{Present: lines != nil, Lines: lines}
	default:
		lines := nxapi.ExtractBlock(configText, block.Header())
		return ResourceState{Present: lines != nil, Lines: lines}
	}
}

// captureBinding records whether the binding's interface already carries a
// policy in the same direction, and which one.
func captureBinding(configText string, block compiler.Block) ResourceState {
	iface := nxapi.ExtractBlock(configText, block.Header())
	if iface == nil {
		return ResourceState{}
	}

	prefix := attachPrefix(block)
	for _, line := range iface[1:] {
		if strings.HasPrefix(strings.Join(strings.Fields(line), " "), prefix) {
			return ResourceState{
				Present: true,
				Lines:   []string{iface[0], line},
			}
		}
	}
	return ResourceState{}
}

// attachPrefix returns "service-policy type qos <direction>" for a binding
// block, the stable prefix that identifies an attachment in its direction
// regardless of which policy is attached.
func attachPrefix(block compiler.Block) string {
	fields := strings.Fields(block.Commands[len(block.Commands)-1])
	if len(fields) < 4 {
		return strings.Join(fields, " ")
	}
	return strings.Join(fields[:4], " ")
}
