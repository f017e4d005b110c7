package deploy

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/muurk/nxqos/internal/nxapi"
	"github.com/muurk/nxqos/internal/policy"
)

// DefaultFleetConcurrency bounds how many devices deploy at once.
const DefaultFleetConcurrency = 4

// DeployAll fans one policy out across a device fleet. Each device runs
// its own independent transaction: a rollback on one device never touches
// the others. At most concurrency deployments run at a time (zero uses
// DefaultFleetConcurrency), and results come back in client order, one per
// device, regardless of individual outcomes.
func (c *Coordinator) DeployAll(ctx context.Context, p *policy.Policy, clients []*nxapi.Client, opts Options, concurrency int) []*Result {
	if concurrency <= 0 {
		concurrency = DefaultFleetConcurrency
	}

	results := make([]*Result, len(clients))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, client := range clients {
		i, client := i, client
		g.Go(func() error {
			results[i] = c.Deploy(ctx, p, client, opts)
			return nil
		})
	}
	_ = g.Wait()

	return results
}
