package deploy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/nxqos/internal/compiler"
	"github.com/muurk/nxqos/internal/logging"
	"github.com/muurk/nxqos/internal/nxapi"
	"github.com/muurk/nxqos/internal/policy"
)

// Options configures a deployment.
type Options struct {
	// DryRun produces the full result without sending anything to the
	// device. No network traffic occurs at all.
	DryRun bool

	// SkipVerify commits immediately after a successful apply instead of
	// comparing device state against the plan.
	SkipVerify bool

	// SnapshotTimeout bounds the pre-deployment state capture. Zero uses
	// DefaultSnapshotTimeout.
	SnapshotTimeout time.Duration

	// Verify tunes post-apply verification; nil uses defaults.
	Verify *VerifyOptions
}

// Result is the complete record of one deployment attempt.
type Result struct {
	PolicyID   string
	PolicyName string
	Host       string
	DryRun     bool

	// State is the terminal state the deployment reached.
	State State

	// Transitions records every state machine step in order.
	Transitions []Transition

	// Planned is the full compiled command sequence, populated even for
	// dry runs.
	Planned []string

	// Commands holds the per-command outcomes of the apply phase. Empty
	// for dry runs and for deployments that failed before applying.
	Commands []nxapi.CommandResult

	// Snapshot is the captured pre-deployment state, when one was taken.
	Snapshot *Snapshot

	// Verify is the post-apply verification outcome, when verification ran.
	Verify *VerifyResult

	// Err is the failure that stopped the deployment, nil when committed.
	Err error

	// RollbackErr is set when the rollback itself failed.
	RollbackErr error

	// Indeterminate lists resources whose device state is unknown after a
	// failed rollback. Only populated in StateRollbackFailed.
	Indeterminate []compiler.NodeID

	Elapsed time.Duration
}

// Committed reports whether the deployment reached the device and stuck.
func (r *Result) Committed() bool {
	return r.State == StateCommitted
}

// ExecutedCount returns how many commands the device actually ran.
func (r *Result) ExecutedCount() int {
	n := 0
	for _, c := range r.Commands {
		if c.Executed {
			n++
		}
	}
	return n
}

// Coordinator runs deployments, serializing per device host. The zero
// value is not usable; construct with NewCoordinator.
type Coordinator struct {
	mu    sync.Mutex
	hosts map[string]*sync.Mutex
}

// NewCoordinator creates a deployment coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{hosts: make(map[string]*sync.Mutex)}
}

// hostLock returns the mutex serializing deployments to one host.
func (c *Coordinator) hostLock(host string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.hosts[host]
	if !ok {
		lock = &sync.Mutex{}
		c.hosts[host] = lock
	}
	return lock
}

// Deploy compiles the policy and runs the full transaction against one
// device: snapshot, apply, verify, commit, with automatic rollback to the
// snapshot when apply or verify fails. At most one deployment runs per
// host at a time; deployments to other hosts are unaffected.
func (c *Coordinator) Deploy(ctx context.Context, p *policy.Policy, client *nxapi.Client, opts Options) *Result {
	started := time.Now()
	res := &Result{
		PolicyID:   p.ID,
		PolicyName: p.Name,
		Host:       client.Host(),
		DryRun:     opts.DryRun,
		State:      StateIdle,
	}
	defer func() { res.Elapsed = time.Since(started) }()

	plan, err := compiler.Compile(p)
	if err != nil {
		res.Err = err
		return res
	}
	res.Planned = plan.Commands()

	if opts.DryRun {
		return res
	}

	lock := c.hostLock(client.Host())
	lock.Lock()
	defer lock.Unlock()

	// Snapshot first; an unreadable device is not deployed to.
	c.transition(res, StateSnapshotting)
	snap, err := TakeSnapshot(ctx, client, plan, opts.SnapshotTimeout)
	if err != nil {
		res.Err = err
		c.transition(res, StateIdle)
		return res
	}
	res.Snapshot = snap

	c.transition(res, StateApplying)
	res.Commands, err = client.Run(ctx, plan.Commands())
	if err != nil {
		res.Err = err
		c.logApplyFailure(res, err)
		return c.rollback(ctx, res, plan, snap, client)
	}

	if !opts.SkipVerify {
		c.transition(res, StateVerifying)
		res.Verify = VerifyPlan(ctx, client, plan, opts.Verify)
		if !res.Verify.Success {
			res.Err = fmt.Errorf("device state diverges from plan: %w", res.Verify.Err)
			return c.rollback(ctx, res, plan, snap, client)
		}
	}

	c.transition(res, StateCommitted)
	logging.Info("Policy deployed",
		zap.String("host", res.Host),
		zap.String("policy", res.PolicyName),
		zap.Int("commands", len(res.Planned)),
	)
	return res
}

// rollback restores the snapshot state for the full touched set. It runs
// even when ctx is already cancelled or expired; abandoning a half-applied
// device is worse than overstaying a deadline.
func (c *Coordinator) rollback(ctx context.Context, res *Result, plan *compiler.Plan, snap *Snapshot, client *nxapi.Client) *Result {
	c.transition(res, StateRollingBack)

	steps := rollbackProgram(plan, snap)
	commands, owner := flattenSteps(steps)

	rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
	defer cancel()

	results, err := client.Run(rbCtx, commands)
	if err != nil {
		res.RollbackErr = err
		res.Indeterminate = indeterminateAfter(results, owner)
		c.transition(res, StateRollbackFailed)
		logging.Error("Rollback failed, device needs attention",
			zap.String("host", res.Host),
			zap.String("policy", res.PolicyName),
			zap.Int("indeterminate_resources", len(res.Indeterminate)),
			zap.Error(err),
		)
		return res
	}

	c.transition(res, StateRolledBack)
	return res
}

func (c *Coordinator) transition(res *Result, to State) {
	t := Transition{From: res.State, To: to, At: time.Now()}
	res.Transitions = append(res.Transitions, t)
	res.State = to
	logging.LogStateTransition(res.Host, res.PolicyName, t.From.String(), t.To.String())
}

func (c *Coordinator) logApplyFailure(res *Result, err error) {
	for _, cmd := range res.Commands {
		if cmd.Err != nil {
			logging.LogCommandRejected(res.Host, cmd.Command, cmd.Err.Code, cmd.Err.Message)
			return
		}
	}
	logging.Warn("Apply failed without a rejected command",
		zap.String("host", res.Host),
		zap.Error(err),
	)
}
