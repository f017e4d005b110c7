package deploy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/muurk/nxqos/internal/compiler"
	"github.com/muurk/nxqos/internal/nxapi"
)

// VerifyOptions configures how post-apply verification behaves.
type VerifyOptions struct {
	// MaxRetries is the maximum number of verification attempts after the
	// first. Default: 3
	MaxRetries int

	// InitialDelay is the delay before the first verification read, giving
	// the device time to settle the applied configuration.
	// Default: 500ms
	InitialDelay time.Duration

	// RetryDelay is the delay between retry attempts, doubled each retry
	// up to MaxRetryDelay.
	// Default: 1s
	RetryDelay time.Duration

	// MaxRetryDelay caps the backoff between retries.
	// Default: 5s
	MaxRetryDelay time.Duration
}

// DefaultVerifyOptions returns sensible defaults for verification.
func DefaultVerifyOptions() *VerifyOptions {
	return &VerifyOptions{
		MaxRetries:    3,
		InitialDelay:  500 * time.Millisecond,
		RetryDelay:    1 * time.Second,
		MaxRetryDelay: 5 * time.Second,
	}
}

// VerifyResult contains the results of comparing device state to a plan.
type VerifyResult struct {
	// Success indicates whether every touched resource matched the plan.
	Success bool

	// Attempts is the number of verification reads made.
	Attempts int

	// Mismatches lists every detected divergence between the plan and the
	// device, one human-readable line per finding.
	Mismatches []string

	// Err is the last error that prevented or failed verification.
	Err error
}

// VerifyPlan reads the device running configuration and checks that every
// resource the plan touches is defined the way the plan compiled it.
// Verification retries with backoff to absorb device settle time; a
// mismatch that persists through the final attempt fails the deployment.
func VerifyPlan(ctx context.Context, client *nxapi.Client, plan *compiler.Plan, opts *VerifyOptions) *VerifyResult {
	if opts == nil {
		opts = DefaultVerifyOptions()
	}

	result := &VerifyResult{}

	if err := sleepCtx(ctx, opts.InitialDelay); err != nil {
		result.Err = err
		return result
	}

	delay := opts.RetryDelay
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, delay); err != nil {
				result.Err = err
				return result
			}
			delay *= 2
			if delay > opts.MaxRetryDelay {
				delay = opts.MaxRetryDelay
			}
		}

		result.Attempts++

		configText, err := client.RunningConfig(ctx, "")
		if err != nil {
			// Reads are safe to retry; keep the last error for reporting.
			result.Err = fmt.Errorf("attempt %d: cannot read device state: %w", result.Attempts, err)
			continue
		}

		result.Mismatches = comparePlan(plan, configText)
		if len(result.Mismatches) == 0 {
			result.Success = true
			result.Err = nil
			return result
		}
		result.Err = fmt.Errorf("attempt %d: device diverges from plan in %d place(s)", result.Attempts, len(result.Mismatches))
	}

	return result
}

// comparePlan returns one mismatch line per divergence between the plan
// and the device configuration. The comparison is structural: whitespace
// runs are collapsed and extra device-side lines inside a block (counters,
// defaults) are tolerated, but every compiled command must be present.
func comparePlan(plan *compiler.Plan, configText string) []string {
	var mismatches []string

	for _, block := range plan.Blocks {
		state := captureResource(configText, block)
		if !state.Present {
			mismatches = append(mismatches, fmt.Sprintf("%s: absent from device", block.ID))
			continue
		}

		actual := make(map[string]bool, len(state.Lines))
		for _, line := range nxapi.Normalize(state.Lines) {
			actual[line] = true
		}

		for _, want := range nxapi.Normalize(block.Commands) {
			if !actual[want] {
				mismatches = append(mismatches, fmt.Sprintf("%s: missing %q", block.ID, want))
			}
		}
	}

	return mismatches
}

// Detail returns a multi-line human-readable mismatch summary.
func (r *VerifyResult) Detail() string {
	if r.Success {
		return fmt.Sprintf("verified in %d attempt(s)", r.Attempts)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "verification failed after %d attempt(s)", r.Attempts)
	for _, m := range r.Mismatches {
		b.WriteString("\n  ")
		b.WriteString(m)
	}
	if r.Err != nil && len(r.Mismatches) == 0 {
		fmt.Fprintf(&b, "\n  %v", r.Err)
	}
	return b.String()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
