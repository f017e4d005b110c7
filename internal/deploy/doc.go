// Package deploy coordinates transactional policy deployment.
//
// A deployment moves through a small state machine:
//
//	idle -> snapshotting -> applying -> verifying -> committed
//	                            \           \
//	                             +-----------+--> rolling-back -> rolled-back
//	                                                          \-> rollback-failed
//
// Before any configuration command is sent, the coordinator snapshots the
// pre-deployment state of every resource the plan touches. If the snapshot
// cannot be captured the deployment aborts before changing anything. If a
// command is rejected mid-apply, or post-apply verification finds the
// device diverging from the compiled plan, the coordinator rolls the full
// touched set back to the snapshot in reverse dependency order. A rollback
// that itself fails is reported with the list of resources whose state is
// no longer known.
//
// Dry-run deployments produce the same result structure without any
// network traffic at all.
//
// The coordinator serializes deployments per device host; concurrent
// deployments to distinct devices proceed in parallel, and DeployAll fans
// a policy out across a device fleet with a bounded worker count.
package deploy
