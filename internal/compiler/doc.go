// Package compiler turns a validated policy into the ordered command
// sequence that realizes it on a switch.
//
// Resources are arranged in a typed dependency graph: classifiers depend on
// the access lists and classifiers they match, traffic policies on their
// classifiers, service bindings on their traffic policy. A stable
// topological sort orders the graph so every resource is defined before
// anything that references it; resources with no ordering constraint
// between them keep their declaration order, which makes generation a pure
// function of the policy: the same policy always compiles to the same
// byte-for-byte command sequence.
//
// The output is organized as per-resource blocks. Commands inside a block
// are contiguous and never reordered, because the configure dialect chains
// sub-commands onto the most recent header command (a rule line attaches to
// the access list opened above it). Each block also knows how to remove its
// resource, which the deploy coordinator uses for rollback.
package compiler
