// Package policy defines the in-memory model for QoS policies and the
// two-stage parser/validator that turns a policy document into one.
//
// A policy document describes four resource kinds: access lists, traffic
// classifiers (class-maps), traffic policies (policy-maps), and service
// bindings (service-policy attachments to interfaces). The document is
// YAML on disk, but this package only sees the decoded tree.
//
// # Two-stage validation
//
// Parsing is strict and fails fast: a missing required field, a wrong value
// type, or an unknown enumeration value aborts with a DocumentError before
// any semantic rule runs.
//
// Semantic validation runs only on structurally sound documents and never
// stops at the first problem. Name uniqueness, sequence-number uniqueness,
// reference resolution, and classifier cycle detection all report every
// violation they find, so the caller gets a complete picture in one pass:
//
//	p, err := policy.Compile(data)
//	var verr *policy.ValidationError
//	if errors.As(err, &verr) {
//	    for _, v := range verr.Violations {
//	        fmt.Println(v)
//	    }
//	}
//
// A Policy returned by Compile is fully validated and treated as immutable
// from then on. The compiler and the deploy coordinator only read it, so a
// single Policy may safely back concurrent deployments to different devices.
package policy
