package policy

import (
	"fmt"
	"regexp"
	"strings"
)

// interfacePattern matches the interface identifiers the supported switch
// platforms accept for service-policy attachment.
var interfacePattern = regexp.MustCompile(`(?i)^(Ethernet|Vlan|port-channel)\d+(/\d+)?$`)

// Validate runs every semantic rule against a structurally valid policy
// and returns all violations found, warnings included. It never stops at
// the first problem: a policy with three bad references reports three
// violations. An empty result means the policy is deployable.
func Validate(p *Policy) []Violation {
	var violations []Violation

	violations = append(violations, checkAccessLists(p)...)
	violations = append(violations, checkClassifiers(p)...)
	violations = append(violations, checkTrafficPolicies(p)...)
	violations = append(violations, checkBindings(p)...)
	violations = append(violations, checkClassifierCycles(p)...)

	return violations
}

func checkAccessLists(p *Policy) []Violation {
	var out []Violation

	seen := map[string]bool{}
	for _, acl := range p.AccessLists {
		if seen[acl.Name] {
			out = append(out, Violation{
				Field:    "access_lists",
				Message:  fmt.Sprintf("duplicate access list name %q", acl.Name),
				Severity: SeverityError,
			})
		}
		seen[acl.Name] = true

		if len(acl.Rules) == 0 {
			out = append(out, Violation{
				Field:    "access_lists",
				Message:  fmt.Sprintf("access list %q has no rules", acl.Name),
				Severity: SeverityWarning,
			})
		}

		seqs := map[int]bool{}
		for _, rule := range acl.Rules {
			if seqs[rule.Sequence] {
				out = append(out, Violation{
					Field:    "access_lists",
					Message:  fmt.Sprintf("access list %q has duplicate sequence number %d", acl.Name, rule.Sequence),
					Severity: SeverityError,
				})
			}
			seqs[rule.Sequence] = true
		}
	}

	return out
}

func checkClassifiers(p *Policy) []Violation {
	var out []Violation

	aclNames := p.AccessListNames()
	classNames := p.ClassifierNames()

	seen := map[string]bool{}
	for _, c := range p.Classifiers {
		if seen[c.Name] {
			out = append(out, Violation{
				Field:    "class_maps",
				Message:  fmt.Sprintf("duplicate classifier name %q", c.Name),
				Severity: SeverityError,
			})
		}
		seen[c.Name] = true

		for _, cond := range c.Conditions {
			switch cond.Type {
			case CondAccessGroup:
				if !aclNames[cond.Name] {
					out = append(out, Violation{
						Field:    "class_maps",
						Message:  fmt.Sprintf("classifier %q references non-existent access list %q", c.Name, cond.Name),
						Severity: SeverityError,
					})
				}
			case CondClassMap:
				if !classNames[cond.Name] {
					out = append(out, Violation{
						Field:    "class_maps",
						Message:  fmt.Sprintf("classifier %q references non-existent classifier %q", c.Name, cond.Name),
						Severity: SeverityError,
					})
				}
			}
		}
	}

	return out
}

func checkTrafficPolicies(p *Policy) []Violation {
	var out []Violation

	classNames := p.ClassifierNames()

	seen := map[string]bool{}
	for _, tp := range p.TrafficPolicies {
		if seen[tp.Name] {
			out = append(out, Violation{
				Field:    "policy_maps",
				Message:  fmt.Sprintf("duplicate traffic policy name %q", tp.Name),
				Severity: SeverityError,
			})
		}
		seen[tp.Name] = true

		if len(tp.Classes) == 0 {
			out = append(out, Violation{
				Field:    "policy_maps",
				Message:  fmt.Sprintf("traffic policy %q has no classes", tp.Name),
				Severity: SeverityWarning,
			})
		}

		for _, cls := range tp.Classes {
			// class-default is implicit on the device and never declared.
			if cls.Classifier == "class-default" {
				continue
			}
			if !classNames[cls.Classifier] {
				out = append(out, Violation{
					Field:    "policy_maps",
					Message:  fmt.Sprintf("traffic policy %q references non-existent classifier %q", tp.Name, cls.Classifier),
					Severity: SeverityError,
				})
			}
		}
	}

	return out
}

func checkBindings(p *Policy) []Violation {
	var out []Violation

	policyNames := p.TrafficPolicyNames()

	seen := map[string]bool{}
	for _, sb := range p.Bindings {
		if !policyNames[sb.TrafficPolicy] {
			out = append(out, Violation{
				Field:    "service_policies",
				Message:  fmt.Sprintf("service policy on %s references non-existent traffic policy %q", sb.Interface, sb.TrafficPolicy),
				Severity: SeverityError,
			})
		}

		key := sb.BindingKey()
		if seen[key] {
			out = append(out, Violation{
				Field:    "service_policies",
				Message:  fmt.Sprintf("duplicate service policy binding for %s %s", sb.Interface, sb.Direction),
				Severity: SeverityError,
			})
		}
		seen[key] = true

		if !interfacePattern.MatchString(sb.Interface) {
			out = append(out, Violation{
				Field:    "service_policies",
				Message:  fmt.Sprintf("invalid interface name format: %q", sb.Interface),
				Severity: SeverityWarning,
			})
		}
	}

	return out
}

// checkClassifierCycles rejects classifiers that reference themselves,
// directly or transitively, through class-map conditions. Each cycle is
// reported once, from its first member in declaration order.
func checkClassifierCycles(p *Policy) []Violation {
	var out []Violation

	// Adjacency in declaration order so reports are deterministic.
	refs := make(map[string][]string, len(p.Classifiers))
	for _, c := range p.Classifiers {
		for _, cond := range c.Conditions {
			if cond.Type == CondClassMap {
				refs[c.Name] = append(refs[c.Name], cond.Name)
			}
		}
	}

	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(p.Classifiers))

	var stack []string
	var visit func(name string)
	visit = func(name string) {
		state[name] = inStack
		stack = append(stack, name)

		for _, next := range refs[name] {
			switch state[next] {
			case unvisited:
				visit(next)
			case inStack:
				// Found a back edge; the cycle is the stack suffix from next.
				start := 0
				for i, n := range stack {
					if n == next {
						start = i
						break
					}
				}
				cycle := append(append([]string{}, stack[start:]...), next)
				out = append(out, Violation{
					Field:    "class_maps",
					Message:  fmt.Sprintf("classifier reference cycle: %s", strings.Join(cycle, " -> ")),
					Severity: SeverityError,
				})
			}
		}

		stack = stack[:len(stack)-1]
		state[name] = done
	}

	for _, c := range p.Classifiers {
		if state[c.Name] == unvisited {
			visit(c.Name)
		}
	}

	return out
}
