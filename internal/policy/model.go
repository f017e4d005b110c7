package policy

import "fmt"

// AddressFamily selects the IP version an access list matches.
type AddressFamily string

const (
	FamilyIPv4 AddressFamily = "ipv4"
	FamilyIPv6 AddressFamily = "ipv6"
)

// RuleAction is the verdict of an access rule.
type RuleAction string

const (
	ActionPermit RuleAction = "permit"
	ActionDeny   RuleAction = "deny"
)

// Protocol is the IP protocol an access rule matches.
type Protocol string

const (
	ProtocolTCP  Protocol = "tcp"
	ProtocolUDP  Protocol = "udp"
	ProtocolIP   Protocol = "ip"
	ProtocolICMP Protocol = "icmp"
)

// MatchMode controls how a classifier combines its conditions.
type MatchMode string

const (
	MatchAny MatchMode = "match-any"
	MatchAll MatchMode = "match-all"
)

// Direction is the traffic direction of a service binding.
type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// ConditionType discriminates classifier match conditions.
type ConditionType string

const (
	// CondAccessGroup references an access list by name.
	CondAccessGroup ConditionType = "access-group"
	// CondClassMap references another classifier by name.
	CondClassMap ConditionType = "class-map"
	// CondDSCP matches a DSCP value directly.
	CondDSCP ConditionType = "dscp"
	// CondPrecedence matches an IP precedence value directly.
	CondPrecedence ConditionType = "precedence"
)

// ActionType discriminates traffic-policy class actions.
type ActionType string

const (
	// ActionSet rewrites a field on matched traffic (e.g. set dscp ef).
	ActionSet ActionType = "set"
	// ActionPolice rate-limits matched traffic to a committed rate.
	ActionPolice ActionType = "police"
	// ActionBandwidth reserves a bandwidth share for matched traffic.
	ActionBandwidth ActionType = "bandwidth"
)

// AccessRule is a single permit/deny entry in an access list.
// Sequence numbers are unique and non-negative within their list.
type AccessRule struct {
	Sequence    int
	Action      RuleAction
	Protocol    Protocol
	Source      string
	Destination string

	// SourcePorts and DestPorts are optional. One element means an exact
	// port (eq), two elements mean an inclusive range, more than two mean
	// a set of exact ports.
	SourcePorts []int
	DestPorts   []int
}

// AccessList is a named, ordered set of access rules. Rules are kept
// sorted by ascending sequence number.
type AccessList struct {
	Name   string
	Family AddressFamily
	Rules  []AccessRule
}

// MatchCondition is one predicate inside a classifier. Reference conditions
// (access-group, class-map) carry a Name; value conditions (dscp,
// precedence) carry a Value.
type MatchCondition struct {
	Type  ConditionType
	Name  string
	Value string
}

// Classifier is a named traffic predicate (class-map) built from match
// conditions combined under a match mode.
type Classifier struct {
	Name       string
	Mode       MatchMode
	Conditions []MatchCondition
}

// ClassAction is one treatment applied to traffic matched by a class.
type ClassAction struct {
	Type      ActionType
	Parameter string // set: field name (dscp, precedence, cos, ...)
	Value     string // set/bandwidth: value; police: committed rate
}

// PolicyClass binds a classifier to an ordered action list inside a
// traffic policy.
type PolicyClass struct {
	Classifier string
	Actions    []ClassAction
}

// TrafficPolicy is a named policy-map: an ordered list of class bindings.
type TrafficPolicy struct {
	Name    string
	Classes []PolicyClass
}

// ServiceBinding attaches a traffic policy to an interface in a direction.
type ServiceBinding struct {
	Interface     string
	Direction     Direction
	TrafficPolicy string
}

// Policy is the aggregate root: one compile-and-deploy unit. A Policy
// produced by Compile is immutable; later stages only read it.
type Policy struct {
	ID          string
	Name        string
	Description string
	Version     string

	AccessLists     []AccessList
	Classifiers     []Classifier
	TrafficPolicies []TrafficPolicy
	Bindings        []ServiceBinding
}

// AccessListNames returns the set of access list names in the policy.
func (p *Policy) AccessListNames() map[string]bool {
	names := make(map[string]bool, len(p.AccessLists))
	for _, acl := range p.AccessLists {
		names[acl.Name] = true
	}
	return names
}

// ClassifierNames returns the set of classifier names in the policy.
func (p *Policy) ClassifierNames() map[string]bool {
	names := make(map[string]bool, len(p.Classifiers))
	for _, c := range p.Classifiers {
		names[c.Name] = true
	}
	return names
}

// TrafficPolicyNames returns the set of traffic policy names in the policy.
func (p *Policy) TrafficPolicyNames() map[string]bool {
	names := make(map[string]bool, len(p.TrafficPolicies))
	for _, tp := range p.TrafficPolicies {
		names[tp.Name] = true
	}
	return names
}

// Classifier returns the named classifier, or nil if absent.
func (p *Policy) Classifier(name string) *Classifier {
	for i := range p.Classifiers {
		if p.Classifiers[i].Name == name {
			return &p.Classifiers[i]
		}
	}
	return nil
}

// Summary returns a one-line description of the policy contents.
func (p *Policy) Summary() string {
	return fmt.Sprintf("%s (%d ACLs, %d classifiers, %d policies, %d bindings)",
		p.Name, len(p.AccessLists), len(p.Classifiers), len(p.TrafficPolicies), len(p.Bindings))
}

// BindingKey identifies a service binding on the device: interface plus
// direction. Two bindings with the same key would overwrite each other.
func (sb ServiceBinding) BindingKey() string {
	return sb.Interface + "/" + string(sb.Direction)
}

// PortSpec renders a port list the way access rule commands expect it:
// "eq N" for one port, "range A B" for two, "" for none. Lists longer than
// two have no single-command rendering; the generator emits one command
// per port in that case.
func PortSpec(ports []int) string {
	switch len(ports) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("eq %d", ports[0])
	case 2:
		return fmt.Sprintf("range %d %d", ports[0], ports[1])
	default:
		return ""
	}
}
