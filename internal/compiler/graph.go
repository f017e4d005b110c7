package compiler

import (
	"fmt"
	"strings"

	"github.com/muurk/nxqos/internal/policy"
)

// Kind identifies which of the four resource kinds a graph node holds.
type Kind int

const (
	KindAccessList Kind = iota
	KindClassifier
	KindTrafficPolicy
	KindBinding
)

func (k Kind) String() string {
	switch k {
	case KindAccessList:
		return "access-list"
	case KindClassifier:
		return "class-map"
	case KindTrafficPolicy:
		return "policy-map"
	case KindBinding:
		return "service-policy"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// NodeID identifies a resource in the dependency graph. For bindings the
// name is the interface/direction pair, since that is what must be unique
// on the device.
type NodeID struct {
	Kind Kind
	Name string
}

func (id NodeID) String() string {
	return fmt.Sprintf("%s %s", id.Kind, id.Name)
}

type node struct {
	id NodeID
	// order is the declaration position in the source policy; it is the
	// tie-break for the topological sort, so emission order never depends
	// on map iteration.
	order int
	deps  []NodeID
}

// Graph is the typed dependency graph over a policy's resources.
type Graph struct {
	nodes []*node
	index map[NodeID]*node
}

// BuildGraph constructs the dependency graph for a policy. Nodes are added
// in declaration order; edges point from a resource to the resources it
// requires. References that do not resolve become dangling edges and are
// reported by Sort; a policy that passed validation never has any.
func BuildGraph(p *policy.Policy) *Graph {
	g := &Graph{index: make(map[NodeID]*node)}

	add := func(id NodeID, deps []NodeID) {
		n := &node{id: id, order: len(g.nodes), deps: deps}
		g.nodes = append(g.nodes, n)
		g.index[id] = n
	}

	for _, acl := range p.AccessLists {
		add(NodeID{KindAccessList, acl.Name}, nil)
	}

	for _, c := range p.Classifiers {
		var deps []NodeID
		for _, cond := range c.Conditions {
			switch cond.Type {
			case policy.CondAccessGroup:
				deps = append(deps, NodeID{KindAccessList, cond.Name})
			case policy.CondClassMap:
				deps = append(deps, NodeID{KindClassifier, cond.Name})
			}
		}
		add(NodeID{KindClassifier, c.Name}, deps)
	}

	for _, tp := range p.TrafficPolicies {
		var deps []NodeID
		for _, cls := range tp.Classes {
			if cls.Classifier == "class-default" {
				continue
			}
			deps = append(deps, NodeID{KindClassifier, cls.Classifier})
		}
		add(NodeID{KindTrafficPolicy, tp.Name}, deps)
	}

	for _, sb := range p.Bindings {
		add(NodeID{KindBinding, sb.BindingKey()},
			[]NodeID{{KindTrafficPolicy, sb.TrafficPolicy}})
	}

	return g
}

// Sort returns the node IDs in dependency order: every dependency appears
// strictly before its dependents. Nodes with no constraint between them
// keep declaration order (Kahn's algorithm, always picking the ready node
// with the lowest declaration position). It fails on dangling references
// and on cycles, neither of which survives policy validation.
func (g *Graph) Sort() ([]NodeID, error) {
	indegree := make(map[NodeID]int, len(g.nodes))
	dependents := make(map[NodeID][]NodeID, len(g.nodes))

	for _, n := range g.nodes {
		if _, ok := indegree[n.id]; !ok {
			indegree[n.id] = 0
		}
		for _, dep := range n.deps {
			if _, ok := g.index[dep]; !ok {
				return nil, fmt.Errorf("unresolved reference: %s depends on unknown %s", n.id, dep)
			}
			indegree[n.id]++
			dependents[dep] = append(dependents[dep], n.id)
		}
	}

	ordered := make([]NodeID, 0, len(g.nodes))
	for len(ordered) < len(g.nodes) {
		// Lowest declaration position among ready nodes. The graph is
		// small (tens of resources), so the linear scan stays cheap and
		// keeps the tie-break trivially deterministic.
		next := (*node)(nil)
		for _, n := range g.nodes {
			if indegree[n.id] != 0 {
				continue
			}
			if next == nil || n.order < next.order {
				next = n
			}
		}
		if next == nil {
			return nil, fmt.Errorf("dependency cycle among: %s", strings.Join(g.remaining(indegree), ", "))
		}

		ordered = append(ordered, next.id)
		indegree[next.id] = -1 // emitted
		for _, dep := range dependents[next.id] {
			indegree[dep]--
		}
	}

	return ordered, nil
}

func (g *Graph) remaining(indegree map[NodeID]int) []string {
	var names []string
	for _, n := range g.nodes {
		if indegree[n.id] > 0 {
			names = append(names, n.id.String())
		}
	}
	return names
}
