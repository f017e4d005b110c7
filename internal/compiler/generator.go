package compiler

import (
	"fmt"

	"github.com/muurk/nxqos/internal/policy"
)

// Block is the contiguous command sequence that defines one resource.
// Commands within a block attach to its header command and must be sent
// adjacent and in order. Removal is the compensating sequence that deletes
// the resource, used when rolling back a resource that did not previously
// exist.
type Block struct {
	ID       NodeID
	Commands []string
	Removal  []string
}

// Header is the command that opens the resource's configuration block;
// it doubles as the anchor for locating the resource in running-config.
func (b Block) Header() string {
	if len(b.Commands) == 0 {
		return ""
	}
	return b.Commands[0]
}

// Plan is a compiled policy: per-resource blocks in dependency order.
type Plan struct {
	PolicyID string
	Blocks   []Block
}

// Commands flattens the plan into the full program-order command sequence.
func (p *Plan) Commands() []string {
	var out []string
	for _, b := range p.Blocks {
		out = append(out, b.Commands...)
	}
	return out
}

// Touched returns the IDs of every resource the plan creates or modifies,
// in emission order.
func (p *Plan) Touched() []NodeID {
	out := make([]NodeID, len(p.Blocks))
	for i, b := range p.Blocks {
		out[i] = b.ID
	}
	return out
}

// Block returns the block for a resource ID, or nil if the plan does not
// touch it.
func (p *Plan) Block(id NodeID) *Block {
	for i := range p.Blocks {
		if p.Blocks[i].ID == id {
			return &p.Blocks[i]
		}
	}
	return nil
}

// Compile generates the deployment plan for a validated policy. It is a
// pure function of its input: the same policy content always yields the
// same plan, byte for byte.
func Compile(p *policy.Policy) (*Plan, error) {
	g := BuildGraph(p)
	order, err := g.Sort()
	if err != nil {
		return nil, fmt.Errorf("cannot order policy %q: %w", p.Name, err)
	}

	plan := &Plan{PolicyID: p.ID, Blocks: make([]Block, 0, len(order))}
	for _, id := range order {
		block, err := emit(p, id)
		if err != nil {
			return nil, err
		}
		plan.Blocks = append(plan.Blocks, block)
	}

	return plan, nil
}

// Generate is the flat-command convenience over Compile.
func Generate(p *policy.Policy) ([]string, error) {
	plan, err := Compile(p)
	if err != nil {
		return nil, err
	}
	return plan.Commands(), nil
}

func emit(p *policy.Policy, id NodeID) (Block, error) {
	switch id.Kind {
	case KindAccessList:
		for _, acl := range p.AccessLists {
			if acl.Name == id.Name {
				return emitAccessList(acl), nil
			}
		}
	case KindClassifier:
		for _, c := range p.Classifiers {
			if c.Name == id.Name {
				return emitClassifier(c), nil
			}
		}
	case KindTrafficPolicy:
		for _, tp := range p.TrafficPolicies {
			if tp.Name == id.Name {
				return emitTrafficPolicy(tp), nil
			}
		}
	case KindBinding:
		for _, sb := range p.Bindings {
			if sb.BindingKey() == id.Name {
				return emitBinding(sb), nil
			}
		}
	}
	return Block{}, fmt.Errorf("no resource for graph node %s", id)
}

func emitAccessList(acl policy.AccessList) Block {
	header := "ip access-list " + acl.Name
	removal := "no ip access-list " + acl.Name
	if acl.Family == policy.FamilyIPv6 {
		header = "ipv6 access-list " + acl.Name
		removal = "no ipv6 access-list " + acl.Name
	}

	cmds := []string{header}
	for _, rule := range acl.Rules {
		base := fmt.Sprintf("  %d %s %s %s", rule.Sequence, rule.Action, rule.Protocol, rule.Source)
		if spec := policy.PortSpec(rule.SourcePorts); spec != "" {
			base += " " + spec
		}
		base += " " + rule.Destination

		// Up to two destination ports render inline (eq or range); longer
		// lists expand to one rule command per port, as the device has no
		// single-term syntax for discrete port sets.
		if len(rule.DestPorts) > 2 {
			for _, port := range rule.DestPorts {
				cmds = append(cmds, fmt.Sprintf("%s eq %d", base, port))
			}
			continue
		}
		if spec := policy.PortSpec(rule.DestPorts); spec != "" {
			base += " " + spec
		}
		cmds = append(cmds, base)
	}

	return Block{
		ID:       NodeID{KindAccessList, acl.Name},
		Commands: cmds,
		Removal:  []string{removal},
	}
}

func emitClassifier(c policy.Classifier) Block {
	cmds := []string{fmt.Sprintf("class-map type qos %s %s", c.Mode, c.Name)}

	for _, cond := range c.Conditions {
		switch cond.Type {
		case policy.CondAccessGroup:
			cmds = append(cmds, "  match access-group name "+cond.Name)
		case policy.CondClassMap:
			cmds = append(cmds, "  match class-map "+cond.Name)
		case policy.CondDSCP:
			cmds = append(cmds, "  match dscp "+cond.Value)
		case policy.CondPrecedence:
			cmds = append(cmds, "  match precedence "+cond.Value)
		}
	}

	return Block{
		ID:       NodeID{KindClassifier, c.Name},
		Commands: cmds,
		Removal:  []string{"no class-map type qos " + c.Name},
	}
}

func emitTrafficPolicy(tp policy.TrafficPolicy) Block {
	cmds := []string{"policy-map type qos " + tp.Name}

	for _, cls := range tp.Classes {
		cmds = append(cmds, "  class "+cls.Classifier)
		for _, act := range cls.Actions {
			switch act.Type {
			case policy.ActionSet:
				cmds = append(cmds, fmt.Sprintf("    set %s %s", act.Parameter, act.Value))
			case policy.ActionPolice:
				cmds = append(cmds, "    police cir "+act.Value)
			case policy.ActionBandwidth:
				cmds = append(cmds, "    bandwidth "+act.Value)
			}
		}
	}

	return Block{
		ID:       NodeID{KindTrafficPolicy, tp.Name},
		Commands: cmds,
		Removal:  []string{"no policy-map type qos " + tp.Name},
	}
}

func emitBinding(sb policy.ServiceBinding) Block {
	attach := fmt.Sprintf("  service-policy type qos %s %s", sb.Direction, sb.TrafficPolicy)

	return Block{
		ID:       NodeID{KindBinding, sb.BindingKey()},
		Commands: []string{"interface " + sb.Interface, attach},
		Removal:  []string{"interface " + sb.Interface, "  no" + attach[1:]},
	}
}
