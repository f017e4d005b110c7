package policy

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Document field names follow the uploaded YAML schema:
//
//	id: web-qos
//	name: Web traffic priority
//	description: ...
//	version: "3"
//	access_lists:
//	  - name: ACL_WEB
//	    type: ipv4
//	    rules:
//	      - {sequence: 10, action: permit, protocol: tcp,
//	         source: 10.0.0.0/8, destination: any, dest_port: [443]}
//	class_maps:
//	  - name: CM_WEB
//	    match_type: match-any
//	    conditions:
//	      - {type: access-group, name: ACL_WEB}
//	policy_maps:
//	  - name: PM_WEB
//	    classes:
//	      - class_name: CM_WEB
//	        actions:
//	          - {type: set, parameter: dscp, value: ef}
//	service_policies:
//	  - {interface: Ethernet1/1, direction: input, policy_map: PM_WEB}

type document struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`

	AccessLists     []aclDoc     `yaml:"access_lists"`
	ClassMaps       []classDoc   `yaml:"class_maps"`
	PolicyMaps      []policyDoc  `yaml:"policy_maps"`
	ServicePolicies []bindingDoc `yaml:"service_policies"`
}

type aclDoc struct {
	Name  string    `yaml:"name"`
	Type  string    `yaml:"type"`
	Rules []ruleDoc `yaml:"rules"`
}

type ruleDoc struct {
	Sequence    *int   `yaml:"sequence"`
	Action      string `yaml:"action"`
	Protocol    string `yaml:"protocol"`
	Source      string `yaml:"source"`
	Destination string `yaml:"destination"`
	SourcePort  []int  `yaml:"source_port"`
	DestPort    []int  `yaml:"dest_port"`
}

type classDoc struct {
	Name       string         `yaml:"name"`
	MatchType  string         `yaml:"match_type"`
	Conditions []conditionDoc `yaml:"conditions"`
}

type conditionDoc struct {
	Type  string `yaml:"type"`
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

type policyDoc struct {
	Name    string         `yaml:"name"`
	Classes []policyClsDoc `yaml:"classes"`
}

type policyClsDoc struct {
	ClassName string      `yaml:"class_name"`
	Actions   []actionDoc `yaml:"actions"`
}

type actionDoc struct {
	Type      string `yaml:"type"`
	Parameter string `yaml:"parameter"`
	Value     string `yaml:"value"`
	Rate      string `yaml:"rate"`
}

type bindingDoc struct {
	Interface string `yaml:"interface"`
	Direction string `yaml:"direction"`
	PolicyMap string `yaml:"policy_map"`
}

// Parse decodes a policy document and performs structural validation.
// It fails fast with a DocumentError on the first missing field, type
// mismatch, or unknown enumeration value. Semantic rules (uniqueness,
// references, cycles) are checked by Validate, not here.
func Parse(data []byte) (*Policy, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, NewDocumentError("empty policy document", nil)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, NewDocumentError("malformed YAML", err)
	}

	if doc.Name == "" {
		return nil, NewDocumentError("missing required field: name", nil)
	}
	if doc.Description == "" {
		return nil, NewDocumentError("missing required field: description", nil)
	}
	if doc.ID == "" {
		// IDs are normally assigned by the uploader; generate one so a
		// bare document still compiles to a usable policy.
		doc.ID = uuid.NewString()
	}

	p := &Policy{
		ID:          doc.ID,
		Name:        doc.Name,
		Description: doc.Description,
		Version:     doc.Version,
	}

	for i, acl := range doc.AccessLists {
		parsed, err := parseAccessList(i, acl)
		if err != nil {
			return nil, err
		}
		p.AccessLists = append(p.AccessLists, parsed)
	}

	for i, cm := range doc.ClassMaps {
		parsed, err := parseClassifier(i, cm)
		if err != nil {
			return nil, err
		}
		p.Classifiers = append(p.Classifiers, parsed)
	}

	for i, pm := range doc.PolicyMaps {
		parsed, err := parseTrafficPolicy(i, pm)
		if err != nil {
			return nil, err
		}
		p.TrafficPolicies = append(p.TrafficPolicies, parsed)
	}

	for i, sp := range doc.ServicePolicies {
		parsed, err := parseBinding(i, sp)
		if err != nil {
			return nil, err
		}
		p.Bindings = append(p.Bindings, parsed)
	}

	return p, nil
}

func parseAccessList(idx int, doc aclDoc) (AccessList, error) {
	if doc.Name == "" {
		return AccessList{}, NewDocumentError(fmt.Sprintf("access_lists[%d]: missing name", idx), nil)
	}

	family := FamilyIPv4
	switch doc.Type {
	case "", "ipv4":
		family = FamilyIPv4
	case "ipv6":
		family = FamilyIPv6
	default:
		return AccessList{}, NewDocumentError(
			fmt.Sprintf("access_lists[%d] %q: type must be ipv4 or ipv6, got %q", idx, doc.Name, doc.Type), nil)
	}

	acl := AccessList{Name: doc.Name, Family: family}

	for i, rule := range doc.Rules {
		where := fmt.Sprintf("access_lists[%d] %q rules[%d]", idx, doc.Name, i)

		if rule.Sequence == nil {
			return AccessList{}, NewDocumentError(where+": missing sequence", nil)
		}
		if *rule.Sequence < 0 {
			return AccessList{}, NewDocumentError(
				fmt.Sprintf("%s: sequence must be non-negative, got %d", where, *rule.Sequence), nil)
		}

		action := RuleAction(rule.Action)
		if action != ActionPermit && action != ActionDeny {
			return AccessList{}, NewDocumentError(
				fmt.Sprintf("%s: action must be permit or deny, got %q", where, rule.Action), nil)
		}

		proto := Protocol(rule.Protocol)
		switch proto {
		case ProtocolTCP, ProtocolUDP, ProtocolIP, ProtocolICMP:
		default:
			return AccessList{}, NewDocumentError(
				fmt.Sprintf("%s: protocol must be tcp, udp, ip or icmp, got %q", where, rule.Protocol), nil)
		}

		if rule.Source == "" {
			return AccessList{}, NewDocumentError(where+": missing source", nil)
		}
		if rule.Destination == "" {
			return AccessList{}, NewDocumentError(where+": missing destination", nil)
		}
		// Source ports render as a single eq/range term; there is no
		// per-port command expansion on the source side.
		if len(rule.SourcePort) > 2 {
			return AccessList{}, NewDocumentError(
				fmt.Sprintf("%s: source_port supports at most two entries (eq or range), got %d", where, len(rule.SourcePort)), nil)
		}

		acl.Rules = append(acl.Rules, AccessRule{
			Sequence:    *rule.Sequence,
			Action:      action,
			Protocol:    proto,
			Source:      rule.Source,
			Destination: rule.Destination,
			SourcePorts: rule.SourcePort,
			DestPorts:   rule.DestPort,
		})
	}

	// Rules are kept sorted by sequence number; the device applies them in
	// that order regardless of declaration order. Stable so duplicate
	// sequences (caught later by Validate) keep declaration order.
	sort.SliceStable(acl.Rules, func(a, b int) bool {
		return acl.Rules[a].Sequence < acl.Rules[b].Sequence
	})

	return acl, nil
}

func parseClassifier(idx int, doc classDoc) (Classifier, error) {
	if doc.Name == "" {
		return Classifier{}, NewDocumentError(fmt.Sprintf("class_maps[%d]: missing name", idx), nil)
	}

	mode := MatchMode(doc.MatchType)
	if doc.MatchType == "" {
		mode = MatchAny
	} else if mode != MatchAny && mode != MatchAll {
		return Classifier{}, NewDocumentError(
			fmt.Sprintf("class_maps[%d] %q: match_type must be match-any or match-all, got %q", idx, doc.Name, doc.MatchType), nil)
	}

	c := Classifier{Name: doc.Name, Mode: mode}

	for i, cond := range doc.Conditions {
		where := fmt.Sprintf("class_maps[%d] %q conditions[%d]", idx, doc.Name, i)

		ct := ConditionType(cond.Type)
		switch ct {
		case CondAccessGroup, CondClassMap:
			if cond.Name == "" {
				return Classifier{}, NewDocumentError(
					fmt.Sprintf("%s: %s condition requires a name", where, ct), nil)
			}
		case CondDSCP, CondPrecedence:
			if cond.Value == "" {
				return Classifier{}, NewDocumentError(
					fmt.Sprintf("%s: %s condition requires a value", where, ct), nil)
			}
		default:
			return Classifier{}, NewDocumentError(
				fmt.Sprintf("%s: unknown condition type %q", where, cond.Type), nil)
		}

		c.Conditions = append(c.Conditions, MatchCondition{Type: ct, Name: cond.Name, Value: cond.Value})
	}

	return c, nil
}

func parseTrafficPolicy(idx int, doc policyDoc) (TrafficPolicy, error) {
	if doc.Name == "" {
		return TrafficPolicy{}, NewDocumentError(fmt.Sprintf("policy_maps[%d]: missing name", idx), nil)
	}

	tp := TrafficPolicy{Name: doc.Name}

	for i, cls := range doc.Classes {
		where := fmt.Sprintf("policy_maps[%d] %q classes[%d]", idx, doc.Name, i)

		if cls.ClassName == "" {
			return TrafficPolicy{}, NewDocumentError(where+": missing class_name", nil)
		}

		pc := PolicyClass{Classifier: cls.ClassName}
		for j, act := range cls.Actions {
			actWhere := fmt.Sprintf("%s actions[%d]", where, j)

			at := ActionType(act.Type)
			switch at {
			case ActionSet:
				if act.Parameter == "" || act.Value == "" {
					return TrafficPolicy{}, NewDocumentError(
						actWhere+": set action requires parameter and value", nil)
				}
				pc.Actions = append(pc.Actions, ClassAction{Type: at, Parameter: act.Parameter, Value: act.Value})
			case ActionPolice:
				rate := act.Rate
				if rate == "" {
					rate = act.Value
				}
				if rate == "" {
					return TrafficPolicy{}, NewDocumentError(
						actWhere+": police action requires a rate", nil)
				}
				pc.Actions = append(pc.Actions, ClassAction{Type: at, Value: rate})
			case ActionBandwidth:
				if act.Value == "" {
					return TrafficPolicy{}, NewDocumentError(
						actWhere+": bandwidth action requires a value", nil)
				}
				pc.Actions = append(pc.Actions, ClassAction{Type: at, Value: act.Value})
			default:
				return TrafficPolicy{}, NewDocumentError(
					fmt.Sprintf("%s: unknown action type %q", actWhere, act.Type), nil)
			}
		}

		tp.Classes = append(tp.Classes, pc)
	}

	return tp, nil
}

func parseBinding(idx int, doc bindingDoc) (ServiceBinding, error) {
	where := fmt.Sprintf("service_policies[%d]", idx)

	if doc.Interface == "" {
		return ServiceBinding{}, NewDocumentError(where+": missing interface", nil)
	}
	if doc.PolicyMap == "" {
		return ServiceBinding{}, NewDocumentError(where+": missing policy_map", nil)
	}

	dir := Direction(doc.Direction)
	if dir != DirectionInput && dir != DirectionOutput {
		return ServiceBinding{}, NewDocumentError(
			fmt.Sprintf("%s: direction must be input or output, got %q", where, doc.Direction), nil)
	}

	return ServiceBinding{
		Interface:     doc.Interface,
		Direction:     dir,
		TrafficPolicy: doc.PolicyMap,
	}, nil
}

// Compile parses and validates a policy document in one call. It returns
// either a fully valid Policy or an error: a DocumentError for structural
// problems, a ValidationError carrying the error-severity violations
// otherwise. The violation slice always holds the complete validation
// report, warnings and errors both, so callers can render it directly. A
// partially valid Policy is never returned.
func Compile(data []byte) (*Policy, []Violation, error) {
	p, err := Parse(data)
	if err != nil {
		return nil, nil, err
	}

	violations := Validate(p)
	if _, errs := SplitSeverity(violations); len(errs) > 0 {
		return nil, violations, &ValidationError{Violations: errs}
	}

	return p, violations, nil
}
