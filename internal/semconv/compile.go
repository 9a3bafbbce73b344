package semconv

import (
	"fmt"
	"strings"
)

type stepKind int

const (
	// scalarStep reads one exact attribute key.
	scalarStep stepKind = iota
	// scalarArrayStep rebuilds a flattened array of scalars from keys
	// matching <prefix>.<index>[.<suffix>].
	scalarArrayStep
	// objectArrayStep rebuilds an array of objects from keys matching
	// <prefix>.<index>.<element key>.
	objectArrayStep
)

type elementStep struct {
	name      string
	key       string // attribute key relative to one element
	transform TransformFunc
	content   bool
}

type step struct {
	target    []string
	targetStr string
	kind      stepKind
	key       string // scalarStep: exact attribute key
	prefix    string // array steps: base prefix, no trailing dot
	suffix    string // scalarArrayStep: template part after the index, may be empty
	elements  []elementStep
	transform TransformFunc
	content   bool
}

// Plan is the compiled, immutable form of one Pattern. All template parsing
// and transform-name resolution happened at compile time; executing a plan
// performs no string parsing or name lookup. Plans are safe to share across
// concurrent Process calls.
type Plan struct {
	name    string
	version string
	markers []Marker
	steps   []step
}

// Convention returns the identifier of the pattern this plan was compiled
// from, e.g. "openinference-v1".
func (p *Plan) Convention() string { return p.name + "-" + p.version }

// Compile turns a structure pattern into an executable plan. Compilation is
// pure: the same pattern and registry always produce an equivalent plan.
// Any error is a *PatternError and leaves other conventions unaffected.
func Compile(pat Pattern, reg *Registry) (*Plan, error) {
	if err := pat.validate(); err != nil {
		return nil, &PatternError{Convention: pat.Name, Err: err}
	}
	plan := &Plan{
		name:    pat.Name,
		version: pat.Version,
		markers: append([]Marker(nil), pat.Markers...),
	}

	seen := make(map[string]bool)
	claim := func(target string) error {
		if target == "" {
			return fmt.Errorf("empty target")
		}
		if seen[target] {
			return fmt.Errorf("duplicate target %q", target)
		}
		seen[target] = true
		return nil
	}

	for _, f := range pat.Fields {
		if err := claim(f.Target); err != nil {
			return nil, &PatternError{Convention: pat.ID(), Field: f.Target, Err: err}
		}
		prefix, suffix, indexed, err := parseTemplate(f.Key)
		if err != nil {
			return nil, &PatternError{Convention: pat.ID(), Field: f.Target, Err: err}
		}
		fn, err := resolveTransform(reg, f.Transform)
		if err != nil {
			return nil, &PatternError{Convention: pat.ID(), Field: f.Target, Err: err}
		}
		st := step{
			target:    splitPath(f.Target),
			targetStr: f.Target,
			transform: fn,
			content:   f.Content,
		}
		if indexed {
			st.kind = scalarArrayStep
			st.prefix = prefix
			st.suffix = suffix
		} else {
			st.kind = scalarStep
			st.key = prefix
		}
		plan.steps = append(plan.steps, st)
	}

	for _, a := range pat.Arrays {
		if err := claim(a.Target); err != nil {
			return nil, &PatternError{Convention: pat.ID(), Field: a.Target, Err: err}
		}
		if a.Prefix == "" || strings.ContainsAny(a.Prefix, "{}") {
			return nil, &PatternError{Convention: pat.ID(), Field: a.Target,
				Err: fmt.Errorf("invalid array prefix %q", a.Prefix)}
		}
		if len(a.Elements) == 0 {
			return nil, &PatternError{Convention: pat.ID(), Field: a.Target,
				Err: fmt.Errorf("array declares no elements")}
		}
		st := step{
			target:    splitPath(a.Target),
			targetStr: a.Target,
			kind:      objectArrayStep,
			prefix:    a.Prefix,
		}
		elemSeen := make(map[string]bool)
		for _, e := range a.Elements {
			if e.Target == "" || elemSeen[e.Target] {
				return nil, &PatternError{Convention: pat.ID(), Field: a.Target,
					Err: fmt.Errorf("bad element target %q", e.Target)}
			}
			elemSeen[e.Target] = true
			if e.Key == "" || strings.ContainsAny(e.Key, "{}") {
				return nil, &PatternError{Convention: pat.ID(), Field: a.Target,
					Err: fmt.Errorf("element %q: invalid key %q", e.Target, e.Key)}
			}
			fn, err := resolveTransform(reg, e.Transform)
			if err != nil {
				return nil, &PatternError{Convention: pat.ID(), Field: a.Target + "." + e.Target, Err: err}
			}
			st.elements = append(st.elements, elementStep{
				name:      e.Target,
				key:       e.Key,
				transform: fn,
				content:   e.Content,
			})
		}
		plan.steps = append(plan.steps, st)
	}

	return plan, nil
}

func resolveTransform(reg *Registry, name string) (TransformFunc, error) {
	if name == "" {
		name = "identity"
	}
	return reg.Resolve(name)
}

// parseTemplate splits a key template around the optional {i} placeholder.
// Literal templates return (key, "", false). Indexed templates of the form
// "P.{i}" or "P.{i}.S" return (P, S, true). Anything with unbalanced or
// stray braces is rejected.
func parseTemplate(key string) (prefix, suffix string, indexed bool, err error) {
	if key == "" {
		return "", "", false, fmt.Errorf("empty key template")
	}
	open := strings.Count(key, "{")
	closed := strings.Count(key, "}")
	if open == 0 && closed == 0 {
		return key, "", false, nil
	}
	if open != 1 || closed != 1 {
		return "", "", false, fmt.Errorf("unbalanced placeholder in %q", key)
	}
	idx := strings.Index(key, "{i}")
	if idx < 0 {
		return "", "", false, fmt.Errorf("unrecognized placeholder in %q", key)
	}
	before, after := key[:idx], key[idx+len("{i}"):]
	if !strings.HasSuffix(before, ".") || len(before) == 1 {
		return "", "", false, fmt.Errorf("placeholder must follow a prefix segment in %q", key)
	}
	prefix = strings.TrimSuffix(before, ".")
	if after != "" {
		if !strings.HasPrefix(after, ".") || len(after) == 1 {
			return "", "", false, fmt.Errorf("placeholder must end a segment in %q", key)
		}
		suffix = strings.TrimPrefix(after, ".")
	}
	return prefix, suffix, true, nil
}
