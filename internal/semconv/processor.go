// Package semconv reconstructs structured GenAI documents from the flat
// attribute maps that LLM instrumentors attach to spans. Each supported
// naming convention is described by a declarative structure pattern,
// compiled once into a plan, and selected at processing time by marker
// detection. Reconstruction tolerates sparse, out-of-order and partially
// malformed input; a single bad field degrades output to a partial
// document instead of discarding the span's enrichment.
package semconv

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// AttributeMap is the flat key/value view of one span's attributes.
// Values are scalars (string, int64, float64, bool) or values already
// decoded by the transport. Process never mutates it.
type AttributeMap map[string]any

// Content-capture policies. The default is CaptureNone: fields flagged as
// free-text content are not reconstructed at all.
const (
	CaptureNone        = "none"
	CaptureAttributes  = "attributes"
	CaptureExternalRef = "external-reference"
)

type Outcome int

const (
	// Unmatched means no enabled convention's markers were present.
	Unmatched Outcome = iota
	// Structured means every applicable field extracted cleanly.
	Structured
	// Partial means some fields failed but the rest of the document is
	// valid; failures are listed in Result.Errors.
	Partial
)

// Result is the outcome of processing one attribute map.
type Result struct {
	Outcome    Outcome
	Convention string
	Document   *Document
	Errors     []FieldError
}

type ProcessorOption func(*Processor)

// WithCapturePolicy sets the content-capture policy. Unknown values fall
// back to CaptureNone.
func WithCapturePolicy(policy string) ProcessorOption {
	return func(p *Processor) {
		switch policy {
		case CaptureAttributes, CaptureExternalRef:
			p.capture = policy
		default:
			p.capture = CaptureNone
		}
	}
}

// WithStrictArrays makes a malformed array index fail the whole array
// field instead of dropping just the offending element. Sibling fields
// are still unaffected.
func WithStrictArrays(strict bool) ProcessorOption {
	return func(p *Processor) { p.strict = strict }
}

// Processor executes compiled plans against span attribute maps. It holds
// no per-call state: Process is a pure function of its input and the
// immutable plans, so concurrent calls need no synchronization.
type Processor struct {
	detector *Detector
	capture  string
	strict   bool
}

func NewProcessor(detector *Detector, opts ...ProcessorOption) *Processor {
	p := &Processor{detector: detector, capture: CaptureNone}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// New compiles the given conventions from the store and builds a processor
// over them. Conventions that fail to compile (or are not in the store)
// are reported and skipped; the rest stay usable. Detection priority
// follows the order of the conventions slice.
func New(store *Store, reg *Registry, conventions []string, opts ...ProcessorOption) (*Processor, []error) {
	var (
		plans []*Plan
		errs  []error
	)
	for _, id := range conventions {
		pat, ok := store.Get(id)
		if !ok {
			errs = append(errs, fmt.Errorf("convention %q: no such pattern", id))
			continue
		}
		plan, err := Compile(pat, reg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		plans = append(plans, plan)
	}
	return NewProcessor(NewDetector(plans...), opts...), errs
}

// Process reconstructs a structured document from one span's attributes.
// It is deterministic: the same attribute map always yields the same
// result regardless of map iteration order.
func (p *Processor) Process(attrs AttributeMap) Result {
	plan, ok := p.detector.Detect(attrs)
	if !ok {
		return Result{Outcome: Unmatched}
	}

	doc := NewDocument()
	var errs []FieldError

	for _, st := range plan.steps {
		switch st.kind {
		case scalarStep:
			p.runScalar(st, attrs, doc, &errs)
		case scalarArrayStep:
			p.runScalarArray(st, attrs, doc, &errs)
		case objectArrayStep:
			p.runObjectArray(st, attrs, doc, &errs)
		}
	}

	res := Result{Outcome: Structured, Convention: plan.Convention(), Document: doc}
	if len(errs) > 0 {
		res.Outcome = Partial
		res.Errors = errs
	}
	return res
}

func (p *Processor) runScalar(st step, attrs AttributeMap, doc *Document, errs *[]FieldError) {
	raw, ok := attrs[st.key]
	if !ok {
		return
	}
	if st.content && p.capture == CaptureNone {
		return
	}
	out, err := st.transform(raw)
	if err != nil {
		*errs = append(*errs, FieldError{Field: st.targetStr, Key: st.key, Err: err})
		return
	}
	if st.content && p.capture == CaptureExternalRef {
		out = externalRef(raw)
	}
	doc.Set(st.target, out)
}

// runScalarArray rebuilds a flattened scalar list ("array-from-flattened"):
// keys <prefix>.<index> or <prefix>.<index>.<suffix>, ordered by integer
// index ascending.
func (p *Processor) runScalarArray(st step, attrs AttributeMap, doc *Document, errs *[]FieldError) {
	if st.content && p.capture == CaptureNone {
		return
	}
	prefix := st.prefix + "."
	type hit struct {
		key string
		raw any
	}
	byIndex := make(map[int]hit)
	var bad []string

	for key, raw := range attrs {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		idxStr := rest
		if st.suffix != "" {
			var ok bool
			idxStr, ok = strings.CutSuffix(rest, "."+st.suffix)
			if !ok {
				continue
			}
		} else if strings.Contains(rest, ".") {
			continue
		}
		idx, ok := parseIndex(idxStr)
		if !ok {
			bad = append(bad, key)
			continue
		}
		byIndex[idx] = hit{key: key, raw: raw}
	}

	sort.Strings(bad)
	for _, key := range bad {
		*errs = append(*errs, FieldError{Field: st.targetStr, Key: key,
			Err: fmt.Errorf("%w: %q", ErrMalformedIndex, key)})
	}
	if p.strict && len(bad) > 0 {
		return
	}
	if len(byIndex) == 0 {
		return
	}

	indices := make([]int, 0, len(byIndex))
	for idx := range byIndex {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	out := make([]any, 0, len(indices))
	for _, idx := range indices {
		h := byIndex[idx]
		v, err := st.transform(h.raw)
		if err != nil {
			*errs = append(*errs, FieldError{Field: st.targetStr, Key: h.key, Err: err})
			continue
		}
		if st.content && p.capture == CaptureExternalRef {
			v = externalRef(h.raw)
		}
		out = append(out, v)
	}
	if len(out) > 0 {
		doc.Set(st.target, out)
	}
}

// runObjectArray rebuilds an array of objects from keys of the form
// <prefix>.<index>.<element key>. Elements missing some sub-fields keep
// whatever was present; elements with malformed indices are dropped (or,
// in strict mode, fail the whole field) without touching siblings.
func (p *Processor) runObjectArray(st step, attrs AttributeMap, doc *Document, errs *[]FieldError) {
	prefix := st.prefix + "."
	groups := make(map[int]map[string]any)
	badSeen := make(map[string]bool)
	var bad []string

	for key, raw := range attrs {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		dot := strings.Index(rest, ".")
		if dot <= 0 || dot == len(rest)-1 {
			continue
		}
		idxStr, sub := rest[:dot], rest[dot+1:]
		el := findElement(st.elements, sub)
		if el == nil {
			continue
		}
		idx, ok := parseIndex(idxStr)
		if !ok {
			if !badSeen[idxStr] {
				badSeen[idxStr] = true
				bad = append(bad, idxStr)
			}
			continue
		}
		g := groups[idx]
		if g == nil {
			g = make(map[string]any)
			groups[idx] = g
		}
		g[el.name] = raw
	}

	sort.Strings(bad)
	for _, idxStr := range bad {
		*errs = append(*errs, FieldError{Field: st.targetStr, Key: st.prefix + "." + idxStr,
			Err: fmt.Errorf("%w: %q", ErrMalformedIndex, idxStr)})
	}
	if p.strict && len(bad) > 0 {
		return
	}
	if len(groups) == 0 {
		return
	}

	indices := make([]int, 0, len(groups))
	for idx := range groups {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	out := make([]any, 0, len(indices))
	for _, idx := range indices {
		g := groups[idx]
		elem := NewDocument()
		for _, el := range st.elements {
			raw, ok := g[el.name]
			if !ok {
				continue
			}
			if el.content && p.capture == CaptureNone {
				continue
			}
			v, err := el.transform(raw)
			if err != nil {
				*errs = append(*errs, FieldError{
					Field: fmt.Sprintf("%s.%d.%s", st.targetStr, idx, el.name),
					Err:   err,
				})
				continue
			}
			if el.content && p.capture == CaptureExternalRef {
				v = externalRef(raw)
			}
			elem.Set([]string{el.name}, v)
		}
		if elem.Len() > 0 {
			out = append(out, elem)
		}
	}
	if len(out) > 0 {
		doc.Set(st.target, out)
	}
}

func findElement(elements []elementStep, sub string) *elementStep {
	for i := range elements {
		if elements[i].key == sub {
			return &elements[i]
		}
	}
	return nil
}

// parseIndex accepts only plain non-negative decimal indices. "10" sorts
// after "2" because comparison happens on the parsed integer.
func parseIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// externalRef replaces captured content with a stable digest so payloads
// shipped out of band can be joined back downstream.
func externalRef(raw any) string {
	var s string
	switch x := raw.(type) {
	case string:
		s = x
	default:
		s = fmt.Sprint(x)
	}
	return fmt.Sprintf("ref:sha256:%x", sha256.Sum256([]byte(s)))
}
