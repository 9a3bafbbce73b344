package semconv

import "strings"

// Detector decides which compiled plan applies to a span's attributes.
//
// Plans are tested in registration order, which follows the order the
// conventions were enabled in configuration. When a span carries marker
// keys of more than one convention (two instrumentors co-emitting on the
// same span), the first registered plan wins; resolution never depends on
// map iteration order.
type Detector struct {
	plans []*Plan
}

func NewDetector(plans ...*Plan) *Detector {
	return &Detector{plans: plans}
}

// Detect returns the highest-priority plan whose markers are present, or
// (nil, false) when no convention matches. No match is a normal outcome
// for spans from uninstrumented sources, not an error.
func (d *Detector) Detect(attrs AttributeMap) (*Plan, bool) {
	for _, p := range d.plans {
		if matches(p, attrs) {
			return p, true
		}
	}
	return nil, false
}

// DetectAll returns every matching plan in priority order. Used by tests
// and diagnostics to surface overlapping conventions.
func (d *Detector) DetectAll(attrs AttributeMap) []*Plan {
	var out []*Plan
	for _, p := range d.plans {
		if matches(p, attrs) {
			out = append(out, p)
		}
	}
	return out
}

// Plans returns the registered plans in priority order.
func (d *Detector) Plans() []*Plan {
	out := make([]*Plan, len(d.plans))
	copy(out, d.plans)
	return out
}

func matches(p *Plan, attrs AttributeMap) bool {
	for _, m := range p.markers {
		if m.Prefix {
			for key := range attrs {
				if strings.HasPrefix(key, m.Key) {
					return true
				}
			}
			continue
		}
		if _, ok := attrs[m.Key]; ok {
			return true
		}
	}
	return false
}
