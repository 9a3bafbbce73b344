package semconv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compilePatterns(t *testing.T, pats ...Pattern) []*Plan {
	t.Helper()
	reg := NewRegistry()
	plans := make([]*Plan, 0, len(pats))
	for _, pat := range pats {
		plan, err := Compile(pat, reg)
		require.NoError(t, err)
		plans = append(plans, plan)
	}
	return plans
}

func TestDetectSingleMatch(t *testing.T) {
	a := Pattern{Name: "a", Version: "v1", Markers: []Marker{{Key: "aaa.", Prefix: true}},
		Fields: []Field{{Target: "x", Key: "aaa.x"}}}
	b := Pattern{Name: "b", Version: "v1", Markers: []Marker{{Key: "bbb.marker"}},
		Fields: []Field{{Target: "y", Key: "bbb.y"}}}

	plans := compilePatterns(t, a, b)
	d := NewDetector(plans...)

	plan, ok := d.Detect(AttributeMap{"aaa.x": "1"})
	require.True(t, ok)
	assert.Equal(t, "a-v1", plan.Convention())

	plan, ok = d.Detect(AttributeMap{"bbb.marker": true, "bbb.y": "2"})
	require.True(t, ok)
	assert.Equal(t, "b-v1", plan.Convention())
}

func TestDetectNoMatch(t *testing.T) {
	a := Pattern{Name: "a", Version: "v1", Markers: []Marker{{Key: "aaa.", Prefix: true}},
		Fields: []Field{{Target: "x", Key: "aaa.x"}}}
	d := NewDetector(compilePatterns(t, a)...)

	_, ok := d.Detect(AttributeMap{"http.method": "GET", "http.status_code": int64(200)})
	assert.False(t, ok)
}

func TestDetectPriorityOrderIsRegistrationOrder(t *testing.T) {
	a := Pattern{Name: "a", Version: "v1", Markers: []Marker{{Key: "shared.", Prefix: true}},
		Fields: []Field{{Target: "x", Key: "shared.x"}}}
	b := Pattern{Name: "b", Version: "v1", Markers: []Marker{{Key: "shared.", Prefix: true}},
		Fields: []Field{{Target: "y", Key: "shared.y"}}}

	attrs := AttributeMap{"shared.x": "1", "shared.y": "2"}

	plans := compilePatterns(t, a, b)
	plan, ok := NewDetector(plans[0], plans[1]).Detect(attrs)
	require.True(t, ok)
	assert.Equal(t, "a-v1", plan.Convention())

	// Swapping registration order flips the winner deterministically.
	plan, ok = NewDetector(plans[1], plans[0]).Detect(attrs)
	require.True(t, ok)
	assert.Equal(t, "b-v1", plan.Convention())

	all := NewDetector(plans[0], plans[1]).DetectAll(attrs)
	require.Len(t, all, 2)
	assert.Equal(t, "a-v1", all[0].Convention())
}

func TestNoCrossConventionLeakage(t *testing.T) {
	a := Pattern{Name: "a", Version: "v1", Markers: []Marker{{Key: "aaa.", Prefix: true}},
		Fields: []Field{{Target: "from_a", Key: "aaa.x"}}}
	b := Pattern{Name: "b", Version: "v1", Markers: []Marker{{Key: "bbb.", Prefix: true}},
		Fields: []Field{{Target: "from_b", Key: "bbb.x"}}}

	plans := compilePatterns(t, a, b)
	proc := NewProcessor(NewDetector(plans...), WithCapturePolicy(CaptureAttributes))

	res := proc.Process(AttributeMap{"aaa.x": "only-a"})
	require.Equal(t, Structured, res.Outcome)
	assert.Equal(t, "a-v1", res.Convention)

	_, ok := res.Document.Get("from_a")
	assert.True(t, ok)
	_, ok = res.Document.Get("from_b")
	assert.False(t, ok)
}

func TestDetectionIsIdempotent(t *testing.T) {
	a := Pattern{Name: "a", Version: "v1", Markers: []Marker{{Key: "aaa.", Prefix: true}},
		Fields: []Field{{Target: "x", Key: "aaa.x"}}}
	proc := NewProcessor(NewDetector(compilePatterns(t, a)...), WithCapturePolicy(CaptureAttributes))

	attrs := AttributeMap{"aaa.x": "1"}
	r1 := proc.Process(attrs)
	r2 := proc.Process(attrs)
	assert.Equal(t, r1.Outcome, r2.Outcome)
	assert.Equal(t, r1.Convention, r2.Convention)

	j1, _ := r1.Document.MarshalJSON()
	j2, _ := r2.Document.MarshalJSON()
	assert.Equal(t, string(j1), string(j2))
}
