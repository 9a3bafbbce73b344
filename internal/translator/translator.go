// Package translator converts OTLP spans into export records. Span
// attributes are flattened into the processor's AttributeMap, run through
// convention detection and reconstruction, and the result is attached to a
// model.Record alongside identity and timing data.
package translator

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	collectortracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	tracesdkpb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/honeyhiveai/semconv-collector/internal/model"
	"github.com/honeyhiveai/semconv-collector/internal/semconv"
	"github.com/honeyhiveai/semconv-collector/internal/util"
)

type Translator struct {
	proc *semconv.Processor
}

func New(proc *semconv.Processor) *Translator {
	return &Translator{proc: proc}
}

// Translate converts every OTLP span in the request to a Record slice.
func (t *Translator) Translate(req *collectortracepb.ExportTraceServiceRequest) []*model.Record {
	total := 0
	for _, rs := range req.ResourceSpans {
		for _, ss := range rs.ScopeSpans {
			total += len(ss.Spans)
		}
	}

	records := make([]*model.Record, 0, total)
	for _, rs := range req.ResourceSpans {
		for _, ss := range rs.ScopeSpans {
			for _, span := range ss.Spans {
				rec, err := t.convertSpan(span)
				if err != nil || rec == nil {
					continue
				}
				records = append(records, rec)
			}
		}
	}
	return records
}

func (t *Translator) convertSpan(span *tracesdkpb.Span) (*model.Record, error) {
	spanID, err := idToUUID(span.GetSpanId())
	if err != nil {
		return nil, err
	}
	traceID, err := idToUUID(span.GetTraceId())
	if err != nil {
		return nil, err
	}

	startTime := time.Unix(0, int64(span.GetStartTimeUnixNano()))
	endTime := time.Unix(0, int64(span.GetEndTimeUnixNano()))

	rec := &model.Record{
		ID:        spanID.String(),
		TraceID:   traceID.String(),
		Name:      &span.Name,
		StartTime: util.StringPtr(startTime.UTC().Format(time.RFC3339Nano)),
		EndTime:   util.StringPtr(endTime.UTC().Format(time.RFC3339Nano)),
	}
	if len(span.ParentSpanId) > 0 {
		parent, err := idToUUID(span.ParentSpanId)
		if err != nil {
			return nil, err
		}
		rec.ParentID = util.StringPtr(parent.String())
	}

	attrs := attributeMap(span.Attributes)
	res := t.proc.Process(attrs)
	switch res.Outcome {
	case semconv.Unmatched:
		// Leave the flat attributes untouched so downstream consumers see
		// exactly what the span carried.
		rec.Attributes = attrs
	default:
		rec.Convention = util.StringPtr(res.Convention)
		rec.Document = res.Document
		for _, fe := range res.Errors {
			rec.FieldErrors = append(rec.FieldErrors, fe.Error())
		}
	}

	applyEvents(span.Events, rec)
	if rec.Status == nil {
		rec.Status = util.StringPtr(model.StatusSuccess)
	}
	return rec, nil
}

// applyEvents folds exception events into the record status.
func applyEvents(events []*tracesdkpb.Span_Event, rec *model.Record) {
	for _, event := range events {
		if event.Name != "exception" {
			continue
		}
		rec.Status = util.StringPtr(model.StatusError)
		for _, attr := range event.Attributes {
			s, ok := stringValue(attr.Value)
			if !ok {
				continue
			}
			switch attr.Key {
			case "exception.message":
				if rec.Error != nil {
					s = s + "\n\n" + *rec.Error
				}
				rec.Error = &s
			case "exception.stacktrace":
				trace := "Stacktrace:\n" + s
				if rec.Error != nil {
					trace = *rec.Error + "\n\n" + trace
				}
				rec.Error = &trace
			}
		}
		return
	}
}

// attributeMap flattens OTLP key/values into the processor's input form.
// The AnyValue wrappers are unwrapped to plain scalars; array and kvlist
// values decode to []any and map[string]any.
func attributeMap(attrs []*commonpb.KeyValue) semconv.AttributeMap {
	out := make(semconv.AttributeMap, len(attrs))
	for _, attr := range attrs {
		if attr.Value == nil {
			continue
		}
		if v := scalarValue(attr.Value); v != nil {
			out[attr.Key] = v
		}
	}
	return out
}

func scalarValue(v *commonpb.AnyValue) any {
	switch x := v.Value.(type) {
	case *commonpb.AnyValue_StringValue:
		return x.StringValue
	case *commonpb.AnyValue_IntValue:
		return x.IntValue
	case *commonpb.AnyValue_DoubleValue:
		return x.DoubleValue
	case *commonpb.AnyValue_BoolValue:
		return x.BoolValue
	case *commonpb.AnyValue_BytesValue:
		return x.BytesValue
	case *commonpb.AnyValue_ArrayValue:
		arr := make([]any, 0, len(x.ArrayValue.Values))
		for _, av := range x.ArrayValue.Values {
			arr = append(arr, scalarValue(av))
		}
		return arr
	case *commonpb.AnyValue_KvlistValue:
		kv := make(map[string]any, len(x.KvlistValue.Values))
		for _, kvp := range x.KvlistValue.Values {
			if kvp.Value != nil {
				kv[kvp.Key] = scalarValue(kvp.Value)
			}
		}
		return kv
	default:
		return nil
	}
}

func stringValue(v *commonpb.AnyValue) (string, bool) {
	if v == nil {
		return "", false
	}
	s, ok := v.Value.(*commonpb.AnyValue_StringValue)
	if !ok {
		return "", false
	}
	return s.StringValue, true
}

func idToUUID(id []byte) (uuid.UUID, error) {
	if len(id) < 8 {
		return uuid.Nil, fmt.Errorf("invalid id length: expected >= 8 bytes, got %d", len(id))
	}
	var buf [16]byte
	if len(id) > 16 {
		id = id[len(id)-16:]
	}
	copy(buf[16-len(id):], id)
	return uuid.FromBytes(buf[:])
}
