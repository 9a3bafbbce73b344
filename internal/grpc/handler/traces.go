package handler

import (
	"context"
	"log/slog"

	"github.com/honeyhiveai/semconv-collector/internal/contextkey"
	"github.com/honeyhiveai/semconv-collector/internal/model"
	"github.com/honeyhiveai/semconv-collector/internal/translator"
	collectortracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// TraceServiceHandler implements the OTLP TraceService gRPC interface
type TraceServiceHandler struct {
	collectortracepb.UnimplementedTraceServiceServer
	translator *translator.Translator
	channel    chan *model.Record
}

// NewTraceServiceHandler creates a new trace service handler
func NewTraceServiceHandler(tr *translator.Translator, ch chan *model.Record) *TraceServiceHandler {
	return &TraceServiceHandler{
		translator: tr,
		channel:    ch,
	}
}

// Export handles the ExportTrace gRPC call
func (h *TraceServiceHandler) Export(ctx context.Context, req *collectortracepb.ExportTraceServiceRequest) (*collectortracepb.ExportTraceServiceResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}

	slog.Debug("Received gRPC trace export request",
		"resource_spans_count", len(req.ResourceSpans),
	)

	records := h.translator.Translate(req)

	project := ""
	if projectValue := ctx.Value(contextkey.ProjectKey); projectValue != nil {
		if projectStr, ok := projectValue.(string); ok {
			project = projectStr
		}
	}

	for _, rec := range records {
		if project != "" {
			rec.Project = &project
		}

		// Non-blocking send to avoid hanging the gRPC call
		select {
		case h.channel <- rec:
		default:
			slog.Warn("Channel full, dropping record", "record_id", rec.ID)
		}
	}

	slog.Debug("Successfully processed gRPC trace export",
		"records_count", len(records),
		"project", project,
	)

	return &collectortracepb.ExportTraceServiceResponse{
		PartialSuccess: &collectortracepb.ExportTracePartialSuccess{
			RejectedSpans: 0,
			ErrorMessage:  "",
		},
	}, nil
}
