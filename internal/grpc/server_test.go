package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/honeyhiveai/semconv-collector/internal/config"
	"github.com/honeyhiveai/semconv-collector/internal/model"
	"github.com/honeyhiveai/semconv-collector/internal/semconv"
	collectortracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

func newTestProcessor(t *testing.T) *semconv.Processor {
	t.Helper()
	store, err := semconv.NewStore()
	if err != nil {
		t.Fatalf("Failed to load builtin patterns: %v", err)
	}
	proc, errs := semconv.New(store, semconv.NewRegistry(),
		[]string{"openinference-v1", "genai-v1", "honeyhive-v1"})
	if len(errs) > 0 {
		t.Fatalf("Failed to compile conventions: %v", errs)
	}
	return proc
}

func TestGRPCServer(t *testing.T) {
	// Create test configuration
	cfg := config.Config{
		GRPCPort:           "0", // Use any available port
		GRPCMaxRecvMsgSize: 4 * 1024 * 1024,
		GRPCMaxSendMsgSize: 4 * 1024 * 1024,
		GRPCEnabled:        true,
		DefaultAPIKey:      "test-api-key",
		DefaultProject:     "test-project",
	}

	// Create channel for records
	ch := make(chan *model.Record, 10)

	// Create gRPC server
	server, err := NewServer(cfg, newTestProcessor(t), ch)
	if err != nil {
		t.Fatalf("Failed to create gRPC server: %v", err)
	}

	// Start server in background
	go func() {
		if err := server.Start(); err != nil {
			t.Logf("Server error: %v", err)
		}
	}()

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	// Create client connection
	conn, err := grpc.Dial(server.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("Failed to connect to gRPC server: %v", err)
	}
	defer conn.Close()

	// Create trace service client
	client := collectortracepb.NewTraceServiceClient(conn)

	// Create test request
	req := &collectortracepb.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{
			{
				Resource: &resourcepb.Resource{
					Attributes: []*commonpb.KeyValue{
						{
							Key: "service.name",
							Value: &commonpb.AnyValue{
								Value: &commonpb.AnyValue_StringValue{
									StringValue: "test-service",
								},
							},
						},
					},
				},
				ScopeSpans: []*tracepb.ScopeSpans{
					{
						Spans: []*tracepb.Span{
							{
								TraceId: []byte("test-trace-id-123"),
								SpanId:  []byte("test-span"),
								Name:    "test-span",
								Attributes: []*commonpb.KeyValue{
									{
										Key: "gen_ai.request.model",
										Value: &commonpb.AnyValue{
											Value: &commonpb.AnyValue_StringValue{
												StringValue: "gpt-4o",
											},
										},
									},
								},
							},
						},
					},
				},
			},
		},
	}

	// Create context with metadata (for auth)
	ctx := metadata.NewOutgoingContext(context.Background(), metadata.Pairs(
		"x-api-key", "test-api-key",
		"x-project", "test-project",
	))

	// Send request
	resp, err := client.Export(ctx, req)
	if err != nil {
		t.Fatalf("Failed to export traces: %v", err)
	}

	// Verify response
	if resp == nil {
		t.Fatal("Response is nil")
	}

	if resp.PartialSuccess == nil {
		t.Fatal("PartialSuccess is nil")
	}

	if resp.PartialSuccess.RejectedSpans != 0 {
		t.Errorf("Expected 0 rejected spans, got %d", resp.PartialSuccess.RejectedSpans)
	}

	// Verify record was sent to channel
	select {
	case rec := <-ch:
		if rec == nil {
			t.Fatal("Received nil record")
		}
		if rec.Project == nil || *rec.Project != "test-project" {
			t.Errorf("Expected project 'test-project', got %v", rec.Project)
		}
		if rec.Convention == nil || *rec.Convention != "genai-v1" {
			t.Errorf("Expected convention 'genai-v1', got %v", rec.Convention)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Timeout waiting for record in channel")
	}

	// Stop server
	server.Stop()
}
