package uploader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestWaitForCompletion(t *testing.T) {
	// Create a test server that responds slowly
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	uploader := New(Config{
		BaseURL:        server.URL,
		APIKey:         "test-key",
		MaxAttempts:    1,
		BackoffInitial: 100 * time.Millisecond,
		BackoffMax:     1 * time.Second,
		InFlight:       2,
	})

	batch1 := Batch{ID: uuid.New(), Data: []byte("test1"), Count: 1}
	batch2 := Batch{ID: uuid.New(), Data: []byte("test2"), Count: 1}

	ctx := context.Background()
	uploader.Send(ctx, batch1)
	uploader.Send(ctx, batch2)

	start := time.Now()
	if err := uploader.WaitForCompletion(ctx); err != nil {
		t.Fatalf("WaitForCompletion failed: %v", err)
	}
	elapsed := time.Since(start)

	// Should have waited for both uploads to complete
	if elapsed < 150*time.Millisecond {
		t.Errorf("WaitForCompletion completed too quickly (%v), expected to wait for uploads", elapsed)
	}
}

func TestWaitForCompletionWithTimeout(t *testing.T) {
	// Create a test server that responds very slowly
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(1 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	uploader := New(Config{
		BaseURL:        server.URL,
		APIKey:         "test-key",
		MaxAttempts:    1,
		BackoffInitial: 100 * time.Millisecond,
		BackoffMax:     1 * time.Second,
		InFlight:       1,
	})

	// Send a batch
	batch := Batch{ID: uuid.New(), Data: []byte("test"), Count: 1}
	uploader.Send(context.Background(), batch)

	// Wait for completion with a short timeout
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := uploader.WaitForCompletion(ctx)
	if err == nil {
		t.Error("Expected WaitForCompletion to timeout, but it succeeded")
	}
	if err != context.DeadlineExceeded {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
}

func TestSendHeaders(t *testing.T) {
	var gotAPIKey, gotEncoding, gotBatchID atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey.Store(r.Header.Get("X-API-Key"))
		gotEncoding.Store(r.Header.Get("Content-Encoding"))
		gotBatchID.Store(r.Header.Get("X-Batch-Id"))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	uploader := New(Config{
		BaseURL:        server.URL,
		APIKey:         "test-key",
		MaxAttempts:    1,
		BackoffInitial: 100 * time.Millisecond,
		BackoffMax:     1 * time.Second,
		InFlight:       1,
	})

	batch := Batch{ID: uuid.New(), Data: []byte("test"), Count: 1}
	ctx := context.Background()
	uploader.Send(ctx, batch)
	if err := uploader.WaitForCompletion(ctx); err != nil {
		t.Fatalf("WaitForCompletion failed: %v", err)
	}

	if gotAPIKey.Load() != "test-key" {
		t.Errorf("Expected X-API-Key test-key, got %v", gotAPIKey.Load())
	}
	if gotEncoding.Load() != "zstd" {
		t.Errorf("Expected Content-Encoding zstd, got %v", gotEncoding.Load())
	}
	if gotBatchID.Load() != batch.ID.String() {
		t.Errorf("Expected X-Batch-Id %s, got %v", batch.ID, gotBatchID.Load())
	}
}

func TestRetryOnRetryableStatus(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	uploader := New(Config{
		BaseURL:        server.URL,
		APIKey:         "test-key",
		MaxAttempts:    3,
		BackoffInitial: 10 * time.Millisecond,
		BackoffMax:     50 * time.Millisecond,
		InFlight:       1,
	})

	ctx := context.Background()
	uploader.Send(ctx, Batch{ID: uuid.New(), Data: []byte("test"), Count: 1})
	if err := uploader.WaitForCompletion(ctx); err != nil {
		t.Fatalf("WaitForCompletion failed: %v", err)
	}

	if hits.Load() != 2 {
		t.Errorf("Expected 2 attempts (one retry), got %d", hits.Load())
	}
}

func TestNoRetryOnNonRetryableStatus(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	uploader := New(Config{
		BaseURL:        server.URL,
		APIKey:         "test-key",
		MaxAttempts:    3,
		BackoffInitial: 10 * time.Millisecond,
		BackoffMax:     50 * time.Millisecond,
		InFlight:       1,
	})

	ctx := context.Background()
	uploader.Send(ctx, Batch{ID: uuid.New(), Data: []byte("test"), Count: 1})
	if err := uploader.WaitForCompletion(ctx); err != nil {
		t.Fatalf("WaitForCompletion failed: %v", err)
	}

	if hits.Load() != 1 {
		t.Errorf("Expected a single attempt for 400, got %d", hits.Load())
	}
}
