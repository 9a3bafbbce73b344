package uploader

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Batch is one compressed NDJSON payload ready for export.
type Batch struct {
	ID    uuid.UUID
	Data  []byte
	Count int
}

type Config struct {
	BaseURL        string
	APIKey         string
	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	InFlight       int
}

// Sender is the export boundary consumed by the batcher.
type Sender interface {
	Send(ctx context.Context, b Batch)
	WaitForCompletion(ctx context.Context) error
}

// Uploader is a thread-safe wrapper around a semaphore and HTTP client.
// It ships compressed document batches to the export endpoint, retrying
// retryable errors with exponential backoff + jitter up to MaxAttempts.
type Uploader struct {
	cfg      Config
	sem      *semaphore.Weighted
	inFlight int64
	client   *http.Client
}

func New(cfg Config) *Uploader {
	inFlight := int64(max(1, cfg.InFlight))
	return &Uploader{
		cfg:      cfg,
		sem:      semaphore.NewWeighted(inFlight),
		inFlight: inFlight,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (u *Uploader) Send(ctx context.Context, b Batch) {
	if err := u.sem.Acquire(ctx, 1); err != nil {
		slog.Warn("uploader ctx cancelled before send")
		return
	}
	go func() {
		defer u.sem.Release(1)
		u.send(ctx, b)
	}()
}

// WaitForCompletion blocks until every in-flight upload has finished or
// the context expires.
func (u *Uploader) WaitForCompletion(ctx context.Context) error {
	if err := u.sem.Acquire(ctx, u.inFlight); err != nil {
		return err
	}
	u.sem.Release(u.inFlight)
	return nil
}

func (u *Uploader) send(ctx context.Context, b Batch) {
	url := u.cfg.BaseURL + "/v1/documents"
	var attempt int
	for {
		req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b.Data))
		req.Header.Set("Content-Type", "application/x-ndjson")
		req.Header.Set("Content-Encoding", "zstd")
		req.Header.Set("X-API-Key", u.cfg.APIKey)
		req.Header.Set("X-Batch-Id", b.ID.String())

		resp, err := u.client.Do(req)
		if err == nil && (resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusAccepted) {
			resp.Body.Close()
			slog.Info("batch uploaded", "batch_id", b.ID, "records", b.Count)
			return
		}

		shouldRetry := false
		if err != nil {
			shouldRetry = true
		} else if resp != nil {
			switch resp.StatusCode {
			case http.StatusBadGateway, // 502
				http.StatusServiceUnavailable,  // 503
				http.StatusGatewayTimeout,      // 504
				http.StatusRequestTimeout,      // 408
				http.StatusTooEarly,            // 425
				http.StatusTooManyRequests,     // 429
				http.StatusInternalServerError, // 500
				499:                            // 499 (client closed request)
				shouldRetry = true
			}
		}

		if resp != nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			slog.Error("upload failed",
				"batch_id", b.ID, "attempts", attempt, "err", err,
				"status", resp.StatusCode, "response", string(body),
				"will_retry", shouldRetry)
		}

		if !shouldRetry {
			slog.Error("upload failed; dropping batch (non-retryable error)",
				"batch_id", b.ID, "attempts", attempt, "err", err)
			return
		}

		attempt++
		if attempt >= u.cfg.MaxAttempts {
			slog.Error("upload failed; dropping batch (max attempts reached)",
				"batch_id", b.ID, "attempts", attempt, "err", err)
			return
		}
		delay := backoff(u.cfg.BackoffInitial, u.cfg.BackoffMax, attempt)
		slog.Warn("upload retry", "batch_id", b.ID, "attempt", attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

func backoff(base, max time.Duration, attempt int) time.Duration {
	exp := float64(base) * math.Pow(2, float64(attempt-1))
	d := time.Duration(exp)
	if d > max {
		d = max
	}
	var b [8]byte
	_, _ = rand.Read(b[:])
	r := binary.BigEndian.Uint64(b[:])
	jitter := time.Duration(r % uint64(d/2))
	return d/2 + jitter
}
