package batcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/honeyhiveai/semconv-collector/internal/model"
	"github.com/honeyhiveai/semconv-collector/internal/serializer"
	"github.com/honeyhiveai/semconv-collector/internal/uploader"
)

// RecordFilter decides whether a record is exported.
type RecordFilter func(r *model.Record) bool

type FilterConfig struct {
	// DropUnmatched discards records for which no convention was detected
	// instead of passing their flat attributes through.
	DropUnmatched bool
	// CustomFilter is an optional custom filter function.
	CustomFilter RecordFilter
}

func (fc FilterConfig) ShouldKeep(r *model.Record) bool {
	if fc.CustomFilter != nil {
		return fc.CustomFilter(r)
	}
	if fc.DropUnmatched {
		return r.Matched()
	}
	return true
}

type Config struct {
	BatchSize      int
	FlushInterval  time.Duration
	MaxBufferBytes int
	FilterConfig   FilterConfig
}

// Batcher drains the record channel into a compressed buffer and hands
// finished batches to the uploader. A batch is flushed when it reaches
// BatchSize records, MaxBufferBytes of uncompressed data, the flush
// interval elapses, or a flush is forced during shutdown.
type Batcher struct {
	ch      chan *model.Record
	cfg     Config
	up      uploader.Sender
	cancel  context.CancelFunc
	flushCh chan struct{}
}

func New(up uploader.Sender, cfg Config, ch chan *model.Record) *Batcher {
	if cfg.MaxBufferBytes == 0 {
		cfg.MaxBufferBytes = 10 * 1024 * 1024 // 10MB
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 1 * time.Second
	}
	return &Batcher{up: up, cfg: cfg, ch: ch, flushCh: make(chan struct{}, 1)}
}

func (b *Batcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	go b.worker(ctx, b.ch)
}

func (b *Batcher) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
}

// Flush forces a flush of all pending records and waits for in-flight
// uploads to finish.
func (b *Batcher) Flush(ctx context.Context) error {
	select {
	case b.flushCh <- struct{}{}:
	default:
		// Channel is full, flush already pending
	}
	return b.up.WaitForCompletion(ctx)
}

func (b *Batcher) worker(ctx context.Context, ch <-chan *model.Record) {
	sc := serializer.NewStreamingCompressor()
	var scMu sync.Mutex

	flush := func() {
		scMu.Lock()
		defer scMu.Unlock()
		if sc.Count() == 0 {
			return
		}
		count := sc.Count()
		comp, _, err := sc.Close()
		if err != nil {
			slog.Error("failed to flush records", "err", err)
			return
		}
		if len(comp) > 0 {
			go b.up.Send(context.Background(), uploader.Batch{
				ID:    uuid.New(),
				Data:  comp,
				Count: count,
			})
		}
	}

	add := func(r *model.Record) {
		scMu.Lock()
		if err := sc.AddRecord(r); err != nil {
			slog.Error("failed to queue record", "err", err)
			scMu.Unlock()
			return
		}
		needFlush := sc.Count() >= b.cfg.BatchSize ||
			sc.Uncompressed() >= b.cfg.MaxBufferBytes
		scMu.Unlock()

		if needFlush {
			flush()
		}
	}

	flushTicker := time.NewTicker(b.cfg.FlushInterval)
	defer flushTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case r := <-ch:
			if r == nil {
				continue
			}
			if !b.cfg.FilterConfig.ShouldKeep(r) {
				continue
			}
			add(r)

		case <-flushTicker.C:
			flush()

		case <-b.flushCh:
			flush()
		}
	}
}
