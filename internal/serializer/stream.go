package serializer

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/DataDog/zstd"
	"github.com/honeyhiveai/semconv-collector/internal/model"
)

// StreamingCompressor buffers export records as zstd-compressed NDJSON.
//
// Treat it as a long-lived object across multiple uploads: Close() returns
// the finished batch and resets the internal state for the next one.
//
// The compressor is not thread-safe; callers guard it with a mutex.
type StreamingCompressor struct {
	w   io.WriteCloser
	buf *bytes.Buffer

	uncompressed int
	count        int
}

func NewStreamingCompressor() *StreamingCompressor {
	buf := &bytes.Buffer{}
	return &StreamingCompressor{
		w:   zstd.NewWriter(buf),
		buf: buf,
	}
}

// AddRecord appends one record as a single NDJSON line.
func (sc *StreamingCompressor) AddRecord(r *model.Record) error {
	j, err := json.Marshal(r)
	if err != nil {
		return err
	}
	sc.uncompressed += len(j) + 1
	if _, err := sc.w.Write(j); err != nil {
		return err
	}
	if _, err := sc.w.Write([]byte("\n")); err != nil {
		return err
	}
	sc.count++
	return nil
}

// Close finalizes the compressed batch, returns it together with the
// uncompressed byte count, and resets for reuse.
func (sc *StreamingCompressor) Close() ([]byte, int, error) {
	var (
		out          []byte
		uncompressed int
		err          error
	)
	if sc.count > 0 {
		if err = sc.w.Close(); err == nil {
			out = sc.buf.Bytes()
			uncompressed = sc.uncompressed
		}
	}
	sc.buf = &bytes.Buffer{}
	sc.w = zstd.NewWriter(sc.buf)
	sc.uncompressed = 0
	sc.count = 0
	return out, uncompressed, err
}

func (sc *StreamingCompressor) Uncompressed() int {
	return sc.uncompressed
}

func (sc *StreamingCompressor) Count() int {
	return sc.count
}
