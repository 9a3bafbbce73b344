package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server Config
	Port         string
	MaxBodyBytes int64
	// gRPC Server Config
	GRPCPort           string
	GRPCMaxRecvMsgSize int
	GRPCMaxSendMsgSize int
	GRPCEnabled        bool
	// Export Config
	Endpoint       string
	DefaultAPIKey  string
	DefaultProject string
	BatchSize      int
	FlushInterval  time.Duration
	MaxBufferBytes int
	MaxRetries     int
	BackoffInitial time.Duration
	DropUnmatched  bool
	// Semantic Convention Config
	Conventions    []string
	ContentCapture string
	StrictArrays   bool
	PatternDir     string
	MaxFieldChars  int
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.ToLower(v) == "true"
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func Load() Config {
	return Config{
		// HTTP Server Config
		Port:         env("HTTP_PORT", "4318"),
		MaxBodyBytes: envInt64("MAX_BODY_BYTES", 209715200), // 200 MB
		// gRPC Server Config
		GRPCPort:           env("GRPC_PORT", "4317"),                      // Standard OTLP gRPC port
		GRPCMaxRecvMsgSize: envInt("GRPC_MAX_RECV_MSG_SIZE", 4*1024*1024), // 4MB
		GRPCMaxSendMsgSize: envInt("GRPC_MAX_SEND_MSG_SIZE", 4*1024*1024), // 4MB
		GRPCEnabled:        envBool("GRPC_ENABLED", true),
		// Export Config. Compressed NDJSON batches are buffered in memory and
		// flushed when the batch size, the uncompressed byte budget, or the
		// flush interval is reached.
		Endpoint:       env("EXPORT_ENDPOINT", "https://api.honeyhive.ai"),
		DefaultAPIKey:  env("EXPORT_API_KEY", ""),
		DefaultProject: env("EXPORT_PROJECT", ""),
		BatchSize:      envInt("BATCH_SIZE", 100),
		FlushInterval:  time.Duration(envInt64("FLUSH_INTERVAL_MS", 1000)) * time.Millisecond,
		MaxBufferBytes: envInt("MAX_BUFFER_BYTES", 10*1024*1024),
		MaxRetries:     envInt("MAX_RETRIES", 3),
		BackoffInitial: time.Duration(envInt64("RETRY_BACKOFF_MS", 100)) * time.Millisecond,
		DropUnmatched:  envBool("DROP_UNMATCHED", false),
		// Semantic Convention Config. The CONVENTIONS order doubles as
		// detection priority when a span carries markers of several conventions.
		Conventions:    envList("CONVENTIONS", []string{"openinference-v1", "genai-v1", "honeyhive-v1"}),
		ContentCapture: env("CONTENT_CAPTURE", "none"),
		StrictArrays:   envBool("STRICT_ARRAYS", false),
		PatternDir:     env("PATTERN_DIR", ""),
		MaxFieldChars:  envInt("MAX_FIELD_CHARS", 4096),
	}
}
