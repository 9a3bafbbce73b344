package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/honeyhiveai/semconv-collector/internal/config"
	"github.com/honeyhiveai/semconv-collector/internal/contextkey"
)

func Auth(cfg config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				apiKey = cfg.DefaultAPIKey
			}
			if apiKey == "" {
				slog.Warn("missing X-API-Key", "path", r.URL.Path)
				http.Error(w, "missing X-API-Key", http.StatusUnauthorized)
				return
			}

			project := r.Header.Get("X-Project")
			if project == "" {
				project = cfg.DefaultProject
			}

			ctx := context.WithValue(r.Context(), contextkey.APIKeyKey, apiKey)
			ctx = context.WithValue(ctx, contextkey.ProjectKey, project)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
