package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/honeyhiveai/semconv-collector/internal/config"
	"github.com/honeyhiveai/semconv-collector/internal/handler"
	appmw "github.com/honeyhiveai/semconv-collector/internal/middleware"
	"github.com/honeyhiveai/semconv-collector/internal/model"
	"github.com/honeyhiveai/semconv-collector/internal/semconv"
	"github.com/honeyhiveai/semconv-collector/internal/translator"
)

func NewRouter(cfg config.Config, proc *semconv.Processor, ch chan *model.Record) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appmw.Auth(cfg))

	tr := translator.New(proc)

	// Health probes
	r.Get("/live", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// OTLP ingest
	r.Route("/v1", func(v1 chi.Router) {
		v1.Post("/traces", handler.TracesHandler(cfg.MaxBodyBytes, tr, ch))
	})

	return r
}
