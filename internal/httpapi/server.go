package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/secureentry/secureentry/internal/logging"
	"github.com/secureentry/secureentry/internal/metrics"
	"github.com/secureentry/secureentry/internal/secureentry/service"
)

type Dependencies struct {
	Logger         logging.Logger
	Metrics        *metrics.Metrics
	Addr           string
	MaxUploadBytes int64

	Directory    *service.DirectoryService
	Verification *service.VerificationService
	Reports      *service.ReportService
}

type Server struct {
	httpServer     *http.Server
	log            logging.Logger
	metrics        *metrics.Metrics
	maxUploadBytes int64

	directory    *service.DirectoryService
	verification *service.VerificationService
	reports      *service.ReportService
}

func NewServer(d Dependencies) *Server {
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 10 << 20
	}

	s := &Server{
		log:            d.Logger,
		metrics:        d.Metrics,
		maxUploadBytes: d.MaxUploadBytes,
		directory:      d.Directory,
		verification:   d.Verification,
		reports:        d.Reports,
	}

	r := chi.NewRouter()
	r.Use(s.loggingMiddleware, withCORS)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", d.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/skan", s.handleScan)
		r.Post("/scan", s.handleScan)

		r.Get("/workers", s.handleListWorkers)
		r.Post("/workers", s.handleCreateWorker)
		r.Put("/workers/{id}", s.handleUpdateWorker)
		r.Put("/workers/invalidate/{id}", s.handleRevokeWorker)

		r.Get("/report", s.handleReport)
	})

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
