// Package api exposes the campaign service over HTTP: CSV upload and
// preview, campaign launch/control, the SSE progress stream, result and
// audit-log retrieval, template management, and AI content improvement.
package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/ignite/mailblast/internal/ai"
	"github.com/ignite/mailblast/internal/campaign"
	"github.com/ignite/mailblast/internal/config"
	"github.com/ignite/mailblast/internal/mailing"
)

// Server holds the handler dependencies.
type Server struct {
	cfg       *config.Config
	campaigns *campaign.Service
	templates *mailing.TemplateStore
	renderer  *mailing.Renderer
	improver  *ai.Client
}

// NewServer wires the HTTP layer.
func NewServer(cfg *config.Config, campaigns *campaign.Service, templates *mailing.TemplateStore, improver *ai.Client) (*Server, error) {
	if err := os.MkdirAll(cfg.Storage.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &Server{
		cfg:       cfg,
		campaigns: campaigns,
		templates: templates,
		renderer:  mailing.NewRenderer(),
		improver:  improver,
	}, nil
}

// Router builds the chi router with all routes registered.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Post("/preview", s.handlePreview)

		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", s.handleLaunch)
			r.Get("/{id}/progress", s.handleProgress)
			r.Get("/{id}/events", s.handleEvents)
			r.Post("/{id}/pause", s.handlePause)
			r.Post("/{id}/resume", s.handleResume)
			r.Post("/{id}/stop", s.handleStop)
			r.Get("/{id}/result", s.handleResult)
			r.Get("/{id}/log", s.handleLog)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.handleListTemplates)
			r.Post("/", s.handleSaveTemplate)
			r.Get("/{filename}", s.handleLoadTemplate)
			r.Delete("/{filename}", s.handleDeleteTemplate)
		})

		r.Post("/improve", s.handleImprove)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}

// uploadPath maps a file token back to its on-disk location. Tokens are
// uuid-derived; the Base call keeps crafted ids inside the upload dir.
func (s *Server) uploadPath(fileID string) string {
	return filepath.Join(s.cfg.Storage.UploadDir, filepath.Base(fileID))
}

func newFileID() string {
	return uuid.New().String() + ".csv"
}
