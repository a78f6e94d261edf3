package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/mailblast/internal/mailing"
	"github.com/ignite/mailblast/internal/pkg/httputil"
)

func (s *Server) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	templates, err := s.templates.List()
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"templates": templates})
}

type saveTemplateRequest struct {
	Name       string `json:"name"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	SenderName string `json:"sender_name"`
}

func (s *Server) handleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	var req saveTemplateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.BadRequest(w, "name is required")
		return
	}

	tpl, err := s.templates.Save(req.Name, req.Subject, req.Body, req.SenderName)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, tpl)
}

func (s *Server) handleLoadTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.templates.Load(chi.URLParam(r, "filename"))
	if err != nil {
		if errors.Is(err, mailing.ErrTemplateNotFound) {
			httputil.NotFound(w, "template not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, tpl)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.templates.Delete(chi.URLParam(r, "filename")); err != nil {
		if errors.Is(err, mailing.ErrTemplateNotFound) {
			httputil.NotFound(w, "template not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "deleted"})
}
