package api

import (
	"errors"
	"net/http"

	"github.com/ignite/mailblast/internal/ai"
	"github.com/ignite/mailblast/internal/pkg/httputil"
)

type improveRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Context string `json:"context"`
}

// handleImprove runs the email content through the AI consultant. Returns
// 503 when AI is not configured so callers can hide the feature.
func (s *Server) handleImprove(w http.ResponseWriter, r *http.Request) {
	var req improveRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Subject == "" || req.Body == "" {
		httputil.BadRequest(w, "subject and body are required")
		return
	}

	imp, err := s.improver.Improve(r.Context(), req.Subject, req.Body, req.Context)
	if err != nil {
		if errors.Is(err, ai.ErrUnavailable) {
			httputil.Error(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		httputil.Error(w, http.StatusBadGateway, "AI improvement failed: "+err.Error())
		return
	}
	httputil.OK(w, imp)
}
