package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/mailblast/internal/campaign"
	"github.com/ignite/mailblast/internal/domain"
	"github.com/ignite/mailblast/internal/mailing"
	"github.com/ignite/mailblast/internal/pkg/httputil"
	"github.com/ignite/mailblast/internal/pkg/logger"
)

type launchRequest struct {
	FileID      string `json:"file_id"`
	EmailColumn string `json:"email_column"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	SenderEmail string `json:"sender_email"`
	SenderName  string `json:"sender_name"`

	// Pacing overrides. Absent fields fall back to the configured defaults,
	// so an explicit zero is honored (no delay / batching disabled).
	MessageDelaySeconds *float64 `json:"message_delay_seconds"`
	BatchSize           *int     `json:"batch_size"`
	BatchDelaySeconds   *float64 `json:"batch_delay_seconds"`
}

type launchResponse struct {
	CampaignID      string `json:"campaign_id"`
	TotalRecipients int    `json:"total_recipients"`
	SkippedRows     int    `json:"skipped_rows"`
}

// handleLaunch personalizes every row of the uploaded file and schedules the
// campaign. The response returns as soon as the campaign is accepted; sending
// happens in the background and is observed via the events stream.
func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	var req launchRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	switch {
	case req.FileID == "":
		httputil.BadRequest(w, "file_id is required")
		return
	case req.Subject == "":
		httputil.BadRequest(w, "subject is required")
		return
	case req.Body == "":
		httputil.BadRequest(w, "body is required")
		return
	case req.SenderEmail == "":
		httputil.BadRequest(w, "sender_email is required")
		return
	}

	src, err := s.readUpload(req.FileID)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	emailColumn := req.EmailColumn
	if emailColumn == "" {
		emailColumn = src.EmailColumns()[0]
	}

	msgs, invalid := mailing.BuildMessages(src, emailColumn, req.Subject, req.Body, s.renderer)

	id, err := s.campaigns.Launch(campaign.LaunchInput{
		Sender:   domain.Sender{Email: req.SenderEmail, Name: req.SenderName},
		Messages: msgs,
		Invalid:  invalid,
		Pacing:   s.pacingFrom(req),
	})
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	// The upload is consumed by the launch; remove it so tokens are one-shot.
	if err := os.Remove(s.uploadPath(req.FileID)); err != nil {
		logger.Warn("removing consumed upload", "file_id", req.FileID, "error", err)
	}

	logger.Info("campaign launched", "campaign_id", id, "recipients", len(msgs), "skipped", len(invalid))
	httputil.OK(w, launchResponse{
		CampaignID:      id,
		TotalRecipients: len(msgs) + len(invalid),
		SkippedRows:     len(invalid),
	})
}

// pacingFrom merges the request's pacing overrides over the configured
// defaults.
func (s *Server) pacingFrom(req launchRequest) domain.Pacing {
	msgDelay, batchSize, batchDelay := s.cfg.DefaultPacingSeconds()
	p := domain.Pacing{
		MessageDelay: time.Duration(msgDelay) * time.Second,
		BatchSize:    batchSize,
		BatchDelay:   time.Duration(batchDelay) * time.Second,
	}
	if req.MessageDelaySeconds != nil {
		p.MessageDelay = time.Duration(*req.MessageDelaySeconds * float64(time.Second))
	}
	if req.BatchSize != nil {
		p.BatchSize = *req.BatchSize
	}
	if req.BatchDelaySeconds != nil {
		p.BatchDelay = time.Duration(*req.BatchDelaySeconds * float64(time.Second))
	}
	if p == (domain.Pacing{}) {
		// An all-zero pacing is a real request (send flat out). Mark batching
		// explicitly disabled so the service doesn't mistake it for unset and
		// substitute defaults.
		p.BatchSize = -1
	}
	return p
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	snap, err := s.campaigns.Progress(chi.URLParam(r, "id"))
	if err != nil {
		httputil.NotFound(w, "campaign not found")
		return
	}
	httputil.OK(w, snap)
}

// handleEvents streams campaign progress as server-sent events. Progress
// snapshots arrive as unnamed data events; the stream ends with exactly one
// "complete" or "error" event. Client disconnect cancels the subscription.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, err := s.campaigns.Subscribe(r.Context(), id)
	if err != nil {
		httputil.NotFound(w, "campaign not found")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		switch ev.Type {
		case campaign.EventProgress:
			data, _ := json.Marshal(ev.Snapshot)
			fmt.Fprintf(w, "data: %s\n\n", data)
		case campaign.EventComplete:
			data, _ := json.Marshal(ev.Summary)
			fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
		case campaign.EventError:
			data, _ := json.Marshal(map[string]string{"error": ev.Err})
			fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
		}
		flusher.Flush()
	}
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.control(w, chi.URLParam(r, "id"), "paused", s.campaigns.Pause)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.control(w, chi.URLParam(r, "id"), "resumed", s.campaigns.Resume)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.control(w, chi.URLParam(r, "id"), "stopping", s.campaigns.Stop)
}

func (s *Server) control(w http.ResponseWriter, id, status string, op func(string) error) {
	if err := op(id); err != nil {
		httputil.NotFound(w, "campaign not found")
		return
	}
	logger.Info("campaign control", "campaign_id", id, "action", status)
	httputil.OK(w, map[string]string{"campaign_id": id, "status": status})
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.campaigns.Result(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, campaign.ErrNoResult) {
			httputil.NotFound(w, "campaign result not available")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, result)
}

// handleLog downloads the campaign audit log as a CSV attachment.
func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entries, err := s.campaigns.Log(id)
	if err != nil {
		httputil.NotFound(w, "campaign log not available")
		return
	}

	var buf bytes.Buffer
	if err := mailing.WriteAuditLog(&buf, entries); err != nil {
		httputil.InternalError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=email_campaign_log_%s.csv", id))
	_, _ = w.Write(buf.Bytes())
}
