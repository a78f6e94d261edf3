package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/ignite/mailblast/internal/mailing"
	"github.com/ignite/mailblast/internal/pkg/httputil"
	"github.com/ignite/mailblast/internal/pkg/logger"
)

// errUploadNotFound covers expired or mistyped upload tokens.
var errUploadNotFound = errors.New("uploaded file not found, upload it again")

type uploadResponse struct {
	FileID       string              `json:"file_id"`
	Filename     string              `json:"filename"`
	Columns      []string            `json:"columns"`
	EmailColumns []string            `json:"email_columns"`
	RowCount     int                 `json:"row_count"`
	PreviewRows  []map[string]string `json:"preview_rows"`
}

// handleUpload accepts a multipart CSV, validates it has an email column,
// and stashes it under a one-time token for a later launch or preview call.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.cfg.Storage.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		httputil.BadRequest(w, "invalid multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, "no file provided")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		httputil.BadRequest(w, "only CSV files are supported")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	src, err := mailing.ReadSource(bytes.NewReader(data))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	fileID := newFileID()
	if err := os.WriteFile(s.uploadPath(fileID), data, 0o644); err != nil {
		httputil.InternalError(w, err)
		return
	}

	preview := src.Rows
	if len(preview) > 5 {
		preview = preview[:5]
	}
	logger.Info("CSV uploaded", "file_id", fileID, "rows", len(src.Rows), "columns", len(src.Headers))

	httputil.OK(w, uploadResponse{
		FileID:       fileID,
		Filename:     header.Filename,
		Columns:      src.Headers,
		EmailColumns: src.EmailColumns(),
		RowCount:     len(src.Rows),
		PreviewRows:  preview,
	})
}

type previewRequest struct {
	FileID      string `json:"file_id"`
	EmailColumn string `json:"email_column"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
}

type previewResponse struct {
	Subject    string            `json:"subject"`
	Body       string            `json:"body"`
	Recipient  string            `json:"recipient"`
	SampleData map[string]string `json:"sample_data"`
}

// handlePreview renders the templates against the first data row of an
// uploaded file so the caller can see a personalized example before sending.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.FileID == "" {
		httputil.BadRequest(w, "file_id is required")
		return
	}

	src, err := s.readUpload(req.FileID)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if len(src.Rows) == 0 {
		httputil.BadRequest(w, "CSV has no data rows")
		return
	}

	emailColumn := req.EmailColumn
	if emailColumn == "" {
		emailColumn = src.EmailColumns()[0]
	}

	row := src.Rows[0]
	httputil.OK(w, previewResponse{
		Subject:    s.renderer.Render(req.Subject, row),
		Body:       s.renderer.Render(req.Body, row),
		Recipient:  row[emailColumn],
		SampleData: row,
	})
}

// readUpload loads a previously uploaded CSV by its token.
func (s *Server) readUpload(fileID string) (*mailing.Source, error) {
	f, err := os.Open(s.uploadPath(fileID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errUploadNotFound
		}
		return nil, err
	}
	defer f.Close()
	return mailing.ReadSource(f)
}
