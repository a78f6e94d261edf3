package mailing

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/ignite/mailblast/internal/domain"
)

// auditHeader matches the historical export format; downstream tooling
// depends on this column order.
var auditHeader = []string{
	"campaign_id", "timestamp", "row_number", "recipient_email",
	"subject", "status", "error_message", "sender_email", "sender_name",
}

// WriteAuditLog renders send log entries as CSV for download.
func WriteAuditLog(w io.Writer, entries []domain.SendLogEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(auditHeader); err != nil {
		return err
	}
	for _, e := range entries {
		record := []string{
			e.CampaignID,
			e.Timestamp.Format(time.RFC3339),
			strconv.Itoa(e.RowNumber),
			e.Recipient,
			e.Subject,
			e.Status,
			e.ErrorMsg,
			e.SenderEmail,
			e.SenderName,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
