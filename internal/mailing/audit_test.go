package mailing

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/mailblast/internal/domain"
)

func TestWriteAuditLog(t *testing.T) {
	ts := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	entries := []domain.SendLogEntry{
		{
			CampaignID:  "c1",
			Timestamp:   ts,
			RowNumber:   1,
			Recipient:   "ann@example.com",
			Subject:     "Hello Ann",
			Status:      "SUCCESS",
			SenderEmail: "from@example.com",
			SenderName:  "Ops",
		},
		{
			CampaignID: "c1",
			Timestamp:  ts,
			RowNumber:  2,
			Recipient:  "N/A",
			Subject:    "N/A",
			Status:     "FAILED",
			ErrorMsg:   "Missing email address",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAuditLog(&buf, entries))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{
		"campaign_id", "timestamp", "row_number", "recipient_email",
		"subject", "status", "error_message", "sender_email", "sender_name",
	}, records[0])
	assert.Equal(t, "ann@example.com", records[1][3])
	assert.Equal(t, "SUCCESS", records[1][5])
	assert.Equal(t, "2026-08-28T12:00:00Z", records[1][1])
	assert.Equal(t, "Missing email address", records[2][6])
}
