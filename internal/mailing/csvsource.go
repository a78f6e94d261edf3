package mailing

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ignite/mailblast/internal/domain"
)

// ErrNoEmailColumn is returned when a CSV has no column usable as the
// recipient address.
var ErrNoEmailColumn = errors.New("CSV must contain an 'email' column")

// Source is a parsed tabular recipient file.
type Source struct {
	Headers []string
	Rows    []map[string]string
}

// EmailColumns returns the headers that look like email address columns.
func (s *Source) EmailColumns() []string {
	var cols []string
	for _, h := range s.Headers {
		if strings.Contains(strings.ToLower(h), "email") {
			cols = append(cols, h)
		}
	}
	return cols
}

// ReadSource parses CSV data into headers and row maps. It fails when the
// file is empty or has no email-like column.
func ReadSource(r io.Reader) (*Source, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("CSV file is empty")
	}

	src := &Source{Headers: records[0]}
	if len(src.EmailColumns()) == 0 {
		return nil, ErrNoEmailColumn
	}

	for _, record := range records[1:] {
		row := make(map[string]string, len(src.Headers))
		for i, h := range src.Headers {
			if i < len(record) {
				row[h] = record[i]
			} else {
				row[h] = ""
			}
		}
		src.Rows = append(src.Rows, row)
	}
	return src, nil
}

// BuildMessages personalizes the subject and body templates against every
// row and splits the result into sendable messages and pre-failed rows
// (missing email address). Row numbers are 1-based data rows.
func BuildMessages(src *Source, emailColumn, subjectTpl, bodyTpl string, renderer *Renderer) (msgs []domain.RecipientMessage, invalid []domain.SendOutcome) {
	for i, row := range src.Rows {
		rowNum := i + 1
		email := strings.TrimSpace(row[emailColumn])
		if email == "" {
			invalid = append(invalid, domain.SendOutcome{
				Success:   false,
				Message:   "Missing email address",
				RowNumber: rowNum,
			})
			continue
		}
		msgs = append(msgs, domain.RecipientMessage{
			Email:     email,
			Subject:   renderer.Render(subjectTpl, row),
			Body:      renderer.Render(bodyTpl, row),
			RowNumber: rowNum,
		})
	}
	return msgs, invalid
}
