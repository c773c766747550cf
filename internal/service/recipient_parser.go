// internal/service/recipient_parser.go
package service

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	appErrors "github.com/unclebandit/smart-mailer/internal/errors"
	"github.com/unclebandit/smart-mailer/internal/model"
)

// ParseRecipients reads a CSV with a header row naming at least the email,
// name and department columns. Extra columns are ignored and a missing column
// yields empty values, leaving the judgement to ValidateRecipient.
func ParseRecipients(r io.Reader) ([]model.Recipient, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []model.Recipient{}, nil
	}
	if err != nil {
		return nil, &appErrors.ParseError{Err: err}
	}

	columns := map[string]int{}
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := columns[key]; !dup {
			columns[key] = i
		}
	}

	recipients := []model.Recipient{}
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &appErrors.ParseError{Err: err}
		}
		if isBlankRow(row) {
			continue
		}
		for _, field := range row {
			if !utf8.ValidString(field) {
				return nil, &appErrors.ParseError{Err: fmt.Errorf("line %d: invalid UTF-8", line)}
			}
		}
		recipients = append(recipients, model.Recipient{
			Email:      column(row, columns, "email"),
			Name:       column(row, columns, "name"),
			Department: column(row, columns, "department"),
		})
	}
	return recipients, nil
}

func column(row []string, columns map[string]int, name string) string {
	i, ok := columns[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isBlankRow(row []string) bool {
	for _, field := range row {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
