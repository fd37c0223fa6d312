package usage

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jgoulah/waterdelta/internal/apperr"
	"github.com/jgoulah/waterdelta/pkg/models"
)

// BillDateLayout is the portal's MM-DD-YYYY date format
const BillDateLayout = "01-02-2006"

// ParseCSV reads the portal's billing export. Column positions are discovered
// from the header; rows that cannot be parsed are skipped. Row order is kept.
func ParseCSV(r io.Reader, log zerolog.Logger) ([]models.UsageRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &apperr.DataError{Message: "CSV is empty"}
	}
	if err != nil {
		return nil, &apperr.DataError{Message: "reading CSV header", Err: err}
	}

	dateCol, usageCol, amountCol := -1, -1, -1
	for i, col := range header {
		colLower := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		switch {
		case strings.Contains(colLower, "bill date"):
			dateCol = i
		case strings.Contains(colLower, "total usage"):
			usageCol = i
		case strings.Contains(colLower, "bill amount"):
			amountCol = i
		}
	}

	if dateCol == -1 || usageCol == -1 {
		return nil, &apperr.DataError{Message: fmt.Sprintf("could not find required columns (Bill Date and Total Usage) in CSV. Header: %v", header)}
	}

	var results []models.UsageRecord
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &apperr.DataError{Message: fmt.Sprintf("reading CSV row %d", line), Err: err}
		}

		if len(record) <= dateCol || len(record) <= usageCol {
			continue
		}

		dateStr := strings.TrimSpace(record[dateCol])
		if dateStr == "" {
			continue
		}
		date, err := time.Parse(BillDateLayout, dateStr)
		if err != nil {
			log.Debug().Int("line", line).Str("value", dateStr).Msg("Skipping row with unparseable bill date")
			continue
		}

		usage, err := ParseQuantity(record[usageCol])
		if err != nil {
			log.Debug().Int("line", line).Str("value", record[usageCol]).Msg("Skipping row with unparseable usage")
			continue
		}

		rec := models.UsageRecord{BillDate: date, TotalUsage: usage}
		if amountCol != -1 && len(record) > amountCol {
			if amount, ok := ParseAmount(record[amountCol]); ok {
				rec.BillAmount = &amount
			}
		}

		results = append(results, rec)
	}

	return results, nil
}

// ParseQuantity parses a numeric usage value such as "1,234.5"
func ParseQuantity(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	return strconv.ParseFloat(s, 64)
}

// ParseAmount parses a currency value such as "$1,234.56". Empty or
// malformed values report false.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
