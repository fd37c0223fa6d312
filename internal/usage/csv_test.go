package usage

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jgoulah/waterdelta/internal/apperr"
)

func TestParseCSV(t *testing.T) {
	input := "\ufeffBill Date,Total Usage (CCF),Bill Amount\n" +
		"01-16-2024,15,$30.00\n" +
		"01-16-2023,11,\n" +
		"not-a-date,12,$1.00\n" +
		"01-17-2022,abc,$5.00\n" +
		",,\n" +
		"01-15-2021,\"1,010\",\"$1,234.56\"\n"

	records, err := ParseCSV(strings.NewReader(input), zerolog.Nop())
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d: %+v", len(records), records)
	}

	first := records[0]
	if !first.BillDate.Equal(time.Date(2024, time.January, 16, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first bill date = %v", first.BillDate)
	}
	if first.TotalUsage != 15 {
		t.Errorf("first usage = %v", first.TotalUsage)
	}
	if first.BillAmount == nil || *first.BillAmount != 30 {
		t.Errorf("first amount = %v", first.BillAmount)
	}

	if records[1].BillAmount != nil {
		t.Errorf("expected missing amount on second row, got %v", *records[1].BillAmount)
	}

	last := records[2]
	if last.TotalUsage != 1010 {
		t.Errorf("last usage = %v, want 1010", last.TotalUsage)
	}
	if last.BillAmount == nil || *last.BillAmount != 1234.56 {
		t.Errorf("last amount = %v", last.BillAmount)
	}
}

func TestParseCSV_WithoutAmountColumn(t *testing.T) {
	input := "Bill Date,Total Usage (CCF)\n03-01-2024,9\n"

	records, err := ParseCSV(strings.NewReader(input), zerolog.Nop())
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}
	if len(records) != 1 || records[0].HasAmount() {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestParseCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"missing usage column", "Bill Date,Bill Amount\n01-16-2024,$30\n"},
		{"missing date column", "Total Usage (CCF)\n15\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.input), zerolog.Nop())
			var dataErr *apperr.DataError
			if !errors.As(err, &dataErr) {
				t.Fatalf("expected DataError, got %v", err)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input  string
		want   float64
		wantOK bool
	}{
		{"$30.00", 30, true},
		{"$1,234.56", 1234.56, true},
		{"12.5", 12.5, true},
		{" $7 ", 7, true},
		{"", 0, false},
		{"$", 0, false},
		{"n/a", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseAmount(tt.input)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseAmount(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.wantOK)
		}
	}
}
