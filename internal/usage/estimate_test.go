package usage

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jgoulah/waterdelta/internal/apperr"
	"github.com/jgoulah/waterdelta/pkg/models"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAverage(t *testing.T) {
	tests := []struct {
		name      string
		baselines []Baseline
		want      float64
	}{
		{"empty", nil, 0},
		{"two", []Baseline{{Record: models.UsageRecord{TotalUsage: 10}}, {Record: models.UsageRecord{TotalUsage: 20}}}, 15},
		{"one", []Baseline{{Record: models.UsageRecord{TotalUsage: 7.5}}}, 7.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Average(tt.baselines); got != tt.want {
				t.Errorf("Average() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEstimate(t *testing.T) {
	res, err := Estimate(15, 30, 11)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if res.Difference != 4 {
		t.Errorf("difference = %v, want 4", res.Difference)
	}
	if res.PricePerUnit != 2 {
		t.Errorf("price per unit = %v, want 2", res.PricePerUnit)
	}
	if res.AdditionalCost != 8 {
		t.Errorf("additional cost = %v, want 8", res.AdditionalCost)
	}
}

func TestEstimate_BelowBaselineIsNegative(t *testing.T) {
	res, err := Estimate(8, 20, 10)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if !approxEqual(res.AdditionalCost, -5) {
		t.Errorf("additional cost = %v, want -5", res.AdditionalCost)
	}
}

func TestEstimate_ZeroUsageIsDataError(t *testing.T) {
	res, err := Estimate(0, 30, 11)

	var dataErr *apperr.DataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("expected DataError, got %v", err)
	}
	if math.IsInf(res.PricePerUnit, 0) || math.IsNaN(res.PricePerUnit) {
		t.Errorf("price per unit must not be Inf/NaN, got %v", res.PricePerUnit)
	}
}

func TestCompute_WorkedExample(t *testing.T) {
	records := []models.UsageRecord{
		recWithAmount(2024, time.January, 16, 15, 30),
		rec(2023, time.January, 16, 11),
		rec(2022, time.January, 17, 12),
		rec(2021, time.January, 15, 10),
	}

	est, err := Compute(records, StrategyNearest)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if est.AverageBaseline != 11 {
		t.Errorf("average = %v, want 11", est.AverageBaseline)
	}
	if est.Difference != 4 {
		t.Errorf("difference = %v, want 4", est.Difference)
	}
	if est.PricePerUnit != 2 {
		t.Errorf("price per unit = %v, want 2", est.PricePerUnit)
	}
	if est.AdditionalCost != 8 {
		t.Errorf("additional cost = %v, want 8", est.AdditionalCost)
	}
	if est.Baselines != 3 {
		t.Errorf("baselines = %d, want 3", est.Baselines)
	}
	if est.ID == "" {
		t.Error("expected an estimate id")
	}
	if !est.BillDate.Equal(date(2024, time.January, 16)) {
		t.Errorf("bill date = %v", est.BillDate)
	}
}

func TestCompute_MonthStrategy(t *testing.T) {
	records := []models.UsageRecord{
		recWithAmount(2024, time.January, 16, 15, 30),
		rec(2023, time.January, 2, 10),
		rec(2023, time.January, 30, 14),
		rec(2022, time.February, 1, 100),
	}

	est, err := Compute(records, StrategyMonth)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if est.AverageBaseline != 12 {
		t.Errorf("average = %v, want 12", est.AverageBaseline)
	}
	if est.Baselines != 2 {
		t.Errorf("baselines = %d, want 2", est.Baselines)
	}
	if est.Strategy != StrategyMonth {
		t.Errorf("strategy = %q", est.Strategy)
	}
}

func TestCompute_NoHistoryUsesZeroBaseline(t *testing.T) {
	est, err := Compute([]models.UsageRecord{recWithAmount(2024, time.January, 16, 15, 30)}, "")
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if est.AverageBaseline != 0 || est.Difference != 15 || est.AdditionalCost != 30 {
		t.Errorf("unexpected estimate: %+v", est)
	}
	if est.Strategy != StrategyNearest {
		t.Errorf("strategy = %q, want nearest", est.Strategy)
	}
}

func TestCompute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		records  []models.UsageRecord
		strategy string
		check    func(error) bool
	}{
		{
			name:    "empty dataset",
			records: nil,
			check: func(err error) bool {
				var e *apperr.DataError
				return errors.As(err, &e)
			},
		},
		{
			name:    "latest bill without amount",
			records: []models.UsageRecord{rec(2024, time.January, 16, 15)},
			check: func(err error) bool {
				var e *apperr.DataError
				return errors.As(err, &e)
			},
		},
		{
			name:    "zero usage",
			records: []models.UsageRecord{recWithAmount(2024, time.January, 16, 0, 30)},
			check: func(err error) bool {
				var e *apperr.DataError
				return errors.As(err, &e)
			},
		},
		{
			name:     "unknown strategy",
			records:  []models.UsageRecord{recWithAmount(2024, time.January, 16, 15, 30)},
			strategy: "median",
			check: func(err error) bool {
				var e *apperr.ConfigError
				return errors.As(err, &e)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(tt.records, tt.strategy)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !tt.check(err) {
				t.Errorf("unexpected error type %T: %v", err, err)
			}
		})
	}
}
