package usage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/jgoulah/waterdelta/internal/apperr"
	"github.com/jgoulah/waterdelta/pkg/models"
)

// Baseline selection strategies
const (
	StrategyNearest = "nearest" // closest bill date in each prior year
	StrategyMonth   = "month"   // every prior-year bill in the same calendar month
)

// Result is the cost comparison of the current bill against the baseline
type Result struct {
	Difference     float64 // CCF above (or below) the baseline
	PricePerUnit   float64 // USD per CCF on the current bill
	AdditionalCost float64 // Difference priced at PricePerUnit
}

// Average returns the mean usage of the baselines, 0 when there are none
func Average(baselines []Baseline) float64 {
	return AverageRecords(lo.Map(baselines, func(b Baseline, _ int) models.UsageRecord {
		return b.Record
	}))
}

// AverageRecords returns the mean usage of the records, 0 when there are none
func AverageRecords(records []models.UsageRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	total := lo.SumBy(records, func(r models.UsageRecord) float64 {
		return r.TotalUsage
	})
	return total / float64(len(records))
}

// Estimate prices the difference between current usage and the baseline
// average at the current bill's unit price.
func Estimate(currentUsage, currentBillAmount, averageBaseline float64) (Result, error) {
	if currentUsage == 0 {
		return Result{}, &apperr.DataError{Message: "current usage is zero, price per unit is undefined"}
	}

	difference := currentUsage - averageBaseline
	price := currentBillAmount / currentUsage
	return Result{
		Difference:     difference,
		PricePerUnit:   price,
		AdditionalCost: difference * price,
	}, nil
}

// Compute runs the whole comparison for records ordered newest first. The
// first record is the current bill.
func Compute(records []models.UsageRecord, strategy string) (models.Estimate, error) {
	if len(records) == 0 {
		return models.Estimate{}, &apperr.DataError{Message: "no billing records in dataset"}
	}

	current := records[0]
	if !current.HasAmount() {
		return models.Estimate{}, &apperr.DataError{
			Message: fmt.Sprintf("latest bill (%s) has no bill amount", current.BillDate.Format("01-02-2006")),
		}
	}

	var average float64
	var count int
	switch strategy {
	case StrategyNearest, "":
		strategy = StrategyNearest
		baselines := Sorted(Align(records, current.BillDate))
		average, count = Average(baselines), len(baselines)
	case StrategyMonth:
		matches := SameMonth(records, current.BillDate)
		average, count = AverageRecords(matches), len(matches)
	default:
		return models.Estimate{}, &apperr.ConfigError{Field: "strategy", Message: fmt.Sprintf("unknown strategy %q", strategy)}
	}

	res, err := Estimate(current.TotalUsage, *current.BillAmount, average)
	if err != nil {
		return models.Estimate{}, err
	}

	return models.Estimate{
		ID:              uuid.NewString(),
		BillDate:        current.BillDate,
		CurrentUsage:    current.TotalUsage,
		CurrentAmount:   *current.BillAmount,
		AverageBaseline: average,
		Difference:      res.Difference,
		PricePerUnit:    res.PricePerUnit,
		AdditionalCost:  res.AdditionalCost,
		Baselines:       count,
		Strategy:        strategy,
		CreatedAt:       time.Now().UTC(),
	}, nil
}
