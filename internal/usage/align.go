// Package usage lines up a bill against the same billing period in prior
// years and turns the comparison into a cost estimate.
package usage

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/jgoulah/waterdelta/pkg/models"
)

// Baseline is the prior-year bill chosen as the comparison point for one year
type Baseline struct {
	Year   int
	Record models.UsageRecord
}

// Align picks, for every year before latest's year, the bill whose date is
// closest to latest's month and day in that year.
//
// The target date is built with time.Date, so Feb 29 in a non-leap year is
// normalised to Mar 1. There is no leap-day special case: Feb 28 and Mar 1
// compete on plain day distance like any other candidate.
//
// On equal distance the candidate that comes first in records wins. Years with
// no bills are absent from the result.
func Align(records []models.UsageRecord, latest time.Time) map[int]Baseline {
	prior := lo.Filter(records, func(r models.UsageRecord, _ int) bool {
		return r.BillDate.Year() < latest.Year()
	})
	// GroupBy keeps input order within each year, which the tie-break relies on
	byYear := lo.GroupBy(prior, func(r models.UsageRecord) int {
		return r.BillDate.Year()
	})

	result := make(map[int]Baseline, len(byYear))
	for year, candidates := range byYear {
		target := time.Date(year, latest.Month(), latest.Day(), 0, 0, 0, 0, time.UTC)
		best, ok := nearest(candidates, target)
		if !ok {
			continue
		}
		result[year] = Baseline{Year: year, Record: best}
	}
	return result
}

// nearest returns the first candidate with the smallest whole-day distance to target
func nearest(candidates []models.UsageRecord, target time.Time) (models.UsageRecord, bool) {
	var best models.UsageRecord
	bestDiff := -1
	for _, c := range candidates {
		diff := dayDiff(c.BillDate, target)
		if bestDiff < 0 || diff < bestDiff {
			best, bestDiff = c, diff
		}
	}
	return best, bestDiff >= 0
}

// dayDiff is the absolute number of calendar days between two dates
func dayDiff(a, b time.Time) int {
	da := civil(a)
	db := civil(b)
	days := int(da.Sub(db).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}

// civil drops the time of day and zone so day arithmetic is exact
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Sorted returns the baselines ordered by year, oldest first
func Sorted(baselines map[int]Baseline) []Baseline {
	years := lo.Keys(baselines)
	sort.Ints(years)
	return lo.Map(years, func(y int, _ int) Baseline {
		return baselines[y]
	})
}

// SameMonth returns every bill from a prior year that falls in latest's
// calendar month, in input order.
func SameMonth(records []models.UsageRecord, latest time.Time) []models.UsageRecord {
	return lo.Filter(records, func(r models.UsageRecord, _ int) bool {
		return r.BillDate.Month() == latest.Month() && r.BillDate.Year() < latest.Year()
	})
}
