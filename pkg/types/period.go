package types

import "fmt"

// Period is the aggregation granularity of a reading request.
type Period string

const (
	PeriodHalfHourly Period = "PT30M30"
	PeriodHourly     Period = "PT1H"
	PeriodDaily      Period = "P1D"
	PeriodWeekly     Period = "P1W"
	PeriodMonthly    Period = "P1M"
	PeriodYearly     Period = "P1Y"
)

// Validate returns an error if the period is not one the API accepts.
func (p Period) Validate() error {
	switch p {
	case PeriodHalfHourly, PeriodHourly, PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly:
		return nil
	default:
		return fmt.Errorf("invalid reading period: %q", string(p))
	}
}
