package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReadingSum(t *testing.T) {
	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, 0.0, Reading{}.Sum())
	})

	t.Run("single", func(t *testing.T) {
		r := Reading{Points: []ReadingPoint{{Timestamp: ts, Value: 4.25}}}
		assert.Equal(t, 4.25, r.Sum())
	})

	t.Run("split across boundary", func(t *testing.T) {
		r := Reading{Points: []ReadingPoint{
			{Timestamp: ts, Value: 1.5},
			{Timestamp: ts.Add(-time.Hour), Value: 2.25},
		}}
		assert.Equal(t, 1.5+2.25, r.Sum())
	})
}

func TestPeriodValidate(t *testing.T) {
	for _, p := range []Period{PeriodHalfHourly, PeriodHourly, PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly} {
		assert.NoError(t, p.Validate(), string(p))
	}
	assert.Error(t, Period("PT15M").Validate())
	assert.Error(t, Period("").Validate())
}
