package synth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPeriodIndexFloor(t *testing.T) {
	base := time.Date(2019, 10, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, PeriodIndex(base, 5), PeriodIndex(base.Add(4*time.Minute+59*time.Second), 5))
	assert.Equal(t, PeriodIndex(base, 5)+1, PeriodIndex(base.Add(5*time.Minute), 5))
	assert.Equal(t, int64(-1), PeriodIndex(time.Unix(-1, 0), 5))
	assert.Equal(t, int64(-1), PeriodIndex(time.Unix(-300, 0), 5))
	assert.Equal(t, int64(-2), PeriodIndex(time.Unix(-301, 0), 5))
}

func TestPeriodIndexIgnoresZone(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	assert.NoError(t, err)
	utc := time.Date(2019, 10, 1, 15, 3, 0, 0, time.UTC)
	assert.Equal(t, PeriodIndex(utc, 5), PeriodIndex(utc.In(loc), 5))
}

func TestNormalize(t *testing.T) {
	loc, _ := time.LoadLocation("America/Los_Angeles")
	start := time.Date(2019, 10, 1, 0, 0, 0, 0, loc)
	off := WindowOffset(start, 5)
	assert.Equal(t, int64(0), Normalize(start, off, 5))
	assert.Equal(t, int64(96), Normalize(start.Add(8*time.Hour+2*time.Minute), off, 5))
	assert.Equal(t, int64(-1), Normalize(start.Add(-time.Second), off, 5))
}
