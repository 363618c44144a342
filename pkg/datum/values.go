package datum

import (
	"math"
	"time"

	"github.com/woxQAQ/pgxbridge/pkg/host"
)

// Interval mirrors the host's interval struct. Months and days are kept
// apart from the time part because their length varies.
type Interval struct {
	Microseconds int64
	Days         int32
	Months       int32
}

// Duration converts the time part and days (as 24h) to a duration. Months
// are ignored.
func (i Interval) Duration() time.Duration {
	return time.Duration(i.Microseconds)*time.Microsecond + time.Duration(i.Days)*24*time.Hour
}

// Numeric is the host's packed numeric payload, passed through unchanged.
type Numeric []byte

// JSONB is the host's binary jsonb payload, passed through unchanged.
type JSONB []byte

const (
	secsPerDay = 86400

	dateNoBegin = math.MinInt32
	dateNoEnd   = math.MaxInt32
	tsNoBegin   = math.MinInt64
	tsNoEnd     = math.MaxInt64

	// Valid timestamps run from 4714-11-24 BC 00:00 UTC (Julian day 0) up
	// to, not including, 294277-01-01 00:00 UTC. Both are whole seconds.
	tsMinSec = -211813488000
	tsEndSec = 9223371331200
)

// Host dates and timestamps count from 2000-01-01 UTC.
var pgEpochUnix = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).Unix()

func timestampToTime(us int64) time.Time {
	sec, rem := us/1e6, us%1e6
	if rem < 0 {
		sec--
		rem += 1e6
	}
	return time.Unix(pgEpochUnix+sec, rem*1000).UTC()
}

// timeToTimestamp returns false when t lies outside the host's timestamp
// range.
func timeToTimestamp(t time.Time) (int64, bool) {
	sec := t.Unix() - pgEpochUnix
	if sec < tsMinSec || sec >= tsEndSec {
		return 0, false
	}
	return sec*1e6 + int64(t.Nanosecond()/1000), true
}

func dateToTime(days int32) time.Time {
	return time.Unix(pgEpochUnix+int64(days)*secsPerDay, 0).UTC()
}

func timeToDate(t time.Time) int64 {
	y, m, d := t.Date()
	return (time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() - pgEpochUnix) / secsPerDay
}

// wallClock reinterprets t's wall clock reading as UTC, which is how a
// timestamp without time zone is stored.
func wallClock(t time.Time) time.Time {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return time.Date(y, mo, d, h, mi, s, t.Nanosecond(), time.UTC)
}

func infinite(td *TypeDescriptor) *CodecError {
	return &CodecError{
		Op:    "decode",
		Type:  td.Name,
		State: host.DatetimeFieldOverflow,
		Msg:   "infinite values have no Go representation",
	}
}
