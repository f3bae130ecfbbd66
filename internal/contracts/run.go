package contracts

import "time"

// RunContext carries the identity of a single pipeline run.
// Built once at startup and passed explicitly to every component.
type RunContext struct {
	RunID        string    `json:"run_id"`
	RunDate      time.Time `json:"run_date"`      // UTC calendar date
	RunTimestamp time.Time `json:"run_timestamp"` // UTC wall clock at run start
}

// NewRunContext builds a RunContext from the given wall clock time
func NewRunContext(now time.Time) RunContext {
	now = now.UTC()
	return RunContext{
		RunID:        "run-" + now.Format("20060102T150405Z"),
		RunDate:      TruncateDate(now),
		RunTimestamp: now.Truncate(time.Second),
	}
}

// WithRunDate overrides the run date (backfills, re-runs)
func (rc RunContext) WithRunDate(date time.Time) RunContext {
	rc.RunDate = TruncateDate(date)
	return rc
}

// TruncateDate drops the time-of-day and normalizes to UTC
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateLayout is the canonical calendar date format for storage and CSV output
const DateLayout = "2006-01-02"
