package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	// PeriodOpenStart and PeriodOpenEnd are echoed for unbounded sides.
	PeriodOpenStart = "all-time"
	PeriodOpenEnd   = "now"

	dateLayout = "2006-01-02"
)

// Period restricts the dashboard to operations dated in [From, Before).
// A nil bound is unbounded on that side.
type Period struct {
	From   *time.Time
	Before *time.Time

	StartLabel string
	EndLabel   string
}

// PeriodLabel is the period echoed back in the dashboard response.
type PeriodLabel struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// AllTime is the unbounded period.
func AllTime() Period {
	return Period{StartLabel: PeriodOpenStart, EndLabel: PeriodOpenEnd}
}

// ParsePeriod builds a Period from the raw startDate/endDate query values.
// Both bounds are inclusive; a date-only end covers the whole day.
func ParsePeriod(start, end string) (Period, error) {
	p := AllTime()
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)

	if start != "" {
		t, _, err := ParseDate(start)
		if err != nil {
			return Period{}, &ValidationError{Field: "startDate", Message: "Invalid startDate"}
		}
		p.From = &t
		p.StartLabel = start
	}
	if end != "" {
		t, dateOnly, err := ParseDate(end)
		if err != nil {
			return Period{}, &ValidationError{Field: "endDate", Message: "Invalid endDate"}
		}
		// Stored timestamps carry microsecond precision at most.
		before := t.Add(time.Microsecond)
		if dateOnly {
			before = t.AddDate(0, 0, 1)
		}
		p.Before = &before
		p.EndLabel = end
	}
	if p.From != nil && p.Before != nil && !p.From.Before(*p.Before) {
		return Period{}, &ValidationError{Field: "endDate", Message: "startDate must not be after endDate"}
	}
	return p, nil
}

// ParseDate accepts YYYY-MM-DD or RFC 3339. dateOnly reports which one matched.
func ParseDate(s string) (t time.Time, dateOnly bool, err error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, true, nil
	}
	t, err = time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t.UTC(), false, nil
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	if p.From != nil && t.Before(*p.From) {
		return false
	}
	if p.Before != nil && !t.Before(*p.Before) {
		return false
	}
	return true
}

// Label returns the echo form of the period.
func (p Period) Label() PeriodLabel {
	l := PeriodLabel{Start: p.StartLabel, End: p.EndLabel}
	if l.Start == "" {
		l.Start = PeriodOpenStart
	}
	if l.End == "" {
		l.End = PeriodOpenEnd
	}
	return l
}

// Key identifies the period for caching.
func (p Period) Key() string {
	var b strings.Builder
	if p.From != nil {
		b.WriteString(p.From.UTC().Format(time.RFC3339Nano))
	}
	b.WriteByte('|')
	if p.Before != nil {
		b.WriteString(p.Before.UTC().Format(time.RFC3339Nano))
	}
	b.WriteByte('|')
	b.WriteString(p.StartLabel)
	b.WriteByte('|')
	b.WriteString(p.EndLabel)
	return b.String()
}
