// Package timeparse resolves the upstream sheet's heterogeneous
// timestamp strings. The sheet does not declare its day/month
// convention and it can flip between runs, so the convention is chosen
// per batch, never per row: parse everything day-first, and if more
// than half the rows fail, retry the whole batch month-first and keep
// whichever convention fails less.
package timeparse

import (
	"strings"
	"time"
)

// Convention is the day/month ordering assumed for ambiguous layouts.
type Convention int

const (
	DayFirst Convention = iota
	MonthFirst
)

func (c Convention) String() string {
	if c == MonthFirst {
		return "month-first"
	}
	return "day-first"
}

// Result is the outcome for one raw timestamp. OK is false when the
// value could not be parsed under either convention; such rows are
// retained by callers but excluded from time-based filtering.
type Result struct {
	Time time.Time
	OK   bool
}

// Layouts that carry no day/month ambiguity; tried before any
// convention-dependent layout.
var unambiguousLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
}

var dayFirstLayouts = []string{
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
	"2-1-2006 15:04:05",
	"2-1-2006",
	"2.1.2006 15:04",
}

var monthFirstLayouts = []string{
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"1-2-2006 15:04:05",
	"1-2-2006",
	"1.2.2006 15:04",
}

// Resolve parses one raw timestamp under the given convention.
// It never returns an error: failure is an explicit Result.
func Resolve(raw string, conv Convention) Result {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Result{}
	}

	for _, layout := range unambiguousLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Result{Time: t, OK: true}
		}
	}

	layouts := dayFirstLayouts
	if conv == MonthFirst {
		layouts = monthFirstLayouts
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Result{Time: t, OK: true}
		}
	}
	return Result{}
}

// ResolveBatch resolves a whole batch, applying the convention
// heuristic, and reports which convention was used.
func ResolveBatch(raw []string) ([]Result, Convention) {
	results := resolveAll(raw, DayFirst)
	failures := countFailures(results)

	// More than half unparseable suggests the wrong convention, not a
	// messy sheet. Retry the batch and keep the better outcome.
	if failures*2 > len(raw) {
		retry := resolveAll(raw, MonthFirst)
		if countFailures(retry) < failures {
			return retry, MonthFirst
		}
	}
	return results, DayFirst
}

func resolveAll(raw []string, conv Convention) []Result {
	out := make([]Result, len(raw))
	for i, s := range raw {
		out[i] = Resolve(s, conv)
	}
	return out
}

func countFailures(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.OK {
			n++
		}
	}
	return n
}
