package consultation

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// AdherenceWindowDays is the look-back of the adherence headline and the
// recent side-effect list.
const AdherenceWindowDays = 7

// DosesPerDay is the number of administrations per day for a dosing interval
// given in hours.
func DosesPerDay(frequencyHours int) float64 {
	return 24 / float64(frequencyHours)
}

// ParseCalendarDate extracts the calendar date from a date or timestamp
// string. Everything from the first 'T' or space is dropped; nil is returned
// when the rest is not YYYY-MM-DD.
func ParseCalendarDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "T "); i >= 0 {
		s = s[:i]
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

// ParseNumber coerces a stored numeric text value. Empty or non-numeric
// input yields nil.
func ParseNumber(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// CalendarDay truncates t to its date in loc, expressed at UTC midnight so
// it compares directly with DATE columns.
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WindowStart is the first day of the look-back window ending today.
func WindowStart(today time.Time) time.Time {
	return today.AddDate(0, 0, -AdherenceWindowDays)
}

// AdherenceRate is the mean pdc of the rows dated on or after today minus
// seven days, as a percentage rounded to one decimal. Rows without a date or
// a numeric pdc are skipped; no usable row gives 0.
func AdherenceRate(rows []AdherenceRecord, today time.Time) float64 {
	since := WindowStart(today)
	var sum float64
	var n int
	for _, r := range rows {
		if r.RecordDate == nil || r.PDC == nil {
			continue
		}
		if r.RecordDate.Before(since) {
			continue
		}
		sum += *r.PDC
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Round(sum/float64(n)*100*10) / 10
}

// SeverityCounts tallies reports per symptom and severity label. Symptoms
// keep the order of first appearance.
func SeverityCounts(reports []SideEffectReport) (symptoms []string, counts map[string]map[string]int) {
	counts = make(map[string]map[string]int)
	for _, r := range reports {
		bySeverity, ok := counts[r.Symptom]
		if !ok {
			bySeverity = make(map[string]int)
			counts[r.Symptom] = bySeverity
			symptoms = append(symptoms, r.Symptom)
		}
		bySeverity[r.Severity.Label()]++
	}
	return symptoms, counts
}
