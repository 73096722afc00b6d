package consultation

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptrTime(t time.Time) *time.Time { return &t }
func ptrFloat(f float64) *float64    { return &f }

func TestDosesPerDay(t *testing.T) {
	for f := 1; f <= 48; f++ {
		if got, want := DosesPerDay(f), 24/float64(f); got != want {
			t.Errorf("DosesPerDay(%d) = %v, want %v", f, got, want)
		}
	}
	if DosesPerDay(8) != 3 {
		t.Errorf("expected 3 doses for an 8h interval, got %v", DosesPerDay(8))
	}
}

func TestParseCalendarDate(t *testing.T) {
	want := day(2024, 3, 15)
	tests := []struct {
		in string
		ok bool
	}{
		{"2024-03-15", true},
		{"2024-03-15T08:30:00", true},
		{"2024-03-15 08:30:00", true},
		{"2024-03-15T08:30:00+09:00", true},
		{" 2024-03-15 ", true},
		{"", false},
		{"15/03/2024", false},
		{"2024-13-01", false},
		{"not a date", false},
	}
	for _, tt := range tests {
		got := ParseCalendarDate(tt.in)
		if !tt.ok {
			if got != nil {
				t.Errorf("ParseCalendarDate(%q) = %v, want nil", tt.in, got)
			}
			continue
		}
		if got == nil || !got.Equal(want) {
			t.Errorf("ParseCalendarDate(%q) = %v, want %v", tt.in, got, want)
		}
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"0.85", ptrFloat(0.85)},
		{" 1 ", ptrFloat(1)},
		{"", nil},
		{"n/a", nil},
		{"NaN", nil},
		{"Infinity", nil},
	}
	for _, tt := range tests {
		got := ParseNumber(tt.in)
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("ParseNumber(%q) = %v, want nil", tt.in, *got)
		case tt.want != nil && (got == nil || *got != *tt.want):
			t.Errorf("ParseNumber(%q) = %v, want %v", tt.in, got, *tt.want)
		}
	}
}

func TestCalendarDay(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	// 2024-03-15 20:00 UTC is already the 16th in Seoul.
	got := CalendarDay(time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC), seoul)
	if !got.Equal(day(2024, 3, 16)) {
		t.Errorf("expected 2024-03-16, got %v", got)
	}
	if got := CalendarDay(time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC), nil); !got.Equal(day(2024, 3, 15)) {
		t.Errorf("expected 2024-03-15, got %v", got)
	}
}

func TestAdherenceRate_SevenDayWindow(t *testing.T) {
	today := day(2024, 5, 20)
	rows := []AdherenceRecord{
		{RecordDate: ptrTime(today.AddDate(0, 0, -10)), PDC: ptrFloat(0.5)},
		{RecordDate: ptrTime(today.AddDate(0, 0, -3)), PDC: ptrFloat(0.8)},
		{RecordDate: ptrTime(today.AddDate(0, 0, -1)), PDC: ptrFloat(0.6)},
	}
	if got := AdherenceRate(rows, today); got != 70.0 {
		t.Errorf("expected 70.0, got %v", got)
	}
}

func TestAdherenceRate_EdgeCases(t *testing.T) {
	today := day(2024, 5, 20)
	tests := []struct {
		name string
		rows []AdherenceRecord
		want float64
	}{
		{"empty", nil, 0},
		{"window boundary is inclusive", []AdherenceRecord{
			{RecordDate: ptrTime(today.AddDate(0, 0, -7)), PDC: ptrFloat(0.9)},
			{RecordDate: ptrTime(today.AddDate(0, 0, -8)), PDC: ptrFloat(0.1)},
		}, 90},
		{"missing pdc excluded not zero-filled", []AdherenceRecord{
			{RecordDate: ptrTime(today), PDC: ptrFloat(1)},
			{RecordDate: ptrTime(today.AddDate(0, 0, -2))},
		}, 100},
		{"undated rows skipped", []AdherenceRecord{
			{PDC: ptrFloat(0.2)},
			{RecordDate: ptrTime(today), PDC: ptrFloat(0.4)},
		}, 40},
		{"only old rows", []AdherenceRecord{
			{RecordDate: ptrTime(today.AddDate(0, 0, -30)), PDC: ptrFloat(0.4)},
		}, 0},
		{"rounded to one decimal", []AdherenceRecord{
			{RecordDate: ptrTime(today), PDC: ptrFloat(0.3333)},
			{RecordDate: ptrTime(today), PDC: ptrFloat(0.3333)},
		}, 33.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AdherenceRate(tt.rows, today); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSeverityLabel(t *testing.T) {
	tests := []struct {
		in   Severity
		want string
	}{
		{0, "없음"},
		{1, "경미"},
		{2, "중등도"},
		{3, "심각"},
		{4, SeverityUnknownLabel},
		{-1, SeverityUnknownLabel},
	}
	for _, tt := range tests {
		if got := tt.in.Label(); got != tt.want {
			t.Errorf("Severity(%d).Label() = %q, want %q", tt.in, got, tt.want)
		}
		if got := tt.in.Label(); got == "" {
			t.Errorf("Severity(%d) rendered blank", tt.in)
		}
	}
	for s := SeverityNone; s <= SeveritySevere; s++ {
		if !s.Known() {
			t.Errorf("expected %d to be known", s)
		}
	}
	if Severity(9).Known() {
		t.Error("expected 9 to be unknown")
	}
}

func TestSexLabel(t *testing.T) {
	one, zero, two := 1, 0, 2
	tests := []struct {
		sex  *int
		want string
	}{
		{&one, "남"},
		{&zero, "여"},
		{&two, "여"},
		{nil, "-"},
	}
	for _, tt := range tests {
		p := &PatientInfo{Sex: tt.sex}
		if got := p.SexLabel(); got != tt.want {
			t.Errorf("SexLabel() = %q, want %q", got, tt.want)
		}
	}
}

func TestSeverityCounts(t *testing.T) {
	reports := []SideEffectReport{
		{Symptom: "두통", Severity: 1},
		{Symptom: "오심", Severity: 2},
		{Symptom: "두통", Severity: 1},
		{Symptom: "두통", Severity: 7},
	}
	symptoms, counts := SeverityCounts(reports)
	if len(symptoms) != 2 || symptoms[0] != "두통" || symptoms[1] != "오심" {
		t.Errorf("unexpected symptom order %v", symptoms)
	}
	if counts["두통"]["경미"] != 2 || counts["두통"][SeverityUnknownLabel] != 1 || counts["오심"]["중등도"] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
}
