package consultation

import (
	"time"

	"github.com/ehr/consult/internal/platform/session"
)

// DailyPrediction is one row of the model's dose and interval
// recommendation. Date is nil when predict_dt could not be parsed.
type DailyPrediction struct {
	RawDate       string     `json:"-"`
	Date          *time.Time `json:"date"`
	PredDose      *float64   `json:"pred_dose"`
	PredFrequency *float64   `json:"pred_frequency"`
}

// Prescription is one entry of the append-only prescription log.
type Prescription struct {
	ID               int64     `json:"id"`
	PatientID        string    `json:"patient_id"`
	PrescriptionDate time.Time `json:"prescription_date"`
	Dose             float64   `json:"dose"`
	Frequency        int       `json:"frequency"`
	PrescriptionDays int       `json:"prescription_days"`
	DayDrug          float64   `json:"day_drug"`
	Note             string    `json:"note"`
}

// PrescriptionInput is the posted prescription form. Any doses-per-day value
// sent by the client is ignored.
type PrescriptionInput struct {
	Date      string  `form:"prescription_date"`
	Dose      float64 `form:"dose"`
	Frequency int     `form:"frequency"`
	Days      int     `form:"prescription_days"`
	Note      string  `form:"note"`
}

// PatientInfo is the demographic row of a patient.
type PatientInfo struct {
	Name   string   `json:"name"`
	Age    *int     `json:"age"`
	Sex    *int     `json:"sex"`
	Height *float64 `json:"height"`
	Weight *float64 `json:"weight"`
	EGFR   *float64 `json:"egfr"`
	PHQ9   *int     `json:"phq9"`
}

// SexLabel maps the stored code: 1 is male, anything else female.
func (p *PatientInfo) SexLabel() string {
	if p.Sex == nil {
		return "-"
	}
	if *p.Sex == 1 {
		return "남"
	}
	return "여"
}

// PKParam holds the pharmacokinetic estimates of a patient.
type PKParam struct {
	CL        *float64 `json:"cl"`
	V         *float64 `json:"v"`
	Covariate *string  `json:"covariate"`
}

// Severity is the ordinal grade of a side-effect report.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityMild
	SeverityModerate
	SeveritySevere
)

// SeverityUnknownLabel is shown for grades outside 0..3.
const SeverityUnknownLabel = "알 수 없음"

var severityLabels = map[Severity]string{
	SeverityNone:     "없음",
	SeverityMild:     "경미",
	SeverityModerate: "중등도",
	SeveritySevere:   "심각",
}

// Known reports whether s is one of the four defined grades.
func (s Severity) Known() bool {
	_, ok := severityLabels[s]
	return ok
}

func (s Severity) Label() string {
	if l, ok := severityLabels[s]; ok {
		return l
	}
	return SeverityUnknownLabel
}

// SeverityLabels lists the display labels in grade order, unknown last.
func SeverityLabels() []string {
	return []string{
		SeverityNone.Label(),
		SeverityMild.Label(),
		SeverityModerate.Label(),
		SeveritySevere.Label(),
		SeverityUnknownLabel,
	}
}

// SideEffectReport is a side-effect report joined to its symptom name.
type SideEffectReport struct {
	RecordDate time.Time `json:"record_date"`
	Symptom    string    `json:"symptom"`
	Severity   Severity  `json:"severity"`
}

type PHQ9Record struct {
	RecordDate time.Time `json:"record_date"`
	Score      *float64  `json:"phq9_score"`
}

// AdherenceRecord is one day of proportion-of-days-covered. PDC is nil when
// the stored value is not numeric.
type AdherenceRecord struct {
	RecordDate *time.Time `json:"record_date"`
	PDC        *float64   `json:"pdc"`
}

// PrescriptionForm is the initial state of the new-prescription form.
type PrescriptionForm struct {
	Date      time.Time
	Dose      float64
	Frequency int
	Days      int
	DayDrug   float64
	Note      string
}

// Dashboard is the view model of the consultation page.
type Dashboard struct {
	Patient       session.PatientContext
	Today         time.Time
	Predictions   []DailyPrediction
	Form          PrescriptionForm
	Info          *PatientInfo
	PK            *PKParam
	Latest        *Prescription
	SideEffects   []SideEffectReport
	PHQ9          []PHQ9Record
	Adherence     []AdherenceRecord
	AdherenceRate float64

	// History is filled after a prescription is saved.
	History     []*Prescription
	ShowHistory bool
	SavedID     int64
}
