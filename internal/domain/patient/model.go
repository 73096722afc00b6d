package patient

// Summary is one row of the patient search result: a patient joined with
// its info row. Dates are rendered YYYY-MM-DD, empty when unknown.
type Summary struct {
	PatientID      string `db:"patient_id" json:"patient_id"`
	Name           string `db:"name" json:"name"`
	BirthDate      string `db:"birth_date" json:"birth_date"`
	FirstVisitDate string `db:"first_visit_date" json:"first_visit_date"`
}

// GridRow is a search result as posted back from the editable grid, with
// the per-row selection flag.
type GridRow struct {
	PatientID      string
	Name           string
	BirthDate      string
	FirstVisitDate string
	Selected       bool
}
