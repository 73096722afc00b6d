// Package sandbox generates reproducible demo data for the dashboard: a few
// patients with dose predictions, PK estimates, side-effect reports, PHQ-9
// scores, adherence and a prescription history.
package sandbox

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SeedConfig controls the volume and shape of generated data.
type SeedConfig struct {
	PatientCount int
	HistoryDays  int
	Seed         int64
	// Today anchors every series; zero means the current UTC date.
	Today time.Time
}

func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		PatientCount: 2,
		HistoryDays:  30,
		Seed:         42,
	}
}

// SideEffectCodes is the symptom lookup loaded with the demo data.
var SideEffectCodes = []SideEffectCode{
	{Code: 1, NameKo: "두통"},
	{Code: 2, NameKo: "오심"},
	{Code: 3, NameKo: "어지러움"},
	{Code: 4, NameKo: "불면"},
}

// demoNames come first so the two well-known demo patients always exist.
var demoNames = []string{"홍길동", "이몽룡", "성춘향", "변학도", "심청", "임꺽정", "전우치", "황진이"}

type SideEffectCode struct {
	Code   int
	NameKo string
}

type Patient struct {
	PatientID      string
	Name           string
	BirthDate      time.Time
	FirstVisitDate time.Time
	Age            int
	Sex            int
	Height         float64
	Weight         float64
	EGFR           float64
	PHQ9           int
}

type Prediction struct {
	PatientID     string
	PredictDT     time.Time
	PredDose      float64
	PredFrequency float64
}

type PKParam struct {
	PatientID string
	CL        float64
	V         float64
	Covariate string
}

type SideEffectReport struct {
	PatientID  string
	RecordDate time.Time
	Code       int
	Severity   int
}

type PHQ9 struct {
	PatientID  string
	RecordDate time.Time
	Score      float64
}

type Adherence struct {
	PatientID  string
	RecordDate time.Time
	PDC        float64
}

type Prescription struct {
	PatientID        string
	PrescriptionDate time.Time
	Dose             float64
	Frequency        int
	PrescriptionDays int
	DayDrug          float64
	Note             string
}

// Dataset is everything one seed run writes.
type Dataset struct {
	Patients      []Patient
	Predictions   []Prediction
	PKParams      []PKParam
	SideEffects   []SideEffectReport
	PHQ9          []PHQ9
	Adherence     []Adherence
	Prescriptions []Prescription
}

// SeedResult summarises a generated dataset.
type SeedResult struct {
	Patients      int           `json:"patients"`
	Predictions   int           `json:"predictions"`
	SideEffects   int           `json:"sideEffects"`
	PHQ9          int           `json:"phq9"`
	Adherence     int           `json:"adherence"`
	Prescriptions int           `json:"prescriptions"`
	Duration      time.Duration `json:"duration"`
}

// DataGenerator produces deterministic demo rows.
type DataGenerator struct {
	rng   *rand.Rand
	today time.Time
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen.
func NewDataGenerator(seed int64, today time.Time) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if today.IsZero() {
		today = time.Now().UTC()
	}
	y, m, d := today.Date()
	return &DataGenerator{
		rng:   rand.New(rand.NewSource(seed)),
		today: time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
	}
}

func (g *DataGenerator) daysAgo(n int) time.Time {
	return g.today.AddDate(0, 0, -n)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// GeneratePatient builds the i-th demo patient.
func (g *DataGenerator) GeneratePatient(i int) Patient {
	name := demoNames[i%len(demoNames)]
	if i >= len(demoNames) {
		name = fmt.Sprintf("%s%d", name, i/len(demoNames)+1)
	}
	age := 25 + g.rng.Intn(50)
	birth := time.Date(g.today.Year()-age, time.Month(1+g.rng.Intn(12)), 1+g.rng.Intn(28), 0, 0, 0, 0, time.UTC)
	return Patient{
		PatientID:      fmt.Sprintf("DEMO-%03d", i+1),
		Name:           name,
		BirthDate:      birth,
		FirstVisitDate: g.daysAgo(30 + g.rng.Intn(300)),
		Age:            age,
		Sex:            1 - i%2,
		Height:         round(150+g.rng.Float64()*35, 1),
		Weight:         round(45+g.rng.Float64()*45, 1),
		EGFR:           round(60+g.rng.Float64()*50, 1),
		PHQ9:           g.rng.Intn(28),
	}
}

func (g *DataGenerator) GeneratePKParam(patientID string) PKParam {
	covariates := []string{"weight", "egfr", "age", "weight+egfr"}
	return PKParam{
		PatientID: patientID,
		CL:        round(2+g.rng.Float64()*6, 2),
		V:         round(20+g.rng.Float64()*60, 2),
		Covariate: covariates[g.rng.Intn(len(covariates))],
	}
}

// GeneratePredictions emits one prediction per day, timestamped mid-morning
// so the dashboard has to strip the time part.
func (g *DataGenerator) GeneratePredictions(patientID string, days int) []Prediction {
	intervals := []float64{6, 8, 12, 24}
	dose := 25 + g.rng.Float64()*50
	out := make([]Prediction, 0, days)
	for d := days - 1; d >= 0; d-- {
		dose = math.Max(5, dose+g.rng.NormFloat64()*3)
		out = append(out, Prediction{
			PatientID:     patientID,
			PredictDT:     g.daysAgo(d).Add(9*time.Hour + 30*time.Minute),
			PredDose:      round(dose, 1),
			PredFrequency: intervals[g.rng.Intn(len(intervals))],
		})
	}
	return out
}

func (g *DataGenerator) GenerateSideEffects(patientID string, days int) []SideEffectReport {
	var out []SideEffectReport
	for d := days - 1; d >= 0; d-- {
		if g.rng.Intn(3) != 0 {
			continue
		}
		out = append(out, SideEffectReport{
			PatientID:  patientID,
			RecordDate: g.daysAgo(d),
			Code:       SideEffectCodes[g.rng.Intn(len(SideEffectCodes))].Code,
			Severity:   g.rng.Intn(4),
		})
	}
	return out
}

func (g *DataGenerator) GeneratePHQ9(patientID string, days int) []PHQ9 {
	score := 8 + g.rng.Float64()*12
	var out []PHQ9
	for d := days - 1; d >= 0; d -= 3 {
		score = math.Min(27, math.Max(0, score+g.rng.NormFloat64()*1.5-0.3))
		out = append(out, PHQ9{PatientID: patientID, RecordDate: g.daysAgo(d), Score: round(score, 1)})
	}
	return out
}

func (g *DataGenerator) GenerateAdherence(patientID string, days int) []Adherence {
	out := make([]Adherence, 0, days)
	for d := days - 1; d >= 0; d-- {
		out = append(out, Adherence{
			PatientID:  patientID,
			RecordDate: g.daysAgo(d),
			PDC:        round(0.5+g.rng.Float64()*0.5, 2),
		})
	}
	return out
}

// GeneratePrescriptions emits a short history at two-week steps.
func (g *DataGenerator) GeneratePrescriptions(patientID string, days int) []Prescription {
	var out []Prescription
	for d := days - 1; d >= 0; d -= 14 {
		freq := []int{8, 12, 24}[g.rng.Intn(3)]
		out = append(out, Prescription{
			PatientID:        patientID,
			PrescriptionDate: g.daysAgo(d),
			Dose:             float64(10 * (2 + g.rng.Intn(8))),
			Frequency:        freq,
			PrescriptionDays: 14,
			DayDrug:          24 / float64(freq),
			Note:             "데모 처방",
		})
	}
	return out
}

// Seeder orchestrates generation and loading of a demo dataset.
type Seeder struct {
	generator *DataGenerator
	config    SeedConfig
}

func NewSeeder(config SeedConfig) *Seeder {
	if config.PatientCount <= 0 {
		config.PatientCount = DefaultSeedConfig().PatientCount
	}
	if config.HistoryDays <= 0 {
		config.HistoryDays = DefaultSeedConfig().HistoryDays
	}
	return &Seeder{
		generator: NewDataGenerator(config.Seed, config.Today),
		config:    config,
	}
}

// Generate builds the dataset in memory.
func (s *Seeder) Generate() (*Dataset, *SeedResult) {
	start := time.Now()
	ds := &Dataset{}
	days := s.config.HistoryDays
	for i := 0; i < s.config.PatientCount; i++ {
		p := s.generator.GeneratePatient(i)
		ds.Patients = append(ds.Patients, p)
		ds.PKParams = append(ds.PKParams, s.generator.GeneratePKParam(p.PatientID))
		ds.Predictions = append(ds.Predictions, s.generator.GeneratePredictions(p.PatientID, days)...)
		ds.SideEffects = append(ds.SideEffects, s.generator.GenerateSideEffects(p.PatientID, days)...)
		ds.PHQ9 = append(ds.PHQ9, s.generator.GeneratePHQ9(p.PatientID, days)...)
		ds.Adherence = append(ds.Adherence, s.generator.GenerateAdherence(p.PatientID, days)...)
		ds.Prescriptions = append(ds.Prescriptions, s.generator.GeneratePrescriptions(p.PatientID, days)...)
	}
	return ds, &SeedResult{
		Patients:      len(ds.Patients),
		Predictions:   len(ds.Predictions),
		SideEffects:   len(ds.SideEffects),
		PHQ9:          len(ds.PHQ9),
		Adherence:     len(ds.Adherence),
		Prescriptions: len(ds.Prescriptions),
		Duration:      time.Since(start),
	}
}

// demoTables are cleared per patient before loading, children first.
var demoTables = []string{"patient_predict", "patient_daily", "daily_phq9", "asec_response", "daily_predict", "pk_param", "patient_info", "patient"}

// Load writes ds in one transaction. Rows of the same patient ids are
// replaced, so seeding twice yields the same data.
func Load(ctx context.Context, pool *pgxpool.Pool, ds *Dataset) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback(ctx)

	ids := make([]string, 0, len(ds.Patients))
	for _, p := range ds.Patients {
		ids = append(ids, p.PatientID)
	}
	for _, table := range demoTables {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE patient_id = ANY($1)`, ids); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, c := range SideEffectCodes {
		if _, err := tx.Exec(ctx, `INSERT INTO side_effect (code, name_ko) VALUES ($1, $2)
			ON CONFLICT (code) DO UPDATE SET name_ko = EXCLUDED.name_ko`, c.Code, c.NameKo); err != nil {
			return fmt.Errorf("insert side effect code: %w", err)
		}
	}

	batch := &pgx.Batch{}
	for _, p := range ds.Patients {
		batch.Queue(`INSERT INTO patient (patient_id) VALUES ($1)`, p.PatientID)
		batch.Queue(`INSERT INTO patient_info (patient_id, name, birth_date, first_visit_date, age, sex, height, weight, egfr, phq9)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			p.PatientID, p.Name, p.BirthDate, p.FirstVisitDate, p.Age, p.Sex, p.Height, p.Weight, p.EGFR, p.PHQ9)
	}
	for _, k := range ds.PKParams {
		batch.Queue(`INSERT INTO pk_param (patient_id, pkpram_cl, pkpram_v, covariate) VALUES ($1, $2, $3, $4)`,
			k.PatientID, k.CL, k.V, k.Covariate)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert patients: %w", err)
	}

	copies := []struct {
		table string
		cols  []string
		rows  [][]interface{}
	}{
		{"daily_predict", []string{"patient_id", "predict_dt", "pred_dose", "pred_frequency"}, predictionRows(ds)},
		{"asec_response", []string{"patient_id", "record_date", "side_effect_code", "severity"}, sideEffectRows(ds)},
		{"daily_phq9", []string{"patient_id", "record_date", "phq9_score"}, phq9Rows(ds)},
		{"patient_daily", []string{"patient_id", "record_date", "pdc"}, adherenceRows(ds)},
		{"patient_predict", []string{"patient_id", "prescription_date", "dose", "frequency", "prescription_days", "day_drug", "note"}, prescriptionRows(ds)},
	}
	for _, c := range copies {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{c.table}, c.cols, pgx.CopyFromRows(c.rows)); err != nil {
			return fmt.Errorf("copy %s: %w", c.table, err)
		}
	}

	return tx.Commit(ctx)
}

func predictionRows(ds *Dataset) [][]interface{} {
	rows := make([][]interface{}, 0, len(ds.Predictions))
	for _, p := range ds.Predictions {
		rows = append(rows, []interface{}{p.PatientID, p.PredictDT, p.PredDose, p.PredFrequency})
	}
	return rows
}

func sideEffectRows(ds *Dataset) [][]interface{} {
	rows := make([][]interface{}, 0, len(ds.SideEffects))
	for _, s := range ds.SideEffects {
		rows = append(rows, []interface{}{s.PatientID, s.RecordDate, int32(s.Code), int16(s.Severity)})
	}
	return rows
}

func phq9Rows(ds *Dataset) [][]interface{} {
	rows := make([][]interface{}, 0, len(ds.PHQ9))
	for _, p := range ds.PHQ9 {
		rows = append(rows, []interface{}{p.PatientID, p.RecordDate, p.Score})
	}
	return rows
}

func adherenceRows(ds *Dataset) [][]interface{} {
	rows := make([][]interface{}, 0, len(ds.Adherence))
	for _, a := range ds.Adherence {
		rows = append(rows, []interface{}{a.PatientID, a.RecordDate, a.PDC})
	}
	return rows
}

func prescriptionRows(ds *Dataset) [][]interface{} {
	rows := make([][]interface{}, 0, len(ds.Prescriptions))
	for _, p := range ds.Prescriptions {
		rows = append(rows, []interface{}{p.PatientID, p.PrescriptionDate, p.Dose, int32(p.Frequency), int32(p.PrescriptionDays), p.DayDrug, p.Note})
	}
	return rows
}
