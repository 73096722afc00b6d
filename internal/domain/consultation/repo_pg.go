package consultation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/consult/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Resolve(ctx, r.pool)
}

func (r *repoPG) WithConn(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.ConnFromContext(ctx) != nil {
		return fn(ctx)
	}
	return db.WithConn(ctx, r.pool, fn)
}

func (r *repoPG) ListDailyPredictions(ctx context.Context, patientID string) ([]DailyPrediction, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT predict_dt::text, pred_dose, pred_frequency
		FROM daily_predict
		WHERE patient_id = $1
		ORDER BY predict_dt`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list daily predictions: %w", err)
	}
	defer rows.Close()

	var items []DailyPrediction
	for rows.Next() {
		var p DailyPrediction
		var raw *string
		if err := rows.Scan(&raw, &p.PredDose, &p.PredFrequency); err != nil {
			return nil, fmt.Errorf("scan daily prediction: %w", err)
		}
		if raw != nil {
			p.RawDate = *raw
			p.Date = ParseCalendarDate(*raw)
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *repoPG) GetPatientInfo(ctx context.Context, patientID string) (*PatientInfo, error) {
	var p PatientInfo
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT name, age, sex, height, weight, egfr, phq9
		FROM patient_info
		WHERE patient_id = $1`, patientID).
		Scan(&p.Name, &p.Age, &p.Sex, &p.Height, &p.Weight, &p.EGFR, &p.PHQ9)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get patient info: %w", err)
	}
	return &p, nil
}

func (r *repoPG) GetPKParam(ctx context.Context, patientID string) (*PKParam, error) {
	var p PKParam
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT pkpram_cl, pkpram_v, covariate
		FROM pk_param
		WHERE patient_id = $1
		LIMIT 1`, patientID).Scan(&p.CL, &p.V, &p.Covariate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pk param: %w", err)
	}
	return &p, nil
}

const prescriptionCols = `id, patient_id, prescription_date, dose, frequency, prescription_days, day_drug, note`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.PatientID, &p.PrescriptionDate, &p.Dose, &p.Frequency,
		&p.PrescriptionDays, &p.DayDrug, &p.Note)
	return &p, err
}

func (r *repoPG) GetLatestPrescription(ctx context.Context, patientID string) (*Prescription, error) {
	p, err := scanPrescription(r.conn(ctx).QueryRow(ctx, `SELECT `+prescriptionCols+`
		FROM patient_predict
		WHERE patient_id = $1
		ORDER BY prescription_date DESC, id DESC
		LIMIT 1`, patientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest prescription: %w", err)
	}
	return p, nil
}

func (r *repoPG) CreatePrescription(ctx context.Context, p *Prescription) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_predict (patient_id, prescription_date, dose, frequency, prescription_days, day_drug, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		p.PatientID, p.PrescriptionDate, p.Dose, p.Frequency, p.PrescriptionDays, p.DayDrug, p.Note,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert prescription: %w", err)
	}
	return nil
}

func (r *repoPG) ListPrescriptions(ctx context.Context, patientID string) ([]*Prescription, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+prescriptionCols+`
		FROM patient_predict
		WHERE patient_id = $1
		ORDER BY prescription_date DESC, id DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list prescriptions: %w", err)
	}
	defer rows.Close()

	var items []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prescription: %w", err)
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *repoPG) ListSideEffectsSince(ctx context.Context, patientID string, since time.Time) ([]SideEffectReport, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT a.record_date, s.name_ko, a.severity
		FROM asec_response a
		JOIN side_effect s ON a.side_effect_code = s.code
		WHERE a.patient_id = $1 AND a.record_date >= $2
		ORDER BY a.record_date DESC`, patientID, since)
	if err != nil {
		return nil, fmt.Errorf("list side effects: %w", err)
	}
	defer rows.Close()

	var items []SideEffectReport
	for rows.Next() {
		var s SideEffectReport
		var severity int16
		if err := rows.Scan(&s.RecordDate, &s.Symptom, &severity); err != nil {
			return nil, fmt.Errorf("scan side effect: %w", err)
		}
		s.Severity = Severity(severity)
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *repoPG) ListPHQ9(ctx context.Context, patientID string) ([]PHQ9Record, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT record_date, phq9_score
		FROM daily_phq9
		WHERE patient_id = $1
		ORDER BY record_date`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list phq9: %w", err)
	}
	defer rows.Close()

	var items []PHQ9Record
	for rows.Next() {
		var p PHQ9Record
		if err := rows.Scan(&p.RecordDate, &p.Score); err != nil {
			return nil, fmt.Errorf("scan phq9: %w", err)
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *repoPG) ListAdherence(ctx context.Context, patientID string) ([]AdherenceRecord, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT record_date::text, pdc::text
		FROM patient_daily
		WHERE patient_id = $1
		ORDER BY record_date`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list adherence: %w", err)
	}
	defer rows.Close()

	var items []AdherenceRecord
	for rows.Next() {
		var date, pdc *string
		if err := rows.Scan(&date, &pdc); err != nil {
			return nil, fmt.Errorf("scan adherence: %w", err)
		}
		var a AdherenceRecord
		if date != nil {
			a.RecordDate = ParseCalendarDate(*date)
		}
		if pdc != nil {
			a.PDC = ParseNumber(*pdc)
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
