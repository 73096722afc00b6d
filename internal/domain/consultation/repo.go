package consultation

import (
	"context"
	"time"
)

// Repository reads the per-patient dashboard data and appends to the
// prescription log. Every method is scoped to one patient id. Single-row
// getters return nil, nil when the row does not exist.
type Repository interface {
	ListDailyPredictions(ctx context.Context, patientID string) ([]DailyPrediction, error)
	GetPatientInfo(ctx context.Context, patientID string) (*PatientInfo, error)
	GetPKParam(ctx context.Context, patientID string) (*PKParam, error)
	GetLatestPrescription(ctx context.Context, patientID string) (*Prescription, error)
	ListSideEffectsSince(ctx context.Context, patientID string, since time.Time) ([]SideEffectReport, error)
	ListPHQ9(ctx context.Context, patientID string) ([]PHQ9Record, error)
	ListAdherence(ctx context.Context, patientID string) ([]AdherenceRecord, error)

	CreatePrescription(ctx context.Context, p *Prescription) error
	ListPrescriptions(ctx context.Context, patientID string) ([]*Prescription, error)

	// WithConn runs fn with every repository call inside it bound to one
	// connection.
	WithConn(ctx context.Context, fn func(ctx context.Context) error) error
}
