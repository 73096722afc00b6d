package consultation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/consult/internal/platform/session"
)

// ErrInvalidPrescription is returned for prescriptions below the form
// minimums: dose >= 0, frequency >= 1, days >= 1, date YYYY-MM-DD.
var ErrInvalidPrescription = errors.New("invalid prescription")

type Service struct {
	repo   Repository
	loc    *time.Location
	now    func() time.Time
	logger zerolog.Logger
}

// NewService builds the dashboard service. loc defines the calendar day
// used for "today".
func NewService(repo Repository, loc *time.Location, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, loc: loc, now: time.Now, logger: logger}
}

// Today is the current calendar date in the service time zone.
func (s *Service) Today() time.Time {
	return CalendarDay(s.now(), s.loc)
}

// DefaultForm is the new-prescription form before any input.
func (s *Service) DefaultForm() PrescriptionForm {
	return PrescriptionForm{
		Date:      s.Today(),
		Dose:      0,
		Frequency: 1,
		Days:      1,
		DayDrug:   DosesPerDay(1),
	}
}

// Dashboard loads every view of the consultation page for p. The views are
// fetched one after another; the first store failure aborts.
func (s *Service) Dashboard(ctx context.Context, p session.PatientContext) (*Dashboard, error) {
	today := s.Today()
	d := &Dashboard{
		Patient: p,
		Today:   today,
		Form:    s.DefaultForm(),
	}

	var err error
	if d.Predictions, err = s.repo.ListDailyPredictions(ctx, p.PatientID); err != nil {
		return nil, err
	}
	if d.Info, err = s.repo.GetPatientInfo(ctx, p.PatientID); err != nil {
		return nil, err
	}
	if d.PK, err = s.repo.GetPKParam(ctx, p.PatientID); err != nil {
		return nil, err
	}
	if d.Latest, err = s.repo.GetLatestPrescription(ctx, p.PatientID); err != nil {
		return nil, err
	}
	if d.SideEffects, err = s.repo.ListSideEffectsSince(ctx, p.PatientID, WindowStart(today)); err != nil {
		return nil, err
	}
	if d.PHQ9, err = s.repo.ListPHQ9(ctx, p.PatientID); err != nil {
		return nil, err
	}
	if d.Adherence, err = s.repo.ListAdherence(ctx, p.PatientID); err != nil {
		return nil, err
	}
	d.AdherenceRate = AdherenceRate(d.Adherence, today)

	for _, r := range d.SideEffects {
		if !r.Severity.Known() {
			s.logger.Warn().Str("patient_id", p.PatientID).Int("severity", int(r.Severity)).
				Msg("side effect report with unknown severity")
		}
	}
	return d, nil
}

// NewPrescription validates in and builds the row to insert. Doses per day
// is always derived from the frequency.
func (s *Service) NewPrescription(patientID string, in PrescriptionInput) (*Prescription, error) {
	if patientID == "" {
		return nil, fmt.Errorf("%w: patient id is required", ErrInvalidPrescription)
	}
	if math.IsNaN(in.Dose) || math.IsInf(in.Dose, 0) || in.Dose < 0 {
		return nil, fmt.Errorf("%w: dose must be a finite number, 0 or more", ErrInvalidPrescription)
	}
	if in.Frequency < 1 {
		return nil, fmt.Errorf("%w: frequency must be at least 1 hour", ErrInvalidPrescription)
	}
	if in.Days < 1 {
		return nil, fmt.Errorf("%w: prescription days must be at least 1", ErrInvalidPrescription)
	}

	date := s.Today()
	if in.Date != "" {
		parsed := ParseCalendarDate(in.Date)
		if parsed == nil {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidPrescription)
		}
		date = *parsed
	}

	return &Prescription{
		PatientID:        patientID,
		PrescriptionDate: date,
		Dose:             in.Dose,
		Frequency:        in.Frequency,
		PrescriptionDays: in.Days,
		DayDrug:          DosesPerDay(in.Frequency),
		Note:             in.Note,
	}, nil
}

// SavePrescription appends a prescription for p and returns it with the
// patient's full history, newest first. The insert and the re-read share one
// connection so the new row is always part of the history.
func (s *Service) SavePrescription(ctx context.Context, p session.PatientContext, in PrescriptionInput) (*Prescription, []*Prescription, error) {
	rx, err := s.NewPrescription(p.PatientID, in)
	if err != nil {
		return nil, nil, err
	}

	var history []*Prescription
	err = s.repo.WithConn(ctx, func(ctx context.Context) error {
		if err := s.repo.CreatePrescription(ctx, rx); err != nil {
			return err
		}
		var err error
		history, err = s.repo.ListPrescriptions(ctx, p.PatientID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info().
		Str("patient_id", p.PatientID).
		Int64("prescription_id", rx.ID).
		Str("prescription_date", rx.PrescriptionDate.Format("2006-01-02")).
		Msg("prescription saved")
	return rx, history, nil
}

// PrescriptionHistory lists the patient's prescriptions, newest first.
func (s *Service) PrescriptionHistory(ctx context.Context, p session.PatientContext) ([]*Prescription, error) {
	return s.repo.ListPrescriptions(ctx, p.PatientID)
}

func (s *Service) Predictions(ctx context.Context, p session.PatientContext) ([]DailyPrediction, error) {
	return s.repo.ListDailyPredictions(ctx, p.PatientID)
}

// RecentSideEffects returns the reports of the last seven days.
func (s *Service) RecentSideEffects(ctx context.Context, p session.PatientContext) ([]SideEffectReport, error) {
	return s.repo.ListSideEffectsSince(ctx, p.PatientID, WindowStart(s.Today()))
}

func (s *Service) PHQ9(ctx context.Context, p session.PatientContext) ([]PHQ9Record, error) {
	return s.repo.ListPHQ9(ctx, p.PatientID)
}

func (s *Service) Adherence(ctx context.Context, p session.PatientContext) ([]AdherenceRecord, error) {
	return s.repo.ListAdherence(ctx, p.PatientID)
}
