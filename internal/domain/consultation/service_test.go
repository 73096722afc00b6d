package consultation

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/consult/internal/platform/session"
)

type connKey struct{}

// mockRepo keeps per-patient rows in memory. Calls made inside WithConn see
// a context marker so tests can check they shared the connection.
type mockRepo struct {
	predictions   map[string][]DailyPrediction
	info          map[string]*PatientInfo
	pk            map[string]*PKParam
	sideEffects   map[string][]SideEffectReport
	phq9          map[string][]PHQ9Record
	adherence     map[string][]AdherenceRecord
	prescriptions []*Prescription
	nextID        int64

	calls        int
	sinceArg     time.Time
	createInConn bool
	listInConn   bool
	err          error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		predictions: make(map[string][]DailyPrediction),
		info:        make(map[string]*PatientInfo),
		pk:          make(map[string]*PKParam),
		sideEffects: make(map[string][]SideEffectReport),
		phq9:        make(map[string][]PHQ9Record),
		adherence:   make(map[string][]AdherenceRecord),
	}
}

func (m *mockRepo) hit() error {
	m.calls++
	return m.err
}

func (m *mockRepo) WithConn(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := m.hit(); err != nil {
		return err
	}
	return fn(context.WithValue(ctx, connKey{}, true))
}

func (m *mockRepo) ListDailyPredictions(_ context.Context, id string) ([]DailyPrediction, error) {
	return m.predictions[id], m.hit()
}

func (m *mockRepo) GetPatientInfo(_ context.Context, id string) (*PatientInfo, error) {
	return m.info[id], m.hit()
}

func (m *mockRepo) GetPKParam(_ context.Context, id string) (*PKParam, error) {
	return m.pk[id], m.hit()
}

func (m *mockRepo) GetLatestPrescription(ctx context.Context, id string) (*Prescription, error) {
	list, err := m.ListPrescriptions(ctx, id)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

func (m *mockRepo) ListSideEffectsSince(_ context.Context, id string, since time.Time) ([]SideEffectReport, error) {
	m.sinceArg = since
	var out []SideEffectReport
	for _, r := range m.sideEffects[id] {
		if !r.RecordDate.Before(since) {
			out = append(out, r)
		}
	}
	return out, m.hit()
}

func (m *mockRepo) ListPHQ9(_ context.Context, id string) ([]PHQ9Record, error) {
	return m.phq9[id], m.hit()
}

func (m *mockRepo) ListAdherence(_ context.Context, id string) ([]AdherenceRecord, error) {
	return m.adherence[id], m.hit()
}

func (m *mockRepo) CreatePrescription(ctx context.Context, p *Prescription) error {
	if err := m.hit(); err != nil {
		return err
	}
	m.createInConn = ctx.Value(connKey{}) != nil
	m.nextID++
	p.ID = m.nextID
	cp := *p
	m.prescriptions = append(m.prescriptions, &cp)
	return nil
}

func (m *mockRepo) ListPrescriptions(ctx context.Context, id string) ([]*Prescription, error) {
	if err := m.hit(); err != nil {
		return nil, err
	}
	m.listInConn = ctx.Value(connKey{}) != nil
	var out []*Prescription
	for _, p := range m.prescriptions {
		if p.PatientID == id {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].PrescriptionDate.Equal(out[j].PrescriptionDate) {
			return out[i].PrescriptionDate.After(out[j].PrescriptionDate)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

var (
	testToday   = day(2024, 5, 20)
	testPatient = session.PatientContext{PatientID: "P1", Name: "홍길동", BirthDate: "1980-01-02", FirstVisit: "2024-01-05"}
)

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	svc := NewService(repo, time.UTC, zerolog.Nop())
	svc.now = func() time.Time { return testToday.Add(10 * time.Hour) }
	return svc, repo
}

func TestService_Today(t *testing.T) {
	svc, _ := newTestService()
	if !svc.Today().Equal(testToday) {
		t.Errorf("expected %v, got %v", testToday, svc.Today())
	}
	form := svc.DefaultForm()
	if !form.Date.Equal(testToday) || form.Frequency != 1 || form.Days != 1 || form.DayDrug != 24 {
		t.Errorf("unexpected default form %+v", form)
	}
}

func TestService_NewPrescription_DerivesDosesPerDay(t *testing.T) {
	svc, _ := newTestService()
	for _, f := range []int{1, 3, 7, 8, 12, 24, 36} {
		rx, err := svc.NewPrescription("P1", PrescriptionInput{Dose: 50, Frequency: f, Days: 7})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rx.DayDrug != 24/float64(f) {
			t.Errorf("frequency %d: expected %v, got %v", f, 24/float64(f), rx.DayDrug)
		}
		if !rx.PrescriptionDate.Equal(testToday) {
			t.Errorf("expected default date today, got %v", rx.PrescriptionDate)
		}
	}
}

func TestService_NewPrescription_Validation(t *testing.T) {
	svc, _ := newTestService()
	tests := []struct {
		name string
		id   string
		in   PrescriptionInput
	}{
		{"negative dose", "P1", PrescriptionInput{Dose: -1, Frequency: 8, Days: 1}},
		{"NaN dose", "P1", PrescriptionInput{Dose: math.NaN(), Frequency: 8, Days: 1}},
		{"infinite dose", "P1", PrescriptionInput{Dose: math.Inf(1), Frequency: 8, Days: 1}},
		{"zero frequency", "P1", PrescriptionInput{Dose: 1, Frequency: 0, Days: 1}},
		{"zero days", "P1", PrescriptionInput{Dose: 1, Frequency: 8, Days: 0}},
		{"bad date", "P1", PrescriptionInput{Date: "20/05/2024", Dose: 1, Frequency: 8, Days: 1}},
		{"no patient", "", PrescriptionInput{Dose: 1, Frequency: 8, Days: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.NewPrescription(tt.id, tt.in)
			if !errors.Is(err, ErrInvalidPrescription) {
				t.Errorf("expected ErrInvalidPrescription, got %v", err)
			}
		})
	}
	if _, err := svc.NewPrescription("P1", PrescriptionInput{Dose: 0, Frequency: 1, Days: 1}); err != nil {
		t.Errorf("minimum values must be accepted: %v", err)
	}
}

func TestService_SavePrescription_ReadYourWrite(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	repo.prescriptions = []*Prescription{
		{ID: 1, PatientID: "P1", PrescriptionDate: day(2024, 5, 1), Dose: 25, Frequency: 12, PrescriptionDays: 7, DayDrug: 2},
		{ID: 2, PatientID: "P2", PrescriptionDate: day(2024, 5, 30), Dose: 10, Frequency: 24, PrescriptionDays: 7, DayDrug: 1},
	}
	repo.nextID = 2

	rx, history, err := svc.SavePrescription(ctx, testPatient, PrescriptionInput{
		Date: "2024-05-20", Dose: 50, Frequency: 8, Days: 14, Note: "식후 복용",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repo.createInConn || !repo.listInConn {
		t.Error("expected insert and re-read on the same connection")
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 rows for P1, got %d", len(history))
	}
	if history[0].ID != rx.ID {
		t.Errorf("expected new row first, got id %d", history[0].ID)
	}
	if history[0].DayDrug != 3 || history[0].Note != "식후 복용" {
		t.Errorf("unexpected stored row %+v", history[0])
	}
	for _, p := range history {
		if p.PatientID != "P1" {
			t.Errorf("history leaked patient %s", p.PatientID)
		}
	}
}

func TestService_SavePrescription_SameDateNewestFirst(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	in := PrescriptionInput{Date: "2024-05-20", Dose: 10, Frequency: 12, Days: 3}
	first, _, err := svc.SavePrescription(ctx, testPatient, in)
	if err != nil {
		t.Fatal(err)
	}
	second, history, err := svc.SavePrescription(ctx, testPatient, in)
	if err != nil {
		t.Fatal(err)
	}
	if history[0].ID != second.ID || history[1].ID != first.ID {
		t.Errorf("expected insertion order tie-break, got %d,%d", history[0].ID, history[1].ID)
	}
	if len(repo.prescriptions) != 2 {
		t.Errorf("expected 2 stored rows, got %d", len(repo.prescriptions))
	}
}

func TestService_SavePrescription_InvalidSkipsStore(t *testing.T) {
	svc, repo := newTestService()
	_, _, err := svc.SavePrescription(context.Background(), testPatient, PrescriptionInput{Frequency: 0, Days: 1})
	if !errors.Is(err, ErrInvalidPrescription) {
		t.Fatalf("expected ErrInvalidPrescription, got %v", err)
	}
	if repo.calls != 0 {
		t.Errorf("expected no store calls, got %d", repo.calls)
	}
}

func TestService_SavePrescription_StoreError(t *testing.T) {
	svc, repo := newTestService()
	repo.err = errors.New("connection reset")
	if _, _, err := svc.SavePrescription(context.Background(), testPatient, PrescriptionInput{Frequency: 8, Days: 1}); err == nil {
		t.Error("expected store error")
	}
}

func TestService_Dashboard(t *testing.T) {
	svc, repo := newTestService()
	sex := 1
	repo.info["P1"] = &PatientInfo{Name: "홍길동", Sex: &sex}
	repo.predictions["P1"] = []DailyPrediction{{Date: ptrTime(day(2024, 5, 19)), PredDose: ptrFloat(50)}}
	repo.sideEffects["P1"] = []SideEffectReport{
		{RecordDate: day(2024, 5, 19), Symptom: "두통", Severity: 2},
		{RecordDate: day(2024, 5, 1), Symptom: "오심", Severity: 1},
	}
	repo.adherence["P1"] = []AdherenceRecord{
		{RecordDate: ptrTime(day(2024, 5, 10)), PDC: ptrFloat(0.5)},
		{RecordDate: ptrTime(day(2024, 5, 17)), PDC: ptrFloat(0.8)},
		{RecordDate: ptrTime(day(2024, 5, 19)), PDC: ptrFloat(0.6)},
	}
	repo.info["P2"] = &PatientInfo{Name: "이몽룡"}

	d, err := svc.Dashboard(context.Background(), testPatient)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Info == nil || d.Info.Name != "홍길동" {
		t.Errorf("unexpected info %+v", d.Info)
	}
	if d.PK != nil || d.Latest != nil {
		t.Error("expected missing panels to be nil")
	}
	if !repo.sinceArg.Equal(day(2024, 5, 13)) {
		t.Errorf("expected side effects since 2024-05-13, got %v", repo.sinceArg)
	}
	if len(d.SideEffects) != 1 || d.SideEffects[0].Symptom != "두통" {
		t.Errorf("unexpected side effects %+v", d.SideEffects)
	}
	if d.AdherenceRate != 70 {
		t.Errorf("expected adherence 70, got %v", d.AdherenceRate)
	}
	if len(d.Adherence) != 3 {
		t.Errorf("expected full adherence history, got %d", len(d.Adherence))
	}
	if d.Patient != testPatient || !d.Today.Equal(testToday) {
		t.Errorf("unexpected patient/today %+v %v", d.Patient, d.Today)
	}
}

func TestService_Dashboard_StoreErrorAborts(t *testing.T) {
	svc, repo := newTestService()
	repo.err = errors.New("connection refused")
	if _, err := svc.Dashboard(context.Background(), testPatient); err == nil {
		t.Error("expected store error")
	}
	if repo.calls != 1 {
		t.Errorf("expected to stop after first failure, got %d calls", repo.calls)
	}
}
