package sandbox

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/consult/internal/platform/db/dbtest"
)

func countRows(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()
	var n int
	if err := pool.QueryRow(context.Background(), `SELECT count(*) FROM `+table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestLoad_ReplacesDemoRows(t *testing.T) {
	pool := dbtest.Open(t)
	ctx := context.Background()
	ds, result := newTestSeeder().Generate()

	for i := 0; i < 2; i++ {
		if err := Load(ctx, pool, ds); err != nil {
			t.Fatalf("load %d: %v", i+1, err)
		}
	}

	want := map[string]int{
		"patient":         result.Patients,
		"patient_info":    result.Patients,
		"pk_param":        result.Patients,
		"daily_predict":   result.Predictions,
		"asec_response":   result.SideEffects,
		"daily_phq9":      result.PHQ9,
		"patient_daily":   result.Adherence,
		"patient_predict": result.Prescriptions,
		"side_effect":     len(SideEffectCodes),
	}
	for table, n := range want {
		if got := countRows(t, pool, table); got != n {
			t.Errorf("%s: expected %d rows after seeding twice, got %d", table, n, got)
		}
	}
}
