package patient

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/consult/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const summaryCols = `p.patient_id, i.name,
	COALESCE(to_char(i.birth_date, 'YYYY-MM-DD'), ''),
	COALESCE(to_char(i.first_visit_date, 'YYYY-MM-DD'), '')`

func scanSummary(row pgx.Row) (*Summary, error) {
	var s Summary
	err := row.Scan(&s.PatientID, &s.Name, &s.BirthDate, &s.FirstVisitDate)
	return &s, err
}

func (r *repoPG) Search(ctx context.Context, pattern string, limit int) ([]*Summary, error) {
	query := `SELECT ` + summaryCols + `
		FROM patient p
		JOIN patient_info i ON p.patient_id = i.patient_id`
	var args []interface{}
	if pattern != "" {
		query += ` WHERE i.name LIKE $1`
		args = append(args, pattern)
	}
	query += fmt.Sprintf(` ORDER BY i.first_visit_date DESC NULLS LAST LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := db.Resolve(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search patients: %w", err)
	}
	defer rows.Close()

	var items []*Summary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		items = append(items, s)
	}
	return items, rows.Err()
}
