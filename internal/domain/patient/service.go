package patient

import (
	"context"

	"github.com/ehr/consult/internal/platform/session"
)

// DefaultSearchLimit caps the number of patients a search returns.
const DefaultSearchLimit = 20

type Service struct {
	repo  Repository
	limit int
}

func NewService(repo Repository, limit int) *Service {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	return &Service{repo: repo, limit: limit}
}

func (s *Service) Limit() int {
	return s.limit
}

// Search finds patients whose name contains query. The query is bound as a
// parameter; an empty query lists the most recently seen patients.
func (s *Service) Search(ctx context.Context, query string) ([]*Summary, error) {
	return s.SearchN(ctx, query, s.limit)
}

// SearchN is Search with a caller-chosen limit, clamped to the service limit.
func (s *Service) SearchN(ctx context.Context, query string, limit int) ([]*Summary, error) {
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}
	pattern := ""
	if query != "" {
		pattern = "%" + query + "%"
	}
	return s.repo.Search(ctx, pattern, limit)
}

// SelectFirst returns the first flagged row in display order. Additional
// flags are ignored.
func SelectFirst(rows []GridRow) (session.PatientContext, bool) {
	for _, r := range rows {
		if r.Selected {
			return session.PatientContext{
				PatientID:  r.PatientID,
				Name:       r.Name,
				BirthDate:  r.BirthDate,
				FirstVisit: r.FirstVisitDate,
			}, true
		}
	}
	return session.PatientContext{}, false
}
