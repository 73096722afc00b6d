package patient

import "context"

type Repository interface {
	// Search returns up to limit patients ordered by first visit, newest
	// first. An empty pattern means no name filter; otherwise pattern is a
	// LIKE pattern matched against the patient's name.
	Search(ctx context.Context, pattern string, limit int) ([]*Summary, error)
}
