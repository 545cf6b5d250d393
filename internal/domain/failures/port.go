package failures

import "context"

// Repository defines persistence for analysis failures
type Repository interface {
	Save(ctx context.Context, f *Failure) error
	ListBySession(ctx context.Context, tenant, sessionID string, limit int) ([]*Failure, error)
}
