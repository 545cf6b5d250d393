package sqlite

import (
	"context"
	"database/sql"
	"strings"

	domain "github.com/bryanwahyu/docguard/internal/domain/failures"
)

type FailureRepository struct{ db *sql.DB }

func NewFailureRepository(db *sql.DB) *FailureRepository { return &FailureRepository{db: db} }

func (r *FailureRepository) Save(ctx context.Context, f *domain.Failure) error {
	const q = `
INSERT INTO compliance_failures
  (tenant_id, session_id, phase, message, details_json, created_at)
VALUES (?,?,?,?,?,?)`
	msg := f.Message
	if strings.TrimSpace(msg) == "" {
		msg = "-"
	}
	res, err := r.db.ExecContext(ctx, q,
		stringOrDash(f.TenantID), stringOrDash(f.SessionID), stringOrDash(string(f.Phase)),
		msg, validJSON(f.DetailsJSON), toMillis(f.CreatedAt),
	)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		f.ID = id
	}
	return nil
}

func (r *FailureRepository) ListBySession(ctx context.Context, tenant, sessionID string, limit int) ([]*domain.Failure, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tenant_id, session_id, phase, message, details_json, created_at
FROM compliance_failures
WHERE tenant_id = ? AND session_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, tenant, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Failure
	for rows.Next() {
		var (
			f       domain.Failure
			phase   string
			created int64
		)
		if err := rows.Scan(&f.ID, &f.TenantID, &f.SessionID, &phase, &f.Message, &f.DetailsJSON, &created); err != nil {
			return nil, err
		}
		f.Phase = domain.Phase(phase)
		f.CreatedAt = fromMillis(created)
		out = append(out, &f)
	}
	return out, rows.Err()
}
