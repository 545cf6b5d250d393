package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	domain "github.com/bryanwahyu/docguard/internal/domain/reports"
)

type ReportRepository struct{ db *sql.DB }

func NewReportRepository(db *sql.DB) *ReportRepository { return &ReportRepository{db: db} }

const reportColumns = `id, tenant_id, session_id, filename, fingerprint, status,
       compliance_score, total_violations, COALESCE(archive_url, ''), result_json, created_at`

func (r *ReportRepository) Save(ctx context.Context, rep *domain.Report) error {
	const q = `
INSERT INTO compliance_reports
  (id, tenant_id, session_id, filename, fingerprint, status,
   compliance_score, total_violations, archive_url, result_json, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT (id) DO UPDATE SET
  status = excluded.status,
  compliance_score = excluded.compliance_score,
  total_violations = excluded.total_violations,
  archive_url = excluded.archive_url,
  result_json = excluded.result_json;`

	result := rep.Result
	if strings.TrimSpace(result) == "" {
		result = "{}"
	}
	_, err := r.db.ExecContext(ctx, q,
		string(rep.ID), stringOrDash(rep.TenantID), stringOrDash(rep.SessionID), stringOrDash(rep.Filename),
		rep.Fingerprint, stringOrDash(rep.Status),
		rep.ComplianceScore, rep.TotalViolations, rep.ArchiveURL, result, toMillis(rep.CreatedAt),
	)
	return err
}

func (r *ReportRepository) Get(ctx context.Context, tenant string, id domain.ReportID) (*domain.Report, error) {
	q := `SELECT ` + reportColumns + ` FROM compliance_reports WHERE tenant_id=? AND id=? LIMIT 1`
	return scanReport(r.db.QueryRowContext(ctx, q, tenant, string(id)))
}

func (r *ReportRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) (domain.PaginatedResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	q := `SELECT ` + reportColumns + `
FROM compliance_reports
WHERE tenant_id=?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, tenant, pageSize, offset)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("querying reports: %w", err)
	}
	out := make([]*domain.Report, 0, pageSize)
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			rows.Close()
			return domain.PaginatedResult{}, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return domain.PaginatedResult{}, fmt.Errorf("iterating rows: %w", err)
	}
	// single connection: release it before the count query
	rows.Close()

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM compliance_reports WHERE tenant_id = ?`, tenant).Scan(&total); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("getting total count: %w", err)
	}
	return domain.PaginatedResult{
		Data:       out,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

func (r *ReportRepository) LatestByFingerprint(ctx context.Context, tenant, fingerprint string) (*domain.Report, error) {
	q := `SELECT ` + reportColumns + `
FROM compliance_reports
WHERE tenant_id=? AND fingerprint=?
ORDER BY created_at DESC, id DESC
LIMIT 1`
	rep, err := scanReport(r.db.QueryRowContext(ctx, q, tenant, fingerprint))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rep, err
}

func scanReport(row rowScanner) (*domain.Report, error) {
	var (
		rep     domain.Report
		id      string
		created int64
	)
	if err := row.Scan(
		&id, &rep.TenantID, &rep.SessionID, &rep.Filename, &rep.Fingerprint, &rep.Status,
		&rep.ComplianceScore, &rep.TotalViolations, &rep.ArchiveURL, &rep.Result, &created,
	); err != nil {
		return nil, err
	}
	rep.ID = domain.ReportID(id)
	rep.CreatedAt = fromMillis(created)
	return &rep, nil
}
