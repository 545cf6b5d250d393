package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	domain "github.com/bryanwahyu/docguard/internal/domain/reports"
)

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

const reportColumns = `id, tenant_id, session_id, filename, fingerprint, status,
       compliance_score, total_violations, COALESCE(archive_url, ''), result_json, created_at`

// Save inserts or updates a report record
func (r *ReportRepository) Save(ctx context.Context, rep *domain.Report) error {
	const q = `
INSERT INTO compliance_reports
  (id, tenant_id, session_id, filename, fingerprint, status,
   compliance_score, total_violations, archive_url, result_json, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  status=VALUES(status), compliance_score=VALUES(compliance_score),
  total_violations=VALUES(total_violations), archive_url=VALUES(archive_url),
  result_json=VALUES(result_json);
`
	// Ensure non-nullable fields have safe defaults
	result := rep.Result
	if strings.TrimSpace(result) == "" {
		// result_json column requires valid JSON; use empty object
		result = "{}"
	}
	createdAt := rep.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, q,
		rep.ID, stringOrDash(rep.TenantID), stringOrDash(rep.SessionID), stringOrDash(rep.Filename),
		rep.Fingerprint, stringOrDash(rep.Status),
		rep.ComplianceScore, rep.TotalViolations, rep.ArchiveURL, result, createdAt,
	)
	return err
}

// Get by ID + Tenant
func (r *ReportRepository) Get(ctx context.Context, tenant string, id domain.ReportID) (*domain.Report, error) {
	q := `SELECT ` + reportColumns + `
FROM compliance_reports
WHERE tenant_id=? AND id=? LIMIT 1;`
	return scanReport(r.db.QueryRowContext(ctx, q, tenant, id))
}

// Paginate returns a page of reports ordered by created_at desc
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
LIMIT ? OFFSET ?;`
	rows, err := r.db.QueryContext(ctx, q, tenant, pageSize, offset)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Report, 0, pageSize)
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return domain.PaginatedResult{}, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("iterating rows: %w", err)
	}

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

// LatestByFingerprint returns the newest report for the same document content
func (r *ReportRepository) LatestByFingerprint(ctx context.Context, tenant, fingerprint string) (*domain.Report, error) {
	q := `SELECT ` + reportColumns + `
FROM compliance_reports
WHERE tenant_id=? AND fingerprint=?
ORDER BY created_at DESC, id DESC
LIMIT 1;`
	rep, err := scanReport(r.db.QueryRowContext(ctx, q, tenant, fingerprint))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rep, err
}

func scanReport(row rowScanner) (*domain.Report, error) {
	var rep domain.Report
	if err := row.Scan(
		&rep.ID, &rep.TenantID, &rep.SessionID, &rep.Filename, &rep.Fingerprint, &rep.Status,
		&rep.ComplianceScore, &rep.TotalViolations, &rep.ArchiveURL, &rep.Result, &rep.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &rep, nil
}
