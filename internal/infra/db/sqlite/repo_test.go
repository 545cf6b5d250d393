package sqlite

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/docguard/internal/domain/failures"
	"github.com/bryanwahyu/docguard/internal/domain/reports"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := Connect(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(ctx, db))
	return db
}

func TestReportRepository_SaveGet(t *testing.T) {
	ctx := context.Background()
	repo := NewReportRepository(openTestDB(t))
	at := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	rep := &reports.Report{
		ID: "r-1", TenantID: "acme", SessionID: "s-1", Filename: "policy.txt",
		Fingerprint: "abc", Status: "NON-COMPLIANT", ComplianceScore: 70,
		TotalViolations: 3, Result: `{"annotations":[]}`, CreatedAt: at,
	}
	require.NoError(t, repo.Save(ctx, rep))

	got, err := repo.Get(ctx, "acme", "r-1")
	require.NoError(t, err)
	assert.Equal(t, reports.ReportID("r-1"), got.ID)
	assert.Equal(t, 70, got.ComplianceScore)
	assert.Equal(t, "", got.ArchiveURL)
	assert.True(t, at.Equal(got.CreatedAt))

	// upsert keeps the row and updates the archive url
	rep.ArchiveURL = "http://minio/reports/r-1.json"
	require.NoError(t, repo.Save(ctx, rep))
	got, err = repo.Get(ctx, "acme", "r-1")
	require.NoError(t, err)
	assert.Equal(t, "http://minio/reports/r-1.json", got.ArchiveURL)

	_, err = repo.Get(ctx, "other", "r-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestReportRepository_Paginate(t *testing.T) {
	ctx := context.Background()
	repo := NewReportRepository(openTestDB(t))
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Save(ctx, &reports.Report{
			ID: reports.ReportID(id), TenantID: "acme", Filename: id + ".txt",
			Fingerprint: "fp", Status: "COMPLIANT", CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	page, err := repo.Paginate(ctx, "acme", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Data, 2)
	assert.Equal(t, reports.ReportID("c"), page.Data[0].ID)
	assert.Equal(t, reports.ReportID("b"), page.Data[1].ID)

	page, err = repo.Paginate(ctx, "acme", 2, 2)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, reports.ReportID("a"), page.Data[0].ID)

	latest, err := repo.LatestByFingerprint(ctx, "acme", "fp")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, reports.ReportID("c"), latest.ID)

	none, err := repo.LatestByFingerprint(ctx, "acme", "missing")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestFailureRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewFailureRepository(openTestDB(t))
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first := &failures.Failure{TenantID: "acme", SessionID: "s-1", Phase: failures.PhaseTransport,
		Message: "backend returned 500", DetailsJSON: "not json", CreatedAt: base}
	require.NoError(t, repo.Save(ctx, first))
	assert.NotZero(t, first.ID)
	require.NoError(t, repo.Save(ctx, &failures.Failure{TenantID: "acme", SessionID: "s-1",
		Phase: failures.PhaseImport, CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, repo.Save(ctx, &failures.Failure{TenantID: "acme", SessionID: "s-2",
		Phase: failures.PhaseImport, Message: "x", CreatedAt: base}))

	list, err := repo.ListBySession(ctx, "acme", "s-1", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, failures.PhaseImport, list[0].Phase)
	assert.Equal(t, "-", list[0].Message)
	assert.Equal(t, "{}", list[0].DetailsJSON)
	assert.JSONEq(t, `{"raw":"not json"}`, list[1].DetailsJSON)
	assert.True(t, base.Equal(list[1].CreatedAt))
}
