package analysis

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/bryanwahyu/docguard/internal/application"
	"github.com/bryanwahyu/docguard/internal/domain/analyzer"
	"github.com/bryanwahyu/docguard/internal/domain/compliance"
	"github.com/bryanwahyu/docguard/internal/domain/failures"
	"github.com/bryanwahyu/docguard/internal/domain/reports"
	"github.com/bryanwahyu/docguard/internal/domain/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type backendFunc func(ctx context.Context, req analyzer.Request) ([]byte, error)

func (f backendFunc) Analyze(ctx context.Context, req analyzer.Request) ([]byte, error) {
	return f(ctx, req)
}

type memFailures struct {
	mu   sync.Mutex
	list []*failures.Failure
}

func (m *memFailures) Save(_ context.Context, f *failures.Failure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list = append(m.list, f)
	return nil
}

func (m *memFailures) ListBySession(_ context.Context, tenant, sessionID string, limit int) ([]*failures.Failure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*failures.Failure
	for _, f := range m.list {
		if f.TenantID == tenant && f.SessionID == sessionID {
			out = append(out, f)
		}
	}
	return out, nil
}

type memReports struct {
	mu   sync.Mutex
	list []*reports.Report
}

func (m *memReports) Save(_ context.Context, r *reports.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list = append(m.list, r)
	return nil
}

func (m *memReports) Get(_ context.Context, tenant string, id reports.ReportID) (*reports.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.list {
		if r.TenantID == tenant && r.ID == id {
			return r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memReports) Paginate(_ context.Context, tenant string, page, pageSize int) (reports.PaginatedResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return reports.PaginatedResult{Data: m.list, Page: page, PageSize: pageSize, Total: int64(len(m.list))}, nil
}

func (m *memReports) LatestByFingerprint(_ context.Context, tenant, fp string) (*reports.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.list) - 1; i >= 0; i-- {
		if m.list[i].TenantID == tenant && m.list[i].Fingerprint == fp {
			return m.list[i], nil
		}
	}
	return nil, nil
}

type memArchive struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (m *memArchive) Put(_ context.Context, key string, _ []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.keys = append(m.keys, key)
	return "http://archive/" + key, nil
}

var fixedNow = time.Date(2026, 5, 17, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	failures *memFailures
	reports  *memReports
	archive  *memArchive
}

func newFixture(t *testing.T, backend analyzer.Backend) *fixture {
	t.Helper()
	clock := application.ClockFunc(func() time.Time { return fixedNow })
	f := &fixture{failures: &memFailures{}, reports: &memReports{}, archive: &memArchive{}}
	store := session.NewStore(session.Options{ProgressInterval: time.Hour}, clock)
	t.Cleanup(store.CloseAll)

	seq := 0
	f.svc = &Service{
		Sessions: store,
		Backend:  backend,
		Normalizer: &compliance.Normalizer{NewID: func() string {
			seq++
			return fmt.Sprintf("ann-%d", seq)
		}},
		Reports:  f.reports,
		Failures: f.failures,
		Archive:  f.archive,
		Clock:    clock,
	}
	return f
}

const legacyPayload = `{"analysis_results":[
  {"line_number":2,"original_text":"Cash deposits accepted without ID","status":"VIOLATION","violations":2,
   "compliance_issue":"money laundering exposure","regulatory_source":"RA 9160, Section 9"},
  {"line_number":3,"original_text":"Fine","status":"COMPLIANT","violations":0}
]}`

const document = "Policy\nCash deposits accepted without ID\nFine"

func staticBackend(body string) analyzer.Backend {
	return backendFunc(func(ctx context.Context, _ analyzer.Request) ([]byte, error) {
		return []byte(body), nil
	})
}

func loaded(t *testing.T, f *fixture) session.View {
	t.Helper()
	v := f.svc.CreateSession("acme")
	_, err := f.svc.LoadDocument(LoadDocumentCommand{TenantID: "acme", SessionID: v.ID, Filename: "policy.txt", Content: document})
	require.NoError(t, err)
	return v
}

func TestLoadDocument_Validation(t *testing.T) {
	f := newFixture(t, staticBackend(legacyPayload))
	f.svc.Limits = Limits{MaxUploadBytes: 10}
	v := f.svc.CreateSession("acme")

	_, err := f.svc.LoadDocument(LoadDocumentCommand{TenantID: "acme", SessionID: v.ID, Filename: "a.txt", Content: "more than ten bytes"})
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = f.svc.LoadDocument(LoadDocumentCommand{TenantID: "acme", SessionID: v.ID, Filename: "a.pdf", Content: "short"})
	assert.ErrorIs(t, err, ErrUnsupportedType)

	got, err := f.svc.Session("acme", v.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StateEmpty, got.State)

	_, err = f.svc.LoadDocument(LoadDocumentCommand{TenantID: "acme", SessionID: "nope", Filename: "a.txt"})
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestLoadDocument_Paste(t *testing.T) {
	f := newFixture(t, staticBackend(legacyPayload))
	f.svc.Limits = Limits{MaxUploadBytes: 32}
	v := f.svc.CreateSession("acme")

	got, err := f.svc.LoadDocument(LoadDocumentCommand{TenantID: "acme", SessionID: v.ID, Content: "pasted policy text"})
	require.NoError(t, err)
	assert.Equal(t, session.StateLoaded, got.State)
	assert.Equal(t, "pasted.txt", got.Filename)

	_, err = f.svc.LoadDocument(LoadDocumentCommand{TenantID: "acme", SessionID: v.ID, Content: "pasted text longer than the limit allows"})
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = f.svc.LoadDocument(LoadDocumentCommand{TenantID: "acme", SessionID: v.ID, Content: "bad \xff bytes"})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestAnalyze_LegacyPayload(t *testing.T) {
	f := newFixture(t, staticBackend(legacyPayload))
	v := loaded(t, f)

	res, err := f.svc.Analyze(context.Background(), "acme", v.ID)
	require.NoError(t, err)
	assert.Equal(t, compliance.KindLegacyLineAnalysis, res.Format)
	assert.Equal(t, 1, res.Annotations)
	assert.Equal(t, 1, res.Summary.TotalViolations)
	assert.Equal(t, 3, res.Summary.LinesAnalyzed)
	assert.Equal(t, 66, res.Summary.ComplianceScore)
	assert.Equal(t, compliance.StatusNonCompliant, res.Summary.Status)
	assert.Equal(t, 1, res.Summary.ViolationsByCategory[compliance.CategoryAML])

	got, err := f.svc.Session("acme", v.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StateAnalyzed, got.State)
	assert.Equal(t, 100, got.Progress)

	segs, err := f.svc.Segments("acme", v.ID)
	require.NoError(t, err)
	highlighted := 0
	for _, s := range segs {
		if s.Highlighted() {
			highlighted++
		}
	}
	assert.Equal(t, 1, highlighted)
}

func TestAnalyze_TrailingNewlineNotCounted(t *testing.T) {
	f := newFixture(t, staticBackend(legacyPayload))
	v := f.svc.CreateSession("acme")
	_, err := f.svc.LoadDocument(LoadDocumentCommand{TenantID: "acme", SessionID: v.ID, Filename: "policy.txt", Content: document + "\n"})
	require.NoError(t, err)

	res, err := f.svc.Analyze(context.Background(), "acme", v.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Summary.LinesAnalyzed)
	assert.Equal(t, 66, res.Summary.ComplianceScore)
}

func TestAnalyze_BackendFailureRollsBack(t *testing.T) {
	boom := fmt.Errorf("%w: backend returned 500", analyzer.ErrAnalysisFailed)
	f := newFixture(t, backendFunc(func(context.Context, analyzer.Request) ([]byte, error) { return nil, boom }))
	v := loaded(t, f)

	_, err := f.svc.Analyze(context.Background(), "acme", v.ID)
	require.ErrorIs(t, err, analyzer.ErrAnalysisFailed)

	got, err := f.svc.Session("acme", v.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StateLoaded, got.State)
	assert.Equal(t, 0, got.Progress)
	assert.Equal(t, "policy.txt", got.Filename)

	list, err := f.svc.SessionFailures(context.Background(), "acme", v.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, failures.PhaseTransport, list[0].Phase)
	assert.Contains(t, list[0].Message, "500")
}

func TestAnalyze_UnrecognizedIsNotAnError(t *testing.T) {
	f := newFixture(t, staticBackend(`{"status":"queued","message":"try later"}`))
	v := loaded(t, f)

	res, err := f.svc.Analyze(context.Background(), "acme", v.ID)
	require.NoError(t, err)
	assert.Equal(t, compliance.KindUnrecognized, res.Format)
	assert.Contains(t, res.Notice, "try later")
	assert.Equal(t, compliance.StatusCompliant, res.Summary.Status)
	require.Len(t, f.failures.list, 1)
	assert.Equal(t, failures.PhaseNormalize, f.failures.list[0].Phase)
}

func TestAnalyze_NoContent(t *testing.T) {
	f := newFixture(t, staticBackend(legacyPayload))
	v := f.svc.CreateSession("acme")
	_, err := f.svc.Analyze(context.Background(), "acme", v.ID)
	assert.ErrorIs(t, err, session.ErrNoContent)
}

func TestAnalyze_SupersededByUpload(t *testing.T) {
	started := make(chan struct{})
	f := newFixture(t, backendFunc(func(ctx context.Context, _ analyzer.Request) ([]byte, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	v := loaded(t, f)

	errc := make(chan error, 1)
	go func() {
		_, err := f.svc.Analyze(context.Background(), "acme", v.ID)
		errc <- err
	}()
	<-started

	_, err := f.svc.Analyze(context.Background(), "acme", v.ID)
	assert.ErrorIs(t, err, session.ErrAnalysisInFlight)

	_, err = f.svc.LoadDocument(LoadDocumentCommand{TenantID: "acme", SessionID: v.ID, Filename: "new.md", Content: "fresh"})
	require.NoError(t, err)

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, session.ErrStaleRun)
	case <-time.After(2 * time.Second):
		t.Fatal("stale run was not cancelled")
	}
	got, err := f.svc.Session("acme", v.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StateLoaded, got.State)
	assert.Equal(t, "new.md", got.Filename)
	assert.Empty(t, f.failures.list)
}

func TestCancelAnalysis(t *testing.T) {
	started := make(chan struct{})
	f := newFixture(t, backendFunc(func(ctx context.Context, _ analyzer.Request) ([]byte, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	v := loaded(t, f)

	errc := make(chan error, 1)
	go func() {
		_, err := f.svc.Analyze(context.Background(), "acme", v.ID)
		errc <- err
	}()
	<-started

	ok, err := f.svc.CancelAnalysis("acme", v.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.ErrorIs(t, <-errc, session.ErrStaleRun)

	ok, err = f.svc.CancelAnalysis("acme", v.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSelectAndSearch(t *testing.T) {
	f := newFixture(t, staticBackend(legacyPayload))
	v := loaded(t, f)
	_, err := f.svc.Analyze(context.Background(), "acme", v.ID)
	require.NoError(t, err)

	a, err := f.svc.Select("acme", v.ID, "ann-1")
	require.NoError(t, err)
	assert.Equal(t, 2, a.LineNumber)

	_, err = f.svc.Select("acme", v.ID, "missing")
	assert.ErrorIs(t, err, session.ErrAnnotationNotFound)

	hits, err := f.svc.Search("acme", v.ID, "ra 9160")
	require.NoError(t, err)
	assert.Len(t, hits, 1)
	hits, err = f.svc.Search("acme", v.ID, "securities")
	require.NoError(t, err)
	assert.Empty(t, hits)

	// search leaves the selection alone
	got, _ := f.svc.Session("acme", v.ID)
	require.NotNil(t, got.Selected)
	assert.Equal(t, "ann-1", got.Selected.ID)

	require.NoError(t, f.svc.ClearSelection("acme", v.ID))
	got, _ = f.svc.Session("acme", v.ID)
	assert.Nil(t, got.Selected)
}

func TestExportImportRoundTrip(t *testing.T) {
	f := newFixture(t, staticBackend(legacyPayload))
	v := loaded(t, f)
	_, err := f.svc.Analyze(context.Background(), "acme", v.ID)
	require.NoError(t, err)

	out, err := f.svc.Export(context.Background(), "acme", v.ID)
	require.NoError(t, err)
	assert.Equal(t, "compliance-report-2026-05-17.json", out.Filename)
	require.NotNil(t, out.Report)
	assert.Nil(t, out.Previous)
	assert.Equal(t, Fingerprint(document), out.Report.Fingerprint)
	assert.Contains(t, out.Report.ArchiveURL, "acme/reports/")
	require.Len(t, f.archive.keys, 1)

	var env Envelope
	require.NoError(t, json.Unmarshal(out.Body, &env))
	require.Len(t, env.Annotations, 1)

	// re-import into a fresh session
	w := f.svc.CreateSession("acme")
	res, err := f.svc.Import(context.Background(), ImportCommand{TenantID: "acme", SessionID: w.ID, Filename: out.Filename, Body: out.Body})
	require.NoError(t, err)
	assert.Equal(t, compliance.KindExported, res.Format)

	got, err := f.svc.Session("acme", w.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StateAnalyzed, got.State)
	assert.Equal(t, env.Annotations, got.Annotations)

	// second export of the same document finds the first one
	again, err := f.svc.Export(context.Background(), "acme", v.ID)
	require.NoError(t, err)
	require.NotNil(t, again.Previous)
	assert.Equal(t, out.Report.ID, again.Previous.ID)
}

func TestExport_ArchiveFailureStillDownloads(t *testing.T) {
	f := newFixture(t, staticBackend(legacyPayload))
	f.archive.err = errors.New("bucket gone")
	v := loaded(t, f)
	_, err := f.svc.Analyze(context.Background(), "acme", v.ID)
	require.NoError(t, err)

	out, err := f.svc.Export(context.Background(), "acme", v.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, out.Body)
	assert.Nil(t, out.Report)
	assert.Empty(t, f.reports.list)
	require.Len(t, f.failures.list, 1)
	assert.Equal(t, failures.PhaseExport, f.failures.list[0].Phase)
}

func TestExport_NothingAnalysed(t *testing.T) {
	f := newFixture(t, staticBackend(legacyPayload))
	v := loaded(t, f)
	_, err := f.svc.Export(context.Background(), "acme", v.ID)
	assert.ErrorIs(t, err, session.ErrNoContent)
}

func TestImport_Validation(t *testing.T) {
	f := newFixture(t, staticBackend(legacyPayload))
	v := f.svc.CreateSession("acme")

	_, err := f.svc.Import(context.Background(), ImportCommand{TenantID: "acme", SessionID: v.ID, Body: []byte("  ")})
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = f.svc.Import(context.Background(), ImportCommand{TenantID: "acme", SessionID: v.ID, Body: []byte("{oops")})
	assert.ErrorIs(t, err, ErrMalformedJSON)

	_, err = f.svc.Import(context.Background(), ImportCommand{TenantID: "acme", SessionID: v.ID, Filename: "r.txt", Body: []byte("{}")})
	assert.ErrorIs(t, err, ErrUnsupportedType)

	got, _ := f.svc.Session("acme", v.ID)
	assert.Equal(t, session.StateEmpty, got.State)
}

func TestImport_WithoutDocumentUsesHighestLine(t *testing.T) {
	f := newFixture(t, staticBackend(legacyPayload))
	v := f.svc.CreateSession("acme")

	res, err := f.svc.Import(context.Background(), ImportCommand{TenantID: "acme", SessionID: v.ID, Body: []byte(legacyPayload)})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Summary.LinesAnalyzed)
	assert.Equal(t, 50, res.Summary.ComplianceScore)
}

func TestCloseSession(t *testing.T) {
	f := newFixture(t, staticBackend(legacyPayload))
	v := loaded(t, f)
	require.NoError(t, f.svc.CloseSession("acme", v.ID))
	_, err := f.svc.Session("acme", v.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}
