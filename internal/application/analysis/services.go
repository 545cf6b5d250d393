package analysis

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/bryanwahyu/docguard/internal/application"
	"github.com/bryanwahyu/docguard/internal/domain/analyzer"
	"github.com/bryanwahyu/docguard/internal/domain/compliance"
	"github.com/bryanwahyu/docguard/internal/domain/failures"
	"github.com/bryanwahyu/docguard/internal/domain/overlay"
	"github.com/bryanwahyu/docguard/internal/domain/reports"
	"github.com/bryanwahyu/docguard/internal/domain/session"
)

// Service implements the use-cases of a document session.
// Service is safe for concurrent use; per-session state is guarded by the
// session itself.
type Service struct {
	Sessions   *session.Store
	Backend    analyzer.Backend
	Normalizer *compliance.Normalizer
	Reports    reports.Repository
	Failures   failures.Repository
	// Archive is optional; exports are not archived when it is nil.
	Archive reports.ArchiveStore
	Clock   application.Clock
	Log     *zap.Logger
	Limits  Limits
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *Service) normalizer() *compliance.Normalizer {
	if s.Normalizer == nil {
		return compliance.NewNormalizer()
	}
	return s.Normalizer
}

//
// ==== USE CASES ====
//

// CreateSession opens an empty session.
func (s *Service) CreateSession(tenant string) session.View {
	sess := s.Sessions.Create(tenant)
	s.log().Debug("session created", zap.String("tenant", tenant), zap.String("session", sess.ID))
	return sess.Snapshot()
}

// Session ambil 1 session by id
func (s *Service) Session(tenant, id string) (session.View, error) {
	sess, err := s.Sessions.Get(tenant, id)
	if err != nil {
		return session.View{}, err
	}
	return sess.Snapshot(), nil
}

// CloseSession cancels any in-flight run and forgets the session.
func (s *Service) CloseSession(tenant, id string) error {
	return s.Sessions.Delete(tenant, id)
}

// pastedFilename names documents pasted without a file.
const pastedFilename = "pasted.txt"

// LoadDocumentCommand is a text upload. Filename is empty for pasted text.
type LoadDocumentCommand struct {
	TenantID  string
	SessionID string
	Filename  string
	Content   string
}

// LoadDocument validates and installs a document. Validation happens
// before the session is touched.
func (s *Service) LoadDocument(cmd LoadDocumentCommand) (session.View, error) {
	sess, err := s.Sessions.Get(cmd.TenantID, cmd.SessionID)
	if err != nil {
		return session.View{}, err
	}
	if err := s.Limits.withDefaults().checkDocument(cmd.Filename, cmd.Content); err != nil {
		return session.View{}, err
	}
	filename := cmd.Filename
	if filename == "" {
		filename = pastedFilename
	}
	sess.Load(session.Document{Filename: filename, Content: cmd.Content}, s.Clock.Now())
	return sess.Snapshot(), nil
}

// AnalyzeResult is what the caller gets back after a run.
type AnalyzeResult struct {
	SessionID   string                     `json:"sessionId"`
	Format      compliance.PayloadKind     `json:"format"`
	Notice      string                     `json:"notice,omitempty"`
	Summary     compliance.AnalysisSummary `json:"summary"`
	Annotations int                        `json:"annotations"`
	Sections    int                        `json:"sections"`
}

// Analyze sends the current document to the backend and installs the
// normalized result. The run is tied to ctx and to the session: loading a
// new document or closing the session cancels it.
func (s *Service) Analyze(ctx context.Context, tenant, id string) (AnalyzeResult, error) {
	sess, err := s.Sessions.Get(tenant, id)
	if err != nil {
		return AnalyzeResult{}, err
	}
	runCtx, runID, doc, err := sess.Begin(ctx, s.Clock.Now())
	if err != nil {
		return AnalyzeResult{}, err
	}
	log := s.log().With(zap.String("tenant", tenant), zap.String("session", id), zap.Uint64("run", runID))
	log.Info("analysis started", zap.String("filename", doc.Filename), zap.Int("bytes", len(doc.Content)))

	// jalankan backend sekali, tanpa retry
	raw, err := s.Backend.Analyze(runCtx, analyzer.Request{Filename: doc.Filename, Content: doc.Content})
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			// superseded by an upload, a cancel or a close
			log.Info("analysis run superseded")
			return AnalyzeResult{}, session.ErrStaleRun
		}
		if ferr := sess.Fail(runID, err, s.Clock.Now()); ferr != nil {
			return AnalyzeResult{}, ferr
		}
		log.Warn("analysis failed", zap.Error(err))
		s.recordFailure(context.WithoutCancel(ctx), tenant, id, failures.PhaseTransport, err, map[string]any{
			"filename": doc.Filename,
			"bytes":    len(doc.Content),
		})
		return AnalyzeResult{}, err
	}

	res := s.normalizer().Normalize(raw)
	if res.Notice != "" {
		log.Warn("analysis normalized with notice", zap.String("format", string(res.Format)), zap.String("notice", res.Notice))
	}
	if !res.Recognized() {
		s.recordFailure(context.WithoutCancel(ctx), tenant, id, failures.PhaseNormalize,
			errors.New(res.Notice), map[string]any{"response": snippet(raw)})
	}
	summary := compliance.Summarize(res.Annotations, linesAnalyzed(doc.Content, res.Annotations))
	if err := sess.Complete(runID, res, summary, s.Clock.Now()); err != nil {
		return AnalyzeResult{}, err
	}
	log.Info("analysis complete",
		zap.String("format", string(res.Format)),
		zap.Int("violations", summary.TotalViolations),
		zap.Int("score", summary.ComplianceScore))

	return AnalyzeResult{
		SessionID:   id,
		Format:      res.Format,
		Notice:      res.Notice,
		Summary:     summary,
		Annotations: len(res.Annotations),
		Sections:    len(res.Sections),
	}, nil
}

// CancelAnalysis aborts the in-flight run. It reports whether one existed.
func (s *Service) CancelAnalysis(tenant, id string) (bool, error) {
	sess, err := s.Sessions.Get(tenant, id)
	if err != nil {
		return false, err
	}
	return sess.CancelAnalysis(s.Clock.Now()), nil
}

// ImportCommand is a previously exported or saved JSON report.
type ImportCommand struct {
	TenantID  string
	SessionID string
	Filename  string
	Body      []byte
}

// Import runs an uploaded JSON report through the normalizer without a
// network call. The loaded document, if any, is kept.
func (s *Service) Import(ctx context.Context, cmd ImportCommand) (AnalyzeResult, error) {
	sess, err := s.Sessions.Get(cmd.TenantID, cmd.SessionID)
	if err != nil {
		return AnalyzeResult{}, err
	}
	if len(strings.TrimSpace(string(cmd.Body))) == 0 {
		return AnalyzeResult{}, ErrEmptyContent
	}
	if err := s.Limits.withDefaults().checkReport(cmd.Filename, cmd.Body); err != nil {
		return AnalyzeResult{}, err
	}

	res := s.normalizer().Normalize(cmd.Body)
	if !res.Recognized() {
		s.log().Warn("imported report not recognized",
			zap.String("tenant", cmd.TenantID), zap.String("session", cmd.SessionID), zap.String("notice", res.Notice))
		s.recordFailure(ctx, cmd.TenantID, cmd.SessionID, failures.PhaseImport, errors.New(res.Notice),
			map[string]any{"filename": cmd.Filename, "body": snippet(cmd.Body)})
	}
	doc := sess.Document()
	summary := compliance.Summarize(res.Annotations, linesAnalyzed(doc.Content, res.Annotations))
	sess.Import(nil, res, summary, s.Clock.Now())

	return AnalyzeResult{
		SessionID:   cmd.SessionID,
		Format:      res.Format,
		Notice:      res.Notice,
		Summary:     summary,
		Annotations: len(res.Annotations),
		Sections:    len(res.Sections),
	}, nil
}

// Select marks an annotation as the active one.
func (s *Service) Select(tenant, id, annotationID string) (compliance.Annotation, error) {
	sess, err := s.Sessions.Get(tenant, id)
	if err != nil {
		return compliance.Annotation{}, err
	}
	return sess.Select(annotationID, s.Clock.Now())
}

// ClearSelection is the explicit cancel gesture.
func (s *Service) ClearSelection(tenant, id string) error {
	sess, err := s.Sessions.Get(tenant, id)
	if err != nil {
		return err
	}
	sess.ClearSelection(s.Clock.Now())
	return nil
}

// Search sets the live query and returns the matching annotations.
func (s *Service) Search(tenant, id, query string) ([]compliance.Annotation, error) {
	sess, err := s.Sessions.Get(tenant, id)
	if err != nil {
		return nil, err
	}
	return sess.SetQuery(query, s.Clock.Now()), nil
}

// Segments returns the overlay plan for the current query.
func (s *Service) Segments(tenant, id string) ([]overlay.Segment, error) {
	sess, err := s.Sessions.Get(tenant, id)
	if err != nil {
		return nil, err
	}
	return sess.Segments(), nil
}

// Lines returns the per-line layout with section chips.
func (s *Service) Lines(tenant, id string) ([]overlay.LineView, error) {
	sess, err := s.Sessions.Get(tenant, id)
	if err != nil {
		return nil, err
	}
	return sess.Lines(), nil
}

// Subscribe streams progress events of a session.
func (s *Service) Subscribe(tenant, id string) (<-chan session.Progress, func(), error) {
	sess, err := s.Sessions.Get(tenant, id)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := sess.Subscribe()
	return ch, cancel, nil
}

// SessionFailures lists the recorded failures of a session, newest first.
func (s *Service) SessionFailures(ctx context.Context, tenant, id string, limit int) ([]*failures.Failure, error) {
	if s.Failures == nil {
		return []*failures.Failure{}, nil
	}
	return s.Failures.ListBySession(ctx, tenant, id, limit)
}

// ListReports returns a page of exported reports.
func (s *Service) ListReports(ctx context.Context, tenant string, page, pageSize int) (reports.PaginatedResult, error) {
	return s.Reports.Paginate(ctx, tenant, page, pageSize)
}

// GetReport ambil 1 report by id
func (s *Service) GetReport(ctx context.Context, tenant string, id reports.ReportID) (*reports.Report, error) {
	return s.Reports.Get(ctx, tenant, id)
}

func (s *Service) recordFailure(ctx context.Context, tenant, sessionID string, phase failures.Phase, cause error, details map[string]any) {
	if s.Failures == nil {
		return
	}
	b, _ := json.Marshal(details)
	f := &failures.Failure{
		TenantID:    tenant,
		SessionID:   sessionID,
		Phase:       phase,
		Message:     cause.Error(),
		DetailsJSON: string(b),
		CreatedAt:   s.Clock.Now(),
	}
	if err := s.Failures.Save(ctx, f); err != nil {
		s.log().Error("saving failure record", zap.Error(err), zap.String("phase", string(phase)))
	}
}

// linesAnalyzed counts document lines, ignoring the empty line after a
// trailing line break. Without a document (a bare report
// import) the highest annotated line stands in.
func linesAnalyzed(content string, annotations []compliance.Annotation) int {
	if content != "" {
		return len(overlay.ContentLines(content))
	}
	n := 0
	for _, a := range annotations {
		if a.LineNumber > n {
			n = a.LineNumber
		}
	}
	return n
}

// Fingerprint is the hex blake3 hash of a document.
func Fingerprint(content string) string {
	sum := blake3.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func snippet(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

func newReportID() reports.ReportID {
	return reports.ReportID(uuid.NewString())
}
