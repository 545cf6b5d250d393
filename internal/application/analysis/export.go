package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/docguard/internal/domain/compliance"
	"github.com/bryanwahyu/docguard/internal/domain/failures"
	"github.com/bryanwahyu/docguard/internal/domain/reports"
	"github.com/bryanwahyu/docguard/internal/domain/session"
)

// Envelope is the exported report. Its keys are the ones the normalizer
// recognises, so an export can be uploaded again as-is.
type Envelope struct {
	ExportedAt      time.Time                  `json:"exported_at"`
	Filename        string                     `json:"filename"`
	Summary         compliance.AnalysisSummary `json:"summary"`
	Annotations     []compliance.Annotation    `json:"annotations"`
	SectionAnalyses []compliance.Section       `json:"section_analyses,omitempty"`
}

// ExportFilename is the download name for a report exported at t.
func ExportFilename(t time.Time) string {
	return fmt.Sprintf("compliance-report-%s.json", t.Format("2006-01-02"))
}

// ExportResult is the download plus what was recorded about it.
type ExportResult struct {
	Filename string          `json:"filename"`
	Body     []byte          `json:"-"`
	Report   *reports.Report `json:"report,omitempty"`
	// Previous is the last export of the same document content, if any.
	Previous *reports.Report `json:"previous,omitempty"`
}

// Export serializes the current summary and annotations. Archiving and
// history are best effort: the download is returned even when they fail.
func (s *Service) Export(ctx context.Context, tenant, id string) (ExportResult, error) {
	sess, err := s.Sessions.Get(tenant, id)
	if err != nil {
		return ExportResult{}, err
	}
	v := sess.Snapshot()
	if v.Summary == nil {
		return ExportResult{}, fmt.Errorf("%w: nothing analysed yet", session.ErrNoContent)
	}

	now := s.Clock.Now()
	env := Envelope{
		ExportedAt:      now.UTC(),
		Filename:        v.Filename,
		Summary:         *v.Summary,
		Annotations:     v.Annotations,
		SectionAnalyses: v.Sections,
	}
	body, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return ExportResult{}, err
	}
	out := ExportResult{Filename: ExportFilename(now), Body: body}

	if s.Reports == nil {
		return out, nil
	}
	rep, prev, err := s.record(ctx, tenant, id, sess.Document(), env, body)
	if err != nil {
		s.log().Warn("export not recorded", zap.String("tenant", tenant), zap.String("session", id), zap.Error(err))
		s.recordFailure(ctx, tenant, id, failures.PhaseExport, err, map[string]any{"filename": out.Filename})
		return out, nil
	}
	out.Report, out.Previous = rep, prev
	return out, nil
}

// record archives the export and looks up the previous report of the same
// document concurrently, then saves the history row.
func (s *Service) record(ctx context.Context, tenant, sessionID string, doc session.Document, env Envelope, body []byte) (*reports.Report, *reports.Report, error) {
	rep := &reports.Report{
		ID:              newReportID(),
		TenantID:        tenant,
		SessionID:       sessionID,
		Filename:        doc.Filename,
		Fingerprint:     Fingerprint(doc.Content),
		Status:          string(env.Summary.Status),
		ComplianceScore: env.Summary.ComplianceScore,
		TotalViolations: env.Summary.TotalViolations,
		Result:          string(body),
		CreatedAt:       env.ExportedAt,
	}

	var prev *reports.Report
	g, gctx := errgroup.WithContext(ctx)
	if s.Archive != nil {
		g.Go(func() error {
			key := fmt.Sprintf("%s/reports/%s/%s", tenant, rep.ID, ExportFilename(env.ExportedAt))
			url, err := s.Archive.Put(gctx, key, body, "application/json")
			if err != nil {
				return fmt.Errorf("archiving export: %w", err)
			}
			rep.ArchiveURL = url
			return nil
		})
	}
	g.Go(func() error {
		p, err := s.Reports.LatestByFingerprint(gctx, tenant, rep.Fingerprint)
		if err != nil {
			return fmt.Errorf("looking up previous report: %w", err)
		}
		prev = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if err := s.Reports.Save(ctx, rep); err != nil {
		return nil, nil, fmt.Errorf("saving report: %w", err)
	}
	s.log().Info("export recorded",
		zap.String("tenant", tenant),
		zap.String("report", string(rep.ID)),
		zap.String("archive", rep.ArchiveURL))
	return rep, prev, nil
}
