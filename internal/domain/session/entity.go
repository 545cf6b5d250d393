package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bryanwahyu/docguard/internal/domain/compliance"
	"github.com/bryanwahyu/docguard/internal/domain/overlay"
)

// State of a document session.
type State string

const (
	StateEmpty     State = "empty"
	StateLoaded    State = "loaded"
	StateAnalyzing State = "analyzing"
	StateAnalyzed  State = "analyzed"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrAnnotationNotFound = errors.New("annotation not found")
	ErrNoContent          = errors.New("no document content to analyze")
	ErrAnalysisInFlight   = errors.New("analysis already in progress")
	ErrStaleRun           = errors.New("analysis run was superseded")
)

// Document is the content being analysed.
type Document struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// Progress is a cosmetic progress event. It follows a fixed schedule and
// says nothing about how far the backend actually got.
type Progress struct {
	SessionID string `json:"sessionId"`
	State     State  `json:"state"`
	Percent   int    `json:"percent"`
	Message   string `json:"message,omitempty"`
}

// Options tune a session.
type Options struct {
	// ProgressInterval is the tick of the synthetic progress indicator.
	ProgressInterval time.Duration
	// ProgressStep is added on every tick, capped at ProgressCap.
	ProgressStep int
	ProgressCap  int
	// AnchorLines paints every finding over its whole source line instead
	// of the span reported by the backend.
	AnchorLines bool
}

func (o Options) withDefaults() Options {
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = 500 * time.Millisecond
	}
	if o.ProgressStep <= 0 {
		o.ProgressStep = 10
	}
	if o.ProgressCap <= 0 || o.ProgressCap >= 100 {
		o.ProgressCap = 90
	}
	return o
}

// run is one in-flight analysis.
type run struct {
	id     uint64
	cancel context.CancelFunc
	stop   chan struct{}
}

// Session is the state of one document in one browser tab. All methods
// are safe for concurrent use.
type Session struct {
	ID       string
	TenantID string

	mu        sync.Mutex
	opts      Options
	state     State
	doc       Document
	result    compliance.Result
	summary   *compliance.AnalysisSummary
	selected  string
	query     string
	progress  int
	run       *run
	runSeq    uint64
	subs      map[int]chan Progress
	subSeq    int
	closed    bool
	updatedAt time.Time
}

// New creates an empty session.
func New(id, tenant string, opts Options, now time.Time) *Session {
	return &Session{
		ID:        id,
		TenantID:  tenant,
		opts:      opts.withDefaults(),
		state:     StateEmpty,
		subs:      make(map[int]chan Progress),
		updatedAt: now,
	}
}

// Load replaces the document. Any analysis result, selection and in-flight
// run are discarded.
func (s *Session) Load(doc Document, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.abortLocked()
	s.doc = doc
	s.clearResultLocked()
	s.progress = 0
	if doc.Content == "" {
		s.state = StateEmpty
	} else {
		s.state = StateLoaded
	}
	s.updatedAt = now
	s.publishLocked("document loaded")
}

// Begin starts an analysis run. The returned context is cancelled when the
// run is superseded or the session closes.
func (s *Session) Begin(ctx context.Context, now time.Time) (context.Context, uint64, Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
		return nil, 0, Document{}, ErrSessionNotFound
	case s.state == StateAnalyzing:
		return nil, 0, Document{}, ErrAnalysisInFlight
	case s.doc.Content == "":
		return nil, 0, Document{}, ErrNoContent
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.runSeq++
	r := &run{id: s.runSeq, cancel: cancel, stop: make(chan struct{})}
	s.run = r
	s.clearResultLocked()
	s.state = StateAnalyzing
	s.progress = 0
	s.updatedAt = now
	s.publishLocked("analysis started")

	go s.tick(r)
	return runCtx, r.id, s.doc, nil
}

// tick advances the synthetic progress until the run stops.
func (s *Session) tick(r *run) {
	t := time.NewTicker(s.opts.ProgressInterval)
	defer t.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-t.C:
			s.mu.Lock()
			if s.run != r {
				s.mu.Unlock()
				return
			}
			if s.progress < s.opts.ProgressCap {
				s.progress += s.opts.ProgressStep
				if s.progress > s.opts.ProgressCap {
					s.progress = s.opts.ProgressCap
				}
				s.publishLocked("")
			}
			s.mu.Unlock()
		}
	}
}

// Complete stores the result of run id and moves to Analyzed.
func (s *Session) Complete(id uint64, res compliance.Result, summary compliance.AnalysisSummary, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run == nil || s.run.id != id {
		return ErrStaleRun
	}
	s.finishLocked()
	s.result = res
	s.summary = &summary
	s.state = StateAnalyzed
	s.progress = 100
	s.updatedAt = now
	s.publishLocked("analysis complete")
	return nil
}

// Fail rolls run id back to Loaded keeping the document.
func (s *Session) Fail(id uint64, cause error, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run == nil || s.run.id != id {
		return ErrStaleRun
	}
	s.finishLocked()
	s.state = StateLoaded
	s.progress = 0
	s.updatedAt = now
	msg := "analysis failed"
	if cause != nil {
		msg = "analysis failed: " + cause.Error()
	}
	s.publishLocked(msg)
	return nil
}

// CancelAnalysis aborts the in-flight run, if any, and returns to Loaded.
func (s *Session) CancelAnalysis(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run == nil {
		return false
	}
	s.abortLocked()
	s.state = StateLoaded
	s.progress = 0
	s.updatedAt = now
	s.publishLocked("analysis cancelled")
	return true
}

// Import installs a result that did not come from a live run, e.g. an
// uploaded JSON report.
func (s *Session) Import(doc *Document, res compliance.Result, summary compliance.AnalysisSummary, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.abortLocked()
	if doc != nil {
		s.doc = *doc
	}
	s.clearResultLocked()
	s.result = res
	s.summary = &summary
	s.state = StateAnalyzed
	s.progress = 100
	s.updatedAt = now
	s.publishLocked("report imported")
}

// Select marks annotation id as the one shown in the detail panel.
func (s *Session) Select(id string, now time.Time) (compliance.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := Find(s.result.Annotations, id)
	if !ok {
		return compliance.Annotation{}, ErrAnnotationNotFound
	}
	s.selected = id
	s.updatedAt = now
	return a, nil
}

// ClearSelection is the cancel gesture (escape key, back navigation).
func (s *Session) ClearSelection(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = ""
	s.updatedAt = now
}

// SetQuery updates the live search. Selection is left alone.
func (s *Session) SetQuery(q string, now time.Time) []compliance.Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = q
	s.updatedAt = now
	return Filter(s.result.Annotations, q)
}

// Filtered returns the annotations matching the current query.
func (s *Session) Filtered() []compliance.Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Filter(s.result.Annotations, s.query)
}

// Segments is the overlay plan for the current document and query.
func (s *Session) Segments() []overlay.Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	anns := Filter(s.result.Annotations, s.query)
	if s.opts.AnchorLines {
		anns = overlay.AnchorToLines(s.doc.Content, anns)
	}
	return overlay.Render(s.doc.Content, anns)
}

// Lines is the per-line layout with section chips.
func (s *Session) Lines() []overlay.LineView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return overlay.Layout(s.doc.Content, s.result.Sections, Filter(s.result.Annotations, s.query))
}

// Document returns the current document.
func (s *Session) Document() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// View is a read-only snapshot of the session.
type View struct {
	ID          string                      `json:"id"`
	TenantID    string                      `json:"tenantId"`
	State       State                       `json:"state"`
	Filename    string                      `json:"filename,omitempty"`
	Progress    int                         `json:"progress"`
	Format      compliance.PayloadKind      `json:"format,omitempty"`
	Notice      string                      `json:"notice,omitempty"`
	Summary     *compliance.AnalysisSummary `json:"summary,omitempty"`
	Annotations []compliance.Annotation     `json:"annotations"`
	Sections    []compliance.Section        `json:"sections,omitempty"`
	Selected    *compliance.Annotation      `json:"selected,omitempty"`
	Query       string                      `json:"query"`
	UpdatedAt   time.Time                   `json:"updatedAt"`
}

// Snapshot returns the current view.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:          s.ID,
		TenantID:    s.TenantID,
		State:       s.state,
		Filename:    s.doc.Filename,
		Progress:    s.progress,
		Format:      s.result.Format,
		Notice:      s.result.Notice,
		Summary:     s.summary,
		Annotations: s.result.Annotations,
		Sections:    s.result.Sections,
		Query:       s.query,
		UpdatedAt:   s.updatedAt,
	}
	if v.Annotations == nil {
		v.Annotations = []compliance.Annotation{}
	}
	if s.selected != "" {
		if a, ok := Find(s.result.Annotations, s.selected); ok {
			v.Selected = &a
		}
	}
	return v
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UpdatedAt returns the time of the last mutation.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Subscribe registers for progress events. The channel is closed by the
// returned cancel func or when the session closes.
func (s *Session) Subscribe() (<-chan Progress, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Progress, 16)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.subSeq++
	key := s.subSeq
	s.subs[key] = ch
	ch <- s.progressLocked("")

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[key]; ok {
				delete(s.subs, key)
				close(c)
			}
		})
	}
}

// Close cancels any run and releases subscribers.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.abortLocked()
	s.closed = true
	for k, c := range s.subs {
		delete(s.subs, k)
		close(c)
	}
}

func (s *Session) clearResultLocked() {
	s.result = compliance.Result{Annotations: []compliance.Annotation{}}
	s.summary = nil
	s.selected = ""
}

// finishLocked detaches the current run and stops its ticker. The ticker
// goroutine exits on its own once it sees stop or a different run.
func (s *Session) finishLocked() {
	r := s.run
	if r == nil {
		return
	}
	s.run = nil
	close(r.stop)
	r.cancel()
}

// abortLocked cancels the current run, if any.
func (s *Session) abortLocked() {
	s.finishLocked()
}

func (s *Session) progressLocked(msg string) Progress {
	return Progress{SessionID: s.ID, State: s.state, Percent: s.progress, Message: msg}
}

// publishLocked fans the current progress out without blocking; slow
// subscribers miss intermediate ticks.
func (s *Session) publishLocked(msg string) {
	p := s.progressLocked(msg)
	for _, c := range s.subs {
		select {
		case c <- p:
		default:
		}
	}
}
