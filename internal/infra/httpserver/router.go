package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	appanalysis "github.com/bryanwahyu/docguard/internal/application/analysis"
	"github.com/bryanwahyu/docguard/internal/domain/analyzer"
	"github.com/bryanwahyu/docguard/internal/domain/reports"
	"github.com/bryanwahyu/docguard/internal/domain/session"
	"github.com/bryanwahyu/docguard/internal/logging"
	"github.com/bryanwahyu/docguard/internal/middleware"
)

// Options configures the HTTP surface.
type Options struct {
	Log  *zap.Logger
	Ring *logging.Ring
	// APIKeys maps tenant to key. Auth is off when empty.
	APIKeys map[string]string
	// AllowedOrigins applies to CORS and to websocket handshakes.
	AllowedOrigins []string
	RateCapacity   int
	RateRefill     int
	Checkers       map[string]middleware.HealthChecker
	// MaxBodyBytes caps request bodies; uploads are validated again by the service.
	MaxBodyBytes int64
}

type Router struct {
	svc      *appanalysis.Service
	log      *zap.Logger
	opts     Options
	upgrader *websocket.Upgrader
}

// NewRouter builds the handler. ctx bounds background work owned by the
// router (rate limiter cleanup).
func NewRouter(ctx context.Context, svc *appanalysis.Service, opts Options) http.Handler {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 16 << 20
	}
	r := &Router{svc: svc, log: opts.Log, opts: opts}
	r.upgrader = r.newUpgrader()

	mux := chi.NewRouter()
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.LoggingMiddleware(opts.Log))
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: originsOrAll(opts.AllowedOrigins),
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	mux.Get("/health", middleware.HealthHandler(opts.Checkers))
	mux.Get("/ready", middleware.ReadinessHandler(svc.Sessions))
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler(svc.Sessions))
	if opts.Ring != nil {
		mux.Get("/debug/logs", r.handleDebugLogs)
	}

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		if len(opts.APIKeys) > 0 {
			rt.Use(middleware.APIKeyAuth(opts.APIKeys))
		}
		rt.Use(middleware.RequireValidTenant)
		if opts.RateCapacity > 0 {
			rt.Use(middleware.RateLimitMiddleware(ctx, opts.RateCapacity, opts.RateRefill))
		}

		rt.Post("/sessions", r.wrap(r.handleCreateSession))
		rt.Route("/sessions/{sid}", func(st chi.Router) {
			st.Use(requireSessionID)
			st.Get("/", r.wrap(r.handleGetSession))
			st.Delete("/", r.wrap(r.handleCloseSession))
			st.Put("/document", r.wrap(r.handleLoadDocument))
			st.Post("/analyze", r.wrap(r.handleAnalyze))
			st.Delete("/analyze", r.wrap(r.handleCancelAnalysis))
			st.Post("/import", r.wrap(r.handleImport))
			st.Get("/segments", r.wrap(r.handleSegments))
			st.Get("/lines", r.wrap(r.handleLines))
			st.Get("/annotations", r.wrap(r.handleAnnotations))
			st.Put("/selection", r.wrap(r.handleSelect))
			st.Delete("/selection", r.wrap(r.handleClearSelection))
			st.Get("/export", r.wrap(r.handleExport))
			st.Get("/failures", r.wrap(r.handleFailures))
			st.Get("/progress", r.wrap(r.handleProgress))
		})
		rt.Get("/reports", r.wrap(r.handleListReports))
		rt.Get("/reports/{id}", r.wrap(r.handleGetReport))
	})

	return mux
}

func originsOrAll(o []string) []string {
	if len(o) == 0 {
		return []string{"*"}
	}
	return o
}

func requireSessionID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if err := middleware.ValidateSessionID(chi.URLParam(req, "sid")); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, req)
	})
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// errBadRequest marks malformed request bodies and parameters.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			status := statusFor(err)
			if status >= http.StatusInternalServerError {
				r.log.Error("handler error", zap.String("path", req.URL.Path), zap.Error(err))
			}
			http.Error(w, err.Error(), status)
		}
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, appanalysis.ErrFileTooLarge),
		errors.Is(err, appanalysis.ErrUnsupportedType),
		errors.Is(err, appanalysis.ErrMalformedJSON),
		errors.Is(err, appanalysis.ErrEmptyContent):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrAnnotationNotFound),
		errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound
	case errors.Is(err, session.ErrAnalysisInFlight),
		errors.Is(err, session.ErrNoContent),
		errors.Is(err, session.ErrStaleRun):
		return http.StatusConflict
	case errors.Is(err, analyzer.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, analyzer.ErrAnalysisFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func (r *Router) decode(w http.ResponseWriter, req *http.Request, v any) error {
	req.Body = http.MaxBytesReader(w, req.Body, r.opts.MaxBodyBytes)
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return fmt.Errorf("%w: request body over %d bytes", appanalysis.ErrFileTooLarge, tooBig.Limit)
		}
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

// POST /v1/{tenant}/sessions
func (r *Router) handleCreateSession(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	return writeJSON(w, http.StatusCreated, r.svc.CreateSession(tenant))
}

// GET /v1/{tenant}/sessions/{sid}
func (r *Router) handleGetSession(w http.ResponseWriter, req *http.Request) error {
	v, err := r.svc.Session(chi.URLParam(req, "tenant"), chi.URLParam(req, "sid"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, v)
}

// DELETE /v1/{tenant}/sessions/{sid}
func (r *Router) handleCloseSession(w http.ResponseWriter, req *http.Request) error {
	if err := r.svc.CloseSession(chi.URLParam(req, "tenant"), chi.URLParam(req, "sid")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// PUT /v1/{tenant}/sessions/{sid}/document
// Body: {"filename": "policy.txt", "content": "..."}; filename may be
// omitted for pasted text.
func (r *Router) handleLoadDocument(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Filename string `json:"filename"`
		Content  string `json:"content"`
	}
	if err := r.decode(w, req, &body); err != nil {
		return err
	}
	if body.Filename != "" {
		if err := middleware.ValidateFilename(body.Filename); err != nil {
			return badRequest("%v", err)
		}
	}
	v, err := r.svc.LoadDocument(appanalysis.LoadDocumentCommand{
		TenantID:  chi.URLParam(req, "tenant"),
		SessionID: chi.URLParam(req, "sid"),
		Filename:  body.Filename,
		Content:   body.Content,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, v)
}

// POST /v1/{tenant}/sessions/{sid}/analyze
// Blocks until the backend answers; progress is streamed on /progress.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	done := middleware.AnalysisStarted()
	res, err := r.svc.Analyze(req.Context(), chi.URLParam(req, "tenant"), chi.URLParam(req, "sid"))
	done(err != nil)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

// DELETE /v1/{tenant}/sessions/{sid}/analyze
func (r *Router) handleCancelAnalysis(w http.ResponseWriter, req *http.Request) error {
	ok, err := r.svc.CancelAnalysis(chi.URLParam(req, "tenant"), chi.URLParam(req, "sid"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]bool{"cancelled": ok})
}

// POST /v1/{tenant}/sessions/{sid}/import?filename=report.json
// Body: the raw JSON report.
func (r *Router) handleImport(w http.ResponseWriter, req *http.Request) error {
	raw, err := io.ReadAll(http.MaxBytesReader(w, req.Body, r.opts.MaxBodyBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return fmt.Errorf("%w: request body over %d bytes", appanalysis.ErrFileTooLarge, tooBig.Limit)
		}
		return err
	}
	filename := req.URL.Query().Get("filename")
	if filename != "" {
		if err := middleware.ValidateFilename(filename); err != nil {
			return badRequest("%v", err)
		}
	}
	res, err := r.svc.Import(req.Context(), appanalysis.ImportCommand{
		TenantID:  chi.URLParam(req, "tenant"),
		SessionID: chi.URLParam(req, "sid"),
		Filename:  filename,
		Body:      raw,
	})
	if err != nil {
		return err
	}
	middleware.IncrementImports()
	return writeJSON(w, http.StatusOK, res)
}

// GET /v1/{tenant}/sessions/{sid}/segments
func (r *Router) handleSegments(w http.ResponseWriter, req *http.Request) error {
	segs, err := r.svc.Segments(chi.URLParam(req, "tenant"), chi.URLParam(req, "sid"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, segs)
}

// GET /v1/{tenant}/sessions/{sid}/lines
func (r *Router) handleLines(w http.ResponseWriter, req *http.Request) error {
	lines, err := r.svc.Lines(chi.URLParam(req, "tenant"), chi.URLParam(req, "sid"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, lines)
}

// GET /v1/{tenant}/sessions/{sid}/annotations?q=
func (r *Router) handleAnnotations(w http.ResponseWriter, req *http.Request) error {
	q := middleware.StripControl(req.URL.Query().Get("q"))
	list, err := r.svc.Search(chi.URLParam(req, "tenant"), chi.URLParam(req, "sid"), q)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// PUT /v1/{tenant}/sessions/{sid}/selection
// Body: {"id": "<annotation id>"}
func (r *Router) handleSelect(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		ID string `json:"id"`
	}
	if err := r.decode(w, req, &body); err != nil {
		return err
	}
	if err := middleware.ValidateAnnotationID(body.ID); err != nil {
		return badRequest("%v", err)
	}
	a, err := r.svc.Select(chi.URLParam(req, "tenant"), chi.URLParam(req, "sid"), body.ID)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, a)
}

// DELETE /v1/{tenant}/sessions/{sid}/selection
func (r *Router) handleClearSelection(w http.ResponseWriter, req *http.Request) error {
	if err := r.svc.ClearSelection(chi.URLParam(req, "tenant"), chi.URLParam(req, "sid")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// GET /v1/{tenant}/sessions/{sid}/export
func (r *Router) handleExport(w http.ResponseWriter, req *http.Request) error {
	out, err := r.svc.Export(req.Context(), chi.URLParam(req, "tenant"), chi.URLParam(req, "sid"))
	if err != nil {
		return err
	}
	middleware.IncrementExports()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
	if out.Report != nil {
		w.Header().Set("X-Report-ID", string(out.Report.ID))
	}
	_, err = w.Write(out.Body)
	return err
}

// GET /v1/{tenant}/sessions/{sid}/failures?limit=20
func (r *Router) handleFailures(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := r.svc.SessionFailures(req.Context(), chi.URLParam(req, "tenant"), chi.URLParam(req, "sid"), middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/{tenant}/reports?page=&page_size=
func (r *Router) handleListReports(w http.ResponseWriter, req *http.Request) error {
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.svc.ListReports(req.Context(), chi.URLParam(req, "tenant"), middleware.ValidatePage(page), middleware.ValidateLimit(size))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/{tenant}/reports/{id}
func (r *Router) handleGetReport(w http.ResponseWriter, req *http.Request) error {
	rep, err := r.svc.GetReport(req.Context(), chi.URLParam(req, "tenant"), reports.ReportID(chi.URLParam(req, "id")))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, rep)
}

// GET /debug/logs
func (r *Router) handleDebugLogs(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, r.opts.Ring.Entries())
}
