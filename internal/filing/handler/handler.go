// Package handler exposes the filing lifecycle to operators over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"rrfiler/internal/filing/models"
	"rrfiler/internal/filing/service"
	id "rrfiler/pkg/domain"
	dErrors "rrfiler/pkg/domain-errors"
	"rrfiler/pkg/platform/httputil"
	"rrfiler/pkg/platform/middleware/metadata"
	"rrfiler/pkg/platform/middleware/requesttime"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service,ReadinessChecker

// Service is the lifecycle controller as seen by the HTTP layer.
type Service interface {
	Submit(ctx context.Context, recordID id.RecordID) (*models.Submission, error)
	Poll(ctx context.Context, subID id.SubmissionID) (*models.Submission, error)
	Retry(ctx context.Context, subID id.SubmissionID) (*models.Submission, error)
	Get(ctx context.Context, subID id.SubmissionID) (*models.Submission, error)
	LatestForRecord(ctx context.Context, recordID id.RecordID) (*models.Submission, error)
	History(ctx context.Context, recordID id.RecordID) ([]models.AttemptRecord, error)
	Artifact(ctx context.Context, subID id.SubmissionID, kind models.ArtifactKind, index int) (*service.ArtifactContent, error)
	PollDue(ctx context.Context) (*service.PollReport, error)
}

// ReadinessChecker reports whether a dependency can serve traffic.
type ReadinessChecker interface {
	Check(ctx context.Context) error
}

// CheckFunc adapts a plain function to ReadinessChecker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// requestTimeout bounds a request. Submit waits on the record lock and a
// transfer host upload with its own retries.
const requestTimeout = 2 * time.Minute

type Handler struct {
	svc       Service
	logger    *slog.Logger
	metrics   http.Handler
	readiness map[string]ReadinessChecker
}

type Option func(*Handler)

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(hd *Handler) {
		hd.metrics = h
	}
}

// WithReadiness adds a named dependency to GET /healthz.
func WithReadiness(name string, c ReadinessChecker) Option {
	return func(hd *Handler) {
		if c != nil {
			hd.readiness[name] = c
		}
	}
}

func New(svc Service, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{svc: svc, logger: logger, readiness: make(map[string]ReadinessChecker)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the operator routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(chimw.RequestID)
		r.Use(chimw.Recoverer)
		r.Use(metadata.RequestMetadata)
		r.Use(requesttime.Middleware)
		r.Use(chimw.Timeout(requestTimeout))

		r.Post("/filings/{recordID}/submit", h.handleSubmit)
		r.Get("/filings/{recordID}/submissions", h.handleListSubmissions)
		r.Get("/submissions/{id}", h.handleGet)
		r.Post("/submissions/{id}/poll", h.handlePoll)
		r.Post("/submissions/{id}/retry", h.handleRetry)
		r.Get("/submissions/{id}/artifacts/{kind}", h.handleArtifact)
		r.Post("/poll-cycles", h.handlePollCycle)
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	sub, err := h.svc.Submit(ctx, recordID)
	if err != nil {
		h.logger.WarnContext(ctx, "submit failed",
			"record_id", recordID.String(),
			"error", err,
		)
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sub)
}

type recordSubmissionsResponse struct {
	Submission *models.Submission     `json:"submission"`
	Attempts   []models.AttemptRecord `json:"attempts"`
}

func (h *Handler) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	sub, err := h.svc.LatestForRecord(ctx, recordID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	attempts, err := h.svc.History(ctx, recordID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, recordSubmissionsResponse{Submission: sub, Attempts: attempts})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	h.withSubmission(w, r, h.svc.Get)
}

func (h *Handler) handlePoll(w http.ResponseWriter, r *http.Request) {
	h.withSubmission(w, r, h.svc.Poll)
}

func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	h.withSubmission(w, r, h.svc.Retry)
}

func (h *Handler) withSubmission(w http.ResponseWriter, r *http.Request, op func(context.Context, id.SubmissionID) (*models.Submission, error)) {
	ctx := r.Context()
	subID, err := id.ParseSubmissionID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	sub, err := op(ctx, subID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sub)
}

// handleArtifact streams the raw artifact bytes. ?index=n selects the n-th
// artifact of the kind; the latest is returned otherwise.
func (h *Handler) handleArtifact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subID, err := id.ParseSubmissionID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	index := -1
	if raw := r.URL.Query().Get("index"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "index must be a non-negative integer"))
			return
		}
		index = n
	}

	content, err := h.svc.Artifact(ctx, subID, models.ArtifactKind(chi.URLParam(r, "kind")), index)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Disposition", `attachment; filename="`+content.Filename+`"`)
	w.Header().Set("X-Artifact-Sha256", content.SHA256)
	w.Header().Set("X-Artifact-Attempt", strconv.Itoa(content.Attempt))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content.Data)
}

func (h *Handler) handlePollCycle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	report, err := h.svc.PollDue(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "poll cycle failed", "error", err)
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.readiness))
	status := http.StatusOK
	for name, c := range h.readiness {
		if err := c.Check(ctx); err != nil {
			h.logger.WarnContext(ctx, "readiness check failed", "dependency", name, "error", err)
			checks[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	httputil.WriteJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": checks})
}
