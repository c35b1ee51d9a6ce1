package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mediafactory/internal/api"
	"mediafactory/internal/logging"
	"mediafactory/internal/services"
)

const maxRequestBody = 1 << 20

type handlers struct {
	daemon *Daemon
	logger *slog.Logger
}

func newRouter(d *Daemon, auth authenticator, logger *slog.Logger) http.Handler {
	h := &handlers{daemon: d, logger: logger}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /{$}", authMiddleware(auth, h.handleDashboard))
	mux.HandleFunc("GET /api/status", authMiddleware(auth, h.handleStatus))
	mux.HandleFunc("GET /api/jobs", authMiddleware(auth, h.handleListJobs))
	mux.HandleFunc("POST /api/jobs", authMiddleware(auth, h.handleSubmit))
	mux.HandleFunc("POST /api/jobs/cancel", authMiddleware(auth, h.handleCancelJobs))
	mux.HandleFunc("POST /api/jobs/retry", authMiddleware(auth, h.handleRetryJobs))
	mux.HandleFunc("GET /api/jobs/{id}", authMiddleware(auth, h.handleGetJob))
	mux.HandleFunc("GET /api/jobs/{id}/logs", authMiddleware(auth, h.handleJobLog))
	mux.HandleFunc("POST /api/jobs/{id}/cancel", authMiddleware(auth, h.handleCancel))
	mux.HandleFunc("POST /api/jobs/{id}/retry", authMiddleware(auth, h.handleRetry))
	return mux
}

func (h *handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := h.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		Database:     status.Database,
		LockFilePath: status.LockFilePath,
		MediaDir:     status.MediaDir,
		Workflow:     api.FromStatusSummary(status.Workflow),
		Dependencies: api.DependencyStatuses(status.Dependencies),
	}
	h.writeJSON(w, http.StatusOK, payload)
}

func (h *handlers) handleListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := api.ListRequest{}
	for _, value := range query["status"] {
		for part := range strings.SplitSeq(value, ",") {
			req.Statuses = append(req.Statuses, part)
		}
	}
	var err error
	if req.Offset, err = intParam(query.Get("offset")); err != nil {
		h.writeError(w, fmt.Errorf("%w: offset: %v", services.ErrValidation, err))
		return
	}
	if req.Limit, err = intParam(query.Get("limit")); err != nil {
		h.writeError(w, fmt.Errorf("%w: limit: %v", services.ErrValidation, err))
		return
	}
	items, err := h.daemon.service.List(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if items == nil {
		items = []api.Job{}
	}
	h.writeJSON(w, http.StatusOK, api.JobListResponse{Items: items})
}

func (h *handlers) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req api.SubmitRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	id, err := h.daemon.service.Submit(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, api.SubmitResponse{ID: id, Status: "pending"})
}

func (h *handlers) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.daemon.service.Describe(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.JobResponse{Job: *job})
}

// handleJobLog serves ?lines=N for the last N lines, or ?offset=B to read
// lines written after byte B. follow=1 long-polls up to wait seconds.
func (h *handlers) handleJobLog(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := api.LogRequest{Offset: -1}
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		offset, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || offset < 0 {
			h.writeError(w, fmt.Errorf("%w: offset: invalid value %q", services.ErrValidation, raw))
			return
		}
		req.Offset = offset
	}
	var err error
	if req.Lines, err = intParam(query.Get("lines")); err != nil {
		h.writeError(w, fmt.Errorf("%w: lines: %v", services.ErrValidation, err))
		return
	}
	wait, err := intParam(query.Get("wait"))
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: wait: %v", services.ErrValidation, err))
		return
	}
	req.Follow, _ = strconv.ParseBool(query.Get("follow"))
	req.Wait = time.Duration(wait) * time.Second

	chunk, err := h.daemon.service.JobLog(r.Context(), r.PathValue("id"), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, chunk)
}

func (h *handlers) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.daemon.service.Cancel(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	h.respondWithJob(w, r, id)
}

func (h *handlers) handleRetry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.daemon.service.Retry(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	h.respondWithJob(w, r, id)
}

func (h *handlers) handleCancelJobs(w http.ResponseWriter, r *http.Request) {
	var req api.JobIDsRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	result, err := h.daemon.service.CancelJobs(r.Context(), req.IDs)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *handlers) handleRetryJobs(w http.ResponseWriter, r *http.Request) {
	var req api.JobIDsRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	result, err := h.daemon.service.RetryJobs(r.Context(), req.IDs)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *handlers) respondWithJob(w http.ResponseWriter, r *http.Request, id string) {
	job, err := h.daemon.service.Describe(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.JobResponse{Job: *job})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", services.ErrValidation)
		}
		return fmt.Errorf("%w: decode request: %v", services.ErrValidation, err)
	}
	return nil
}

func intParam(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", raw)
	}
	if value < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return value, nil
}

// statusCode maps error markers onto HTTP status codes.
func statusCode(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(payload); err != nil {
		h.logger.Warn("api response encode failed", logging.Error(err))
	}
}

func (h *handlers) writeError(w http.ResponseWriter, err error) {
	code := statusCode(err)
	if code == http.StatusInternalServerError {
		logging.ErrorWithContext(h.logger, "api request failed", "api_request_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database connectivity"),
		)
	}
	h.writeJSON(w, code, api.ErrorResponse{Error: err.Error(), Kind: services.Label(err)})
}
