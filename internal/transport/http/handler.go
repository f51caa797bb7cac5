package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"caption-worker-service/internal/service"
)

type Handler struct {
	jobSvc   *service.JobService
	validate *validator.Validate
}

func NewHandler(jobSvc *service.JobService) *Handler {
	return &Handler{
		jobSvc:   jobSvc,
		validate: validator.New(),
	}
}

type addJobDTO struct {
	ExternalRefID   string `json:"external_reference_id" validate:"required"`
	ResourceLocator string `json:"resource_locator"      validate:"required"`
	Backend         string `json:"backend_selector"      validate:"required"`
}

type queueDepthResp struct {
	QueueLength int `json:"queue_length"`
}

// AddJob godoc
// @Summary Enqueue a captioning job
// @Description Appends a job to the durable FIFO queue and notifies the consumer with status in_queue.
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body addJobDTO true "job payload"
// @Success 200 {object} apiStatus
// @Failure 400 {object} apiError
// @Failure 500 {object} apiError
// @Router /add_job [post]
func (h *Handler) AddJob(w http.ResponseWriter, r *http.Request) {
	var dto addJobDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		writeErr(w, http.StatusBadRequest, "external_reference_id, resource_locator and backend_selector are required")
		return
	}

	if _, err := h.jobSvc.AddJob(r.Context(), service.AddJobRequest{
		ExternalRefID:   dto.ExternalRefID,
		ResourceLocator: dto.ResourceLocator,
		Backend:         dto.Backend,
	}); err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, apiStatus{Status: "Job added to queue"})
}

// CheckQueue godoc
// @Summary Pending queue depth
// @Description Snapshot of the number of jobs not yet claimed by the worker; may be stale by the time it is read.
// @Tags jobs
// @Produce json
// @Success 200 {object} queueDepthResp
// @Failure 500 {object} apiError
// @Router /check_queue [get]
func (h *Handler) CheckQueue(w http.ResponseWriter, r *http.Request) {
	n, err := h.jobSvc.QueueLength(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, queueDepthResp{QueueLength: n})
}

// RemoveJob godoc
// @Summary Cancel a pending job
// @Description Removes a still-pending job and notifies the consumer with status not_started. Removing an unknown or already started job is a no-op that still returns 200.
// @Tags jobs
// @Produce json
// @Param external_reference_id path string true "caller's reference id"
// @Success 200 {object} apiStatus
// @Failure 500 {object} apiError
// @Router /remove_job/{external_reference_id} [delete]
func (h *Handler) RemoveJob(w http.ResponseWriter, r *http.Request) {
	externalRefID := chi.URLParam(r, "external_reference_id")

	if _, err := h.jobSvc.RemoveJob(r.Context(), externalRefID); err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}

	// 200 even when nothing was pending, callers retry without special cases
	writeJSON(w, http.StatusOK, apiStatus{Status: "Job removed from queue"})
}

// Home godoc
// @Summary Hello route
// @Tags meta
// @Produce json
// @Success 200 {object} apiStatus
// @Router / [get]
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, apiStatus{Status: "HELLO WORLD"})
}
