package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/SougoEdo/tardis-api-middleware/internal/apperror"
	"github.com/SougoEdo/tardis-api-middleware/internal/job"
)

type handler struct {
	jobSvc *job.Service
}

type submitResponse struct {
	JobID   int64      `json:"job_id"`
	Message string     `json:"message"`
	Status  job.Status `json:"status"`
}

type listResponse struct {
	Jobs  []job.Job `json:"jobs"`
	Total int       `json:"total"`
}

type statusResponse struct {
	JobID        int64      `json:"job_id"`
	Status       job.Status `json:"status"`
	CreatedBy    string     `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

func (h *handler) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "Tardis Download Service",
		"status":  "running",
		"version": "1.0.0",
	})
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *handler) submitDownload(w http.ResponseWriter, r *http.Request) {
	var req job.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	j, err := h.jobSvc.Submit(r.Context(), req, callerUsername(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{
		JobID:   j.ID,
		Message: "Download job submitted successfully. You'll receive Telegram notifications.",
		Status:  j.Status,
	})
}

func (h *handler) listJobs(w http.ResponseWriter, r *http.Request) {
	var limit int
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	jobs, err := h.jobSvc.List(r.Context(), job.ListJobsRequest{Limit: limit})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if jobs == nil {
		jobs = []job.Job{}
	}

	writeJSON(w, http.StatusOK, listResponse{Jobs: jobs, Total: len(jobs)})
}

func (h *handler) getJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	j, err := h.jobSvc.Get(r.Context(), job.GetJobRequest{ID: id})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, j)
}

func (h *handler) getJobStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	j, err := h.jobSvc.Get(r.Context(), job.GetJobRequest{ID: id})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		JobID:        j.ID,
		Status:       j.Status,
		CreatedBy:    j.CreatedBy,
		CreatedAt:    j.CreatedAt,
		ErrorMessage: j.Error,
	})
}

func jobID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return 0, false
	}
	return id, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	if ae, ok := err.(*apperror.AppError); ok {
		writeError(w, ae.HTTPStatus(), ae.Message())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
