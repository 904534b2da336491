package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/okian/tierlens/pkg/logger"
)

type jobQuery struct {
	ID string `validate:"required,uuid"`
}

// JobHandler serves background analyses.
type JobHandler struct {
	deps     Dependencies
	validate *validator.Validate
	logger   logger.Logger
}

// HandleSubmit handles POST /insights/jobs?category=.
func (h *JobHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := viewerFrom(r)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	q := categoryQuery{Category: r.URL.Query().Get("category")}
	if err := h.validate.Struct(q); err != nil {
		writeServiceError(ctx, h.logger, w, validationError(err))
		return
	}
	job, err := h.deps.SubmitAnalysis(ctx, q.Category, viewer)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	w.Header().Set("Location", "/insights/jobs/"+job.ID)
	writeJSON(w, http.StatusAccepted, job)
}

// HandleGet handles GET /insights/jobs/{id}.
func (h *JobHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := viewerFrom(r)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	q := jobQuery{ID: r.PathValue("id")}
	if err := h.validate.Struct(q); err != nil {
		writeServiceError(ctx, h.logger, w, validationError(err))
		return
	}
	job, err := h.deps.Job(ctx, q.ID, viewer)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
