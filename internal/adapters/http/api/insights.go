package api

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/okian/tierlens/pkg/logger"
)

// categoryQuery is the query string shared by the per-category endpoints.
type categoryQuery struct {
	Category string `validate:"required,max=64"`
}

type hotTakesQuery struct {
	Category string `validate:"required,max=64"`
	User     int64  `validate:"gte=0"`
}

// InsightHandler serves the per-category analyses.
type InsightHandler struct {
	deps     Dependencies
	validate *validator.Validate
	logger   logger.Logger
}

func (h *InsightHandler) category(r *http.Request) (string, error) {
	q := categoryQuery{Category: r.URL.Query().Get("category")}
	if err := h.validate.Struct(q); err != nil {
		return "", validationError(err)
	}
	return q.Category, nil
}

// HandleCategories handles GET /insights/categories.
func (h *InsightHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := viewerFrom(r)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	stats, err := h.deps.Categories(ctx, viewer)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleCategoryStats handles GET /insights/stats?category=.
func (h *InsightHandler) HandleCategoryStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := viewerFrom(r)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	category, err := h.category(r)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	stats, err := h.deps.CategoryStats(ctx, category, viewer)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleAnalyze handles GET /insights/analyze?category=.
func (h *InsightHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := viewerFrom(r)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	category, err := h.category(r)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	analysis, err := h.deps.Analyze(ctx, category, viewer)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// HandleThemeGallery handles GET /insights/themes/{index}?category=.
func (h *InsightHandler) HandleThemeGallery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := viewerFrom(r)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	category, err := h.category(r)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	theme, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	gallery, err := h.deps.ThemeGallery(ctx, category, theme, viewer)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, gallery)
}

// HandleHotTakes handles GET /insights/hot-takes?category=&user=. The user defaults to the viewer.
func (h *InsightHandler) HandleHotTakes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := viewerFrom(r)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	q := hotTakesQuery{Category: r.URL.Query().Get("category"), User: viewer.ID}
	if raw := r.URL.Query().Get("user"); raw != "" {
		if q.User, err = strconv.ParseInt(raw, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
	}
	if err := h.validate.Struct(q); err != nil {
		writeServiceError(ctx, h.logger, w, validationError(err))
		return
	}
	report, err := h.deps.HotTakes(ctx, q.Category, q.User, viewer)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandlePopularity handles GET /insights/popularity?category=.
func (h *InsightHandler) HandlePopularity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := viewerFrom(r)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	category, err := h.category(r)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	report, err := h.deps.Popularity(ctx, category, viewer)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
