package api

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	service "github.com/okian/tierlens/internal/app"
	"github.com/okian/tierlens/pkg/logger"
)

const maxBodyBytes = 1 << 12

// ratingRequest is the body of PUT /rankings/{id}/rating.
type ratingRequest struct {
	Stars int `json:"stars" validate:"min=1,max=5"`
}

// RatingHandler serves the viewer's rating of a ranking.
type RatingHandler struct {
	deps     Dependencies
	validate *validator.Validate
	logger   logger.Logger
}

// HandleGet handles GET /rankings/{id}/rating.
func (h *RatingHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := viewerFrom(r)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	ranking, err := pathID(r, "id")
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	rating, err := h.deps.RankingRating(ctx, ranking, viewer)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, rating)
}

// HandlePut handles PUT /rankings/{id}/rating.
func (h *RatingHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := viewerFrom(r)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	ranking, err := pathID(r, "id")
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}

	var req ratingRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeServiceError(ctx, h.logger, w, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeServiceError(ctx, h.logger, w, fmt.Errorf("%w: got %d", service.ErrInvalidRating, req.Stars))
		return
	}

	rating, err := h.deps.RateRanking(ctx, ranking, viewer, req.Stars)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, rating)
}
