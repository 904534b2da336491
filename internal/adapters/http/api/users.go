package api

import (
	"net/http"

	"github.com/okian/tierlens/pkg/logger"
)

// UserHandler serves per-user reports.
type UserHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// HandleContrarian handles GET /users/{id}/contrarian.
func (h *UserHandler) HandleContrarian(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := viewerFrom(r)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	user, err := pathID(r, "id")
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	digest, err := h.deps.ContrarianDigest(ctx, user, viewer)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, digest)
}

// HandleUserStats handles GET /users/{id}/stats.
func (h *UserHandler) HandleUserStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := viewerFrom(r)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	user, err := pathID(r, "id")
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	stats, err := h.deps.UserStats(ctx, user, viewer)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
