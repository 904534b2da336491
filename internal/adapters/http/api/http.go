// Package api exposes the insight engine over JSON HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	service "github.com/okian/tierlens/internal/app"
	"github.com/okian/tierlens/internal/domain/divergence"
	"github.com/okian/tierlens/pkg/logger"
)

// Viewer identity headers. Sessions are handled upstream.
const (
	HeaderUserID = "X-User-ID"
	HeaderAdmin  = "X-Admin"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	Categories(ctx context.Context, viewer service.Viewer) ([]service.CategoryStats, error)
	CategoryStats(ctx context.Context, category string, viewer service.Viewer) (service.CategoryStats, error)
	Analyze(ctx context.Context, category string, viewer service.Viewer) (*service.Analysis, error)
	ThemeGallery(ctx context.Context, category string, theme int, viewer service.Viewer) (*service.ThemeGallery, error)
	HotTakes(ctx context.Context, category string, user int64, viewer service.Viewer) (*service.HotTakesReport, error)
	Popularity(ctx context.Context, category string, viewer service.Viewer) (*service.PopularityReport, error)
	ContrarianDigest(ctx context.Context, user int64, viewer service.Viewer) ([]divergence.Record, error)
	UserStats(ctx context.Context, user int64, viewer service.Viewer) (*service.UserStats, error)
	RankingRating(ctx context.Context, rankingID int64, viewer service.Viewer) (service.RankingRating, error)
	RateRanking(ctx context.Context, rankingID int64, viewer service.Viewer, stars int) (service.RankingRating, error)
	SubmitAnalysis(ctx context.Context, category string, viewer service.Viewer) (service.JobView, error)
	Job(ctx context.Context, id string, viewer service.Viewer) (service.JobView, error)
}

// Server wires HTTP routes for the insight API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	insightHandler *InsightHandler
	userHandler    *UserHandler
	ratingHandler  *RatingHandler
	jobHandler     *JobHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	v := validator.New(validator.WithRequiredStructEnabled())
	log := logger.Named("api")
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		insightHandler: &InsightHandler{deps: deps, validate: v, logger: log},
		userHandler:    &UserHandler{deps: deps, logger: log},
		ratingHandler:  &RatingHandler{deps: deps, validate: v, logger: log},
		jobHandler:     &JobHandler{deps: deps, validate: v, logger: log},
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("GET /insights/categories", MetricsMiddleware(s.insightHandler.HandleCategories, "categories"))
	mux.HandleFunc("GET /insights/stats", MetricsMiddleware(s.insightHandler.HandleCategoryStats, "category_stats"))
	mux.HandleFunc("GET /insights/analyze", MetricsMiddleware(s.insightHandler.HandleAnalyze, "analyze"))
	mux.HandleFunc("GET /insights/themes/{index}", MetricsMiddleware(s.insightHandler.HandleThemeGallery, "theme_gallery"))
	mux.HandleFunc("GET /insights/hot-takes", MetricsMiddleware(s.insightHandler.HandleHotTakes, "hot_takes"))
	mux.HandleFunc("GET /insights/popularity", MetricsMiddleware(s.insightHandler.HandlePopularity, "popularity"))

	mux.HandleFunc("POST /insights/jobs", MetricsMiddleware(s.jobHandler.HandleSubmit, "submit_job"))
	mux.HandleFunc("GET /insights/jobs/{id}", MetricsMiddleware(s.jobHandler.HandleGet, "get_job"))

	mux.HandleFunc("GET /users/{id}/contrarian", MetricsMiddleware(s.userHandler.HandleContrarian, "contrarian"))
	mux.HandleFunc("GET /users/{id}/stats", MetricsMiddleware(s.userHandler.HandleUserStats, "user_stats"))

	mux.HandleFunc("GET /rankings/{id}/rating", MetricsMiddleware(s.ratingHandler.HandleGet, "get_rating"))
	mux.HandleFunc("PUT /rankings/{id}/rating", MetricsMiddleware(s.ratingHandler.HandlePut, "put_rating"))

	logger.Named("api").Debug(ctx, "routes registered")
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps engine errors to status codes.
func writeServiceError(ctx context.Context, log logger.Logger, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrNoViewer):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrInvalidCategory):
		writeError(w, http.StatusBadRequest, "invalid_category", err)
	case errors.Is(err, service.ErrInvalidTheme):
		writeError(w, http.StatusUnprocessableEntity, "invalid_theme", err)
	case errors.Is(err, service.ErrInvalidRating):
		writeError(w, http.StatusUnprocessableEntity, "invalid_rating", err)
	case errors.Is(err, service.ErrAsyncRequired):
		writeError(w, http.StatusRequestEntityTooLarge, "async_required", err)
	case errors.Is(err, service.ErrMatrixTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", err)
	case errors.Is(err, service.ErrRankingNotFound), errors.Is(err, service.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		log.Error(ctx, "request failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// viewerFrom reads the viewer identity headers.
func viewerFrom(r *http.Request) (service.Viewer, error) {
	raw := strings.TrimSpace(r.Header.Get(HeaderUserID))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return service.Viewer{}, ErrNoViewer
	}
	admin, _ := strconv.ParseBool(r.Header.Get(HeaderAdmin))
	return service.Viewer{ID: id, Admin: admin}, nil
}

// pathID parses a positive integer path value.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", ErrBadRequest, name, r.PathValue(name))
	}
	return id, nil
}

// validationError flattens validator output into one bad-request error.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: %s failed %q", ErrBadRequest, strings.ToLower(fe.Field()), fe.Tag())
	}
	return fmt.Errorf("%w: %w", ErrBadRequest, err)
}
