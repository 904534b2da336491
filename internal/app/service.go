// Package service is the taste insight engine: it turns access-scoped tier
// rankings into taste themes, similarity lists and divergence reports, and
// serves the ranking ratings the presentation layer shows next to them.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	jobqueue "github.com/okian/tierlens/internal/adapters/mq/queue"
	workerpool "github.com/okian/tierlens/internal/adapters/mq/worker"
	"github.com/okian/tierlens/internal/adapters/repository"
	"github.com/okian/tierlens/internal/config"
	"github.com/okian/tierlens/internal/domain/divergence"
	"github.com/okian/tierlens/internal/domain/factorize"
	"github.com/okian/tierlens/internal/domain/matrix"
	"github.com/okian/tierlens/internal/domain/model"
	"github.com/okian/tierlens/internal/domain/privacy"
	"github.com/okian/tierlens/internal/domain/ratingcache"
	"github.com/okian/tierlens/internal/domain/similarity"
	"github.com/okian/tierlens/pkg/logger"
	"github.com/okian/tierlens/pkg/metrics"
)

const cleanupInterval = time.Minute

// Viewer is the user an operation runs on behalf of.
type Viewer struct {
	ID    int64
	Admin bool
}

// Service implements the insight operations over a collaborator store.
type Service struct {
	mu sync.RWMutex

	store      repository.Reader
	gate       *privacy.Gate
	builder    *matrix.Builder // capped, feeds the factorizer
	ratings    *matrix.Builder // uncapped, feeds divergence reports
	factorizer *factorize.Factorizer
	cache      ratingcache.Cache

	// analysis settings
	themeCount          int
	similarTopN         int
	topImagesPerTheme   int
	hotTakesLimit       int
	digestPerCategory   int
	popularityLimit     int
	divergenceThreshold float64
	maxRows             int
	maxColumns          int
	asyncCellThreshold  int
	digestConcurrency   int

	// background jobs
	queueSize    int
	workerCount  int
	jobRetention time.Duration
	jobQueue     *jobqueue.InMemoryQueue
	workerPool   *workerpool.Pool
	jobs         *jobTable

	started bool
	stopCh  chan struct{}

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithConfig applies every engine setting from cfg.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg == nil {
			return
		}
		s.themeCount = cfg.ThemeCount
		s.factorizer = factorize.New(
			factorize.WithMaxIterations(cfg.MaxIterations),
			factorize.WithTolerance(cfg.Tolerance),
		)
		s.similarTopN = cfg.SimilarTopN
		s.topImagesPerTheme = cfg.TopImagesPerTheme
		s.hotTakesLimit = cfg.HotTakesLimit
		s.digestPerCategory = cfg.DigestPerCategory
		s.popularityLimit = cfg.PopularityLimit
		s.divergenceThreshold = cfg.DivergenceThreshold
		s.maxRows = cfg.MaxRows
		s.maxColumns = cfg.MaxColumns
		s.asyncCellThreshold = cfg.AsyncCellThreshold
		s.cache = ratingcache.New(ratingcache.WithMaxSize(cfg.RatingCacheSize))
		s.queueSize = cfg.JobQueueSize
		s.workerCount = cfg.WorkerCount
		s.jobRetention = cfg.JobRetention
		s.digestConcurrency = cfg.DigestConcurrency
	}
}

// WithThemeCount sets the requested number of themes.
func WithThemeCount(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.themeCount = k
		}
	}
}

// WithFactorizer replaces the factorizer.
func WithFactorizer(f *factorize.Factorizer) Option {
	return func(s *Service) {
		if f != nil {
			s.factorizer = f
		}
	}
}

// WithLimits caps analysable matrices; zero disables a cap.
func WithLimits(maxRows, maxColumns int) Option {
	return func(s *Service) {
		s.maxRows = maxRows
		s.maxColumns = maxColumns
	}
}

// WithAsyncThreshold sets the rows*columns size above which analyses must run as jobs.
func WithAsyncThreshold(cells int) Option {
	return func(s *Service) {
		if cells >= 0 {
			s.asyncCellThreshold = cells
		}
	}
}

// WithRatingCache replaces the ranking rating memo cache.
func WithRatingCache(c ratingcache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithWorkerCount sets the number of analysis workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending analysis jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithJobRetention sets how long finished jobs stay pollable.
func WithJobRetention(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.jobRetention = d
		}
	}
}

// WithDigestConcurrency bounds categories analysed in parallel.
func WithDigestConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.digestConcurrency = n
		}
	}
}

// New constructs a Service reading from store.
func New(store repository.Reader, opts ...Option) *Service {
	cfg := config.New()
	s := &Service{store: store, stopCh: make(chan struct{})}
	WithConfig(cfg)(s)
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("insight")
	}

	s.gate = privacy.NewGate(store,
		privacy.WithDirectory(store),
		privacy.WithLogger(s.logger.Named("privacy")),
	)
	s.builder = matrix.NewBuilder(s.gate, matrix.WithLimits(s.maxRows, s.maxColumns))
	s.ratings = matrix.NewBuilder(nil)
	s.jobs = newJobTable(s.jobRetention)
	return s
}

// Start launches the analysis workers and the job cleanup loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.jobQueue = jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.jobQueue, workerpool.ProcessorFunc(s.runJob),
		workerpool.WithLogger(s.logger.Named("analysis-worker")),
	)
	s.workerPool.Start(ctx)

	s.stopCh = make(chan struct{})
	go s.cleanupLoop(s.stopCh)

	s.started = true
	s.logger.Info(ctx, "insight service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("jobRetention", s.jobRetention),
	)
	return nil
}

// Stop drains the workers, fails jobs left in the queue and stops the cleanup loop.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping insight service...")

	if err := s.workerPool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
	}
	// workers are gone, so anything still queued will never run
	if n := s.jobs.abandon(time.Now().UTC(), ErrStopped); n > 0 {
		s.logger.Warn(ctx, "queued analysis jobs abandoned", logger.Int("jobs", n))
	}
	close(s.stopCh)

	s.started = false
	s.logger.Info(ctx, "insight service stopped")
}

func (s *Service) cleanupLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			if n := s.jobs.expire(now); n > 0 {
				s.logger.Debug(context.Background(), "expired analysis jobs", logger.Int("count", n))
			}
		}
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":         s.started,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"themeCount":      s.themeCount,
		"ratingCacheSize": s.cache.Size(),
		"jobs":            s.jobs.counts(),
	}
	if s.started {
		stats["queueLength"] = s.jobQueue.Len(context.Background())
	}
	return stats
}

// normalizeCategory rejects empty names and the reserved listing name.
func normalizeCategory(category string) (string, error) {
	c := model.NormalizeCategory(category)
	if c == "" || c == model.ReservedCategory {
		return "", fmt.Errorf("%w: got %q", ErrInvalidCategory, strings.TrimSpace(category))
	}
	return c, nil
}

// buildMatrix fetches the viewer's scope for category and assembles its matrix
// under the factorization size caps.
func (s *Service) buildMatrix(ctx context.Context, category string, viewer Viewer) (*matrix.Matrix, CategoryStats, error) {
	return s.assemble(ctx, s.builder, category, viewer)
}

// buildRatings is buildMatrix without size caps or identity checks, for reports
// that only average ratings.
func (s *Service) buildRatings(ctx context.Context, category string, viewer Viewer) (*matrix.Matrix, error) {
	m, _, err := s.assemble(ctx, s.ratings, category, viewer)
	return m, err
}

func (s *Service) assemble(ctx context.Context, b *matrix.Builder, category string, viewer Viewer) (*matrix.Matrix, CategoryStats, error) {
	images, rankings, err := s.store.Scope(ctx, viewer.ID, viewer.Admin, category)
	if err != nil {
		metrics.RecordCollaboratorFailure("access_scope")
		return nil, CategoryStats{}, fmt.Errorf("access scope for %q: %w", category, err)
	}
	stats := statsOf(category, images, rankings)

	m, err := b.Build(ctx, matrix.Input{
		Category: category,
		Viewer:   viewer.ID,
		Images:   images,
		Rankings: rankings,
	})
	if err != nil {
		if errors.Is(err, matrix.ErrTooLarge) {
			metrics.RecordMatrixRejected()
			return nil, stats, fmt.Errorf("%w: %w", ErrMatrixTooLarge, err)
		}
		return nil, stats, fmt.Errorf("build matrix for %q: %w", category, err)
	}
	return m, stats, nil
}

func statsOf(category string, images []model.Image, rankings []model.Ranking) CategoryStats {
	owners := make(map[int64]struct{}, len(rankings))
	for _, r := range rankings {
		owners[r.OwnerID] = struct{}{}
	}
	return CategoryStats{
		Category:     category,
		Images:       len(images),
		Rankings:     len(rankings),
		Contributors: len(owners),
	}
}

// checkSyncSize refuses matrices that must be analysed in the background.
func (s *Service) checkSyncSize(m *matrix.Matrix) error {
	rows, cols := m.Dims()
	if s.asyncCellThreshold > 0 && rows*cols > s.asyncCellThreshold {
		metrics.RecordMatrixRejected()
		return fmt.Errorf("%w: %dx%d exceeds %d cells", ErrAsyncRequired, rows, cols, s.asyncCellThreshold)
	}
	return nil
}

// identities memoizes presentation identities for one request.
type identities struct {
	gate   *privacy.Gate
	byUser map[int64]model.Identity
}

func (s *Service) newIdentities() *identities {
	return &identities{gate: s.gate, byUser: make(map[int64]model.Identity)}
}

// of returns row's owner identity as the viewer may see it.
func (ids *identities) of(ctx context.Context, row matrix.Row) model.Identity {
	if !row.SharesGroup {
		return privacy.Anonymous()
	}
	if id, ok := ids.byUser[row.OwnerID]; ok {
		return id
	}
	id := ids.gate.Resolve(ctx, row.OwnerID)
	ids.byUser[row.OwnerID] = id
	return id
}

func withCategory(records []divergence.Record, category string) []divergence.Record {
	for i := range records {
		records[i].Category = category
	}
	return records
}

func (s *Service) topN() int {
	if s.similarTopN > 0 {
		return s.similarTopN
	}
	return similarity.DefaultTopN
}
