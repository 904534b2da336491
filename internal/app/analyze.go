package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/tierlens/internal/domain/divergence"
	"github.com/okian/tierlens/internal/domain/factorize"
	"github.com/okian/tierlens/internal/domain/matrix"
	"github.com/okian/tierlens/internal/domain/model"
	"github.com/okian/tierlens/internal/domain/privacy"
	"github.com/okian/tierlens/internal/domain/similarity"
	"github.com/okian/tierlens/pkg/logger"
	"github.com/okian/tierlens/pkg/metrics"
)

// CategoryStats counts the images, rankings and distinct ranking owners viewer can see in category.
func (s *Service) CategoryStats(ctx context.Context, category string, viewer Viewer) (CategoryStats, error) {
	category, err := normalizeCategory(category)
	if err != nil {
		return CategoryStats{}, err
	}
	images, rankings, err := s.store.Scope(ctx, viewer.ID, viewer.Admin, category)
	if err != nil {
		metrics.RecordCollaboratorFailure("access_scope")
		return CategoryStats{}, fmt.Errorf("access scope for %q: %w", category, err)
	}
	return statsOf(category, images, rankings), nil
}

// Categories returns stats for every category viewer can see, sorted by name.
func (s *Service) Categories(ctx context.Context, viewer Viewer) ([]CategoryStats, error) {
	names, err := s.store.Categories(ctx, viewer.ID, viewer.Admin)
	if err != nil {
		metrics.RecordCollaboratorFailure("access_scope")
		return nil, fmt.Errorf("list categories: %w", err)
	}

	out := make([]CategoryStats, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.digestConcurrency)
	for i, name := range names {
		g.Go(func() error {
			st, err := s.CategoryStats(gctx, name, viewer)
			if err != nil {
				return err
			}
			out[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Analyze runs the full insight pipeline for category inline. Categories larger
// than the synchronous threshold are refused with ErrAsyncRequired.
func (s *Service) Analyze(ctx context.Context, category string, viewer Viewer) (*Analysis, error) {
	return s.analyze(ctx, category, viewer, s.themeCount, false)
}

// analyze requests themes latent themes; zero or less falls back to the configured count.
func (s *Service) analyze(ctx context.Context, category string, viewer Viewer, themes int, background bool) (result *Analysis, err error) {
	start := time.Now()
	outcome := metrics.OutcomeError
	defer func() {
		metrics.RecordAnalysis(outcome, float64(time.Since(start).Milliseconds()))
	}()

	category, err = normalizeCategory(category)
	if err != nil {
		return nil, err
	}
	m, stats, err := s.buildMatrix(ctx, category, viewer)
	if err != nil {
		return nil, err
	}
	rows, cols := m.Dims()
	metrics.UpdateMatrixShape(rows, cols)

	if !m.Sufficient() {
		outcome = metrics.OutcomeInsufficient
		s.logger.Debug(ctx, "insufficient data for analysis",
			logger.String("category", category),
			logger.Int("rows", rows),
			logger.Int("columns", cols),
			logger.Int("dropped", m.Dropped),
		)
		return &Analysis{Status: StatusInsufficient, Category: category, Stats: stats}, nil
	}
	if !background {
		if err := s.checkSyncSize(m); err != nil {
			return nil, err
		}
	}

	res, err := s.factorize(ctx, m, themes)
	if err != nil {
		return nil, err
	}

	taste := res.TasteVectors()
	strengths := res.ThemeStrengths()
	ids := s.newIdentities()

	a := &Analysis{
		Status:       StatusOK,
		Category:     category,
		Stats:        stats,
		K:            res.K,
		Iterations:   res.Iterations,
		Error:        res.Error,
		TasteVectors: make([]TasteProfile, rows),
		ThemeVectors: make([]ImageThemes, cols),
		ViewerRows:   m.RowsOwnedBy(viewer.ID),
	}
	for i, row := range m.Rows {
		owner := ids.of(ctx, row)
		a.TasteVectors[i] = TasteProfile{
			RankingID:   row.RankingID,
			RankingName: row.RankingName,
			Owner:       owner,
			Label:       privacy.Label(owner, row.RankingName),
			Themes:      taste[i],
		}
	}
	for j, img := range m.Images {
		a.ThemeVectors[j] = ImageThemes{Image: img, Themes: strengths[j]}
	}

	sims := similarity.Cosine(taste)
	matches := similarity.TopN(sims, a.ViewerRows, s.topN())
	for _, q := range a.ViewerRows {
		for _, match := range matches[q] {
			neighbour := a.TasteVectors[match.Row]
			a.SimilarRankings = append(a.SimilarRankings, SimilarRanking{
				ForRankingID: m.Rows[q].RankingID,
				RankingID:    neighbour.RankingID,
				Owner:        neighbour.Owner,
				Label:        neighbour.Label,
				Similarity:   match.Similarity,
				Percent:      match.Percent,
			})
		}
	}

	a.TopImagesPerTheme = make([][]RankedImage, res.K)
	for t := 0; t < res.K; t++ {
		ranked := rankByTheme(m.Images, strengths, t)
		if len(ranked) > s.topImagesPerTheme {
			ranked = ranked[:s.topImagesPerTheme]
		}
		a.TopImagesPerTheme[t] = ranked
	}

	sets := m.RatingSets()
	a.HotTakes = withCategory(divergence.HotTakes(viewer.ID, sets, s.divergenceThreshold, s.hotTakesLimit), category)
	extremes := divergence.PopularityExtremes(sets, s.popularityLimit)
	a.Popularity = &extremes

	outcome = metrics.OutcomeOK
	s.logger.Info(ctx, "analysis finished",
		logger.String("category", category),
		logger.Int("rows", rows),
		logger.Int("columns", cols),
		logger.Int("k", res.K),
		logger.Int("iterations", res.Iterations),
		logger.Bool("background", background),
		logger.Duration("took", time.Since(start)),
	)
	return a, nil
}

// ThemeGallery ranks every image of category by the strength of one theme.
func (s *Service) ThemeGallery(ctx context.Context, category string, theme int, viewer Viewer) (*ThemeGallery, error) {
	category, err := normalizeCategory(category)
	if err != nil {
		return nil, err
	}
	m, _, err := s.buildMatrix(ctx, category, viewer)
	if err != nil {
		return nil, err
	}
	if !m.Sufficient() {
		return &ThemeGallery{Status: StatusInsufficient, Category: category, Theme: theme}, nil
	}

	rows, cols := m.Dims()
	k, err := factorize.EffectiveThemes(s.themeCount, rows, cols)
	if err != nil {
		return nil, err
	}
	if theme < 0 || theme >= k {
		return nil, fmt.Errorf("%w: theme must be between 0 and %d", ErrInvalidTheme, k-1)
	}
	if err := s.checkSyncSize(m); err != nil {
		return nil, err
	}

	res, err := s.factorize(ctx, m, s.themeCount)
	if err != nil {
		return nil, err
	}
	return &ThemeGallery{
		Status:   StatusOK,
		Category: category,
		Theme:    theme,
		K:        res.K,
		Images:   rankByTheme(m.Images, res.ThemeStrengths(), theme),
	}, nil
}

func (s *Service) factorize(ctx context.Context, m *matrix.Matrix, themes int) (*factorize.Result, error) {
	if themes <= 0 {
		themes = s.themeCount
	}
	start := time.Now()
	res, err := s.factorizer.Factorize(ctx, m.Values, themes)
	if err != nil {
		return nil, fmt.Errorf("factorize %q: %w", m.Category, err)
	}
	metrics.RecordFactorization(float64(time.Since(start).Milliseconds()), res.Iterations)
	return res, nil
}

// rankByTheme orders images by strength in theme, strongest first; ties keep column order.
func rankByTheme(images []model.Image, strengths [][]float64, theme int) []RankedImage {
	ranked := make([]RankedImage, len(images))
	for j, img := range images {
		ranked[j] = RankedImage{Image: img, Strength: strengths[j][theme], Themes: strengths[j]}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].Strength > ranked[b].Strength
	})
	return ranked
}
