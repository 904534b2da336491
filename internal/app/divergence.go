package service

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/okian/tierlens/internal/domain/divergence"
	"github.com/okian/tierlens/internal/domain/tier"
	"github.com/okian/tierlens/pkg/metrics"
)

// HotTakes lists the images of category where user's rating strays furthest from the average.
func (s *Service) HotTakes(ctx context.Context, category string, user int64, viewer Viewer) (*HotTakesReport, error) {
	category, err := normalizeCategory(category)
	if err != nil {
		return nil, err
	}
	m, err := s.buildRatings(ctx, category, viewer)
	if err != nil {
		return nil, err
	}
	if !m.Sufficient() {
		return &HotTakesReport{Status: StatusInsufficient, Category: category, UserID: user, Records: []divergence.Record{}}, nil
	}
	records := divergence.HotTakes(user, m.RatingSets(), s.divergenceThreshold, s.hotTakesLimit)
	return &HotTakesReport{
		Status:   StatusOK,
		Category: category,
		UserID:   user,
		Records:  withCategory(records, category),
	}, nil
}

// ContrarianDigest collects user's strongest hot takes across every category viewer can see.
func (s *Service) ContrarianDigest(ctx context.Context, user int64, viewer Viewer) ([]divergence.Record, error) {
	names, err := s.store.Categories(ctx, viewer.ID, viewer.Admin)
	if err != nil {
		metrics.RecordCollaboratorFailure("access_scope")
		return nil, fmt.Errorf("list categories: %w", err)
	}

	perCategory := make([][]divergence.Record, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.digestConcurrency)
	for i, name := range names {
		g.Go(func() error {
			m, err := s.buildRatings(gctx, name, viewer)
			if err != nil {
				return err
			}
			perCategory[i] = withCategory(divergence.HotTakes(user, m.RatingSets(), s.divergenceThreshold, s.digestPerCategory), name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byCategory := make(map[string][]divergence.Record, len(names))
	for i, name := range names {
		if len(perCategory[i]) > 0 {
			byCategory[name] = perCategory[i]
		}
	}
	digest := divergence.Digest(byCategory, s.digestPerCategory, s.hotTakesLimit)
	if digest == nil {
		digest = []divergence.Record{}
	}
	return digest, nil
}

// Popularity returns the most and least liked images of category.
func (s *Service) Popularity(ctx context.Context, category string, viewer Viewer) (*PopularityReport, error) {
	category, err := normalizeCategory(category)
	if err != nil {
		return nil, err
	}
	m, err := s.buildRatings(ctx, category, viewer)
	if err != nil {
		return nil, err
	}
	if !m.Sufficient() {
		return &PopularityReport{
			Status:   StatusInsufficient,
			Category: category,
			Extremes: divergence.Extremes{Favorites: []divergence.Popularity{}, LeastFavorites: []divergence.Popularity{}},
		}, nil
	}
	return &PopularityReport{
		Status:   StatusOK,
		Category: category,
		Extremes: divergence.PopularityExtremes(m.RatingSets(), s.popularityLimit),
	}, nil
}

// UserStats counts user's rankings visible to viewer and the distinct images they rate.
func (s *Service) UserStats(ctx context.Context, user int64, viewer Viewer) (*UserStats, error) {
	names, err := s.store.Categories(ctx, viewer.ID, viewer.Admin)
	if err != nil {
		metrics.RecordCollaboratorFailure("access_scope")
		return nil, fmt.Errorf("list categories: %w", err)
	}

	stats := &UserStats{UserID: user, Categories: []CategoryCount{}}
	rated := make(map[int64]struct{})
	for _, name := range names {
		_, rankings, err := s.store.Scope(ctx, viewer.ID, viewer.Admin, name)
		if err != nil {
			metrics.RecordCollaboratorFailure("access_scope")
			return nil, fmt.Errorf("access scope for %q: %w", name, err)
		}
		count := 0
		for _, r := range rankings {
			if r.OwnerID != user {
				continue
			}
			count++
			for imageID := range tier.ExtractPayload(r.Payload) {
				rated[imageID] = struct{}{}
			}
		}
		if count > 0 {
			stats.Categories = append(stats.Categories, CategoryCount{Category: name, Rankings: count})
			stats.Rankings += count
		}
	}
	stats.RatedImages = len(rated)
	sort.SliceStable(stats.Categories, func(a, b int) bool {
		return stats.Categories[a].Rankings > stats.Categories[b].Rankings
	})
	return stats, nil
}
