package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/tierlens/internal/adapters/repository"
	"github.com/okian/tierlens/internal/domain/ratingcache"
	"github.com/okian/tierlens/pkg/logger"
	"github.com/okian/tierlens/pkg/metrics"
)

// RankingRating is the stars a user gave a ranking.
type RankingRating struct {
	RankingID int64 `json:"ranking_id"`
	UserID    int64 `json:"user_id"`
	Stars     int   `json:"stars"`
	Rated     bool  `json:"rated"`
}

// RankingRating reads the viewer's rating of a ranking through the memo
// cache. Rankings the viewer cannot see report ErrRankingNotFound.
func (s *Service) RankingRating(ctx context.Context, rankingID int64, viewer Viewer) (RankingRating, error) {
	if err := s.checkRanking(ctx, rankingID, viewer); err != nil {
		return RankingRating{}, err
	}
	userID := viewer.ID
	key := ratingcache.Key{RankingID: rankingID, UserID: userID}
	if e, ok := s.cache.Get(ctx, key); ok {
		metrics.RecordCacheLookup(true)
		return RankingRating{RankingID: rankingID, UserID: userID, Stars: e.Stars, Rated: e.Found}, nil
	}
	metrics.RecordCacheLookup(false)

	// the token must be taken before the read so a concurrent write fences this fill
	tok := s.cache.Token(key)
	stars, found, err := s.store.RankingRating(ctx, rankingID, userID)
	if err != nil {
		metrics.RecordCollaboratorFailure("ranking_ratings")
		return RankingRating{}, fmt.Errorf("ranking rating %d/%d: %w", rankingID, userID, err)
	}
	if !s.cache.Fill(ctx, key, ratingcache.Entry{Stars: stars, Found: found}, tok) {
		metrics.RecordCacheStaleWrite()
	}
	return RankingRating{RankingID: rankingID, UserID: userID, Stars: stars, Rated: found}, nil
}

// RateRanking records the viewer's rating of a ranking they can see. The
// cached value is invalidated before returning, so the next read sees the write.
func (s *Service) RateRanking(ctx context.Context, rankingID int64, viewer Viewer, stars int) (RankingRating, error) {
	if stars < 1 || stars > 5 {
		return RankingRating{}, fmt.Errorf("%w: got %d", ErrInvalidRating, stars)
	}
	if err := s.checkRanking(ctx, rankingID, viewer); err != nil {
		return RankingRating{}, err
	}
	userID := viewer.ID

	key := ratingcache.Key{RankingID: rankingID, UserID: userID}
	err := s.store.SetRankingRating(ctx, rankingID, userID, stars)
	// invalidate even on failure: the store may have applied the write
	s.cache.Invalidate(ctx, key)
	metrics.RecordCacheInvalidation()
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return RankingRating{}, fmt.Errorf("%w: %d", ErrRankingNotFound, rankingID)
		case errors.Is(err, repository.ErrInvalidRating):
			return RankingRating{}, fmt.Errorf("%w: got %d", ErrInvalidRating, stars)
		}
		return RankingRating{}, fmt.Errorf("rate ranking %d: %w", rankingID, err)
	}

	s.logger.Debug(ctx, "ranking rated",
		logger.Int64("ranking", rankingID),
		logger.Int64("user", userID),
		logger.Int("stars", stars),
	)
	return RankingRating{RankingID: rankingID, UserID: userID, Stars: stars, Rated: true}, nil
}

// checkRanking applies the ranking access rule before any rating is read or written.
func (s *Service) checkRanking(ctx context.Context, rankingID int64, viewer Viewer) error {
	_, err := s.store.Ranking(ctx, viewer.ID, viewer.Admin, rankingID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %d", ErrRankingNotFound, rankingID)
	}
	metrics.RecordCollaboratorFailure("rankings")
	return fmt.Errorf("ranking %d: %w", rankingID, err)
}
