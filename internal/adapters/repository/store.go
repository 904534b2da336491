// Package repository provides the collaborator stores the insight engine reads:
// access-scoped images and rankings, group membership, user identities and
// the ratings users give rankings.
package repository

import (
	"context"

	"github.com/okian/tierlens/internal/domain/model"
)

// Reader is everything the engine consumes.
type Reader interface {
	// Scope returns the category's images and rankings visible to viewer.
	Scope(ctx context.Context, viewer int64, admin bool, category string) ([]model.Image, []model.Ranking, error)
	// Categories lists categories with at least one image visible to viewer.
	Categories(ctx context.Context, viewer int64, admin bool) ([]string, error)
	SharesGroup(ctx context.Context, a, b int64) (bool, error)
	// Ranking returns one ranking visible to viewer, or ErrNotFound when it
	// does not exist or viewer cannot see it.
	Ranking(ctx context.Context, viewer int64, admin bool, id int64) (model.Ranking, error)
	// User returns ErrNotFound for unknown ids.
	User(ctx context.Context, id int64) (model.User, error)
	RankingRating(ctx context.Context, rankingID, userID int64) (int, bool, error)
	SetRankingRating(ctx context.Context, rankingID, userID int64, stars int) error
}

// Writer populates a store. Used by seeding and tests; the tier editor owns these writes in production.
type Writer interface {
	PutUser(ctx context.Context, u model.User) error
	PutImage(ctx context.Context, img model.Image, sharedWith ...int64) error
	PutRanking(ctx context.Context, r model.Ranking) error
	AddMembership(ctx context.Context, userID, groupID int64) error
}

// Store is a readable and writable collaborator store.
type Store interface {
	Reader
	Writer
	Close() error
}

func validStars(stars int) bool {
	return stars >= 1 && stars <= 5
}
