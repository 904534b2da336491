package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/tierlens/internal/domain/model"
)

type ratingKey struct {
	ranking int64
	user    int64
}

// MemoryStore keeps collaborator data in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[int64]model.User
	images      []model.Image
	imageIndex  map[int64]int
	imageShares map[int64][]int64
	rankings    []model.Ranking
	rankIndex   map[int64]int
	groups      map[int64]map[int64]struct{} // user -> groups
	ratings     map[ratingKey]int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[int64]model.User),
		imageIndex:  make(map[int64]int),
		imageShares: make(map[int64][]int64),
		rankIndex:   make(map[int64]int),
		groups:      make(map[int64]map[int64]struct{}),
		ratings:     make(map[ratingKey]int),
	}
}

// PutUser inserts or replaces a user.
func (s *MemoryStore) PutUser(_ context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

// PutImage inserts or replaces an image and its group shares.
func (s *MemoryStore) PutImage(_ context.Context, img model.Image, sharedWith ...int64) error {
	img.Category = model.NormalizeCategory(img.Category)
	if img.Category == "" || img.Category == model.ReservedCategory {
		return fmt.Errorf("%w: image %d has category %q", ErrInvalidRecord, img.ID, img.Category)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.imageIndex[img.ID]; ok {
		s.images[i] = img
	} else {
		s.imageIndex[img.ID] = len(s.images)
		s.images = append(s.images, img)
	}
	s.imageShares[img.ID] = append([]int64(nil), sharedWith...)
	return nil
}

// PutRanking inserts or replaces a ranking.
func (s *MemoryStore) PutRanking(_ context.Context, r model.Ranking) error {
	r.Category = model.NormalizeCategory(r.Category)
	if r.Category == "" || r.Category == model.ReservedCategory {
		return fmt.Errorf("%w: ranking %d has category %q", ErrInvalidRecord, r.ID, r.Category)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.rankIndex[r.ID]; ok {
		s.rankings[i] = r
		return nil
	}
	s.rankIndex[r.ID] = len(s.rankings)
	s.rankings = append(s.rankings, r)
	return nil
}

// AddMembership puts a user in a group.
func (s *MemoryStore) AddMembership(_ context.Context, userID, groupID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.groups[userID] == nil {
		s.groups[userID] = make(map[int64]struct{})
	}
	s.groups[userID][groupID] = struct{}{}
	return nil
}

// Scope returns the category's visible images and rankings in insertion order.
func (s *MemoryStore) Scope(_ context.Context, viewer int64, admin bool, category string) ([]model.Image, []model.Ranking, error) {
	category = model.NormalizeCategory(category)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var images []model.Image
	for _, img := range s.images {
		if img.Category == category && s.canSeeImage(viewer, admin, img) {
			images = append(images, img)
		}
	}
	var rankings []model.Ranking
	for _, r := range s.rankings {
		if r.Category == category && s.canSeeRanking(viewer, admin, r) {
			rankings = append(rankings, r)
		}
	}
	return images, rankings, nil
}

// Categories lists categories with visible images, sorted by name.
func (s *MemoryStore) Categories(_ context.Context, viewer int64, admin bool) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, img := range s.images {
		if s.canSeeImage(viewer, admin, img) {
			seen[img.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

// SharesGroup reports whether a and b are in a common group.
func (s *MemoryStore) SharesGroup(_ context.Context, a, b int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for g := range s.groups[a] {
		if _, ok := s.groups[b][g]; ok {
			return true, nil
		}
	}
	return false, nil
}

// User looks up a user by id.
func (s *MemoryStore) User(_ context.Context, id int64) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	return u, nil
}

// Ranking returns ranking id when viewer may see it.
func (s *MemoryStore) Ranking(_ context.Context, viewer int64, admin bool, id int64) (model.Ranking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.rankIndex[id]
	if !ok || !s.canSeeRanking(viewer, admin, s.rankings[i]) {
		return model.Ranking{}, fmt.Errorf("%w: ranking %d", ErrNotFound, id)
	}
	return s.rankings[i], nil
}

// RankingRating returns the stars userID gave rankingID.
func (s *MemoryStore) RankingRating(_ context.Context, rankingID, userID int64) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stars, ok := s.ratings[ratingKey{rankingID, userID}]
	return stars, ok, nil
}

// SetRankingRating records or replaces a rating of a ranking.
func (s *MemoryStore) SetRankingRating(_ context.Context, rankingID, userID int64, stars int) error {
	if !validStars(stars) {
		return fmt.Errorf("%w: got %d", ErrInvalidRating, stars)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rankIndex[rankingID]; !ok {
		return fmt.Errorf("%w: ranking %d", ErrNotFound, rankingID)
	}
	s.ratings[ratingKey{rankingID, userID}] = stars
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// canSeeImage: admins see everything, others their own images and images shared with one of their groups.
func (s *MemoryStore) canSeeImage(viewer int64, admin bool, img model.Image) bool {
	return admin || img.OwnerID == viewer || s.inAnyGroup(viewer, s.imageShares[img.ID])
}

// canSeeRanking applies the same rule to rankings.
func (s *MemoryStore) canSeeRanking(viewer int64, admin bool, r model.Ranking) bool {
	return admin || r.OwnerID == viewer || s.inAnyGroup(viewer, r.Groups)
}

func (s *MemoryStore) inAnyGroup(user int64, groups []int64) bool {
	mine := s.groups[user]
	for _, g := range groups {
		if _, ok := mine[g]; ok {
			return true
		}
	}
	return false
}
