// Package seed writes a deterministic synthetic dataset into a store.
//
// Users fall into taste archetypes so the factorization has structure to find:
// mainstream raters follow each image's hidden appeal, contrarians invert it,
// and chaotic raters ignore it.
package seed

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/okian/tierlens/internal/adapters/repository"
	"github.com/okian/tierlens/internal/domain/model"
	"github.com/okian/tierlens/internal/domain/tier"
	"github.com/okian/tierlens/pkg/logger"
)

// Dataset defaults, matching the config defaults.
const (
	DefaultUsers    = 12
	DefaultImages   = 24
	DefaultRankings = 30
	DefaultSeed     = 42
)

// Group layout: everyone joins CommonGroup, and users are also split into
// small circles starting at firstCircle.
const (
	CommonGroup  int64 = 1
	firstCircle  int64 = 100
	circleSize         = 3
	privateEvery       = 5 // every fifth ranking is not shared
	minPlaced          = 0.6
)

var defaultCategories = []string{"cats", "dogs", "food"}

var displayNames = []string{
	"Ada", "Bo", "Carol", "Dev", "Eun", "Farah", "Gus", "Hana",
	"Ivo", "Jun", "Kemi", "Lior", "Mara", "Nils", "Oya", "Pim",
}

type archetype int

const (
	mainstream archetype = iota
	contrarian
	picky
	chaotic
	archetypeCount
)

func (a archetype) String() string {
	switch a {
	case mainstream:
		return "mainstream"
	case contrarian:
		return "contrarian"
	case picky:
		return "picky"
	default:
		return "chaotic"
	}
}

// Summary describes what Generate wrote.
type Summary struct {
	Users      int
	Groups     int
	Images     int
	Rankings   int
	Categories []string
}

type generator struct {
	users      int
	images     int
	rankings   int
	categories []string
	seed       uint64
	logger     logger.Logger

	rng    *rand.Rand
	appeal map[int64]int
}

// Generate writes users, memberships, images and rankings into w.
func Generate(ctx context.Context, w repository.Writer, opts ...Option) (Summary, error) {
	g := &generator{
		users:      DefaultUsers,
		images:     DefaultImages,
		rankings:   DefaultRankings,
		categories: defaultCategories,
		seed:       DefaultSeed,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = logger.Named("seed")
	}
	g.rng = rand.New(rand.NewPCG(g.seed, g.seed^0x9e3779b97f4a7c15))
	g.appeal = make(map[int64]int, g.images)

	groups, err := g.writeUsers(ctx, w)
	if err != nil {
		return Summary{}, err
	}
	byCategory, err := g.writeImages(ctx, w)
	if err != nil {
		return Summary{}, err
	}
	if err := g.writeRankings(ctx, w, byCategory); err != nil {
		return Summary{}, err
	}

	s := Summary{
		Users:      g.users,
		Groups:     groups,
		Images:     g.images,
		Rankings:   g.rankings,
		Categories: append([]string(nil), g.categories...),
	}
	g.logger.Info(ctx, "seeded dataset",
		logger.Int("users", s.Users),
		logger.Int("groups", s.Groups),
		logger.Int("images", s.Images),
		logger.Int("rankings", s.Rankings))
	return s, nil
}

func (g *generator) writeUsers(ctx context.Context, w repository.Writer) (int, error) {
	circles := make(map[int64]struct{})
	for i := 0; i < g.users; i++ {
		id := int64(i + 1)
		name := displayNames[i%len(displayNames)]
		if i >= len(displayNames) {
			name = fmt.Sprintf("%s %d", name, i/len(displayNames)+1)
		}
		if err := w.PutUser(ctx, model.User{ID: id, DisplayName: name}); err != nil {
			return 0, fmt.Errorf("seed user %d: %w", id, err)
		}
		circle := firstCircle + int64(i/circleSize)
		circles[circle] = struct{}{}
		for _, group := range []int64{CommonGroup, circle} {
			if err := w.AddMembership(ctx, id, group); err != nil {
				return 0, fmt.Errorf("seed membership %d/%d: %w", id, group, err)
			}
		}
	}
	return len(circles) + 1, nil
}

func (g *generator) writeImages(ctx context.Context, w repository.Writer) (map[string][]int64, error) {
	byCategory := make(map[string][]int64, len(g.categories))
	for i := 0; i < g.images; i++ {
		id := int64(i + 1)
		category := g.categories[i%len(g.categories)]
		img := model.Image{
			ID:       id,
			Name:     fmt.Sprintf("%s #%d", category, len(byCategory[category])+1),
			Category: category,
			OwnerID:  int64(i%g.users) + 1,
		}
		if err := w.PutImage(ctx, img, CommonGroup); err != nil {
			return nil, fmt.Errorf("seed image %d: %w", id, err)
		}
		g.appeal[id] = 1 + g.rng.IntN(5)
		byCategory[category] = append(byCategory[category], id)
	}
	return byCategory, nil
}

func (g *generator) writeRankings(ctx context.Context, w repository.Writer, byCategory map[string][]int64) error {
	for i := 0; i < g.rankings; i++ {
		id := int64(i + 1)
		owner := int64(i%g.users) + 1
		category := g.categories[i%len(g.categories)]
		kind := archetype(owner % int64(archetypeCount))

		payload, err := tier.Encode(g.assign(kind, byCategory[category]))
		if err != nil {
			return fmt.Errorf("seed ranking %d: %w", id, err)
		}
		r := model.Ranking{
			ID:       id,
			OwnerID:  owner,
			Name:     fmt.Sprintf("%s take on %s", kind, category),
			Category: category,
			Payload:  payload,
		}
		if (i+1)%privateEvery != 0 {
			r.Groups = []int64{CommonGroup}
		}
		if err := w.PutRanking(ctx, r); err != nil {
			return fmt.Errorf("seed ranking %d: %w", id, err)
		}
	}
	return nil
}

// assign places a random subset of images into tiers according to the archetype.
func (g *generator) assign(kind archetype, images []int64) tier.Assignment {
	out := make(tier.Assignment)
	for _, id := range images {
		if g.rng.Float64() > minPlaced && len(out) > 0 {
			continue
		}
		label, _ := tier.LabelFor(g.rate(kind, g.appeal[id]))
		out[string(label)] = append(out[string(label)], fmt.Sprintf("%d", id))
	}
	for _, ids := range out {
		sort.Strings(ids)
	}
	return out
}

func (g *generator) rate(kind archetype, appeal int) int {
	var r int
	switch kind {
	case mainstream:
		r = appeal
	case contrarian:
		r = 6 - appeal
	case picky:
		r = appeal - 1
	default:
		r = 1 + g.rng.IntN(5)
	}
	if g.rng.IntN(4) == 0 {
		r += g.rng.IntN(3) - 1
	}
	return min(max(r, 1), 5)
}
