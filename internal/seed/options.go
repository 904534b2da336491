package seed

import "github.com/okian/tierlens/pkg/logger"

// Option configures Generate.
type Option func(*generator)

// WithUsers sets how many users are created.
func WithUsers(n int) Option {
	return func(g *generator) {
		if n > 0 {
			g.users = n
		}
	}
}

// WithImages sets how many images are spread across the categories.
func WithImages(n int) Option {
	return func(g *generator) {
		if n > 0 {
			g.images = n
		}
	}
}

// WithRankings sets how many rankings are created.
func WithRankings(n int) Option {
	return func(g *generator) {
		if n >= 0 {
			g.rankings = n
		}
	}
}

// WithCategories replaces the default category names.
func WithCategories(names ...string) Option {
	return func(g *generator) {
		if len(names) > 0 {
			g.categories = names
		}
	}
}

// WithSeed fixes the pseudo-random source. Equal seeds produce equal datasets.
func WithSeed(seed uint64) Option {
	return func(g *generator) {
		g.seed = seed
	}
}

// WithLogger sets the logger used for progress lines.
func WithLogger(l logger.Logger) Option {
	return func(g *generator) {
		if l != nil {
			g.logger = l
		}
	}
}
