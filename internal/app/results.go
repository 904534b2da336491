package service

import (
	"github.com/okian/tierlens/internal/domain/divergence"
	"github.com/okian/tierlens/internal/domain/model"
)

// Status tells whether a result carries analysis data.
type Status string

// Result statuses.
const (
	StatusOK           Status = "ok"
	StatusInsufficient Status = "insufficient_data"
)

// CategoryStats counts what a viewer can see in a category.
type CategoryStats struct {
	Category     string `json:"category"`
	Images       int    `json:"images"`
	Rankings     int    `json:"rankings"`
	Contributors int    `json:"contributors"`
}

// TasteProfile is one ranking's distribution over themes.
type TasteProfile struct {
	RankingID   int64          `json:"ranking_id"`
	RankingName string         `json:"ranking_name"`
	Owner       model.Identity `json:"owner"`
	Label       string         `json:"label"`
	Themes      []float64      `json:"themes"`
}

// ImageThemes is one image's strength in every theme, each on a 0..1 scale.
type ImageThemes struct {
	Image  model.Image `json:"image"`
	Themes []float64   `json:"themes"`
}

// RankedImage is an image ordered by one theme's strength.
type RankedImage struct {
	Image    model.Image `json:"image"`
	Strength float64     `json:"strength"`
	Themes   []float64   `json:"themes,omitempty"`
}

// SimilarRanking is a neighbour of one of the viewer's rankings.
type SimilarRanking struct {
	ForRankingID int64          `json:"for_ranking_id"`
	RankingID    int64          `json:"ranking_id"`
	Owner        model.Identity `json:"owner"`
	Label        string         `json:"label"`
	Similarity   float64        `json:"similarity"`
	Percent      int            `json:"percent"`
}

// Analysis is the full insight report for one category.
type Analysis struct {
	Status   Status        `json:"status"`
	Category string        `json:"category"`
	Stats    CategoryStats `json:"stats"`

	K          int     `json:"k,omitempty"`
	Iterations int     `json:"iterations,omitempty"`
	Error      float64 `json:"reconstruction_error,omitempty"`

	TasteVectors      []TasteProfile       `json:"taste_vectors,omitempty"`
	ThemeVectors      []ImageThemes        `json:"theme_vectors,omitempty"`
	ViewerRows        []int                `json:"viewer_rows,omitempty"`
	SimilarRankings   []SimilarRanking     `json:"similar_rankings,omitempty"`
	TopImagesPerTheme [][]RankedImage      `json:"top_images_per_theme,omitempty"`
	HotTakes          []divergence.Record  `json:"hot_takes,omitempty"`
	Popularity        *divergence.Extremes `json:"popularity,omitempty"`
}

// ThemeGallery lists every image of a category by one theme's strength.
type ThemeGallery struct {
	Status   Status        `json:"status"`
	Category string        `json:"category"`
	Theme    int           `json:"theme"`
	K        int           `json:"k,omitempty"`
	Images   []RankedImage `json:"images,omitempty"`
}

// HotTakesReport lists where a user disagrees with a category's population.
type HotTakesReport struct {
	Status   Status              `json:"status"`
	Category string              `json:"category"`
	UserID   int64               `json:"user_id"`
	Records  []divergence.Record `json:"records"`
}

// PopularityReport holds a category's favorites and least favorites.
type PopularityReport struct {
	Status   Status              `json:"status"`
	Category string              `json:"category"`
	Extremes divergence.Extremes `json:"extremes"`
}

// CategoryCount is how many rankings a user made in one category.
type CategoryCount struct {
	Category string `json:"category"`
	Rankings int    `json:"rankings"`
}

// UserStats summarises a user's visible rankings.
type UserStats struct {
	UserID      int64           `json:"user_id"`
	Rankings    int             `json:"rankings"`
	RatedImages int             `json:"rated_images"`
	Categories  []CategoryCount `json:"categories"`
}
