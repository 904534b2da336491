// Package divergence compares individual ratings with the population.
package divergence

import (
	"math"
	"sort"

	"github.com/okian/tierlens/internal/domain/model"
)

// Defaults for hot takes and popularity lists.
const (
	DefaultThreshold   = 1.0
	DefaultLimit       = 8
	DefaultPerCategory = 3
	MinRatings         = 2
)

// Direction says which way an individual differs from the average.
type Direction string

// Directions.
const (
	Higher Direction = "higher"
	Lower  Direction = "lower"
)

// Record is one image where the target disagrees with the population.
type Record struct {
	ImageID    int64     `json:"image_id"`
	Category   string    `json:"category,omitempty"`
	UserRating int       `json:"user_rating"`
	Average    float64   `json:"average"`
	Divergence float64   `json:"divergence"`
	Direction  Direction `json:"direction"`
	Ratings    int       `json:"ratings"`
}

// Popularity is an image's mean rating across rankings.
type Popularity struct {
	ImageID int64   `json:"image_id"`
	Average float64 `json:"average"`
	Ratings int     `json:"ratings"`
}

// Extremes are the most and least liked images of a population.
type Extremes struct {
	Favorites      []Popularity `json:"favorites"`
	LeastFavorites []Popularity `json:"least_favorites"`
}

// HotTakes returns images where target's rating differs from the mean of all
// ratings of that image, the target's own included, by more than threshold.
// Images need MinRatings ratings. When the target owns several rankings the
// later set wins. Results are sorted by divergence, largest first, and capped at limit.
func HotTakes(target int64, sets []model.RatingSet, threshold float64, limit int) []Record {
	own := make(map[int64]int)
	for _, s := range sets {
		if s.OwnerID != target {
			continue
		}
		for img, r := range s.Ratings {
			own[img] = r
		}
	}
	if len(own) == 0 {
		return nil
	}

	stats := aggregate(sets)
	var out []Record
	for img, mine := range own {
		st := stats[img]
		if st.count < MinRatings {
			continue
		}
		avg := st.mean()
		diff := float64(mine) - avg
		if math.Abs(diff) <= threshold {
			continue
		}
		dir := Higher
		if diff < 0 {
			dir = Lower
		}
		out = append(out, Record{
			ImageID:    img,
			UserRating: mine,
			Average:    avg,
			Divergence: math.Abs(diff),
			Direction:  dir,
			Ratings:    st.count,
		})
	}
	sortRecords(out)
	return capRecords(out, limit)
}

// Digest merges per-category hot takes: the top perCategory of each category,
// tagged with its category, then globally sorted and capped at limit.
func Digest(byCategory map[string][]Record, perCategory, limit int) []Record {
	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var out []Record
	for _, c := range categories {
		records := append([]Record(nil), byCategory[c]...)
		sortRecords(records)
		for _, r := range capRecords(records, perCategory) {
			r.Category = c
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Divergence > out[j].Divergence })
	return capRecords(out, limit)
}

// PopularityExtremes ranks images with at least MinRatings ratings by mean.
// Favorites are the first limit; least favorites the last limit, lowest first.
// For small populations the two lists may share images.
func PopularityExtremes(sets []model.RatingSet, limit int) Extremes {
	var ranked []Popularity
	for img, st := range aggregate(sets) {
		if st.count < MinRatings {
			continue
		}
		ranked = append(ranked, Popularity{ImageID: img, Average: st.mean(), Ratings: st.count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Average != ranked[j].Average {
			return ranked[i].Average > ranked[j].Average
		}
		return ranked[i].ImageID < ranked[j].ImageID
	})

	ex := Extremes{Favorites: []Popularity{}, LeastFavorites: []Popularity{}}
	if limit <= 0 {
		return ex
	}
	n := min(limit, len(ranked))
	ex.Favorites = append(ex.Favorites, ranked[:n]...)
	for i := len(ranked) - 1; i >= len(ranked)-n; i-- {
		ex.LeastFavorites = append(ex.LeastFavorites, ranked[i])
	}
	return ex
}

type tally struct {
	sum   int
	count int
}

func (t tally) mean() float64 {
	return float64(t.sum) / float64(t.count)
}

func aggregate(sets []model.RatingSet) map[int64]tally {
	out := make(map[int64]tally)
	for _, s := range sets {
		for img, r := range s.Ratings {
			t := out[img]
			t.sum += r
			t.count++
			out[img] = t
		}
	}
	return out
}

func sortRecords(rs []Record) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Divergence != rs[j].Divergence {
			return rs[i].Divergence > rs[j].Divergence
		}
		return rs[i].ImageID < rs[j].ImageID
	})
}

func capRecords(rs []Record, limit int) []Record {
	if limit >= 0 && len(rs) > limit {
		return rs[:limit]
	}
	return rs
}
