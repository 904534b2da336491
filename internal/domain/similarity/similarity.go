// Package similarity ranks taste vectors by cosine similarity.
package similarity

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// DefaultTopN is the number of neighbours returned per query row.
const DefaultTopN = 3

// Match is one neighbour of a query row.
type Match struct {
	Query      int
	Row        int
	Similarity float64
	Percent    int
}

// Cosine returns the pairwise cosine similarity of the rows. A single row is
// maximally similar to itself. Rows with zero norm have similarity 0 to everything.
func Cosine(rows [][]float64) [][]float64 {
	n := len(rows)
	if n == 1 {
		return [][]float64{{1.0}}
	}

	norms := make([]float64, n)
	for i, r := range rows {
		norms[i] = floats.Norm(r, 2)
	}

	sims := make([][]float64, n)
	for i := range sims {
		sims[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s := 0.0
			if norms[i] > 0 && norms[j] > 0 {
				s = floats.Dot(rows[i], rows[j]) / (norms[i] * norms[j])
				s = math.Max(-1, math.Min(1, s))
			}
			sims[i][j] = s
			sims[j][i] = s
		}
	}
	return sims
}

// Percent converts a similarity to a rounded integer percentage.
func Percent(s float64) int {
	return int(math.Round(s * 100))
}

// TopN returns, for each query row, up to n other rows by descending
// similarity. Ties keep row order. Queries outside the matrix are skipped.
func TopN(sims [][]float64, queries []int, n int) map[int][]Match {
	out := make(map[int][]Match, len(queries))
	if n <= 0 {
		return out
	}
	for _, q := range queries {
		if q < 0 || q >= len(sims) {
			continue
		}
		candidates := make([]Match, 0, len(sims)-1)
		for j, s := range sims[q] {
			if j == q {
				continue
			}
			candidates = append(candidates, Match{Query: q, Row: j, Similarity: s, Percent: Percent(s)})
		}
		sort.SliceStable(candidates, func(a, b int) bool {
			return candidates[a].Similarity > candidates[b].Similarity
		})
		if len(candidates) > n {
			candidates = candidates[:n]
		}
		out[q] = candidates
	}
	return out
}
