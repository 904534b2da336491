// Package matrix assembles the rankings x images ratings matrix for one category.
package matrix

import (
	"context"
	"fmt"

	"github.com/okian/tierlens/internal/domain/model"
	"github.com/okian/tierlens/internal/domain/tier"
)

// MinRows is the fewest contributing rankings an analysis needs.
const MinRows = 2

// Discloser decides whether the viewer may see a ranking owner.
type Discloser interface {
	Reveal(ctx context.Context, viewer, owner int64) bool
}

// Row labels one surviving ranking.
type Row struct {
	RankingID   int64
	OwnerID     int64
	RankingName string
	// SharesGroup is true when the viewer may see the owner's identity.
	SharesGroup bool
	// Ratings holds only ratings for images in the column index.
	Ratings map[int64]int
}

// Matrix is a dense ratings matrix. Values[i][j] is row i's rating of Images[j], 0 when unrated.
type Matrix struct {
	Category string
	Images   []model.Image
	Rows     []Row
	Values   [][]float64

	columns map[int64]int
	// Dropped counts rankings with no rating on any accessible image.
	Dropped int
}

// Sufficient reports whether the matrix has enough data to analyse.
func (m *Matrix) Sufficient() bool {
	return len(m.Rows) >= MinRows && len(m.Images) > 0
}

// Dims returns rows and columns.
func (m *Matrix) Dims() (int, int) {
	return len(m.Rows), len(m.Images)
}

// Column returns the column index of an image.
func (m *Matrix) Column(imageID int64) (int, bool) {
	j, ok := m.columns[imageID]
	return j, ok
}

// RatingSets returns the rows as rating sets for divergence analysis.
func (m *Matrix) RatingSets() []model.RatingSet {
	sets := make([]model.RatingSet, len(m.Rows))
	for i, r := range m.Rows {
		sets[i] = model.RatingSet{RankingID: r.RankingID, OwnerID: r.OwnerID, Ratings: r.Ratings}
	}
	return sets
}

// RowsOwnedBy returns the indices of rows owned by user.
func (m *Matrix) RowsOwnedBy(user int64) []int {
	var idx []int
	for i, r := range m.Rows {
		if r.OwnerID == user {
			idx = append(idx, i)
		}
	}
	return idx
}

// Builder builds matrices, labelling rows through a Discloser.
type Builder struct {
	gate       Discloser
	maxRows    int
	maxColumns int
}

// Option configures a Builder.
type Option func(*Builder)

// WithLimits caps the matrix size; zero disables a cap.
func WithLimits(rows, columns int) Option {
	return func(b *Builder) {
		if rows >= 0 {
			b.maxRows = rows
		}
		if columns >= 0 {
			b.maxColumns = columns
		}
	}
}

// NewBuilder creates a Builder.
func NewBuilder(gate Discloser, opts ...Option) *Builder {
	b := &Builder{gate: gate}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Input is the access-scoped data for one category and viewer.
type Input struct {
	Category string
	Viewer   int64
	Images   []model.Image
	Rankings []model.Ranking
}

// Build assembles the matrix. Sparse data never fails: callers check Sufficient.
// Only collaborator input from another category, or a matrix over the size cap, is an error.
func (b *Builder) Build(ctx context.Context, in Input) (*Matrix, error) {
	category := model.NormalizeCategory(in.Category)
	m := &Matrix{Category: category, columns: make(map[int64]int, len(in.Images))}

	for _, img := range in.Images {
		if model.NormalizeCategory(img.Category) != category {
			return nil, fmt.Errorf("%w: image %d is in %q, want %q", ErrCategoryMismatch, img.ID, img.Category, category)
		}
		if _, dup := m.columns[img.ID]; dup {
			continue
		}
		m.columns[img.ID] = len(m.Images)
		m.Images = append(m.Images, img)
	}
	if b.maxColumns > 0 && len(m.Images) > b.maxColumns {
		return nil, fmt.Errorf("%w: %d columns, limit %d", ErrTooLarge, len(m.Images), b.maxColumns)
	}

	for _, r := range in.Rankings {
		if model.NormalizeCategory(r.Category) != category {
			return nil, fmt.Errorf("%w: ranking %d is in %q, want %q", ErrCategoryMismatch, r.ID, r.Category, category)
		}

		row := make([]float64, len(m.Images))
		kept := make(map[int64]int)
		for imageID, rating := range tier.ExtractPayload(r.Payload) {
			j, ok := m.columns[imageID]
			if !ok {
				continue
			}
			row[j] = float64(rating)
			kept[imageID] = rating
		}
		if len(kept) == 0 {
			m.Dropped++
			continue
		}

		m.Rows = append(m.Rows, Row{RankingID: r.ID, OwnerID: r.OwnerID, RankingName: r.Name, Ratings: kept})
		m.Values = append(m.Values, row)
		if b.maxRows > 0 && len(m.Rows) > b.maxRows {
			return nil, fmt.Errorf("%w: more than %d rows", ErrTooLarge, b.maxRows)
		}
	}

	if !m.Sufficient() {
		return m, nil
	}

	for i := range m.Rows {
		if b.gate != nil {
			m.Rows[i].SharesGroup = b.gate.Reveal(ctx, in.Viewer, m.Rows[i].OwnerID)
		} else {
			m.Rows[i].SharesGroup = m.Rows[i].OwnerID == in.Viewer
		}
	}
	return m, nil
}
