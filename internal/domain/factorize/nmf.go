// Package factorize decomposes a ratings matrix into non-negative taste and theme factors.
package factorize

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Defaults for the multiplicative update solver.
const (
	DefaultThemes        = 3
	DefaultMaxIterations = 500
	DefaultTolerance     = 1e-4

	epsilon    = 1e-10
	checkEvery = 10
)

// Result holds one factorization. R is approximated by W * Hᵀ.
type Result struct {
	W          *mat.Dense // rows x k
	H          *mat.Dense // columns x k
	K          int
	Iterations int
	Error      float64 // Frobenius norm of R - W*Hᵀ
}

// TasteVectors returns W with every row normalized to sum to 1.
func (r *Result) TasteVectors() [][]float64 {
	return NormalizeRows(r.W)
}

// ThemeStrengths returns H with every column scaled by its maximum.
func (r *Result) ThemeStrengths() [][]float64 {
	return NormalizeColumnsByMax(r.H)
}

// Factorizer runs non-negative matrix factorization with multiplicative updates.
type Factorizer struct {
	maxIterations int
	tolerance     float64
}

// Option configures a Factorizer.
type Option func(*Factorizer)

// WithMaxIterations caps the number of update steps.
func WithMaxIterations(n int) Option {
	return func(f *Factorizer) {
		if n > 0 {
			f.maxIterations = n
		}
	}
}

// WithTolerance sets the relative improvement below which iteration stops early.
// Zero always runs the full iteration cap.
func WithTolerance(tol float64) Option {
	return func(f *Factorizer) {
		if tol >= 0 {
			f.tolerance = tol
		}
	}
}

// New creates a Factorizer.
func New(opts ...Option) *Factorizer {
	f := &Factorizer{maxIterations: DefaultMaxIterations, tolerance: DefaultTolerance}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// EffectiveThemes bounds the requested theme count by the matrix dimensions.
func EffectiveThemes(requested, rows, cols int) (int, error) {
	if rows < 1 || cols < 1 {
		return 0, ErrEmptyMatrix
	}
	if requested < 1 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidThemeCount, requested)
	}
	return min(requested, rows, cols), nil
}

// Factorize decomposes values into k = min(requested, rows, cols) themes.
// The starting point is derived from the SVD of the input, so equal input gives equal output.
func (f *Factorizer) Factorize(ctx context.Context, values [][]float64, requested int) (*Result, error) {
	n := len(values)
	m := 0
	if n > 0 {
		m = len(values[0])
	}
	k, err := EffectiveThemes(requested, n, m)
	if err != nil {
		return nil, err
	}

	r := mat.NewDense(n, m, nil)
	for i, row := range values {
		if len(row) != m {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrRaggedMatrix, i, len(row), m)
		}
		for j, v := range row {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: (%d,%d)=%v", ErrNegativeEntry, i, j, v)
			}
		}
		r.SetRow(i, row)
	}

	w, ht := initNNDSVDA(r, k)

	var (
		scratch      mat.Dense
		wtr, wtw     mat.Dense
		wtwh         mat.Dense
		rht, hht     mat.Dense
		whht         mat.Dense
		iterations   int
		initialError = reconstructionError(r, w, ht, &scratch)
		prevError    = initialError
	)

	for initialError > 0 && iterations < f.maxIterations {
		if iterations%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("factorization interrupted after %d iterations: %w", iterations, err)
			}
		}

		// Hᵀ <- Hᵀ ∘ (Wᵀ R) / (Wᵀ W Hᵀ)
		wtr.Mul(w.T(), r)
		wtw.Mul(w.T(), w)
		wtwh.Mul(&wtw, ht)
		ht.Apply(func(i, j int, v float64) float64 {
			return v * wtr.At(i, j) / (wtwh.At(i, j) + epsilon)
		}, ht)

		// W <- W ∘ (R H) / (W Hᵀ H)
		rht.Mul(r, ht.T())
		hht.Mul(ht, ht.T())
		whht.Mul(w, &hht)
		w.Apply(func(i, j int, v float64) float64 {
			return v * rht.At(i, j) / (whht.At(i, j) + epsilon)
		}, w)

		iterations++
		if f.tolerance > 0 && iterations%checkEvery == 0 {
			e := reconstructionError(r, w, ht, &scratch)
			if (prevError-e)/initialError < f.tolerance {
				break
			}
			prevError = e
		}
	}

	return &Result{
		W:          w,
		H:          mat.DenseCopyOf(ht.T()),
		K:          k,
		Iterations: iterations,
		Error:      reconstructionError(r, w, ht, &scratch),
	}, nil
}

func reconstructionError(r, w, ht *mat.Dense, scratch *mat.Dense) float64 {
	scratch.Mul(w, ht)
	scratch.Sub(r, scratch)
	return mat.Norm(scratch, 2)
}

// initNNDSVDA builds W (n x k) and Hᵀ (k x m) from the leading singular
// triplets, keeping the dominant sign of each pair, and fills zeros with the
// mean of R so multiplicative updates can move them.
func initNNDSVDA(r *mat.Dense, k int) (*mat.Dense, *mat.Dense) {
	n, m := r.Dims()
	avg := mat.Sum(r) / float64(n*m)
	w := mat.NewDense(n, k, nil)
	ht := mat.NewDense(k, m, nil)

	var svd mat.SVD
	if !svd.Factorize(r, mat.SVDThin) {
		fill := math.Sqrt(avg / float64(k))
		w.Apply(func(_, _ int, _ float64) float64 { return fill }, w)
		ht.Apply(func(_, _ int, _ float64) float64 { return fill }, ht)
		return w, ht
	}
	s := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	for j := 0; j < k; j++ {
		x := mat.Col(nil, j, &u)
		y := mat.Col(nil, j, &v)

		var scale float64
		if j == 0 {
			absInPlace(x)
			absInPlace(y)
			scale = math.Sqrt(s[0])
		} else {
			xp, xn := splitSigns(x)
			yp, yn := splitSigns(y)
			xpn, ypn := floats.Norm(xp, 2), floats.Norm(yp, 2)
			xnn, ynn := floats.Norm(xn, 2), floats.Norm(yn, 2)

			mp, mn := xpn*ypn, xnn*ynn
			sigma := 0.0
			switch {
			case mp > mn:
				x, y, sigma = xp, yp, mp
				floats.Scale(1/xpn, x)
				floats.Scale(1/ypn, y)
			case mn > 0:
				x, y, sigma = xn, yn, mn
				floats.Scale(1/xnn, x)
				floats.Scale(1/ynn, y)
			default:
				x, y = xp, yp
			}
			scale = math.Sqrt(s[j] * sigma)
		}

		floats.Scale(scale, x)
		floats.Scale(scale, y)
		w.SetCol(j, x)
		ht.SetRow(j, y)
	}

	zeroFill := func(_, _ int, v float64) float64 {
		if v < epsilon {
			return avg
		}
		return v
	}
	w.Apply(zeroFill, w)
	ht.Apply(zeroFill, ht)
	return w, ht
}

func absInPlace(x []float64) {
	for i, v := range x {
		x[i] = math.Abs(v)
	}
}

func splitSigns(x []float64) (pos, neg []float64) {
	pos = make([]float64, len(x))
	neg = make([]float64, len(x))
	for i, v := range x {
		if v > 0 {
			pos[i] = v
		} else {
			neg[i] = -v
		}
	}
	return pos, neg
}
