package factorize

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// NormalizeRows scales each row to sum to 1. A row that sums to zero (or to
// anything non-finite) becomes the uniform distribution instead.
func NormalizeRows(a mat.Matrix) [][]float64 {
	rows, cols := a.Dims()
	out := make([][]float64, rows)
	for i := range out {
		row := make([]float64, cols)
		sum := 0.0
		for j := range row {
			row[j] = a.At(i, j)
			sum += row[j]
		}
		if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
			for j := range row {
				row[j] = 1 / float64(cols)
			}
		} else {
			for j := range row {
				row[j] /= sum
			}
		}
		out[i] = row
	}
	return out
}

// NormalizeColumnsByMax scales each column into 0..1 by its maximum.
// A column whose maximum is not positive stays all zeros.
func NormalizeColumnsByMax(a mat.Matrix) [][]float64 {
	rows, cols := a.Dims()
	maxes := make([]float64, cols)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			maxes[j] = math.Max(maxes[j], a.At(i, j))
		}
	}

	out := make([][]float64, rows)
	for i := range out {
		row := make([]float64, cols)
		for j := range row {
			if maxes[j] > 0 {
				row[j] = a.At(i, j) / maxes[j]
			}
		}
		out[i] = row
	}
	return out
}
