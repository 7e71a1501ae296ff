package dataset

import (
	"github.com/san-kum/trajset/internal/dynamo"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Sample draws an n x horizon matrix of actions uniform in [0, 1) from src,
// filling row by row.
func Sample(src rand.Source, n, horizon int) (*mat.Dense, error) {
	if horizon < 1 {
		return nil, dynamo.ErrInvalidHorizon
	}
	if n < 1 {
		return nil, dynamo.ErrInvalidSampleCount
	}

	u := distuv.Uniform{Min: 0, Max: 1, Src: src}
	data := make([]float64, n*horizon)
	for i := range data {
		data[i] = u.Rand()
	}
	return mat.NewDense(n, horizon, data), nil
}
