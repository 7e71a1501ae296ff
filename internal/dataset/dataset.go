package dataset

import (
	"fmt"

	"github.com/san-kum/trajset/internal/dynamo"
	"github.com/san-kum/trajset/internal/eval"
	"gonum.org/v1/gonum/mat"
)

// Dataset pairs trajectories with their scores. Row i of the trajectory matrix
// and score i always come from the same sample. A Dataset owns its data and
// is never mutated after construction; accessors return copies.
type Dataset struct {
	x       *mat.Dense // nil when empty
	y       []float64
	horizon int
}

// New builds a Dataset from copies of x and y. Row count of x must match
// len(y).
func New(x *mat.Dense, y []float64) (*Dataset, error) {
	if x == nil || x.IsEmpty() {
		if len(y) != 0 {
			return nil, fmt.Errorf("%w: 0 trajectories, %d scores", dynamo.ErrDimensionMismatch, len(y))
		}
		return &Dataset{}, nil
	}

	rows, cols := x.Dims()
	if rows != len(y) {
		return nil, fmt.Errorf("%w: %d trajectories, %d scores", dynamo.ErrDimensionMismatch, rows, len(y))
	}

	return &Dataset{
		x:       mat.DenseCopyOf(x),
		y:       append([]float64(nil), y...),
		horizon: cols,
	}, nil
}

// Empty returns a dataset with no samples for trajectories of the given
// horizon.
func Empty(horizon int) *Dataset {
	return &Dataset{horizon: horizon}
}

func (d *Dataset) Len() int {
	return len(d.y)
}

// Horizon is the length of every trajectory in the dataset.
func (d *Dataset) Horizon() int {
	return d.horizon
}

// Get returns a copy of trajectory i and its score.
func (d *Dataset) Get(i int) ([]float64, float64, error) {
	if i < 0 || i >= d.Len() {
		return nil, 0, fmt.Errorf("%w: %d (len %d)", dynamo.ErrIndexOutOfRange, i, d.Len())
	}
	traj := append([]float64(nil), d.x.RawRowView(i)...)
	return traj, d.y[i], nil
}

func (d *Dataset) Scores() []float64 {
	return append([]float64(nil), d.y...)
}

// Trajectories returns a copy of the trajectory matrix, or nil when the
// dataset is empty.
func (d *Dataset) Trajectories() *mat.Dense {
	if d.x == nil {
		return nil
	}
	return mat.DenseCopyOf(d.x)
}

func (d *Dataset) Summary() eval.Summary {
	return eval.Summarize(d.y)
}

// Filter keeps the samples scoring at most bound, in their original order.
func (d *Dataset) Filter(bound float64) *Dataset {
	keep := make([]int, 0, len(d.y))
	for i, s := range d.y {
		if s <= bound {
			keep = append(keep, i)
		}
	}

	out := &Dataset{horizon: d.horizon, y: make([]float64, len(keep))}
	if len(keep) == 0 {
		return out
	}

	out.x = mat.NewDense(len(keep), d.horizon, nil)
	for j, i := range keep {
		out.x.SetRow(j, d.x.RawRowView(i))
		out.y[j] = d.y[i]
	}
	return out
}
