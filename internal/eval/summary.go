package eval

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes a score vector. Std is the unbiased sample standard
// deviation; it is 0 for fewer than two scores.
type Summary struct {
	N    int     `json:"n"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

func Summarize(scores []float64) Summary {
	if len(scores) == 0 {
		return Summary{}
	}

	mean, std := stat.MeanStdDev(scores, nil)
	if len(scores) < 2 {
		std = 0
	}

	return Summary{
		N:    len(scores),
		Mean: mean,
		Std:  std,
		Min:  floats.Min(scores),
		Max:  floats.Max(scores),
	}
}

func (s Summary) String() string {
	return fmt.Sprintf("%.3f +/- %.3f; Range = %.3f, %.3f", s.Mean, s.Std, s.Min, s.Max)
}

// Fprint writes the batch report line to w.
func (s Summary) Fprint(w io.Writer) {
	fmt.Fprintf(w, "Avg reward: %s\n", s)
}
