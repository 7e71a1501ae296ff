package viz

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const DefaultBins = 20

var ErrNoScores = errors.New("viz: no scores to plot")

// Histogram holds bin counts over [Lo, Hi]. Every bin has the same width.
type Histogram struct {
	Counts []float64
	Lo, Hi float64
}

func (h Histogram) BinWidth() float64 {
	return (h.Hi - h.Lo) / float64(len(h.Counts))
}

// Bin counts scores into bins equal-width bins spanning their range. A
// degenerate range is widened to one unit around the single value.
func Bin(scores []float64, bins int) (Histogram, error) {
	if len(scores) == 0 {
		return Histogram{}, ErrNoScores
	}
	if bins < 1 {
		bins = DefaultBins
	}

	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)

	lo, hi := floats.Min(sorted), floats.Max(sorted)
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}

	dividers := floats.Span(make([]float64, bins+1), lo, hi)
	// the top bin must include the maximum
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	return Histogram{
		Counts: stat.Histogram(nil, dividers, sorted, nil),
		Lo:     lo,
		Hi:     hi,
	}, nil
}

// RenderHistogram draws the score distribution as an ascii chart.
func RenderHistogram(scores []float64, bins int, caption string) (string, error) {
	h, err := Bin(scores, bins)
	if err != nil {
		return "", err
	}

	graph := asciigraph.Plot(h.Counts,
		asciigraph.Height(10),
		asciigraph.Width(60),
		asciigraph.Caption(fmt.Sprintf("%s [%.3f, %.3f]", caption, h.Lo, h.Hi)),
	)
	return graph, nil
}

// SaveHistogram writes a PNG histogram of scores to path, creating its
// directory if needed.
func SaveHistogram(path string, scores []float64, bins int, title string) error {
	if len(scores) == 0 {
		return ErrNoScores
	}
	if bins < 1 {
		bins = DefaultBins
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "score"
	p.Y.Label.Text = "count"

	hist, err := plotter.NewHist(plotter.Values(scores), bins)
	if err != nil {
		return err
	}
	p.Add(hist)

	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}
