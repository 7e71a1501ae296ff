package dataset_test

import (
	"bytes"
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/trajset/internal/dataset"
	"github.com/san-kum/trajset/internal/dynamo"
	"github.com/san-kum/trajset/internal/env"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// constEnv pays reward on every step and ends the episode after stopAfter
// steps when stopAfter > 0.
type constEnv struct {
	reward    float64
	stopAfter int
	err       error
	steps     int
}

func (c *constEnv) Reset(seed int64) (dynamo.State, dynamo.Info, error) {
	c.steps = 0
	return nil, nil, nil
}

func (c *constEnv) Step(action float64) (dynamo.StepResult, error) {
	if c.err != nil {
		return dynamo.StepResult{}, c.err
	}
	c.steps++
	return dynamo.StepResult{
		Reward:     c.reward,
		Terminated: c.stopAfter > 0 && c.steps >= c.stopAfter,
	}, nil
}

// echoEnv pays the action itself, so a score is the mean of its trajectory.
type echoEnv struct{}

func (echoEnv) Reset(seed int64) (dynamo.State, dynamo.Info, error) { return nil, nil, nil }

func (echoEnv) Step(action float64) (dynamo.StepResult, error) {
	return dynamo.StepResult{Reward: action}, nil
}

func bound(v float64) *float64 { return &v }

var _ = Describe("Sample", func() {
	It("draws an n x horizon matrix in [0, 1)", func() {
		batch, err := dataset.Sample(rand.NewSource(12345), 50, 8)
		Expect(err).NotTo(HaveOccurred())

		r, c := batch.Dims()
		Expect(r).To(Equal(50))
		Expect(c).To(Equal(8))
		for i := 0; i < r; i++ {
			for _, v := range batch.RawRowView(i) {
				Expect(v).To(BeNumerically(">=", 0))
				Expect(v).To(BeNumerically("<", 1))
			}
		}
	})

	It("is reproducible for a seed", func() {
		a, _ := dataset.Sample(rand.NewSource(7), 4, 5)
		b, _ := dataset.Sample(rand.NewSource(7), 4, 5)
		c, _ := dataset.Sample(rand.NewSource(8), 4, 5)

		Expect(mat.Equal(a, b)).To(BeTrue())
		Expect(mat.Equal(a, c)).To(BeFalse())
	})

	It("rejects empty shapes", func() {
		_, err := dataset.Sample(rand.NewSource(1), 3, 0)
		Expect(err).To(MatchError(dynamo.ErrInvalidHorizon))

		_, err = dataset.Sample(rand.NewSource(1), 0, 3)
		Expect(err).To(MatchError(dynamo.ErrInvalidSampleCount))
	})
})

var _ = Describe("Dataset", func() {
	var ds *dataset.Dataset

	BeforeEach(func() {
		var err error
		ds, err = dataset.New(mat.NewDense(3, 2, []float64{
			0.1, 0.2,
			0.3, 0.4,
			0.5, 0.6,
		}), []float64{1, 2, 3})
		Expect(err).NotTo(HaveOccurred())
	})

	It("pairs trajectories with scores by index", func() {
		Expect(ds.Len()).To(Equal(3))
		Expect(ds.Horizon()).To(Equal(2))

		traj, score, err := ds.Get(1)
		Expect(err).NotTo(HaveOccurred())
		Expect(traj).To(Equal([]float64{0.3, 0.4}))
		Expect(score).To(Equal(2.0))
	})

	It("fails past the end instead of returning stale data", func() {
		_, _, err := ds.Get(ds.Len())
		Expect(err).To(MatchError(dynamo.ErrIndexOutOfRange))

		_, _, err = ds.Get(-1)
		Expect(err).To(MatchError(dynamo.ErrIndexOutOfRange))
	})

	It("hands out copies", func() {
		traj, _, _ := ds.Get(0)
		traj[0] = 99

		scores := ds.Scores()
		scores[0] = 99

		again, score, _ := ds.Get(0)
		Expect(again[0]).To(Equal(0.1))
		Expect(score).To(Equal(1.0))
	})

	It("does not alias its inputs", func() {
		x := mat.NewDense(1, 2, []float64{0.1, 0.2})
		y := []float64{0.5}
		owned, err := dataset.New(x, y)
		Expect(err).NotTo(HaveOccurred())

		x.Set(0, 0, 9)
		y[0] = 9

		traj, score, _ := owned.Get(0)
		Expect(traj[0]).To(Equal(0.1))
		Expect(score).To(Equal(0.5))
	})

	It("rejects mismatched lengths", func() {
		_, err := dataset.New(mat.NewDense(2, 2, nil), []float64{1})
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))

		_, err = dataset.New(nil, []float64{1})
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
	})

	It("filters by upper bound in order", func() {
		kept := ds.Filter(2)
		Expect(kept.Len()).To(Equal(2))
		Expect(kept.Scores()).To(Equal([]float64{1, 2}))

		traj, _, _ := kept.Get(1)
		Expect(traj).To(Equal([]float64{0.3, 0.4}))
	})

	It("can filter down to nothing", func() {
		none := ds.Filter(0)
		Expect(none.Len()).To(Equal(0))
		Expect(none.Horizon()).To(Equal(2))
		Expect(none.Trajectories()).To(BeNil())

		_, _, err := none.Get(0)
		Expect(err).To(MatchError(dynamo.ErrIndexOutOfRange))
	})
})

var _ = Describe("Build", func() {
	opts := func(horizon, samples int) dataset.Options {
		return dataset.Options{Horizon: horizon, Seed: 12345, Samples: samples}
	}

	It("scores a constant-reward environment with that reward", func() {
		ds, err := dataset.Build(&constEnv{reward: 0.75}, opts(6, 20))
		Expect(err).NotTo(HaveOccurred())
		Expect(ds.Len()).To(Equal(20))
		for _, s := range ds.Scores() {
			Expect(s).To(BeNumerically("~", 0.75, 1e-12))
		}
	})

	It("divides by the declared horizon when episodes end early", func() {
		ds, err := dataset.Build(&constEnv{reward: 1, stopAfter: 3}, opts(10, 4))
		Expect(err).NotTo(HaveOccurred())
		for _, s := range ds.Scores() {
			Expect(s).To(BeNumerically("~", 0.3, 1e-12))
		}
	})

	It("uses the sampled batch as trajectories", func() {
		ds, err := dataset.Build(echoEnv{}, opts(5, 10))
		Expect(err).NotTo(HaveOccurred())

		batch, _ := dataset.Sample(rand.NewSource(12345), 10, 5)
		Expect(mat.Equal(ds.Trajectories(), batch)).To(BeTrue())

		for i := 0; i < ds.Len(); i++ {
			traj, score, _ := ds.Get(i)
			sum := 0.0
			for _, a := range traj {
				sum += a
			}
			Expect(score).To(BeNumerically("~", sum/5, 1e-12))
		}
	})

	It("is deterministic for identical options", func() {
		a, err := dataset.Build(echoEnv{}, opts(7, 30))
		Expect(err).NotTo(HaveOccurred())
		b, err := dataset.Build(echoEnv{}, opts(7, 30))
		Expect(err).NotTo(HaveOccurred())

		Expect(mat.Equal(a.Trajectories(), b.Trajectories())).To(BeTrue())
		Expect(a.Scores()).To(Equal(b.Scores()))
	})

	It("matches BuildFrom with an explicitly seeded source", func() {
		a, _ := dataset.Build(echoEnv{}, opts(4, 6))
		b, err := dataset.BuildFrom(echoEnv{}, rand.NewSource(12345), opts(4, 6))
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Scores()).To(Equal(b.Scores()))
	})

	It("drops exactly the samples scoring above the upper bound", func() {
		all, err := dataset.Build(echoEnv{}, opts(3, 200))
		Expect(err).NotTo(HaveOccurred())

		o := opts(3, 200)
		o.UpperBound = bound(0.5)
		kept, err := dataset.Build(echoEnv{}, o)
		Expect(err).NotTo(HaveOccurred())

		Expect(kept.Len()).To(BeNumerically("<=", all.Len()))
		Expect(kept.Len()).To(BeNumerically(">", 0))

		j := 0
		for i := 0; i < all.Len(); i++ {
			traj, score, _ := all.Get(i)
			if score > 0.5 {
				continue
			}
			keptTraj, keptScore, err := kept.Get(j)
			Expect(err).NotTo(HaveOccurred())
			Expect(keptScore).To(Equal(score))
			Expect(keptTraj).To(Equal(traj))
			j++
		}
		Expect(j).To(Equal(kept.Len()))
		for _, s := range kept.Scores() {
			Expect(s).To(BeNumerically("<=", 0.5))
		}
	})

	It("keeps the score equal to the bound", func() {
		o := opts(1, 1)
		o.UpperBound = bound(0.8)
		ds, err := dataset.Build(&constEnv{reward: 0.8}, o)
		Expect(err).NotTo(HaveOccurred())
		Expect(ds.Len()).To(Equal(1))

		_, score, _ := ds.Get(0)
		Expect(score).To(Equal(0.8))
	})

	It("may filter everything away", func() {
		o := opts(1, 1)
		o.UpperBound = bound(0.5)
		ds, err := dataset.Build(&constEnv{reward: 0.8}, o)
		Expect(err).NotTo(HaveOccurred())
		Expect(ds.Len()).To(Equal(0))
	})

	It("reports the post-filter summary", func() {
		var buf bytes.Buffer
		o := opts(2, 5)
		o.Report = &buf
		_, err := dataset.Build(&constEnv{reward: 1}, o)
		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(Equal("n=5 (kept 5); avg = 1.000 +/- 0.000; range  = 1.000, 1.000\n"))

		buf.Reset()
		o.UpperBound = bound(0)
		_, err = dataset.Build(&constEnv{reward: 1}, o)
		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(Equal("n=5 (kept 0)\n"))
	})

	It("rejects invalid sizes", func() {
		_, err := dataset.Build(echoEnv{}, opts(0, 5))
		Expect(err).To(MatchError(dynamo.ErrInvalidHorizon))

		_, err = dataset.Build(echoEnv{}, opts(5, 0))
		Expect(err).To(MatchError(dynamo.ErrInvalidSampleCount))
	})

	It("propagates environment failures", func() {
		boom := errors.New("boom")
		ds, err := dataset.Build(&constEnv{err: boom}, opts(3, 3))
		Expect(err).To(Equal(boom))
		Expect(ds).To(BeNil())
	})

	It("matches the sequential build when evaluated in parallel", func() {
		reg := env.NewRegistry()
		factory, err := reg.Factory("inverted_pendulum", env.Options{})
		Expect(err).NotTo(HaveOccurred())

		e, _ := factory()
		sequential, err := dataset.Build(e, opts(40, 16))
		Expect(err).NotTo(HaveOccurred())

		parallel, err := dataset.BuildParallel(context.Background(), factory, 4, opts(40, 16))
		Expect(err).NotTo(HaveOccurred())

		Expect(parallel.Scores()).To(Equal(sequential.Scores()))
		Expect(mat.Equal(parallel.Trajectories(), sequential.Trajectories())).To(BeTrue())
	})
})
