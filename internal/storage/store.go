package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/trajset/internal/dataset"
	"github.com/san-kum/trajset/internal/eval"
)

var ErrRunNotFound = errors.New("storage: run not found")

// RunMetadata describes one persisted dataset build.
type RunMetadata struct {
	ID         string             `json:"id"`
	Env        string             `json:"env"`
	Timestamp  time.Time          `json:"timestamp"`
	Seed       int64              `json:"seed"`
	Horizon    int                `json:"horizon"`
	Requested  int                `json:"requested"`
	Kept       int                `json:"kept"`
	UpperBound *float64           `json:"upper_bound,omitempty"`
	Integrator string             `json:"integrator"`
	Summary    eval.Summary       `json:"summary"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// Store persists built datasets together with their run metadata.
type Store interface {
	Init(ctx context.Context) error
	Save(ctx context.Context, meta RunMetadata, ds *dataset.Dataset) (string, error)
	List(ctx context.Context) ([]RunMetadata, error)
	Load(ctx context.Context, id string) (*RunMetadata, error)
	LoadDataset(ctx context.Context, id string) (*dataset.Dataset, error)
}

// NewRunID returns an id of the form <env>_<unix>_<8 hex chars>.
func NewRunID(env string, now time.Time) string {
	return fmt.Sprintf("%s_%d_%s", env, now.Unix(), uuid.NewString()[:8])
}

// prepare fills the fields of meta that are derived from ds or generated on
// save.
func prepare(meta RunMetadata, ds *dataset.Dataset) RunMetadata {
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	if meta.ID == "" {
		meta.ID = NewRunID(meta.Env, meta.Timestamp)
	}
	meta.Horizon = ds.Horizon()
	meta.Kept = ds.Len()
	meta.Summary = ds.Summary()
	return meta
}

func sortRuns(runs []RunMetadata) {
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].Timestamp.Equal(runs[j].Timestamp) {
			return runs[i].Timestamp.Before(runs[j].Timestamp)
		}
		return runs[i].ID < runs[j].ID
	})
}
