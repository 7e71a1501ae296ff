package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/san-kum/trajset/internal/dataset"
	"gonum.org/v1/gonum/mat"
)

const (
	metadataFile = "metadata.json"
	datasetFile  = "dataset.csv"
)

// FileStore keeps one directory per run holding metadata.json and
// dataset.csv.
type FileStore struct {
	baseDir string
}

func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir}
}

func (s *FileStore) Init(ctx context.Context) error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *FileStore) Save(ctx context.Context, meta RunMetadata, ds *dataset.Dataset) (string, error) {
	meta = prepare(meta, ds)
	runDir := filepath.Join(s.baseDir, meta.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeMetadata(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeCSV(filepath.Join(runDir, datasetFile), ds); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// writeMetadata and writeCSV report the error of closing the file, so a
// write lost on close fails the save.
func writeMetadata(path string, meta RunMetadata) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func writeCSV(path string, ds *dataset.Dataset) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(f)

	header := []string{"score"}
	for i := 0; i < ds.Horizon(); i++ {
		header = append(header, fmt.Sprintf("a%d", i))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i := 0; i < ds.Len(); i++ {
		traj, score, err := ds.Get(i)
		if err != nil {
			return err
		}
		row := make([]string, 0, len(traj)+1)
		row = append(row, strconv.FormatFloat(score, 'g', -1, 64))
		for _, a := range traj {
			row = append(row, strconv.FormatFloat(a, 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func (s *FileStore) List(ctx context.Context) ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(ctx, entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sortRuns(runs)
	return runs, nil
}

func (s *FileStore) Load(ctx context.Context, id string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, id, metadataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &meta, nil
}

func (s *FileStore) LoadDataset(ctx context.Context, id string) (*dataset.Dataset, error) {
	file, err := os.Open(filepath.Join(s.baseDir, id, datasetFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("decode run %s: missing header", id)
	}

	horizon := len(records[0]) - 1
	rows := records[1:]
	if len(rows) == 0 {
		return dataset.Empty(horizon), nil
	}

	x := mat.NewDense(len(rows), horizon, nil)
	y := make([]float64, len(rows))
	for i, record := range rows {
		if y[i], err = strconv.ParseFloat(record[0], 64); err != nil {
			return nil, fmt.Errorf("decode run %s: row %d: %w", id, i, err)
		}
		for j := 1; j < len(record); j++ {
			v, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				return nil, fmt.Errorf("decode run %s: row %d: %w", id, i, err)
			}
			x.Set(i, j-1, v)
		}
	}

	return dataset.New(x, y)
}
